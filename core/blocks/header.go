package blocks

import (
	"github.com/pkg/errors"

	"github.com/harborlabs/corebeacon/consensustypes"
	"github.com/harborlabs/corebeacon/epochctx"
	"github.com/harborlabs/corebeacon/hashutil"
)

// ProcessBlockHeader verifies and caches block's header, per the header
// checks of spec.md §4.F apply_block: slot match, monotonic slot,
// proposer match, parent-root match, and proposer not slashed. On success
// it writes a new LatestBlockHeader with a zeroed state-root placeholder,
// which the next slot tick (component F) patches in before caching it.
func ProcessBlockHeader(state *consensustypes.BeaconState, epochCtx *epochctx.EpochContext, block *consensustypes.BeaconBlock) error {
	if block.Slot != state.Slot {
		return errors.Errorf("blocks: block slot %d does not match state slot %d", block.Slot, state.Slot)
	}
	if block.Slot <= state.LatestBlockHeader.Slot {
		return errors.Errorf("blocks: block slot %d is not after latest header slot %d", block.Slot, state.LatestBlockHeader.Slot)
	}

	wantProposer, err := currentProposer(epochCtx, block.Slot)
	if err != nil {
		return errors.Wrap(err, "blocks: lookup expected proposer")
	}
	if block.ProposerIndex != wantProposer {
		return errors.Errorf("blocks: block proposer %d does not match expected proposer %d", block.ProposerIndex, wantProposer)
	}

	parentRoot := state.LatestBlockHeader.HashTreeRoot()
	blockParentRoot := block.ParentRoot
	if blockParentRoot != parentRoot {
		return errors.New("blocks: block parent root does not match latest header root")
	}

	proposer := state.Validators[block.ProposerIndex]
	if proposer.Slashed {
		return errors.New("blocks: proposer is slashed")
	}

	bodyRoot := bodyHashTreeRoot(block.Body)
	state.LatestBlockHeader = &consensustypes.BeaconBlockHeader{
		Slot:          block.Slot,
		ProposerIndex: block.ProposerIndex,
		ParentRoot:    blockParentRoot,
		StateRoot:     [32]byte{},
		BodyRoot:      bodyRoot,
	}
	return nil
}

// bodyHashTreeRoot returns a deterministic structural digest of a block
// body, the value committed to by the cached block header.
func bodyHashTreeRoot(body *consensustypes.BeaconBlockBody) [32]byte {
	if body == nil {
		return [32]byte{}
	}
	opRoots := make([][32]byte, 0, len(body.ProposerSlashings)+len(body.AttesterSlashings)+len(body.Attestations)+len(body.Deposits)+len(body.VoluntaryExits))
	for _, ps := range body.ProposerSlashings {
		opRoots = append(opRoots, ps.Header1.Header.HashTreeRoot(), ps.Header2.Header.HashTreeRoot())
	}
	for _, as := range body.AttesterSlashings {
		opRoots = append(opRoots, as.Attestation1.Data.HashTreeRoot(), as.Attestation2.Data.HashTreeRoot())
	}
	for _, a := range body.Attestations {
		opRoots = append(opRoots, a.Data.HashTreeRoot())
	}
	for _, d := range body.Deposits {
		opRoots = append(opRoots, d.Data.HashTreeRoot())
	}
	for _, ve := range body.VoluntaryExits {
		opRoots = append(opRoots, ve.Exit.HashTreeRoot())
	}
	opRoots = append(opRoots,
		hashutil.Hash(body.RandaoReveal),
		hashutil.HashConcat(body.Eth1Data.BlockHash[:], body.Eth1Data.DepositRoot[:]),
		body.Graffiti,
	)
	return hashutil.MerkleRootFromLeaves(opRoots)
}
