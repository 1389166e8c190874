package blocks

import (
	"github.com/pkg/errors"

	"github.com/harborlabs/corebeacon/blsverify"
	"github.com/harborlabs/corebeacon/consensustypes"
	"github.com/harborlabs/corebeacon/core/helpers"
	"github.com/harborlabs/corebeacon/epochctx"
	"github.com/harborlabs/corebeacon/params"
)

// VerifyProposerSlashing checks a proposer-slashing proof without mutating
// state, per spec.md §4.G: both headers share (slot, proposer_index) but
// differ, the proposer is currently slashable, and both signatures verify
// under the proposer's key with the beacon-proposer domain at each header's
// own slot.
func VerifyProposerSlashing(state *consensustypes.BeaconState, ps *consensustypes.ProposerSlashing) error {
	h1, h2 := ps.Header1.Header, ps.Header2.Header
	if h1.Slot != h2.Slot {
		return errors.New("blocks: proposer slashing headers at different slots")
	}
	if h1.ProposerIndex != h2.ProposerIndex {
		return errors.New("blocks: proposer slashing headers for different proposers")
	}
	if h1.HashTreeRoot() == h2.HashTreeRoot() {
		return errors.New("blocks: proposer slashing headers are identical")
	}

	if uint64(h1.ProposerIndex) >= uint64(len(state.Validators)) {
		return errors.New("blocks: proposer slashing references unknown validator")
	}
	v := state.Validators[h1.ProposerIndex]
	current := helpers.CurrentEpoch(state.Slot)
	if !helpers.IsSlashableValidator(v, current) {
		return errors.New("blocks: proposer is not currently slashable")
	}

	cfg := params.BeaconConfig()
	for _, signed := range []*consensustypes.SignedBeaconBlockHeader{ps.Header1, ps.Header2} {
		epoch := helpers.SlotToEpoch(signed.Header.Slot)
		domain := helpers.Domain(state.Fork, epoch, cfg.DomainBeaconProposer, state.GenesisValidatorsRoot)
		root := signed.Header.HashTreeRoot()
		signingRoot := consensustypes.ComputeSigningRoot(root, domain)
		pk := v.PublicKey
		if !blsverify.Verify(pk[:], signingRoot[:], signed.Signature) {
			return errors.New("blocks: invalid proposer slashing header signature")
		}
	}
	return nil
}

// ProcessProposerSlashing verifies ps and, on success, slashes the
// offending proposer, crediting the block's own proposer as whistleblower.
func ProcessProposerSlashing(state *consensustypes.BeaconState, epochCtx *epochctx.EpochContext, ps *consensustypes.ProposerSlashing) error {
	if err := VerifyProposerSlashing(state, ps); err != nil {
		return err
	}
	proposer, err := currentProposer(epochCtx, state.Slot)
	if err != nil {
		return errors.Wrap(err, "blocks: lookup block proposer for whistleblower credit")
	}
	SlashValidator(state, ps.Header1.Header.ProposerIndex, proposer, proposer)
	return nil
}
