package transition

import (
	"context"

	"github.com/pkg/errors"
	"go.opencensus.io/trace"

	"github.com/harborlabs/corebeacon/blsverify"
	"github.com/harborlabs/corebeacon/consensustypes"
	"github.com/harborlabs/corebeacon/core/helpers"
	"github.com/harborlabs/corebeacon/epochctx"
	"github.com/harborlabs/corebeacon/params"
)

// VerifyBlockSignature checks the proposer's signature over signedBlock's
// block, under the beacon-proposer domain for the block's slot.
func VerifyBlockSignature(state *consensustypes.BeaconState, signedBlock *consensustypes.SignedBeaconBlock) bool {
	block := signedBlock.Block
	if uint64(block.ProposerIndex) >= uint64(len(state.Validators)) {
		return false
	}
	cfg := params.BeaconConfig()
	epoch := helpers.SlotToEpoch(block.Slot)
	domain := helpers.Domain(state.Fork, epoch, cfg.DomainBeaconProposer, state.GenesisValidatorsRoot)
	objectRoot := block.HashTreeRoot()
	signingRoot := consensustypes.ComputeSigningRoot(objectRoot, domain)
	pk := state.Validators[block.ProposerIndex].PublicKey
	return blsverify.Verify(pk[:], signingRoot[:], signedBlock.Signature)
}

// ExecuteStateTransition is the top-level glue of spec.md §4.F
// state_transition: it advances slots up to block.slot, optionally
// verifies the block signature, applies the block, and if validate is
// true, asserts that block.state_root matches the post-state's hash tree
// root.
//
// Per the persistent-state design note (spec.md §9), the incoming state
// and epoch context are never mutated: a working copy is built at the top
// and only returned to the caller on success. Any error leaves the
// caller's pre-state and epoch context exactly as passed in.
func ExecuteStateTransition(ctx context.Context, state *consensustypes.BeaconState, epochCtx *epochctx.EpochContext, signedBlock *consensustypes.SignedBeaconBlock, eth1DepositCount uint64, validateSignature, validateStateRoot bool) (*consensustypes.BeaconState, *epochctx.EpochContext, error) {
	_, span := trace.StartSpan(ctx, "core.transition.ExecuteStateTransition")
	defer span.End()

	workingState := state.Copy()
	workingCtx := epochCtx.Copy()
	block := signedBlock.Block

	newCtx, err := ProcessSlots(ctx, workingState, workingCtx, block.Slot)
	if err != nil {
		return nil, nil, errors.Wrap(err, "transition: advance slots")
	}
	workingCtx = newCtx

	if validateSignature && !VerifyBlockSignature(workingState, signedBlock) {
		return nil, nil, errors.New("transition: invalid block signature")
	}

	if err := ProcessBlock(ctx, workingState, workingCtx, block, eth1DepositCount); err != nil {
		return nil, nil, errors.Wrap(err, "transition: apply block")
	}

	if validateStateRoot {
		postRoot := workingState.HashTreeRoot()
		var blockStateRoot [32]byte
		copy(blockStateRoot[:], block.StateRoot)
		if postRoot != blockStateRoot {
			return nil, nil, errors.New("transition: block state root does not match post-state")
		}
	}

	return workingState, workingCtx, nil
}
