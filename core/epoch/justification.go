// Package epoch implements the epoch transition (spec.md §4.E): the five
// ordered passes — justification & finalisation, rewards & penalties,
// registry updates, slashings, and final updates — run over the aggregate
// produced by core/precompute.
package epoch

import (
	eth2types "github.com/prysmaticlabs/eth2-types"

	"github.com/harborlabs/corebeacon/consensustypes"
	"github.com/harborlabs/corebeacon/core/helpers"
	"github.com/harborlabs/corebeacon/core/precompute"
	"github.com/harborlabs/corebeacon/params"
)

// ProcessJustificationAndFinalization runs pass 1 of spec.md §4.E. It is a
// no-op before the chain has seen two full epochs.
func ProcessJustificationAndFinalization(state *consensustypes.BeaconState, ep *precompute.EpochProcess) {
	cfg := params.BeaconConfig()
	if ep.CurrentEpoch <= cfg.GenesisEpoch+1 {
		return
	}

	oldPrevJustified := *state.PreviousJustifiedCheckpoint
	oldCurrJustified := *state.CurrentJustifiedCheckpoint

	// Shift the 4-bit vector left by one; the oldest bit drops off.
	var bits [4]bool
	bits[1] = state.JustificationBits[0]
	bits[2] = state.JustificationBits[1]
	bits[3] = state.JustificationBits[2]

	state.PreviousJustifiedCheckpoint = state.CurrentJustifiedCheckpoint

	if ep.PrevEpochTargetStake*3 >= ep.TotalActiveStake*2 {
		state.CurrentJustifiedCheckpoint = &consensustypes.Checkpoint{
			Epoch: ep.PreviousEpoch,
			Root:  helpers.BlockRootAtSlot(state.BlockRoots, helpers.StartSlot(ep.PreviousEpoch)),
		}
		bits[1] = true
	}
	if ep.CurrentEpochTargetStake*3 >= ep.TotalActiveStake*2 {
		state.CurrentJustifiedCheckpoint = &consensustypes.Checkpoint{
			Epoch: ep.CurrentEpoch,
			Root:  helpers.BlockRootAtSlot(state.BlockRoots, helpers.StartSlot(ep.CurrentEpoch)),
		}
		bits[0] = true
	}
	state.JustificationBits = bits

	current := ep.CurrentEpoch
	switch {
	case bits[1] && bits[2] && bits[3] && oldPrevJustified.Epoch+3 == current:
		finalize(state, oldPrevJustified)
	case bits[1] && bits[2] && oldPrevJustified.Epoch+2 == current:
		finalize(state, oldPrevJustified)
	case bits[0] && bits[1] && bits[2] && oldCurrJustified.Epoch+2 == current:
		finalize(state, oldCurrJustified)
	case bits[0] && bits[1] && oldCurrJustified.Epoch+1 == current:
		finalize(state, oldCurrJustified)
	}
}

func finalize(state *consensustypes.BeaconState, checkpoint consensustypes.Checkpoint) {
	cpy := checkpoint
	state.FinalizedCheckpoint = &cpy
}

// FinalityDelay returns the number of epochs since the last finalised
// checkpoint, the input to the inactivity-leak threshold used by the
// reward pass.
func FinalityDelay(currentEpoch eth2types.Epoch, finalizedCheckpointEpoch eth2types.Epoch) eth2types.Epoch {
	previous := currentEpoch
	if currentEpoch > 0 {
		previous = currentEpoch - 1
	}
	return previous - finalizedCheckpointEpoch
}
