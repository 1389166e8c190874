package epoch

import (
	"testing"

	eth2types "github.com/prysmaticlabs/eth2-types"
	"github.com/stretchr/testify/require"

	"github.com/harborlabs/corebeacon/consensustypes"
	"github.com/harborlabs/corebeacon/core/precompute"
	"github.com/harborlabs/corebeacon/params"
)

func TestProcessJustificationSetsCurrentJustifiedWhenSupermajority(t *testing.T) {
	restore := params.OverrideBeaconConfig(params.Minimal())
	defer restore()

	state := &consensustypes.BeaconState{
		Slot:                        eth2types.Slot(3 * uint64(params.BeaconConfig().SlotsPerEpoch)),
		PreviousJustifiedCheckpoint: &consensustypes.Checkpoint{Epoch: 0},
		CurrentJustifiedCheckpoint:  &consensustypes.Checkpoint{Epoch: 1},
		FinalizedCheckpoint:         &consensustypes.Checkpoint{Epoch: 0},
		BlockRoots:                  make([][32]byte, params.BeaconConfig().SlotsPerHistoricalRoot),
	}
	ep := &precompute.EpochProcess{
		CurrentEpoch:            3,
		PreviousEpoch:           2,
		TotalActiveStake:        100,
		PrevEpochTargetStake:    0,
		CurrentEpochTargetStake: 100,
	}

	ProcessJustificationAndFinalization(state, ep)

	require.Equal(t, eth2types.Epoch(3), state.CurrentJustifiedCheckpoint.Epoch)
	require.True(t, state.JustificationBits[0])
}

func TestProcessJustificationNoOpBeforeTwoEpochs(t *testing.T) {
	restore := params.OverrideBeaconConfig(params.Minimal())
	defer restore()

	cp := &consensustypes.Checkpoint{Epoch: 0}
	state := &consensustypes.BeaconState{
		Slot:                        eth2types.Slot(0),
		PreviousJustifiedCheckpoint: cp,
		CurrentJustifiedCheckpoint:  cp,
		FinalizedCheckpoint:         cp,
	}
	ep := &precompute.EpochProcess{CurrentEpoch: 0}

	ProcessJustificationAndFinalization(state, ep)
	require.Same(t, cp, state.CurrentJustifiedCheckpoint)
}
