package transition

import (
	"context"
	"testing"

	eth2types "github.com/prysmaticlabs/eth2-types"
	"github.com/stretchr/testify/require"

	"github.com/harborlabs/corebeacon/consensustypes"
	"github.com/harborlabs/corebeacon/epochctx"
	"github.com/harborlabs/corebeacon/params"
)

func genesisState(t *testing.T, numValidators int) (*consensustypes.BeaconState, *epochctx.EpochContext) {
	t.Helper()
	cfg := params.BeaconConfig()
	validators := make([]*consensustypes.Validator, numValidators)
	balances := make([]uint64, numValidators)
	for i := range validators {
		var pk [48]byte
		pk[0] = byte(i)
		validators[i] = &consensustypes.Validator{
			PublicKey:         pk,
			EffectiveBalance:  cfg.MaxEffectiveBalance,
			ActivationEpoch:   cfg.GenesisEpoch,
			ExitEpoch:         cfg.FarFutureEpoch,
			WithdrawableEpoch: cfg.FarFutureEpoch,
		}
		balances[i] = cfg.MaxEffectiveBalance
	}
	state := &consensustypes.BeaconState{
		Slot:              cfg.GenesisSlot,
		Fork:              &consensustypes.Fork{},
		Validators:        validators,
		Balances:          balances,
		RandaoMixes:       make([][32]byte, cfg.EpochsPerHistoricalVector),
		Slashings:         make([]uint64, cfg.EpochsPerSlashingsVector),
		BlockRoots:        make([][32]byte, cfg.SlotsPerHistoricalRoot),
		StateRoots:        make([][32]byte, cfg.SlotsPerHistoricalRoot),
		Eth1Data:          &consensustypes.Eth1Data{},
		LatestBlockHeader: &consensustypes.BeaconBlockHeader{},
		PreviousJustifiedCheckpoint: &consensustypes.Checkpoint{},
		CurrentJustifiedCheckpoint:  &consensustypes.Checkpoint{},
		FinalizedCheckpoint:         &consensustypes.Checkpoint{},
	}
	ctx, err := epochctx.Load(state)
	require.NoError(t, err)
	return state, ctx
}

func TestProcessSlotsEmptyAdvanceCachesGenesisRoots(t *testing.T) {
	restore := params.OverrideBeaconConfig(params.Minimal())
	defer restore()

	state, ctx := genesisState(t, 16)
	_, err := ProcessSlots(context.Background(), state, ctx, eth2types.Slot(1))
	require.NoError(t, err)

	require.Equal(t, eth2types.Slot(1), state.Slot)
	require.NotEqual(t, [32]byte{}, state.StateRoots[0])
	require.NotEqual(t, [32]byte{}, state.BlockRoots[0])
}

func TestProcessSlotsRejectsNonAdvancingTarget(t *testing.T) {
	restore := params.OverrideBeaconConfig(params.Minimal())
	defer restore()

	state, ctx := genesisState(t, 16)
	_, err := ProcessSlots(context.Background(), state, ctx, state.Slot)
	require.Error(t, err)
}
