package epochctx

import (
	"testing"

	eth2types "github.com/prysmaticlabs/eth2-types"
	"github.com/stretchr/testify/require"

	"github.com/harborlabs/corebeacon/consensustypes"
	"github.com/harborlabs/corebeacon/params"
)

func testState(t *testing.T, numValidators int) *consensustypes.BeaconState {
	t.Helper()
	cfg := params.BeaconConfig()
	validators := make([]*consensustypes.Validator, numValidators)
	balances := make([]uint64, numValidators)
	for i := range validators {
		var pk [48]byte
		pk[0] = byte(i)
		pk[1] = byte(i >> 8)
		validators[i] = &consensustypes.Validator{
			PublicKey:         pk,
			EffectiveBalance:  cfg.MaxEffectiveBalance,
			ActivationEpoch:   cfg.GenesisEpoch,
			ExitEpoch:         cfg.FarFutureEpoch,
			WithdrawableEpoch: cfg.FarFutureEpoch,
		}
		balances[i] = cfg.MaxEffectiveBalance
	}
	mixes := make([][32]byte, cfg.EpochsPerHistoricalVector)
	for i := range mixes {
		mixes[i] = [32]byte{byte(i), byte(i >> 8), 0xAB}
	}
	return &consensustypes.BeaconState{
		Slot:       cfg.GenesisSlot,
		Fork:       &consensustypes.Fork{},
		Validators: validators,
		Balances:   balances,
		RandaoMixes: mixes,
	}
}

func TestLoadBuildsPubkeyTablesAndShufflings(t *testing.T) {
	restore := params.OverrideBeaconConfig(params.Minimal())
	defer restore()

	state := testState(t, 64)
	ctx, err := Load(state)
	require.NoError(t, err)
	require.Len(t, ctx.PubkeyToIndex, 64)
	require.Len(t, ctx.IndexToPubkey, 64)
	require.Equal(t, ctx.Current, ctx.Previous, "previous must equal current at genesis")
	require.NotNil(t, ctx.Next)
	require.Len(t, ctx.ProposerIndices, int(params.BeaconConfig().SlotsPerEpoch))
}

func TestSyncPubkeysExtendsTablesForNewValidators(t *testing.T) {
	restore := params.OverrideBeaconConfig(params.Minimal())
	defer restore()

	state := testState(t, 32)
	ctx, err := Load(state)
	require.NoError(t, err)

	var newPk [48]byte
	newPk[0] = 0xFF
	state.Validators = append(state.Validators, &consensustypes.Validator{
		PublicKey:         newPk,
		EffectiveBalance:  params.BeaconConfig().MaxEffectiveBalance,
		ActivationEpoch:   params.BeaconConfig().GenesisEpoch,
		ExitEpoch:         params.BeaconConfig().FarFutureEpoch,
		WithdrawableEpoch: params.BeaconConfig().FarFutureEpoch,
	})
	SyncPubkeys(ctx, state)

	require.Len(t, ctx.IndexToPubkey, 33)
	idx, ok := ctx.PubkeyToIndex[newPk]
	require.True(t, ok)
	require.Equal(t, eth2types.ValidatorIndex(32), idx)
}

func TestCommitteeAtSlotPartitionsActiveSet(t *testing.T) {
	restore := params.OverrideBeaconConfig(params.Minimal())
	defer restore()

	state := testState(t, 128)
	ctx, err := Load(state)
	require.NoError(t, err)

	cfg := params.BeaconConfig()
	seen := make(map[eth2types.ValidatorIndex]bool)
	for s := uint64(0); s < uint64(cfg.SlotsPerEpoch); s++ {
		count, err := ctx.CommitteeCountAtSlot(eth2types.Slot(s))
		require.NoError(t, err)
		for c := uint64(0); c < count; c++ {
			committee, err := ctx.CommitteeAtSlot(eth2types.Slot(s), c)
			require.NoError(t, err)
			for _, idx := range committee {
				require.False(t, seen[idx], "validator %d assigned to two committees", idx)
				seen[idx] = true
			}
		}
	}
	require.Len(t, seen, 128)
}

func TestRotateAdvancesShufflingsAndRebuildsProposers(t *testing.T) {
	restore := params.OverrideBeaconConfig(params.Minimal())
	defer restore()

	state := testState(t, 64)
	ctx, err := Load(state)
	require.NoError(t, err)

	oldNext := ctx.Next
	state.Slot = helpersStartSlotOfNextEpoch(state.Slot)
	rotated, err := Rotate(ctx, state)
	require.NoError(t, err)

	require.Equal(t, ctx.Current, rotated.Previous)
	require.Equal(t, oldNext, rotated.Current)
	require.NotNil(t, rotated.Next)
	require.Len(t, rotated.ProposerIndices, int(params.BeaconConfig().SlotsPerEpoch))
}

func helpersStartSlotOfNextEpoch(slot eth2types.Slot) eth2types.Slot {
	cfg := params.BeaconConfig()
	epoch := eth2types.Epoch(uint64(slot) / uint64(cfg.SlotsPerEpoch))
	return eth2types.Slot(uint64(epoch+1) * uint64(cfg.SlotsPerEpoch))
}
