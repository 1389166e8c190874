package precompute

import (
	"testing"

	eth2types "github.com/prysmaticlabs/eth2-types"
	"github.com/stretchr/testify/require"

	"github.com/harborlabs/corebeacon/consensustypes"
	"github.com/harborlabs/corebeacon/params"
)

func newTestValidator(cfg *params.BeaconChainConfig) *consensustypes.Validator {
	return &consensustypes.Validator{
		EffectiveBalance:  cfg.MaxEffectiveBalance,
		ActivationEpoch:   cfg.GenesisEpoch,
		ExitEpoch:         cfg.FarFutureEpoch,
		WithdrawableEpoch: cfg.FarFutureEpoch,
	}
}

func indexSlice(indices []eth2types.ValidatorIndex) []uint64 {
	out := make([]uint64, len(indices))
	for i, idx := range indices {
		out[i] = uint64(idx)
	}
	return out
}

func TestNewMarksActiveAndEligibleFlags(t *testing.T) {
	restore := params.OverrideBeaconConfig(params.Minimal())
	defer restore()
	cfg := params.BeaconConfig()

	state := &consensustypes.BeaconState{
		Slot: eth2types.Slot(3 * uint64(cfg.SlotsPerEpoch)),
		Validators: []*consensustypes.Validator{
			newTestValidator(cfg),
			newTestValidator(cfg),
		},
	}

	ep := New(state)
	require.Equal(t, uint64(2)*cfg.MaxEffectiveBalance, ep.TotalActiveStake)
	for _, s := range ep.Statuses {
		require.True(t, s.Flags.Has(FlagUnslashed))
		require.True(t, s.Flags.Has(FlagActiveCurrentEpoch))
		require.True(t, s.Flags.Has(FlagEligibleAttester))
	}
}

func TestNewQueuesEjectionForLowBalance(t *testing.T) {
	restore := params.OverrideBeaconConfig(params.Minimal())
	defer restore()
	cfg := params.BeaconConfig()

	v := newTestValidator(cfg)
	v.EffectiveBalance = cfg.EjectionBalance

	state := &consensustypes.BeaconState{
		Slot:       eth2types.Slot(3 * uint64(cfg.SlotsPerEpoch)),
		Validators: []*consensustypes.Validator{v},
	}

	ep := New(state)
	require.Equal(t, []uint64{0}, indexSlice(ep.IndicesToEject))
}

func TestNewQueuesSlashingFinalisation(t *testing.T) {
	restore := params.OverrideBeaconConfig(params.Minimal())
	defer restore()
	cfg := params.BeaconConfig()

	currentEpoch := eth2types.Epoch(3)
	v := newTestValidator(cfg)
	v.Slashed = true
	v.WithdrawableEpoch = currentEpoch + eth2types.Epoch(uint64(cfg.EpochsPerSlashingsVector)/2)

	state := &consensustypes.BeaconState{
		Slot:       eth2types.Slot(uint64(currentEpoch) * uint64(cfg.SlotsPerEpoch)),
		Validators: []*consensustypes.Validator{v},
	}
	ep := New(state)
	require.Equal(t, []uint64{0}, indexSlice(ep.IndicesToSlash))
	require.False(t, ep.Statuses[0].Flags.Has(FlagUnslashed))
}
