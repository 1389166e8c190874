package blocks

import (
	"testing"

	eth2types "github.com/prysmaticlabs/eth2-types"
	"github.com/stretchr/testify/require"

	"github.com/harborlabs/corebeacon/consensustypes"
	"github.com/harborlabs/corebeacon/params"
)

func validatorSetState(t *testing.T, numValidators int) *consensustypes.BeaconState {
	t.Helper()
	cfg := params.BeaconConfig()
	validators := make([]*consensustypes.Validator, numValidators)
	balances := make([]uint64, numValidators)
	for i := range validators {
		validators[i] = &consensustypes.Validator{
			EffectiveBalance:  cfg.MaxEffectiveBalance,
			ActivationEpoch:   cfg.GenesisEpoch,
			ExitEpoch:         cfg.FarFutureEpoch,
			WithdrawableEpoch: cfg.FarFutureEpoch,
		}
		balances[i] = cfg.MaxEffectiveBalance
	}
	return &consensustypes.BeaconState{
		Slot:       cfg.GenesisSlot,
		Validators: validators,
		Balances:   balances,
		Slashings:  make([]uint64, cfg.EpochsPerSlashingsVector),
	}
}

func sumBalances(balances []uint64) uint64 {
	var total uint64
	for _, b := range balances {
		total += b
	}
	return total
}

// TestSlashValidatorConservesTotalBalance matches the balance-conservation
// testable property: the total balance changes by exactly the explicit
// amounts of the slashing, i.e. it loses the slashed validator's minimum
// penalty and gains the whistleblower reward (split between proposer and
// whistleblower), and nothing else.
func TestSlashValidatorConservesTotalBalance(t *testing.T) {
	restore := params.OverrideBeaconConfig(params.Minimal())
	defer restore()

	state := validatorSetState(t, 8)
	before := sumBalances(state.Balances)

	SlashValidator(state, eth2types.ValidatorIndex(3), eth2types.ValidatorIndex(5), eth2types.ValidatorIndex(1))

	cfg := params.BeaconConfig()
	slashedPenalty := cfg.MaxEffectiveBalance / cfg.MinSlashingPenaltyQuotient
	whistleblowerReward := cfg.MaxEffectiveBalance / cfg.WhistleblowerRewardQuotient
	after := sumBalances(state.Balances)
	require.Equal(t, before-slashedPenalty+whistleblowerReward, after)
}

// TestSlashValidatorSetsWithdrawableAtLeastSlashingsVectorOut matches the
// slashed-validator-withdrawable testable property: a freshly slashed
// validator can never become withdrawable before current_epoch +
// EPOCHS_PER_SLASHINGS_VECTOR.
func TestSlashValidatorSetsWithdrawableAtLeastSlashingsVectorOut(t *testing.T) {
	restore := params.OverrideBeaconConfig(params.Minimal())
	defer restore()

	state := validatorSetState(t, 4)
	cfg := params.BeaconConfig()

	SlashValidator(state, eth2types.ValidatorIndex(0), eth2types.ValidatorIndex(1), eth2types.ValidatorIndex(2))

	v := state.Validators[0]
	require.True(t, v.Slashed)
	require.GreaterOrEqual(t, uint64(v.WithdrawableEpoch), uint64(cfg.EpochsPerSlashingsVector))
}

func TestInitiateValidatorExitBumpsQueueAtChurnLimit(t *testing.T) {
	restore := params.OverrideBeaconConfig(params.Minimal())
	defer restore()

	// Five active validators give a churn limit of MinPerEpochChurnLimit
	// (4): the first four share one exit epoch and the fifth is bumped to
	// the next.
	state := validatorSetState(t, 5)
	for i := range state.Validators {
		InitiateValidatorExit(state, eth2types.ValidatorIndex(i))
	}

	cfg := params.BeaconConfig()
	for _, v := range state.Validators {
		require.NotEqual(t, cfg.FarFutureEpoch, v.ExitEpoch)
	}
	require.Equal(t, state.Validators[0].ExitEpoch+1, state.Validators[4].ExitEpoch)
}
