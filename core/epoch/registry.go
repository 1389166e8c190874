package epoch

import (
	eth2types "github.com/prysmaticlabs/eth2-types"

	"github.com/harborlabs/corebeacon/consensustypes"
	"github.com/harborlabs/corebeacon/core/precompute"
	"github.com/harborlabs/corebeacon/params"
)

// ProcessRegistryUpdates runs pass 3 of spec.md §4.E: ejections,
// activation-eligibility grants, and activations, in that order.
func ProcessRegistryUpdates(state *consensustypes.BeaconState, ep *precompute.EpochProcess) {
	cfg := params.BeaconConfig()

	exitQueueEpoch := ep.ExitQueueEpoch
	churn := ep.ExitQueueChurn
	for _, idx := range ep.IndicesToEject {
		if churn >= ep.ChurnLimit {
			exitQueueEpoch++
			churn = 0
		}
		v := state.Validators[idx]
		v.ExitEpoch = exitQueueEpoch
		v.WithdrawableEpoch = exitQueueEpoch + eth2types.Epoch(cfg.MinValidatorWithdrawabilityDelay)
		churn++
		validatorsEjected.Inc()
	}

	for _, idx := range ep.IndicesToSetActivationEligibility {
		state.Validators[idx].ActivationEligibilityEpoch = ep.CurrentEpoch + 1
	}

	activationExitEpoch := ep.CurrentEpoch + 1 + cfg.MaxSeedLookahead
	activated := uint64(0)
	for _, idx := range ep.IndicesToMaybeActivate {
		if activated >= ep.ChurnLimit {
			break
		}
		v := state.Validators[idx]
		if v.ActivationEligibilityEpoch > state.FinalizedCheckpoint.Epoch {
			break
		}
		v.ActivationEpoch = activationExitEpoch
		activated++
	}
}
