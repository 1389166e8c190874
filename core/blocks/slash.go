// Package blocks implements the operation handlers of spec.md §4.G:
// proposer slashings, attester slashings, attestations, deposits, and
// voluntary exits, plus the block-header/RANDAO/eth1-data bookkeeping that
// apply_block performs before processing operations.
package blocks

import (
	eth2types "github.com/prysmaticlabs/eth2-types"

	"github.com/harborlabs/corebeacon/consensustypes"
	"github.com/harborlabs/corebeacon/core/helpers"
	"github.com/harborlabs/corebeacon/epochctx"
	"github.com/harborlabs/corebeacon/params"
)

// InitiateValidatorExit sets validator index's exit epoch to the earliest
// available slot in the exit queue, bumping the queue when its churn limit
// is already reached at the candidate epoch. This scans the validator set
// to find the current queue end rather than tracking it incrementally
// (spec.md §9 notes both are acceptable; the epoch pre-pass's own
// ExitQueueEpoch/ExitQueueChurn fields cover the incremental path for
// registry updates during an epoch transition).
func InitiateValidatorExit(state *consensustypes.BeaconState, index eth2types.ValidatorIndex) {
	cfg := params.BeaconConfig()
	v := state.Validators[index]
	if v.ExitEpoch != cfg.FarFutureEpoch {
		return
	}

	current := helpers.CurrentEpoch(state.Slot)
	exitQueueEpoch := helpers.ComputeActivationExitEpoch(current)
	for _, other := range state.Validators {
		if other.ExitEpoch != cfg.FarFutureEpoch && other.ExitEpoch > exitQueueEpoch {
			exitQueueEpoch = other.ExitEpoch
		}
	}

	var exitingAtQueueEnd uint64
	var activeCount uint64
	for _, other := range state.Validators {
		if other.ExitEpoch == exitQueueEpoch {
			exitingAtQueueEnd++
		}
		if helpers.IsActiveValidator(other, current) {
			activeCount++
		}
	}
	if exitingAtQueueEnd >= helpers.ChurnLimit(activeCount) {
		exitQueueEpoch++
	}

	v.ExitEpoch = exitQueueEpoch
	v.WithdrawableEpoch = exitQueueEpoch + eth2types.Epoch(cfg.MinValidatorWithdrawabilityDelay)
}

// SlashValidator implements spec.md §4.G "Slash validator": it initiates
// the exit, marks the validator slashed, extends its withdrawable epoch,
// records the slashed stake, and splits the whistleblower reward between
// the reporting proposer and the whistleblower (the same account when the
// proposer itself surfaced the slashing).
func SlashValidator(state *consensustypes.BeaconState, slashedIndex, whistleblowerIndex, proposerIndex eth2types.ValidatorIndex) {
	cfg := params.BeaconConfig()
	current := helpers.CurrentEpoch(state.Slot)

	InitiateValidatorExit(state, slashedIndex)

	v := state.Validators[slashedIndex]
	v.Slashed = true
	minWithdrawable := current + eth2types.Epoch(cfg.EpochsPerSlashingsVector)
	if v.WithdrawableEpoch < minWithdrawable {
		v.WithdrawableEpoch = minWithdrawable
	}

	vectorLen := uint64(cfg.EpochsPerSlashingsVector)
	state.Slashings[uint64(current)%vectorLen] += v.EffectiveBalance

	helpers.DecreaseBalance(state.Balances, slashedIndex, v.EffectiveBalance/cfg.MinSlashingPenaltyQuotient)

	whistleblowerReward := v.EffectiveBalance / cfg.WhistleblowerRewardQuotient
	proposerReward := whistleblowerReward / cfg.ProposerRewardQuotient
	helpers.IncreaseBalance(state.Balances, proposerIndex, proposerReward)
	helpers.IncreaseBalance(state.Balances, whistleblowerIndex, whistleblowerReward-proposerReward)
}

// currentProposer is a small shared accessor used by several handlers that
// need "the proposer of the block currently being processed" for reward
// attribution.
func currentProposer(epochCtx *epochctx.EpochContext, slot eth2types.Slot) (eth2types.ValidatorIndex, error) {
	return epochCtx.ProposerAtSlot(slot)
}
