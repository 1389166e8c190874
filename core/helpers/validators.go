// Package helpers contains the small, widely-shared predicates and
// accessors that every other core package builds on: active-validator
// predicates, seed derivation, balance mutation, and epoch/slot arithmetic.
// Mirrors the teacher's beacon-chain/core/helpers package in scope and
// naming.
package helpers

import (
	eth2types "github.com/prysmaticlabs/eth2-types"

	"github.com/harborlabs/corebeacon/consensustypes"
	"github.com/harborlabs/corebeacon/params"
)

// IsActiveValidator returns true if v is active at epoch.
//
// Spec: activation_epoch <= epoch < exit_epoch
func IsActiveValidator(v *consensustypes.Validator, epoch eth2types.Epoch) bool {
	return v.ActivationEpoch <= epoch && epoch < v.ExitEpoch
}

// IsSlashableValidator returns true if v may currently be slashed.
//
// Spec: not slashed, and activation_epoch <= epoch < withdrawable_epoch
func IsSlashableValidator(v *consensustypes.Validator, epoch eth2types.Epoch) bool {
	return !v.Slashed && v.ActivationEpoch <= epoch && epoch < v.WithdrawableEpoch
}

// IsEligibleForActivationQueue returns true if v may be queued for
// set-activation-eligibility during the epoch pre-pass.
func IsEligibleForActivationQueue(v *consensustypes.Validator) bool {
	return v.ActivationEligibilityEpoch == params.BeaconConfig().FarFutureEpoch &&
		v.EffectiveBalance == params.BeaconConfig().MaxEffectiveBalance
}

// IsEligibleForActivation returns true if v may be activated given the
// state's finalized checkpoint.
func IsEligibleForActivation(v *consensustypes.Validator, finalizedEpoch eth2types.Epoch) bool {
	return v.ActivationEligibilityEpoch <= finalizedEpoch &&
		v.ActivationEpoch == params.BeaconConfig().FarFutureEpoch
}

// ActiveValidatorIndices returns the indices of every validator active at
// epoch.
func ActiveValidatorIndices(validators []*consensustypes.Validator, epoch eth2types.Epoch) []eth2types.ValidatorIndex {
	indices := make([]eth2types.ValidatorIndex, 0, len(validators))
	for i, v := range validators {
		if IsActiveValidator(v, epoch) {
			indices = append(indices, eth2types.ValidatorIndex(i))
		}
	}
	return indices
}

// TotalActiveBalance sums the effective balance of every validator active
// at epoch, floored at one EFFECTIVE_BALANCE_INCREMENT to avoid
// division-by-zero downstream (spec.md §4.D).
func TotalActiveBalance(validators []*consensustypes.Validator, epoch eth2types.Epoch) uint64 {
	var total uint64
	for _, v := range validators {
		if IsActiveValidator(v, epoch) {
			total += v.EffectiveBalance
		}
	}
	increment := params.BeaconConfig().EffectiveBalanceIncrement
	if total < increment {
		return increment
	}
	return total
}

// IncreaseBalance adds delta to balances[index], mutating in place.
func IncreaseBalance(balances []uint64, index eth2types.ValidatorIndex, delta uint64) {
	balances[index] += delta
}

// DecreaseBalance subtracts delta from balances[index], saturating at zero
// rather than underflowing.
func DecreaseBalance(balances []uint64, index eth2types.ValidatorIndex, delta uint64) {
	if delta > balances[index] {
		balances[index] = 0
		return
	}
	balances[index] -= delta
}

// ChurnLimit returns the registry churn limit for activeValidatorCount,
// floored at MinPerEpochChurnLimit (spec.md GLOSSARY "Churn limit").
func ChurnLimit(activeValidatorCount uint64) uint64 {
	cfg := params.BeaconConfig()
	limit := activeValidatorCount / cfg.ChurnLimitQuotient
	if limit < cfg.MinPerEpochChurnLimit {
		return cfg.MinPerEpochChurnLimit
	}
	return limit
}

// ComputeActivationExitEpoch returns the earliest epoch at which a
// validator queued for activation/exit at currentEpoch may take effect.
func ComputeActivationExitEpoch(currentEpoch eth2types.Epoch) eth2types.Epoch {
	return currentEpoch + 1 + params.BeaconConfig().MaxSeedLookahead
}
