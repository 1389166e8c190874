// Package precompute implements the epoch pre-pass (spec.md §4.D): a single
// walk over the validator set that builds per-validator attester-status
// flags and the aggregate fields the epoch transition (component E) needs
// for justification, rewards, registry updates, and slashings, without
// re-scanning the validator set for each of those concerns separately.
package precompute

import (
	"sort"

	eth2types "github.com/prysmaticlabs/eth2-types"

	"github.com/harborlabs/corebeacon/consensustypes"
	"github.com/harborlabs/corebeacon/core/helpers"
	"github.com/harborlabs/corebeacon/params"
)

// Flag is a per-validator attester-status bit set during the epoch
// pre-pass and consulted by reward/penalty accounting in the epoch
// transition.
type Flag uint8

const (
	FlagUnslashed Flag = 1 << iota
	FlagEligibleAttester
	FlagActiveCurrentEpoch
	FlagPrevSourceAttester
	FlagPrevTargetAttester
	FlagPrevHeadAttester
	FlagCurrentTargetAttester
)

// Has reports whether flag is set.
func (f Flag) Has(flag Flag) bool { return f&flag != 0 }

// AttesterStatus is the per-validator scratch record produced by the
// pre-pass and mutated in place during attestation attribution.
type AttesterStatus struct {
	Flags Flag

	// Recorded only for previous-epoch participants: the earliest
	// (InclusionDelay, ProposerIndex) seen, smaller delay wins, earlier
	// seen wins ties.
	InclusionDelay     eth2types.Slot
	ProposerIndex      eth2types.ValidatorIndex
	HasInclusionRecord bool
}

// EpochProcess is the full aggregate produced by the pre-pass plus
// attestation attribution, consumed by core/epoch's justification, reward,
// registry-update, and slashing passes.
type EpochProcess struct {
	CurrentEpoch  eth2types.Epoch
	PreviousEpoch eth2types.Epoch

	Statuses []AttesterStatus

	TotalActiveStake uint64

	PrevEpochSourceStake   uint64
	PrevEpochTargetStake   uint64
	PrevEpochHeadStake     uint64
	CurrentEpochTargetStake uint64

	IndicesToSlash                    []eth2types.ValidatorIndex
	IndicesToSetActivationEligibility []eth2types.ValidatorIndex
	IndicesToMaybeActivate            []eth2types.ValidatorIndex
	IndicesToEject                    []eth2types.ValidatorIndex

	ChurnLimit     uint64
	ExitQueueEpoch eth2types.Epoch
	ExitQueueChurn uint64
}

// New walks state's validator registry once and builds the EpochProcess
// scratch structure, per spec.md §4.D. Attestation attribution is a
// separate pass; call ProcessAttestations afterward with the same result.
func New(state *consensustypes.BeaconState) *EpochProcess {
	cfg := params.BeaconConfig()
	current := helpers.CurrentEpoch(state.Slot)
	previous := helpers.PreviousEpoch(state.Slot)

	ep := &EpochProcess{
		CurrentEpoch:  current,
		PreviousEpoch: previous,
		Statuses:      make([]AttesterStatus, len(state.Validators)),
	}

	var activeCount uint64
	var maxExitEpoch eth2types.Epoch
	var exitingAtQueueEnd uint64

	for i, v := range state.Validators {
		status := AttesterStatus{}

		if v.Slashed && v.WithdrawableEpoch == current+eth2types.Epoch(uint64(cfg.EpochsPerSlashingsVector)/2) {
			ep.IndicesToSlash = append(ep.IndicesToSlash, eth2types.ValidatorIndex(i))
		} else {
			status.Flags |= FlagUnslashed
		}

		if helpers.IsActiveValidator(v, previous) || (v.Slashed && previous+1 < v.WithdrawableEpoch) {
			status.Flags |= FlagEligibleAttester
		}

		if helpers.IsActiveValidator(v, current) {
			status.Flags |= FlagActiveCurrentEpoch
			ep.TotalActiveStake += v.EffectiveBalance
			activeCount++
		}

		if v.ExitEpoch != cfg.FarFutureEpoch && v.ExitEpoch > maxExitEpoch {
			maxExitEpoch = v.ExitEpoch
		}

		if v.ActivationEligibilityEpoch == cfg.FarFutureEpoch && v.EffectiveBalance == cfg.MaxEffectiveBalance {
			ep.IndicesToSetActivationEligibility = append(ep.IndicesToSetActivationEligibility, eth2types.ValidatorIndex(i))
		}

		if v.ActivationEpoch == cfg.FarFutureEpoch && v.ActivationEligibilityEpoch <= current {
			ep.IndicesToMaybeActivate = append(ep.IndicesToMaybeActivate, eth2types.ValidatorIndex(i))
		}

		if status.Flags.Has(FlagActiveCurrentEpoch) && v.ExitEpoch == cfg.FarFutureEpoch && v.EffectiveBalance <= cfg.EjectionBalance {
			ep.IndicesToEject = append(ep.IndicesToEject, eth2types.ValidatorIndex(i))
		}

		ep.Statuses[i] = status
	}

	if ep.TotalActiveStake < cfg.EffectiveBalanceIncrement {
		ep.TotalActiveStake = cfg.EffectiveBalanceIncrement
	}

	sort.Slice(ep.IndicesToMaybeActivate, func(i, j int) bool {
		vi := state.Validators[ep.IndicesToMaybeActivate[i]]
		vj := state.Validators[ep.IndicesToMaybeActivate[j]]
		if vi.ActivationEligibilityEpoch != vj.ActivationEligibilityEpoch {
			return vi.ActivationEligibilityEpoch < vj.ActivationEligibilityEpoch
		}
		return ep.IndicesToMaybeActivate[i] < ep.IndicesToMaybeActivate[j]
	})

	ep.ChurnLimit = helpers.ChurnLimit(activeCount)

	exitQueueEpoch := current + 1 + cfg.MaxSeedLookahead
	if maxExitEpoch > exitQueueEpoch {
		exitQueueEpoch = maxExitEpoch
	}
	for _, v := range state.Validators {
		if v.ExitEpoch == exitQueueEpoch {
			exitingAtQueueEnd++
		}
	}
	if exitingAtQueueEnd >= ep.ChurnLimit {
		exitQueueEpoch++
		exitingAtQueueEnd = 0
	}
	ep.ExitQueueEpoch = exitQueueEpoch
	ep.ExitQueueChurn = exitingAtQueueEnd

	return ep
}
