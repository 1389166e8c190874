package precompute

import (
	"github.com/pkg/errors"
	eth2types "github.com/prysmaticlabs/eth2-types"

	"github.com/harborlabs/corebeacon/consensustypes"
	"github.com/harborlabs/corebeacon/core/helpers"
	"github.com/harborlabs/corebeacon/epochctx"
	"github.com/harborlabs/corebeacon/params"
)

func actualBlockRoot(state *consensustypes.BeaconState, slot eth2types.Slot) [32]byte {
	return helpers.BlockRootAtSlot(state.BlockRoots, slot)
}

func committeeValidatorIndices(committee []eth2types.ValidatorIndex) []uint64 {
	out := make([]uint64, len(committee))
	for i, idx := range committee {
		out[i] = uint64(idx)
	}
	return out
}

// attributeOne updates the attester-status flags (and, for previous-epoch
// participants, the earliest inclusion record) for every participant of a
// single pending attestation.
func attributeOne(ep *EpochProcess, state *consensustypes.BeaconState, ctx *epochctx.EpochContext, a *consensustypes.PendingAttestation, isPreviousEpoch bool) error {
	committee, err := ctx.CommitteeAtSlot(a.Data.Slot, uint64(a.Data.CommitteeIndex))
	if err != nil {
		return errors.Wrap(err, "precompute: committee lookup for attestation attribution")
	}
	participants := helpers.AttestingIndices(a.AggregationBits, committeeValidatorIndices(committee))

	epoch := ep.CurrentEpoch
	if isPreviousEpoch {
		epoch = ep.PreviousEpoch
	}
	epochStartRoot := actualBlockRoot(state, helpers.StartSlot(epoch))
	targetMatches := a.Data.Target.Root == epochStartRoot
	headMatches := targetMatches && a.Data.BeaconBlockRoot == actualBlockRoot(state, a.Data.Slot)

	for _, idx := range participants {
		status := &ep.Statuses[idx]
		if isPreviousEpoch {
			status.Flags |= FlagPrevSourceAttester
			if targetMatches {
				status.Flags |= FlagPrevTargetAttester
			}
			if headMatches {
				status.Flags |= FlagPrevHeadAttester
			}
			if !status.HasInclusionRecord || a.InclusionDelay < status.InclusionDelay {
				status.InclusionDelay = a.InclusionDelay
				status.ProposerIndex = a.ProposerIndex
				status.HasInclusionRecord = true
			}
		} else if targetMatches {
			status.Flags |= FlagCurrentTargetAttester
		}
	}
	return nil
}

// ProcessAttestations performs the attestation-attribution pass of
// spec.md §4.D: it locates each pending attestation's committee, marks the
// source/target/head flags of its participants, records previous-epoch
// inclusion delay, and aggregates unslashed stake per flag.
//
// The previous-epoch pool is always attributed against the previous epoch's
// cached shuffling; the current-epoch pool is attributed against the
// current epoch's shuffling (valid once the state slot has advanced past
// the epoch's start, which holds whenever ProcessAttestations is invoked
// from the epoch-boundary transition).
func ProcessAttestations(ep *EpochProcess, state *consensustypes.BeaconState, ctx *epochctx.EpochContext) error {
	for _, a := range state.PreviousEpochAttestations {
		if err := attributeOne(ep, state, ctx, a, true); err != nil {
			return err
		}
	}
	for _, a := range state.CurrentEpochAttestations {
		if err := attributeOne(ep, state, ctx, a, false); err != nil {
			return err
		}
	}

	cfg := params.BeaconConfig()
	var sourceStake, targetStake, headStake, currentTargetStake uint64
	for i, v := range state.Validators {
		status := ep.Statuses[i]
		if !status.Flags.Has(FlagUnslashed) {
			continue
		}
		if status.Flags.Has(FlagPrevSourceAttester) {
			sourceStake += v.EffectiveBalance
		}
		if status.Flags.Has(FlagPrevTargetAttester) {
			targetStake += v.EffectiveBalance
		}
		if status.Flags.Has(FlagPrevHeadAttester) {
			headStake += v.EffectiveBalance
		}
		if status.Flags.Has(FlagCurrentTargetAttester) {
			currentTargetStake += v.EffectiveBalance
		}
	}

	ep.PrevEpochSourceStake = floorAtIncrement(sourceStake, cfg.EffectiveBalanceIncrement)
	ep.PrevEpochTargetStake = floorAtIncrement(targetStake, cfg.EffectiveBalanceIncrement)
	ep.PrevEpochHeadStake = floorAtIncrement(headStake, cfg.EffectiveBalanceIncrement)
	ep.CurrentEpochTargetStake = floorAtIncrement(currentTargetStake, cfg.EffectiveBalanceIncrement)
	return nil
}

func floorAtIncrement(stake, increment uint64) uint64 {
	if stake < increment {
		return increment
	}
	return stake
}
