package epoch

import (
	eth2types "github.com/prysmaticlabs/eth2-types"

	"github.com/harborlabs/corebeacon/consensustypes"
	"github.com/harborlabs/corebeacon/core/helpers"
	"github.com/harborlabs/corebeacon/core/precompute"
	"github.com/harborlabs/corebeacon/params"
)

// baseRewardsPerEpoch is the spec's fixed denominator (source, target,
// head, inclusion-delay) used when computing the per-validator base
// reward.
const baseRewardsPerEpoch = 4

const inactivityLeakThreshold = 4

func baseReward(effectiveBalance, totalActiveStake uint64, cfg *params.BeaconChainConfig) uint64 {
	return effectiveBalance * cfg.BaseRewardFactor / integerSquareRoot(totalActiveStake) / baseRewardsPerEpoch
}

// ProcessRewardsAndPenalties runs pass 2 of spec.md §4.E: it is a no-op at
// genesis, since there is no previous epoch of attestations yet to reward.
func ProcessRewardsAndPenalties(state *consensustypes.BeaconState, ep *precompute.EpochProcess) {
	cfg := params.BeaconConfig()
	if ep.CurrentEpoch == cfg.GenesisEpoch {
		return
	}

	finalityDelay := FinalityDelay(ep.CurrentEpoch, state.FinalizedCheckpoint.Epoch)
	inactivityLeak := finalityDelay > inactivityLeakThreshold

	rewards := make([]uint64, len(state.Validators))
	penalties := make([]uint64, len(state.Validators))

	for i, v := range state.Validators {
		status := ep.Statuses[i]
		if !status.Flags.Has(precompute.FlagEligibleAttester) {
			continue
		}
		base := baseReward(v.EffectiveBalance, ep.TotalActiveStake, cfg)
		proposerReward := base / cfg.ProposerRewardQuotient

		rewards[i] += flagRewardOrPenalty(status, precompute.FlagPrevSourceAttester, base, ep.PrevEpochSourceStake, ep.TotalActiveStake, inactivityLeak, &penalties[i])
		rewards[i] += flagRewardOrPenalty(status, precompute.FlagPrevTargetAttester, base, ep.PrevEpochTargetStake, ep.TotalActiveStake, inactivityLeak, &penalties[i])
		rewards[i] += flagRewardOrPenalty(status, precompute.FlagPrevHeadAttester, base, ep.PrevEpochHeadStake, ep.TotalActiveStake, inactivityLeak, &penalties[i])

		if status.HasInclusionRecord && status.Flags.Has(precompute.FlagPrevSourceAttester) && status.Flags.Has(precompute.FlagUnslashed) {
			rewards[status.ProposerIndex] += proposerReward
			if status.InclusionDelay > 0 {
				rewards[i] += (base - proposerReward) / uint64(status.InclusionDelay)
			}
		}

		if inactivityLeak {
			penalties[i] += baseRewardsPerEpoch*base - proposerReward
			if !status.Flags.Has(precompute.FlagPrevTargetAttester) {
				penalties[i] += v.EffectiveBalance * uint64(finalityDelay) / cfg.InactivityPenaltyQuotient
			}
		}
	}

	for i := range state.Validators {
		helpers.IncreaseBalance(state.Balances, eth2types.ValidatorIndex(i), rewards[i])
		helpers.DecreaseBalance(state.Balances, eth2types.ValidatorIndex(i), penalties[i])
	}
}

// flagRewardOrPenalty returns the reward earned for flag (or accumulates
// the penalty into *penalty and returns zero) per spec.md §4.E pass 2.
func flagRewardOrPenalty(status precompute.AttesterStatus, flag precompute.Flag, base, flagStake, totalActiveStake uint64, inactivityLeak bool, penalty *uint64) uint64 {
	if status.Flags.Has(flag) && status.Flags.Has(precompute.FlagUnslashed) {
		if inactivityLeak {
			return base
		}
		return base * flagStake / totalActiveStake
	}
	*penalty += base
	return 0
}
