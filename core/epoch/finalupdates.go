package epoch

import (
	"github.com/harborlabs/corebeacon/consensustypes"
	"github.com/harborlabs/corebeacon/core/precompute"
	"github.com/harborlabs/corebeacon/hashutil"
	"github.com/harborlabs/corebeacon/params"
)

// ProcessFinalUpdates runs pass 5 of spec.md §4.E: eth1-data-vote reset,
// effective-balance hysteresis, slashings-ring and randao-mix rollover,
// historical-roots accumulation, and attestation-pool rotation.
func ProcessFinalUpdates(state *consensustypes.BeaconState, ep *precompute.EpochProcess) {
	cfg := params.BeaconConfig()
	nextEpoch := ep.CurrentEpoch + 1

	if uint64(nextEpoch)%uint64(cfg.EpochsPerEth1VotingPeriod) == 0 {
		state.Eth1DataVotes = nil
	}

	increment := cfg.EffectiveBalanceIncrement
	downwardThreshold := increment / 4 * 1
	upwardThreshold := increment / 4 * 5
	for i, v := range state.Validators {
		balance := state.Balances[i]
		if balance+downwardThreshold < v.EffectiveBalance || v.EffectiveBalance+upwardThreshold < balance {
			newEffective := balance - balance%increment
			if newEffective > cfg.MaxEffectiveBalance {
				newEffective = cfg.MaxEffectiveBalance
			}
			v.EffectiveBalance = newEffective
		}
	}

	slashingsVectorLen := uint64(cfg.EpochsPerSlashingsVector)
	state.Slashings[uint64(nextEpoch)%slashingsVectorLen] = 0

	historicalVectorLen := uint64(cfg.EpochsPerHistoricalVector)
	state.RandaoMixes[uint64(nextEpoch)%historicalVectorLen] = state.RandaoMixes[uint64(ep.CurrentEpoch)%historicalVectorLen]

	epochsPerHistoricalRoot := uint64(cfg.SlotsPerHistoricalRoot) / uint64(cfg.SlotsPerEpoch)
	if uint64(nextEpoch)%epochsPerHistoricalRoot == 0 {
		blockRootsRoot := hashutil.MerkleRootFromLeaves(state.BlockRoots)
		stateRootsRoot := hashutil.MerkleRootFromLeaves(state.StateRoots)
		digest := hashutil.HashConcat(
			blockRootsRoot[:],
			stateRootsRoot[:],
		)
		state.HistoricalRoots = append(state.HistoricalRoots, digest)
	}

	state.PreviousEpochAttestations = state.CurrentEpochAttestations
	state.CurrentEpochAttestations = nil
}
