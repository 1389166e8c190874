package blocks

import (
	"github.com/harborlabs/corebeacon/consensustypes"
	"github.com/harborlabs/corebeacon/params"
)

// ProcessEth1Data appends block's eth1 data to the votes list and, once a
// value's vote count clears a majority of the voting period, adopts it as
// state.Eth1Data (spec.md §4.F apply_block).
func ProcessEth1Data(state *consensustypes.BeaconState, vote *consensustypes.Eth1Data) {
	state.Eth1DataVotes = append(state.Eth1DataVotes, vote)

	var count int
	for _, v := range state.Eth1DataVotes {
		if *v == *vote {
			count++
		}
	}

	cfg := params.BeaconConfig()
	slotsPerVotingPeriod := uint64(cfg.EpochsPerEth1VotingPeriod) * uint64(cfg.SlotsPerEpoch)
	if uint64(count)*2 > slotsPerVotingPeriod {
		state.Eth1Data = vote
	}
}
