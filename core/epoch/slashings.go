package epoch

import (
	eth2types "github.com/prysmaticlabs/eth2-types"

	"github.com/harborlabs/corebeacon/consensustypes"
	"github.com/harborlabs/corebeacon/core/helpers"
	"github.com/harborlabs/corebeacon/core/precompute"
	"github.com/harborlabs/corebeacon/params"
)

// ProcessSlashings runs pass 4 of spec.md §4.E: validators queued for
// slashing finalisation during the pre-pass are penalised proportionally
// to the total slashed stake recorded in the slashings ring.
func ProcessSlashings(state *consensustypes.BeaconState, ep *precompute.EpochProcess) {
	cfg := params.BeaconConfig()

	var totalSlashings uint64
	for _, s := range state.Slashings {
		totalSlashings += s
	}
	scale := totalSlashings * 3
	if scale > ep.TotalActiveStake {
		scale = ep.TotalActiveStake
	}

	increment := cfg.EffectiveBalanceIncrement
	for _, idx := range ep.IndicesToSlash {
		v := state.Validators[idx]
		penalty := (v.EffectiveBalance / increment) * scale / ep.TotalActiveStake * increment
		helpers.DecreaseBalance(state.Balances, eth2types.ValidatorIndex(idx), penalty)
		slashingsProcessed.Inc()
	}
}
