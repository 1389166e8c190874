package epoch

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"go.opencensus.io/trace"

	"github.com/harborlabs/corebeacon/consensustypes"
	"github.com/harborlabs/corebeacon/core/precompute"
	"github.com/harborlabs/corebeacon/epochctx"
)

// ProcessEpoch runs the full epoch transition of spec.md §4.E over state
// in place: the epoch pre-pass and attestation attribution (component D),
// then the five ordered passes. state is assumed to already be the
// transition's working copy (component F owns the Copy()); ProcessEpoch
// never calls Copy() itself.
func ProcessEpoch(ctx context.Context, state *consensustypes.BeaconState, epochCtx *epochctx.EpochContext) error {
	_, span := trace.StartSpan(ctx, "core.epoch.ProcessEpoch")
	defer span.End()
	start := time.Now()
	defer func() { epochTransitionDuration.Observe(time.Since(start).Seconds()) }()

	ep := precompute.New(state)
	if err := precompute.ProcessAttestations(ep, state, epochCtx); err != nil {
		return errors.Wrap(err, "core/epoch: attestation attribution")
	}

	ProcessJustificationAndFinalization(state, ep)
	ProcessRewardsAndPenalties(state, ep)
	ProcessRegistryUpdates(state, ep)
	ProcessSlashings(state, ep)
	ProcessFinalUpdates(state, ep)

	return nil
}
