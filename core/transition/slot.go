// Package transition implements the slot and block processor (spec.md
// §4.F): the per-slot tick, block application, and the top-level
// state_transition glue that ties the epoch context (component C), the
// epoch transition (component E), and the operation handlers (component G)
// together.
package transition

import (
	"context"

	"github.com/pkg/errors"
	eth2types "github.com/prysmaticlabs/eth2-types"
	"github.com/sirupsen/logrus"
	"go.opencensus.io/trace"

	"github.com/harborlabs/corebeacon/consensustypes"
	"github.com/harborlabs/corebeacon/core/epoch"
	"github.com/harborlabs/corebeacon/core/helpers"
	"github.com/harborlabs/corebeacon/epochctx"
	"github.com/harborlabs/corebeacon/params"
)

var log = logrus.WithField("prefix", "transition")

// processSlot performs a single slot tick in place: it caches the
// pre-advance state root, lazily patches the cached block header's state
// root, caches the resulting block root, and advances state.Slot by one.
func processSlot(state *consensustypes.BeaconState) {
	cfg := params.BeaconConfig()
	historyLen := uint64(cfg.SlotsPerHistoricalRoot)

	stateRoot := state.HashTreeRoot()
	state.StateRoots[uint64(state.Slot)%historyLen] = stateRoot

	if state.LatestBlockHeader.StateRoot == ([32]byte{}) {
		state.LatestBlockHeader.StateRoot = stateRoot
	}
	blockRoot := state.LatestBlockHeader.HashTreeRoot()
	state.BlockRoots[uint64(state.Slot)%historyLen] = blockRoot

	state.Slot++
}

// ProcessSlots advances state and epochCtx from state.Slot to targetSlot,
// running one slot tick for each slot from state.Slot up to (but not
// including) targetSlot, so that state.Slot == targetSlot on return, and
// running the epoch transition and rotating the
// epoch context each time a slot tick crosses an epoch boundary. It
// returns the (possibly rotated) epoch context; state is mutated in place.
//
// Precondition: state.Slot < targetSlot. Violating it is a programmer error
// (spec.md §7 invariant-violation), not a recoverable block-invalid
// condition.
func ProcessSlots(ctx context.Context, state *consensustypes.BeaconState, epochCtx *epochctx.EpochContext, targetSlot eth2types.Slot) (*epochctx.EpochContext, error) {
	_, span := trace.StartSpan(ctx, "core.transition.ProcessSlots")
	defer span.End()

	if state.Slot >= targetSlot {
		return nil, errors.Errorf("transition: precondition violated, state.Slot %d >= target %d", state.Slot, targetSlot)
	}

	for state.Slot < targetSlot {
		processSlot(state)
		if helpers.IsEpochBoundary(state.Slot) {
			if err := epoch.ProcessEpoch(ctx, state, epochCtx); err != nil {
				return nil, errors.Wrap(err, "transition: epoch transition")
			}
			rotated, err := epochctx.Rotate(epochCtx, state)
			if err != nil {
				return nil, errors.Wrap(err, "transition: rotate epoch context")
			}
			epochCtx = rotated
			log.WithField("epoch", epochCtx.CurrentEpoch).Debug("rotated epoch context")
		}
	}
	return epochCtx, nil
}
