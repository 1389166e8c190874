package transition

import (
	"context"

	"github.com/pkg/errors"
	"go.opencensus.io/trace"

	"github.com/harborlabs/corebeacon/consensustypes"
	"github.com/harborlabs/corebeacon/core/blocks"
	"github.com/harborlabs/corebeacon/epochctx"
)

// ProcessBlock applies block's header, RANDAO reveal, eth1-data vote, and
// operations to state in place, per spec.md §4.F apply_block.
// eth1DepositCount is the deposit contract's currently observed total
// deposit count, needed to check the per-block deposit count invariant.
func ProcessBlock(ctx context.Context, state *consensustypes.BeaconState, epochCtx *epochctx.EpochContext, block *consensustypes.BeaconBlock, eth1DepositCount uint64) error {
	_, span := trace.StartSpan(ctx, "core.transition.ProcessBlock")
	defer span.End()

	if err := blocks.ProcessBlockHeader(state, epochCtx, block); err != nil {
		return errors.Wrap(err, "transition: block header")
	}
	if err := blocks.ProcessRandao(state, block.ProposerIndex, block.Body.RandaoReveal); err != nil {
		return errors.Wrap(err, "transition: randao")
	}
	blocks.ProcessEth1Data(state, block.Body.Eth1Data)
	if err := blocks.ProcessOperations(state, epochCtx, block.Body, eth1DepositCount); err != nil {
		return errors.Wrap(err, "transition: operations")
	}
	return nil
}
