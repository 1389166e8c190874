package blocks

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/harborlabs/corebeacon/consensustypes"
	"github.com/harborlabs/corebeacon/epochctx"
	"github.com/harborlabs/corebeacon/hashutil"
	"github.com/harborlabs/corebeacon/params"
)

func emptyGenesisState(t *testing.T) (*consensustypes.BeaconState, *epochctx.EpochContext) {
	t.Helper()
	cfg := params.BeaconConfig()
	var pk [48]byte
	pk[0] = 0x01
	state := &consensustypes.BeaconState{
		Slot: cfg.GenesisSlot,
		Fork: &consensustypes.Fork{},
		Validators: []*consensustypes.Validator{{
			PublicKey:         pk,
			EffectiveBalance:  cfg.MaxEffectiveBalance,
			ActivationEpoch:   cfg.GenesisEpoch,
			ExitEpoch:         cfg.FarFutureEpoch,
			WithdrawableEpoch: cfg.FarFutureEpoch,
		}},
		Balances:    []uint64{cfg.MaxEffectiveBalance},
		RandaoMixes: make([][32]byte, cfg.EpochsPerHistoricalVector),
		Eth1Data:    &consensustypes.Eth1Data{},
	}
	ctx, err := epochctx.Load(state)
	require.NoError(t, err)
	return state, ctx
}

func TestProcessDepositRejectsBadMerkleProof(t *testing.T) {
	restore := params.OverrideBeaconConfig(params.Minimal())
	defer restore()
	state, ctx := emptyGenesisState(t)

	d := &consensustypes.Deposit{
		Proof: make([][]byte, params.BeaconConfig().DepositContractTreeDepth+1),
		Data: &consensustypes.DepositData{
			PublicKey:             make([]byte, 48),
			WithdrawalCredentials: make([]byte, 32),
			Amount:                32000000000,
			Signature:             make([]byte, 96),
		},
	}
	for i := range d.Proof {
		d.Proof[i] = make([]byte, 32)
	}
	state.Eth1Data.DepositRoot = hashutil.Hash([]byte("not the real root"))

	err := ProcessDeposit(state, ctx, d)
	require.Error(t, err)
	require.Equal(t, uint64(0), state.Eth1DepositIndex, "a bad merkle proof must not advance the deposit index")
}
