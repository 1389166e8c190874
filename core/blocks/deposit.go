package blocks

import (
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/harborlabs/corebeacon/blsverify"
	"github.com/harborlabs/corebeacon/consensustypes"
	"github.com/harborlabs/corebeacon/core/helpers"
	"github.com/harborlabs/corebeacon/epochctx"
	"github.com/harborlabs/corebeacon/hashutil"
	"github.com/harborlabs/corebeacon/params"
)

var depositLog = logrus.WithField("prefix", "blocks")

// ProcessDeposit verifies d's Merkle inclusion proof against
// state.Eth1Data.DepositRoot, then either credits an existing validator's
// balance or, for a new pubkey, verifies the deposit's proof-of-possession
// signature and appends a new validator record (spec.md §4.G Deposit).
func ProcessDeposit(state *consensustypes.BeaconState, epochCtx *epochctx.EpochContext, d *consensustypes.Deposit) error {
	return processDeposit(state, epochCtx, d, false)
}

// processDeposit is ProcessDeposit's implementation, with sigPreverified
// set when the caller (ProcessOperations' deposit batch) has already
// confirmed this deposit's proof-of-possession signature as part of a
// VerifyMultipleSignatures batch covering the whole block's new-pubkey
// deposits, letting the per-deposit BLS check be skipped here.
func processDeposit(state *consensustypes.BeaconState, epochCtx *epochctx.EpochContext, d *consensustypes.Deposit, sigPreverified bool) error {
	cfg := params.BeaconConfig()

	leaf := d.Data.HashTreeRoot()
	if !hashutil.VerifyMerkleBranch(state.Eth1Data.DepositRoot, leaf, int(state.Eth1DepositIndex), d.Proof, cfg.DepositContractTreeDepth+1) {
		return errors.New("blocks: invalid deposit merkle branch")
	}
	state.Eth1DepositIndex++

	var pubkey [48]byte
	copy(pubkey[:], d.Data.PublicKey)

	if idx, ok := epochCtx.PubkeyToIndex[pubkey]; ok {
		helpers.IncreaseBalance(state.Balances, idx, d.Data.Amount)
		return nil
	}

	if !sigPreverified && !verifyDepositSignature(d.Data) {
		depositLog.WithField("pubkey", pubkey).Debug("dropping deposit with invalid proof of possession")
		return nil
	}

	effective := floorToIncrement(d.Data.Amount, cfg.EffectiveBalanceIncrement)
	if effective > cfg.MaxEffectiveBalance {
		effective = cfg.MaxEffectiveBalance
	}
	var withdrawalCreds [32]byte
	copy(withdrawalCreds[:], d.Data.WithdrawalCredentials)

	state.Validators = append(state.Validators, &consensustypes.Validator{
		PublicKey:                  pubkey,
		WithdrawalCredentials:      withdrawalCreds,
		EffectiveBalance:           effective,
		ActivationEligibilityEpoch: cfg.FarFutureEpoch,
		ActivationEpoch:            cfg.FarFutureEpoch,
		ExitEpoch:                  cfg.FarFutureEpoch,
		WithdrawableEpoch:          cfg.FarFutureEpoch,
	})
	state.Balances = append(state.Balances, d.Data.Amount)

	epochctx.SyncPubkeys(epochCtx, state)
	return nil
}

func floorToIncrement(amount, increment uint64) uint64 {
	return amount - amount%increment
}

// depositSigningRoot returns the value a deposit's proof-of-possession
// signs, mixed with the fixed genesis domain rather than the state's live
// fork (deposit proofs are signed once, at key-generation time, against
// the chain's genesis fork version).
func depositSigningRoot(data *consensustypes.DepositData) [32]byte {
	cfg := params.BeaconConfig()
	domain := consensustypes.ComputeDomain(cfg.DomainDeposit, cfg.GenesisForkVersion, [32]byte{})
	objectRoot := consensustypes.DepositMessageSigningRoot(data)
	return consensustypes.ComputeSigningRoot(objectRoot, domain)
}

func verifyDepositSignature(data *consensustypes.DepositData) bool {
	signingRoot := depositSigningRoot(data)
	return blsverify.Verify(data.PublicKey, signingRoot[:], data.Signature)
}
