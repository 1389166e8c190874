package blocks

import (
	"github.com/pkg/errors"

	"github.com/harborlabs/corebeacon/blsverify"
	"github.com/harborlabs/corebeacon/consensustypes"
	"github.com/harborlabs/corebeacon/epochctx"
	"github.com/harborlabs/corebeacon/params"
)

// ProcessOperations processes body's operations in the fixed order
// required by spec.md §4.F: proposer-slashings, attester-slashings,
// attestations, deposits, voluntary-exits, each element verified
// sequentially. eth1DepositCount is the deposit-contract's observed total
// deposit count, used to enforce the required per-block deposit count.
func ProcessOperations(state *consensustypes.BeaconState, epochCtx *epochctx.EpochContext, body *consensustypes.BeaconBlockBody, eth1DepositCount uint64) error {
	cfg := params.BeaconConfig()

	wantDeposits := eth1DepositCount - state.Eth1DepositIndex
	if wantDeposits > cfg.MaxDeposits {
		wantDeposits = cfg.MaxDeposits
	}
	if uint64(len(body.Deposits)) != wantDeposits {
		return errors.Errorf("blocks: expected %d deposits, got %d", wantDeposits, len(body.Deposits))
	}

	for i, ps := range body.ProposerSlashings {
		if err := ProcessProposerSlashing(state, epochCtx, ps); err != nil {
			return errors.Wrapf(err, "blocks: proposer slashing %d", i)
		}
	}
	for i, as := range body.AttesterSlashings {
		if err := ProcessAttesterSlashing(state, epochCtx, as); err != nil {
			return errors.Wrapf(err, "blocks: attester slashing %d", i)
		}
	}
	for i, att := range body.Attestations {
		if err := ProcessAttestation(state, epochCtx, att); err != nil {
			return errors.Wrapf(err, "blocks: attestation %d", i)
		}
	}
	preverified := batchVerifyNewDepositSignatures(epochCtx, body.Deposits)
	for i, d := range body.Deposits {
		if err := processDeposit(state, epochCtx, d, preverified); err != nil {
			return errors.Wrapf(err, "blocks: deposit %d", i)
		}
	}
	for i, ve := range body.VoluntaryExits {
		if err := ProcessVoluntaryExit(state, ve); err != nil {
			return errors.Wrapf(err, "blocks: voluntary exit %d", i)
		}
	}
	return nil
}

// batchVerifyNewDepositSignatures verifies every new-pubkey deposit's
// proof-of-possession signature in body.Deposits as a single pairing
// computation via blsverify.VerifyMultipleSignatures, rather than one
// pairing per deposit. Deposits for already-known pubkeys are excluded:
// processDeposit never signature-checks those. A false result (including
// the no-new-pubkeys case) tells the caller to fall back to per-deposit
// verification, which is needed to identify which individual deposit, if
// any, carries the bad signature.
func batchVerifyNewDepositSignatures(epochCtx *epochctx.EpochContext, deposits []*consensustypes.Deposit) bool {
	var pubkeys [][]byte
	var messages [][32]byte
	var signatures [][]byte
	for _, d := range deposits {
		var pubkey [48]byte
		copy(pubkey[:], d.Data.PublicKey)
		if _, ok := epochCtx.PubkeyToIndex[pubkey]; ok {
			continue
		}
		pubkeys = append(pubkeys, d.Data.PublicKey)
		messages = append(messages, depositSigningRoot(d.Data))
		signatures = append(signatures, d.Data.Signature)
	}
	if len(pubkeys) == 0 {
		return false
	}
	return blsverify.VerifyMultipleSignatures(pubkeys, messages, signatures)
}
