package blocks

import (
	"sort"

	"github.com/pkg/errors"
	eth2types "github.com/prysmaticlabs/eth2-types"

	"github.com/harborlabs/corebeacon/blsverify"
	"github.com/harborlabs/corebeacon/consensustypes"
	"github.com/harborlabs/corebeacon/core/helpers"
	"github.com/harborlabs/corebeacon/epochctx"
	"github.com/harborlabs/corebeacon/params"
)

// isDoubleVote reports whether a1 and a2 attest to the same target epoch
// with different data, one of the two Casper FFG slashing conditions.
func isDoubleVote(a1, a2 *consensustypes.AttestationData) bool {
	return a1.Target.Epoch == a2.Target.Epoch && a1.HashTreeRoot() != a2.HashTreeRoot()
}

// isSurroundVote reports whether a1 surrounds a2: a1 votes for an older
// source and a newer target than a2, the other Casper FFG slashing
// condition.
func isSurroundVote(a1, a2 *consensustypes.AttestationData) bool {
	return a1.Source.Epoch < a2.Source.Epoch && a2.Target.Epoch < a1.Target.Epoch
}

func isSlashableAttestationPair(a1, a2 *consensustypes.AttestationData) bool {
	return isDoubleVote(a1, a2) || isSurroundVote(a1, a2) || isSurroundVote(a2, a1)
}

// verifyIndexedAttestation checks that ia has a strictly-sorted, non-empty
// attesting-indices list and a valid aggregate signature over its data
// under the beacon-attester domain for its target epoch.
func verifyIndexedAttestation(state *consensustypes.BeaconState, epochCtx *epochctx.EpochContext, ia *consensustypes.IndexedAttestation) error {
	if len(ia.AttestingIndices) == 0 {
		return errors.New("blocks: indexed attestation has no attesting indices")
	}
	for i := 1; i < len(ia.AttestingIndices); i++ {
		if ia.AttestingIndices[i-1] >= ia.AttestingIndices[i] {
			return errors.New("blocks: indexed attestation attesting indices not strictly sorted")
		}
	}

	pubkeys := make([][]byte, len(ia.AttestingIndices))
	for i, idx := range ia.AttestingIndices {
		if uint64(idx) >= uint64(len(state.Validators)) {
			return errors.New("blocks: indexed attestation references unknown validator")
		}
		pk := state.Validators[idx].PublicKey
		pubkeys[i] = pk[:]
	}

	cfg := params.BeaconConfig()
	domain := helpers.Domain(state.Fork, ia.Data.Target.Epoch, cfg.DomainBeaconAttester, state.GenesisValidatorsRoot)
	objectRoot := ia.SigningMessage()
	signingRoot := consensustypes.ComputeSigningRoot(objectRoot, domain)

	if !blsverify.FastAggregateVerify(pubkeys, signingRoot[:], ia.Signature) {
		return errors.New("blocks: invalid indexed attestation aggregate signature")
	}
	return nil
}

// ProcessAttesterSlashing verifies an attester-slashing proof and slashes
// every validator in the sorted intersection of the two attestations'
// attesting-indices sets that is still slashable, per spec.md §4.G. At
// least one slashing must occur.
func ProcessAttesterSlashing(state *consensustypes.BeaconState, epochCtx *epochctx.EpochContext, as *consensustypes.AttesterSlashing) error {
	if !isSlashableAttestationPair(as.Attestation1.Data, as.Attestation2.Data) {
		return errors.New("blocks: attestations are not slashable")
	}
	if err := verifyIndexedAttestation(state, epochCtx, as.Attestation1); err != nil {
		return errors.Wrap(err, "blocks: attestation 1")
	}
	if err := verifyIndexedAttestation(state, epochCtx, as.Attestation2); err != nil {
		return errors.Wrap(err, "blocks: attestation 2")
	}

	intersection := intersectSorted(as.Attestation1.AttestingIndices, as.Attestation2.AttestingIndices)
	current := helpers.CurrentEpoch(state.Slot)
	proposer, err := currentProposer(epochCtx, state.Slot)
	if err != nil {
		return errors.Wrap(err, "blocks: lookup block proposer for whistleblower credit")
	}

	var slashedAny bool
	for _, idx := range intersection {
		if helpers.IsSlashableValidator(state.Validators[idx], current) {
			SlashValidator(state, idx, proposer, proposer)
			slashedAny = true
		}
	}
	if !slashedAny {
		return errors.New("blocks: attester slashing slashed no validators")
	}
	return nil
}

func intersectSorted(a, b []eth2types.ValidatorIndex) []eth2types.ValidatorIndex {
	set := make(map[eth2types.ValidatorIndex]bool, len(a))
	for _, idx := range a {
		set[idx] = true
	}
	var out []eth2types.ValidatorIndex
	for _, idx := range b {
		if set[idx] {
			out = append(out, idx)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
