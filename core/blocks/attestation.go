package blocks

import (
	"sort"

	"github.com/pkg/errors"
	eth2types "github.com/prysmaticlabs/eth2-types"

	"github.com/harborlabs/corebeacon/consensustypes"
	"github.com/harborlabs/corebeacon/core/helpers"
	"github.com/harborlabs/corebeacon/epochctx"
	"github.com/harborlabs/corebeacon/params"
)

// ProcessAttestation verifies att against spec.md §4.G and, on success,
// appends a pending attestation to the appropriate (previous/current)
// pool.
func ProcessAttestation(state *consensustypes.BeaconState, epochCtx *epochctx.EpochContext, att *consensustypes.Attestation) error {
	cfg := params.BeaconConfig()
	data := att.Data

	committeeCount, err := epochCtx.CommitteeCountAtSlot(data.Slot)
	if err != nil {
		return errors.Wrap(err, "blocks: attestation committee-count lookup")
	}
	if uint64(data.CommitteeIndex) >= committeeCount {
		return errors.New("blocks: attestation committee index out of range")
	}

	current := helpers.CurrentEpoch(state.Slot)
	previous := helpers.PreviousEpoch(state.Slot)
	if data.Target.Epoch != current && data.Target.Epoch != previous {
		return errors.New("blocks: attestation target epoch is neither previous nor current")
	}
	if data.Target.Epoch != helpers.SlotToEpoch(data.Slot) {
		return errors.New("blocks: attestation target epoch does not match data slot's epoch")
	}

	if state.Slot < data.Slot+cfg.MinAttestationInclusionDelay {
		return errors.New("blocks: attestation included before minimum inclusion delay")
	}
	if state.Slot > data.Slot+eth2types.Slot(cfg.SlotsPerEpoch) {
		return errors.New("blocks: attestation included after one epoch window")
	}

	var expectedSource *consensustypes.Checkpoint
	if data.Target.Epoch == current {
		expectedSource = state.CurrentJustifiedCheckpoint
	} else {
		expectedSource = state.PreviousJustifiedCheckpoint
	}
	if data.Source.Epoch != expectedSource.Epoch || data.Source.Root != expectedSource.Root {
		return errors.New("blocks: attestation source checkpoint mismatch")
	}

	committee, err := epochCtx.CommitteeAtSlot(data.Slot, uint64(data.CommitteeIndex))
	if err != nil {
		return errors.Wrap(err, "blocks: attestation committee lookup")
	}
	if !helpers.VerifyBitfieldLength(att.AggregationBits, uint64(len(committee))) {
		return errors.New("blocks: attestation aggregation bitlist length mismatch")
	}

	participants := helpers.AttestingIndices(att.AggregationBits, committeeValidatorIndices(committee))
	sort.Slice(participants, func(i, j int) bool { return participants[i] < participants[j] })
	indexed := &consensustypes.IndexedAttestation{
		AttestingIndices: uint64sToValidatorIndices(participants),
		Data:             data,
		Signature:        att.Signature,
	}
	if err := verifyIndexedAttestation(state, epochCtx, indexed); err != nil {
		return errors.Wrap(err, "blocks: attestation signature")
	}

	proposer, err := currentProposer(epochCtx, state.Slot)
	if err != nil {
		return errors.Wrap(err, "blocks: lookup block proposer for inclusion credit")
	}
	pending := &consensustypes.PendingAttestation{
		AggregationBits: att.AggregationBits,
		Data:            data,
		InclusionDelay:  state.Slot - data.Slot,
		ProposerIndex:   proposer,
	}
	if data.Target.Epoch == current {
		state.CurrentEpochAttestations = append(state.CurrentEpochAttestations, pending)
	} else {
		state.PreviousEpochAttestations = append(state.PreviousEpochAttestations, pending)
	}
	return nil
}

func committeeValidatorIndices(committee []eth2types.ValidatorIndex) []uint64 {
	out := make([]uint64, len(committee))
	for i, idx := range committee {
		out[i] = uint64(idx)
	}
	return out
}

func uint64sToValidatorIndices(indices []uint64) []eth2types.ValidatorIndex {
	out := make([]eth2types.ValidatorIndex, len(indices))
	for i, idx := range indices {
		out[i] = eth2types.ValidatorIndex(idx)
	}
	return out
}
