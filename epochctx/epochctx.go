// Package epochctx implements the epoch context (spec.md §4.C): the
// validator pubkey/index tables, the three cached shufflings
// (previous/current/next epoch), and the current epoch's proposer table.
// It is treated as an immutable value once built — rotation builds a new
// object and swaps it in, rather than mutating the live context in place
// (spec.md §9 "Epoch context mutability").
package epochctx

import (
	"github.com/pkg/errors"
	eth2types "github.com/prysmaticlabs/eth2-types"

	"github.com/harborlabs/corebeacon/consensustypes"
	"github.com/harborlabs/corebeacon/core/helpers"
	"github.com/harborlabs/corebeacon/hashutil"
	"github.com/harborlabs/corebeacon/params"
	"github.com/harborlabs/corebeacon/shuffle"
)

// Shuffling is one epoch's worth of precomputed committee assignment: the
// active-validator set at that epoch and its swap-or-not permutation, cached
// once so that per-(slot, committee_index) lookups only need to slice.
type Shuffling struct {
	Epoch            eth2types.Epoch
	Seed             [32]byte
	ActiveIndices    []eth2types.ValidatorIndex
	ShuffledIndices  []eth2types.ValidatorIndex
	CommitteesPerSlot uint64
}

// CommitteeAt returns the committee for (slot, committeeIndex) by slicing
// the cached shuffled active set, matching ComputeCommittee's partitioning
// without re-running the shuffle.
func (s *Shuffling) CommitteeAt(slot eth2types.Slot, committeeIndex uint64) ([]eth2types.ValidatorIndex, error) {
	cfg := params.BeaconConfig()
	slotInEpoch := uint64(slot) % uint64(cfg.SlotsPerEpoch)
	if committeeIndex >= s.CommitteesPerSlot {
		return nil, errors.New("epochctx: committee index out of range")
	}
	totalCommittees := s.CommitteesPerSlot * uint64(cfg.SlotsPerEpoch)
	index := slotInEpoch*s.CommitteesPerSlot + committeeIndex
	count := uint64(len(s.ActiveIndices))
	start := splitOffset(count, totalCommittees, index)
	end := splitOffset(count, totalCommittees, index+1)
	return s.ShuffledIndices[start:end], nil
}

func splitOffset(listSize, chunks, index uint64) uint64 {
	return (listSize * index) / chunks
}

// computeShuffling builds the cached shuffling for epoch from state.
func computeShuffling(state *consensustypes.BeaconState, epoch eth2types.Epoch) (*Shuffling, error) {
	active := helpers.ActiveValidatorIndices(state.Validators, epoch)
	seed, err := helpers.Seed(state.RandaoMixes, epoch, params.BeaconConfig().DomainBeaconAttester)
	if err != nil {
		return nil, errors.Wrap(err, "epochctx: compute shuffling seed")
	}
	shuffled, err := shuffle.UnshuffleList(append([]eth2types.ValidatorIndex{}, active...), seed)
	if err != nil {
		return nil, errors.Wrap(err, "epochctx: unshuffle active indices")
	}
	return &Shuffling{
		Epoch:             epoch,
		Seed:              seed,
		ActiveIndices:     active,
		ShuffledIndices:   shuffled,
		CommitteesPerSlot: shuffle.CommitteeCountPerSlot(uint64(len(active))),
	}, nil
}

// EpochContext is the full per-epoch cache described by spec.md §4.C.
type EpochContext struct {
	CurrentEpoch eth2types.Epoch

	PubkeyToIndex map[[48]byte]eth2types.ValidatorIndex
	IndexToPubkey [][48]byte

	Previous *Shuffling
	Current  *Shuffling
	Next     *Shuffling

	// ProposerIndices[i] is the sampled proposer for slot
	// start_slot(CurrentEpoch) + i.
	ProposerIndices []eth2types.ValidatorIndex
}

func balanceLookup(state *consensustypes.BeaconState) shuffle.EffectiveBalanceLookup {
	return func(candidateIndex eth2types.ValidatorIndex) (uint64, error) {
		if uint64(candidateIndex) >= uint64(len(state.Validators)) {
			return 0, errors.New("epochctx: candidate index out of range")
		}
		return state.Validators[candidateIndex].EffectiveBalance, nil
	}
}

// buildProposerTable samples one proposer per slot of the current epoch,
// per spec.md §4.C / §4.A.
func buildProposerTable(state *consensustypes.BeaconState, current *Shuffling) ([]eth2types.ValidatorIndex, error) {
	cfg := params.BeaconConfig()
	epochSeed, err := helpers.Seed(state.RandaoMixes, current.Epoch, cfg.DomainBeaconProposer)
	if err != nil {
		return nil, errors.Wrap(err, "epochctx: compute proposer epoch seed")
	}
	lookup := balanceLookup(state)
	table := make([]eth2types.ValidatorIndex, cfg.SlotsPerEpoch)
	startSlot := helpers.StartSlot(current.Epoch)
	for i := range table {
		slot := startSlot + eth2types.Slot(i)
		slotSeed := hashutil.HashConcat(epochSeed[:], hashutil.Uint64ToBytes8LE(uint64(slot)))
		proposer, err := shuffle.ComputeProposerIndex(current.ActiveIndices, slotSeed, lookup)
		if err != nil {
			return nil, errors.Wrapf(err, "epochctx: compute proposer for slot %d", slot)
		}
		table[i] = proposer
	}
	return table, nil
}

// Load builds a fresh EpochContext from state: pubkey tables, the
// previous/current/next shufflings (previous equals current at genesis),
// and the current epoch's proposer table.
func Load(state *consensustypes.BeaconState) (*EpochContext, error) {
	ctx := &EpochContext{
		CurrentEpoch:  helpers.CurrentEpoch(state.Slot),
		PubkeyToIndex: make(map[[48]byte]eth2types.ValidatorIndex, len(state.Validators)),
		IndexToPubkey: make([][48]byte, len(state.Validators)),
	}
	for i, v := range state.Validators {
		ctx.PubkeyToIndex[v.PublicKey] = eth2types.ValidatorIndex(i)
		ctx.IndexToPubkey[i] = v.PublicKey
	}

	current, err := computeShuffling(state, ctx.CurrentEpoch)
	if err != nil {
		return nil, err
	}
	next, err := computeShuffling(state, ctx.CurrentEpoch+1)
	if err != nil {
		return nil, err
	}
	ctx.Current = current
	ctx.Next = next
	if ctx.CurrentEpoch == params.BeaconConfig().GenesisEpoch {
		ctx.Previous = current
	} else {
		previous, err := computeShuffling(state, ctx.CurrentEpoch-1)
		if err != nil {
			return nil, err
		}
		ctx.Previous = previous
	}

	proposers, err := buildProposerTable(state, ctx.Current)
	if err != nil {
		return nil, err
	}
	ctx.ProposerIndices = proposers
	return ctx, nil
}

// Rotate advances ctx to the epoch that state.Slot just entered: previous
// becomes current, current becomes the old next, a fresh next is computed,
// and the proposer table is rebuilt for the new current epoch. It returns a
// new EpochContext; the caller swaps it in after the transition commits.
func Rotate(ctx *EpochContext, state *consensustypes.BeaconState) (*EpochContext, error) {
	newEpoch := helpers.CurrentEpoch(state.Slot)
	next, err := computeShuffling(state, newEpoch+1)
	if err != nil {
		return nil, err
	}
	rotated := &EpochContext{
		CurrentEpoch:  newEpoch,
		PubkeyToIndex: ctx.PubkeyToIndex,
		IndexToPubkey: ctx.IndexToPubkey,
		Previous:      ctx.Current,
		Current:       ctx.Next,
		Next:          next,
	}
	proposers, err := buildProposerTable(state, rotated.Current)
	if err != nil {
		return nil, err
	}
	rotated.ProposerIndices = proposers
	return rotated, nil
}

// SyncPubkeys extends the pubkey/index tables for validators appended since
// ctx was built (deposits are the only operation that appends validators).
// It mutates ctx in place, since new entries never invalidate existing ones.
func SyncPubkeys(ctx *EpochContext, state *consensustypes.BeaconState) {
	for i := len(ctx.IndexToPubkey); i < len(state.Validators); i++ {
		pk := state.Validators[i].PublicKey
		ctx.IndexToPubkey = append(ctx.IndexToPubkey, pk)
		ctx.PubkeyToIndex[pk] = eth2types.ValidatorIndex(i)
	}
}

// Copy deep-copies the pubkey tables and shares the three shufflings and
// proposer table by reference, since those are never mutated after
// construction — only replaced wholesale by Rotate.
func (ctx *EpochContext) Copy() *EpochContext {
	cpy := &EpochContext{
		CurrentEpoch:    ctx.CurrentEpoch,
		PubkeyToIndex:   make(map[[48]byte]eth2types.ValidatorIndex, len(ctx.PubkeyToIndex)),
		IndexToPubkey:   append([][48]byte{}, ctx.IndexToPubkey...),
		Previous:        ctx.Previous,
		Current:         ctx.Current,
		Next:            ctx.Next,
		ProposerIndices: ctx.ProposerIndices,
	}
	for k, v := range ctx.PubkeyToIndex {
		cpy.PubkeyToIndex[k] = v
	}
	return cpy
}

// CommitteeCountAtSlot returns the number of committees per slot in slot's
// epoch, which the attestation handler needs to know the valid
// committee-index range.
func (ctx *EpochContext) CommitteeCountAtSlot(slot eth2types.Slot) (uint64, error) {
	s, err := ctx.shufflingForSlot(slot)
	if err != nil {
		return 0, err
	}
	return s.CommitteesPerSlot, nil
}

// CommitteeAtSlot returns the committee for (slot, committeeIndex), chosen
// from whichever of previous/current/next matches slot's epoch.
func (ctx *EpochContext) CommitteeAtSlot(slot eth2types.Slot, committeeIndex uint64) ([]eth2types.ValidatorIndex, error) {
	s, err := ctx.shufflingForSlot(slot)
	if err != nil {
		return nil, err
	}
	return s.CommitteeAt(slot, committeeIndex)
}

// ProposerAtSlot returns the sampled proposer for slot. Only valid for
// slots within the current epoch.
func (ctx *EpochContext) ProposerAtSlot(slot eth2types.Slot) (eth2types.ValidatorIndex, error) {
	cfg := params.BeaconConfig()
	if helpers.SlotToEpoch(slot) != ctx.CurrentEpoch {
		return 0, errors.New("epochctx: proposer lookup outside current epoch")
	}
	i := uint64(slot) % uint64(cfg.SlotsPerEpoch)
	return ctx.ProposerIndices[i], nil
}

func (ctx *EpochContext) shufflingForSlot(slot eth2types.Slot) (*Shuffling, error) {
	epoch := helpers.SlotToEpoch(slot)
	switch epoch {
	case ctx.CurrentEpoch:
		return ctx.Current, nil
	case ctx.CurrentEpoch - 1:
		return ctx.Previous, nil
	case ctx.CurrentEpoch + 1:
		return ctx.Next, nil
	default:
		return nil, errors.Errorf("epochctx: no cached shuffling for epoch %d (current %d)", epoch, ctx.CurrentEpoch)
	}
}
