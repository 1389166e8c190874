// Package shuffle implements the deterministic swap-or-not permutation
// (spec.md §4.A) used to derive shuffled validator orderings, committees,
// and proposer selection. Two equivalent code paths exist by construction:
// the bulk ShuffleList/UnshuffleList pair and the single-index
// ComputeShuffledIndex; callers pick whichever is cheaper for their access
// pattern, and both must agree bit-for-bit (see shuffle_test.go).
package shuffle

import (
	"encoding/binary"

	"github.com/pkg/errors"
	eth2types "github.com/prysmaticlabs/eth2-types"

	"github.com/harborlabs/corebeacon/hashutil"
	"github.com/harborlabs/corebeacon/params"
)

// ErrZeroIndexCount is returned when a shuffle is requested over an empty
// index space.
var ErrZeroIndexCount = errors.New("shuffle: index count is zero")

func roundCount() uint64 {
	return params.BeaconConfig().ShuffleRoundCount
}

// swapBit decides, for one (round, i, j) pair, whether positions i and
// j of input should be swapped, using the byte layout required by spec.md
// §4.A.3: H(seed ‖ round ‖ u32_le(j div 256)), bit (j mod 256) of that hash.
func swapBit(seed [32]byte, round byte, j uint64) bool {
	source := hashutil.HashConcat(seed[:], []byte{round}, hashutil.Uint32ToBytes4LE(uint32(j/256)))
	byteIdx := (j % 256) / 8
	bitIdx := j % 8
	return (source[byteIdx]>>bitIdx)&1 == 1
}

func pivotForRound(seed [32]byte, round byte, n uint64) uint64 {
	h := hashutil.HashConcat(seed[:], []byte{round})
	return binary.LittleEndian.Uint64(h[:8]) % n
}

// shuffleRound applies one swap-or-not round in place over input, per the
// two-pass construction of spec.md §4.A.2-3.
func shuffleRound(input []eth2types.ValidatorIndex, seed [32]byte, round byte) {
	n := uint64(len(input))
	if n < 2 {
		return
	}
	pivot := pivotForRound(seed, round, n)

	// First pass: i from 0 upward, j = pivot - i, until i >= (pivot+1)/2.
	firstBound := (pivot + 1) / 2
	for i, j := uint64(0), pivot; i < firstBound; i, j = i+1, j-1 {
		if j > i && swapBit(seed, round, j) {
			input[i], input[j] = input[j], input[i]
		}
	}

	// Second pass: i from pivot+1 upward, j = N-1-(i-(pivot+1)), until
	// i >= (pivot+N+1)/2.
	secondBound := (pivot + n + 1) / 2
	for i, j := pivot+1, n-1; i < secondBound; i, j = i+1, j-1 {
		if j > i && swapBit(seed, round, j) {
			input[i], input[j] = input[j], input[i]
		}
	}
}

// ShuffleList applies the forward swap-or-not permutation (rounds 0..R-1)
// to input in place and returns it.
func ShuffleList(input []eth2types.ValidatorIndex, seed [32]byte) ([]eth2types.ValidatorIndex, error) {
	if len(input) == 0 {
		return input, nil
	}
	rounds := roundCount()
	for r := uint64(0); r < rounds; r++ {
		shuffleRound(input, seed, byte(r))
	}
	return input, nil
}

// UnshuffleList applies the reverse swap-or-not permutation (rounds
// R-1..0) to input in place and returns it. UnshuffleList is the exact
// inverse of ShuffleList for the same seed.
//
// This is the direction used to materialise a committee: the value at
// position i of UnshuffleList(identity) equals ComputeShuffledIndex(i, N,
// seed), matching the teacher's core/helpers.ComputeCommittee, which calls
// UnshuffleList (not ShuffleList) to build the shuffled index-to-validator
// mapping.
func UnshuffleList(input []eth2types.ValidatorIndex, seed [32]byte) ([]eth2types.ValidatorIndex, error) {
	if len(input) == 0 {
		return input, nil
	}
	rounds := roundCount()
	for r := int64(rounds) - 1; r >= 0; r-- {
		shuffleRound(input, seed, byte(r))
	}
	return input, nil
}

// ComputeShuffledIndex returns the shuffled position of index within a list
// of indexCount elements under seed, without materialising the full list.
// It must agree with UnshuffleList(identity(indexCount), seed)[index].
func ComputeShuffledIndex(index, indexCount uint64, seed [32]byte) (uint64, error) {
	if indexCount == 0 {
		return 0, ErrZeroIndexCount
	}
	if index >= indexCount {
		return 0, errors.Errorf("shuffle: index %d out of bounds for count %d", index, indexCount)
	}
	cur := index
	rounds := roundCount()
	for r := uint64(0); r < rounds; r++ {
		pivot := pivotForRound(seed, byte(r), indexCount)
		flip := (pivot + indexCount - cur) % indexCount
		position := cur
		if flip > position {
			position = flip
		}
		if swapBit(seed, byte(r), position) {
			cur = flip
		}
	}
	return cur, nil
}

// CommitteeCountPerSlot returns the number of committees per slot given the
// active validator count, clamped to [1, MaxCommitteesPerSlot].
//
// Spec pseudocode: max(1, min(MAX_COMMITTEES_PER_SLOT, active // SLOTS_PER_EPOCH // TARGET_COMMITTEE_SIZE))
func CommitteeCountPerSlot(activeValidatorCount uint64) uint64 {
	cfg := params.BeaconConfig()
	count := activeValidatorCount / uint64(cfg.SlotsPerEpoch) / cfg.TargetCommitteeSize
	if count > cfg.MaxCommitteesPerSlot {
		return cfg.MaxCommitteesPerSlot
	}
	if count < 1 {
		return 1
	}
	return count
}

// splitOffset returns floor(listSize * index / chunks), the standard
// interval-splitting helper used to slice a shuffled list into committees.
func splitOffset(listSize, chunks, index uint64) uint64 {
	return (listSize * index) / chunks
}

// ComputeCommittee returns committee `index` out of `count` total
// committees, computed over the shuffled `indices` list.
func ComputeCommittee(indices []eth2types.ValidatorIndex, seed [32]byte, index, count uint64) ([]eth2types.ValidatorIndex, error) {
	validatorCount := uint64(len(indices))
	if count == 0 {
		return nil, errors.New("shuffle: zero committee count")
	}
	start := splitOffset(validatorCount, count, index)
	end := splitOffset(validatorCount, count, index+1)
	if start > validatorCount || end > validatorCount || start > end {
		return nil, errors.New("shuffle: committee slice out of range")
	}
	shuffled := make([]eth2types.ValidatorIndex, len(indices))
	copy(shuffled, indices)
	shuffled, err := UnshuffleList(shuffled, seed)
	if err != nil {
		return nil, err
	}
	return shuffled[start:end], nil
}

// EffectiveBalanceLookup returns the effective balance of a candidate index,
// used by ComputeProposerIndex to weight acceptance probability.
type EffectiveBalanceLookup func(candidateIndex eth2types.ValidatorIndex) (uint64, error)

// ComputeProposerIndex implements the weighted-random proposer sampling of
// spec.md §4.A: iterate candidates in shuffled order, accept the first one
// whose effective balance clears a randomness-weighted threshold.
func ComputeProposerIndex(indices []eth2types.ValidatorIndex, seed [32]byte, balanceOf EffectiveBalanceLookup) (eth2types.ValidatorIndex, error) {
	if len(indices) == 0 {
		return 0, errors.New("shuffle: empty candidate list")
	}
	total := uint64(len(indices))
	maxEffectiveBalance := params.BeaconConfig().MaxEffectiveBalance
	for i := uint64(0); ; i++ {
		shuffledIdx, err := ComputeShuffledIndex(i%total, total, seed)
		if err != nil {
			return 0, err
		}
		candidate := indices[shuffledIdx]
		randomByteHash := hashutil.HashConcat(seed[:], hashutil.Uint64ToBytes8LE(i/32))
		randomByte := randomByteHash[i%32]
		effectiveBalance, err := balanceOf(candidate)
		if err != nil {
			return 0, err
		}
		if effectiveBalance*255 >= maxEffectiveBalance*uint64(randomByte) {
			return candidate, nil
		}
	}
}
