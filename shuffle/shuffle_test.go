package shuffle

import (
	"testing"

	eth2types "github.com/prysmaticlabs/eth2-types"
	"github.com/stretchr/testify/require"
)

func identity(n int) []eth2types.ValidatorIndex {
	out := make([]eth2types.ValidatorIndex, n)
	for i := range out {
		out[i] = eth2types.ValidatorIndex(i)
	}
	return out
}

func TestShuffleUnshuffleRoundTrip(t *testing.T) {
	seed := [32]byte{}
	for i := range seed {
		seed[i] = 0xAB
	}
	input := identity(1024)
	shuffled, err := ShuffleList(append([]eth2types.ValidatorIndex{}, input...), seed)
	require.NoError(t, err)
	back, err := UnshuffleList(append([]eth2types.ValidatorIndex{}, shuffled...), seed)
	require.NoError(t, err)
	require.Equal(t, input, back)
}

func TestUnshuffleThenShuffleIsIdentity(t *testing.T) {
	seed := [32]byte{1, 2, 3}
	input := identity(257)
	unshuffled, err := UnshuffleList(append([]eth2types.ValidatorIndex{}, input...), seed)
	require.NoError(t, err)
	back, err := ShuffleList(append([]eth2types.ValidatorIndex{}, unshuffled...), seed)
	require.NoError(t, err)
	require.Equal(t, input, back)
}

func TestSingleIndexAgreesWithBulk(t *testing.T) {
	seed := [32]byte{9, 9, 9, 9}
	n := 200
	bulk, err := UnshuffleList(identity(n), seed)
	require.NoError(t, err)
	for i := 0; i < n; i++ {
		single, err := ComputeShuffledIndex(uint64(i), uint64(n), seed)
		require.NoError(t, err)
		require.Equal(t, uint64(bulk[i]), single, "index %d", i)
	}
}

func TestComputeCommitteePartitionsActiveSet(t *testing.T) {
	seed := [32]byte{4, 4, 4}
	indices := identity(512)
	count := CommitteeCountPerSlot(uint64(len(indices))) * 32
	seen := make(map[eth2types.ValidatorIndex]bool)
	for c := uint64(0); c < count; c++ {
		committee, err := ComputeCommittee(indices, seed, c, count)
		require.NoError(t, err)
		for _, idx := range committee {
			require.False(t, seen[idx], "validator %d appears in multiple committees", idx)
			seen[idx] = true
		}
	}
	require.Len(t, seen, len(indices))
}
