package beam

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/harborlabs/corebeacon/beam/ranking"
)

func TestTrieNodeEncodeDecodeRoundTrip(t *testing.T) {
	var child [32]byte
	child[0] = 0xab

	leaf := NewLeaf([]byte{1, 2, 3}, []byte("value"))
	decodedLeaf, err := DecodeTrieNode(leaf.Encode())
	require.NoError(t, err)
	require.Equal(t, leaf.Kind, decodedLeaf.Kind)
	require.Equal(t, leaf.Path, decodedLeaf.Path)
	require.Equal(t, leaf.Value, decodedLeaf.Value)

	ext := NewExtension([]byte{4, 5}, child)
	decodedExt, err := DecodeTrieNode(ext.Encode())
	require.NoError(t, err)
	require.Equal(t, ext.Child, decodedExt.Child)
	require.Equal(t, ext.Path, decodedExt.Path)

	var children [16][32]byte
	children[3] = child
	branch := NewBranch(children, []byte("terminal"))
	decodedBranch, err := DecodeTrieNode(branch.Encode())
	require.NoError(t, err)
	require.Equal(t, branch.Children, decodedBranch.Children)
	require.Equal(t, branch.Value, decodedBranch.Value)
}

// TestProbeTrieRetriesMissingNodeUntilPeerSupplies matches the trie-aware
// download path's "missing node → ensure that node → retry" loop: the
// store starts empty, so each node the walk reaches (the root, then the
// leaf) is first missing, fetched on demand from the peer, and the lookup
// retried rather than failing immediately.
func TestProbeTrieRetriesMissingNodeUntilPeerSupplies(t *testing.T) {
	var key [32]byte
	key[0] = 0x10

	leaf := NewLeaf(nibbles(key[:])[1:], []byte("account-bytes"))
	var children [16][32]byte
	children[nibbles(key[:])[0]] = leaf.Hash()
	root := NewBranch(children, nil)

	nodes := map[[32]byte][]byte{
		root.Hash(): root.Encode(),
		leaf.Hash(): leaf.Encode(),
	}

	tr, err := ranking.NewEWMATracker(4)
	require.NoError(t, err)
	peer := &nodeServingPeer{id: "p", delay: time.Millisecond, nodes: nodes}
	tr.RegisterPeer(peer)

	store := NewMemStore()
	d := NewDownloader(store, tr)
	d.RegisterPeer(peer)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	d.Start(ctx)

	value, downloads, err := probeTrie(ctx, d, root.Hash(), key[:])
	require.NoError(t, err)
	require.Equal(t, []byte("account-bytes"), value)
	require.Equal(t, 2, downloads)
}

func TestProbeTrieReturnsNotFoundForAbsentKey(t *testing.T) {
	var present, absent [32]byte
	present[0], absent[0] = 0x10, 0x20

	leaf := NewLeaf(nibbles(present[:])[1:], []byte("account-bytes"))
	var children [16][32]byte
	children[nibbles(present[:])[0]] = leaf.Hash()
	root := NewBranch(children, nil)

	nodes := map[[32]byte][]byte{
		root.Hash(): root.Encode(),
		leaf.Hash(): leaf.Encode(),
	}

	tr, err := ranking.NewEWMATracker(4)
	require.NoError(t, err)
	peer := &nodeServingPeer{id: "p", delay: time.Millisecond, nodes: nodes}
	tr.RegisterPeer(peer)

	store := NewMemStore()
	d := NewDownloader(store, tr)
	d.RegisterPeer(peer)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	d.Start(ctx)

	_, _, err = probeTrie(ctx, d, root.Hash(), absent[:])
	require.ErrorIs(t, err, errTrieKeyNotFound)
}
