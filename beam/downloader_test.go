package beam

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/harborlabs/corebeacon/beam/ranking"
)

// nodeServingPeer answers GetNodeData out of a fixed trie-node dataset,
// simulating a peer that already holds the whole trie being probed.
type nodeServingPeer struct {
	id    string
	delay time.Duration
	fail  bool
	nodes map[[32]byte][]byte
}

func (p *nodeServingPeer) ID() string { return p.id }

func (p *nodeServingPeer) GetNodeData(ctx context.Context, hashes [][32]byte) ([]NodeData, error) {
	select {
	case <-time.After(p.delay):
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	if p.fail {
		return nil, errPeerFailed
	}
	var out []NodeData
	for _, h := range hashes {
		if b, ok := p.nodes[h]; ok {
			out = append(out, NodeData{Hash: h, Bytes: b})
		}
	}
	return out, nil
}

var errPeerFailed = errTest("peer failed")

type errTest string

func (e errTest) Error() string { return string(e) }

func newTrackerWithPeers(t *testing.T, peers ...Peer) (*ranking.EWMATracker, []Peer) {
	t.Helper()
	tr, err := ranking.NewEWMATracker(16)
	require.NoError(t, err)
	for _, p := range peers {
		tr.RegisterPeer(p)
	}
	return tr, peers
}

// TestEnsureNodesPresentUrgentRace matches the "Downloader urgent race"
// end-to-end scenario: a fast and a slow peer race for the same urgent
// batch (both start with the same seed latency, so either may be picked
// as queen), and the first responder's data is stored without the slow
// responder corrupting the result once it eventually returns.
func TestEnsureNodesPresentUrgentRace(t *testing.T) {
	var hash [32]byte
	hash[0] = 0x42
	nodes := map[[32]byte][]byte{hash: {1, 2, 3}}

	fast := &nodeServingPeer{id: "fast", delay: time.Millisecond, nodes: nodes}
	slow := &nodeServingPeer{id: "slow", delay: 200 * time.Millisecond, nodes: nodes}
	tr, _ := newTrackerWithPeers(t, fast, slow)
	tr.SetDesiredKnightCount(1)

	store := NewMemStore()
	d := NewDownloader(store, tr)
	d.RegisterPeer(fast)
	d.RegisterPeer(slow)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	d.Start(ctx)

	err := d.EnsureNodesPresent(ctx, [][32]byte{hash})
	require.NoError(t, err)
	require.True(t, store.Has(hash))
}

func TestEnsureNodesPresentSkipsAlreadyResolvedHashes(t *testing.T) {
	var hash [32]byte
	hash[0] = 0x7

	store := NewMemStore()
	store.Put(hash, []byte{1, 2, 3})

	tr, err := ranking.NewEWMATracker(4)
	require.NoError(t, err)
	d := NewDownloader(store, tr)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	// No peers registered at all; if EnsureNodesPresent tried to fetch it
	// would block forever and this test would time out.
	err = d.EnsureNodesPresent(ctx, [][32]byte{hash})
	require.NoError(t, err)
}

func TestEnsureNodesPresentChunksBatchesLargerThanMaxBatchHashes(t *testing.T) {
	hashes := make([][32]byte, MaxBatchHashes+5)
	nodes := make(map[[32]byte][]byte, len(hashes))
	for i := range hashes {
		hashes[i][0] = byte(i)
		hashes[i][1] = byte(i >> 8)
		nodes[hashes[i]] = []byte{byte(i)}
	}

	peer := &nodeServingPeer{id: "bulk", delay: time.Millisecond, nodes: nodes}
	tr, _ := newTrackerWithPeers(t, peer)

	store := NewMemStore()
	d := NewDownloader(store, tr)
	d.RegisterPeer(peer)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	d.Start(ctx)

	err := d.EnsureNodesPresent(ctx, hashes)
	require.NoError(t, err)
	for _, h := range hashes {
		require.True(t, store.Has(h))
	}
}

// buildTwoAccountTrie constructs a two-leaf trie: a root branch keyed on
// the first nibble of each address hash, with a leaf per account carrying
// the remaining nibbles as its path. It returns the root hash and the node
// dataset a peer would need to serve the whole trie.
func buildTwoAccountTrie(h1, h2 [32]byte, v1, v2 []byte) ([32]byte, map[[32]byte][]byte) {
	leaf1 := NewLeaf(nibbles(h1[:])[1:], v1)
	leaf2 := NewLeaf(nibbles(h2[:])[1:], v2)

	var children [16][32]byte
	children[nibbles(h1[:])[0]] = leaf1.Hash()
	children[nibbles(h2[:])[0]] = leaf2.Hash()
	root := NewBranch(children, nil)

	nodes := map[[32]byte][]byte{
		root.Hash():  root.Encode(),
		leaf1.Hash(): leaf1.Encode(),
		leaf2.Hash(): leaf2.Encode(),
	}
	return root.Hash(), nodes
}

func TestDownloadAccountsProbesTrieViaUrgentPipeline(t *testing.T) {
	var h1, h2 [32]byte
	h1[0], h2[0] = 0x10, 0x20
	v1, v2 := []byte("account-one"), []byte("account-two")

	root, nodes := buildTwoAccountTrie(h1, h2, v1, v2)

	peerA := &nodeServingPeer{id: "a", delay: time.Millisecond, nodes: nodes}
	tr, _ := newTrackerWithPeers(t, peerA)

	store := NewMemStore()
	d := NewDownloader(store, tr)
	d.RegisterPeer(peerA)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	d.Start(ctx)

	results, downloads, err := d.DownloadAccounts(ctx, root, [][32]byte{h1, h2})
	require.NoError(t, err)
	require.Equal(t, v1, results[h1])
	require.Equal(t, v2, results[h2])
	require.Greater(t, downloads, 0)
}

func TestDownloadAccountProbesSingleKey(t *testing.T) {
	var h1, h2 [32]byte
	h1[0], h2[0] = 0x10, 0x20
	v1, v2 := []byte("account-one"), []byte("account-two")

	root, nodes := buildTwoAccountTrie(h1, h2, v1, v2)

	peerA := &nodeServingPeer{id: "a", delay: time.Millisecond, nodes: nodes}
	tr, _ := newTrackerWithPeers(t, peerA)

	store := NewMemStore()
	d := NewDownloader(store, tr)
	d.RegisterPeer(peerA)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	d.Start(ctx)

	value, downloads, err := d.DownloadAccount(ctx, root, h1)
	require.NoError(t, err)
	require.Equal(t, v1, value)
	require.Greater(t, downloads, 0)
}

func TestAdjustSpreadFactorClampsAtMinPredictivePeers(t *testing.T) {
	tr, err := ranking.NewEWMATracker(4)
	require.NoError(t, err)
	store := NewMemStore()
	d := NewDownloader(store, tr)
	d.minPredictive = 2

	// With only one peer registered, peers-1-minPredictivePeers is
	// negative; the spread factor must clamp at zero, never go negative.
	d.RegisterPeer(&nodeServingPeer{id: "solo"})
	require.GreaterOrEqual(t, d.spreadFactor, 0)
	require.Equal(t, 1, d.currentSpreadFactor())
}

func TestPredictiveLoopTimeoutDecrementsMinPredictivePeers(t *testing.T) {
	tr, err := ranking.NewEWMATracker(4)
	require.NoError(t, err)
	store := NewMemStore()
	d := NewDownloader(store, tr)
	d.minPredictive = 3

	ctx, cancel := context.WithTimeout(context.Background(), 2*DefaultPredictivePopTimeout)
	defer cancel()
	// No peers and nothing enqueued: the predictive loop's first pop times
	// out after DefaultPredictivePopTimeout, which must lower minPredictive.
	go d.predictiveLoop(ctx)

	require.Eventually(t, func() bool {
		d.mu.Lock()
		defer d.mu.Unlock()
		return d.minPredictive < 3
	}, time.Second, 10*time.Millisecond)
}

func TestPrefetchAccountsResolvesViaPredictivePipeline(t *testing.T) {
	var h1, h2 [32]byte
	h1[0], h2[0] = 1, 2
	nodes := map[[32]byte][]byte{h1: {1}, h2: {2}}

	peerA := &nodeServingPeer{id: "a", delay: time.Millisecond, nodes: nodes}
	tr, _ := newTrackerWithPeers(t, peerA)

	store := NewMemStore()
	d := NewDownloader(store, tr)
	d.RegisterPeer(peerA)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	d.Start(ctx)

	d.PrefetchAccounts([][32]byte{h1, h2})

	require.Eventually(t, func() bool {
		return store.Has(h1) && store.Has(h2)
	}, time.Second, 10*time.Millisecond)
}
