// Package beam implements the on-demand state-trie downloader of
// spec.md §4.H: a service that resolves individual trie-node hashes
// against a swarm of peers, fast-pathing hashes the execution layer is
// blocked on (urgent) ahead of hashes it merely expects to need soon
// (predictive), using the queen/knight/peasant ranking contract of
// component I to choose which peers to ask.
package beam

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/schollz/progressbar/v3"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/harborlabs/corebeacon/beam/ranking"
)

var log = logrus.WithField("prefix", "beam")

type task struct {
	hashes [][32]byte
}

// Downloader is the urgent/predictive trie-node fetch pipeline described
// above. Construct with NewDownloader and start its background loops with
// Start before issuing any EnsureNodesPresent/DownloadAccount* calls.
type Downloader struct {
	store   Store
	tracker ranking.Tracker

	urgentQueue     chan task
	predictiveQueue chan task

	mu                    sync.Mutex
	peersByID             map[string]Peer
	waiters               map[[32]byte][]chan struct{}
	spreadFactor          int
	minPredictive         int
	urgentTimeout         time.Duration
	slowResponseThreshold time.Duration
}

// NewDownloader wires store and tracker into a ready-to-Start downloader.
func NewDownloader(store Store, tracker ranking.Tracker) *Downloader {
	return &Downloader{
		store:                 store,
		tracker:               tracker,
		urgentQueue:           make(chan task, DefaultUrgentQueueDepth),
		predictiveQueue:       make(chan task, DefaultPredictiveQueueDepth),
		peersByID:             make(map[string]Peer),
		waiters:               make(map[[32]byte][]chan struct{}),
		spreadFactor:          DefaultSpreadFactor,
		minPredictive:         DefaultMinPredictivePeers,
		urgentTimeout:         DefaultUrgentTimeout,
		slowResponseThreshold: DefaultUrgentSlowResponseThreshold,
	}
}

// Start launches the urgent loop, the predictive loop, and the spread
// factor decay ticker, all stopping when ctx is cancelled.
func (d *Downloader) Start(ctx context.Context) {
	go d.urgentLoop(ctx)
	go d.predictiveLoop(ctx)
	go d.decayLoop(ctx)
}

// RegisterPeer admits p into the peer swarm and hands it to the tracker via
// InsertPeer; the tracker only ranks peers it already has registered.
func (d *Downloader) RegisterPeer(p Peer) {
	d.mu.Lock()
	d.peersByID[p.ID()] = p
	d.mu.Unlock()
	d.tracker.InsertPeer(p)
	d.adjustSpreadFactor()
}

// DeregisterPeer removes p from the swarm. Any in-flight fetch already
// holding p simply completes or times out; it is not forcibly cancelled.
func (d *Downloader) DeregisterPeer(p Peer) {
	d.mu.Lock()
	delete(d.peersByID, p.ID())
	d.mu.Unlock()
	d.adjustSpreadFactor()
}

func (d *Downloader) peerCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.peersByID)
}

// adjustSpreadFactor moves the spread factor (the urgent knight count)
// toward the ceiling of peers-1-minPredictivePeers, clamped at zero, per
// spec.md §9's resolution of the max_spread_beam_factor Open Question: it
// grows by at most one per call, and a factor above the ceiling is lowered
// to the ceiling at once.
func (d *Downloader) adjustSpreadFactor() {
	d.mu.Lock()
	ceiling := len(d.peersByID) - 1 - d.minPredictive
	if ceiling < 0 {
		ceiling = 0
	}
	if d.spreadFactor < ceiling {
		d.spreadFactor++
	} else if d.spreadFactor > ceiling {
		d.spreadFactor = ceiling
	}
	sf := d.spreadFactor
	d.mu.Unlock()
	d.setSpreadFactor(sf)
}

// growSpreadFactorOnSlowResponse is urgent pipeline step 5: when an urgent
// batch's first non-empty response is slower than the downloader's
// slowResponseThreshold (DefaultUrgentSlowResponseThreshold unless
// overridden), grow the spread factor by one toward the same ceiling
// adjustSpreadFactor enforces, and mirror it into the tracker's desired
// knight count so future urgent batches fan out wider.
func (d *Downloader) growSpreadFactorOnSlowResponse() {
	d.mu.Lock()
	ceiling := len(d.peersByID) - 1 - d.minPredictive
	if ceiling < 0 {
		ceiling = 0
	}
	if d.spreadFactor < ceiling {
		d.spreadFactor++
	}
	sf := d.spreadFactor
	d.mu.Unlock()
	d.setSpreadFactor(sf)
}

// setSpreadFactor publishes n as the current spread factor and raises the
// tracker's desired knight count to match, per spec.md §4.H step 5:
// spread-factor growth "signals the tracker to raise the desired knight
// count" — the urgent path's fan-out width, not the predictive path's.
func (d *Downloader) setSpreadFactor(n int) {
	spreadFactorGauge.Set(float64(n))
	knights := n
	if knights < 1 {
		knights = 1
	}
	d.tracker.SetDesiredKnightCount(knights)
}

func (d *Downloader) decayLoop(ctx context.Context) {
	ticker := time.NewTicker(SpreadFactorDecayInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.mu.Lock()
			if d.spreadFactor > DefaultSpreadFactor {
				d.spreadFactor--
			}
			sf := d.spreadFactor
			d.mu.Unlock()
			d.setSpreadFactor(sf)
		}
	}
}

func (d *Downloader) currentSpreadFactor() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.spreadFactor < 1 {
		return 1
	}
	return d.spreadFactor
}

// decrementMinPredictive is predictive pipeline step 1: a predictive-batch
// poll that times out lowers min_predictive_peers, floored at zero.
func (d *Downloader) decrementMinPredictive() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.minPredictive > 0 {
		d.minPredictive--
	}
}

// incrementMinPredictive is predictive pipeline step 2: a peasant-pop that
// times out raises min_predictive_peers, capped at half of the peer count.
func (d *Downloader) incrementMinPredictive() {
	d.mu.Lock()
	defer d.mu.Unlock()
	ceiling := len(d.peersByID) / 2
	if d.minPredictive < ceiling {
		d.minPredictive++
	}
}

// EnsureNodesPresent blocks until every hash in hashes is resolved in the
// store, issuing an urgent fetch for whatever is missing. This is the call
// the execution layer makes when it is blocked on a specific set of
// trie nodes (spec.md §4.H urgent pipeline). Batches larger than
// MaxBatchHashes are split into separate queue entries so no single
// GetNodeData round trip is asked for more than a real client would serve.
func (d *Downloader) EnsureNodesPresent(ctx context.Context, hashes [][32]byte) error {
	missing := d.missingHashes(hashes)
	if len(missing) == 0 {
		return nil
	}

	waitChans := d.registerWaiters(missing)
	for _, chunk := range chunkHashes(missing, MaxBatchHashes) {
		t := task{hashes: chunk}
		select {
		case d.urgentQueue <- t:
			urgentQueueDepth.Set(float64(len(d.urgentQueue)))
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	for _, ch := range waitChans {
		select {
		case <-ch:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// DownloadAccount probes the account trie rooted at root for the account
// keyed by addressHash, fetching whatever trie nodes the local store is
// missing along the way. It returns the account's leaf bytes and how many
// nodes had to be downloaded to resolve them (spec.md §4.H).
func (d *Downloader) DownloadAccount(ctx context.Context, root [32]byte, addressHash [32]byte) ([]byte, int, error) {
	return probeTrie(ctx, d, root, addressHash[:])
}

// maxConcurrentTrieProbes bounds how many account/storage keys
// DownloadAccounts walks at once, so a large batch fans out across the
// urgent pipeline's peers instead of serializing one key at a time.
const maxConcurrentTrieProbes = 8

// DownloadAccounts probes the account trie rooted at root for every key in
// addressHashes, fanning the walks out across a bounded errgroup so
// independent keys resolve concurrently instead of queueing behind each
// other's trie fetches, and returns each account's leaf bytes keyed by its
// address hash plus the total number of trie nodes downloaded across the
// whole batch.
func (d *Downloader) DownloadAccounts(ctx context.Context, root [32]byte, addressHashes [][32]byte) (map[[32]byte][]byte, int, error) {
	bar := progressbar.NewOptions(len(addressHashes),
		progressbar.OptionSetDescription("beam: downloading accounts"),
		progressbar.OptionSetVisibility(false),
	)

	var mu sync.Mutex
	results := make(map[[32]byte][]byte, len(addressHashes))
	totalDownloads := 0

	g, gctx := errgroup.WithContext(ctx)
	sem := make(chan struct{}, maxConcurrentTrieProbes)
	for _, h := range addressHashes {
		h := h
		g.Go(func() error {
			sem <- struct{}{}
			defer func() { <-sem }()
			value, n, err := probeTrie(gctx, d, root, h[:])
			mu.Lock()
			totalDownloads += n
			if err == nil {
				results[h] = value
			}
			mu.Unlock()
			_ = bar.Add(1)
			if err != nil {
				return errors.Wrapf(err, "beam: download account %x", h)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, totalDownloads, err
	}
	return results, totalDownloads, nil
}

// DownloadStorage probes an account's storage trie rooted at storageRoot
// for every slot key in slotHashes, the same walk as DownloadAccounts
// applied to a storage trie instead of the account trie.
func (d *Downloader) DownloadStorage(ctx context.Context, storageRoot [32]byte, slotHashes [][32]byte) (map[[32]byte][]byte, int, error) {
	return d.DownloadAccounts(ctx, storageRoot, slotHashes)
}

func (d *Downloader) missingHashes(hashes [][32]byte) [][32]byte {
	out := make([][32]byte, 0, len(hashes))
	for _, h := range hashes {
		if !d.store.Has(h) {
			out = append(out, h)
		}
	}
	return out
}

// chunkHashes splits hashes into groups of at most size, mirroring the
// batch cap a real eth/6x GetNodeData exchange enforces per round trip.
func chunkHashes(hashes [][32]byte, size int) [][][32]byte {
	if len(hashes) == 0 {
		return nil
	}
	var chunks [][][32]byte
	for len(hashes) > 0 {
		n := size
		if n > len(hashes) {
			n = len(hashes)
		}
		chunks = append(chunks, hashes[:n])
		hashes = hashes[n:]
	}
	return chunks
}

func (d *Downloader) registerWaiters(hashes [][32]byte) []chan struct{} {
	d.mu.Lock()
	defer d.mu.Unlock()
	chans := make([]chan struct{}, len(hashes))
	for i, h := range hashes {
		ch := make(chan struct{})
		chans[i] = ch
		d.waiters[h] = append(d.waiters[h], ch)
	}
	return chans
}

func (d *Downloader) resolve(nodes []NodeData) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, n := range nodes {
		d.store.Put(n.Hash, n.Bytes)
		for _, ch := range d.waiters[n.Hash] {
			close(ch)
		}
		delete(d.waiters, n.Hash)
	}
}

// urgentLoop drains the urgent queue, fanning each batch out to the queen
// plus its knights and taking whichever peer answers first. This is the
// fast path spec.md §4.H requires for hashes blocking execution.
func (d *Downloader) urgentLoop(ctx context.Context) {
	for {
		var t task
		select {
		case <-ctx.Done():
			return
		case t = <-d.urgentQueue:
			urgentQueueDepth.Set(float64(len(d.urgentQueue)))
		}
		go d.runUrgentBatch(ctx, t)
	}
}

type urgentResponse struct {
	peer Peer
	data []NodeData
}

func (d *Downloader) runUrgentBatch(ctx context.Context, t task) {
	popped := time.Now()
	batchCtx, cancel := context.WithTimeout(ctx, d.urgentTimeout)
	defer cancel()

	queenRaw, err := d.tracker.GetQueenPeer(batchCtx)
	if err != nil {
		return
	}
	var peers []Peer
	if queen, ok := queenRaw.(Peer); ok {
		peers = append(peers, queen)
	} else {
		d.tracker.InsertPeer(queenRaw)
	}
	for _, p := range d.tracker.PopKnights() {
		if peer, ok := p.(Peer); ok {
			peers = append(peers, peer)
		} else {
			d.tracker.InsertPeer(p)
		}
	}
	if len(peers) == 0 {
		return
	}

	raceCtx, raceCancel := context.WithCancel(batchCtx)
	defer raceCancel()

	results := make(chan urgentResponse, len(peers))
	var wg sync.WaitGroup
	for _, p := range peers {
		wg.Add(1)
		go func(p Peer) {
			defer wg.Done()
			data, err := p.GetNodeData(raceCtx, t.hashes)
			if err != nil || len(data) == 0 {
				d.tracker.PenalizeQueen(p)
				return
			}
			select {
			case results <- urgentResponse{peer: p, data: data}:
				raceCancel()
			default:
			}
		}(p)
	}
	go func() {
		wg.Wait()
		close(results)
	}()

	select {
	case resp, ok := <-results:
		if ok {
			d.tracker.RecordDelivery(resp.peer, len(resp.data))
			d.resolve(resp.data)
			if time.Since(popped) > d.slowResponseThreshold {
				d.growSpreadFactorOnSlowResponse()
			}
		}
	case <-batchCtx.Done():
	}

	for _, p := range peers {
		d.tracker.InsertPeer(p)
	}
}

// pollOutcome is the result of a bounded pop attempt against either the
// predictive queue or the tracker's peasant pool.
type pollOutcome int

const (
	pollReady pollOutcome = iota
	pollTimedOut
	pollCancelled
)

// predictiveLoop is the single long-running predictive task of spec.md
// §4.H: pop a batch with a timeout (on timeout, lower min_predictive_peers
// and retry), then pop the fastest peasant with a timeout (on timeout,
// raise min_predictive_peers and release the batch back onto the queue),
// finally dispatching the whole batch to that one peasant. Unlike the
// urgent path there is no cancel-on-first-response race: predictive
// fetches aren't blocking anything, so a single peer is enough.
func (d *Downloader) predictiveLoop(ctx context.Context) {
	for {
		t, outcome := d.popPredictiveTask(ctx)
		switch outcome {
		case pollCancelled:
			return
		case pollTimedOut:
			d.decrementMinPredictive()
			continue
		}

		peer, outcome := d.popPeasant(ctx)
		switch outcome {
		case pollCancelled:
			return
		case pollTimedOut:
			d.incrementMinPredictive()
			d.requeuePredictive(t)
			continue
		}

		go d.dispatchPredictive(ctx, t, peer)
	}
}

func (d *Downloader) popPredictiveTask(ctx context.Context) (task, pollOutcome) {
	select {
	case t := <-d.predictiveQueue:
		predictiveQueueDepth.Set(float64(len(d.predictiveQueue)))
		return t, pollReady
	case <-time.After(DefaultPredictivePopTimeout):
		return task{}, pollTimedOut
	case <-ctx.Done():
		return task{}, pollCancelled
	}
}

func (d *Downloader) popPeasant(ctx context.Context) (Peer, pollOutcome) {
	popCtx, cancel := context.WithTimeout(ctx, DefaultPeasantPopTimeout)
	defer cancel()

	p, err := d.tracker.PopFastestPeasant(popCtx)
	if err != nil {
		if ctx.Err() != nil {
			return nil, pollCancelled
		}
		return nil, pollTimedOut
	}
	peer, ok := p.(Peer)
	if !ok {
		d.tracker.InsertPeer(p)
		return nil, pollTimedOut
	}
	return peer, pollReady
}

func (d *Downloader) requeuePredictive(t task) {
	select {
	case d.predictiveQueue <- t:
		predictiveQueueDepth.Set(float64(len(d.predictiveQueue)))
	default:
		log.Warn("beam: predictive queue full, dropping released batch")
	}
}

func (d *Downloader) dispatchPredictive(ctx context.Context, t task, p Peer) {
	defer d.tracker.InsertPeer(p)
	data, err := p.GetNodeData(ctx, t.hashes)
	if err != nil || len(data) == 0 {
		d.tracker.PenalizeQueen(p)
		return
	}
	d.tracker.RecordDelivery(p, len(data))
	d.resolve(data)
}

// PrefetchAccounts speculatively enqueues account trie-node hashes onto the
// predictive pipeline without blocking the caller for a result: a
// near-future block may need them, but nothing is currently stalled
// waiting on them, unlike DownloadAccounts' blocking trie walk (spec.md
// §4.H predictive pipeline).
func (d *Downloader) PrefetchAccounts(hashes [][32]byte) {
	missing := d.missingHashes(hashes)
	if len(missing) == 0 {
		return
	}
	for _, chunk := range chunkHashes(missing, MaxBatchHashes) {
		select {
		case d.predictiveQueue <- task{hashes: chunk}:
			predictiveQueueDepth.Set(float64(len(d.predictiveQueue)))
		default:
			log.Warn("beam: predictive queue full, dropping speculative prefetch")
		}
	}
}
