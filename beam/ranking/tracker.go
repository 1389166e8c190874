// Package ranking implements the queen/knight/peasant peer-ranking
// contract of spec.md §4.I: a pluggable tracker the beam downloader
// consults to pick the fastest known peer (the queen), a handful of
// secondary fan-out peers (knights), and any other available peer
// (a peasant).
//
// The concrete EWMATracker ranks peers by an exponentially-weighted
// moving average of round-trip latency, the naive strategy spec.md §9
// names explicitly, backed by an LRU so that latency history survives a
// peer's deregister/reregister cycle within one process lifetime (a
// supplemented behaviour; see DESIGN.md).
package ranking

import (
	"context"
	"sort"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru"
	"github.com/paulbellamy/ratecounter"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/sirupsen/logrus"
)

var log = logrus.WithField("prefix", "beam/ranking")

var queenPenalties = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "corebeacon",
	Subsystem: "beam_ranking",
	Name:      "queen_penalties_total",
	Help:      "Number of times a queen/peasant candidate was penalized for a failed or empty response.",
})

// Peer is the minimal peer handle the tracker ranks and hands back to the
// downloader. It intentionally carries no RPC surface: that lives on the
// downloader's own Peer interface, which embeds this one.
type Peer interface {
	ID() string
}

// Tracker is the contract of spec.md §4.I.
type Tracker interface {
	GetQueenPeer(ctx context.Context) (Peer, error)
	PopKnights() []Peer
	PopFastestPeasant(ctx context.Context) (Peer, error)
	InsertPeer(p Peer)
	PenalizeQueen(p Peer)
	SetDesiredKnightCount(n int)
	RecordDelivery(p Peer, nodeCount int)
}

// peerPenaltyCeiling is the EWMA latency assigned to a peer that has just
// been penalized, well above any real RTT, so it reliably loses queen
// selection until enough successful round trips pull it back down.
const peerPenaltyCeiling = 10 * time.Second

const ewmaAlpha = 0.3

// throughputWindow is the sliding window a peer's recent node-delivery rate
// is measured over when breaking near-ties in EWMA latency.
const throughputWindow = 30 * time.Second

type peerRecord struct {
	peer         Peer
	ewmaLatency  time.Duration
	checkedOutAt time.Time
	checkedOut   bool
	throughput   *throughputCounter
}

// score ranks rec for selection: lower is better. EWMA latency dominates,
// but a peer that has recently delivered more nodes per second is favored
// over a peer with statistically indistinguishable latency, so two peers
// racing to the same answer don't get chosen coin-flip at random forever.
func (rec *peerRecord) score() float64 {
	latency := float64(rec.ewmaLatency)
	rate := rec.throughput.rate()
	if rate <= 0 {
		return latency
	}
	return latency / float64(1+rate)
}

// EWMATracker is the concrete queen/knight/peasant implementation.
type EWMATracker struct {
	mu sync.Mutex

	records map[string]*peerRecord
	history *lru.Cache // peer ID -> time.Duration, survives deregistration

	desiredKnights int

	cond *sync.Cond
}

// NewEWMATracker constructs a tracker whose latency-history cache retains
// up to historySize peers across deregister/reregister cycles.
func NewEWMATracker(historySize int) (*EWMATracker, error) {
	cache, err := lru.New(historySize)
	if err != nil {
		return nil, errors.Wrap(err, "ranking: allocate latency history cache")
	}
	t := &EWMATracker{
		records:        make(map[string]*peerRecord),
		history:        cache,
		desiredKnights: 2,
	}
	t.cond = sync.NewCond(&t.mu)
	return t, nil
}

// RegisterPeer adds p to the rotation, seeding its EWMA latency from
// history if this peer ID was seen before.
func (t *EWMATracker) RegisterPeer(p Peer) {
	t.mu.Lock()
	defer t.mu.Unlock()

	latency := peerPenaltyCeiling / 2
	if cached, ok := t.history.Get(p.ID()); ok {
		latency = cached.(time.Duration)
	}
	t.records[p.ID()] = &peerRecord{peer: p, ewmaLatency: latency, throughput: newThroughputCounter(throughputWindow)}
	t.cond.Broadcast()
}

// DeregisterPeer removes p from the rotation; its latency history is
// retained in the LRU for a future RegisterPeer of the same ID.
func (t *EWMATracker) DeregisterPeer(p Peer) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if rec, ok := t.records[p.ID()]; ok {
		t.history.Add(p.ID(), rec.ewmaLatency)
		delete(t.records, p.ID())
	}
}

func (t *EWMATracker) availableLocked() []*peerRecord {
	out := make([]*peerRecord, 0, len(t.records))
	for _, rec := range t.records {
		if !rec.checkedOut {
			out = append(out, rec)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].score() < out[j].score() })
	return out
}

// GetQueenPeer returns the available peer with the lowest score (EWMA
// latency divided by one plus its recent node-delivery rate), blocking
// until one is registered and available or ctx is cancelled.
func (t *EWMATracker) GetQueenPeer(ctx context.Context) (Peer, error) {
	return t.popLowestLatency(ctx)
}

// PopFastestPeasant returns any available non-checked-out peer, blocking
// until one exists or ctx is cancelled. With this tracker, "fastest
// peasant" and "queen" draw from the same ranked pool; the distinction is
// in how the downloader uses the returned peer, not in tracker bookkeeping.
func (t *EWMATracker) PopFastestPeasant(ctx context.Context) (Peer, error) {
	return t.popLowestLatency(ctx)
}

func (t *EWMATracker) popLowestLatency(ctx context.Context) (Peer, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for {
		available := t.availableLocked()
		if len(available) > 0 {
			rec := available[0]
			rec.checkedOut = true
			rec.checkedOutAt = timeNow()
			return rec.peer, nil
		}
		if waitErr := t.waitOrCancel(ctx); waitErr != nil {
			return nil, waitErr
		}
	}
}

// waitOrCancel blocks on t.cond until woken, returning ctx.Err() if ctx is
// already done. t.mu must be held on entry and is re-acquired on return.
func (t *EWMATracker) waitOrCancel(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	done := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			t.mu.Lock()
			t.cond.Broadcast()
			t.mu.Unlock()
		case <-done:
		}
	}()
	t.cond.Wait()
	close(done)
	return ctx.Err()
}

// PopKnights removes and returns up to the desired knight count of the
// next-fastest available peers.
func (t *EWMATracker) PopKnights() []Peer {
	t.mu.Lock()
	defer t.mu.Unlock()

	available := t.availableLocked()
	n := t.desiredKnights
	if n > len(available) {
		n = len(available)
	}
	knights := make([]Peer, n)
	for i := 0; i < n; i++ {
		available[i].checkedOut = true
		available[i].checkedOutAt = timeNow()
		knights[i] = available[i].peer
	}
	return knights
}

// InsertPeer returns p to the rotation and folds the elapsed checkout
// duration into its EWMA latency estimate.
func (t *EWMATracker) InsertPeer(p Peer) {
	t.mu.Lock()
	defer t.mu.Unlock()

	rec, ok := t.records[p.ID()]
	if !ok {
		// Peer was deregistered while checked out; nothing to update.
		return
	}
	if rec.checkedOut {
		elapsed := timeNow().Sub(rec.checkedOutAt)
		rec.ewmaLatency = time.Duration(ewmaAlpha*float64(elapsed) + (1-ewmaAlpha)*float64(rec.ewmaLatency))
	}
	rec.checkedOut = false
	t.cond.Broadcast()
}

// PenalizeQueen records that a request to p failed or timed out, raising
// its EWMA latency so it loses queen/peasant selection until enough
// successful round trips pull it back down.
func (t *EWMATracker) PenalizeQueen(p Peer) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if rec, ok := t.records[p.ID()]; ok {
		rec.ewmaLatency = peerPenaltyCeiling
		queenPenalties.Inc()
		log.WithField("peer", p.ID()).Debug("penalized queen candidate")
	}
}

// SetDesiredKnightCount tunes how many peers PopKnights returns.
func (t *EWMATracker) SetDesiredKnightCount(n int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if n < 0 {
		n = 0
	}
	t.desiredKnights = n
}

// RecordDelivery folds a successful response of nodeCount trie nodes into
// p's throughput estimate, used by score to break near-ties in EWMA
// latency during queen/peasant selection.
func (t *EWMATracker) RecordDelivery(p Peer, nodeCount int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if rec, ok := t.records[p.ID()]; ok {
		rec.throughput.recordDelivery(nodeCount)
	}
}

var timeNow = time.Now

// throughputCounter tracks a peer's recent node-delivery rate over a
// sliding window, feeding peerRecord.score as a tiebreaker alongside EWMA
// latency.
type throughputCounter struct {
	counter *ratecounter.RateCounter
}

func newThroughputCounter(window time.Duration) *throughputCounter {
	return &throughputCounter{counter: ratecounter.NewRateCounter(window)}
}

func (c *throughputCounter) recordDelivery(n int) {
	c.counter.Incr(int64(n))
}

func (c *throughputCounter) rate() int64 {
	return c.counter.Rate()
}
