package beam

import "time"

// Tunables for the on-demand state-trie downloader. These are downloader
// policy, not consensus parameters, so they live alongside the package
// rather than in the params registry the state-transition engine reads.
const (
	// DefaultMinPredictivePeers is the initial number of peers held back
	// from the urgent pipeline for predictive fetches, per spec.md §9's
	// clamp-at-zero Open Question resolution: the spread factor (the urgent
	// pipeline's desired knight count) may grow up to
	// peers-1-minPredictivePeers, never negative.
	DefaultMinPredictivePeers = 2

	// DefaultSpreadFactor is the initial spread factor, i.e. the number of
	// knights an urgent batch fans out to besides the queen.
	DefaultSpreadFactor = 1

	// SpreadFactorDecayInterval is how often the spread factor is allowed
	// to decay back down by one, relieving peers once a burst of slow
	// urgent responses has passed.
	SpreadFactorDecayInterval = 2 * time.Minute

	// DefaultUrgentTimeout bounds how long an urgent fetch waits on any one
	// peer before that peer is penalized and the batch is considered
	// abandoned by it.
	DefaultUrgentTimeout = 2 * time.Second

	// DefaultUrgentSlowResponseThreshold is the "too-long" threshold of
	// spec.md §4.H step 5: an urgent batch whose first non-empty response
	// takes longer than this grows the spread factor, separate from (and
	// shorter than) DefaultUrgentTimeout, which abandons the batch outright.
	DefaultUrgentSlowResponseThreshold = 500 * time.Millisecond

	// DefaultUrgentQueueDepth and DefaultPredictiveQueueDepth bound the two
	// task queues so a pathological backlog cannot grow without limit.
	DefaultUrgentQueueDepth     = 256
	DefaultPredictiveQueueDepth = 1024

	// MaxBatchHashes caps how many trie-node hashes a single GetNodeData
	// round trip requests, mirroring a real eth/6x GetNodeData cap.
	MaxBatchHashes = 384

	// DefaultPredictivePopTimeout bounds how long the predictive loop waits
	// for a batch to appear on the predictive queue before treating the
	// poll as a timeout (spec.md §4.H predictive pipeline step 1).
	DefaultPredictivePopTimeout = 500 * time.Millisecond

	// DefaultPeasantPopTimeout bounds how long the predictive loop waits
	// for the tracker to hand back an available peasant peer (spec.md
	// §4.H predictive pipeline step 2).
	DefaultPeasantPopTimeout = 500 * time.Millisecond
)
