package epoch

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	epochTransitionDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "corebeacon",
		Subsystem: "epoch",
		Name:      "transition_duration_seconds",
		Help:      "Time spent running ProcessEpoch's five passes.",
		Buckets:   prometheus.DefBuckets,
	})
	slashingsProcessed = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "corebeacon",
		Subsystem: "epoch",
		Name:      "slashings_processed_total",
		Help:      "Number of validators penalized by ProcessSlashings.",
	})
	validatorsEjected = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "corebeacon",
		Subsystem: "epoch",
		Name:      "validators_ejected_total",
		Help:      "Number of validators ejected by ProcessRegistryUpdates.",
	})
)
