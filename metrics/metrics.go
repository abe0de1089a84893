// Package metrics wires the process-wide counters exposed at GET /metrics.
// Three separate repos in the retrieval pack (99souls-ariadne, NikeGunn-tutu,
// the ocx-backend reference) independently reach for prometheus/client_golang
// for exactly this purpose, so this is the natural home for it here.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"banditserve/atomicfloat"
)

var (
	DrawsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "banditserve_draws_total",
		Help: "Total number of Draw requests served across all experiments.",
	})

	UpdatesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "banditserve_updates_total",
		Help: "Total number of Update requests, labeled by outcome.",
	}, []string{"result"})

	CheckpointsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "banditserve_checkpoints_total",
		Help: "Total number of checkpoint snapshots handed to the StateStore.",
	})

	RestartsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "banditserve_restarts_total",
		Help: "Total number of Supervisor-initiated actor restarts.",
	})

	ExperimentsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "banditserve_experiments_active",
		Help: "Number of experiments currently registered in the Repository.",
	})
)

// RewardAccumulator is a lock-free running total of every reward ever
// recorded across every experiment: every Experiment actor's Update handler
// adds into it concurrently (one accumulator, many writer goroutines), and
// it is read without any lock by the admin reward-total endpoint. This is
// the direct generalization of the corpus's pattern of many worker
// goroutines atomically adding into shared AtomicFloat64 state cells.
var RewardAccumulator = atomicfloat.New(0)
