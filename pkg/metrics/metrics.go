package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Round metrics
	RoundsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gentle_drain_rounds_total",
			Help: "Total number of drain rounds by result (progress, backoff, complete, error)",
		},
		[]string{"result"},
	)

	BackoffsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gentle_drain_backoffs_total",
			Help: "Total number of backed off rounds by reason",
		},
		[]string{"reason"},
	)

	RoundDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "gentle_drain_round_duration_seconds",
			Help:    "Time taken by a drain round in seconds, including the latency benchmark",
			Buckets: []float64{0.5, 1, 2.5, 5, 10, 15, 30, 60, 120},
		},
	)

	CommandDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "gentle_drain_command_duration_seconds",
			Help:    "Time taken by ceph and rados invocations in seconds",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 15, 30, 60},
		},
		[]string{"command"},
	)

	// Cluster signals
	TargetWeight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "gentle_drain_target_weight",
			Help: "Sum of the CRUSH weights of the target OSDs at the start of the last round",
		},
	)

	OSDCrushWeight = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "gentle_drain_osd_crush_weight",
			Help: "Last CRUSH weight written to a target OSD",
		},
		[]string{"osd"},
	)

	ActiveBackfills = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "gentle_drain_active_backfills",
			Help: "Backfilling placement groups observed in the last round",
		},
	)

	WriteLatency = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "gentle_drain_write_latency_milliseconds",
			Help: "Average write latency measured by the last benchmark",
		},
	)

	WeightRemovedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "gentle_drain_weight_removed_total",
			Help: "Nominal CRUSH weight removed across all rounds",
		},
	)
)

func init() {
	prometheus.MustRegister(RoundsTotal)
	prometheus.MustRegister(BackoffsTotal)
	prometheus.MustRegister(RoundDuration)
	prometheus.MustRegister(CommandDuration)
	prometheus.MustRegister(TargetWeight)
	prometheus.MustRegister(OSDCrushWeight)
	prometheus.MustRegister(ActiveBackfills)
	prometheus.MustRegister(WriteLatency)
	prometheus.MustRegister(WeightRemovedTotal)
}

// Handler returns the Prometheus HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}
