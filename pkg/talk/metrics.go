package talk

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	chunksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pixpal_chunks_total",
			Help: "Stream fragments by decode result",
		},
		[]string{"result"},
	)

	turnsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pixpal_turns_total",
			Help: "Sub-turns by outcome",
		},
		[]string{"outcome"},
	)

	turnDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pixpal_turn_duration_seconds",
			Help:    "Sub-turn duration from send to terminal condition",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"outcome"},
	)

	capturesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pixpal_captures_total",
			Help: "Vision captures by result",
		},
		[]string{"result"},
	)

	activeSessions = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "pixpal_active_sessions",
			Help: "Requests currently in flight",
		},
	)

	metricsOnce sync.Once
)

// InitMetrics registers the engine's Prometheus collectors on the
// default registry. Safe to call more than once.
func InitMetrics() {
	metricsOnce.Do(func() {
		prometheus.MustRegister(
			chunksTotal,
			turnsTotal,
			turnDuration,
			capturesTotal,
			activeSessions,
		)
	})
}

func recordChunk(result string) {
	chunksTotal.WithLabelValues(result).Inc()
}

func recordTurn(outcome string, d time.Duration) {
	turnsTotal.WithLabelValues(outcome).Inc()
	turnDuration.WithLabelValues(outcome).Observe(d.Seconds())
}

func recordCapture(result string) {
	capturesTotal.WithLabelValues(result).Inc()
}

func setActiveSessions(n int) {
	activeSessions.Set(float64(n))
}
