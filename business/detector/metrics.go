package detector

import (
	"errors"

	"phishSentinel/business/ensemble"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	outcomeApplied = "applied"
	outcomeSkipped = "skipped"
	outcomeError   = "error"

	jobVerdict = "verdict"
	jobForget  = "forget"
)

var (
	EventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "detector_events_total",
			Help: "Count of pipeline events by type and outcome.",
		},
		[]string{"type", "outcome"},
	)

	EventDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "detector_event_duration_seconds",
			Help:    "Time spent applying one pipeline event.",
			Buckets: []float64{0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25},
		},
		[]string{"type"},
	)

	ScoringFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "detector_scoring_failures_total",
			Help: "Count of scoring failures by model and failure kind.",
		},
		[]string{"model", "kind"},
	)

	DeliveryFailuresTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "detector_delivery_failures_total",
		Help: "Count of verdict deliveries that returned an error.",
	})

	DeliveriesDroppedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "detector_deliveries_dropped_total",
			Help: "Count of delivery jobs dropped because the delivery queue was full.",
		},
		[]string{"job"},
	)
)

func init() {
	prometheus.MustRegister(EventsTotal, EventDuration, ScoringFailuresTotal, DeliveryFailuresTotal, DeliveriesDroppedTotal)
}

func failureKind(err error) string {
	var corrupt *ensemble.ModelCorruptionError
	switch {
	case errors.Is(err, ensemble.ErrNotReady):
		return "not_ready"
	case errors.As(err, &corrupt):
		return "corruption"
	default:
		return "other"
	}
}
