package signals

import (
	"github.com/prometheus/client_golang/prometheus"
)

const (
	kindURL     = "url"
	kindContent = "content"
	kindReady   = "ready"
)

var (
	SignalsRecordedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "signals_recorded_total",
			Help: "Count of signals written to the signal store by kind.",
		},
		[]string{"kind"},
	)

	SignalsStaleDroppedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "signals_stale_dropped_total",
			Help: "Count of signals dropped because they belong to a superseded navigation.",
		},
		[]string{"kind"},
	)

	StoreEvictionsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "signal_store_evictions_total",
		Help: "Count of tabs evicted from the signal store.",
	})

	StoreTabs = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "signal_store_tabs",
		Help: "Number of tabs currently held by the signal store.",
	})

	VerdictsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "verdicts_total",
			Help: "Count of delivered verdicts by decision.",
		},
		[]string{"decision"},
	)
)

func init() {
	prometheus.MustRegister(SignalsRecordedTotal, SignalsStaleDroppedTotal, StoreEvictionsTotal, StoreTabs, VerdictsTotal)
}
