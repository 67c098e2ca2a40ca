package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	SimulatorLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "forexdash",
			Subsystem: "simulator",
			Name:      "latency_seconds",
			Help:      "Latency of simulator endpoints",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"endpoint"},
	)

	SimulatorErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "forexdash",
			Subsystem: "simulator",
			Name:      "errors_total",
			Help:      "Errors by simulator endpoint",
		},
		[]string{"endpoint"},
	)

	SimulatorExhausted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "forexdash",
			Subsystem: "simulator",
			Name:      "exhausted_total",
			Help:      "Requests answered after a dataset ran out",
		},
		[]string{"endpoint"},
	)
)

func Register() {
	once.Do(func() {
		prometheus.MustRegister(SimulatorLatency, SimulatorErrors, SimulatorExhausted)
	})
}
