package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain repository.Metrics using Prometheus.
type Recorder struct {
	fetches      *prometheus.CounterVec
	fetchLatency *prometheus.HistogramVec
	reveals      *prometheus.CounterVec
	lastPrice    *prometheus.GaugeVec
	buffered     *prometheus.GaugeVec
	messagesSent *prometheus.CounterVec
	errorsTotal  *prometheus.CounterVec
	latency      *prometheus.HistogramVec
}

// New creates a recorder registered on reg, or on the default registry when reg is nil.
func New(reg prometheus.Registerer) *Recorder {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)
	return &Recorder{
		fetches: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "forexdash_upstream_fetches_total",
				Help: "Upstream chunk fetches by outcome",
			},
			[]string{"symbol", "result"},
		),
		fetchLatency: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "forexdash_upstream_fetch_seconds",
				Help:    "Upstream chunk fetch latency",
				Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
			},
			[]string{"symbol"},
		),
		reveals: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "forexdash_ticks_revealed_total",
				Help: "Ticks made current by the poll cache",
			},
			[]string{"symbol"},
		),
		lastPrice: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "forexdash_last_price",
				Help: "Close of the current tick for a symbol",
			},
			[]string{"symbol"},
		),
		buffered: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "forexdash_buffered_ticks",
				Help: "Ticks held in a symbol window",
			},
			[]string{"symbol"},
		),
		messagesSent: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "forexdash_messages_sent_total",
				Help: "Total number of messages sent to a sink backend",
			},
			[]string{"backend", "symbol"},
		),
		errorsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "forexdash_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
		latency: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "forexdash_operation_duration_seconds",
				Help:    "Duration of operations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
	}
}

func (r *Recorder) RecordFetch(symbol, result string, seconds float64) {
	r.fetches.WithLabelValues(symbol, result).Inc()
	if result != "discarded" {
		r.fetchLatency.WithLabelValues(symbol).Observe(seconds)
	}
}

func (r *Recorder) RecordReveal(symbol string, price float64) {
	r.reveals.WithLabelValues(symbol).Inc()
	r.lastPrice.WithLabelValues(symbol).Set(price)
}

func (r *Recorder) RecordBuffered(symbol string, n int) {
	r.buffered.WithLabelValues(symbol).Set(float64(n))
}

// RecordMessageSent records a message sent to a backend.
func (r *Recorder) RecordMessageSent(backend, symbol string) {
	r.messagesSent.WithLabelValues(backend, symbol).Inc()
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

// RecordLatency records operation latency in seconds.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}

// Noop discards every observation.
type Noop struct{}

func (Noop) RecordFetch(string, string, float64) {}
func (Noop) RecordReveal(string, float64)        {}
func (Noop) RecordBuffered(string, int)          {}
func (Noop) RecordMessageSent(string, string)    {}
func (Noop) RecordError(string)                  {}
func (Noop) RecordLatency(string, float64)       {}
