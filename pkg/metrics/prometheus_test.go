package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecorderCounts(t *testing.T) {
	r := New(prometheus.NewRegistry())

	r.RecordFetch("EURUSD", "ok", 0.2)
	r.RecordFetch("EURUSD", "ok", 0.1)
	r.RecordFetch("EURUSD", "discarded", 0)
	r.RecordReveal("EURUSD", 1.0842)
	r.RecordBuffered("EURUSD", 150)
	r.RecordMessageSent("kafka", "EURUSD")
	r.RecordError("fetch_error")

	assert.Equal(t, 2.0, testutil.ToFloat64(r.fetches.WithLabelValues("EURUSD", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.fetches.WithLabelValues("EURUSD", "discarded")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.reveals.WithLabelValues("EURUSD")))
	assert.InDelta(t, 1.0842, testutil.ToFloat64(r.lastPrice.WithLabelValues("EURUSD")), 1e-9)
	assert.Equal(t, 150.0, testutil.ToFloat64(r.buffered.WithLabelValues("EURUSD")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.messagesSent.WithLabelValues("kafka", "EURUSD")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.errorsTotal.WithLabelValues("fetch_error")))
}
