package metricsobs

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorderCountsOpsBytesAndErrors(t *testing.T) {
	reg := prometheus.NewRegistry()
	r := NewRecorder(reg)

	r.Observe("write", 4096, 10*time.Millisecond, nil)
	r.Observe("write", 4096, 12*time.Millisecond, nil)
	r.Observe("write", 0, 5*time.Millisecond, errors.New("boom"))

	assert.InDelta(t, 3, testutil.ToFloat64(r.opsTotal.WithLabelValues("write")), 0)
	assert.InDelta(t, 8192, testutil.ToFloat64(r.bytesTotal.WithLabelValues("write")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(r.errorsTotal.WithLabelValues("write")), 0)
}

func TestRecorderTracksQueueDepth(t *testing.T) {
	reg := prometheus.NewRegistry()
	r := NewRecorder(reg)

	r.ObserveQueueDepth(7)
	assert.InDelta(t, 7, testutil.ToFloat64(r.queueDepth), 0)

	r.ObserveQueueDepth(3)
	assert.InDelta(t, 3, testutil.ToFloat64(r.queueDepth), 0)
}

func TestHandlerServesRegisteredMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	r := NewRecorder(reg)
	r.Observe("stat", 0, time.Millisecond, nil)

	families, err := reg.Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, families)
	assert.NotNil(t, Handler(reg))
}
