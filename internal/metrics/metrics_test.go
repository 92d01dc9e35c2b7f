package metrics

import (
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/armorclaw/pitchscope/pkg/errors"
)

func TestMetrics_ImplementsErrorMetrics(t *testing.T) {
	var _ errors.Metrics = New(nil)
}

func TestMetrics_CaptureCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.RecordCapture("window.onerror")
	m.RecordCapture("window.onerror")
	m.RecordCapture("app.config.errorHandler")
	m.RecordEvicted()
	m.RecordCleared(4)
	m.RecordSinkDropped()
	m.SetLogSize(7)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.capturedTotal.WithLabelValues("window.onerror")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.capturedTotal.WithLabelValues("app.config.errorHandler")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.evictedTotal))
	assert.Equal(t, 4.0, testutil.ToFloat64(m.clearedTotal))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.sinkDroppedTotal))
	assert.Equal(t, 7.0, testutil.ToFloat64(m.logSizeGauge))

	snap := m.GetSnapshot()
	assert.Equal(t, int64(2), snap["captured:window.onerror"])
	assert.Equal(t, int64(4), snap["cleared"])
	assert.Equal(t, int64(7), snap["log_size"])
}

func TestMetrics_Registered(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.RecordCapture("window.onerror")
	m.RecordRequest("pitch", 200, 3*time.Millisecond)
	m.RecordRateLimited()
	m.RecordToneRendered()
	m.RecordStoreCleanup(3)

	expected := `
# HELP pitchscope_errors_captured_total Total number of faults captured, by capture path
# TYPE pitchscope_errors_captured_total counter
pitchscope_errors_captured_total{origin="window.onerror"} 1
`
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "pitchscope_errors_captured_total"))

	count, err := testutil.GatherAndCount(reg, "pitchscope_http_requests_total", "pitchscope_tones_rendered_total")
	require.NoError(t, err)
	assert.Equal(t, 2, count)
	assert.Equal(t, 3.0, testutil.ToFloat64(m.storeCleaned))
}

func TestMetrics_WebSocketClients(t *testing.T) {
	m := New(nil)

	m.ClientConnected()
	m.ClientConnected()
	m.ClientDisconnected()

	assert.Equal(t, 1.0, testutil.ToFloat64(m.wsClients))
}

func TestMetrics_DoubleRegistrationPanics(t *testing.T) {
	reg := prometheus.NewRegistry()
	New(reg)
	assert.Panics(t, func() { New(reg) })
}

func TestMetrics_WithAggregator(t *testing.T) {
	m := New(prometheus.NewRegistry())
	agg := errors.NewAggregator(errors.AggregatorConfig{MaxRecords: 2, Metrics: m})
	defer agg.Close()

	agg.CaptureWindow("a", "app.js", 1, 1, nil)
	agg.CaptureWindow("b", "app.js", 1, 1, nil)
	agg.CaptureBoundary(nil, nil, "render")
	agg.Clear()

	assert.Equal(t, 2.0, testutil.ToFloat64(m.capturedTotal.WithLabelValues("window.onerror")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.evictedTotal))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.clearedTotal))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.logSizeGauge))
}
