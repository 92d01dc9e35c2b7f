// Package metrics provides Prometheus metrics collection for error capture
// and the pitch API
package metrics

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "pitchscope"

// Metrics tracks capture and API activity and syncs it with Prometheus.
// It implements errors.Metrics.
type Metrics struct {
	captured    map[string]int64
	evicted     int64
	cleared     int64
	sinkDropped int64
	logSize     int
	mu          sync.RWMutex

	capturedTotal    *prometheus.CounterVec
	evictedTotal     prometheus.Counter
	clearedTotal     prometheus.Counter
	sinkDroppedTotal prometheus.Counter
	logSizeGauge     prometheus.Gauge
	storeCleaned     prometheus.Counter

	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	rateLimited     prometheus.Counter
	tonesRendered   prometheus.Counter
	wsClients       prometheus.Gauge
}

// New creates a metrics collector and registers it with reg. A nil reg
// leaves the collectors unregistered.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		captured: make(map[string]int64),

		capturedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "errors_captured_total",
				Help:      "Total number of faults captured, by capture path",
			},
			[]string{"origin"},
		),
		evictedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "errors_evicted_total",
			Help:      "Total number of records evicted by the retention bound",
		}),
		clearedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "errors_cleared_total",
			Help:      "Total number of records removed by clear",
		}),
		sinkDroppedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "errors_sink_dropped_total",
			Help:      "Total number of records not persisted because the sink queue was full",
		}),
		logSizeGauge: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "errors_log_size",
			Help:      "Current number of records in the error log",
		}),
		storeCleaned: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "errors_store_cleaned_total",
			Help:      "Total number of stored records removed by retention cleanup",
		}),

		requestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of API requests",
			},
			[]string{"route", "code"},
		),
		requestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "API request latency",
				Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
			},
			[]string{"route"},
		),
		rateLimited: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_rate_limited_total",
			Help:      "Total number of requests rejected by the rate limiter",
		}),
		tonesRendered: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tones_rendered_total",
			Help:      "Total number of reference tones rendered",
		}),
		wsClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "ws_clients",
			Help:      "Number of connected error stream clients",
		}),
	}

	if reg != nil {
		reg.MustRegister(
			m.capturedTotal,
			m.evictedTotal,
			m.clearedTotal,
			m.sinkDroppedTotal,
			m.logSizeGauge,
			m.storeCleaned,
			m.requestsTotal,
			m.requestDuration,
			m.rateLimited,
			m.tonesRendered,
			m.wsClients,
		)
	}

	return m
}

// RecordCapture records a captured fault
func (m *Metrics) RecordCapture(origin string) {
	m.mu.Lock()
	m.captured[origin]++
	m.mu.Unlock()
	m.capturedTotal.WithLabelValues(origin).Inc()
}

// RecordEvicted records a record dropped by the retention bound
func (m *Metrics) RecordEvicted() {
	m.mu.Lock()
	m.evicted++
	m.mu.Unlock()
	m.evictedTotal.Inc()
}

// RecordCleared records a clear removing n records
func (m *Metrics) RecordCleared(n int) {
	m.mu.Lock()
	m.cleared += int64(n)
	m.mu.Unlock()
	m.clearedTotal.Add(float64(n))
}

// RecordSinkDropped records a record the persistence queue had no room for
func (m *Metrics) RecordSinkDropped() {
	m.mu.Lock()
	m.sinkDropped++
	m.mu.Unlock()
	m.sinkDroppedTotal.Inc()
}

// SetLogSize updates the error log size gauge
func (m *Metrics) SetLogSize(n int) {
	m.mu.Lock()
	m.logSize = n
	m.mu.Unlock()
	m.logSizeGauge.Set(float64(n))
}

// RecordStoreCleanup records a retention cleanup run
func (m *Metrics) RecordStoreCleanup(removed int64) {
	m.storeCleaned.Add(float64(removed))
}

// RecordRequest records a completed API request
func (m *Metrics) RecordRequest(route string, code int, duration time.Duration) {
	m.requestsTotal.WithLabelValues(route, strconv.Itoa(code)).Inc()
	m.requestDuration.WithLabelValues(route).Observe(duration.Seconds())
}

// RecordRateLimited records a request rejected by the limiter
func (m *Metrics) RecordRateLimited() {
	m.rateLimited.Inc()
}

// RecordToneRendered records a rendered reference tone
func (m *Metrics) RecordToneRendered() {
	m.tonesRendered.Inc()
}

// ClientConnected and ClientDisconnected track error stream clients
func (m *Metrics) ClientConnected()    { m.wsClients.Inc() }
func (m *Metrics) ClientDisconnected() { m.wsClients.Dec() }

// GetSnapshot returns a snapshot of the capture counters
func (m *Metrics) GetSnapshot() map[string]int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()

	snap := map[string]int64{
		"evicted":      m.evicted,
		"cleared":      m.cleared,
		"sink_dropped": m.sinkDropped,
		"log_size":     int64(m.logSize),
	}
	for origin, n := range m.captured {
		snap["captured:"+origin] = n
	}
	return snap
}
