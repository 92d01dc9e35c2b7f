package errors

import (
	"context"
	"reflect"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/armorclaw/pitchscope/pkg/logger"
)

// ErrorHandler is the hook a host framework calls when a component's
// render, lifecycle or watcher callback fails and nothing else handles it.
type ErrorHandler func(err error, vm Component, info string)

// WindowErrorHandler is the hook a host runtime calls for uncaught faults
type WindowErrorHandler func(message, source string, lineno, colno int, err error)

// App is the hosting framework the aggregator installs into
type App interface {
	SetErrorHandler(ErrorHandler)
	Provide(key string, value any)
}

// Window is the host runtime's top-level uncaught-fault notification
type Window interface {
	SetOnError(WindowErrorHandler)
}

// Metrics receives capture counters. Implementations must be safe for
// concurrent use.
type Metrics interface {
	RecordCapture(origin string)
	RecordEvicted()
	RecordCleared(n int)
	RecordSinkDropped()
	SetLogSize(n int)
}

// Sink persists records outside the process
type Sink interface {
	Save(ctx context.Context, rec ErrorRecord) error
}

const (
	defaultSinkBuffer  = 256
	defaultSinkTimeout = 5 * time.Second
)

// AggregatorConfig configures an Aggregator
type AggregatorConfig struct {
	// MaxRecords bounds the log; 0 uses DefaultMaxRecords, negative is unbounded
	MaxRecords int

	// Logger receives the diagnostic stream (defaults to the global logger)
	Logger *logger.Logger

	Metrics Metrics

	// Sink, when set, receives every record asynchronously
	Sink        Sink
	SinkBuffer  int
	SinkTimeout time.Duration

	// Now overrides the clock (tests)
	Now func() time.Time
}

// Aggregator is the single sink for uncaught faults of one application
// instance. Construct it once at startup, Install it into the host and pass
// the returned Handle to whatever needs to read or clear the log.
type Aggregator struct {
	log      *ErrorLog
	diag     *logger.DiagnosticLogger
	metrics  Metrics
	notifier *notifier
	now      func() time.Time

	pubMu sync.RWMutex

	mu        sync.Mutex
	handle    *Handle
	installed bool

	sink        Sink
	sinkTimeout time.Duration
	sinkMu      sync.RWMutex
	sinkQueue   chan ErrorRecord
	sinkClosed  bool
	sinkDone    chan struct{}
}

// NewAggregator creates an aggregator and, if a sink is configured, starts
// the goroutine that feeds it.
func NewAggregator(cfg AggregatorConfig) *Aggregator {
	bound := cfg.MaxRecords
	if bound == 0 {
		bound = DefaultMaxRecords
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	a := &Aggregator{
		log:      NewErrorLog(bound),
		diag:     logger.NewDiagnosticLogger(cfg.Logger),
		metrics:  nilIfTypedNil(cfg.Metrics),
		notifier: newNotifier(),
		now:      now,
	}
	a.handle = &Handle{agg: a}

	if cfg.Sink != nil {
		buf := cfg.SinkBuffer
		if buf <= 0 {
			buf = defaultSinkBuffer
		}
		a.sink = cfg.Sink
		a.sinkTimeout = cfg.SinkTimeout
		if a.sinkTimeout <= 0 {
			a.sinkTimeout = defaultSinkTimeout
		}
		a.sinkQueue = make(chan ErrorRecord, buf)
		a.sinkDone = make(chan struct{})
		go a.drainSink()
	}

	return a
}

// nilIfTypedNil turns a nil pointer wrapped in the Metrics interface into a
// plain nil so the collaborator is skipped instead of dereferenced.
func nilIfTypedNil(m Metrics) Metrics {
	if m == nil {
		return nil
	}
	v := reflect.ValueOf(m)
	switch v.Kind() {
	case reflect.Ptr, reflect.Map, reflect.Func, reflect.Interface, reflect.Slice, reflect.Chan:
		if v.IsNil() {
			return nil
		}
	}
	return m
}

// Install registers both capture hooks and publishes the handle under
// ProvideKey. window may be nil when the host has no global hook. Calling
// Install again returns the same handle without re-registering the hooks.
func (a *Aggregator) Install(app App, window Window) *Handle {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.installed {
		return a.handle
	}

	if app != nil {
		app.SetErrorHandler(a.CaptureBoundary)
	}
	if window != nil {
		window.SetOnError(a.CaptureWindow)
	}
	if app != nil {
		app.Provide(ProvideKey, a.handle)
	}
	a.installed = true

	return a.handle
}

// Installed reports whether Install has been called
func (a *Aggregator) Installed() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.installed
}

// Handle returns the consumer handle
func (a *Aggregator) Handle() *Handle {
	return a.handle
}

// CaptureWindow is capture path A: a global uncaught fault
func (a *Aggregator) CaptureWindow(message, source string, lineno, colno int, err error) {
	a.Capture(WindowFault{
		Message: message,
		Source:  source,
		Lineno:  lineno,
		Colno:   colno,
		Err:     err,
	})
}

// CaptureBoundary is capture path B: a fault intercepted by a component
// error boundary.
func (a *Aggregator) CaptureBoundary(err error, vm Component, info string) {
	a.Capture(BoundaryFault{
		Err:       err,
		Component: vm,
		Info:      info,
	})
}

// Capture writes f to the diagnostic stream and appends it to the log.
// It never panics; ok is false only if normalization itself failed, in which
// case nothing was appended. Once a record is in the log, metrics, subscribers
// and the sink each run in isolation so one failing collaborator cannot hide
// the record from the others.
func (a *Aggregator) Capture(f Fault) (rec ErrorRecord, ok bool) {
	if f == nil {
		return ErrorRecord{}, false
	}

	// append and notify under pubMu so SubscribeSnapshot sees each record
	// either in its snapshot or as an event, never both
	a.pubMu.RLock()
	rec, evicted, ok := a.appendFault(f)
	if ok {
		published := rec
		a.isolate("notify", func() {
			a.notifier.publish(Event{Type: EventCaptured, Record: &published}, a.diag.LogSubscriberPanic)
		})
	}
	a.pubMu.RUnlock()
	if !ok {
		return ErrorRecord{}, false
	}

	a.isolate("metrics", func() {
		if a.metrics == nil {
			return
		}
		a.metrics.RecordCapture(string(rec.Origin()))
		if evicted {
			a.metrics.RecordEvicted()
		}
		a.metrics.SetLogSize(a.log.Len())
	})

	a.isolate("sink", func() { a.enqueue(rec) })

	return rec, true
}

func (a *Aggregator) appendFault(f Fault) (rec ErrorRecord, evicted, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			a.diag.LogCaptureFailure(string(f.Origin()), r)
			rec, evicted, ok = ErrorRecord{}, false, false
		}
	}()

	f.diagnose(a.diag)

	rec = f.record()
	rec.ID = uuid.NewString()
	rec.CapturedAt = a.now()

	rec, evicted = a.log.Append(rec)
	return rec, evicted, true
}

// isolate runs one post-append side effect, logging instead of propagating
// a panic.
func (a *Aggregator) isolate(stage string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			a.diag.LogCollaboratorPanic(stage, r)
		}
	}()
	fn()
}

// Errors returns a snapshot of the log in capture order
func (a *Aggregator) Errors() []ErrorRecord {
	return a.log.Snapshot()
}

// Len returns the number of records in the log
func (a *Aggregator) Len() int {
	return a.log.Len()
}

// Evicted returns how many records the retention bound has dropped
func (a *Aggregator) Evicted() uint64 {
	return a.log.Evicted()
}

// MaxRecords returns the retention bound (non-positive means unbounded)
func (a *Aggregator) MaxRecords() int {
	return a.log.Capacity()
}

// Clear atomically replaces the log with an empty one and returns how many
// records it removed. Hooks stay registered.
func (a *Aggregator) Clear() int {
	a.pubMu.RLock()
	removed := a.log.Clear()
	a.isolate("notify", func() {
		a.notifier.publish(Event{Type: EventCleared, Cleared: removed}, a.diag.LogSubscriberPanic)
	})
	a.pubMu.RUnlock()

	a.isolate("metrics", func() {
		if a.metrics == nil {
			return
		}
		a.metrics.RecordCleared(removed)
		a.metrics.SetLogSize(0)
	})

	return removed
}

// Subscribe registers fn to receive log events. Events are delivered
// synchronously on the capturing goroutine, so fn must not block or call
// back into the aggregator.
func (a *Aggregator) Subscribe(fn func(Event)) func() {
	return a.notifier.subscribe(fn)
}

// SubscribeSnapshot returns the current log and registers fn in one step:
// every later capture or clear reaches fn, and nothing already in the
// snapshot does.
func (a *Aggregator) SubscribeSnapshot(fn func(Event)) ([]ErrorRecord, func()) {
	a.pubMu.Lock()
	defer a.pubMu.Unlock()

	snapshot := a.log.Snapshot()
	return snapshot, a.notifier.subscribe(fn)
}

// Subscribers returns the number of active subscribers
func (a *Aggregator) Subscribers() int {
	return a.notifier.count()
}

func (a *Aggregator) enqueue(rec ErrorRecord) {
	if a.sink == nil {
		return
	}

	a.sinkMu.RLock()
	defer a.sinkMu.RUnlock()
	if a.sinkClosed {
		return
	}

	select {
	case a.sinkQueue <- rec:
	default:
		a.diag.LogSinkDropped(rec.ID)
		a.isolate("metrics", func() {
			if a.metrics != nil {
				a.metrics.RecordSinkDropped()
			}
		})
	}
}

func (a *Aggregator) drainSink() {
	defer close(a.sinkDone)

	for rec := range a.sinkQueue {
		ctx, cancel := context.WithTimeout(context.Background(), a.sinkTimeout)
		if err := a.sink.Save(ctx, rec); err != nil {
			a.diag.LogSinkFailure(rec.ID, err)
		}
		cancel()
	}
}

// Close stops feeding the sink after flushing queued records. Capture keeps
// working on the in-memory log after Close.
func (a *Aggregator) Close() error {
	if a.sink == nil {
		return nil
	}

	a.sinkMu.Lock()
	if !a.sinkClosed {
		a.sinkClosed = true
		close(a.sinkQueue)
	}
	a.sinkMu.Unlock()

	<-a.sinkDone
	return nil
}
