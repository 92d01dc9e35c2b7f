package logger

import (
	"context"
	"fmt"
	"log/slog"
)

// DiagnosticEventType identifies an entry on the diagnostic stream
type DiagnosticEventType string

const (
	WindowError       DiagnosticEventType = "window.onerror"
	BoundaryError     DiagnosticEventType = "app.config.errorHandler"
	CaptureFailure    DiagnosticEventType = "capture_failure"
	SubscriberPanic   DiagnosticEventType = "subscriber_panic"
	CollaboratorPanic DiagnosticEventType = "collaborator_panic"
	SinkDropped       DiagnosticEventType = "sink_dropped"
	SinkFailure       DiagnosticEventType = "sink_failure"
)

// DiagnosticLogger writes captured faults to the diagnostic stream.
// Every method is best-effort; a nil receiver logs to the global logger.
type DiagnosticLogger struct {
	logger *Logger
}

// NewDiagnosticLogger creates a diagnostic logger on top of base
func NewDiagnosticLogger(base *Logger) *DiagnosticLogger {
	if base == nil {
		base = Global()
	}
	return &DiagnosticLogger{logger: base.WithComponent("errors")}
}

func (dl *DiagnosticLogger) base() *Logger {
	if dl == nil || dl.logger == nil {
		return Global()
	}
	return dl.logger
}

func (dl *DiagnosticLogger) emit(ctx context.Context, level slog.Level, event DiagnosticEventType, attrs ...slog.Attr) {
	all := append([]slog.Attr{slog.String("event_type", string(event))}, attrs...)
	dl.base().LogAttrs(ctx, level, string(event), all...)
}

// LogWindowError records an uncaught fault reported by the host runtime
func (dl *DiagnosticLogger) LogWindowError(message, source string, lineno, colno int, err error) {
	dl.emit(context.Background(), slog.LevelError, WindowError,
		slog.String("message", message),
		slog.String("source", source),
		slog.Int("lineno", lineno),
		slog.Int("colno", colno),
		errAttr(err),
	)
}

// LogBoundaryError records a fault intercepted by a component error boundary
func (dl *DiagnosticLogger) LogBoundaryError(component, info string, err error) {
	dl.emit(context.Background(), slog.LevelError, BoundaryError,
		slog.String("vm", component),
		slog.String("info", info),
		errAttr(err),
	)
}

// LogCaptureFailure records a panic raised while capturing a fault
func (dl *DiagnosticLogger) LogCaptureFailure(origin string, recovered any) {
	dl.emit(context.Background(), slog.LevelError, CaptureFailure,
		slog.String("origin", origin),
		slog.String("panic", fmt.Sprint(recovered)),
	)
}

// LogSubscriberPanic records a panic raised by an event subscriber
func (dl *DiagnosticLogger) LogSubscriberPanic(recovered any) {
	dl.emit(context.Background(), slog.LevelWarn, SubscriberPanic,
		slog.String("panic", fmt.Sprint(recovered)),
	)
}

// LogCollaboratorPanic records a panic raised by a metrics, notify or sink
// step after a record was already appended
func (dl *DiagnosticLogger) LogCollaboratorPanic(stage string, recovered any) {
	dl.emit(context.Background(), slog.LevelError, CollaboratorPanic,
		slog.String("stage", stage),
		slog.String("panic", fmt.Sprint(recovered)),
	)
}

// LogSinkDropped records a record that could not be queued for persistence
func (dl *DiagnosticLogger) LogSinkDropped(recordID string) {
	dl.emit(context.Background(), slog.LevelWarn, SinkDropped,
		slog.String("record_id", recordID),
	)
}

// LogSinkFailure records a persistence failure
func (dl *DiagnosticLogger) LogSinkFailure(recordID string, err error) {
	dl.emit(context.Background(), slog.LevelWarn, SinkFailure,
		slog.String("record_id", recordID),
		errAttr(err),
	)
}

func errAttr(err error) slog.Attr {
	if err == nil {
		return slog.String("error", "<nil>")
	}
	return slog.String("error", safeError(err))
}

// safeError calls err.Error, tolerating implementations that panic
func safeError(err error) (msg string) {
	defer func() {
		if r := recover(); r != nil {
			msg = fmt.Sprintf("<%T: Error() panicked>", err)
		}
	}()
	return err.Error()
}
