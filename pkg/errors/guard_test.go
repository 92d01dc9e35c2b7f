package errors

import (
	stderrors "errors"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestGuard_RunCapturesPanic(t *testing.T) {
	agg, _ := newTestAggregator(t, AggregatorConfig{})
	g := NewGuard(agg)

	ok := g.Run(func() {
		panic("tuner stalled")
	})
	if ok {
		t.Error("Run() = true for a panicking function")
	}

	records := agg.Errors()
	if len(records) != 1 {
		t.Fatalf("len(Errors()) = %d, want 1", len(records))
	}
	rec := records[0]
	if rec.Message != "Panic: tuner stalled" {
		t.Errorf("Message = %q", rec.Message)
	}
	if rec.Origin() != OriginWindow {
		t.Errorf("Origin() = %q", rec.Origin())
	}
	if filepath.Base(rec.Context.Source) != "guard_test.go" || rec.Context.Lineno == 0 {
		t.Errorf("panic site = %s:%d, want guard_test.go", rec.Context.Source, rec.Context.Lineno)
	}
	if !strings.Contains(errorStack(rec.Err), "goroutine") {
		t.Error("panic fault should carry the goroutine stack")
	}
}

func TestGuard_RunErrorPanic(t *testing.T) {
	agg, _ := newTestAggregator(t, AggregatorConfig{})

	NewGuard(agg).Run(func() {
		panic(&NamedError{Name: "TypeError", Message: "undefined is not a function"})
	})

	if got := agg.Errors()[0].Message; got != "TypeError: undefined is not a function" {
		t.Errorf("Message = %q", got)
	}
}

func TestGuard_RunNoPanic(t *testing.T) {
	agg, _ := newTestAggregator(t, AggregatorConfig{})

	called := false
	if !NewGuard(agg).Run(func() { called = true }) {
		t.Error("Run() = false for a normal return")
	}
	if !called || agg.Len() != 0 {
		t.Errorf("called = %v, Len() = %d", called, agg.Len())
	}
}

func TestGuard_Go(t *testing.T) {
	agg, _ := newTestAggregator(t, AggregatorConfig{})

	captured := make(chan ErrorRecord, 1)
	agg.Subscribe(func(ev Event) {
		if ev.Type == EventCaptured {
			captured <- *ev.Record
		}
	})

	NewGuard(agg).Go(func() {
		panic(stderrors.New("analyser worker died"))
	})

	select {
	case rec := <-captured:
		if rec.Message != "Error: analyser worker died" {
			t.Errorf("Message = %q", rec.Message)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("panic in guarded goroutine was not captured")
	}
}

func TestGuard_BoundaryReturnedError(t *testing.T) {
	agg, _ := newTestAggregator(t, AggregatorConfig{})
	vm := ComponentMeta{Name: "PitchHandler", File: "pkg/http/handlers.go"}

	want := &NamedError{Name: "RangeError", Message: "hz out of range"}
	err := NewGuard(agg).Boundary(vm, "GET /api/pitch", func() error { return want })
	if !stderrors.Is(err, want) {
		t.Errorf("Boundary() error = %v, want %v", err, want)
	}

	rec := agg.Errors()[0]
	if rec.Message != "PitchHandler@GET /api/pitch: RangeError: hz out of range" {
		t.Errorf("Message = %q", rec.Message)
	}
}

func TestGuard_BoundaryPanic(t *testing.T) {
	agg, _ := newTestAggregator(t, AggregatorConfig{})

	err := NewGuard(agg).Boundary(nil, "render", func() error { panic("nope") })
	if err == nil {
		t.Fatal("Boundary() returned nil for a panic")
	}
	if ErrorName(err) != PanicErrorName {
		t.Errorf("ErrorName() = %q, want %q", ErrorName(err), PanicErrorName)
	}

	rec := agg.Errors()[0]
	if rec.Message != "component@render: Panic: nope" {
		t.Errorf("Message = %q", rec.Message)
	}
}

func TestGuard_BoundaryNoError(t *testing.T) {
	agg, _ := newTestAggregator(t, AggregatorConfig{})

	if err := NewGuard(agg).Boundary(nil, "render", func() error { return nil }); err != nil {
		t.Errorf("Boundary() error = %v", err)
	}
	if agg.Len() != 0 {
		t.Errorf("Len() = %d, want 0", agg.Len())
	}
}

func TestPanicError(t *testing.T) {
	base := stderrors.New("x")
	if PanicError(base) != base {
		t.Error("PanicError() should pass error values through")
	}

	err := PanicError(42)
	if ErrorName(err) != PanicErrorName || err.Error() != "42" {
		t.Errorf("PanicError(42) = %s: %v", ErrorName(err), err)
	}
}
