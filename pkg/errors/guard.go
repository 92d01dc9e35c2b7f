package errors

import (
	"fmt"
	"runtime"
	"runtime/debug"
	"strings"
)

// PanicErrorName names faults built from non-error panic values
const PanicErrorName = "Panic"

// Guard turns Go panics into captured faults. Panics in plain goroutines
// take the uncaught path; panics and errors inside Boundary take the
// component-boundary path.
type Guard struct {
	agg *Aggregator
}

// NewGuard creates a guard feeding agg
func NewGuard(agg *Aggregator) *Guard {
	return &Guard{agg: agg}
}

// Go runs fn on a new goroutine, capturing a panic as an uncaught fault
func (g *Guard) Go(fn func()) {
	go g.Run(fn)
}

// Run calls fn and reports whether it returned normally. A panic is captured
// as an uncaught fault located at the panicking frame and is not re-raised.
func (g *Guard) Run(fn func()) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			err := panicError(r)
			source, line := panicSite()
			g.agg.CaptureWindow(ErrorMessage(err), source, line, 0, err)
			ok = false
		}
	}()

	fn()
	return true
}

// Boundary calls fn on behalf of vm. A returned error or a panic is captured
// on the boundary path with info as the lifecycle stage, and returned.
func (g *Guard) Boundary(vm Component, info string, fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = panicError(r)
			g.agg.CaptureBoundary(err, vm, info)
		}
	}()

	if err = fn(); err != nil {
		g.agg.CaptureBoundary(err, vm, info)
	}
	return err
}

// PanicError converts a recovered value into an error. Non-error values
// become a NamedError carrying the current goroutine's stack.
func PanicError(r any) error {
	return panicError(r)
}

func panicError(r any) error {
	if err, ok := r.(error); ok {
		return err
	}
	return &NamedError{
		Name:    PanicErrorName,
		Message: fmt.Sprint(r),
		Stack:   string(debug.Stack()),
	}
}

// panicSite returns the file and line of the frame that panicked. It must be
// called from the deferred function that recovered.
func panicSite() (string, int) {
	pcs := make([]uintptr, 32)
	n := runtime.Callers(2, pcs)
	frames := runtime.CallersFrames(pcs[:n])

	sawPanic := false
	for {
		frame, more := frames.Next()
		if frame.Function == "runtime.gopanic" {
			sawPanic = true
		} else if sawPanic && !strings.HasPrefix(frame.Function, "runtime.") {
			return frame.File, frame.Line
		}
		if !more {
			break
		}
	}
	return "", 0
}
