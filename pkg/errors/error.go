package errors

import (
	stderrors "errors"
	"fmt"
	"reflect"
	"runtime"
	"strings"
)

// NamedError is a fault value carrying an explicit name and stack, the shape
// script-style hosts hand over (e.g. {name: "TypeError", message, stack}).
type NamedError struct {
	Name    string `json:"name"`
	Message string `json:"message"`
	Stack   string `json:"stack,omitempty"`
}

// Error implements the error interface
func (e *NamedError) Error() string {
	return e.Message
}

// ErrorName returns the declared fault name
func (e *NamedError) ErrorName() string {
	return e.Name
}

// StackTrace returns the stack recorded with the fault
func (e *NamedError) StackTrace() string {
	return e.Stack
}

// namer is implemented by faults that declare their own name
type namer interface {
	ErrorName() string
}

// stackTracer is implemented by faults that carry their own stack
type stackTracer interface {
	StackTrace() string
}

// defaultErrorName is used for nil faults and anonymous stdlib error types
const defaultErrorName = "Error"

// ErrorName resolves the display name of a fault. Faults implementing
// ErrorName() win; otherwise the Go type name is used, with the anonymous
// stdlib error types reported as "Error". Never panics.
func ErrorName(err error) (name string) {
	if err == nil {
		return defaultErrorName
	}
	defer func() {
		if r := recover(); r != nil {
			name = defaultErrorName
		}
	}()

	var n namer
	if stderrors.As(err, &n) {
		if declared := n.ErrorName(); declared != "" {
			return declared
		}
	}

	t := reflect.TypeOf(err)
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	switch t.Name() {
	case "", "errorString", "wrapError", "wrapErrors", "joinError":
		return defaultErrorName
	}
	return t.Name()
}

// ErrorMessage returns err.Error(), or "" for nil faults and faults whose
// Error method panics.
func ErrorMessage(err error) (msg string) {
	if err == nil {
		return ""
	}
	defer func() {
		if r := recover(); r != nil {
			msg = ""
		}
	}()
	return err.Error()
}

// errorStack returns the stack a fault carries, if any
func errorStack(err error) (stack string) {
	if err == nil {
		return ""
	}
	defer func() {
		if r := recover(); r != nil {
			stack = ""
		}
	}()

	var st stackTracer
	if stderrors.As(err, &st) {
		return st.StackTrace()
	}
	return ""
}

// StackFrame represents a single frame in the call stack
type StackFrame struct {
	Function string `json:"function"`
	File     string `json:"file"`
	Line     int    `json:"line"`
}

const packagePrefix = "github.com/armorclaw/pitchscope/pkg/errors."

// captureStack captures the current call stack, skipping runtime and
// capture-machinery frames.
func captureStack(skip int) []StackFrame {
	var frames []StackFrame

	pcs := make([]uintptr, 32)
	n := runtime.Callers(skip+2, pcs)
	if n == 0 {
		return frames
	}

	callers := runtime.CallersFrames(pcs[:n])
	for {
		frame, more := callers.Next()
		if frame.Function == "main.main" {
			frames = append(frames, StackFrame{
				Function: frame.Function,
				File:     frame.File,
				Line:     frame.Line,
			})
			break
		}

		internal := strings.HasPrefix(frame.Function, "runtime.") ||
			(strings.HasPrefix(frame.Function, packagePrefix) && !strings.HasPrefix(frame.Function, packagePrefix+"Test"))
		if !internal {
			frames = append(frames, StackFrame{
				Function: frame.Function,
				File:     frame.File,
				Line:     frame.Line,
			})
		}

		if !more {
			break
		}
	}

	return frames
}

// formatStack renders frames the way Go prints goroutine traces
func formatStack(frames []StackFrame) string {
	var sb strings.Builder
	for _, f := range frames {
		sb.WriteString(fmt.Sprintf("%s\n\t%s:%d\n", f.Function, f.File, f.Line))
	}
	return sb.String()
}
