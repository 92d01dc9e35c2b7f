package errors

import (
	"fmt"

	"github.com/armorclaw/pitchscope/pkg/logger"
)

// Origin identifies which capture path produced a record
type Origin string

const (
	// OriginWindow marks faults reported by the global uncaught-fault hook
	OriginWindow Origin = "window.onerror"

	// OriginBoundary marks faults intercepted by a component error boundary
	OriginBoundary Origin = "app.config.errorHandler"
)

// DefaultComponentLabel is rendered when a boundary fault has no component name
const DefaultComponentLabel = "component"

// Component is the handle of a component instance as seen by the error
// boundary. Both values are optional.
type Component interface {
	ComponentName() string
	ComponentFile() string
}

// ComponentMeta is a plain Component implementation
type ComponentMeta struct {
	Name string
	File string
}

func (c ComponentMeta) ComponentName() string { return c.Name }
func (c ComponentMeta) ComponentFile() string { return c.File }

// ComponentLabel renders an optional component name, falling back to
// DefaultComponentLabel when it is absent.
func ComponentLabel(name *string) string {
	if name == nil || *name == "" {
		return DefaultComponentLabel
	}
	return *name
}

// resolveComponent reads the optional name and file of vm. A nil vm, empty
// values and panicking implementations all resolve to nil.
func resolveComponent(vm Component) (name, file *string) {
	if vm == nil {
		return nil, nil
	}
	return optional(vm.ComponentName), optional(vm.ComponentFile)
}

func optional(get func() string) (v *string) {
	defer func() {
		if r := recover(); r != nil {
			v = nil
		}
	}()
	if s := get(); s != "" {
		return &s
	}
	return nil
}

// Fault is a captured fault before it is normalized into an ErrorRecord.
// The set of implementations is closed: WindowFault and BoundaryFault.
type Fault interface {
	Origin() Origin
	diagnose(dl *logger.DiagnosticLogger)
	record() ErrorRecord
}

// WindowFault is a fault reported by the global uncaught-fault hook
type WindowFault struct {
	Message string
	Source  string
	Lineno  int
	Colno   int
	Err     error
}

// Origin implements Fault
func (f WindowFault) Origin() Origin { return OriginWindow }

func (f WindowFault) diagnose(dl *logger.DiagnosticLogger) {
	dl.LogWindowError(f.Message, f.Source, f.Lineno, f.Colno, f.Err)
}

func (f WindowFault) record() ErrorRecord {
	name := ErrorName(f.Err)
	return ErrorRecord{
		Err:          f.Err,
		ErrorName:    name,
		ErrorMessage: ErrorMessage(f.Err),
		Message:      fmt.Sprintf("%s: %s", name, f.Message),
		Context: Context{
			From:   OriginWindow,
			Source: f.Source,
			Lineno: f.Lineno,
			Colno:  f.Colno,
		},
	}
}

// BoundaryFault is a fault intercepted by a component error boundary
type BoundaryFault struct {
	Err       error
	Component Component
	Info      string
}

// Origin implements Fault
func (f BoundaryFault) Origin() Origin { return OriginBoundary }

func (f BoundaryFault) diagnose(dl *logger.DiagnosticLogger) {
	name, _ := resolveComponent(f.Component)
	dl.LogBoundaryError(ComponentLabel(name), f.Info, f.Err)
}

func (f BoundaryFault) record() ErrorRecord {
	name, file := resolveComponent(f.Component)
	errName := ErrorName(f.Err)
	errMsg := ErrorMessage(f.Err)

	stack := errorStack(f.Err)
	if stack == "" {
		stack = formatStack(captureStack(2))
	}

	return ErrorRecord{
		Err:          f.Err,
		ErrorName:    errName,
		ErrorMessage: errMsg,
		Message:      fmt.Sprintf("%s@%s: %s: %s", ComponentLabel(name), f.Info, errName, errMsg),
		Context: Context{
			From:      OriginBoundary,
			Component: name,
			Info:      f.Info,
			File:      file,
			Stack:     stack,
		},
	}
}
