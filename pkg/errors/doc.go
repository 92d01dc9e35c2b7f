// Package errors aggregates uncaught faults of one application instance
// into an ordered, bounded log that any part of the application can read
// and clear through an explicit Handle.
//
// # Overview
//
// The package implements:
//   - Two capture paths: the global uncaught-fault hook (window.onerror)
//     and the component error boundary (app.config.errorHandler)
//   - A diagnostic-stream write for every capture
//   - An ordered ErrorLog (capture order, no deduplication) with a
//     ring-buffer retention bound
//   - A Handle {Errors, Clear} published under the key "$errors"
//   - Optional persistence of every record to SQLite
//   - Live events for push consumers
//
// # Quick Start
//
//	agg := errors.NewAggregator(errors.AggregatorConfig{MaxRecords: 500})
//	handle := agg.Install(app, window)
//
//	ctx = errors.WithHandle(ctx, handle)
//	...
//	if h, ok := errors.HandleFromContext(ctx); ok {
//	    for _, rec := range h.Errors() {
//	        fmt.Println(rec.Message)
//	    }
//	    h.Clear()
//	}
//
// # Record Messages
//
//   - window.onerror: "<ErrorName>: <message>"
//   - app.config.errorHandler: "<component>@<info>: <ErrorName>: <message>"
//
// A boundary fault without a component name renders as "component"; its
// context file is null.
//
// # Go Hosts
//
// Guard adapts Go panics: Guard.Go and Guard.Run capture panics on the
// uncaught path, Guard.Boundary captures errors and panics of component code
// on the boundary path.
//
// # Thread Safety
//
// All types are safe for concurrent use. Capture order is the order in which
// captures acquire the log.
package errors
