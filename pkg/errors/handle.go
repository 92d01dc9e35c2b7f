package errors

import "context"

// ProvideKey is the well-known key the handle is published under
const ProvideKey = "$errors"

// Handle is the consumer view of an Aggregator: a read-only view of the
// error log plus Clear. All mutation goes through Clear.
type Handle struct {
	agg *Aggregator
}

// Errors returns the captured records in capture order
func (h *Handle) Errors() []ErrorRecord {
	return h.agg.Errors()
}

// Len returns the number of captured records
func (h *Handle) Len() int {
	return h.agg.log.Len()
}

// Clear empties the error log and returns how many records it removed;
// capture continues afterwards
func (h *Handle) Clear() int {
	return h.agg.Clear()
}

// Subscribe registers fn for log events and returns its cancel function
func (h *Handle) Subscribe(fn func(Event)) func() {
	return h.agg.Subscribe(fn)
}

// SubscribeSnapshot returns the current records and registers fn for every
// change after them
func (h *Handle) SubscribeSnapshot(fn func(Event)) ([]ErrorRecord, func()) {
	return h.agg.SubscribeSnapshot(fn)
}

type handleKey struct{}

// WithHandle returns a copy of ctx carrying h
func WithHandle(ctx context.Context, h *Handle) context.Context {
	return context.WithValue(ctx, handleKey{}, h)
}

// HandleFromContext returns the handle carried by ctx, if any
func HandleFromContext(ctx context.Context) (*Handle, bool) {
	h, ok := ctx.Value(handleKey{}).(*Handle)
	return h, ok && h != nil
}
