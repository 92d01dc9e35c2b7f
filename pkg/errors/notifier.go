package errors

import "sync"

// EventType identifies a change to the error log
type EventType string

const (
	EventCaptured EventType = "captured"
	EventCleared  EventType = "cleared"
)

// Event is delivered to subscribers after the log changes
type Event struct {
	Type    EventType    `json:"type"`
	Record  *ErrorRecord `json:"record,omitempty"`
	Cleared int          `json:"cleared,omitempty"`
}

// notifier fans log events out to subscribers
type notifier struct {
	mu     sync.RWMutex
	nextID uint64
	subs   map[uint64]func(Event)
}

func newNotifier() *notifier {
	return &notifier{subs: make(map[uint64]func(Event))}
}

func (n *notifier) subscribe(fn func(Event)) func() {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.nextID++
	id := n.nextID
	n.subs[id] = fn

	var once sync.Once
	return func() {
		once.Do(func() {
			n.mu.Lock()
			delete(n.subs, id)
			n.mu.Unlock()
		})
	}
}

// publish calls every subscriber in turn; onPanic receives anything a
// subscriber panics with.
func (n *notifier) publish(ev Event, onPanic func(any)) {
	n.mu.RLock()
	fns := make([]func(Event), 0, len(n.subs))
	for _, fn := range n.subs {
		fns = append(fns, fn)
	}
	n.mu.RUnlock()

	for _, fn := range fns {
		func() {
			defer func() {
				if r := recover(); r != nil && onPanic != nil {
					onPanic(r)
				}
			}()
			fn(ev)
		}()
	}
}

func (n *notifier) count() int {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return len(n.subs)
}
