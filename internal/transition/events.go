package transition

type EventKind string

const (
	EventGateOpened   EventKind = "gate_opened"
	EventCommitted    EventKind = "committed"
	EventFailed       EventKind = "failed"
	EventCancelled    EventKind = "cancelled"
	EventReloaded     EventKind = "reloaded"
	EventReloadFailed EventKind = "reload_failed"
	EventBulkAdded    EventKind = "bulk_added"
)

// Event is published to subscribers after the engine changes state.
type Event struct {
	Kind    EventKind
	EntryID int64
	Message string
	Pending *PendingMove
	Err     error
}

// Subscribe registers fn for every later event. Handlers run synchronously
// on the goroutine that produced the event.
func (e *Engine) Subscribe(fn func(Event)) (unsubscribe func()) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.subs == nil {
		e.subs = make(map[int]func(Event))
	}
	id := e.nextSub
	e.nextSub++
	e.subs[id] = fn
	return func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		delete(e.subs, id)
	}
}

func (e *Engine) emit(evt Event) {
	e.mu.Lock()
	handlers := make([]func(Event), 0, len(e.subs))
	for _, fn := range e.subs {
		handlers = append(handlers, fn)
	}
	e.mu.Unlock()
	for _, fn := range handlers {
		fn(evt)
	}
}
