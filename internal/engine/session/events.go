package session

import "github.com/rendis/leadtap/internal/model"

type EventKind string

const (
	// EventProgress carries a running count. A progress event whose status
	// is stopped is the terminal event of a stopped session.
	EventProgress EventKind = "progress"
	EventDone     EventKind = "done"
	EventError    EventKind = "error"
)

// Event is one entry of the session event stream.
type Event struct {
	Kind      EventKind
	SessionID string
	Status    model.Status
	Count     int
	Total     int
	Message   string
}

// Terminal reports whether e ends its session's stream.
func (e Event) Terminal() bool {
	return e.Kind == EventDone || e.Kind == EventError || e.Status.Terminal()
}

// Listener receives session events in order.
type Listener func(Event)
