// Package transport defines the event-emission sink the controller publishes
// through, and its WebSocket and logging implementations.
package transport

// Event is one emitted event: a name and an arbitrary JSON-serializable
// payload map.
type Event struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

// Transport is a generic sink for emitted events.
// Implementations must be thread-safe and Send must never block; the
// controller emits while holding its state mutex.
type Transport interface {
	Send(data any) error
	Close() error
}

// Emitter adapts a Transport into the emit(eventName, payload) shape the
// controller consumes.
type Emitter struct {
	sink Transport
}

func NewEmitter(sink Transport) *Emitter {
	return &Emitter{sink: sink}
}

// Emit sends a named event. Send failures are the sink's problem (clients
// are dropped on error); the publish loop never blocks on them.
func (e *Emitter) Emit(name string, data any) {
	if e == nil || e.sink == nil {
		return
	}
	_ = e.sink.Send(Event{Event: name, Data: data})
}
