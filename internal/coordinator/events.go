package coordinator

// Event represents a coordinator lifecycle event.
// Minimal and stable: name + network + ad unit and optional fields via key/values.
type Event struct {
	Name     string
	Network  string
	AdUnitID string
	Fields   map[string]any
}

// EventPublisher receives events from the coordinator. Implementations should be
// lightweight and non-blocking; Publish must not panic.
type EventPublisher interface {
	Publish(Event)
}

// noopPublisher is the default; it drops events.
type noopPublisher struct{}

func (noopPublisher) Publish(Event) {}
