package coordinator

import "sync"

// MemoryPublisher stores events in-memory for tests and the status endpoint.
// A positive limit keeps only the most recent events.
type MemoryPublisher struct {
	mu     sync.Mutex
	limit  int
	events []Event
}

func NewMemoryPublisher() *MemoryPublisher { return &MemoryPublisher{} }

// NewBoundedMemoryPublisher keeps at most limit events.
func NewBoundedMemoryPublisher(limit int) *MemoryPublisher { return &MemoryPublisher{limit: limit} }

func (p *MemoryPublisher) Publish(e Event) {
	p.mu.Lock()
	p.events = append(p.events, e)
	if p.limit > 0 && len(p.events) > p.limit {
		p.events = append(p.events[:0:0], p.events[len(p.events)-p.limit:]...)
	}
	p.mu.Unlock()
}

func (p *MemoryPublisher) Events() []Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]Event, len(p.events))
	copy(out, p.events)
	return out
}

// Names returns the event names in publish order.
func (p *MemoryPublisher) Names() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Name)
	}
	return out
}

// fanoutPublisher forwards to several publishers in order.
type fanoutPublisher []EventPublisher

func (f fanoutPublisher) Publish(e Event) {
	for _, p := range f {
		p.Publish(e)
	}
}

// MultiPublisher returns a publisher that forwards every event to each of pubs.
func MultiPublisher(pubs ...EventPublisher) EventPublisher {
	out := make(fanoutPublisher, 0, len(pubs))
	for _, p := range pubs {
		if p != nil {
			out = append(out, p)
		}
	}
	return out
}
