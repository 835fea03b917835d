// Package eventstest provides a bus that records published events.
package eventstest

import (
	"context"
	"sync"

	"techo_backend/internal/events"
)

// Recorder is a synchronous events.Bus that keeps every published event.
type Recorder struct {
	mu     sync.Mutex
	events []events.Event
}

func (r *Recorder) Publish(_ context.Context, event events.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

func (r *Recorder) PublishSync(ctx context.Context, event events.Event) error {
	r.Publish(ctx, event)
	return nil
}

func (r *Recorder) Subscribe(string, events.Handler) {}

// Named returns the recorded events with the given name, in publish order.
func (r *Recorder) Named(name string) []events.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]events.Event, 0)
	for _, e := range r.events {
		if e.EventName() == name {
			out = append(out, e)
		}
	}
	return out
}
