package main

import (
	"sync"

	"github.com/yeschef/yeschef-agent/core/events"
)

type eventHandler interface {
	Handle(events.Event) bool
}

// eventRelay holds room events that arrive before the session exists and
// replays them, in order, once it is attached.
type eventRelay struct {
	mu      sync.Mutex
	target  eventHandler
	pending []events.Event
}

func (r *eventRelay) Handle(event events.Event) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.target == nil {
		r.pending = append(r.pending, event)
		return true
	}
	return r.target.Handle(event)
}

func (r *eventRelay) Attach(target eventHandler) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, event := range r.pending {
		target.Handle(event)
	}
	r.pending = nil
	r.target = target
}
