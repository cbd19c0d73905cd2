package main

import (
	"testing"

	"github.com/yeschef/yeschef-agent/core/events"
)

type recordingHandler struct {
	topics []string
}

func (h *recordingHandler) Handle(event events.Event) bool {
	if packet, ok := event.(events.DataReceived); ok {
		h.topics = append(h.topics, packet.Topic)
	}
	return true
}

func TestEventRelayReplaysEarlyEventsInOrder(t *testing.T) {
	relay := &eventRelay{}
	relay.Handle(events.NewDataReceived("first", nil, "cook"))
	relay.Handle(events.NewDataReceived("second", nil, "cook"))

	handler := &recordingHandler{}
	relay.Attach(handler)
	relay.Handle(events.NewDataReceived("third", nil, "cook"))

	if got := handler.topics; len(got) != 3 || got[0] != "first" || got[1] != "second" || got[2] != "third" {
		t.Fatalf("expected events in arrival order, got %v", got)
	}
}
