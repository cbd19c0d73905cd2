package events

import (
	"strings"
	"time"
)

// Kind names an event as "<plane>.<what>", e.g. "track.muted".
type Kind string

// Plane is the signal plane the event came from: "track" or "data".
func (k Kind) Plane() string {
	plane, _, _ := strings.Cut(string(k), ".")
	return plane
}

// Event is anything a room delivers to a session.
type Event interface {
	Kind() Kind
	// ReceivedAt is when the room adapter saw the event, before it was queued.
	ReceivedAt() time.Time
}

type Base struct {
	kind       Kind
	receivedAt time.Time
}

func NewBase(kind Kind) Base {
	return Base{kind: kind, receivedAt: time.Now()}
}

func (b Base) Kind() Kind { return b.kind }

func (b Base) ReceivedAt() time.Time { return b.receivedAt }

// TrackKind is the media kind of a track-plane event.
type TrackKind string

const (
	TrackKindVideo TrackKind = "video"
	TrackKindAudio TrackKind = "audio"
)
