package orchestration

import (
	"testing"

	"github.com/benbjohnson/clock"
)

func TestWithClockNilKeepsWallClock(t *testing.T) {
	session, err := NewSession(WithClock(nil))
	if err != nil {
		t.Fatalf("expected session, got %v", err)
	}

	if _, ok := session.clock.(*clock.Mock); ok {
		t.Fatalf("expected nil clock option to keep the wall clock")
	}
	if session.clock == nil {
		t.Fatalf("expected a clock")
	}
}

func TestWithRoomNameAppearsInStatus(t *testing.T) {
	session, err := NewSession(WithRoomName("kitchen"), WithClock(clock.NewMock()))
	if err != nil {
		t.Fatalf("expected session, got %v", err)
	}

	status := session.Status()
	if status.Room != "kitchen" || status.ID == "" {
		t.Fatalf("expected room and id in status, got %+v", status)
	}
	if status.PendingToggle != nil || status.FrameLoopActive || status.Closed {
		t.Fatalf("expected idle status for a new session, got %+v", status)
	}
}
