package orchestration

import (
	"sync"
	"time"

	"github.com/yeschef/yeschef-agent/core/camera"
)

// truthStore guards the session's camera truth. Every read goes through
// Snapshot so observers never see a torn state.
type truthStore struct {
	mu    sync.RWMutex
	truth camera.Truth
}

func (s *truthStore) Snapshot() camera.Truth {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.truth
}

// declare applies a debounced camera state and reports whether it changed
// anything. Turning the camera on stamps LastFrameAt with now as a grace
// period for the Staleness Monitor.
func (s *truthStore) declare(on bool, now time.Time) (changed bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.truth.DeclaredOn == on {
		// An on request that lands after an unsubscribe reset still owes the
		// new track its grace period.
		if on && s.truth.LastFrameAt.IsZero() {
			s.truth.LastFrameAt = now
		}
		return false
	}

	s.truth.DeclaredOn = on
	s.truth.LastDeclaredAt = now
	s.truth.FrameSinceDeclared = false
	if on {
		s.truth.LastFrameAt = now
	}
	return true
}

// recordFrame moves LastFrameAt forward; it never moves it back.
func (s *truthStore) recordFrame(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if now.After(s.truth.LastFrameAt) {
		s.truth.LastFrameAt = now
	}
	s.truth.FrameSinceDeclared = true
}

// trackSubscribed marks a video track as present. A camera already declared
// on gets a fresh grace period, since the new loop has not delivered a frame.
func (s *truthStore) trackSubscribed(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.truth.TrackSubscribed = true
	if s.truth.DeclaredOn {
		s.truth.LastFrameAt = now
		s.truth.FrameSinceDeclared = false
	}
}

func (s *truthStore) trackUnsubscribed() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.truth.TrackSubscribed = false
	s.truth.LastFrameAt = time.Time{}
	s.truth.FrameSinceDeclared = false
}

func (s *truthStore) isTrackSubscribed() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.truth.TrackSubscribed
}
