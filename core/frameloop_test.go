package orchestration

import (
	"context"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func TestFrameLoopRestartStopsPreviousLoopBeforeStartingNext(t *testing.T) {
	tracker := &overlapTracker{}
	frames := atomic.Int32{}
	manager := newFrameLoopManager(func(string, []byte) { frames.Add(1) })
	defer manager.Close()

	first := newFakeStream("first", tracker)
	second := newFakeStream("second", tracker)
	third := newFakeStream("third", tracker)

	ctx := context.Background()
	manager.Restart(ctx, first)
	first.frames <- []byte{1}
	waitForCondition(t, time.Second, "first frame", func() bool { return frames.Load() == 1 })

	manager.Restart(ctx, nil)
	if !first.isClosed() {
		t.Fatalf("expected stop to have closed the first stream before returning")
	}
	if manager.IsRunning() {
		t.Fatalf("expected no loop after restart with nil stream")
	}

	manager.Restart(ctx, second)
	manager.Restart(ctx, third)
	if !second.isClosed() {
		t.Fatalf("expected second stream closed once superseded")
	}

	third.frames <- []byte{3}
	waitForCondition(t, time.Second, "third frame", func() bool { return frames.Load() == 2 })

	maxOverlap, log := tracker.snapshot()
	if maxOverlap > 1 {
		t.Fatalf("expected at most one concurrently consumed stream, got %d (%s)", maxOverlap, strings.Join(log, ", "))
	}
	if got := manager.active.Load(); got != 1 {
		t.Fatalf("expected exactly one active loop, got %d", got)
	}
}

func TestFrameLoopRapidRestartsNeverOverlap(t *testing.T) {
	tracker := &overlapTracker{}
	manager := newFrameLoopManager(nil)

	ctx := context.Background()
	for i := 0; i < 50; i++ {
		stream := newFakeStream("stream", tracker)
		manager.Restart(ctx, stream)
		if i%3 == 0 {
			manager.Stop()
		}
	}
	manager.Close()

	maxOverlap, _ := tracker.snapshot()
	if maxOverlap > 1 {
		t.Fatalf("expected at most one concurrently consumed stream, got %d", maxOverlap)
	}
	if got := manager.active.Load(); got != 0 {
		t.Fatalf("expected no active loop after close, got %d", got)
	}
}

func TestFrameLoopClosesStreamOnceOnEveryExitPath(t *testing.T) {
	manager := newFrameLoopManager(nil)
	defer manager.Close()

	ended := newFakeStream("ended", nil)
	manager.Restart(context.Background(), ended)
	close(ended.frames)

	waitForCondition(t, time.Second, "stream closed after end of stream", ended.isClosed)

	// Stopping a loop that already ended must still be safe.
	manager.Stop()
	manager.Stop()

	if got := ended.closeCalls.Load(); got != 1 {
		t.Fatalf("expected stream to be closed exactly once, got %d", got)
	}

	cancelled := newFakeStream("cancelled", nil)
	ctx, cancel := context.WithCancel(context.Background())
	manager.Restart(ctx, cancelled)
	cancel()

	waitForCondition(t, time.Second, "stream closed after cancellation", cancelled.isClosed)
	manager.Stop()

	if got := cancelled.closeCalls.Load(); got != 1 {
		t.Fatalf("expected cancelled stream to be closed exactly once, got %d", got)
	}
}

func TestFrameLoopClosedManagerRejectsNewStreams(t *testing.T) {
	manager := newFrameLoopManager(nil)
	manager.Close()

	stream := newFakeStream("late", nil)
	manager.Restart(context.Background(), stream)

	if manager.IsRunning() {
		t.Fatalf("expected closed manager not to start a loop")
	}
	if !stream.isClosed() {
		t.Fatalf("expected rejected stream to be released")
	}
}

func TestFrameLoopStopWithoutLoopIsNoop(t *testing.T) {
	manager := newFrameLoopManager(nil)

	manager.Stop()
	manager.Stop()
	manager.Close()
	manager.Close()

	if manager.IsRunning() {
		t.Fatalf("expected no loop running")
	}
}

func TestFrameLoopNotRunningAfterStreamEnds(t *testing.T) {
	manager := newFrameLoopManager(nil)
	defer manager.Close()

	stream := newFakeStream("camera", nil)
	manager.Restart(context.Background(), stream)
	waitForCondition(t, time.Second, "loop to start reading", stream.reading.Load)
	if !manager.IsRunning() {
		t.Fatalf("expected loop running while the stream is open")
	}

	close(stream.frames)
	waitForCondition(t, time.Second, "ended loop to be reported stopped", func() bool {
		return !manager.IsRunning()
	})
	if !stream.isClosed() {
		t.Fatalf("expected the ended stream to be released")
	}
}

func TestFrameLoopPassesStreamEncoding(t *testing.T) {
	var got atomic.Value
	manager := newFrameLoopManager(func(mimeType string, _ []byte) { got.Store(mimeType) })
	defer manager.Close()

	stream := newFakeStream("camera", nil)
	stream.mimeType = "video/VP8"
	manager.Restart(context.Background(), stream)
	stream.frames <- []byte{1}

	waitForCondition(t, time.Second, "frame with encoding", func() bool {
		mimeType, _ := got.Load().(string)
		return mimeType == "video/VP8"
	})
}
