package orchestration

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"

	"github.com/yeschef/yeschef-agent/core/events"
)

// frameLoopHandle references the one video stream a session is consuming.
type frameLoopHandle struct {
	stream    events.FrameStream
	cancel    context.CancelFunc
	done      <-chan struct{}
	closeOnce sync.Once
}

// closeStream releases the stream. Close races (already closing, already
// closed) are suppressed here and never reach the caller.
func (h *frameLoopHandle) closeStream() {
	h.closeOnce.Do(func() {
		if err := h.stream.Close(); err != nil {
			logger.Debug("suppressed frame stream close error", "error", err)
		}
	})
}

// stop cancels the loop and blocks until it has fully torn down.
func (h *frameLoopHandle) stop() {
	h.cancel()
	h.closeStream()
	<-h.done
}

type frameLoopManager struct {
	onFrame func(mimeType string, frame []byte)

	mu      sync.Mutex
	current *frameLoopHandle
	closed  bool

	// active counts loops currently inside their read loop.
	active atomic.Int32
}

func newFrameLoopManager(onFrame func(mimeType string, frame []byte)) *frameLoopManager {
	if onFrame == nil {
		onFrame = func(string, []byte) {}
	}
	return &frameLoopManager{onFrame: onFrame}
}

// Restart stops the current loop, waits for it to finish, then starts
// consuming stream. A nil stream only stops.
func (m *frameLoopManager) Restart(ctx context.Context, stream events.FrameStream) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.stopLocked()

	if stream == nil {
		return
	}
	if m.closed {
		if err := stream.Close(); err != nil {
			logger.Debug("suppressed frame stream close error", "error", err)
		}
		return
	}

	m.current = m.startLocked(ctx, stream)
}

func (m *frameLoopManager) Stop() { m.Restart(context.Background(), nil) }

// Close stops the current loop and refuses any later start.
func (m *frameLoopManager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.closed = true
	m.stopLocked()
}

// IsRunning reports whether a loop is still consuming its stream. A loop that
// ended on its own (end of stream, read error) is not running even though its
// handle is kept until the next Restart or Stop.
func (m *frameLoopManager) IsRunning() bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current == nil {
		return false
	}
	select {
	case <-m.current.done:
		return false
	default:
		return true
	}
}

func (m *frameLoopManager) stopLocked() {
	if m.current == nil {
		return
	}

	m.current.stop()
	m.current = nil
}

func (m *frameLoopManager) startLocked(ctx context.Context, stream events.FrameStream) *frameLoopHandle {
	loopCtx, cancel := context.WithCancel(ctx)
	handle := &frameLoopHandle{stream: stream, cancel: cancel}
	handle.done = goWorker(loopCtx, "frame loop", func(ctx context.Context) error {
		defer handle.closeStream()
		return m.consume(ctx, stream)
	})
	return handle
}

func (m *frameLoopManager) consume(ctx context.Context, stream events.FrameStream) error {
	m.active.Add(1)
	defer m.active.Add(-1)

	mimeType := events.StreamMimeType(stream)

	for {
		frame, err := stream.ReadFrame(ctx)
		if ctx.Err() != nil {
			return nil
		}
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, events.ErrStreamClosed) {
				return nil
			}
			return fmt.Errorf("failed to read video frame: %w", err)
		}

		m.onFrame(mimeType, frame)
	}
}
