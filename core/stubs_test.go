package orchestration

import (
	"context"
	"errors"
	"io"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/yeschef/yeschef-agent/core/events"
)

func waitForCondition(t *testing.T, timeout time.Duration, description string, condition func() bool) {
	t.Helper()

	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if condition() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}

	t.Fatalf("timed out waiting for %s", description)
}

func assertNever(t *testing.T, duration time.Duration, description string, condition func() bool) {
	t.Helper()

	deadline := time.Now().Add(duration)
	for time.Now().Before(deadline) {
		if condition() {
			t.Fatalf("expected never: %s", description)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

type recordingGate struct {
	mu     sync.Mutex
	states []bool
}

func (g *recordingGate) SetVideoEnabled(enabled bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.states = append(g.states, enabled)
}

func (g *recordingGate) snapshot() []bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]bool(nil), g.states...)
}

func (g *recordingGate) last() (enabled bool, ok bool) {
	states := g.snapshot()
	if len(states) == 0 {
		return false, false
	}
	return states[len(states)-1], true
}

type appendedMessage struct {
	role Role
	text string
}

type recordingModel struct {
	mu           sync.Mutex
	messages     []appendedMessage
	appendErr    error
	appendBlock  chan struct{}
	generateErrs []error
	generations  []string
	log          []string
}

func (m *recordingModel) AppendMessage(ctx context.Context, role Role, text string) error {
	if m.appendBlock != nil {
		select {
		case <-m.appendBlock:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.log = append(m.log, "append")
	if m.appendErr != nil {
		return m.appendErr
	}
	m.messages = append(m.messages, appendedMessage{role: role, text: text})
	return nil
}

func (m *recordingModel) GenerateReply(_ context.Context, instructions string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.log = append(m.log, "generate")
	m.generations = append(m.generations, instructions)

	attempt := len(m.generations) - 1
	if attempt < len(m.generateErrs) {
		return m.generateErrs[attempt]
	}
	return nil
}

func (m *recordingModel) messageCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.messages)
}

func (m *recordingModel) messagesSnapshot() []appendedMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]appendedMessage(nil), m.messages...)
}

func (m *recordingModel) generationCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.generations)
}

func (m *recordingModel) logSnapshot() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.log...)
}

// overlapTracker records how many fake streams are being read at once.
type overlapTracker struct {
	mu      sync.Mutex
	current int
	max     int
	log     []string
}

func (o *overlapTracker) enter(name string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.current++
	if o.current > o.max {
		o.max = o.current
	}
	o.log = append(o.log, "start "+name)
}

func (o *overlapTracker) exit(name string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.current--
	o.log = append(o.log, "stop "+name)
}

func (o *overlapTracker) snapshot() (maxOverlap int, log []string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.max, append([]string(nil), o.log...)
}

var errAlreadyClosed = errors.New("stream already closed")

type fakeStream struct {
	name     string
	tracker  *overlapTracker
	mimeType string

	frames chan []byte
	closed chan struct{}

	entered    atomic.Bool
	reading    atomic.Bool
	closeCalls atomic.Int32
	closeOnce  sync.Once
}

func newFakeStream(name string, tracker *overlapTracker) *fakeStream {
	return &fakeStream{
		name:    name,
		tracker: tracker,
		frames:  make(chan []byte, 16),
		closed:  make(chan struct{}),
	}
}

func (s *fakeStream) ReadFrame(ctx context.Context) ([]byte, error) {
	if s.entered.CompareAndSwap(false, true) {
		if s.tracker != nil {
			s.tracker.enter(s.name)
		}
		s.reading.Store(true)
	}

	select {
	case frame, ok := <-s.frames:
		if !ok {
			s.finish()
			return nil, io.EOF
		}
		return frame, nil
	case <-s.closed:
		s.finish()
		return nil, events.ErrStreamClosed
	case <-ctx.Done():
		s.finish()
		return nil, ctx.Err()
	}
}

func (s *fakeStream) MimeType() string { return s.mimeType }

func (s *fakeStream) finish() {
	if s.reading.CompareAndSwap(true, false) && s.tracker != nil {
		s.tracker.exit(s.name)
	}
}

func (s *fakeStream) Close() error {
	s.closeCalls.Add(1)
	closedNow := false
	s.closeOnce.Do(func() {
		close(s.closed)
		closedNow = true
	})
	if !closedNow {
		return errAlreadyClosed
	}
	return nil
}

func (s *fakeStream) isClosed() bool {
	select {
	case <-s.closed:
		return true
	default:
		return false
	}
}

type recordingSink struct {
	mu        sync.Mutex
	frames    [][]byte
	mimeTypes []string
}

func (s *recordingSink) SendVideoFrame(mimeType string, frame []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.frames = append(s.frames, frame)
	s.mimeTypes = append(s.mimeTypes, mimeType)
	return nil
}

func (s *recordingSink) mimeTypesSnapshot() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.mimeTypes...)
}

func (s *recordingSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.frames)
}
