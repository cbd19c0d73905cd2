package orchestration

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/yeschef/yeschef-agent/core/camera"
	"github.com/yeschef/yeschef-agent/core/events"
)

const sessionEventQueueCapacity = 64

var ErrSessionClosed = errors.New("session closed")

// Session gates what a live cooking assistant may claim to see in one room.
//
// Room events are queued and handled one at a time on the session runtime
// goroutine. Debounced camera changes and staleness ticks run on their own
// timers and only meet the runtime through the camera truth snapshot.
type Session struct {
	ID   string
	room string

	config Config
	clock  clock.Clock
	gate   VideoGate
	model  ConversationModel
	sink   FrameSink

	truth     truthStore
	debounce  *debouncer
	frames    *frameLoopManager
	monitor   *stalenessMonitor
	injector  *contextInjector
	greeter   *greeter
	authority *authorityResolver

	baseContext context.Context
	cancel      context.CancelFunc

	queue       chan events.Event
	closeCh     chan struct{}
	done        chan struct{}
	monitorDone <-chan struct{}

	startOnce sync.Once
	closeOnce sync.Once
	started   atomic.Bool
}

func NewSession(opts ...SessionOption) (*Session, error) {
	s := &Session{
		ID:          uuid.NewString(),
		config:      DefaultConfig(),
		clock:       clock.New(),
		gate:        noopVideoGate{},
		model:       noopConversationModel{},
		baseContext: context.Background(),
		queue:       make(chan events.Event, sessionEventQueueCapacity),
		closeCh:     make(chan struct{}),
		done:        make(chan struct{}),
	}

	for _, opt := range opts {
		opt(s)
	}

	if err := s.config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid session config: %w", err)
	}

	s.injector = newContextInjector(s.gate, s.model, s.config.ContextUpdateTimeout)
	s.debounce = newDebouncer(s.clock, s.config.DebounceWindow, s.applyCameraState)
	s.frames = newFrameLoopManager(s.onFrame)
	s.monitor = newStalenessMonitor(s.clock, s.config.StaleCheckInterval, s.config.StaleThreshold, &s.truth,
		func(ctx context.Context) { s.injector.announce(ctx, announceStale, "no frames within stale threshold") })
	s.greeter = &greeter{
		clock:    s.clock,
		warmUp:   s.config.GreetingWarmUp,
		attempts: s.config.GreetingAttempts,
		backoff:  s.config.GreetingBackoff,
		generate: s.injector.generate,
	}
	s.authority = &authorityResolver{
		truth:        &s.truth,
		frames:       s.frames,
		request:      s.debounce.Request,
		controlTopic: s.config.ControlTopic,
		now:          s.clock.Now,
	}

	return s, nil
}

// Start runs the session until ctx is done or Close is called. The camera
// starts off, so the video gate is closed before any event is handled.
//
// Calling Start more than once has no effect.
func (s *Session) Start(ctx context.Context) {
	s.startOnce.Do(func() {
		if s.isClosed() {
			return
		}

		s.baseContext, s.cancel = context.WithCancel(ctx)
		s.gate.SetVideoEnabled(false)
		logger.InfoContext(s.baseContext, "session started, video input disabled", s.logAttrs()...)

		s.started.Store(true)
		go s.run()
		s.monitorDone = goWorker(s.baseContext, "staleness monitor", s.monitor.run)

		go func() {
			select {
			case <-s.baseContext.Done():
				s.Close()
			case <-s.closeCh:
			}
		}()
	})
}

// Handle queues a room event. It reports false once the session is closed.
func (s *Session) Handle(event events.Event) bool {
	if event == nil || s.isClosed() {
		return false
	}

	select {
	case <-s.closeCh:
		return false
	case s.queue <- event:
		return true
	}
}

// SendOpeningUtterance asks the model to greet the user, retrying transient
// failures. Exhausted retries return [ErrGreetingExhausted]; the session keeps
// running either way.
func (s *Session) SendOpeningUtterance(ctx context.Context, instructions string) error {
	if s.isClosed() {
		return ErrSessionClosed
	}
	return s.greeter.send(ctx, instructions)
}

// VisionAvailable reports whether the assistant may currently make visual
// claims.
func (s *Session) VisionAvailable() bool {
	return camera.Available(s.truth.Snapshot(), s.clock.Now(), s.config.FreshnessWindow)
}

// VisionStatus describes the current vision state for the model.
func (s *Session) VisionStatus() string {
	return camera.Describe(s.truth.Snapshot(), s.clock.Now(), s.config.FreshnessWindow)
}

type Status struct {
	ID              string       `json:"id"`
	Room            string       `json:"room"`
	Camera          camera.Truth `json:"camera"`
	VisionAvailable bool         `json:"vision_available"`
	Stale           bool         `json:"stale"`
	FrameLoopActive bool         `json:"frame_loop_active"`
	PendingToggle   *bool        `json:"pending_toggle,omitempty"`
	Closed          bool         `json:"closed"`
}

func (s *Session) Status() Status {
	truth := s.truth.Snapshot()
	status := Status{
		ID:              s.ID,
		Room:            s.room,
		Camera:          truth,
		VisionAvailable: camera.Available(truth, s.clock.Now(), s.config.FreshnessWindow),
		Stale:           s.monitor.isStale(),
		FrameLoopActive: s.frames.IsRunning(),
		Closed:          s.isClosed(),
	}
	if on, ok := s.debounce.Pending(); ok {
		status.PendingToggle = &on
	}
	return status
}

// Close stops the session. It waits for an in-flight camera application and
// for the frame loop to release its stream. Safe to call more than once.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		close(s.closeCh)
		if s.cancel != nil {
			s.cancel()
		}

		if s.started.Load() {
			<-s.done
		}

		s.debounce.Close()
		s.frames.Close()

		if s.monitorDone != nil {
			<-s.monitorDone
		}

		logger.Info("session closed", s.logAttrs()...)
	})
}

func (s *Session) isClosed() bool {
	select {
	case <-s.closeCh:
		return true
	default:
		return false
	}
}

func (s *Session) run() {
	defer close(s.done)

	for {
		select {
		case <-s.closeCh:
			return
		case event := <-s.queue:
			if s.isClosed() {
				return
			}
			s.process(event)
		}
	}
}

func (s *Session) process(event events.Event) {
	defer func() {
		if recovered := recover(); recovered != nil {
			logger.ErrorContext(s.baseContext, "room event handler panicked",
				append(s.logAttrs(), "kind", string(event.Kind()), "panic", recovered)...)
		}
	}()

	// Queue delay is wall time: ReceivedAt is stamped by the room adapter.
	logger.DebugContext(s.baseContext, "handling room event", append(s.logAttrs(),
		"plane", event.Kind().Plane(), "kind", string(event.Kind()),
		"queued_for", time.Since(event.ReceivedAt()).String())...)
	s.authority.handle(s.baseContext, event)
}

// applyCameraState is the debounced application of a camera request.
func (s *Session) applyCameraState(on bool, reason string) {
	ctx, span := tracer.Start(s.baseContext, "apply camera state", trace.WithAttributes(
		attribute.Bool("camera.on", on),
		attribute.String("camera.reason", reason),
	))
	defer span.End()

	if !s.truth.declare(on, s.clock.Now()) {
		logger.DebugContext(ctx, "camera state already applied", append(s.logAttrs(), "camera_on", on)...)
		return
	}

	s.monitor.clear()
	cameraStateAppliedCounter.Add(ctx, 1, metric.WithAttributes(attribute.Bool("camera.on", on)))
	logger.InfoContext(ctx, "camera state applied", append(s.logAttrs(), "camera_on", on, "reason", reason)...)

	state := announceOff
	if on {
		state = announceOn
	}
	s.injector.announce(ctx, state, reason)
}

func (s *Session) onFrame(mimeType string, frame []byte) {
	s.truth.recordFrame(s.clock.Now())
	s.monitor.clear()

	if s.sink == nil {
		return
	}
	if err := s.sink.SendVideoFrame(mimeType, frame); err != nil {
		logger.Debug("failed to forward video frame", append(s.logAttrs(), "error", err)...)
	}
}

func (s *Session) logAttrs() []any {
	return []any{"session_id", s.ID, "room", s.room}
}
