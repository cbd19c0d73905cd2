// Package gemini is a minimal client for a realtime multimodal model session
// over a websocket. It exposes the hard video gate, silent history appends and
// reply generation a vision session needs.
package gemini

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	orchestration "github.com/yeschef/yeschef-agent/core"
)

var ErrNotConnected = errors.New("model session not connected")

const (
	closeWriteTimeout = time.Second
	// frameWriteTimeout bounds a single video frame write so a peer that
	// stopped reading cannot hold the writer.
	frameWriteTimeout = 2 * time.Second
	// controlWriteTimeout applies to control writes whose ctx has no deadline.
	controlWriteTimeout = 10 * time.Second
)

type Config struct {
	URL    string
	APIKey string
	Model  string
	Voice  string
	// SystemInstruction is sent once with the session setup.
	SystemInstruction string
	// FrameMimeType overrides the encoding reported with each frame. Empty
	// keeps the stream's own codec.
	FrameMimeType string
}

type ClientOption func(*clientOptions)

type clientOptions struct {
	dialer       *websocket.Dialer
	audioHandler func(mimeType string, audio []byte)
}

func WithDialer(dialer *websocket.Dialer) ClientOption {
	return func(o *clientOptions) { o.dialer = dialer }
}

// WithAudioHandler receives every audio chunk the model speaks.
func WithAudioHandler(handler func(mimeType string, audio []byte)) ClientOption {
	return func(o *clientOptions) { o.audioHandler = handler }
}

// Client is one live model session. It implements the session's VideoGate,
// ConversationModel and FrameSink.
type Client struct {
	ws *websocket.Conn
	// writeSlot holds one token; whoever owns it may write to ws.
	writeSlot chan struct{}

	options       clientOptions
	frameMimeType string

	videoEnabled atomic.Bool
	closed       atomic.Bool
	closeOnce    sync.Once

	setupComplete chan struct{}
	done          chan struct{}

	waitersMu sync.Mutex
	waiters   []*replyWaiter
	// streaming is true while a model turn is being delivered.
	streaming bool
}

// replyWaiter is released by the first model turn that starts after its
// request was written. A waiter registered mid-turn is armed once that turn
// ends.
type replyWaiter struct {
	ch    chan struct{}
	armed bool
}

var (
	_ orchestration.VideoGate         = (*Client)(nil)
	_ orchestration.ConversationModel = (*Client)(nil)
	_ orchestration.FrameSink         = (*Client)(nil)
)

// Dial opens the websocket, sends the session setup and waits until the
// model acknowledges it.
func Dial(ctx context.Context, cfg Config, opts ...ClientOption) (*Client, error) {
	ctx, span := tracer.Start(ctx, "dial model session", trace.WithAttributes(attribute.String("model", cfg.Model)))
	defer span.End()

	c := &Client{
		options:       clientOptions{dialer: websocket.DefaultDialer, audioHandler: func(string, []byte) {}},
		frameMimeType: cfg.FrameMimeType,
		writeSlot:     make(chan struct{}, 1),
		setupComplete: make(chan struct{}),
		done:          make(chan struct{}),
	}
	for _, opt := range opts {
		opt(&c.options)
	}

	fail := func(err error) (*Client, error) {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	endpoint, err := url.Parse(cfg.URL)
	if err != nil {
		return fail(fmt.Errorf("invalid model url: %w", err))
	}
	if cfg.APIKey != "" {
		query := endpoint.Query()
		query.Set("key", cfg.APIKey)
		endpoint.RawQuery = query.Encode()
	}

	conn, _, err := c.options.dialer.DialContext(ctx, endpoint.String(), nil)
	if err != nil {
		return fail(fmt.Errorf("failed to open socket connection to model: %w", err))
	}
	c.ws = conn

	go c.processIncomingMessages()

	if err := c.write(ctx, newSetupMessage(cfg)); err != nil {
		_ = c.Close()
		return fail(fmt.Errorf("failed to send session setup: %w", err))
	}

	select {
	case <-c.setupComplete:
	case <-c.done:
		_ = c.Close()
		return fail(fmt.Errorf("model closed the session during setup: %w", ErrNotConnected))
	case <-ctx.Done():
		_ = c.Close()
		return fail(fmt.Errorf("waiting for session setup: %w", ctx.Err()))
	}

	logger.InfoContext(ctx, "model session ready", "model", cfg.Model)
	return c, nil
}

func newSetupMessage(cfg Config) setupMessage {
	msg := setupMessage{Setup: setup{
		Model:            cfg.Model,
		GenerationConfig: &generationConfig{ResponseModalities: []string{"AUDIO"}},
	}}
	if cfg.Voice != "" {
		msg.Setup.GenerationConfig.SpeechConfig = &speechConfig{
			VoiceConfig: voiceConfig{PrebuiltVoiceConfig: prebuiltVoiceConfig{VoiceName: cfg.Voice}},
		}
	}
	if cfg.SystemInstruction != "" {
		msg.Setup.SystemInstruction = &content{Parts: []part{{Text: cfg.SystemInstruction}}}
	}
	return msg
}

// SetVideoEnabled opens or closes the hard gate. Frames sent while the gate is
// closed are dropped before they reach the socket.
func (c *Client) SetVideoEnabled(enabled bool) {
	if c.videoEnabled.Swap(enabled) != enabled {
		logger.Info("model video input toggled", "enabled", enabled)
	}
}

func (c *Client) VideoEnabled() bool { return c.videoEnabled.Load() }

// AppendMessage adds a turn to the conversation without asking for a reply.
// The model has no system role mid-session, so every appended message is a
// user turn.
func (c *Client) AppendMessage(ctx context.Context, _ orchestration.Role, text string) error {
	return c.write(ctx, clientContentMessage{ClientContent: clientContent{
		Turns:        []content{{Role: "user", Parts: []part{{Text: text}}}},
		TurnComplete: false,
	}})
}

// GenerateReply completes the turn with instructions and waits until the model
// starts answering.
func (c *Client) GenerateReply(ctx context.Context, instructions string) error {
	waiter := c.addWaiter()

	if err := c.write(ctx, clientContentMessage{ClientContent: clientContent{
		Turns:        []content{{Role: "user", Parts: []part{{Text: instructions}}}},
		TurnComplete: true,
	}}); err != nil {
		c.removeWaiter(waiter)
		return err
	}

	select {
	case <-waiter.ch:
		return nil
	case <-c.done:
		return ErrNotConnected
	case <-ctx.Done():
		c.removeWaiter(waiter)
		return ctx.Err()
	}
}

// SendVideoFrame forwards one frame. Frames are dropped while the gate is
// closed and while another write owns the socket; video is lossy and must never
// queue behind control messages.
func (c *Client) SendVideoFrame(mimeType string, frame []byte) error {
	if !c.videoEnabled.Load() || len(frame) == 0 {
		return nil
	}
	if c.frameMimeType != "" {
		mimeType = c.frameMimeType
	}
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}

	select {
	case c.writeSlot <- struct{}{}:
	default:
		logger.Debug("dropping video frame, writer busy")
		return nil
	}
	defer func() { <-c.writeSlot }()

	return c.writeLocked(time.Now().Add(frameWriteTimeout), realtimeInputMessage{RealtimeInput: realtimeInput{
		Video: &blob{MimeType: mimeType, Data: base64.StdEncoding.EncodeToString(frame)},
	}})
}

// Done is closed once the websocket stops delivering messages.
func (c *Client) Done() <-chan struct{} { return c.done }

func (c *Client) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.closed.Store(true)

		// WriteControl may run concurrently with a pending write.
		closeMsg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		writeErr := c.ws.WriteControl(websocket.CloseMessage, closeMsg, time.Now().Add(closeWriteTimeout))

		if closeErr := c.ws.Close(); closeErr != nil && writeErr != nil {
			err = fmt.Errorf("failed to close websocket: %w", errors.Join(writeErr, closeErr))
		}
		<-c.done
	})
	return err
}

// write waits for the writer slot until ctx ends, then writes msg with ctx's
// deadline, or controlWriteTimeout when it has none.
func (c *Client) write(ctx context.Context, msg any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	select {
	case c.writeSlot <- struct{}{}:
	case <-c.done:
		return ErrNotConnected
	case <-ctx.Done():
		return fmt.Errorf("waiting for model socket writer: %w", ctx.Err())
	}
	defer func() { <-c.writeSlot }()

	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(controlWriteTimeout)
	}
	return c.writeLocked(deadline, msg)
}

// writeLocked requires the writer slot.
func (c *Client) writeLocked(deadline time.Time, msg any) error {
	if c.closed.Load() || c.ws == nil {
		return ErrNotConnected
	}
	select {
	case <-c.done:
		return ErrNotConnected
	default:
	}

	if err := c.ws.SetWriteDeadline(deadline); err != nil {
		return fmt.Errorf("failed to set write deadline: %w", err)
	}
	if err := c.ws.WriteJSON(msg); err != nil {
		return fmt.Errorf("failed to write to websocket: %w", err)
	}
	return nil
}

func (c *Client) processIncomingMessages() {
	defer close(c.done)

	for {
		_, payload, err := c.ws.ReadMessage()
		if err != nil {
			if !c.closed.Load() && !websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				logger.Warn("model websocket read failed", "error", err)
			}
			return
		}

		var msg serverMessage
		if err := json.Unmarshal(payload, &msg); err != nil {
			logger.Debug("ignoring undecodable model message", "error", err)
			continue
		}

		switch {
		case msg.SetupComplete != nil:
			select {
			case <-c.setupComplete:
			default:
				close(c.setupComplete)
			}
		case msg.ServerContent != nil:
			c.trackTurn(msg.ServerContent)
			c.handleServerContent(msg.ServerContent)
		case msg.GoAway != nil:
			logger.Warn("model session will be terminated by the server", "time_left", msg.GoAway.TimeLeft)
		}
	}
}

func (c *Client) handleServerContent(sc *serverContent) {
	if sc.ModelTurn == nil {
		return
	}
	for _, p := range sc.ModelTurn.Parts {
		if p.InlineData == nil {
			continue
		}
		audio, err := base64.StdEncoding.DecodeString(p.InlineData.Data)
		if err != nil {
			logger.Debug("ignoring undecodable model audio", "error", err)
			continue
		}
		c.options.audioHandler(p.InlineData.MimeType, audio)
	}
}

func (c *Client) addWaiter() *replyWaiter {
	c.waitersMu.Lock()
	defer c.waitersMu.Unlock()
	waiter := &replyWaiter{ch: make(chan struct{}), armed: !c.streaming}
	c.waiters = append(c.waiters, waiter)
	return waiter
}

func (c *Client) removeWaiter(waiter *replyWaiter) {
	c.waitersMu.Lock()
	defer c.waitersMu.Unlock()
	for i, w := range c.waiters {
		if w == waiter {
			c.waiters = append(c.waiters[:i], c.waiters[i+1:]...)
			return
		}
	}
}

// trackTurn follows model turn boundaries. Model output releases armed
// waiters; the end of a turn arms the rest for the next one.
func (c *Client) trackTurn(sc *serverContent) {
	c.waitersMu.Lock()
	defer c.waitersMu.Unlock()

	if sc.ModelTurn != nil {
		c.streaming = true
		pending := c.waiters[:0]
		for _, waiter := range c.waiters {
			if waiter.armed {
				close(waiter.ch)
				continue
			}
			pending = append(pending, waiter)
		}
		c.waiters = pending
	}

	if sc.TurnComplete || sc.Interrupted {
		c.streaming = false
		for _, waiter := range c.waiters {
			waiter.armed = true
		}
	}
}
