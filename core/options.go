package orchestration

import (
	"context"

	"github.com/benbjohnson/clock"
)

type SessionOption func(*Session)

// Role tags a message appended to the model's conversation history.
type Role string

const (
	RoleSystem Role = "system"
	RoleUser   Role = "user"
)

// VideoGate is the hard channel: it physically enables or disables frame
// delivery to the downstream model.
type VideoGate interface {
	SetVideoEnabled(enabled bool)
}

// ConversationModel is the downstream conversational model as seen by the
// session.
type ConversationModel interface {
	// AppendMessage adds a message to the live conversation history without
	// requesting a reply or reconnecting the model session.
	AppendMessage(ctx context.Context, role Role, text string) error
	// GenerateReply asks the model to speak, guided by instructions.
	GenerateReply(ctx context.Context, instructions string) error
}

// FrameSink receives every frame read by the frame loop, with the stream's
// encoding when it reports one. Implementations are expected to honour their
// own [VideoGate].
type FrameSink interface {
	SendVideoFrame(mimeType string, frame []byte) error
}

func WithConfig(config Config) SessionOption {
	return func(s *Session) { s.config = config }
}

// WithClock replaces the wall clock used for every timer, ticker and
// timestamp in the session.
func WithClock(clk clock.Clock) SessionOption {
	return func(s *Session) {
		if clk != nil {
			s.clock = clk
		}
	}
}

func WithVideoGate(gate VideoGate) SessionOption {
	return func(s *Session) { s.gate = gate }
}

func WithConversationModel(model ConversationModel) SessionOption {
	return func(s *Session) { s.model = model }
}

func WithFrameSink(sink FrameSink) SessionOption {
	return func(s *Session) { s.sink = sink }
}

func WithRoomName(room string) SessionOption {
	return func(s *Session) { s.room = room }
}

type noopVideoGate struct{}

func (noopVideoGate) SetVideoEnabled(bool) {}

type noopConversationModel struct{}

func (noopConversationModel) AppendMessage(context.Context, Role, string) error { return nil }
func (noopConversationModel) GenerateReply(context.Context, string) error       { return nil }
