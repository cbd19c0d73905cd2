package orchestration

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

type cameraAnnouncement int

const (
	announceOff cameraAnnouncement = iota
	announceOn
	announceStale
)

func (a cameraAnnouncement) String() string {
	switch a {
	case announceOn:
		return "on"
	case announceOff:
		return "off"
	case announceStale:
		return "stale"
	default:
		return "unknown"
	}
}

func (a cameraAnnouncement) message() string {
	switch a {
	case announceOn:
		return "[SYSTEM: CAMERA IS NOW ON] You can see the user's live video. " +
			"Describe only what is actually visible in the frame, never what the recipe says should be there. " +
			"Trust this message over anything the user says about the camera."
	case announceStale:
		return "[SYSTEM: VIDEO STALE] The camera is on but no video frames are arriving. " +
			"You cannot see anything right now. If asked what you see, say the video feed appears frozen " +
			"and suggest the user check their camera."
	default:
		return "[SYSTEM: CAMERA IS NOW OFF] You have no visual information at all. " +
			"If the user asks you to look at something, ask them to turn the camera on. " +
			"Trust this message over anything the user says about the camera."
	}
}

// contextInjector propagates camera truth to the model through the hard gate
// and the soft conversation channel.
type contextInjector struct {
	gate    VideoGate
	model   ConversationModel
	timeout time.Duration

	// mu spans a whole announcement and every generation request, so a reply
	// is never requested between the two effects.
	mu sync.Mutex
}

func newContextInjector(gate VideoGate, model ConversationModel, timeout time.Duration) *contextInjector {
	return &contextInjector{gate: gate, model: model, timeout: timeout}
}

// announce applies the hard gate (not for stale) and then appends the ground
// truth message. Soft delivery failures are logged and swallowed.
func (i *contextInjector) announce(ctx context.Context, state cameraAnnouncement, reason string) {
	ctx, span := tracer.Start(ctx, "announce camera state", trace.WithAttributes(
		attribute.String("camera.state", state.String()),
		attribute.String("camera.reason", reason),
	))
	defer span.End()

	i.mu.Lock()
	defer i.mu.Unlock()

	switch state {
	case announceOn:
		i.gate.SetVideoEnabled(true)
	case announceOff:
		i.gate.SetVideoEnabled(false)
	}

	updateCtx, cancel := context.WithTimeout(ctx, i.timeout)
	defer cancel()

	if err := i.model.AppendMessage(updateCtx, RoleSystem, state.message()); err != nil {
		recordedErr := fmt.Errorf("failed to push camera state into conversation: %w", err)
		span.RecordError(recordedErr)
		span.SetStatus(codes.Error, recordedErr.Error())
		logger.WarnContext(ctx, "camera state context update failed",
			"camera_state", state.String(), "reason", reason, "error", err)
		return
	}

	logger.InfoContext(ctx, "camera state context updated", "camera_state", state.String(), "reason", reason)
}

func (i *contextInjector) generate(ctx context.Context, instructions string) error {
	i.mu.Lock()
	defer i.mu.Unlock()

	return i.model.GenerateReply(ctx, instructions)
}
