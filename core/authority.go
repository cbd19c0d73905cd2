package orchestration

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/yeschef/yeschef-agent/core/events"
)

// authorityResolver decides which signal governs camera truth. Once a video
// track is subscribed the track plane is authoritative; the control message is
// only honoured before that, as declared intent.
//
// It is only driven from the session runtime goroutine.
type authorityResolver struct {
	truth        *truthStore
	frames       *frameLoopManager
	request      func(on bool, reason string)
	controlTopic string
	now          func() time.Time

	// videoSID is the subscribed video track, empty when none is.
	videoSID string
}

func (a *authorityResolver) handle(ctx context.Context, event events.Event) {
	switch e := event.(type) {
	case events.TrackSubscribed:
		a.onTrackSubscribed(ctx, e)
	case events.TrackUnsubscribed:
		a.onTrackUnsubscribed(ctx, e)
	case events.TrackMuted:
		if !e.IsVideo() {
			return
		}
		logger.InfoContext(ctx, "video track muted", "track_sid", e.SID)
		a.request(false, "video track muted")
	case events.TrackUnmuted:
		if !e.IsVideo() {
			return
		}
		logger.InfoContext(ctx, "video track unmuted", "track_sid", e.SID)
		a.request(true, "video track unmuted")
	case events.DataReceived:
		a.onDataReceived(ctx, e)
	default:
		logger.DebugContext(ctx, "ignoring room event", "kind", string(event.Kind()))
	}
}

func (a *authorityResolver) onTrackSubscribed(ctx context.Context, e events.TrackSubscribed) {
	if !e.IsVideo() {
		return
	}

	logger.InfoContext(ctx, "video track subscribed", "track_sid", e.SID, "muted", e.Muted)
	a.videoSID = e.SID
	a.truth.trackSubscribed(a.now())
	a.frames.Restart(ctx, e.Stream)

	if !e.Muted {
		a.request(true, "video track subscribed")
	}
}

func (a *authorityResolver) onTrackUnsubscribed(ctx context.Context, e events.TrackUnsubscribed) {
	if !e.IsVideo() {
		return
	}

	if a.videoSID != "" && e.SID != "" && e.SID != a.videoSID {
		logger.DebugContext(ctx, "ignoring unsubscribe of a superseded video track",
			"track_sid", e.SID, "current_track_sid", a.videoSID)
		return
	}

	logger.InfoContext(ctx, "video track unsubscribed", "track_sid", e.SID)
	a.videoSID = ""
	// Stop first so no frame from the old loop lands after the reset.
	a.frames.Stop()
	a.truth.trackUnsubscribed()
	a.request(false, "video track unsubscribed")
}

func (a *authorityResolver) onDataReceived(ctx context.Context, e events.DataReceived) {
	msg, err := events.DecodeControlMessage(a.controlTopic, e)
	switch {
	case errors.Is(err, events.ErrIgnoredTopic), errors.Is(err, events.ErrIgnoredType):
		return
	case err != nil:
		logger.WarnContext(ctx, "ignoring malformed control message", "participant", e.Participant, "error", err)
		controlIgnoredCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", "malformed")))
		return
	}

	trackSubscribed := a.truth.isTrackSubscribed()
	logger.InfoContext(ctx, "camera_state received", "camera_on", msg.On, "track_subscribed", trackSubscribed)
	if trackSubscribed {
		controlIgnoredCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", "track_authoritative")))
		return
	}

	a.request(msg.On, "camera_state control message")
}
