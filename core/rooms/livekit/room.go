// Package livekit joins LiveKit rooms as an agent participant and translates
// room callbacks into session events.
package livekit

import (
	"context"
	"fmt"
	"sync"

	lksdk "github.com/livekit/server-sdk-go/v2"
	"github.com/pion/webrtc/v4"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/yeschef/yeschef-agent/core/events"
)

// Handler receives translated room events. It reports false once the
// receiver stopped accepting events.
type Handler func(events.Event) bool

type Room struct {
	name string
	room *lksdk.Room

	disconnected chan struct{}
	disconnect   sync.Once
}

type ConnectInfo struct {
	APIKey    string
	APISecret string
	RoomName  string
	Identity  string
}

// Join connects to the room and starts delivering events to handle. The room
// is left when ctx ends or Disconnect is called.
func Join(ctx context.Context, url string, info ConnectInfo, handle Handler) (*Room, error) {
	ctx, span := tracer.Start(ctx, "join room", trace.WithAttributes(attribute.String("room", info.RoomName)))
	defer span.End()

	r := &Room{name: info.RoomName, disconnected: make(chan struct{})}
	t := translator{room: info.RoomName, handle: handle}

	callback := lksdk.NewRoomCallback()
	callback.ParticipantCallback.OnTrackSubscribed = t.onTrackSubscribed
	callback.ParticipantCallback.OnTrackUnsubscribed = t.onTrackUnsubscribed
	callback.ParticipantCallback.OnTrackMuted = t.onTrackMuted
	callback.ParticipantCallback.OnTrackUnmuted = t.onTrackUnmuted
	callback.ParticipantCallback.OnDataPacket = t.onDataPacket
	callback.OnDisconnected = func() {
		logger.Info("disconnected from room", "room", info.RoomName)
		r.markDisconnected()
	}

	room, err := lksdk.ConnectToRoom(url, lksdk.ConnectInfo{
		APIKey:              info.APIKey,
		APISecret:           info.APISecret,
		RoomName:            info.RoomName,
		ParticipantIdentity: info.Identity,
	}, callback, lksdk.WithAutoSubscribe(true))
	if err != nil {
		err = fmt.Errorf("failed to join room %s: %w", info.RoomName, err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	r.room = room

	logger.InfoContext(ctx, "joined room", "room", info.RoomName, "identity", info.Identity)

	go func() {
		select {
		case <-ctx.Done():
			r.Disconnect()
		case <-r.disconnected:
		}
	}()

	return r, nil
}

func (r *Room) Name() string { return r.name }

// Metadata is the room metadata set by whoever created the room.
func (r *Room) Metadata() string { return r.room.Metadata() }

// Done is closed once the room connection ends.
func (r *Room) Done() <-chan struct{} { return r.disconnected }

func (r *Room) Disconnect() {
	r.disconnect.Do(func() {
		r.room.Disconnect()
		r.markDisconnected()
	})
}

func (r *Room) markDisconnected() {
	select {
	case <-r.disconnected:
	default:
		close(r.disconnected)
	}
}

// translator maps LiveKit callbacks onto session events.
type translator struct {
	room   string
	handle Handler
}

func (t translator) emit(event events.Event) {
	if !t.handle(event) {
		logger.Debug("room event dropped, session no longer accepts events",
			"room", t.room, "kind", string(event.Kind()))
	}
}

func (t translator) onTrackSubscribed(track *webrtc.TrackRemote, publication *lksdk.RemoteTrackPublication, participant *lksdk.RemoteParticipant) {
	ref := trackRef(publication.SID(), publication.Kind(), participant.Identity())
	t.subscribed(ref, publication.IsMuted(), func() (events.FrameStream, error) {
		return NewVideoStream(track)
	})
}

// subscribed emits the subscription even when the video cannot be read: the
// track is still present, so it stays authoritative over control messages.
func (t translator) subscribed(ref events.Track, muted bool, open func() (events.FrameStream, error)) {
	if !ref.IsVideo() {
		t.emit(events.NewTrackSubscribed(ref, muted, nil))
		return
	}

	stream, err := open()
	if err != nil {
		logger.Warn("cannot read subscribed video track, frames will not be consumed",
			"room", t.room, "track_sid", ref.SID, "error", err)
		t.emit(events.NewTrackSubscribed(ref, muted, nil))
		return
	}
	t.emit(events.NewTrackSubscribed(ref, muted, stream))
}

func (t translator) onTrackUnsubscribed(_ *webrtc.TrackRemote, publication *lksdk.RemoteTrackPublication, participant *lksdk.RemoteParticipant) {
	t.emit(events.NewTrackUnsubscribed(trackRef(publication.SID(), publication.Kind(), participant.Identity())))
}

func (t translator) onTrackMuted(publication lksdk.TrackPublication, participant lksdk.Participant) {
	t.emit(events.NewTrackMuted(trackRef(publication.SID(), publication.Kind(), participant.Identity())))
}

func (t translator) onTrackUnmuted(publication lksdk.TrackPublication, participant lksdk.Participant) {
	t.emit(events.NewTrackUnmuted(trackRef(publication.SID(), publication.Kind(), participant.Identity())))
}

func (t translator) onDataPacket(data lksdk.DataPacket, params lksdk.DataReceiveParams) {
	packet, ok := data.(*lksdk.UserDataPacket)
	if !ok {
		return
	}

	topic := packet.Topic
	if topic == "" {
		topic = params.Topic
	}
	t.emit(events.NewDataReceived(topic, packet.Payload, params.SenderIdentity))
}

func trackRef(sid string, kind lksdk.TrackKind, participant string) events.Track {
	ref := events.Track{SID: sid, MediaKind: events.TrackKindAudio, Participant: participant}
	if kind == lksdk.TrackKindVideo {
		ref.MediaKind = events.TrackKindVideo
	}
	return ref
}
