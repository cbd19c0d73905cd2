package events

import (
	"context"
	"errors"
)

// ErrStreamClosed is returned by a [FrameStream] read after Close.
var ErrStreamClosed = errors.New("frame stream closed")

// FrameStream is a byte-oriented video frame source bound to one subscribed
// track.
//
// ReadFrame blocks until a frame is available, the stream ends (io.EOF), or the
// stream is closed. Close must unblock a pending ReadFrame and is safe to call
// more than once.
type FrameStream interface {
	ReadFrame(ctx context.Context) ([]byte, error)
	Close() error
}

// EncodedStream is implemented by streams that know the encoding of the
// frames they yield, as a mime type such as "video/VP8".
type EncodedStream interface {
	MimeType() string
}

// StreamMimeType returns the frame encoding of stream, or "" when it does not
// report one.
func StreamMimeType(stream FrameStream) string {
	if encoded, ok := stream.(EncodedStream); ok {
		return encoded.MimeType()
	}
	return ""
}

const (
	KindTrackSubscribed   Kind = "track.subscribed"
	KindTrackUnsubscribed Kind = "track.unsubscribed"
	KindTrackMuted        Kind = "track.muted"
	KindTrackUnmuted      Kind = "track.unmuted"
)

// Track identifies the track and publisher an event refers to.
type Track struct {
	SID         string
	MediaKind   TrackKind
	Participant string
}

func (t Track) IsVideo() bool { return t.MediaKind == TrackKindVideo }

type TrackSubscribed struct {
	Base
	Track
	// Muted reports the publication mute state at subscription time.
	Muted bool
	// Stream is nil for non-video tracks.
	Stream FrameStream
}

func NewTrackSubscribed(track Track, muted bool, stream FrameStream) TrackSubscribed {
	return TrackSubscribed{Base: NewBase(KindTrackSubscribed), Track: track, Muted: muted, Stream: stream}
}

type TrackUnsubscribed struct {
	Base
	Track
}

func NewTrackUnsubscribed(track Track) TrackUnsubscribed {
	return TrackUnsubscribed{Base: NewBase(KindTrackUnsubscribed), Track: track}
}

type TrackMuted struct {
	Base
	Track
}

func NewTrackMuted(track Track) TrackMuted {
	return TrackMuted{Base: NewBase(KindTrackMuted), Track: track}
}

type TrackUnmuted struct {
	Base
	Track
}

func NewTrackUnmuted(track Track) TrackUnmuted {
	return TrackUnmuted{Base: NewBase(KindTrackUnmuted), Track: track}
}
