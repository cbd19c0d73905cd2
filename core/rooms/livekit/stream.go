package livekit

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pion/rtp"
	"github.com/pion/rtp/codecs"
	"github.com/pion/webrtc/v4"
	"github.com/pion/webrtc/v4/pkg/media/samplebuilder"

	"github.com/yeschef/yeschef-agent/core/events"
)

const (
	videoClockRate = 90000
	// maxLatePackets bounds how far the sample builder waits for a reordered
	// packet before dropping the frame.
	maxLatePackets = 128
)

// VideoStream turns the RTP packets of a remote video track into whole encoded
// frames.
type VideoStream struct {
	mimeType  string
	read      func() (*rtp.Packet, error)
	interrupt func() error

	builder *samplebuilder.SampleBuilder

	mu        sync.Mutex
	closed    atomic.Bool
	closeOnce sync.Once
}

var (
	_ events.FrameStream   = (*VideoStream)(nil)
	_ events.EncodedStream = (*VideoStream)(nil)
)

func NewVideoStream(track *webrtc.TrackRemote) (*VideoStream, error) {
	return newVideoStream(track.Codec().MimeType,
		func() (*rtp.Packet, error) {
			packet, _, err := track.ReadRTP()
			return packet, err
		},
		func() error { return track.SetReadDeadline(time.Now()) },
	)
}

func newVideoStream(mimeType string, read func() (*rtp.Packet, error), interrupt func() error) (*VideoStream, error) {
	depacketizer, err := depacketizerFor(mimeType)
	if err != nil {
		return nil, err
	}

	return &VideoStream{
		mimeType:  mimeType,
		read:      read,
		interrupt: interrupt,
		builder:   samplebuilder.New(maxLatePackets, depacketizer, videoClockRate),
	}, nil
}

func depacketizerFor(mimeType string) (rtp.Depacketizer, error) {
	switch {
	case strings.EqualFold(mimeType, webrtc.MimeTypeVP8):
		return &codecs.VP8Packet{}, nil
	case strings.EqualFold(mimeType, webrtc.MimeTypeVP9):
		return &codecs.VP9Packet{}, nil
	case strings.EqualFold(mimeType, webrtc.MimeTypeH264):
		return &codecs.H264Packet{}, nil
	default:
		return nil, fmt.Errorf("unsupported video codec %q", mimeType)
	}
}

// MimeType is the codec of the track, e.g. "video/VP8". Frames are the
// depacketized codec bitstream, not decoded images.
func (s *VideoStream) MimeType() string { return s.mimeType }

// ReadFrame blocks until a full frame is assembled. After Close it returns
// [events.ErrStreamClosed].
func (s *VideoStream) ReadFrame(ctx context.Context) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for {
		if s.closed.Load() {
			return nil, events.ErrStreamClosed
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		if sample := s.builder.Pop(); sample != nil {
			return sample.Data, nil
		}

		packet, err := s.read()
		if err != nil {
			if s.closed.Load() {
				return nil, events.ErrStreamClosed
			}
			return nil, err
		}
		s.builder.Push(packet)
	}
}

// Close unblocks a pending ReadFrame. The underlying track belongs to the room
// and is left alone.
func (s *VideoStream) Close() error {
	err := events.ErrStreamClosed
	s.closeOnce.Do(func() {
		s.closed.Store(true)
		err = nil
		if interruptErr := s.interrupt(); interruptErr != nil {
			err = fmt.Errorf("failed to interrupt track read: %w", interruptErr)
		}
	})
	return err
}
