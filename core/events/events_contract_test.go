package events

import (
	"errors"
	"testing"
)

func TestConstructorsEmitExpectedKinds(t *testing.T) {
	video := Track{SID: "TR_video", MediaKind: TrackKindVideo, Participant: "cook"}

	testCases := []struct {
		name     string
		event    Event
		expected Kind
	}{
		{name: "track subscribed", event: NewTrackSubscribed(video, false, nil), expected: KindTrackSubscribed},
		{name: "track unsubscribed", event: NewTrackUnsubscribed(video), expected: KindTrackUnsubscribed},
		{name: "track muted", event: NewTrackMuted(video), expected: KindTrackMuted},
		{name: "track unmuted", event: NewTrackUnmuted(video), expected: KindTrackUnmuted},
		{name: "data received", event: NewDataReceived("yeschef", nil, "cook"), expected: KindDataReceived},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			if got := testCase.event.Kind(); got != testCase.expected {
				t.Fatalf("expected kind %q, got %q", testCase.expected, got)
			}
			if testCase.event.ReceivedAt().IsZero() {
				t.Fatalf("expected event timestamp to be set")
			}
		})
	}
}

func TestKindPlane(t *testing.T) {
	if got := KindTrackMuted.Plane(); got != "track" {
		t.Fatalf("expected track plane, got %q", got)
	}
	if got := KindDataReceived.Plane(); got != "data" {
		t.Fatalf("expected data plane, got %q", got)
	}
	if got := Kind("custom").Plane(); got != "custom" {
		t.Fatalf("expected a kind without a dot to be its own plane, got %q", got)
	}
}

func TestDecodeControlMessageCameraState(t *testing.T) {
	packet := NewDataReceived("yeschef", []byte(`{"type":"camera_state","on":true}`), "cook")

	msg, err := DecodeControlMessage("yeschef", packet)
	if err != nil {
		t.Fatalf("expected camera_state to decode, got %v", err)
	}
	if !msg.On {
		t.Fatalf("expected camera_state on=true")
	}
}

func TestDecodeControlMessageIgnoresOtherTopics(t *testing.T) {
	packet := NewDataReceived("chat", []byte(`{"type":"camera_state","on":true}`), "cook")

	if _, err := DecodeControlMessage("yeschef", packet); !errors.Is(err, ErrIgnoredTopic) {
		t.Fatalf("expected ErrIgnoredTopic, got %v", err)
	}
}

func TestDecodeControlMessageIgnoresOtherTypes(t *testing.T) {
	packet := NewDataReceived("yeschef", []byte(`{"type":"next_step"}`), "cook")

	if _, err := DecodeControlMessage("yeschef", packet); !errors.Is(err, ErrIgnoredType) {
		t.Fatalf("expected ErrIgnoredType, got %v", err)
	}
}

func TestDecodeControlMessageRejectsMalformedPayload(t *testing.T) {
	packet := NewDataReceived("yeschef", []byte(`{"type":`), "cook")

	_, err := DecodeControlMessage("yeschef", packet)
	if err == nil {
		t.Fatalf("expected malformed payload to fail decoding")
	}
	if errors.Is(err, ErrIgnoredTopic) || errors.Is(err, ErrIgnoredType) {
		t.Fatalf("expected a decode error, got %v", err)
	}
}

func TestDecodeControlMessageCoercesLooseOnValues(t *testing.T) {
	testCases := []struct {
		payload  string
		expected bool
	}{
		{payload: `{"type":"camera_state","on":1}`, expected: true},
		{payload: `{"type":"camera_state","on":0}`, expected: false},
		{payload: `{"type":"camera_state","on":"true"}`, expected: true},
		{payload: `{"type":"camera_state","on":null}`, expected: false},
		{payload: `{"type":"camera_state"}`, expected: false},
	}

	for _, testCase := range testCases {
		msg, err := DecodeControlMessage("yeschef", NewDataReceived("yeschef", []byte(testCase.payload), ""))
		if err != nil {
			t.Fatalf("expected %s to decode, got %v", testCase.payload, err)
		}
		if msg.On != testCase.expected {
			t.Fatalf("expected %s to decode on=%t, got %t", testCase.payload, testCase.expected, msg.On)
		}
	}
}
