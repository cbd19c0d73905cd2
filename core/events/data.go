package events

import (
	"encoding/json"
	"errors"
	"fmt"
)

const KindDataReceived Kind = "data.received"

// ControlTypeCameraState is the only control message type a session acts on.
const ControlTypeCameraState = "camera_state"

var (
	// ErrIgnoredTopic is returned for packets outside the control topic.
	ErrIgnoredTopic = errors.New("packet topic is not the control topic")
	// ErrIgnoredType is returned for control messages of an unknown type.
	ErrIgnoredType = errors.New("control message type is not handled")
)

type DataReceived struct {
	Base
	Topic       string
	Payload     []byte
	Participant string
}

func NewDataReceived(topic string, payload []byte, participant string) DataReceived {
	return DataReceived{Base: NewBase(KindDataReceived), Topic: topic, Payload: payload, Participant: participant}
}

// ControlMessage is the declared camera intent sent by the client before (or
// alongside) the media path.
type ControlMessage struct {
	Type string `json:"type"`
	On   bool   `json:"-"`
}

// DecodeControlMessage decodes a camera_state message from a packet received on
// topic. Packets on other topics yield [ErrIgnoredTopic], other message types
// yield [ErrIgnoredType], anything undecodable yields a wrapped decode error.
func DecodeControlMessage(topic string, packet DataReceived) (ControlMessage, error) {
	if packet.Topic != topic {
		return ControlMessage{}, ErrIgnoredTopic
	}

	var raw struct {
		Type string `json:"type"`
		On   any    `json:"on"`
	}
	if err := json.Unmarshal(packet.Payload, &raw); err != nil {
		return ControlMessage{}, fmt.Errorf("failed to decode control message: %w", err)
	}

	if raw.Type != ControlTypeCameraState {
		return ControlMessage{Type: raw.Type}, ErrIgnoredType
	}

	return ControlMessage{Type: raw.Type, On: truthy(raw.On)}, nil
}

// truthy coerces loosely typed JSON the way clients tend to send it.
func truthy(value any) bool {
	switch v := value.(type) {
	case bool:
		return v
	case float64:
		return v != 0
	case string:
		return v != "" && v != "false" && v != "0"
	default:
		return false
	}
}
