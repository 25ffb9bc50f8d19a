package push

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/desertthunder/mediasync/internal/shared"
)

// MessageType identifies a push frame.
type MessageType string

const (
	TypeTransferProgress MessageType = "transfer_progress"
	TypeTransferComplete MessageType = "transfer_complete"
	TypeActivity         MessageType = "activity"
)

// Message is a single JSON frame on the push channel.
//
// Inbound frames are transfer notifications; the only outbound frame is the activity ping.
type Message struct {
	Type       MessageType `json:"type"`
	TransferID string      `json:"transfer_id,omitempty"`
	Progress   float64     `json:"progress,omitempty"`
	Message    string      `json:"message,omitempty"`
	Timestamp  time.Time   `json:"timestamp"`
}

// ActivityMessage builds the outbound activity frame.
func ActivityMessage(at time.Time) Message {
	return Message{Type: TypeActivity, Timestamp: at.UTC()}
}

// Decode parses an inbound frame. Frames of unknown type are rejected.
func Decode(data []byte) (Message, error) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return Message{}, fmt.Errorf("%w: malformed push frame: %v", shared.ErrInvalidInput, err)
	}

	switch msg.Type {
	case TypeTransferProgress, TypeTransferComplete:
	default:
		return Message{}, fmt.Errorf("%w: unexpected push frame type %q", shared.ErrInvalidInput, msg.Type)
	}

	if msg.TransferID == "" {
		return Message{}, fmt.Errorf("%w: push frame missing transfer_id", shared.ErrInvalidInput)
	}

	return msg, nil
}
