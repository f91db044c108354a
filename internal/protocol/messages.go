// Package protocol defines the JSON wire format carried on the per-session
// chat channel.
package protocol

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/MalooBell/App-Intervention-ENEO/internal/domain"
)

// ChatEvent is the event exchanged on a session's transport channel.
// MessageID is the client-generated id carried through the round trip so the
// sender can reconcile its optimistic copy with the server echo.
type ChatEvent struct {
	SessionID string `json:"session_id"`
	MessageID string `json:"message_id,omitempty"`
	Message   string `json:"message"`
	Sender    string `json:"sender"`
	Timestamp string `json:"timestamp"`
}

// Error codes surfaced by the relay.
const (
	ErrorCodeInvalidMessage  = "invalid_message"
	ErrorCodeSessionRequired = "session_required"
	ErrorCodeInternalError   = "internal_error"
)

// Decode parses a raw transport frame into a ChatEvent.
func Decode(data []byte) (*ChatEvent, error) {
	var ev ChatEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		return nil, fmt.Errorf("decode chat event: %w", err)
	}
	if ev.Message == "" && ev.SessionID == "" {
		return nil, fmt.Errorf("decode chat event: empty payload")
	}
	return &ev, nil
}

// Encode serializes a ChatEvent for the transport.
func Encode(ev *ChatEvent) ([]byte, error) {
	data, err := json.Marshal(ev)
	if err != nil {
		return nil, fmt.Errorf("encode chat event: %w", err)
	}
	return data, nil
}

// ToMessage converts a wire event into a domain message. Events produced by
// older clients carry no message id; a fallback id keyed on content and
// timestamp keeps deduplication stable for those.
func (ev *ChatEvent) ToMessage() domain.Message {
	ts, err := time.Parse(time.RFC3339, ev.Timestamp)
	if err != nil {
		ts = time.Now()
	}
	id := ev.MessageID
	if id == "" {
		id = fmt.Sprintf("%s|%s|%s", ev.SessionID, ev.Sender, ev.Timestamp)
	}
	sender := domain.SenderClient
	if ev.Sender == string(domain.SenderAdmin) {
		sender = domain.SenderAdmin
	}
	return domain.Message{
		ID:        id,
		SessionID: ev.SessionID,
		Content:   ev.Message,
		Sender:    sender,
		Timestamp: ts,
		Status:    domain.MessageConfirmed,
	}
}

// FromMessage converts a domain message into its wire event.
func FromMessage(msg domain.Message) *ChatEvent {
	return &ChatEvent{
		SessionID: msg.SessionID,
		MessageID: msg.ID,
		Message:   msg.Content,
		Sender:    string(msg.Sender),
		Timestamp: msg.Timestamp.Format(time.RFC3339),
	}
}
