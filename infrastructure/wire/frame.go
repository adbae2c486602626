package wire

import (
	"chat-relay/domain/event"
	"fmt"

	jsoniter "github.com/json-iterator/go"
)

// Client event names, server event names live in the event package.
const (
	LoginEvent          = "login"
	GetUsersEvent       = "get users"
	PrivateMessageEvent = "private message"
	GetMessagesEvent    = "get messages"
)

// Frame is one websocket text message.
type Frame struct {
	Event string              `json:"event"`
	Data  jsoniter.RawMessage `json:"data,omitempty"`
}

type PrivateMessageRequest struct {
	To   string `json:"to"`
	Text string `json:"text"`
}

type GetMessagesRequest struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// EncodeEvent turns a domain event into a frame ready to be written.
func EncodeEvent(evt event.DomainEvent) ([]byte, error) {
	var data any
	switch e := evt.(type) {
	case event.Users:
		data = ToIdentities(e.Identities)
	case event.PrivateMessage:
		data = ToMessagePayload(e.Message)
	case event.ChatHistory:
		data = ToMessagePayloads(e.Messages)
	case event.Failure:
		data = ErrorPayload{Message: e.Message}
	default:
		return nil, fmt.Errorf("unsupported event %T", evt)
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Frame{Event: string(evt.EventName()), Data: raw})
}

// DecodeFrame parses a client frame.
func DecodeFrame(data []byte) (Frame, error) {
	var frame Frame
	if err := json.Unmarshal(data, &frame); err != nil {
		return Frame{}, err
	}
	if frame.Event == "" {
		return Frame{}, fmt.Errorf("missing event name")
	}
	return frame, nil
}
