// Package wire holds the JSON shapes shared by the websocket and REST surfaces.
package wire

import (
	"chat-relay/domain"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/samber/lo"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Marshal and Unmarshal use the jsoniter configuration compatible with encoding/json.
func Marshal(v any) ([]byte, error)      { return json.Marshal(v) }
func Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }

const wallClock = "15:04:05"

// MessagePayload is a message as clients see it.
type MessagePayload struct {
	ID        string `json:"_id"`
	From      string `json:"from"`
	To        string `json:"to"`
	Text      string `json:"text"`
	Time      string `json:"time"`
	CreatedAt string `json:"createdAt"`
}

func ToMessagePayload(message domain.Message) MessagePayload {
	return MessagePayload{
		ID:        message.ID.String(),
		From:      message.From.String(),
		To:        message.To.String(),
		Text:      message.Text,
		Time:      message.CreatedAt.Local().Format(wallClock),
		CreatedAt: message.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
}

// ToMessagePayloads never returns nil, an empty conversation is encoded as [].
func ToMessagePayloads(messages []domain.Message) []MessagePayload {
	return lo.Map(messages, func(message domain.Message, _ int) MessagePayload {
		return ToMessagePayload(message)
	})
}

// ToIdentities encodes a presence snapshot, never nil.
func ToIdentities(identities []domain.Identity) []string {
	return lo.Map(identities, func(identity domain.Identity, _ int) string {
		return identity.String()
	})
}

type ErrorPayload struct {
	Message string `json:"message"`
}
