// Package domain contains core concepts of the chat system.
// This file defines Message events and related rules.
// Messages are immutable and validated by the domain.
package domain

import (
	"bytes"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Message represents an immutable private message between two identities.
// ID and CreatedAt are assigned server side, never by the client.
type Message struct {
	ID        uuid.UUID // assigned by the message store
	From      Identity
	To        Identity
	Text      string
	CreatedAt time.Time
}

// HasText reports whether the text holds anything but whitespace.
func HasText(text string) bool {
	return strings.TrimSpace(text) != ""
}

// Involves reports whether the identity is the sender or the receiver.
func (m Message) Involves(identity Identity) bool {
	return m.From == identity || m.To == identity
}

// Compare orders messages by creation time, then by identifier.
func (m Message) Compare(other Message) int {
	if c := m.CreatedAt.Compare(other.CreatedAt); c != 0 {
		return c
	}
	return bytes.Compare(m.ID[:], other.ID[:])
}

// SortConversation sorts messages in conversation order.
func SortConversation(messages []Message) {
	slices.SortStableFunc(messages, func(a, b Message) int {
		return a.Compare(b)
	})
}
