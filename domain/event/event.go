package event

import "chat-relay/domain"

// Name is the wire name of an event on a channel.
type Name string

const (
	UsersName          Name = "users"
	PrivateMessageName Name = "private message"
	ChatHistoryName    Name = "chat history"
	ErrorName          Name = "error"
)

// DomainEvent is anything the core hands to a channel's deliver capability.
type DomainEvent interface {
	EventName() Name
}

// Users carries the full presence snapshot, never a delta.
type Users struct {
	Identities []domain.Identity
}

func (Users) EventName() Name { return UsersName }

// PrivateMessage is both the push to the receiver and the ack to the sender.
type PrivateMessage struct {
	Message domain.Message
}

func (PrivateMessage) EventName() Name { return PrivateMessageName }

type ChatHistory struct {
	Messages []domain.Message
}

func (ChatHistory) EventName() Name { return ChatHistoryName }

// Failure reports an error to the originating channel only.
type Failure struct {
	Message string
}

func (Failure) EventName() Name { return ErrorName }
