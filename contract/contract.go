//go:generate go run go.uber.org/mock/mockgen -source=contract.go -destination=../mocks/mock_contract.go -package=mocks
package contract

import (
	"chat-relay/domain"
	"chat-relay/domain/event"
	"context"
	"reflect"
	"time"
)

type ISupervisor interface {
	Add(worker ...Worker) ISupervisor
	Run(ctx context.Context)
	Start(ctx context.Context, worker Worker)
	Stop()
}

type WorkerName string

// Worker doesn't protect itself
// Can be silly, focused
type Worker interface {
	Run(ctx context.Context) error
}

// GetWorkerName uses reflection to retrieve the type name of the worker.
// This is used for logging and supervision purposes during worker initialization
// or lifecycle events, avoiding the need for manual naming in the Worker interface.
func GetWorkerName(w Worker) string {
	if w == nil {
		return "NilWorker"
	}
	t := reflect.TypeOf(w)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Name()
}

// EventSink is the deliver capability of one live channel.
// Consume must not block past ctx; a sink that cannot take the event
// right away returns an error and the event is considered undelivered.
// Implementations must be comparable (pointer receivers) since the registry
// uses equality to tell a live channel from a stale one.
type EventSink interface {
	Consume(ctx context.Context, e event.DomainEvent) error
}

// PresenceListener is told about every membership change, in mutation order.
type PresenceListener interface {
	PresenceChanged(snapshot []domain.Identity, sinks []EventSink)
}

type IRegistry interface {
	Attach(identity domain.Identity, sink EventSink)
	Detach(identity domain.Identity, sink EventSink) bool
	Lookup(identity domain.Identity) (EventSink, bool)
	Snapshot() []domain.Identity
	AddListener(listener PresenceListener)
}

// ICensor rewrites forbidden words before a message is persisted.
type ICensor interface {
	Censor(text string) (string, []string)
}

// Clock is the source of message timestamps.
type Clock interface {
	Now() time.Time
}

// ClockFunc adapts a function to Clock.
type ClockFunc func() time.Time

func (f ClockFunc) Now() time.Time { return f() }
