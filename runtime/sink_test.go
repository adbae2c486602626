package runtime_test

import (
	"chat-relay/domain"
	"chat-relay/domain/event"
	"context"
	"sync"
)

// recordingSink keeps every event it accepts, or refuses them all when err is set.
type recordingSink struct {
	mu     sync.Mutex
	events []event.DomainEvent
	err    error
}

func (s *recordingSink) Consume(_ context.Context, e event.DomainEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.events = append(s.events, e)
	return nil
}

func (s *recordingSink) snapshots() [][]domain.Identity {
	s.mu.Lock()
	defer s.mu.Unlock()
	var res [][]domain.Identity
	for _, e := range s.events {
		if users, ok := e.(event.Users); ok {
			res = append(res, users.Identities)
		}
	}
	return res
}

func (s *recordingSink) lastSnapshot() []domain.Identity {
	snapshots := s.snapshots()
	if len(snapshots) == 0 {
		return nil
	}
	return snapshots[len(snapshots)-1]
}

func (s *recordingSink) messages() []domain.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	var res []domain.Message
	for _, e := range s.events {
		if pm, ok := e.(event.PrivateMessage); ok {
			res = append(res, pm.Message)
		}
	}
	return res
}
