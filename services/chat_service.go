//go:generate go run go.uber.org/mock/mockgen -source=chat_service.go -destination=../mocks/mock_chat_service.go -package=mocks
package services

import (
	"chat-relay/contract"
	"chat-relay/domain"
	"chat-relay/domain/search"
	"chat-relay/errors"
	"chat-relay/observability"
	"chat-relay/repositories"
	"chat-relay/runtime"
	"cmp"
	"context"
	"fmt"
	"slices"

	"github.com/samber/lo"
)

// IChatService is everything a transport needs from the relay core.
type IChatService interface {
	Login(identity domain.Identity, sink contract.EventSink)
	Logout(identity domain.Identity, sink contract.EventSink) bool
	SendMessage(ctx context.Context, cmd domain.SendMessageCommand, origin contract.EventSink) (domain.Message, error)
	GetMessages(ctx context.Context, cmd domain.GetHistoryCommand) ([]domain.Message, error)
	RequestUsers(ctx context.Context, sink contract.EventSink)
	OnlineUsers() []domain.Identity
	Directory(requester domain.Identity) ([]domain.DirectoryEntry, error)
	Search(ctx context.Context, requester, peer domain.Identity, input string) ([]domain.Message, error)
	Stats() observability.Stats
}

type ChatService struct {
	registry       contract.IRegistry
	relay          *runtime.Relay
	broadcaster    *runtime.Broadcaster
	history        *HistoryService
	userRepository repositories.IUserRepository
	index          repositories.IMessageIndex
	monitor        *observability.Monitor
}

func NewChatService(registry contract.IRegistry, relay *runtime.Relay, broadcaster *runtime.Broadcaster,
	history *HistoryService, userRepository repositories.IUserRepository,
	index repositories.IMessageIndex, monitor *observability.Monitor) *ChatService {
	return &ChatService{
		registry:       registry,
		relay:          relay,
		broadcaster:    broadcaster,
		history:        history,
		userRepository: userRepository,
		index:          index,
		monitor:        monitor,
	}
}

func (s *ChatService) Login(identity domain.Identity, sink contract.EventSink) {
	s.registry.Attach(identity, sink)
}

// Logout is a no-op when the identity has reconnected on another channel since.
func (s *ChatService) Logout(identity domain.Identity, sink contract.EventSink) bool {
	return s.registry.Detach(identity, sink)
}

func (s *ChatService) SendMessage(ctx context.Context, cmd domain.SendMessageCommand, origin contract.EventSink) (domain.Message, error) {
	return s.relay.Send(ctx, cmd, origin)
}

// GetMessages answers only to one of the two participants.
func (s *ChatService) GetMessages(ctx context.Context, cmd domain.GetHistoryCommand) ([]domain.Message, error) {
	if cmd.Requester.IsBlank() || cmd.A.IsBlank() || cmd.B.IsBlank() {
		return nil, fmt.Errorf("%w: both participants are required", errors.ErrValidation)
	}
	if !cmd.Participant() {
		return nil, errors.ErrForbidden
	}
	return s.history.History(ctx, cmd.A, cmd.B)
}

func (s *ChatService) RequestUsers(ctx context.Context, sink contract.EventSink) {
	s.broadcaster.SendSnapshot(ctx, sink)
}

func (s *ChatService) OnlineUsers() []domain.Identity {
	return s.registry.Snapshot()
}

// Directory lists every registered user but the requester, flagged with presence.
func (s *ChatService) Directory(requester domain.Identity) ([]domain.DirectoryEntry, error) {
	usernames, err := s.userRepository.ListUsernames()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errors.ErrStorage, err)
	}
	online := lo.SliceToMap(s.registry.Snapshot(), func(identity domain.Identity) (domain.Identity, struct{}) {
		return identity, struct{}{}
	})
	entries := lo.FilterMap(usernames, func(username string, _ int) (domain.DirectoryEntry, bool) {
		identity := domain.Identity(username)
		_, isOnline := online[identity]
		return domain.DirectoryEntry{Username: identity, Online: isOnline}, identity != requester
	})
	slices.SortFunc(entries, func(a, b domain.DirectoryEntry) int {
		return cmp.Compare(a.Username, b.Username)
	})
	return entries, nil
}

// Search looks for text within the conversation between requester and peer.
func (s *ChatService) Search(ctx context.Context, requester, peer domain.Identity, input string) ([]domain.Message, error) {
	if requester.IsBlank() || peer.IsBlank() {
		return nil, fmt.Errorf("%w: both participants are required", errors.ErrValidation)
	}
	query := search.NewSearchQuery(requester, peer, input)
	if query.IsEmpty() {
		return nil, fmt.Errorf("%w: search terms are required", errors.ErrValidation)
	}
	if s.index == nil {
		return nil, nil
	}
	messages, err := s.index.Search(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errors.ErrStorage, err)
	}
	return messages, nil
}

func (s *ChatService) Stats() observability.Stats {
	return s.monitor.GetLatest()
}
