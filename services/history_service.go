package services

import (
	"chat-relay/domain"
	"chat-relay/errors"
	"chat-relay/repositories"
	"context"
	"fmt"

	"github.com/samber/lo"
)

// HistoryService rebuilds a conversation from the message store.
// It is read-only, History(a, b) and History(b, a) return the same list.
type HistoryService struct {
	repository repositories.IMessageRepository
}

func NewHistoryService(repository repositories.IMessageRepository) *HistoryService {
	return &HistoryService{repository: repository}
}

func (s *HistoryService) History(ctx context.Context, a, b domain.Identity) ([]domain.Message, error) {
	diskMessages, err := s.repository.Query(ctx, a, b)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errors.ErrStorage, err)
	}
	messages := lo.Map(diskMessages, func(item repositories.DiskMessage, _ int) domain.Message {
		return item.ToMessage()
	})
	domain.SortConversation(messages)
	return messages, nil
}
