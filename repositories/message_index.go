//go:generate go run go.uber.org/mock/mockgen -source=message_index.go -destination=../mocks/mock_message_index.go -package=mocks
package repositories

import (
	"chat-relay/domain"
	"chat-relay/domain/search"
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/blugelabs/bluge"
	"github.com/google/uuid"
)

const (
	idField           = "_id"
	conversationField = "conversation"
	fromField         = "from"
	toField           = "to"
	textField         = "text"
	createdAtField    = "createdAt"
)

// IMessageIndex is a secondary, rebuildable full-text view of persisted messages.
// The message store stays the source of truth for history.
type IMessageIndex interface {
	Index(message domain.Message) error
	Search(ctx context.Context, query search.Query) ([]domain.Message, error)
}

type MessageIndex struct {
	writer *bluge.Writer
	log    *slog.Logger
}

func NewMessageIndex(writer *bluge.Writer, log *slog.Logger) *MessageIndex {
	return &MessageIndex{writer: writer, log: log}
}

// Index upserts the message document, indexing twice the same message is harmless.
func (i *MessageIndex) Index(message domain.Message) error {
	doc := bluge.NewDocument(message.ID.String()).
		AddField(bluge.NewKeywordField(conversationField,
			domain.NewConversationKey(message.From, message.To).String()).StoreValue()).
		AddField(bluge.NewKeywordField(fromField, message.From.String()).StoreValue()).
		AddField(bluge.NewKeywordField(toField, message.To.String()).StoreValue()).
		AddField(bluge.NewTextField(textField, message.Text).StoreValue()).
		AddField(bluge.NewKeywordField(createdAtField, message.CreatedAt.Format(time.RFC3339Nano)).StoreValue())

	if err := i.writer.Update(doc.ID(), doc); err != nil {
		return fmt.Errorf("index update failed: %w", err)
	}
	return nil
}

// Search matches the terms inside one conversation and returns the hits in conversation order.
func (i *MessageIndex) Search(ctx context.Context, query search.Query) ([]domain.Message, error) {
	if query.IsEmpty() {
		return nil, nil
	}
	reader, err := i.writer.Reader()
	if err != nil {
		return nil, fmt.Errorf("index reader failed: %w", err)
	}
	defer func() {
		if err := reader.Close(); err != nil {
			i.log.Warn("Failed to close index reader", "error", err)
		}
	}()

	q := bluge.NewBooleanQuery().
		AddMust(bluge.NewTermQuery(query.Conversation.String()).SetField(conversationField)).
		AddMust(bluge.NewMatchQuery(query.Terms).SetField(textField))

	iterator, err := reader.Search(ctx, bluge.NewTopNSearch(query.Limit, q))
	if err != nil {
		return nil, fmt.Errorf("index search failed: %w", err)
	}

	var messages []domain.Message
	match, err := iterator.Next()
	for err == nil && match != nil {
		var message domain.Message
		var visitErr error
		err = match.VisitStoredFields(func(field string, value []byte) bool {
			switch field {
			case idField:
				message.ID, visitErr = uuid.ParseBytes(value)
			case fromField:
				message.From = domain.Identity(value)
			case toField:
				message.To = domain.Identity(value)
			case textField:
				message.Text = string(value)
			case createdAtField:
				message.CreatedAt, visitErr = time.Parse(time.RFC3339Nano, string(value))
			}
			return visitErr == nil
		})
		if err == nil {
			err = visitErr
		}
		if err != nil {
			break
		}
		messages = append(messages, message)
		match, err = iterator.Next()
	}
	if err != nil {
		return nil, fmt.Errorf("index iteration failed: %w", err)
	}

	domain.SortConversation(messages)
	return messages, nil
}
