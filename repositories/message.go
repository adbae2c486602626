//go:generate go run go.uber.org/mock/mockgen -source=message.go -destination=../mocks/mock_message_repository.go -package=mocks
package repositories

import (
	"chat-relay/domain"
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
)

// IMessageRepository is the durable, append-only record of messages.
type IMessageRepository interface {
	// Append assigns the identifier and returns once the write is committed.
	Append(ctx context.Context, message DiskMessage) (DiskMessage, error)
	// Query returns the whole conversation between a and b in conversation order.
	Query(ctx context.Context, a, b domain.Identity) ([]DiskMessage, error)
}

const MessagePrefix = "msg:"

type MessageRepository struct {
	db  *badger.DB
	log *slog.Logger
}

func NewMessageRepository(db *badger.DB, log *slog.Logger) MessageRepository {
	return MessageRepository{db: db, log: log}
}

type DiskMessage struct {
	ID   uuid.UUID
	From domain.Identity
	To   domain.Identity
	Text string
	At   time.Time
}

// messageRecord is the persisted representation. Field names are part of the
// compatibility surface and must not change.
type messageRecord struct {
	ID        string `cbor:"id"`
	From      string `cbor:"from"`
	To        string `cbor:"to"`
	Text      string `cbor:"text"`
	CreatedAt int64  `cbor:"createdAt"`
}

// Append persists a message in BadgerDB.
// The key is formatted as "msg:{conversation}:{timestamp_padded}:{uuid}" to:
//  1. Ensure chronological sorting using 19-digit zero padding (lexicographical order).
//  2. Break ties on the time-ordered UUIDv7, which follows insertion order within the process.
func (m MessageRepository) Append(ctx context.Context, message DiskMessage) (DiskMessage, error) {
	if err := ctx.Err(); err != nil {
		return DiskMessage{}, err
	}
	id, err := uuid.NewV7()
	if err != nil {
		return DiskMessage{}, fmt.Errorf("identifier generation failed: %w", err)
	}
	message.ID = id

	bytes, err := marshal(fromDiskMessage(message))
	if err != nil {
		return DiskMessage{}, err
	}
	err = m.db.Update(func(txn *badger.Txn) error {
		return txn.Set(messageKey(message), bytes)
	})
	if err != nil {
		return DiskMessage{}, err
	}
	m.log.Debug("Message appended", "id", message.ID, "from", message.From, "to", message.To)
	return message, nil
}

// Query retrieves the conversation using a prefix scan.
// Thanks to the padded timestamp in the key, messages are naturally sorted by time.
func (m MessageRepository) Query(ctx context.Context, a, b domain.Identity) ([]DiskMessage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var diskMessages []DiskMessage
	err := m.db.View(func(txn *badger.Txn) error {
		prefix := conversationPrefix(domain.NewConversationKey(a, b))
		options := badger.DefaultIteratorOptions
		options.Prefix = prefix
		it := txn.NewIterator(options)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			err := item.Value(func(value []byte) error {
				message, err := DecodeMessage(value)
				if err != nil {
					m.log.Warn("Skipping undecodable message", "key", string(item.Key()), "error", err)
					return nil
				}
				diskMessages = append(diskMessages, message)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return diskMessages, nil
}

// DecodeMessage reads one stored value, for tools browsing the store directly.
func DecodeMessage(value []byte) (DiskMessage, error) {
	var record messageRecord
	if err := unmarshal(value, &record); err != nil {
		return DiskMessage{}, err
	}
	return toDiskMessage(record)
}

// ConversationPrefix is the key prefix shared by every message between a and b.
func ConversationPrefix(a, b domain.Identity) []byte {
	return conversationPrefix(domain.NewConversationKey(a, b))
}

func conversationPrefix(key domain.ConversationKey) []byte {
	return []byte(fmt.Sprintf("%s%s:", MessagePrefix, key))
}

func messageKey(message DiskMessage) []byte {
	return []byte(fmt.Sprintf("%s%s:%019d:%s", MessagePrefix,
		domain.NewConversationKey(message.From, message.To),
		message.At.UnixNano(),
		message.ID,
	))
}

func fromDiskMessage(message DiskMessage) messageRecord {
	return messageRecord{
		ID:        message.ID.String(),
		From:      string(message.From),
		To:        string(message.To),
		Text:      message.Text,
		CreatedAt: message.At.UnixNano(),
	}
}

func toDiskMessage(record messageRecord) (DiskMessage, error) {
	parsedID, err := uuid.Parse(record.ID)
	if err != nil {
		return DiskMessage{}, err
	}
	return DiskMessage{
		ID:   parsedID,
		From: domain.Identity(record.From),
		To:   domain.Identity(record.To),
		Text: record.Text,
		At:   time.Unix(0, record.CreatedAt).UTC(),
	}, nil
}

// ToMessage maps the stored form to the domain message.
func (d DiskMessage) ToMessage() domain.Message {
	return domain.Message{
		ID:        d.ID,
		From:      d.From,
		To:        d.To,
		Text:      d.Text,
		CreatedAt: d.At,
	}
}
