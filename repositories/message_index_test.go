package repositories

import (
	"chat-relay/domain"
	"chat-relay/domain/search"
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/blugelabs/bluge"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func openIndex(t *testing.T) *MessageIndex {
	t.Helper()
	writer, err := bluge.OpenWriter(bluge.DefaultConfig(t.TempDir()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = writer.Close() })
	return NewMessageIndex(writer, slog.Default())
}

func newIndexedMessage(from, to domain.Identity, text string, at time.Time) domain.Message {
	return domain.Message{ID: uuid.Must(uuid.NewV7()), From: from, To: to, Text: text, CreatedAt: at}
}

func Test_Search_Matches_Text_Within_Conversation(t *testing.T) {
	req := require.New(t)
	index := openIndex(t)
	at := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

	// Given messages in two conversations mentioning the same word
	first := newIndexedMessage("alice", "bob", "the invoice is ready", at)
	second := newIndexedMessage("bob", "alice", "thanks for the invoice", at.Add(time.Minute))
	other := newIndexedMessage("alice", "carol", "another invoice", at)
	unrelated := newIndexedMessage("alice", "bob", "lunch tomorrow?", at.Add(2*time.Minute))
	for _, m := range []domain.Message{second, other, first, unrelated} {
		req.NoError(index.Index(m))
	}

	// When searching the alice/bob conversation
	messages, err := index.Search(context.Background(), search.NewSearchQuery("bob", "alice", "invoice"))

	// Then only that conversation matches, in conversation order
	req.NoError(err)
	req.Len(messages, 2)
	req.Equal(first.ID, messages[0].ID)
	req.Equal(second.ID, messages[1].ID)
	req.Equal(domain.Identity("bob"), messages[1].From)
	req.Equal("thanks for the invoice", messages[1].Text)
	req.True(second.CreatedAt.Equal(messages[1].CreatedAt))
}

func Test_Search_Respects_Limit(t *testing.T) {
	req := require.New(t)
	index := openIndex(t)
	at := time.Now().UTC()

	for i := 0; i < 5; i++ {
		req.NoError(index.Index(newIndexedMessage("alice", "bob", "ping", at.Add(time.Duration(i)*time.Second))))
	}

	messages, err := index.Search(context.Background(), search.NewSearchQuery("alice", "bob", "ping --limit 2"))
	req.NoError(err)
	req.Len(messages, 2)
}

func Test_Search_With_Empty_Terms_Returns_Nothing(t *testing.T) {
	req := require.New(t)
	index := openIndex(t)
	req.NoError(index.Index(newIndexedMessage("alice", "bob", "ping", time.Now())))

	messages, err := index.Search(context.Background(), search.NewSearchQuery("alice", "bob", "  --limit 3"))
	req.NoError(err)
	req.Empty(messages)
}

func Test_Index_Same_Message_Twice_Is_Idempotent(t *testing.T) {
	req := require.New(t)
	index := openIndex(t)
	message := newIndexedMessage("alice", "bob", "ping", time.Now())

	req.NoError(index.Index(message))
	req.NoError(index.Index(message))

	messages, err := index.Search(context.Background(), search.NewSearchQuery("alice", "bob", "ping"))
	req.NoError(err)
	req.Len(messages, 1)
}
