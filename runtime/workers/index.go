package workers

import (
	"chat-relay/domain"
	"chat-relay/repositories"
	"context"
	"log/slog"
)

// IndexWorker feeds persisted messages into the full-text index.
// Index failures are logged only, the message store stays the source of truth.
type IndexWorker struct {
	log   *slog.Logger
	index repositories.IMessageIndex
	queue <-chan domain.Message
}

func NewIndexWorker(log *slog.Logger, index repositories.IMessageIndex, queue <-chan domain.Message) *IndexWorker {
	return &IndexWorker{log: log, index: index, queue: queue}
}

func (w *IndexWorker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			w.log.Debug("Context done, stopping indexation")
			return nil
		case message, ok := <-w.queue:
			if !ok {
				w.log.Debug("Index queue closed")
				return nil
			}
			if err := w.index.Index(message); err != nil {
				w.log.Warn("Message not indexed", "id", message.ID, "error", err)
			}
		}
	}
}
