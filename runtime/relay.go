// Package runtime holds the live part of the relay: who is online, how a message
// travels from its sender to its receiver, and how presence changes are announced.
package runtime

import (
	"chat-relay/contract"
	"chat-relay/domain"
	"chat-relay/domain/event"
	"chat-relay/errors"
	"chat-relay/observability"
	"chat-relay/repositories"
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// Relay validates, timestamps, persists and routes private messages.
type Relay struct {
	log              *slog.Logger
	registry         contract.IRegistry
	repository       repositories.IMessageRepository
	monitor          *observability.Monitor
	clock            contract.Clock
	censor           contract.ICensor
	indexQueue       chan<- domain.Message
	sinkTimeout      time.Duration
	maxContentLength int

	senders *keyedMutex

	clockMu sync.Mutex
	last    time.Time
}

func NewRelay(log *slog.Logger, registry contract.IRegistry,
	repository repositories.IMessageRepository, monitor *observability.Monitor,
	clock contract.Clock, sinkTimeout time.Duration, maxContentLength int) *Relay {
	return &Relay{
		log:              log,
		registry:         registry,
		repository:       repository,
		monitor:          monitor,
		clock:            clock,
		sinkTimeout:      sinkTimeout,
		maxContentLength: maxContentLength,
		senders:          newKeyedMutex(),
	}
}

// WithCensor rewrites every text before it is persisted.
func (r *Relay) WithCensor(censor contract.ICensor) *Relay {
	r.censor = censor
	return r
}

// WithIndexQueue hands every persisted message to the search indexer.
func (r *Relay) WithIndexQueue(queue chan<- domain.Message) *Relay {
	r.indexQueue = queue
	return r
}

// Send persists the message, pushes it to the receiver when online and acknowledges
// the origin channel. The message is returned as stored.
// Nothing is stored or delivered when validation or persistence fails.
// Sends from one sender are handled one at a time, in call order.
func (r *Relay) Send(ctx context.Context, cmd domain.SendMessageCommand, origin contract.EventSink) (domain.Message, error) {
	if err := ctx.Err(); err != nil {
		return domain.Message{}, err
	}
	if err := r.validate(cmd); err != nil {
		return domain.Message{}, err
	}
	// Once accepted, the send completes even if the caller goes away.
	ctx = context.WithoutCancel(ctx)

	unlock := r.senders.Lock(cmd.From)
	defer unlock()

	text := cmd.Text
	if r.censor != nil {
		var words []string
		text, words = r.censor.Censor(text)
		if len(words) > 0 {
			r.log.Info("Censored words replaced", "from", cmd.From, "count", len(words))
		}
	}

	stored, err := r.repository.Append(ctx, repositories.DiskMessage{
		From: cmd.From,
		To:   cmd.To,
		Text: text,
		At:   r.nextTimestamp(),
	})
	if err != nil {
		r.log.Error("Message not persisted", "from", cmd.From, "to", cmd.To, "error", err)
		return domain.Message{}, fmt.Errorf("%w: %w", errors.ErrStorage, err)
	}
	message := stored.ToMessage()
	r.monitor.IncrPersisted()
	r.enqueueIndex(message)

	evt := event.PrivateMessage{Message: message}
	receiver, online := r.registry.Lookup(message.To)
	switch {
	case !online:
		r.monitor.IncrUndelivered()
		r.log.Debug("Receiver offline, message kept for history", "id", message.ID, "to", message.To)
	case receiver == origin:
		// Message to self on the same channel, the ack is the delivery.
		r.monitor.IncrDelivered()
	default:
		if err := r.push(ctx, receiver, evt); err != nil {
			r.monitor.IncrPushFailures()
			r.log.Warn("Receiver unreachable", "id", message.ID, "to", message.To, "error", err)
		} else {
			r.monitor.IncrDelivered()
		}
	}

	if origin != nil {
		if err := r.push(ctx, origin, evt); err != nil {
			r.log.Warn("Ack not delivered", "id", message.ID, "from", message.From, "error", err)
		}
	}
	return message, nil
}

func (r *Relay) validate(cmd domain.SendMessageCommand) error {
	if err := validate.Struct(cmd); err != nil {
		return fmt.Errorf("%w: %v", errors.ErrValidation, err)
	}
	if cmd.From.IsBlank() || cmd.To.IsBlank() {
		return fmt.Errorf("%w: sender and receiver are required", errors.ErrValidation)
	}
	if !utf8.ValidString(string(cmd.From)) || !utf8.ValidString(string(cmd.To)) || !utf8.ValidString(cmd.Text) {
		return fmt.Errorf("%w: sender, receiver and text must be valid UTF-8", errors.ErrValidation)
	}
	if !domain.HasText(cmd.Text) {
		return fmt.Errorf("%w: text must not be empty", errors.ErrValidation)
	}
	if r.maxContentLength > 0 && utf8.RuneCountInString(cmd.Text) > r.maxContentLength {
		return fmt.Errorf("%w: text longer than %d characters", errors.ErrValidation, r.maxContentLength)
	}
	return nil
}

// nextTimestamp never goes backwards, even when the wall clock does.
func (r *Relay) nextTimestamp() time.Time {
	r.clockMu.Lock()
	defer r.clockMu.Unlock()
	now := r.clock.Now().UTC()
	if now.Before(r.last) {
		now = r.last
	}
	r.last = now
	return now
}

func (r *Relay) enqueueIndex(message domain.Message) {
	if r.indexQueue == nil {
		return
	}
	select {
	case r.indexQueue <- message:
	default:
		r.monitor.IncrIndexDropped()
		r.log.Warn("Index queue full, message not searchable", "id", message.ID)
	}
}

func (r *Relay) push(ctx context.Context, sink contract.EventSink, evt event.DomainEvent) error {
	ctx, cancel := context.WithTimeout(ctx, r.sinkTimeout)
	defer cancel()
	return sink.Consume(ctx, evt)
}
