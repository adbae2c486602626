package runtime

import (
	"chat-relay/contract"
	"chat-relay/domain"
	"chat-relay/domain/event"
	"chat-relay/observability"
	"context"
	"log/slog"
	"time"
)

// Broadcaster pushes the full presence snapshot to every attached channel.
// It is best-effort: one failing sink never prevents the others from receiving.
type Broadcaster struct {
	log         *slog.Logger
	registry    contract.IRegistry
	monitor     *observability.Monitor
	sinkTimeout time.Duration
}

func NewBroadcaster(log *slog.Logger, registry contract.IRegistry,
	monitor *observability.Monitor, sinkTimeout time.Duration) *Broadcaster {
	return &Broadcaster{
		log:         log,
		registry:    registry,
		monitor:     monitor,
		sinkTimeout: sinkTimeout,
	}
}

// PresenceChanged is called by the registry after each membership change.
func (b *Broadcaster) PresenceChanged(snapshot []domain.Identity, sinks []contract.EventSink) {
	users := event.Users{Identities: snapshot}
	for _, sink := range sinks {
		b.deliver(context.Background(), sink, users)
	}
	b.monitor.IncrBroadcasts()
	b.log.Debug("Presence broadcast", "online", len(snapshot), "sinks", len(sinks))
}

// SendSnapshot answers an explicit request for the presence list, to that sink only.
func (b *Broadcaster) SendSnapshot(ctx context.Context, sink contract.EventSink) {
	b.deliver(ctx, sink, event.Users{Identities: b.registry.Snapshot()})
}

func (b *Broadcaster) deliver(ctx context.Context, sink contract.EventSink, evt event.DomainEvent) {
	ctx, cancel := context.WithTimeout(ctx, b.sinkTimeout)
	defer cancel()
	if err := sink.Consume(ctx, evt); err != nil {
		b.log.Warn("Presence snapshot not delivered", "error", err)
	}
}
