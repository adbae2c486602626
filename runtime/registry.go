package runtime

import (
	"chat-relay/contract"
	"chat-relay/domain"
	"log/slog"
	"slices"
	"sync"

	"github.com/samber/lo"
)

// Registry maps each online identity to its single live channel.
// It is the only source of truth for "who is online" in this process.
type Registry struct {
	// notifyMu serializes mutate+notify so listeners observe mutations in order.
	notifyMu  sync.Mutex
	mu        sync.RWMutex
	sessions  map[domain.Identity]contract.EventSink
	listeners []contract.PresenceListener
	log       *slog.Logger
}

func NewRegistry(log *slog.Logger) *Registry {
	return &Registry{
		sessions: make(map[domain.Identity]contract.EventSink),
		log:      log,
	}
}

// AddListener registers a listener told about every membership change.
// Listeners must be added before the registry is shared.
func (r *Registry) AddListener(listener contract.PresenceListener) {
	r.notifyMu.Lock()
	defer r.notifyMu.Unlock()
	r.listeners = append(r.listeners, listener)
}

// Attach binds the identity to the sink, replacing any previous one (last writer wins).
// Listeners are always notified, even when the same sink attaches twice.
func (r *Registry) Attach(identity domain.Identity, sink contract.EventSink) {
	r.notifyMu.Lock()
	defer r.notifyMu.Unlock()

	r.mu.Lock()
	previous, replaced := r.sessions[identity]
	r.sessions[identity] = sink
	snapshot, sinks := r.snapshotLocked()
	r.mu.Unlock()

	if replaced && previous != sink {
		r.log.Debug("Presence replaced", "identity", identity)
	} else {
		r.log.Debug("Presence attached", "identity", identity)
	}
	r.notify(snapshot, sinks)
}

// Detach removes the identity only if sink is still the registered one.
// A stale channel closing after a reconnect is a no-op and nobody is notified.
func (r *Registry) Detach(identity domain.Identity, sink contract.EventSink) bool {
	r.notifyMu.Lock()
	defer r.notifyMu.Unlock()

	r.mu.Lock()
	current, ok := r.sessions[identity]
	if !ok || current != sink {
		r.mu.Unlock()
		r.log.Debug("Stale detach ignored", "identity", identity)
		return false
	}
	delete(r.sessions, identity)
	snapshot, sinks := r.snapshotLocked()
	r.mu.Unlock()

	r.log.Debug("Presence detached", "identity", identity)
	r.notify(snapshot, sinks)
	return true
}

// Lookup never waits on a broadcast in progress.
func (r *Registry) Lookup(identity domain.Identity) (contract.EventSink, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	sink, ok := r.sessions[identity]
	return sink, ok
}

// Snapshot returns the online identities, sorted.
func (r *Registry) Snapshot() []domain.Identity {
	r.mu.RLock()
	defer r.mu.RUnlock()
	snapshot, _ := r.snapshotLocked()
	return snapshot
}

func (r *Registry) snapshotLocked() ([]domain.Identity, []contract.EventSink) {
	identities := lo.Keys(r.sessions)
	slices.Sort(identities)
	sinks := lo.Map(identities, func(identity domain.Identity, _ int) contract.EventSink {
		return r.sessions[identity]
	})
	return identities, sinks
}

func (r *Registry) notify(snapshot []domain.Identity, sinks []contract.EventSink) {
	for _, listener := range r.listeners {
		listener.PresenceChanged(slices.Clone(snapshot), sinks)
	}
}
