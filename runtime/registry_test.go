package runtime_test

import (
	"chat-relay/contract"
	"chat-relay/domain"
	"chat-relay/mocks"
	"chat-relay/observability"
	"chat-relay/runtime"
	"fmt"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func newRegistry() *runtime.Registry {
	return runtime.NewRegistry(logs.GetLoggerFromLevel(slog.LevelDebug))
}

// newPresence wires a registry and its broadcaster the way the server does.
func newPresence() (*runtime.Registry, *runtime.Broadcaster) {
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	registry := runtime.NewRegistry(log)
	broadcaster := runtime.NewBroadcaster(log, registry, observability.NewMonitor(log), time.Second)
	registry.AddListener(broadcaster)
	return registry, broadcaster
}

func TestRegistry_Attach_Lookup_Snapshot(t *testing.T) {
	req := require.New(t)
	registry := newRegistry()
	alice, bob := &recordingSink{}, &recordingSink{}

	// Given nobody is online
	req.Empty(registry.Snapshot())
	_, ok := registry.Lookup("alice")
	req.False(ok)

	// When two identities attach
	registry.Attach("bob", bob)
	registry.Attach("alice", alice)

	// Then both are reachable and the snapshot is sorted
	sink, ok := registry.Lookup("alice")
	req.True(ok)
	req.Same(alice, sink)
	req.Equal([]domain.Identity{"alice", "bob"}, registry.Snapshot())
}

func TestRegistry_Attach_Replaces_Previous_Channel(t *testing.T) {
	req := require.New(t)
	registry := newRegistry()
	first, second := &recordingSink{}, &recordingSink{}

	registry.Attach("alice", first)
	registry.Attach("alice", second)

	sink, ok := registry.Lookup("alice")
	req.True(ok)
	req.Same(second, sink)
	req.Equal([]domain.Identity{"alice"}, registry.Snapshot())
}

func TestRegistry_Stale_Detach_Is_A_NoOp(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	listener := mocks.NewMockPresenceListener(ctrl)
	registry := newRegistry()
	registry.AddListener(listener)
	c1, c2 := &recordingSink{}, &recordingSink{}

	// Given alice reconnected on C2 before C1 closed
	listener.EXPECT().PresenceChanged([]domain.Identity{"alice"}, []contract.EventSink{c1}).Times(1)
	listener.EXPECT().PresenceChanged([]domain.Identity{"alice"}, []contract.EventSink{c2}).Times(1)
	registry.Attach("alice", c1)
	registry.Attach("alice", c2)

	// When C1 closes
	removed := registry.Detach("alice", c1)

	// Then alice stays online on C2 and nobody is notified
	req.False(removed)
	sink, ok := registry.Lookup("alice")
	req.True(ok)
	req.Same(c2, sink)
	req.Equal([]domain.Identity{"alice"}, registry.Snapshot())
}

func TestRegistry_Detach_Current_Channel_Notifies(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	listener := mocks.NewMockPresenceListener(ctrl)
	registry := newRegistry()
	registry.AddListener(listener)
	alice, bob := &recordingSink{}, &recordingSink{}

	gomock.InOrder(
		listener.EXPECT().PresenceChanged([]domain.Identity{"alice"}, gomock.Any()),
		listener.EXPECT().PresenceChanged([]domain.Identity{"alice", "bob"}, gomock.Any()),
		listener.EXPECT().PresenceChanged([]domain.Identity{"bob"}, []contract.EventSink{bob}),
	)
	registry.Attach("alice", alice)
	registry.Attach("bob", bob)

	req.True(registry.Detach("alice", alice))
	req.False(registry.Detach("alice", alice))
	req.False(registry.Detach("nobody", alice))
}

func TestRegistry_Attach_Same_Channel_Twice_Still_Notifies(t *testing.T) {
	ctrl := gomock.NewController(t)
	listener := mocks.NewMockPresenceListener(ctrl)
	registry := newRegistry()
	registry.AddListener(listener)
	sink := &recordingSink{}

	listener.EXPECT().PresenceChanged([]domain.Identity{"alice"}, []contract.EventSink{sink}).Times(2)

	registry.Attach("alice", sink)
	registry.Attach("alice", sink)
}

func TestRegistry_One_Entry_Per_Identity_Under_Concurrency(t *testing.T) {
	req := require.New(t)
	registry, _ := newPresence()
	sinks := make([]*recordingSink, 50)
	for i := range sinks {
		sinks[i] = &recordingSink{}
	}

	// When the same identity attaches from many channels at once
	var wg sync.WaitGroup
	for _, sink := range sinks {
		wg.Add(1)
		go func() {
			defer wg.Done()
			registry.Attach("alice", sink)
		}()
	}
	wg.Wait()

	// Then exactly one channel is registered
	req.Equal([]domain.Identity{"alice"}, registry.Snapshot())
	current, ok := registry.Lookup("alice")
	req.True(ok)
	req.Contains(sinks, current)
}

func TestPresence_Concurrent_Attach_Converges(t *testing.T) {
	req := require.New(t)

	for i := 0; i < 50; i++ {
		registry, _ := newPresence()
		x, y := &recordingSink{}, &recordingSink{}

		// When x and y attach at the same time
		var wg sync.WaitGroup
		wg.Add(2)
		go func() { defer wg.Done(); registry.Attach("x", x) }()
		go func() { defer wg.Done(); registry.Attach("y", y) }()
		wg.Wait()

		// Then the last snapshot each one received is the full one
		expected := []domain.Identity{"x", "y"}
		req.Equal(expected, registry.Snapshot(), "iteration %d", i)
		req.Equal(expected, x.lastSnapshot(), "iteration %d", i)
		req.Equal(expected, y.lastSnapshot(), "iteration %d", i)
	}
}

func TestPresence_Every_Attached_Channel_Sees_Every_Change(t *testing.T) {
	req := require.New(t)
	registry, _ := newPresence()
	alice, bob := &recordingSink{}, &recordingSink{}

	registry.Attach("alice", alice)
	registry.Attach("bob", bob)
	registry.Detach("bob", bob)

	req.Equal([][]domain.Identity{{"alice"}, {"alice", "bob"}, {"alice"}}, alice.snapshots())
	// bob is gone before the last broadcast
	req.Equal([][]domain.Identity{{"alice", "bob"}}, bob.snapshots())
}

func TestPresence_Failing_Channel_Does_Not_Block_Others(t *testing.T) {
	req := require.New(t)
	registry, broadcaster := newPresence()
	broken := &recordingSink{err: fmt.Errorf("send buffer full")}
	alice := &recordingSink{}

	registry.Attach("broken", broken)
	registry.Attach("alice", alice)

	req.Equal([]domain.Identity{"alice", "broken"}, alice.lastSnapshot())

	// An explicit request only answers the caller
	bob := &recordingSink{}
	broadcaster.SendSnapshot(t.Context(), bob)
	req.Equal([][]domain.Identity{{"alice", "broken"}}, bob.snapshots())
	req.Len(alice.snapshots(), 1)
}
