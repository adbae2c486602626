package observability

import (
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestMonitor_Counters_And_Process_Sample(t *testing.T) {
	req := require.New(t)
	monitor := NewMonitor(slog.Default()).WithOnline(func() int { return 2 })

	monitor.IncrPersisted()
	monitor.IncrPersisted()
	monitor.IncrDelivered()
	monitor.IncrUndelivered()
	monitor.IncrPushFailures()
	monitor.IncrBroadcasts()
	monitor.IncrIndexDropped()
	monitor.IncrWorkerRestarts()
	sampledAt := time.Now()
	monitor.UpdateProcess(ProcessStats{PID: 42, Status: "R", RSSBytes: 1024, SampledAt: sampledAt}, 3)

	stats := monitor.GetLatest()
	req.Equal(2, stats.Online)
	req.Equal(uint64(2), stats.Persisted)
	req.Equal(uint64(1), stats.Delivered)
	req.Equal(uint64(1), stats.Undelivered)
	req.Equal(uint64(1), stats.PushFailures)
	req.Equal(uint64(1), stats.Broadcasts)
	req.Equal(uint64(1), stats.IndexDropped)
	req.Equal(uint64(1), stats.WorkerRestarts)
	req.Equal(int32(42), stats.Process.PID)
	req.Equal(3, stats.CurrentIndexQueue)
	req.Positive(stats.NumGoroutine)
}
