package workers

import (
	"chat-relay/observability"
	"context"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestHealthMonitoringWorker_Samples_Own_Process(t *testing.T) {
	req := require.New(t)
	monitor := observability.NewMonitor(slog.Default())
	worker := NewHealthMonitoringWorker(slog.Default(), monitor, 10*time.Millisecond, func() int { return 7 })

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	req.NoError(worker.Run(ctx))

	stats := monitor.GetLatest()
	req.Equal(int32(os.Getpid()), stats.Process.PID)
	req.Positive(stats.Process.RSSBytes)
	req.Equal(7, stats.CurrentIndexQueue)
}
