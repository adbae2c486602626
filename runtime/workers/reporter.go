package workers

import (
	"chat-relay/observability"
	"context"
	"log/slog"
	"time"
)

// ReporterWorker logs a one-line summary of the relay counters at every interval
// and once more on the way out.
type ReporterWorker struct {
	log      *slog.Logger
	monitor  *observability.Monitor
	interval time.Duration
	started  time.Time
}

func NewReporterWorker(log *slog.Logger, monitor *observability.Monitor, interval time.Duration) *ReporterWorker {
	return &ReporterWorker{log: log, monitor: monitor, interval: interval, started: time.Now()}
}

func (w *ReporterWorker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.report()
			return nil
		case <-ticker.C:
			w.report()
		}
	}
}

func (w *ReporterWorker) report() {
	stats := w.monitor.GetLatest()
	w.log.Info("Relay stats",
		"uptime", time.Since(w.started).Round(time.Second).String(),
		"online", stats.Online,
		"persisted", stats.Persisted,
		"delivered", stats.Delivered,
		"undelivered", stats.Undelivered,
		"push_failures", stats.PushFailures,
		"index_queue", stats.CurrentIndexQueue,
		"rss_mb", stats.Process.RSSBytes/1024/1024,
	)
}
