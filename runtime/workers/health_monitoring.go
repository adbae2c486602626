package workers

import (
	"chat-relay/observability"
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/shirou/gopsutil/process"
)

// HealthMonitoringWorker samples the relay process every metric interval.
type HealthMonitoringWorker struct {
	log            *slog.Logger
	monitor        *observability.Monitor
	metricInterval time.Duration
	queueLen       func() int
}

func NewHealthMonitoringWorker(log *slog.Logger, monitor *observability.Monitor,
	metricInterval time.Duration, queueLen func() int) *HealthMonitoringWorker {
	return &HealthMonitoringWorker{
		log:            log,
		monitor:        monitor,
		metricInterval: metricInterval,
		queueLen:       queueLen,
	}
}

func (w *HealthMonitoringWorker) Run(ctx context.Context) error {
	p, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return err
	}
	ticker := time.NewTicker(w.metricInterval)
	defer ticker.Stop()

	w.sample(p)
	for {
		select {
		case <-ctx.Done():
			w.log.Debug("Context done, stopping health monitoring")
			return nil
		case <-ticker.C:
			w.sample(p)
		}
	}
}

func (w *HealthMonitoringWorker) sample(p *process.Process) {
	stats, err := selfStats(p)
	if err != nil {
		w.log.Error("Failed to collect self stats", "error", err)
		return
	}
	w.monitor.UpdateProcess(stats, w.queueLen())
}

// selfStats retrieves memory, CPU and OS status of the given process.
func selfStats(p *process.Process) (observability.ProcessStats, error) {
	memInfo, err := p.MemoryInfo()
	if err != nil {
		return observability.ProcessStats{}, err
	}
	cpu, err := p.CPUPercent()
	if err != nil {
		return observability.ProcessStats{}, err
	}
	status, err := p.Status()
	if err != nil {
		return observability.ProcessStats{}, err
	}
	return observability.ProcessStats{
		PID:        p.Pid,
		Status:     status,
		CPUPercent: cpu,
		RSSBytes:   memInfo.RSS,
		SampledAt:  time.Now().UTC(),
	}, nil
}
