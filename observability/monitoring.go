package observability

import (
	"log/slog"
	"runtime"
	"sync"
	"sync/atomic"
	"time"
)

// ProcessStats is the last sample of the relay process itself.
type ProcessStats struct {
	PID        int32     `json:"pid"`
	Status     string    `json:"status"`
	CPUPercent float64   `json:"cpu_percent"`
	RSSBytes   uint64    `json:"rss_bytes"`
	SampledAt  time.Time `json:"sampled_at"`
}

// Stats aggregates every counter exposed on /debug/stats
type Stats struct {
	Online            int          `json:"online"`
	Persisted         uint64       `json:"persisted"`
	Delivered         uint64       `json:"delivered"`
	Undelivered       uint64       `json:"undelivered"`
	PushFailures      uint64       `json:"push_failures"`
	Broadcasts        uint64       `json:"broadcasts"`
	IndexDropped      uint64       `json:"index_dropped"`
	WorkerRestarts    uint64       `json:"worker_restarts"`
	AllocMemMb        uint64       `json:"alloc_mem_mb"`
	NumGC             uint32       `json:"num_gc"`
	NumGoroutine      int          `json:"num_goroutine"`
	Process           ProcessStats `json:"process"`
	CurrentIndexQueue int          `json:"current_index_queue"`
}

// Monitor holds the runtime counters of the relay.
// Counters are updated lock-free from the hot path, the process sample under mu.
type Monitor struct {
	log *slog.Logger
	mu  sync.RWMutex

	persisted      atomic.Uint64
	delivered      atomic.Uint64
	undelivered    atomic.Uint64
	pushFailures   atomic.Uint64
	broadcasts     atomic.Uint64
	indexDropped   atomic.Uint64
	workerRestarts atomic.Uint64

	process    ProcessStats
	indexQueue int
	online     func() int
}

func NewMonitor(log *slog.Logger) *Monitor {
	return &Monitor{log: log, online: func() int { return 0 }}
}

// WithOnline sets the function counting online identities.
func (m *Monitor) WithOnline(online func() int) *Monitor {
	m.online = online
	return m
}

func (m *Monitor) IncrPersisted()      { m.persisted.Add(1) }
func (m *Monitor) IncrDelivered()      { m.delivered.Add(1) }
func (m *Monitor) IncrUndelivered()    { m.undelivered.Add(1) }
func (m *Monitor) IncrPushFailures()   { m.pushFailures.Add(1) }
func (m *Monitor) IncrBroadcasts()     { m.broadcasts.Add(1) }
func (m *Monitor) IncrIndexDropped()   { m.indexDropped.Add(1) }
func (m *Monitor) IncrWorkerRestarts() { m.workerRestarts.Add(1) }

// UpdateProcess stores the last process sample and the index queue length.
func (m *Monitor) UpdateProcess(process ProcessStats, indexQueue int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.process = process
	m.indexQueue = indexQueue
}

func (m *Monitor) GetLatest() Stats {
	m.mu.RLock()
	process, indexQueue := m.process, m.indexQueue
	m.mu.RUnlock()

	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	return Stats{
		Online:            m.online(),
		Persisted:         m.persisted.Load(),
		Delivered:         m.delivered.Load(),
		Undelivered:       m.undelivered.Load(),
		PushFailures:      m.pushFailures.Load(),
		Broadcasts:        m.broadcasts.Load(),
		IndexDropped:      m.indexDropped.Load(),
		WorkerRestarts:    m.workerRestarts.Load(),
		AllocMemMb:        mem.Alloc / 1024 / 1024,
		NumGC:             mem.NumGC,
		NumGoroutine:      runtime.NumGoroutine(),
		Process:           process,
		CurrentIndexQueue: indexQueue,
	}
}
