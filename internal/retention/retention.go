// Package retention schedules cleanup of persisted error records
package retention

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/armorclaw/pitchscope/pkg/logger"
)

// DefaultSchedule runs cleanup once an hour
const DefaultSchedule = "@hourly"

// Cleaner removes records past their retention period
type Cleaner interface {
	Cleanup(ctx context.Context) (int64, error)
}

// Recorder receives cleanup results
type Recorder interface {
	RecordStoreCleanup(removed int64)
}

// Config configures a Manager
type Config struct {
	Schedule string        // cron spec or descriptor (@hourly, @every 30m)
	Timeout  time.Duration // per-run deadline
	Logger   *logger.Logger
	Metrics  Recorder
}

// Manager runs store cleanup on a cron schedule
type Manager struct {
	cleaner  Cleaner
	schedule string
	timeout  time.Duration
	logger   *logger.Logger
	metrics  Recorder

	cron    *cron.Cron
	entryID cron.EntryID

	mu       sync.Mutex
	running  bool
	lastRun  time.Time
	lastErr  error
	removed  int64
	runCount int
}

// NewManager creates a manager and validates the schedule
func NewManager(cleaner Cleaner, cfg Config) (*Manager, error) {
	if cfg.Schedule == "" {
		cfg.Schedule = DefaultSchedule
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = time.Minute
	}
	if cfg.Logger == nil {
		cfg.Logger = logger.Global()
	}

	m := &Manager{
		cleaner:  cleaner,
		schedule: cfg.Schedule,
		timeout:  cfg.Timeout,
		logger:   cfg.Logger.WithComponent("retention"),
		metrics:  cfg.Metrics,
		cron:     cron.New(),
	}

	id, err := m.cron.AddFunc(cfg.Schedule, func() { m.RunOnce(context.Background()) })
	if err != nil {
		return nil, fmt.Errorf("invalid cleanup schedule %q: %w", cfg.Schedule, err)
	}
	m.entryID = id

	return m, nil
}

// Start begins running cleanup on schedule
func (m *Manager) Start() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.running {
		return
	}
	m.running = true

	m.logger.Info("starting retention cleanup", "schedule", m.schedule, "timeout", m.timeout)
	m.cron.Start()
}

// Stop halts the schedule and waits for a running cleanup to finish
func (m *Manager) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	m.running = false
	m.mu.Unlock()

	<-m.cron.Stop().Done()
	m.logger.Info("retention cleanup stopped")
}

// Run starts the schedule and blocks until ctx is done
func (m *Manager) Run(ctx context.Context) error {
	m.Start()
	<-ctx.Done()
	m.Stop()
	return nil
}

// RunOnce performs a single cleanup pass and returns how many records it removed
func (m *Manager) RunOnce(ctx context.Context) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	removed, err := m.cleaner.Cleanup(ctx)

	m.mu.Lock()
	m.lastRun = time.Now()
	m.lastErr = err
	m.runCount++
	if err == nil {
		m.removed += removed
	}
	m.mu.Unlock()

	if err != nil {
		m.logger.Error("retention cleanup failed", "error", err)
		return 0, err
	}

	if m.metrics != nil {
		m.metrics.RecordStoreCleanup(removed)
	}
	if removed > 0 {
		m.logger.Info("retention cleanup complete", "removed", removed)
	}
	return removed, nil
}

// Next returns the next scheduled run, or the zero time when stopped
func (m *Manager) Next() time.Time {
	return m.cron.Entry(m.entryID).Next
}

// GetStats returns manager statistics
func (m *Manager) GetStats() map[string]interface{} {
	m.mu.Lock()
	defer m.mu.Unlock()

	stats := map[string]interface{}{
		"schedule":      m.schedule,
		"running":       m.running,
		"runs":          m.runCount,
		"total_removed": m.removed,
	}
	if m.running {
		if next := m.Next(); !next.IsZero() {
			stats["next_run"] = next
		}
	}
	if !m.lastRun.IsZero() {
		stats["last_run"] = m.lastRun
	}
	if m.lastErr != nil {
		stats["last_error"] = m.lastErr.Error()
	}
	return stats
}
