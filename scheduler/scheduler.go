// Package scheduler runs the background jobs: the RxNav liveness probe and the
// result cache sweep. Probe outcomes land in the status container.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/go-co-op/gocron"

	"github.com/giygas/rxnorm-search-api/cache"
	"github.com/giygas/rxnorm-search-api/interfaces"
	"github.com/giygas/rxnorm-search-api/logging"
	"github.com/giygas/rxnorm-search-api/metrics"
)

// Compile-time check to ensure Scheduler implements Scheduler interface
var _ interfaces.Scheduler = (*Scheduler)(nil)

// VersionSource is probed for liveness
type VersionSource interface {
	Version(ctx context.Context) (string, error)
}

// CacheSweeper owns the expiring result cache
type CacheSweeper interface {
	PurgeExpired() int
	ResetCache()
	CacheStats() cache.Stats
}

// Options sets the job intervals
type Options struct {
	ProbeInterval time.Duration
	SweepInterval time.Duration
	ProbeTimeout  time.Duration
}

// Scheduler handles the periodic jobs using dependency injection
type Scheduler struct {
	dataStore interfaces.DataStore
	source    VersionSource
	sweeper   CacheSweeper
	opts      Options
	scheduler *gocron.Scheduler
}

// NewScheduler creates a new scheduler instance with injected dependencies
func NewScheduler(dataStore interfaces.DataStore, source VersionSource, sweeper CacheSweeper, opts Options) *Scheduler {
	if opts.ProbeInterval <= 0 {
		opts.ProbeInterval = 5 * time.Minute
	}
	if opts.SweepInterval <= 0 {
		opts.SweepInterval = 10 * time.Minute
	}
	if opts.ProbeTimeout <= 0 {
		opts.ProbeTimeout = 15 * time.Second
	}

	return &Scheduler{
		dataStore: dataStore,
		source:    source,
		sweeper:   sweeper,
		opts:      opts,
		scheduler: gocron.NewScheduler(time.Local),
	}
}

// Start probes RxNav once and schedules both jobs. An unreachable RxNav at
// startup is not fatal, the health endpoint reports it until a probe succeeds.
func (s *Scheduler) Start() error {
	if err := s.probe(); err != nil {
		logging.Warn("Initial RxNav probe failed, serving anyway", "error", err)
	}

	// The initial probe already ran, wait for the first tick
	_, err := s.scheduler.Every(s.opts.ProbeInterval).WaitForSchedule().SingletonMode().Do(func() {
		if err := s.probe(); err != nil {
			logging.Error("RxNav probe failed", "error", err)
		}
	})
	if err != nil {
		logging.Error("Failed to schedule probe", "error", err)
		return fmt.Errorf("failed to schedule probe: %w", err)
	}

	_, err = s.scheduler.Every(s.opts.SweepInterval).WaitForSchedule().SingletonMode().Do(s.sweep)
	if err != nil {
		logging.Error("Failed to schedule cache sweep", "error", err)
		return fmt.Errorf("failed to schedule cache sweep: %w", err)
	}

	s.scheduler.StartAsync()
	logging.Info("Scheduler started",
		"probe_interval", s.opts.ProbeInterval.String(),
		"sweep_interval", s.opts.SweepInterval.String(),
	)

	return nil
}

// Stop stops the scheduler
func (s *Scheduler) Stop() {
	s.scheduler.Stop()
}

// probe asks RxNav for its data version and records the outcome
func (s *Scheduler) probe() error {
	// Prevent overlapping probes
	if !s.dataStore.BeginProbe() {
		logging.Info("Probe already in progress, skipping...")
		return nil
	}
	defer s.dataStore.EndProbe()

	ctx, cancel := context.WithTimeout(context.Background(), s.opts.ProbeTimeout)
	defer cancel()

	previous := s.dataStore.GetUpstreamVersion()
	start := time.Now()
	version, err := s.source.Version(ctx)
	s.dataStore.RecordProbe(version, err)

	if err != nil {
		metrics.UpstreamUp.Set(0)
		return fmt.Errorf("rxnav probe: %w", err)
	}
	metrics.UpstreamUp.Set(1)

	if version != previous {
		logging.Info("RxNav data version", "version", version, "previous", previous)
	}
	// Cached results were built from the previous release
	if previous != "" && version != previous {
		s.sweeper.ResetCache()
		metrics.SearchCacheEntries.Set(0)
		logging.Info("Search cache cleared for new RxNorm release", "version", version)
	}
	logging.Debug("RxNav probe completed", "duration", time.Since(start).String())

	return nil
}

// sweep drops expired cache entries
func (s *Scheduler) sweep() {
	removed := s.sweeper.PurgeExpired()
	stats := s.sweeper.CacheStats()
	metrics.SearchCacheEntries.Set(float64(stats.Size))

	if removed > 0 {
		logging.Debug("Cache sweep completed", "removed", removed, "remaining", stats.Size)
	}
}
