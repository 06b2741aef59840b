package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/giygas/rxnorm-search-api/cache"
	"github.com/giygas/rxnorm-search-api/data"
	"github.com/giygas/rxnorm-search-api/logging"
)

// mockVersionSource for testing scheduler
type mockVersionSource struct {
	mu      sync.Mutex
	version string
	err     error
	calls   int
	block   chan struct{}
}

func (m *mockVersionSource) Version(ctx context.Context) (string, error) {
	m.mu.Lock()
	m.calls++
	block := m.block
	m.mu.Unlock()

	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	return m.version, m.err
}

func (m *mockVersionSource) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// mockSweeper for testing scheduler
type mockSweeper struct {
	mu     sync.Mutex
	sweeps int
	resets int
	size   int
}

func (m *mockSweeper) ResetCache() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resets++
	m.size = 0
}

func (m *mockSweeper) PurgeExpired() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sweeps++
	m.size = 0
	return 2
}

func (m *mockSweeper) CacheStats() cache.Stats {
	m.mu.Lock()
	defer m.mu.Unlock()
	return cache.Stats{Size: m.size}
}

func (m *mockSweeper) sweepCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sweeps
}

func TestScheduler_SuccessfulProbe(t *testing.T) {
	logging.InitLogger("")

	store := data.NewDataContainer()
	source := &mockVersionSource{version: "10-Oct-2026"}
	s := NewScheduler(store, source, &mockSweeper{}, Options{})

	if err := s.probe(); err != nil {
		t.Fatalf("Unexpected probe error: %v", err)
	}

	if !store.IsUpstreamHealthy() {
		t.Error("Expected upstream healthy after a successful probe")
	}
	if store.GetUpstreamVersion() != "10-Oct-2026" {
		t.Errorf("Expected version recorded, got %q", store.GetUpstreamVersion())
	}
	if store.IsProbing() {
		t.Error("Expected probing flag cleared after the probe")
	}
}

func TestScheduler_NewReleaseClearsCache(t *testing.T) {
	store := data.NewDataContainer()
	source := &mockVersionSource{version: "06-Oct-2026"}
	sweeper := &mockSweeper{size: 3}
	s := NewScheduler(store, source, sweeper, Options{})

	// First sighting and an unchanged version keep the cache
	for range 2 {
		if err := s.probe(); err != nil {
			t.Fatalf("Unexpected probe error: %v", err)
		}
	}
	if sweeper.resets != 0 {
		t.Fatalf("Expected no reset before a release change, got %d", sweeper.resets)
	}

	source.mu.Lock()
	source.version = "03-Nov-2026"
	source.mu.Unlock()

	if err := s.probe(); err != nil {
		t.Fatalf("Unexpected probe error: %v", err)
	}
	if sweeper.resets != 1 {
		t.Errorf("Expected the cache reset once for the new release, got %d", sweeper.resets)
	}
}

func TestScheduler_ProbeFailure(t *testing.T) {
	store := data.NewDataContainer()
	source := &mockVersionSource{err: errors.New("connection refused")}
	s := NewScheduler(store, source, &mockSweeper{}, Options{})

	if err := s.probe(); err == nil {
		t.Fatal("Expected probe error")
	}

	if store.IsUpstreamHealthy() {
		t.Error("Expected upstream unhealthy after a failed probe")
	}
	if store.GetLastError() != "connection refused" {
		t.Errorf("Expected last error recorded, got %q", store.GetLastError())
	}
	if store.GetLastProbe().IsZero() {
		t.Error("Expected the failed probe to be timestamped")
	}
}

func TestScheduler_ProbeTimeout(t *testing.T) {
	store := data.NewDataContainer()
	source := &mockVersionSource{block: make(chan struct{})}
	s := NewScheduler(store, source, &mockSweeper{}, Options{ProbeTimeout: 10 * time.Millisecond})

	err := s.probe()
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Expected deadline exceeded, got %v", err)
	}
}

func TestScheduler_ConcurrentProbePrevention(t *testing.T) {
	store := data.NewDataContainer()
	source := &mockVersionSource{version: "v", block: make(chan struct{})}
	s := NewScheduler(store, source, &mockSweeper{}, Options{})

	done := make(chan error, 1)
	go func() { done <- s.probe() }()

	// Wait for the first probe to hold the flag
	deadline := time.Now().Add(time.Second)
	for !store.IsProbing() && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}

	if err := s.probe(); err != nil {
		t.Errorf("Expected the overlapping probe to be skipped silently, got %v", err)
	}

	close(source.block)
	if err := <-done; err != nil {
		t.Errorf("Unexpected error from the first probe: %v", err)
	}

	if source.callCount() != 1 {
		t.Errorf("Expected 1 upstream call, got %d", source.callCount())
	}
}

func TestScheduler_Sweep(t *testing.T) {
	sweeper := &mockSweeper{size: 5}
	s := NewScheduler(data.NewDataContainer(), &mockVersionSource{}, sweeper, Options{})

	s.sweep()

	if sweeper.sweepCount() != 1 {
		t.Errorf("Expected 1 sweep, got %d", sweeper.sweepCount())
	}
}

func TestScheduler_StartAndStop(t *testing.T) {
	store := data.NewDataContainer()
	source := &mockVersionSource{version: "v1"}
	sweeper := &mockSweeper{}
	s := NewScheduler(store, source, sweeper, Options{
		ProbeInterval: 50 * time.Millisecond,
		SweepInterval: 50 * time.Millisecond,
	})

	if err := s.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer s.Stop()

	if source.callCount() < 1 || store.GetUpstreamVersion() != "v1" {
		t.Fatal("Expected the initial probe to run synchronously in Start")
	}

	time.Sleep(180 * time.Millisecond)

	if source.callCount() < 2 {
		t.Errorf("Expected scheduled probes after the initial one, got %d calls", source.callCount())
	}
	if sweeper.sweepCount() < 1 {
		t.Error("Expected at least one scheduled sweep")
	}
}

func TestScheduler_StartWithUnreachableUpstream(t *testing.T) {
	store := data.NewDataContainer()
	s := NewScheduler(store, &mockVersionSource{err: errors.New("down")}, &mockSweeper{}, Options{})

	if err := s.Start(); err != nil {
		t.Fatalf("Expected Start to succeed with RxNav down, got %v", err)
	}
	defer s.Stop()

	if store.IsUpstreamHealthy() {
		t.Error("Expected unhealthy upstream")
	}
}

func TestNewScheduler_Defaults(t *testing.T) {
	s := NewScheduler(data.NewDataContainer(), &mockVersionSource{}, &mockSweeper{}, Options{})

	if s.opts.ProbeInterval != 5*time.Minute || s.opts.SweepInterval != 10*time.Minute || s.opts.ProbeTimeout != 15*time.Second {
		t.Errorf("Unexpected defaults %+v", s.opts)
	}
}
