// Package data holds the process-wide upstream status. Every field is stored
// atomically so the health endpoint never blocks on a running probe.
package data

import (
	"sync/atomic"
	"time"

	"github.com/giygas/rxnorm-search-api/interfaces"
	"github.com/giygas/rxnorm-search-api/logging"
)

// Compile-time check to ensure DataContainer implements DataStore
var _ interfaces.DataStore = (*DataContainer)(nil)

// DataContainer tracks the outcome of RxNav probes
type DataContainer struct {
	upstreamVersion     atomic.Value // string
	lastProbe           atomic.Value // time.Time
	lastSuccess         atomic.Value // time.Time
	lastError           atomic.Value // string
	consecutiveFailures atomic.Int32
	healthy             atomic.Bool
	probing             atomic.Bool
	serverStartTime     atomic.Value // time.Time
}

// NewDataContainer creates a container with no probe recorded yet
func NewDataContainer() *DataContainer {
	dc := &DataContainer{}
	dc.upstreamVersion.Store("")
	dc.lastProbe.Store(time.Time{})
	dc.lastSuccess.Store(time.Time{})
	dc.lastError.Store("")
	dc.serverStartTime.Store(time.Time{})
	return dc
}

// GetUpstreamVersion returns the RxNorm release reported by the last successful probe
func (dc *DataContainer) GetUpstreamVersion() string {
	if v, ok := dc.upstreamVersion.Load().(string); ok {
		return v
	}
	return ""
}

// GetLastProbe returns when the last probe finished, successful or not
func (dc *DataContainer) GetLastProbe() time.Time {
	return loadTime(&dc.lastProbe, "last probe")
}

// GetLastSuccess returns when a probe last succeeded
func (dc *DataContainer) GetLastSuccess() time.Time {
	return loadTime(&dc.lastSuccess, "last success")
}

// GetLastError returns the error of the last probe, empty after a success
func (dc *DataContainer) GetLastError() string {
	if v, ok := dc.lastError.Load().(string); ok {
		return v
	}
	return ""
}

// GetConsecutiveFailures returns how many probes failed in a row
func (dc *DataContainer) GetConsecutiveFailures() int {
	return int(dc.consecutiveFailures.Load())
}

// IsUpstreamHealthy reports whether the last probe succeeded
func (dc *DataContainer) IsUpstreamHealthy() bool {
	return dc.healthy.Load()
}

// IsProbing returns true while a probe is in flight
func (dc *DataContainer) IsProbing() bool {
	return dc.probing.Load()
}

// SetServerStartTime sets the server start time
func (dc *DataContainer) SetServerStartTime(startTime time.Time) {
	dc.serverStartTime.Store(startTime)
}

// GetServerStartTime returns the server start time
func (dc *DataContainer) GetServerStartTime() time.Time {
	return loadTime(&dc.serverStartTime, "server start time")
}

// RecordProbe stores the outcome of one probe. A failure keeps the last known
// version so the health endpoint can still report it.
func (dc *DataContainer) RecordProbe(version string, err error) {
	now := time.Now()
	dc.lastProbe.Store(now)

	if err != nil {
		dc.lastError.Store(err.Error())
		dc.consecutiveFailures.Add(1)
		dc.healthy.Store(false)
		return
	}

	dc.upstreamVersion.Store(version)
	dc.lastSuccess.Store(now)
	dc.lastError.Store("")
	dc.consecutiveFailures.Store(0)
	dc.healthy.Store(true)
}

// BeginProbe marks the start of a probe.
// Returns true if the probe can proceed, false if another one is in progress
func (dc *DataContainer) BeginProbe() bool {
	return dc.probing.CompareAndSwap(false, true)
}

// EndProbe marks the end of a probe
func (dc *DataContainer) EndProbe() {
	dc.probing.Store(false)
}

func loadTime(v *atomic.Value, name string) time.Time {
	if t, ok := v.Load().(time.Time); ok {
		return t
	}
	logging.Warn("Could not get the " + name + " value")
	return time.Time{}
}
