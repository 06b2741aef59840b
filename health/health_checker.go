// Package health reports whether the API can currently answer searches.
package health

import (
	"math"
	"net/http"
	"time"

	"github.com/giygas/rxnorm-search-api/cache"
	"github.com/giygas/rxnorm-search-api/interfaces"
)

// staleProbeIntervals is how many missed probe intervals make the status degraded
const staleProbeIntervals = 3

// CacheStatsProvider is the part of the searcher the health check reads
type CacheStatsProvider interface {
	CacheStats() cache.Stats
}

// HealthCheckerImpl implements the interfaces.HealthChecker interface
type HealthCheckerImpl struct {
	dataStore     interfaces.DataStore
	cache         CacheStatsProvider
	probeInterval time.Duration
	now           func() time.Time
}

// NewHealthChecker creates a new health checker with injected dependencies.
// cacheStats may be nil.
func NewHealthChecker(dataStore interfaces.DataStore, cacheStats CacheStatsProvider, probeInterval time.Duration) interfaces.HealthChecker {
	if probeInterval <= 0 {
		probeInterval = 5 * time.Minute
	}
	return &HealthCheckerImpl{
		dataStore:     dataStore,
		cache:         cacheStats,
		probeInterval: probeInterval,
		now:           time.Now,
	}
}

// HealthCheck returns the status, its details and the HTTP code for /health.
// Unhealthy when RxNav never answered or the last probe failed, degraded when
// the last probe is stale or a probe has been hanging.
func (h *HealthCheckerImpl) HealthCheck() (status string, data map[string]any, httpStatus int) {
	now := h.now()
	lastProbe := h.dataStore.GetLastProbe()
	lastSuccess := h.dataStore.GetLastSuccess()
	isProbing := h.dataStore.IsProbing()
	stale := h.probeInterval * staleProbeIntervals

	probeAge := now.Sub(lastProbe)

	switch {
	case lastSuccess.IsZero():
		status = "unhealthy"
		httpStatus = http.StatusServiceUnavailable

	case !h.dataStore.IsUpstreamHealthy():
		status = "unhealthy"
		httpStatus = http.StatusServiceUnavailable

	case probeAge > stale:
		status = "degraded"
		httpStatus = http.StatusOK

	case isProbing && now.Sub(lastSuccess) > stale:
		status = "degraded"
		httpStatus = http.StatusOK

	default:
		status = "healthy"
		httpStatus = http.StatusOK
	}

	data = map[string]any{
		"upstream_version":     h.dataStore.GetUpstreamVersion(),
		"upstream_healthy":     h.dataStore.IsUpstreamHealthy(),
		"last_probe":           formatTime(lastProbe),
		"last_success":         formatTime(lastSuccess),
		"consecutive_failures": h.dataStore.GetConsecutiveFailures(),
		"is_probing":           isProbing,
	}

	if !lastProbe.IsZero() {
		data["probe_age_seconds"] = math.Round(probeAge.Seconds())
	}
	if lastErr := h.dataStore.GetLastError(); lastErr != "" {
		data["last_error"] = lastErr
	}
	if start := h.dataStore.GetServerStartTime(); !start.IsZero() {
		data["uptime_seconds"] = math.Round(now.Sub(start).Seconds())
	}
	if h.cache != nil {
		data["cache"] = h.cache.CacheStats()
	}

	return status, data, httpStatus
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(time.RFC3339)
}
