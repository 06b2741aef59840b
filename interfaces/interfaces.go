// Package interfaces defines the core abstractions of the RxNorm search API
// so that handlers, the scheduler and the search pipeline can be tested with
// hand-written fakes.
package interfaces

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/giygas/rxnorm-search-api/cache"
	"github.com/giygas/rxnorm-search-api/drugparser"
	"github.com/giygas/rxnorm-search-api/drugparser/entities"
)

// ErrNotFound is returned by a ConceptSource when a term has no match
var ErrNotFound = errors.New("no matching concept")

// SearchResult is the outcome of one aggregated search
type SearchResult struct {
	Term               string                    `json:"term"`
	Records            []entities.DrugRecord     `json:"results"`
	Stats              drugparser.AggregateStats `json:"stats"`
	SuppressedFiltered int                       `json:"suppressedFiltered"`
	Partial            bool                      `json:"partial"` // at least one strategy failed
	Cached             bool                      `json:"cached"`
}

// ConceptSource is the lookup boundary: every call returns raw concept tuples
// that still need normalizing.
type ConceptSource interface {
	// DrugsByName returns the concepts matching a drug name
	DrugsByName(ctx context.Context, name string) ([]entities.ConceptTuple, error)

	// ApproximateTerm returns the best matching RxCUI for a free-text term
	ApproximateTerm(ctx context.Context, term string) (string, error)

	// RelatedByType returns the concepts related to rxcui with the given term types
	RelatedByType(ctx context.Context, rxcui string, termTypes ...entities.TermType) ([]entities.ConceptTuple, error)

	// Version returns the upstream data version, used as a liveness probe
	Version(ctx context.Context) (string, error)
}

// Searcher runs the multi-strategy search and owns the result cache
type Searcher interface {
	Search(ctx context.Context, term string) (SearchResult, error)
	Related(ctx context.Context, rxcui string, termTypes ...entities.TermType) (SearchResult, error)
	PurgeExpired() int
	CacheStats() cache.Stats
}

// DataStore holds the process-wide upstream status with atomic access
type DataStore interface {
	GetUpstreamVersion() string
	GetLastProbe() time.Time
	GetLastSuccess() time.Time
	GetLastError() string
	GetConsecutiveFailures() int
	IsUpstreamHealthy() bool
	IsProbing() bool
	GetServerStartTime() time.Time

	// RecordProbe stores the outcome of an upstream probe
	RecordProbe(version string, err error)
	BeginProbe() bool
	EndProbe()
}

// Scheduler manages the background probe and cache sweep jobs
type Scheduler interface {
	Start() error
	Stop()
}

// HTTPHandler defines the API endpoints
type HTTPHandler interface {
	Search(w http.ResponseWriter, r *http.Request)
	ExportSearch(w http.ResponseWriter, r *http.Request)
	Related(w http.ResponseWriter, r *http.Request)
	ParseLabel(w http.ResponseWriter, r *http.Request)
	HealthCheck(w http.ResponseWriter, r *http.Request)
}

// HealthChecker reports service health
type HealthChecker interface {
	// HealthCheck returns the status name, details and the HTTP status to answer with
	HealthCheck() (status string, details map[string]any, httpStatus int)
}

// InputValidator validates user supplied query values
type InputValidator interface {
	ValidateSearchTerm(term string) (string, error)
	ValidateLabel(label string) (string, error)
	ValidateRxCUI(input string) (string, error)
}
