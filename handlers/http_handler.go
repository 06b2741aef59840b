// Package handlers provides the HTTP handlers of the RxNorm search API.
package handlers

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/giygas/rxnorm-search-api/drugparser"
	"github.com/giygas/rxnorm-search-api/drugparser/entities"
	"github.com/giygas/rxnorm-search-api/export"
	"github.com/giygas/rxnorm-search-api/interfaces"
	"github.com/giygas/rxnorm-search-api/logging"
	"github.com/giygas/rxnorm-search-api/search"
)

// Compile-time check to ensure HTTPHandlerImpl implements HTTPHandler
var _ interfaces.HTTPHandler = (*HTTPHandlerImpl)(nil)

// defaultRelatedTypes is used when /related is called without tty
var defaultRelatedTypes = []entities.TermType{entities.TermTypeBrandName, entities.TermTypeBrandedDrug}

// HTTPHandlerImpl implements the interfaces.HTTPHandler interface
type HTTPHandlerImpl struct {
	searcher      interfaces.Searcher
	validator     interfaces.InputValidator
	healthChecker interfaces.HealthChecker
}

// NewHTTPHandler creates a new HTTP handler with injected dependencies
func NewHTTPHandler(searcher interfaces.Searcher, validator interfaces.InputValidator, healthChecker interfaces.HealthChecker) *HTTPHandlerImpl {
	return &HTTPHandlerImpl{
		searcher:      searcher,
		validator:     validator,
		healthChecker: healthChecker,
	}
}

// SearchResponse is the body of /v1/search and /v1/concepts/{rxcui}/related
type SearchResponse struct {
	Term               string                    `json:"term"`
	Count              int                       `json:"count"`
	Cached             bool                      `json:"cached"`
	Partial            bool                      `json:"partial"`
	SuppressedFiltered int                       `json:"suppressedFiltered"`
	Results            []entities.DrugRecord     `json:"results"`
	Stats              drugparser.AggregateStats `json:"stats"`
}

// HealthResponse is the body of /health
type HealthResponse struct {
	Status string         `json:"status"`
	Data   map[string]any `json:"data"`
}

func newSearchResponse(result interfaces.SearchResult) SearchResponse {
	records := result.Records
	if records == nil {
		records = []entities.DrugRecord{}
	}
	return SearchResponse{
		Term:               result.Term,
		Count:              len(records),
		Cached:             result.Cached,
		Partial:            result.Partial,
		SuppressedFiltered: result.SuppressedFiltered,
		Results:            records,
		Stats:              result.Stats,
	}
}

// Search runs the aggregated search for ?q=
func (h *HTTPHandlerImpl) Search(w http.ResponseWriter, r *http.Request) {
	result, ok := h.search(w, r)
	if !ok {
		return
	}

	setCacheHeader(w, result.Cached)
	RespondWithJSON(w, http.StatusOK, newSearchResponse(result))
}

// ExportSearch runs the same search as Search and answers with a CSV attachment
func (h *HTTPHandlerImpl) ExportSearch(w http.ResponseWriter, r *http.Request) {
	result, ok := h.search(w, r)
	if !ok {
		return
	}

	var buf bytes.Buffer
	if err := export.WriteCSV(&buf, result.Records); err != nil {
		logging.Error("Failed to render CSV export", "term", result.Term, "error", err)
		RespondWithError(w, http.StatusInternalServerError, "Failed to render export")
		return
	}

	setCacheHeader(w, result.Cached)
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="`+export.Filename(result.Term)+`"`)
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(buf.Bytes()); err != nil {
		logging.Debug("Failed to write CSV export", "error", err)
	}
}

// Related lists the concepts related to {rxcui}, ?tty= takes a comma separated list
func (h *HTTPHandlerImpl) Related(w http.ResponseWriter, r *http.Request) {
	rxcui, err := h.validator.ValidateRxCUI(chi.URLParam(r, "rxcui"))
	if err != nil {
		RespondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	termTypes, err := parseTermTypes(r.URL.Query().Get("tty"))
	if err != nil {
		RespondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	result, err := h.searcher.Related(r.Context(), rxcui, termTypes...)
	if err != nil {
		h.respondWithSearchError(w, r, rxcui, err)
		return
	}

	RespondWithJSON(w, http.StatusOK, newSearchResponse(result))
}

// ParseLabel decomposes ?label= without any upstream call
func (h *HTTPHandlerImpl) ParseLabel(w http.ResponseWriter, r *http.Request) {
	label, err := h.validator.ValidateLabel(r.URL.Query().Get("label"))
	if err != nil {
		RespondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	RespondWithJSON(w, http.StatusOK, drugparser.Parse(label))
}

// HealthCheck returns service health information
func (h *HTTPHandlerImpl) HealthCheck(w http.ResponseWriter, r *http.Request) {
	status, data, httpStatus := h.healthChecker.HealthCheck()
	w.Header().Set("Cache-Control", "no-store")
	RespondWithJSON(w, httpStatus, HealthResponse{Status: status, Data: data})
}

// search validates ?q= and runs the search, writing the error answer itself
func (h *HTTPHandlerImpl) search(w http.ResponseWriter, r *http.Request) (interfaces.SearchResult, bool) {
	raw := r.URL.Query().Get("q")
	if strings.TrimSpace(raw) == "" {
		RespondWithError(w, http.StatusBadRequest, "Missing search term, use ?q=")
		return interfaces.SearchResult{}, false
	}

	term, err := h.validator.ValidateSearchTerm(raw)
	if err != nil {
		logging.Warn("Unusual user input", "q", raw, "error", err)
		RespondWithError(w, http.StatusBadRequest, err.Error())
		return interfaces.SearchResult{}, false
	}

	result, err := h.searcher.Search(r.Context(), term)
	if err != nil {
		h.respondWithSearchError(w, r, term, err)
		return interfaces.SearchResult{}, false
	}
	return result, true
}

func (h *HTTPHandlerImpl) respondWithSearchError(w http.ResponseWriter, r *http.Request, term string, err error) {
	switch {
	case r.Context().Err() != nil:
		// Client went away, nobody reads the answer
		logging.Debug("Search abandoned by client", "term", term, "error", err)
	case errors.Is(err, search.ErrUpstreamUnavailable):
		logging.ErrorContext(r.Context(), "Search failed upstream", "term", term, "error", err)
		w.Header().Set("Retry-After", "30")
		RespondWithError(w, http.StatusBadGateway, "RxNav is currently unavailable, please retry later")
	case errors.Is(err, context.DeadlineExceeded):
		logging.Warn("Search timed out", "term", term, "error", err)
		RespondWithError(w, http.StatusGatewayTimeout, "Search timed out")
	default:
		logging.ErrorContext(r.Context(), "Search failed", "term", term, "error", err)
		RespondWithError(w, http.StatusInternalServerError, "Search failed")
	}
}

func setCacheHeader(w http.ResponseWriter, cached bool) {
	if cached {
		w.Header().Set("X-Cache", "HIT")
	} else {
		w.Header().Set("X-Cache", "MISS")
	}
}

// parseTermTypes reads "BN,SBD". Unknown term types are refused rather than
// silently mapped to UNKNOWN.
func parseTermTypes(raw string) ([]entities.TermType, error) {
	if strings.TrimSpace(raw) == "" {
		return defaultRelatedTypes, nil
	}

	var termTypes []entities.TermType
	for part := range strings.SplitSeq(raw, ",") {
		part = strings.ToUpper(strings.TrimSpace(part))
		if part == "" {
			continue
		}
		tt := entities.ParseTermType(part)
		if tt == entities.TermTypeUnknown {
			return nil, errors.New("unknown term type: " + part)
		}
		termTypes = append(termTypes, tt)
	}
	if len(termTypes) == 0 {
		return defaultRelatedTypes, nil
	}
	return termTypes, nil
}
