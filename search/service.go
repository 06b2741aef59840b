// Package search runs the three lookup strategies against a concept source,
// normalizes what comes back and aggregates it into one sorted result.
package search

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/giygas/rxnorm-search-api/cache"
	"github.com/giygas/rxnorm-search-api/drugparser"
	"github.com/giygas/rxnorm-search-api/drugparser/entities"
	"github.com/giygas/rxnorm-search-api/interfaces"
	"github.com/giygas/rxnorm-search-api/logging"
	"github.com/giygas/rxnorm-search-api/metrics"
)

// Compile-time check to ensure Service implements Searcher
var _ interfaces.Searcher = (*Service)(nil)

// ErrUpstreamUnavailable is returned when every strategy failed
var ErrUpstreamUnavailable = errors.New("all lookup strategies failed")

// MinTermLength is the shortest trimmed term that triggers a lookup
const MinTermLength = 2

// Options tunes a Service
type Options struct {
	IncludeSuppressed bool
	CacheTTL          time.Duration
	CacheCapacity     int
	Timeout           time.Duration // bound on one full search
	MaxIngredients    int           // ingredient names expanded per search
}

func (o Options) withDefaults() Options {
	if o.CacheTTL <= 0 {
		o.CacheTTL = time.Hour
	}
	if o.CacheCapacity <= 0 {
		o.CacheCapacity = 1000
	}
	if o.Timeout <= 0 {
		o.Timeout = 30 * time.Second
	}
	if o.MaxIngredients <= 0 {
		o.MaxIngredients = 3
	}
	return o
}

// Service implements interfaces.Searcher
type Service struct {
	source interfaces.ConceptSource
	cache  *cache.Cache[string, interfaces.SearchResult]
	flight singleflight.Group
	opts   Options
}

// NewService creates a search service over source
func NewService(source interfaces.ConceptSource, opts Options) *Service {
	opts = opts.withDefaults()
	return &Service{
		source: source,
		cache:  cache.New[string, interfaces.SearchResult](opts.CacheCapacity, opts.CacheTTL),
		opts:   opts,
	}
}

// slot holds what one strategy produced
type slot struct {
	tuples []entities.ConceptTuple
	err    error
}

// Search looks term up with every strategy and aggregates the records.
// Terms shorter than MinTermLength yield an empty result without any lookup.
func (s *Service) Search(ctx context.Context, term string) (interfaces.SearchResult, error) {
	term = strings.TrimSpace(term)
	if utf8.RuneCountInString(term) < MinTermLength {
		return interfaces.SearchResult{Term: term, Records: []entities.DrugRecord{}}, nil
	}

	key := strings.ToLower(term)
	if cached, ok := s.cache.Get(key); ok {
		metrics.SearchCacheTotals.WithLabelValues("hit").Inc()
		cached.Term = term
		cached.Cached = true
		return cached, nil
	}
	metrics.SearchCacheTotals.WithLabelValues("miss").Inc()

	// Identical concurrent searches share one upstream fan-out. The shared
	// work is detached from any single caller so one cancellation does not
	// fail the others.
	ch := s.flight.DoChan(key, func() (any, error) {
		runCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.opts.Timeout)
		defer cancel()
		return s.run(runCtx, term, key)
	})

	select {
	case <-ctx.Done():
		return interfaces.SearchResult{}, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return interfaces.SearchResult{}, res.Err
		}
		result := res.Val.(interfaces.SearchResult)
		result.Term = term
		return result, nil
	}
}

// run executes the strategies, aggregates and caches a complete result
func (s *Service) run(ctx context.Context, term, key string) (interfaces.SearchResult, error) {
	slots := s.collect(ctx, term)

	var failures []error
	for i, sl := range slots {
		if sl.err != nil {
			logging.Warn("Lookup strategy failed", "term", term, "source", entities.SourceOrder[i], "error", sl.err)
			failures = append(failures, fmt.Errorf("%s: %w", entities.SourceOrder[i], sl.err))
		}
	}
	if len(failures) == len(slots) {
		return interfaces.SearchResult{}, fmt.Errorf("search %q: %w: %w", term, ErrUpstreamUnavailable, errors.Join(failures...))
	}

	tagged, missingID, suppressed := s.normalize(slots)

	records, stats := drugparser.Aggregate(tagged)
	stats.Input += missingID
	stats.MissingID += missingID

	recordDrops(stats, suppressed)
	metrics.SearchResults.Observe(float64(len(records)))

	result := interfaces.SearchResult{
		Term:               term,
		Records:            records,
		Stats:              stats,
		SuppressedFiltered: suppressed,
		Partial:            len(failures) > 0,
	}

	// A partial answer is served but not kept for the whole TTL
	if !result.Partial {
		s.cache.Set(key, result)
	}

	logging.Debug("Search aggregated",
		"term", term,
		"input", stats.Input,
		"output", stats.Output,
		"duplicates", stats.Duplicates,
		"suppressed", suppressed,
		"partial", result.Partial,
	)

	return result, nil
}

// collect runs the strategies concurrently. Each writes only its own slot so
// the concatenation order stays direct, ingredient-derived, related-concept
// whatever order they finish in.
func (s *Service) collect(ctx context.Context, term string) [3]slot {
	var slots [3]slot
	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		slots[0].tuples, slots[0].err = s.source.DrugsByName(gCtx, term)
		return nil
	})

	g.Go(func() error {
		rxcui, err := s.source.ApproximateTerm(gCtx, term)
		if err != nil {
			if errors.Is(err, interfaces.ErrNotFound) {
				// Nothing approximate to expand, both strategies are empty
				return nil
			}
			slots[1].err = fmt.Errorf("approximate term: %w", err)
			slots[2].err = slots[1].err
			return nil
		}

		inner, innerCtx := errgroup.WithContext(gCtx)
		inner.Go(func() error {
			slots[1].tuples, slots[1].err = s.ingredientDerived(innerCtx, rxcui)
			return nil
		})
		inner.Go(func() error {
			slots[2].tuples, slots[2].err = s.source.RelatedByType(innerCtx, rxcui,
				entities.TermTypeBrandName, entities.TermTypeBrandedDrug)
			return nil
		})
		return inner.Wait()
	})

	// Strategies report through their slots, Wait never fails
	_ = g.Wait()
	return slots
}

// ingredientDerived expands rxcui to its ingredients and looks each one up by
// name, keeping ingredient order.
func (s *Service) ingredientDerived(ctx context.Context, rxcui string) ([]entities.ConceptTuple, error) {
	ingredients, err := s.source.RelatedByType(ctx, rxcui, entities.TermTypeIngredient)
	if err != nil {
		return nil, fmt.Errorf("ingredients of %s: %w", rxcui, err)
	}

	var names []string
	seen := make(map[string]bool)
	for _, ingredient := range ingredients {
		name := strings.TrimSpace(ingredient.PrimaryName)
		if name == "" || seen[strings.ToLower(name)] {
			continue
		}
		seen[strings.ToLower(name)] = true
		names = append(names, name)
		if len(names) == s.opts.MaxIngredients {
			break
		}
	}
	if len(names) == 0 {
		return nil, nil
	}

	results := make([]slot, len(names))
	g, gCtx := errgroup.WithContext(ctx)
	for i, name := range names {
		g.Go(func() error {
			results[i].tuples, results[i].err = s.source.DrugsByName(gCtx, name)
			return nil
		})
	}
	_ = g.Wait()

	var tuples []entities.ConceptTuple
	var failures []error
	for i, r := range results {
		if r.err != nil {
			failures = append(failures, fmt.Errorf("drugs for ingredient %q: %w", names[i], r.err))
			continue
		}
		tuples = append(tuples, r.tuples...)
	}

	if len(failures) == len(results) {
		return nil, errors.Join(failures...)
	}
	for _, failure := range failures {
		logging.Warn("Ingredient lookup failed", "rxcui", rxcui, "error", failure)
	}
	return tuples, nil
}

// normalize turns every slot into tagged records in source order, counting
// tuples without an identifier field and filtering suppressed concepts.
func (s *Service) normalize(slots [3]slot) (tagged []entities.TaggedRecord, missingID, suppressed int) {
	for i, sl := range slots {
		source := entities.SourceOrder[i]
		for _, tuple := range sl.tuples {
			record, err := drugparser.NormalizeConcept(tuple)
			if err != nil {
				missingID++
				continue
			}
			if record.Suppressed && !s.opts.IncludeSuppressed {
				suppressed++
				continue
			}
			tagged = append(tagged, entities.TaggedRecord{Record: record, Source: source})
		}
	}
	return tagged, missingID, suppressed
}

func recordDrops(stats drugparser.AggregateStats, suppressed int) {
	for reason, n := range map[string]int{
		"missing_id":   stats.MissingID,
		"missing_name": stats.MissingName,
		"duplicate":    stats.Duplicates,
		"suppressed":   suppressed,
	} {
		if n > 0 {
			metrics.SearchRecordsDropped.WithLabelValues(reason).Add(float64(n))
		}
	}
}

// Related normalizes the concepts related to rxcui with the given term types.
// Results are not cached, the lookup is a single upstream call.
func (s *Service) Related(ctx context.Context, rxcui string, termTypes ...entities.TermType) (interfaces.SearchResult, error) {
	tuples, err := s.source.RelatedByType(ctx, rxcui, termTypes...)
	if err != nil {
		return interfaces.SearchResult{}, fmt.Errorf("related concepts of %s: %w: %w", rxcui, ErrUpstreamUnavailable, err)
	}

	var slots [3]slot
	slots[2].tuples = tuples
	tagged, missingID, suppressed := s.normalize(slots)

	records, stats := drugparser.Aggregate(tagged)
	stats.Input += missingID
	stats.MissingID += missingID
	recordDrops(stats, suppressed)

	return interfaces.SearchResult{
		Term:               rxcui,
		Records:            records,
		Stats:              stats,
		SuppressedFiltered: suppressed,
	}, nil
}

// PurgeExpired drops expired cache entries
func (s *Service) PurgeExpired() int {
	return s.cache.PurgeExpired()
}

// ResetCache drops every cached result, expired or not
func (s *Service) ResetCache() {
	s.cache.Clear()
}

// CacheStats returns the result cache counters
func (s *Service) CacheStats() cache.Stats {
	return s.cache.Stats()
}
