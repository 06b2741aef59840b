package search

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/giygas/rxnorm-search-api/drugparser/entities"
	"github.com/giygas/rxnorm-search-api/interfaces"
)

// mockSource implements interfaces.ConceptSource from canned maps
type mockSource struct {
	drugs       map[string][]entities.ConceptTuple
	approximate map[string]string
	related     map[string][]entities.ConceptTuple // keyed by rxcui + "|" + joined term types

	drugsErr   error
	approxErr  error
	relatedErr error
	delay      map[string]time.Duration // per DrugsByName name

	calls atomic.Int32
}

var _ interfaces.ConceptSource = (*mockSource)(nil)

func (m *mockSource) DrugsByName(ctx context.Context, name string) ([]entities.ConceptTuple, error) {
	m.calls.Add(1)
	if d := m.delay[name]; d > 0 {
		select {
		case <-time.After(d):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if m.drugsErr != nil {
		return nil, m.drugsErr
	}
	return m.drugs[name], nil
}

func (m *mockSource) ApproximateTerm(ctx context.Context, term string) (string, error) {
	m.calls.Add(1)
	if m.approxErr != nil {
		return "", m.approxErr
	}
	rxcui, ok := m.approximate[term]
	if !ok {
		return "", fmt.Errorf("approximate %q: %w", term, interfaces.ErrNotFound)
	}
	return rxcui, nil
}

func (m *mockSource) RelatedByType(ctx context.Context, rxcui string, termTypes ...entities.TermType) ([]entities.ConceptTuple, error) {
	m.calls.Add(1)
	if m.relatedErr != nil {
		return nil, m.relatedErr
	}
	key := rxcui + "|"
	for i, tt := range termTypes {
		if i > 0 {
			key += "+"
		}
		key += string(tt)
	}
	return m.related[key], nil
}

func (m *mockSource) Version(ctx context.Context) (string, error) {
	return "test", nil
}

func concept(id, name, tty string) entities.ConceptTuple {
	return entities.ConceptTuple{ConceptID: &id, PrimaryName: name, TermType: tty}
}

func suppressedConcept(id, name, tty, flag string) entities.ConceptTuple {
	c := concept(id, name, tty)
	c.SuppressFlag = &flag
	return c
}

func ibuprofenSource() *mockSource {
	return &mockSource{
		drugs: map[string][]entities.ConceptTuple{
			"advil": {
				concept("731533", "ibuprofen 200 MG Oral Tablet [Advil]", "SBD"),
			},
			"ibuprofen": {
				concept("310965", "ibuprofen 200 MG Oral Tablet", "SCD"),
				concept("731533", "duplicate from ingredient", "SBD"),
			},
		},
		approximate: map[string]string{"advil": "153010"},
		related: map[string][]entities.ConceptTuple{
			"153010|IN": {concept("5640", "ibuprofen", "IN")},
			"153010|BN+SBD": {
				concept("153010", "Advil", "BN"),
				suppressedConcept("999", "Advil Obsolete 100 MG Oral Tablet", "SBD", "O"),
			},
		},
	}
}

func TestSearchMergesStrategies(t *testing.T) {
	svc := NewService(ibuprofenSource(), Options{})

	result, err := svc.Search(context.Background(), "  advil ")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if result.Term != "advil" {
		t.Errorf("Expected trimmed term, got %q", result.Term)
	}

	var ids []string
	for _, r := range result.Records {
		ids = append(ids, r.ConceptID)
	}
	expected := []string{"153010", "310965", "731533"}
	if !slices.Equal(ids, expected) {
		t.Errorf("Expected ids %v sorted by name, got %v", expected, ids)
	}

	byID := make(map[string]entities.DrugRecord)
	for _, r := range result.Records {
		byID[r.ConceptID] = r
	}
	if byID["731533"].FullName != "ibuprofen 200 MG Oral Tablet [Advil]" || byID["731533"].Source != entities.SourceDirect {
		t.Errorf("Expected the direct record to win, got %+v", byID["731533"])
	}
	if byID["310965"].Source != entities.SourceIngredient {
		t.Errorf("Expected ingredient-derived source, got %s", byID["310965"].Source)
	}
	if byID["153010"].Source != entities.SourceRelated {
		t.Errorf("Expected related-concept source, got %s", byID["153010"].Source)
	}

	if result.SuppressedFiltered != 1 {
		t.Errorf("Expected 1 suppressed concept filtered, got %d", result.SuppressedFiltered)
	}
	if result.Stats.Duplicates != 1 {
		t.Errorf("Expected 1 duplicate, got %d", result.Stats.Duplicates)
	}
	if result.Cached || result.Partial {
		t.Errorf("Expected a fresh complete result, got cached=%v partial=%v", result.Cached, result.Partial)
	}
}

func TestSearchSlotOrderIgnoresArrivalOrder(t *testing.T) {
	source := ibuprofenSource()
	// The direct lookup finishes last; its record must still win
	source.delay = map[string]time.Duration{"advil": 50 * time.Millisecond}

	result, err := NewService(source, Options{}).Search(context.Background(), "advil")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	for _, r := range result.Records {
		if r.ConceptID == "731533" && r.Source != entities.SourceDirect {
			t.Errorf("Expected direct record for 731533, got %s", r.Source)
		}
	}
}

func TestSearchIncludeSuppressed(t *testing.T) {
	svc := NewService(ibuprofenSource(), Options{IncludeSuppressed: true})

	result, err := svc.Search(context.Background(), "advil")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	found := false
	for _, r := range result.Records {
		if r.ConceptID == "999" {
			found = true
			if !r.Suppressed {
				t.Error("Expected record 999 flagged suppressed")
			}
		}
	}
	if !found {
		t.Error("Expected suppressed concept kept when configured")
	}
}

func TestSearchShortTerm(t *testing.T) {
	source := ibuprofenSource()
	svc := NewService(source, Options{})

	for _, term := range []string{"", " ", "a", " b "} {
		result, err := svc.Search(context.Background(), term)
		if err != nil {
			t.Errorf("Unexpected error for %q: %v", term, err)
		}
		if result.Records == nil || len(result.Records) != 0 {
			t.Errorf("Expected empty non-nil records for %q, got %v", term, result.Records)
		}
	}
	if source.calls.Load() != 0 {
		t.Errorf("Expected no upstream calls for short terms, got %d", source.calls.Load())
	}
}

func TestSearchCachesCompleteResults(t *testing.T) {
	source := ibuprofenSource()
	svc := NewService(source, Options{})

	if _, err := svc.Search(context.Background(), "advil"); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	callsAfterFirst := source.calls.Load()

	result, err := svc.Search(context.Background(), "ADVIL")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if !result.Cached {
		t.Error("Expected the second search to be served from cache")
	}
	if result.Term != "ADVIL" {
		t.Errorf("Expected the caller's term echoed, got %q", result.Term)
	}
	if source.calls.Load() != callsAfterFirst {
		t.Errorf("Expected no new upstream calls, got %d more", source.calls.Load()-callsAfterFirst)
	}

	stats := svc.CacheStats()
	if stats.Hits != 1 || stats.Size != 1 {
		t.Errorf("Unexpected cache stats %+v", stats)
	}
}

func TestSearchPartialFailureNotCached(t *testing.T) {
	source := ibuprofenSource()
	source.relatedErr = errors.New("rxnav down")
	svc := NewService(source, Options{})

	result, err := svc.Search(context.Background(), "advil")
	if err != nil {
		t.Fatalf("Expected the direct strategy to carry the search, got %v", err)
	}
	if !result.Partial {
		t.Error("Expected a partial result")
	}
	if len(result.Records) != 1 || result.Records[0].ConceptID != "731533" {
		t.Errorf("Expected only the direct record, got %+v", result.Records)
	}
	if svc.CacheStats().Size != 0 {
		t.Error("Expected partial results not to be cached")
	}
}

func TestSearchAllStrategiesFail(t *testing.T) {
	source := ibuprofenSource()
	source.drugsErr = errors.New("timeout")
	source.approxErr = errors.New("timeout")

	_, err := NewService(source, Options{}).Search(context.Background(), "advil")
	if !errors.Is(err, ErrUpstreamUnavailable) {
		t.Errorf("Expected ErrUpstreamUnavailable, got %v", err)
	}
}

func TestSearchNoApproximateMatch(t *testing.T) {
	source := ibuprofenSource()
	source.drugs["zzzz"] = nil

	result, err := NewService(source, Options{}).Search(context.Background(), "zzzz")
	if err != nil {
		t.Fatalf("Expected an empty result rather than an error, got %v", err)
	}
	if len(result.Records) != 0 || result.Partial {
		t.Errorf("Expected empty complete result, got %+v", result)
	}
}

func TestSearchMissingIdentifiersCounted(t *testing.T) {
	source := ibuprofenSource()
	source.drugs["advil"] = append(source.drugs["advil"],
		entities.ConceptTuple{PrimaryName: "no id field"},
		concept("", "empty id", "SBD"),
	)

	result, err := NewService(source, Options{}).Search(context.Background(), "advil")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if result.Stats.MissingID != 2 {
		t.Errorf("Expected 2 missing ids, got %d", result.Stats.MissingID)
	}
	if result.Stats.Input != result.Stats.Output+result.Stats.Dropped() {
		t.Errorf("Expected input to balance output and drops, got %+v", result.Stats)
	}
}

func TestSearchIngredientLimit(t *testing.T) {
	source := ibuprofenSource()
	source.related["153010|IN"] = []entities.ConceptTuple{
		concept("1", "alpha", "IN"),
		concept("2", "beta", "IN"),
		concept("3", "Alpha", "IN"),
		concept("4", "gamma", "IN"),
	}
	source.drugs["alpha"] = []entities.ConceptTuple{concept("11", "alpha 1 MG", "SCD")}
	source.drugs["beta"] = []entities.ConceptTuple{concept("12", "beta 1 MG", "SCD")}
	source.drugs["gamma"] = []entities.ConceptTuple{concept("13", "gamma 1 MG", "SCD")}

	svc := NewService(source, Options{MaxIngredients: 2})
	tuples, err := svc.ingredientDerived(context.Background(), "153010")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	var names []string
	for _, tuple := range tuples {
		names = append(names, tuple.PrimaryName)
	}
	if !slices.Equal(names, []string{"alpha 1 MG", "beta 1 MG"}) {
		t.Errorf("Expected the first two distinct ingredients in order, got %v", names)
	}
}

func TestSearchConcurrentCallsShareWork(t *testing.T) {
	source := ibuprofenSource()
	source.delay = map[string]time.Duration{"advil": 50 * time.Millisecond}
	svc := NewService(source, Options{})

	var wg sync.WaitGroup
	for range 5 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := svc.Search(context.Background(), "advil"); err != nil {
				t.Errorf("Unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	// One fan-out: drugs(advil), approximate, related IN, drugs(ibuprofen), related BN+SBD
	if got := source.calls.Load(); got != 5 {
		t.Errorf("Expected 5 upstream calls for one shared search, got %d", got)
	}
}

func TestSearchCallerCancellation(t *testing.T) {
	source := ibuprofenSource()
	source.delay = map[string]time.Duration{"advil": 200 * time.Millisecond}
	svc := NewService(source, Options{})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if _, err := svc.Search(ctx, "advil"); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Expected deadline exceeded, got %v", err)
	}
}

func TestPurgeExpired(t *testing.T) {
	svc := NewService(ibuprofenSource(), Options{CacheTTL: time.Millisecond})

	if _, err := svc.Search(context.Background(), "advil"); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	time.Sleep(5 * time.Millisecond)

	if removed := svc.PurgeExpired(); removed != 1 {
		t.Errorf("Expected 1 expired entry purged, got %d", removed)
	}
}

func TestResetCache(t *testing.T) {
	source := ibuprofenSource()
	svc := NewService(source, Options{})

	if _, err := svc.Search(context.Background(), "advil"); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	svc.ResetCache()

	if svc.CacheStats().Size != 0 {
		t.Errorf("Expected an empty cache, got %d entries", svc.CacheStats().Size)
	}
	if _, err := svc.Search(context.Background(), "advil"); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if svc.CacheStats().Size != 1 {
		t.Errorf("Expected the search cached again, got %d entries", svc.CacheStats().Size)
	}
}

func TestRelated(t *testing.T) {
	svc := NewService(ibuprofenSource(), Options{})

	result, err := svc.Related(context.Background(), "153010", entities.TermTypeBrandName, entities.TermTypeBrandedDrug)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(result.Records) != 1 || result.Records[0].ConceptID != "153010" {
		t.Errorf("Expected the brand concept only, got %+v", result.Records)
	}
	if result.Records[0].Source != entities.SourceRelated {
		t.Errorf("Expected related-concept source, got %s", result.Records[0].Source)
	}
	if result.SuppressedFiltered != 1 {
		t.Errorf("Expected 1 suppressed concept filtered, got %d", result.SuppressedFiltered)
	}
}

func TestRelatedUpstreamError(t *testing.T) {
	source := ibuprofenSource()
	source.relatedErr = errors.New("boom")

	_, err := NewService(source, Options{}).Related(context.Background(), "153010", entities.TermTypeIngredient)
	if !errors.Is(err, ErrUpstreamUnavailable) {
		t.Errorf("Expected ErrUpstreamUnavailable, got %v", err)
	}
}
