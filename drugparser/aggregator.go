package drugparser

import (
	"cmp"
	"regexp"
	"slices"
	"strings"

	"github.com/giygas/rxnorm-search-api/drugparser/entities"
)

var rxcuiRegex = regexp.MustCompile(`^\d+$`)

// AggregateStats counts what happened to the input of one Aggregate call.
type AggregateStats struct {
	Input       int                        `json:"input"`
	MissingID   int                        `json:"missingId"`
	MissingName int                        `json:"missingName"`
	Duplicates  int                        `json:"duplicates"`
	Output      int                        `json:"output"`
	BySource    map[entities.SourceTag]int `json:"bySource"`
}

// Dropped returns the number of input records not present in the output.
func (s AggregateStats) Dropped() int {
	return s.MissingID + s.MissingName + s.Duplicates
}

// IsConceptID reports whether id looks like an RxCUI.
func IsConceptID(id string) bool {
	return rxcuiRegex.MatchString(id)
}

// Aggregate merges tagged records into a duplicate-free slice sorted by name.
//
// Records are considered in source order (direct, ingredient-derived,
// related-concept), keeping the input order within a source. The first record
// seen for a concept identifier is kept whole; later ones are discarded even
// when they carry more fields. Records without a usable identifier or name are
// dropped and counted. The output is sorted by FullName, byte-wise and case
// sensitive, with the identifier breaking ties.
func Aggregate(records []entities.TaggedRecord) ([]entities.DrugRecord, AggregateStats) {
	stats := AggregateStats{
		Input:    len(records),
		BySource: make(map[entities.SourceTag]int),
	}

	ordered := slices.Clone(records)
	slices.SortStableFunc(ordered, func(a, b entities.TaggedRecord) int {
		return cmp.Compare(a.Source.Rank(), b.Source.Rank())
	})

	seen := make(map[string]struct{}, len(ordered))
	out := make([]entities.DrugRecord, 0, len(ordered))

	for _, tagged := range ordered {
		record := tagged.Record

		if !IsConceptID(record.ConceptID) {
			stats.MissingID++
			continue
		}
		if strings.TrimSpace(record.FullName) == "" {
			stats.MissingName++
			continue
		}
		if _, dup := seen[record.ConceptID]; dup {
			stats.Duplicates++
			continue
		}
		seen[record.ConceptID] = struct{}{}

		record.Source = tagged.Source
		stats.BySource[tagged.Source]++
		out = append(out, record)
	}

	slices.SortFunc(out, func(a, b entities.DrugRecord) int {
		if c := strings.Compare(a.FullName, b.FullName); c != 0 {
			return c
		}
		return strings.Compare(a.ConceptID, b.ConceptID)
	})

	stats.Output = len(out)
	return out, stats
}
