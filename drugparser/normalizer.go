package drugparser

import (
	"errors"
	"strings"

	"github.com/giygas/rxnorm-search-api/drugparser/entities"
)

// NotSuppressedMarker is the suppress flag value RxNav uses for current concepts.
const NotSuppressedMarker = "N"

// ErrMissingConceptID is returned when a concept carries no identifier field at all.
// An empty identifier is not an error; the aggregator drops it.
var ErrMissingConceptID = errors.New("concept has no rxcui field")

// Normalize merges the parses of a concept's primary name and optional synonym
// into one DrugRecord. The concept identifier is kept verbatim.
func Normalize(primaryName string, genericName, synonym *string, conceptID string, termType string, suppressFlag *string) entities.DrugRecord {
	primary := Parse(primaryName)

	var alt ParsedLabel
	hasAlt := false
	if synonym != nil && strings.TrimSpace(*synonym) != "" && *synonym != primaryName {
		alt = Parse(*synonym)
		hasAlt = true
	}

	// The synonym usually carries the commercial name, so its brand wins
	if hasAlt && alt.BrandName != nil {
		primary.BrandName = alt.BrandName
	}

	record := entities.DrugRecord{
		ConceptID:       conceptID,
		FullName:        primaryName,
		FullGenericName: genericNameFor(primaryName, genericName),
		Synonym:         nonBlank(synonym),
		BrandName:       primary.BrandName,
		DisplayName:     primary.DisplayName(),
		Strength:        primary.Strength,
		DoseForm:        primary.DoseForm,
		Route:           primary.Route,
		TermType:        entities.ParseTermType(termType),
		Suppressed:      isSuppressed(suppressFlag),
	}

	if hasAlt {
		record.DisplayName = firstPresent(record.DisplayName, alt.DisplayName())
		record.Strength = firstPresent(record.Strength, alt.Strength)
		record.DoseForm = firstPresent(record.DoseForm, alt.DoseForm)
		record.Route = firstPresent(record.Route, alt.Route)
	}

	return record
}

// NormalizeConcept normalizes a raw concept from the lookup service.
func NormalizeConcept(c entities.ConceptTuple) (entities.DrugRecord, error) {
	if c.ConceptID == nil {
		return entities.DrugRecord{}, ErrMissingConceptID
	}
	return Normalize(c.PrimaryName, c.GenericName, c.Synonym, *c.ConceptID, c.TermType, c.SuppressFlag), nil
}

func isSuppressed(flag *string) bool {
	return flag != nil && *flag != "" && *flag != NotSuppressedMarker
}

// genericNameFor falls back to the primary name without its [Brand] annotation.
func genericNameFor(primaryName string, genericName *string) string {
	if g := nonBlank(genericName); g != nil {
		return *g
	}
	if _, rest, found := ExtractBracketedBrand(primaryName); found {
		return rest
	}
	return strings.TrimSpace(primaryName)
}

func nonBlank(s *string) *string {
	if s == nil || strings.TrimSpace(*s) == "" {
		return nil
	}
	return s
}

func firstPresent(values ...*string) *string {
	for _, v := range values {
		if v != nil {
			return v
		}
	}
	return nil
}
