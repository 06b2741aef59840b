package drugparser

import (
	"encoding/json"
	"slices"
	"strings"
)

// ParsedLabel is the structured decomposition of one product label.
// Every field is nil when extraction failed; none is ever an empty string.
type ParsedLabel struct {
	Ingredient *string `json:"ingredient"`
	BrandName  *string `json:"brandName"`
	Strength   *string `json:"strength"`
	DoseForm   *string `json:"doseForm"`
	Route      *string `json:"route"`
	Volume     *string `json:"volume"`
}

// DisplayName derives the human-friendly name from Ingredient, BrandName and
// Route. It is computed on every call so it always reflects the current fields.
func (p ParsedLabel) DisplayName() *string {
	if p.Ingredient == nil {
		return nil
	}

	base := *p.Ingredient
	if o, ok := displayOverrides[strings.ToLower(base)]; ok {
		switch {
		case o.PreferBrand && p.BrandName != nil:
			base = *p.BrandName
		case o.Rendering != "":
			base = o.Rendering
		}
	}

	name := formatDisplay(base, p.Route)
	return &name
}

// MarshalJSON adds the derived displayName to the serialized fields.
func (p ParsedLabel) MarshalJSON() ([]byte, error) {
	type fields ParsedLabel
	return json.Marshal(struct {
		fields
		DisplayName *string `json:"displayName"`
	}{
		fields:      fields(p),
		DisplayName: p.DisplayName(),
	})
}

func formatDisplay(base string, route *string) string {
	if route == nil {
		return base
	}
	return base + " (" + *route + ")"
}

var strayBracketReplacer = strings.NewReplacer("[", " ", "]", " ")

// Parse decomposes a product label such as "ibuprofen 200 MG Oral Tablet [Advil]".
// It never fails: anything that cannot be extracted is left nil.
func Parse(label string) ParsedLabel {
	var parsed ParsedLabel

	working := normalizeLabel(label)
	if working == "" {
		return parsed
	}

	// Brand: bracketed annotation first, then the known-brand list on the first word.
	// Unpaired brackets are left over once every [...] span is gone.
	brand, rest, ok := ExtractBracketedBrand(working)
	working = normalizeLabel(strayBracketReplacer.Replace(rest))
	if ok {
		parsed.BrandName = &brand
	} else if first, _, _ := strings.Cut(working, " "); slices.Contains(knownBrands, first) {
		parsed.BrandName = &first
	}
	if working == "" {
		return parsed
	}

	parsed.Volume = ExtractVolume(working)
	parsed.Strength = ExtractStrength(working)

	if entry, ok := MatchDoseForm(working); ok {
		doseForm := entry.DoseForm
		parsed.DoseForm = &doseForm
		if entry.Route != "" {
			route := entry.Route
			parsed.Route = &route
		}
	}

	parsed.Ingredient = extractIngredient(working)

	return parsed
}

// extractIngredient guesses the active ingredient from the leading words of a
// label. This is a heuristic, not a segmentation: quantities and units are
// skipped, accumulation stops at the first dose-form word, and the result is
// the first remaining token, or the first two when the second is longer than
// three characters ("sodium chloride" but not "insulin 70").
func extractIngredient(working string) *string {
	var tokens []string
	for _, raw := range strings.Fields(working) {
		token := strings.Trim(raw, "(),;")
		if token == "" || isQuantityToken(token) {
			continue
		}
		if _, stop := doseFormWords[strings.ToLower(token)]; stop {
			break
		}
		tokens = append(tokens, token)
	}

	if len(tokens) == 0 {
		return nil
	}

	ingredient := tokens[0]
	if len(tokens) > 1 && len(tokens[1]) > 3 {
		ingredient += " " + tokens[1]
	}
	return &ingredient
}
