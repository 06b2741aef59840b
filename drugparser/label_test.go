package drugparser

import (
	"encoding/json"
	"strings"
	"testing"
)

func strOrNil(s *string) string {
	if s == nil {
		return "<nil>"
	}
	return *s
}

func TestParseWorkedExamples(t *testing.T) {
	testCases := []struct {
		label      string
		ingredient string
		brand      string
		strength   string
		doseForm   string
		route      string
		volume     string
		display    string
	}{
		{
			label:      "Advil 200 MG Oral Tablet",
			ingredient: "Advil",
			brand:      "Advil",
			strength:   "200 mg",
			doseForm:   "Tablet",
			route:      "Oral",
			volume:     "<nil>",
			display:    "Advil (Oral)",
		},
		{
			label:      "dexamethasone 103.4 MG/ML Injection [Decadron]",
			ingredient: "dexamethasone",
			brand:      "Decadron",
			strength:   "103.4 mg/ml",
			doseForm:   "Injection",
			route:      "Injectable",
			volume:     "<nil>",
			display:    "dexAMETHasone (Injectable)",
		},
		{
			label:      "ibuprofen 200 MG Oral Tablet [Advil]",
			ingredient: "ibuprofen",
			brand:      "Advil",
			strength:   "200 mg",
			doseForm:   "Tablet",
			route:      "Oral",
			volume:     "<nil>",
			display:    "Advil (Oral)",
		},
		{
			label:      "ibuprofen 400 MG Oral Tablet",
			ingredient: "ibuprofen",
			brand:      "<nil>",
			strength:   "400 mg",
			doseForm:   "Tablet",
			route:      "Oral",
			volume:     "<nil>",
			display:    "ibuprofen (Oral)",
		},
		{
			label:      "1 ML dexamethasone sodium phosphate 10 MG/ML Injection",
			ingredient: "dexamethasone sodium",
			brand:      "<nil>",
			strength:   "10 mg/ml",
			doseForm:   "Injection",
			route:      "Injectable",
			volume:     "1 ml",
			display:    "dexamethasone sodium (Injectable)",
		},
		{
			label:      "sodium chloride 9 MG/ML Injectable Solution",
			ingredient: "sodium chloride",
			brand:      "<nil>",
			strength:   "9 mg/ml",
			doseForm:   "Solution",
			route:      "Injectable",
			volume:     "<nil>",
			display:    "sodium chloride (Injectable)",
		},
		{
			label:      "hydrocortisone 1 % Topical Cream",
			ingredient: "hydrocortisone",
			brand:      "<nil>",
			strength:   "1 %",
			doseForm:   "Cream",
			route:      "Topical",
			volume:     "<nil>",
			display:    "hydrocortisone (Topical)",
		},
		{
			label:      "insulin glargine 100 UNT/ML Prefilled Syringe [Lantus]",
			ingredient: "insulin glargine",
			brand:      "Lantus",
			strength:   "100 unt",
			doseForm:   "Injection",
			route:      "Injectable",
			volume:     "<nil>",
			display:    "insulin glargine (Injectable)",
		},
		{
			label:      "nitroglycerin 0.4 MG Sublingual Tablet",
			ingredient: "nitroglycerin",
			brand:      "<nil>",
			strength:   "0.4 mg",
			doseForm:   "Tablet",
			route:      "Sublingual",
			volume:     "<nil>",
			display:    "nitroglycerin (Sublingual)",
		},
		{
			label:      "aspirin 325 MG Tablet",
			ingredient: "aspirin",
			brand:      "<nil>",
			strength:   "325 mg",
			doseForm:   "Tablet",
			route:      "<nil>",
			volume:     "<nil>",
			display:    "aspirin",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.label, func(t *testing.T) {
			p := Parse(tc.label)

			checks := []struct {
				field    string
				got      *string
				expected string
			}{
				{"ingredient", p.Ingredient, tc.ingredient},
				{"brandName", p.BrandName, tc.brand},
				{"strength", p.Strength, tc.strength},
				{"doseForm", p.DoseForm, tc.doseForm},
				{"route", p.Route, tc.route},
				{"volume", p.Volume, tc.volume},
				{"displayName", p.DisplayName(), tc.display},
			}
			for _, c := range checks {
				if got := strOrNil(c.got); got != c.expected {
					t.Errorf("Expected %s %q, got %q", c.field, c.expected, got)
				}
			}
		})
	}
}

func TestParseEmptyLabels(t *testing.T) {
	for _, label := range []string{"", "   ", "\t\n"} {
		p := Parse(label)
		if p != (ParsedLabel{}) {
			t.Errorf("Expected every field absent for %q, got %+v", label, p)
		}
		if p.DisplayName() != nil {
			t.Errorf("Expected no display name for %q", label)
		}
	}
}

func TestParseDoseFormPhrasePrecedence(t *testing.T) {
	p := Parse("metformin hydrochloride 500 MG Oral Tablet")
	if strOrNil(p.Route) != "Oral" {
		t.Errorf("Expected route Oral from the phrase, got %s", strOrNil(p.Route))
	}

	bare := Parse("metformin hydrochloride 500 MG Tablet")
	if bare.Route != nil {
		t.Errorf("Expected no route for a bare tablet, got %s", *bare.Route)
	}
	if strOrNil(bare.DoseForm) != "Tablet" {
		t.Errorf("Expected dose form Tablet, got %s", strOrNil(bare.DoseForm))
	}
}

func TestParseKnownBrandIsCaseSensitive(t *testing.T) {
	if p := Parse("advil 200 MG Oral Tablet"); p.BrandName != nil {
		t.Errorf("Expected no brand for lower-case advil, got %s", *p.BrandName)
	}
	if p := Parse("Generic Advil 200 MG"); p.BrandName != nil {
		t.Errorf("Expected brand lookup on the first word only, got %s", *p.BrandName)
	}
}

func TestParseBlankBracket(t *testing.T) {
	p := Parse("Advil 200 MG Oral Tablet []")
	if strOrNil(p.BrandName) != "Advil" {
		t.Errorf("Expected fallback to the known-brand list, got %s", strOrNil(p.BrandName))
	}
	if d := strOrNil(p.DisplayName()); strings.ContainsAny(d, "[]") {
		t.Errorf("Expected no brackets in display name, got %q", d)
	}
}

func TestParseNeverProducesEmptyFields(t *testing.T) {
	labels := []string{
		"[]", "[ ]", "[Brand", "Brand]", "200", "MG", "200 MG", "Oral Tablet",
		"%", "[x] [y]", "0.5", "ＡＤＶＩＬ　２００ ＭＧ", "5µg/ml drops", "!!!",
		"x]y 5 MG Oral Tablet", "a[b 5 MG Oral Tablet", "] [", "[[Advil]",
	}

	for _, label := range labels {
		p := Parse(label)
		for name, v := range map[string]*string{
			"ingredient": p.Ingredient,
			"brandName":  p.BrandName,
			"strength":   p.Strength,
			"doseForm":   p.DoseForm,
			"route":      p.Route,
			"volume":     p.Volume,
			"display":    p.DisplayName(),
		} {
			if v != nil && strings.TrimSpace(*v) == "" {
				t.Errorf("Expected %s absent rather than blank for %q", name, label)
			}
		}
		if d := p.DisplayName(); d != nil && strings.ContainsAny(*d, "[]") {
			t.Errorf("Expected no brackets in display name for %q, got %q", label, *d)
		}
	}
}

func TestParseStrayBrackets(t *testing.T) {
	testCases := []struct {
		label      string
		ingredient string
		brand      string
	}{
		{"x]y 5 MG Oral Tablet", "x", "<nil>"},
		{"a[b 5 MG Oral Tablet", "a", "<nil>"},
		{"ibuprofen [Advil 200 MG Oral Tablet", "ibuprofen Advil", "<nil>"},
		{"[Advil 200 MG Oral Tablet", "Advil", "Advil"},
	}

	for _, tc := range testCases {
		t.Run(tc.label, func(t *testing.T) {
			p := Parse(tc.label)
			if got := strOrNil(p.Ingredient); got != tc.ingredient {
				t.Errorf("Expected ingredient %q, got %q", tc.ingredient, got)
			}
			if got := strOrNil(p.BrandName); got != tc.brand {
				t.Errorf("Expected brand %q, got %q", tc.brand, got)
			}
		})
	}
}

func TestParseDecimalCommaStrength(t *testing.T) {
	p := Parse("amoxicillin 1,5 MG Oral Tablet")
	if got := strOrNil(p.Strength); got != "1.5 mg" {
		t.Errorf("Expected strength 1.5 mg, got %q", got)
	}
	if got := strOrNil(p.Ingredient); got != "amoxicillin" {
		t.Errorf("Expected ingredient amoxicillin, got %q", got)
	}
}

func TestParseNormalizesCompatibilityCharacters(t *testing.T) {
	p := Parse("cyanocobalamin ５００ µg Oral Tablet")
	if strOrNil(p.Strength) != "500 mcg" {
		t.Errorf("Expected strength 500 mcg, got %s", strOrNil(p.Strength))
	}
}

func TestDisplayNameFollowsFieldChanges(t *testing.T) {
	p := Parse("ibuprofen 200 MG Oral Tablet")
	if strOrNil(p.DisplayName()) != "ibuprofen (Oral)" {
		t.Fatalf("Unexpected display name %s", strOrNil(p.DisplayName()))
	}

	brand := "Motrin"
	p.BrandName = &brand
	if strOrNil(p.DisplayName()) != "Motrin (Oral)" {
		t.Errorf("Expected display name to follow the brand, got %s", strOrNil(p.DisplayName()))
	}

	p.Route = nil
	if strOrNil(p.DisplayName()) != "Motrin" {
		t.Errorf("Expected display name without route, got %s", strOrNil(p.DisplayName()))
	}
}

func TestParsedLabelJSON(t *testing.T) {
	data, err := json.Marshal(Parse("Advil 200 MG Oral Tablet"))
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}

	var decoded map[string]any
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}

	if decoded["displayName"] != "Advil (Oral)" {
		t.Errorf("Expected displayName in JSON, got %v", decoded["displayName"])
	}
	if v, ok := decoded["volume"]; !ok || v != nil {
		t.Errorf("Expected volume to be present and null, got %v (present=%v)", v, ok)
	}
}
