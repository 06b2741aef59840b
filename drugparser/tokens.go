package drugparser

import (
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Quantities are anchored on a non-numeric boundary so "103.4" is never read
// as "4" and the decimal comma in "1,5" is never read as "5".
const quantityPrefix = `(?i)(?:^|[^\d.,])(\d+(?:[.,]\d+)?)\s*`

var (
	bracketRegex    = regexp.MustCompile(`\[([^\[\]]*)\]`)
	volumeRegex     = regexp.MustCompile(quantityPrefix + `(ml|l)\b`)
	whitespaceRegex = regexp.MustCompile(`\s+`)
	numericRegex    = regexp.MustCompile(`^\d+(?:[.,]\d+)?$`)
	fusedQtyRegex   = regexp.MustCompile(`^\d+(?:[.,]\d+)?(\S+)$`)
)

type strengthPattern struct {
	name  string
	regex *regexp.Regexp
}

// strengthPatterns are tried in order and the first pattern that matches wins,
// even if a later pattern would match elsewhere in the label.
var strengthPatterns = []strengthPattern{
	{name: "mg/ml", regex: regexp.MustCompile(quantityPrefix + `(mg\s*/\s*ml)\b`)},
	{name: "mcg/ml", regex: regexp.MustCompile(quantityPrefix + `((?:mcg|μg)\s*/\s*ml)\b`)},
	{name: "mg", regex: regexp.MustCompile(quantityPrefix + `(mg)\b`)},
	{name: "mcg", regex: regexp.MustCompile(quantityPrefix + `(mcg|μg)`)},
	{name: "percent", regex: regexp.MustCompile(quantityPrefix + `(%)`)},
	{name: "unit", regex: regexp.MustCompile(quantityPrefix + `(unt|units?|iu)\b`)},
}

// normalizeLabel folds compatibility characters (full-width digits, the micro
// sign) and collapses whitespace.
func normalizeLabel(label string) string {
	label = norm.NFKC.String(label)
	return strings.TrimSpace(whitespaceRegex.ReplaceAllString(label, " "))
}

// ExtractBracketedBrand returns the contents of the first non-blank [...] span
// and the label with every bracketed span removed. ok is false when there is
// no span or every span is blank.
func ExtractBracketedBrand(label string) (brand string, rest string, ok bool) {
	matches := bracketRegex.FindAllStringSubmatch(label, -1)
	if matches == nil {
		return "", label, false
	}

	rest = normalizeLabel(bracketRegex.ReplaceAllString(label, " "))
	for _, m := range matches {
		if brand = strings.TrimSpace(m[1]); brand != "" {
			return brand, rest, true
		}
	}
	return "", rest, false
}

// ExtractVolume returns the first volume quantity ("5 ml"), or nil.
func ExtractVolume(label string) *string {
	return findQuantity(volumeRegex, label)
}

// ExtractStrength returns the strength quantity of the first matching pattern
// in priority order mg/ml, mcg/ml, mg, mcg, percent, unit count; or nil.
func ExtractStrength(label string) *string {
	for _, p := range strengthPatterns {
		if q := findQuantity(p.regex, label); q != nil {
			return q
		}
	}
	return nil
}

// MatchDoseForm returns the first dose-form table entry found in label.
func MatchDoseForm(label string) (DoseFormEntry, bool) {
	for _, entry := range doseForms {
		if entry.pattern.MatchString(label) {
			return entry, true
		}
	}
	return DoseFormEntry{}, false
}

func findQuantity(re *regexp.Regexp, label string) *string {
	match := re.FindStringSubmatch(label)
	if match == nil {
		return nil
	}
	q := formatQuantity(match[1], match[2])
	return &q
}

// formatQuantity renders "<number> <unit>" in lower case with no space inside
// the unit. A decimal comma becomes a point.
func formatQuantity(number, unit string) string {
	number = strings.Replace(number, ",", ".", 1)
	unit = strings.ToLower(whitespaceRegex.ReplaceAllString(unit, ""))
	unit = strings.ReplaceAll(unit, "μg", "mcg")
	return number + " " + unit
}

// isQuantityToken reports whether a whitespace token is a bare number, a unit,
// or a number fused with its unit ("200MG").
func isQuantityToken(token string) bool {
	if numericRegex.MatchString(token) || isUnitKeyword(token) {
		return true
	}
	if m := fusedQtyRegex.FindStringSubmatch(token); m != nil {
		return isUnitKeyword(m[1])
	}
	return false
}
