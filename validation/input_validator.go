// Package validation checks user supplied query values before they reach the
// search pipeline or the label parser.
package validation

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/giygas/rxnorm-search-api/drugparser"
	"github.com/giygas/rxnorm-search-api/interfaces"
)

const (
	MinSearchTermLength = 2
	MaxSearchTermLength = 100
	MaxSearchTermWords  = 10
	MaxLabelLength      = 300
	maxRepeatedRun      = 10
)

// Pre-compiled regex patterns, compiled once at package initialization
var (
	// Letters in any script, digits and the punctuation found in drug names
	searchTermRegex = regexp.MustCompile(`^[\p{L}\p{M}0-9\s\-\.\+/'%,()]+$`)

	// Dangerous patterns as strings, strings.Contains is faster than regex here
	dangerousPatterns = []string{
		"<script", "</script>", "javascript:", "vbscript:", "onload=", "onerror=",
		"onclick=", "onmouseover=", "onfocus=", "onblur=", "onchange=", "onsubmit=",
		"eval(", "expression(", "url(", "@import", "binding(", "behavior(",
		// SQL injection patterns
		"' or ", "\" or ", "union select", "drop table", "delete from", "insert into",
		"update set", "--", "/*", "*/", "exec(", "execute(",
		// Command injection patterns
		"; ", "| ", "`", "$(", "${",
		// Path traversal patterns
		"../", "..\\", "%2e%2e", "file://",
		// LDAP injection patterns
		"*)(", "*|(", "*)%",
		// NoSQL injection patterns
		"{$ne:", "{$gt:", "{$where:", "{$or:", "{$regex:", "{$expr:",
	}
)

// InputValidatorImpl implements the interfaces.InputValidator interface
type InputValidatorImpl struct{}

// NewInputValidator creates a new input validator
func NewInputValidator() interfaces.InputValidator {
	return &InputValidatorImpl{}
}

// ValidateSearchTerm returns the trimmed term or the reason it is refused
func (v *InputValidatorImpl) ValidateSearchTerm(term string) (string, error) {
	term = strings.TrimSpace(term)
	if term == "" {
		return "", fmt.Errorf("search term cannot be empty")
	}

	length := utf8.RuneCountInString(term)
	if length < MinSearchTermLength {
		return "", fmt.Errorf("search term too short: minimum %d characters", MinSearchTermLength)
	}
	if length > MaxSearchTermLength {
		return "", fmt.Errorf("search term too long: maximum %d characters", MaxSearchTermLength)
	}

	// Word count limit against many-short-word queries
	if len(strings.Fields(term)) > MaxSearchTermWords {
		return "", fmt.Errorf("search term too complex: maximum %d words allowed", MaxSearchTermWords)
	}

	if containsDangerousPattern(term) {
		return "", fmt.Errorf("search term contains potentially dangerous content")
	}

	if !searchTermRegex.MatchString(term) {
		return "", fmt.Errorf("search term contains invalid characters. Only letters, numbers, spaces and - . + / ' %% , ( ) are allowed")
	}

	if hasExcessiveRepetition(term) {
		return "", fmt.Errorf("search term contains excessive character repetition")
	}

	return term, nil
}

// ValidateLabel returns the trimmed label or the reason it is refused.
// Labels keep brackets and braces, only length and dangerous content are checked.
func (v *InputValidatorImpl) ValidateLabel(label string) (string, error) {
	label = strings.TrimSpace(label)
	if label == "" {
		return "", fmt.Errorf("label cannot be empty")
	}

	if utf8.RuneCountInString(label) > MaxLabelLength {
		return "", fmt.Errorf("label too long: maximum %d characters", MaxLabelLength)
	}

	if strings.ContainsFunc(label, func(r rune) bool {
		return unicode.IsControl(r) && !unicode.IsSpace(r)
	}) {
		return "", fmt.Errorf("label contains control characters")
	}

	if containsDangerousPattern(label) {
		return "", fmt.Errorf("label contains potentially dangerous content")
	}

	return label, nil
}

// ValidateRxCUI validates RxNorm concept identifiers, which are digits only.
// Surrounding whitespace is rejected rather than trimmed.
func (v *InputValidatorImpl) ValidateRxCUI(input string) (string, error) {
	if strings.TrimSpace(input) == "" {
		return "", fmt.Errorf("input cannot be empty")
	}

	if len(input) > 10 {
		return "", fmt.Errorf("RxCUI too long: maximum 10 digits")
	}

	if !drugparser.IsConceptID(input) {
		return "", fmt.Errorf("input contains invalid characters. Only numeric characters are allowed")
	}

	return input, nil
}

func containsDangerousPattern(input string) bool {
	lower := strings.ToLower(input)
	for _, pattern := range dangerousPatterns {
		if strings.Contains(lower, pattern) {
			return true
		}
	}
	return false
}

// hasExcessiveRepetition reports a rune repeated more than maxRepeatedRun times in a row
func hasExcessiveRepetition(input string) bool {
	var prev rune
	run := 0
	for _, r := range input {
		if r == prev {
			run++
			if run > maxRepeatedRun {
				return true
			}
			continue
		}
		prev = r
		run = 1
	}
	return false
}
