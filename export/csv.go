// Package export renders search results for download.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/giygas/rxnorm-search-api/drugparser/entities"
)

// Header is the fixed CSV column order. Column names match the record JSON keys.
var Header = []string{
	"rxcui",
	"name",
	"genericName",
	"synonym",
	"brandName",
	"displayName",
	"strength",
	"doseForm",
	"route",
	"termType",
	"suppressed",
	"source",
}

// WriteCSV writes the header and one row per record. Absent values are empty cells.
func WriteCSV(w io.Writer, records []entities.DrugRecord) error {
	cw := csv.NewWriter(w)

	if err := cw.Write(Header); err != nil {
		return fmt.Errorf("write CSV header: %w", err)
	}

	for _, r := range records {
		row := []string{
			r.ConceptID,
			r.FullName,
			r.FullGenericName,
			deref(r.Synonym),
			deref(r.BrandName),
			deref(r.DisplayName),
			deref(r.Strength),
			deref(r.DoseForm),
			deref(r.Route),
			string(r.TermType),
			strconv.FormatBool(r.Suppressed),
			string(r.Source),
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write CSV row %s: %w", r.ConceptID, err)
		}
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flush CSV: %w", err)
	}
	return nil
}

// Filename returns the attachment name for a search term export
func Filename(term string) string {
	safe := make([]rune, 0, len(term))
	for _, r := range term {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-':
			safe = append(safe, r)
		case r == ' ' || r == '_':
			safe = append(safe, '_')
		}
	}
	if len(safe) == 0 {
		return "rxnorm-search.csv"
	}
	return "rxnorm-search-" + string(safe) + ".csv"
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
