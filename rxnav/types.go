package rxnav

import (
	"strings"

	"github.com/giygas/rxnorm-search-api/drugparser/entities"
)

// conceptProperties is one concept as RxNav serializes it. Every field is
// optional in practice, the pointer keeps "missing" apart from "empty".
type conceptProperties struct {
	RxCUI    *string `json:"rxcui"`
	Name     string  `json:"name"`
	Synonym  string  `json:"synonym"`
	TTY      string  `json:"tty"`
	Language string  `json:"language"`
	Suppress *string `json:"suppress"`
	UMLSCUI  string  `json:"umlscui"`
}

type conceptGroup struct {
	TTY               string              `json:"tty"`
	ConceptProperties []conceptProperties `json:"conceptProperties"`
}

type drugsResponse struct {
	DrugGroup struct {
		Name         *string        `json:"name"`
		ConceptGroup []conceptGroup `json:"conceptGroup"`
	} `json:"drugGroup"`
}

type relatedResponse struct {
	RelatedGroup struct {
		RxCUI        string         `json:"rxcui"`
		ConceptGroup []conceptGroup `json:"conceptGroup"`
	} `json:"relatedGroup"`
}

type approximateResponse struct {
	ApproximateGroup struct {
		Candidate []struct {
			RxCUI string `json:"rxcui"`
			Score string `json:"score"`
			Rank  string `json:"rank"`
		} `json:"candidate"`
	} `json:"approximateGroup"`
}

type versionResponse struct {
	Version    string `json:"version"`
	APIVersion string `json:"apiVersion"`
}

// toTuples flattens concept groups into raw tuples. The name falls back to the
// synonym when RxNav leaves it empty; the group term type fills a missing tty.
func toTuples(groups []conceptGroup) []entities.ConceptTuple {
	var tuples []entities.ConceptTuple
	for _, group := range groups {
		for _, props := range group.ConceptProperties {
			tuple := entities.ConceptTuple{
				ConceptID:    props.RxCUI,
				PrimaryName:  strings.TrimSpace(props.Name),
				TermType:     props.TTY,
				SuppressFlag: props.Suppress,
			}
			if tuple.PrimaryName == "" {
				tuple.PrimaryName = strings.TrimSpace(props.Synonym)
			}
			if tuple.TermType == "" {
				tuple.TermType = group.TTY
			}
			if synonym := strings.TrimSpace(props.Synonym); synonym != "" {
				tuple.Synonym = &synonym
			}
			tuples = append(tuples, tuple)
		}
	}
	return tuples
}
