package entities

// DrugRecord is one normalized RxNorm concept, as returned by a search.
// Optional fields are nil when nothing could be extracted for them.
type DrugRecord struct {
	ConceptID       string    `json:"rxcui"`
	FullName        string    `json:"name"`
	FullGenericName string    `json:"genericName"`
	Synonym         *string   `json:"synonym,omitempty"`
	BrandName       *string   `json:"brandName,omitempty"`
	DisplayName     *string   `json:"displayName,omitempty"`
	Strength        *string   `json:"strength,omitempty"`
	DoseForm        *string   `json:"doseForm,omitempty"`
	Route           *string   `json:"route,omitempty"`
	TermType        TermType  `json:"termType"`
	Suppressed      bool      `json:"suppressed"`
	Source          SourceTag `json:"source,omitempty"`
}

// TaggedRecord pairs a record with the query strategy that produced it.
type TaggedRecord struct {
	Record DrugRecord
	Source SourceTag
}
