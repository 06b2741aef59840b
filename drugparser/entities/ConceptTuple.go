package entities

// ConceptTuple is a raw concept as delivered by the lookup service, before normalization.
// A nil ConceptID means the upstream payload had no identifier field at all.
type ConceptTuple struct {
	ConceptID    *string `json:"rxcui"`
	PrimaryName  string  `json:"name"`
	GenericName  *string `json:"genericName,omitempty"`
	Synonym      *string `json:"synonym,omitempty"`
	TermType     string  `json:"tty"`
	SuppressFlag *string `json:"suppress,omitempty"`
}
