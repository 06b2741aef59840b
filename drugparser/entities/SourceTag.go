package entities

// SourceTag records which query strategy produced a record.
type SourceTag string

const (
	SourceDirect     SourceTag = "direct"
	SourceIngredient SourceTag = "ingredient-derived"
	SourceRelated    SourceTag = "related-concept"
)

// SourceOrder is the fixed order in which strategies are queried and aggregated.
var SourceOrder = []SourceTag{SourceDirect, SourceIngredient, SourceRelated}

// Rank returns the position of the tag in SourceOrder. Unknown tags sort last.
func (s SourceTag) Rank() int {
	for i, tag := range SourceOrder {
		if tag == s {
			return i
		}
	}
	return len(SourceOrder)
}
