package entities

// TermType is the RxNorm term type (TTY) of a concept.
type TermType string

const (
	TermTypeIngredient            TermType = "IN"
	TermTypePreciseIngredient     TermType = "PIN"
	TermTypeMultipleIngredients   TermType = "MIN"
	TermTypeBrandName             TermType = "BN"
	TermTypeClinicalDrug          TermType = "SCD"
	TermTypeBrandedDrug           TermType = "SBD"
	TermTypeClinicalDrugComponent TermType = "SCDC"
	TermTypeBrandedDrugComponent  TermType = "SBDC"
	TermTypeClinicalDoseForm      TermType = "SCDF"
	TermTypeBrandedDoseForm       TermType = "SBDF"
	TermTypeClinicalDoseFormGroup TermType = "SCDG"
	TermTypeBrandedDoseFormGroup  TermType = "SBDG"
	TermTypeGenericPack           TermType = "GPCK"
	TermTypeBrandedPack           TermType = "BPCK"
	TermTypeDoseForm              TermType = "DF"
	TermTypeDoseFormGroup         TermType = "DFG"
	TermTypeUnknown               TermType = "UNKNOWN"
)

var knownTermTypes = map[TermType]struct{}{
	TermTypeIngredient:            {},
	TermTypePreciseIngredient:     {},
	TermTypeMultipleIngredients:   {},
	TermTypeBrandName:             {},
	TermTypeClinicalDrug:          {},
	TermTypeBrandedDrug:           {},
	TermTypeClinicalDrugComponent: {},
	TermTypeBrandedDrugComponent:  {},
	TermTypeClinicalDoseForm:      {},
	TermTypeBrandedDoseForm:       {},
	TermTypeClinicalDoseFormGroup: {},
	TermTypeBrandedDoseFormGroup:  {},
	TermTypeGenericPack:           {},
	TermTypeBrandedPack:           {},
	TermTypeDoseForm:              {},
	TermTypeDoseFormGroup:         {},
}

// ParseTermType maps a raw TTY onto the fixed vocabulary.
// Unrecognised values become TermTypeUnknown.
func ParseTermType(raw string) TermType {
	tty := TermType(raw)
	if _, ok := knownTermTypes[tty]; ok {
		return tty
	}
	return TermTypeUnknown
}
