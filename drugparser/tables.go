package drugparser

import (
	"regexp"
	"strings"
)

// Routes of administration produced by the dose-form table.
const (
	RouteOral        = "Oral"
	RouteSublingual  = "Sublingual"
	RouteBuccal      = "Buccal"
	RouteInjectable  = "Injectable"
	RouteTopical     = "Topical"
	RouteOphthalmic  = "Ophthalmic"
	RouteOtic        = "Otic"
	RouteNasal       = "Nasal"
	RouteInhalation  = "Inhalation"
	RouteTransdermal = "Transdermal"
	RouteRectal      = "Rectal"
	RouteVaginal     = "Vaginal"
)

// knownBrands is checked against the first word of a label that carries no
// bracketed brand annotation. Matching is case-sensitive and exact.
var knownBrands = []string{
	"Advil",
	"Motrin",
	"Aleve",
	"Tylenol",
	"Excedrin",
	"Bayer",
	"Decadron",
	"Benadryl",
	"Claritin",
	"Zyrtec",
	"Allegra",
	"Sudafed",
	"Prilosec",
	"Nexium",
	"Zantac",
	"Pepcid",
	"Lipitor",
	"Zocor",
	"Crestor",
	"Synthroid",
	"Glucophage",
	"Lasix",
	"Zoloft",
	"Prozac",
	"Xanax",
	"Valium",
	"Amoxil",
	"Augmentin",
	"Cipro",
	"Zithromax",
	"Ventolin",
	"Lantus",
	"Humalog",
	"Medrol",
	"Deltasone",
}

// DoseFormEntry maps a dose-form phrase to its canonical dose form and route.
// Route is empty when the phrase does not imply one.
type DoseFormEntry struct {
	Phrase   string
	DoseForm string
	Route    string
	pattern  *regexp.Regexp
}

// doseForms is scanned top to bottom and the first hit wins, so every phrase
// must appear before any shorter phrase it contains ("oral tablet" before "tablet").
// Bare form words carry no route: a tablet alone may be oral, sublingual, buccal
// or vaginal.
var doseForms = compileDoseForms([]DoseFormEntry{
	{Phrase: "extended release oral tablet", DoseForm: "Tablet", Route: RouteOral},
	{Phrase: "delayed release oral tablet", DoseForm: "Tablet", Route: RouteOral},
	{Phrase: "extended release oral capsule", DoseForm: "Capsule", Route: RouteOral},
	{Phrase: "delayed release oral capsule", DoseForm: "Capsule", Route: RouteOral},
	{Phrase: "disintegrating oral tablet", DoseForm: "Tablet", Route: RouteOral},
	{Phrase: "chewable tablet", DoseForm: "Tablet", Route: RouteOral},
	{Phrase: "sublingual tablet", DoseForm: "Tablet", Route: RouteSublingual},
	{Phrase: "buccal tablet", DoseForm: "Tablet", Route: RouteBuccal},
	{Phrase: "vaginal tablet", DoseForm: "Tablet", Route: RouteVaginal},
	{Phrase: "oral tablet", DoseForm: "Tablet", Route: RouteOral},
	{Phrase: "oral capsule", DoseForm: "Capsule", Route: RouteOral},
	{Phrase: "oral solution", DoseForm: "Solution", Route: RouteOral},
	{Phrase: "oral suspension", DoseForm: "Suspension", Route: RouteOral},
	{Phrase: "oral powder", DoseForm: "Powder", Route: RouteOral},
	{Phrase: "oral film", DoseForm: "Film", Route: RouteOral},
	{Phrase: "injectable solution", DoseForm: "Solution", Route: RouteInjectable},
	{Phrase: "injectable suspension", DoseForm: "Suspension", Route: RouteInjectable},
	{Phrase: "prefilled syringe", DoseForm: "Injection", Route: RouteInjectable},
	{Phrase: "auto-injector", DoseForm: "Injection", Route: RouteInjectable},
	{Phrase: "injection", DoseForm: "Injection", Route: RouteInjectable},
	{Phrase: "topical cream", DoseForm: "Cream", Route: RouteTopical},
	{Phrase: "topical ointment", DoseForm: "Ointment", Route: RouteTopical},
	{Phrase: "topical gel", DoseForm: "Gel", Route: RouteTopical},
	{Phrase: "topical lotion", DoseForm: "Lotion", Route: RouteTopical},
	{Phrase: "topical solution", DoseForm: "Solution", Route: RouteTopical},
	{Phrase: "topical spray", DoseForm: "Spray", Route: RouteTopical},
	{Phrase: "ophthalmic solution", DoseForm: "Solution", Route: RouteOphthalmic},
	{Phrase: "ophthalmic suspension", DoseForm: "Suspension", Route: RouteOphthalmic},
	{Phrase: "ophthalmic ointment", DoseForm: "Ointment", Route: RouteOphthalmic},
	{Phrase: "otic solution", DoseForm: "Solution", Route: RouteOtic},
	{Phrase: "otic suspension", DoseForm: "Suspension", Route: RouteOtic},
	{Phrase: "nasal spray", DoseForm: "Spray", Route: RouteNasal},
	{Phrase: "metered dose inhaler", DoseForm: "Inhaler", Route: RouteInhalation},
	{Phrase: "dry powder inhaler", DoseForm: "Inhaler", Route: RouteInhalation},
	{Phrase: "inhalation solution", DoseForm: "Solution", Route: RouteInhalation},
	{Phrase: "inhalation powder", DoseForm: "Powder", Route: RouteInhalation},
	{Phrase: "transdermal system", DoseForm: "Patch", Route: RouteTransdermal},
	{Phrase: "transdermal patch", DoseForm: "Patch", Route: RouteTransdermal},
	{Phrase: "rectal suppository", DoseForm: "Suppository", Route: RouteRectal},
	{Phrase: "vaginal cream", DoseForm: "Cream", Route: RouteVaginal},
	{Phrase: "vaginal suppository", DoseForm: "Suppository", Route: RouteVaginal},
	{Phrase: "cream", DoseForm: "Cream", Route: RouteTopical},
	{Phrase: "ointment", DoseForm: "Ointment", Route: RouteTopical},
	{Phrase: "lotion", DoseForm: "Lotion", Route: RouteTopical},
	{Phrase: "inhaler", DoseForm: "Inhaler", Route: RouteInhalation},
	{Phrase: "patch", DoseForm: "Patch", Route: RouteTransdermal},
	{Phrase: "syrup", DoseForm: "Syrup", Route: RouteOral},
	{Phrase: "elixir", DoseForm: "Elixir", Route: RouteOral},
	{Phrase: "lozenge", DoseForm: "Lozenge", Route: RouteOral},
	{Phrase: "tablet", DoseForm: "Tablet"},
	{Phrase: "capsule", DoseForm: "Capsule"},
	{Phrase: "solution", DoseForm: "Solution"},
	{Phrase: "suspension", DoseForm: "Suspension"},
	{Phrase: "spray", DoseForm: "Spray"},
	{Phrase: "gel", DoseForm: "Gel"},
	{Phrase: "powder", DoseForm: "Powder"},
	{Phrase: "drops", DoseForm: "Drops"},
	{Phrase: "suppository", DoseForm: "Suppository"},
})

// doseFormWords holds every single word used in a dose-form phrase. The
// ingredient heuristic stops accumulating tokens at the first of them.
var doseFormWords = collectDoseFormWords(doseForms)

// unitKeywords are dropped by the ingredient heuristic, alone or fused to a number.
var unitKeywords = map[string]struct{}{
	"mg": {}, "mcg": {}, "μg": {}, "g": {}, "ml": {}, "l": {}, "%": {},
	"unt": {}, "unit": {}, "units": {}, "iu": {}, "meq": {}, "mmol": {},
	"hr": {}, "actuat": {}, "cell": {}, "cells": {},
}

// displayOverride customises how one ingredient is rendered in a display name.
type displayOverride struct {
	// PreferBrand replaces the ingredient by the label's brand name when one exists.
	PreferBrand bool
	// Rendering replaces the ingredient text verbatim when set.
	Rendering string
}

// displayOverrides is keyed by lower-cased ingredient.
var displayOverrides = map[string]displayOverride{
	"ibuprofen":     {PreferBrand: true},
	"dexamethasone": {Rendering: "dexAMETHasone"},
}

func compileDoseForms(entries []DoseFormEntry) []DoseFormEntry {
	for i := range entries {
		words := strings.Fields(entries[i].Phrase)
		for j, w := range words {
			words[j] = regexp.QuoteMeta(w)
		}
		entries[i].pattern = regexp.MustCompile(`(?i)(?:^|[^\p{L}\p{N}-])` + strings.Join(words, `\s+`) + `(?:$|[^\p{L}\p{N}-])`)
	}
	return entries
}

func collectDoseFormWords(entries []DoseFormEntry) map[string]struct{} {
	words := make(map[string]struct{})
	for _, e := range entries {
		for _, w := range strings.Fields(e.Phrase) {
			words[w] = struct{}{}
		}
	}
	return words
}

// isUnitKeyword reports whether token is a unit, including compound units
// such as "mg/ml" or "mcg/actuat".
func isUnitKeyword(token string) bool {
	token = strings.ToLower(token)
	if _, ok := unitKeywords[token]; ok {
		return true
	}
	parts := strings.Split(token, "/")
	if len(parts) < 2 {
		return false
	}
	for _, p := range parts {
		if _, ok := unitKeywords[p]; !ok {
			return false
		}
	}
	return true
}
