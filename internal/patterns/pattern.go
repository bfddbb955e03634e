// Package patterns implements the Pattern Registry (C1): the single source
// of truth for every regular expression used by the pipeline, loaded from a
// categorized YAML catalog and served as compiled, prioritized lists.
//
// Adapted from the teacher's Anonymizer.compilePatterns (a flat
// confidence-annotated pattern table compiled once at construction, skipping
// and logging any pattern that fails to compile instead of aborting).
package patterns

import "regexp"

// Category is one of the six pattern categories from spec.md §3/§4.1.
type Category string

// Recognized pattern categories.
const (
	CategoryParsing       Category = "parsing"
	CategoryAnonymization Category = "anonymization"
	CategoryDetection     Category = "detection"
	CategoryCleaning      Category = "cleaning"
	CategorySecurity      Category = "security"
	CategoryTimestamp     Category = "timestamp"
)

// Enrichment describes a secondary regex applied to the string value of an
// already-extracted field, per spec.md's glossary entry for "Enrichment".
type Enrichment struct {
	SourceField string
	Pattern     string
	Regex       *regexp.Regexp
}

// Pattern pairs a compiled regex with its registry metadata.
type Pattern struct {
	Name        string
	Category    Category
	Regex       *regexp.Regexp
	Replacement string
	Priority    int // smaller = applied first within its category
	Flags       []string
	Description string
	Confidence  float64
	ParserType  string // e.g. "generic_kv" for key-value dispatch
	Enrichments []Enrichment

	order int // registration order, for stable tie-break within a category
}
