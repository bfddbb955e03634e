// Package anonymize implements the Anonymization Engine (C2): it produces
// anonymized_message from raw content, enforces the always_anonymize field
// set, and substitutes sensitive values inside parsed fields.
//
// Adapted from the teacher's Anonymizer.AnonymizeText/AnonymizeJSON/walkValue
// (internal/anonymizer), generalized from a fixed PII-type pattern table and
// Ollama-backed low-confidence fallback to the registry-driven, catalog-based
// pattern categories of the pipeline. The Ollama/session/deanonymization
// machinery has no home in a one-way log pipeline and is not carried over.
package anonymize

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"logpipe/internal/config"
	"logpipe/internal/patterns"
	"logpipe/pkg/record"
)

// Engine applies the always_anonymize projection and the anonymization
// pattern category to text and parsed records.
//
// An Engine is stateless aside from its configured salt table and compiled
// field regexes, so it's safe to share across goroutines once constructed,
// same as the teacher's Anonymizer.
type Engine struct {
	registry *patterns.Registry
	cfg      *config.Config

	fieldNames []string                  // always_anonymize field names, sorted for determinism
	fieldRegex map[string]*regexp.Regexp // field name -> F="..." matcher
}

// New builds an Engine from the pattern registry and configuration.
func New(registry *patterns.Registry, cfg *config.Config) *Engine {
	set := cfg.AlwaysAnonymizeSet()
	names := make([]string, 0, len(set))
	for f := range set {
		names = append(names, f)
	}
	sort.Strings(names)

	fieldRegex := make(map[string]*regexp.Regexp, len(names))
	for _, f := range names {
		fieldRegex[f] = regexp.MustCompile(`(?i)\b(` + regexp.QuoteMeta(f) + `)="([^"]*)"`)
	}

	return &Engine{
		registry:   registry,
		cfg:        cfg,
		fieldNames: names,
		fieldRegex: fieldRegex,
	}
}

// AnonymizeText applies the full text-anonymization law from spec.md §4.2:
//  1. the always_anonymize field-name projection (F="…" → <F_UPPER>)
//  2. all anonymization-category patterns, in priority order
//
// Regex timeouts inside the pattern-category pass leave their segment
// unchanged and are returned as warnings; the function itself never fails.
func (e *Engine) AnonymizeText(text string) (string, []string) {
	if text == "" {
		return text, nil
	}

	projected := e.applyAlwaysAnonymizeProjection(text)

	out, warnings, err := e.registry.ApplyCategory(projected, patterns.CategoryAnonymization)
	if err != nil {
		// CategoryAnonymization is always supported; a non-nil error here
		// would indicate a programming mistake, not a data problem.
		return projected, append(warnings, err.Error())
	}
	return out, warnings
}

// applyAlwaysAnonymizeProjection replaces every F="…" occurrence (case
// insensitive on the key) for F in the always_anonymize set with <F_UPPER>.
func (e *Engine) applyAlwaysAnonymizeProjection(text string) string {
	result := text
	for _, f := range e.fieldNames {
		re := e.fieldRegex[f]
		placeholder := "<" + strings.ToUpper(f) + ">"
		result = re.ReplaceAllStringFunc(result, func(match string) string {
			groups := re.FindStringSubmatch(match)
			if len(groups) < 2 {
				return match
			}
			return groups[1] + "=\"" + placeholder + "\""
		})
	}
	return result
}

// AnonymizeRecord applies the record-level anonymization law from spec.md
// §4.2: it sets AnonymizedMessage from OriginalContent, replaces
// always_anonymize fields in ParsedData with their configured placeholder,
// and text-anonymizes every other string value, recursing into nested maps
// and sequences. Returns any warnings accumulated along the way.
func (e *Engine) AnonymizeRecord(rec *record.ParsedRecord) []string {
	msg, warnings := e.AnonymizeText(rec.OriginalContent)
	rec.AnonymizedMessage = msg

	always := e.cfg.AlwaysAnonymizeSet()
	if rec.ParsedData != nil {
		walked, w := e.walkMap(rec.ParsedData, always)
		warnings = append(warnings, w...)
		rec.ParsedData = walked
	}
	return warnings
}

// walkMap anonymizes one level of a parsed_data mapping: keys in the
// always_anonymize set are replaced via the configured method (hash / mask /
// replace); every other string value is text-anonymized; nested maps and
// sequences are recursed into.
func (e *Engine) walkMap(m map[string]any, always map[string]bool) (map[string]any, []string) {
	var warnings []string
	for k, v := range m {
		if always[strings.ToLower(k)] {
			m[k] = e.placeholderFor(k, v)
			continue
		}
		out, w := e.walkValue(v)
		warnings = append(warnings, w...)
		m[k] = out
	}
	return m, warnings
}

// walkValue recursively anonymizes string leaves in a parsed-data value,
// per spec.md §4.2 step 4.
func (e *Engine) walkValue(v any) (any, []string) {
	switch val := v.(type) {
	case string:
		return e.AnonymizeText(val)
	case map[string]any:
		return e.walkMap(val, e.cfg.AlwaysAnonymizeSet())
	case []any:
		var warnings []string
		for i, item := range val {
			out, w := e.walkValue(item)
			val[i] = out
			warnings = append(warnings, w...)
		}
		return val, warnings
	default:
		return v, nil
	}
}

// placeholderFor applies the configured method (hash / mask / replace) for
// an always_anonymize field, per spec.md §4.2/§6's method table.
func (e *Engine) placeholderFor(field string, v any) any {
	s, ok := v.(string)
	if !ok {
		return e.cfg.Anonymization.MaskToken
	}

	methodName, method := e.cfg.MethodForField(field)
	switch methodName {
	case "hash":
		return hashValue(s, method.Salt)
	case "replace":
		if method.Pattern != "" {
			return method.Pattern
		}
		return "<" + strings.ToUpper(field) + ">"
	default: // "mask"
		return e.cfg.Anonymization.MaskToken
	}
}

// ContainsAlwaysAnonymizeLeak reports whether text still contains any
// always_anonymize field in plaintext F="…" form, per spec.md §4.7's
// template re-coherence check. A field whose captured value already matches
// the placeholder applyAlwaysAnonymizeProjection would have produced
// (<F_UPPER>) is not a leak — that's the field having been anonymized
// correctly, per spec.md §8's "unless the literal value was already one of
// the configured placeholders" carve-out.
func (e *Engine) ContainsAlwaysAnonymizeLeak(text string) bool {
	for _, f := range e.fieldNames {
		placeholder := "<" + strings.ToUpper(f) + ">"
		for _, m := range e.fieldRegex[f].FindAllStringSubmatch(text, -1) {
			if len(m) < 3 {
				continue
			}
			if !strings.EqualFold(m[2], placeholder) {
				return true
			}
		}
	}
	return false
}

// hashTokenLength is the number of hex characters kept from the salted
// SHA-256 digest, matching the teacher's 8-hex PII token convention scaled up
// for lower collision risk across a whole dataset's field cardinality.
const hashTokenLength = 16

// hashValue returns a deterministic salted-hash placeholder for s, truncated
// to hashTokenLength hex characters so always_anonymize fields are
// substituted consistently across records without round-tripping the
// original value.
func hashValue(s, salt string) string {
	sum := sha256.Sum256([]byte(salt + s))
	return fmt.Sprintf("<HASH_%s>", hex.EncodeToString(sum[:])[:hashTokenLength])
}
