package parse

import (
	"strconv"

	"logpipe/internal/patterns"
)

// phaseANames is the priority candidate list tried before any other parsing
// pattern, per spec.md §4.5 step 3.
var phaseANames = []string{
	"fortinet_log_kv", "syslog_format", "syslog_bracket_format",
	"timestamp_bracket_format", "timestamp_level_format",
}

// phaseBBlacklist excludes known-bad patterns from the Phase B remainder.
var phaseBBlacklist = map[string]bool{
	"timestamp_pipe_format": true,
	"git_config_format":     true,
	"git_config_key_value":  true,
}

// regexCandidate is one successfully matched parsing pattern, carrying
// everything needed to pick the highest-confidence winner.
type regexCandidate struct {
	name       string
	confidence float64
	fields     map[string]any
}

// dispatchRegex implements spec.md §4.5 step 3: try Phase A candidates, then
// the Phase B remainder (registration order, minus the blacklist), keeping
// the candidate with the highest declared confidence among every pattern
// that actually matched.
func dispatchRegex(registry *patterns.Registry, content string) (map[string]any, string, float64, bool) {
	var best *regexCandidate

	consider := func(p patterns.Pattern) {
		fields, ok := matchPattern(p, content)
		if !ok {
			return
		}
		if best == nil || p.Confidence > best.confidence {
			best = &regexCandidate{name: p.Name, confidence: p.Confidence, fields: fields}
		}
	}

	seen := make(map[string]bool, len(phaseANames))
	for _, name := range phaseANames {
		seen[name] = true
		if p, ok := registry.Get(patterns.CategoryParsing, name); ok {
			consider(p)
		}
	}
	for _, p := range registry.ByCategory(patterns.CategoryParsing) {
		if seen[p.Name] || phaseBBlacklist[p.Name] {
			continue
		}
		consider(p)
	}

	if best == nil {
		return nil, "", 0, false
	}
	return best.fields, best.name, best.confidence, true
}

// matchPattern applies one parsing pattern to content, per spec.md §4.5:
// generic_kv patterns run the key-value extractor; others use named regex
// groups (or synthesize field_1..field_N from numbered groups), then apply
// any declared enrichments.
func matchPattern(p patterns.Pattern, content string) (map[string]any, bool) {
	if p.ParserType == "generic_kv" {
		if !p.Regex.MatchString(content) {
			return nil, false
		}
		fields, residue := extractKeyValuePairs(content)
		if residue != "" {
			fields["base_message"] = residue
		}
		return fields, true
	}

	match := p.Regex.FindStringSubmatch(content)
	if match == nil {
		return nil, false
	}

	fields := make(map[string]any)
	names := p.Regex.SubexpNames()
	hasNamed := false
	for i, name := range names {
		if i == 0 || name == "" {
			continue
		}
		hasNamed = true
		fields[name] = coerceValue(match[i])
	}
	if !hasNamed {
		for i := 1; i < len(match); i++ {
			fields[fieldName(i)] = coerceValue(match[i])
		}
	}

	applyEnrichments(p, fields)
	return fields, true
}

// applyEnrichments implements spec.md §4.5's enrichment step: the source
// field's string value is re-matched by the enrichment regex, and any
// same-named group overwrites the source field.
func applyEnrichments(p patterns.Pattern, fields map[string]any) {
	for _, enrichment := range p.Enrichments {
		raw, ok := fields[enrichment.SourceField]
		rawStr, isStr := raw.(string)
		if !ok || !isStr {
			continue
		}
		match := enrichment.Regex.FindStringSubmatch(rawStr)
		if match == nil {
			continue
		}
		names := enrichment.Regex.SubexpNames()
		for i, name := range names {
			if i == 0 || name == "" {
				continue
			}
			fields[name] = coerceValue(match[i])
		}
	}
}

func fieldName(i int) string {
	return "field_" + strconv.Itoa(i)
}
