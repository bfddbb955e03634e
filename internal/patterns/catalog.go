package patterns

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// rawEnrichment is the YAML shape of one enrichment entry.
type rawEnrichment struct {
	SourceField string `yaml:"source_field"`
	Pattern     string `yaml:"pattern"`
}

// rawPattern is the YAML shape of one catalog entry, matching the
// per-pattern attributes spec.md §6 names: pattern, replacement?, priority?,
// flags?, description?, confidence?, parser_type?, enrichment?.
type rawPattern struct {
	Pattern     string          `yaml:"pattern"`
	Replacement string          `yaml:"replacement"`
	Priority    int             `yaml:"priority"`
	Flags       []string        `yaml:"flags"`
	Description string          `yaml:"description"`
	Confidence  float64         `yaml:"confidence"`
	ParserType  string          `yaml:"parser_type"`
	Enrichment  []rawEnrichment `yaml:"enrichment"`
}

// catalogDocument is the top-level YAML shape from spec.md §6:
// anonymization_patterns, parsing_patterns, detection_patterns,
// cleaning_patterns, security_patterns.
type catalogDocument struct {
	AnonymizationPatterns map[string]rawPattern `yaml:"anonymization_patterns"`
	ParsingPatterns       map[string]rawPattern `yaml:"parsing_patterns"`
	DetectionPatterns     map[string]rawPattern `yaml:"detection_patterns"`
	CleaningPatterns      map[string]rawPattern `yaml:"cleaning_patterns"`
	SecurityPatterns      map[string]rawPattern `yaml:"security_patterns"`
}

// loadCatalogFile reads and parses the YAML catalog at path. A missing file
// is not an error — the registry falls back to its built-in default set.
func loadCatalogFile(path string) (*catalogDocument, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path) //nolint:gosec // G703: controlled config path
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("patterns: read catalog %q: %w", path, err)
	}
	var doc catalogDocument
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("patterns: parse catalog %q: %w", path, err)
	}
	return &doc, nil
}

// normalizePatternString strips a possible r'…'/r"…" wrapper left over from
// a YAML author copying a Python raw-string literal verbatim.
func normalizePatternString(s string) string {
	if len(s) >= 3 {
		if (strings.HasPrefix(s, "r'") && strings.HasSuffix(s, "'")) ||
			(strings.HasPrefix(s, `r"`) && strings.HasSuffix(s, `"`)) {
			return s[2 : len(s)-1]
		}
	}
	return s
}

// flagsToPrefix converts a symbolic flag list to a Go regexp inline-flag
// prefix, e.g. ["IGNORECASE", "MULTILINE"] -> "(?im)".
func flagsToPrefix(flags []string) string {
	var b strings.Builder
	for _, f := range flags {
		switch strings.ToUpper(strings.TrimSpace(f)) {
		case "IGNORECASE":
			b.WriteByte('i')
		case "MULTILINE":
			b.WriteByte('m')
		case "DOTALL":
			b.WriteByte('s')
		}
	}
	if b.Len() == 0 {
		return ""
	}
	return "(?" + b.String() + ")"
}

// compileRaw compiles one catalog entry into a Pattern. A malformed pattern
// returns an error describing the failure; callers must skip it and log a
// warning rather than aborting startup, per spec.md §4.1.
func compileRaw(name string, category Category, rp rawPattern) (Pattern, error) {
	exprSrc := normalizePatternString(rp.Pattern)
	expr := flagsToPrefix(rp.Flags) + exprSrc
	re, err := regexp.Compile(expr)
	if err != nil {
		return Pattern{}, fmt.Errorf("compile pattern %q: %w", name, err)
	}

	p := Pattern{
		Name:        name,
		Category:    category,
		Regex:       re,
		Replacement: rp.Replacement,
		Priority:    rp.Priority,
		Flags:       rp.Flags,
		Description: rp.Description,
		Confidence:  rp.Confidence,
		ParserType:  rp.ParserType,
	}
	for _, e := range rp.Enrichment {
		eExpr := normalizePatternString(e.Pattern)
		eRe, eErr := regexp.Compile(eExpr)
		if eErr != nil {
			continue // malformed enrichment is skipped, not fatal
		}
		p.Enrichments = append(p.Enrichments, Enrichment{
			SourceField: e.SourceField,
			Pattern:     e.Pattern,
			Regex:       eRe,
		})
	}
	return p, nil
}
