package patterns

import (
	"fmt"
	"sort"
	"time"

	"gopkg.in/yaml.v3"
)

// ErrUnsupportedCategory is returned by ApplyCategory for categories that do
// not carry a substitution semantic (parsing, detection, security, timestamp),
// per spec.md §4.1.
var ErrUnsupportedCategory = fmt.Errorf("patterns: category does not support apply")

// defaultTimeout bounds every pattern application, per spec.md §5.
const defaultTimeout = 1000 * time.Millisecond

// Registry is the read-only, shareable pattern store (C1). It is safe to
// share a *Registry by reference across goroutines once constructed.
type Registry struct {
	byName     map[string]Pattern
	byCategory map[Category][]Pattern
	warnings   []string
	timeout    time.Duration
	nextOrder  int
}

// Option configures registry construction.
type Option func(*Registry)

// WithTimeout overrides the per-call apply timeout (default 1000ms).
func WithTimeout(d time.Duration) Option {
	return func(r *Registry) { r.timeout = d }
}

// New loads the pattern catalog: built-in defaults first, then the YAML file
// at path overlaid on top (entries with the same category+name are replaced;
// others are added). A missing or empty path is not an error — defaults
// alone are used. A malformed individual pattern is skipped with a recorded
// warning, never aborting startup; a malformed catalog *document* (invalid
// YAML) is surfaced as an error per spec.md §7's ConfigError.
func New(path string, opts ...Option) (*Registry, error) {
	r := &Registry{
		byName:     make(map[string]Pattern),
		byCategory: make(map[Category][]Pattern),
		timeout:    defaultTimeout,
	}
	for _, o := range opts {
		o(r)
	}

	var defaultDoc catalogDocument
	if err := yaml.Unmarshal([]byte(defaultCatalogYAML), &defaultDoc); err != nil {
		return nil, fmt.Errorf("patterns: built-in catalog is malformed: %w", err)
	}
	r.loadDocument(&defaultDoc)

	fileDoc, err := loadCatalogFile(path)
	if err != nil {
		return nil, err
	}
	if fileDoc != nil {
		r.loadDocument(fileDoc)
	}

	r.sortCategories()
	return r, nil
}

func (r *Registry) loadDocument(doc *catalogDocument) {
	r.loadSection(doc.AnonymizationPatterns, CategoryAnonymization)
	r.loadSection(doc.ParsingPatterns, CategoryParsing)
	r.loadSection(doc.DetectionPatterns, CategoryDetection)
	r.loadSection(doc.CleaningPatterns, CategoryCleaning)
	r.loadSection(doc.SecurityPatterns, CategorySecurity)
}

func (r *Registry) loadSection(section map[string]rawPattern, category Category) {
	// Stable iteration so "registration order" (the tie-break in §4.1) is
	// deterministic across runs for a fixed catalog file.
	names := make([]string, 0, len(section))
	for name := range section {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		p, err := compileRaw(name, category, section[name])
		if err != nil {
			r.warnings = append(r.warnings, fmt.Sprintf("pattern %q skipped: %v", name, err))
			continue
		}
		key := string(category) + ":" + name
		if _, exists := r.byName[key]; exists {
			r.removeFromCategory(category, name)
		}
		p.order = r.nextOrder
		r.nextOrder++
		r.byName[key] = p
	}
}

func (r *Registry) removeFromCategory(category Category, name string) {
	list := r.byCategory[category]
	for i, p := range list {
		if p.Name == name {
			r.byCategory[category] = append(list[:i], list[i+1:]...)
			return
		}
	}
}

func (r *Registry) sortCategories() {
	r.byCategory = make(map[Category][]Pattern)
	for _, p := range r.byName {
		r.byCategory[p.Category] = append(r.byCategory[p.Category], p)
	}
	for cat, list := range r.byCategory {
		sort.SliceStable(list, func(i, j int) bool {
			if list[i].Priority != list[j].Priority {
				return list[i].Priority < list[j].Priority
			}
			return list[i].order < list[j].order
		})
		r.byCategory[cat] = list
	}
}

// Warnings returns the startup warnings recorded for skipped malformed
// patterns, per spec.md §4.1.
func (r *Registry) Warnings() []string { return r.warnings }

// Get returns the compiled pattern registered under name in category, or
// false if absent.
func (r *Registry) Get(category Category, name string) (Pattern, bool) {
	p, ok := r.byName[string(category)+":"+name]
	return p, ok
}

// ByCategory returns all patterns in category, sorted ascending by priority
// then registration order.
func (r *Registry) ByCategory(category Category) []Pattern {
	return r.byCategory[category]
}

// ApplyCategory applies every pattern in category to text in priority order,
// substituting each Replacement. Only anonymization and cleaning support
// substitution; other categories return ErrUnsupportedCategory.
//
// Each individual pattern application is bounded by the registry's timeout;
// on timeout that pattern's input is left unchanged and a warning string is
// returned alongside (never a hard failure), per spec.md §4.1/§5.
func (r *Registry) ApplyCategory(text string, category Category) (result string, warnings []string, err error) {
	if category != CategoryAnonymization && category != CategoryCleaning {
		return text, nil, ErrUnsupportedCategory
	}

	result = text
	for _, p := range r.ByCategory(category) {
		out, timedOut := applyWithTimeout(p.Regex, result, p.Replacement, r.timeout)
		if timedOut {
			warnings = append(warnings, fmt.Sprintf("pattern %q timed out, input left unchanged", p.Name))
			continue
		}
		result = out
	}
	return result, warnings, nil
}

// applyWithTimeout runs a single ReplaceAllString bounded by timeout. Regex
// matching itself cannot be preempted mid-call in Go, so the bound is
// enforced by racing the call against a timer on a dedicated goroutine: slow
// patterns still run to completion in the background, but the caller is
// never blocked past timeout and the pre-timeout input is returned.
func applyWithTimeout(re interface{ ReplaceAllString(string, string) string }, text, replacement string, timeout time.Duration) (string, bool) {
	done := make(chan string, 1)
	go func() {
		done <- re.ReplaceAllString(text, replacement)
	}()
	select {
	case out := <-done:
		return out, false
	case <-time.After(timeout):
		return text, true
	}
}
