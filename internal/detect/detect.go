// Package detect implements Pattern Detection (C3): it extracts semantic
// entities from text without depending on the parse result, orchestrating
// iteration over the detection-category patterns served by C1 and
// deduplicating matches in order of first appearance.
//
// Grounded on the teacher's confidence-annotated pattern table in
// internal/anonymizer (a flat regex scan collecting typed matches), adapted
// here to draw its regexes from the shared pattern registry instead of a
// hardcoded table, and to report matches rather than replace them.
package detect

import (
	"net/url"
	"strconv"
	"strings"

	"golang.org/x/net/idna"

	"logpipe/internal/patterns"
)

// maxContentLength is the detection content-length guard from spec.md §5:
// detection runs on at most the first truncatedLength bytes of content that
// exceeds this threshold.
const (
	maxContentLength = 20 * 1024
	truncatedLength  = 10 * 1024
)

// Detector orchestrates pattern-detection category iteration over the
// registry. Stateless aside from the registry reference; safe to share.
type Detector struct {
	registry *patterns.Registry
}

// New builds a Detector backed by registry.
func New(registry *patterns.Registry) *Detector {
	return &Detector{registry: registry}
}

// Detect runs every detection-category pattern against text and returns a
// mapping of pattern name to an ordered, deduplicated sequence of matches
// (first occurrence order), per spec.md §4.3.
//
// Content longer than maxContentLength is truncated to truncatedLength
// before scanning, per spec.md §5's resource bound.
func (d *Detector) Detect(text string) map[string][]string {
	if len(text) > maxContentLength {
		text = text[:truncatedLength]
	}

	out := make(map[string][]string)
	for _, p := range d.registry.ByCategory(patterns.CategoryDetection) {
		matches := p.Regex.FindAllString(text, -1)
		if len(matches) == 0 {
			continue
		}
		switch p.Name {
		case "hostname":
			matches = normalizeHostnames(matches)
		case "url":
			matches = normalizeURLHosts(matches)
		}
		matches = dedupePreserveOrder(matches)
		if p.Name == "severity_level" {
			matches = normalizeSeverities(matches)
		}
		out[p.Name] = matches
	}
	return out
}

// normalizeHostnames runs every matched hostname through the IDNA lookup
// profile (RFC 5891), folding case and Unicode form so "Example.COM" and
// "example.com" dedupe to the same value. A hostname that fails IDNA validation
// (not actually a valid DNS name) is passed through unchanged rather than
// dropped, since the detection-category regex already decided it matched.
func normalizeHostnames(matches []string) []string {
	out := make([]string, len(matches))
	for i, m := range matches {
		if ascii, err := idna.Lookup.ToASCII(m); err == nil {
			out[i] = ascii
		} else {
			out[i] = m
		}
	}
	return out
}

// normalizeURLHosts applies the same IDNA normalization to the host
// component of each matched URL, rewriting the URL in place when the host
// changes form and leaving it untouched when it doesn't (or can't be
// parsed).
func normalizeURLHosts(matches []string) []string {
	out := make([]string, len(matches))
	for i, m := range matches {
		out[i] = normalizeURLHost(m)
	}
	return out
}

func normalizeURLHost(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return raw
	}
	host := u.Hostname()
	ascii, err := idna.Lookup.ToASCII(host)
	if err != nil || ascii == host {
		return raw
	}
	if port := u.Port(); port != "" {
		u.Host = ascii + ":" + port
	} else {
		u.Host = ascii
	}
	return u.String()
}

// syslogSeverity maps the syslog severity keywords (RFC 5424 §6.2.1) to their
// numeric level, per original_source/pattern_detection_service.py's severity
// table.
var syslogSeverity = map[string]int{
	"emerg": 0, "emergency": 0,
	"alert": 1,
	"crit":  2, "critical": 2,
	"err": 3, "error": 3,
	"warn": 4, "warning": 4,
	"notice": 5,
	"info": 6, "informational": 6,
	"debug": 7,
}

// normalizeSeverities rewrites each matched severity keyword as
// "<keyword>:<level>", appending the RFC 5424 numeric severity level so
// downstream consumers can sort/filter without re-parsing the keyword.
func normalizeSeverities(matches []string) []string {
	out := make([]string, len(matches))
	for i, m := range matches {
		level, ok := syslogSeverity[strings.ToLower(m)]
		if !ok {
			out[i] = m
			continue
		}
		out[i] = m + ":" + strconv.Itoa(level)
	}
	return out
}

// dedupePreserveOrder removes repeated values, keeping the first occurrence
// of each.
func dedupePreserveOrder(values []string) []string {
	seen := make(map[string]bool, len(values))
	result := make([]string, 0, len(values))
	for _, v := range values {
		if seen[v] {
			continue
		}
		seen[v] = true
		result = append(result, v)
	}
	return result
}
