// Package tsnorm implements the Timestamp Normalizer (C4): it attaches
// exactly one normalized instant per record, together with a confidence and
// a source tag, following a strict decision hierarchy.
//
// There is no teacher precedent for timestamp parsing — the proxy never
// touches wall-clock formats — so this package is grounded directly in
// spec.md §4.4 and stdlib time.Parse, one of the few places in this module
// that deliberately does not reach for a third-party library: the format
// table is fixed and small, and every example repo that does date/time work
// (e.g. moolen-spectre's log timestamps) also uses stdlib time.Parse rather
// than a parsing library, so stdlib is the idiomatic choice here too.
package tsnorm

import (
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"logpipe/internal/config"
	"logpipe/pkg/record"
)

// explicitFields are the parsed_data keys consulted at decision step 2, in
// spec.md §4.4 order; "epoch" is a [ADDED] supplement from original_source/
// carrying a bare Unix-epoch number rather than a formatted string.
var explicitFields = []string{
	"timestamp", "time", "date", "datetime",
	"created_at", "event_time", "log_time", "event_timestamp", "epoch",
}

// excludedFields are parsed_data keys that look like timestamp fields but are
// pipeline-internal bookkeeping, never a record's own event time.
var excludedFields = map[string]bool{
	"parsed_at": true, "processing_time": true, "parse_time": true,
}

// acceptedFormats is the exhaustive fixed format table from spec.md §4.4,
// tried in order for decision step 2. %f (fractional seconds) fields use
// Go's ".999999" trailing-zero-trimming layout token.
var acceptedFormats = []string{
	"2006-01-02T15:04:05",
	"2006-01-02T15:04:05.999999",
	"2006-01-02T15:04:05Z",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04:05.999999",
	"Jan 2 15:04:05",
	"Jan 02 15:04:05",
	"Jan 2 15:04:05.999999",
	"Jan 02 15:04:05.999999",
	"2006-01-02",
	"15:04:05",
	"15:04:05.999999",
}

// contentScanPattern is one entry of the ordered, specificity-descending
// regex family for decision step 4, per spec.md §4.4. colonMillis marks the
// "%Y%m%d-%H:%M:%S:%f" shape, which needs parseColonMillis instead of
// time.Parse.
type contentScanPattern struct {
	regex       *regexp.Regexp
	layout      string
	confidence  float64
	colonMillis bool
}

var contentScanFamily = []contentScanPattern{
	{regexp.MustCompile(`\d{4}-\d{2}-\d{2}T\d{2}:\d{2}:\d{2}(?:\.\d+)?(?:Z|[+\-]\d{2}:?\d{2})`), "2006-01-02T15:04:05Z07:00", 0.95, false},
	{regexp.MustCompile(`\d{4}-\d{2}-\d{2}T\d{2}:\d{2}:\d{2}`), "2006-01-02T15:04:05", 0.9, false},
	{regexp.MustCompile(`\d{4}-\d{2}-\d{2} \d{2}:\d{2}:\d{2}`), "2006-01-02 15:04:05", 0.85, false},
	{regexp.MustCompile(`[A-Z][a-z]{2} +\d{1,2} \d{2}:\d{2}:\d{2}`), "Jan 2 15:04:05", 0.8, false},
	{regexp.MustCompile(`\d{8}-\d{2}:\d{2}:\d{2}:\d+`), "", 0.75, true},
	{regexp.MustCompile(`\d{4}-\d{2}-\d{2}`), "2006-01-02", 0.6, false},
	{regexp.MustCompile(`\d{2}:\d{2}:\d{2}`), "15:04:05", 0.5, false},
}

// Normalize attaches a normalized Timestamp and TimestampInfo to rec,
// following the decision hierarchy of spec.md §4.4. It never fails: an
// unresolvable record gets TimestampInfo{Source: SourceNone}.
func Normalize(rec *record.ParsedRecord, cfg *config.Config) {
	if rec.Timestamp != nil {
		setExplicit(rec, rec.Timestamp.Format(time.RFC3339Nano), *rec.Timestamp, 0.9, record.SourceExplicit)
		return
	}

	if t, raw, ok := fromExplicitField(rec.ParsedData); ok {
		setExplicit(rec, raw, t, 0.85, record.SourceExplicit)
		return
	}

	if t, raw, ok := fromDetectedUnixTimestamp(rec.DetectedPatterns["unix_timestamp"]); ok {
		setExplicit(rec, raw, t, 0.7, record.SourceDetectedPatterns)
		return
	}

	if len(rec.ParsedData) == 0 || cfg.TimestampNormalization.AllowContentScan {
		if t, raw, confidence, ok := fromContentScan(rec.OriginalContent); ok {
			setExplicit(rec, raw, t, confidence, record.SourceContentScan)
			return
		}
	}

	rec.Timestamp = nil
	rec.TimestampInfo = record.TimestampInfo{Source: record.SourceNone, Confidence: 0.0}
}

func setExplicit(rec *record.ParsedRecord, raw string, t time.Time, confidence float64, source record.TimestampSource) {
	t = t.UTC()
	rec.Timestamp = &t
	rec.TimestampInfo = record.TimestampInfo{
		Value:           raw,
		ParsedTimestamp: &t,
		Confidence:      confidence,
		Source:          source,
	}
}

// fromExplicitField implements decision step 2.
func fromExplicitField(parsedData map[string]any) (time.Time, string, bool) {
	if parsedData == nil {
		return time.Time{}, "", false
	}

	// Index parsed_data keys case-insensitively, deterministically.
	byLower := make(map[string]string, len(parsedData))
	for k := range parsedData {
		byLower[strings.ToLower(k)] = k
	}

	// A separate "date" field plus a separate "time" field (e.g. Fortinet
	// KV's date=2025-07-06 time=00:30:24) describe one instant together but
	// neither alone, so combine them before falling through to the
	// single-field loop below.
	if t, raw, ok := fromDateAndTimeFields(parsedData, byLower); ok {
		return t, raw, true
	}

	for _, field := range explicitFields {
		if excludedFields[field] {
			continue
		}
		actualKey, present := byLower[field]
		if !present {
			continue
		}
		v, ok := parsedData[actualKey]
		if !ok {
			continue
		}
		s, ok := scalarString(v)
		if !ok || s == "" {
			continue
		}

		if field == "epoch" {
			if t, ok := parseUnixCandidate(s); ok && validRange(t) {
				return t, s, true
			}
			continue
		}

		if t, ok := parseFixedFormat(s); ok && validRange(t) {
			return t, s, true
		}
	}
	return time.Time{}, "", false
}

// fromDateAndTimeFields combines separate "date" and "time" parsed_data
// fields (e.g. Fortinet KV logs) into one instant, per spec.md §9's worked
// example. Requires the "date" field to look like a bare date (no time
// component) — an ISO datetime already in "date" is left to the normal
// single-field loop instead.
func fromDateAndTimeFields(parsedData map[string]any, byLower map[string]string) (time.Time, string, bool) {
	dateKey, hasDate := byLower["date"]
	timeKey, hasTime := byLower["time"]
	if !hasDate || !hasTime {
		return time.Time{}, "", false
	}
	dateStr, ok := scalarString(parsedData[dateKey])
	if !ok || dateStr == "" {
		return time.Time{}, "", false
	}
	timeStr, ok := scalarString(parsedData[timeKey])
	if !ok || timeStr == "" {
		return time.Time{}, "", false
	}
	if _, err := time.Parse("2006-01-02", strings.TrimSpace(dateStr)); err != nil {
		return time.Time{}, "", false
	}

	combined := strings.TrimSpace(dateStr) + " " + strings.TrimSpace(timeStr)
	if t, ok := parseFixedFormat(combined); ok && validRange(t) {
		return t, combined, true
	}
	return time.Time{}, "", false
}

func scalarString(v any) (string, bool) {
	switch val := v.(type) {
	case string:
		return val, true
	case int:
		return strconv.Itoa(val), true
	case int64:
		return strconv.FormatInt(val, 10), true
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64), true
	default:
		return "", false
	}
}

// parseFixedFormat tries every accepted format in spec.md §4.4 order,
// returning the first successful parse. Timezone-naive instants are
// assigned UTC.
func parseFixedFormat(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	for _, layout := range acceptedFormats {
		if t, err := time.Parse(layout, s); err == nil {
			return toUTC(t, layout), true
		}
	}
	if t, ok := parseColonMillis(s); ok {
		return t, true
	}
	return time.Time{}, false
}

// parseColonMillis handles "%Y%m%d-%H:%M:%S:%f" (e.g. "20250706-00:30:24:123"),
// a layout Go's time.Parse cannot express directly because the millisecond
// separator is ':' rather than '.'.
func parseColonMillis(s string) (time.Time, bool) {
	idx := strings.Index(s, "-")
	if idx < 0 {
		return time.Time{}, false
	}
	datePart, rest := s[:idx], s[idx+1:]
	fields := strings.Split(rest, ":")
	if len(fields) != 4 {
		return time.Time{}, false
	}
	composed := datePart + "-" + fields[0] + ":" + fields[1] + ":" + fields[2] + "." + fields[3]
	t, err := time.Parse("20060102-15:04:05.999", composed)
	if err != nil {
		return time.Time{}, false
	}
	return t.UTC(), true
}

// toUTC assigns UTC to a timezone-naive parse and fills in the current UTC
// year/month/day for layouts that omit the date (syslog month/day-only and
// time-only layouts), since a record otherwise carries no year information.
func toUTC(t time.Time, layout string) time.Time {
	t = t.UTC()
	if t.Year() == 0 {
		now := time.Now().UTC()
		t = time.Date(now.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), time.UTC)
	}
	if layout == "15:04:05" || layout == "15:04:05.999999" {
		now := time.Now().UTC()
		t = time.Date(now.Year(), now.Month(), now.Day(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), time.UTC)
	}
	return t
}

// fromDetectedUnixTimestamp implements decision step 3: a 10-digit candidate
// is seconds, 13+ digits is milliseconds; among several candidates the one
// with more digits wins, ties broken by the greater instant.
func fromDetectedUnixTimestamp(candidates []string) (time.Time, string, bool) {
	var bestTime time.Time
	var bestRaw string
	found := false
	for _, c := range candidates {
		t, ok := parseUnixCandidate(c)
		if !ok || !validRange(t) {
			continue
		}
		if !found {
			bestTime, bestRaw, found = t, c, true
			continue
		}
		if len(strings.TrimSpace(c)) > len(strings.TrimSpace(bestRaw)) ||
			(len(c) == len(bestRaw) && t.After(bestTime)) {
			bestTime, bestRaw = t, c
		}
	}
	return bestTime, bestRaw, found
}

// parseUnixCandidate interprets a numeric string as Unix seconds (10 digits)
// or milliseconds (13+ digits), per spec.md §4.4 step 3.
func parseUnixCandidate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return time.Time{}, false
	}
	switch {
	case len(s) >= 13:
		return time.UnixMilli(n).UTC(), true
	case len(s) == 10:
		return time.Unix(n, 0).UTC(), true
	default:
		return time.Time{}, false
	}
}

// fromContentScan implements decision step 4: scan original_content with the
// ordered, specificity-descending regex family, returning the
// highest-confidence valid match.
func fromContentScan(content string) (time.Time, string, float64, bool) {
	type candidate struct {
		t          time.Time
		raw        string
		confidence float64
	}
	var found []candidate

	for _, fam := range contentScanFamily {
		match := fam.regex.FindString(content)
		if match == "" {
			continue
		}
		var t time.Time
		var ok bool
		if fam.colonMillis {
			t, ok = parseColonMillis(match)
		} else {
			parsed, err := time.Parse(fam.layout, match)
			if err == nil {
				t, ok = toUTC(parsed, fam.layout), true
			}
		}
		if !ok || !validRange(t) {
			continue
		}
		found = append(found, candidate{t: t, raw: match, confidence: fam.confidence})
	}
	if len(found) == 0 {
		return time.Time{}, "", 0, false
	}
	sort.SliceStable(found, func(i, j int) bool { return found[i].confidence > found[j].confidence })
	best := found[0]
	return best.t, best.raw, best.confidence, true
}

// validRange rejects instants outside [1970-01-01, now+10y], per spec.md
// §4.4's validation rule.
func validRange(t time.Time) bool {
	min := time.Unix(0, 0).UTC()
	max := time.Now().UTC().AddDate(10, 0, 0)
	return !t.Before(min) && !t.After(max)
}
