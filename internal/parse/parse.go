// Package parse implements the Parse Strategies component (C5): a dispatch
// cascade that tries CSV-by-extension, JSON, priority-ordered regex/key-value
// patterns, an adaptive key-value fallback, and finally a failure fallback,
// per spec.md §4.5.
//
// Dispatch-table structure (a tagged union of strategies tried in order) is
// grounded on the teacher's proxy.ServeHTTP, which dispatches on
// r.Method == http.MethodConnect / domain-set membership rather than a
// single monolithic branch; here the "methods" are CSV, JSON, regex, and the
// two fallbacks.
package parse

import (
	"fmt"

	"logpipe/internal/patterns"
	"logpipe/pkg/record"
)

// Parser names used across the dispatch cascade, per spec.md §4.5 / §9.
const (
	ParserCSVHeader       = "csv_header"
	ParserCSV             = "csv"
	ParserJSON            = "json"
	ParserAdaptiveDrain   = "adaptive_drain"
	ParserFallbackFailure = "fallback_failure"
	adaptiveConfidence    = 0.6
	fallbackFailureScore  = 0.1
)

// Dispatcher runs the parse cascade for incoming log entries.
type Dispatcher struct {
	registry *patterns.Registry
	csv      *csvStrategy
}

// New builds a Dispatcher backed by registry.
func New(registry *patterns.Registry) *Dispatcher {
	return &Dispatcher{registry: registry, csv: newCSVStrategy()}
}

// Parse runs the full dispatch cascade from spec.md §4.5 over one log entry,
// always returning a record — the cascade's failure fallback guarantees
// Parse itself never returns an error.
func (d *Dispatcher) Parse(entry record.LogEntry) *record.ParsedRecord {
	if hasCSVExtension(entry.SourceFile) {
		fields, names, isHeader := d.csv.parse(entry.SourceFile, entry.LineNumber, entry.Content)
		parserName := ParserCSV
		if isHeader {
			parserName = ParserCSVHeader
		}
		rec, err := record.New(entry, parserName, fields, 1.0)
		if err == nil {
			rec.DetectedHeaders = names
			return rec
		}
		return d.failureFallback(entry, err)
	}

	if fields, ok := tryJSON(entry.Content); ok {
		rec, err := record.New(entry, ParserJSON, fields, 1.0)
		if err == nil {
			return rec
		}
		return d.failureFallback(entry, err)
	}

	if fields, name, confidence, ok := dispatchRegex(d.registry, entry.Content); ok {
		rec, err := record.New(entry, name, fields, confidence)
		if err == nil {
			return rec
		}
		return d.failureFallback(entry, err)
	}

	return d.adaptiveFallback(entry)
}

// adaptiveFallback implements spec.md §4.5 step 4. Template/cluster/pattern
// metadata from the detector and template miners is attached by the
// orchestrator once it has a record in hand, not here.
func (d *Dispatcher) adaptiveFallback(entry record.LogEntry) (rec *record.ParsedRecord) {
	defer func() {
		if r := recover(); r != nil {
			rec = d.failureFallback(entry, fmt.Errorf("adaptive fallback panicked: %v", r))
		}
	}()

	fields, residue := extractKeyValuePairs(entry.Content)
	if residue != "" {
		fields["base_message"] = residue
	}

	built, err := record.New(entry, ParserAdaptiveDrain, fields, adaptiveConfidence)
	if err != nil {
		return d.failureFallback(entry, err)
	}
	return built
}

// failureFallback implements spec.md §4.5 step 5: an empty-data record that
// still satisfies ParsedRecord's own invariants, carrying the cascade's
// error in processing_errors.
func (d *Dispatcher) failureFallback(entry record.LogEntry, cause error) *record.ParsedRecord {
	rec, err := record.New(entry, ParserFallbackFailure, map[string]any{}, fallbackFailureScore)
	if err != nil {
		// entry itself violates ParsedRecord's invariants (empty content or
		// non-positive line number); record.NewLogEntry rejects such entries,
		// so this path is reached only by a LogEntry built without it.
		// Surface a minimal record rather than returning nil.
		rec = &record.ParsedRecord{
			SourceFile: entry.SourceFile,
			LineNumber: entry.LineNumber,
			ParserName: ParserFallbackFailure,
		}
	}
	rec.AddError(cause.Error())
	return rec
}

func hasCSVExtension(sourceFile string) bool {
	n := len(sourceFile)
	return n >= 4 && sourceFile[n-4:] == ".csv"
}
