package record

import (
	"time"

	"github.com/google/uuid"
)

// TimestampSource is the provenance tag on a normalized timestamp.
type TimestampSource string

// Recognized timestamp sources. internal/tsnorm assigns explicit,
// detected_patterns, content_scan or none; pattern_inference is defined but
// not assigned by it.
const (
	SourceExplicit         TimestampSource = "explicit"
	SourceDetectedPatterns TimestampSource = "detected_patterns"
	SourcePatternInference TimestampSource = "pattern_inference"
	SourceContentScan      TimestampSource = "content_scan"
	SourceNone             TimestampSource = "none"
)

// TimestampInfo records how a record's normalized timestamp was derived.
type TimestampInfo struct {
	Value           string          `json:"value"`
	ParsedTimestamp *time.Time      `json:"parsed_timestamp,omitempty"`
	Confidence      float64         `json:"confidence"`
	Source          TimestampSource `json:"source"`
}

// ClusterRef is the per-record output of one template miner instance.
type ClusterRef struct {
	ClusterID   int    `json:"cluster_id"`
	Template    string `json:"template"`
	ClusterSize int    `json:"cluster_size"`
	Error       string `json:"error,omitempty"`
}

// ParsedRecord is the unified artifact produced by the core for one input line.
//
// Identity is the (SourceFile, LineNumber) pair; ID is a separate surrogate
// key minted at construction so serialization is stable even if identity
// fields are reused across runs (see the github.com/google/uuid row of
// SPEC_FULL.md's DOMAIN STACK table).
type ParsedRecord struct {
	ID         string
	SourceFile string
	LineNumber int

	OriginalContent   string
	AnonymizedMessage string
	ParsedData        map[string]any

	ParserName       string
	ConfidenceScore  float64
	DetectedHeaders  []string
	DetectedPatterns map[string][]string

	Timestamp     *time.Time
	TimestampInfo TimestampInfo

	Drain3Original   ClusterRef
	Drain3Anonymized ClusterRef

	ProcessingErrors   []string
	ProcessingWarnings []string
}

// New builds a ParsedRecord from a LogEntry and a parser's output, validating
// the invariants from spec.md §3 (non-empty original content, positive line
// number, confidence in [0,1]).
func New(entry LogEntry, parserName string, parsedData map[string]any, confidence float64) (*ParsedRecord, error) {
	if entry.Content == "" {
		return nil, ErrEmptyContent
	}
	if entry.LineNumber < 1 {
		return nil, ErrInvalidLineNumber
	}
	if confidence < 0 {
		confidence = 0
	}
	if confidence > 1 {
		confidence = 1
	}
	if parsedData == nil {
		parsedData = make(map[string]any)
	}
	return &ParsedRecord{
		ID:               uuid.NewString(),
		SourceFile:       entry.SourceFile,
		LineNumber:       entry.LineNumber,
		OriginalContent:  entry.Content,
		ParsedData:       parsedData,
		ParserName:       parserName,
		ConfidenceScore:  confidence,
		DetectedPatterns: make(map[string][]string),
		TimestampInfo:    TimestampInfo{Source: SourceNone},
	}, nil
}

// AddError appends an error to the record's diagnostics. Never raises.
func (r *ParsedRecord) AddError(msg string) {
	r.ProcessingErrors = append(r.ProcessingErrors, msg)
}

// AddWarning appends a warning to the record's diagnostics. Never raises.
func (r *ParsedRecord) AddWarning(msg string) {
	r.ProcessingWarnings = append(r.ProcessingWarnings, msg)
}

// Success reports whether the record was produced without a hard parse
// failure. A record with only warnings is still a success.
func (r *ParsedRecord) Success() bool {
	return r.ParserName != "fallback_failure"
}

// Serialize renders the record to the canonical map described in spec.md §6,
// including the legacy drain3 mirror field (DESIGN.md Open Question 1).
// parsed_data always carries drain3_original/drain3_anonymized, synced from
// the typed fields so the two representations can never drift.
func (r *ParsedRecord) Serialize() map[string]any {
	var ts any
	if r.Timestamp != nil {
		ts = r.Timestamp.UTC().Format(time.RFC3339Nano)
	}

	parsedData := make(map[string]any, len(r.ParsedData)+2)
	for k, v := range r.ParsedData {
		parsedData[k] = v
	}
	parsedData["drain3_original"] = r.Drain3Original
	parsedData["drain3_anonymized"] = r.Drain3Anonymized

	return map[string]any{
		"id":                        r.ID,
		"source_file":               r.SourceFile,
		"line_number":               r.LineNumber,
		"parser_name":               r.ParserName,
		"timestamp":                 ts,
		"original_content":          r.OriginalContent,
		"anonymized_message":        r.AnonymizedMessage,
		"parsed_data":               parsedData,
		"drain3":                    r.Drain3Original, // legacy mirror, see DESIGN.md
		"parsing.data":              parsedData,
		"parsing.timestamp_info":    r.TimestampInfo,
		"parsing.detected_patterns": r.DetectedPatterns,
		"success":                   r.Success(),
		"confidence_score":          r.ConfidenceScore,
		"processing_errors":         r.ProcessingErrors,
		"processing_warnings":       r.ProcessingWarnings,
	}
}
