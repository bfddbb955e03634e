// Package record defines the data model shared between the pipeline core and
// its external collaborators (file readers, writers, report generators).
//
// LogEntry is the input unit produced by a reader; ParsedRecord is the output
// unit produced by the pipeline. Both are immutable by convention after
// construction: callers should treat every field as read-only once a value
// has been built by NewLogEntry / New.
package record

import "errors"

// ErrEmptyContent is returned by NewLogEntry when content is empty.
var ErrEmptyContent = errors.New("record: content must not be empty")

// ErrInvalidLineNumber is returned by NewLogEntry when line is not positive.
var ErrInvalidLineNumber = errors.New("record: line_number must be >= 1")

// LogEntry is one line of input handed to the pipeline by a reader.
// Immutable after construction.
type LogEntry struct {
	Content    string
	SourceFile string
	LineNumber int
	Timestamp  *int64 // unix seconds, nil if the reader found none
	RawData    map[string]any
}

// NewLogEntry validates and constructs a LogEntry.
// content must be non-empty and line must be >= 1.
func NewLogEntry(content, sourceFile string, line int) (LogEntry, error) {
	if content == "" {
		return LogEntry{}, ErrEmptyContent
	}
	if line < 1 {
		return LogEntry{}, ErrInvalidLineNumber
	}
	return LogEntry{
		Content:    content,
		SourceFile: sourceFile,
		LineNumber: line,
	}, nil
}

// WithTimestamp returns a copy of e with an explicit timestamp attached.
func (e LogEntry) WithTimestamp(unixSeconds int64) LogEntry {
	e.Timestamp = &unixSeconds
	return e
}

// WithRawData returns a copy of e with raw_data attached.
func (e LogEntry) WithRawData(raw map[string]any) LogEntry {
	e.RawData = raw
	return e
}
