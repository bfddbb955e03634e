package pipeline

import (
	"path/filepath"
	"strings"

	"logpipe/pkg/record"
)

// dynamicBatchSize implements spec.md §4.7 step 2's sizing table, keyed by
// the total record count across the whole dataset. A nonzero override (from
// config, already clamped to [1000, 20000] at load time) wins outright.
func dynamicBatchSize(total, override int) int {
	if override > 0 {
		return override
	}
	switch {
	case total <= 5000:
		return 4000
	case total <= 20000:
		return 6000
	case total <= 50000:
		return 8000
	case total <= 100000:
		return 12000
	default:
		return 15000
	}
}

// fileSignature derives the file-similarity signature from spec.md §4.7 step
// 1: the file extension plus the first 20 normalized characters of the
// file's first record. "Normalized" collapses runs of whitespace to single
// spaces so that incidental formatting differences between near-identical
// rotated log files don't produce distinct signatures.
func fileSignature(sourceFile, firstContent string) string {
	ext := strings.ToLower(filepath.Ext(sourceFile))
	return ext + "|" + normalizedPrefix(firstContent, 20)
}

func normalizedPrefix(s string, n int) string {
	collapsed := strings.Join(strings.Fields(s), " ")
	r := []rune(collapsed)
	if len(r) > n {
		r = r[:n]
	}
	return string(r)
}

// groupBySignature implements spec.md §4.7 step 1: records are grouped by
// source_file, then that group is assigned a signature derived from its
// first-encountered record. Groups sharing a signature (e.g. a set of
// rotated log files with identical header shape) are merged into one
// mining group, so the dual miners see cross-file structural similarity
// within a single batch sequence. Original stream order is preserved both
// within each group and in the order groups are first encountered.
func groupBySignature(records []*record.ParsedRecord) [][]*record.ParsedRecord {
	fileSig := make(map[string]string)
	var order []string
	groups := make(map[string][]*record.ParsedRecord)

	for _, rec := range records {
		sig, known := fileSig[rec.SourceFile]
		if !known {
			sig = fileSignature(rec.SourceFile, rec.OriginalContent)
			fileSig[rec.SourceFile] = sig
		}
		if _, exists := groups[sig]; !exists {
			order = append(order, sig)
		}
		groups[sig] = append(groups[sig], rec)
	}

	out := make([][]*record.ParsedRecord, 0, len(order))
	for _, sig := range order {
		out = append(out, groups[sig])
	}
	return out
}

// partition splits group into contiguous batches of at most size records
// each, preserving order.
func partition(group []*record.ParsedRecord, size int) [][]*record.ParsedRecord {
	if size <= 0 {
		size = len(group)
	}
	var out [][]*record.ParsedRecord
	for start := 0; start < len(group); start += size {
		end := start + size
		if end > len(group) {
			end = len(group)
		}
		out = append(out, group[start:end])
	}
	return out
}
