package parse

import (
	"encoding/csv"
	"fmt"
	"strconv"
	"strings"
	"unicode"

	lru "github.com/hashicorp/golang-lru/v2"
)

// csvHeaderIndicators are the substrings whose presence in a field name is a
// positive header signal, per spec.md §4.5.
var csvHeaderIndicators = []string{
	"id", "name", "type", "date", "time", "ip", "user", "session",
	"attack", "protocol", "browser",
}

// csvDelimiterCandidates are tried in order when sniffing a CSV file's
// delimiter, each carrying the "common delimiter" bonus from spec.md §4.5
// (0.5 for non-comma/semicolon).
var csvDelimiterCandidates = []struct {
	delim rune
	bonus float64
}{
	{',', 1.0},
	{';', 1.0},
	{'|', 0.5},
	{'\t', 0.5},
}

// csvFileState is the cached per-file CSV schema from spec.md §4.5: the
// delimiter sniffed from the first line, and the names assigned to each
// column (either the cleaned header, or synthetic column_N names).
type csvFileState struct {
	names     []string
	delimiter rune
}

// csvStrategy implements CSV-by-extension dispatch, including header
// inference on a file's first line and a bounded per-file schema cache, per
// spec.md §4.5.
type csvStrategy struct {
	cache *lru.Cache[string, csvFileState]
}

func newCSVStrategy() *csvStrategy {
	// A single long-running pipeline can tail many source files; bound the
	// cache so file churn can't grow it without limit.
	cache, _ := lru.New[string, csvFileState](4096)
	return &csvStrategy{cache: cache}
}

// parse handles one line of a .csv-extension source file. isHeader reports
// whether this line was classified as a header (parser_name = csv_header
// vs. csv, per spec.md §9's worked example).
func (s *csvStrategy) parse(sourceFile string, lineNumber int, line string) (fields map[string]any, names []string, isHeader bool) {
	if lineNumber == 1 {
		delim := sniffDelimiter(line)
		raw := splitCSVLine(line, delim)
		header := classifyHeader(raw)

		var assigned []string
		if header {
			assigned = cleanFieldNames(raw)
		} else {
			assigned = syntheticNames(len(raw))
		}
		s.cache.Add(sourceFile, csvFileState{names: assigned, delimiter: delim})
		return zipAligned(assigned, raw), assigned, header
	}

	state, ok := s.cache.Get(sourceFile)
	if !ok {
		delim := sniffDelimiter(line)
		raw := splitCSVLine(line, delim)
		state = csvFileState{names: syntheticNames(len(raw)), delimiter: delim}
		s.cache.Add(sourceFile, state)
	}
	raw := splitCSVLine(line, state.delimiter)
	return zipAligned(state.names, raw), state.names, false
}

// splitCSVLine splits one line on delim, honoring quoting. A malformed line
// falls back to a plain strings.Split on the delimiter rune.
func splitCSVLine(line string, delim rune) []string {
	r := csv.NewReader(strings.NewReader(line))
	r.Comma = delim
	r.LazyQuotes = true
	r.FieldsPerRecord = -1
	fields, err := r.Read()
	if err != nil {
		return strings.Split(line, string(delim))
	}
	return fields
}

// sniffDelimiter picks the candidate delimiter producing the most fields
// weighted by the common-delimiter bonus, per spec.md §4.5.
func sniffDelimiter(line string) rune {
	best := ','
	bestScore := -1.0
	for _, cand := range csvDelimiterCandidates {
		fields := splitCSVLine(line, cand.delim)
		if len(fields) < 2 {
			continue
		}
		score := float64(len(fields)) * cand.bonus
		if score > bestScore {
			bestScore = score
			best = cand.delim
		}
	}
	return best
}

// classifyHeader implements the scored heuristic from spec.md §4.5: a row is
// a header iff the sum of per-field indicator scores is >= 0.6 * fieldCount.
func classifyHeader(fields []string) bool {
	if len(fields) == 0 {
		return false
	}
	threshold := 0.6 * float64(len(fields))
	var total float64
	for _, f := range fields {
		total += scoreHeaderField(f)
	}
	return total >= threshold
}

func scoreHeaderField(name string) float64 {
	trimmed := strings.TrimSpace(name)
	lower := strings.ToLower(trimmed)
	var score float64

	for _, ind := range csvHeaderIndicators {
		if strings.Contains(lower, ind) {
			score++
			break
		}
	}

	stripped := strings.NewReplacer("_", "", "-", "").Replace(lower)
	if stripped != "" && isAlpha(stripped) {
		score++
	}

	hasDigit := containsDigit(trimmed)
	if len(trimmed) <= 20 && !hasDigit {
		score += 0.5
	}
	if hasDigit {
		score -= 0.5
	}
	if looksLikeDecimal(trimmed) {
		score--
	}

	return score
}

func isAlpha(s string) bool {
	for _, r := range s {
		if !unicode.IsLetter(r) {
			return false
		}
	}
	return true
}

func containsDigit(s string) bool {
	for _, r := range s {
		if unicode.IsDigit(r) {
			return true
		}
	}
	return false
}

func looksLikeDecimal(s string) bool {
	_, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	return err == nil
}

// cleanFieldNames normalizes raw header tokens into stable field names.
func cleanFieldNames(raw []string) []string {
	out := make([]string, len(raw))
	for i, f := range raw {
		out[i] = strings.ToLower(strings.ReplaceAll(strings.TrimSpace(f), " ", "_"))
	}
	return out
}

func syntheticNames(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("column_%d", i+1)
	}
	return out
}

// zipAligned assigns fields to names positionally, padding missing trailing
// values with nil and spilling any surplus columns into extra_field_i, per
// spec.md §4.5's CSV header detector edge cases.
func zipAligned(names []string, fields []string) map[string]any {
	out := make(map[string]any, len(names))
	for i, name := range names {
		if i < len(fields) {
			out[name] = coerceValue(fields[i])
		} else {
			out[name] = nil
		}
	}
	for i := len(names); i < len(fields); i++ {
		out[fmt.Sprintf("extra_field_%d", i-len(names)+1)] = coerceValue(fields[i])
	}
	return out
}
