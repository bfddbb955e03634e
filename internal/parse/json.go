package parse

import (
	"encoding/json"
	"strings"
)

// tryJSON implements spec.md §4.5 step 2: content trimmed of whitespace that
// starts with '{' and ends with '}' is parsed as one JSON object. A parse
// failure is not an error here — dispatch falls through to pattern dispatch.
func tryJSON(content string) (map[string]any, bool) {
	trimmed := strings.TrimSpace(content)
	if !strings.HasPrefix(trimmed, "{") || !strings.HasSuffix(trimmed, "}") {
		return nil, false
	}
	var parsed map[string]any
	if err := json.Unmarshal([]byte(trimmed), &parsed); err != nil {
		return nil, false
	}
	return parsed, true
}
