package parse

import "regexp"

// kvPairRegex implements the generic_kv extractor from spec.md §4.5:
// `([A-Za-z0-9_.\-]+)\s*=\s*(?:"(.*?)"|(\S+))`, repeated. Quoted values may
// contain whitespace; unquoted values stop at the next pair boundary.
var kvPairRegex = regexp.MustCompile(`([A-Za-z0-9_.\-]+)\s*=\s*(?:"(.*?)"|(\S+))`)

// extractKeyValuePairs runs the generic key-value extractor over content,
// returning the extracted fields (coerced the same way CSV fields are) plus
// whatever text was not consumed by any match, trimmed and joined, stored by
// the caller under base_message.
func extractKeyValuePairs(content string) (fields map[string]any, residue string) {
	fields = make(map[string]any)
	matches := kvPairRegex.FindAllStringSubmatchIndex(content, -1)
	if len(matches) == 0 {
		return fields, content
	}

	var residueBuf []byte
	prevEnd := 0
	for _, m := range matches {
		start, end := m[0], m[1]
		residueBuf = append(residueBuf, content[prevEnd:start]...)
		prevEnd = end

		key := content[m[2]:m[3]]
		var value string
		if m[4] != -1 {
			value = content[m[4]:m[5]] // quoted capture
		} else {
			value = content[m[6]:m[7]] // unquoted capture
		}
		fields[key] = coerceValue(value)
	}
	residueBuf = append(residueBuf, content[prevEnd:]...)

	return fields, collapseResidue(string(residueBuf))
}

func collapseResidue(s string) string {
	var b []byte
	lastSpace := true
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c == ' ' || c == '\t' || c == '\n' || c == '\r' {
			if lastSpace {
				continue
			}
			b = append(b, ' ')
			lastSpace = true
			continue
		}
		b = append(b, c)
		lastSpace = false
	}
	for len(b) > 0 && b[len(b)-1] == ' ' {
		b = b[:len(b)-1]
	}
	start := 0
	for start < len(b) && b[start] == ' ' {
		start++
	}
	return string(b[start:])
}
