package advisor

import (
	"encoding/json"
	"strings"
)

// repairJSON recovers a valid JSON object from a possibly truncated or
// malformed model response, mirroring the original brace-balancing recovery
// algorithm: try the raw text as-is, then the first balanced {...} block,
// then a patched version with a closing quote and closing braces appended.
func repairJSON(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "{}"
	}
	if json.Valid([]byte(raw)) {
		return raw
	}

	if start := strings.IndexByte(raw, '{'); start >= 0 {
		if candidate, ok := firstBalancedBlock(raw, start); ok {
			return candidate
		}
	}

	patched := raw
	openBraces := strings.Count(patched, "{") - strings.Count(patched, "}")
	if strings.Count(patched, `"`)%2 == 1 {
		patched += `"`
	}
	if openBraces > 0 {
		patched += strings.Repeat("}", openBraces)
	}
	if json.Valid([]byte(patched)) {
		return patched
	}
	return "{}"
}

func firstBalancedBlock(raw string, start int) (string, bool) {
	depth := 0
	for i := start; i < len(raw); i++ {
		switch raw[i] {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				candidate := raw[start : i+1]
				return candidate, json.Valid([]byte(candidate))
			}
		}
	}
	return "", false
}
