package llm

import (
	"encoding/json"
	"strings"
)

// ExtractJSONObject recovers a JSON object from a raw model reply. Direct
// parsing is tried first, then the reply stripped of a markdown code fence,
// then the first-to-last balanced brace block.
func ExtractJSONObject(raw string) (map[string]any, bool) {
	candidate := strings.TrimSpace(raw)
	if strings.HasPrefix(candidate, "```") {
		candidate = strings.TrimSpace(strings.Trim(candidate, "`"))
		if len(candidate) >= 4 && strings.EqualFold(candidate[:4], "json") {
			candidate = candidate[4:]
		}
	}

	var parsed map[string]any
	if err := json.Unmarshal([]byte(candidate), &parsed); err == nil {
		return parsed, true
	}

	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start < 0 || end <= start {
		return nil, false
	}
	if err := json.Unmarshal([]byte(raw[start:end+1]), &parsed); err != nil {
		return nil, false
	}
	return parsed, true
}
