package helpers

import (
	"encoding/json"
	"strings"
)

// ExtractJSON recovers a JSON object from free-form model output. Candidate
// selection order: a ```json fenced block, any generic ``` fenced block, then
// the substring between the first '{' and the last '}'. Exactly one parse is
// attempted on the selected candidate; any failure yields an empty (non-nil)
// map. The function never panics and ignores all fences after the first.
func ExtractJSON(text string) map[string]interface{} {
	candidate := jsonCandidate(text)
	if candidate == "" {
		return map[string]interface{}{}
	}
	var out map[string]interface{}
	if err := json.Unmarshal([]byte(candidate), &out); err != nil || out == nil {
		return map[string]interface{}{}
	}
	return out
}

func jsonCandidate(text string) string {
	if idx := strings.Index(text, "```json"); idx >= 0 {
		return fencedBody(text, idx+len("```json"))
	}
	if idx := strings.Index(text, "```"); idx >= 0 {
		return fencedBody(text, idx+len("```"))
	}
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end < start {
		return ""
	}
	return text[start : end+1]
}

func fencedBody(text string, start int) string {
	rest := text[start:]
	if end := strings.Index(rest, "```"); end >= 0 {
		return rest[:end]
	}
	return rest
}
