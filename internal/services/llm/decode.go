package llm

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// decodeObject unmarshals the JSON object in a model answer into target.
// Models wrap answers in code fences or prose, so when the answer is not
// plain JSON the span from the first '{' to the last '}' is tried instead.
func decodeObject(content string, target any) error {
	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		return errors.New("empty payload")
	}
	err := json.Unmarshal([]byte(trimmed), target)
	if err == nil {
		return nil
	}
	start := strings.Index(trimmed, "{")
	end := strings.LastIndex(trimmed, "}")
	if start < 0 || end <= start || (start == 0 && end == len(trimmed)-1) {
		return fmt.Errorf("%w (payload snippet: %s)", err, summarizePayloadSnippet(trimmed))
	}
	object := trimmed[start : end+1]
	if err := json.Unmarshal([]byte(object), target); err != nil {
		return fmt.Errorf("%w (payload snippet: %s)", err, summarizePayloadSnippet(object))
	}
	return nil
}

// summarizePayloadSnippet collapses whitespace and truncates content for
// error messages.
func summarizePayloadSnippet(content string) string {
	clean := strings.Join(strings.Fields(content), " ")
	if clean == "" {
		return "<empty>"
	}
	const limit = 160
	if runes := []rune(clean); len(runes) > limit {
		clean = string(runes[:limit]) + "..."
	}
	return clean
}
