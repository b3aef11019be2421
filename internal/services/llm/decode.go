package llm

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// DecodeJudgmentJSON unmarshals model output into target, first as-is and
// then after stripping code fences and surrounding prose. Errors carry a
// bounded payload snippet so failures stay diagnosable in logs.
func DecodeJudgmentJSON(content string, target any) error {
	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		return errors.New("empty payload")
	}

	directErr := json.Unmarshal([]byte(trimmed), target)
	if directErr == nil {
		return nil
	}

	sanitized := sanitizeJSONPayload(trimmed)
	if sanitized == "" || sanitized == trimmed {
		return fmt.Errorf("%w (payload snippet: %s)", directErr, summarizePayloadSnippet(trimmed))
	}

	if err := json.Unmarshal([]byte(sanitized), target); err != nil {
		return fmt.Errorf("%w (sanitized payload snippet: %s)", err, summarizePayloadSnippet(sanitized))
	}
	return nil
}

func sanitizeJSONPayload(content string) string {
	trimmed := strings.TrimSpace(stripCodeFence(content))
	if trimmed == "" {
		return ""
	}
	if trimmed[0] == '{' || trimmed[0] == '[' {
		return trimmed
	}
	if extracted := extractDelimited(trimmed, '{', '}'); extracted != "" {
		return extracted
	}
	if extracted := extractDelimited(trimmed, '[', ']'); extracted != "" {
		return extracted
	}
	return trimmed
}

// extractDelimited returns the outermost open..close span, covering answers
// where the model wraps the JSON in prose.
func extractDelimited(content string, open, close byte) string {
	start := strings.IndexByte(content, open)
	if start < 0 {
		return ""
	}
	end := strings.LastIndexByte(content, close)
	if end <= start {
		return ""
	}
	return strings.TrimSpace(content[start : end+1])
}

func stripCodeFence(content string) string {
	trimmed := strings.TrimSpace(content)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}
	body := strings.TrimLeft(trimmed[3:], " \t\r\n")
	if len(body) >= 4 && strings.EqualFold(body[:4], "json") {
		body = strings.TrimLeft(body[4:], " \t\r\n")
	}
	if idx := strings.LastIndex(body, "```"); idx >= 0 {
		body = body[:idx]
	}
	return strings.TrimSpace(body)
}

func summarizePayloadSnippet(content string) string {
	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		return "<empty>"
	}
	clean := strings.Join(strings.Fields(trimmed), " ")
	const limit = 160
	if runes := []rune(clean); len(runes) > limit {
		clean = string(runes[:limit]) + "..."
	}
	return clean
}
