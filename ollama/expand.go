package ollama

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// Expansion is the result of expanding one phrase. Fields other than Text are
// best-effort and empty when the model did not supply them.
type Expansion struct {
	Text          string
	Pronunciation string
	IPA           string
}

type ExpandRequest struct {
	Phrase   string
	Model    string
	Style    string
	Language string
	// Structured asks the model for a JSON object and falls back to plain
	// text when the reply cannot be parsed.
	Structured bool
	// MinLength is the minimum usable prompt length. Zero means 10.
	MinLength int
}

const defaultMinLength = 10

func instruction(req ExpandRequest) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Write a detailed image generation prompt illustrating the phrase %q.", req.Phrase)
	if req.Language != "" {
		fmt.Fprintf(&b, " The phrase is in %s.", req.Language)
	}
	if req.Style != "" {
		fmt.Fprintf(&b, " The image should be in a %s style.", req.Style)
	}
	if req.Structured {
		b.WriteString(` Respond with a single JSON object with the fields "prompt", "pronunciation" and "ipa". The "prompt" value is the image prompt, "pronunciation" is a simple reading of the phrase and "ipa" is its IPA transcription.`)
	} else {
		b.WriteString(" Respond with the prompt text only, no preamble.")
	}
	return b.String()
}

// Expand generates an image prompt (and, in structured mode, pronunciation
// data) for a phrase. Partial failures degrade to plain text rather than
// erroring: only transport-level failures of the final fallback are returned.
func (c *Client) Expand(ctx context.Context, req ExpandRequest) (Expansion, error) {
	minLen := req.MinLength
	if minLen <= 0 {
		minLen = defaultMinLength
	}
	if req.Structured {
		raw, err := c.Generate(ctx, req.Model, instruction(req), "json")
		if err == nil {
			if exp, ok := parseStructured(raw, minLen); ok {
				return exp, nil
			}
			c.log.Warn("structured reply unusable, retrying as text", "phrase", req.Phrase)
		} else {
			if ctx.Err() != nil {
				return Expansion{}, ctx.Err()
			}
			c.log.Warn("structured generation failed, retrying as text", "err", err)
		}
	}
	plain := req
	plain.Structured = false
	raw, err := c.Generate(ctx, plain.Model, instruction(plain), "")
	if err != nil {
		return Expansion{}, err
	}
	text := strings.TrimSpace(raw)
	if looksLikeJSON(text) {
		if exp, ok := parseStructured(text, minLen); ok {
			return exp, nil
		}
		text = extractLine(raw)
	}
	return Expansion{Text: text}, nil
}

// parseStructured accepts the reply shapes models actually produce: a direct
// object, {"prompts": [...]}, {"items": [...]}, a dict wrapping a single
// item, or a bare list of objects.
func parseStructured(raw string, minLen int) (Expansion, bool) {
	var v any
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return Expansion{}, false
	}
	item := firstItem(v)
	if item == nil {
		return Expansion{}, false
	}
	exp := Expansion{
		Text:          stringField(item, "prompt", "text", "description", "response"),
		Pronunciation: stringField(item, "pronunciation", "reading"),
		IPA:           stringField(item, "ipa"),
	}
	if len(strings.TrimSpace(exp.Text)) <= minLen {
		return Expansion{}, false
	}
	return exp, true
}

func firstItem(v any) map[string]any {
	switch v := v.(type) {
	case map[string]any:
		for _, key := range []string{"prompts", "items"} {
			if list, ok := v[key].([]any); ok {
				return firstItem(list)
			}
		}
		if hasTextField(v) {
			return v
		}
		// a dict wrapping a single item
		if len(v) == 1 {
			for _, inner := range v {
				return firstItem(inner)
			}
		}
	case []any:
		for _, e := range v {
			if m, ok := e.(map[string]any); ok {
				return m
			}
		}
	}
	return nil
}

func hasTextField(m map[string]any) bool {
	for _, key := range []string{"prompt", "text", "description", "response"} {
		if s, ok := m[key].(string); ok && s != "" {
			return true
		}
	}
	return false
}

func stringField(m map[string]any, keys ...string) string {
	for _, key := range keys {
		if s, ok := m[key].(string); ok && strings.TrimSpace(s) != "" {
			return strings.TrimSpace(s)
		}
	}
	return ""
}

func looksLikeJSON(s string) bool {
	s = strings.TrimSpace(s)
	return strings.HasPrefix(s, "{") || strings.HasPrefix(s, "[")
}

const maxRawPrompt = 500

// extractLine is the last-resort text extraction: the first line longer than
// 20 characters that does not look like raw JSON, else the truncated reply.
func extractLine(raw string) string {
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(line)
		if len(line) > 20 && !looksLikeJSON(line) {
			return line
		}
	}
	raw = strings.TrimSpace(raw)
	if len(raw) > maxRawPrompt {
		return raw[:maxRawPrompt]
	}
	return raw
}
