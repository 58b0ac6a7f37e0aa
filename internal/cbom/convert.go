package cbom

import (
	"encoding/json"
	"log/slog"
	"regexp"
	"strings"
)

var (
	openJSONFence = regexp.MustCompile("(?i)^```json")
	openFence     = regexp.MustCompile("^```")
	closeFence    = regexp.MustCompile("```$")
)

// StripFences removes a surrounding markdown code fence, with or without a
// json language tag.
func StripFences(raw string) string {
	s := strings.TrimSpace(raw)
	s = strings.TrimSpace(openJSONFence.ReplaceAllString(s, ""))
	s = strings.TrimSpace(openFence.ReplaceAllString(s, ""))
	s = strings.TrimSpace(closeFence.ReplaceAllString(s, ""))
	return s
}

// Normalize parses each result's output as JSON. Empty outputs and outputs
// that are not valid JSON are skipped.
func Normalize(results []Result, logger *slog.Logger) []any {
	if logger == nil {
		logger = slog.Default()
	}
	out := []any{}
	for _, r := range results {
		text := strings.TrimSpace(r.Output)
		if text == "" {
			continue
		}
		var v any
		if err := json.Unmarshal([]byte(StripFences(text)), &v); err != nil {
			logger.Warn("cbom.invalid_json", "file", r.FileName, "preview", preview(text, 80))
			continue
		}
		out = append(out, v)
	}
	return out
}

func preview(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return truncateRunes(s, n) + "..."
}

// Clean removes nulls, empty strings, and maps or lists that are empty
// after cleaning, at every depth. Zero and false are kept.
func Clean(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			c := Clean(val)
			if !isEmpty(c) {
				out[k] = c
			}
		}
		return out
	case []any:
		out := make([]any, 0, len(t))
		for _, val := range t {
			c := Clean(val)
			if !isEmpty(c) {
				out = append(out, c)
			}
		}
		return out
	default:
		return v
	}
}

func isEmpty(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return t == ""
	case map[string]any:
		return len(t) == 0
	case []any:
		return len(t) == 0
	default:
		return false
	}
}
