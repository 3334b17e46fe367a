package provider

import (
	"fmt"
	"strings"
)

// ContentToText collapses message content into one string. Strings pass
// through; part lists are joined with single spaces and trimmed; a single
// part (or part-shaped map) yields its text; nil yields "".
func ContentToText(content any) string {
	switch v := content.(type) {
	case nil:
		return ""
	case string:
		return v
	case Part:
		return v.Text
	case *Part:
		if v == nil {
			return ""
		}
		return v.Text
	case []Part:
		texts := make([]string, len(v))
		for i, p := range v {
			texts[i] = p.Text
		}
		return strings.TrimSpace(strings.Join(texts, " "))
	case []any:
		texts := make([]string, len(v))
		for i, el := range v {
			switch p := el.(type) {
			case string:
				texts[i] = p
			case map[string]any:
				texts[i] = textField(p)
			case Part:
				texts[i] = p.Text
			}
		}
		return strings.TrimSpace(strings.Join(texts, " "))
	case map[string]any:
		return textField(v)
	default:
		return fmt.Sprint(v)
	}
}

func textField(m map[string]any) string {
	t, ok := m["text"]
	if !ok || t == nil {
		return ""
	}
	if s, ok := t.(string); ok {
		return s
	}
	return fmt.Sprint(t)
}

// Normalize repairs messages whose primary content is empty but which carry
// text in a fallback field. Repaired messages keep role, name, id, tool
// calls, tool call id and usage. Everything else is returned unchanged.
func Normalize(messages []Message) []Message {
	if len(messages) == 0 {
		return []Message{}
	}
	out := make([]Message, len(messages))
	for i, m := range messages {
		out[i] = m
		if m.Kind() != KindEmpty {
			continue
		}
		text := firstFallback(m.Fallback)
		if text == "" {
			continue
		}
		out[i].Content = text
		out[i].Parts = nil
		out[i].Fallback = nil
	}
	return out
}

func firstFallback(candidates []string) string {
	for _, c := range candidates {
		if t := trimSpace(c); t != "" {
			return t
		}
	}
	return ""
}

func trimSpace(s string) string { return strings.TrimSpace(s) }
