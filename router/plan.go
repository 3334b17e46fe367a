package router

import (
	"strings"

	"github.com/tidwall/gjson"

	"github.com/GoCodeAlone/switchboard/state"
)

// Strategy turns a planning reply into agent ids. An empty result hands
// over to the next strategy.
type Strategy struct {
	Name  string
	Parse func(reply string) []state.AgentID
}

// DefaultPlan is used when no strategy recognizes an agent.
var DefaultPlan = []state.AgentID{state.Notes}

// Strategies is the parse order: structured list, keyword scan, then the
// fixed default.
var Strategies = []Strategy{
	{Name: "structured", Parse: ParseStructured},
	{Name: "keyword", Parse: ScanKeywords},
	{Name: "default", Parse: func(string) []state.AgentID {
		return append([]state.AgentID(nil), DefaultPlan...)
	}},
}

// Plan runs strategies in order and returns the first non-empty result
// with the name of the strategy that produced it.
func Plan(reply string, strategies []Strategy) ([]state.AgentID, string) {
	for _, s := range strategies {
		if ids := s.Parse(reply); len(ids) > 0 {
			return ids, s.Name
		}
	}
	return append([]state.AgentID(nil), DefaultPlan...), "default"
}

// ParseStructured reads a JSON list of agent ids. The list may be bare,
// inside a code fence, embedded in prose, or held under an "agents" or
// "plan" key. Unknown ids are dropped and repeats keep their first slot.
func ParseStructured(reply string) []state.AgentID {
	list, ok := findList(stripFence(reply))
	if !ok {
		return nil
	}
	var ids []state.AgentID
	seen := map[state.AgentID]bool{}
	list.ForEach(func(_, el gjson.Result) bool {
		if el.Type != gjson.String {
			return true
		}
		id, known := state.ParseAgent(el.String())
		if known && !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
		return true
	})
	return ids
}

func findList(text string) (gjson.Result, bool) {
	text = strings.TrimSpace(text)
	if gjson.Valid(text) {
		root := gjson.Parse(text)
		switch {
		case root.IsArray():
			return root, true
		case root.IsObject():
			for _, key := range []string{"agents", "plan"} {
				if v := root.Get(key); v.IsArray() {
					return v, true
				}
			}
			return gjson.Result{}, false
		}
	}
	start := strings.Index(text, "[")
	end := strings.LastIndex(text, "]")
	if start < 0 || end <= start {
		return gjson.Result{}, false
	}
	inner := text[start : end+1]
	if !gjson.Valid(inner) {
		return gjson.Result{}, false
	}
	return gjson.Parse(inner), true
}

func stripFence(text string) string {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "```") {
		return text
	}
	text = strings.TrimPrefix(text, "```")
	if nl := strings.IndexByte(text, '\n'); nl >= 0 {
		text = text[nl+1:]
	}
	if end := strings.LastIndex(text, "```"); end >= 0 {
		text = text[:end]
	}
	return text
}

// ScanKeywords returns every roster id mentioned in the reply,
// case-insensitively, in roster order.
func ScanKeywords(reply string) []state.AgentID {
	lower := strings.ToLower(reply)
	var ids []state.AgentID
	for _, id := range state.Roster {
		if strings.Contains(lower, string(id)) {
			ids = append(ids, id)
		}
	}
	return ids
}
