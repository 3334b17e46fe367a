package task

import "strings"

// EmptySummary is the listing shown when no tasks exist.
const EmptySummary = "No tasks stored yet."

// Format renders one task as a markdown checklist entry with its id.
func Format(t Task) string {
	return format(t, true)
}

// Summarize renders every task, one entry per task. Ids are included only
// when includeIDs is set.
func Summarize(tasks []Task, includeIDs bool) string {
	if len(tasks) == 0 {
		return EmptySummary
	}
	entries := make([]string, len(tasks))
	for i, t := range tasks {
		entries[i] = format(t, includeIDs)
	}
	return strings.Join(entries, "\n")
}

func format(t Task, withID bool) string {
	box := "[ ]"
	if t.Status == StatusDone {
		box = "[x]"
	}
	var b strings.Builder
	b.WriteString("- ")
	b.WriteString(box)
	b.WriteString(" ")
	b.WriteString(t.Title)
	if withID {
		b.WriteString("\n  - id: ")
		b.WriteString(t.ID)
	}
	if t.DueDate != nil && *t.DueDate != "" {
		b.WriteString("\n  - due: ")
		b.WriteString(*t.DueDate)
	}
	if t.Description != nil && *t.Description != "" {
		b.WriteString("\n  - notes: ")
		b.WriteString(*t.Description)
	}
	return b.String()
}
