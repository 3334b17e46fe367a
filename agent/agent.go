// Package agent implements the specialized conversational agents. Every
// agent shares one execution contract and differs only in its persona and
// bound tool set.
package agent

import "github.com/GoCodeAlone/switchboard/state"

// Personality defines the agent's behavior, tone, and role.
type Personality struct {
	Name         string `json:"name" yaml:"name"`
	Role         string `json:"role" yaml:"role"`
	SystemPrompt string `json:"system_prompt" yaml:"system_prompt"`
	Model        string `json:"model,omitempty" yaml:"model"`
}

// Info provides read-only metadata about an agent.
type Info struct {
	ID          state.AgentID `json:"id"`
	Name        string        `json:"name"`
	Personality *Personality  `json:"personality,omitempty"`
	Provider    string        `json:"provider"`
	Tools       []string      `json:"tools,omitempty"`
}

// Personalities maps each roster agent to its built-in persona.
var Personalities = map[state.AgentID]Personality{
	state.Todo: {
		Name: "Todo",
		Role: "task manager",
		SystemPrompt: `You are a focused todo and task manager.

Your job:
- extract todos from the conversation
- update or create a clear list of tasks using the task tools
- confirm back to the user what changed

Call list_tasks with include_internal_ids set to true before updating or deleting, so you use real ids.
Keep titles short and imperative. Put dates in due_date exactly as the user said them.
Always return a concise list of todos with clear labels, including the id of any task you created or changed.`,
	},
	state.Web: {
		Name: "Web",
		Role: "research assistant",
		SystemPrompt: `You are a research assistant with access to up-to-date web knowledge.
Use the search tool when the question depends on current information.
Summarize likely current information, cite sources by URL when you have them, and flag uncertainty.
If search is unavailable, say so and answer from general knowledge.`,
	},
	state.Notes: {
		Name: "Notes",
		Role: "notes organizer",
		SystemPrompt: `You organize and clean rough notes.
Structure key points, highlight action items, and keep phrasing concise.
Use short headings and bullet lists.`,
	},
	state.Finance: {
		Name: "Finance",
		Role: "finance explainer",
		SystemPrompt: `You help with personal finance and markets questions.
Explain concepts clearly, mention relevant risks, and avoid giving regulated investment advice.`,
	},
}
