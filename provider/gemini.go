package provider

import (
	"context"
	"fmt"
	"strings"

	"github.com/oklog/ulid/v2"
	"google.golang.org/genai"
)

const defaultGeminiModel = "gemini-2.5-flash"

// GeminiConfig holds configuration for the Gemini provider.
type GeminiConfig struct {
	APIKey      string
	Model       string
	BaseURL     string
	MaxTokens   int
	Temperature float64
}

// GeminiProvider implements Provider using the Gemini generateContent API.
type GeminiProvider struct {
	config GeminiConfig
	client *genai.Client
}

// NewGeminiProvider creates a Gemini provider. It fails when no API key is set.
func NewGeminiProvider(ctx context.Context, cfg GeminiConfig) (*GeminiProvider, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini: API key is required")
	}
	if cfg.Model == "" {
		cfg.Model = defaultGeminiModel
	}
	cc := &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if cfg.BaseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL}
	}
	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("gemini: create client: %w", err)
	}
	return &GeminiProvider{config: cfg, client: client}, nil
}

func (p *GeminiProvider) Name() string { return "gemini" }

func (p *GeminiProvider) Chat(ctx context.Context, messages []Message, tools []ToolDef) (*Response, error) {
	system, contents := geminiContents(messages)

	cfg := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(float32(p.config.Temperature)),
		Tools:       geminiTools(tools),
	}
	if system != "" {
		cfg.SystemInstruction = genai.NewContentFromText(system, genai.RoleUser)
	}
	if p.config.MaxTokens > 0 {
		cfg.MaxOutputTokens = int32(p.config.MaxTokens)
	}

	resp, err := p.client.Models.GenerateContent(ctx, p.config.Model, contents, cfg)
	if err != nil {
		return nil, fmt.Errorf("gemini: generate content: %w", err)
	}
	return geminiResponse(resp), nil
}

func geminiResponse(resp *genai.GenerateContentResponse) *Response {
	out := &Response{}
	if resp == nil {
		return out
	}
	if u := resp.UsageMetadata; u != nil {
		out.Usage = Usage{
			InputTokens:  int(u.PromptTokenCount),
			OutputTokens: int(u.CandidatesTokenCount),
		}
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return out
	}

	var text strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if part == nil {
			continue
		}
		if part.FunctionCall != nil {
			fc := part.FunctionCall
			id := fc.ID
			if id == "" {
				id = "call_" + ulid.Make().String()
			}
			args := fc.Args
			if args == nil {
				args = map[string]any{}
			}
			out.ToolCalls = append(out.ToolCalls, ToolCall{ID: id, Name: fc.Name, Arguments: args})
			continue
		}
		if part.Text != "" && !part.Thought {
			text.WriteString(part.Text)
		}
	}
	out.Content = text.String()
	return out
}

// geminiContents converts messages into Gemini contents. System messages
// become the system instruction. Tool results become function responses
// in user turns; their function name comes from the message name or the
// matching earlier tool call.
func geminiContents(messages []Message) (string, []*genai.Content) {
	var system []string
	var out []*genai.Content
	callNames := map[string]string{}

	push := func(role genai.Role, parts ...*genai.Part) {
		if len(parts) == 0 {
			return
		}
		if n := len(out); n > 0 && out[n-1].Role == string(role) {
			out[n-1].Parts = append(out[n-1].Parts, parts...)
			return
		}
		out = append(out, genai.NewContentFromParts(parts, role))
	}

	for _, m := range messages {
		switch m.Role {
		case RoleSystem:
			if t := m.Text(); t != "" {
				system = append(system, t)
			}
		case RoleAssistant:
			var parts []*genai.Part
			if t := m.Text(); strings.TrimSpace(t) != "" {
				parts = append(parts, &genai.Part{Text: t})
			}
			for _, tc := range m.ToolCalls {
				callNames[tc.ID] = tc.Name
				parts = append(parts, &genai.Part{FunctionCall: &genai.FunctionCall{
					ID:   tc.ID,
					Name: tc.Name,
					Args: tc.Arguments,
				}})
			}
			push(genai.RoleModel, parts...)
		case RoleTool:
			name := m.Name
			if name == "" {
				name = callNames[m.ToolCallID]
			}
			key := "output"
			if m.IsError {
				key = "error"
			}
			push(genai.RoleUser, &genai.Part{FunctionResponse: &genai.FunctionResponse{
				ID:       m.ToolCallID,
				Name:     name,
				Response: map[string]any{key: m.Text()},
			}})
		default:
			if t := m.Text(); strings.TrimSpace(t) != "" {
				push(genai.RoleUser, &genai.Part{Text: t})
			}
		}
	}
	return strings.Join(system, "\n\n"), out
}

func geminiTools(tools []ToolDef) []*genai.Tool {
	if len(tools) == 0 {
		return nil
	}
	decls := make([]*genai.FunctionDeclaration, 0, len(tools))
	for _, t := range tools {
		decls = append(decls, &genai.FunctionDeclaration{
			Name:                 t.Name,
			Description:          t.Description,
			ParametersJsonSchema: t.Parameters,
		})
	}
	return []*genai.Tool{{FunctionDeclarations: decls}}
}
