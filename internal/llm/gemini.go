package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// Gemini talks to Google's Generative Language API.
type Gemini struct {
	apiKey   string
	endpoint string
	model    string
}

func NewGemini(apiKey, endpoint, model string) *Gemini {
	return &Gemini{apiKey: apiKey, endpoint: endpoint, model: model}
}

func (g *Gemini) Name() string  { return "gemini" }
func (g *Gemini) Model() string { return g.model }

// geminiChat splits messages into the system instruction, the chat history
// and the final user prompt. Gemini calls the assistant role "model".
func geminiChat(messages []Message) (system string, history []*genai.Content, prompt string, err error) {
	var systemParts []string
	var rest []Message
	for _, m := range messages {
		if m.Role == RoleSystem {
			systemParts = append(systemParts, m.Content)
			continue
		}
		rest = append(rest, m)
	}
	if len(rest) == 0 || rest[len(rest)-1].Role != RoleUser {
		return "", nil, "", fmt.Errorf("gemini: the last message must come from the user")
	}

	for _, m := range rest[:len(rest)-1] {
		role := "user"
		if m.Role == RoleAssistant {
			role = "model"
		}
		history = append(history, &genai.Content{
			Role:  role,
			Parts: []genai.Part{genai.Text(m.Content)},
		})
	}
	return strings.Join(systemParts, "\n\n"), history, rest[len(rest)-1].Content, nil
}

// Complete opens a client for the call, replays the history into a chat
// session and sends the final user message.
func (g *Gemini) Complete(ctx context.Context, req Request) (string, error) {
	system, history, prompt, err := geminiChat(req.Messages)
	if err != nil {
		return "", err
	}

	opts := []option.ClientOption{option.WithAPIKey(g.apiKey)}
	if g.endpoint != "" {
		opts = append(opts, option.WithEndpoint(g.endpoint))
	}
	client, err := genai.NewClient(ctx, opts...)
	if err != nil {
		return "", fmt.Errorf("gemini: failed to create client: %w", err)
	}
	defer client.Close()

	model := client.GenerativeModel(g.model)
	if system != "" {
		model.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(system)}}
	}
	if req.MaxTokens > 0 {
		model.SetMaxOutputTokens(int32(req.MaxTokens))
	}

	session := model.StartChat()
	session.History = history

	resp, err := session.SendMessage(ctx, genai.Text(prompt))
	if err != nil {
		return "", fmt.Errorf("gemini: %w", err)
	}

	text := geminiText(resp)
	if strings.TrimSpace(text) == "" {
		return "", ErrEmptyResponse
	}
	return text, nil
}

func geminiText(resp *genai.GenerateContentResponse) string {
	if resp == nil {
		return ""
	}
	var sb strings.Builder
	for _, cand := range resp.Candidates {
		if cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if t, ok := part.(genai.Text); ok {
				sb.WriteString(string(t))
			}
		}
		break
	}
	return sb.String()
}
