package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/markdave123-py/chatspace/internal/apperrors"
	"github.com/markdave123-py/chatspace/internal/core"
)

type GeminiLLM struct {
	client    *genai.Client
	modelName string
}

func NewGeminiLLM(ctx context.Context, apiKey, modelName string) (*GeminiLLM, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("GEMINI_API_KEY not set")
	}
	cl, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, err
	}
	if modelName == "" {
		modelName = "gemini-2.5-flash"
	}
	return &GeminiLLM{client: cl, modelName: modelName}, nil
}

func (g *GeminiLLM) Close() error {
	if g.client != nil {
		return g.client.Close()
	}
	return nil
}

// Complete maps system messages to the system instruction and replays the
// remaining turns as chat history, sending the last one.
func (g *GeminiLLM) Complete(ctx context.Context, messages []core.ChatMessage, opts core.CompletionOptions) (string, error) {
	client := g.client
	if opts.APIKey != "" {
		cl, err := genai.NewClient(ctx, option.WithAPIKey(opts.APIKey))
		if err != nil {
			return "", fmt.Errorf("%w: tenant client: %v", apperrors.ErrCompletion, err)
		}
		defer cl.Close()
		client = cl
	}

	modelName := g.modelName
	if opts.Model != "" {
		modelName = opts.Model
	}
	m := client.GenerativeModel(modelName)

	system, turns := splitGeminiMessages(messages)
	if system != "" {
		m.SystemInstruction = &genai.Content{
			Parts: []genai.Part{genai.Text(system)},
		}
	}
	if len(turns) == 0 {
		return "", fmt.Errorf("%w: no user message", apperrors.ErrCompletion)
	}

	cs := m.StartChat()
	cs.History = turns[:len(turns)-1]
	last := turns[len(turns)-1]

	resp, err := cs.SendMessage(ctx, last.Parts...)
	if err != nil {
		return "", fmt.Errorf("%w: gemini generate: %v", apperrors.ErrCompletion, err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", nil
	}

	var b strings.Builder
	for _, p := range resp.Candidates[0].Content.Parts {
		if t, ok := p.(genai.Text); ok {
			b.WriteString(string(t))
		}
	}
	return b.String(), nil
}

// splitGeminiMessages joins system messages and converts the rest into
// Gemini contents ("assistant" becomes "model").
func splitGeminiMessages(messages []core.ChatMessage) (string, []*genai.Content) {
	var (
		system []string
		turns  []*genai.Content
	)
	for _, msg := range messages {
		switch msg.Role {
		case "system":
			system = append(system, msg.Content)
		case "assistant":
			turns = append(turns, &genai.Content{Role: "model", Parts: []genai.Part{genai.Text(msg.Content)}})
		default:
			turns = append(turns, &genai.Content{Role: "user", Parts: []genai.Part{genai.Text(msg.Content)}})
		}
	}
	return strings.Join(system, "\n\n"), turns
}

var _ core.LLMProvider = (*GeminiLLM)(nil)
