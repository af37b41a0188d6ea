package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

type geminiClient struct {
	client *genai.Client
	model  string
}

func newGemini(ctx context.Context, opt Options) (*geminiClient, error) {
	opts := []option.ClientOption{option.WithAPIKey(opt.APIKey)}
	if opt.HTTPClient != nil {
		opts = append(opts, option.WithHTTPClient(opt.HTTPClient))
	}

	client, err := genai.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}

	model := opt.Model
	if model == "" {
		model = "gemini-1.5-flash"
	}

	return &geminiClient{client: client, model: model}, nil
}

func (g *geminiClient) Complete(ctx context.Context, system, user string) (string, error) {
	m := g.client.GenerativeModel(g.model)
	m.SystemInstruction = genai.NewUserContent(genai.Text(system))

	resp, err := m.GenerateContent(ctx, genai.Text(user))
	if err != nil {
		return "", fmt.Errorf("gemini: %w", err)
	}

	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", errors.New("gemini: empty response")
	}

	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			b.WriteString(string(txt))
		}
	}

	reply := strings.TrimSpace(b.String())
	if reply == "" {
		return "", errors.New("gemini: no text parts in response")
	}

	return reply, nil
}

func (g *geminiClient) Close() error {
	return g.client.Close()
}
