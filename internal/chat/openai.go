package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"

	openai "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

type openaiClient struct {
	client openai.Client
	model  string
}

func newOpenAI(opt Options) *openaiClient {
	opts := []option.RequestOption{option.WithAPIKey(opt.APIKey)}
	if opt.HTTPClient != nil {
		opts = append(opts, option.WithHTTPClient(opt.HTTPClient))
	}

	model := opt.Model
	if model == "" {
		model = string(openai.ChatModelGPT5Nano)
	}

	return &openaiClient{
		client: openai.NewClient(opts...),
		model:  model,
	}
}

func (o *openaiClient) Complete(ctx context.Context, system, user string) (string, error) {
	resp, err := o.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(system),
			openai.UserMessage(user),
		},
		Model: openai.ChatModel(o.model),
	})
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}

	if len(resp.Choices) == 0 {
		return "", errors.New("no choices in response")
	}

	reply := strings.TrimSpace(resp.Choices[0].Message.Content)
	if reply == "" {
		return "", errors.New("empty message content")
	}

	return reply, nil
}

func (o *openaiClient) Close() error { return nil }
