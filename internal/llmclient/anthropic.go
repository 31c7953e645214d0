package llmclient

import (
	"context"
	"encoding/base64"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

const (
	defaultAnthropicModel     = "claude-sonnet-4-20250514"
	defaultAnthropicMaxTokens = 1024
)

// anthropicProvider wraps the Anthropic SDK, grounded on teacher's
// internal/agent/providers/anthropic.go (client construction,
// NewTextBlock/NewUserMessage content-block builders). Image generation
// and speech synthesis have no Anthropic SDK surface, so those two
// Provider methods always fail with an explicit error rather than
// silently falling back to a different vendor.
type anthropicProvider struct {
	client anthropic.Client
	model  string
}

func newAnthropicProvider(cfg Config) *anthropicProvider {
	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	model := cfg.Model
	if model == "" {
		model = defaultAnthropicModel
	}
	return &anthropicProvider{client: anthropic.NewClient(opts...), model: model}
}

func (p *anthropicProvider) Complete(ctx context.Context, prompt string) (string, error) {
	msg, err := p.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(p.model),
		MaxTokens: defaultAnthropicMaxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		return "", fmt.Errorf("llmclient: anthropic completion: %w", err)
	}
	return firstText(msg), nil
}

func (p *anthropicProvider) GenerateImage(context.Context, string) (string, error) {
	return "", fmt.Errorf("llmclient: anthropic provider does not support image generation")
}

func (p *anthropicProvider) GenerateAudio(context.Context, string) ([]byte, error) {
	return nil, fmt.Errorf("llmclient: anthropic provider does not support audio synthesis")
}

func (p *anthropicProvider) Caption(ctx context.Context, data []byte, mimeType string) (string, error) {
	msg, err := p.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(p.model),
		MaxTokens: defaultAnthropicMaxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(
				anthropic.NewImageBlockBase64(mimeType, base64.StdEncoding.EncodeToString(data)),
				anthropic.NewTextBlock("Describe this image in one or two sentences."),
			),
		},
	})
	if err != nil {
		return "", fmt.Errorf("llmclient: anthropic caption: %w", err)
	}
	return firstText(msg), nil
}

func firstText(msg *anthropic.Message) string {
	if msg == nil {
		return ""
	}
	for _, block := range msg.Content {
		if block.Text != "" {
			return block.Text
		}
	}
	return ""
}
