// Package llmclient wraps the two LLM SDKs teacher depends on
// (github.com/sashabaranov/go-openai and
// github.com/anthropics/anthropic-sdk-go) behind one narrow Provider
// interface, selected at construction time by a bot's llm-* config
// keys rather than a compile-time choice.
package llmclient

import (
	"context"
	"fmt"
)

// Provider is the dispatch surface the LLM-adjacent keyword group
// (LLM/IMAGE/VIDEO/AUDIO/SEE) calls through. A nil Provider means the
// feature is gated off for a bot; callers return a placeholder marker
// rather than failing in that case.
type Provider interface {
	// Complete returns a single non-streaming text completion for prompt.
	Complete(ctx context.Context, prompt string) (string, error)

	// GenerateImage returns a URL (or data URI) for an image generated
	// from prompt.
	GenerateImage(ctx context.Context, prompt string) (string, error)

	// GenerateAudio returns synthesized audio bytes (MP3) for text.
	GenerateAudio(ctx context.Context, text string) ([]byte, error)

	// Caption describes the image at data (raw bytes, already read from
	// the drive namespace by the caller) in one or two sentences.
	Caption(ctx context.Context, data []byte, mimeType string) (string, error)
}

// Config selects and configures a Provider the way a bot's config.csv
// rows would: an OpenAI-compatible endpoint by default (llm-url/
// llm-model/llm-key), or Anthropic's Claude when llm-provider is set
// to "anthropic" (spec.md §4.9's config-diff keys, SPEC_FULL.md §4.4's
// DOMAIN STACK wiring).
type Config struct {
	Provider string // "openai" (default) or "anthropic"
	BaseURL  string // llm-url; empty keeps each SDK's own default
	Model    string // llm-model
	APIKey   string // llm-key
}

// New builds the Provider cfg selects. An empty APIKey is valid: it
// yields a Provider whose calls fail with a clear error, distinct from
// a nil Provider (feature disabled) which the keyword layer never even
// calls into.
func New(cfg Config) (Provider, error) {
	switch cfg.Provider {
	case "", "openai":
		return newOpenAIProvider(cfg), nil
	case "anthropic":
		return newAnthropicProvider(cfg), nil
	default:
		return nil, fmt.Errorf("llmclient: unknown provider %q", cfg.Provider)
	}
}
