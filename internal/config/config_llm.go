package config

// LLMConfig supplies the process-wide default LLM binding
// internal/llmclient.New consumes when a bot's config.csv rows don't
// override llm-provider/llm-url/llm-model/llm-key (spec.md §4.9: those
// four keys are per-bot, diffed against the stored config; this is
// just the fallback a freshly onboarded bot starts from).
type LLMConfig struct {
	// Provider is "openai" (default, OpenAI-compatible) or "anthropic".
	Provider string `yaml:"provider"`
	BaseURL  string `yaml:"base_url"`
	Model    string `yaml:"model"`
	APIKey   string `yaml:"api_key"`
}
