// Package config loads the process-level bootstrap configuration
// cmd/botcore starts from: listen addresses, the C10 persistence
// backend, the C6 drive backend, the LLM-adjacent default provider
// binding, and logging. Per-bot runtime configuration (the llm-*,
// theme-*, and conn-<name>-* keys spec.md §4.9/§4.10 describe) lives in
// the C10 config store instead, keyed by bot_id, and is read through
// store.ConfigStore rather than this package once the process is up.
package config

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for cmd/botcore.
type Config struct {
	Version  int            `yaml:"version"`
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Drive    DriveConfig    `yaml:"drive"`
	LLM      LLMConfig      `yaml:"llm"`
	Logging  LoggingConfig  `yaml:"logging"`
	Bots     []BotConfig    `yaml:"bots"`
}

// Load reads, env-expands, and decodes the YAML file at path, applying
// defaults and validating the result. Unknown fields are rejected, the
// same strictness teacher's loader uses to catch typoed keys early.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	expanded := os.ExpandEnv(string(data))

	var cfg Config
	decoder := yaml.NewDecoder(strings.NewReader(expanded))
	decoder.KnownFields(true)
	if err := decoder.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	if err := decoder.Decode(new(struct{})); err != io.EOF {
		return nil, fmt.Errorf("config: %s must contain exactly one YAML document", path)
	}

	if cfg.Version == 0 {
		cfg.Version = CurrentVersion
	} else if err := ValidateVersion(cfg.Version); err != nil {
		return nil, err
	}

	applyEnvOverrides(&cfg)
	applyDefaults(&cfg)

	if err := validateConfig(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "0.0.0.0"
	}
	if cfg.Server.HTTPPort == 0 {
		cfg.Server.HTTPPort = 8080
	}
	if cfg.Server.MetricsPort == 0 {
		cfg.Server.MetricsPort = 9090
	}

	if cfg.Database.Driver == "" {
		cfg.Database.Driver = "sqlite"
	}
	if cfg.Database.DSN == "" && (cfg.Database.Driver == "sqlite" || cfg.Database.Driver == "sqlite3") {
		cfg.Database.DSN = "botcore.db"
	}
	if cfg.Database.MaxConnections == 0 {
		cfg.Database.MaxConnections = 25
	}
	if cfg.Database.ConnMaxLifetime == 0 {
		cfg.Database.ConnMaxLifetime = 5 * time.Minute
	}

	if cfg.Drive.Backend == "" {
		cfg.Drive.Backend = "local"
	}
	if cfg.Drive.Backend == "local" && cfg.Drive.LocalPath == "" {
		cfg.Drive.LocalPath = "./drive"
	}
	if cfg.Drive.PollInterval == 0 {
		cfg.Drive.PollInterval = 30 * time.Second
	}

	if cfg.LLM.Provider == "" {
		cfg.LLM.Provider = "openai"
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}

	for i := range cfg.Bots {
		if cfg.Bots[i].Bucket == "" {
			cfg.Bots[i].Bucket = cfg.Bots[i].ID
		}
	}
}

// applyEnvOverrides lets deploy-time secrets and ports override the
// checked-in config file without templating it, mirroring teacher's
// env-override pass in internal/config/config.go.
func applyEnvOverrides(cfg *Config) {
	if v := strings.TrimSpace(os.Getenv("BOTCORE_HOST")); v != "" {
		cfg.Server.Host = v
	}
	if v := strings.TrimSpace(os.Getenv("BOTCORE_HTTP_PORT")); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			cfg.Server.HTTPPort = parsed
		}
	}
	if v := strings.TrimSpace(os.Getenv("BOTCORE_METRICS_PORT")); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			cfg.Server.MetricsPort = parsed
		}
	}
	if v := strings.TrimSpace(os.Getenv("DATABASE_URL")); v != "" {
		cfg.Database.DSN = v
	}
	if v := strings.TrimSpace(os.Getenv("BOTCORE_LLM_API_KEY")); v != "" {
		cfg.LLM.APIKey = v
	}
	if v := strings.TrimSpace(os.Getenv("BOTCORE_S3_SECRET_ACCESS_KEY")); v != "" {
		cfg.Drive.SecretAccessKey = v
	}
}

// ConfigValidationError collects every validation issue found, rather
// than failing on the first, so a misconfigured deploy sees every
// problem in one run.
type ConfigValidationError struct {
	Issues []string
}

func (e *ConfigValidationError) Error() string {
	return "config validation failed:\n- " + strings.Join(e.Issues, "\n- ")
}

var validDBDrivers = map[string]bool{"postgres": true, "sqlite": true, "sqlite3": true}
var validDriveBackends = map[string]bool{"s3": true, "local": true}
var validLLMProviders = map[string]bool{"openai": true, "anthropic": true}
var validLogLevels = map[string]bool{"debug": true, "info": true, "warn": true, "error": true}

func validateConfig(cfg *Config) error {
	var issues []string

	if !validDBDrivers[cfg.Database.Driver] {
		issues = append(issues, fmt.Sprintf("database.driver must be one of postgres, sqlite, sqlite3 (got %q)", cfg.Database.Driver))
	}
	if !validDriveBackends[cfg.Drive.Backend] {
		issues = append(issues, fmt.Sprintf("drive.backend must be one of s3, local (got %q)", cfg.Drive.Backend))
	}
	if cfg.Drive.Backend == "s3" && cfg.Drive.Bucket == "" {
		issues = append(issues, "drive.bucket is required when drive.backend is s3")
	}
	if !validLLMProviders[cfg.LLM.Provider] {
		issues = append(issues, fmt.Sprintf("llm.provider must be one of openai, anthropic (got %q)", cfg.LLM.Provider))
	}
	if !validLogLevels[cfg.Logging.Level] {
		issues = append(issues, fmt.Sprintf("logging.level must be one of debug, info, warn, error (got %q)", cfg.Logging.Level))
	}
	for i, b := range cfg.Bots {
		if strings.TrimSpace(b.ID) == "" {
			issues = append(issues, fmt.Sprintf("bots[%d].id is required", i))
		}
	}

	if len(issues) > 0 {
		return &ConfigValidationError{Issues: issues}
	}
	return nil
}
