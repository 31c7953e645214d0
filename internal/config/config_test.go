package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "botcore.yaml")
	if err := os.WriteFile(path, []byte(strings.TrimSpace(contents)), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, `{}`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.Host != "0.0.0.0" || cfg.Server.HTTPPort != 8080 || cfg.Server.MetricsPort != 9090 {
		t.Fatalf("unexpected server defaults: %+v", cfg.Server)
	}
	if cfg.Database.Driver != "sqlite" || cfg.Database.DSN != "botcore.db" {
		t.Fatalf("unexpected database defaults: %+v", cfg.Database)
	}
	if cfg.Database.MaxConnections != 25 {
		t.Fatalf("unexpected MaxConnections default: %d", cfg.Database.MaxConnections)
	}
	if cfg.Drive.Backend != "local" || cfg.Drive.LocalPath != "./drive" {
		t.Fatalf("unexpected drive defaults: %+v", cfg.Drive)
	}
	if cfg.LLM.Provider != "openai" {
		t.Fatalf("unexpected llm default: %+v", cfg.LLM)
	}
	if cfg.Logging.Level != "info" || cfg.Logging.Format != "json" {
		t.Fatalf("unexpected logging defaults: %+v", cfg.Logging)
	}
	if cfg.Version != CurrentVersion {
		t.Fatalf("expected version defaulted to %d, got %d", CurrentVersion, cfg.Version)
	}
}

func TestLoadRejectsUnknownFields(t *testing.T) {
	path := writeConfig(t, `
server:
  host: 0.0.0.0
  extra: true
`)
	if _, err := Load(path); err == nil {
		t.Fatalf("expected error for unknown field")
	}
}

func TestLoadRejectsMultipleDocuments(t *testing.T) {
	path := writeConfig(t, "server:\n  host: 0.0.0.0\n---\nserver:\n  host: 1.2.3.4\n")
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for multi-document config")
	}
}

func TestLoadExpandsEnvVars(t *testing.T) {
	t.Setenv("BOTCORE_TEST_DSN", "postgres://example/test")
	path := writeConfig(t, `
database:
  driver: postgres
  dsn: ${BOTCORE_TEST_DSN}
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Database.DSN != "postgres://example/test" {
		t.Fatalf("expected expanded DSN, got %q", cfg.Database.DSN)
	}
}

func TestLoadAppliesEnvOverrides(t *testing.T) {
	t.Setenv("BOTCORE_HOST", "127.0.0.1")
	t.Setenv("BOTCORE_HTTP_PORT", "9999")
	t.Setenv("DATABASE_URL", "postgres://override@localhost:5432/botcore?sslmode=disable")
	t.Setenv("BOTCORE_LLM_API_KEY", "sk-test-key")
	t.Setenv("BOTCORE_S3_SECRET_ACCESS_KEY", "s3-secret")

	path := writeConfig(t, `
server:
  host: 0.0.0.0
  http_port: 8080
database:
  driver: postgres
  dsn: postgres://default@localhost:5432/botcore?sslmode=disable
drive:
  backend: s3
  bucket: bots
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.Host != "127.0.0.1" {
		t.Fatalf("expected host override, got %q", cfg.Server.Host)
	}
	if cfg.Server.HTTPPort != 9999 {
		t.Fatalf("expected http port override, got %d", cfg.Server.HTTPPort)
	}
	if cfg.Database.DSN != "postgres://override@localhost:5432/botcore?sslmode=disable" {
		t.Fatalf("expected database dsn override, got %q", cfg.Database.DSN)
	}
	if cfg.LLM.APIKey != "sk-test-key" {
		t.Fatalf("expected llm api key override, got %q", cfg.LLM.APIKey)
	}
	if cfg.Drive.SecretAccessKey != "s3-secret" {
		t.Fatalf("expected s3 secret override, got %q", cfg.Drive.SecretAccessKey)
	}
}

func TestLoadRejectsInvalidDatabaseDriver(t *testing.T) {
	path := writeConfig(t, `
database:
  driver: oracle
`)
	_, err := Load(path)
	if err == nil {
		t.Fatal("expected validation error for unsupported driver")
	}
	if !strings.Contains(err.Error(), "database.driver") {
		t.Fatalf("expected database.driver error, got %v", err)
	}
}

func TestLoadRejectsInvalidDriveBackend(t *testing.T) {
	path := writeConfig(t, `
drive:
  backend: ftp
`)
	_, err := Load(path)
	if err == nil {
		t.Fatal("expected validation error for unsupported drive backend")
	}
	if !strings.Contains(err.Error(), "drive.backend") {
		t.Fatalf("expected drive.backend error, got %v", err)
	}
}

func TestLoadRejectsS3BackendWithoutBucket(t *testing.T) {
	path := writeConfig(t, `
drive:
  backend: s3
`)
	_, err := Load(path)
	if err == nil {
		t.Fatal("expected validation error for missing bucket")
	}
	if !strings.Contains(err.Error(), "drive.bucket") {
		t.Fatalf("expected drive.bucket error, got %v", err)
	}
}

func TestLoadRejectsInvalidLLMProvider(t *testing.T) {
	path := writeConfig(t, `
llm:
  provider: cohere
`)
	_, err := Load(path)
	if err == nil {
		t.Fatal("expected validation error for unsupported llm provider")
	}
	if !strings.Contains(err.Error(), "llm.provider") {
		t.Fatalf("expected llm.provider error, got %v", err)
	}
}

func TestLoadRejectsInvalidLogLevel(t *testing.T) {
	path := writeConfig(t, `
logging:
  level: verbose
`)
	_, err := Load(path)
	if err == nil {
		t.Fatal("expected validation error for unsupported log level")
	}
	if !strings.Contains(err.Error(), "logging.level") {
		t.Fatalf("expected logging.level error, got %v", err)
	}
}

func TestLoadCollectsAllValidationIssues(t *testing.T) {
	path := writeConfig(t, `
database:
  driver: oracle
drive:
  backend: s3
llm:
  provider: cohere
logging:
  level: verbose
`)
	_, err := Load(path)
	if err == nil {
		t.Fatal("expected validation error")
	}
	verr, ok := err.(*ConfigValidationError)
	if !ok {
		t.Fatalf("expected *ConfigValidationError, got %T", err)
	}
	if len(verr.Issues) != 4 {
		t.Fatalf("expected 4 collected issues, got %d: %v", len(verr.Issues), verr.Issues)
	}
}

func TestLoadValidConfig(t *testing.T) {
	path := writeConfig(t, `
server:
  host: 0.0.0.0
  http_port: 8080
database:
  driver: postgres
  dsn: postgres://localhost:5432/botcore
drive:
  backend: s3
  bucket: bots
llm:
  provider: anthropic
logging:
  level: debug
  format: text
`)
	if _, err := Load(path); err != nil {
		t.Fatalf("expected config to load, got %v", err)
	}
}

func TestLoadRejectsNewerConfigVersion(t *testing.T) {
	path := writeConfig(t, `
version: 999
`)
	if _, err := Load(path); err == nil {
		t.Fatal("expected rejection of a config version newer than this build")
	}
}

func TestLoadMissingFileFails(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestValidateVersionBoundaries(t *testing.T) {
	if err := ValidateVersion(CurrentVersion); err != nil {
		t.Fatalf("current version should validate, got %v", err)
	}
	if err := ValidateVersion(CurrentVersion + 1); err == nil {
		t.Fatal("expected error for a version newer than this build")
	}
	if err := ValidateVersion(0); err == nil {
		t.Fatal("expected error for a missing/zero version")
	}
}
