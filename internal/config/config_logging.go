package config

// LoggingConfig controls the process-wide log/slog handler, matching
// teacher's level/format split.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug|info|warn|error
	Format string `yaml:"format"` // json|text
}
