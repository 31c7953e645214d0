// Package automation implements the scheduler, webhook dispatch, and
// table-trigger fan-out that turn persisted declarations (internal/
// declare) into running scripts (spec.md §4.7).
package automation

import (
	"fmt"
	"log/slog"
	"strings"
)

// NormalizeCron rewrites a harvested SET SCHEDULE expression into the
// 5-field form github.com/robfig/cron/v3's standard parser expects,
// per the exact table spec.md §4.7 gives: a 6-field expression drops
// its leading seconds field, a 4-field expression gets day-of-week
// appended as "*" (logged, since the implicit default is a silent
// behavior change), and a 5-field expression passes through unchanged.
// Any other field count is rejected.
func NormalizeCron(expr string, logger *slog.Logger) (string, error) {
	if logger == nil {
		logger = slog.Default()
	}
	fields := strings.Fields(strings.TrimSpace(expr))
	switch len(fields) {
	case 5:
		return strings.Join(fields, " "), nil
	case 6:
		return strings.Join(fields[1:], " "), nil
	case 4:
		logger.Warn("automation: 4-field cron expression defaulted day-of-week to *", "expr", expr)
		return strings.Join(append(fields, "*"), " "), nil
	default:
		return "", fmt.Errorf("automation: cron expression %q has %d fields, want 4, 5, or 6", expr, len(fields))
	}
}
