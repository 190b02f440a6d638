// Package cronexpr finds schedule expressions in script text.
//
// Extract is a heuristic over arbitrary file content, not a validator: it
// may pick up coincidental numeric runs. Its result is only a default the
// user can edit before a task is registered.
package cronexpr

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/robfig/cron/v3"
)

// DefaultSchedule is used when no expression is found: daily at midnight.
const DefaultSchedule = "0 0 * * *"

// cronLike matches 5 or 6 consecutive cron-ish fields. Any whitespace,
// newlines included, separates fields.
var cronLike = regexp.MustCompile(`(?:[\d*/,\-]+\s+){4,5}[\d*/,\-]+`)

// Extract returns the first 5-field cron expression found in text.
// A 6-field match is treated as having a leading seconds field, which is dropped.
func Extract(text string) (string, bool) {
	m := cronLike.FindString(text)
	if m == "" {
		return "", false
	}
	fields := strings.Fields(m)
	switch len(fields) {
	case 6:
		fields = fields[1:]
	case 5:
	default:
		return "", false
	}
	return strings.Join(fields, " "), true
}

// ScheduleOrDefault is Extract falling back to DefaultSchedule.
func ScheduleOrDefault(text string) string {
	if s, ok := Extract(text); ok {
		return s
	}
	return DefaultSchedule
}

var standard = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// Validate checks expr as a standard 5-field cron expression.
func Validate(expr string) error {
	expr = strings.TrimSpace(expr)
	if n := len(strings.Fields(expr)); n != 5 {
		return fmt.Errorf("schedule %q: want 5 fields, got %d", expr, n)
	}
	if _, err := standard.Parse(expr); err != nil {
		return fmt.Errorf("schedule %q: %w", expr, err)
	}
	return nil
}

// Parse returns the robfig schedule for a validated 5-field expression.
func Parse(expr string) (cron.Schedule, error) {
	if err := Validate(expr); err != nil {
		return nil, err
	}
	return standard.Parse(strings.TrimSpace(expr))
}
