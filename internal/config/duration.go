package config

import (
	"fmt"
	"strings"
	"time"
)

// ParseDurationField parses an optional duration string found at path.
// Empty means zero. Negative values are rejected.
func ParseDurationField(path, raw string) (time.Duration, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("%s: %q is not a duration (want e.g. \"30s\" or \"5m\")", path, raw)
	}
	if d < 0 {
		return 0, fmt.Errorf("%s: %q is negative", path, raw)
	}
	return d, nil
}

// ParseDurationOrDefault is ParseDurationField with def standing in for an
// empty or zero value.
func ParseDurationOrDefault(path, raw string, def time.Duration) (time.Duration, error) {
	d, err := ParseDurationField(path, raw)
	if err != nil || d > 0 {
		return d, err
	}
	return def, nil
}

type durationField struct {
	path string
	raw  string
}

// durationFields lists every duration string present in c.
func (c *Config) durationFields() []durationField {
	out := []durationField{
		{"telegram.poll_timeout", c.Telegram.PollTimeout},
		{"workflow.edit_timeout", c.Workflow.EditTimeout},
		{"workflow.handler_timeout", c.Workflow.HandlerTimeout},
	}
	if q := c.Backend.Qinglong; q != nil {
		out = append(out, durationField{"backend.qinglong.timeout", q.Timeout})
	}
	if l := c.Backend.Local; l != nil {
		out = append(out, durationField{"backend.local.run_timeout", l.RunTimeout})
	}
	if s := c.Storage; s != nil {
		out = append(out, durationField{"storage.busy_timeout", s.BusyTimeout})
	}
	return out
}
