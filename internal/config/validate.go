package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

// Validate rejects configs that would fail at wiring time. It runs on the
// initial load and before every hot-reload commit.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Telegram.Token) == "" {
		return fmt.Errorf("telegram.token is required")
	}
	for _, f := range c.durationFields() {
		if _, err := ParseDurationField(f.path, f.raw); err != nil {
			return err
		}
	}
	if c.Workflow.MaxFileBytes < 0 {
		return fmt.Errorf("workflow.max_file_bytes must be >= 0")
	}
	if c.Workflow.Workers < 0 {
		return fmt.Errorf("workflow.workers must be >= 0")
	}
	for _, ext := range c.Workflow.AllowedExtensions {
		if !strings.HasPrefix(strings.TrimSpace(ext), ".") {
			return fmt.Errorf("workflow.allowed_extensions: %q must start with '.'", ext)
		}
	}

	switch d := strings.ToLower(strings.TrimSpace(c.Backend.Driver)); d {
	case "", "dryrun":
	case "qinglong":
		q := c.Backend.Qinglong
		if q == nil || strings.TrimSpace(q.BaseURL) == "" {
			return fmt.Errorf("backend.qinglong.base_url is required")
		}
		if _, err := url.ParseRequestURI(q.BaseURL); err != nil {
			return fmt.Errorf("backend.qinglong.base_url: %w", err)
		}
		if q.ClientID == "" || q.ClientSecret == "" {
			return fmt.Errorf("backend.qinglong.client_id and client_secret are required")
		}
		if q.ProxyURL != "" {
			if _, err := url.Parse(q.ProxyURL); err != nil {
				return fmt.Errorf("backend.qinglong.proxy_url: %w", err)
			}
		}
		if q.RatePerSec < 0 {
			return fmt.Errorf("backend.qinglong.rate_per_sec must be >= 0")
		}
	case "local":
		l := c.Backend.Local
		if l == nil || strings.TrimSpace(l.Dir) == "" {
			return fmt.Errorf("backend.local.dir is required")
		}
		if tz := strings.TrimSpace(l.Timezone); tz != "" {
			if _, err := time.LoadLocation(tz); err != nil {
				return fmt.Errorf("backend.local.timezone: invalid %q: %w", tz, err)
			}
		}
	default:
		return fmt.Errorf("backend.driver: unknown %q", d)
	}

	if s := c.Storage; s != nil {
		switch strings.ToLower(strings.TrimSpace(s.Driver)) {
		case "", "none":
		case "sqlite", "sqlite3":
			if strings.TrimSpace(s.Path) == "" {
				return fmt.Errorf("storage.path is required for sqlite")
			}
		default:
			return fmt.Errorf("storage.driver: unknown %q", s.Driver)
		}
	}
	return nil
}
