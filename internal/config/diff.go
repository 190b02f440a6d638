package config

import (
	"reflect"
	"strings"

	logx "scriptbot/pkg/logx"
)

// SummarizeChange returns the changed top-level sections and safe log
// fields describing them (never tokens or secrets).
func SummarizeChange(oldCfg, newCfg *Config) ([]string, []logx.Field) {
	if oldCfg == nil {
		oldCfg = &Config{}
	}
	if newCfg == nil {
		newCfg = &Config{}
	}
	changed := make([]string, 0, 5)
	attrs := make([]logx.Field, 0, 10)

	if oldCfg.Telegram.Token != newCfg.Telegram.Token ||
		strings.TrimSpace(oldCfg.Telegram.PollTimeout) != strings.TrimSpace(newCfg.Telegram.PollTimeout) ||
		!reflect.DeepEqual(oldCfg.Telegram.AllowedUserIDs, newCfg.Telegram.AllowedUserIDs) {
		changed = append(changed, "telegram")
		attrs = append(attrs, logx.Int("telegram.allowed_users", len(newCfg.Telegram.AllowedUserIDs)))
	}
	if !reflect.DeepEqual(oldCfg.Logging, newCfg.Logging) {
		changed = append(changed, "logging")
		attrs = append(attrs,
			logx.String("logging.level", newCfg.Logging.Level),
			logx.Bool("logging.file_enabled", newCfg.Logging.File.Enabled),
		)
	}
	if !reflect.DeepEqual(oldCfg.Workflow, newCfg.Workflow) {
		changed = append(changed, "workflow")
		attrs = append(attrs,
			logx.String("workflow.edit_timeout", newCfg.Workflow.EditTimeout),
			logx.Int("workflow.extensions", len(newCfg.Workflow.AllowedExtensions)),
		)
	}
	if !reflect.DeepEqual(oldCfg.Backend, newCfg.Backend) {
		changed = append(changed, "backend")
		attrs = append(attrs, logx.String("backend.driver", newCfg.Backend.Driver))
	}
	if !reflect.DeepEqual(oldCfg.Storage, newCfg.Storage) {
		changed = append(changed, "storage")
	}
	return changed, attrs
}

// RestartRequired reports sections whose change only takes effect after a
// restart (transport, backend and storage are wired once at startup).
func RestartRequired(changed []string) []string {
	var out []string
	for _, s := range changed {
		switch s {
		case "telegram", "backend", "storage":
			out = append(out, s)
		}
	}
	return out
}
