package app

import (
	"fmt"
	"strings"
	"time"

	"scriptbot/internal/backend"
	"scriptbot/internal/backend/local"
	"scriptbot/internal/backend/qinglong"
	"scriptbot/internal/config"
	"scriptbot/internal/storage"
	"scriptbot/internal/workflow"
	logx "scriptbot/pkg/logx"
)

const (
	defaultPollTimeout    = 10 * time.Second
	defaultHandlerTimeout = 60 * time.Second
	defaultBusyTimeout    = time.Second
)

func mapLogging(cfg *config.Config) logx.Config {
	return logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
	}
}

// mapStorageConfig reports enabled=false when storage is absent or "none".
func mapStorageConfig(cfg *config.Config) (storage.Config, bool, error) {
	if cfg == nil || cfg.Storage == nil {
		return storage.Config{}, false, nil
	}
	sc := cfg.Storage
	driver := strings.ToLower(strings.TrimSpace(sc.Driver))
	if driver == "" || driver == "none" {
		return storage.Config{}, false, nil
	}
	path := strings.TrimSpace(sc.Path)
	if path == "" {
		return storage.Config{}, false, fmt.Errorf("storage.path is required when storage.driver=%s", driver)
	}
	busy, err := config.ParseDurationOrDefault("storage.busy_timeout", sc.BusyTimeout, defaultBusyTimeout)
	if err != nil {
		return storage.Config{}, false, err
	}
	return storage.Config{Driver: driver, Path: path, BusyTimeout: busy}, true, nil
}

// workflowSettings is the part of the workflow section applied at runtime.
type workflowSettings struct {
	Options        workflow.Options
	HandlerTimeout time.Duration
	Workers        int
}

func mapWorkflow(cfg *config.Config) (workflowSettings, error) {
	w := cfg.Workflow
	edit, err := config.ParseDurationOrDefault("workflow.edit_timeout", w.EditTimeout, workflow.DefaultEditTimeout)
	if err != nil {
		return workflowSettings{}, err
	}
	ht, err := config.ParseDurationOrDefault("workflow.handler_timeout", w.HandlerTimeout, defaultHandlerTimeout)
	if err != nil {
		return workflowSettings{}, err
	}
	return workflowSettings{
		Options: workflow.Options{
			EditTimeout:       edit,
			AllowedExtensions: w.AllowedExtensions,
			MaxFileBytes:      w.MaxFileBytes,
		},
		HandlerTimeout: ht,
		Workers:        w.Workers,
	}, nil
}

func mapQinglong(q *config.QinglongConfig) (qinglong.Config, error) {
	if q == nil {
		return qinglong.Config{}, fmt.Errorf("backend.qinglong is required when backend.driver=qinglong")
	}
	timeout, err := config.ParseDurationField("backend.qinglong.timeout", q.Timeout)
	if err != nil {
		return qinglong.Config{}, err
	}
	return qinglong.Config{
		BaseURL:      q.BaseURL,
		ClientID:     q.ClientID,
		ClientSecret: q.ClientSecret,
		ScriptPath:   q.ScriptPath,
		Timeout:      timeout,
		RatePerSec:   q.RatePerSec,
		ProxyURL:     q.ProxyURL,
	}, nil
}

func mapLocal(l *config.LocalConfig) (local.Config, error) {
	if l == nil {
		return local.Config{}, fmt.Errorf("backend.local is required when backend.driver=local")
	}
	rt, err := config.ParseDurationField("backend.local.run_timeout", l.RunTimeout)
	if err != nil {
		return local.Config{}, err
	}
	return local.Config{Dir: l.Dir, Timezone: l.Timezone, RunTimeout: rt}, nil
}

// newBackend builds the configured task backend. The local runner is also
// returned so the app can start and stop its scheduler.
func newBackend(cfg *config.Config, store storage.Store, log logx.Logger) (backend.Backend, *local.Runner, string, error) {
	driver := strings.ToLower(strings.TrimSpace(cfg.Backend.Driver))
	switch driver {
	case "", "dryrun":
		return backend.NewDryRun(log.With(logx.String("comp", "backend.dryrun"))), nil, "dryrun", nil
	case "qinglong":
		qc, err := mapQinglong(cfg.Backend.Qinglong)
		if err != nil {
			return nil, nil, driver, err
		}
		c, err := qinglong.New(qc, log.With(logx.String("comp", "backend.qinglong")))
		if err != nil {
			return nil, nil, driver, err
		}
		return c, nil, driver, nil
	case "local":
		lc, err := mapLocal(cfg.Backend.Local)
		if err != nil {
			return nil, nil, driver, err
		}
		if store == nil {
			log.Warn("local backend without storage; jobs are lost on restart")
		}
		r, err := local.New(lc, store, log.With(logx.String("comp", "backend.local")))
		if err != nil {
			return nil, nil, driver, err
		}
		return r, r, driver, nil
	default:
		return nil, nil, driver, fmt.Errorf("unknown backend.driver: %s", driver)
	}
}
