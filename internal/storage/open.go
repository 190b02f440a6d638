package storage

import (
	"context"
	"fmt"
	"strings"

	logx "scriptbot/pkg/logx"
)

// Store is the persistence API used by the workflow audit sink and the
// local backend.
type Store interface {
	AppendAudit(ctx context.Context, e AuditEntry) error
	ListAudit(ctx context.Context, limit int) ([]AuditEntry, error)

	// PutJob inserts or replaces the job with the same name.
	PutJob(ctx context.Context, j JobRecord) error
	DeleteJob(ctx context.Context, name string) error
	ListJobs(ctx context.Context) ([]JobRecord, error)

	Close() error
}

// Open initializes the configured store.
// It returns (nil, nil) if storage is disabled.
func Open(cfg Config, log logx.Logger) (Store, error) {
	driver := strings.ToLower(strings.TrimSpace(cfg.Driver))
	if driver == "" || driver == "none" {
		return nil, nil
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	switch driver {
	case "sqlite", "sqlite3":
		return openSQLite(cfg, log)
	default:
		return nil, fmt.Errorf("unknown storage driver: %s", driver)
	}
}
