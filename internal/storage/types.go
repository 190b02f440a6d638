package storage

import (
	"errors"
	"time"
)

var (
	ErrDisabled = errors.New("storage disabled")
	ErrNotFound = errors.New("storage: not found")
)

// Config configures storage.
//
// Driver values:
//   - "sqlite": SQLite database file (pure Go driver)
//
// If Driver is empty or "none", storage is disabled.
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // 0 means default
}

// AuditEntry records one workflow outcome.
type AuditEntry struct {
	At       time.Time
	UserID   int64
	ChatID   int64
	Action   string // event topic, e.g. workflow.task_created
	FileName string
	Target   string // task name when known
	Error    string
	MetaJSON string
}

// JobRecord is a scheduled job owned by the local backend.
type JobRecord struct {
	Name      string
	Command   string
	Schedule  string
	CreatedAt time.Time
}
