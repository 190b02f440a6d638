// Package backend defines the task panel the bot hands finished workflows to.
package backend

import (
	"context"
	"errors"
)

// TaskParams is the payload handed to the backend when registering a job.
// Schedule is a 5-field cron expression (minute hour day month weekday);
// Name and Command are free text.
type TaskParams struct {
	Name     string `json:"name"`
	Command  string `json:"command"`
	Schedule string `json:"schedule"`
}

// Backend stores scripts and registers scheduled jobs.
//
// Both calls are fallible and not idempotent. Callers do not retry; an
// implementation may retry internally when it knows a request was not applied.
type Backend interface {
	UploadScript(ctx context.Context, fileName string, content []byte) error
	RegisterJob(ctx context.Context, p TaskParams) error
}

var (
	ErrUnauthorized = errors.New("backend: unauthorized")
	ErrInvalidName  = errors.New("backend: invalid script name")
)
