// Package storage is the bot's small persistence layer.
//
// It keeps:
//   - an append-only audit trail of workflow outcomes
//   - job definitions of the local backend, reloaded on start
//
// Sessions are never persisted.
package storage
