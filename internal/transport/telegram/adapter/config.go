package adapter

import "time"

type Config struct {
	Token       string
	PollTimeout time.Duration

	// MaxFileBytes caps attachment downloads (0 = 20 MiB, the Bot API limit).
	MaxFileBytes int64
	// FetchAttempts bounds FetchFile retries on transient failures (0 = 3).
	FetchAttempts int
	// FetchBackoff is the initial delay between FetchFile attempts (0 = 500ms).
	FetchBackoff time.Duration
}

const botAPIFileLimit = 20 << 20

func (c Config) withDefaults() Config {
	if c.PollTimeout <= 0 {
		c.PollTimeout = 10 * time.Second
	}
	if c.MaxFileBytes <= 0 || c.MaxFileBytes > botAPIFileLimit {
		c.MaxFileBytes = botAPIFileLimit
	}
	if c.FetchAttempts <= 0 {
		c.FetchAttempts = 3
	}
	if c.FetchBackoff <= 0 {
		c.FetchBackoff = 500 * time.Millisecond
	}
	return c
}
