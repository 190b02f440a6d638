// Package qinglong is a backend.Backend for Qinglong-style task panels
// speaking the "open" API with client credentials.
package qinglong

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"scriptbot/internal/backend"
	logx "scriptbot/pkg/logx"
)

const (
	maxResponseBytes = 1 << 20
	defaultTimeout   = 15 * time.Second
	defaultRate      = 5
	// tokenSkew renews a token slightly before the panel would reject it.
	tokenSkew = 30 * time.Second
)

type Config struct {
	BaseURL      string
	ClientID     string
	ClientSecret string
	ScriptPath   string
	Timeout      time.Duration
	RatePerSec   int
	ProxyURL     string
}

// Client talks to the panel. It caches the bearer token until expiry and
// refreshes it once when the panel answers 401.
type Client struct {
	cfg     Config
	base    *url.URL
	http    *http.Client
	limiter *rate.Limiter
	log     logx.Logger
	now     func() time.Time

	mu       sync.Mutex
	token    string
	tokenExp time.Time
}

var _ backend.Backend = (*Client)(nil)

func New(cfg Config, log logx.Logger) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"))
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("qinglong: invalid base url %q", cfg.BaseURL)
	}
	if cfg.ClientID == "" || cfg.ClientSecret == "" {
		return nil, errors.New("qinglong: client_id and client_secret are required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.RatePerSec <= 0 {
		cfg.RatePerSec = defaultRate
	}

	tr := http.DefaultTransport.(*http.Transport).Clone()
	if p := strings.TrimSpace(cfg.ProxyURL); p != "" {
		pu, err := url.Parse(p)
		if err != nil {
			return nil, fmt.Errorf("qinglong: invalid proxy url: %w", err)
		}
		tr.Proxy = http.ProxyURL(pu)
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Client{
		cfg:     cfg,
		base:    base,
		http:    &http.Client{Timeout: cfg.Timeout, Transport: tr},
		limiter: rate.NewLimiter(rate.Limit(cfg.RatePerSec), cfg.RatePerSec),
		log:     log.With(logx.String("comp", "qinglong")),
		now:     time.Now,
	}, nil
}

// envelope is the panel's response wrapper. Code 200 means success;
// anything else carries a human-readable message.
type envelope[T any] struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    T      `json:"data"`
}

// APIError is a non-success envelope. Its text is what the user sees.
type APIError struct {
	Status  int
	Code    int
	Message string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("qinglong: http %d (code %d)", e.Status, e.Code)
}

func (e *APIError) Is(target error) bool {
	return target == backend.ErrUnauthorized && (e.Status == http.StatusUnauthorized || e.Code == http.StatusUnauthorized)
}

type request struct {
	method string
	path   string
	query  url.Values
	body   any
	auth   bool
}

// do sends one request and decodes the envelope's data into T.
func do[T any](ctx context.Context, c *Client, r request) (T, error) {
	var zero T
	if err := c.limiter.Wait(ctx); err != nil {
		return zero, err
	}

	u := *c.base
	u.Path = strings.TrimRight(u.Path, "/") + r.path
	if len(r.query) > 0 {
		u.RawQuery = r.query.Encode()
	}

	var body io.Reader
	if r.body != nil {
		b, err := json.Marshal(r.body)
		if err != nil {
			return zero, fmt.Errorf("qinglong: marshal %s: %w", r.path, err)
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, r.method, u.String(), body)
	if err != nil {
		return zero, fmt.Errorf("qinglong: create %s request: %w", r.path, err)
	}
	req.Header.Set("Accept", "application/json")
	if r.body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if r.auth {
		tok, err := c.bearer(ctx)
		if err != nil {
			return zero, err
		}
		req.Header.Set("Authorization", "Bearer "+tok)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		// Drop the URL: the token request carries the secret in its query.
		var uerr *url.Error
		if errors.As(err, &uerr) {
			err = uerr.Err
		}
		return zero, fmt.Errorf("qinglong: %s request failed: %w", r.path, err)
	}
	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	_ = resp.Body.Close()
	if err != nil {
		return zero, fmt.Errorf("qinglong: read %s response: %w", r.path, err)
	}

	var env envelope[T]
	if err := json.Unmarshal(raw, &env); err != nil {
		if resp.StatusCode != http.StatusOK {
			return zero, &APIError{Status: resp.StatusCode}
		}
		return zero, fmt.Errorf("qinglong: decode %s response: %w", r.path, err)
	}
	if resp.StatusCode != http.StatusOK || env.Code != http.StatusOK {
		return zero, &APIError{Status: resp.StatusCode, Code: env.Code, Message: env.Message}
	}
	return env.Data, nil
}

// withAuth runs fn and retries it once with a fresh token on 401.
func withAuth[T any](ctx context.Context, c *Client, r request) (T, error) {
	r.auth = true
	out, err := do[T](ctx, c, r)
	if errors.Is(err, backend.ErrUnauthorized) {
		c.log.Debug("token rejected; refreshing", logx.String("path", r.path))
		c.invalidate()
		out, err = do[T](ctx, c, r)
	}
	return out, err
}

type tokenData struct {
	Token      string `json:"token"`
	TokenType  string `json:"token_type"`
	Expiration int64  `json:"expiration"` // unix seconds
}

func (c *Client) bearer(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.token != "" && c.now().Before(c.tokenExp) {
		return c.token, nil
	}

	q := url.Values{}
	q.Set("client_id", c.cfg.ClientID)
	q.Set("client_secret", c.cfg.ClientSecret)
	td, err := do[tokenData](ctx, c, request{method: http.MethodGet, path: "/open/auth/token", query: q})
	if err != nil {
		if errors.Is(err, backend.ErrUnauthorized) {
			return "", fmt.Errorf("qinglong: token: %w", backend.ErrUnauthorized)
		}
		return "", fmt.Errorf("qinglong: token: %w", err)
	}
	if td.Token == "" {
		return "", fmt.Errorf("qinglong: token: empty token: %w", backend.ErrUnauthorized)
	}

	exp := c.now().Add(time.Hour)
	if td.Expiration > 0 {
		exp = time.Unix(td.Expiration, 0)
	}
	c.token, c.tokenExp = td.Token, exp.Add(-tokenSkew)
	c.log.Debug("token acquired", logx.Any("expires", exp))
	return c.token, nil
}

func (c *Client) invalidate() {
	c.mu.Lock()
	c.token = ""
	c.tokenExp = time.Time{}
	c.mu.Unlock()
}
