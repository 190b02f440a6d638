package qinglong

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"scriptbot/internal/backend"
	logx "scriptbot/pkg/logx"
)

type fakePanel struct {
	t *testing.T

	mu        sync.Mutex
	tokens    atomic.Int32
	validTok  string
	scripts   []scriptBody
	crons     []backend.TaskParams
	cronReply func(w http.ResponseWriter)
}

func (p *fakePanel) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	switch r.URL.Path {
	case "/open/auth/token":
		if r.URL.Query().Get("client_id") != "id" || r.URL.Query().Get("client_secret") != "secret" {
			_, _ = w.Write([]byte(`{"code":401,"message":"bad client"}`))
			return
		}
		n := p.tokens.Add(1)
		p.mu.Lock()
		p.validTok = "tok" + string(rune('0'+n))
		tok := p.validTok
		p.mu.Unlock()
		_ = json.NewEncoder(w).Encode(map[string]any{"code": 200, "data": map[string]any{"token": tok, "token_type": "Bearer"}})
		return
	}

	p.mu.Lock()
	ok := r.Header.Get("Authorization") == "Bearer "+p.validTok
	p.mu.Unlock()
	if !ok {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"code":401,"message":"UnauthorizedError"}`))
		return
	}

	switch r.URL.Path {
	case "/open/scripts":
		var b scriptBody
		if err := json.NewDecoder(r.Body).Decode(&b); err != nil {
			p.t.Errorf("decode script: %v", err)
		}
		p.mu.Lock()
		p.scripts = append(p.scripts, b)
		p.mu.Unlock()
		_, _ = w.Write([]byte(`{"code":200,"data":null}`))
	case "/open/crons":
		if p.cronReply != nil {
			p.cronReply(w)
			return
		}
		var b backend.TaskParams
		if err := json.NewDecoder(r.Body).Decode(&b); err != nil {
			p.t.Errorf("decode cron: %v", err)
		}
		p.mu.Lock()
		p.crons = append(p.crons, b)
		p.mu.Unlock()
		_, _ = w.Write([]byte(`{"code":200,"data":{"id":1}}`))
	default:
		http.NotFound(w, r)
	}
}

func newTestClient(t *testing.T, p *fakePanel, secret string) *Client {
	t.Helper()
	srv := httptest.NewServer(p)
	t.Cleanup(srv.Close)
	c, err := New(Config{BaseURL: srv.URL, ClientID: "id", ClientSecret: secret, ScriptPath: "bot", RatePerSec: 100}, logx.Nop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c
}

func TestUploadAndRegister(t *testing.T) {
	t.Parallel()

	p := &fakePanel{t: t}
	c := newTestClient(t, p, "secret")
	ctx := context.Background()

	if err := c.UploadScript(ctx, "a.py", []byte("print(1)")); err != nil {
		t.Fatalf("UploadScript: %v", err)
	}
	want := backend.TaskParams{Name: "a.py", Command: "task a.py", Schedule: "*/5 * * * *"}
	if err := c.RegisterJob(ctx, want); err != nil {
		t.Fatalf("RegisterJob: %v", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.scripts) != 1 || p.scripts[0].FileName != "a.py" || p.scripts[0].Path != "bot" || p.scripts[0].Content != "print(1)" {
		t.Fatalf("scripts = %+v", p.scripts)
	}
	if len(p.crons) != 1 || p.crons[0] != want {
		t.Fatalf("crons = %+v", p.crons)
	}
	if n := p.tokens.Load(); n != 1 {
		t.Fatalf("token fetched %d times, want cached single fetch", n)
	}
}

func TestRefreshesTokenOnce(t *testing.T) {
	t.Parallel()

	p := &fakePanel{t: t}
	c := newTestClient(t, p, "secret")
	ctx := context.Background()
	if err := c.UploadScript(ctx, "a.py", nil); err != nil {
		t.Fatalf("UploadScript: %v", err)
	}
	// panel-side revocation
	p.mu.Lock()
	p.validTok = "revoked"
	p.mu.Unlock()

	if err := c.UploadScript(ctx, "b.py", nil); err != nil {
		t.Fatalf("UploadScript after revoke: %v", err)
	}
	if n := p.tokens.Load(); n != 2 {
		t.Fatalf("token fetched %d times, want 2", n)
	}
}

func TestBadCredentials(t *testing.T) {
	t.Parallel()

	c := newTestClient(t, &fakePanel{t: t}, "wrong")
	err := c.UploadScript(context.Background(), "a.py", nil)
	if !errors.Is(err, backend.ErrUnauthorized) {
		t.Fatalf("err = %v, want ErrUnauthorized", err)
	}
	if strings.Contains(err.Error(), "wrong") {
		t.Fatalf("error leaks secret: %v", err)
	}
}

func TestPanelMessageIsErrorText(t *testing.T) {
	t.Parallel()

	p := &fakePanel{t: t, cronReply: func(w http.ResponseWriter) {
		_, _ = w.Write([]byte(`{"code":400,"message":"invalid cron expression"}`))
	}}
	c := newTestClient(t, p, "secret")
	err := c.RegisterJob(context.Background(), backend.TaskParams{Name: "x", Command: "task x", Schedule: "bad"})
	if err == nil || err.Error() != "invalid cron expression" {
		t.Fatalf("err = %v", err)
	}
}

func TestInvalidScriptName(t *testing.T) {
	t.Parallel()

	c := newTestClient(t, &fakePanel{t: t}, "secret")
	for _, name := range []string{"", "../x.py", "dir/x.py"} {
		if err := c.UploadScript(context.Background(), name, nil); !errors.Is(err, backend.ErrInvalidName) {
			t.Fatalf("UploadScript(%q) = %v", name, err)
		}
	}
}

func TestNewValidates(t *testing.T) {
	t.Parallel()

	if _, err := New(Config{BaseURL: "not a url", ClientID: "a", ClientSecret: "b"}, logx.Nop()); err == nil {
		t.Fatalf("expected base url error")
	}
	if _, err := New(Config{BaseURL: "http://x"}, logx.Nop()); err == nil {
		t.Fatalf("expected credentials error")
	}
}
