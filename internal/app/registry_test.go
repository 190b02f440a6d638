package app

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"scriptbot/internal/backend"
	"scriptbot/internal/backend/local"
	"scriptbot/internal/eventbus"
	"scriptbot/internal/session"
	"scriptbot/internal/storage"
	"scriptbot/internal/transport/fake"
	"scriptbot/internal/workflow"
	logx "scriptbot/pkg/logx"
)

func commandNames(a *App) map[string]time.Duration {
	out := map[string]time.Duration{}
	for _, c := range a.registry().Commands {
		out[c.Name] = c.Timeout
	}
	return out
}

func TestRegistryAddsOperatorCommands(t *testing.T) {
	t.Parallel()

	engine := workflow.New(workflow.Deps{
		Log:     logx.Nop(),
		Adapter: fake.New(),
		Store:   session.NewStore(nil),
		Backend: backend.NewDryRun(logx.Nop()),
		Bus:     eventbus.New(),
	}, workflow.Options{})

	bare := &App{engine: engine}
	names := commandNames(bare)
	for _, n := range []string{"jobs", "runjob", "deljob", "audit"} {
		if _, ok := names[n]; ok {
			t.Fatalf("%s registered without its component", n)
		}
	}
	if _, ok := names["start"]; !ok {
		t.Fatalf("workflow commands missing: %v", names)
	}

	dir := t.TempDir()
	store, err := storage.Open(storage.Config{Driver: "sqlite", Path: filepath.Join(dir, "bot.db")}, logx.Nop())
	if err != nil {
		t.Fatalf("open storage: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	runner, err := local.New(local.Config{Dir: filepath.Join(dir, "scripts"), RunTimeout: time.Minute}, store, logx.Nop())
	if err != nil {
		t.Fatalf("local.New: %v", err)
	}
	t.Cleanup(func() { runner.Stop(context.Background()) })

	full := &App{engine: engine, runner: runner, store: store}
	names = commandNames(full)
	for _, n := range []string{"jobs", "runjob", "deljob", "audit"} {
		if _, ok := names[n]; !ok {
			t.Fatalf("%s not registered: %v", n, names)
		}
	}
	if got := names["runjob"]; got != time.Minute+replyMargin {
		t.Fatalf("runjob timeout = %v", got)
	}
}
