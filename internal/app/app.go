// Package app wires configuration, transport, workflow and backend into a
// running bot and owns their lifecycle.
package app

import (
	"context"
	"fmt"
	"time"

	"scriptbot/internal/admin"
	"scriptbot/internal/backend/local"
	"scriptbot/internal/config"
	"scriptbot/internal/eventbus"
	"scriptbot/internal/runtime/supervisor"
	"scriptbot/internal/session"
	"scriptbot/internal/storage"
	kit "scriptbot/internal/transport"
	telegram "scriptbot/internal/transport/telegram/adapter"
	"scriptbot/internal/transport/telegram/router"
	"scriptbot/internal/workflow"
	logx "scriptbot/pkg/logx"
)

type App struct {
	cfgm *config.ConfigManager
	sup  *supervisor.Supervisor

	log   logx.Logger
	logs  *logx.Service
	bus   eventbus.Bus
	store storage.Store

	adapter kit.Adapter
	router  *router.Router
	engine  *workflow.Engine
	runner  *local.Runner

	updates chan kit.Update
}

func New(cfgPath string) (*App, error) {
	cfgm := config.NewConfigManager(cfgPath)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, err
	}

	logSvc, log := logx.New(mapLogging(cfg))
	log = log.With(logx.String("comp", "app"))

	pollTimeout, err := config.ParseDurationOrDefault("telegram.poll_timeout", cfg.Telegram.PollTimeout, defaultPollTimeout)
	if err != nil {
		return nil, err
	}
	wf, err := mapWorkflow(cfg)
	if err != nil {
		return nil, err
	}
	ad, err := telegram.New(telegram.Config{
		Token:        cfg.Telegram.Token,
		PollTimeout:  pollTimeout,
		MaxFileBytes: wf.Options.MaxFileBytes,
	}, log.With(logx.String("comp", "telegram")))
	if err != nil {
		return nil, err
	}

	var store storage.Store
	if sc, enabled, err := mapStorageConfig(cfg); err != nil {
		return nil, err
	} else if enabled {
		st, err := storage.Open(sc, log.With(logx.String("comp", "storage")))
		if err != nil {
			return nil, err
		}
		store = st
		log.Info("storage enabled", logx.String("driver", sc.Driver), logx.String("path", sc.Path))
	}

	be, runner, driver, err := newBackend(cfg, store, log)
	if err != nil {
		if store != nil {
			_ = store.Close()
		}
		return nil, err
	}
	log.Info("backend selected", logx.String("driver", driver))

	bus := eventbus.New()
	engine := workflow.New(workflow.Deps{
		Log:     log,
		Adapter: ad,
		Store:   session.NewStore(session.SystemClock()),
		Backend: be,
		Bus:     bus,
	}, wf.Options)

	r := router.New(log, ad, router.Options{Workers: wf.Workers, HandlerTimeout: wf.HandlerTimeout})
	r.SetAllowed(cfg.Telegram.AllowedUserIDs)

	return &App{
		cfgm:    cfgm,
		log:     log,
		logs:    logSvc,
		bus:     bus,
		store:   store,
		adapter: ad,
		router:  r,
		engine:  engine,
		runner:  runner,
		updates: make(chan kit.Update, 256),
	}, nil
}

// Done is closed when the app supervisor context is canceled (fatal error or Stop()).
func (a *App) Done() <-chan struct{} {
	if a.sup == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return a.sup.Context().Done()
}

// Err returns the first fatal error observed by the supervisor (if any).
func (a *App) Err() error {
	if a.sup == nil {
		return nil
	}
	return a.sup.Err()
}

func (a *App) Start(ctx context.Context) error {
	a.sup = supervisor.NewSupervisor(ctx,
		supervisor.WithLogger(a.log),
		supervisor.WithCancelOnError(true),
	)
	a.cfgm.SetLogger(a.log.With(logx.String("comp", "config")))
	a.cfgm.SetValidator(func(_ context.Context, cfg *config.Config) error {
		if _, err := mapWorkflow(cfg); err != nil {
			return err
		}
		_, _, err := mapStorageConfig(cfg)
		return err
	})

	runCtx := a.sup.Context()
	if a.runner != nil {
		if err := a.runner.Start(runCtx); err != nil {
			return fmt.Errorf("local backend: %w", err)
		}
	}

	a.router.SetRegistry(runCtx, a.registry())
	if err := a.adapter.Start(runCtx, a.updates); err != nil {
		return err
	}
	a.sup.Go("router", func(c context.Context) error {
		return a.router.Run(c, a.updates)
	})

	if a.store != nil {
		a.sup.GoRestart("audit", func(c context.Context) error {
			return workflow.RunAudit(c, a.bus, a.store, a.log)
		}, supervisor.WithRestartBackoff(time.Second, 30*time.Second))
	}
	a.sup.Go0("eventbus.log", a.logEvents)
	a.sup.Go0("config.reload", a.reloadLoop)
	a.sup.Go("config.watch", func(c context.Context) error {
		return a.cfgm.Watch(c)
	})

	notifyReady(a.log)
	a.log.Info("app started")
	return nil
}

// replyMargin leaves room to report a job run that used its whole timeout.
const replyMargin = 10 * time.Second

// registry is the workflow's routes plus operator commands for the
// components that are enabled.
func (a *App) registry() router.Registry {
	reg := a.engine.Registry()
	var deps admin.Deps
	if a.runner != nil {
		deps.Jobs = a.runner
		deps.RunTimeout = a.runner.RunTimeout() + replyMargin
	}
	if a.store != nil {
		deps.Audit = a.store
	}
	reg.Commands = append(reg.Commands, admin.Commands(deps)...)
	return reg
}

// logEvents mirrors workflow outcomes into the log.
func (a *App) logEvents(ctx context.Context) {
	events, unsub := a.bus.Subscribe(128)
	defer unsub()
	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-events:
			if !ok {
				return
			}
			o, _ := e.Data.(eventbus.Outcome)
			a.log.Debug("event",
				logx.String("type", e.Type),
				logx.Int64("user_id", o.UserID),
				logx.String("file", o.FileName),
			)
		}
	}
}
