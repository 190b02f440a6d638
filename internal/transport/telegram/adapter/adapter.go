package adapter

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	tele "gopkg.in/telebot.v4"

	rtsup "scriptbot/internal/runtime/supervisor"
	kit "scriptbot/internal/transport"
	logx "scriptbot/pkg/logx"
)

const (
	dropReportEvery = 5 * time.Second
	stopGrace       = 2 * time.Second
)

// Adapter is the telebot implementation of transport.Adapter. Updates are
// handed to the channel given to Start without blocking the poller; when
// the consumer lags they are dropped and counted.
type Adapter struct {
	cfg Config
	log logx.Logger
	bot *tele.Bot

	mu  sync.Mutex
	out chan<- kit.Update
	sup *rtsup.Supervisor

	dropped atomic.Uint64

	menuMu  sync.Mutex
	menuKey string
}

func New(cfg Config, log logx.Logger) (*Adapter, error) {
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, errors.New("telegram token is empty")
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	a := &Adapter{cfg: cfg.withDefaults(), log: log}
	bot, err := tele.NewBot(tele.Settings{
		Token:  a.cfg.Token,
		Poller: &tele.LongPoller{Timeout: a.cfg.PollTimeout},
		OnError: func(err error, _ tele.Context) {
			a.log.Error("telebot error", logx.Err(err))
		},
	})
	if err != nil {
		return nil, err
	}
	a.bot = bot
	a.bot.Handle(tele.OnText, a.forward(func(c tele.Context) (kit.Update, bool) { return textUpdate(c.Message()) }))
	a.bot.Handle(tele.OnDocument, a.forward(func(c tele.Context) (kit.Update, bool) { return documentUpdate(c.Message()) }))
	a.bot.Handle(tele.OnCallback, a.forward(func(c tele.Context) (kit.Update, bool) {
		return callbackUpdate(c.Callback(), c.Message())
	}))
	return a, nil
}

func (a *Adapter) forward(conv func(tele.Context) (kit.Update, bool)) tele.HandlerFunc {
	return func(c tele.Context) error {
		if up, ok := conv(c); ok {
			a.emit(up)
		}
		return nil
	}
}

func (a *Adapter) emit(up kit.Update) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.out == nil {
		return
	}
	select {
	case a.out <- up:
	default:
		a.dropped.Add(1)
	}
}

// Start begins long polling and returns immediately. Calling it twice is a
// no-op. The poll loop is restarted if telebot returns on its own.
func (a *Adapter) Start(ctx context.Context, out chan<- kit.Update) error {
	a.mu.Lock()
	if a.sup != nil {
		a.mu.Unlock()
		return nil
	}
	a.out = out
	sup := rtsup.NewSupervisor(ctx,
		rtsup.WithLogger(a.log.With(logx.String("comp", "telegram.adapter"))),
		rtsup.WithCancelOnError(false),
	)
	a.sup = sup
	a.mu.Unlock()

	sup.Go0("updates.drop_report", func(c context.Context) { a.reportDrops(c, cap(out)) })
	sup.Go0("telebot.stop_on_cancel", func(c context.Context) {
		<-c.Done()
		a.bot.Stop()
	})
	sup.GoRestart("telebot.poll", func(context.Context) error {
		a.log.Info("polling started")
		a.bot.Start()
		a.log.Info("polling stopped")
		return nil
	},
		rtsup.WithRestartBackoff(500*time.Millisecond, 10*time.Second),
		rtsup.WithStopOnCleanExit(false),
	)
	return nil
}

func (a *Adapter) reportDrops(ctx context.Context, capacity int) {
	t := time.NewTicker(dropReportEvery)
	defer t.Stop()
	for {
		done := false
		select {
		case <-ctx.Done():
			done = true
		case <-t.C:
		}
		if n := a.dropped.Swap(0); n > 0 {
			a.log.Warn("incoming updates dropped", logx.Uint64("count", n), logx.Int("chan_cap", capacity))
		}
		if done {
			return
		}
	}
}

// Stop cancels polling and waits briefly for it to unwind. A long poll
// still in flight after stopGrace is abandoned.
func (a *Adapter) Stop(ctx context.Context) error {
	a.mu.Lock()
	sup := a.sup
	a.sup, a.out = nil, nil
	a.mu.Unlock()
	if sup == nil {
		return nil
	}

	a.log.Info("stopping")
	sup.Cancel()
	wctx, cancel := context.WithTimeout(ctx, stopGrace)
	defer cancel()
	if err := sup.Wait(wctx); err != nil {
		if wctx.Err() != nil {
			a.log.Warn("telegram stop timed out", logx.Err(err))
		} else {
			a.log.Debug("telegram stopped with error", logx.Err(err))
		}
	}
	return nil
}
