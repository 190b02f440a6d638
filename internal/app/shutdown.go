package app

import (
	"context"
	"fmt"
	"time"

	logx "scriptbot/pkg/logx"
)

// stopStep is one bounded stage of shutdown. Stages run in order; one that
// overruns its budget is abandoned and the next begins.
type stopStep struct {
	name   string
	budget time.Duration
	run    func(context.Context) error
}

func (a *App) stopSteps() []stopStep {
	return []stopStep{
		{"adapter", 2 * time.Second, a.adapter.Stop},
		{"local.runner", 3 * time.Second, func(c context.Context) error {
			if a.runner != nil {
				a.runner.Stop(c)
			}
			return nil
		}},
		{"supervisor", 3 * time.Second, a.sup.Wait},
		{"storage", time.Second, func(context.Context) error {
			if a.store == nil {
				return nil
			}
			return a.store.Close()
		}},
	}
}

// Stop cancels every component and tears them down in dependency order:
// no new updates, no scheduled runs, drain goroutines, close storage.
func (a *App) Stop(ctx context.Context, reason StopReason) error {
	if a.sup == nil {
		return nil
	}
	a.log.Info("stopping", logx.String("reason", string(reason)))
	notifyStopping(a.log)
	a.sup.Cancel()

	for _, st := range a.stopSteps() {
		a.runStep(ctx, st)
	}

	a.log.Info("stopped")
	if a.logs != nil {
		_ = a.logs.Close()
	}
	return nil
}

func (a *App) runStep(ctx context.Context, st stopStep) {
	log := a.log.With(logx.String("step", st.name))
	budget := st.budget
	if dl, ok := ctx.Deadline(); ok {
		budget = min(budget, time.Until(dl))
	}
	sctx, cancel := context.WithTimeout(ctx, budget)
	defer cancel()

	start := time.Now()
	res := make(chan error, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				res <- fmt.Errorf("panic: %v", r)
			}
		}()
		res <- st.run(sctx)
	}()

	select {
	case err := <-res:
		if err != nil {
			log.Warn("stop step failed", logx.Err(err))
		}
		log.Debug("stop step done", logx.Duration("took", time.Since(start)))
	case <-sctx.Done():
		log.Warn("stop step overran, continuing", logx.Duration("elapsed", time.Since(start)))
	}
}
