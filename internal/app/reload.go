package app

import (
	"context"
	"strings"

	"scriptbot/internal/config"
	logx "scriptbot/pkg/logx"
)

// reloadLoop applies hot-reloaded config. Sections wired once at startup
// are only reported.
func (a *App) reloadLoop(ctx context.Context) {
	sub := a.cfgm.Subscribe(8)
	defer a.cfgm.Unsubscribe(sub)

	lastApplied := a.cfgm.Get()
	for {
		select {
		case <-ctx.Done():
			return
		case newCfg, ok := <-sub:
			if !ok {
				return
			}
			// coalesce bursts: only the latest config matters
		drain:
			for {
				select {
				case newer := <-sub:
					if newer != nil {
						newCfg = newer
					}
				default:
					break drain
				}
			}
			a.apply(lastApplied, newCfg)
			lastApplied = newCfg
		}
	}
}

func (a *App) apply(oldCfg, newCfg *config.Config) {
	sections, attrs := config.SummarizeChange(oldCfg, newCfg)
	if len(sections) == 0 {
		a.log.Info("config reloaded (no changes)")
		return
	}
	if restart := config.RestartRequired(sections); len(restart) > 0 {
		a.log.Warn("config changed; restart required for changes to take effect",
			logx.String("sections", strings.Join(restart, ",")))
	}

	a.logs.Apply(mapLogging(newCfg))
	a.router.SetAllowed(newCfg.Telegram.AllowedUserIDs)

	wf, err := mapWorkflow(newCfg)
	if err != nil {
		a.log.Warn("invalid workflow config; keeping previous", logx.Err(err))
	} else {
		a.engine.SetOptions(wf.Options)
		a.router.SetHandlerTimeout(wf.HandlerTimeout)
	}

	fields := append([]logx.Field{logx.String("changed", strings.Join(sections, ","))}, attrs...)
	a.log.Info("config reloaded", fields...)
}
