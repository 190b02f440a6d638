package workflow

import (
	"context"
	"time"

	"scriptbot/internal/eventbus"
	"scriptbot/internal/storage"
	logx "scriptbot/pkg/logx"
)

const auditWriteTimeout = 2 * time.Second

// RunAudit copies workflow outcomes from the bus into storage until ctx is
// done. Write failures are logged and skipped.
func RunAudit(ctx context.Context, bus eventbus.Bus, st storage.Store, log logx.Logger) error {
	ch, unsubscribe := bus.Subscribe(64)
	defer unsubscribe()
	log = log.With(logx.String("comp", "audit"))

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-ch:
			if !ok {
				return nil
			}
			o, ok := ev.Data.(eventbus.Outcome)
			if !ok {
				continue
			}
			wctx, cancel := context.WithTimeout(ctx, auditWriteTimeout)
			err := st.AppendAudit(wctx, storage.AuditEntry{
				At:       ev.Time,
				UserID:   o.UserID,
				ChatID:   o.ChatID,
				Action:   ev.Type,
				FileName: o.FileName,
				Target:   o.Name,
				Error:    o.Err,
			})
			cancel()
			if err != nil {
				log.Warn("audit write failed", logx.String("action", ev.Type), logx.Err(err))
			}
		}
	}
}
