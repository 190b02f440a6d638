package workflow

import (
	"context"
	"time"

	"scriptbot/internal/backend"
	"scriptbot/internal/eventbus"
	"scriptbot/internal/session"
	logx "scriptbot/pkg/logx"
)

// complete hands the session to the backend: upload, then register when p is
// set, then delete. Any failure is terminal; the session is deleted either
// way and the backend's error text is shown unchanged.
func (e *Engine) complete(ctx context.Context, ev Event, sess session.Session, p *backend.TaskParams) string {
	// claim the session: once disarmed no expiry can run, and an expiry
	// that already ran owns the outcome
	if !e.store.Disarm(ev.UserID) {
		_, _ = e.show(ctx, ev.Chat, ev.host(), noticeCard(TextSessionExpired))
		return TextSessionExpired
	}

	log := e.log.With(logx.Int64("user_id", ev.UserID), logx.String("file", sess.FileName))
	start := time.Now()

	fail := func(step string, err error) string {
		e.store.Delete(ev.UserID)
		log.Warn(step+" failed", logx.Err(err), logx.Duration("took", time.Since(start)))
		_, _ = e.show(ctx, ev.Chat, ev.host(), failedCard(step, err))
		var params backend.TaskParams
		if p != nil {
			params = *p
		}
		e.publish(eventbus.TopicFailed, sess, params, err)
		return step + " failed"
	}

	if err := e.backend.UploadScript(ctx, sess.FileName, sess.Content); err != nil {
		return fail("upload", err)
	}
	if p == nil {
		e.store.Delete(ev.UserID)
		log.Info("script uploaded", logx.Duration("took", time.Since(start)))
		_, _ = e.show(ctx, ev.Chat, ev.host(), uploadedOnlyCard(sess.FileName))
		e.publish(eventbus.TopicUploaded, sess, backend.TaskParams{}, nil)
		return "uploaded"
	}

	if err := e.backend.RegisterJob(ctx, *p); err != nil {
		return fail("register", err)
	}
	e.store.Delete(ev.UserID)
	log.Info("task created",
		logx.String("name", p.Name),
		logx.String("schedule", p.Schedule),
		logx.Duration("took", time.Since(start)),
	)
	_, _ = e.show(ctx, ev.Chat, ev.host(), createdCard(*p))
	e.publish(eventbus.TopicTaskCreated, sess, *p, nil)
	return "task created"
}
