package workflow

import (
	"context"
	"fmt"
	"time"

	"scriptbot/internal/backend"
	"scriptbot/internal/eventbus"
	"scriptbot/internal/session"
	logx "scriptbot/pkg/logx"
	"scriptbot/pkg/tgui"
)

const expiryNoticeTimeout = 10 * time.Second

// HandleCallback handles a button press. The returned notice is meant for
// the callback acknowledgement (may be empty).
func (e *Engine) HandleCallback(ctx context.Context, ev Event, action string) (string, error) {
	sess, ok := e.store.Get(ev.UserID)
	if !ok {
		// buttons of a dead session are useless; replace them with the notice
		_, _ = e.show(ctx, ev.Chat, ev.host(), noticeCard(TextSessionExpired))
		return TextSessionExpired, nil
	}
	log := e.log.With(
		logx.Int64("user_id", ev.UserID),
		logx.String("action", action),
		logx.String("stage", sess.Stage.StageName()),
	)
	log.Debug("callback")

	switch action {
	case ActionEnd:
		return e.end(ctx, ev, "Session ended."), nil
	case ActionCreate:
		next, ok := e.advance(ev.UserID, isStage[session.Uploaded], session.AwaitingModifyDecision{})
		if !ok {
			return e.stale(ev)
		}
		e.present(ctx, ev, modifyCard(next))
		return "", nil
	case ActionUpload:
		if _, ok := sess.Stage.(session.Uploaded); !ok {
			return e.stale(ev)
		}
		return e.complete(ctx, ev, sess, nil), nil
	case ActionModifyNo:
		if _, ok := sess.Stage.(session.AwaitingModifyDecision); !ok {
			return e.stale(ev)
		}
		p := sess.Defaults
		return e.complete(ctx, ev, sess, &p), nil
	case ActionModifyYes:
		return e.startEdit(ctx, ev, isStage[session.AwaitingModifyDecision], sess.Defaults)
	case ActionEdit:
		cand, ok := sess.Candidate()
		if !ok {
			return e.stale(ev)
		}
		return e.startEdit(ctx, ev, isStage[session.AwaitingConfirmation], cand)
	case ActionConfirm:
		cand, ok := sess.Candidate()
		if !ok {
			return e.stale(ev)
		}
		return e.complete(ctx, ev, sess, &cand), nil
	case ActionCancel:
		if _, ok := sess.Stage.(session.AwaitingConfirmation); !ok {
			return e.stale(ev)
		}
		return e.end(ctx, ev, "Task cancelled."), nil
	default:
		return "", fmt.Errorf("unknown action %q", action)
	}
}

func isStage[T session.Stage](st session.Stage) bool {
	_, ok := st.(T)
	return ok
}

// stale answers a button that does not belong to the current stage, e.g. a
// duplicate press. State is left alone.
func (e *Engine) stale(ev Event) (string, error) {
	e.log.Debug("stale button", logx.Int64("user_id", ev.UserID))
	return TextStaleButton, nil
}

// advance moves the session to next if its current stage satisfies from.
func (e *Engine) advance(userID int64, from func(session.Stage) bool, next session.Stage) (session.Session, bool) {
	var (
		out   session.Session
		moved bool
	)
	e.store.Update(userID, func(s *session.Session) {
		if !from(s.Stage) {
			return
		}
		s.Stage = next
		out, moved = *s, true
	})
	return out, moved
}

// present shows a prompt on the button host (or a new message) and records
// it as the session's prompt.
func (e *Engine) present(ctx context.Context, ev Event, msg tgui.Message) {
	ref, err := e.show(ctx, ev.Chat, ev.host(), msg)
	if err == nil {
		e.setPrompt(ev.UserID, ref)
	}
}

func (e *Engine) startEdit(ctx context.Context, ev Event, from func(session.Stage) bool, draft backend.TaskParams) (string, error) {
	if _, ok := e.advance(ev.UserID, from, session.AwaitingJSONParams{Draft: draft}); !ok {
		return e.stale(ev)
	}
	timeout := e.options().EditTimeout
	e.store.ArmExpiry(ev.UserID, timeout, e.onExpire)
	e.present(ctx, ev, templateCard(draft, timeout.String()))
	return "", nil
}

// end deletes the session on the user's request.
func (e *Engine) end(ctx context.Context, ev Event, text string) string {
	sess, ok := e.store.Get(ev.UserID)
	if !e.store.Delete(ev.UserID) {
		return TextSessionExpired
	}
	_, _ = e.show(ctx, ev.Chat, ev.host(), noticeCard(text))
	if ok && sess.Prompt.MessageID != ev.MessageID {
		e.dropPrompt(ctx, sess.Prompt)
	}
	e.publish(eventbus.TopicSessionCancelled, sess, backend.TaskParams{}, nil)
	e.log.Info("session ended", logx.Int64("user_id", ev.UserID), logx.String("file", sess.FileName))
	return ""
}

// Cancel ends the user's session from a text command.
func (e *Engine) Cancel(ctx context.Context, ev Event) error {
	if _, ok := e.store.Get(ev.UserID); !ok {
		e.say(ctx, ev.Chat, "no active session")
		return nil
	}
	e.end(ctx, Event{UserID: ev.UserID, Chat: ev.Chat}, "Session ended.")
	return nil
}

// onExpire runs on the clock's goroutine after the store removed the
// session.
func (e *Engine) onExpire(sess session.Session) {
	ctx, cancel := context.WithTimeout(context.Background(), expiryNoticeTimeout)
	defer cancel()

	e.log.Info("session expired", logx.Int64("user_id", sess.UserID), logx.String("file", sess.FileName))
	_, _ = e.show(ctx, sess.Chat, sess.Prompt, noticeCard(TextExpired))
	e.publish(eventbus.TopicSessionExpired, sess, backend.TaskParams{}, nil)
}
