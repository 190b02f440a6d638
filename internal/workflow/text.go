package workflow

import (
	"context"

	"scriptbot/internal/session"
	logx "scriptbot/pkg/logx"
)

// HandleText consumes JSON-object-shaped text as edited parameters. Any other
// text is left for other handlers (handled=false).
func (e *Engine) HandleText(ctx context.Context, ev Event, text string) (bool, error) {
	if !isJSONShaped(text) {
		return false, nil
	}
	sess, ok := e.store.Get(ev.UserID)
	if !ok {
		e.say(ctx, ev.Chat, TextSessionExpired)
		return true, nil
	}
	if _, ok := sess.Stage.(session.AwaitingJSONParams); !ok {
		return false, nil
	}
	log := e.log.With(logx.Int64("user_id", ev.UserID), logx.String("file", sess.FileName))

	p, err := ParseParams(text)
	if err != nil {
		// stage and expiry stay as they are
		log.Debug("parameters rejected", logx.Err(err))
		e.say(ctx, ev.Chat, err.Error())
		return true, nil
	}

	if _, ok := e.advance(ev.UserID, isStage[session.AwaitingJSONParams], session.AwaitingConfirmation{Candidate: p}); !ok {
		// the expiry won the race
		e.say(ctx, ev.Chat, TextSessionExpired)
		return true, nil
	}
	e.store.ArmExpiry(ev.UserID, e.options().EditTimeout, e.onExpire)
	log.Debug("parameters accepted", logx.String("name", p.Name), logx.String("schedule", p.Schedule))

	// the reply lands below the user's message, so the template is replaced
	// by a fresh card instead of an edit
	ref, err := e.show(ctx, ev.Chat, zeroRef, confirmCard(p))
	if err == nil {
		e.dropPrompt(ctx, sess.Prompt)
		e.setPrompt(ev.UserID, ref)
	}
	return true, nil
}
