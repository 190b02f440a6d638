package workflow

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"slices"
	"strings"

	kit "scriptbot/internal/transport"
	logx "scriptbot/pkg/logx"
)

// checkFile validates name and declared size before anything is fetched.
func (o Options) checkFile(name string, size int64) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return ErrMissingFileName
	}
	ext := strings.ToLower(filepath.Ext(name))
	if ext == "" || !slices.Contains(o.AllowedExtensions, ext) {
		return fmt.Errorf("%w %q. allowed: %s", ErrUnsupportedFile, ext, strings.Join(o.AllowedExtensions, " "))
	}
	if size > o.MaxFileBytes {
		return fmt.Errorf("%w: %d bytes (max %d)", ErrFileTooLarge, size, o.MaxFileBytes)
	}
	return nil
}

// HandleDocument is file intake. An accepted file replaces any session the
// user had; a rejected one leaves existing state alone.
func (e *Engine) HandleDocument(ctx context.Context, ev Event, doc kit.Document) error {
	// sessions are keyed by user; an anonymous upload cannot own one
	if ev.UserID == 0 {
		e.log.Debug("file rejected", logx.Err(ErrNoSender))
		e.say(ctx, ev.Chat, ErrNoSender.Error())
		return nil
	}
	opt := e.options()
	log := e.log.With(logx.Int64("user_id", ev.UserID), logx.String("file", doc.FileName))

	if err := opt.checkFile(doc.FileName, doc.Size); err != nil {
		log.Debug("file rejected", logx.Err(err))
		e.say(ctx, ev.Chat, err.Error())
		return nil
	}

	content, err := e.adapter.FetchFile(ctx, doc.FileID)
	if err != nil {
		log.Warn("file fetch failed", logx.Err(err))
		if errors.Is(err, kit.ErrFileTooLarge) {
			e.say(ctx, ev.Chat, fmt.Sprintf("%s (max %d bytes)", ErrFileTooLarge, opt.MaxFileBytes))
			return nil
		}
		e.say(ctx, ev.Chat, "could not download the file: "+err.Error())
		return nil
	}
	// declared size can be missing or wrong
	if int64(len(content)) > opt.MaxFileBytes {
		e.say(ctx, ev.Chat, fmt.Sprintf("%s: %d bytes (max %d)", ErrFileTooLarge, len(content), opt.MaxFileBytes))
		return nil
	}

	name := strings.TrimSpace(doc.FileName)
	if old, ok := e.store.Get(ev.UserID); ok {
		e.dropPrompt(ctx, old.Prompt)
	}
	sess := e.store.Create(ev.UserID, ev.Chat, name, content)
	log.Info("session created",
		logx.Int("bytes", len(content)),
		logx.String("schedule", sess.Defaults.Schedule),
	)

	ref, err := e.show(ctx, ev.Chat, kit.MessageRef{}, uploadedCard(sess))
	if err == nil {
		e.setPrompt(ev.UserID, ref)
	}
	return nil
}
