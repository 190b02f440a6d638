package adapter

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	tele "gopkg.in/telebot.v4"

	kit "scriptbot/internal/transport"
	logx "scriptbot/pkg/logx"
)

// FetchFile downloads an attachment. Transient failures are retried up to
// FetchAttempts times with a doubling delay; an oversized file is final.
func (a *Adapter) FetchFile(ctx context.Context, fileID string) ([]byte, error) {
	if strings.TrimSpace(fileID) == "" {
		return nil, errors.New("telegram: empty file id")
	}
	var err error
	delay := a.cfg.FetchBackoff
	for attempt := 1; ; attempt++ {
		var b []byte
		if b, err = a.download(fileID); err == nil {
			return b, nil
		}
		if errors.Is(err, kit.ErrFileTooLarge) || attempt >= a.cfg.FetchAttempts {
			break
		}
		a.log.Warn("file fetch failed, retrying", logx.Int("attempt", attempt), logx.Duration("backoff", delay), logx.Err(err))
		if werr := sleepCtx(ctx, delay); werr != nil {
			return nil, werr
		}
		delay *= 2
	}
	if errors.Is(err, kit.ErrFileTooLarge) {
		return nil, err
	}
	return nil, fmt.Errorf("telegram: fetch file after %d attempts: %w", a.cfg.FetchAttempts, err)
}

func (a *Adapter) download(fileID string) ([]byte, error) {
	rc, err := a.bot.File(&tele.File{FileID: fileID})
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	b, err := io.ReadAll(io.LimitReader(rc, a.cfg.MaxFileBytes+1))
	switch {
	case err != nil:
		return nil, err
	case int64(len(b)) > a.cfg.MaxFileBytes:
		return nil, kit.ErrFileTooLarge
	}
	return b, nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
