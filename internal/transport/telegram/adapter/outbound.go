package adapter

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	tele "gopkg.in/telebot.v4"

	kit "scriptbot/internal/transport"
	logx "scriptbot/pkg/logx"
)

// Bot API limits for setMyCommands.
const (
	maxMenuCommands   = 100
	maxMenuDescLength = 256
)

func sendOptions(threadID int, opt *kit.SendOptions) *tele.SendOptions {
	so := &tele.SendOptions{ThreadID: threadID}
	if opt == nil {
		return so
	}
	so.ParseMode = opt.ParseMode
	so.DisableWebPagePreview = opt.DisablePreview
	if rm, ok := opt.ReplyMarkupAdapter.(*tele.ReplyMarkup); ok && rm != nil {
		so.ReplyMarkup = rm
	}
	return so
}

func stored(ref kit.MessageRef) *tele.StoredMessage {
	return &tele.StoredMessage{MessageID: strconv.Itoa(ref.MessageID), ChatID: ref.ChatID}
}

func (a *Adapter) SendText(ctx context.Context, to kit.ChatTarget, text string, opt *kit.SendOptions) (kit.MessageRef, error) {
	if err := ctx.Err(); err != nil {
		return kit.MessageRef{}, err
	}
	msg, err := a.bot.Send(&tele.Chat{ID: to.ChatID}, text, sendOptions(to.ThreadID, opt))
	if err != nil {
		return kit.MessageRef{}, err
	}
	return kit.MessageRef{ChatID: to.ChatID, ThreadID: to.ThreadID, MessageID: msg.ID}, nil
}

// EditText replaces text and keyboard. Content without a keyboard clears
// the old one.
func (a *Adapter) EditText(ctx context.Context, ref kit.MessageRef, text string, opt *kit.SendOptions) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	so := sendOptions(0, opt)
	if so.ReplyMarkup == nil {
		so.ReplyMarkup = &tele.ReplyMarkup{}
	}
	_, err := a.bot.Edit(stored(ref), text, so)
	return err
}

func (a *Adapter) DeleteMessage(ctx context.Context, ref kit.MessageRef) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return a.bot.Delete(stored(ref))
}

func (a *Adapter) AnswerCallback(ctx context.Context, callbackID string, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return a.bot.Respond(&tele.Callback{ID: callbackID}, &tele.CallbackResponse{Text: text})
}

func menu(cmds []kit.BotCommand) ([]tele.Command, string) {
	out := make([]tele.Command, 0, min(len(cmds), maxMenuCommands))
	var key strings.Builder
	for _, c := range cmds {
		if c.Command == "" {
			continue
		}
		if len(out) == maxMenuCommands {
			break
		}
		desc := c.Description
		if desc == "" {
			desc = c.Command
		}
		if len(desc) > maxMenuDescLength {
			desc = desc[:maxMenuDescLength]
		}
		out = append(out, tele.Command{Text: c.Command, Description: desc})
		key.WriteString(c.Command + "\x00" + desc + "\x00")
	}
	return out, key.String()
}

// UpdateMenuCommands calls setMyCommands only when the list differs from
// the last one sent.
func (a *Adapter) UpdateMenuCommands(ctx context.Context, cmds []kit.BotCommand) error {
	out, key := menu(cmds)

	a.menuMu.Lock()
	defer a.menuMu.Unlock()
	if key == a.menuKey {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := a.bot.SetCommands(out); err != nil {
		return fmt.Errorf("telegram setMyCommands: %w", err)
	}
	a.menuKey = key
	a.log.Info("menu commands updated", logx.Int("count", len(out)))
	return nil
}
