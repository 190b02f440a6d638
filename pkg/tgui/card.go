package tgui

import (
	"context"
	"strings"

	kit "scriptbot/internal/transport"

	tele "gopkg.in/telebot.v4"
)

// Message is a rendered card: HTML text plus send options.
type Message struct {
	Text string
	Opt  *kit.SendOptions
}

func (m Message) Send(ctx context.Context, ad kit.Adapter, to kit.ChatTarget) (kit.MessageRef, error) {
	return ad.SendText(ctx, to, m.Text, m.sendOptions())
}

// Edit rewrites the message at ref in place, keyboard included.
func (m Message) Edit(ctx context.Context, ad kit.Adapter, ref kit.MessageRef) error {
	return ad.EditText(ctx, ref, m.Text, m.sendOptions())
}

// Keyboard returns the inline keyboard attached to m, or nil.
func (m Message) Keyboard() *tele.ReplyMarkup {
	if m.Opt == nil {
		return nil
	}
	rm, _ := m.Opt.ReplyMarkupAdapter.(*tele.ReplyMarkup)
	return rm
}

func (m Message) sendOptions() *kit.SendOptions {
	if m.Opt != nil {
		return m.Opt
	}
	return &kit.SendOptions{}
}

// Builder assembles an HTML card line by line. Every text argument is
// escaped; link previews are off.
type Builder struct {
	lines []H
	kb    *Inline
}

func New() *Builder { return &Builder{} }

// Inline sets the keyboard; nil removes it.
func (b *Builder) Inline(kb *Inline) *Builder {
	b.kb = kb
	return b
}

func (b *Builder) push(h H) *Builder {
	b.lines = append(b.lines, h)
	return b
}

// Title adds a bold heading, prefixed by emoji when given.
func (b *Builder) Title(emoji, title string) *Builder {
	title = strings.TrimSpace(title)
	if title == "" {
		return b
	}
	if emoji = strings.TrimSpace(emoji); emoji != "" {
		return b.push(Esc(emoji) + " " + B(title))
	}
	return b.push(B(title))
}

// Line adds plain text; a blank s adds an empty line.
func (b *Builder) Line(s string) *Builder {
	if strings.TrimSpace(s) == "" {
		return b.push("")
	}
	return b.push(Esc(s))
}

func (b *Builder) Blank() *Builder { return b.push("") }

// KV adds a bullet "key: value" row with value in monospace.
func (b *Builder) KV(key, value string) *Builder {
	if key = strings.TrimSpace(key); key == "" {
		return b
	}
	return b.push("• " + B(key) + ": " + Code(value))
}

// Pre adds a tap-to-copy block; empty input adds nothing.
func (b *Builder) Pre(code string) *Builder {
	if code = strings.TrimRight(code, "\n"); code == "" {
		return b
	}
	return b.push(Pre(code))
}

func (b *Builder) Build() Message {
	parts := make([]string, len(b.lines))
	for i, h := range b.lines {
		parts[i] = h.String()
	}
	opt := &kit.SendOptions{ParseMode: "HTML", DisablePreview: true}
	if b.kb != nil {
		opt.ReplyMarkupAdapter = b.kb.Markup()
	}
	return Message{Text: strings.Trim(strings.Join(parts, "\n"), "\n"), Opt: opt}
}
