// Package workflow runs the per-user upload conversation:
//
//	file intake -> action menu -> (defaults | JSON edit -> confirm) -> backend
//
// Events of one user are expected to arrive serially (the router shards by
// user). The only asynchronous event is the edit expiry, which races through
// the session store's generation check.
package workflow

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"scriptbot/internal/backend"
	"scriptbot/internal/eventbus"
	"scriptbot/internal/session"
	kit "scriptbot/internal/transport"
	"scriptbot/pkg/tgui"
	logx "scriptbot/pkg/logx"
)

const (
	DefaultEditTimeout  = 5 * time.Minute
	DefaultMaxFileBytes = 1 << 20
)

// DefaultExtensions are the script types accepted at intake.
var DefaultExtensions = []string{".js", ".py", ".sh", ".ts", ".json", ".txt"}

var (
	ErrUnsupportedFile = errors.New("unsupported file type")
	ErrMissingFileName = errors.New("file has no name")
	ErrFileTooLarge    = errors.New("file too large")
	ErrNoSender        = errors.New("cannot tell who sent this file")
)

// Texts shown for conditions that are not failures of the workflow itself.
const (
	TextSessionExpired = "session expired, start over"
	TextStaleButton    = "this button is no longer valid"
	TextExpired        = "⌛ Session expired after inactivity. Upload the file again to start over."
)

type Options struct {
	EditTimeout       time.Duration
	AllowedExtensions []string
	MaxFileBytes      int64
}

func (o Options) withDefaults() Options {
	if o.EditTimeout <= 0 {
		o.EditTimeout = DefaultEditTimeout
	}
	if len(o.AllowedExtensions) == 0 {
		o.AllowedExtensions = DefaultExtensions
	}
	exts := make([]string, 0, len(o.AllowedExtensions))
	for _, e := range o.AllowedExtensions {
		if e = strings.ToLower(strings.TrimSpace(e)); e != "" {
			exts = append(exts, e)
		}
	}
	sort.Strings(exts)
	o.AllowedExtensions = exts
	if o.MaxFileBytes <= 0 {
		o.MaxFileBytes = DefaultMaxFileBytes
	}
	return o
}

type Deps struct {
	Log     logx.Logger
	Adapter kit.Adapter
	Store   *session.Store
	Backend backend.Backend
	// Bus is optional; outcomes are published on it when set.
	Bus eventbus.Bus
}

// Event identifies who acted and where. For button presses MessageID is the
// message hosting the buttons.
type Event struct {
	UserID    int64
	Chat      kit.ChatTarget
	MessageID int
}

var zeroRef kit.MessageRef

func (ev Event) host() kit.MessageRef {
	if ev.MessageID == 0 {
		return kit.MessageRef{}
	}
	return kit.MessageRef{ChatID: ev.Chat.ChatID, ThreadID: ev.Chat.ThreadID, MessageID: ev.MessageID}
}

type Engine struct {
	log     logx.Logger
	adapter kit.Adapter
	store   *session.Store
	backend backend.Backend
	bus     eventbus.Bus

	mu  sync.RWMutex
	opt Options
}

func New(d Deps, opt Options) *Engine {
	log := d.Log
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Engine{
		log:     log.With(logx.String("comp", "workflow")),
		adapter: d.Adapter,
		store:   d.Store,
		backend: d.Backend,
		bus:     d.Bus,
		opt:     opt.withDefaults(),
	}
}

// SetOptions swaps options at runtime. Already armed expiries keep their
// original deadline.
func (e *Engine) SetOptions(opt Options) {
	opt = opt.withDefaults()
	e.mu.Lock()
	e.opt = opt
	e.mu.Unlock()
}

func (e *Engine) options() Options {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.opt
}

// show puts msg in front of the user: it edits host in place when possible
// and falls back to a new message. The resulting reference is returned.
func (e *Engine) show(ctx context.Context, chat kit.ChatTarget, host kit.MessageRef, msg tgui.Message) (kit.MessageRef, error) {
	if !host.IsZero() {
		err := msg.Edit(ctx, e.adapter, host)
		if err == nil {
			return host, nil
		}
		e.log.Debug("edit failed; sending new message", logx.Int("message_id", host.MessageID), logx.Err(err))
	}
	ref, err := msg.Send(ctx, e.adapter, chat)
	if err != nil {
		e.log.Warn("send failed", logx.Int64("chat_id", chat.ChatID), logx.Err(err))
	}
	return ref, err
}

// say sends a plain notice. Failures are logged only.
func (e *Engine) say(ctx context.Context, chat kit.ChatTarget, text string) {
	if _, err := e.adapter.SendText(ctx, chat, text, nil); err != nil {
		e.log.Warn("send failed", logx.Int64("chat_id", chat.ChatID), logx.Err(err))
	}
}

// dropPrompt deletes a stale prompt message. Failures are logged only.
func (e *Engine) dropPrompt(ctx context.Context, ref kit.MessageRef) {
	if ref.IsZero() {
		return
	}
	if err := e.adapter.DeleteMessage(ctx, ref); err != nil {
		e.log.Debug("delete prompt failed", logx.Int("message_id", ref.MessageID), logx.Err(err))
	}
}

func (e *Engine) setPrompt(userID int64, ref kit.MessageRef) {
	if ref.IsZero() {
		return
	}
	e.store.Update(userID, func(s *session.Session) { s.Prompt = ref })
}

func (e *Engine) publish(topic string, sess session.Session, p backend.TaskParams, err error) {
	if e.bus == nil {
		return
	}
	o := eventbus.Outcome{
		UserID:   sess.UserID,
		ChatID:   sess.Chat.ChatID,
		FileName: sess.FileName,
		Name:     p.Name,
		Command:  p.Command,
		Schedule: p.Schedule,
	}
	if err != nil {
		o.Err = err.Error()
	}
	e.bus.Publish(eventbus.Event{Type: topic, Data: o})
}
