// Package router dispatches transport updates to commands, callback routes,
// text handlers and the document handler.
//
// Updates of one user are processed serially and in arrival order: every
// user maps to one shard worker (userID % workers). Different users run
// concurrently.
package router

import (
	"context"
	"fmt"
	"html"
	"runtime"
	"runtime/debug"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	kit "scriptbot/internal/transport"
	rtsup "scriptbot/internal/runtime/supervisor"
	logx "scriptbot/pkg/logx"
	"scriptbot/pkg/tgui"
)

const (
	defaultQueueSize = 64
	menuTimeout      = 5 * time.Second
)

type Options struct {
	Workers        int           // default NumCPU, min 2
	QueueSize      int           // per shard
	HandlerTimeout time.Duration // default per-handler timeout
}

type Router struct {
	log     logx.Logger
	adapter kit.Adapter

	mu       sync.RWMutex
	reg      Registry
	commands map[string]Command // name/alias -> command
	cbs      map[string]map[string]CallbackRoute
	allowed  map[int64]struct{}
	timeout  time.Duration

	shards []chan func()
}

func New(log logx.Logger, adapter kit.Adapter, opt Options) *Router {
	if log.IsZero() {
		log = logx.Nop()
	}
	workers := opt.Workers
	if workers <= 0 {
		workers = max(runtime.NumCPU(), 2)
	}
	qs := opt.QueueSize
	if qs <= 0 {
		qs = defaultQueueSize
	}
	shards := make([]chan func(), workers)
	for i := range shards {
		shards[i] = make(chan func(), qs)
	}
	return &Router{
		log:      log.With(logx.String("comp", "telegram.router")),
		adapter:  adapter,
		commands: map[string]Command{},
		cbs:      map[string]map[string]CallbackRoute{},
		timeout:  opt.HandlerTimeout,
		shards:   shards,
	}
}

// SetAllowed restricts the bot to the given users. Empty allows everyone.
// Safe to call during hot-reload.
func (m *Router) SetAllowed(ids []int64) {
	var allowed map[int64]struct{}
	if len(ids) > 0 {
		allowed = make(map[int64]struct{}, len(ids))
		for _, id := range ids {
			allowed[id] = struct{}{}
		}
	}
	m.mu.Lock()
	m.allowed = allowed
	m.mu.Unlock()
}

func (m *Router) SetHandlerTimeout(d time.Duration) {
	m.mu.Lock()
	m.timeout = d
	m.mu.Unlock()
}

func (m *Router) isAllowed(id int64) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.allowed == nil {
		return true
	}
	_, ok := m.allowed[id]
	return ok
}

// SetRegistry installs handlers. A /help command listing every command is
// always added.
func (m *Router) SetRegistry(ctx context.Context, reg Registry) {
	reg.Commands = append(append([]Command(nil), reg.Commands...), Command{
		Name:        "help",
		Aliases:     []string{"h"},
		Description: "show help",
		Usage:       "/help",
		Handle: func(ctx context.Context, req *Request) error {
			_, err := req.Reply(ctx, m.helpText(), &kit.SendOptions{ParseMode: "HTML", DisablePreview: true})
			return err
		},
	})

	cmds := map[string]Command{}
	for _, c := range reg.Commands {
		name := strings.ToLower(strings.TrimSpace(c.Name))
		if name == "" || c.Handle == nil {
			continue
		}
		cmds[name] = c
		for _, a := range c.Aliases {
			if a = strings.ToLower(strings.TrimSpace(a)); a != "" {
				if _, exists := cmds[a]; !exists {
					cmds[a] = c
				}
			}
		}
	}
	cbs := map[string]map[string]CallbackRoute{}
	for _, r := range reg.Callbacks {
		p, a := strings.TrimSpace(r.Plugin), strings.TrimSpace(r.Action)
		if p == "" || a == "" || r.Handle == nil {
			continue
		}
		if cbs[p] == nil {
			cbs[p] = map[string]CallbackRoute{}
		}
		cbs[p][a] = r
	}

	m.mu.Lock()
	m.reg = reg
	m.commands = cmds
	m.cbs = cbs
	m.mu.Unlock()

	if up, ok := m.adapter.(kit.CommandMenuUpdater); ok {
		menu := menuCommands(reg.Commands)
		go func() {
			mctx, cancel := context.WithTimeout(ctx, menuTimeout)
			defer cancel()
			if err := up.UpdateMenuCommands(mctx, menu); err != nil {
				m.log.Warn("menu update failed", logx.Err(err))
			}
		}()
	}
}

func (m *Router) helpText() string {
	m.mu.RLock()
	cmds := append([]Command(nil), m.reg.Commands...)
	m.mu.RUnlock()
	sort.Slice(cmds, func(i, j int) bool { return cmds[i].Name < cmds[j].Name })

	var b strings.Builder
	b.WriteString("<b>Commands</b>\n")
	for _, c := range cmds {
		usage := c.Usage
		if usage == "" {
			usage = "/" + c.Name
		}
		fmt.Fprintf(&b, "<code>%s</code> %s\n", html.EscapeString(usage), html.EscapeString(c.Description))
	}
	return strings.TrimRight(b.String(), "\n")
}

// Run consumes updates until ctx is done or updates is closed.
func (m *Router) Run(ctx context.Context, updates <-chan kit.Update) error {
	sup := rtsup.NewSupervisor(ctx,
		rtsup.WithLogger(m.log),
		rtsup.WithCancelOnError(false),
	)
	for i, q := range m.shards {
		idx, queue := i, q
		sup.GoRestart("router.shard."+strconv.Itoa(idx), func(c context.Context) error {
			m.runShard(c, idx, queue)
			return nil
		},
			rtsup.WithRestartBackoff(200*time.Millisecond, 5*time.Second),
			rtsup.WithStopOnCleanExit(true),
		)
	}
	m.log.Info("dispatcher started", logx.Int("workers", len(m.shards)), logx.Int("queue_cap", cap(m.shards[0])))

	defer func() {
		sup.Cancel()
		wctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		_ = sup.Wait(wctx)
		cancel()
		m.log.Info("dispatcher stopped")
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case up, ok := <-updates:
			if !ok {
				return nil
			}
			m.Dispatch(ctx, up)
		}
	}
}

func (m *Router) runShard(ctx context.Context, idx int, queue <-chan func()) {
	for {
		select {
		case <-ctx.Done():
			return
		case job := <-queue:
			func() {
				defer func() {
					if r := recover(); r != nil {
						m.log.Error("panic in shard job", logx.Int("worker", idx), logx.Any("panic", r), logx.String("stack", string(debug.Stack())))
					}
				}()
				job()
			}()
		}
	}
}

func (m *Router) shardFor(userID int64) chan func() {
	n := uint64(len(m.shards))
	return m.shards[uint64(userID)%n]
}

// Dispatch routes one update to its user's shard. It never blocks: a full
// shard rejects the update with a busy notice.
func (m *Router) Dispatch(ctx context.Context, up kit.Update) {
	from := up.FromID()
	if from == 0 {
		return
	}
	if !m.isAllowed(from) {
		m.reject(ctx, up)
		return
	}

	var job func()
	switch up.Kind {
	case kit.UpdateMessage:
		job = m.messageJob(ctx, up)
	case kit.UpdateCallback:
		job = m.callbackJob(ctx, up)
	case kit.UpdateDocument:
		job = m.documentJob(ctx, up)
	}
	if job == nil {
		return
	}

	select {
	case m.shardFor(from) <- job:
	default:
		m.log.Warn("shard queue full; dropping update", logx.Int64("from_id", from), logx.String("kind", string(up.Kind)))
		if up.Callback != nil {
			_ = m.adapter.AnswerCallback(ctx, up.Callback.ID, "busy, try again")
		} else if chat, ok := chatOf(up); ok {
			_, _ = m.adapter.SendText(ctx, chat, "busy, try again", nil)
		}
	}
}

func (m *Router) reject(ctx context.Context, up kit.Update) {
	m.log.Debug("update from user not in allow-list", logx.Int64("from_id", up.FromID()))
	if up.Callback != nil {
		_ = m.adapter.AnswerCallback(ctx, up.Callback.ID, "forbidden")
		return
	}
	if chat, ok := chatOf(up); ok {
		_, _ = m.adapter.SendText(ctx, chat, "unauthorized", nil)
	}
}

func chatOf(up kit.Update) (kit.ChatTarget, bool) {
	switch {
	case up.Message != nil:
		return kit.ChatTarget{ChatID: up.Message.ChatID, ThreadID: up.Message.ThreadID}, true
	case up.Document != nil:
		return kit.ChatTarget{ChatID: up.Document.ChatID, ThreadID: up.Document.ThreadID}, true
	case up.Callback != nil:
		return kit.ChatTarget{ChatID: up.Callback.ChatID, ThreadID: up.Callback.ThreadID}, true
	}
	return kit.ChatTarget{}, false
}

func (m *Router) newRequest(up kit.Update, command string) *Request {
	chat, _ := chatOf(up)
	rid := newReqID()
	req := &Request{
		Update:  up,
		Chat:    chat,
		FromID:  up.FromID(),
		Command: command,
		ReqID:   rid,
		Adapter: m.adapter,
	}
	switch {
	case up.Message != nil:
		req.MessageID = up.Message.ID
	case up.Callback != nil:
		req.MessageID = up.Callback.MessageID
	case up.Document != nil:
		req.MessageID = up.Document.MessageID
	}
	req.Logger = m.log.With(
		logx.String("rid", rid),
		logx.Int64("chat_id", chat.ChatID),
		logx.Int64("from_id", req.FromID),
		logx.String("cmd", command),
	)
	return req
}

func (m *Router) wrap(h HandlerFunc, timeout time.Duration) HandlerFunc {
	if timeout <= 0 {
		m.mu.RLock()
		timeout = m.timeout
		m.mu.RUnlock()
	}
	return Chain(h,
		MWPanicRecover(m.log),
		MWRequestLog(m.log),
		MWTimeout(timeout),
	)
}

func (m *Router) messageJob(ctx context.Context, up kit.Update) func() {
	msg := up.Message
	if msg == nil {
		return nil
	}
	text := strings.TrimSpace(msg.Text)
	if strings.HasPrefix(text, "/") {
		return m.commandJob(ctx, up, text)
	}

	m.mu.RLock()
	handlers := m.reg.Text
	hint := m.reg.Hint
	m.mu.RUnlock()

	req := m.newRequest(up, "text")
	req.Text = msg.Text
	h := func(ctx context.Context, req *Request) error {
		for _, th := range handlers {
			handled, err := th(ctx, req)
			if err != nil || handled {
				return err
			}
		}
		if hint == "" {
			return nil
		}
		_, err := req.Reply(ctx, hint, &kit.SendOptions{ParseMode: "HTML", DisablePreview: true})
		return err
	}
	final := m.wrap(h, 0)
	return func() { _ = final(ctx, req) }
}

func (m *Router) commandJob(ctx context.Context, up kit.Update, text string) func() {
	parts := strings.Fields(text)
	if len(parts) == 0 {
		return nil
	}
	word := strings.ToLower(strings.TrimPrefix(parts[0], "/"))
	if i := strings.IndexByte(word, '@'); i >= 0 {
		word = word[:i]
	}

	m.mu.RLock()
	cmd, ok := m.commands[word]
	m.mu.RUnlock()

	req := m.newRequest(up, word)
	req.Args = parts[1:]
	req.Text = up.Message.Text
	if !ok {
		return func() {
			_, _ = req.Reply(ctx, "unknown command. try /help", nil)
		}
	}
	final := m.wrap(cmd.Handle, cmd.Timeout)
	return func() { _ = final(ctx, req) }
}

func (m *Router) callbackJob(ctx context.Context, up kit.Update) func() {
	cb := up.Callback
	if cb == nil {
		return nil
	}
	plugin, action, payload, ok := tgui.ParseData(cb.Data)
	var route CallbackRoute
	if ok {
		m.mu.RLock()
		route, ok = m.cbs[plugin][action]
		m.mu.RUnlock()
	}
	if !ok {
		return func() { _ = m.adapter.AnswerCallback(ctx, cb.ID, "unknown action") }
	}

	req := m.newRequest(up, "cb:"+plugin+":"+action)
	req.Payload = payload
	final := m.wrap(func(ctx context.Context, r *Request) error {
		return route.Handle(ctx, r, payload)
	}, route.Timeout)
	return func() {
		_ = final(ctx, req)
		// stops the client's loading state
		_ = m.adapter.AnswerCallback(ctx, cb.ID, req.answer)
	}
}

func (m *Router) documentJob(ctx context.Context, up kit.Update) func() {
	if up.Document == nil {
		return nil
	}
	m.mu.RLock()
	h := m.reg.Document
	m.mu.RUnlock()
	if h == nil {
		return nil
	}
	req := m.newRequest(up, "document")
	final := m.wrap(h, 0)
	return func() { _ = final(ctx, req) }
}
