package router

import (
	"context"
	"time"

	"github.com/google/uuid"

	kit "scriptbot/internal/transport"
	logx "scriptbot/pkg/logx"
)

type HandlerFunc func(ctx context.Context, req *Request) error

// Command is a slash command. Name is a single token ("start", "cancel").
type Command struct {
	Name        string
	Aliases     []string
	Description string
	Usage       string
	Timeout     time.Duration // optional per-command override
	Handle      HandlerFunc
}

type CallbackHandlerFunc func(ctx context.Context, req *Request, payload string) error

// CallbackRoute handles inline-button data "plugin:action[:payload]".
type CallbackRoute struct {
	Plugin  string
	Action  string
	Timeout time.Duration
	Handle  CallbackHandlerFunc
}

// TextHandler sees plain (non-command) text. It reports whether it consumed
// the message; unconsumed text falls through to the next handler and
// finally to the router's hint.
type TextHandler func(ctx context.Context, req *Request) (handled bool, err error)

// Registry is everything the router dispatches to.
type Registry struct {
	Commands  []Command
	Callbacks []CallbackRoute
	Text      []TextHandler
	Document  HandlerFunc
	// Hint is sent for text nobody handled. Empty disables it.
	Hint string
}

type Request struct {
	Update    kit.Update
	Chat      kit.ChatTarget
	FromID    int64
	MessageID int // message the update refers to (button host for callbacks)
	Command   string
	Args      []string
	Text      string
	Payload   string
	ReqID     string

	Adapter kit.Adapter
	Logger  logx.Logger

	answer string
}

// Answer sets the text shown to the user when a callback is acknowledged.
// The router answers every callback exactly once after the handler returns.
func (r *Request) Answer(text string) { r.answer = text }

func (r *Request) Reply(ctx context.Context, text string, opt *kit.SendOptions) (kit.MessageRef, error) {
	return r.Adapter.SendText(ctx, r.Chat, text, opt)
}

func newReqID() string { return uuid.NewString()[:8] }
