package transport

import (
	"context"
	"errors"
)

// Adapter is a chat platform as seen by the router and workflow: a stream
// of inbound updates plus the handful of outbound calls the bot makes.
type Adapter interface {
	// Start begins delivering updates to out and returns without blocking.
	Start(ctx context.Context, out chan<- Update) error
	Stop(ctx context.Context) error

	SendText(ctx context.Context, to ChatTarget, text string, opt *SendOptions) (MessageRef, error)
	// EditText rewrites a sent message; keyboards not present in opt are removed.
	EditText(ctx context.Context, ref MessageRef, text string, opt *SendOptions) error
	DeleteMessage(ctx context.Context, ref MessageRef) error
	AnswerCallback(ctx context.Context, callbackID string, text string) error

	// FetchFile returns an attachment's bytes, or ErrFileTooLarge.
	FetchFile(ctx context.Context, fileID string) ([]byte, error)
}

// CommandMenuUpdater is implemented by adapters that can publish a command
// list to the client UI.
type CommandMenuUpdater interface {
	UpdateMenuCommands(ctx context.Context, cmds []BotCommand) error
}

var ErrFileTooLarge = errors.New("file too large")

type UpdateKind string

const (
	UpdateMessage  UpdateKind = "message"
	UpdateDocument UpdateKind = "document"
	UpdateCallback UpdateKind = "callback"
)

// Update is one inbound event; exactly the field matching Kind is set.
type Update struct {
	Kind     UpdateKind
	Message  *Message
	Document *Document
	Callback *Callback
}

// FromID is the acting user, 0 when the platform did not say.
func (u Update) FromID() int64 {
	switch u.Kind {
	case UpdateMessage:
		if u.Message != nil {
			return u.Message.FromID
		}
	case UpdateDocument:
		if u.Document != nil {
			return u.Document.FromID
		}
	case UpdateCallback:
		if u.Callback != nil {
			return u.Callback.FromID
		}
	}
	return 0
}

type Message struct {
	ID           int
	ChatID       int64
	ThreadID     int
	FromID       int64
	FromUsername string
	IsGroup      bool
	Text         string
}

// Document announces an uploaded file. Its bytes are fetched on demand.
type Document struct {
	MessageID    int
	ChatID       int64
	ThreadID     int
	FromID       int64
	FromUsername string

	FileID   string
	FileName string
	MIME     string
	Size     int64
}

// Callback is an inline button press on the message MessageID.
type Callback struct {
	ID        string
	ChatID    int64
	ThreadID  int
	FromID    int64
	MessageID int
	Data      string
}

// ChatTarget addresses a chat, optionally a forum topic within it.
type ChatTarget struct {
	ChatID   int64
	ThreadID int
}

// MessageRef identifies a message the bot sent, for later edit or delete.
type MessageRef struct {
	ChatID    int64
	ThreadID  int
	MessageID int
}

func (r MessageRef) IsZero() bool { return r.MessageID == 0 && r.ChatID == 0 }

type SendOptions struct {
	ParseMode      string
	DisablePreview bool
	// ReplyMarkupAdapter is platform markup, *telebot.ReplyMarkup for Telegram.
	ReplyMarkupAdapter any
}

type BotCommand struct {
	Command     string
	Description string
}
