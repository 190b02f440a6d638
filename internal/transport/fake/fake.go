// Package fake is an in-memory transport.Adapter for tests.
package fake

import (
	"context"
	"errors"
	"sync"

	kit "scriptbot/internal/transport"
)

// Sent is one outbound message or edit.
type Sent struct {
	Ref  kit.MessageRef
	Text string
	Opt  *kit.SendOptions
}

type Answer struct {
	CallbackID string
	Text       string
}

// Adapter records every outbound call. Failures can be injected per call
// kind.
type Adapter struct {
	mu      sync.Mutex
	nextID  int
	sent    []Sent
	edits   []Sent
	outbox  []string
	deleted []kit.MessageRef
	answers []Answer
	files   map[string][]byte
	menu    []kit.BotCommand

	FailSend   error
	FailEdit   error
	FailDelete error
	FailFetch  error
}

var _ kit.Adapter = (*Adapter)(nil)

func New() *Adapter {
	return &Adapter{nextID: 100, files: map[string][]byte{}}
}

// PutFile makes content available to FetchFile under fileID.
func (a *Adapter) PutFile(fileID string, content []byte) {
	a.mu.Lock()
	a.files[fileID] = content
	a.mu.Unlock()
}

func (a *Adapter) Start(ctx context.Context, out chan<- kit.Update) error { return nil }
func (a *Adapter) Stop(ctx context.Context) error                        { return nil }

func (a *Adapter) SendText(ctx context.Context, to kit.ChatTarget, text string, opt *kit.SendOptions) (kit.MessageRef, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.FailSend != nil {
		return kit.MessageRef{}, a.FailSend
	}
	a.nextID++
	ref := kit.MessageRef{ChatID: to.ChatID, ThreadID: to.ThreadID, MessageID: a.nextID}
	a.sent = append(a.sent, Sent{Ref: ref, Text: text, Opt: opt})
	a.outbox = append(a.outbox, text)
	return ref, nil
}

func (a *Adapter) EditText(ctx context.Context, ref kit.MessageRef, text string, opt *kit.SendOptions) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.FailEdit != nil {
		return a.FailEdit
	}
	a.edits = append(a.edits, Sent{Ref: ref, Text: text, Opt: opt})
	a.outbox = append(a.outbox, text)
	return nil
}

func (a *Adapter) DeleteMessage(ctx context.Context, ref kit.MessageRef) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.FailDelete != nil {
		return a.FailDelete
	}
	a.deleted = append(a.deleted, ref)
	return nil
}

func (a *Adapter) AnswerCallback(ctx context.Context, callbackID string, text string) error {
	a.mu.Lock()
	a.answers = append(a.answers, Answer{CallbackID: callbackID, Text: text})
	a.mu.Unlock()
	return nil
}

func (a *Adapter) FetchFile(ctx context.Context, fileID string) ([]byte, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.FailFetch != nil {
		return nil, a.FailFetch
	}
	b, ok := a.files[fileID]
	if !ok {
		return nil, errors.New("file not found")
	}
	return append([]byte(nil), b...), nil
}

func (a *Adapter) UpdateMenuCommands(ctx context.Context, cmds []kit.BotCommand) error {
	a.mu.Lock()
	a.menu = append([]kit.BotCommand(nil), cmds...)
	a.mu.Unlock()
	return nil
}

func (a *Adapter) Sent() []Sent {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]Sent(nil), a.sent...)
}

func (a *Adapter) Edits() []Sent {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]Sent(nil), a.edits...)
}

func (a *Adapter) Deleted() []kit.MessageRef {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]kit.MessageRef(nil), a.deleted...)
}

func (a *Adapter) Answers() []Answer {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]Answer(nil), a.answers...)
}

func (a *Adapter) Menu() []kit.BotCommand {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]kit.BotCommand(nil), a.menu...)
}

// Texts returns every sent and edited text in call order.
func (a *Adapter) Texts() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]string(nil), a.outbox...)
}

// Last returns the most recent send (zero if none).
func (a *Adapter) Last() Sent {
	a.mu.Lock()
	defer a.mu.Unlock()
	if len(a.sent) == 0 {
		return Sent{}
	}
	return a.sent[len(a.sent)-1]
}

// Reset forgets recorded calls (files are kept).
func (a *Adapter) Reset() {
	a.mu.Lock()
	a.sent, a.edits, a.outbox, a.deleted, a.answers = nil, nil, nil, nil, nil
	a.mu.Unlock()
}
