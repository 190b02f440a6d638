// Package eventbus is an in-memory fanout of workflow outcomes. It decouples
// the engine from sinks like the audit log and metrics-ish log lines.
package eventbus

import (
	"slices"
	"sync"
	"time"
)

// Topics published by the workflow.
const (
	TopicTaskCreated      = "workflow.task_created"
	TopicUploaded         = "workflow.uploaded"
	TopicFailed           = "workflow.failed"
	TopicSessionExpired   = "session.expired"
	TopicSessionCancelled = "session.cancelled"
)

// Event is one published outcome. A subscriber whose buffer is full misses
// it.
type Event struct {
	Type string
	Time time.Time
	Data any
}

// Outcome is the Data carried by every workflow topic.
type Outcome struct {
	UserID   int64
	ChatID   int64
	FileName string
	Name     string
	Command  string
	Schedule string
	Err      string
}

type Bus interface {
	// Publish stamps e.Time when unset and never blocks.
	Publish(e Event)
	// Subscribe returns a buffered feed; unsubscribe closes it and may be
	// called more than once.
	Subscribe(buffer int) (ch <-chan Event, unsubscribe func())
}

const defaultBuffer = 8

// New returns a bus that owns no goroutines.
func New() Bus { return &memBus{} }

type subscriber struct {
	ch     chan Event
	closed bool
}

type memBus struct {
	mu   sync.RWMutex
	subs []*subscriber
}

func (b *memBus) Publish(e Event) {
	if e.Time.IsZero() {
		e.Time = time.Now()
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, s := range b.subs {
		select {
		case s.ch <- e:
		default:
		}
	}
}

func (b *memBus) Subscribe(buffer int) (<-chan Event, func()) {
	if buffer <= 0 {
		buffer = defaultBuffer
	}
	s := &subscriber{ch: make(chan Event, buffer)}
	b.mu.Lock()
	b.subs = append(b.subs, s)
	b.mu.Unlock()
	return s.ch, func() { b.drop(s) }
}

func (b *memBus) drop(s *subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	b.subs = slices.DeleteFunc(b.subs, func(x *subscriber) bool { return x == s })
	close(s.ch)
}
