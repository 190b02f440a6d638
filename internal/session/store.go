// Package session holds the per-user workflow sessions.
//
// A Store keeps at most one session per user. Sessions live in memory only
// and carry an optional expiry; every arm/replace/delete keeps the invariant
// that a session has at most one pending expiry.
package session

import (
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"scriptbot/internal/backend"
	"scriptbot/internal/cronexpr"
	"scriptbot/internal/transport"
)

// ErrNoSession is returned when an event arrives for a user without a live
// session (expired, finished or never started).
var ErrNoSession = errors.New("session expired, start over")

// CommandPrefix is prepended to the file name to build the default command.
const CommandPrefix = "task "

type Session struct {
	UserID   int64
	Chat     transport.ChatTarget
	FileName string
	Content  []byte

	// Defaults is computed at intake and never changes afterwards.
	Defaults backend.TaskParams
	Stage    Stage

	// Prompt is the last bot message that carries this session's buttons
	// or template (zero if none).
	Prompt    transport.MessageRef
	CreatedAt time.Time
}

// Candidate returns the user-supplied parameters when awaiting confirmation.
func (s Session) Candidate() (backend.TaskParams, bool) {
	if st, ok := s.Stage.(AwaitingConfirmation); ok {
		return st.Candidate, true
	}
	return backend.TaskParams{}, false
}

// DefaultParams derives the initial task parameters for an uploaded file.
func DefaultParams(fileName string, content []byte) backend.TaskParams {
	name := strings.TrimSuffix(fileName, filepath.Ext(fileName))
	if name == "" {
		name = fileName
	}
	return backend.TaskParams{
		Name:     name,
		Command:  CommandPrefix + fileName,
		Schedule: cronexpr.ScheduleOrDefault(string(content)),
	}
}

type entry struct {
	sess  Session
	timer Timer
	gen   uint64 // generation of the armed timer; 0 when disarmed
}

// Store owns the sessions of one process. It is safe for concurrent use;
// operations on different users never wait on each other beyond the
// map lock.
type Store struct {
	clock Clock

	mu  sync.Mutex
	m   map[int64]*entry
	gen uint64
}

func NewStore(clock Clock) *Store {
	if clock == nil {
		clock = SystemClock()
	}
	return &Store{clock: clock, m: map[int64]*entry{}}
}

// Create starts a fresh session in stage Uploaded, replacing any session the
// user already had and cancelling its expiry.
func (s *Store) Create(userID int64, chat transport.ChatTarget, fileName string, content []byte) Session {
	sess := Session{
		UserID:    userID,
		Chat:      chat,
		FileName:  fileName,
		Content:   content,
		Defaults:  DefaultParams(fileName, content),
		Stage:     Uploaded{},
		CreatedAt: s.clock.Now(),
	}

	s.mu.Lock()
	if old := s.m[userID]; old != nil {
		stopTimer(old)
	}
	s.m[userID] = &entry{sess: sess}
	s.mu.Unlock()
	return sess
}

// Get returns a copy of the user's session.
func (s *Store) Get(userID int64) (Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := s.m[userID]
	if e == nil {
		return Session{}, false
	}
	return e.sess, true
}

// Update applies fn to the user's session and reports whether one existed.
// fn runs under the store lock and must not call back into the Store.
// Identity, file and Defaults are restored after fn; only Stage, Prompt and
// Chat are mutable.
func (s *Store) Update(userID int64, fn func(*Session)) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := s.m[userID]
	if e == nil {
		return false
	}
	cp := e.sess
	fn(&cp)
	cp.UserID = e.sess.UserID
	cp.FileName = e.sess.FileName
	cp.Content = e.sess.Content
	cp.Defaults = e.sess.Defaults
	cp.CreatedAt = e.sess.CreatedAt
	if cp.Stage == nil {
		cp.Stage = e.sess.Stage
	}
	e.sess = cp
	return true
}

// Delete cancels any armed expiry and removes the session. It reports
// whether a session existed; deleting an absent session is a no-op.
func (s *Store) Delete(userID int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := s.m[userID]
	if e == nil {
		return false
	}
	stopTimer(e)
	delete(s.m, userID)
	return true
}

// ArmExpiry schedules deletion of the user's session after d, replacing any
// previously armed expiry. When it fires, onExpire receives the removed
// session. Without a session this is a no-op returning false.
func (s *Store) ArmExpiry(userID int64, d time.Duration, onExpire func(Session)) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := s.m[userID]
	if e == nil {
		return false
	}
	stopTimer(e)
	s.gen++
	gen := s.gen
	e.gen = gen
	e.timer = s.clock.AfterFunc(d, func() { s.expire(userID, gen, onExpire) })
	return true
}

// Disarm cancels the user's pending expiry and reports whether the session
// still exists. A true result means no expiry can remove it afterwards.
func (s *Store) Disarm(userID int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := s.m[userID]
	if e == nil {
		return false
	}
	stopTimer(e)
	return true
}

// Armed reports whether the user's session has a pending expiry.
func (s *Store) Armed(userID int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := s.m[userID]
	return e != nil && e.timer != nil
}

// Len returns the number of live sessions.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.m)
}

// expire runs on the clock's goroutine. A timer that lost a race with a
// re-arm, replace or delete finds a different generation and does nothing.
func (s *Store) expire(userID int64, gen uint64, onExpire func(Session)) {
	s.mu.Lock()
	e := s.m[userID]
	if e == nil || e.gen != gen {
		s.mu.Unlock()
		return
	}
	delete(s.m, userID)
	sess := e.sess
	s.mu.Unlock()

	if onExpire != nil {
		onExpire(sess)
	}
}

func stopTimer(e *entry) {
	if e.timer != nil {
		e.timer.Stop()
	}
	e.timer = nil
	e.gen = 0
}
