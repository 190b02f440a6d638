package workflow

import (
	"context"
	"errors"
	"html"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"scriptbot/internal/backend"
	"scriptbot/internal/eventbus"
	"scriptbot/internal/session"
	kit "scriptbot/internal/transport"
	"scriptbot/internal/transport/fake"
	logx "scriptbot/pkg/logx"
)

type call struct {
	op       string
	fileName string
	content  string
	params   backend.TaskParams
}

type fakeBackend struct {
	mu          sync.Mutex
	calls       []call
	uploadErr   error
	registerErr error
}

func (b *fakeBackend) UploadScript(_ context.Context, fileName string, content []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls = append(b.calls, call{op: "upload", fileName: fileName, content: string(content)})
	return b.uploadErr
}

func (b *fakeBackend) RegisterJob(_ context.Context, p backend.TaskParams) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls = append(b.calls, call{op: "register", params: p})
	return b.registerErr
}

func (b *fakeBackend) ops() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]string, 0, len(b.calls))
	for _, c := range b.calls {
		out = append(out, c.op)
	}
	return out
}

const (
	user    = int64(42)
	timeout = 5 * time.Minute
)

var chat = kit.ChatTarget{ChatID: 42}

type harness struct {
	t       *testing.T
	ctx     context.Context
	eng     *Engine
	store   *session.Store
	clock   *session.FakeClock
	adapter *fake.Adapter
	backend *fakeBackend
	events  <-chan eventbus.Event
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	clock := session.NewFakeClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	store := session.NewStore(clock)
	ad := fake.New()
	be := &fakeBackend{}
	bus := eventbus.New()
	events, unsub := bus.Subscribe(32)
	t.Cleanup(unsub)

	eng := New(Deps{Log: logx.Nop(), Adapter: ad, Store: store, Backend: be, Bus: bus}, Options{EditTimeout: timeout})
	return &harness{t: t, ctx: context.Background(), eng: eng, store: store, clock: clock, adapter: ad, backend: be, events: events}
}

func (h *harness) upload(name, content string) {
	h.t.Helper()
	fileID := "file-" + name
	h.adapter.PutFile(fileID, []byte(content))
	err := h.eng.HandleDocument(h.ctx, Event{UserID: user, Chat: chat, MessageID: 1}, kit.Document{
		ChatID: chat.ChatID, FromID: user, FileID: fileID, FileName: name, Size: int64(len(content)),
	})
	require.NoError(h.t, err)
}

// press clicks a button on the session's current prompt.
func (h *harness) press(action string) string {
	h.t.Helper()
	msgID := 0
	if s, ok := h.store.Get(user); ok {
		msgID = s.Prompt.MessageID
	}
	notice, err := h.eng.HandleCallback(h.ctx, Event{UserID: user, Chat: chat, MessageID: msgID}, action)
	require.NoError(h.t, err)
	return notice
}

func (h *harness) text(s string) bool {
	h.t.Helper()
	handled, err := h.eng.HandleText(h.ctx, Event{UserID: user, Chat: chat, MessageID: 7}, s)
	require.NoError(h.t, err)
	return handled
}

func (h *harness) stage() session.Stage {
	h.t.Helper()
	s, ok := h.store.Get(user)
	require.True(h.t, ok, "session should exist")
	return s.Stage
}

// lastText is the newest sent or edited text with HTML entities decoded.
func (h *harness) lastText() string {
	texts := h.adapter.Texts()
	if len(texts) == 0 {
		return ""
	}
	return html.UnescapeString(texts[len(texts)-1])
}

func (h *harness) nextEvent() eventbus.Event {
	h.t.Helper()
	select {
	case ev := <-h.events:
		return ev
	default:
		h.t.Fatalf("no event published")
		return eventbus.Event{}
	}
}

func TestIntakeComputesDefaults(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	h.upload("demo.py", "# 0 0 * * * python demo.py\nprint('hi')\n")

	s, ok := h.store.Get(user)
	require.True(t, ok)
	require.Equal(t, "0 0 * * *", s.Defaults.Schedule)
	require.Equal(t, "task demo.py", s.Defaults.Command)
	require.Equal(t, "demo", s.Defaults.Name)
	require.IsType(t, session.Uploaded{}, s.Stage)
	require.False(t, s.Prompt.IsZero())

	card := h.adapter.Last()
	require.Contains(t, card.Text, "demo.py")
	require.NotNil(t, card.Opt.ReplyMarkupAdapter)
}

func TestIntakeSixFieldScheduleDropsSeconds(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	h.upload("job.js", "// 0 */5 * * * * node job.js")
	s, _ := h.store.Get(user)
	require.Equal(t, "*/5 * * * *", s.Defaults.Schedule)
}

func TestIntakeRejections(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		doc  kit.Document
		want string
	}{
		{name: "unsupported", doc: kit.Document{FileID: "f", FileName: "virus.exe", Size: 3}, want: "unsupported file type"},
		{name: "no extension", doc: kit.Document{FileID: "f", FileName: "Makefile", Size: 3}, want: "unsupported file type"},
		{name: "missing name", doc: kit.Document{FileID: "f", FileName: " ", Size: 3}, want: "file has no name"},
		{name: "too large", doc: kit.Document{FileID: "f", FileName: "big.py", Size: DefaultMaxFileBytes + 1}, want: "file too large"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			h := newHarness(t)
			h.adapter.PutFile("f", []byte("abc"))

			require.NoError(t, h.eng.HandleDocument(h.ctx, Event{UserID: user, Chat: chat}, tt.doc))
			require.Equal(t, 0, h.store.Len())
			require.Contains(t, h.adapter.Last().Text, tt.want)
			require.Empty(t, h.backend.ops())
		})
	}
}

func TestIntakeWithoutSender(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	h.adapter.PutFile("f", []byte("abc"))

	require.NoError(t, h.eng.HandleDocument(h.ctx, Event{Chat: chat}, kit.Document{FileID: "f", FileName: "a.py", Size: 3}))
	require.Equal(t, 0, h.store.Len())
	require.Equal(t, ErrNoSender.Error(), h.lastText())
	require.Empty(t, h.backend.ops())
}

func TestIntakeFetchFailure(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	h.adapter.FailFetch = errors.New("telegram: timeout")

	require.NoError(t, h.eng.HandleDocument(h.ctx, Event{UserID: user, Chat: chat}, kit.Document{FileID: "x", FileName: "a.py"}))
	require.Equal(t, 0, h.store.Len())
	require.Contains(t, h.adapter.Last().Text, "telegram: timeout")
}

func TestSecondUploadReplacesSession(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	h.upload("a.py", "print(1)")
	h.press(ActionCreate)
	h.press(ActionModifyYes)
	require.Equal(t, 1, h.clock.Pending())
	first, _ := h.store.Get(user)

	h.upload("b.sh", "echo 1")
	s, _ := h.store.Get(user)
	require.Equal(t, "b.sh", s.FileName)
	require.IsType(t, session.Uploaded{}, s.Stage)
	require.Equal(t, 0, h.clock.Pending(), "old expiry must be cancelled")
	require.Contains(t, h.adapter.Deleted(), first.Prompt)

	h.clock.Advance(2 * timeout)
	require.Equal(t, 1, h.store.Len())
}

func TestCreateWithDefaults(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	h.upload("demo.py", "0 0 * * * python demo.py")
	require.Empty(t, h.press(ActionCreate))
	require.IsType(t, session.AwaitingModifyDecision{}, h.stage())
	require.Contains(t, h.lastText(), "task demo.py")

	require.Equal(t, "task created", h.press(ActionModifyNo))
	require.Equal(t, []string{"upload", "register"}, h.backend.ops())
	require.Equal(t, "demo.py", h.backend.calls[0].fileName)
	require.Equal(t, "0 0 * * * python demo.py", h.backend.calls[0].content)
	require.Equal(t, backend.TaskParams{Name: "demo", Command: "task demo.py", Schedule: "0 0 * * *"}, h.backend.calls[1].params)
	require.Equal(t, 0, h.store.Len())
	require.Contains(t, h.lastText(), "Task created")

	ev := h.nextEvent()
	require.Equal(t, eventbus.TopicTaskCreated, ev.Type)
	require.Equal(t, "demo", ev.Data.(eventbus.Outcome).Name)
}

func TestUploadOnly(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	h.upload("a.ts", "console.log(1)")
	require.Equal(t, "uploaded", h.press(ActionUpload))
	require.Equal(t, []string{"upload"}, h.backend.ops())
	require.Equal(t, 0, h.store.Len())
	require.Equal(t, eventbus.TopicUploaded, h.nextEvent().Type)
}

func TestCustomizeExpires(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	h.upload("a.py", "print(1)")
	h.press(ActionCreate)
	h.press(ActionModifyYes)
	st, ok := h.stage().(session.AwaitingJSONParams)
	require.True(t, ok)
	require.Equal(t, "task a.py", st.Draft.Command)
	require.Contains(t, h.lastText(), `"command": "task a.py"`)
	prompt, _ := h.store.Get(user)

	h.clock.Advance(timeout - time.Second)
	require.Equal(t, 1, h.store.Len())

	h.clock.Advance(time.Second)
	require.Equal(t, 0, h.store.Len())
	edits := h.adapter.Edits()
	require.Equal(t, TextExpired, edits[len(edits)-1].Text)
	require.Equal(t, prompt.Prompt, edits[len(edits)-1].Ref)
	require.Equal(t, eventbus.TopicSessionExpired, h.nextEvent().Type)
	require.Empty(t, h.backend.ops())

	// a late reply loses the race and is told so
	require.True(t, h.text(`{"name":"x","command":"y","schedule":"* * * * *"}`))
	require.Equal(t, TextSessionExpired, h.adapter.Last().Text)
}

func TestMissingFieldsKeepsStageAndExpiry(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	h.upload("a.py", "print(1)")
	h.press(ActionCreate)
	h.press(ActionModifyYes)
	h.clock.Advance(4 * time.Minute)

	require.True(t, h.text(`  {"name":"x"}  `))
	require.Equal(t, "missing required field(s): command, schedule", h.adapter.Last().Text)
	require.IsType(t, session.AwaitingJSONParams{}, h.stage())
	require.Equal(t, 1, h.clock.Pending())

	require.True(t, h.text(`{"name":"x","command":"y"}`))
	require.Equal(t, "missing required field(s): schedule", h.adapter.Last().Text)

	// the original deadline still applies: no re-arm happened
	h.clock.Advance(time.Minute)
	require.Equal(t, 0, h.store.Len())
}

func TestMalformedJSONKeepsStage(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	h.upload("a.py", "print(1)")
	h.press(ActionCreate)
	h.press(ActionModifyYes)

	require.True(t, h.text(`{name: x}`))
	require.True(t, strings.HasPrefix(h.adapter.Last().Text, "invalid JSON"))
	require.IsType(t, session.AwaitingJSONParams{}, h.stage())
}

func TestStrayClosingBraceKeepsStage(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	h.upload("a.py", "print(1)")
	h.press(ActionCreate)
	h.press(ActionModifyYes)

	require.True(t, h.text(`{"name":"a","command":"b","schedule":"c"}}`))
	_, ok := h.stage().(session.AwaitingJSONParams)
	require.True(t, ok, "stage should stay AwaitingJSONParams")
	require.Contains(t, h.lastText(), "invalid JSON")
	require.Empty(t, h.backend.ops())
}

func TestNonJSONTextFallsThrough(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	require.False(t, h.text("hello"))
	h.upload("a.py", "print(1)")
	h.press(ActionCreate)
	h.press(ActionModifyYes)
	require.False(t, h.text("{ not closed"))
	require.IsType(t, session.AwaitingJSONParams{}, h.stage())
}

func TestJSONOutsideEditStageFallsThrough(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	h.upload("a.py", "print(1)")
	require.False(t, h.text(`{"name":"x","command":"y","schedule":"z"}`))
	require.IsType(t, session.Uploaded{}, h.stage())
}

func TestConfirmRoundTrip(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	h.upload("a.py", "print(1)")
	h.press(ActionCreate)
	h.press(ActionModifyYes)
	tmpl, _ := h.store.Get(user)

	want := backend.TaskParams{Name: "nightly", Command: "task a.py --all", Schedule: "30 2 * * *"}
	require.True(t, h.text(`{"name":"nightly","command":"task a.py --all","schedule":"30 2 * * *","extra":1}`))
	st, ok := h.stage().(session.AwaitingConfirmation)
	require.True(t, ok)
	require.Equal(t, want, st.Candidate)
	require.Contains(t, h.adapter.Deleted(), tmpl.Prompt)
	require.NotContains(t, h.adapter.Last().Text, "may be rejected")

	require.Equal(t, "task created", h.press(ActionConfirm))
	require.Equal(t, want, h.backend.calls[1].params)
	require.Equal(t, 0, h.store.Len())
	require.Equal(t, 0, h.clock.Pending())
}

func TestExpiryBeforeCompletionSkipsBackend(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	h.upload("a.py", "print(1)")
	h.press(ActionCreate)
	h.press(ActionModifyYes)
	require.True(t, h.text(`{"name":"n","command":"task a.py","schedule":"0 1 * * *"}`))
	sess, ok := h.store.Get(user)
	require.True(t, ok)
	cand, ok := sess.Candidate()
	require.True(t, ok)

	// the confirm press read the session, then the expiry fired
	h.clock.Advance(timeout + time.Second)
	require.Equal(t, 0, h.store.Len())
	require.Equal(t, TextExpired, h.lastText())

	notice := h.eng.complete(h.ctx, Event{UserID: user, Chat: chat, MessageID: sess.Prompt.MessageID}, sess, &cand)
	require.Equal(t, TextSessionExpired, notice)
	require.Empty(t, h.backend.ops())
	require.Equal(t, TextSessionExpired, h.lastText())
	require.Equal(t, 0, h.store.Len())
}

func TestConfirmCardWarnsOnOddSchedule(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	h.upload("a.py", "print(1)")
	h.press(ActionCreate)
	h.press(ActionModifyYes)
	require.True(t, h.text(`{"name":"n","command":"c","schedule":"every day"}`))
	require.Contains(t, h.adapter.Last().Text, "may be rejected")

	// advisory only: the backend still receives it
	h.press(ActionConfirm)
	require.Equal(t, "every day", h.backend.calls[1].params.Schedule)
}

func TestEditFromConfirmation(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	h.upload("a.py", "print(1)")
	h.press(ActionCreate)
	h.press(ActionModifyYes)
	require.True(t, h.text(`{"name":"n","command":"c","schedule":"* * * * *"}`))

	require.Empty(t, h.press(ActionEdit))
	st, ok := h.stage().(session.AwaitingJSONParams)
	require.True(t, ok)
	require.Equal(t, backend.TaskParams{Name: "n", Command: "c", Schedule: "* * * * *"}, st.Draft)
	require.Equal(t, 1, h.clock.Pending())
	require.Contains(t, h.lastText(), `"name": "n"`)
}

func TestCancelFromConfirmation(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	h.upload("a.py", "print(1)")
	h.press(ActionCreate)
	h.press(ActionModifyYes)
	require.True(t, h.text(`{"name":"n","command":"c","schedule":"* * * * *"}`))

	h.press(ActionCancel)
	require.Equal(t, 0, h.store.Len())
	require.Equal(t, 0, h.clock.Pending())
	require.Empty(t, h.backend.ops())
	require.Equal(t, eventbus.TopicSessionCancelled, h.nextEvent().Type)
}

func TestEndFromAnyStage(t *testing.T) {
	t.Parallel()

	setups := map[string]func(h *harness){
		"uploaded": func(h *harness) {},
		"modify":   func(h *harness) { h.press(ActionCreate) },
		"json": func(h *harness) {
			h.press(ActionCreate)
			h.press(ActionModifyYes)
		},
		"confirm": func(h *harness) {
			h.press(ActionCreate)
			h.press(ActionModifyYes)
			h.text(`{"name":"n","command":"c","schedule":"* * * * *"}`)
		},
	}
	for name, setup := range setups {
		setup := setup
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			h := newHarness(t)
			h.upload("a.py", "print(1)")
			setup(h)

			h.press(ActionEnd)
			require.Equal(t, 0, h.store.Len())
			require.Equal(t, 0, h.clock.Pending())
			require.Contains(t, h.lastText(), "Session ended.")
		})
	}
}

func TestStaleAndDuplicateButtons(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	h.upload("a.py", "print(1)")
	require.Equal(t, TextStaleButton, h.press(ActionConfirm))
	require.Equal(t, TextStaleButton, h.press(ActionModifyNo))
	require.IsType(t, session.Uploaded{}, h.stage())

	h.press(ActionCreate)
	require.Equal(t, TextStaleButton, h.press(ActionCreate))
	require.IsType(t, session.AwaitingModifyDecision{}, h.stage())

	h.press(ActionModifyNo)
	// the duplicate arrives after completion
	require.Equal(t, TextSessionExpired, h.press(ActionModifyNo))
	require.Equal(t, []string{"upload", "register"}, h.backend.ops())
}

func TestBackendFailures(t *testing.T) {
	t.Parallel()

	t.Run("upload", func(t *testing.T) {
		t.Parallel()
		h := newHarness(t)
		h.backend.uploadErr = errors.New("disk quota exceeded")

		h.upload("a.py", "print(1)")
		h.press(ActionCreate)
		require.Equal(t, "upload failed", h.press(ActionModifyNo))
		require.Equal(t, []string{"upload"}, h.backend.ops())
		require.Equal(t, 0, h.store.Len())
		require.Contains(t, h.lastText(), "disk quota exceeded")

		ev := h.nextEvent()
		require.Equal(t, eventbus.TopicFailed, ev.Type)
		require.Equal(t, "disk quota exceeded", ev.Data.(eventbus.Outcome).Err)
	})

	t.Run("register", func(t *testing.T) {
		t.Parallel()
		h := newHarness(t)
		h.backend.registerErr = errors.New("invalid cron expression")

		h.upload("a.py", "print(1)")
		h.press(ActionCreate)
		h.press(ActionModifyYes)
		require.True(t, h.text(`{"name":"n","command":"c","schedule":"bad"}`))
		require.Equal(t, "register failed", h.press(ActionConfirm))
		require.Equal(t, []string{"upload", "register"}, h.backend.ops())
		require.Equal(t, 0, h.store.Len())
		require.Equal(t, 0, h.clock.Pending())
		require.Contains(t, h.lastText(), "invalid cron expression")
	})
}

func TestAbsentSessionCallback(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	notice, err := h.eng.HandleCallback(h.ctx, Event{UserID: user, Chat: chat, MessageID: 55}, ActionConfirm)
	require.NoError(t, err)
	require.Equal(t, TextSessionExpired, notice)
	require.Equal(t, 55, h.adapter.Edits()[0].Ref.MessageID)
	require.Empty(t, h.backend.ops())
}

func TestEditFailureFallsBackToSend(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	h.upload("a.py", "print(1)")
	before := len(h.adapter.Sent())
	h.adapter.FailEdit = errors.New("message to edit not found")
	h.press(ActionCreate)

	sent := h.adapter.Sent()
	require.Len(t, sent, before+1)
	require.Contains(t, sent[len(sent)-1].Text, "Default task parameters")
	s, _ := h.store.Get(user)
	require.Equal(t, sent[len(sent)-1].Ref, s.Prompt)
}

func TestDeleteFailureIsSwallowed(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	h.adapter.FailDelete = errors.New("message can't be deleted")

	h.upload("a.py", "print(1)")
	h.press(ActionCreate)
	h.press(ActionModifyYes)
	require.True(t, h.text(`{"name":"n","command":"c","schedule":"* * * * *"}`))
	require.IsType(t, session.AwaitingConfirmation{}, h.stage())
}

func TestCancelCommand(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	require.NoError(t, h.eng.Cancel(h.ctx, Event{UserID: user, Chat: chat}))
	require.Equal(t, "no active session", h.adapter.Last().Text)

	h.upload("a.py", "print(1)")
	require.NoError(t, h.eng.Cancel(h.ctx, Event{UserID: user, Chat: chat, MessageID: 3}))
	require.Equal(t, 0, h.store.Len())
}

func TestSetOptionsAppliesToNextArm(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	h.eng.SetOptions(Options{EditTimeout: time.Minute, AllowedExtensions: []string{".PY"}})

	h.upload("a.py", "print(1)")
	h.press(ActionCreate)
	h.press(ActionModifyYes)
	h.clock.Advance(time.Minute)
	require.Equal(t, 0, h.store.Len())

	require.NoError(t, h.eng.HandleDocument(h.ctx, Event{UserID: user, Chat: chat}, kit.Document{FileID: "file-a.py", FileName: "a.js"}))
	require.Contains(t, h.adapter.Last().Text, "unsupported file type")
}
