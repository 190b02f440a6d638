package workflow

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"scriptbot/internal/session"
	kit "scriptbot/internal/transport"
	"scriptbot/internal/transport/fake"
	"scriptbot/internal/transport/telegram/router"
	logx "scriptbot/pkg/logx"
	"scriptbot/pkg/tgui"
)

// TestRouterDrivesWorkflow runs the upload-only path through the router so
// that callback data, answers and text fall-through are covered end to end.
func TestRouterDrivesWorkflow(t *testing.T) {
	t.Parallel()

	ad := fake.New()
	be := &fakeBackend{}
	store := session.NewStore(session.SystemClock())
	eng := New(Deps{Log: logx.Nop(), Adapter: ad, Store: store, Backend: be}, Options{})

	ctx, cancel := context.WithCancel(context.Background())
	r := router.New(logx.Nop(), ad, router.Options{Workers: 2})
	r.SetRegistry(ctx, eng.Registry())
	updates := make(chan kit.Update, 8)
	done := make(chan struct{})
	go func() {
		_ = r.Run(ctx, updates)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	ad.PutFile("f1", []byte("echo hi"))
	updates <- kit.Update{Kind: kit.UpdateDocument, Document: &kit.Document{
		MessageID: 1, ChatID: 5, FromID: 5, FileID: "f1", FileName: "hi.sh", Size: 7,
	}}
	require.Eventually(t, func() bool { return store.Len() == 1 }, 3*time.Second, 5*time.Millisecond)

	sess, _ := store.Get(5)
	updates <- kit.Update{Kind: kit.UpdateMessage, Message: &kit.Message{ID: 2, ChatID: 5, FromID: 5, Text: "what now?"}}
	updates <- kit.Update{Kind: kit.UpdateCallback, Callback: &kit.Callback{
		ID: "cb1", ChatID: 5, FromID: 5, MessageID: sess.Prompt.MessageID,
		Data: tgui.Data(CallbackPlugin, ActionUpload, ""),
	}}

	require.Eventually(t, func() bool { return len(ad.Answers()) == 1 }, 3*time.Second, 5*time.Millisecond)
	require.Equal(t, "uploaded", ad.Answers()[0].Text)
	require.Equal(t, []string{"upload"}, be.ops())
	require.Equal(t, 0, store.Len())
	require.Contains(t, ad.Texts(), "Send a script file to start, or /help.")
}
