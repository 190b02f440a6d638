package adapter

import (
	"strings"
	"testing"

	tele "gopkg.in/telebot.v4"

	kit "scriptbot/internal/transport"
)

func TestUpdateConversion(t *testing.T) {
	t.Parallel()

	chat := &tele.Chat{ID: 42, Type: tele.ChatPrivate}
	user := &tele.User{ID: 7, Username: "ann"}

	up, ok := textUpdate(&tele.Message{ID: 1, Chat: chat, Sender: user, Text: "hi"})
	if !ok || up.Kind != kit.UpdateMessage || up.Message.FromID != 7 || up.Message.IsGroup {
		t.Fatalf("text update = %+v ok=%v", up.Message, ok)
	}

	up, ok = documentUpdate(&tele.Message{ID: 2, Chat: chat, Sender: user,
		Document: &tele.Document{File: tele.File{FileID: "f1"}, FileName: "a.py"}})
	if !ok || up.Kind != kit.UpdateDocument || up.Document.FileID != "f1" || up.Document.FileName != "a.py" {
		t.Fatalf("document update = %+v ok=%v", up.Document, ok)
	}

	up, ok = callbackUpdate(&tele.Callback{ID: "cb", Sender: user, Data: "task:create"}, &tele.Message{ID: 3, Chat: chat})
	if !ok || up.Callback.Data != "task:create" || up.Callback.MessageID != 3 || up.Callback.ChatID != 42 {
		t.Fatalf("callback update = %+v ok=%v", up.Callback, ok)
	}

	if _, ok := textUpdate(nil); ok {
		t.Fatal("nil message converted")
	}
	if _, ok := documentUpdate(&tele.Message{Chat: chat}); ok {
		t.Fatal("message without document converted")
	}
	if _, ok := callbackUpdate(&tele.Callback{ID: "cb"}, nil); ok {
		t.Fatal("inline callback converted")
	}
}

func TestMenuTrimsAndKeys(t *testing.T) {
	t.Parallel()

	cmds := []kit.BotCommand{
		{Command: "start"},
		{Command: ""},
		{Command: "help", Description: strings.Repeat("x", 300)},
	}
	out, key := menu(cmds)
	if len(out) != 2 || out[0].Description != "start" || len(out[1].Description) != maxMenuDescLength {
		t.Fatalf("menu = %+v", out)
	}
	if _, again := menu(cmds); again != key {
		t.Fatal("menu key not stable")
	}
	if _, other := menu(cmds[:1]); other == key {
		t.Fatal("different menus share a key")
	}
}

func TestConfigDefaults(t *testing.T) {
	t.Parallel()

	c := Config{MaxFileBytes: 1 << 40}.withDefaults()
	if c.MaxFileBytes != botAPIFileLimit || c.FetchAttempts != 3 || c.PollTimeout == 0 || c.FetchBackoff == 0 {
		t.Fatalf("defaults = %+v", c)
	}
}
