package adapter

import (
	tele "gopkg.in/telebot.v4"

	kit "scriptbot/internal/transport"
)

func sender(u *tele.User) (id int64, username string) {
	if u != nil {
		id, username = u.ID, u.Username
	}
	return id, username
}

func textUpdate(m *tele.Message) (kit.Update, bool) {
	if m == nil || m.Chat == nil {
		return kit.Update{}, false
	}
	id, name := sender(m.Sender)
	return kit.Update{Kind: kit.UpdateMessage, Message: &kit.Message{
		ID:           m.ID,
		ChatID:       m.Chat.ID,
		ThreadID:     m.ThreadID,
		FromID:       id,
		FromUsername: name,
		Text:         m.Text,
		IsGroup:      m.Chat.Type != tele.ChatPrivate,
	}}, true
}

func documentUpdate(m *tele.Message) (kit.Update, bool) {
	if m == nil || m.Chat == nil || m.Document == nil {
		return kit.Update{}, false
	}
	id, name := sender(m.Sender)
	d := m.Document
	return kit.Update{Kind: kit.UpdateDocument, Document: &kit.Document{
		MessageID:    m.ID,
		ChatID:       m.Chat.ID,
		ThreadID:     m.ThreadID,
		FromID:       id,
		FromUsername: name,
		FileID:       d.FileID,
		FileName:     d.FileName,
		MIME:         d.MIME,
		Size:         int64(d.FileSize),
	}}, true
}

// callbackUpdate drops presses on inline messages; they carry no chat.
func callbackUpdate(cb *tele.Callback, m *tele.Message) (kit.Update, bool) {
	if cb == nil || m == nil || m.Chat == nil {
		return kit.Update{}, false
	}
	id, _ := sender(cb.Sender)
	return kit.Update{Kind: kit.UpdateCallback, Callback: &kit.Callback{
		ID:        cb.ID,
		ChatID:    m.Chat.ID,
		ThreadID:  m.ThreadID,
		FromID:    id,
		MessageID: m.ID,
		Data:      cb.Data,
	}}, true
}
