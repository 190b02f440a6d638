package workflow

import (
	"fmt"
	"strings"

	"scriptbot/internal/backend"
	"scriptbot/internal/cronexpr"
	"scriptbot/internal/session"
	"scriptbot/pkg/tgui"
)

// Callback plugin and actions carried in inline-button data.
const (
	CallbackPlugin = "task"

	ActionCreate    = "create"
	ActionUpload    = "upload"
	ActionEnd       = "end"
	ActionModifyYes = "modify_yes"
	ActionModifyNo  = "modify_no"
	ActionConfirm   = "confirm"
	ActionEdit      = "edit"
	ActionCancel    = "cancel"
)

// Actions lists every callback action the engine handles.
var Actions = []string{
	ActionCreate, ActionUpload, ActionEnd,
	ActionModifyYes, ActionModifyNo,
	ActionConfirm, ActionEdit, ActionCancel,
}

func btn(text, action string) tgui.Button {
	return tgui.Btn(text, tgui.Data(CallbackPlugin, action, ""))
}

func endRow() []tgui.Button {
	return []tgui.Button{btn("✖️ End session", ActionEnd)}
}

func paramsKV(b *tgui.Builder, p backend.TaskParams) *tgui.Builder {
	return b.KV("name", p.Name).KV("command", p.Command).KV("schedule", p.Schedule)
}

func uploadedCard(s session.Session) tgui.Message {
	kb := tgui.NewInline().
		Row(btn("🗓 Create task", ActionCreate), btn("⬆️ Upload only", ActionUpload)).
		Row(endRow()...)
	b := tgui.New().Inline(kb).Title("📄", "Script received").
		KV("file", s.FileName).
		KV("size", fmt.Sprintf("%d bytes", len(s.Content)))
	if sched, ok := cronexpr.Extract(string(s.Content)); ok {
		b.KV("detected schedule", sched)
	}
	return b.Blank().Line("What should happen with it?").Build()
}

func modifyCard(s session.Session) tgui.Message {
	kb := tgui.ConfirmInline(btn("✏️ Yes, customize", ActionModifyYes), btn("✅ No, use defaults", ActionModifyNo)).
		Row(endRow()...)
	b := tgui.New().Inline(kb).Title("🗓", "Default task parameters")
	return paramsKV(b, s.Defaults).Blank().Line("Customize them?").Build()
}

func templateCard(p backend.TaskParams, timeout string) tgui.Message {
	kb := tgui.NewInline().Row(endRow()...)
	return tgui.New().Inline(kb).Title("✏️", "Edit parameters").
		Line("Reply with a JSON object within "+timeout+":").
		Pre(template(p)).
		Line("All of name, command and schedule are required.").
		Build()
}

func confirmCard(p backend.TaskParams) tgui.Message {
	kb := tgui.NewInline().
		Row(btn("✅ Confirm", ActionConfirm), btn("✏️ Edit", ActionEdit)).
		Row(btn("✖️ Cancel", ActionCancel))
	b := tgui.New().Inline(kb).Title("🔎", "Confirm task")
	paramsKV(b, p)
	// advisory only: the backend decides what it accepts
	if err := cronexpr.Validate(p.Schedule); err != nil {
		b.Blank().Line("⚠️ schedule may be rejected: " + err.Error())
	}
	return b.Build()
}

func createdCard(p backend.TaskParams) tgui.Message {
	b := tgui.New().Title("✅", "Task created")
	return paramsKV(b, p).Build()
}

func uploadedOnlyCard(fileName string) tgui.Message {
	return tgui.New().Title("✅", "Script uploaded").KV("file", fileName).Build()
}

// maxErrorRunes keeps a failure card under Telegram's message size.
const maxErrorRunes = 3000

// failedCard shows the backend's error text unchanged.
func failedCard(step string, err error) tgui.Message {
	return tgui.New().Title("❌", strings.ToUpper(step[:1])+step[1:]+" failed").
		Line(tgui.TruncRunes(err.Error(), maxErrorRunes)).
		Build()
}

func noticeCard(text string) tgui.Message {
	return tgui.New().Line(text).Build()
}
