package tgui

import tele "gopkg.in/telebot.v4"

type Button = tele.Btn

// Btn is a callback button carrying data verbatim; build data with Data.
func Btn(text, data string) Button { return Button{Text: text, Data: data} }

// Inline accumulates inline keyboard rows.
type Inline struct {
	rows [][]Button
}

func NewInline() *Inline { return &Inline{} }

// ConfirmInline starts a keyboard whose first row is yes, no.
func ConfirmInline(yes, no Button) *Inline { return NewInline().Row(yes, no) }

func (i *Inline) Row(btns ...Button) *Inline {
	i.rows = append(i.rows, append([]Button(nil), btns...))
	return i
}

// Rows returns a copy of the keyboard layout.
func (i *Inline) Rows() [][]Button {
	out := make([][]Button, len(i.rows))
	for n, r := range i.rows {
		out[n] = append([]Button(nil), r...)
	}
	return out
}

// Markup converts the layout into telebot reply markup.
func (i *Inline) Markup() *tele.ReplyMarkup {
	rm := &tele.ReplyMarkup{}
	rows := make([]tele.Row, len(i.rows))
	for n, r := range i.rows {
		rows[n] = rm.Row(r...)
	}
	rm.Inline(rows...)
	return rm
}
