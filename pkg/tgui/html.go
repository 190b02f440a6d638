package tgui

import "html"

// H is text already escaped for Telegram's HTML parse mode.
type H string

func (h H) String() string { return string(h) }

func Esc(s string) H { return H(html.EscapeString(s)) }

func tag(name string, inner H) H { return "<" + H(name) + ">" + inner + "</" + H(name) + ">" }

func B(s string) H    { return tag("b", Esc(s)) }
func Code(s string) H { return tag("code", Esc(s)) }

// Pre renders a block users can copy with one tap.
func Pre(s string) H { return tag("pre", Code(s)) }
