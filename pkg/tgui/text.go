package tgui

// TruncRunes returns s cut to at most n runes, with "…" appended when
// something was dropped. Used to keep verbatim backend errors inside
// Telegram's message limits.
func TruncRunes(s string, n int) string {
	if n <= 0 {
		return ""
	}
	seen := 0
	for i := range s {
		if seen == n {
			return s[:i] + "…"
		}
		seen++
	}
	return s
}
