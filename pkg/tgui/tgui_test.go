package tgui

import (
	"strings"
	"testing"
)

func TestDataRoundTrip(t *testing.T) {
	t.Parallel()
	tests := []struct {
		plugin, action, payload string
		want                    string
	}{
		{"task", "create", "", "task:create"},
		{" task ", " confirm ", "", "task:confirm"},
		{"task", "edit", "a:b", "task:edit:a:b"},
	}
	for _, tt := range tests {
		got := Data(tt.plugin, tt.action, tt.payload)
		if got != tt.want {
			t.Fatalf("Data() = %q, want %q", got, tt.want)
		}
		p, a, pl, ok := ParseData(got)
		if !ok || p != strings.TrimSpace(tt.plugin) || a != strings.TrimSpace(tt.action) || pl != tt.payload {
			t.Fatalf("ParseData(%q) = %q %q %q %v", got, p, a, pl, ok)
		}
	}
	if _, _, _, ok := ParseData("lonely"); ok {
		t.Fatal("expected ParseData to reject single-part data")
	}
}

func TestCheckedDataLimit(t *testing.T) {
	t.Parallel()
	if _, err := CheckedData("task", "create", ""); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := CheckedData("task", "x", strings.Repeat("p", MaxCallbackDataLen)); err != ErrCallbackDataTooLong {
		t.Fatalf("err = %v, want ErrCallbackDataTooLong", err)
	}
}

func TestTruncRunes(t *testing.T) {
	t.Parallel()
	if got := TruncRunes("héllo", 10); got != "héllo" {
		t.Fatalf("got %q", got)
	}
	if got := TruncRunes("héllo", 2); got != "hé…" {
		t.Fatalf("got %q", got)
	}
	if got := TruncRunes("abc", 0); got != "" {
		t.Fatalf("got %q", got)
	}
}

func TestBuilderEscapesAndAttachesKeyboard(t *testing.T) {
	t.Parallel()
	kb := NewInline().Row(Btn("Yes", Data("task", "modify_yes", "")), Btn("No", Data("task", "modify_no", "")))
	msg := New().Title("📄", "<demo>").KV("name", "a&b").Pre(`{"x":1}`).Inline(kb).Build()

	if !strings.Contains(msg.Text, "<b>&lt;demo&gt;</b>") {
		t.Fatalf("title not escaped: %q", msg.Text)
	}
	if !strings.Contains(msg.Text, "<code>a&amp;b</code>") {
		t.Fatalf("kv not escaped: %q", msg.Text)
	}
	if !strings.Contains(msg.Text, "<pre><code>{&#34;x&#34;:1}</code></pre>") {
		t.Fatalf("pre not rendered: %q", msg.Text)
	}
	if msg.Opt.ParseMode != "HTML" || msg.Keyboard() == nil {
		t.Fatalf("unexpected options: %+v", msg.Opt)
	}
	if rows := kb.Rows(); len(rows) != 1 || len(rows[0]) != 2 {
		t.Fatalf("rows = %v", rows)
	}
}
