package cronexpr

import "testing"

func TestExtract(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		text string
		want string
		ok   bool
	}{
		{name: "five fields", text: "0 */5 * * * node foo", want: "0 */5 * * *", ok: true},
		{name: "six fields drops seconds", text: "0 */5 * * * * node foo", want: "*/5 * * * *", ok: true},
		{name: "comment header", text: "# cron: 30 8 * * 1-5\nprint('hi')", want: "30 8 * * 1-5", ok: true},
		{name: "python demo", text: "0 0 * * * python demo.py", want: "0 0 * * *", ok: true},
		{name: "lists and ranges", text: "new Env('x'); // 5,35 1-3 */2 * 0", want: "5,35 1-3 */2 * 0", ok: true},
		{name: "run continues across newline", text: "1 2 3 4 5\n6 7 8 9 10", want: "2 3 4 5 6", ok: true},
		{name: "first match wins", text: "1 2 3 4 5 x 6 7 8 9 10", want: "1 2 3 4 5", ok: true},
		{name: "four fields", text: "0 0 * * python", ok: false},
		{name: "split across lines", text: "0 0\n* * *", want: "0 0 * * *", ok: true},
		{name: "tab separated", text: "*/10\t*\t*\t*\t*", want: "*/10 * * * *", ok: true},
		{name: "empty", text: "", ok: false},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, ok := Extract(tt.text)
			if ok != tt.ok || got != tt.want {
				t.Fatalf("Extract(%q) = %q, %v; want %q, %v", tt.text, got, ok, tt.want, tt.ok)
			}
		})
	}
}

func TestScheduleOrDefault(t *testing.T) {
	t.Parallel()
	if got := ScheduleOrDefault("echo hello"); got != DefaultSchedule {
		t.Fatalf("got %q, want %q", got, DefaultSchedule)
	}
	if got := ScheduleOrDefault("15 3 * * *"); got != "15 3 * * *" {
		t.Fatalf("got %q", got)
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()
	for _, ok := range []string{"0 0 * * *", "*/5 * * * *", "5,35 1-3 */2 * 0"} {
		if err := Validate(ok); err != nil {
			t.Fatalf("Validate(%q) = %v", ok, err)
		}
	}
	for _, bad := range []string{"", "0 0 * *", "0 0 * * * *", "61 0 * * *", "daily"} {
		if err := Validate(bad); err == nil {
			t.Fatalf("Validate(%q) = nil, want error", bad)
		}
	}
}
