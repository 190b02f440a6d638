// Package admin adds operator commands for looking at what the bot has
// scheduled and done: local jobs (list, run, delete) and the caller's
// audit trail. Access is governed by the router's allow-list.
package admin

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"scriptbot/internal/backend/local"
	"scriptbot/internal/storage"
	"scriptbot/internal/transport/telegram/router"
	"scriptbot/pkg/tgui"
)

const (
	defaultAuditRows = 10
	maxAuditRows     = 50
	// auditScan bounds how far back /audit looks for the caller's entries.
	auditScan = 500

	timeLayout = "2006-01-02 15:04"
)

// Jobs is the slice of the local backend the job commands need.
type Jobs interface {
	Jobs() []local.JobInfo
	RunNow(ctx context.Context, name string) error
	Remove(ctx context.Context, name string) bool
}

type AuditLog interface {
	ListAudit(ctx context.Context, limit int) ([]storage.AuditEntry, error)
}

// Deps selects which commands exist: job commands need Jobs, /audit needs
// Audit. RunTimeout bounds /runjob (0 keeps the router default).
type Deps struct {
	Jobs       Jobs
	Audit      AuditLog
	RunTimeout time.Duration
}

func Commands(d Deps) []router.Command {
	var out []router.Command
	if d.Jobs != nil {
		out = append(out,
			router.Command{
				Name:        "jobs",
				Description: "list scheduled jobs",
				Usage:       "/jobs",
				Handle:      func(ctx context.Context, req *router.Request) error { return listJobs(ctx, req, d.Jobs) },
			},
			router.Command{
				Name:        "runjob",
				Description: "run a scheduled job now",
				Usage:       "/runjob <name>",
				Timeout:     d.RunTimeout,
				Handle:      func(ctx context.Context, req *router.Request) error { return runJob(ctx, req, d.Jobs) },
			},
			router.Command{
				Name:        "deljob",
				Description: "delete a scheduled job",
				Usage:       "/deljob <name>",
				Handle:      func(ctx context.Context, req *router.Request) error { return deleteJob(ctx, req, d.Jobs) },
			},
		)
	}
	if d.Audit != nil {
		out = append(out, router.Command{
			Name:        "audit",
			Description: "your recent outcomes",
			Usage:       "/audit [count]",
			Handle:      func(ctx context.Context, req *router.Request) error { return showAudit(ctx, req, d.Audit) },
		})
	}
	return out
}

func reply(ctx context.Context, req *router.Request, msg tgui.Message) error {
	_, err := msg.Send(ctx, req.Adapter, req.Chat)
	return err
}

func say(ctx context.Context, req *router.Request, text string) error {
	return reply(ctx, req, tgui.New().Line(text).Build())
}

// jobName joins the arguments so names with spaces work unquoted.
func jobName(req *router.Request) string {
	return strings.TrimSpace(strings.Join(req.Args, " "))
}

func listJobs(ctx context.Context, req *router.Request, jobs Jobs) error {
	list := jobs.Jobs()
	if len(list) == 0 {
		return say(ctx, req, "No scheduled jobs.")
	}
	b := tgui.New().Title("🗓", fmt.Sprintf("Scheduled jobs (%d)", len(list)))
	for _, j := range list {
		b.Blank().KV(j.Name, j.Schedule).Line("  " + j.Command)
		if !j.Next.IsZero() {
			b.Line("  next: " + j.Next.Format(timeLayout))
		}
	}
	return reply(ctx, req, b.Build())
}

func runJob(ctx context.Context, req *router.Request, jobs Jobs) error {
	name := jobName(req)
	if name == "" {
		return say(ctx, req, "usage: /runjob <name>")
	}
	start := time.Now()
	if err := jobs.RunNow(ctx, name); err != nil {
		return reply(ctx, req, tgui.New().Title("❌", "Run failed").KV("job", name).
			Line(tgui.TruncRunes(err.Error(), 3000)).Build())
	}
	return reply(ctx, req, tgui.New().Title("✅", "Job finished").KV("job", name).
		KV("took", time.Since(start).Round(time.Millisecond).String()).Build())
}

func deleteJob(ctx context.Context, req *router.Request, jobs Jobs) error {
	name := jobName(req)
	if name == "" {
		return say(ctx, req, "usage: /deljob <name>")
	}
	if !jobs.Remove(ctx, name) {
		return say(ctx, req, fmt.Sprintf("No job named %q.", name))
	}
	return reply(ctx, req, tgui.New().Title("🗑", "Job deleted").KV("job", name).Build())
}

func auditCount(args []string) int {
	if len(args) == 0 {
		return defaultAuditRows
	}
	n, err := strconv.Atoi(args[0])
	if err != nil || n <= 0 {
		return defaultAuditRows
	}
	return min(n, maxAuditRows)
}

// showAudit lists the caller's own entries, newest first.
func showAudit(ctx context.Context, req *router.Request, audit AuditLog) error {
	want := auditCount(req.Args)
	entries, err := audit.ListAudit(ctx, auditScan)
	if err != nil {
		return fmt.Errorf("list audit: %w", err)
	}
	mine := make([]storage.AuditEntry, 0, want)
	for _, e := range entries {
		if e.UserID == req.FromID {
			mine = append(mine, e)
			if len(mine) == want {
				break
			}
		}
	}
	if len(mine) == 0 {
		return say(ctx, req, "Nothing recorded for you yet.")
	}

	b := tgui.New().Title("📜", "Recent outcomes")
	for _, e := range mine {
		line := e.At.Local().Format(timeLayout) + "  " + e.Action + "  " + e.FileName
		if e.Target != "" {
			line += " (" + e.Target + ")"
		}
		b.Line(line)
		if e.Error != "" {
			b.Line("  error: " + tgui.TruncRunes(e.Error, 200))
		}
	}
	return reply(ctx, req, b.Build())
}
