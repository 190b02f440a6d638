// Package local is a backend.Backend that keeps scripts in a directory on
// the bot's host and runs registered jobs from an in-process cron.
package local

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime/debug"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"scriptbot/internal/backend"
	"scriptbot/internal/cronexpr"
	"scriptbot/internal/storage"
	logx "scriptbot/pkg/logx"
)

const defaultRunTimeout = 10 * time.Minute

type Config struct {
	Dir        string
	Timezone   string
	RunTimeout time.Duration
}

// ExecFunc runs one resolved command line and returns its combined output.
type ExecFunc func(ctx context.Context, dir string, argv []string) ([]byte, error)

// Runner owns the script directory and the cron scheduler.
//
// Job definitions are written to storage (when configured) and reloaded by
// Start, so they survive restarts. Registering a name that already exists
// replaces the previous job.
type Runner struct {
	cfg   Config
	log   logx.Logger
	store storage.Store
	exec  ExecFunc

	mu      sync.Mutex
	c       *cron.Cron
	loc     *time.Location
	jobs    map[string]*job
	running bool
}

type job struct {
	params  backend.TaskParams
	argv    []string
	entryID cron.EntryID

	mu   sync.Mutex
	busy bool
}

var _ backend.Backend = (*Runner)(nil)

// New prepares the script directory. store may be nil (jobs then live only
// in memory).
func New(cfg Config, store storage.Store, log logx.Logger) (*Runner, error) {
	dir := strings.TrimSpace(cfg.Dir)
	if dir == "" {
		return nil, errors.New("local: dir is required")
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("local: dir: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("local: create dir: %w", err)
	}
	cfg.Dir = abs
	if cfg.RunTimeout <= 0 {
		cfg.RunTimeout = defaultRunTimeout
	}
	loc := time.Local
	if tz := strings.TrimSpace(cfg.Timezone); tz != "" {
		l, err := time.LoadLocation(tz)
		if err != nil {
			return nil, fmt.Errorf("local: timezone %q: %w", tz, err)
		}
		loc = l
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Runner{
		cfg:   cfg,
		log:   log.With(logx.String("comp", "local_backend")),
		store: store,
		exec:  execCommand,
		loc:   loc,
		c:     cron.New(cron.WithLocation(loc)),
		jobs:  map[string]*job{},
	}, nil
}

// RunTimeout is the bound applied to every job run.
func (r *Runner) RunTimeout() time.Duration { return r.cfg.RunTimeout }

// SetExec replaces the command executor. Used by tests.
func (r *Runner) SetExec(fn ExecFunc) {
	r.mu.Lock()
	r.exec = fn
	r.mu.Unlock()
}

// Start reloads persisted jobs and starts the scheduler. Jobs that no longer
// parse are logged and skipped.
func (r *Runner) Start(ctx context.Context) error {
	if r.store != nil {
		recs, err := r.store.ListJobs(ctx)
		if err != nil {
			return fmt.Errorf("local: load jobs: %w", err)
		}
		r.mu.Lock()
		for _, rec := range recs {
			p := backend.TaskParams{Name: rec.Name, Command: rec.Command, Schedule: rec.Schedule}
			if err := r.scheduleLocked(p); err != nil {
				r.log.Warn("skipping persisted job", logx.String("name", rec.Name), logx.Err(err))
			}
		}
		r.mu.Unlock()
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.running {
		return nil
	}
	r.c.Start()
	r.running = true
	r.log.Info("local backend started", logx.String("dir", r.cfg.Dir), logx.String("tz", r.loc.String()), logx.Int("jobs", len(r.jobs)))
	return nil
}

// Stop halts the scheduler and waits for running jobs until ctx is done.
func (r *Runner) Stop(ctx context.Context) {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return
	}
	r.running = false
	c := r.c
	r.mu.Unlock()

	select {
	case <-c.Stop().Done():
	case <-ctx.Done():
		r.log.Warn("stop timed out; jobs still running")
	}
}

func (r *Runner) UploadScript(ctx context.Context, fileName string, content []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	name, err := cleanName(fileName)
	if err != nil {
		return err
	}
	path := filepath.Join(r.cfg.Dir, name)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, content, 0o644); err != nil {
		return fmt.Errorf("write script: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("write script: %w", err)
	}
	r.log.Info("script stored", logx.String("file", name), logx.Int("bytes", len(content)))
	return nil
}

func (r *Runner) RegisterJob(ctx context.Context, p backend.TaskParams) error {
	if strings.TrimSpace(p.Name) == "" {
		return errors.New("job name is required")
	}
	r.mu.Lock()
	err := r.scheduleLocked(p)
	r.mu.Unlock()
	if err != nil {
		return err
	}
	if r.store != nil {
		if err := r.store.PutJob(ctx, storage.JobRecord{Name: p.Name, Command: p.Command, Schedule: p.Schedule}); err != nil {
			r.log.Warn("job not persisted", logx.String("name", p.Name), logx.Err(err))
		}
	}
	r.log.Info("job registered", logx.String("name", p.Name), logx.String("schedule", p.Schedule))
	return nil
}

// Remove unschedules a job and forgets it.
func (r *Runner) Remove(ctx context.Context, name string) bool {
	r.mu.Lock()
	j, ok := r.jobs[name]
	if ok {
		r.c.Remove(j.entryID)
		delete(r.jobs, name)
	}
	r.mu.Unlock()
	if ok && r.store != nil {
		if err := r.store.DeleteJob(ctx, name); err != nil && !errors.Is(err, storage.ErrNotFound) {
			r.log.Warn("job delete not persisted", logx.String("name", name), logx.Err(err))
		}
	}
	return ok
}

// JobInfo describes a scheduled job.
type JobInfo struct {
	backend.TaskParams
	Next time.Time
}

func (r *Runner) Jobs() []JobInfo {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]JobInfo, 0, len(r.jobs))
	for _, j := range r.jobs {
		out = append(out, JobInfo{TaskParams: j.params, Next: r.c.Entry(j.entryID).Next})
	}
	sort.Slice(out, func(a, b int) bool { return out[a].Name < out[b].Name })
	return out
}

// RunNow executes a job synchronously, outside its schedule.
func (r *Runner) RunNow(ctx context.Context, name string) error {
	r.mu.Lock()
	j, ok := r.jobs[name]
	r.mu.Unlock()
	if !ok {
		return fmt.Errorf("job %q not found", name)
	}
	return r.run(ctx, j)
}

func (r *Runner) scheduleLocked(p backend.TaskParams) error {
	sched, err := cronexpr.Parse(p.Schedule)
	if err != nil {
		return err
	}
	argv, err := resolveCommand(r.cfg.Dir, p.Command)
	if err != nil {
		return err
	}
	if old, ok := r.jobs[p.Name]; ok {
		r.c.Remove(old.entryID)
	}
	j := &job{params: p, argv: argv}
	j.entryID = r.c.Schedule(sched, cron.FuncJob(func() {
		_ = r.run(context.Background(), j)
	}))
	r.jobs[p.Name] = j
	return nil
}

// run executes one job; overlapping runs of the same job are skipped.
func (r *Runner) run(ctx context.Context, j *job) (err error) {
	j.mu.Lock()
	if j.busy {
		j.mu.Unlock()
		r.log.Debug("job skipped (previous run still running)", logx.String("name", j.params.Name))
		return nil
	}
	j.busy = true
	j.mu.Unlock()
	defer func() {
		j.mu.Lock()
		j.busy = false
		j.mu.Unlock()
	}()
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("job panic: %v", rec)
			r.log.Error("panic in job", logx.String("name", j.params.Name), logx.Any("panic", rec), logx.String("stack", string(debug.Stack())))
		}
	}()

	r.mu.Lock()
	execFn := r.exec
	r.mu.Unlock()

	rctx, cancel := context.WithTimeout(ctx, r.cfg.RunTimeout)
	defer cancel()
	start := time.Now()
	out, err := execFn(rctx, r.cfg.Dir, j.argv)
	fields := []logx.Field{
		logx.String("name", j.params.Name),
		logx.Duration("took", time.Since(start)),
		logx.String("output", truncate(string(out), 512)),
	}
	if err != nil {
		r.log.Warn("job failed", append(fields, logx.Err(err))...)
		return err
	}
	r.log.Info("job finished", fields...)
	return nil
}

func cleanName(fileName string) (string, error) {
	name := strings.TrimSpace(fileName)
	if name == "" || name != filepath.Base(name) || name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return "", fmt.Errorf("%w: %q", backend.ErrInvalidName, fileName)
	}
	return name, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "…"
}
