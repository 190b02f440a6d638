package backend

import (
	"context"
	"sync"

	logx "scriptbot/pkg/logx"
)

// DryRun accepts every call and only logs it. It also remembers what it
// was given, which makes it the default backend in development setups.
type DryRun struct {
	log logx.Logger

	mu      sync.Mutex
	scripts map[string][]byte
	jobs    []TaskParams
}

func NewDryRun(log logx.Logger) *DryRun {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &DryRun{log: log, scripts: map[string][]byte{}}
}

func (d *DryRun) UploadScript(ctx context.Context, fileName string, content []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	d.mu.Lock()
	d.scripts[fileName] = append([]byte(nil), content...)
	d.mu.Unlock()
	d.log.Info("dry-run upload", logx.String("file", fileName), logx.Int("bytes", len(content)))
	return nil
}

func (d *DryRun) RegisterJob(ctx context.Context, p TaskParams) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	d.mu.Lock()
	d.jobs = append(d.jobs, p)
	d.mu.Unlock()
	d.log.Info("dry-run register", logx.String("name", p.Name), logx.String("command", p.Command), logx.String("schedule", p.Schedule))
	return nil
}

// Jobs returns a copy of the registered jobs.
func (d *DryRun) Jobs() []TaskParams {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]TaskParams(nil), d.jobs...)
}
