package qinglong

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"path"
	"strings"

	"scriptbot/internal/backend"
	logx "scriptbot/pkg/logx"
)

type scriptBody struct {
	FileName string `json:"filename"`
	Path     string `json:"path"`
	Content  string `json:"content"`
}

// UploadScript stores the file in the panel's script directory.
func (c *Client) UploadScript(ctx context.Context, fileName string, content []byte) error {
	name := path.Base(strings.TrimSpace(fileName))
	if name == "" || name == "." || name == "/" || name != strings.TrimSpace(fileName) {
		return fmt.Errorf("%w: %q", backend.ErrInvalidName, fileName)
	}
	_, err := withAuth[json.RawMessage](ctx, c, request{
		method: http.MethodPost,
		path:   "/open/scripts",
		body:   scriptBody{FileName: name, Path: c.cfg.ScriptPath, Content: string(content)},
	})
	if err != nil {
		return err
	}
	c.log.Info("script uploaded", logx.String("file", name), logx.Int("bytes", len(content)))
	return nil
}

// RegisterJob creates a cron entry. The panel validates the schedule; its
// rejection message is returned as the error text.
func (c *Client) RegisterJob(ctx context.Context, p backend.TaskParams) error {
	_, err := withAuth[json.RawMessage](ctx, c, request{
		method: http.MethodPost,
		path:   "/open/crons",
		body:   p,
	})
	if err != nil {
		return err
	}
	c.log.Info("job registered", logx.String("name", p.Name), logx.String("schedule", p.Schedule))
	return nil
}
