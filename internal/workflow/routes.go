package workflow

import (
	"context"
	"strings"

	"scriptbot/internal/transport/telegram/router"
	"scriptbot/pkg/tgui"
)

func eventOf(req *router.Request) Event {
	return Event{UserID: req.FromID, Chat: req.Chat, MessageID: req.MessageID}
}

// Registry wires the engine into the router.
func (e *Engine) Registry() router.Registry {
	cbs := make([]router.CallbackRoute, 0, len(Actions))
	for _, a := range Actions {
		action := a
		cbs = append(cbs, router.CallbackRoute{
			Plugin: CallbackPlugin,
			Action: action,
			Handle: func(ctx context.Context, req *router.Request, _ string) error {
				notice, err := e.HandleCallback(ctx, eventOf(req), action)
				req.Answer(notice)
				return err
			},
		})
	}

	return router.Registry{
		Commands: []router.Command{
			{
				Name:        "start",
				Description: "how to use this bot",
				Handle: func(ctx context.Context, req *router.Request) error {
					_, err := req.Reply(ctx, e.introText(), nil)
					return err
				},
			},
			{
				Name:        "cancel",
				Description: "end the current session",
				Handle: func(ctx context.Context, req *router.Request) error {
					return e.Cancel(ctx, eventOf(req))
				},
			},
		},
		Callbacks: cbs,
		Text: []router.TextHandler{
			func(ctx context.Context, req *router.Request) (bool, error) {
				return e.HandleText(ctx, eventOf(req), req.Text)
			},
		},
		Document: func(ctx context.Context, req *router.Request) error {
			if req.Update.Document == nil {
				return nil
			}
			return e.HandleDocument(ctx, eventOf(req), *req.Update.Document)
		},
		Hint: tgui.Esc("Send a script file to start, or /help.").String(),
	}
}

func (e *Engine) introText() string {
	opt := e.options()
	var b strings.Builder
	b.WriteString("Send me a script file (")
	b.WriteString(strings.Join(opt.AllowedExtensions, " "))
	b.WriteString(").\n")
	b.WriteString("I can upload it to the task panel and schedule it as a job.\n")
	b.WriteString("A cron line inside the file (e.g. \"0 */5 * * * node app.js\") becomes the default schedule.\n")
	b.WriteString("/cancel ends the current session.")
	return b.String()
}
