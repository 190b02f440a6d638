package router

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	kit "scriptbot/internal/transport"
	logx "scriptbot/pkg/logx"
)

// TextInternalError is what the user sees when a handler panics.
const TextInternalError = "something went wrong, please try again"

type Middleware func(next HandlerFunc) HandlerFunc

// Chain wraps h so that m[0] is the outermost middleware.
func Chain(h HandlerFunc, m ...Middleware) HandlerFunc {
	for i := len(m) - 1; i >= 0; i-- {
		h = m[i](h)
	}
	return h
}

// MWTimeout bounds a handler. A deadline hit is reported with the command
// and the bound so the request log says which handler was slow.
func MWTimeout(d time.Duration) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		if d <= 0 {
			return next
		}
		return func(ctx context.Context, req *Request) error {
			cctx, cancel := context.WithTimeout(ctx, d)
			defer cancel()
			err := next(cctx, req)
			if err != nil && errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
				return fmt.Errorf("%s timed out after %s: %w", req.Command, d, err)
			}
			return err
		}
	}
}

// MWPanicRecover turns a handler panic into an error and tells the user.
// Callbacks get the notice as their acknowledgement; other updates a reply.
func MWPanicRecover(log logx.Logger) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, req *Request) (err error) {
			defer func() {
				r := recover()
				if r == nil {
					return
				}
				reqLogger(log, req).Error("panic recovered",
					logx.Any("panic", r),
					logx.String("stack", string(debug.Stack())),
				)
				err = fmt.Errorf("panic: %v", r)
				if req == nil {
					return
				}
				if req.Update.Kind == kit.UpdateCallback {
					req.Answer(TextInternalError)
					return
				}
				if req.Adapter != nil {
					_, _ = req.Reply(ctx, TextInternalError, nil)
				}
			}()
			return next(ctx, req)
		}
	}
}

// slowRequest promotes successful request logs from DEBUG to INFO.
const slowRequest = 750 * time.Millisecond

func MWRequestLog(log logx.Logger) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, req *Request) error {
			start := time.Now()
			err := next(ctx, req)
			took := time.Since(start)

			logger := reqLogger(log, req)
			fields := []logx.Field{
				logx.String("kind", string(req.Update.Kind)),
				logx.Duration("took", took),
			}
			if req.answer != "" {
				fields = append(fields, logx.String("answer", req.answer))
			}
			switch {
			case err != nil:
				logger.Warn("request failed", append(fields, logx.Err(err))...)
			case took >= slowRequest:
				logger.Info("slow request", fields...)
			default:
				logger.Debug("request handled", fields...)
			}
			return err
		}
	}
}

func reqLogger(fallback logx.Logger, req *Request) logx.Logger {
	if req != nil && !req.Logger.IsZero() {
		return req.Logger
	}
	return fallback
}
