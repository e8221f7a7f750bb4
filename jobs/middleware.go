package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"github.com/xraph/bulkhead"
)

// Handler is the terminal function that executes job logic.
type Handler func(ctx context.Context) error

// Middleware wraps a Handler with cross-cutting logic. It receives the
// current context, the job being executed, and the next handler.
// Middleware must call next to continue the chain unless it is
// short-circuiting on error.
type Middleware func(ctx context.Context, j *Job, next Handler) error

// Chain composes middleware into a single Middleware. Middleware apply
// right-to-left: the first in the list is the outermost wrapper.
func Chain(mws ...Middleware) Middleware {
	return func(ctx context.Context, j *Job, next Handler) error {
		h := next
		for i := len(mws) - 1; i >= 0; i-- {
			mw := mws[i]
			prev := h
			h = func(ctx context.Context) error {
				return mw(ctx, j, prev)
			}
		}
		return h(ctx)
	}
}

// Recover returns middleware that converts handler panics to errors and
// logs them with a stack trace.
func Recover(logger *slog.Logger) Middleware {
	return func(ctx context.Context, j *Job, next Handler) (retErr error) {
		defer func() {
			if r := recover(); r != nil {
				logger.Error("job handler panicked",
					slog.String("job_name", j.Name),
					slog.String("job_id", j.ID.String()),
					slog.Any("panic", r),
					slog.String("stack", string(debug.Stack())),
				)
				retErr = fmt.Errorf("panic in job %s: %v", j.Name, r)
			}
		}()
		return next(ctx)
	}
}

// Logging returns middleware that logs job start and completion.
func Logging(logger *slog.Logger) Middleware {
	return func(ctx context.Context, j *Job, next Handler) error {
		logger.Info("job started",
			slog.String("job_name", j.Name),
			slog.String("job_id", j.ID.String()),
			slog.String("org_id", j.OrgID.String()),
		)

		start := time.Now()
		err := next(ctx)
		elapsed := time.Since(start)

		if err != nil {
			logger.Error("job failed",
				slog.String("job_name", j.Name),
				slog.String("job_id", j.ID.String()),
				slog.Duration("elapsed", elapsed),
				slog.String("error", err.Error()),
			)
		} else {
			logger.Info("job completed",
				slog.String("job_name", j.Name),
				slog.String("job_id", j.ID.String()),
				slog.Duration("elapsed", elapsed),
			)
		}
		return err
	}
}

// TenantScope returns middleware that establishes the job's tenant
// context for the handler, and only for the handler: the derived
// context dies with the call, so the worker goroutine carries nothing
// into the next job. An unscoped job fails fast with ErrMissingTenant
// before its handler runs; there is no fallback tenant for background
// work.
func TenantScope(mgr *bulkhead.Manager) Middleware {
	return func(ctx context.Context, j *Job, next Handler) error {
		if j.OrgID.IsNil() {
			return fmt.Errorf("jobs: job %s (%s) has no organization: %w", j.Name, j.ID, bulkhead.ErrMissingTenant)
		}
		derived, err := mgr.SetCurrent(ctx, j.Actor, j.OrgID)
		if err != nil {
			return fmt.Errorf("jobs: establish context for job %s: %w", j.Name, err)
		}
		defer mgr.ClearCurrent(derived)
		return next(derived)
	}
}
