package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/xraph/bulkhead"
)

// Runner is an in-memory worker pool: a buffered queue drained by a
// fixed set of goroutines, each job executed through the middleware
// chain. Workers are long-lived and jobs from different organizations
// share them; the TenantScope middleware is what keeps each job's
// context confined to that job.
type Runner struct {
	mgr         *bulkhead.Manager
	registry    *Registry
	chain       Middleware
	logger      *slog.Logger
	concurrency int
	queueSize   int

	queue   chan *Job
	stopped chan struct{}
	wg      sync.WaitGroup
	mu      sync.Mutex
	running bool
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithConcurrency sets the number of worker goroutines.
func WithConcurrency(n int) RunnerOption {
	return func(r *Runner) { r.concurrency = n }
}

// WithQueueSize sets the queue buffer length.
func WithQueueSize(n int) RunnerOption {
	return func(r *Runner) { r.queueSize = n }
}

// WithMiddleware replaces the default middleware chain. TenantScope
// belongs in every chain; a runner without it executes handlers with no
// tenant context at all.
func WithMiddleware(mws ...Middleware) RunnerOption {
	return func(r *Runner) { r.chain = Chain(mws...) }
}

// NewRunner creates a runner with the default chain:
// Recover, Logging, TenantScope.
func NewRunner(mgr *bulkhead.Manager, registry *Registry, opts ...RunnerOption) *Runner {
	r := &Runner{
		mgr:         mgr,
		registry:    registry,
		logger:      mgr.Logger(),
		concurrency: 4,
		queueSize:   256,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.chain == nil {
		r.chain = Chain(Recover(r.logger), Logging(r.logger), TenantScope(mgr))
	}
	return r
}

// Start launches the worker goroutines.
func (r *Runner) Start() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.running {
		return
	}
	r.running = true
	r.queue = make(chan *Job, r.queueSize)
	r.stopped = make(chan struct{})
	for i := 0; i < r.concurrency; i++ {
		r.wg.Add(1)
		go r.worker()
	}
}

// Stop drains the queue and waits for in-flight jobs to finish.
func (r *Runner) Stop(ctx context.Context) error {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return nil
	}
	r.running = false
	close(r.queue)
	r.mu.Unlock()

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		close(r.stopped)
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Enqueue accepts a job for execution. A job that arrives without an
// organization inherits the caller's ambient one, like the dispatch of
// any other unit of work; if the caller has none either, the job is
// enqueued unscoped and TenantScope will refuse it at execution time.
func (r *Runner) Enqueue(ctx context.Context, j *Job) error {
	if j.OrgID.IsNil() {
		if orgID, ok := r.mgr.CurrentOrgID(ctx); ok {
			j.OrgID = orgID
		}
	}
	if j.Actor.IsZero() {
		if actor, ok := bulkhead.ActorFrom(ctx); ok {
			j.Actor = actor
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.running {
		return fmt.Errorf("jobs: runner is not running")
	}
	select {
	case r.queue <- j:
		return nil
	default:
		return fmt.Errorf("jobs: queue full, job %s rejected", j.Name)
	}
}

func (r *Runner) worker() {
	defer r.wg.Done()
	for j := range r.queue {
		r.execute(j)
	}
}

// execute runs one job through the chain. The context is fresh per job:
// whatever the previous job established is unreachable here.
func (r *Runner) execute(j *Job) {
	now := time.Now().UTC()
	j.State = StateRunning
	j.StartedAt = &now

	handler, ok := r.registry.Get(j.Name)
	if !ok {
		r.finish(j, fmt.Errorf("jobs: no handler registered for %q", j.Name))
		return
	}

	err := r.chain(context.Background(), j, func(ctx context.Context) error {
		return handler(ctx, j.Payload)
	})
	r.finish(j, err)
}

func (r *Runner) finish(j *Job, err error) {
	now := time.Now().UTC()
	j.CompletedAt = &now
	if err != nil {
		j.State = StateFailed
		j.LastError = err.Error()
		r.logger.Warn("job finished with error",
			slog.String("job_name", j.Name),
			slog.String("job_id", j.ID.String()),
			slog.String("error", err.Error()),
		)
		return
	}
	j.State = StateCompleted
}
