// Package jobs is the background-work boundary adapter. A job is not a
// request: there is no session to inherit, so the tenant scope travels
// on the job itself, captured at enqueue time and re-established by
// middleware just before the handler runs. A job without an
// organization is refused before its handler ever executes.
package jobs

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/xraph/bulkhead"
	"github.com/xraph/bulkhead/id"
)

// State represents the lifecycle state of a job.
type State string

const (
	// StatePending means the job is waiting to be picked up by a worker.
	StatePending State = "pending"
	// StateRunning means a worker is currently executing the job.
	StateRunning State = "running"
	// StateCompleted means the job finished successfully.
	StateCompleted State = "completed"
	// StateFailed means the job failed.
	StateFailed State = "failed"
)

// Job is a unit of background work with its tenant scope attached.
type Job struct {
	ID          id.JobID       `json:"id"`
	Name        string         `json:"name"`
	Payload     []byte         `json:"payload,omitempty"`
	OrgID       id.OrgID       `json:"org_id,omitempty"`
	Actor       bulkhead.Actor `json:"actor,omitempty"`
	State       State          `json:"state"`
	LastError   string         `json:"last_error,omitempty"`
	EnqueuedAt  time.Time      `json:"enqueued_at"`
	StartedAt   *time.Time     `json:"started_at,omitempty"`
	CompletedAt *time.Time     `json:"completed_at,omitempty"`
}

// OrgDeriver lets a payload type name its own organization. Enqueue
// uses it when the caller did not set one explicitly; the job still
// carries the resolved id, so workers never re-derive.
type OrgDeriver interface {
	DeriveOrg() id.OrgID
}

// JobOption configures a job at construction.
type JobOption func(*Job)

// WithOrg pins the job to an organization explicitly.
func WithOrg(orgID id.OrgID) JobOption {
	return func(j *Job) { j.OrgID = orgID }
}

// WithActor records the actor on whose behalf the job runs.
func WithActor(actor bulkhead.Actor) JobOption {
	return func(j *Job) { j.Actor = actor }
}

// NewJob builds a job from a name and a JSON-serializable payload.
// Organization resolution order: WithOrg option, then the payload's
// OrgDeriver. A job may still leave here unscoped; Enqueue captures the
// caller's ambient organization as the last resort, and the TenantScope
// middleware refuses whatever remains unscoped.
func NewJob(name string, payload any, opts ...JobOption) (*Job, error) {
	j := &Job{
		ID:         id.NewJobID(),
		Name:       name,
		State:      StatePending,
		EnqueuedAt: time.Now().UTC(),
	}
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("jobs: marshal payload for %q: %w", name, err)
		}
		j.Payload = data
	}
	for _, opt := range opts {
		opt(j)
	}
	if j.OrgID.IsNil() {
		if d, ok := payload.(OrgDeriver); ok {
			j.OrgID = d.DeriveOrg()
		}
	}
	return j, nil
}
