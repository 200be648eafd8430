// Package jobs tracks in-flight order processing for the HTTP API. State
// is in-memory only and lives as long as the server process.
package jobs

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/meridian-fmcg/rfp-cli/internal/model"
)

// Status is the lifecycle state of a job.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// Job is one tracked processing run.
type Job struct {
	ID        string               `json:"job_id"`
	Status    Status               `json:"status"`
	Stage     string               `json:"stage,omitempty"`
	Percent   int                  `json:"percent"`
	Result    *model.PipelineState `json:"result,omitempty"`
	Error     string               `json:"error,omitempty"`
	CreatedAt time.Time            `json:"created_at"`
	UpdatedAt time.Time            `json:"updated_at"`
}

// Tracker is a concurrency-safe in-memory job registry.
type Tracker struct {
	mu   sync.RWMutex
	jobs map[string]*Job
}

func NewTracker() *Tracker {
	return &Tracker{jobs: make(map[string]*Job)}
}

// Create registers a new pending job and returns its ID.
func (t *Tracker) Create() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	now := time.Now()
	job := &Job{
		ID:        uuid.NewString(),
		Status:    StatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	t.jobs[job.ID] = job
	return job.ID
}

// Get returns a snapshot of the job. The copy shares the Result pointer;
// results are never mutated after Complete.
func (t *Tracker) Get(id string) (Job, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	job, ok := t.jobs[id]
	if !ok {
		return Job{}, false
	}
	return *job, true
}

// SetProcessing moves a job out of pending.
func (t *Tracker) SetProcessing(id string) {
	t.update(id, func(j *Job) {
		j.Status = StatusProcessing
	})
}

// SetProgress records the current stage and percentage.
func (t *Tracker) SetProgress(id, stage string, percent int) {
	t.update(id, func(j *Job) {
		j.Status = StatusProcessing
		j.Stage = stage
		j.Percent = percent
	})
}

// Complete stores the final result.
func (t *Tracker) Complete(id string, result *model.PipelineState) {
	t.update(id, func(j *Job) {
		j.Status = StatusCompleted
		j.Percent = 100
		j.Result = result
	})
}

// Fail marks the job failed with a message.
func (t *Tracker) Fail(id string, err error) {
	t.update(id, func(j *Job) {
		j.Status = StatusFailed
		if err != nil {
			j.Error = err.Error()
		}
	})
}

func (t *Tracker) update(id string, fn func(*Job)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if job, ok := t.jobs[id]; ok {
		fn(job)
		job.UpdatedAt = time.Now()
	}
}
