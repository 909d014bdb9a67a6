package jobs

import (
	"context"
	"sync"
	"time"

	"github.com/jackzampolin/quire/internal/control"
	"github.com/jackzampolin/quire/internal/generate"
	"github.com/jackzampolin/quire/internal/outline"
	"github.com/jackzampolin/quire/internal/planner"
	"github.com/jackzampolin/quire/internal/reconcile"
)

// Kind identifies what a job does.
type Kind string

const (
	KindGenerate  Kind = "generate"
	KindReconcile Kind = "reconcile"
)

// Status represents the current state of a job.
type Status string

const (
	StatusQueued    Status = "queued"
	StatusRunning   Status = "running"
	StatusPaused    Status = "paused"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// Terminal reports whether the job has finished.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCancelled
}

// GenerateRequest starts a job that plans, generates and reconciles a new outline.
type GenerateRequest struct {
	Name        string              `json:"name,omitempty" yaml:"name,omitempty"` // export name (default: job id)
	TargetCount int                 `json:"target_count" yaml:"target_count"`
	VolumeCount int                 `json:"volume_count,omitempty" yaml:"volume_count,omitempty"`
	BatchSize   int                 `json:"batch_size,omitempty" yaml:"batch_size,omitempty"`
	Constraints planner.Constraints `json:"constraints" yaml:"constraints"`
}

// ReconcileRequest starts a job that fills the gaps of an existing outline.
type ReconcileRequest struct {
	Name        string              `json:"name,omitempty" yaml:"name,omitempty"`
	Text        string              `json:"-" yaml:"-"`
	TargetCount int                 `json:"target_count" yaml:"target_count"`
	Constraints planner.Constraints `json:"constraints" yaml:"constraints"`
}

// Progress is the latest progress report of a job.
type Progress struct {
	Phase     string `json:"phase" yaml:"phase"`
	Completed int    `json:"completed" yaml:"completed"`
	Total     int    `json:"total" yaml:"total"`
	Message   string `json:"message,omitempty" yaml:"message,omitempty"`
}

// Record is a point-in-time snapshot of a job.
type Record struct {
	ID          string     `json:"id" yaml:"id"`
	Kind        Kind       `json:"kind" yaml:"kind"`
	Name        string     `json:"name" yaml:"name"`
	Status      Status     `json:"status" yaml:"status"`
	Progress    Progress   `json:"progress" yaml:"progress"`
	CreatedAt   time.Time  `json:"created_at" yaml:"created_at"`
	StartedAt   *time.Time `json:"started_at,omitempty" yaml:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty" yaml:"completed_at,omitempty"`
	Error       string     `json:"error,omitempty" yaml:"error,omitempty"`
	Files       []string   `json:"files,omitempty" yaml:"files,omitempty"`
}

// Outcome is the final result of a job. Cancelled jobs carry the partial
// document; only Failed jobs carry Err.
type Outcome struct {
	Status    Status
	Document  *outline.Document
	Generate  *generate.Result
	Reconcile *reconcile.Result
	Files     []string // exported files
	ExportErr error    // export failed; the document is still returned
	Err       error
}

// Job is one running generation or reconciliation. It runs on its own
// goroutine; all methods are safe to call from any goroutine.
type Job struct {
	ctl  *control.Control
	done chan struct{}

	mu      sync.RWMutex
	record  Record
	outcome Outcome
}

func newJob(parent context.Context, id string, kind Kind, name string) *Job {
	if name == "" {
		name = id
	}
	return &Job{
		ctl:  control.New(parent),
		done: make(chan struct{}),
		record: Record{
			ID:        id,
			Kind:      kind,
			Name:      name,
			Status:    StatusQueued,
			CreatedAt: time.Now().UTC(),
		},
	}
}

// ID returns the job id.
func (j *Job) ID() string {
	return j.record.ID
}

// Status returns a snapshot of the job.
func (j *Job) Status() Record {
	j.mu.RLock()
	defer j.mu.RUnlock()
	rec := j.record
	rec.Files = append([]string(nil), j.record.Files...)
	if rec.Status == StatusRunning && j.ctl.Paused() {
		rec.Status = StatusPaused
	}
	return rec
}

// Cancel stops the job at its next suspension point. The partial document is
// kept in the outcome.
func (j *Job) Cancel() {
	j.ctl.Cancel()
}

// Pause suspends the job at its next suspension point without losing work.
func (j *Job) Pause() {
	j.ctl.Pause()
}

// Resume continues a paused job.
func (j *Job) Resume() {
	j.ctl.Resume()
}

// Done is closed when the job finishes.
func (j *Job) Done() <-chan struct{} {
	return j.done
}

// Wait blocks until the job finishes or ctx ends. The returned error is ctx's
// error or, for a failed job, the failure.
func (j *Job) Wait(ctx context.Context) (Outcome, error) {
	select {
	case <-j.done:
	case <-ctx.Done():
		return Outcome{}, ctx.Err()
	}
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.outcome, j.outcome.Err
}

func (j *Job) setRunning() {
	j.mu.Lock()
	defer j.mu.Unlock()
	now := time.Now().UTC()
	j.record.Status = StatusRunning
	j.record.StartedAt = &now
}

func (j *Job) setProgress(p Progress) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.record.Progress = p
}

func (j *Job) finish(out Outcome) {
	j.mu.Lock()
	now := time.Now().UTC()
	j.outcome = out
	j.record.Status = out.Status
	j.record.CompletedAt = &now
	j.record.Files = out.Files
	switch {
	case out.Err != nil:
		j.record.Error = out.Err.Error()
	case out.ExportErr != nil:
		j.record.Error = out.ExportErr.Error()
	}
	j.mu.Unlock()
	close(j.done)
}
