package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"github.com/jackzampolin/quire/internal/generate"
	"github.com/jackzampolin/quire/internal/invoke"
	"github.com/jackzampolin/quire/internal/outline"
	"github.com/jackzampolin/quire/internal/planner"
	"github.com/jackzampolin/quire/internal/prompts"
	"github.com/jackzampolin/quire/internal/prompts/novel"
	"github.com/jackzampolin/quire/internal/reconcile"
)

// ErrNotFound is returned for an unknown job id.
var ErrNotFound = errors.New("job not found")

// Exporter persists a finished document. *export.Writer implements it.
type Exporter interface {
	Write(name string, doc *outline.Document) ([]string, error)
}

// ProgressFunc observes job progress. It must not block.
type ProgressFunc func(jobID string, p Progress)

// Config configures a Manager.
type Config struct {
	Invoker  *invoke.Invoker   // required
	Resolver *prompts.Resolver // Prompt source (default: embedded prompts only)
	Exporter Exporter          // Optional; called once per finished job

	MaxConcurrentJobs int  // Jobs running at once; the rest queue (default: 2)
	BatchSize         int  // Default chapters per record task (default: 15)
	OptimizeSystem    bool // Ask for a genre-tuned system instruction before generating

	// Runner and Reconciler are templates; the manager fills in the invoker,
	// resolver, progress and per-job constraints.
	Runner     generate.Config
	Reconciler reconcile.Config

	OnProgress ProgressFunc
	Logger     *slog.Logger
}

// Manager starts jobs and tracks them by id. Jobs share nothing but the
// stateless backend clients.
type Manager struct {
	cfg    Config
	logger *slog.Logger
	sem    *semaphore.Weighted

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu   sync.RWMutex
	jobs map[string]*Job
}

// NewManager creates a new job manager.
func NewManager(cfg Config) (*Manager, error) {
	if cfg.Invoker == nil {
		return nil, invoke.ErrNoBackends
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Resolver == nil {
		cfg.Resolver = novel.NewResolver(nil, cfg.Logger)
	}
	if cfg.MaxConcurrentJobs <= 0 {
		cfg.MaxConcurrentJobs = 2
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = planner.DefaultBatchSize
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		cfg:    cfg,
		logger: cfg.Logger,
		sem:    semaphore.NewWeighted(int64(cfg.MaxConcurrentJobs)),
		ctx:    ctx,
		cancel: cancel,
		jobs:   make(map[string]*Job),
	}, nil
}

// Generate plans a new outline and starts the job. Planning errors are
// returned here; the caller never blocks on generation itself.
func (m *Manager) Generate(req GenerateRequest) (*Job, error) {
	batch := req.BatchSize
	if batch <= 0 {
		batch = m.cfg.BatchSize
	}
	pcfg := planner.Config{
		TargetCount: req.TargetCount,
		BatchSize:   batch,
		VolumeCount: req.VolumeCount,
		Constraints: req.Constraints,
		Resolver:    m.cfg.Resolver,
		Logger:      m.logger,
	}
	tasks, err := planner.Plan(pcfg)
	if err != nil {
		return nil, fmt.Errorf("failed to plan outline: %w", err)
	}

	job := m.start(KindGenerate, req.Name, func(ctx context.Context, j *Job, logger *slog.Logger) Outcome {
		return m.runGenerate(ctx, j, logger, req, pcfg, tasks)
	})
	return job, nil
}

// Reconcile starts a job that completes an existing outline.
func (m *Manager) Reconcile(req ReconcileRequest) (*Job, error) {
	if req.TargetCount < 1 {
		return nil, planner.ErrInvalidTarget
	}
	job := m.start(KindReconcile, req.Name, func(ctx context.Context, j *Job, logger *slog.Logger) Outcome {
		return m.runReconcile(ctx, j, logger, req)
	})
	return job, nil
}

type runFunc func(ctx context.Context, j *Job, logger *slog.Logger) Outcome

func (m *Manager) start(kind Kind, name string, run runFunc) *Job {
	id := uuid.New().String()
	job := newJob(m.ctx, id, kind, name)

	m.mu.Lock()
	m.jobs[id] = job
	m.mu.Unlock()

	logger := m.logger.With("job_id", id, "kind", kind)
	logger.Info("job queued", "name", job.record.Name)

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		ctx := job.ctl.Context()

		if err := m.sem.Acquire(ctx, 1); err != nil {
			logger.Info("job cancelled while queued")
			job.finish(Outcome{Status: StatusCancelled, Document: outline.NewDocument()})
			return
		}
		defer m.sem.Release(1)

		job.setRunning()
		logger.Info("job started")
		out := run(ctx, job, logger)
		if out.Status == "" {
			out.Status = StatusCompleted
		}
		if out.Status == StatusCompleted && m.cfg.Exporter != nil {
			out.Files, out.ExportErr = m.cfg.Exporter.Write(job.record.Name, out.Document)
			if out.ExportErr != nil {
				logger.Error("failed to export document", "error", out.ExportErr)
			}
		}
		job.finish(out)
		logger.Info("job finished", "status", out.Status, "files", len(out.Files))
	}()
	return job
}

func (m *Manager) runGenerate(ctx context.Context, j *Job, logger *slog.Logger, req GenerateRequest, pcfg planner.Config, tasks []planner.Task) Outcome {
	inv := m.cfg.Invoker.WithJob(j.ID())

	rcfg := m.cfg.Runner
	if m.cfg.OptimizeSystem {
		rcfg.System = generate.OptimizeSystem(ctx, inv, m.cfg.Resolver, req.Constraints, logger)
		if ctx.Err() != nil {
			return Outcome{Status: StatusCancelled, Document: outline.NewDocument()}
		}
	}
	rcfg.Invoker = inv
	rcfg.Resolver = m.cfg.Resolver
	rcfg.Logger = logger
	rcfg.OnProgress = m.progressFor(j, "generate")
	runner, err := generate.NewRunner(rcfg)
	if err != nil {
		return Outcome{Status: StatusFailed, Err: err}
	}

	gen := runner.Run(ctx, tasks, outline.NewDocument())
	out := Outcome{Document: gen.Document, Generate: &gen}
	if gen.Cancelled {
		out.Status = StatusCancelled
		return out
	}

	rc, err := m.reconciler(j, logger, inv, req.Constraints, pcfg, rcfg.System)
	if err != nil {
		out.Status, out.Err = StatusFailed, err
		return out
	}
	rec := rc.Reconcile(ctx, gen.Document, req.TargetCount)
	out.Reconcile = &rec
	if rec.Cancelled {
		out.Status = StatusCancelled
	}
	return out
}

func (m *Manager) runReconcile(ctx context.Context, j *Job, logger *slog.Logger, req ReconcileRequest) Outcome {
	inv := m.cfg.Invoker.WithJob(j.ID())
	doc := outline.FromText(req.Text)

	pcfg := planner.Config{
		TargetCount: req.TargetCount,
		Constraints: req.Constraints,
		Resolver:    m.cfg.Resolver,
		Logger:      logger,
	}
	rc, err := m.reconciler(j, logger, inv, req.Constraints, pcfg, "")
	if err != nil {
		return Outcome{Status: StatusFailed, Document: doc, Err: err}
	}
	rec := rc.Reconcile(ctx, doc, req.TargetCount)
	out := Outcome{Document: rec.Document, Reconcile: &rec}
	if rec.Cancelled {
		out.Status = StatusCancelled
	}
	return out
}

// reconciler builds the per-job reconciler. A non-empty system replaces the
// template's system instruction.
func (m *Manager) reconciler(j *Job, logger *slog.Logger, inv *invoke.Invoker, c planner.Constraints, pcfg planner.Config, system string) (*reconcile.Reconciler, error) {
	facets, err := planner.FacetTasks(pcfg)
	if err != nil {
		return nil, err
	}
	block, err := planner.ConstraintBlock(m.cfg.Resolver, c)
	if err != nil {
		return nil, err
	}
	cfg := m.cfg.Reconciler
	if system != "" {
		cfg.System = system
	}
	cfg.Invoker = inv
	cfg.Resolver = m.cfg.Resolver
	cfg.Constraints = block
	cfg.Facets = facets
	cfg.Logger = logger
	cfg.OnProgress = m.progressFor(j, "reconcile")
	return reconcile.New(cfg)
}

func (m *Manager) progressFor(j *Job, phase string) generate.ProgressFunc {
	return func(completed, total int, message string) {
		p := Progress{Phase: phase, Completed: completed, Total: total, Message: message}
		j.setProgress(p)
		if m.cfg.OnProgress != nil {
			m.cfg.OnProgress(j.ID(), p)
		}
	}
}

// Get returns a job by id.
func (m *Manager) Get(id string) (*Job, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	j, ok := m.jobs[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return j, nil
}

// ListFilter specifies criteria for listing jobs.
type ListFilter struct {
	Status Status // Filter by status (empty = all)
	Kind   Kind   // Filter by kind (empty = all)
	Limit  int    // Max results (0 = all)
}

// List returns job snapshots matching the filter, oldest first.
func (m *Manager) List(filter ListFilter) []Record {
	m.mu.RLock()
	out := make([]Record, 0, len(m.jobs))
	for _, j := range m.jobs {
		rec := j.Status()
		if filter.Status != "" && rec.Status != filter.Status {
			continue
		}
		if filter.Kind != "" && rec.Kind != filter.Kind {
			continue
		}
		out = append(out, rec)
	}
	m.mu.RUnlock()

	sort.Slice(out, func(i, k int) bool {
		if !out[i].CreatedAt.Equal(out[k].CreatedAt) {
			return out[i].CreatedAt.Before(out[k].CreatedAt)
		}
		return out[i].ID < out[k].ID
	})
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out
}

// Cancel cancels a job by id.
func (m *Manager) Cancel(id string) error {
	j, err := m.Get(id)
	if err != nil {
		return err
	}
	j.Cancel()
	return nil
}

// Shutdown cancels every job and waits for their goroutines to exit.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.cancel()
	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
