package jobs

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/goleak"

	"github.com/jackzampolin/quire/internal/invoke"
	"github.com/jackzampolin/quire/internal/outline"
	"github.com/jackzampolin/quire/internal/planner"
	"github.com/jackzampolin/quire/internal/providers"
	"github.com/jackzampolin/quire/internal/reconcile"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

// fakeExporter records what it was asked to write.
type fakeExporter struct {
	mu    sync.Mutex
	names []string
	err   error
}

func (e *fakeExporter) Write(name string, doc *outline.Document) ([]string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.names = append(e.names, name)
	if e.err != nil {
		return nil, e.err
	}
	return []string{name + ".md"}, nil
}

func dryRunInvoker(t *testing.T, latency time.Duration) *invoke.Invoker {
	t.Helper()
	client := providers.NewDryRunClient()
	client.Latency = latency
	inv, err := invoke.New(invoke.Config{
		Backends: []invoke.Backend{{Name: "dry", Client: client}},
		Logger:   discard,
	})
	if err != nil {
		t.Fatalf("invoke.New() error = %v", err)
	}
	return inv
}

func newManager(t *testing.T, cfg Config) *Manager {
	t.Helper()
	if cfg.Logger == nil {
		cfg.Logger = discard
	}
	cfg.Reconciler = reconcile.Config{RetryDelay: time.Millisecond}
	m, err := NewManager(cfg)
	if err != nil {
		t.Fatalf("NewManager() error = %v", err)
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := m.Shutdown(ctx); err != nil {
			t.Errorf("Shutdown() error = %v", err)
		}
	})
	return m
}

func wait(t *testing.T, j *Job) Outcome {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	out, err := j.Wait(ctx)
	if errors.Is(err, context.DeadlineExceeded) {
		t.Fatal("job did not finish")
	}
	return out
}

// waitFor polls cond until it holds or a second passes.
func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not reached")
		}
		time.Sleep(time.Millisecond)
	}
}

func TestNewManager(t *testing.T) {
	if _, err := NewManager(Config{}); !errors.Is(err, invoke.ErrNoBackends) {
		t.Errorf("NewManager() error = %v, want ErrNoBackends", err)
	}
}

func TestGenerateJob(t *testing.T) {
	defer goleak.VerifyNone(t)

	exp := &fakeExporter{}
	var (
		mu     sync.Mutex
		phases = map[string]int{}
	)
	m := newManager(t, Config{
		Invoker:  dryRunInvoker(t, 0),
		Exporter: exp,
		OnProgress: func(_ string, p Progress) {
			mu.Lock()
			phases[p.Phase]++
			mu.Unlock()
		},
	})

	j, err := m.Generate(GenerateRequest{Name: "heir", TargetCount: 20, VolumeCount: 2, Constraints: planner.Constraints{Genre: "xianxia"}})
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	out := wait(t, j)

	if out.Status != StatusCompleted || out.Err != nil {
		t.Fatalf("outcome = %+v", out)
	}
	if got := len(out.Document.Index()); got != 20 {
		t.Errorf("records = %d, want 20", got)
	}
	if out.Reconcile == nil || out.Reconcile.Changed() {
		t.Errorf("dry run left gaps: %+v", out.Reconcile)
	}
	rec := j.Status()
	if rec.Status != StatusCompleted || rec.StartedAt == nil || rec.CompletedAt == nil || rec.Name != "heir" {
		t.Errorf("Status() = %+v", rec)
	}
	if len(rec.Files) != 1 || rec.Files[0] != "heir.md" {
		t.Errorf("files = %v", rec.Files)
	}
	mu.Lock()
	if phases["generate"] == 0 {
		t.Error("no generate progress reported")
	}
	mu.Unlock()
}

func TestReconcileJob(t *testing.T) {
	defer goleak.VerifyNone(t)

	m := newManager(t, Config{Invoker: dryRunInvoker(t, 0)})
	text := "## Chapters\n\n" + outline.RenderRecords([]outline.Record{
		{Index: 1, Title: "One", Body: "a"},
		{Index: 4, Title: "Four", Body: "d"},
	})
	j, err := m.Reconcile(ReconcileRequest{Text: text, TargetCount: 5})
	if err != nil {
		t.Fatalf("Reconcile() error = %v", err)
	}
	out := wait(t, j)
	if out.Status != StatusCompleted {
		t.Fatalf("outcome = %+v", out)
	}
	index := out.Document.Index()
	if missing := outline.Missing(index, 1, 5); len(missing) > 0 {
		t.Errorf("missing = %v", missing)
	}
	if index[1].Title != "One" {
		t.Errorf("existing record changed: %+v", index[1])
	}
	if len(out.Reconcile.Facets) != 7 {
		t.Errorf("facets restored = %v", out.Reconcile.Facets)
	}

	if _, err := m.Reconcile(ReconcileRequest{TargetCount: 0}); !errors.Is(err, planner.ErrInvalidTarget) {
		t.Errorf("Reconcile() error = %v, want ErrInvalidTarget", err)
	}
}

func TestInvalidGenerate(t *testing.T) {
	m := newManager(t, Config{Invoker: dryRunInvoker(t, 0)})
	if _, err := m.Generate(GenerateRequest{TargetCount: 0}); !errors.Is(err, planner.ErrInvalidTarget) {
		t.Errorf("Generate() error = %v, want ErrInvalidTarget", err)
	}
	if len(m.List(ListFilter{})) != 0 {
		t.Error("failed submission was tracked")
	}
}

func TestCancelJob(t *testing.T) {
	defer goleak.VerifyNone(t)

	exp := &fakeExporter{}
	m := newManager(t, Config{Invoker: dryRunInvoker(t, 20*time.Millisecond), Exporter: exp})
	j, err := m.Generate(GenerateRequest{TargetCount: 60})
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	waitFor(t, func() bool { return j.Status().Progress.Completed >= 2 })
	if err := m.Cancel(j.ID()); err != nil {
		t.Fatalf("Cancel() error = %v", err)
	}

	out := wait(t, j)
	if out.Status != StatusCancelled || out.Err != nil {
		t.Fatalf("outcome = %+v", out)
	}
	if out.Document == nil || !strings.Contains(out.Document.Text(), "## "+planner.FacetBasics) {
		t.Error("partial document not returned")
	}
	if len(exp.names) != 0 {
		t.Error("cancelled job was exported")
	}
	if !j.Status().Status.Terminal() {
		t.Errorf("status = %s", j.Status().Status)
	}
}

func TestPauseResume(t *testing.T) {
	defer goleak.VerifyNone(t)

	m := newManager(t, Config{Invoker: dryRunInvoker(t, 10*time.Millisecond)})
	j, err := m.Generate(GenerateRequest{TargetCount: 5})
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	waitFor(t, func() bool { return j.Status().Status == StatusRunning })
	j.Pause()
	waitFor(t, func() bool { return j.Status().Status == StatusPaused })

	// Let any in-flight task finish, then check nothing moves.
	time.Sleep(30 * time.Millisecond)
	before := j.Status().Progress
	time.Sleep(30 * time.Millisecond)
	if after := j.Status().Progress; after != before {
		t.Errorf("progress moved while paused: %+v -> %+v", before, after)
	}

	j.Resume()
	out := wait(t, j)
	if out.Status != StatusCompleted {
		t.Fatalf("outcome = %+v", out)
	}
	if got := len(out.Document.Index()); got != 5 {
		t.Errorf("records = %d, want 5", got)
	}
}

func TestConcurrencyCap(t *testing.T) {
	defer goleak.VerifyNone(t)

	m := newManager(t, Config{Invoker: dryRunInvoker(t, 5*time.Millisecond), MaxConcurrentJobs: 1})
	first, err := m.Generate(GenerateRequest{TargetCount: 3})
	if err != nil {
		t.Fatal(err)
	}
	waitFor(t, func() bool { return first.Status().Status == StatusRunning })

	second, err := m.Generate(GenerateRequest{TargetCount: 3})
	if err != nil {
		t.Fatal(err)
	}
	time.Sleep(5 * time.Millisecond)
	if s := second.Status().Status; s != StatusQueued {
		t.Errorf("second job status = %s, want queued", s)
	}

	// A queued job can be cancelled before it ever starts.
	second.Cancel()
	if out := wait(t, second); out.Status != StatusCancelled {
		t.Errorf("queued job outcome = %s", out.Status)
	}
	if out := wait(t, first); out.Status != StatusCompleted {
		t.Errorf("first job outcome = %s", out.Status)
	}
	if second.Status().StartedAt != nil {
		t.Error("cancelled queued job reports a start time")
	}
}

func TestListAndGet(t *testing.T) {
	defer goleak.VerifyNone(t)

	m := newManager(t, Config{Invoker: dryRunInvoker(t, 0)})
	a, _ := m.Generate(GenerateRequest{TargetCount: 2})
	b, _ := m.Reconcile(ReconcileRequest{TargetCount: 2})
	wait(t, a)
	wait(t, b)

	if got := m.List(ListFilter{Kind: KindReconcile}); len(got) != 1 || got[0].ID != b.ID() {
		t.Errorf("List(reconcile) = %+v", got)
	}
	if got := m.List(ListFilter{Status: StatusCompleted}); len(got) != 2 {
		t.Errorf("List(completed) = %d jobs", len(got))
	}
	if got := m.List(ListFilter{Limit: 1}); len(got) != 1 {
		t.Errorf("List(limit 1) = %d jobs", len(got))
	}
	if _, err := m.Get("nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get() error = %v, want ErrNotFound", err)
	}
	if err := m.Cancel("nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Cancel() error = %v, want ErrNotFound", err)
	}
}

func TestExportFailureKeepsDocument(t *testing.T) {
	defer goleak.VerifyNone(t)

	exp := &fakeExporter{err: errors.New("disk full")}
	m := newManager(t, Config{Invoker: dryRunInvoker(t, 0), Exporter: exp})
	j, _ := m.Generate(GenerateRequest{TargetCount: 2})
	out := wait(t, j)
	if out.Status != StatusCompleted || out.ExportErr == nil || out.Document == nil {
		t.Errorf("outcome = %+v", out)
	}
	if j.Status().Error != "disk full" {
		t.Errorf("error = %q", j.Status().Error)
	}
}

func TestOptimizedSystemInstruction(t *testing.T) {
	defer goleak.VerifyNone(t)

	client := providers.NewDryRunClient()
	inv, err := invoke.New(invoke.Config{
		Backends: []invoke.Backend{{Name: "dry", Client: client}},
		Logger:   discard,
	})
	if err != nil {
		t.Fatalf("invoke.New() error = %v", err)
	}
	m := newManager(t, Config{Invoker: inv, OptimizeSystem: true})
	j, err := m.Generate(GenerateRequest{TargetCount: 2, Constraints: planner.Constraints{Genre: "xianxia"}})
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if out := wait(t, j); out.Status != StatusCompleted {
		t.Fatalf("outcome = %+v", out)
	}

	reqs := client.Requests()
	if len(reqs) < 2 {
		t.Fatalf("requests = %d", len(reqs))
	}
	first := reqs[0].Messages
	if len(first) != 1 || !strings.Contains(first[0].Content, "Genre: xianxia") {
		t.Fatalf("first request = %+v, want the optimize prompt alone", first)
	}
	for i, r := range reqs[1:] {
		if r.Messages[0].Role != "system" || !strings.HasPrefix(r.Messages[0].Content, "Dry run: You are a senior web-novel editor.") {
			t.Errorf("request %d system = %q", i+1, r.Messages[0].Content)
		}
	}
}
