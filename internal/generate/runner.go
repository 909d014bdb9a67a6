// Package generate executes planned tasks strictly in order, threading the
// accumulated outline forward as context and appending each task's output.
package generate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jackzampolin/quire/internal/control"
	"github.com/jackzampolin/quire/internal/invoke"
	"github.com/jackzampolin/quire/internal/normalize"
	"github.com/jackzampolin/quire/internal/outline"
	"github.com/jackzampolin/quire/internal/planner"
	"github.com/jackzampolin/quire/internal/prompts"
	"github.com/jackzampolin/quire/internal/prompts/novel"
)

// Invoker issues one generation request. *invoke.Invoker implements it.
type Invoker interface {
	Invoke(ctx context.Context, req invoke.Request) string
}

var _ Invoker = (*invoke.Invoker)(nil)

// ProgressFunc observes progress. It must not block.
type ProgressFunc func(completed, total int, message string)

// Temperatures used for the two task shapes.
const (
	FreeTextTemperature = 0.7
	RecordTemperature   = 0.5
)

// Config configures a Runner.
type Config struct {
	Invoker Invoker // required

	System       string            // System instruction (default: planner.SystemInstruction)
	Resolver     *prompts.Resolver // Prompt source (default: embedded prompts only)
	ContextChars int               // Tail of the document sent as context (default: 22000)
	SummaryChars int               // Tail of the rolling chapter summary log (default: 4500)
	SummaryRunes int               // Content length per summary line (default: 60)

	OnProgress ProgressFunc
	Logger     *slog.Logger
}

// Runner executes tasks in order. A Runner is used by one job at a time.
type Runner struct {
	cfg    Config
	logger *slog.Logger
}

// Result is what a run produced.
type Result struct {
	Document     *outline.Document
	Completed    int  // tasks finished
	Cancelled    bool // run stopped early; Document holds the partial output
	Repairs      int  // repair round trips issued
	Placeholders int  // records synthesized because a batch failed
}

// NewRunner validates cfg and fills in defaults.
func NewRunner(cfg Config) (*Runner, error) {
	if cfg.Invoker == nil {
		return nil, fmt.Errorf("invoker is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Resolver == nil {
		cfg.Resolver = novel.NewResolver(nil, cfg.Logger)
	}
	if cfg.System == "" {
		cfg.System = planner.SystemInstruction(cfg.Resolver)
	}
	if cfg.ContextChars <= 0 {
		cfg.ContextChars = 22000
	}
	if cfg.SummaryChars <= 0 {
		cfg.SummaryChars = 4500
	}
	if cfg.SummaryRunes <= 0 {
		cfg.SummaryRunes = 60
	}
	return &Runner{cfg: cfg, logger: cfg.Logger}, nil
}

// Run executes tasks against doc, which it grows in place. A nil doc starts a
// new document. Cancellation is read from ctx; the partial document is
// returned with Cancelled set.
func (r *Runner) Run(ctx context.Context, tasks []planner.Task, doc *outline.Document) Result {
	if doc == nil {
		doc = outline.NewDocument()
	}
	res := Result{Document: doc}
	summaries := newSummaryLog(r.cfg.SummaryChars)
	for _, rec := range outline.Sorted(doc.Index()) {
		summaries.add(rec.Summary(r.cfg.SummaryRunes))
	}

	for i, task := range tasks {
		if err := control.Wait(ctx); err != nil {
			res.Cancelled = true
			r.logger.Info("run cancelled", "completed", res.Completed, "total", len(tasks))
			return res
		}

		var err error
		switch task.Shape.Kind {
		case planner.RecordArray:
			err = r.runRecords(ctx, task, doc, summaries, &res)
		default:
			err = r.runFreeText(ctx, task, doc)
		}
		if err != nil {
			res.Cancelled = true
			r.logger.Info("run cancelled", "task", task.Label, "completed", res.Completed, "total", len(tasks))
			return res
		}

		res.Completed++
		r.progress(i+1, len(tasks), task.Label)
	}
	return res
}

func (r *Runner) progress(completed, total int, label string) {
	if r.cfg.OnProgress != nil {
		r.cfg.OnProgress(completed, total, fmt.Sprintf("generated %s", label))
	}
}

func (r *Runner) runFreeText(ctx context.Context, task planner.Task, doc *outline.Document) error {
	prompt, err := r.prompt(task, doc, "")
	if err != nil {
		return r.renderFailure(task, err)
	}
	text := r.cfg.Invoker.Invoke(ctx, invoke.Request{
		Label:       task.Label,
		System:      r.cfg.System,
		Prompt:      prompt,
		Temperature: FreeTextTemperature,
	})
	if ctx.Err() != nil {
		return ctx.Err()
	}
	text = Sanitize(text)
	if text == "" {
		r.logger.Warn("task produced no text", "task", task.Label)
		text = outline.MissingFacet
	}
	doc.Append(task.Label, text)
	return nil
}

func (r *Runner) runRecords(ctx context.Context, task planner.Task, doc *outline.Document, summaries *summaryLog, res *Result) error {
	lo, hi := task.Shape.Lo, task.Shape.Hi
	prompt, err := r.prompt(task, doc, summaries.String())
	if err != nil {
		return r.renderFailure(task, err)
	}
	schema := normalize.RecordSchema(lo, hi)
	req := invoke.Request{
		Label:       task.Label,
		System:      r.cfg.System,
		Prompt:      prompt,
		Temperature: RecordTemperature,
		Schema:      schema,
	}

	text := r.cfg.Invoker.Invoke(ctx, req)
	if ctx.Err() != nil {
		return ctx.Err()
	}

	if text == "" {
		// Terminal empty: the invoker already spent its budgets, so the range is
		// left missing for the reconciler.
		r.logger.Warn("no output for batch, leaving range for reconciliation", "task", task.Label)
		return nil
	}

	records, err := normalize.Records(text, lo, hi)
	if errors.Is(err, normalize.ErrMalformed) {
		r.logger.Warn("malformed records, requesting repair", "task", task.Label, "error", err)
		res.Repairs++
		req.Label = task.Label + " (repair)"
		req.Prompt = normalize.RepairPrompt(schema, text, err)
		repaired := r.cfg.Invoker.Invoke(ctx, req)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		records, err = normalize.Records(repaired, lo, hi)
	}
	if err != nil {
		r.logger.Warn("records still malformed, synthesizing batch", "task", task.Label, "error", err)
		records = outline.SynthesizeRange(doc.Index(), outline.Run{From: lo, To: hi}.Indices())
		res.Placeholders += len(records)
	}

	// Keep one record per index, preferring real records over weak ones.
	batch := make(map[int]outline.Record, len(records))
	for _, rec := range records {
		outline.Merge(batch, rec)
	}
	if len(batch) == 0 {
		r.logger.Warn("batch returned no records in range", "task", task.Label)
		return nil
	}
	if got := len(batch); got < hi-lo+1 {
		r.logger.Info("batch incomplete, leaving gaps for reconciliation", "task", task.Label, "got", got, "want", hi-lo+1)
	}

	sorted := outline.Sorted(batch)
	doc.Append(task.Label, outline.RenderRecords(sorted))
	for _, rec := range sorted {
		summaries.add(rec.Summary(r.cfg.SummaryRunes))
	}
	return nil
}

// renderFailure logs a prompt template failure. A broken template stops the
// run the same way a cancel does, leaving the partial document.
func (r *Runner) renderFailure(task planner.Task, err error) error {
	r.logger.Error("failed to build prompt", "task", task.Label, "error", err)
	return err
}

func (r *Runner) prompt(task planner.Task, doc *outline.Document, summaries string) (string, error) {
	return r.cfg.Resolver.Render(novel.ContextKey, novel.ContextData{
		Context:   strings.TrimSpace(doc.Tail(r.cfg.ContextChars)),
		Summaries: summaries,
		Prompt:    task.Prompt,
	})
}
