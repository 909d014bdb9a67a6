// Package reconcile closes gaps in an outline: missing whole-document facets
// and missing chapter indices. Gaps are backfilled with targeted requests,
// bisected when they will not resolve, and finally synthesized so that every
// index in the target range is present.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/jackzampolin/quire/internal/backoff"
	"github.com/jackzampolin/quire/internal/control"
	"github.com/jackzampolin/quire/internal/generate"
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

var errIncomplete = errors.New("backfill incomplete")

// Config configures a Reconciler.
type Config struct {
	Invoker Invoker // required

	System      string            // System instruction (default: planner.SystemInstruction)
	Resolver    *prompts.Resolver // Prompt source (default: embedded prompts only)
	Constraints string            // Rendered constraint block added to backfill prompts
	Facets      []planner.Task    // Whole-document facets to check; empty skips the facet pass

	MaxRun       int           // Longest run requested at once (default: 15)
	Neighbors    int           // Existing records shown on each side of a gap (default: 12)
	ContextChars int           // Raw document text included with a backfill (default: 6000)
	Attempts     int           // Backfill attempts per run before bisecting (default: 4)
	RetryDelay   time.Duration // Wait between attempts on one run (default: 2s)
	Enrich       bool          // Rework records lacking a hook or payoff

	OnProgress generate.ProgressFunc
	Logger     *slog.Logger
}

// Reconciler fills gaps in documents.
type Reconciler struct {
	cfg    Config
	logger *slog.Logger
}

// Result reports what a pass did.
type Result struct {
	Document    *outline.Document
	Missing     []int    // indices missing before the pass
	Filled      int      // indices filled by generated records
	Synthesized int      // indices filled with placeholders
	Enriched    int      // existing records reworked to carry hook and payoff
	Calls       int      // requests issued
	Facets      []string // facets that were regenerated
	Cancelled   bool
}

// Changed reports whether the pass modified the document.
func (r Result) Changed() bool {
	return r.Filled > 0 || r.Synthesized > 0 || r.Enriched > 0 || len(r.Facets) > 0
}

// New validates cfg and fills in defaults.
func New(cfg Config) (*Reconciler, error) {
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
	if cfg.MaxRun <= 0 {
		cfg.MaxRun = 15
	}
	if cfg.Neighbors <= 0 {
		cfg.Neighbors = 12
	}
	if cfg.ContextChars <= 0 {
		cfg.ContextChars = 6000
	}
	if cfg.Attempts <= 0 {
		cfg.Attempts = 4
	}
	if cfg.RetryDelay < 0 {
		cfg.RetryDelay = 0
	} else if cfg.RetryDelay == 0 {
		cfg.RetryDelay = 2 * time.Second
	}
	return &Reconciler{cfg: cfg, logger: cfg.Logger}, nil
}

// Reconcile fills doc in place so that every index in 1..target is present.
// With Enrich set, records lacking a hook or payoff are then reworked. A
// complete document with every facet present is left untouched and costs no
// calls. On cancel the records merged so far are kept and Cancelled is set.
func (rc *Reconciler) Reconcile(ctx context.Context, doc *outline.Document, target int) Result {
	if doc == nil {
		doc = outline.NewDocument()
	}
	res := Result{Document: doc}

	if err := rc.facets(ctx, doc, &res); err != nil {
		res.Cancelled = true
		return res
	}

	index := doc.Index()
	changed := make(map[int]bool)
	res.Missing = outline.Missing(index, 1, target)
	if len(res.Missing) > 0 {
		res.Cancelled = rc.gaps(ctx, doc, index, target, changed, &res) != nil
	} else {
		rc.logger.Debug("no missing records", "target", target)
	}
	if !res.Cancelled && rc.cfg.Enrich {
		res.Cancelled = rc.enrich(ctx, doc, index, target, changed, &res) != nil
	}

	if len(changed) > 0 {
		records := make([]outline.Record, 0, len(changed))
		for i := range changed {
			records = append(records, index[i])
		}
		doc.ReplaceRecords(records)
	}
	return res
}

// gaps fills every missing index of 1..target into index, depth first. It
// only returns an error on cancel.
func (rc *Reconciler) gaps(ctx context.Context, doc *outline.Document, index map[int]outline.Record, target int, changed map[int]bool, res *Result) error {
	runs := outline.Runs(res.Missing)
	rc.logger.Info("reconciling gaps", "missing", len(res.Missing), "runs", len(runs), "target", target)

	// Depth first: push in reverse so the lowest run is handled first.
	stack := make([]outline.Run, 0, len(runs))
	for i := len(runs) - 1; i >= 0; i-- {
		stack = append(stack, runs[i])
	}

	done := 0
	for len(stack) > 0 {
		run := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if run.Len() > rc.cfg.MaxRun {
			lo, hi := run.Halves()
			stack = append(stack, hi, lo)
			continue
		}

		remaining, err := rc.fill(ctx, doc, index, run, changed, res)
		if err != nil {
			return err
		}

		switch {
		case len(remaining) == 0:
		case run.Len() == 1:
			rc.synthesize(index, remaining, changed, res)
		default:
			// Bisect what is left; every piece is strictly smaller than run.
			sub := outline.Runs(remaining)
			for i := len(sub) - 1; i >= 0; i-- {
				s := sub[i]
				if s.Len() > 1 {
					lo, hi := s.Halves()
					stack = append(stack, hi, lo)
				} else {
					stack = append(stack, s)
				}
			}
			rc.logger.Info("bisecting unresolved run", "run", run, "remaining", len(remaining))
		}

		done++
		rc.progress(done, target, index, run)
	}
	return nil
}

func (rc *Reconciler) progress(done, target int, index map[int]outline.Record, run outline.Run) {
	if rc.cfg.OnProgress == nil {
		return
	}
	present := target - len(outline.Missing(index, 1, target))
	rc.cfg.OnProgress(present, target, fmt.Sprintf("reconciled %s (%d runs)", run, done))
}

// fill backfills the indices of run that are missing from index, retrying
// under the attempt budget. It returns the indices still missing.
func (rc *Reconciler) fill(ctx context.Context, doc *outline.Document, index map[int]outline.Record, run outline.Run, changed map[int]bool, res *Result) ([]int, error) {
	policy := backoff.Policy{
		MaxAttempts: rc.cfg.Attempts,
		Backoff:     backoff.Fixed(rc.cfg.RetryDelay),
		Retriable:   func(err error) bool { return errors.Is(err, errIncomplete) },
	}

	err := policy.Do(ctx, control.TimerFor(ctx), func(attempt int) error {
		if err := control.Wait(ctx); err != nil {
			return backoff.Stop(err)
		}
		want := outline.Missing(index, run.From, run.To)
		if len(want) == 0 {
			return nil
		}

		req, err := rc.request(doc, index, want)
		if err != nil {
			return backoff.Stop(err)
		}
		res.Calls++
		text := rc.cfg.Invoker.Invoke(ctx, req)
		if ctx.Err() != nil {
			return backoff.Stop(ctx.Err())
		}

		got := rc.merge(index, want, text, changed)
		res.Filled += got
		still := len(outline.Missing(index, run.From, run.To))
		rc.logger.Debug("backfill attempt", "run", run, "attempt", attempt, "requested", len(want), "merged", got, "missing", still)
		if still > 0 {
			return fmt.Errorf("%w: %d of %d indices still missing", errIncomplete, still, len(want))
		}
		return nil
	})
	if err != nil && ctx.Err() != nil {
		return nil, ctx.Err()
	}
	if err != nil && !errors.Is(err, errIncomplete) {
		rc.logger.Warn("backfill failed", "run", run, "error", err)
	}
	return outline.Missing(index, run.From, run.To), nil
}

// merge adds returned records whose index was requested. It returns the
// number of indices filled.
func (rc *Reconciler) merge(index map[int]outline.Record, want []int, text string, changed map[int]bool) int {
	if text == "" {
		return 0
	}
	records, err := normalize.Records(text, want[0], want[len(want)-1])
	if err != nil {
		rc.logger.Warn("backfill output not usable", "error", err)
		return 0
	}
	requested := make(map[int]bool, len(want))
	for _, i := range want {
		requested[i] = true
	}
	filled := 0
	for _, r := range records {
		if !requested[r.Index] {
			continue
		}
		if outline.Merge(index, r) {
			changed[r.Index] = true
			filled++
			delete(requested, r.Index)
		}
	}
	return filled
}

func (rc *Reconciler) synthesize(index map[int]outline.Record, missing []int, changed map[int]bool, res *Result) {
	for _, r := range outline.SynthesizeRange(index, missing) {
		index[r.Index] = r
		changed[r.Index] = true
		res.Synthesized++
	}
	rc.logger.Warn("synthesized placeholder records", "indices", missing)
}

// request builds a backfill naming exactly want, with the nearest existing
// records on each side and the head of the document as story context.
func (rc *Reconciler) request(doc *outline.Document, index map[int]outline.Record, want []int) (invoke.Request, error) {
	lo, hi := want[0], want[len(want)-1]
	var before, after []outline.Record
	for _, r := range outline.Sorted(index) {
		switch {
		case r.Index < lo:
			before = append(before, r)
		case r.Index > hi:
			after = append(after, r)
		}
	}
	if n := rc.cfg.Neighbors; len(before) > n {
		before = before[len(before)-n:]
	}
	if n := rc.cfg.Neighbors; len(after) > n {
		after = after[:n]
	}

	prompt, err := rc.cfg.Resolver.Render(novel.BackfillKey, novel.BackfillData{
		Indices:     joinInts(want),
		Before:      outline.RenderRecords(before),
		After:       outline.RenderRecords(after),
		Context:     strings.TrimSpace(frontMatter(doc, rc.cfg.ContextChars)),
		Constraints: rc.cfg.Constraints,
	})
	if err != nil {
		return invoke.Request{}, fmt.Errorf("failed to render backfill prompt: %w", err)
	}
	return invoke.Request{
		Label:       "backfill " + planner.RecordsLabel(lo, hi),
		System:      rc.cfg.System,
		Prompt:      prompt,
		Temperature: generate.RecordTemperature,
		Schema:      normalize.RecordSchema(lo, hi),
	}, nil
}

// frontMatter returns the document text before its first chapter, which holds
// the prologue facets, capped at n characters.
func frontMatter(doc *outline.Document, n int) string {
	head := outline.FromText(doc.Head(n))
	var b strings.Builder
	for _, s := range head.Sections() {
		if outline.HasRecords(s.Text) {
			break
		}
		if s.Label != "" {
			b.WriteString("## " + s.Label + "\n\n")
		}
		b.WriteString(s.Text + "\n\n")
	}
	if b.Len() == 0 {
		return head.Text()
	}
	return b.String()
}

func joinInts(xs []int) string {
	parts := make([]string, len(xs))
	for i, x := range xs {
		parts[i] = strconv.Itoa(x)
	}
	return strings.Join(parts, ", ")
}
