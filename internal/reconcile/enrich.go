package reconcile

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackzampolin/quire/internal/backoff"
	"github.com/jackzampolin/quire/internal/control"
	"github.com/jackzampolin/quire/internal/generate"
	"github.com/jackzampolin/quire/internal/invoke"
	"github.com/jackzampolin/quire/internal/normalize"
	"github.com/jackzampolin/quire/internal/outline"
	"github.com/jackzampolin/quire/internal/prompts/novel"
)

var errUnenriched = errors.New("enrichment incomplete")

// needsEnrich reports whether a record lacks the hook or payoff field.
// Placeholders are never sent for enrichment.
func needsEnrich(r outline.Record) bool {
	if outline.IsPlaceholder(r) {
		return false
	}
	_, hook, payoff := outline.SplitBody(r.Body)
	return hook == "" || payoff == ""
}

// enrich rewrites records in 1..target that lack a hook or payoff, MaxRun at a
// time. A batch that never comes back usable keeps its original records. It
// only returns an error on cancel.
func (rc *Reconciler) enrich(ctx context.Context, doc *outline.Document, index map[int]outline.Record, target int, changed map[int]bool, res *Result) error {
	var pending []outline.Record
	for _, r := range outline.Sorted(index) {
		if r.Index <= target && needsEnrich(r) {
			pending = append(pending, r)
		}
	}
	if len(pending) == 0 {
		return nil
	}
	rc.logger.Info("enriching records without hook or payoff", "records", len(pending))

	for from := 0; from < len(pending); from += rc.cfg.MaxRun {
		batch := pending[from:min(from+rc.cfg.MaxRun, len(pending))]
		if err := rc.enrichBatch(ctx, doc, index, batch, changed, res); err != nil {
			return err
		}
	}
	return nil
}

func (rc *Reconciler) enrichBatch(ctx context.Context, doc *outline.Document, index map[int]outline.Record, batch []outline.Record, changed map[int]bool, res *Result) error {
	want := make([]int, len(batch))
	for i, r := range batch {
		want[i] = r.Index
	}

	policy := backoff.Policy{
		MaxAttempts: rc.cfg.Attempts,
		Backoff:     backoff.Fixed(rc.cfg.RetryDelay),
		Retriable:   func(err error) bool { return errors.Is(err, errUnenriched) },
	}
	err := policy.Do(ctx, control.TimerFor(ctx), func(attempt int) error {
		if err := control.Wait(ctx); err != nil {
			return backoff.Stop(err)
		}
		left := pendingEnrich(index, want)
		if len(left) == 0 {
			return nil
		}
		req, err := rc.enrichRequest(doc, index, left)
		if err != nil {
			return backoff.Stop(err)
		}
		res.Calls++
		text := rc.cfg.Invoker.Invoke(ctx, req)
		if ctx.Err() != nil {
			return backoff.Stop(ctx.Err())
		}
		got := rc.mergeEnriched(index, left, text, changed)
		res.Enriched += got
		still := pendingEnrich(index, want)
		rc.logger.Debug("enrich attempt", "chapters", joinInts(left), "attempt", attempt, "merged", got, "remaining", len(still))
		if len(still) > 0 {
			return fmt.Errorf("%w: %s", errUnenriched, joinInts(still))
		}
		return nil
	})
	if err != nil && ctx.Err() != nil {
		return ctx.Err()
	}
	if err != nil {
		rc.logger.Warn("enrichment incomplete, keeping original records", "chapters", joinInts(want), "error", err)
	}
	return nil
}

func (rc *Reconciler) enrichRequest(doc *outline.Document, index map[int]outline.Record, want []int) (invoke.Request, error) {
	records := make([]outline.Record, 0, len(want))
	for _, i := range want {
		records = append(records, index[i])
	}
	prompt, err := rc.cfg.Resolver.Render(novel.EnrichKey, novel.EnrichData{
		Indices:     joinInts(want),
		Records:     outline.RenderRecords(records),
		Context:     strings.TrimSpace(frontMatter(doc, rc.cfg.ContextChars)),
		Constraints: rc.cfg.Constraints,
	})
	if err != nil {
		return invoke.Request{}, fmt.Errorf("failed to render enrich prompt: %w", err)
	}
	lo, hi := want[0], want[len(want)-1]
	return invoke.Request{
		Label:       "enrich " + joinInts(want),
		System:      rc.cfg.System,
		Prompt:      prompt,
		Temperature: generate.FreeTextTemperature,
		Schema:      normalize.RecordSchema(lo, hi),
	}, nil
}

// pendingEnrich returns the indices of want that still need enrichment.
func pendingEnrich(index map[int]outline.Record, want []int) []int {
	var out []int
	for _, i := range want {
		if r, ok := index[i]; ok && needsEnrich(r) {
			out = append(out, i)
		}
	}
	return out
}

// mergeEnriched replaces requested records with returned ones that carry all
// three fields. Records that are already complete are never touched.
func (rc *Reconciler) mergeEnriched(index map[int]outline.Record, want []int, text string, changed map[int]bool) int {
	if text == "" {
		return 0
	}
	records, err := normalize.Records(text, want[0], want[len(want)-1])
	if err != nil {
		rc.logger.Warn("enrich output not usable", "error", err)
		return 0
	}
	requested := make(map[int]bool, len(want))
	for _, i := range want {
		requested[i] = true
	}
	merged := 0
	for _, r := range records {
		if !requested[r.Index] || r.Weak() || needsEnrich(r) {
			continue
		}
		if r.Title == "" {
			r.Title = index[r.Index].Title
		}
		index[r.Index] = r
		changed[r.Index] = true
		delete(requested, r.Index)
		merged++
	}
	return merged
}
