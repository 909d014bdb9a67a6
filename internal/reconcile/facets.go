package reconcile

import (
	"context"
	"strings"

	"github.com/jackzampolin/quire/internal/control"
	"github.com/jackzampolin/quire/internal/generate"
	"github.com/jackzampolin/quire/internal/invoke"
	"github.com/jackzampolin/quire/internal/outline"
	"github.com/jackzampolin/quire/internal/prompts/novel"
)

// facets regenerates every configured facet the document lacks. A facet that
// still comes back empty is left missing for the next pass. It only returns an
// error on cancel.
func (rc *Reconciler) facets(ctx context.Context, doc *outline.Document, res *Result) error {
	for _, task := range rc.cfg.Facets {
		label := task.Facet
		if label == "" {
			label = task.Label
		}
		if doc.HasFacet(label, task.Aliases...) {
			continue
		}
		if err := control.Wait(ctx); err != nil {
			return err
		}

		prompt, err := rc.cfg.Resolver.Render(novel.ContextKey, novel.ContextData{
			Context: strings.TrimSpace(doc.Tail(rc.cfg.ContextChars)),
			Prompt:  task.Prompt,
		})
		if err != nil {
			rc.logger.Error("failed to build facet prompt", "facet", label, "error", err)
			continue
		}
		res.Calls++
		text := rc.cfg.Invoker.Invoke(ctx, invoke.Request{
			Label:       "facet " + label,
			System:      rc.cfg.System,
			Prompt:      prompt,
			Temperature: generate.FreeTextTemperature,
		})
		if ctx.Err() != nil {
			return ctx.Err()
		}
		text = generate.Sanitize(text)
		if text == "" {
			rc.logger.Warn("facet still empty", "facet", label)
			continue
		}
		doc.SetSection(label, text)
		res.Facets = append(res.Facets, label)
		rc.logger.Info("restored missing facet", "facet", label)
	}
	return nil
}
