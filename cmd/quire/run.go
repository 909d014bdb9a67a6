package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/quire/internal/api"
	"github.com/jackzampolin/quire/internal/jobs"
	"github.com/jackzampolin/quire/internal/outline"
	"github.com/jackzampolin/quire/internal/planner"
)

// jobSummary is what generate and reconcile print when the job ends.
type jobSummary struct {
	Job          jobs.Record `json:"job" yaml:"job"`
	Chapters     int         `json:"chapters" yaml:"chapters"`
	Missing      []int       `json:"missing,omitempty" yaml:"missing,omitempty"`
	Placeholders int         `json:"placeholders" yaml:"placeholders"`
	Repairs      int         `json:"repairs,omitempty" yaml:"repairs,omitempty"`
	Backfilled   int         `json:"backfilled,omitempty" yaml:"backfilled,omitempty"`
	Facets       []string    `json:"facets_restored,omitempty" yaml:"facets_restored,omitempty"`
	Calls        int         `json:"backfill_calls,omitempty" yaml:"backfill_calls,omitempty"`
}

func addRunFlags(cmd *cobra.Command, f *runFlags) {
	cmd.Flags().StringSliceVar(&f.backends, "backend", nil, "backend names in priority order (default: defaults.backends)")
	cmd.Flags().BoolVar(&f.dryRun, "dry-run", false, "use a local fake backend instead of calling any provider")
	cmd.Flags().StringVar(&f.outDir, "out", "", "export directory (default: <home>/output)")
	cmd.Flags().StringSliceVar(&f.formats, "format", nil, "export formats: md, json, yaml, epub (default: export.formats)")
	cmd.Flags().BoolVar(&f.noExport, "no-export", false, "do not write any files")
	cmd.Flags().BoolVar(&f.noLog, "no-call-log", false, "do not record provider calls")
	cmd.Flags().BoolVar(&f.noOptimize, "no-optimize", false, "use the base system instruction without genre tuning")
	cmd.Flags().BoolVar(&f.noEnrich, "no-enrich", false, "do not rework chapters lacking a hook or payoff")
}

func addConstraintFlags(cmd *cobra.Command, c *planner.Constraints) {
	cmd.Flags().StringVar(&c.Genre, "genre", "", "genre, e.g. xianxia or urban fantasy")
	cmd.Flags().StringVar(&c.Theme, "theme", "", "central theme or premise")
	cmd.Flags().StringVar(&c.Channel, "channel", "", "reader channel: male or female")
}

// waitJob blocks until the job ends. Cancelling ctx (Ctrl+C) cancels the job
// and still reports the partial result.
func waitJob(ctx context.Context, mgr *jobs.Manager, job *jobs.Job, target int) error {
	select {
	case <-job.Done():
	case <-ctx.Done():
		job.Cancel()
	}
	out, err := job.Wait(context.Background())
	if err != nil {
		return err
	}
	if err := mgr.Shutdown(context.Background()); err != nil {
		return err
	}

	summary := summarize(job.Status(), out, target)
	if err := api.Output(summary); err != nil {
		return err
	}

	switch out.Status {
	case jobs.StatusFailed:
		return fmt.Errorf("job failed: %w", out.Err)
	case jobs.StatusCancelled:
		return fmt.Errorf("job cancelled")
	}
	if out.ExportErr != nil {
		return fmt.Errorf("outline generated but export failed: %w", out.ExportErr)
	}
	return nil
}

func summarize(rec jobs.Record, out jobs.Outcome, target int) jobSummary {
	s := jobSummary{Job: rec}
	if out.Document == nil {
		return s
	}
	index := out.Document.Index()
	s.Chapters = len(index)
	s.Missing = outline.Missing(index, 1, target)
	for _, r := range index {
		if outline.IsPlaceholder(r) {
			s.Placeholders++
		}
	}
	if g := out.Generate; g != nil {
		s.Repairs = g.Repairs
	}
	if r := out.Reconcile; r != nil {
		s.Backfilled = r.Filled
		s.Facets = r.Facets
		s.Calls = r.Calls
	}
	return s
}
