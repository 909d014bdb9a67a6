package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/quire/internal/jobs"
)

var (
	recFlags runFlags
	recReq   jobs.ReconcileRequest
)

var reconcileCmd = &cobra.Command{
	Use:   "reconcile <outline.md>",
	Short: "Fill the missing chapters and facets of an existing outline",
	Long: `Reconcile reads an outline, restores facet sections that are absent and
backfills every chapter index in 1..target that has no record, in as few calls
as possible. Running it on a complete outline changes nothing.

Examples:
  quire reconcile heir.md --target 60
  quire reconcile heir.md --target 60 --genre xianxia --format md,yaml`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		data, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("failed to read outline: %w", err)
		}
		recReq.Text = string(data)
		if recReq.Name == "" {
			recReq.Name = strings.TrimSuffix(filepath.Base(args[0]), filepath.Ext(args[0]))
		}

		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		if !cmd.Flags().Changed("target") {
			recReq.TargetCount = a.cfg.Get().Defaults.TargetCount
		}

		mgr, err := a.manager(ctx, recFlags)
		if err != nil {
			return err
		}
		job, err := mgr.Reconcile(recReq)
		if err != nil {
			return err
		}
		return waitJob(ctx, mgr, job, recReq.TargetCount)
	},
}

func init() {
	reconcileCmd.Flags().StringVar(&recReq.Name, "name", "", "outline name used for exported files (default: input file name)")
	reconcileCmd.Flags().IntVar(&recReq.TargetCount, "target", 0, "number of chapters the outline must have (default: defaults.target_count)")
	addConstraintFlags(reconcileCmd, &recReq.Constraints)
	addRunFlags(reconcileCmd, &recFlags)

	rootCmd.AddCommand(reconcileCmd)
}
