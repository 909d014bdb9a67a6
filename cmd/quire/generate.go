package main

import (
	"github.com/spf13/cobra"

	"github.com/jackzampolin/quire/internal/jobs"
)

var (
	genFlags runFlags
	genReq   jobs.GenerateRequest
)

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate a complete numbered outline",
	Long: `Generate plans the outline (facets, volume blueprints and chapter batches),
runs every task in order and then backfills any chapter still missing.

The finished outline is written to the export directory. Press Ctrl+C to
cancel; the partial result is still reported.

Examples:
  quire generate --target 60 --genre xianxia --name heir
  quire generate --target 120 --volumes 3 --backend openrouter,gemini
  quire generate --target 20 --dry-run --format md,epub`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		defaults := a.cfg.Get().Defaults
		if !cmd.Flags().Changed("target") {
			genReq.TargetCount = defaults.TargetCount
		}
		if !cmd.Flags().Changed("volumes") {
			genReq.VolumeCount = defaults.VolumeCount
		}

		mgr, err := a.manager(ctx, genFlags)
		if err != nil {
			return err
		}
		job, err := mgr.Generate(genReq)
		if err != nil {
			return err
		}
		return waitJob(ctx, mgr, job, genReq.TargetCount)
	},
}

func init() {
	generateCmd.Flags().StringVar(&genReq.Name, "name", "", "outline name used for exported files (default: job id)")
	generateCmd.Flags().IntVar(&genReq.TargetCount, "target", 0, "number of chapters (default: defaults.target_count)")
	generateCmd.Flags().IntVar(&genReq.VolumeCount, "volumes", 0, "number of volumes (default: defaults.volume_count)")
	generateCmd.Flags().IntVar(&genReq.BatchSize, "batch", 0, "chapters per generation call (default: defaults.batch_size)")
	addConstraintFlags(generateCmd, &genReq.Constraints)
	addRunFlags(generateCmd, &genFlags)

	rootCmd.AddCommand(generateCmd)
}
