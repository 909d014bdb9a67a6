package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/quire/internal/home"
	"github.com/jackzampolin/quire/internal/llmcall"
)

var (
	callsDay    string
	callsFilter llmcall.QueryFilter
	callsFailed bool
)

var callsCmd = &cobra.Command{
	Use:   "calls",
	Short: "Inspect recorded provider calls",
	Long: `Every provider attempt is appended to <home>/calls/<date>.jsonl with its
task label, backend, outcome, latency and token usage.`,
}

var callsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recorded calls",
	Long: `Examples:
  quire calls list --job 1b4e... --limit 20
  quire calls list --failed --day 2026-10-14`,
	RunE: func(cmd *cobra.Command, args []string) error {
		calls, err := loadCalls(cmd)
		if err != nil {
			return err
		}
		return outputTo(cmd, calls)
	},
}

var callsSummaryCmd = &cobra.Command{
	Use:   "summary",
	Short: "Summarize recorded calls per backend",
	RunE: func(cmd *cobra.Command, args []string) error {
		calls, err := loadCalls(cmd)
		if err != nil {
			return err
		}
		return outputTo(cmd, llmcall.Summarize(calls))
	},
}

func loadCalls(cmd *cobra.Command) ([]llmcall.Call, error) {
	h, err := home.New(homeDir)
	if err != nil {
		return nil, err
	}
	day := time.Now()
	if callsDay != "" {
		if day, err = time.Parse("2006-01-02", callsDay); err != nil {
			return nil, fmt.Errorf("invalid --day %q: %w", callsDay, err)
		}
	}
	filter := callsFilter
	if cmd.Flags().Changed("failed") {
		ok := !callsFailed
		filter.Success = &ok
	}
	return llmcall.ListFile(h.CallLogPath(day), filter)
}

func init() {
	for _, c := range []*cobra.Command{callsListCmd, callsSummaryCmd} {
		c.Flags().StringVar(&callsDay, "day", "", "log day as YYYY-MM-DD (default: today, UTC)")
		c.Flags().StringVar(&callsFilter.JobID, "job", "", "only calls of this job")
		c.Flags().StringVar(&callsFilter.Backend, "backend", "", "only calls to this backend")
		c.Flags().StringVar(&callsFilter.Outcome, "outcome", "", "only this outcome: success, empty, rate_limited, transient, exhausted")
		c.Flags().BoolVar(&callsFailed, "failed", false, "only unsuccessful calls")
	}
	callsListCmd.Flags().IntVar(&callsFilter.Limit, "limit", 0, "maximum calls to list")
	callsListCmd.Flags().IntVar(&callsFilter.Offset, "offset", 0, "calls to skip")

	callsCmd.AddCommand(callsListCmd, callsSummaryCmd)
	rootCmd.AddCommand(callsCmd)
}
