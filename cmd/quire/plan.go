package main

import (
	"github.com/spf13/cobra"

	"github.com/jackzampolin/quire/internal/api"
	"github.com/jackzampolin/quire/internal/planner"
)

var (
	planCfg     planner.Config
	planPrompts bool
	planGenres  bool
)

type genreEntry struct {
	Genre  string   `json:"genre" yaml:"genre"`
	Themes []string `json:"themes,omitempty" yaml:"themes,omitempty"`
}

// genreList lists the built-in genres, or only the given one with its themes.
func genreList(genre string) []genreEntry {
	if genre != "" {
		return []genreEntry{{Genre: genre, Themes: planner.ThemeSuggestions(genre)}}
	}
	names := planner.Genres()
	out := make([]genreEntry, 0, len(names))
	for _, g := range names {
		out = append(out, genreEntry{Genre: g, Themes: planner.ThemeSuggestions(g)})
	}
	return out
}

type plannedTask struct {
	Label  string `json:"label" yaml:"label"`
	Kind   string `json:"kind" yaml:"kind"`
	Facet  string `json:"facet,omitempty" yaml:"facet,omitempty"`
	From   int    `json:"from,omitempty" yaml:"from,omitempty"`
	To     int    `json:"to,omitempty" yaml:"to,omitempty"`
	Prompt string `json:"prompt,omitempty" yaml:"prompt,omitempty"`
}

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Print the task list generate would run",
	Long: `Plan prints the ordered generation tasks without calling any backend.

Examples:
  quire plan --target 30
  quire plan --target 90 --volumes 3 --prompts -o json
  quire plan --genres
  quire plan --genres --genre 仙侠`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if planGenres {
			return api.Output(genreList(planCfg.Constraints.Genre))
		}
		ctx := cmd.Context()

		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		defaults := a.cfg.Get().Defaults
		if !cmd.Flags().Changed("target") {
			planCfg.TargetCount = defaults.TargetCount
		}
		if !cmd.Flags().Changed("volumes") {
			planCfg.VolumeCount = defaults.VolumeCount
		}
		if !cmd.Flags().Changed("batch") {
			planCfg.BatchSize = defaults.BatchSize
		}
		planCfg.Resolver = a.resolver
		planCfg.Logger = a.logger

		tasks, err := planner.Plan(planCfg)
		if err != nil {
			return err
		}
		out := make([]plannedTask, 0, len(tasks))
		for _, t := range tasks {
			pt := plannedTask{Label: t.Label, Kind: t.Shape.Kind.String(), Facet: t.Facet}
			if t.Shape.Kind == planner.RecordArray {
				pt.From, pt.To = t.Shape.Lo, t.Shape.Hi
			}
			if planPrompts {
				pt.Prompt = t.Prompt
			}
			out = append(out, pt)
		}
		return api.Output(out)
	},
}

func init() {
	planCmd.Flags().IntVar(&planCfg.TargetCount, "target", 0, "number of chapters (default: defaults.target_count)")
	planCmd.Flags().IntVar(&planCfg.VolumeCount, "volumes", 0, "number of volumes (default: defaults.volume_count)")
	planCmd.Flags().IntVar(&planCfg.BatchSize, "batch", 0, "chapters per generation call (default: defaults.batch_size)")
	planCmd.Flags().BoolVar(&planPrompts, "prompts", false, "include the rendered prompt of every task")
	planCmd.Flags().BoolVar(&planGenres, "genres", false, "list built-in genres and theme suggestions instead of planning")
	addConstraintFlags(planCmd, &planCfg.Constraints)

	rootCmd.AddCommand(planCmd)
}
