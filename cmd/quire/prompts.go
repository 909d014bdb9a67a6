package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/quire/internal/api"
	"github.com/jackzampolin/quire/internal/home"
	"github.com/jackzampolin/quire/internal/prompts"
	"github.com/jackzampolin/quire/internal/prompts/novel"
)

var exportForce bool

type promptInfo struct {
	Key        string   `json:"key" yaml:"key"`
	Hash       string   `json:"hash" yaml:"hash"`
	Variables  []string `json:"variables,omitempty" yaml:"variables,omitempty"`
	Overridden bool     `json:"overridden" yaml:"overridden"`
}

var promptsCmd = &cobra.Command{
	Use:   "prompts",
	Short: "List or export the prompt templates",
	Long: `Prompt templates are embedded in the binary. A file named <key>.tmpl in
<home>/prompts overrides the embedded text of that key.`,
}

var promptsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List prompt keys and whether they are overridden",
	RunE: func(cmd *cobra.Command, args []string) error {
		resolver, err := promptResolver()
		if err != nil {
			return err
		}
		var out []promptInfo
		for _, p := range resolver.AllEmbedded() {
			resolved, err := resolver.Resolve(p.Key)
			if err != nil {
				return err
			}
			out = append(out, promptInfo{
				Key:        p.Key,
				Hash:       resolved.Hash,
				Variables:  p.Variables,
				Overridden: resolved.IsOverride,
			})
		}
		return outputTo(cmd, out)
	},
}

var promptsExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write the embedded templates to <home>/prompts for editing",
	RunE: func(cmd *cobra.Command, args []string) error {
		resolver, err := promptResolver()
		if err != nil {
			return err
		}
		written, err := resolver.Export(exportForce)
		if err != nil {
			return err
		}
		if len(written) == 0 {
			fmt.Fprintln(cmd.ErrOrStderr(), "every prompt already has an override (use --force to overwrite)")
		}
		return outputTo(cmd, written)
	},
}

func promptResolver() (*prompts.Resolver, error) {
	h, err := home.New(homeDir)
	if err != nil {
		return nil, err
	}
	store := prompts.NewStore(h.PromptsPath(), nil)
	return novel.NewResolver(store, nil), nil
}

// outputTo writes data to the command's stdout in the --output format.
func outputTo(cmd *cobra.Command, data any) error {
	return api.OutputTo(cmd.OutOrStdout(), api.GetOutputFormat(), data)
}

func init() {
	promptsExportCmd.Flags().BoolVar(&exportForce, "force", false, "overwrite existing overrides")

	promptsCmd.AddCommand(promptsListCmd, promptsExportCmd)
	rootCmd.AddCommand(promptsCmd)
}
