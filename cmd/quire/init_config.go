package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/quire/internal/config"
	"github.com/jackzampolin/quire/internal/home"
)

var initForce bool

var initConfigCmd = &cobra.Command{
	Use:   "init-config [path]",
	Short: "Write the default configuration file",
	Long: `Write the default configuration to <home>/config.yaml, or to path.
An existing file is kept unless --force is given.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		h, err := home.New(homeDir)
		if err != nil {
			return err
		}
		path := h.ConfigPath()
		if len(args) == 1 {
			path = args[0]
		}
		if _, err := os.Stat(path); err == nil && !initForce {
			return fmt.Errorf("%s already exists (use --force to overwrite)", path)
		}
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return err
		}
		if err := config.WriteDefault(path); err != nil {
			return err
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "wrote %s\n", path)
		return nil
	},
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect configuration",
}

var configDefaultsCmd = &cobra.Command{
	Use:   "defaults",
	Short: "List every configuration key with its default and description",
	RunE: func(cmd *cobra.Command, args []string) error {
		return outputTo(cmd, config.DefaultEntries())
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration (file, environment and defaults merged)",
	RunE: func(cmd *cobra.Command, args []string) error {
		h, err := home.New(homeDir)
		if err != nil {
			return err
		}
		file := cfgFile
		if file == "" && h.ConfigExists() {
			file = h.ConfigPath()
		}
		mgr, err := config.NewManager(file, nil)
		if err != nil {
			return err
		}
		return outputTo(cmd, mgr.Get())
	},
}

func init() {
	initConfigCmd.Flags().BoolVar(&initForce, "force", false, "overwrite an existing file")

	configCmd.AddCommand(configDefaultsCmd, configShowCmd)
	rootCmd.AddCommand(initConfigCmd, configCmd)
}
