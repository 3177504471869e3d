package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.yaml.in/yaml/v3"

	"github.com/ShayCichocki/hive/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show configuration",
	Long: `Show the effective configuration for the current repository.

Configuration is merged from, highest precedence first:
  HIVE_* environment variables (HIVE_SUPERVISOR_MAX_CONCURRENT=2, ...)
  .hive/config.yaml in the repository
  ~/.config/hive/config.yaml
  built-in defaults`,
	Args: cobra.NoArgs,
	RunE: runConfigShow,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration as YAML",
	Args:  cobra.NoArgs,
	RunE:  runConfigShow,
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print the config file locations",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		root, err := resolveRoot(cmd.Context())
		if err != nil {
			return err
		}
		printPath("user", config.UserConfigPath())
		printPath("project", config.ProjectConfigPath(root))
		return nil
	},
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check the configuration for errors",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd.Context())
		if err != nil {
			return err
		}
		printStatus("✓", fmt.Sprintf("Configuration is valid (%d planners, %d executors)",
			len(cfg.Agents.Planners), len(cfg.Agents.Executors)), color.FgGreen)
		return nil
	},
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configPathCmd)
	configCmd.AddCommand(configValidateCmd)
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	root, err := resolveRoot(cmd.Context())
	if err != nil {
		return err
	}
	cfg, err := config.Load(root)
	if err != nil {
		return err
	}
	enc := yaml.NewEncoder(os.Stdout)
	enc.SetIndent(2)
	defer enc.Close()
	return enc.Encode(cfg)
}

func printPath(label, path string) {
	state := color.New(color.Faint).Sprint("(missing)")
	if _, err := os.Stat(path); err == nil {
		state = color.New(color.FgGreen).Sprint("(found)")
	}
	fmt.Printf("%-8s %s %s\n", label+":", path, state)
}
