package main

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.yaml.in/yaml/v3"

	"github.com/ShayCichocki/hive/internal/config"
)

var initForce bool

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize hive in the current repository",
	Long: `Initialize the current git repository for use with hive.

This command:
  - Verifies prerequisites (git and the configured agent commands)
  - Creates the .hive directory structure
  - Writes .hive/config.yaml with the default agent templates

Examples:
  hive init          # Initialize the current repository
  hive init --force  # Rewrite .hive/config.yaml with defaults`,
	Args: cobra.NoArgs,
	RunE: runInit,
}

func init() {
	initCmd.Flags().BoolVar(&initForce, "force", false, "Overwrite an existing project config")
}

func runInit(cmd *cobra.Command, args []string) error {
	root, err := resolveRoot(cmd.Context())
	if err != nil {
		return err
	}
	fmt.Printf("Initializing hive in %s...\n\n", root)

	if _, err := exec.LookPath("git"); err != nil {
		printStatus("✗", "Git not found", color.FgRed)
		return fmt.Errorf("git is required: %w", err)
	}
	printStatus("✓", "Git found", color.FgGreen)

	cfg, err := config.Load(root)
	if err != nil {
		return err
	}
	checkAgents(cfg)

	for _, dir := range []string{cfg.HiveDir, cfg.PlansDir(), cfg.WorktreesDir(), cfg.LogDir()} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating %s: %w", dir, err)
		}
	}
	printStatus("✓", "Created "+cfg.HiveDir, color.FgGreen)

	path := config.ProjectConfigPath(root)
	if _, err := os.Stat(path); err == nil && !initForce {
		printStatus("•", "Keeping existing "+path+" (use --force to overwrite)", color.FgYellow)
	} else {
		if err := mkdirFor(path); err != nil {
			return err
		}
		if err := writeProjectConfig(path, config.Default(root)); err != nil {
			return err
		}
		printStatus("✓", "Wrote "+path, color.FgGreen)
	}

	fmt.Println()
	fmt.Println("Run 'hive' to open the board, or 'hive add <title>' to create a task.")
	return nil
}

// checkAgents reports which configured agent commands are on PATH. Missing
// ones are a warning only; they fail when assigned.
func checkAgents(cfg *config.Config) {
	for _, name := range cfg.PlannerNames() {
		checkCommand("planner", name, cfg.Agents.Planners[name].Command)
	}
	for _, name := range cfg.ExecutorNames() {
		checkCommand("executor", name, cfg.Agents.Executors[name].Command)
	}
}

func checkCommand(role, name, command string) {
	if _, err := exec.LookPath(command); err != nil {
		printStatus("⚠", fmt.Sprintf("%s %q: %s not found in PATH", role, name, command), color.FgYellow)
		return
	}
	printStatus("✓", fmt.Sprintf("%s %q: %s found", role, name, command), color.FgGreen)
}

// writeProjectConfig writes cfg as YAML. Paths are left out so the file
// stays valid if the repository moves.
func writeProjectConfig(path string, cfg *config.Config) error {
	out := *cfg
	out.HiveDir = config.DefaultHiveDir
	out.Log.File = ""
	data, err := yaml.Marshal(&out)
	if err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}
	header := "# hive project configuration. See 'hive config show' for the effective values.\n"
	if err := os.WriteFile(path, append([]byte(header), data...), 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}

func mkdirFor(path string) error {
	return os.MkdirAll(filepath.Dir(path), 0o755)
}
