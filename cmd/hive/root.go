package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ShayCichocki/hive/internal/apperr"
)

var (
	flagRepo     string
	flagLogLevel string
)

var rootCmd = &cobra.Command{
	Use:   "hive",
	Short: "Kanban board for AI coding agents",
	Long: `Hive moves tasks across a kanban board while AI coding agents plan
and implement them in isolated git worktrees.

With no arguments, opens the interactive board. Every other command works
on the same task store, so the board and scripts can be mixed freely.

Task lifecycle:
  todo -> planning -> plan review -> executing -> review -> done

A planner agent writes a plan for the task, you review it, an executor
agent implements it on the task branch, and you merge the branch or open
a pull request.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runBoard,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		printError(err)
		os.Exit(exitCode(err))
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&flagRepo, "repo", "C", "", "Repository to work in (default: current directory)")
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "", "Log level: debug, info, warn, error")

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(addCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(showCmd)
	rootCmd.AddCommand(rmCmd)
	rootCmd.AddCommand(assignCmd)
	rootCmd.AddCommand(stopCmd)
	rootCmd.AddCommand(moveCmd)
	rootCmd.AddCommand(mergeCmd)
	rootCmd.AddCommand(prCmd)
	rootCmd.AddCommand(diffCmd)
	rootCmd.AddCommand(logsCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(versionCmd)
}

// printError writes err to stderr, listing conflicted files for merge
// conflicts.
func printError(err error) {
	red := color.New(color.FgRed, color.Bold)
	fmt.Fprintf(os.Stderr, "%s %v\n", red.Sprint("Error:"), err)
	if files := apperr.ConflictFiles(err); len(files) > 0 {
		fmt.Fprintln(os.Stderr, "Conflicting files:")
		for _, f := range files {
			fmt.Fprintf(os.Stderr, "  %s\n", f)
		}
	}
}

// Exit codes, so scripts can tell a rejected command from a broken setup.
const (
	exitFailure    = 1
	exitValidation = 2
	exitConfig     = 3
	exitConflict   = 4
)

func exitCode(err error) int {
	switch {
	case apperr.IsValidation(err):
		return exitValidation
	case apperr.IsConfig(err):
		return exitConfig
	case apperr.IsGitKind(err, apperr.GitConflict), apperr.IsGitKind(err, apperr.GitDirtyWorktree):
		return exitConflict
	default:
		return exitFailure
	}
}
