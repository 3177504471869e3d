package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ShayCichocki/hive/internal/apperr"
	"github.com/ShayCichocki/hive/internal/worktree"
)

var diffStat bool

var diffCmd = &cobra.Command{
	Use:   "diff <task-id>",
	Short: "Show a task's changes against the base branch",
	Long: `Show the committed changes on the task branch against the base branch.

Reads the repository directly, so it works while the interactive board is open.`,
	Args: cobra.ExactArgs(1),
	RunE: runDiff,
}

func init() {
	diffCmd.Flags().BoolVar(&diffStat, "stat", false, "Only list changed files with added and removed line counts")
}

func runDiff(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	cfg, snap, err := loadSnapshot(ctx)
	if err != nil {
		return err
	}
	t, err := findTask(snap.Ordered(), args[0])
	if err != nil {
		return err
	}
	if t.BranchName == "" {
		return apperr.Validation("diff", "task %s has no branch yet", t.ID)
	}

	backend := worktree.NewGitBackend(cfg.Root)
	base := cfg.BaseBranch
	if base == "" {
		if base, err = backend.CurrentBranch(ctx); err != nil {
			return err
		}
	}
	rc, err := backend.DiffStream(ctx, base, t.BranchName)
	if err != nil {
		return err
	}
	defer rc.Close()

	stats := newDiffStats()
	file := ""
	for h, err := range worktree.ParseHunks(rc) {
		if err != nil {
			return err
		}
		stats.add(h)
		if diffStat {
			continue
		}
		if h.File != file {
			file = h.File
			name := h.File
			if h.OldFile != "" && h.OldFile != h.File {
				name = h.OldFile + " -> " + h.File
			}
			fmt.Println(color.New(color.Bold).Sprint(name))
		}
		writeHunk(os.Stdout, h)
	}
	if stats.empty() {
		fmt.Printf("No changes between %s and %s\n", base, t.BranchName)
		return nil
	}
	if diffStat {
		stats.write(os.Stdout)
	}
	return nil
}
