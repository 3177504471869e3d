package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ShayCichocki/hive/internal/orchestrator"
)

var mergeCmd = &cobra.Command{
	Use:   "merge <task-id>",
	Short: "Merge a reviewed task into the base branch",
	Long: `Merge the task branch into the base branch and move the task to done.

The task must be in review. Pending changes in the worktree are committed
first when merge.auto_commit is set. On conflict the merge is aborted, the
conflicting files are listed and the task stays in review.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withHive(cmd.Context(), func(h *hive) error {
			res, err := doTask(cmd.Context(), h, args[0], orchestrator.Merge)
			if err != nil {
				return err
			}
			printStatus("✓", fmt.Sprintf("Merged %s; task is done", res.Task.ID), color.FgGreen)
			return nil
		})
	},
}

var prCmd = &cobra.Command{
	Use:   "pr <task-id>",
	Short: "Push a reviewed task and open a pull request",
	Long: `Push the task branch and open a pull request with the configured
command (gh by default). The task stays in review unless
pr.completes_task is set.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withHive(cmd.Context(), func(h *hive) error {
			res, err := doTask(cmd.Context(), h, args[0], orchestrator.CreatePR)
			if err != nil {
				return err
			}
			printStatus("✓", "Pull request: "+res.Task.PRURL, color.FgGreen)
			return nil
		})
	},
}
