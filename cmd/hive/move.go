package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ShayCichocki/hive/internal/apperr"
	"github.com/ShayCichocki/hive/internal/orchestrator"
)

var moveCmd = &cobra.Command{
	Use:   "move <task-id> forward|backward",
	Short: "Move a task one column",
	Long: `Move a task one column forward or backward.

This is a manual override of the agent-driven flow. A task with a running
agent cannot be moved; stop the agent first. Moving into planning creates the
task worktree and moving back to todo discards it.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		build, err := moveCommand(args[1])
		if err != nil {
			return err
		}
		return withHive(cmd.Context(), func(h *hive) error {
			res, err := doTask(cmd.Context(), h, args[0], build)
			if err != nil {
				return err
			}
			fmt.Printf("%s is now in %s\n", res.Task.ID, statusColor(res.Task.Status).Sprint(res.Task.Status.Label()))
			return nil
		})
	},
}

func moveCommand(direction string) (func(string) orchestrator.Command, error) {
	switch direction {
	case "forward", "f", "next":
		return orchestrator.MoveForward, nil
	case "backward", "b", "back", "prev":
		return orchestrator.MoveBackward, nil
	default:
		return nil, apperr.Validation("move", "direction must be forward or backward, got %q", direction)
	}
}
