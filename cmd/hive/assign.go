package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ShayCichocki/hive/internal/orchestrator"
	"github.com/ShayCichocki/hive/internal/runlog"
	"github.com/ShayCichocki/hive/pkg/models"
)

var (
	assignAgent  string
	assignFollow bool
)

var assignCmd = &cobra.Command{
	Use:   "assign <task-id>",
	Short: "Start the next agent for a task and wait for it",
	Long: `Start the next agent for a task and wait until it finishes.

A task in todo gets a planner, which writes a plan into the task worktree
and moves the task to plan review. A task in plan review gets an executor,
which implements the plan and moves the task to review.

The agent runs under this process: interrupting the command stops it.
Use the interactive board to run several agents at once.

Examples:
  hive assign task-1a2b3c4d              # default planner or executor
  hive assign task-1a2b3c4d --agent codex
  hive assign task-1a2b3c4d --follow     # stream agent output`,
	Args: cobra.ExactArgs(1),
	RunE: runAssign,
}

var stopCmd = &cobra.Command{
	Use:   "stop <task-id>",
	Short: "Stop the agent running on a task",
	Long: `Stop the agent running on a task. A stopped planner returns the task
to todo; a stopped executor leaves it in executing so it can be reassigned.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withHive(cmd.Context(), func(h *hive) error {
			res, err := doTask(cmd.Context(), h, args[0], orchestrator.Stop)
			if err != nil {
				return err
			}
			fmt.Printf("Stopped; %s is in %s\n", res.Task.ID, res.Task.Status.Label())
			return nil
		})
	},
}

func init() {
	assignCmd.Flags().StringVarP(&assignAgent, "agent", "a", "", "Agent template name (default: the role's default)")
	assignCmd.Flags().BoolVarP(&assignFollow, "follow", "f", false, "Stream the agent's output while it runs")
}

func runAssign(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return withHive(ctx, func(h *hive) error {
		res, err := doTask(ctx, h, args[0], func(id string) orchestrator.Command {
			return orchestrator.AssignAgent(id, assignAgent)
		})
		if err != nil {
			return err
		}
		run := res.Run
		printStatus("▶", fmt.Sprintf("Started %s %s on %s (run %s)", run.Role, run.Agent, res.Task.ID, run.ID), color.FgCyan)
		fmt.Printf("  log: %s\n", run.LogPath)

		followDone := make(chan struct{})
		followCtx, cancelFollow := context.WithCancel(ctx)
		defer cancelFollow()
		if assignFollow {
			go func() {
				defer close(followDone)
				if err := runlog.Follow(followCtx, run.LogPath, os.Stdout); err != nil && followCtx.Err() == nil {
					h.log.Warn("follow run log", "path", run.LogPath, "error", err)
				}
			}()
		} else {
			close(followDone)
		}

		t, err := h.coord.WaitIdle(ctx, res.Task.ID)
		cancelFollow()
		<-followDone
		if err != nil {
			if ctx.Err() != nil {
				return fmt.Errorf("interrupted; stopping %s", run.Role)
			}
			return err
		}
		return reportRun(run.Role, t)
	})
}

// reportRun prints the outcome of a finished run and returns an error when
// the task did not advance.
func reportRun(role models.Role, t *models.Task) error {
	want := models.TaskStatusPlanReview
	if role == models.RoleExecutor {
		want = models.TaskStatusReview
	}
	if t.Status == want {
		printStatus("✓", fmt.Sprintf("%s finished; %s is in %s", role, t.ID, t.Status.Label()), color.FgGreen)
		if t.PlanPath != "" && role == models.RolePlanner {
			fmt.Printf("  plan: %s\n", t.PlanPath)
		}
		return nil
	}
	printStatus("✗", fmt.Sprintf("%s failed; %s is in %s", role, t.ID, t.Status.Label()), color.FgRed)
	if t.LastFailure != "" {
		fmt.Println(indent(t.LastFailure, "  "))
	}
	return fmt.Errorf("%s run did not complete", role)
}
