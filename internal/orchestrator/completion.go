package orchestrator

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/ShayCichocki/hive/internal/taskstate"
	"github.com/ShayCichocki/hive/pkg/models"
)

// maxFailureText bounds the output excerpt kept in last_failure.
const maxFailureText = 600

// complete applies a finished run to its task. Completions for runs that are
// no longer the task's active run (stopped, deleted, superseded) are dropped.
func (c *Coordinator) complete(ctx context.Context, run *models.AgentRun) {
	if run == nil {
		return
	}
	c.recordRun(run)
	log := c.log.With("run_id", run.ID, "task_id", run.TaskID)

	t, ok := c.tasks.Tasks[run.TaskID]
	if !ok || t.ActiveRunID != run.ID {
		log.Debug("stale completion dropped", "status", run.Status)
		return
	}

	succeeded := run.Status == models.RunStatusSucceeded
	reason := failureText(run)

	switch {
	case run.Role == models.RolePlanner && succeeded && !c.opts.Plans.Exists(t.ID):
		succeeded = false
		reason = fmt.Sprintf("planner %s exited 0 but wrote no plan to %s", run.Agent, c.opts.Plans.Path(t.ID))
	case run.Role == models.RoleExecutor && succeeded:
		if _, err := c.opts.Worktrees.Commit(ctx, t.ID, "hive: "+t.Title); err != nil {
			succeeded = false
			reason = "commit executor changes: " + err.Error()
		}
	}

	if !succeeded {
		c.fail(ctx, t, run.Role, reason)
		c.changed(EventRunFinished, t, run.ID, reason)
		log.Info("agent run failed", "role", run.Role, "status", t.Status, "reason", firstLine(reason))
		return
	}

	next, err := taskstate.Transition(t.Status, taskstate.Outcome(run.Role, true))
	t.ActiveRunID = ""
	if err != nil {
		log.Error("success transition", "status", t.Status, "error", err)
		t.LastFailure = err.Error()
		c.changed(EventRunFinished, t, run.ID, t.LastFailure)
		return
	}
	if run.Role == models.RolePlanner {
		t.PlanPath = c.opts.Plans.Path(t.ID)
	}
	t.LastFailure = ""
	c.setStatus(t, next)
	c.changed(EventRunFinished, t, run.ID, "")
	log.Info("agent run succeeded", "role", run.Role, "status", t.Status)
}

// recover handles state left by a previous process: runs recorded as active
// are treated as interrupted, and worktrees are reconciled with the tasks.
func (c *Coordinator) recover(ctx context.Context) {
	c.interruptActive(ctx, "interrupted: hive exited while the agent was running")

	removed, err := c.opts.Worktrees.Reconcile(ctx, c.tasks.Ordered())
	if err != nil {
		c.log.Warn("reconcile worktrees", "error", err)
	}
	for _, p := range removed {
		c.log.Info("removed orphaned worktree", "path", p)
	}
	for _, t := range c.tasks.Ordered() {
		wt, ok := c.opts.Worktrees.Get(t.ID)
		switch {
		case ok && t.Status.HasWorktree() && (t.BranchName != wt.Branch || t.WorktreePath != wt.Path):
			t.BranchName, t.WorktreePath = wt.Branch, wt.Path
			c.dirty = true
		case !t.Status.HasWorktree() && t.WorktreePath != "":
			t.WorktreePath = ""
			c.dirty = true
		}
	}
}

// interruptActive applies the failure transition to every task whose run is
// still marked active.
func (c *Coordinator) interruptActive(ctx context.Context, reason string) {
	for _, t := range c.tasks.Ordered() {
		if !t.HasActiveRun() {
			continue
		}
		runID := t.ActiveRunID
		c.fail(ctx, t, roleOf(t, nil), reason)
		c.changed(EventRunFinished, t, runID, reason)
		c.log.Warn("agent run interrupted", "task_id", t.ID, "run_id", runID)
	}
}

// failureText summarises a failed run for last_failure.
func failureText(run *models.AgentRun) string {
	var head string
	switch run.Status {
	case models.RunStatusCancelled:
		head = fmt.Sprintf("%s %s was cancelled", run.Role, run.Agent)
	case models.RunStatusFailed:
		if run.ExitCode >= 0 {
			head = fmt.Sprintf("%s %s exited with code %d", run.Role, run.Agent, run.ExitCode)
		} else {
			head = fmt.Sprintf("%s %s failed", run.Role, run.Agent)
		}
	default:
		head = fmt.Sprintf("%s %s ended with status %s", run.Role, run.Agent, run.Status)
	}
	summary := strings.TrimSpace(run.ExitSummary)
	if summary == "" {
		return head
	}
	if len(summary) > maxFailureText {
		cut := len(summary) - maxFailureText
		for cut < len(summary) && !utf8.RuneStart(summary[cut]) {
			cut++
		}
		summary = "..." + summary[cut:]
	}
	return head + ":\n" + summary
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
