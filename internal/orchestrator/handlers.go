package orchestrator

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ShayCichocki/hive/internal/agent"
	"github.com/ShayCichocki/hive/internal/apperr"
	"github.com/ShayCichocki/hive/internal/placeholder"
	"github.com/ShayCichocki/hive/internal/plan"
	"github.com/ShayCichocki/hive/internal/taskstate"
	"github.com/ShayCichocki/hive/pkg/models"
)

const stoppedByUser = "stopped by user"

func (c *Coordinator) handle(ctx context.Context, cmd Command) (Result, error) {
	log := c.log.With("command", cmd.Kind, "task_id", cmd.TaskID)
	var (
		res Result
		err error
	)
	switch cmd.Kind {
	case CmdCreate:
		res, err = c.create(cmd)
	case CmdAssignAgent:
		res, err = c.assign(ctx, cmd)
	case CmdStop:
		res, err = c.stop(ctx, cmd)
	case CmdMoveForward:
		res, err = c.move(ctx, cmd.TaskID, taskstate.MoveForward)
	case CmdMoveBackward:
		res, err = c.move(ctx, cmd.TaskID, taskstate.MoveBackward)
	case CmdDelete:
		res, err = c.delete(ctx, cmd)
	case CmdMerge:
		res, err = c.merge(ctx, cmd)
	case CmdCreatePR:
		res, err = c.createPR(ctx, cmd)
	}
	if err != nil {
		log.Warn("command rejected", "error", err)
	} else {
		log.Debug("command applied")
	}
	return res, err
}

func (c *Coordinator) create(cmd Command) (Result, error) {
	title := strings.TrimSpace(cmd.Title)
	if title == "" {
		return Result{}, apperr.Validation("create", "title is required")
	}
	now := time.Now()
	t := &models.Task{
		ID: newTaskID(func(id string) bool {
			_, ok := c.tasks.Tasks[id]
			return ok
		}),
		Title:       title,
		Description: strings.TrimSpace(cmd.Description),
		Status:      models.TaskStatusTodo,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	c.tasks.Put(t)
	c.changed(EventTaskCreated, t, "", "")
	c.log.Info("task created", "task_id", t.ID, "title", t.Title)
	return Result{Task: t.Clone()}, nil
}

// assign starts the agent the task's status calls for: a planner from todo,
// an executor from plan_review or executing.
func (c *Coordinator) assign(ctx context.Context, cmd Command) (Result, error) {
	t, err := c.lookup("assign", cmd.TaskID)
	if err != nil {
		return Result{}, err
	}
	if t.HasActiveRun() {
		return Result{}, apperr.Validation("assign", "task %s already has an active run %s", t.ID, t.ActiveRunID)
	}
	role, action, ok := taskstate.RoleFor(t.Status)
	if !ok {
		return Result{}, apperr.Validation("assign", "no agent can be assigned to a task in %s", t.Status)
	}
	next, err := taskstate.Transition(t.Status, action)
	if err != nil {
		return Result{}, err
	}
	name, tmpl, err := c.opts.Templates.Template(role, cmd.Agent)
	if err != nil {
		return Result{}, err
	}

	planPath := c.opts.Plans.Path(t.ID)
	var prompt string
	switch role {
	case models.RolePlanner:
		prompt = plan.PlanningPrompt(t.Title, t.Description, planPath)
	case models.RoleExecutor:
		content, err := c.opts.Plans.Load(t.ID)
		if err != nil {
			return Result{}, err
		}
		prompt = plan.ExecutionPrompt(t.Title, content)
	}

	createdWorktree := !t.Status.HasWorktree()
	wt, err := c.opts.Worktrees.Create(ctx, t.ID)
	if err != nil {
		return Result{}, err
	}
	undo := func() {
		if createdWorktree {
			if err := c.opts.Worktrees.Remove(ctx, t.ID, true); err != nil {
				c.log.Warn("remove worktree after failed assign", "task_id", t.ID, "error", err)
			}
		}
	}
	if err := c.opts.Plans.WriteAgentSettings(wt.Path); err != nil {
		c.log.Warn("write agent settings", "task_id", t.ID, "error", err)
	}
	if role == models.RolePlanner {
		// A plan left by an earlier attempt must not count as this run's output.
		if err := c.opts.Plans.Remove(t.ID); err != nil {
			undo()
			return Result{}, fmt.Errorf("clear previous plan: %w", err)
		}
	}

	vars := placeholder.Vars{
		placeholder.TaskID:       t.ID,
		placeholder.Title:        t.Title,
		placeholder.Description:  t.Description,
		placeholder.WorktreePath: wt.Path,
		placeholder.PlanPath:     planPath,
		placeholder.Branch:       wt.Branch,
		placeholder.BaseBranch:   wt.BaseBranch,
		placeholder.RepoRoot:     c.opts.RepoRoot,
		placeholder.Prompt:       prompt,
	}
	run, err := c.opts.Supervisor.Spawn(ctx, agent.SpawnRequest{
		TaskID:   t.ID,
		Role:     role,
		Agent:    name,
		Template: tmpl,
		Dir:      wt.Path,
		Vars:     vars,
	})
	if err != nil {
		undo()
		return Result{}, err
	}

	now := time.Now()
	t.Status = next
	t.ActiveRunID = run.ID
	t.BranchName = wt.Branch
	t.WorktreePath = wt.Path
	t.LastFailure = ""
	if role == models.RolePlanner {
		t.Planner = name
	} else {
		t.Executor = name
	}
	if t.StartedAt == nil {
		t.StartedAt = &now
	}
	t.UpdatedAt = now
	c.recordRun(run)
	c.changed(EventRunStarted, t, run.ID, "")
	c.log.Info("agent assigned", "task_id", t.ID, "run_id", run.ID, "role", role, "agent", name)
	return Result{Task: t.Clone(), Run: run}, nil
}

// stop cancels the active run and applies the role's failure transition.
func (c *Coordinator) stop(ctx context.Context, cmd Command) (Result, error) {
	t, err := c.lookup("stop", cmd.TaskID)
	if err != nil {
		return Result{}, err
	}
	if !t.HasActiveRun() {
		return Result{}, apperr.Validation("stop", "task %s has no active run", t.ID)
	}
	run, err := c.opts.Supervisor.Cancel(ctx, t.ActiveRunID)
	if err != nil && !apperr.IsValidation(err) {
		return Result{}, err
	}
	role := roleOf(t, run)
	c.fail(ctx, t, role, stoppedByUser)
	c.recordRun(run)
	c.changed(EventRunFinished, t, runID(run), stoppedByUser)
	return Result{Task: t.Clone(), Run: run}, nil
}

// move applies a manual column change. Entering the worktree band creates
// the worktree; leaving it removes the worktree, forcibly toward todo.
func (c *Coordinator) move(ctx context.Context, id string, action taskstate.Action) (Result, error) {
	op := string(action)
	t, err := c.lookup(op, id)
	if err != nil {
		return Result{}, err
	}
	if t.HasActiveRun() {
		return Result{}, apperr.Validation(op, "task %s has an active run; stop it first", t.ID)
	}
	next, err := taskstate.Transition(t.Status, action)
	if err != nil {
		return Result{}, err
	}
	if next == t.Status {
		return Result{Task: t.Clone()}, nil
	}

	switch {
	case !t.Status.HasWorktree() && next.HasWorktree():
		wt, err := c.opts.Worktrees.Create(ctx, t.ID)
		if err != nil {
			return Result{}, err
		}
		t.BranchName, t.WorktreePath = wt.Branch, wt.Path
	case t.Status.HasWorktree() && !next.HasWorktree():
		if err := c.opts.Worktrees.Remove(ctx, t.ID, next == models.TaskStatusTodo); err != nil {
			return Result{}, err
		}
		t.BranchName, t.WorktreePath = "", ""
	}

	c.setStatus(t, next)
	c.changed(EventTaskUpdated, t, "", "")
	c.log.Info("task moved", "task_id", t.ID, "status", next)
	return Result{Task: t.Clone()}, nil
}

// delete cancels any active run, force-removes the worktree and drops the
// record. It returns once all of that is done.
func (c *Coordinator) delete(ctx context.Context, cmd Command) (Result, error) {
	t, err := c.lookup("delete", cmd.TaskID)
	if err != nil {
		return Result{}, err
	}
	var run *models.AgentRun
	if t.HasActiveRun() {
		run, err = c.opts.Supervisor.Cancel(ctx, t.ActiveRunID)
		if err != nil && !apperr.IsValidation(err) {
			return Result{}, err
		}
		c.recordRun(run)
		t.ActiveRunID = ""
		c.dirty = true
	}
	if err := c.opts.Worktrees.Remove(ctx, t.ID, true); err != nil {
		return Result{}, err
	}
	t.BranchName, t.WorktreePath = "", ""
	if err := c.opts.Plans.Remove(t.ID); err != nil {
		c.log.Warn("remove plan", "task_id", t.ID, "error", err)
	}
	c.tasks.Delete(t.ID)
	c.changed(EventTaskDeleted, t, runID(run), "")
	c.log.Info("task deleted", "task_id", t.ID)
	return Result{Run: run}, nil
}

func (c *Coordinator) merge(ctx context.Context, cmd Command) (Result, error) {
	t, err := c.lookup("merge", cmd.TaskID)
	if err != nil {
		return Result{}, err
	}
	if t.HasActiveRun() {
		return Result{}, apperr.Validation("merge", "task %s has an active run", t.ID)
	}
	next, err := taskstate.Transition(t.Status, taskstate.Merge)
	if err != nil {
		return Result{}, err
	}
	msg := fmt.Sprintf("Merge %s: %s", t.BranchName, t.Title)
	if err := c.opts.Worktrees.Merge(ctx, t.ID, msg); err != nil {
		if files := apperr.ConflictFiles(err); len(files) > 0 {
			t.LastFailure = "merge conflict in " + strings.Join(files, ", ")
			t.UpdatedAt = time.Now()
			c.changed(EventTaskUpdated, t, "", t.LastFailure)
		}
		return Result{}, err
	}

	c.removeMerged(ctx, t)
	t.LastFailure = ""
	c.setStatus(t, next)
	c.changed(EventTaskUpdated, t, "", "")
	c.log.Info("task merged", "task_id", t.ID)
	return Result{Task: t.Clone()}, nil
}

// createPR pushes the branch and opens a pull request. Failures leave the
// task untouched. With PRCompletesTask pending changes are committed first
// and the task moves to done once its checkout is gone; a checkout that
// cannot be removed keeps the task in review with the URL recorded.
func (c *Coordinator) createPR(ctx context.Context, cmd Command) (Result, error) {
	t, err := c.lookup("create_pr", cmd.TaskID)
	if err != nil {
		return Result{}, err
	}
	if t.HasActiveRun() {
		return Result{}, apperr.Validation("create_pr", "task %s has an active run", t.ID)
	}
	next, err := taskstate.Transition(t.Status, taskstate.PRCreated)
	if err != nil {
		return Result{}, err
	}
	if c.opts.PRCompletesTask {
		if _, err := c.opts.Worktrees.Commit(ctx, t.ID, t.Title); err != nil {
			return Result{}, err
		}
	}
	url, err := c.opts.Worktrees.CreatePR(ctx, t.ID, t.Title, t.Description)
	if err != nil {
		return Result{}, err
	}

	t.PRURL = url
	t.LastFailure = ""
	t.UpdatedAt = time.Now()
	if c.opts.PRCompletesTask {
		// The branch stays for the pull request; only the checkout goes.
		if err := c.opts.Worktrees.Remove(ctx, t.ID, false); err != nil {
			c.log.Warn("remove worktree after pull request", "task_id", t.ID, "error", err)
			t.LastFailure = "pull request opened but worktree removal failed: " + err.Error()
			c.changed(EventTaskUpdated, t, "", "")
			return Result{}, err
		}
		t.WorktreePath = ""
		c.setStatus(t, next)
	}
	c.changed(EventTaskUpdated, t, "", "")
	c.log.Info("pull request recorded", "task_id", t.ID, "url", url, "completes_task", c.opts.PRCompletesTask)
	return Result{Task: t.Clone()}, nil
}

// removeMerged drops the worktree of a merged task. Its work is in the base
// branch, so a refused clean removal falls back to a forced one.
func (c *Coordinator) removeMerged(ctx context.Context, t *models.Task) {
	if err := c.opts.Worktrees.Remove(ctx, t.ID, false); err != nil {
		c.log.Warn("clean worktree removal refused, forcing", "task_id", t.ID, "error", err)
		if err := c.opts.Worktrees.Remove(ctx, t.ID, true); err != nil {
			c.log.Error("remove merged worktree", "task_id", t.ID, "error", err)
			return
		}
	}
	t.BranchName, t.WorktreePath = "", ""
}

// fail applies the failure transition of role and clears the active run.
// A planner failure returns the task to todo and drops its worktree.
func (c *Coordinator) fail(ctx context.Context, t *models.Task, role models.Role, reason string) {
	t.ActiveRunID = ""
	t.LastFailure = reason
	next, err := taskstate.Transition(t.Status, taskstate.Outcome(role, false))
	if err != nil {
		c.log.Error("failure transition", "task_id", t.ID, "status", t.Status, "role", role, "error", err)
		t.UpdatedAt = time.Now()
		c.dirty = true
		return
	}
	if t.Status.HasWorktree() && !next.HasWorktree() {
		if err := c.opts.Worktrees.Remove(ctx, t.ID, true); err != nil {
			c.log.Warn("remove worktree after planner failure", "task_id", t.ID, "error", err)
		} else {
			t.BranchName, t.WorktreePath = "", ""
		}
	}
	c.setStatus(t, next)
	c.dirty = true
}

func (c *Coordinator) setStatus(t *models.Task, next models.TaskStatus) {
	now := time.Now()
	t.Status = next
	t.UpdatedAt = now
	switch next {
	case models.TaskStatusDone:
		t.CompletedAt = &now
	default:
		t.CompletedAt = nil
	}
	if next == models.TaskStatusTodo {
		t.PlanPath = ""
	}
}

// roleOf infers the role of the active run when the supervisor no longer
// knows it.
func roleOf(t *models.Task, run *models.AgentRun) models.Role {
	if run != nil && run.Role.Valid() {
		return run.Role
	}
	if t.Status == models.TaskStatusPlanning {
		return models.RolePlanner
	}
	return models.RoleExecutor
}

func runID(run *models.AgentRun) string {
	if run == nil {
		return ""
	}
	return run.ID
}
