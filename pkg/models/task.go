package models

import "time"

// TaskStatus represents the current kanban stage of a task.
type TaskStatus string

const (
	// TaskStatusTodo indicates the task is waiting for a planner.
	TaskStatusTodo TaskStatus = "todo"
	// TaskStatusPlanning indicates a planner agent is producing a plan.
	TaskStatusPlanning TaskStatus = "planning"
	// TaskStatusPlanReview indicates a plan exists and awaits human review.
	TaskStatusPlanReview TaskStatus = "plan_review"
	// TaskStatusExecuting indicates an executor agent is implementing the plan.
	TaskStatusExecuting TaskStatus = "executing"
	// TaskStatusReview indicates the implementation awaits merge or PR.
	TaskStatusReview TaskStatus = "review"
	// TaskStatusDone indicates the work has been merged or handed off.
	TaskStatusDone TaskStatus = "done"
)

// TaskStatuses lists every status in board column order.
var TaskStatuses = []TaskStatus{
	TaskStatusTodo,
	TaskStatusPlanning,
	TaskStatusPlanReview,
	TaskStatusExecuting,
	TaskStatusReview,
	TaskStatusDone,
}

// Valid returns true if the status is a known value.
func (s TaskStatus) Valid() bool {
	switch s {
	case TaskStatusTodo, TaskStatusPlanning, TaskStatusPlanReview,
		TaskStatusExecuting, TaskStatusReview, TaskStatusDone:
		return true
	default:
		return false
	}
}

// HasWorktree reports whether a task in this status owns a worktree.
func (s TaskStatus) HasWorktree() bool {
	switch s {
	case TaskStatusPlanning, TaskStatusPlanReview, TaskStatusExecuting, TaskStatusReview:
		return true
	default:
		return false
	}
}

// Label returns a human readable column title.
func (s TaskStatus) Label() string {
	switch s {
	case TaskStatusTodo:
		return "Todo"
	case TaskStatusPlanning:
		return "Planning"
	case TaskStatusPlanReview:
		return "Plan Review"
	case TaskStatusExecuting:
		return "Executing"
	case TaskStatusReview:
		return "Review"
	case TaskStatusDone:
		return "Done"
	default:
		return string(s)
	}
}

// Task is a unit of work on the board.
type Task struct {
	// ID is the stable unique identifier, of the form task-<8 hex>.
	ID string `json:"id"`
	// Title is the short description of the task.
	Title string `json:"title"`
	// Description provides detailed information about the task.
	Description string `json:"description,omitempty"`
	// Status is the current kanban stage.
	Status TaskStatus `json:"status"`
	// Planner is the name of the planner template last assigned.
	Planner string `json:"planner,omitempty"`
	// Executor is the name of the executor template last assigned.
	Executor string `json:"executor,omitempty"`
	// BranchName is the task branch while a worktree exists.
	BranchName string `json:"branch_name,omitempty"`
	// WorktreePath is the absolute path to the task worktree.
	WorktreePath string `json:"worktree_path,omitempty"`
	// PlanPath is the plan artifact written by the planner.
	PlanPath string `json:"plan_path,omitempty"`
	// ActiveRunID is the agent run currently working on the task.
	ActiveRunID string `json:"active_run_id,omitempty"`
	// PRURL is the pull request created for the task, if any.
	PRURL string `json:"pr_url,omitempty"`
	// LastFailure describes the most recent agent or git failure.
	LastFailure string `json:"last_failure,omitempty"`
	// CreatedAt is when the task was created.
	CreatedAt time.Time `json:"created_at"`
	// UpdatedAt is when the task last changed.
	UpdatedAt time.Time `json:"updated_at"`
	// StartedAt is when an agent first picked the task up.
	StartedAt *time.Time `json:"started_at,omitempty"`
	// CompletedAt is when the task reached done.
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// Clone returns a deep copy of the task.
func (t *Task) Clone() *Task {
	if t == nil {
		return nil
	}
	c := *t
	if t.StartedAt != nil {
		s := *t.StartedAt
		c.StartedAt = &s
	}
	if t.CompletedAt != nil {
		d := *t.CompletedAt
		c.CompletedAt = &d
	}
	return &c
}

// HasActiveRun reports whether an agent run is attached to the task.
func (t *Task) HasActiveRun() bool {
	return t.ActiveRunID != ""
}
