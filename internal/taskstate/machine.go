// Package taskstate holds the pure task transition function.
package taskstate

import (
	"errors"
	"fmt"

	"github.com/ShayCichocki/hive/internal/apperr"
	"github.com/ShayCichocki/hive/pkg/models"
)

// Action is an input to the task state machine.
type Action string

const (
	AssignPlanner     Action = "assign_planner"
	PlannerSucceeded  Action = "planner_succeeded"
	PlannerFailed     Action = "planner_failed"
	AssignExecutor    Action = "assign_executor"
	ExecutorSucceeded Action = "executor_succeeded"
	ExecutorFailed    Action = "executor_failed"
	Merge             Action = "merge"
	PRCreated         Action = "pr_created"
	MoveForward       Action = "move_forward"
	MoveBackward      Action = "move_backward"
)

// Actions lists every action.
var Actions = []Action{
	AssignPlanner, PlannerSucceeded, PlannerFailed,
	AssignExecutor, ExecutorSucceeded, ExecutorFailed,
	Merge, PRCreated, MoveForward, MoveBackward,
}

// ErrInvalidTransition is wrapped by the error Transition returns for pairs
// outside the table.
var ErrInvalidTransition = errors.New("invalid transition")

type edge struct {
	from   models.TaskStatus
	action Action
}

var table = map[edge]models.TaskStatus{
	{models.TaskStatusTodo, AssignPlanner}:          models.TaskStatusPlanning,
	{models.TaskStatusPlanning, PlannerSucceeded}:   models.TaskStatusPlanReview,
	{models.TaskStatusPlanning, PlannerFailed}:      models.TaskStatusTodo,
	{models.TaskStatusPlanReview, AssignExecutor}:   models.TaskStatusExecuting,
	{models.TaskStatusExecuting, AssignExecutor}:    models.TaskStatusExecuting,
	{models.TaskStatusExecuting, ExecutorSucceeded}: models.TaskStatusReview,
	{models.TaskStatusExecuting, ExecutorFailed}:    models.TaskStatusExecuting,
	{models.TaskStatusReview, Merge}:                models.TaskStatusDone,
	{models.TaskStatusReview, PRCreated}:            models.TaskStatusDone,
}

// Transition returns the status reached by applying action to status. For
// pairs outside the table it returns status unchanged and a validation error.
func Transition(status models.TaskStatus, action Action) (models.TaskStatus, error) {
	idx := index(status)
	if idx < 0 {
		return status, invalid(status, action)
	}
	switch action {
	case MoveForward:
		return models.TaskStatuses[min(idx+1, len(models.TaskStatuses)-1)], nil
	case MoveBackward:
		return models.TaskStatuses[max(idx-1, 0)], nil
	}
	if next, ok := table[edge{status, action}]; ok {
		return next, nil
	}
	return status, invalid(status, action)
}

// Allowed reports whether action is valid from status.
func Allowed(status models.TaskStatus, action Action) bool {
	_, err := Transition(status, action)
	return err == nil
}

// RoleFor returns which agent role an assignment from status would start.
func RoleFor(status models.TaskStatus) (models.Role, Action, bool) {
	switch status {
	case models.TaskStatusTodo:
		return models.RolePlanner, AssignPlanner, true
	case models.TaskStatusPlanReview, models.TaskStatusExecuting:
		return models.RoleExecutor, AssignExecutor, true
	default:
		return "", "", false
	}
}

// Outcome maps a run result for role to the action it triggers.
func Outcome(role models.Role, succeeded bool) Action {
	switch {
	case role == models.RolePlanner && succeeded:
		return PlannerSucceeded
	case role == models.RolePlanner:
		return PlannerFailed
	case succeeded:
		return ExecutorSucceeded
	default:
		return ExecutorFailed
	}
}

func index(s models.TaskStatus) int {
	for i, st := range models.TaskStatuses {
		if st == s {
			return i
		}
	}
	return -1
}

func invalid(status models.TaskStatus, action Action) error {
	return &apperr.ValidationError{
		Op:  "transition",
		Msg: fmt.Sprintf("%s not allowed from %s", action, status),
		Err: ErrInvalidTransition,
	}
}
