package taskstate

import (
	"errors"
	"testing"

	"github.com/ShayCichocki/hive/internal/apperr"
	"github.com/ShayCichocki/hive/pkg/models"
)

func TestTransition_Table(t *testing.T) {
	tests := []struct {
		from   models.TaskStatus
		action Action
		want   models.TaskStatus
	}{
		{models.TaskStatusTodo, AssignPlanner, models.TaskStatusPlanning},
		{models.TaskStatusPlanning, PlannerSucceeded, models.TaskStatusPlanReview},
		{models.TaskStatusPlanning, PlannerFailed, models.TaskStatusTodo},
		{models.TaskStatusPlanReview, AssignExecutor, models.TaskStatusExecuting},
		{models.TaskStatusExecuting, AssignExecutor, models.TaskStatusExecuting},
		{models.TaskStatusExecuting, ExecutorSucceeded, models.TaskStatusReview},
		{models.TaskStatusExecuting, ExecutorFailed, models.TaskStatusExecuting},
		{models.TaskStatusReview, Merge, models.TaskStatusDone},
		{models.TaskStatusReview, PRCreated, models.TaskStatusDone},
		{models.TaskStatusTodo, MoveForward, models.TaskStatusPlanning},
		{models.TaskStatusReview, MoveForward, models.TaskStatusDone},
		{models.TaskStatusDone, MoveForward, models.TaskStatusDone},
		{models.TaskStatusTodo, MoveBackward, models.TaskStatusTodo},
		{models.TaskStatusDone, MoveBackward, models.TaskStatusReview},
		{models.TaskStatusExecuting, MoveBackward, models.TaskStatusPlanReview},
	}
	for _, tt := range tests {
		t.Run(string(tt.from)+"/"+string(tt.action), func(t *testing.T) {
			got, err := Transition(tt.from, tt.action)
			if err != nil {
				t.Fatalf("Transition() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("Transition() = %q, want %q", got, tt.want)
			}
		})
	}
}

// Every (status, action) pair either lands on a valid status or is rejected
// with the input status returned unchanged.
func TestTransition_Total(t *testing.T) {
	valid := 0
	for _, s := range models.TaskStatuses {
		for _, a := range Actions {
			got, err := Transition(s, a)
			if err != nil {
				if got != s {
					t.Errorf("%s/%s: rejected but status changed to %q", s, a, got)
				}
				if !errors.Is(err, ErrInvalidTransition) {
					t.Errorf("%s/%s: error %v does not wrap ErrInvalidTransition", s, a, err)
				}
				if !apperr.IsValidation(err) {
					t.Errorf("%s/%s: error %v is not a validation error", s, a, err)
				}
				continue
			}
			valid++
			if !got.Valid() {
				t.Errorf("%s/%s: produced invalid status %q", s, a, got)
			}
		}
	}
	// 9 table edges plus two moves from each of the six statuses.
	if want := 9 + 2*len(models.TaskStatuses); valid != want {
		t.Errorf("valid pairs = %d, want %d", valid, want)
	}
}

func TestTransition_Rejected(t *testing.T) {
	tests := []struct {
		from   models.TaskStatus
		action Action
	}{
		{models.TaskStatusTodo, Merge},
		{models.TaskStatusTodo, AssignExecutor},
		{models.TaskStatusPlanning, AssignPlanner},
		{models.TaskStatusPlanReview, AssignPlanner},
		{models.TaskStatusDone, PRCreated},
		{models.TaskStatusReview, ExecutorFailed},
		{models.TaskStatus("bogus"), MoveForward},
	}
	for _, tt := range tests {
		t.Run(string(tt.from)+"/"+string(tt.action), func(t *testing.T) {
			if Allowed(tt.from, tt.action) {
				t.Errorf("Allowed(%q, %q) = true, want false", tt.from, tt.action)
			}
		})
	}
}

func TestRoleFor(t *testing.T) {
	tests := []struct {
		status models.TaskStatus
		role   models.Role
		ok     bool
	}{
		{models.TaskStatusTodo, models.RolePlanner, true},
		{models.TaskStatusPlanReview, models.RoleExecutor, true},
		{models.TaskStatusExecuting, models.RoleExecutor, true},
		{models.TaskStatusPlanning, "", false},
		{models.TaskStatusReview, "", false},
		{models.TaskStatusDone, "", false},
	}
	for _, tt := range tests {
		role, action, ok := RoleFor(tt.status)
		if role != tt.role || ok != tt.ok {
			t.Errorf("RoleFor(%q) = %q, %v, want %q, %v", tt.status, role, ok, tt.role, tt.ok)
		}
		if ok && !Allowed(tt.status, action) {
			t.Errorf("RoleFor(%q) returned action %q that is not allowed", tt.status, action)
		}
	}
}

func TestOutcome(t *testing.T) {
	if got := Outcome(models.RolePlanner, true); got != PlannerSucceeded {
		t.Errorf("got %q, want %q", got, PlannerSucceeded)
	}
	if got := Outcome(models.RolePlanner, false); got != PlannerFailed {
		t.Errorf("got %q, want %q", got, PlannerFailed)
	}
	if got := Outcome(models.RoleExecutor, true); got != ExecutorSucceeded {
		t.Errorf("got %q, want %q", got, ExecutorSucceeded)
	}
	if got := Outcome(models.RoleExecutor, false); got != ExecutorFailed {
		t.Errorf("got %q, want %q", got, ExecutorFailed)
	}
}
