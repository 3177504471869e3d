package models

import (
	"testing"
	"time"
)

func TestTaskStatus_Valid(t *testing.T) {
	for _, s := range TaskStatuses {
		if !s.Valid() {
			t.Errorf("%q should be valid", s)
		}
	}
	for _, s := range []TaskStatus{"", "in_progress", "cancelled", "Todo"} {
		if s.Valid() {
			t.Errorf("%q should be invalid", s)
		}
	}
}

func TestTaskStatus_HasWorktree(t *testing.T) {
	tests := []struct {
		status TaskStatus
		want   bool
	}{
		{TaskStatusTodo, false},
		{TaskStatusPlanning, true},
		{TaskStatusPlanReview, true},
		{TaskStatusExecuting, true},
		{TaskStatusReview, true},
		{TaskStatusDone, false},
	}
	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			if got := tt.status.HasWorktree(); got != tt.want {
				t.Errorf("HasWorktree() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRunStatus_CanTransition(t *testing.T) {
	tests := []struct {
		name string
		from RunStatus
		to   RunStatus
		want bool
	}{
		{"starting to running", RunStatusStarting, RunStatusRunning, true},
		{"starting to cancelled", RunStatusStarting, RunStatusCancelled, true},
		{"starting to failed", RunStatusStarting, RunStatusFailed, true},
		{"starting to succeeded", RunStatusStarting, RunStatusSucceeded, false},
		{"running to succeeded", RunStatusRunning, RunStatusSucceeded, true},
		{"running to failed", RunStatusRunning, RunStatusFailed, true},
		{"running to cancelled", RunStatusRunning, RunStatusCancelled, true},
		{"running to starting", RunStatusRunning, RunStatusStarting, false},
		{"succeeded is final", RunStatusSucceeded, RunStatusFailed, false},
		{"cancelled is final", RunStatusCancelled, RunStatusRunning, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.from.CanTransition(tt.to); got != tt.want {
				t.Errorf("CanTransition(%q, %q) = %v, want %v", tt.from, tt.to, got, tt.want)
			}
		})
	}
}

func TestTask_Clone(t *testing.T) {
	now := time.Now()
	orig := &Task{ID: "task-1", Title: "x", StartedAt: &now}
	c := orig.Clone()
	c.Title = "y"
	*c.StartedAt = now.Add(time.Hour)

	if orig.Title != "x" {
		t.Errorf("Title = %q, want %q", orig.Title, "x")
	}
	if !orig.StartedAt.Equal(now) {
		t.Error("clone shares StartedAt with original")
	}
}

func TestAgentRun_Clone(t *testing.T) {
	orig := &AgentRun{ID: "r", Command: []string{"a", "b"}}
	c := orig.Clone()
	c.Command[0] = "z"
	if orig.Command[0] != "a" {
		t.Errorf("Command[0] = %q, want %q", orig.Command[0], "a")
	}
}

func TestRole_Valid(t *testing.T) {
	if !RolePlanner.Valid() || !RoleExecutor.Valid() {
		t.Error("known roles should be valid")
	}
	if Role("reviewer").Valid() {
		t.Error("unknown role should be invalid")
	}
}
