package orchestrator

import (
	"time"
)

// EventType represents the kind of board change.
type EventType string

const (
	// EventTaskCreated indicates a task was added to the board.
	EventTaskCreated EventType = "task_created"
	// EventTaskUpdated indicates a task changed status or annotations.
	EventTaskUpdated EventType = "task_updated"
	// EventTaskDeleted indicates a task was removed.
	EventTaskDeleted EventType = "task_deleted"
	// EventRunStarted indicates an agent run was spawned for a task.
	EventRunStarted EventType = "run_started"
	// EventRunFinished indicates an agent run reached a terminal status.
	EventRunFinished EventType = "run_finished"
	// EventWarning indicates the board warning changed.
	EventWarning EventType = "warning"
)

// Event tells subscribers that the board changed. Subscribers should re-read
// Board() rather than rely on receiving every event.
type Event struct {
	// Type is the kind of change.
	Type EventType `json:"type"`
	// TaskID is the affected task, if any.
	TaskID string `json:"task_id,omitempty"`
	// RunID is the affected run, if any.
	RunID string `json:"run_id,omitempty"`
	// Status is the task status after the change.
	Status string `json:"status,omitempty"`
	// Message carries failure or warning text.
	Message string `json:"message,omitempty"`
	// Version is the board version the event belongs to.
	Version uint64 `json:"version"`
	// Timestamp is when the change was applied.
	Timestamp time.Time `json:"timestamp"`
}
