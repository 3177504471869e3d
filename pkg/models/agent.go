package models

import "time"

// Role identifies what an agent run is asked to do.
type Role string

const (
	// RolePlanner produces a plan for a task.
	RolePlanner Role = "planner"
	// RoleExecutor implements an approved plan.
	RoleExecutor Role = "executor"
)

// Valid returns true if the role is a known value.
func (r Role) Valid() bool {
	return r == RolePlanner || r == RoleExecutor
}

// RunStatus represents the lifecycle state of an agent run.
type RunStatus string

const (
	// RunStatusStarting indicates the run is registered but not yet launched.
	RunStatusStarting RunStatus = "starting"
	// RunStatusRunning indicates the process is alive.
	RunStatusRunning RunStatus = "running"
	// RunStatusSucceeded indicates the process exited with status zero.
	RunStatusSucceeded RunStatus = "succeeded"
	// RunStatusFailed indicates a non-zero exit or a launch error.
	RunStatusFailed RunStatus = "failed"
	// RunStatusCancelled indicates the run was stopped on request.
	RunStatusCancelled RunStatus = "cancelled"
)

// Valid returns true if the status is a known value.
func (s RunStatus) Valid() bool {
	switch s {
	case RunStatusStarting, RunStatusRunning, RunStatusSucceeded,
		RunStatusFailed, RunStatusCancelled:
		return true
	default:
		return false
	}
}

// Terminal reports whether no further transitions are possible.
func (s RunStatus) Terminal() bool {
	return s == RunStatusSucceeded || s == RunStatusFailed || s == RunStatusCancelled
}

// Active reports whether the run still occupies its task.
func (s RunStatus) Active() bool {
	return s == RunStatusStarting || s == RunStatusRunning
}

// CanTransition reports whether a run may move from s to next.
func (s RunStatus) CanTransition(next RunStatus) bool {
	switch s {
	case RunStatusStarting:
		return next == RunStatusRunning || next == RunStatusFailed || next == RunStatusCancelled
	case RunStatusRunning:
		return next.Terminal()
	default:
		return false
	}
}

// AgentRun is one supervised invocation of an agent command.
type AgentRun struct {
	// ID is the unique run identifier.
	ID string `json:"run_id"`
	// TaskID is the task the run works on.
	TaskID string `json:"task_id"`
	// Role is planner or executor.
	Role Role `json:"role"`
	// Agent is the name of the template that was resolved.
	Agent string `json:"agent"`
	// Command is the resolved argv.
	Command []string `json:"command"`
	// Dir is the working directory of the process.
	Dir string `json:"dir"`
	// Status is the lifecycle state.
	Status RunStatus `json:"status"`
	// PID is the process id while running.
	PID int `json:"pid,omitempty"`
	// LogPath is the append-only output log.
	LogPath string `json:"log_path"`
	// ExitCode is the process exit status, -1 when unknown.
	ExitCode int `json:"exit_code"`
	// ExitSummary is a trailing output excerpt or the launch error.
	ExitSummary string `json:"exit_summary,omitempty"`
	// StartedAt is when the run was registered.
	StartedAt time.Time `json:"started_at"`
	// EndedAt is when the run reached a terminal status.
	EndedAt *time.Time `json:"ended_at,omitempty"`
}

// Clone returns a deep copy of the run.
func (r *AgentRun) Clone() *AgentRun {
	if r == nil {
		return nil
	}
	c := *r
	c.Command = append([]string(nil), r.Command...)
	if r.EndedAt != nil {
		e := *r.EndedAt
		c.EndedAt = &e
	}
	return &c
}

// AgentTemplate describes how to invoke an agent CLI. Args and Env values may
// contain {{name}} placeholders.
type AgentTemplate struct {
	Command     string            `json:"command" mapstructure:"command" yaml:"command"`
	Args        []string          `json:"args" mapstructure:"args" yaml:"args"`
	Env         map[string]string `json:"env,omitempty" mapstructure:"env" yaml:"env,omitempty"`
	Description string            `json:"description,omitempty" mapstructure:"description" yaml:"description,omitempty"`
}
