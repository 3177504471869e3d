package orchestrator

import (
	"github.com/ShayCichocki/hive/pkg/models"
)

// CommandKind names a UI command.
type CommandKind string

const (
	CmdCreate       CommandKind = "create"
	CmdAssignAgent  CommandKind = "assign_agent"
	CmdStop         CommandKind = "stop"
	CmdMoveForward  CommandKind = "move_forward"
	CmdMoveBackward CommandKind = "move_backward"
	CmdDelete       CommandKind = "delete"
	CmdMerge        CommandKind = "merge"
	CmdCreatePR     CommandKind = "create_pr"
)

// Valid returns true if the kind is a known value.
func (k CommandKind) Valid() bool {
	switch k {
	case CmdCreate, CmdAssignAgent, CmdStop, CmdMoveForward, CmdMoveBackward,
		CmdDelete, CmdMerge, CmdCreatePR:
		return true
	default:
		return false
	}
}

// Command is one request from the UI.
type Command struct {
	Kind   CommandKind `json:"kind"`
	TaskID string      `json:"task_id,omitempty"`
	// Title and Description are used by CmdCreate.
	Title       string `json:"title,omitempty"`
	Description string `json:"description,omitempty"`
	// Agent selects a named template for CmdAssignAgent; empty uses the
	// role's default.
	Agent string `json:"agent,omitempty"`
}

// Result is what a command produced. Task is nil after a delete.
type Result struct {
	Task *models.Task     `json:"task,omitempty"`
	Run  *models.AgentRun `json:"run,omitempty"`
}

func CreateTask(title, description string) Command {
	return Command{Kind: CmdCreate, Title: title, Description: description}
}

func AssignAgent(taskID, agent string) Command {
	return Command{Kind: CmdAssignAgent, TaskID: taskID, Agent: agent}
}

func Stop(taskID string) Command { return Command{Kind: CmdStop, TaskID: taskID} }

func MoveForward(taskID string) Command { return Command{Kind: CmdMoveForward, TaskID: taskID} }

func MoveBackward(taskID string) Command { return Command{Kind: CmdMoveBackward, TaskID: taskID} }

func Delete(taskID string) Command { return Command{Kind: CmdDelete, TaskID: taskID} }

func Merge(taskID string) Command { return Command{Kind: CmdMerge, TaskID: taskID} }

func CreatePR(taskID string) Command { return Command{Kind: CmdCreatePR, TaskID: taskID} }
