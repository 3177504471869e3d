// Package plan manages plan artifacts and the prompts handed to agents.
package plan

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ShayCichocki/hive/internal/apperr"
)

// SettingsFile is the agent settings file written into each worktree. It is
// a local settings file so it never ends up in a task commit.
const SettingsFile = ".claude/settings.local.json"

// Store locates plan files under a directory.
type Store struct {
	dir string
}

// NewStore returns a Store rooted at dir, creating it if needed.
func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create plans directory: %w", err)
	}
	return &Store{dir: dir}, nil
}

// Dir returns the plans directory.
func (s *Store) Dir() string { return s.dir }

// Path returns where the plan for taskID lives.
func (s *Store) Path(taskID string) string {
	return filepath.Join(s.dir, taskID+".md")
}

// Exists reports whether a non-empty plan exists for taskID.
func (s *Store) Exists(taskID string) bool {
	info, err := os.Stat(s.Path(taskID))
	return err == nil && !info.IsDir() && info.Size() > 0
}

// Load reads the plan for taskID.
func (s *Store) Load(taskID string) (string, error) {
	data, err := os.ReadFile(s.Path(taskID))
	if errors.Is(err, os.ErrNotExist) {
		return "", apperr.Validation("load plan", "task %s has no plan", taskID)
	}
	if err != nil {
		return "", fmt.Errorf("read plan: %w", err)
	}
	return string(data), nil
}

// Save writes the plan for taskID.
func (s *Store) Save(taskID, content string) error {
	return os.WriteFile(s.Path(taskID), []byte(content), 0o644)
}

// Remove deletes the plan for taskID if present.
func (s *Store) Remove(taskID string) error {
	err := os.Remove(s.Path(taskID))
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}

// WriteAgentSettings points the agent's plans directory at the shared plans
// directory so planners running in the worktree write where hive looks.
func (s *Store) WriteAgentSettings(worktreePath string) error {
	path := filepath.Join(worktreePath, SettingsFile)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create settings directory: %w", err)
	}
	settings := map[string]any{"plansDirectory": s.dir}
	data, err := json.MarshalIndent(settings, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(data, '\n'), 0o644)
}

// PlanningPrompt asks a planner to write a plan for the task to planPath.
func PlanningPrompt(title, description, planPath string) string {
	if strings.TrimSpace(description) == "" {
		description = "(no description)"
	}
	var b strings.Builder
	b.WriteString("Create an implementation plan for the following task. Do not modify any code.\n\n")
	b.WriteString("## Task\n")
	fmt.Fprintf(&b, "**Title**: %s\n", title)
	fmt.Fprintf(&b, "**Description**: %s\n\n", description)
	fmt.Fprintf(&b, "Write the plan as Markdown to `%s` using this structure:\n\n", planPath)
	b.WriteString(planTemplate)
	return b.String()
}

const planTemplate = "```markdown\n" +
	"# Implementation Plan: <task title>\n\n" +
	"## Overview\n<purpose and goals>\n\n" +
	"## Implementation Steps\n1. <step>\n   - details\n   - affected files\n\n" +
	"## Scope of Impact\n- New files:\n- Modified files:\n\n" +
	"## Test Strategy\n- <test>\n\n" +
	"## Notes and Risks\n- <note>\n" +
	"```\n"

// ExecutionPrompt asks an executor to implement plan.
func ExecutionPrompt(title, plan string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Implement the task %q according to the following implementation plan.\n\n", title)
	b.WriteString(strings.TrimSpace(plan))
	b.WriteString("\n\nWork through the implementation steps step by step and run the tests described in the plan.\n")
	return b.String()
}
