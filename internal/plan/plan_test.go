package plan

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ShayCichocki/hive/internal/apperr"
)

func TestStore_SaveLoad(t *testing.T) {
	s, err := NewStore(filepath.Join(t.TempDir(), "plans"))
	if err != nil {
		t.Fatal(err)
	}
	if s.Exists("task-1") {
		t.Error("Exists() = true before save")
	}
	if _, err := s.Load("task-1"); !apperr.IsValidation(err) {
		t.Errorf("Load() missing error = %v, want validation error", err)
	}

	if err := s.Save("task-1", "# Plan\n1. First step\n"); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if !s.Exists("task-1") {
		t.Error("Exists() = false after save")
	}
	got, err := s.Load("task-1")
	if err != nil || !strings.Contains(got, "First step") {
		t.Errorf("Load() = %q, %v", got, err)
	}
	if s.Path("task-1") != filepath.Join(s.Dir(), "task-1.md") {
		t.Errorf("Path() = %q", s.Path("task-1"))
	}

	if err := s.Remove("task-1"); err != nil {
		t.Fatal(err)
	}
	if err := s.Remove("task-1"); err != nil {
		t.Errorf("second Remove() error = %v", err)
	}
}

func TestStore_EmptyPlanDoesNotCount(t *testing.T) {
	s, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Save("task-1", ""); err != nil {
		t.Fatal(err)
	}
	if s.Exists("task-1") {
		t.Error("empty plan reported as existing")
	}
}

func TestStore_WriteAgentSettings(t *testing.T) {
	s, err := NewStore(filepath.Join(t.TempDir(), "plans"))
	if err != nil {
		t.Fatal(err)
	}
	wt := t.TempDir()
	if err := s.WriteAgentSettings(wt); err != nil {
		t.Fatalf("WriteAgentSettings() error = %v", err)
	}
	data, err := os.ReadFile(filepath.Join(wt, SettingsFile))
	if err != nil {
		t.Fatal(err)
	}
	var settings map[string]string
	if err := json.Unmarshal(data, &settings); err != nil {
		t.Fatal(err)
	}
	if settings["plansDirectory"] != s.Dir() {
		t.Errorf("plansDirectory = %q, want %q", settings["plansDirectory"], s.Dir())
	}
}

func TestPlanningPrompt(t *testing.T) {
	p := PlanningPrompt("Add login feature", "Implement OAuth login", "/x/plans/task-1.md")
	for _, want := range []string{
		"Add login feature", "Implement OAuth login", "/x/plans/task-1.md",
		"## Overview", "## Implementation Steps", "## Scope of Impact", "## Test Strategy", "## Notes and Risks",
	} {
		if !strings.Contains(p, want) {
			t.Errorf("planning prompt missing %q", want)
		}
	}
	if !strings.Contains(PlanningPrompt("t", " ", "p"), "(no description)") {
		t.Error("blank description not replaced")
	}
}

func TestExecutionPrompt(t *testing.T) {
	p := ExecutionPrompt("Login", "# Plan\n\n1. First step\n2. Second step\n")
	for _, want := range []string{"Login", "First step", "Second step", "step by step"} {
		if !strings.Contains(p, want) {
			t.Errorf("execution prompt missing %q", want)
		}
	}
}
