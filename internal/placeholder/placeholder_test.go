package placeholder

import (
	"errors"
	"strings"
	"testing"

	"github.com/ShayCichocki/hive/internal/apperr"
)

func TestExpand(t *testing.T) {
	vars := Vars{TaskID: "task-1", WorktreePath: "/tmp/wt", Prompt: "keep {{x}} literal"}

	tests := []struct {
		name string
		in   string
		want string
	}{
		{"no placeholders", "claude", "claude"},
		{"single", "{{task_id}}", "task-1"},
		{"spaces inside braces", "{{ worktree_path }}/x", "/tmp/wt/x"},
		{"repeated", "{{task_id}}-{{task_id}}", "task-1-task-1"},
		{"value with braces is not re-expanded", "{{prompt}}", "keep {{x}} literal"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := vars.Expand("args", tt.in)
			if err != nil {
				t.Fatalf("Expand() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("Expand() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestExpand_Unresolved(t *testing.T) {
	vars := Vars{TaskID: "task-1", PlanPath: ""}

	tests := []struct {
		name string
		in   string
	}{
		{"unknown name", "--model={{model}}"},
		{"empty value", "{{plan_path}}"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := vars.Expand("agents.planners.x.args", tt.in)
			var cfgErr *apperr.ConfigError
			if !errors.As(err, &cfgErr) {
				t.Fatalf("Expand() error = %v, want ConfigError", err)
			}
			if cfgErr.Key != "agents.planners.x.args" {
				t.Errorf("Key = %q", cfgErr.Key)
			}
		})
	}
}

func TestExpandAll_StopsAtFirstError(t *testing.T) {
	_, err := Vars{}.ExpandAll("args", []string{"ok", "{{missing}}", "{{other}}"})
	if err == nil || !strings.Contains(err.Error(), "missing") {
		t.Fatalf("ExpandAll() error = %v, want mention of missing", err)
	}
}

func TestExpandEnv_Sorted(t *testing.T) {
	got, err := Vars{RunID: "r1"}.ExpandEnv("env", map[string]string{
		"B": "{{run_id}}",
		"A": "plain",
	})
	if err != nil {
		t.Fatalf("ExpandEnv() error = %v", err)
	}
	if len(got) != 2 || got[0] != "A=plain" || got[1] != "B=r1" {
		t.Errorf("ExpandEnv() = %v", got)
	}
}

func TestNames(t *testing.T) {
	got := Names("{{a}} {{ b }} {{a}}")
	if len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Errorf("Names() = %v, want [a b]", got)
	}
}
