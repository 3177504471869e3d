package exec

import (
	"context"
	"strings"
	"testing"
)

func TestExecRunner_Output(t *testing.T) {
	r := NewRunner()
	if _, err := r.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}

	stdout, stderr, err := r.Output(context.Background(), t.TempDir(), []string{"HIVE_X=42"},
		"sh", "-c", `echo "out $HIVE_X"; echo err >&2`)
	if err != nil {
		t.Fatalf("Output() error = %v", err)
	}
	if got := strings.TrimSpace(string(stdout)); got != "out 42" {
		t.Errorf("stdout = %q, want %q", got, "out 42")
	}
	if got := strings.TrimSpace(string(stderr)); got != "err" {
		t.Errorf("stderr = %q, want %q", got, "err")
	}
}

func TestExecRunner_OutputExitError(t *testing.T) {
	r := NewRunner()
	if _, err := r.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
	_, _, err := r.Output(context.Background(), "", nil, "sh", "-c", "exit 3")
	if err == nil {
		t.Fatal("Output() error = nil, want exit error")
	}
}

func TestExecRunner_LookPathMissing(t *testing.T) {
	if _, err := NewRunner().LookPath("definitely-not-a-real-binary-hive"); err == nil {
		t.Error("LookPath() error = nil for missing binary")
	}
}
