//go:build unix

package agent_test

import (
	"context"
	"os"
	"os/exec"
	"strings"
	"testing"
	"time"

	"github.com/ShayCichocki/hive/internal/agent"
	"github.com/ShayCichocki/hive/internal/testutil"
	"github.com/ShayCichocki/hive/pkg/models"
)

func requireSh(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
}

func TestExecLauncher_ExitCodeAndOutput(t *testing.T) {
	requireSh(t)
	dir := t.TempDir()
	script := testutil.WriteScript(t, dir, "agent.sh", `echo "cwd=$(pwd)"; echo "arg=$1"; echo oops >&2; exit 3`)
	s := newSupervisor(t, agent.NewExecLauncher(), 0)

	req := request(script, "{{prompt}}")
	req.Dir = dir
	run, err := s.Spawn(context.Background(), req)
	if err != nil {
		t.Fatal(err)
	}
	done := waitCompletion(t, s)
	if done.Status != models.RunStatusFailed || done.ExitCode != 3 {
		t.Fatalf("completion = %q/%d, want failed/3", done.Status, done.ExitCode)
	}
	data, _ := os.ReadFile(run.LogPath)
	for _, want := range []string{"arg=implement it", "[stderr] oops"} {
		if !strings.Contains(string(data), want) {
			t.Errorf("log missing %q:\n%s", want, data)
		}
	}
}

func TestExecLauncher_CancelStopsProcessGroup(t *testing.T) {
	requireSh(t)
	dir := t.TempDir()
	// The child sleep inherits the process group and must die with it.
	script := testutil.WriteScript(t, dir, "agent.sh", `echo started; sleep 30 & wait`)
	s := newSupervisor(t, agent.NewExecLauncher(), 0)

	req := request(script)
	req.Dir = dir
	run, err := s.Spawn(context.Background(), req)
	if err != nil {
		t.Fatal(err)
	}
	waitStatus(t, s, run.ID, models.RunStatusRunning)

	start := time.Now()
	got, err := s.Cancel(context.Background(), run.ID)
	if err != nil {
		t.Fatalf("Cancel() error = %v", err)
	}
	if got.Status != models.RunStatusCancelled {
		t.Errorf("status = %q, want cancelled", got.Status)
	}
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Errorf("cancel took %v", elapsed)
	}
}

func TestExecLauncher_BackgroundChildDoesNotDelayCompletion(t *testing.T) {
	requireSh(t)
	dir := t.TempDir()
	// The orphaned sleep keeps the inherited output pipes open.
	script := testutil.WriteScript(t, dir, "agent.sh", `sleep 3 & echo done; exit 0`)
	s := newSupervisor(t, agent.NewExecLauncher(), 0)

	req := request(script)
	req.Dir = dir
	start := time.Now()
	run, err := s.Spawn(context.Background(), req)
	if err != nil {
		t.Fatal(err)
	}
	done := waitCompletion(t, s)
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("completion took %v, want well under the child's 3s", elapsed)
	}
	if done.Status != models.RunStatusSucceeded || done.ExitCode != 0 {
		t.Fatalf("completion = %q/%d, want succeeded/0", done.Status, done.ExitCode)
	}
	data, _ := os.ReadFile(run.LogPath)
	if !strings.Contains(string(data), "done") {
		t.Errorf("log missing output before exit:\n%s", data)
	}
}
