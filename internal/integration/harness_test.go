//go:build integration

package integration

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ShayCichocki/hive/internal/agent"
	"github.com/ShayCichocki/hive/internal/config"
	"github.com/ShayCichocki/hive/internal/logging"
	"github.com/ShayCichocki/hive/internal/orchestrator"
	"github.com/ShayCichocki/hive/internal/plan"
	"github.com/ShayCichocki/hive/internal/store"
	"github.com/ShayCichocki/hive/internal/testutil"
	"github.com/ShayCichocki/hive/internal/worktree"
	"github.com/ShayCichocki/hive/pkg/models"
)

const (
	plannerScript = `printf '# Plan\n\n1. Add hello.txt\n' > "$1"; echo "planned $2"`
	// The executor leaves its change uncommitted; the coordinator commits it.
	executorScript = `echo hello > hello.txt; echo implemented`
	failingScript  = `echo "something broke" >&2; exit 2`
	sleepyScript   = `echo started; sleep 30 & wait`
)

// hive is one coordinator session over a repository.
type hive struct {
	cfg    *config.Config
	coord  *orchestrator.Coordinator
	store  store.TaskStore
	cancel context.CancelFunc
}

// newConfig returns a config whose agents are shell scripts in a temp dir.
func newConfig(t *testing.T, repo, backend string) *config.Config {
	t.Helper()
	if _, err := os.Stat("/bin/sh"); err != nil {
		t.Skip("/bin/sh not available")
	}
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	bin := t.TempDir()

	cfg := config.Default(repo)
	cfg.Store.Backend = backend
	cfg.Supervisor.GracePeriod = 500 * time.Millisecond
	cfg.Supervisor.FlushInterval = 20 * time.Millisecond
	cfg.Agents.Planners = map[string]models.AgentTemplate{
		"script": {Command: testutil.WriteScript(t, bin, "planner.sh", plannerScript), Args: []string{"{{plan_path}}", "{{task_id}}"}},
		"broken": {Command: testutil.WriteScript(t, bin, "broken.sh", failingScript)},
	}
	cfg.Agents.Executors = map[string]models.AgentTemplate{
		"script": {Command: testutil.WriteScript(t, bin, "executor.sh", executorScript)},
		"sleepy": {Command: testutil.WriteScript(t, bin, "sleepy.sh", sleepyScript)},
	}
	cfg.Agents.DefaultPlanner = "script"
	cfg.Agents.DefaultExecutor = "script"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	return cfg
}

// open starts a coordinator for cfg. The returned hive is closed on cleanup
// unless closed earlier.
func open(t *testing.T, cfg *config.Config) *hive {
	t.Helper()
	ctx := context.Background()
	log := logging.Discard()

	st, err := store.Open(cfg.Store.Backend, cfg.HiveDir, log)
	if err != nil {
		t.Fatalf("store.Open() error = %v", err)
	}
	plans, err := plan.NewStore(cfg.PlansDir())
	if err != nil {
		t.Fatal(err)
	}
	wts, err := worktree.NewManager(ctx, worktree.NewGitBackend(cfg.Root), worktree.Options{
		RepoRoot:     cfg.Root,
		Dir:          cfg.WorktreesDir(),
		BranchPrefix: cfg.BranchPrefix,
		AutoCommit:   cfg.Merge.AutoCommit,
		Excludes:     []string{cfg.HiveExclude(), "/" + plan.SettingsFile},
	})
	if err != nil {
		t.Fatalf("NewManager() error = %v", err)
	}
	sup := agent.NewSupervisor(agent.NewExecLauncher(), agent.Options{
		LogDir:        cfg.LogDir(),
		GracePeriod:   cfg.Supervisor.GracePeriod,
		FlushInterval: cfg.Supervisor.FlushInterval,
		TailLines:     cfg.Supervisor.TailLines,
	})
	coord, err := orchestrator.New(ctx, orchestrator.Options{
		Store:           st,
		Worktrees:       wts,
		Supervisor:      sup,
		Plans:           plans,
		Templates:       cfg,
		RepoRoot:        cfg.Root,
		ShutdownTimeout: 5 * time.Second,
	})
	if err != nil {
		t.Fatalf("orchestrator.New() error = %v", err)
	}

	runCtx, cancel := context.WithCancel(ctx)
	go coord.Run(runCtx)
	h := &hive{cfg: cfg, coord: coord, store: st, cancel: cancel}
	t.Cleanup(h.close)
	return h
}

// close stops the coordinator and closes the store. Safe to call twice.
func (h *hive) close() {
	if h.cancel == nil {
		return
	}
	h.cancel()
	<-h.coord.Done()
	h.store.Close()
	h.cancel = nil
}

func (h *hive) do(t *testing.T, cmd orchestrator.Command) orchestrator.Result {
	t.Helper()
	res, err := h.coord.Do(context.Background(), cmd)
	if err != nil {
		t.Fatalf("Do(%s) error = %v", cmd.Kind, err)
	}
	return res
}

// assign starts the next agent and waits for it to finish.
func (h *hive) assign(t *testing.T, id, agentName string) *models.Task {
	t.Helper()
	h.do(t, orchestrator.AssignAgent(id, agentName))
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()
	task, err := h.coord.WaitIdle(ctx, id)
	if err != nil {
		t.Fatalf("WaitIdle(%s) error = %v", id, err)
	}
	return task
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func mustRead(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read %s: %v", filepath.Base(path), err)
	}
	return string(data)
}
