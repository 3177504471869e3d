// Package agent supervises external agent processes: it resolves command
// templates, launches processes in their own process group, streams their
// output into run logs and reports completion as events.
package agent

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/ShayCichocki/hive/internal/apperr"
	"github.com/ShayCichocki/hive/internal/placeholder"
	"github.com/ShayCichocki/hive/internal/runlog"
	"github.com/ShayCichocki/hive/pkg/models"
)

const stderrPrefix = "[stderr] "

// Options configures a Supervisor.
type Options struct {
	// LogDir receives one <run id>.log file per run.
	LogDir string
	// MaxConcurrent bounds running processes; zero means unlimited.
	MaxConcurrent int
	// GracePeriod is how long Cancel waits after SIGTERM before SIGKILL.
	GracePeriod time.Duration
	// FlushInterval is how often run logs are flushed to disk.
	FlushInterval time.Duration
	// TailLines is the size of the output excerpt in completions.
	TailLines int
	Logger    *slog.Logger
}

// SpawnRequest asks for one agent run.
type SpawnRequest struct {
	TaskID   string
	Role     models.Role
	Agent    string
	Template models.AgentTemplate
	// Dir is the working directory, normally the task worktree.
	Dir string
	// Vars are substituted into the template; run_id is added automatically.
	Vars placeholder.Vars
}

// Completion reports a run that reached a terminal status.
type Completion struct {
	Run *models.AgentRun
}

// Supervisor owns agent processes. It does not enforce one run per task;
// that is the caller's responsibility.
type Supervisor struct {
	opts     Options
	launcher Launcher
	log      *slog.Logger
	sem      *semaphore.Weighted

	mu   sync.Mutex
	runs map[string]*runState

	completions chan Completion
	ctx         context.Context
	stop        context.CancelFunc
	wg          sync.WaitGroup
}

type runState struct {
	run       *models.AgentRun
	proc      Process
	cancelReq bool
	cancelCh  chan struct{}
	done      chan struct{}
}

// NewSupervisor creates a Supervisor.
func NewSupervisor(launcher Launcher, opts Options) *Supervisor {
	if opts.GracePeriod <= 0 {
		opts.GracePeriod = 5 * time.Second
	}
	if opts.TailLines <= 0 {
		opts.TailLines = 20
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	ctx, stop := context.WithCancel(context.Background())
	s := &Supervisor{
		opts:        opts,
		launcher:    launcher,
		log:         opts.Logger.With("component", "supervisor"),
		runs:        make(map[string]*runState),
		completions: make(chan Completion, 64),
		ctx:         ctx,
		stop:        stop,
	}
	if opts.MaxConcurrent > 0 {
		s.sem = semaphore.NewWeighted(int64(opts.MaxConcurrent))
	}
	return s
}

// Completions delivers one event per run when it finishes.
func (s *Supervisor) Completions() <-chan Completion {
	return s.completions
}

// Spawn resolves the template and starts the run asynchronously. Template
// errors are returned immediately as ConfigError and no run is recorded.
// When the concurrency limit is reached the run stays starting until a slot
// frees up.
func (s *Supervisor) Spawn(ctx context.Context, req SpawnRequest) (*models.AgentRun, error) {
	if !req.Role.Valid() {
		return nil, apperr.Validation("spawn", "unknown role %q", req.Role)
	}
	runID := uuid.NewString()
	vars := placeholder.Vars{}
	for k, v := range req.Vars {
		vars[k] = v
	}
	vars[placeholder.RunID] = runID

	key := fmt.Sprintf("agents.%ss.%s", req.Role, req.Agent)
	if strings.TrimSpace(req.Template.Command) == "" {
		return nil, &apperr.ConfigError{Key: key + ".command", Msg: "command is empty"}
	}
	name, err := vars.Expand(key+".command", req.Template.Command)
	if err != nil {
		return nil, err
	}
	args, err := vars.ExpandAll(key+".args", req.Template.Args)
	if err != nil {
		return nil, err
	}
	env, err := vars.ExpandEnv(key, req.Template.Env)
	if err != nil {
		return nil, err
	}

	logPath := filepath.Join(s.opts.LogDir, runID+".log")
	w, err := runlog.Open(logPath, s.opts.FlushInterval, s.opts.TailLines)
	if err != nil {
		return nil, &apperr.ProcessError{RunID: runID, ExitCode: -1, Msg: "open run log", Err: err}
	}

	run := &models.AgentRun{
		ID:        runID,
		TaskID:    req.TaskID,
		Role:      req.Role,
		Agent:     req.Agent,
		Command:   append([]string{name}, args...),
		Dir:       req.Dir,
		Status:    models.RunStatusStarting,
		LogPath:   logPath,
		ExitCode:  -1,
		StartedAt: time.Now(),
	}
	rs := &runState{run: run, cancelCh: make(chan struct{}), done: make(chan struct{})}

	s.mu.Lock()
	s.runs[runID] = rs
	snapshot := run.Clone()
	s.mu.Unlock()

	s.log.Info("run registered", "run_id", runID, "task_id", req.TaskID, "role", req.Role, "agent", req.Agent)
	spec := ProcessSpec{Name: name, Args: args, Dir: req.Dir, Env: env}
	s.wg.Add(1)
	go s.execute(rs, spec, w)
	return snapshot, nil
}

func (s *Supervisor) execute(rs *runState, spec ProcessSpec, w *runlog.Writer) {
	defer s.wg.Done()
	log := s.log.With("run_id", rs.run.ID, "task_id", rs.run.TaskID)

	if s.sem != nil {
		waitCtx, cancel := context.WithCancel(s.ctx)
		go func() {
			select {
			case <-rs.cancelCh:
				cancel()
			case <-waitCtx.Done():
			}
		}()
		err := s.sem.Acquire(waitCtx, 1)
		cancel()
		if err != nil {
			_ = w.Close()
			s.finish(rs, models.RunStatusCancelled, -1, "cancelled before start")
			return
		}
		defer s.sem.Release(1)
	}

	s.mu.Lock()
	if rs.cancelReq {
		s.mu.Unlock()
		_ = w.Close()
		s.finish(rs, models.RunStatusCancelled, -1, "cancelled before start")
		return
	}
	_ = w.WriteLine(fmt.Sprintf("# hive run %s role=%s agent=%s", rs.run.ID, rs.run.Role, rs.run.Agent))
	_ = w.WriteLine("# command: " + strings.Join(rs.run.Command, " "))
	proc, err := s.launcher.Launch(s.ctx, spec)
	if err != nil {
		s.mu.Unlock()
		_ = w.WriteLine("# launch failed: " + err.Error())
		_ = w.Close()
		log.Warn("launch failed", "error", err)
		s.finish(rs, models.RunStatusFailed, -1, "launch failed: "+err.Error())
		return
	}
	rs.proc = proc
	rs.run.PID = proc.PID()
	rs.run.Status = models.RunStatusRunning
	s.mu.Unlock()
	log.Info("run started", "pid", proc.PID(), "command", spec.Name)

	var g errgroup.Group
	g.Go(func() error { return pump(proc.Stdout(), w, "") })
	g.Go(func() error { return pump(proc.Stderr(), w, stderrPrefix) })
	code, waitErr := proc.Wait()
	if err := g.Wait(); err != nil {
		log.Warn("output stream error", "error", err)
	}

	s.mu.Lock()
	cancelled := rs.cancelReq
	s.mu.Unlock()

	status := models.RunStatusSucceeded
	switch {
	case cancelled:
		status = models.RunStatusCancelled
	case waitErr != nil || code != 0:
		status = models.RunStatusFailed
	}
	_ = w.WriteLine(fmt.Sprintf("# exit %d (%s)", code, status))
	summary := w.Tail()
	if waitErr != nil {
		summary = strings.TrimSpace(summary + "\nwait: " + waitErr.Error())
	}
	if err := w.Close(); err != nil {
		log.Warn("close run log", "error", err)
	}
	log.Info("run finished", "status", status, "exit_code", code)
	s.finish(rs, status, code, summary)
}

func pump(r io.Reader, w *runlog.Writer, prefix string) error {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 4*1024*1024)
	for sc.Scan() {
		if err := w.WriteLine(prefix + sc.Text()); err != nil {
			return err
		}
	}
	if err := sc.Err(); err != nil {
		// Keep draining so the process never blocks on a full pipe.
		_, _ = io.Copy(io.Discard, r)
		return err
	}
	return nil
}

// finish records the terminal status and emits the completion. done is
// closed before the event is sent so Cancel never waits on the consumer.
func (s *Supervisor) finish(rs *runState, status models.RunStatus, code int, summary string) {
	s.mu.Lock()
	now := time.Now()
	rs.run.Status = status
	rs.run.ExitCode = code
	rs.run.ExitSummary = summary
	rs.run.EndedAt = &now
	rs.run.PID = 0
	rs.proc = nil
	snapshot := rs.run.Clone()
	close(rs.done)
	s.mu.Unlock()

	select {
	case s.completions <- Completion{Run: snapshot}:
	case <-s.ctx.Done():
	}
}

// Cancel stops a run: SIGTERM to its process group, then SIGKILL after the
// grace period. It blocks until the run is terminal and returns its final
// snapshot. Cancelling a finished run returns its snapshot unchanged.
func (s *Supervisor) Cancel(ctx context.Context, runID string) (*models.AgentRun, error) {
	s.mu.Lock()
	rs, ok := s.runs[runID]
	if !ok {
		s.mu.Unlock()
		return nil, apperr.Validation("cancel", "unknown run %s", runID)
	}
	if rs.run.Status.Terminal() {
		snapshot := rs.run.Clone()
		s.mu.Unlock()
		return snapshot, nil
	}
	if !rs.cancelReq {
		rs.cancelReq = true
		close(rs.cancelCh)
	}
	proc := rs.proc
	s.mu.Unlock()

	log := s.log.With("run_id", runID)
	if proc != nil {
		log.Info("terminating run")
		if err := proc.Terminate(); err != nil {
			log.Warn("terminate failed", "error", err)
		}
	}

	timer := time.NewTimer(s.opts.GracePeriod)
	defer timer.Stop()
	select {
	case <-rs.done:
	case <-timer.C:
		if proc != nil {
			log.Warn("grace period expired, killing run")
			if err := proc.Kill(); err != nil {
				log.Warn("kill failed", "error", err)
			}
		}
		select {
		case <-rs.done:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return rs.run.Clone(), nil
}

// Run returns a snapshot of one run.
func (s *Supervisor) Run(runID string) (*models.AgentRun, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rs, ok := s.runs[runID]
	if !ok {
		return nil, false
	}
	return rs.run.Clone(), true
}

// Runs returns the runs of a task, oldest first.
func (s *Supervisor) Runs(taskID string) []*models.AgentRun {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.AgentRun
	for _, rs := range s.runs {
		if rs.run.TaskID == taskID {
			out = append(out, rs.run.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.Before(out[j].StartedAt) })
	return out
}

// ActiveCount returns the number of runs that are starting or running.
func (s *Supervisor) ActiveCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, rs := range s.runs {
		if rs.run.Status.Active() {
			n++
		}
	}
	return n
}

// Shutdown cancels every active run in parallel and waits for their
// goroutines. Completions not yet consumed are dropped.
func (s *Supervisor) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	var active []string
	for id, rs := range s.runs {
		if rs.run.Status.Active() {
			active = append(active, id)
		}
	}
	s.mu.Unlock()

	g, gctx := errgroup.WithContext(ctx)
	for _, id := range active {
		g.Go(func() error {
			_, err := s.Cancel(gctx, id)
			return err
		})
	}
	err := g.Wait()
	s.stop()
	s.wg.Wait()
	return err
}
