package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"log/slog"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/ShayCichocki/hive/internal/agent"
	"github.com/ShayCichocki/hive/internal/apperr"
	"github.com/ShayCichocki/hive/internal/plan"
	"github.com/ShayCichocki/hive/internal/store"
	"github.com/ShayCichocki/hive/internal/worktree"
	"github.com/ShayCichocki/hive/pkg/models"
)

// persistWarnAfter is the number of consecutive failed saves that raises the
// board warning.
const persistWarnAfter = 3

// ErrStopped is returned by Do once the coordinator loop has exited.
var ErrStopped = errors.New("coordinator stopped")

// Worktrees is the worktree manager as seen by the coordinator.
type Worktrees interface {
	BaseBranch() string
	Get(taskID string) (*models.Worktree, bool)
	Create(ctx context.Context, taskID string) (*models.Worktree, error)
	Remove(ctx context.Context, taskID string, force bool) error
	Commit(ctx context.Context, taskID, message string) (bool, error)
	Merge(ctx context.Context, taskID, message string) error
	CreatePR(ctx context.Context, taskID, title, body string) (string, error)
	Diff(ctx context.Context, taskID string) iter.Seq2[worktree.Hunk, error]
	Reconcile(ctx context.Context, tasks []*models.Task) ([]string, error)
}

// Supervisor is the agent process supervisor as seen by the coordinator.
type Supervisor interface {
	Spawn(ctx context.Context, req agent.SpawnRequest) (*models.AgentRun, error)
	Cancel(ctx context.Context, runID string) (*models.AgentRun, error)
	Completions() <-chan agent.Completion
	Runs(taskID string) []*models.AgentRun
	Shutdown(ctx context.Context) error
}

// Templates resolves agent command templates by role and name.
type Templates interface {
	Template(role models.Role, name string) (string, models.AgentTemplate, error)
}

var (
	_ Worktrees  = (*worktree.Manager)(nil)
	_ Supervisor = (*agent.Supervisor)(nil)
)

// Options configures a Coordinator.
type Options struct {
	Store      store.TaskStore
	Worktrees  Worktrees
	Supervisor Supervisor
	Plans      *plan.Store
	Templates  Templates
	// RepoRoot is exposed to agent templates as {{repo_root}}.
	RepoRoot string
	// PRCompletesTask moves a task to done once its pull request exists.
	PRCompletesTask bool
	// ShutdownTimeout bounds how long Run waits for agents to stop on exit.
	ShutdownTimeout time.Duration
	Logger          *slog.Logger
}

// Coordinator owns every task. See the package documentation.
type Coordinator struct {
	opts    Options
	log     *slog.Logger
	emitter *EventEmitter

	// Owned by the loop goroutine.
	tasks        *store.Snapshot
	dirty        bool
	pending      []Event
	saveFailures int
	warning      string
	version      uint64

	board   atomic.Pointer[Board]
	inbox   chan request
	running atomic.Bool
	done    chan struct{}
}

type request struct {
	ctx   context.Context
	cmd   Command
	reply chan response
}

type response struct {
	res Result
	err error
}

// New loads the task store, recovers tasks whose runs were interrupted by a
// previous exit and reconciles worktrees with the loaded tasks.
func New(ctx context.Context, opts Options) (*Coordinator, error) {
	if opts.Store == nil || opts.Worktrees == nil || opts.Supervisor == nil ||
		opts.Plans == nil || opts.Templates == nil {
		return nil, errors.New("orchestrator: store, worktrees, supervisor, plans and templates are required")
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if opts.ShutdownTimeout <= 0 {
		opts.ShutdownTimeout = 30 * time.Second
	}
	c := &Coordinator{
		opts:  opts,
		log:   opts.Logger.With("component", "coordinator"),
		inbox: make(chan request),
		done:  make(chan struct{}),
	}
	c.emitter = NewEventEmitter(64, c.log)

	snap, err := opts.Store.Load()
	if err != nil {
		return nil, err
	}
	c.tasks = snap
	c.recover(ctx)
	c.commit()
	return c, nil
}

// Run applies commands and completion events until ctx is cancelled, then
// stops every agent, marks their tasks interrupted and saves.
func (c *Coordinator) Run(ctx context.Context) error {
	if !c.running.CompareAndSwap(false, true) {
		return errors.New("orchestrator: Run called twice")
	}
	defer close(c.done)
	completions := c.opts.Supervisor.Completions()

	for {
		select {
		case <-ctx.Done():
			c.shutdown()
			return ctx.Err()

		case req := <-c.inbox:
			// An accepted command runs to completion even if the caller gives up.
			res, err := c.handle(context.WithoutCancel(req.ctx), req.cmd)
			c.commit()
			req.reply <- response{res: res, err: err}

		case comp, ok := <-completions:
			if !ok {
				completions = nil
				continue
			}
			c.complete(ctx, comp.Run)
			c.commit()
		}
	}
}

// Done is closed when Run has returned.
func (c *Coordinator) Done() <-chan struct{} { return c.done }

// Do submits a command and waits for it to be applied. Validation failures
// leave the board unchanged.
func (c *Coordinator) Do(ctx context.Context, cmd Command) (Result, error) {
	if !cmd.Kind.Valid() {
		return Result{}, apperr.Validation("command", "unknown command %q", cmd.Kind)
	}
	req := request{ctx: ctx, cmd: cmd, reply: make(chan response, 1)}
	select {
	case c.inbox <- req:
	case <-c.done:
		return Result{}, ErrStopped
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}
	select {
	case resp := <-req.reply:
		return resp.res, resp.err
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}
}

// Board returns the latest published snapshot.
func (c *Coordinator) Board() *Board {
	return c.board.Load()
}

// Task returns a copy of one task from the latest snapshot.
func (c *Coordinator) Task(id string) (*models.Task, bool) {
	return c.Board().Task(id)
}

// Subscribe returns a channel of board change events and a function that
// cancels the subscription.
func (c *Coordinator) Subscribe() (<-chan Event, func()) {
	return c.emitter.Subscribe()
}

// Diff streams the hunks of a task's branch against the base branch.
func (c *Coordinator) Diff(ctx context.Context, taskID string) iter.Seq2[worktree.Hunk, error] {
	if _, ok := c.Task(taskID); !ok {
		return func(yield func(worktree.Hunk, error) bool) {
			yield(worktree.Hunk{}, unknownTask("diff", taskID))
		}
	}
	return c.opts.Worktrees.Diff(ctx, taskID)
}

// Runs returns the agent runs of a task, oldest first: runs supervised by
// this process plus any history kept by the store.
func (c *Coordinator) Runs(taskID string) []*models.AgentRun {
	byID := make(map[string]*models.AgentRun)
	if rec, ok := c.opts.Store.(store.RunRecorder); ok {
		history, err := rec.ListRuns(taskID)
		if err != nil {
			c.log.Warn("list run history", "task_id", taskID, "error", err)
		}
		for _, r := range history {
			byID[r.ID] = r
		}
	}
	for _, r := range c.opts.Supervisor.Runs(taskID) {
		byID[r.ID] = r
	}
	out := make([]*models.AgentRun, 0, len(byID))
	for _, r := range byID {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.Before(out[j].StartedAt) })
	return out
}

// WaitIdle blocks until the task has no active run and returns it. It
// returns a ValidationError if the task is deleted meanwhile.
func (c *Coordinator) WaitIdle(ctx context.Context, taskID string) (*models.Task, error) {
	events, cancel := c.Subscribe()
	defer cancel()
	for {
		t, ok := c.Task(taskID)
		if !ok {
			return nil, unknownTask("wait", taskID)
		}
		if !t.HasActiveRun() {
			return t, nil
		}
		select {
		case <-events:
		case <-c.done:
			return nil, ErrStopped
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// commit saves pending changes, publishes a new snapshot and emits the
// events collected while applying the last input.
func (c *Coordinator) commit() {
	if c.dirty {
		c.dirty = false
		c.persist()
	}
	if c.board.Load() != nil && len(c.pending) == 0 {
		return
	}
	c.version++
	b := &Board{Tasks: make([]*models.Task, 0, len(c.tasks.Order)), Warning: c.warning, Version: c.version}
	for _, t := range c.tasks.Ordered() {
		b.Tasks = append(b.Tasks, t.Clone())
	}
	c.board.Store(b)

	for _, ev := range c.pending {
		ev.Version = c.version
		c.emitter.Emit(ev)
	}
	c.pending = c.pending[:0]
}

// persist writes the whole board. A failure keeps the in-memory state; the
// next change retries the full save.
func (c *Coordinator) persist() {
	err := c.opts.Store.Save(c.tasks.Clone())
	if err == nil {
		if c.saveFailures > 0 {
			c.log.Info("task store recovered", "failed_saves", c.saveFailures)
		}
		c.saveFailures = 0
		if c.warning != "" {
			c.warning = ""
			c.pending = append(c.pending, Event{Type: EventWarning, Timestamp: time.Now()})
		}
		return
	}
	c.saveFailures++
	c.log.Error("save task store", "error", err, "consecutive_failures", c.saveFailures)
	if c.saveFailures >= persistWarnAfter {
		msg := fmt.Sprintf("task store not saved (%d attempts): %v", c.saveFailures, err)
		if msg != c.warning {
			c.warning = msg
			c.pending = append(c.pending, Event{Type: EventWarning, Message: msg, Timestamp: time.Now()})
		}
	}
	// Keep retrying on the next input even if it changes nothing else.
	c.dirty = true
}

// changed marks the board dirty and queues an event.
func (c *Coordinator) changed(typ EventType, t *models.Task, runID, msg string) {
	c.dirty = true
	ev := Event{Type: typ, RunID: runID, Message: msg, Timestamp: time.Now()}
	if t != nil {
		ev.TaskID = t.ID
		ev.Status = string(t.Status)
	}
	c.pending = append(c.pending, ev)
}

func (c *Coordinator) recordRun(run *models.AgentRun) {
	rec, ok := c.opts.Store.(store.RunRecorder)
	if !ok || run == nil {
		return
	}
	if err := rec.RecordRun(run); err != nil {
		c.log.Warn("record run", "run_id", run.ID, "error", err)
	}
}

func (c *Coordinator) shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), c.opts.ShutdownTimeout)
	defer cancel()
	if err := c.opts.Supervisor.Shutdown(ctx); err != nil {
		c.log.Warn("supervisor shutdown", "error", err)
	}
	// Completions of the runs cancelled above are no longer consumed.
	for _, t := range c.tasks.Ordered() {
		if !t.HasActiveRun() {
			continue
		}
		for _, r := range c.opts.Supervisor.Runs(t.ID) {
			if r.ID == t.ActiveRunID {
				c.recordRun(r)
			}
		}
	}
	c.interruptActive(ctx, "interrupted: hive shut down")
	c.commit()
	c.emitter.Close()
}

func (c *Coordinator) lookup(op, id string) (*models.Task, error) {
	t, ok := c.tasks.Tasks[id]
	if !ok {
		return nil, unknownTask(op, id)
	}
	return t, nil
}

func unknownTask(op, id string) error {
	return apperr.Validation(op, "unknown task %q", id)
}

func newTaskID(exists func(string) bool) string {
	for {
		id := "task-" + strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
		if !exists(id) {
			return id
		}
	}
}
