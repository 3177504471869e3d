package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/ShayCichocki/hive/internal/agent"
	"github.com/ShayCichocki/hive/internal/config"
	"github.com/ShayCichocki/hive/internal/logging"
	"github.com/ShayCichocki/hive/internal/orchestrator"
	"github.com/ShayCichocki/hive/internal/plan"
	"github.com/ShayCichocki/hive/internal/store"
	"github.com/ShayCichocki/hive/internal/worktree"
)

// hive is a running coordinator and everything it owns. Only one process
// may hold a hive directory at a time.
type hive struct {
	cfg   *config.Config
	log   *slog.Logger
	coord *orchestrator.Coordinator

	store     store.TaskStore
	lock      *store.Lock
	logCloser io.Closer
	cancel    context.CancelFunc
	done      chan error
}

type openOptions struct {
	// console mirrors log records to stderr. The board leaves it off since
	// it owns the terminal.
	console bool
}

// openHive loads config, takes the hive lock and starts a coordinator.
// The coordinator keeps running after ctx is cancelled until Close.
func openHive(ctx context.Context, opts openOptions) (*hive, error) {
	cfg, err := loadConfig(ctx)
	if err != nil {
		return nil, err
	}

	logOpts := logging.Options{File: cfg.Log.File, Level: cfg.Log.Level}
	if opts.console {
		logOpts.Console = os.Stderr
	}
	logger, logCloser, err := logging.New(logOpts)
	if err != nil {
		return nil, err
	}

	h := &hive{cfg: cfg, log: logger, logCloser: logCloser}
	if err := h.start(ctx); err != nil {
		h.release()
		return nil, err
	}
	return h, nil
}

func (h *hive) start(ctx context.Context) error {
	cfg := h.cfg
	lock := store.NewLock(cfg.HiveDir)
	if err := lock.Acquire(); err != nil {
		if errors.Is(err, store.ErrLocked) {
			return fmt.Errorf("%w; close the other hive session first", err)
		}
		return err
	}
	h.lock = lock

	st, err := store.Open(cfg.Store.Backend, cfg.HiveDir, logging.Component(h.log, "store"))
	if err != nil {
		return err
	}
	h.store = st

	plans, err := plan.NewStore(cfg.PlansDir())
	if err != nil {
		return err
	}

	excludes := []string{"/" + plan.SettingsFile}
	if pattern := cfg.HiveExclude(); pattern != "" {
		excludes = append(excludes, pattern)
	}
	worktrees, err := worktree.NewManager(ctx, worktree.NewGitBackend(cfg.Root), worktree.Options{
		RepoRoot:     cfg.Root,
		Dir:          cfg.WorktreesDir(),
		BaseBranch:   cfg.BaseBranch,
		BranchPrefix: cfg.BranchPrefix,
		AutoCommit:   cfg.Merge.AutoCommit,
		Excludes:     excludes,
		PR: worktree.PROptions{
			Remote:  cfg.PR.Remote,
			Command: cfg.PR.Command,
			Args:    cfg.PR.Args,
		},
		Logger: h.log,
	})
	if err != nil {
		return err
	}

	supervisor := agent.NewSupervisor(agent.NewExecLauncher(), agent.Options{
		LogDir:        cfg.LogDir(),
		MaxConcurrent: cfg.Supervisor.MaxConcurrent,
		GracePeriod:   cfg.Supervisor.GracePeriod,
		FlushInterval: cfg.Supervisor.FlushInterval,
		TailLines:     cfg.Supervisor.TailLines,
		Logger:        h.log,
	})

	coord, err := orchestrator.New(ctx, orchestrator.Options{
		Store:           st,
		Worktrees:       worktrees,
		Supervisor:      supervisor,
		Plans:           plans,
		Templates:       cfg,
		RepoRoot:        cfg.Root,
		PRCompletesTask: cfg.PR.CompletesTask,
		Logger:          h.log,
	})
	if err != nil {
		return err
	}
	h.coord = coord

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	h.cancel = cancel
	h.done = make(chan error, 1)
	go func() {
		h.done <- coord.Run(runCtx)
	}()
	return nil
}

// Close stops the coordinator, which interrupts any running agents, then
// releases the store and the lock.
func (h *hive) Close() error {
	var err error
	if h.cancel != nil {
		h.cancel()
		if runErr := <-h.done; runErr != nil && !errors.Is(runErr, context.Canceled) {
			err = runErr
		}
		h.cancel = nil
	}
	h.release()
	return err
}

func (h *hive) release() {
	if h.store != nil {
		if err := h.store.Close(); err != nil {
			h.log.Warn("close task store", "error", err)
		}
		h.store = nil
	}
	if h.lock != nil {
		if err := h.lock.Release(); err != nil {
			h.log.Warn("release hive lock", "error", err)
		}
		h.lock = nil
	}
	if h.logCloser != nil {
		h.logCloser.Close()
		h.logCloser = nil
	}
}

// withHive opens the hive for the duration of fn.
func withHive(ctx context.Context, fn func(h *hive) error) error {
	h, err := openHive(ctx, openOptions{console: true})
	if err != nil {
		return err
	}
	fnErr := fn(h)
	closeErr := h.Close()
	if fnErr != nil {
		return fnErr
	}
	return closeErr
}
