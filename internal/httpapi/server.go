// Package httpapi exposes the coordinator over HTTP: JSON board and task
// reads, command endpoints and a server-sent event stream of board changes.
package httpapi

import (
	"context"
	"errors"
	"io"
	"iter"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ShayCichocki/hive/internal/orchestrator"
	"github.com/ShayCichocki/hive/internal/worktree"
	"github.com/ShayCichocki/hive/pkg/models"
)

// Coordinator is the part of the orchestrator the API drives.
type Coordinator interface {
	Board() *orchestrator.Board
	Task(id string) (*models.Task, bool)
	Do(ctx context.Context, cmd orchestrator.Command) (orchestrator.Result, error)
	Diff(ctx context.Context, taskID string) iter.Seq2[worktree.Hunk, error]
	Runs(taskID string) []*models.AgentRun
	Subscribe() (<-chan orchestrator.Event, func())
}

var _ Coordinator = (*orchestrator.Coordinator)(nil)

// Options configures a Server.
type Options struct {
	Addr    string
	Version string
	// Heartbeat is the interval of keep-alive comments on the event stream.
	Heartbeat time.Duration
	Logger    *slog.Logger
}

// Server serves the API for one coordinator.
type Server struct {
	coord  Coordinator
	opts   Options
	log    *slog.Logger
	closed chan struct{}
}

// New returns a server for coord.
func New(coord Coordinator, opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if opts.Heartbeat <= 0 {
		opts.Heartbeat = 15 * time.Second
	}
	return &Server{
		coord:  coord,
		opts:   opts,
		log:    opts.Logger.With("component", "httpapi"),
		closed: make(chan struct{}),
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(s.middlewareLogger)
	r.Get("/version", s.handleVersion)
	r.Route("/api", func(r chi.Router) {
		r.Get("/board", s.handleBoard)
		r.Get("/events", s.handleEvents)
		r.Post("/tasks", s.handleCreate)
		r.Route("/tasks/{id}", func(r chi.Router) {
			r.Get("/", s.handleTask)
			r.Delete("/", s.handleCommand(orchestrator.Delete))
			r.Get("/diff", s.handleDiff)
			r.Get("/runs", s.handleRuns)
			r.Get("/runs/{run}/log", s.handleRunLog)
			r.Post("/assign", s.handleAssign)
			r.Post("/stop", s.handleCommand(orchestrator.Stop))
			r.Post("/move", s.handleMove)
			r.Post("/merge", s.handleCommand(orchestrator.Merge))
			r.Post("/pr", s.handleCommand(orchestrator.CreatePR))
		})
	})
	return r
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.opts.Addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, listener)
}

// Serve is ListenAndServe on an existing listener.
func (s *Server) Serve(ctx context.Context, listener net.Listener) error {
	server := &http.Server{
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}
	errc := make(chan error, 1)
	go func() {
		s.log.Info("listening", "addr", listener.Addr().String())
		errc <- server.Serve(listener)
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	close(s.closed)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		s.log.Error("shutdown failed", "error", err)
		return err
	}
	return nil
}
