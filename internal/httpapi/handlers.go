package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	z "github.com/Oudwins/zog"
	"github.com/go-chi/chi/v5"

	"github.com/ShayCichocki/hive/internal/orchestrator"
	"github.com/ShayCichocki/hive/internal/runlog"
	"github.com/ShayCichocki/hive/internal/worktree"
)

const (
	defaultLogTail = 200
	maxLogTail     = 10000
)

func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte(s.opts.Version))
}

func (s *Server) handleBoard(w http.ResponseWriter, r *http.Request) {
	renderJSON(w, s.coord.Board())
}

func (s *Server) handleTask(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	task, ok := s.coord.Task(id)
	if !ok {
		renderNotFound(w, "task", id)
		return
	}
	renderJSON(w, task)
}

func (s *Server) handleDiff(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, ok := s.coord.Task(id); !ok {
		renderNotFound(w, "task", id)
		return
	}
	hunks := []worktree.Hunk{}
	for hunk, err := range s.coord.Diff(r.Context(), id) {
		if err != nil {
			renderError(w, err)
			return
		}
		hunks = append(hunks, hunk)
	}
	renderJSON(w, hunks)
}

func (s *Server) handleRuns(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, ok := s.coord.Task(id); !ok {
		renderNotFound(w, "task", id)
		return
	}
	renderJSON(w, s.coord.Runs(id))
}

// handleRunLog returns the last lines of a run's output log as plain text.
func (s *Server) handleRunLog(w http.ResponseWriter, r *http.Request) {
	id, runID := chi.URLParam(r, "id"), chi.URLParam(r, "run")
	n := defaultLogTail
	if v := r.URL.Query().Get("tail"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed <= 0 || parsed > maxLogTail {
			renderJSON(w, errorResponse(ErrorCodeValidationFailed, fmt.Sprintf("tail must be an integer between 1 and %d", maxLogTail), nil), status(http.StatusBadRequest))
			return
		}
		n = parsed
	}
	for _, run := range s.coord.Runs(id) {
		if run.ID != runID {
			continue
		}
		text, err := runlog.ReadTail(run.LogPath, n)
		if err != nil {
			renderError(w, err)
			return
		}
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = io.WriteString(w, text)
		return
	}
	renderNotFound(w, "run", runID)
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if !decode(w, r, &req) {
		return
	}
	if issues := createSchema.Validate(&req); len(issues) > 0 {
		renderJSON(w, errorResponse(ErrorCodeValidationFailed, "Schema validation failed", z.Issues.Flatten(issues)), status(http.StatusBadRequest))
		return
	}
	res, err := s.coord.Do(r.Context(), orchestrator.CreateTask(req.Title, req.Description))
	if err != nil {
		renderError(w, err)
		return
	}
	renderJSON(w, res, status(http.StatusCreated))
}

func (s *Server) handleAssign(w http.ResponseWriter, r *http.Request) {
	var req assignRequest
	if r.ContentLength != 0 && !decode(w, r, &req) {
		return
	}
	if issues := assignSchema.Validate(&req); len(issues) > 0 {
		renderJSON(w, errorResponse(ErrorCodeValidationFailed, "Schema validation failed", z.Issues.Flatten(issues)), status(http.StatusBadRequest))
		return
	}
	s.do(w, r, orchestrator.AssignAgent(chi.URLParam(r, "id"), req.Agent))
}

func (s *Server) handleMove(w http.ResponseWriter, r *http.Request) {
	var req moveRequest
	if !decode(w, r, &req) {
		return
	}
	if issues := moveSchema.Validate(&req); len(issues) > 0 {
		renderJSON(w, errorResponse(ErrorCodeValidationFailed, "Schema validation failed", z.Issues.Flatten(issues)), status(http.StatusBadRequest))
		return
	}
	id := chi.URLParam(r, "id")
	cmd := orchestrator.MoveForward(id)
	if req.Direction == directionBackward {
		cmd = orchestrator.MoveBackward(id)
	}
	s.do(w, r, cmd)
}

// handleCommand serves the commands that take nothing but the task id.
func (s *Server) handleCommand(build func(taskID string) orchestrator.Command) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.do(w, r, build(chi.URLParam(r, "id")))
	}
}

func (s *Server) do(w http.ResponseWriter, r *http.Request, cmd orchestrator.Command) {
	if _, ok := s.coord.Task(cmd.TaskID); !ok {
		renderNotFound(w, "task", cmd.TaskID)
		return
	}
	res, err := s.coord.Do(r.Context(), cmd)
	if err != nil {
		renderError(w, err)
		return
	}
	renderJSON(w, res)
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		renderJSON(w, errorResponse(ErrorCodeInvalidJSON, "Invalid JSON", nil), status(http.StatusBadRequest))
		return false
	}
	return true
}
