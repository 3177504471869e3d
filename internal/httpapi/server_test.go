package httpapi

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"iter"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ShayCichocki/hive/internal/apperr"
	"github.com/ShayCichocki/hive/internal/orchestrator"
	"github.com/ShayCichocki/hive/internal/worktree"
	"github.com/ShayCichocki/hive/pkg/models"
)

type fakeCoordinator struct {
	mu     sync.Mutex
	board  *orchestrator.Board
	cmds   []orchestrator.Command
	err    error
	hunks  []worktree.Hunk
	runs   []*models.AgentRun
	events chan orchestrator.Event
}

func newFakeCoordinator() *fakeCoordinator {
	return &fakeCoordinator{
		board: &orchestrator.Board{Version: 3, Tasks: []*models.Task{
			{ID: "task-0000beef", Title: "Add login", Status: models.TaskStatusReview},
		}},
		events: make(chan orchestrator.Event, 4),
	}
}

func (f *fakeCoordinator) Board() *orchestrator.Board { return f.board }

func (f *fakeCoordinator) Task(id string) (*models.Task, bool) { return f.board.Task(id) }

func (f *fakeCoordinator) Do(_ context.Context, cmd orchestrator.Command) (orchestrator.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cmds = append(f.cmds, cmd)
	if f.err != nil {
		return orchestrator.Result{}, f.err
	}
	return orchestrator.Result{Task: &models.Task{ID: "task-0000beef", Title: cmd.Title}}, nil
}

func (f *fakeCoordinator) Diff(context.Context, string) iter.Seq2[worktree.Hunk, error] {
	return func(yield func(worktree.Hunk, error) bool) {
		for _, h := range f.hunks {
			if !yield(h, nil) {
				return
			}
		}
	}
}

func (f *fakeCoordinator) Runs(string) []*models.AgentRun { return f.runs }

func (f *fakeCoordinator) Subscribe() (<-chan orchestrator.Event, func()) {
	return f.events, func() {}
}

func (f *fakeCoordinator) commands() []orchestrator.Command {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]orchestrator.Command(nil), f.cmds...)
}

func newTestServer(t *testing.T, coord *fakeCoordinator) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(New(coord, Options{Version: "test-version", Heartbeat: time.Hour}).Router())
	t.Cleanup(srv.Close)
	return srv
}

func TestHTTPVersion(t *testing.T) {
	srv := newTestServer(t, newFakeCoordinator())

	resp, err := http.Get(srv.URL + "/version")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK || strings.TrimSpace(string(body)) != "test-version" {
		t.Fatalf("got %d %q", resp.StatusCode, body)
	}
}

func TestHTTPBoardAndTask(t *testing.T) {
	srv := newTestServer(t, newFakeCoordinator())

	resp, err := http.Get(srv.URL + "/api/board")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	var board orchestrator.Board
	if err := json.NewDecoder(resp.Body).Decode(&board); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if board.Version != 3 || len(board.Tasks) != 1 {
		t.Errorf("board = %+v", board)
	}

	resp2, err := http.Get(srv.URL + "/api/tasks/task-missing")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp2.Body.Close()
	if resp2.StatusCode != http.StatusNotFound {
		t.Errorf("missing task status = %d, want 404", resp2.StatusCode)
	}
}

func TestHTTPCreateTask(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		wantStatus int
		wantCmds   int
	}{
		{"valid", `{"title":"Add login","description":"oauth"}`, http.StatusCreated, 1},
		{"invalid json", `{`, http.StatusBadRequest, 0},
		{"missing title", `{"description":"oauth"}`, http.StatusBadRequest, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			coord := newFakeCoordinator()
			srv := newTestServer(t, coord)

			resp, err := http.Post(srv.URL+"/api/tasks", "application/json", bytes.NewBufferString(tt.body))
			if err != nil {
				t.Fatalf("post: %v", err)
			}
			defer resp.Body.Close()
			if resp.StatusCode != tt.wantStatus {
				t.Errorf("status = %d, want %d", resp.StatusCode, tt.wantStatus)
			}
			cmds := coord.commands()
			if len(cmds) != tt.wantCmds {
				t.Fatalf("commands = %+v", cmds)
			}
			if tt.wantCmds == 1 && (cmds[0].Kind != orchestrator.CmdCreate || cmds[0].Title != "Add login") {
				t.Errorf("command = %+v", cmds[0])
			}
		})
	}
}

func TestHTTPCommands(t *testing.T) {
	tests := []struct {
		method string
		path   string
		body   string
		want   orchestrator.Command
	}{
		{http.MethodPost, "/assign", `{"agent":"codex"}`, orchestrator.AssignAgent("task-0000beef", "codex")},
		{http.MethodPost, "/assign", ``, orchestrator.AssignAgent("task-0000beef", "")},
		{http.MethodPost, "/stop", ``, orchestrator.Stop("task-0000beef")},
		{http.MethodPost, "/move", `{"direction":"backward"}`, orchestrator.MoveBackward("task-0000beef")},
		{http.MethodPost, "/move", `{"direction":"forward"}`, orchestrator.MoveForward("task-0000beef")},
		{http.MethodPost, "/merge", ``, orchestrator.Merge("task-0000beef")},
		{http.MethodPost, "/pr", ``, orchestrator.CreatePR("task-0000beef")},
		{http.MethodDelete, "", ``, orchestrator.Delete("task-0000beef")},
	}
	for _, tt := range tests {
		t.Run(tt.method+tt.path+tt.body, func(t *testing.T) {
			coord := newFakeCoordinator()
			srv := newTestServer(t, coord)

			req, _ := http.NewRequest(tt.method, srv.URL+"/api/tasks/task-0000beef"+tt.path, strings.NewReader(tt.body))
			resp, err := http.DefaultClient.Do(req)
			if err != nil {
				t.Fatalf("request: %v", err)
			}
			defer resp.Body.Close()
			if resp.StatusCode != http.StatusOK {
				t.Fatalf("status = %d", resp.StatusCode)
			}
			if cmds := coord.commands(); len(cmds) != 1 || cmds[0] != tt.want {
				t.Errorf("commands = %+v, want %+v", cmds, tt.want)
			}
		})
	}
}

func TestHTTPMoveRejectsUnknownDirection(t *testing.T) {
	coord := newFakeCoordinator()
	srv := newTestServer(t, coord)

	resp, err := http.Post(srv.URL+"/api/tasks/task-0000beef/move", "application/json", strings.NewReader(`{"direction":"sideways"}`))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest || len(coord.commands()) != 0 {
		t.Errorf("status = %d commands = %v", resp.StatusCode, coord.commands())
	}
}

func TestHTTPErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   ErrorCode
	}{
		{"validation", apperr.Validation("merge", "not allowed"), http.StatusBadRequest, ErrorCodeValidationFailed},
		{"conflict", &apperr.GitError{Kind: apperr.GitConflict, Op: "merge", Files: []string{"a.go"}}, http.StatusConflict, ErrorCodeConflict},
		{"config", &apperr.ConfigError{Key: "pr.command", Msg: "gh not found"}, http.StatusUnprocessableEntity, ErrorCodeConfig},
		{"stopped", orchestrator.ErrStopped, http.StatusServiceUnavailable, ErrorCodeUnavailable},
		{"other", errors.New("boom"), http.StatusInternalServerError, ErrorCodeInternal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			coord := newFakeCoordinator()
			coord.err = tt.err
			srv := newTestServer(t, coord)

			resp, err := http.Post(srv.URL+"/api/tasks/task-0000beef/merge", "application/json", nil)
			if err != nil {
				t.Fatalf("post: %v", err)
			}
			defer resp.Body.Close()
			var body ErrorResponse
			if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if resp.StatusCode != tt.wantStatus || body.Code != tt.wantCode {
				t.Errorf("got %d/%s, want %d/%s", resp.StatusCode, body.Code, tt.wantStatus, tt.wantCode)
			}
			if tt.wantCode == ErrorCodeConflict && (len(body.Errors["files"]) != 1 || body.Errors["files"][0] != "a.go") {
				t.Errorf("conflict files = %v", body.Errors)
			}
		})
	}
}

func TestHTTPDiffAndRunLog(t *testing.T) {
	coord := newFakeCoordinator()
	coord.hunks = []worktree.Hunk{{File: "login.go", NewStart: 1, NewLines: 3}}
	logPath := filepath.Join(t.TempDir(), "run-1.log")
	if err := os.WriteFile(logPath, []byte("one\ntwo\nthree\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	coord.runs = []*models.AgentRun{{ID: "run-1", TaskID: "task-0000beef", LogPath: logPath}}
	srv := newTestServer(t, coord)

	resp, err := http.Get(srv.URL + "/api/tasks/task-0000beef/diff")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	var hunks []worktree.Hunk
	if err := json.NewDecoder(resp.Body).Decode(&hunks); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(hunks) != 1 || hunks[0].File != "login.go" {
		t.Errorf("hunks = %+v", hunks)
	}

	resp2, err := http.Get(srv.URL + "/api/tasks/task-0000beef/runs/run-1/log?tail=2")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp2.Body.Close()
	text, _ := io.ReadAll(resp2.Body)
	if !strings.Contains(string(text), "three") || strings.Contains(string(text), "one") {
		t.Errorf("log tail = %q", text)
	}

	for _, tail := range []string{"0", "-1", "abc", "10001", "4611686018427387904"} {
		resp, err := http.Get(srv.URL + "/api/tasks/task-0000beef/runs/run-1/log?tail=" + tail)
		if err != nil {
			t.Fatalf("get: %v", err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("tail=%s status = %d, want 400", tail, resp.StatusCode)
		}
	}

	resp3, err := http.Get(srv.URL + "/api/tasks/task-0000beef/runs/run-9/log")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	resp3.Body.Close()
	if resp3.StatusCode != http.StatusNotFound {
		t.Errorf("unknown run status = %d", resp3.StatusCode)
	}
}

func TestHTTPEvents(t *testing.T) {
	coord := newFakeCoordinator()
	srv := newTestServer(t, coord)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/api/events", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("content type = %q", ct)
	}

	coord.events <- orchestrator.Event{Type: orchestrator.EventTaskUpdated, TaskID: "task-0000beef", Version: 4}

	scanner := bufio.NewScanner(resp.Body)
	var got []string
	for scanner.Scan() {
		line := scanner.Text()
		got = append(got, line)
		if strings.HasPrefix(line, "data: ") {
			break
		}
	}
	joined := strings.Join(got, "\n")
	if !strings.Contains(joined, "event: "+string(orchestrator.EventTaskUpdated)) ||
		!strings.Contains(joined, "id: 4") || !strings.Contains(joined, `"task-0000beef"`) {
		t.Errorf("stream = %q", joined)
	}
}
