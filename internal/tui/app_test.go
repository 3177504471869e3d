package tui

import (
	"context"
	"errors"
	"iter"
	"strings"
	"sync"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/ShayCichocki/hive/internal/orchestrator"
	"github.com/ShayCichocki/hive/internal/worktree"
	"github.com/ShayCichocki/hive/pkg/models"
)

type fakeCoordinator struct {
	mu    sync.Mutex
	board *orchestrator.Board
	cmds  []orchestrator.Command
	err   error
	hunks []worktree.Hunk
}

func newFakeCoordinator(tasks ...*models.Task) *fakeCoordinator {
	return &fakeCoordinator{board: &orchestrator.Board{Tasks: tasks, Version: 1}}
}

func (f *fakeCoordinator) Board() *orchestrator.Board {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.board
}

func (f *fakeCoordinator) setBoard(b *orchestrator.Board) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.board = b
}

func (f *fakeCoordinator) Do(_ context.Context, cmd orchestrator.Command) (orchestrator.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cmds = append(f.cmds, cmd)
	if f.err != nil {
		return orchestrator.Result{}, f.err
	}
	return orchestrator.Result{Task: &models.Task{ID: "task-00000001", Status: models.TaskStatusTodo}}, nil
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

func (f *fakeCoordinator) Subscribe() (<-chan orchestrator.Event, func()) {
	return nil, func() {}
}

func (f *fakeCoordinator) commands() []orchestrator.Command {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]orchestrator.Command(nil), f.cmds...)
}

func key(s string) tea.KeyMsg {
	switch s {
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	case "tab":
		return tea.KeyMsg{Type: tea.KeyTab}
	case "down":
		return tea.KeyMsg{Type: tea.KeyDown}
	case "right":
		return tea.KeyMsg{Type: tea.KeyRight}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

// press sends a key and returns the resulting command.
func press(a *App, s string) tea.Cmd {
	_, cmd := a.Update(key(s))
	return cmd
}

// settle runs cmd and feeds its message back until no command is left.
func settle(t *testing.T, a *App, cmd tea.Cmd) {
	t.Helper()
	for i := 0; cmd != nil && i < 10; i++ {
		msg := cmd()
		switch msg.(type) {
		case inputSubmittedMsg, inputCancelledMsg, commandDoneMsg, diffLoadedMsg:
		default:
			return
		}
		_, cmd = a.Update(msg)
	}
}

func typeText(a *App, text string) {
	for _, r := range text {
		a.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}})
	}
}

func task(id, title string, status models.TaskStatus) *models.Task {
	return &models.Task{ID: id, Title: title, Status: status}
}

func TestColumnOf(t *testing.T) {
	tests := []struct {
		status models.TaskStatus
		want   int
	}{
		{models.TaskStatusTodo, 0},
		{models.TaskStatusPlanning, 1},
		{models.TaskStatusPlanReview, 1},
		{models.TaskStatusExecuting, 1},
		{models.TaskStatusReview, 2},
		{models.TaskStatusDone, 3},
	}
	for _, tt := range tests {
		if got := columnOf(tt.status); got != tt.want {
			t.Errorf("columnOf(%s) = %d, want %d", tt.status, got, tt.want)
		}
	}
}

func TestGroupBoardKeepsOrder(t *testing.T) {
	b := &orchestrator.Board{Tasks: []*models.Task{
		task("task-1", "a", models.TaskStatusExecuting),
		task("task-2", "b", models.TaskStatusTodo),
		task("task-3", "c", models.TaskStatusPlanning),
	}}
	got := groupBoard(b)
	if len(got[0]) != 1 || got[0][0].ID != "task-2" {
		t.Errorf("todo column = %v", got[0])
	}
	if len(got[1]) != 2 || got[1][0].ID != "task-1" || got[1][1].ID != "task-3" {
		t.Errorf("in progress column = %v", got[1])
	}
}

func TestCreateTaskFlow(t *testing.T) {
	coord := newFakeCoordinator()
	a := NewApp(context.Background(), coord, nil, Options{})

	press(a, "n")
	if a.mode != modeTitle {
		t.Fatalf("mode = %v, want title", a.mode)
	}
	typeText(a, "Add login")
	settle(t, a, press(a, "enter"))
	if a.mode != modeDescription {
		t.Fatalf("mode = %v, want description", a.mode)
	}
	typeText(a, "oauth")
	settle(t, a, press(a, "enter"))

	cmds := coord.commands()
	want := orchestrator.CreateTask("Add login", "oauth")
	if len(cmds) != 1 || cmds[0] != want {
		t.Fatalf("commands = %+v, want %+v", cmds, want)
	}
	if a.mode != modeBoard || a.input.Active() {
		t.Errorf("input still open after create")
	}
}

func TestCreateTaskRequiresTitle(t *testing.T) {
	coord := newFakeCoordinator()
	a := NewApp(context.Background(), coord, nil, Options{})

	press(a, "n")
	settle(t, a, press(a, "enter"))
	if a.mode != modeTitle || len(coord.commands()) != 0 {
		t.Errorf("mode = %v commands = %v", a.mode, coord.commands())
	}
	settle(t, a, press(a, "esc"))
	if a.mode != modeBoard {
		t.Errorf("esc did not close the input, mode = %v", a.mode)
	}
}

func TestBoardKeys(t *testing.T) {
	id := "task-0000beef"
	tests := []struct {
		key  string
		want orchestrator.Command
	}{
		{"s", orchestrator.Stop(id)},
		{"tab", orchestrator.MoveForward(id)},
		{"m", orchestrator.MoveForward(id)},
		{"M", orchestrator.MoveBackward(id)},
		{"g", orchestrator.Merge(id)},
		{"p", orchestrator.CreatePR(id)},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			coord := newFakeCoordinator(task(id, "Add login", models.TaskStatusTodo))
			a := NewApp(context.Background(), coord, nil, Options{})

			settle(t, a, press(a, tt.key))
			if cmds := coord.commands(); len(cmds) != 1 || cmds[0] != tt.want {
				t.Errorf("commands = %+v, want %+v", cmds, tt.want)
			}
		})
	}
}

func TestAssignAgentPicker(t *testing.T) {
	coord := newFakeCoordinator(task("task-0000beef", "Add login", models.TaskStatusTodo))
	a := NewApp(context.Background(), coord, nil, Options{
		Planners:       []string{"claude", "codex", "gemini"},
		DefaultPlanner: "gemini",
	})

	press(a, "a")
	if a.mode != modeSelectAgent {
		t.Fatalf("mode = %v, want agent picker", a.mode)
	}
	if a.agentChoices[0] != "gemini" {
		t.Errorf("default planner not first: %v", a.agentChoices)
	}
	press(a, "down")
	settle(t, a, press(a, "enter"))

	want := orchestrator.AssignAgent("task-0000beef", "claude")
	if cmds := coord.commands(); len(cmds) != 1 || cmds[0] != want {
		t.Errorf("commands = %+v, want %+v", cmds, want)
	}
}

func TestAssignSingleAgentSkipsPicker(t *testing.T) {
	coord := newFakeCoordinator(task("task-0000beef", "Add login", models.TaskStatusPlanReview))
	a := NewApp(context.Background(), coord, nil, Options{Executors: []string{"claude"}})

	// plan_review lives in the second column.
	press(a, "right")
	settle(t, a, press(a, "a"))
	want := orchestrator.AssignAgent("task-0000beef", "")
	if cmds := coord.commands(); len(cmds) != 1 || cmds[0] != want {
		t.Errorf("commands = %+v, want %+v", cmds, want)
	}
}

func TestDeleteNeedsConfirmation(t *testing.T) {
	coord := newFakeCoordinator(task("task-0000beef", "Add login", models.TaskStatusTodo))
	a := NewApp(context.Background(), coord, nil, Options{})

	press(a, "x")
	settle(t, a, press(a, "n"))
	if len(coord.commands()) != 0 {
		t.Fatalf("deleted without confirmation: %v", coord.commands())
	}

	press(a, "x")
	settle(t, a, press(a, "y"))
	want := orchestrator.Delete("task-0000beef")
	if cmds := coord.commands(); len(cmds) != 1 || cmds[0] != want {
		t.Errorf("commands = %+v, want %+v", cmds, want)
	}
}

func TestCommandErrorShownInFooter(t *testing.T) {
	coord := newFakeCoordinator(task("task-0000beef", "Add login", models.TaskStatusReview))
	coord.err = errors.New("merge conflict in login.go")
	a := NewApp(context.Background(), coord, nil, Options{})

	press(a, "right")
	press(a, "right")
	settle(t, a, press(a, "g"))
	if view := a.View(); !strings.Contains(view, "merge conflict in login.go") {
		t.Errorf("error not rendered:\n%s", view)
	}
}

func TestBoardChangedRefreshes(t *testing.T) {
	coord := newFakeCoordinator()
	a := NewApp(context.Background(), coord, nil, Options{})
	if strings.Contains(a.View(), "Add login") {
		t.Fatal("unexpected task before refresh")
	}

	coord.setBoard(&orchestrator.Board{Version: 2, Warning: "task store not saved", Tasks: []*models.Task{
		task("task-0000beef", "Add login", models.TaskStatusTodo),
	}})
	a.Update(boardChangedMsg{event: orchestrator.Event{Type: orchestrator.EventTaskCreated}})

	view := a.View()
	if !strings.Contains(view, "Add login") || !strings.Contains(view, "task store not saved") {
		t.Errorf("view not refreshed:\n%s", view)
	}
}

func TestDiffView(t *testing.T) {
	coord := newFakeCoordinator(task("task-0000beef", "Add login", models.TaskStatusTodo))
	coord.hunks = []worktree.Hunk{{File: "login.go", NewStart: 1, NewLines: 1, Lines: []string{"+func login() {}"}}}
	a := NewApp(context.Background(), coord, nil, Options{})

	settle(t, a, press(a, "d"))
	if a.mode != modeDiff {
		t.Fatalf("mode = %v, want diff", a.mode)
	}
	if view := a.View(); !strings.Contains(view, "login.go") || !strings.Contains(view, "func login") {
		t.Errorf("diff not rendered:\n%s", view)
	}
	press(a, "esc")
	if a.mode != modeBoard {
		t.Errorf("esc did not close the diff")
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("hello world", 6); got != "hello…" {
		t.Errorf("truncate = %q", got)
	}
	if got := truncate("hi", 6); got != "hi" {
		t.Errorf("truncate = %q", got)
	}
}
