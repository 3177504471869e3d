package tui

import (
	"context"
	"fmt"
	"iter"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/ShayCichocki/hive/internal/orchestrator"
	"github.com/ShayCichocki/hive/internal/taskstate"
	"github.com/ShayCichocki/hive/internal/worktree"
	"github.com/ShayCichocki/hive/pkg/models"
)

// Coordinator is the part of the orchestrator the board drives.
type Coordinator interface {
	Board() *orchestrator.Board
	Do(ctx context.Context, cmd orchestrator.Command) (orchestrator.Result, error)
	Diff(ctx context.Context, taskID string) iter.Seq2[worktree.Hunk, error]
	Subscribe() (<-chan orchestrator.Event, func())
}

var _ Coordinator = (*orchestrator.Coordinator)(nil)

// Options configures the board.
type Options struct {
	// Planners and Executors list the agent templates offered on assign.
	Planners  []string
	Executors []string
	// DefaultPlanner and DefaultExecutor are listed first in the picker.
	DefaultPlanner  string
	DefaultExecutor string
	Version         string
}

type mode int

const (
	modeBoard mode = iota
	modeTitle
	modeDescription
	modeSelectAgent
	modeConfirmDelete
	modeDiff
)

// boardChangedMsg is sent when the coordinator publishes a change.
type boardChangedMsg struct{ event orchestrator.Event }

// eventsClosedMsg is sent when the coordinator stops publishing.
type eventsClosedMsg struct{}

// commandDoneMsg carries the outcome of a coordinator command.
type commandDoneMsg struct {
	cmd orchestrator.Command
	res orchestrator.Result
	err error
}

// App is the bubbletea model for the board.
type App struct {
	ctx    context.Context
	coord  Coordinator
	opts   Options
	events <-chan orchestrator.Event

	board  *orchestrator.Board
	tasks  [][]*models.Task
	col    int
	rows   []int
	width  int
	height int
	mode   mode

	input  *InputField
	diff   *DiffView
	footer *Footer

	// pendingTitle holds the title while the description is typed.
	pendingTitle string
	// agentChoices and agentIndex drive the agent picker.
	agentChoices []string
	agentIndex   int

	quitting bool
}

// NewApp returns a board model. events is the coordinator subscription the
// board redraws from.
func NewApp(ctx context.Context, coord Coordinator, events <-chan orchestrator.Event, opts Options) *App {
	a := &App{
		ctx:    ctx,
		coord:  coord,
		opts:   opts,
		events: events,
		rows:   make([]int, len(columns)),
		width:  100,
		height: 30,
		input:  NewInputField(),
		diff:   NewDiffView(),
		footer: NewFooter(),
	}
	a.refresh()
	return a
}

// Run shows the board until the user quits or ctx is cancelled.
func Run(ctx context.Context, coord Coordinator, opts Options) error {
	events, cancel := coord.Subscribe()
	defer cancel()
	app := NewApp(ctx, coord, events, opts)
	_, err := tea.NewProgram(app, tea.WithAltScreen(), tea.WithContext(ctx)).Run()
	return err
}

// Init implements tea.Model.
func (a *App) Init() tea.Cmd {
	return a.waitForEvent()
}

func (a *App) waitForEvent() tea.Cmd {
	events := a.events
	if events == nil {
		return nil
	}
	return func() tea.Msg {
		ev, ok := <-events
		if !ok {
			return eventsClosedMsg{}
		}
		return boardChangedMsg{event: ev}
	}
}

func (a *App) run(cmd orchestrator.Command) tea.Cmd {
	return func() tea.Msg {
		res, err := a.coord.Do(a.ctx, cmd)
		return commandDoneMsg{cmd: cmd, res: res, err: err}
	}
}

func (a *App) loadDiff(taskID string) tea.Cmd {
	return func() tea.Msg {
		var hunks []worktree.Hunk
		for h, err := range a.coord.Diff(a.ctx, taskID) {
			if err != nil {
				return diffLoadedMsg{taskID: taskID, err: err}
			}
			hunks = append(hunks, h)
		}
		return diffLoadedMsg{taskID: taskID, hunks: hunks}
	}
}

// Update implements tea.Model.
func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.width, a.height = msg.Width, msg.Height
		a.input.SetWidth(msg.Width)
		a.footer.SetWidth(msg.Width)
		a.diff.SetSize(msg.Width, msg.Height-3)
		return a, nil

	case boardChangedMsg:
		a.refresh()
		return a, a.waitForEvent()

	case eventsClosedMsg:
		a.events = nil
		a.footer.SetMessage("coordinator stopped", false)
		return a, nil

	case commandDoneMsg:
		a.refresh()
		if msg.err != nil {
			a.footer.SetMessage(msg.err.Error(), false)
			return a, nil
		}
		a.footer.SetMessage(describe(msg.cmd, msg.res), true)
		if msg.res.Task != nil {
			a.selectTask(msg.res.Task.ID)
		}
		return a, nil

	case diffLoadedMsg:
		if msg.err != nil {
			a.mode = modeBoard
			a.footer.SetMessage(msg.err.Error(), false)
			return a, nil
		}
		a.mode = modeDiff
		a.diff.Show(msg.taskID, msg.hunks)
		return a, nil

	case inputSubmittedMsg:
		return a, a.submitInput(msg.value)

	case inputCancelledMsg:
		a.input.Close()
		a.mode = modeBoard
		return a, nil

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			a.quitting = true
			return a, tea.Quit
		}
		switch a.mode {
		case modeTitle, modeDescription:
			var cmd tea.Cmd
			a.input, cmd = a.input.Update(msg)
			return a, cmd
		case modeSelectAgent:
			return a, a.updateAgentPicker(msg)
		case modeConfirmDelete:
			a.mode = modeBoard
			if t := a.selected(); t != nil && msg.String() == "y" {
				return a, a.run(orchestrator.Delete(t.ID))
			}
			a.footer.SetMessage("delete cancelled", true)
			return a, nil
		case modeDiff:
			if msg.String() == "esc" || msg.String() == "q" {
				a.diff.Close()
				a.mode = modeBoard
				return a, nil
			}
			return a, a.diff.Update(msg)
		default:
			return a, a.updateBoard(msg)
		}
	}
	return a, nil
}

func (a *App) updateBoard(msg tea.KeyMsg) tea.Cmd {
	t := a.selected()
	switch msg.String() {
	case "q":
		a.quitting = true
		return tea.Quit
	case "left", "h":
		a.col = max(a.col-1, 0)
	case "right", "l":
		a.col = min(a.col+1, len(columns)-1)
	case "up", "k":
		a.rows[a.col] = max(a.rows[a.col]-1, 0)
	case "down", "j":
		a.rows[a.col] = min(a.rows[a.col]+1, max(len(a.tasks[a.col])-1, 0))
	case "n":
		a.mode = modeTitle
		return a.input.Open("Title", "What should the agents do?")
	case "a":
		if t == nil {
			return nil
		}
		role, _, ok := taskstate.RoleFor(t.Status)
		if !ok {
			a.footer.SetMessage(fmt.Sprintf("no agent can be assigned in %s", t.Status.Label()), false)
			return nil
		}
		a.agentChoices = defaultFirst(a.opts.Planners, a.opts.DefaultPlanner)
		if role == models.RoleExecutor {
			a.agentChoices = defaultFirst(a.opts.Executors, a.opts.DefaultExecutor)
		}
		if len(a.agentChoices) <= 1 {
			return a.run(orchestrator.AssignAgent(t.ID, ""))
		}
		a.agentIndex = 0
		a.mode = modeSelectAgent
	case "s":
		if t != nil {
			return a.run(orchestrator.Stop(t.ID))
		}
	case "tab", "m":
		if t != nil {
			return a.run(orchestrator.MoveForward(t.ID))
		}
	case "shift+tab", "M":
		if t != nil {
			return a.run(orchestrator.MoveBackward(t.ID))
		}
	case "g":
		if t != nil {
			return a.run(orchestrator.Merge(t.ID))
		}
	case "p":
		if t != nil {
			return a.run(orchestrator.CreatePR(t.ID))
		}
	case "d":
		if t != nil {
			return a.loadDiff(t.ID)
		}
	case "x", "delete":
		if t != nil {
			a.mode = modeConfirmDelete
			a.footer.SetMessage(fmt.Sprintf("delete %s %q? (y/n)", t.ID, t.Title), false)
		}
	}
	return nil
}

func (a *App) updateAgentPicker(msg tea.KeyMsg) tea.Cmd {
	switch msg.String() {
	case "up", "k":
		a.agentIndex = max(a.agentIndex-1, 0)
	case "down", "j":
		a.agentIndex = min(a.agentIndex+1, len(a.agentChoices)-1)
	case "esc":
		a.mode = modeBoard
	case "enter":
		a.mode = modeBoard
		if t := a.selected(); t != nil {
			return a.run(orchestrator.AssignAgent(t.ID, a.agentChoices[a.agentIndex]))
		}
	}
	return nil
}

func (a *App) submitInput(value string) tea.Cmd {
	value = strings.TrimSpace(value)
	switch a.mode {
	case modeTitle:
		if value == "" {
			a.footer.SetMessage("title is required", false)
			return nil
		}
		a.pendingTitle = value
		a.mode = modeDescription
		return a.input.Open("Description", "optional, enter to skip")
	case modeDescription:
		title := a.pendingTitle
		a.pendingTitle = ""
		a.input.Close()
		a.mode = modeBoard
		return a.run(orchestrator.CreateTask(title, value))
	}
	return nil
}

// refresh reloads the published board and clamps the selection.
func (a *App) refresh() {
	a.board = a.coord.Board()
	a.tasks = groupBoard(a.board)
	for i := range a.rows {
		a.rows[i] = min(a.rows[i], max(len(a.tasks[i])-1, 0))
	}
}

func (a *App) selected() *models.Task {
	col := a.tasks[a.col]
	if len(col) == 0 {
		return nil
	}
	return col[a.rows[a.col]]
}

// selectTask moves the cursor to the task with id.
func (a *App) selectTask(id string) {
	for c, col := range a.tasks {
		for r, t := range col {
			if t.ID == id {
				a.col, a.rows[c] = c, r
				return
			}
		}
	}
}

func describe(cmd orchestrator.Command, res orchestrator.Result) string {
	switch cmd.Kind {
	case orchestrator.CmdCreate:
		return "created " + res.Task.ID
	case orchestrator.CmdAssignAgent:
		if res.Run != nil {
			return fmt.Sprintf("%s %s started on %s", res.Run.Role, res.Run.Agent, cmd.TaskID)
		}
	case orchestrator.CmdDelete:
		return "deleted " + cmd.TaskID
	case orchestrator.CmdCreatePR:
		if res.Task != nil && res.Task.PRURL != "" {
			return "pull request " + res.Task.PRURL
		}
	}
	if res.Task != nil {
		return fmt.Sprintf("%s → %s", cmd.TaskID, res.Task.Status.Label())
	}
	return string(cmd.Kind) + " " + cmd.TaskID
}

// View implements tea.Model.
func (a *App) View() string {
	if a.quitting {
		return ""
	}
	if a.mode == modeDiff {
		return a.diff.View()
	}

	parts := []string{a.headerView(), a.columnsView(), a.detailView()}
	switch a.mode {
	case modeTitle, modeDescription:
		parts = append(parts, a.input.View())
	case modeSelectAgent:
		parts = append(parts, a.agentPickerView())
	}
	parts = append(parts, a.footer.View(a.mode))
	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}

func (a *App) headerView() string {
	title := titleStyle.Render("hive")
	if a.opts.Version != "" {
		title += dimStyle.Render(" " + a.opts.Version)
	}
	if a.board != nil {
		if running := len(a.board.Running()); running > 0 {
			title += runningStyle.Render(fmt.Sprintf("  %d running", running))
		}
		if a.board.Warning != "" {
			title += "  " + warningStyle.Render("⚠ "+a.board.Warning)
		}
	}
	return title
}

func (a *App) columnsView() string {
	colWidth := max(a.width/len(columns)-2, 16)
	height := max(a.height-10, 5)
	views := make([]string, len(columns))
	for i, c := range columns {
		var b strings.Builder
		b.WriteString(columnTitleStyle.Render(fmt.Sprintf("%s (%d)", c.title, len(a.tasks[i]))))
		for r, t := range a.tasks[i] {
			b.WriteString("\n")
			line := truncate(statusIcon(t)+" "+t.Title, colWidth-4)
			style := cardStyle
			if i == a.col && r == a.rows[i] {
				style = selectedCardStyle
			}
			b.WriteString(style.Render(line))
			sub := t.ID
			if len(c.statuses) > 1 {
				sub += " · " + t.Status.Label()
			}
			b.WriteString("\n")
			b.WriteString(dimStyle.Render(truncate("    "+sub, colWidth-4)))
		}
		style := columnStyle
		if i == a.col {
			style = activeColumnStyle
		}
		views[i] = style.Width(colWidth).Height(height).Render(b.String())
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, views...)
}

func (a *App) detailView() string {
	t := a.selected()
	if t == nil {
		return dimStyle.Render("no task selected; press n to create one")
	}
	lines := []string{titleStyle.Render(t.Title) + dimStyle.Render("  "+t.ID+"  "+t.Status.Label())}
	if t.Description != "" {
		lines = append(lines, truncate(firstLine(t.Description), a.width))
	}
	var info []string
	if t.BranchName != "" {
		info = append(info, "branch "+t.BranchName)
	}
	if t.Planner != "" {
		info = append(info, "planner "+t.Planner)
	}
	if t.Executor != "" {
		info = append(info, "executor "+t.Executor)
	}
	if t.HasActiveRun() {
		info = append(info, runningStyle.Render("run "+t.ActiveRunID))
	}
	if t.PRURL != "" {
		info = append(info, "pr "+t.PRURL)
	}
	if len(info) > 0 {
		lines = append(lines, dimStyle.Render(strings.Join(info, " · ")))
	}
	if t.LastFailure != "" {
		lines = append(lines, failureStyle.Render(truncate("last failure: "+firstLine(t.LastFailure), a.width)))
	}
	return strings.Join(lines, "\n")
}

func (a *App) agentPickerView() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("Assign agent"))
	for i, name := range a.agentChoices {
		b.WriteString("\n")
		if i == a.agentIndex {
			b.WriteString(selectedCardStyle.Render("> " + name))
		} else {
			b.WriteString(cardStyle.Render("  " + name))
		}
	}
	return b.String()
}

func defaultFirst(names []string, def string) []string {
	out := make([]string, 0, len(names))
	for _, n := range names {
		if n == def {
			out = append([]string{n}, out...)
		} else {
			out = append(out, n)
		}
	}
	return out
}

func truncate(s string, width int) string {
	r := []rune(s)
	if width <= 1 || len(r) <= width {
		return s
	}
	return string(r[:width-1]) + "…"
}
