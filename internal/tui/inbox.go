package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/tOgg1/leasedesk/internal/workflow"
)

const (
	defaultRefreshInterval = 2 * time.Second
	defaultStatusTTL       = 5 * time.Second
	actionTimeout          = 5 * time.Second
)

// Engine is the part of the workflow engine the inbox drives.
type Engine interface {
	Inbox(ctx context.Context, signerID string) ([]workflow.TaskView, error)
	Approve(ctx context.Context, approvalID, actorID, comment string) (*workflow.Resolution, error)
	Decline(ctx context.Context, approvalID, actorID, reason string) (*workflow.Resolution, error)
}

// Config controls the inbox.
type Config struct {
	// SignerID is whose pending tasks are listed.
	SignerID string
	// SignerName is shown in the header.
	SignerName string
	// ActorID is the user recorded on approvals and declines.
	ActorID         string
	RefreshInterval time.Duration
}

// RunInbox starts the inbox on the terminal.
func RunInbox(engine Engine, cfg Config) error {
	program := tea.NewProgram(newModel(engine, cfg), tea.WithAltScreen())
	_, err := program.Run()
	return err
}

type uiMode int

const (
	modeList uiMode = iota
	modeComment
	modeDecline
)

type statusKind int

const (
	statusInfo statusKind = iota
	statusOK
	statusErr
)

type tickMsg struct{}

type refreshMsg struct {
	tasks []workflow.TaskView
	err   error
}

type actionResultMsg struct {
	taskID string
	res    *workflow.Resolution
	err    error
}

type model struct {
	engine          Engine
	cfg             Config
	styles          styles
	refreshInterval time.Duration
	now             func() time.Time

	tasks    []workflow.TaskView
	selected int
	err      error

	mode  uiMode
	input []rune
	busy  bool

	statusKind    statusKind
	statusText    string
	statusExpires time.Time

	width    int
	height   int
	quitting bool
}

func newModel(engine Engine, cfg Config) model {
	interval := cfg.RefreshInterval
	if interval <= 0 {
		interval = defaultRefreshInterval
	}
	return model{
		engine:          engine,
		cfg:             cfg,
		styles:          newStyles(defaultPalette),
		refreshInterval: interval,
		now:             time.Now,
	}
}

func (m model) Init() tea.Cmd {
	return tea.Batch(m.fetchCmd(), m.tickCmd())
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil
	case tickMsg:
		if !m.statusExpires.IsZero() && m.now().After(m.statusExpires) {
			m.statusText = ""
		}
		return m, tea.Batch(m.fetchCmd(), m.tickCmd())
	case refreshMsg:
		m.err = msg.err
		if msg.err == nil {
			m.applyTasks(msg.tasks)
		}
		return m, nil
	case actionResultMsg:
		m.busy = false
		if msg.err != nil {
			m.setStatus(statusErr, msg.err.Error())
			return m, m.fetchCmd()
		}
		m.setStatus(statusOK, describeResolution(msg.taskID, msg.res))
		return m, m.fetchCmd()
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC {
			m.quitting = true
			return m, tea.Quit
		}
		if m.mode == modeList {
			return m.updateListMode(msg)
		}
		return m.updateInputMode(msg)
	}
	return m, nil
}

// applyTasks replaces the list, keeping the cursor on the same task when it
// is still pending.
func (m *model) applyTasks(tasks []workflow.TaskView) {
	current := m.selectedTaskID()
	m.tasks = tasks
	m.selected = 0
	for i, view := range tasks {
		if view.Approval.ID == current {
			m.selected = i
			break
		}
	}
}

func (m model) selectedTaskID() string {
	if m.selected < 0 || m.selected >= len(m.tasks) {
		return ""
	}
	return m.tasks[m.selected].Approval.ID
}

func (m model) updateListMode(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "esc":
		m.quitting = true
		return m, tea.Quit
	case "up", "k":
		if m.selected > 0 {
			m.selected--
		}
	case "down", "j":
		if m.selected < len(m.tasks)-1 {
			m.selected++
		}
	case "r":
		return m, m.fetchCmd()
	case "a":
		if m.selectedTaskID() != "" && !m.busy {
			m.mode = modeComment
			m.input = nil
		}
	case "d":
		if m.selectedTaskID() != "" && !m.busy {
			m.mode = modeDecline
			m.input = nil
		}
	}
	return m, nil
}

func (m model) updateInputMode(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEsc:
		m.mode = modeList
		m.input = nil
		return m, nil
	case tea.KeyBackspace:
		if len(m.input) > 0 {
			m.input = m.input[:len(m.input)-1]
		}
		return m, nil
	case tea.KeySpace:
		m.input = append(m.input, ' ')
		return m, nil
	case tea.KeyRunes:
		m.input = append(m.input, msg.Runes...)
		return m, nil
	case tea.KeyEnter:
		text := strings.TrimSpace(string(m.input))
		if m.mode == modeDecline && text == "" {
			m.setStatus(statusErr, "a decline reason is required")
			return m, nil
		}
		taskID := m.selectedTaskID()
		approve := m.mode == modeComment
		m.mode = modeList
		m.input = nil
		m.busy = true
		return m, m.actionCmd(taskID, approve, text)
	}
	return m, nil
}

func (m *model) setStatus(kind statusKind, text string) {
	m.statusKind = kind
	m.statusText = strings.TrimSpace(text)
	m.statusExpires = m.now().Add(defaultStatusTTL)
}

func (m model) fetchCmd() tea.Cmd {
	engine := m.engine
	signerID := m.cfg.SignerID
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		tasks, err := engine.Inbox(ctx, signerID)
		return refreshMsg{tasks: tasks, err: err}
	}
}

func (m model) actionCmd(taskID string, approve bool, text string) tea.Cmd {
	engine := m.engine
	actorID := m.cfg.ActorID
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), actionTimeout)
		defer cancel()
		var (
			res *workflow.Resolution
			err error
		)
		if approve {
			res, err = engine.Approve(ctx, taskID, actorID, text)
		} else {
			res, err = engine.Decline(ctx, taskID, actorID, text)
		}
		return actionResultMsg{taskID: taskID, res: res, err: err}
	}
}

func (m model) tickCmd() tea.Cmd {
	return tea.Tick(m.refreshInterval, func(time.Time) tea.Msg {
		return tickMsg{}
	})
}

func describeResolution(taskID string, res *workflow.Resolution) string {
	text := fmt.Sprintf("Task %s %s; request %s", shortID(taskID), res.Approval.Status, res.Request.Status)
	if res.Contract != nil {
		text += fmt.Sprintf(", contract %s created", shortID(res.Contract.ID))
	}
	return text
}

func (m model) View() string {
	if m.quitting {
		return ""
	}
	s := m.styles

	title := "Approval inbox"
	if m.cfg.SignerName != "" {
		title += " for " + m.cfg.SignerName
	}
	parts := []string{
		s.Title.Render(title) + s.Muted.Render(fmt.Sprintf("  %d pending", len(m.tasks))),
		m.renderList(),
	}

	switch m.mode {
	case modeComment:
		parts = append(parts, s.Text.Render("Approve with comment (optional): ")+string(m.input)+s.Marker.Render("_"))
	case modeDecline:
		parts = append(parts, s.Warn.Render("Decline reason: ")+string(m.input)+s.Marker.Render("_"))
	default:
		parts = append(parts, s.Muted.Render("j/k move  a approve  d decline  r refresh  q quit"))
	}

	if m.statusText != "" {
		style := s.Muted
		switch m.statusKind {
		case statusOK:
			style = s.OK
		case statusErr:
			style = s.Err
		}
		parts = append(parts, style.Render(m.statusText))
	}
	if m.err != nil {
		parts = append(parts, s.Err.Render("Error: "+m.err.Error()))
	}
	return strings.Join(parts, "\n")
}

func (m model) renderList() string {
	s := m.styles
	if len(m.tasks) == 0 {
		return s.Panel.Render(s.Muted.Render("No pending tasks."))
	}

	rows := make([]string, 0, len(m.tasks))
	for i, view := range m.tasks {
		req := view.Request
		line := fmt.Sprintf("%s  request %s  building %s  %.2f  %s  %d/%d approved",
			view.Approval.CreatedAt.Local().Format("01-02 15:04"),
			shortID(req.ID),
			shortID(req.BuildingID),
			req.TotalPrice,
			req.Status,
			view.Progress.Approved,
			view.Progress.Total,
		)
		if i == m.selected {
			rows = append(rows, s.Marker.Render("> ")+s.Selected.Render(line))
		} else {
			rows = append(rows, "  "+s.Text.Render(line))
		}
	}
	panel := s.Panel
	if m.width > 4 {
		panel = panel.Width(m.width - 4)
	}
	return panel.Render(lipgloss.JoinVertical(lipgloss.Left, rows...))
}

func shortID(id string) string {
	if len(id) <= 8 {
		return id
	}
	return id[:8]
}
