package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/venus-kyc/caseflow/internal/workflow"
)

// screen represents which screen the TUI is showing.
type screen int

const (
	screenInbox  screen = iota // Work list (main)
	screenDetail               // Case history or ad-hoc thread
)

// popup is an optional overlay dialog.
type popup int

const (
	popupNone popup = iota
	popupApprove
	popupReject
	popupNote
	popupRespond
	popupConfirmComplete
)

const refreshInterval = 3 * time.Second

// Model is the top-level bubbletea model for one user's inbox.
type Model struct {
	engine *workflow.Engine
	actor  workflow.Actor
	ctx    context.Context

	width  int
	height int

	screen screen
	popup  popup

	items  []workflow.InboxItem
	cursor int

	// Item the popup or detail screen acts on.
	target workflow.InboxItem

	textInput      textinput.Model
	detailViewport viewport.Model

	statusMsg  string
	statusErr  bool
	statusTime time.Time

	refreshing bool
	quitting   bool
}

// New creates an inbox model acting as actor.
func New(ctx context.Context, engine *workflow.Engine, actor workflow.Actor) Model {
	ti := textinput.New()
	ti.CharLimit = 500
	ti.Width = 50

	return Model{
		engine:         engine,
		actor:          actor,
		ctx:            ctx,
		screen:         screenInbox,
		textInput:      ti,
		detailViewport: viewport.New(80, 20),
	}
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.loadInbox(), tickCmd())
}

type inboxLoadedMsg struct {
	items []workflow.InboxItem
	err   error
}

type actionDoneMsg struct {
	status string
	err    error
}

type detailLoadedMsg struct {
	content string
	err     error
}

type tickMsg time.Time

func tickCmd() tea.Cmd {
	return tea.Tick(refreshInterval, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m Model) loadInbox() tea.Cmd {
	return func() tea.Msg {
		items, err := m.engine.Inbox(m.ctx, m.actor)
		return inboxLoadedMsg{items: items, err: err}
	}
}

// act runs an engine call off the UI goroutine and reports the outcome.
func (m Model) act(success string, fn func() error) tea.Cmd {
	return func() tea.Msg {
		if err := fn(); err != nil {
			return actionDoneMsg{err: err}
		}
		return actionDoneMsg{status: success}
	}
}

func (m Model) doTransition(caseID int64, action workflow.Action, comment string) tea.Cmd {
	return m.act(fmt.Sprintf("Case #%d: %s", caseID, strings.ToLower(string(action))), func() error {
		_, err := m.engine.Transition(m.ctx, caseID, action, comment, m.actor)
		return err
	})
}

func (m Model) doAssign(caseID int64, assignee string) tea.Cmd {
	status := fmt.Sprintf("Claimed case #%d", caseID)
	if assignee == "" {
		status = fmt.Sprintf("Released case #%d", caseID)
	}
	return m.act(status, func() error {
		_, err := m.engine.Assign(m.ctx, caseID, assignee, m.actor)
		return err
	})
}

func (m Model) doNote(caseID int64, text string) tea.Cmd {
	return m.act(fmt.Sprintf("Noted on case #%d", caseID), func() error {
		_, err := m.engine.AddNote(m.ctx, caseID, text, m.actor)
		return err
	})
}

func (m Model) doRespond(taskID, text string) tea.Cmd {
	return m.act("Responded to "+shortID(taskID), func() error {
		_, err := m.engine.RespondAdHoc(m.ctx, taskID, text, m.actor)
		return err
	})
}

func (m Model) doComplete(taskID string) tea.Cmd {
	return m.act("Completed "+shortID(taskID), func() error {
		_, err := m.engine.CompleteAdHoc(m.ctx, taskID, m.actor)
		return err
	})
}

func (m Model) loadDetail(item workflow.InboxItem) tea.Cmd {
	return func() tea.Msg {
		if item.Origin == workflow.OriginAdHoc {
			task, err := m.engine.AdHocTask(m.ctx, item.TaskID, m.actor)
			if err != nil {
				return detailLoadedMsg{err: err}
			}
			return detailLoadedMsg{content: renderAdHoc(task)}
		}
		c, err := m.engine.Case(m.ctx, item.CaseID)
		if err != nil {
			return detailLoadedMsg{err: err}
		}
		events, err := m.engine.History(m.ctx, item.CaseID)
		if err != nil {
			return detailLoadedMsg{err: err}
		}
		comments, err := m.engine.Comments(m.ctx, item.CaseID)
		if err != nil {
			return detailLoadedMsg{err: err}
		}
		res, err := m.engine.Validate(m.ctx, item.CaseID)
		if err != nil {
			return detailLoadedMsg{err: err}
		}
		return detailLoadedMsg{content: renderCase(c, res, events, comments)}
	}
}

func (m *Model) setStatus(msg string, isErr bool) {
	m.statusMsg = msg
	m.statusErr = isErr
	m.statusTime = time.Now()
}

func (m *Model) clampCursor() {
	if m.cursor >= len(m.items) {
		m.cursor = len(m.items) - 1
	}
	if m.cursor < 0 {
		m.cursor = 0
	}
}

func (m Model) selected() (workflow.InboxItem, bool) {
	if m.cursor < len(m.items) {
		return m.items[m.cursor], true
	}
	return workflow.InboxItem{}, false
}

func (m *Model) openPopup(p popup, placeholder string) tea.Cmd {
	m.popup = p
	m.textInput.SetValue("")
	m.textInput.Placeholder = placeholder
	m.textInput.Focus()
	return textinput.Blink
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
