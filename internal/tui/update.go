package tui

import (
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/venus-kyc/caseflow/internal/store"
	"github.com/venus-kyc/caseflow/internal/workflow"
)

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if m.popup != popupNone {
			return m.handlePopupKey(msg)
		}
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.detailViewport.Width = max(m.width-4, 20)
		m.detailViewport.Height = max(m.height-6, 6)
		return m, nil

	case inboxLoadedMsg:
		m.refreshing = false
		if msg.err != nil {
			m.setStatus("Failed to load inbox: "+msg.err.Error(), true)
			return m, nil
		}
		m.items = msg.items
		m.clampCursor()
		return m, nil

	case actionDoneMsg:
		if msg.err != nil {
			m.setStatus(msg.err.Error(), true)
		} else {
			m.setStatus(msg.status, false)
		}
		cmds := []tea.Cmd{m.loadInbox()}
		if m.screen == screenDetail {
			cmds = append(cmds, m.loadDetail(m.target))
		}
		return m, tea.Batch(cmds...)

	case detailLoadedMsg:
		if msg.err != nil {
			m.setStatus(msg.err.Error(), true)
			m.screen = screenInbox
			return m, nil
		}
		m.detailViewport.SetContent(msg.content)
		m.screen = screenDetail
		return m, nil

	case tickMsg:
		cmds := []tea.Cmd{tickCmd()}
		if m.statusMsg != "" && time.Since(m.statusTime) > 5*time.Second {
			m.statusMsg = ""
		}
		if !m.refreshing {
			m.refreshing = true
			cmds = append(cmds, m.loadInbox())
		}
		return m, tea.Batch(cmds...)
	}

	if m.screen == screenDetail {
		var cmd tea.Cmd
		m.detailViewport, cmd = m.detailViewport.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		if m.screen == screenInbox {
			m.quitting = true
			return m, tea.Quit
		}
		m.screen = screenInbox
		return m, nil
	case "esc":
		m.screen = screenInbox
		return m, nil
	}

	switch m.screen {
	case screenInbox:
		return m.handleInboxKey(msg)
	case screenDetail:
		return m.handleDetailKey(msg)
	}
	return m, nil
}

func (m Model) handleInboxKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "j", "down":
		m.cursor++
		m.clampCursor()
		return m, nil
	case "k", "up":
		m.cursor--
		m.clampCursor()
		return m, nil
	case "g":
		m.refreshing = true
		return m, m.loadInbox()
	case "enter":
		item, ok := m.selected()
		if !ok {
			return m, nil
		}
		m.target = item
		m.detailViewport.GotoTop()
		return m, m.loadDetail(item)
	}

	item, ok := m.selected()
	if !ok {
		return m, nil
	}
	return m.itemAction(item, msg.String())
}

func (m Model) handleDetailKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "a", "r", "c", "u", "n", "s", "d":
		return m.itemAction(m.target, msg.String())
	}
	var cmd tea.Cmd
	m.detailViewport, cmd = m.detailViewport.Update(msg)
	return m, cmd
}

// itemAction maps a key to an operation on item. Keys that do not apply to
// the item's origin are ignored.
func (m Model) itemAction(item workflow.InboxItem, key string) (tea.Model, tea.Cmd) {
	m.target = item
	if item.Origin == workflow.OriginCase {
		switch key {
		case "a":
			return m, m.openPopup(popupApprove, "Approval comment...")
		case "r":
			return m, m.openPopup(popupReject, "Reason for rejection...")
		case "n":
			return m, m.openPopup(popupNote, "Note...")
		case "c":
			return m, m.doAssign(item.CaseID, m.actor.ID)
		case "u":
			return m, m.doAssign(item.CaseID, "")
		}
		return m, nil
	}

	switch key {
	case "s":
		return m, m.openPopup(popupRespond, "Your response...")
	case "d":
		if item.Status != string(store.AdHocResponded) {
			m.setStatus("Only responded requests can be completed", true)
			return m, nil
		}
		m.popup = popupConfirmComplete
		return m, nil
	}
	return m, nil
}

func (m Model) handlePopupKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.popup == popupConfirmComplete {
		switch msg.String() {
		case "y", "enter":
			m.popup = popupNone
			return m, m.doComplete(m.target.TaskID)
		case "n", "esc":
			m.popup = popupNone
		}
		return m, nil
	}

	switch msg.String() {
	case "esc":
		m.popup = popupNone
		m.textInput.Blur()
		return m, nil
	case "enter":
		text := strings.TrimSpace(m.textInput.Value())
		if text == "" {
			m.setStatus("Text cannot be empty", true)
			return m, nil
		}
		p := m.popup
		m.popup = popupNone
		m.textInput.Blur()
		switch p {
		case popupApprove:
			return m, m.doTransition(m.target.CaseID, workflow.ActionApprove, text)
		case popupReject:
			return m, m.doTransition(m.target.CaseID, workflow.ActionReject, text)
		case popupNote:
			return m, m.doNote(m.target.CaseID, text)
		case popupRespond:
			return m, m.doRespond(m.target.TaskID, text)
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.textInput, cmd = m.textInput.Update(msg)
	return m, cmd
}
