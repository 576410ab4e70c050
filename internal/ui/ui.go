package ui

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/ledgersync/internal/models"
	"github.com/desertthunder/ledgersync/internal/syncq"
)

// ViewState represents the current view in the TUI.
type ViewState int

const (
	QueueView ViewState = iota
	DeadLetterView
	DetailView
)

// Model represents the TUI application state.
type Model struct {
	ctx        context.Context
	view       ViewState
	engine     *syncq.Engine
	width      int
	height     int
	queueList  list.Model
	deadList   list.Model
	detail     *models.SyncOperation
	detailFrom ViewState
	status     models.SyncStatus
	statusChan chan models.SyncStatus
	unsub      func()
	err        error
	help       help.Model
	keys       keyMap
}

// keyMap defines the key bindings for the TUI.
type keyMap struct {
	up      key.Binding
	down    key.Binding
	enter   key.Binding
	back    key.Binding
	tab     key.Binding
	sync    key.Binding
	requeue key.Binding
	quit    key.Binding
}

func newKeyMap() keyMap {
	return keyMap{
		up: key.NewBinding(
			key.WithKeys("up", "k"),
			key.WithHelp("↑/k", "up"),
		),
		down: key.NewBinding(
			key.WithKeys("down", "j"),
			key.WithHelp("↓/j", "down"),
		),
		enter: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "inspect"),
		),
		back: key.NewBinding(
			key.WithKeys("esc"),
			key.WithHelp("esc", "back"),
		),
		tab: key.NewBinding(
			key.WithKeys("tab"),
			key.WithHelp("tab", "queue/dead-letter"),
		),
		sync: key.NewBinding(
			key.WithKeys("s"),
			key.WithHelp("s", "sync now"),
		),
		requeue: key.NewBinding(
			key.WithKeys("r"),
			key.WithHelp("r", "requeue"),
		),
		quit: key.NewBinding(
			key.WithKeys("q", "ctrl+c"),
			key.WithHelp("q", "quit"),
		),
	}
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.tab, k.sync, k.quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.up, k.down, k.enter},
		{k.back, k.tab, k.requeue},
		{k.sync, k.quit},
	}
}

type statusUpdateMsg models.SyncStatus

type syncDoneMsg struct {
	err error
}

// NewModel creates a new TUI model bound to the sync engine.
func NewModel(ctx context.Context, engine *syncq.Engine) *Model {
	m := &Model{
		ctx:        ctx,
		view:       QueueView,
		engine:     engine,
		statusChan: make(chan models.SyncStatus, 8),
		help:       help.New(),
		keys:       newKeyMap(),
	}
	m.status = engine.GetSyncStatus()
	m.unsub = engine.OnSyncStatusChange(func(status models.SyncStatus) {
		select {
		case m.statusChan <- status:
		default:
		}
	})
	m.rebuildLists()
	return m
}

// Init starts the status listener.
func (m *Model) Init() tea.Cmd {
	return m.waitForStatus()
}

func (m *Model) waitForStatus() tea.Cmd {
	return func() tea.Msg {
		status, ok := <-m.statusChan
		if !ok {
			return nil
		}
		return statusUpdateMsg(status)
	}
}

func (m *Model) rebuildLists() {
	ops := m.engine.GetQueueStatus()
	queueItems := make([]list.Item, len(ops))
	for i, op := range ops {
		queueItems[i] = opItem{op: op}
	}
	m.queueList = list.New(queueItems, list.NewDefaultDelegate(), 0, 0)
	m.queueList.Title = "Pending Operations"
	m.queueList.SetSize(m.width-4, m.height-8)

	entries := m.engine.DeadLetter()
	deadItems := make([]list.Item, len(entries))
	for i, entry := range entries {
		deadItems[i] = deadLetterItem{entry: entry}
	}
	m.deadList = list.New(deadItems, list.NewDefaultDelegate(), 0, 0)
	m.deadList.Title = "Dead Letter"
	m.deadList.SetSize(m.width-4, m.height-8)
}

// Update handles incoming messages and updates the model state.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.queueList.SetSize(msg.Width-4, msg.Height-8)
		m.deadList.SetSize(msg.Width-4, msg.Height-8)
		return m, nil

	case tea.KeyMsg:
		switch m.view {
		case QueueView:
			return m.handleQueueKeys(msg)
		case DeadLetterView:
			return m.handleDeadLetterKeys(msg)
		case DetailView:
			return m.handleDetailKeys(msg)
		}

	case statusUpdateMsg:
		m.status = models.SyncStatus(msg)
		m.rebuildLists()
		return m, m.waitForStatus()

	case syncDoneMsg:
		m.err = msg.err
		m.rebuildLists()
		return m, nil
	}

	return m, nil
}

func (m *Model) handleQueueKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		return m.quit()
	case "tab":
		m.view = DeadLetterView
		return m, nil
	case "s":
		return m, m.syncNow()
	case "enter":
		if item, ok := m.queueList.SelectedItem().(opItem); ok {
			op := item.op
			m.detail = &op
			m.detailFrom = QueueView
			m.view = DetailView
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.queueList, cmd = m.queueList.Update(msg)
	return m, cmd
}

func (m *Model) handleDeadLetterKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		return m.quit()
	case "tab", "esc":
		m.view = QueueView
		return m, nil
	case "r":
		if item, ok := m.deadList.SelectedItem().(deadLetterItem); ok {
			m.err = m.engine.Requeue(item.entry.Op.ID)
			m.rebuildLists()
		}
		return m, nil
	case "enter":
		if item, ok := m.deadList.SelectedItem().(deadLetterItem); ok {
			op := item.entry.Op
			m.detail = &op
			m.detailFrom = DeadLetterView
			m.view = DetailView
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.deadList, cmd = m.deadList.Update(msg)
	return m, cmd
}

func (m *Model) handleDetailKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		return m.quit()
	case "esc", "enter":
		m.view = m.detailFrom
		m.detail = nil
		return m, nil
	}
	return m, nil
}

func (m *Model) quit() (tea.Model, tea.Cmd) {
	if m.unsub != nil {
		m.unsub()
		m.unsub = nil
	}
	return m, tea.Quit
}

func (m *Model) syncNow() tea.Cmd {
	return func() tea.Msg {
		return syncDoneMsg{err: m.engine.SyncNow(m.ctx)}
	}
}

// View renders the UI based on the current view state.
func (m *Model) View() string {
	header := m.renderHeader()

	switch m.view {
	case QueueView:
		return header + "\n" + m.queueList.View() + "\n" + m.help.View(m.keys)
	case DeadLetterView:
		return header + "\n" + m.deadList.View() + "\n" + m.help.View(m.keys)
	case DetailView:
		return header + "\n" + m.renderDetail() + "\n" + m.help.View(m.keys)
	default:
		return ""
	}
}

func (m *Model) renderHeader() string {
	online := styles.err.Render("offline")
	if m.status.IsOnline {
		online = styles.ok.Render("online")
	}
	syncing := ""
	if m.status.IsSyncing {
		syncing = styles.warn.Render(" syncing...")
	}
	last := "never"
	if m.status.LastSyncTime != nil {
		last = m.status.LastSyncTime.Format(time.RFC3339)
	}
	header := fmt.Sprintf("%s%s • pending: %d • last sync: %s",
		online, syncing, m.status.PendingOperations, last)
	if m.err != nil {
		header += "\n" + styles.err.Render(fmt.Sprintf("Error: %v", m.err))
	}
	return header
}

func (m *Model) renderDetail() string {
	if m.detail == nil {
		return ""
	}
	payload := "(none)"
	if len(m.detail.Payload) > 0 {
		var pretty map[string]any
		if err := json.Unmarshal(m.detail.Payload, &pretty); err == nil {
			if data, err := json.MarshalIndent(pretty, "", "  "); err == nil {
				payload = string(data)
			}
		}
	}
	return fmt.Sprintf("%s\n\nID:       %s\nType:     %s\nDomain:   %s\nTarget:   %s\nQueued:   %s\nRetries:  %d\n\nPayload:\n%s",
		styles.title.Render("Operation"),
		m.detail.ID, m.detail.Type, m.detail.Domain, m.detail.TargetID,
		m.detail.EnqueuedAt.Format(time.RFC3339), m.detail.RetryCount, payload)
}
