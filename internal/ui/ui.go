package ui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/mediasync/internal/session"
	"github.com/desertthunder/mediasync/internal/shared"
	"github.com/desertthunder/mediasync/internal/tasks"
)

// ViewState represents the current view in the TUI.
type ViewState int

const (
	StatusView ViewState = iota
	TransfersView
	SettingsView
	// DialogView is the disconnect confirmation shown over the status view.
	DialogView
)

var viewTitles = map[ViewState]string{
	StatusView:    "Session",
	TransfersView: "Transfers",
	SettingsView:  "Settings",
}

// surface maps a view to the interaction surface its signals are reported on.
func (v ViewState) surface() string {
	switch v {
	case StatusView:
		return session.SurfaceStatus
	case TransfersView:
		return session.SurfaceTransfers
	case DialogView:
		return session.SurfaceDialog
	default:
		return session.SurfaceSettings
	}
}

// Controller is the part of [session.Manager] the panel drives.
type Controller interface {
	Connect() error
	Disconnect() error
	ExtendSession() error
	SetTimeout(minutes int) (int, error)
	Status() session.Status
	HandleSignal(sig session.Signal)
}

// ModelOpts configures a [Model]. Statuses and Events usually come from one [session.Subscription].
type ModelOpts struct {
	Controller Controller
	Statuses   <-chan session.Status
	Events     <-chan session.Event
	Board      *tasks.TransferBoard        // Optional
	Progress   <-chan tasks.ProgressUpdate // Optional, board and history updates
	Now        func() time.Time
}

// Model represents the TUI application state.
type Model struct {
	ctx       context.Context
	ctrl      Controller
	statuses  <-chan session.Status
	events    <-chan session.Event
	board     *tasks.TransferBoard
	progress  <-chan tasks.ProgressUpdate
	now       func() time.Time
	view      ViewState
	status    session.Status
	notice    string
	lastEvent session.Event
	transfers list.Model
	width     int
	height    int
	err       error
	help      help.Model
	keys      keyMap
}

// NewModel creates a new TUI model with the provided dependencies.
func NewModel(ctx context.Context, opts ModelOpts) *Model {
	if opts.Now == nil {
		opts.Now = time.Now
	}

	transfers := list.New(nil, list.NewDefaultDelegate(), 0, 0)
	transfers.Title = "Transfers"
	transfers.SetShowHelp(false)

	m := &Model{
		ctx:       ctx,
		ctrl:      opts.Controller,
		statuses:  opts.Statuses,
		events:    opts.Events,
		board:     opts.Board,
		progress:  opts.Progress,
		now:       opts.Now,
		view:      StatusView,
		transfers: transfers,
		help:      help.New(),
		keys:      newKeyMap(),
	}
	if m.ctrl != nil {
		m.status = m.ctrl.Status()
	}
	if m.board != nil {
		m.transfers.SetItems(transferItems(m.board.Transfers()))
	}
	return m
}

// Init starts listening on the status, event and progress channels.
func (m *Model) Init() tea.Cmd {
	return tea.Batch(m.waitForStatus(), m.waitForEvent(), m.waitForProgress())
}

// Update handles incoming messages and updates the model state.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.transfers.SetSize(msg.Width-4, msg.Height-8)
		return m, nil

	case tea.FocusMsg:
		m.signal(session.Visibility, false)
		return m, nil

	case tea.BlurMsg:
		m.signal(session.Visibility, true)
		return m, nil

	case tea.MouseMsg:
		if msg.Action == tea.MouseActionPress {
			m.signal(session.Pointer, false)
		}
		if m.view == TransfersView {
			var cmd tea.Cmd
			m.transfers, cmd = m.transfers.Update(msg)
			return m, cmd
		}
		return m, nil

	case tea.KeyMsg:
		return m.handleKeys(msg)

	case Msg:
		return m.handleMsg(msg)
	}

	return m, nil
}

func (m *Model) handleMsg(msg Msg) (tea.Model, tea.Cmd) {
	switch msg.kind {
	case MsgStatus:
		m.status = msg.data.(session.Status)
		return m, m.waitForStatus()

	case MsgEvent:
		e := msg.data.(session.Event)
		m.lastEvent = e
		if text := describe(e); text != "" {
			m.notice = text
		}
		return m, m.waitForEvent()

	case MsgProgress:
		update := msg.data.(tasks.ProgressUpdate)
		if update.Phase != tasks.RecordHistory {
			m.notice = update.Message
		}
		if m.board != nil {
			m.transfers.SetItems(transferItems(m.board.Transfers()))
		}
		return m, m.waitForProgress()

	case MsgActionDone:
		result := msg.data.(actionResult)
		m.err = result.err
		if result.err == nil && m.ctrl != nil {
			m.status = m.ctrl.Status()
		}
		return m, nil
	}
	return m, nil
}

func (m *Model) handleKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Matches(msg, m.keys.quit) {
		return m, tea.Quit
	}

	switch m.view {
	case DialogView:
		return m.handleDialogKeys(msg)
	case SettingsView:
		return m.handleSettingsKeys(msg)
	}

	if key.Matches(msg, m.keys.next) {
		m.signal(session.Key, false)
		m.nextView()
		return m, nil
	}

	switch m.view {
	case StatusView:
		return m.handleStatusKeys(msg)
	case TransfersView:
		return m.handleTransfersKeys(msg)
	}
	return m, nil
}

func (m *Model) handleStatusKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.connect):
		m.signal(session.Submit, false)
		return m, m.act("connect", m.ctrl.Connect)
	case key.Matches(msg, m.keys.disconnect):
		m.signal(session.Key, false)
		m.view = DialogView
		return m, nil
	case key.Matches(msg, m.keys.extend):
		return m, m.act("extend", m.ctrl.ExtendSession)
	}
	m.signal(session.Key, false)
	return m, nil
}

func (m *Model) handleDialogKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.yes):
		m.signal(session.Submit, false)
		m.view = StatusView
		return m, m.act("disconnect", m.ctrl.Disconnect)
	case key.Matches(msg, m.keys.no):
		m.signal(session.Key, false)
		m.view = StatusView
	}
	return m, nil
}

func (m *Model) handleTransfersKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Matches(msg, m.keys.refresh) && m.board != nil {
		m.signal(session.Submit, false)
		m.board.RequestRefresh()
		return m, nil
	}

	m.signal(session.Key, false)
	var cmd tea.Cmd
	m.transfers, cmd = m.transfers.Update(msg)
	return m, cmd
}

// handleSettingsKeys edits the idle timeout. Settings signals never count as activity.
func (m *Model) handleSettingsKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	m.signal(session.Key, false)

	switch {
	case key.Matches(msg, m.keys.next):
		m.nextView()
	case key.Matches(msg, m.keys.less):
		m.setTimeout(m.status.TimeoutMinutes - shared.MinTimeoutMinutes)
	case key.Matches(msg, m.keys.more):
		m.setTimeout(m.status.TimeoutMinutes + shared.MinTimeoutMinutes)
	}
	return m, nil
}

func (m *Model) setTimeout(minutes int) {
	applied, err := m.ctrl.SetTimeout(minutes)
	if err != nil {
		m.err = err
		return
	}
	m.status.TimeoutMinutes = applied
}

func (m *Model) nextView() {
	switch m.view {
	case StatusView:
		m.view = TransfersView
	case TransfersView:
		m.view = SettingsView
	default:
		m.view = StatusView
	}
}

func (m *Model) signal(kind session.SignalKind, hidden bool) {
	if m.ctrl == nil {
		return
	}
	m.ctrl.HandleSignal(session.Signal{Kind: kind, Surface: m.view.surface(), At: m.now(), Hidden: hidden})
}

func (m *Model) act(name string, f func() error) tea.Cmd {
	return func() tea.Msg {
		return actionDoneMsg(name, f())
	}
}

func (m *Model) waitForStatus() tea.Cmd {
	if m.statuses == nil {
		return nil
	}
	return func() tea.Msg {
		s, ok := <-m.statuses
		if !ok {
			return nil
		}
		return statusMsg(s)
	}
}

func (m *Model) waitForEvent() tea.Cmd {
	if m.events == nil {
		return nil
	}
	return func() tea.Msg {
		e, ok := <-m.events
		if !ok {
			return nil
		}
		return eventMsg(e)
	}
}

func (m *Model) waitForProgress() tea.Cmd {
	if m.progress == nil {
		return nil
	}
	return func() tea.Msg {
		select {
		case update, ok := <-m.progress:
			if !ok {
				return nil
			}
			return progressMsg(update)
		case <-m.ctx.Done():
			return nil
		}
	}
}

// describe renders an event for the notice line. Activity is not shown.
func describe(e session.Event) string {
	switch e := e.(type) {
	case session.ConnectedEvent:
		return "✓ Connected"
	case session.DisconnectedEvent:
		switch e.Reason {
		case session.ReasonConnectFailed:
			return fmt.Sprintf("✗ Connection failed: %v", e.Err)
		case session.ReasonUnexpected:
			return "✗ Connection lost"
		default:
			return "Disconnected"
		}
	case session.AutoDisconnectedEvent:
		return "Disconnected after inactivity"
	case session.ConfigChangedEvent:
		return "Credentials changed, reconnect to continue"
	case session.WarningEvent:
		return fmt.Sprintf("⚠ Disconnecting in %s due to inactivity, press e to stay connected", shared.FormatMinutes(e.MinutesRemaining))
	case session.ProtectionEvent:
		return "Active transfers are keeping the session open"
	default:
		return ""
	}
}

// View renders the UI based on the current view state.
func (m *Model) View() string {
	var b strings.Builder

	b.WriteString(m.renderTabs())
	b.WriteString("\n\n")

	switch m.view {
	case StatusView:
		b.WriteString(m.renderStatus())
	case TransfersView:
		b.WriteString(m.transfers.View())
	case SettingsView:
		b.WriteString(m.renderSettings())
	case DialogView:
		b.WriteString(m.renderDialog())
	}

	if m.notice != "" {
		b.WriteString("\n\n")
		if m.status.Warning {
			b.WriteString(styles.warn.Render(m.notice))
		} else {
			b.WriteString(styles.help.Render(m.notice))
		}
	}
	if m.err != nil {
		b.WriteString("\n\n")
		b.WriteString(styles.err.Render(fmt.Sprintf("Error: %v", m.err)))
	}

	b.WriteString("\n\n")
	b.WriteString(m.renderHelp())
	return b.String()
}

func (m *Model) renderTabs() string {
	tabs := make([]string, 0, len(viewTitles))
	for _, v := range []ViewState{StatusView, TransfersView, SettingsView} {
		current := m.view == v || (m.view == DialogView && v == StatusView)
		if current {
			tabs = append(tabs, styles.active.Render(viewTitles[v]))
		} else {
			tabs = append(tabs, styles.tab.Render(viewTitles[v]))
		}
	}
	return strings.Join(tabs, " ")
}

func (m *Model) renderStatus() string {
	s := m.status
	lines := []string{
		styles.title.Render("Session"),
		fmt.Sprintf("State:   %s", styles.state(s.State)),
		fmt.Sprintf("Timeout: %s", shared.FormatMinutes(s.TimeoutMinutes)),
	}

	if s.State == session.Connected {
		remaining := fmt.Sprintf("Idle disconnect in %s", shared.FormatMinutes(s.MinutesRemaining))
		if s.Warning {
			remaining = styles.warn.Render(remaining)
		}
		lines = append(lines, remaining)
		if s.Protected {
			lines = append(lines, styles.ok.Render("Active transfers are keeping the session open"))
		}
	}
	if s.Failed() {
		lines = append(lines, styles.err.Render(fmt.Sprintf("Last attempt failed: %v", s.Err)))
	}
	if s.Unexpected {
		lines = append(lines, styles.err.Render("Connection was lost unexpectedly"))
	}
	if m.board != nil {
		lines = append(lines, fmt.Sprintf("Active transfers: %d", m.board.ActiveCount()))
	}

	return strings.Join(lines, "\n")
}

func (m *Model) renderSettings() string {
	return strings.Join([]string{
		styles.title.Render("Settings"),
		fmt.Sprintf("Idle timeout: %s", shared.FormatMinutes(m.status.TimeoutMinutes)),
		styles.help.Render(fmt.Sprintf("Between %d and %d minutes. Applies from the next activity.",
			shared.MinTimeoutMinutes, shared.MaxTimeoutMinutes)),
	}, "\n")
}

func (m *Model) renderDialog() string {
	return strings.Join([]string{
		styles.title.Render("Disconnect?"),
		"Transfers keep running on the server; progress updates stop until you reconnect.",
	}, "\n")
}

func (m *Model) renderHelp() string {
	var bindings []key.Binding
	switch m.view {
	case StatusView:
		bindings = []key.Binding{m.keys.connect, m.keys.disconnect, m.keys.extend, m.keys.next, m.keys.quit}
	case TransfersView:
		bindings = []key.Binding{m.keys.refresh, m.keys.next, m.keys.quit}
	case SettingsView:
		bindings = []key.Binding{m.keys.less, m.keys.more, m.keys.next, m.keys.quit}
	case DialogView:
		bindings = []key.Binding{m.keys.yes, m.keys.no}
	}
	return m.help.ShortHelpView(bindings)
}
