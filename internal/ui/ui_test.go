package ui

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/mediasync/internal/models"
	"github.com/desertthunder/mediasync/internal/push"
	"github.com/desertthunder/mediasync/internal/session"
	"github.com/desertthunder/mediasync/internal/shared"
	"github.com/desertthunder/mediasync/internal/tasks"
	th "github.com/desertthunder/mediasync/internal/testing"
)

var now = time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)

type mockController struct {
	mu          sync.Mutex
	status      session.Status
	signals     []session.Signal
	connects    int
	disconnects int
	extends     int
	extendErr   error
	timeoutErr  error
}

func (m *mockController) Connect() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.connects++
	m.status.State = session.Connecting
	return nil
}

func (m *mockController) Disconnect() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.disconnects++
	m.status.State = session.Disconnected
	return nil
}

func (m *mockController) ExtendSession() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.extends++
	return m.extendErr
}

func (m *mockController) SetTimeout(minutes int) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.timeoutErr != nil {
		return 0, m.timeoutErr
	}
	minutes = max(shared.MinTimeoutMinutes, min(shared.MaxTimeoutMinutes, minutes))
	m.status.TimeoutMinutes = minutes
	return minutes, nil
}

func (m *mockController) Status() session.Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status
}

func (m *mockController) HandleSignal(sig session.Signal) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.signals = append(m.signals, sig)
}

func (m *mockController) last() session.Signal {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.signals[len(m.signals)-1]
}

func newTestModel(ctrl *mockController) *Model {
	return NewModel(context.Background(), ModelOpts{Controller: ctrl, Now: func() time.Time { return now }})
}

func keyRune(r rune) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}}
}

func run(t *testing.T, cmd tea.Cmd) tea.Msg {
	t.Helper()
	if cmd == nil {
		t.Fatal("expected a command")
	}
	return cmd()
}

func TestModel_Signals(t *testing.T) {
	t.Run("keys on the status view", func(t *testing.T) {
		ctrl := &mockController{}
		m := newTestModel(ctrl)

		m.Update(keyRune('x'))

		sig := ctrl.last()
		if sig.Kind != session.Key || sig.Surface != session.SurfaceStatus || !sig.At.Equal(now) {
			t.Errorf("signal = %+v", sig)
		}
	})

	t.Run("mouse press is a pointer signal", func(t *testing.T) {
		ctrl := &mockController{}
		m := newTestModel(ctrl)

		m.Update(tea.MouseMsg{Action: tea.MouseActionPress, Button: tea.MouseButtonLeft})
		m.Update(tea.MouseMsg{Action: tea.MouseActionMotion})

		if len(ctrl.signals) != 1 || ctrl.signals[0].Kind != session.Pointer {
			t.Errorf("signals = %+v", ctrl.signals)
		}
	})

	t.Run("focus changes are visibility signals", func(t *testing.T) {
		ctrl := &mockController{}
		m := newTestModel(ctrl)

		m.Update(tea.BlurMsg{})
		m.Update(tea.FocusMsg{})

		if len(ctrl.signals) != 2 {
			t.Fatalf("signals = %+v", ctrl.signals)
		}
		if ctrl.signals[0].Kind != session.Visibility || !ctrl.signals[0].Hidden {
			t.Errorf("blur signal = %+v", ctrl.signals[0])
		}
		if ctrl.signals[1].Kind != session.Visibility || ctrl.signals[1].Hidden {
			t.Errorf("focus signal = %+v", ctrl.signals[1])
		}
	})

	t.Run("views report their own surface", func(t *testing.T) {
		ctrl := &mockController{}
		m := newTestModel(ctrl)

		m.Update(tea.KeyMsg{Type: tea.KeyTab})
		m.Update(keyRune('j'))
		if sig := ctrl.last(); sig.Surface != session.SurfaceTransfers {
			t.Errorf("transfers surface = %q", sig.Surface)
		}

		m.Update(tea.KeyMsg{Type: tea.KeyTab})
		m.Update(keyRune('l'))
		if sig := ctrl.last(); sig.Surface != session.SurfaceSettings {
			t.Errorf("settings surface = %q", sig.Surface)
		}
	})
}

func TestModel_Actions(t *testing.T) {
	t.Run("connect is a submit", func(t *testing.T) {
		ctrl := &mockController{}
		m := newTestModel(ctrl)

		_, cmd := m.Update(keyRune('c'))
		if sig := ctrl.last(); sig.Kind != session.Submit {
			t.Errorf("signal = %+v", sig)
		}

		msg := run(t, cmd)
		m.Update(msg)
		if ctrl.connects != 1 {
			t.Errorf("connects = %d", ctrl.connects)
		}
		if m.status.State != session.Connecting {
			t.Errorf("state = %v, want connecting", m.status.State)
		}
	})

	t.Run("disconnect asks first", func(t *testing.T) {
		ctrl := &mockController{status: session.Status{State: session.Connected}}
		m := newTestModel(ctrl)

		m.Update(keyRune('d'))
		if m.view != DialogView {
			t.Fatalf("view = %v, want dialog", m.view)
		}
		if !strings.Contains(m.View(), "Disconnect?") {
			t.Errorf("dialog not rendered")
		}

		m.Update(keyRune('n'))
		if m.view != StatusView || ctrl.disconnects != 0 {
			t.Errorf("view = %v, disconnects = %d", m.view, ctrl.disconnects)
		}

		m.Update(keyRune('d'))
		_, cmd := m.Update(keyRune('y'))
		if sig := ctrl.last(); sig.Kind != session.Submit || sig.Surface != session.SurfaceDialog {
			t.Errorf("signal = %+v", sig)
		}
		m.Update(run(t, cmd))
		if ctrl.disconnects != 1 {
			t.Errorf("disconnects = %d", ctrl.disconnects)
		}
	})

	t.Run("extend errors are shown", func(t *testing.T) {
		ctrl := &mockController{extendErr: shared.ErrNotConnected}
		m := newTestModel(ctrl)

		_, cmd := m.Update(keyRune('e'))
		m.Update(run(t, cmd))

		if !errors.Is(m.err, shared.ErrNotConnected) {
			t.Errorf("err = %v", m.err)
		}
		if len(ctrl.signals) != 0 {
			t.Errorf("extend should not also report a signal, got %+v", ctrl.signals)
		}
		if !strings.Contains(m.View(), "not connected") {
			t.Errorf("error not rendered")
		}
	})

	t.Run("settings adjust the timeout", func(t *testing.T) {
		ctrl := &mockController{status: session.Status{TimeoutMinutes: 30}}
		m := newTestModel(ctrl)
		m.view = SettingsView

		m.Update(keyRune('l'))
		if m.status.TimeoutMinutes != 35 {
			t.Errorf("timeout = %d, want 35", m.status.TimeoutMinutes)
		}

		for range 10 {
			m.Update(keyRune('h'))
		}
		if m.status.TimeoutMinutes != shared.MinTimeoutMinutes {
			t.Errorf("timeout = %d, want %d", m.status.TimeoutMinutes, shared.MinTimeoutMinutes)
		}
		if !strings.Contains(m.View(), "Idle timeout: 5 minutes") {
			t.Errorf("settings not rendered: %s", m.View())
		}
	})

	t.Run("rejected timeout keeps the old value", func(t *testing.T) {
		ctrl := &mockController{status: session.Status{TimeoutMinutes: 30}, timeoutErr: shared.ErrSessionClosed}
		m := newTestModel(ctrl)
		m.view = SettingsView

		m.Update(keyRune('l'))
		if m.status.TimeoutMinutes != 30 {
			t.Errorf("timeout = %d, want 30", m.status.TimeoutMinutes)
		}
		if !errors.Is(m.err, shared.ErrSessionClosed) {
			t.Errorf("err = %v, want ErrSessionClosed", m.err)
		}
	})

	t.Run("quit", func(t *testing.T) {
		m := newTestModel(&mockController{})
		_, cmd := m.Update(keyRune('q'))
		if _, ok := run(t, cmd).(tea.QuitMsg); !ok {
			t.Error("expected quit")
		}
	})
}

func TestModel_Streams(t *testing.T) {
	t.Run("status and events", func(t *testing.T) {
		statuses := make(chan session.Status, 1)
		events := make(chan session.Event, 1)
		m := NewModel(context.Background(), ModelOpts{Controller: &mockController{}, Statuses: statuses, Events: events})

		statuses <- session.Status{State: session.Connected, MinutesRemaining: 2, Warning: true, TimeoutMinutes: 30}
		m.Update(run(t, m.waitForStatus()))
		events <- session.WarningEvent{At: now, MinutesRemaining: 2}
		m.Update(run(t, m.waitForEvent()))

		view := m.View()
		if !strings.Contains(view, "Idle disconnect in 2 minutes") {
			t.Errorf("countdown not rendered: %s", view)
		}
		if !strings.Contains(view, "press e to stay connected") {
			t.Errorf("warning not rendered: %s", view)
		}
	})

	t.Run("closed channels stop listening", func(t *testing.T) {
		statuses := make(chan session.Status)
		close(statuses)
		m := NewModel(context.Background(), ModelOpts{Controller: &mockController{}, Statuses: statuses})

		if msg := run(t, m.waitForStatus()); msg != nil {
			t.Errorf("msg = %v, want nil", msg)
		}
		if m.waitForEvent() != nil {
			t.Error("nil events channel should not produce a command")
		}
	})

	t.Run("board progress refreshes the list", func(t *testing.T) {
		lister := &th.MockTransferLister{Transfers: []models.Transfer{{ID: "a", Source: "/media/a", Status: models.TransferRunning}}}
		board := tasks.NewTransferBoard(lister, tasks.BoardOpts{})
		progress := make(chan tasks.ProgressUpdate, 4)
		m := NewModel(context.Background(), ModelOpts{Controller: &mockController{}, Board: board, Progress: progress})

		if err := board.Refresh(context.Background(), progress); err != nil {
			t.Fatalf("Refresh() error = %v", err)
		}
		m.Update(run(t, m.waitForProgress()))

		if n := len(m.transfers.Items()); n != 1 {
			t.Fatalf("items = %d, want 1", n)
		}

		board.Apply(push.Message{Type: push.TypeTransferProgress, TransferID: "a", Progress: 50}, progress)
		m.Update(run(t, m.waitForProgress()))
		if !strings.Contains(m.notice, "50.0%") {
			t.Errorf("notice = %q", m.notice)
		}
		if !strings.Contains(m.renderStatus(), "Active transfers: 1") {
			t.Errorf("active count not rendered")
		}
	})
}

func TestDescribe(t *testing.T) {
	tests := []struct {
		event session.Event
		want  string
	}{
		{session.ConnectedEvent{}, "Connected"},
		{session.DisconnectedEvent{Reason: session.ReasonConnectFailed, Err: errors.New("refused")}, "Connection failed: refused"},
		{session.DisconnectedEvent{Reason: session.ReasonUnexpected}, "Connection lost"},
		{session.DisconnectedEvent{Reason: session.ReasonLocal}, "Disconnected"},
		{session.AutoDisconnectedEvent{}, "inactivity"},
		{session.ConfigChangedEvent{}, "Credentials changed"},
		{session.ProtectionEvent{}, "Active transfers"},
	}

	for _, tt := range tests {
		t.Run(tt.event.Name(), func(t *testing.T) {
			if got := describe(tt.event); !strings.Contains(got, tt.want) {
				t.Errorf("describe() = %q, want it to contain %q", got, tt.want)
			}
		})
	}

	if got := describe(session.ActivityEvent{}); got != "" {
		t.Errorf("activity should not be described, got %q", got)
	}
}
