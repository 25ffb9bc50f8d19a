package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/mediasync/internal/push"
	"github.com/desertthunder/mediasync/internal/shared"
)

const (
	statusBuffer = 1
	eventBuffer  = 64
)

// Options configures a [Manager].
type Options struct {
	Dialer Dialer
	Oracle Oracle
	// Clock defaults to [SystemClock].
	Clock  Clock
	Logger *log.Logger

	// TimeoutMinutes is clamped to [shared.MinTimeoutMinutes, shared.MaxTimeoutMinutes]; zero selects the default.
	TimeoutMinutes int
	// AutoConnect makes the manager attempt one connection right after construction.
	AutoConnect bool
	// Surfaces overrides [DefaultSurfaces].
	Surfaces []string
	// DialTimeout bounds the Connecting state.
	DialTimeout time.Duration
	// Forward receives inbound push messages. It is called from the channel's reader goroutine and never counts
	// as activity.
	Forward func(push.Message)
}

// Manager owns the push connection, the idle countdown and the published [Status].
//
// All state lives on a single goroutine; public methods post work to it.
type Manager struct {
	loop    *loop
	clock   Clock
	logger  *log.Logger
	oracle  Oracle
	forward func(push.Message)
	spawn   func(func())

	ctx    context.Context
	cancel context.CancelFunc
	once   sync.Once
	status atomic.Pointer[Status]

	conn      *connection
	tracker   *tracker
	monitor   *monitor
	sessionID string
	subs      map[*Subscription]struct{}
	closed    bool
}

// NewManager builds a manager and, when opts.AutoConnect is set, starts the one automatic connection attempt.
func NewManager(opts Options) *Manager {
	return newManager(opts, func(f func()) { go f() })
}

func newManager(opts Options, spawn func(func())) *Manager {
	if opts.Clock == nil {
		opts.Clock = SystemClock()
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Oracle == nil {
		opts.Oracle = OracleFunc(func(context.Context) bool { return false })
	}
	if opts.DialTimeout <= 0 {
		opts.DialTimeout = 15 * time.Second
	}
	minutes := shared.DefaultTimeoutMinutes
	if opts.TimeoutMinutes != 0 {
		minutes = clampMinutes(opts.TimeoutMinutes)
	}

	ctx, cancel := context.WithCancel(context.Background())
	logger := shared.WithLogger(opts.Logger, "component", "session")

	m := &Manager{
		loop:    newLoop(),
		clock:   opts.Clock,
		logger:  logger,
		oracle:  opts.Oracle,
		forward: opts.Forward,
		spawn:   spawn,
		ctx:     ctx,
		cancel:  cancel,
		conn:    &connection{dialer: opts.Dialer, dialTimeout: opts.DialTimeout},
		subs:    make(map[*Subscription]struct{}),
	}

	m.tracker = newTracker(opts.Surfaces, opts.Clock, m.loop.post)
	m.tracker.connected = func() bool { return m.conn.state == Connected }
	m.tracker.record = func() { m.recordActivity() }

	m.monitor = &monitor{
		clock:       opts.Clock,
		post:        m.loop.post,
		evaluate:    m.evaluate,
		logger:      shared.WithLogger(opts.Logger, "component", "monitor"),
		timeout:     time.Duration(minutes) * time.Minute,
		onProtected: m.protected,
		onExpired:   m.policyDrop,
		onWarning:   m.warn,
		onTick:      m.publish,
	}

	initial := m.buildStatus()
	m.status.Store(&initial)

	if opts.AutoConnect && !m.conn.hasEverConnected {
		m.loop.post(func() {
			m.logger.Info("auto-connecting")
			m.connect()
		})
	}

	return m
}

// Connect starts a connection attempt. It is a no-op while connecting or connected.
func (m *Manager) Connect() error {
	if !m.loop.call(m.connect) {
		return shared.ErrSessionClosed
	}
	return nil
}

// Disconnect drops the connection or aborts an outstanding attempt.
func (m *Manager) Disconnect() error {
	if !m.loop.call(func() { m.drop(ReasonLocal) }) {
		return shared.ErrSessionClosed
	}
	return nil
}

// ExtendSession records activity directly. It fails with [shared.ErrNotConnected] unless connected.
func (m *Manager) ExtendSession() error {
	var recorded bool
	if !m.loop.call(func() { recorded = m.recordActivity() }) {
		return shared.ErrSessionClosed
	}
	if !recorded {
		return shared.ErrNotConnected
	}
	return nil
}

// SetTimeout changes the idle timeout and returns the clamped value in minutes.
// After Close nothing is applied and it returns [shared.ErrSessionClosed].
//
// A countdown that is already running keeps its length; the new timeout applies from the next arm.
func (m *Manager) SetTimeout(minutes int) (int, error) {
	clamped := clampMinutes(minutes)
	if !m.loop.call(func() {
		m.monitor.timeout = time.Duration(clamped) * time.Minute
		m.logger.Info("idle timeout changed", "minutes", clamped)
		m.publish()
	}) {
		return 0, shared.ErrSessionClosed
	}
	return clamped, nil
}

// RemainingMinutes returns the whole minutes left on the countdown, or zero when not connected.
func (m *Manager) RemainingMinutes() int {
	var minutes int
	m.loop.call(func() { minutes = m.monitor.remainingMinutes() })
	return minutes
}

// Status returns the latest published snapshot.
func (m *Manager) Status() Status {
	return *m.status.Load()
}

// HandleSignal classifies a raw interaction. It never blocks.
func (m *Manager) HandleSignal(sig Signal) {
	m.loop.post(func() {
		if sig.At.IsZero() {
			sig.At = m.clock.Now()
		}
		m.tracker.handle(sig)
	})
}

// CredentialsChanged installs a new dialer. A live or pending connection is dropped into [ConfigChanged].
func (m *Manager) CredentialsChanged(d Dialer) {
	m.loop.call(func() {
		m.conn.dialer = d
		if m.conn.state == Connected || m.conn.state == Connecting {
			m.drop(ReasonConfigChanged)
		}
	})
}

// Close disconnects, stops all timers and closes every subscription.
func (m *Manager) Close() error {
	m.once.Do(func() {
		m.loop.call(func() {
			m.drop(ReasonLocal)
			m.tracker.reset()
			m.monitor.stop()
			m.closed = true
			for sub := range m.subs {
				sub.close()
			}
			m.subs = nil
		})
		m.cancel()
		m.loop.stop()
	})
	return nil
}

func (m *Manager) connect() {
	attempt, ok := m.conn.begin()
	if !ok {
		m.logger.Debug("connect ignored", "state", m.conn.state)
		return
	}

	dialer := m.conn.dialer
	if dialer == nil {
		m.conn.failed(attempt, fmt.Errorf("%w: no dialer configured", shared.ErrConnectFailed))
		m.emit(DisconnectedEvent{At: m.clock.Now(), Reason: ReasonConnectFailed, Err: m.conn.lastErr})
		m.publish()
		return
	}

	ctx, cancel := context.WithTimeout(m.ctx, m.conn.dialTimeout)
	m.conn.cancelDial = cancel
	m.logger.Info("connecting", "attempt", attempt)
	m.publish()

	m.spawn(func() {
		ch, err := dialer.Dial(ctx)
		cancel()
		if !m.loop.post(func() { m.dialed(attempt, ch, err) }) && ch != nil {
			ch.Close()
		}
	})
}

func (m *Manager) dialed(attempt uint64, ch Channel, err error) {
	if err == nil && ch == nil {
		err = errors.New("dialer returned no channel")
	}

	if err != nil {
		switch {
		case errors.Is(err, context.DeadlineExceeded):
			err = fmt.Errorf("%w: %w: %v", shared.ErrConnectFailed, shared.ErrTimeout, err)
		case !errors.Is(err, shared.ErrConnectFailed):
			err = fmt.Errorf("%w: %v", shared.ErrConnectFailed, err)
		}
		if !m.conn.failed(attempt, err) {
			m.logger.Debug("discarding stale dial failure", "attempt", attempt, "err", err)
			return
		}
		m.logger.Error("connection attempt failed", "attempt", attempt, "err", err)
		m.emit(DisconnectedEvent{At: m.clock.Now(), SessionID: m.sessionID, Reason: ReasonConnectFailed, Err: err})
		m.publish()
		return
	}

	if !m.conn.established(attempt, ch) {
		m.logger.Debug("discarding stale connection", "attempt", attempt)
		go ch.Close()
		return
	}

	now := m.clock.Now()
	m.sessionID = shared.GenerateID()
	m.tracker.touch(now)
	m.monitor.start()
	m.watch(ch)

	m.logger.Info("connected", "session_id", m.sessionID)
	m.emit(ConnectedEvent{At: now, SessionID: m.sessionID})
	m.publish()
}

// watch forwards inbound messages and reports the channel's end to the loop.
func (m *Manager) watch(ch Channel) {
	go func() {
		messages := ch.Messages()
		for {
			select {
			case msg, ok := <-messages:
				if !ok {
					messages = nil
					continue
				}
				if m.forward != nil {
					m.forward(msg)
				}
			case <-ch.Done():
				m.loop.post(func() { m.channelClosed(ch) })
				return
			}
		}
	}()
}

func (m *Manager) channelClosed(ch Channel) {
	err := ch.Err()
	if err == nil {
		err = shared.ErrConnectionLost
	}
	if !m.conn.lost(ch, err) {
		m.logger.Debug("ignoring close of inactive channel")
		return
	}

	m.leaveConnected()
	m.logger.Warn("connection lost", "session_id", m.sessionID, "err", err)
	m.emit(DisconnectedEvent{At: m.clock.Now(), SessionID: m.sessionID, Reason: ReasonUnexpected, Err: err})
	m.publish()
}

// drop applies an intentional transition. It reports false when the current state does not allow it.
func (m *Manager) drop(reason DisconnectReason) bool {
	wasConnected := m.conn.state == Connected
	idleFor := m.clock.Now().Sub(m.tracker.lastActivity)

	ch, ok := m.conn.drop(reason)
	if !ok {
		return false
	}
	if wasConnected {
		m.leaveConnected()
	}
	if ch != nil {
		go ch.Close()
	}

	now := m.clock.Now()
	switch reason {
	case ReasonPolicy:
		m.logger.Info("idle timeout, disconnecting", "session_id", m.sessionID, "idle", idleFor)
		m.emit(AutoDisconnectedEvent{At: now, SessionID: m.sessionID, IdleFor: idleFor})
	case ReasonConfigChanged:
		m.logger.Info("credentials changed, disconnecting", "session_id", m.sessionID)
		m.emit(ConfigChangedEvent{At: now, SessionID: m.sessionID})
	default:
		m.logger.Info("disconnected", "session_id", m.sessionID, "reason", reason)
		m.emit(DisconnectedEvent{At: now, SessionID: m.sessionID, Reason: reason})
	}
	m.publish()
	return true
}

// policyDrop is the idle monitor's disconnect request. It is discarded unless still connected.
func (m *Manager) policyDrop() {
	if m.conn.state != Connected {
		m.logger.Debug("discarding stale policy drop", "state", m.conn.state)
		return
	}
	m.drop(ReasonPolicy)
}

func (m *Manager) leaveConnected() {
	m.monitor.stop()
	m.tracker.reset()
}

func (m *Manager) recordActivity() bool {
	if m.conn.state != Connected {
		return false
	}

	now := m.clock.Now()
	m.tracker.touch(now)
	m.monitor.recordActivity()

	if ch := m.conn.channel; ch != nil {
		if err := ch.SendActivity(now); err != nil {
			m.logger.Debug("activity not sent", "err", err)
		}
	}

	m.emit(ActivityEvent{At: now})
	m.publish()
	return true
}

// evaluate queries the oracle off the loop and delivers the answer back on it.
func (m *Manager) evaluate(done func(protected bool)) {
	m.spawn(func() {
		protected := m.oracle.HasActiveTransfers(m.ctx)
		m.loop.post(func() { done(protected) })
	})
}

func (m *Manager) protected() {
	m.emit(ProtectionEvent{At: m.clock.Now(), SessionID: m.sessionID, TimeoutMinutes: int(m.monitor.timeout / time.Minute)})
	m.publish()
}

func (m *Manager) warn(minutes int) {
	m.logger.Warn("session will idle out soon", "minutes_remaining", minutes)
	m.emit(WarningEvent{At: m.clock.Now(), SessionID: m.sessionID, MinutesRemaining: minutes})
	m.publish()
}

func (m *Manager) buildStatus() Status {
	s := Status{
		State:            m.conn.state,
		TimeoutMinutes:   int(m.monitor.timeout / time.Minute),
		SessionID:        m.sessionID,
		Reason:           m.conn.reason,
		Unexpected:       m.conn.state == Disconnected && m.conn.reason == ReasonUnexpected,
		Err:              m.conn.lastErr,
		HasEverConnected: m.conn.hasEverConnected,
		UpdatedAt:        m.clock.Now(),
	}

	if m.conn.state == Connected {
		s.MinutesRemaining = m.monitor.remainingMinutes()
		s.Extendable = true
		s.Warning = m.monitor.warned
		s.Protected = m.monitor.protected
	}

	return s
}

func (m *Manager) publish() {
	s := m.buildStatus()
	m.status.Store(&s)
	for sub := range m.subs {
		sub.offer(s)
	}
}

func (m *Manager) emit(e Event) {
	for sub := range m.subs {
		select {
		case sub.events <- e:
		default:
			m.logger.Warn("subscriber is not keeping up, dropping event", "event", e.Name())
		}
	}
}

func clampMinutes(minutes int) int {
	return min(max(minutes, shared.MinTimeoutMinutes), shared.MaxTimeoutMinutes)
}
