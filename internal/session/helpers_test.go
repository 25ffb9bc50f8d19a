package session

import (
	"context"
	"errors"
	"io"
	"sort"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/desertthunder/mediasync/internal/push"
	"github.com/desertthunder/mediasync/internal/shared"
)

var epoch = time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)

type fakeTimer struct {
	clock   *fakeClock
	at      time.Time
	seq     int
	f       func()
	stopped bool
	fired   bool
}

func (t *fakeTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	live := !t.stopped && !t.fired
	t.stopped = true
	return live
}

// fakeClock fires timers from Advance. settle runs after each firing so work posted by the callback completes
// before the next timer is considered.
type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	seq    int
	timers []*fakeTimer
	settle func()
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: epoch}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) AfterFunc(d time.Duration, f func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seq++
	t := &fakeTimer{clock: c, at: c.now.Add(d), seq: c.seq, f: f}
	c.timers = append(c.timers, t)
	return t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	target := c.now.Add(d)
	c.mu.Unlock()

	for {
		c.mu.Lock()
		next := c.nextDue(target)
		if next == nil {
			c.now = target
			c.mu.Unlock()
			if c.settle != nil {
				c.settle()
			}
			return
		}
		next.fired = true
		c.now = next.at
		c.mu.Unlock()

		next.f()
		if c.settle != nil {
			c.settle()
		}
	}
}

func (c *fakeClock) nextDue(target time.Time) *fakeTimer {
	var due []*fakeTimer
	for _, t := range c.timers {
		if !t.stopped && !t.fired && !t.at.After(target) {
			due = append(due, t)
		}
	}
	if len(due) == 0 {
		return nil
	}
	sort.Slice(due, func(i, j int) bool {
		if due[i].at.Equal(due[j].at) {
			return due[i].seq < due[j].seq
		}
		return due[i].at.Before(due[j].at)
	})
	return due[0]
}

// Pending counts timers that have neither fired nor been stopped.
func (c *fakeClock) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, t := range c.timers {
		if !t.stopped && !t.fired {
			n++
		}
	}
	return n
}

// flush runs the loop until its queue is empty.
func (l *loop) flush() {
	for {
		empty := false
		if !l.call(func() {
			l.mu.Lock()
			empty = len(l.queue) == 0
			l.mu.Unlock()
		}) {
			return
		}
		if empty {
			return
		}
	}
}

type fakeChannel struct {
	messages chan push.Message
	done     chan struct{}
	once     sync.Once

	mu     sync.Mutex
	err    error
	sent   []time.Time
	closed bool
}

func newFakeChannel() *fakeChannel {
	return &fakeChannel{
		messages: make(chan push.Message, 8),
		done:     make(chan struct{}),
	}
}

func (c *fakeChannel) Messages() <-chan push.Message { return c.messages }
func (c *fakeChannel) Done() <-chan struct{}         { return c.done }

func (c *fakeChannel) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

func (c *fakeChannel) SendActivity(at time.Time) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return shared.ErrNotConnected
	}
	c.sent = append(c.sent, at)
	return nil
}

func (c *fakeChannel) Close() error {
	c.once.Do(func() {
		c.mu.Lock()
		c.closed = true
		c.mu.Unlock()
		close(c.done)
	})
	return nil
}

// kill simulates the server going away.
func (c *fakeChannel) kill(err error) {
	c.once.Do(func() {
		c.mu.Lock()
		c.closed = true
		c.err = err
		c.mu.Unlock()
		close(c.done)
	})
}

func (c *fakeChannel) Sent() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.sent)
}

func (c *fakeChannel) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// fakeDialer hands out fresh fake channels, or fails with err.
type fakeDialer struct {
	mu       sync.Mutex
	err      error
	channels []*fakeChannel
	calls    atomic.Int32
	gate     chan struct{}
}

func (d *fakeDialer) Dial(ctx context.Context) (Channel, error) {
	d.calls.Add(1)
	if d.gate != nil {
		select {
		case <-d.gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.err != nil {
		return nil, d.err
	}
	ch := newFakeChannel()
	d.channels = append(d.channels, ch)
	return ch, nil
}

func (d *fakeDialer) Last() *fakeChannel {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.channels) == 0 {
		return nil
	}
	return d.channels[len(d.channels)-1]
}

type fakeOracle struct {
	active atomic.Bool
	calls  atomic.Int32
	during func()
}

func (o *fakeOracle) HasActiveTransfers(ctx context.Context) bool {
	o.calls.Add(1)
	if o.during != nil {
		o.during()
	}
	return o.active.Load()
}

type harness struct {
	t      *testing.T
	clock  *fakeClock
	dialer *fakeDialer
	oracle *fakeOracle
	m      *Manager
	sub    *Subscription
}

type harnessOption func(*Options)

func withTimeout(minutes int) harnessOption {
	return func(o *Options) { o.TimeoutMinutes = minutes }
}

func withAutoConnect() harnessOption {
	return func(o *Options) { o.AutoConnect = true }
}

func withForward(f func(push.Message)) harnessOption {
	return func(o *Options) { o.Forward = f }
}

// newHarness builds a manager whose dials and oracle queries run inline on the loop.
func newHarness(t *testing.T, opts ...harnessOption) *harness {
	t.Helper()

	h := &harness{
		t:      t,
		clock:  newFakeClock(),
		dialer: &fakeDialer{},
		oracle: &fakeOracle{},
	}

	o := Options{
		Dialer:         h.dialer,
		Oracle:         h.oracle,
		Clock:          h.clock,
		Logger:         shared.NewLogger(io.Discard),
		TimeoutMinutes: 5,
	}
	for _, opt := range opts {
		opt(&o)
	}

	h.m = newManager(o, func(f func()) { f() })
	h.clock.settle = h.m.loop.flush
	h.sub = h.m.Subscribe()
	h.m.loop.flush()

	t.Cleanup(func() { h.m.Close() })
	return h
}

func (h *harness) connect() {
	h.t.Helper()
	if err := h.m.Connect(); err != nil {
		h.t.Fatalf("connect failed: %v", err)
	}
	h.m.loop.flush()
	if got := h.m.Status().State; got != Connected {
		h.t.Fatalf("expected connected, got %s", got)
	}
}

func (h *harness) signal(sig Signal) {
	h.m.HandleSignal(sig)
	h.m.loop.flush()
}

// events drains the buffered events.
func (h *harness) events() []Event {
	var out []Event
	for {
		select {
		case e, ok := <-h.sub.Events():
			if !ok {
				return out
			}
			out = append(out, e)
		default:
			return out
		}
	}
}

func count[T Event](events []Event) int {
	n := 0
	for _, e := range events {
		if _, ok := e.(T); ok {
			n++
		}
	}
	return n
}

var errNetwork = errors.New("connection reset by peer")

func pushDialerTo(url string) *push.Dialer {
	return push.NewDialer(url, "", time.Second, shared.NewLogger(io.Discard))
}
