package session

import (
	"time"

	"github.com/charmbracelet/log"
)

const (
	checkInterval = time.Minute
	warnAbove     = time.Minute
	warnAtOrBelow = 2 * time.Minute
)

// monitor owns the idle countdown and the minute check. It runs on the manager loop.
//
// Every armed countdown gets a new generation; a fire whose generation is not current is ignored.
type monitor struct {
	clock    Clock
	post     func(func()) bool
	evaluate func(done func(protected bool))
	logger   *log.Logger

	onProtected func()
	onExpired   func()
	onWarning   func(minutes int)
	onTick      func()

	timeout      time.Duration
	armedTimeout time.Duration
	armedAt      time.Time

	active     bool
	gen        uint64
	timer      Timer
	tickGen    uint64
	ticker     Timer
	warned     bool
	checking   bool
	evaluating bool
	protected  bool
}

func (m *monitor) start() {
	m.active = true
	m.protected = false
	m.arm()
	m.scheduleTick()
}

func (m *monitor) stop() {
	m.active = false
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
	if m.ticker != nil {
		m.ticker.Stop()
		m.ticker = nil
	}
	m.gen++
	m.tickGen++
	m.warned = false
	m.checking = false
	m.evaluating = false
	m.protected = false
}

func (m *monitor) recordActivity() {
	if !m.active {
		return
	}
	m.arm()
}

// arm cancels the live countdown and starts a full one with the current timeout.
func (m *monitor) arm() {
	if m.timer != nil {
		m.timer.Stop()
	}
	m.gen++
	gen := m.gen

	m.armedTimeout = m.timeout
	m.armedAt = m.clock.Now()
	m.warned = false

	m.timer = m.clock.AfterFunc(m.armedTimeout, func() {
		m.post(func() { m.fire(gen) })
	})
}

func (m *monitor) fire(gen uint64) {
	if !m.active || gen != m.gen {
		m.logger.Debug("discarding stale countdown", "gen", gen)
		return
	}
	m.timer = nil
	m.evaluating = true

	m.evaluate(func(protected bool) {
		m.evaluating = false
		if !m.active {
			m.logger.Debug("connection left while evaluating, discarding")
			return
		}

		m.protected = protected
		if protected {
			m.logger.Info("active transfer protects session, re-arming", "timeout", m.timeout)
			m.arm()
			m.onProtected()
			return
		}

		if gen != m.gen {
			m.logger.Debug("activity during evaluation, discarding drop")
			return
		}
		m.onExpired()
	})
}

func (m *monitor) scheduleTick() {
	if m.ticker != nil {
		m.ticker.Stop()
	}
	gen := m.tickGen
	m.ticker = m.clock.AfterFunc(checkInterval, func() {
		m.post(func() { m.tick(gen) })
	})
}

func (m *monitor) tick(gen uint64) {
	if !m.active || gen != m.tickGen {
		return
	}
	m.scheduleTick()
	m.onTick()

	left := m.remaining()
	if left <= warnAbove || left > warnAtOrBelow || m.warned || m.checking || m.evaluating {
		return
	}

	m.checking = true
	countdown := m.gen
	m.evaluate(func(protected bool) {
		if gen != m.tickGen {
			return
		}
		m.checking = false
		if countdown != m.gen {
			return
		}
		m.protected = protected
		if protected || m.warned {
			return
		}
		m.warned = true
		m.onWarning(m.remainingMinutes())
	})
}

func (m *monitor) remaining() time.Duration {
	if !m.active {
		return 0
	}
	left := m.armedTimeout - m.clock.Now().Sub(m.armedAt)
	if left < 0 {
		return 0
	}
	return left
}

func (m *monitor) remainingMinutes() int {
	return int(m.remaining() / time.Minute)
}
