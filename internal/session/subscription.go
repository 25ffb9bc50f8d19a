package session

import "sync"

// Subscription receives status snapshots and events from a [Manager].
//
// The status channel holds only the latest snapshot; events are buffered and dropped when the buffer is full.
// Both channels are closed by [Subscription.Close] or when the manager closes.
type Subscription struct {
	m      *Manager
	status chan Status
	events chan Event
	once   sync.Once
}

// Subscribe registers a subscriber. The current status is delivered immediately.
func (m *Manager) Subscribe() *Subscription {
	sub := &Subscription{
		m:      m,
		status: make(chan Status, statusBuffer),
		events: make(chan Event, eventBuffer),
	}

	ok := m.loop.call(func() {
		if m.closed {
			sub.close()
			return
		}
		m.subs[sub] = struct{}{}
		sub.offer(m.buildStatus())
	})
	if !ok {
		sub.close()
	}

	return sub
}

func (s *Subscription) Status() <-chan Status { return s.status }

func (s *Subscription) Events() <-chan Event { return s.events }

// Close unregisters the subscription.
func (s *Subscription) Close() {
	s.m.loop.call(func() {
		if _, ok := s.m.subs[s]; ok {
			delete(s.m.subs, s)
			s.close()
		}
	})
}

// offer replaces any unread snapshot with s. Only the loop calls it.
func (s *Subscription) offer(status Status) {
	select {
	case s.status <- status:
		return
	default:
	}
	select {
	case <-s.status:
	default:
	}
	select {
	case s.status <- status:
	default:
	}
}

func (s *Subscription) close() {
	s.once.Do(func() {
		close(s.status)
		close(s.events)
	})
}
