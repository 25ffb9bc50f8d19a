package session

import "sync"

// loop runs posted closures one at a time on a single goroutine.
//
// The queue is unbounded so posting never blocks, including from timer callbacks and I/O goroutines.
// Closures running on the loop must not use call.
type loop struct {
	mu     sync.Mutex
	queue  []func()
	closed bool
	wake   chan struct{}
	done   chan struct{}
}

func newLoop() *loop {
	l := &loop{
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
	}
	go l.run()
	return l
}

func (l *loop) run() {
	defer close(l.done)

	for {
		l.mu.Lock()
		if len(l.queue) == 0 {
			closed := l.closed
			l.mu.Unlock()
			if closed {
				return
			}
			<-l.wake
			continue
		}
		f := l.queue[0]
		l.queue[0] = nil
		l.queue = l.queue[1:]
		l.mu.Unlock()

		f()
	}
}

// post enqueues f. It reports false once the loop is stopping.
func (l *loop) post(f func()) bool {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return false
	}
	l.queue = append(l.queue, f)
	l.mu.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
	}
	return true
}

// call runs f on the loop and waits for it to finish.
func (l *loop) call(f func()) bool {
	finished := make(chan struct{})
	if !l.post(func() {
		defer close(finished)
		f()
	}) {
		return false
	}
	<-finished
	return true
}

// stop rejects further posts, drains what is queued and waits for the goroutine to exit.
func (l *loop) stop() {
	l.mu.Lock()
	l.closed = true
	l.mu.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
	}
	<-l.done
}
