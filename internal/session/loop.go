package session

import (
	"errors"
	"log"
	"sync"
)

// ErrClosed is returned for work handed to a session that has shut down.
var ErrClosed = errors.New("session closed")

// Loop runs closures one at a time on a single goroutine. Everything that
// touches panel state goes through it.
type Loop struct {
	ch       chan func()
	done     chan struct{}
	stopped  chan struct{}
	stopOnce sync.Once
	logger   *log.Logger
}

// NewLoop starts a loop.
func NewLoop(logger *log.Logger) *Loop {
	l := &Loop{
		// Large buffer so bursts of push events don't stall transports.
		ch:      make(chan func(), 256),
		done:    make(chan struct{}),
		stopped: make(chan struct{}),
		logger:  logger,
	}
	go l.run()
	return l
}

// Post queues fn. It blocks while the queue is full and reports false once
// the loop is stopped. Closures still queued at Stop are dropped.
func (l *Loop) Post(fn func()) bool {
	select {
	case <-l.done:
		return false
	default:
	}
	select {
	case l.ch <- fn:
		return true
	case <-l.done:
		return false
	}
}

// Call runs fn on the loop and waits for it. It must not be called from the
// loop itself.
func (l *Loop) Call(fn func()) error {
	ran := make(chan struct{})
	if !l.Post(func() {
		defer close(ran)
		fn()
	}) {
		return ErrClosed
	}
	select {
	case <-ran:
		return nil
	case <-l.stopped:
		// The loop may have run it just before stopping.
		select {
		case <-ran:
			return nil
		default:
			return ErrClosed
		}
	}
}

// Stop ends the loop and waits for the closure in progress to return.
func (l *Loop) Stop() {
	l.stopOnce.Do(func() { close(l.done) })
	<-l.stopped
}

func (l *Loop) run() {
	defer close(l.stopped)
	for {
		select {
		case <-l.done:
			return
		case fn := <-l.ch:
			l.exec(fn)
		}
	}
}

func (l *Loop) exec(fn func()) {
	defer func() {
		if p := recover(); p != nil {
			l.logger.Printf("session: loop task panicked: %v", p)
		}
	}()
	fn()
}
