// Package timer drives live countdown and stopwatch text into display targets.
//
// A timer owns one periodic task and one Display. Timers are built from an
// immutable Spec; moving the reference instant means destroying the timer and
// constructing a new one, which is what Registry.Reconcile does.
package timer

import (
	"sync"
	"time"
)

const (
	// CountdownPeriod is how often a countdown recomputes its text.
	CountdownPeriod = time.Second
	// StopwatchPeriod is how often a stopwatch recomputes its text.
	StopwatchPeriod = 20 * time.Millisecond
	// ReadyText is written once a countdown reaches zero.
	ReadyText = "ready..."
)

// State is the lifecycle state of a timer.
type State int

const (
	StateRunning State = iota
	StateStopped
	StateDestroyed
)

func (s State) String() string {
	switch s {
	case StateRunning:
		return "running"
	case StateStopped:
		return "stopped"
	case StateDestroyed:
		return "destroyed"
	}
	return "unknown"
}

// Display is the sink a timer writes formatted text to.
type Display interface {
	SetText(text string)
}

// Stamper is implemented by displays that remember the reference instant of the
// timer last reconciled onto them. Callers compare against it to skip redundant
// reconciles.
type Stamper interface {
	Stamp(t time.Time)
	Stamped() time.Time
}

// Spec describes a timer. It is not modified after construction.
type Spec struct {
	Reference      time.Time
	Label          string
	Target         Display
	DisablePadding bool
}

// Handle is a running (or finished) timer.
type Handle interface {
	Reference() time.Time
	State() State
	Destroy()
}

type discard struct{}

func (discard) SetText(string) {}

// ticker is the periodic task shared by Countdown and Stopwatch.
type ticker struct {
	spec    Spec
	compute func(now time.Time) (text string, done bool)

	mu    sync.Mutex
	state State
	last  time.Duration

	stopCh   chan struct{}
	stopOnce sync.Once
	doneCh   chan struct{}
}

func newTicker(spec Spec) *ticker {
	if spec.Target == nil {
		spec.Target = discard{}
	}
	return &ticker{
		spec:   spec,
		state:  StateRunning,
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}
}

func (t *ticker) start(clock Clock, period time.Duration) {
	if clock == nil {
		clock = SystemClock()
	}
	tk := clock.NewTicker(period)
	go t.run(tk)
}

func (t *ticker) run(tk Ticker) {
	defer close(t.doneCh)
	defer tk.Stop()
	for {
		select {
		case <-t.stopCh:
			return
		case now := <-tk.C():
			if !t.tick(now) {
				return
			}
		}
	}
}

// tick recomputes and writes the text. It reports whether the task should keep
// running. Writes happen under mu so Destroy never races a write in flight.
func (t *ticker) tick(now time.Time) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state != StateRunning {
		return false
	}
	text, done := t.compute(now)
	t.spec.Target.SetText(text)
	if done {
		t.state = StateStopped
		t.spec.Target.SetText(ReadyText)
		return false
	}
	return true
}

func (t *ticker) Reference() time.Time { return t.spec.Reference }

func (t *ticker) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Last returns the duration computed on the most recent tick: time remaining for
// a countdown, time elapsed for a stopwatch.
func (t *ticker) Last() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.last
}

// Destroy cancels the periodic task. The target keeps its last text. Calling
// Destroy more than once has no further effect.
func (t *ticker) Destroy() {
	t.mu.Lock()
	t.state = StateDestroyed
	t.mu.Unlock()
	t.stopOnce.Do(func() { close(t.stopCh) })
}

// Countdown writes the time left until its reference instant once a second and
// stops for good when it reaches zero.
type Countdown struct {
	*ticker
}

// NewCountdown starts a countdown. A nil clock uses the system clock.
func NewCountdown(spec Spec, clock Clock) *Countdown {
	c := &Countdown{ticker: newTicker(spec)}
	c.compute = func(now time.Time) (string, bool) {
		remaining := c.spec.Reference.Sub(now)
		c.last = remaining
		return FormatCountdown(c.spec.Label, remaining, !c.spec.DisablePadding), remaining <= 0
	}
	c.start(clock, CountdownPeriod)
	return c
}

// Stopwatch writes the time elapsed since its reference instant every 20ms
// until destroyed.
type Stopwatch struct {
	*ticker
}

// NewStopwatch starts a stopwatch. A nil clock uses the system clock.
func NewStopwatch(spec Spec, clock Clock) *Stopwatch {
	s := &Stopwatch{ticker: newTicker(spec)}
	s.compute = func(now time.Time) (string, bool) {
		elapsed := now.Sub(s.spec.Reference)
		s.last = elapsed
		return FormatStopwatch(s.spec.Label, elapsed, !s.spec.DisablePadding), false
	}
	s.start(clock, StopwatchPeriod)
	return s
}
