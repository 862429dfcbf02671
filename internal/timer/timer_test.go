package timer

import (
	"sync"
	"testing"
	"time"
)

type recordingDisplay struct {
	mu    sync.Mutex
	texts []string
	ch    chan string
	stamp time.Time
}

func newRecordingDisplay() *recordingDisplay {
	return &recordingDisplay{ch: make(chan string, 64)}
}

func (d *recordingDisplay) SetText(text string) {
	d.mu.Lock()
	d.texts = append(d.texts, text)
	d.mu.Unlock()
	select {
	case d.ch <- text:
	default:
	}
}

func (d *recordingDisplay) Texts() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.texts...)
}

func (d *recordingDisplay) Stamp(t time.Time) { d.stamp = t }
func (d *recordingDisplay) Stamped() time.Time { return d.stamp }

func (d *recordingDisplay) next(t *testing.T) string {
	t.Helper()
	select {
	case text := <-d.ch:
		return text
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for display text")
		return ""
	}
}

type manualClock struct {
	mu      sync.Mutex
	now     time.Time
	tickers []*manualTicker
}

func newManualClock() *manualClock {
	return &manualClock{now: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *manualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *manualClock) NewTicker(d time.Duration) Ticker {
	c.mu.Lock()
	defer c.mu.Unlock()
	tk := &manualTicker{ch: make(chan time.Time, 1)}
	c.tickers = append(c.tickers, tk)
	return tk
}

// Advance moves the clock and fires every live ticker once.
func (c *manualClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	now := c.now
	tickers := append([]*manualTicker(nil), c.tickers...)
	c.mu.Unlock()
	for _, tk := range tickers {
		tk.fire(now)
	}
}

type manualTicker struct {
	mu      sync.Mutex
	ch      chan time.Time
	stopped bool
}

func (t *manualTicker) C() <-chan time.Time { return t.ch }

func (t *manualTicker) Stop() {
	t.mu.Lock()
	t.stopped = true
	t.mu.Unlock()
}

func (t *manualTicker) fire(now time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.stopped {
		return
	}
	select {
	case t.ch <- now:
	default:
	}
}

func waitDone(t *testing.T, tk *ticker) {
	t.Helper()
	select {
	case <-tk.doneCh:
	case <-time.After(2 * time.Second):
		t.Fatal("timer goroutine did not exit")
	}
}

func TestDestroyIdempotent(t *testing.T) {
	clock := newManualClock()
	display := newRecordingDisplay()
	c := NewCountdown(Spec{Reference: clock.Now().Add(time.Hour), Label: "Next Break", Target: display}, clock)

	clock.Advance(time.Second)
	if got := display.next(t); got != "Next Break (00:59:59)" {
		t.Fatalf("first tick = %q", got)
	}

	c.Destroy()
	c.Destroy()
	c.Destroy()
	waitDone(t, c.ticker)

	if c.State() != StateDestroyed {
		t.Errorf("State() = %v, want destroyed", c.State())
	}
	clock.Advance(time.Second)
	clock.Advance(time.Second)
	if c.tick(clock.Now()) {
		t.Error("tick after Destroy should report stopped")
	}
	if got := display.Texts(); len(got) != 1 {
		t.Errorf("texts after destroy = %v, want only the first tick", got)
	}
}

func TestCountdownPastReferenceIsReadyOnFirstTick(t *testing.T) {
	clock := newManualClock()
	display := newRecordingDisplay()
	c := NewCountdown(Spec{Reference: clock.Now().Add(-90 * time.Minute), Label: "Prestige", Target: display}, clock)

	if got := display.Texts(); len(got) != 0 {
		t.Fatalf("texts before first period = %v, want none", got)
	}
	clock.Advance(time.Second)
	waitDone(t, c.ticker)

	got := display.Texts()
	want := []string{"Prestige (00:00:00)", ReadyText}
	if len(got) != len(want) {
		t.Fatalf("texts = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("texts[%d] = %q, want %q", i, got[i], want[i])
		}
	}
	if c.State() != StateStopped {
		t.Errorf("State() = %v, want stopped", c.State())
	}

	clock.Advance(time.Second)
	if n := len(display.Texts()); n != 2 {
		t.Errorf("stopped countdown wrote again: %d texts", n)
	}

	c.Destroy()
	if c.State() != StateDestroyed {
		t.Errorf("State() after Destroy = %v, want destroyed", c.State())
	}
	if got := display.Texts(); got[len(got)-1] != ReadyText {
		t.Errorf("Destroy changed text to %q", got[len(got)-1])
	}
}

func TestStopwatchElapsedNeverDecreases(t *testing.T) {
	clock := newManualClock()
	ref := clock.Now().Add(-3 * time.Second)
	s := NewStopwatch(Spec{Reference: ref, Label: "Started", Target: newRecordingDisplay()}, clock)
	defer s.Destroy()

	now := clock.Now()
	prev := time.Duration(-1 << 62)
	for i := 0; i < 200; i++ {
		now = now.Add(StopwatchPeriod)
		if !s.tick(now) {
			t.Fatalf("stopwatch stopped on tick %d", i)
		}
		if s.Last() < prev {
			t.Fatalf("elapsed went backwards at tick %d: %v < %v", i, s.Last(), prev)
		}
		prev = s.Last()
	}
	if s.State() != StateRunning {
		t.Errorf("State() = %v, want running", s.State())
	}
}

func TestCountdownOneHourAhead(t *testing.T) {
	if got := FormatCountdown("Next Break", time.Hour, true); got != "Next Break (01:00:00)" {
		t.Errorf("FormatCountdown = %q", got)
	}

	clock := newManualClock()
	display := newRecordingDisplay()
	c := NewCountdown(Spec{Reference: clock.Now().Add(3600000 * time.Millisecond), Label: "Next Break", Target: display}, clock)
	defer c.Destroy()

	clock.Advance(CountdownPeriod)
	got := display.next(t)
	if got != "Next Break (01:00:00)" && got != "Next Break (00:59:59)" {
		t.Errorf("after one period = %q", got)
	}
}

func TestFormatCountdown(t *testing.T) {
	tests := []struct {
		name      string
		remaining time.Duration
		pad       bool
		want      string
	}{
		{"padded", 2*time.Hour + 3*time.Minute + 4*time.Second, true, "x (02:03:04)"},
		{"unpadded", 2*time.Hour + 3*time.Minute + 4*time.Second, false, "x (2:3:4)"},
		{"wraps past a day", 25*time.Hour + 30*time.Second, true, "x (01:00:30)"},
		{"negative clamps", -5 * time.Minute, true, "x (00:00:00)"},
		{"sub second", 900 * time.Millisecond, true, "x (00:00:00)"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FormatCountdown("x", tt.remaining, tt.pad); got != tt.want {
				t.Errorf("FormatCountdown(%v) = %q, want %q", tt.remaining, got, tt.want)
			}
		})
	}
}

func TestFormatStopwatch(t *testing.T) {
	tests := []struct {
		name    string
		elapsed time.Duration
		pad     bool
		want    string
	}{
		{"hours", time.Hour + 2*time.Minute + 3*time.Second + 45*time.Millisecond, true, "x (01:02:03.045)"},
		{"days", 49*time.Hour + 7*time.Millisecond, true, "x (02:01:00:00.007)"},
		{"unpadded", time.Minute + 5*time.Millisecond, false, "x (0:1:0.5)"},
		{"future reference", -time.Second, true, "x (00:00:00:00.000)"},
		{"zero", 0, true, "x (00:00:00.000)"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FormatStopwatch("x", tt.elapsed, tt.pad); got != tt.want {
				t.Errorf("FormatStopwatch(%v) = %q, want %q", tt.elapsed, got, tt.want)
			}
		})
	}
}

func TestNilTargetDoesNotPanic(t *testing.T) {
	clock := newManualClock()
	c := NewCountdown(Spec{Reference: clock.Now()}, clock)
	if c.tick(clock.Now()) {
		t.Error("countdown at its reference should stop")
	}
	c.Destroy()
}
