package logtail

import (
	"context"
	"io"
	"log"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

type lineRecorder struct {
	mu    sync.Mutex
	lines []string
	ch    chan string
}

func newLineRecorder() *lineRecorder {
	return &lineRecorder{ch: make(chan string, 16)}
}

func (r *lineRecorder) add(line string) {
	r.mu.Lock()
	r.lines = append(r.lines, line)
	r.mu.Unlock()
	select {
	case r.ch <- line:
	default:
	}
}

func (r *lineRecorder) all() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.lines...)
}

func appendFile(t *testing.T, path, s string) {
	t.Helper()
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := f.WriteString(s); err != nil {
		t.Fatal(err)
	}
	if err := f.Close(); err != nil {
		t.Fatal(err)
	}
}

var discard = log.New(io.Discard, "", 0)

func TestCheckOnceDeliversCompleteLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.log")
	appendFile(t, path, "old one\nold two\n")

	rec := newLineRecorder()
	tl := New(path, rec.add, discard)

	tl.CheckOnce()
	if got := rec.all(); len(got) != 0 {
		t.Fatalf("existing lines delivered: %v", got)
	}

	appendFile(t, path, "INFO started\r\nINFO partial")
	tl.CheckOnce()
	appendFile(t, path, " line\n")
	tl.CheckOnce()

	got := rec.all()
	want := []string{"INFO started", "INFO partial line"}
	if len(got) != len(want) {
		t.Fatalf("lines = %q, want %q", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("line %d = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestCheckOnceHandlesTruncation(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.log")
	appendFile(t, path, "a\nb\n")

	rec := newLineRecorder()
	tl := New(path, rec.add, discard, FromStart())
	tl.CheckOnce()

	if err := os.WriteFile(path, []byte("c\n"), 0644); err != nil {
		t.Fatal(err)
	}
	tl.CheckOnce()

	got := rec.all()
	if len(got) != 3 || got[2] != "c" {
		t.Errorf("lines = %q, want a b c", got)
	}
}

func TestStartFollowsAppends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.log")
	appendFile(t, path, "")

	rec := newLineRecorder()
	tl := New(path, rec.add, discard, WithPollInterval(50*time.Millisecond), WithDebounce(10*time.Millisecond))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go tl.Start(ctx)
	defer tl.Stop()

	appendFile(t, path, "hero leveled\n")
	select {
	case line := <-rec.ch:
		if line != "hero leveled" {
			t.Errorf("line = %q", line)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("no line delivered")
	}
}

func TestStopWithoutStart(t *testing.T) {
	tl := New(filepath.Join(t.TempDir(), "missing.log"), func(string) {}, discard)
	tl.Stop()
	tl.Stop()
}

func TestNoReadAfterStop(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.log")
	appendFile(t, path, "")

	rec := newLineRecorder()
	tl := New(path, rec.add, discard, WithDebounce(20*time.Millisecond))
	tl.Stop()

	appendFile(t, path, "after stop\n")
	tl.triggerDebounced()
	time.Sleep(100 * time.Millisecond)

	if got := rec.all(); len(got) != 0 {
		t.Errorf("lines after Stop = %q, want none", got)
	}

	// A timer scheduled just before Stop must not read either.
	tl2 := New(path, rec.add, discard, WithDebounce(20*time.Millisecond))
	appendFile(t, path, "racing stop\n")
	tl2.triggerDebounced()
	tl2.stopOnce.Do(func() { close(tl2.stopCh) })
	time.Sleep(100 * time.Millisecond)

	if got := rec.all(); len(got) != 0 {
		t.Errorf("lines after stop signal = %q, want none", got)
	}
}
