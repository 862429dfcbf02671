// Package logtail follows a growing log file and hands each complete line to a
// callback. It watches the file's directory with fsnotify and falls back to
// polling when the watcher cannot be set up.
package logtail

import (
	"bytes"
	"context"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

const (
	defaultDebounce     = 100 * time.Millisecond
	defaultPollInterval = 2 * time.Second
	maxPartial          = 64 * 1024
)

// Tailer reads lines appended to one file.
type Tailer struct {
	path         string
	onLine       func(line string)
	logger       *log.Logger
	debounce     time.Duration
	pollInterval time.Duration
	fromStart    bool

	mu            sync.Mutex
	debounceTimer *time.Timer
	started       bool
	stopCh        chan struct{}
	stopOnce      sync.Once
	doneCh        chan struct{}

	readMu  sync.Mutex // serializes reads from the watcher, poll loop and CheckOnce
	offset  int64
	partial []byte
}

// Option configures a Tailer.
type Option func(*Tailer)

// WithPollInterval sets the fallback poll interval (default 2s).
func WithPollInterval(d time.Duration) Option {
	return func(t *Tailer) {
		if d > 0 {
			t.pollInterval = d
		}
	}
}

// WithDebounce sets how long to wait after a write event before reading.
func WithDebounce(d time.Duration) Option {
	return func(t *Tailer) { t.debounce = d }
}

// FromStart makes the tailer deliver lines already in the file. By default it
// starts at the current end.
func FromStart() Option {
	return func(t *Tailer) { t.fromStart = true }
}

// New creates a tailer for path. onLine is called from the tailer's goroutines,
// one line at a time, without the trailing newline.
func New(path string, onLine func(line string), logger *log.Logger, opts ...Option) *Tailer {
	t := &Tailer{
		path:         path,
		onLine:       onLine,
		logger:       logger,
		debounce:     defaultDebounce,
		pollInterval: defaultPollInterval,
		stopCh:       make(chan struct{}),
		doneCh:       make(chan struct{}),
	}
	for _, o := range opts {
		o(t)
	}
	if !t.fromStart {
		if fi, err := os.Stat(path); err == nil {
			t.offset = fi.Size()
		}
	}
	return t
}

// Path returns the file being followed.
func (t *Tailer) Path() string { return t.path }

// Start follows the file until ctx is cancelled or Stop is called.
func (t *Tailer) Start(ctx context.Context) {
	t.mu.Lock()
	t.started = true
	t.mu.Unlock()
	defer close(t.doneCh)

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		t.logger.Printf("logtail: fsnotify init failed (%v), using poll-only", err)
	} else if err := watcher.Add(filepath.Dir(t.path)); err != nil {
		t.logger.Printf("logtail: fsnotify add %s failed (%v), using poll-only", filepath.Dir(t.path), err)
		_ = watcher.Close()
		watcher = nil
	}
	if watcher != nil {
		defer watcher.Close()
		go t.watchLoop(ctx, watcher)
	}

	t.CheckOnce()
	t.pollLoop(ctx)
}

// Stop ends a running Start and waits for it to return.
func (t *Tailer) Stop() {
	t.stopOnce.Do(func() { close(t.stopCh) })
	t.mu.Lock()
	started := t.started
	if t.debounceTimer != nil {
		t.debounceTimer.Stop()
	}
	t.mu.Unlock()
	if started {
		<-t.doneCh
	}
}

// CheckOnce reads whatever was appended since the last read.
func (t *Tailer) CheckOnce() {
	t.readMu.Lock()
	defer t.readMu.Unlock()

	f, err := os.Open(t.path)
	if err != nil {
		return
	}
	defer f.Close()
	fi, err := f.Stat()
	if err != nil {
		return
	}
	if fi.Size() < t.offset {
		// Truncated or replaced: start over.
		t.offset = 0
		t.partial = nil
	}
	if fi.Size() == t.offset {
		return
	}
	if _, err := f.Seek(t.offset, io.SeekStart); err != nil {
		t.logger.Printf("logtail: seek %s: %v", t.path, err)
		return
	}
	buf, err := io.ReadAll(io.LimitReader(f, fi.Size()-t.offset))
	if err != nil {
		t.logger.Printf("logtail: read %s: %v", t.path, err)
		return
	}
	t.offset += int64(len(buf))

	data := append(t.partial, buf...)
	for {
		i := bytes.IndexByte(data, '\n')
		if i < 0 {
			break
		}
		line := strings.TrimRight(string(data[:i]), "\r")
		data = data[i+1:]
		t.onLine(line)
	}
	if len(data) > maxPartial {
		data = data[len(data)-maxPartial:]
	}
	t.partial = append([]byte(nil), data...)
}

func (t *Tailer) watchLoop(ctx context.Context, watcher *fsnotify.Watcher) {
	name := filepath.Base(t.path)
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.stopCh:
			return
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) != name {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			t.triggerDebounced()
		case _, ok := <-watcher.Errors:
			if !ok {
				return
			}
		}
	}
}

func (t *Tailer) triggerDebounced() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.debounceTimer != nil {
		t.debounceTimer.Stop()
	}
	if t.stopped() {
		return
	}
	t.debounceTimer = time.AfterFunc(t.debounce, func() {
		if !t.stopped() {
			t.CheckOnce()
		}
	})
}

func (t *Tailer) stopped() bool {
	select {
	case <-t.stopCh:
		return true
	default:
		return false
	}
}

func (t *Tailer) pollLoop(ctx context.Context) {
	ticker := time.NewTicker(t.pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.stopCh:
			return
		case <-ticker.C:
			t.CheckOnce()
		}
	}
}
