package panel

import (
	"context"
	"sync"
)

// Poster runs fn on the goroutine that owns panel state. Post reports false
// when fn was dropped because that goroutine has stopped.
type Poster interface {
	Post(fn func()) bool
}

// Fetcher runs panel fetches off the session loop. Each panel has at most one
// fetch that counts: starting a new one cancels the previous one, and a
// completion that is no longer current is discarded instead of applied.
type Fetcher struct {
	poster Poster
	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	idle     *sync.Cond
	seq      uint64
	tasks    map[string]*fetchTask
	inflight int
}

type fetchTask struct {
	seq    uint64
	cancel context.CancelFunc
}

// NewFetcher returns a Fetcher whose fetches are canceled when ctx is done or
// Close is called.
func NewFetcher(ctx context.Context, poster Poster) *Fetcher {
	ctx, cancel := context.WithCancel(ctx)
	f := &Fetcher{
		poster: poster,
		ctx:    ctx,
		cancel: cancel,
		tasks:  make(map[string]*fetchTask),
	}
	f.idle = sync.NewCond(&f.mu)
	return f
}

// Fetch starts fetch for panel on its own goroutine and posts apply back with
// the result, unless a newer fetch for the same panel started in the meantime.
func Fetch[T any](f *Fetcher, panel string, fetch func(ctx context.Context) (T, error), apply func(T, error)) {
	seq, ctx := f.begin(panel)
	go func() {
		defer f.done()
		v, err := fetch(ctx)
		f.poster.Post(func() {
			if !f.finish(panel, seq) {
				return
			}
			apply(v, err)
		})
	}()
}

func (f *Fetcher) begin(panel string) (uint64, context.Context) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if old := f.tasks[panel]; old != nil {
		old.cancel()
	}
	f.seq++
	f.inflight++
	ctx, cancel := context.WithCancel(f.ctx)
	f.tasks[panel] = &fetchTask{seq: f.seq, cancel: cancel}
	return f.seq, ctx
}

func (f *Fetcher) done() {
	f.mu.Lock()
	f.inflight--
	if f.inflight == 0 {
		f.idle.Broadcast()
	}
	f.mu.Unlock()
}

// finish reports whether seq is still the current fetch for panel and, if so,
// retires it.
func (f *Fetcher) finish(panel string, seq uint64) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	task := f.tasks[panel]
	if task == nil || task.seq != seq {
		return false
	}
	task.cancel()
	delete(f.tasks, panel)
	return true
}

// Supersede cancels the pending fetch for panel, if any, so its completion is
// discarded. Panels call it before applying pushed data, which is newer than
// anything an earlier fetch can return.
func (f *Fetcher) Supersede(panel string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if task := f.tasks[panel]; task != nil {
		task.cancel()
		delete(f.tasks, panel)
	}
}

// Pending reports whether panel has a fetch that has not been applied yet.
func (f *Fetcher) Pending(panel string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.tasks[panel] != nil
}

// Idle reports whether no fetch is pending for any panel.
func (f *Fetcher) Idle() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.tasks) == 0
}

// Wait blocks until every started fetch has returned and posted its result.
func (f *Fetcher) Wait() {
	f.mu.Lock()
	for f.inflight > 0 {
		f.idle.Wait()
	}
	f.mu.Unlock()
}

// Close cancels all fetches and waits for them to return.
func (f *Fetcher) Close() {
	f.cancel()
	f.mu.Lock()
	for panel, task := range f.tasks {
		task.cancel()
		delete(f.tasks, panel)
	}
	f.mu.Unlock()
	f.Wait()
}
