package view

import (
	"sync"
	"time"
)

// DefaultToastTimeout applies when a toast is pushed without a positive timeout.
const DefaultToastTimeout = 5 * time.Second

// ToastKind is the severity of a toast.
type ToastKind string

const (
	ToastSuccess ToastKind = "success"
	ToastInfo    ToastKind = "info"
	ToastWarning ToastKind = "warning"
	ToastDanger  ToastKind = "danger"
)

// ParseToastKind maps a backend kind string to a ToastKind, defaulting to info.
func ParseToastKind(s string) ToastKind {
	switch k := ToastKind(s); k {
	case ToastSuccess, ToastInfo, ToastWarning, ToastDanger:
		return k
	}
	return ToastInfo
}

// Icon returns the icon class shown next to a toast of this kind.
func (k ToastKind) Icon() string {
	switch k {
	case ToastSuccess:
		return "fa-check"
	case ToastWarning:
		return "fa-exclamation-triangle"
	case ToastDanger:
		return "fa-exclamation-circle"
	}
	return "fa-info"
}

// Toast is a transient notification.
type Toast struct {
	ID      int64     `json:"id"`
	Sender  string    `json:"sender"`
	Message string    `json:"message"`
	Kind    ToastKind `json:"kind"`
	Icon    string    `json:"icon"`
	Created time.Time `json:"created"`
	Expires time.Time `json:"expires"`
}

// Toasts holds the notifications currently on screen. Each one is removed when
// its timeout elapses or when dismissed, whichever comes first.
type Toasts struct {
	defaultTimeout time.Duration

	mu       sync.Mutex
	nextID   int64
	items    []Toast
	timers   map[int64]*time.Timer
	onChange func()
	sinks    []func(Toast)
	closed   bool
}

// NewToasts returns an empty stack. A non-positive defaultTimeout uses
// DefaultToastTimeout.
func NewToasts(defaultTimeout time.Duration) *Toasts {
	if defaultTimeout <= 0 {
		defaultTimeout = DefaultToastTimeout
	}
	return &Toasts{defaultTimeout: defaultTimeout, timers: make(map[int64]*time.Timer)}
}

// OnChange registers fn to run whenever a toast appears or disappears.
func (t *Toasts) OnChange(fn func()) {
	t.mu.Lock()
	t.onChange = fn
	t.mu.Unlock()
}

// OnPush registers fn to receive every pushed toast.
func (t *Toasts) OnPush(fn func(Toast)) {
	t.mu.Lock()
	t.sinks = append(t.sinks, fn)
	t.mu.Unlock()
}

// SetDefaultTimeout changes the timeout used for toasts pushed without one.
func (t *Toasts) SetDefaultTimeout(d time.Duration) {
	if d <= 0 {
		return
	}
	t.mu.Lock()
	t.defaultTimeout = d
	t.mu.Unlock()
}

// Push shows a toast for timeout, or the default timeout when timeout <= 0.
func (t *Toasts) Push(sender, message string, kind ToastKind, timeout time.Duration) Toast {
	kind = ParseToastKind(string(kind))
	now := time.Now()

	t.mu.Lock()
	if timeout <= 0 {
		timeout = t.defaultTimeout
	}
	t.nextID++
	toast := Toast{
		ID:      t.nextID,
		Sender:  StripHTML(sender),
		Message: StripHTML(message),
		Kind:    kind,
		Icon:    kind.Icon(),
		Created: now,
		Expires: now.Add(timeout),
	}
	if t.closed {
		t.mu.Unlock()
		return toast
	}
	t.items = append(t.items, toast)
	id := toast.ID
	t.timers[id] = time.AfterFunc(timeout, func() { t.Dismiss(id) })
	sinks := append([]func(Toast){}, t.sinks...)
	onChange := t.onChange
	t.mu.Unlock()

	for _, fn := range sinks {
		fn(toast)
	}
	if onChange != nil {
		onChange()
	}
	return toast
}

// Dismiss removes a toast early. It reports whether the toast was showing.
func (t *Toasts) Dismiss(id int64) bool {
	t.mu.Lock()
	idx := -1
	for i, item := range t.items {
		if item.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		t.mu.Unlock()
		return false
	}
	t.items = append(t.items[:idx], t.items[idx+1:]...)
	if tm, ok := t.timers[id]; ok {
		tm.Stop()
		delete(t.timers, id)
	}
	onChange := t.onChange
	t.mu.Unlock()
	if onChange != nil {
		onChange()
	}
	return true
}

// Active returns the toasts currently showing, oldest first.
func (t *Toasts) Active() []Toast {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]Toast(nil), t.items...)
}

// Close stops every expiry timer and drops all toasts.
func (t *Toasts) Close() {
	t.mu.Lock()
	defer t.mu.Unlock()
	for id, tm := range t.timers {
		tm.Stop()
		delete(t.timers, id)
	}
	t.items = nil
	t.closed = true
}
