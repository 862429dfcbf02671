// Package view holds the text targets and tables the dashboard panels write to.
// Everything here is safe for concurrent use: timers write labels from their own
// goroutines while the session loop and HTTP handlers read them.
package view

import (
	"sync"
	"time"
)

// Placeholder is the text a field shows when it has no value.
const Placeholder = "------"

// Label is a named text target. It also carries the reference stamp of the
// timer last reconciled onto it and a free-form key callers use to skip
// redundant updates.
type Label struct {
	id string

	mu     sync.RWMutex
	text   string
	stamp  time.Time
	key    string
	notify func(Change)
}

// NewLabel returns a detached label. Labels obtained from a Board report their
// changes to it.
func NewLabel(id, text string) *Label {
	return &Label{id: id, text: text}
}

func (l *Label) ID() string { return l.id }

// SetText replaces the text. Writing the current text again is not a change.
func (l *Label) SetText(text string) {
	l.mu.Lock()
	if l.text == text {
		l.mu.Unlock()
		return
	}
	l.text = text
	notify := l.notify
	l.mu.Unlock()
	if notify != nil {
		notify(Change{Target: l.id, Text: text})
	}
}

func (l *Label) Text() string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.text
}

func (l *Label) Stamp(t time.Time) {
	l.mu.Lock()
	l.stamp = t
	l.mu.Unlock()
}

func (l *Label) Stamped() time.Time {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.stamp
}

// SetKey records the value the label was last built from.
func (l *Label) SetKey(key string) {
	l.mu.Lock()
	l.key = key
	l.mu.Unlock()
}

func (l *Label) Key() string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.key
}

// Reset writes text and forgets the stamp and key.
func (l *Label) Reset(text string) {
	l.mu.Lock()
	l.stamp = time.Time{}
	l.key = ""
	l.mu.Unlock()
	l.SetText(text)
}
