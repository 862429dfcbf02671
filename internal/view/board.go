package view

import (
	"sort"
	"sync"
)

// Change is one text target taking a new value.
type Change struct {
	Target string `json:"target"`
	Text   string `json:"text"`
}

// Board is the set of named labels the panels write to. Subscribers hear about
// every text change, from whichever goroutine made it.
type Board struct {
	mu        sync.RWMutex
	labels    map[string]*Label
	observers []func(Change)
}

func NewBoard() *Board {
	return &Board{labels: make(map[string]*Label)}
}

// Label returns the label with id, creating it with initial text if needed.
func (b *Board) Label(id, initial string) *Label {
	b.mu.Lock()
	defer b.mu.Unlock()
	if l, ok := b.labels[id]; ok {
		return l
	}
	l := NewLabel(id, initial)
	l.notify = b.publish
	b.labels[id] = l
	return l
}

// Get returns the label with id, or nil.
func (b *Board) Get(id string) *Label {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.labels[id]
}

// Subscribe registers fn for every subsequent change. fn must not block.
func (b *Board) Subscribe(fn func(Change)) {
	b.mu.Lock()
	b.observers = append(b.observers, fn)
	b.mu.Unlock()
}

func (b *Board) publish(c Change) {
	b.mu.RLock()
	observers := append([]func(Change){}, b.observers...)
	b.mu.RUnlock()
	for _, fn := range observers {
		fn(c)
	}
}

// Snapshot returns the text of every label.
func (b *Board) Snapshot() map[string]string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make(map[string]string, len(b.labels))
	for id, l := range b.labels {
		out[id] = l.Text()
	}
	return out
}

// IDs returns the label ids in sorted order.
func (b *Board) IDs() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	ids := make([]string, 0, len(b.labels))
	for id := range b.labels {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
