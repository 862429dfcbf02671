package view

import "sync"

// Visibility is where a panel is in its hide, fetch, show cycle.
type Visibility string

const (
	Hidden  Visibility = "hidden"
	Loading Visibility = "loading"
	Shown   Visibility = "shown"
)

// Pane tracks a panel's visibility.
type Pane struct {
	mu    sync.RWMutex
	state Visibility
}

func NewPane() *Pane { return &Pane{state: Hidden} }

// Hide marks the panel as loading new data.
func (p *Pane) Hide() { p.set(Loading) }

// Show reveals the panel.
func (p *Pane) Show() { p.set(Shown) }

func (p *Pane) State() Visibility {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.state
}

func (p *Pane) set(v Visibility) {
	p.mu.Lock()
	p.state = v
	p.mu.Unlock()
}
