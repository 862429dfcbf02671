package panel

import (
	"context"

	"github.com/jaakkos/titandash/internal/domain"
	"github.com/jaakkos/titandash/internal/view"
)

// EnabledActions returns the actions that make sense for an instance in state.
func EnabledActions(state string) []domain.Action {
	switch state {
	case domain.StateRunning:
		return []domain.Action{domain.ActionPause, domain.ActionStop}
	case domain.StatePaused, domain.StateStopped:
		return []domain.Action{domain.ActionPlay}
	}
	return nil
}

// Actions is the play/pause/stop panel.
type Actions struct {
	env   *Env
	pane  *view.Pane
	state *view.Label
	data  domain.ActionsInformation
}

func NewActions(env *Env) *Actions {
	return &Actions{env: env, pane: view.NewPane(), state: env.label(NameActions, "state")}
}

func (p *Actions) Pane() *view.Pane { return p.pane }

// Update refetches the actions state, or applies a pushed payload.
func (p *Actions) Update(payload any) {
	if payload != nil {
		data, err := domain.Decode[domain.ActionsInformation](payload)
		if err != nil {
			p.env.Logger.Printf("panel %s: %v", NameActions, err)
			return
		}
		p.env.Fetcher.Supersede(NameActions)
		p.apply(data)
		p.pane.Show()
		return
	}
	p.pane.Hide()
	instance := p.env.Selection.ActiveInstance()
	Fetch(p.env.Fetcher, NameActions, func(ctx context.Context) (*domain.ActionsInformation, error) {
		return p.env.Backend.ActionsInformation(ctx, instance)
	}, func(data *domain.ActionsInformation, err error) {
		defer p.pane.Show()
		if err != nil {
			p.env.fetchFailed(NameActions, err)
			return
		}
		if data != nil {
			p.apply(*data)
		}
	})
}

func (p *Actions) apply(data domain.ActionsInformation) {
	p.data = data
	p.state.SetText(data.State)
}

// State returns the state the panel was last built from.
func (p *Actions) State() string { return p.data.State }

// Enabled returns the actions currently offered.
func (p *Actions) Enabled() []domain.Action { return EnabledActions(p.data.State) }

// Allowed reports whether a is currently offered.
func (p *Actions) Allowed(a domain.Action) bool {
	for _, e := range p.Enabled() {
		if e == a {
			return true
		}
	}
	return false
}
