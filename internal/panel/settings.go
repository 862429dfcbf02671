package panel

import (
	"context"

	"github.com/jaakkos/titandash/internal/domain"
	"github.com/jaakkos/titandash/internal/view"
)

// Choice is what the user picked in the settings panel. The actions panel
// sends it along with a play signal.
type Choice struct {
	Configuration string `json:"configuration"`
	Window        string `json:"window"`
	Shortcuts     bool   `json:"shortcuts"`
}

// Settings is the configuration/window/shortcuts panel.
type Settings struct {
	env    *Env
	pane   *view.Pane
	data   domain.SettingsInformation
	choice Choice
}

func NewSettings(env *Env) *Settings {
	return &Settings{env: env, pane: view.NewPane()}
}

func (p *Settings) Pane() *view.Pane { return p.pane }

// Update refetches the settings, or applies a pushed payload.
func (p *Settings) Update(payload any) {
	if payload != nil {
		data, err := domain.Decode[domain.SettingsInformation](payload)
		if err != nil {
			p.env.Logger.Printf("panel %s: %v", NameSettings, err)
			return
		}
		p.env.Fetcher.Supersede(NameSettings)
		p.apply(data)
		p.pane.Show()
		return
	}
	p.pane.Hide()
	instance := p.env.Selection.ActiveInstance()
	Fetch(p.env.Fetcher, NameSettings, func(ctx context.Context) (*domain.SettingsInformation, error) {
		return p.env.Backend.SettingsInformation(ctx, instance)
	}, func(data *domain.SettingsInformation, err error) {
		defer p.pane.Show()
		if err != nil {
			p.env.fetchFailed(NameSettings, err)
			return
		}
		if data != nil {
			p.apply(*data)
		}
	})
}

// apply rebuilds the options. An active instance shows, and locks, the
// settings it runs with; otherwise the choice starts over.
func (p *Settings) apply(data domain.SettingsInformation) {
	p.data = data
	p.choice = Choice{}
	if data.Active {
		if data.Instance.Configuration != nil {
			p.choice.Configuration = string(*data.Instance.Configuration)
		}
		if data.Instance.Window != nil {
			p.choice.Window = string(*data.Instance.Window)
		}
		p.choice.Shortcuts = data.Shortcuts
	}
}

// Locked reports whether the options are read-only because the instance is
// running or paused.
func (p *Settings) Locked() bool { return p.data.Active }

// Choice returns the current selection.
func (p *Settings) Choice() Choice { return p.choice }

// Choose records the user's selection. It fails while the options are locked
// or when a value is not among the offered options.
func (p *Settings) Choose(c Choice) error {
	if p.Locked() {
		return ErrSettingsLocked
	}
	if c.Configuration != "" && !p.hasConfiguration(c.Configuration) {
		return ErrUnknownOption
	}
	if c.Window != "" && !p.hasWindow(c.Window) {
		return ErrUnknownOption
	}
	p.choice = c
	return nil
}

// Data returns the payload the panel was last built from.
func (p *Settings) Data() domain.SettingsInformation { return p.data }

func (p *Settings) hasConfiguration(pk string) bool {
	for _, c := range p.data.Configurations {
		if string(c.PK) == pk {
			return true
		}
	}
	return false
}

func (p *Settings) hasWindow(hwnd string) bool {
	for _, list := range [][]domain.Window{p.data.Windows.Filtered, p.data.Windows.All} {
		for _, w := range list {
			if string(w.HWND) == hwnd {
				return true
			}
		}
	}
	return false
}
