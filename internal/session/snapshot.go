package session

import (
	"github.com/jaakkos/titandash/internal/domain"
	"github.com/jaakkos/titandash/internal/panel"
	"github.com/jaakkos/titandash/internal/view"
)

// Snapshot is the whole dashboard view model at one point in time.
type Snapshot struct {
	ActiveInstance domain.PK                  `json:"active_instance"`
	Labels         map[string]string          `json:"labels"`
	Panes          map[string]view.Visibility `json:"panes"`
	Instances      []view.Row                 `json:"instances"`
	Actions        []domain.Action            `json:"actions"`
	Settings       SettingsView               `json:"settings"`
	Queueables     []panel.QueueableOption    `json:"queueables"`
	Queued         []view.Row                 `json:"queued"`
	Logs           []string                   `json:"logs"`
	Toasts         []view.Toast               `json:"toasts"`
}

// SettingsView is the settings panel with the current choice.
type SettingsView struct {
	Locked         bool               `json:"locked"`
	Choice         panel.Choice       `json:"choice"`
	Configurations []domain.NamedLink `json:"configurations"`
	Windows        []domain.Window    `json:"windows"`
	AllWindows     []domain.Window    `json:"all_windows"`
}

// Snapshot captures the view model.
func (s *Session) Snapshot() (Snapshot, error) {
	var snap Snapshot
	err := s.loop.Call(func() {
		data := s.settings.Data()
		snap = Snapshot{
			ActiveInstance: s.ActiveInstance(),
			Labels:         s.board.Snapshot(),
			Panes: map[string]view.Visibility{
				panel.NameInstances:        s.instances.Pane().State(),
				panel.NameSelectedInstance: s.selected.Pane().State(),
				panel.NameActions:          s.actions.Pane().State(),
				panel.NameSettings:         s.settings.Pane().State(),
				panel.NameQueueFunction:    s.queue.Pane().State(),
			},
			Instances: s.instances.Table().Rows(),
			Actions:   s.actions.Enabled(),
			Settings: SettingsView{
				Locked:         s.settings.Locked(),
				Choice:         s.settings.Choice(),
				Configurations: data.Configurations,
				Windows:        data.Windows.Filtered,
				AllWindows:     data.Windows.All,
			},
			Queueables: s.queue.Search(""),
			Queued:     s.queue.Queued().Rows(),
			Logs:       s.logs.Records(),
			Toasts:     s.toasts.Active(),
		}
	})
	return snap, err
}
