package repository

import (
	"context"

	"github.com/jaakkos/titandash/internal/domain"
	"github.com/jaakkos/titandash/internal/repository/sqlite"
)

// AlertRepository keeps the toast history and the dashboard's persisted
// selection.
type AlertRepository interface {
	SaveAlert(ctx context.Context, a domain.Alert) (int64, error)
	RecentAlerts(ctx context.Context, limit int) ([]domain.Alert, error)
	PruneAlerts(ctx context.Context, maxCount, maxAgeDays int) (int, error)
	SetMeta(ctx context.Context, key, value string) error
	Meta(ctx context.Context, key string) (string, error)
	Close() error
}

// NewAlertRepository returns an AlertRepository backed by SQLite at the given
// path. The path is typically from config.Settings.StateFile().
func NewAlertRepository(path string) (AlertRepository, error) {
	store, err := sqlite.New(path)
	if err != nil {
		return nil, err
	}
	return store, nil
}
