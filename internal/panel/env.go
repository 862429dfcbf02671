package panel

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/jaakkos/titandash/internal/domain"
	"github.com/jaakkos/titandash/internal/view"
)

// Backend is the RPC surface of the bot backend the panels pull from and send
// commands to.
type Backend interface {
	InstancesAvailable(ctx context.Context) ([]domain.Instance, error)
	InstanceInformation(ctx context.Context, instance domain.PK) (*domain.InstanceInformation, error)
	ActionsInformation(ctx context.Context, instance domain.PK) (*domain.ActionsInformation, error)
	SettingsInformation(ctx context.Context, instance domain.PK) (*domain.SettingsInformation, error)
	QueueFunctionInformation(ctx context.Context, instance domain.PK) (*domain.QueueFunctionInformation, error)

	Signal(ctx context.Context, req domain.SignalRequest) error
	Kill(ctx context.Context, instance domain.PK) (*domain.KillResponse, error)
	QueueFunction(ctx context.Context, instance domain.PK, function string, duration int, durationType string) error
	FlushQueue(ctx context.Context, instance domain.PK) error

	AddInstance(ctx context.Context) (*domain.Instance, error)
	RemoveInstance(ctx context.Context, instance domain.PK) error
	RenameInstance(ctx context.Context, instance domain.PK, name string) error
}

// Selection reports the instance the dashboard is focused on.
type Selection interface {
	ActiveInstance() domain.PK
}

// Toaster surfaces transient notifications.
type Toaster interface {
	Push(sender, message string, kind view.ToastKind, timeout time.Duration) view.Toast
}

// Env is what every panel needs from the session that owns it.
type Env struct {
	Backend   Backend
	Selection Selection
	Fetcher   *Fetcher
	Board     *view.Board
	Toasts    Toaster
	Logger    *log.Logger
}

// fetchFailed surfaces a failed panel fetch. The panel keeps its previous data.
func (e *Env) fetchFailed(panel string, err error) {
	e.Logger.Printf("panel %s: fetch: %v", panel, err)
	e.Toasts.Push("Connectivity", fmt.Sprintf("Unable to refresh %s: %v", panel, err), view.ToastDanger, 0)
}

func (e *Env) label(panel, field string) *view.Label {
	return e.Board.Label(panel+"."+field, view.Placeholder)
}
