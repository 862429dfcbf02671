package panel

import (
	"context"
	"strings"

	"github.com/jaakkos/titandash/internal/domain"
	"github.com/jaakkos/titandash/internal/view"
)

// Duration types accepted when queueing a function for later.
var DurationTypes = []string{"Seconds", "Minutes", "Hours"}

// QueueableOption is a queueable function as offered to the user.
type QueueableOption struct {
	Name      string `json:"name"`
	Formatted string `json:"formatted"`
}

// QueueFunction lists the functions that can be queued and the ones that are.
type QueueFunction struct {
	env        *Env
	pane       *view.Pane
	queueables []domain.Queueable
	queued     *view.Table
}

func NewQueueFunction(env *Env) *QueueFunction {
	return &QueueFunction{env: env, pane: view.NewPane(), queued: view.NewTable("queued")}
}

func (p *QueueFunction) Pane() *view.Pane { return p.pane }

// Queued is the table of queued functions. Push events add and remove rows
// on it directly.
func (p *QueueFunction) Queued() *view.Table { return p.queued }

// Update refetches queueables and the queue, or applies a pushed payload.
func (p *QueueFunction) Update(payload any) {
	if payload != nil {
		data, err := domain.Decode[domain.QueueFunctionInformation](payload)
		if err != nil {
			p.env.Logger.Printf("panel %s: %v", NameQueueFunction, err)
			return
		}
		p.env.Fetcher.Supersede(NameQueueFunction)
		p.apply(data)
		p.pane.Show()
		return
	}
	p.pane.Hide()
	instance := p.env.Selection.ActiveInstance()
	Fetch(p.env.Fetcher, NameQueueFunction, func(ctx context.Context) (*domain.QueueFunctionInformation, error) {
		return p.env.Backend.QueueFunctionInformation(ctx, instance)
	}, func(data *domain.QueueFunctionInformation, err error) {
		defer p.pane.Show()
		if err != nil {
			p.env.fetchFailed(NameQueueFunction, err)
			return
		}
		if data != nil {
			p.apply(*data)
		}
	})
}

func (p *QueueFunction) apply(data domain.QueueFunctionInformation) {
	p.queueables = append([]domain.Queueable(nil), data.Queueables...)
	rows := make([]view.Row, 0, len(data.Queued))
	for _, q := range data.Queued {
		rows = append(rows, QueuedRow(q))
	}
	p.queued.Replace(rows)
}

// Search returns the queueables whose formatted name contains term, ignoring
// case. An empty term returns all of them.
func (p *QueueFunction) Search(term string) []QueueableOption {
	term = strings.ToLower(strings.TrimSpace(term))
	out := make([]QueueableOption, 0, len(p.queueables))
	for _, q := range p.queueables {
		formatted := view.FormatString(q.Name)
		if term != "" && !strings.Contains(strings.ToLower(formatted), term) {
			continue
		}
		out = append(out, QueueableOption{Name: q.Name, Formatted: formatted})
	}
	return out
}

// Queueable reports whether name can be queued.
func (p *QueueFunction) Queueable(name string) bool {
	for _, q := range p.queueables {
		if q.Name == name {
			return true
		}
	}
	return false
}

// QueuedRow is the table row for a queued function.
func QueuedRow(q domain.QueuedFunction) view.Row {
	return view.Row{PK: string(q.PK), Cells: map[string]string{
		"function": view.FormatString(q.Function),
		"queued":   q.Queued,
		"eta":      q.ETA,
	}}
}

// ValidDurationType reports whether t is one of DurationTypes.
func ValidDurationType(t string) bool {
	for _, d := range DurationTypes {
		if d == t {
			return true
		}
	}
	return false
}
