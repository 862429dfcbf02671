package panel

import (
	"context"

	"github.com/jaakkos/titandash/internal/domain"
	"github.com/jaakkos/titandash/internal/view"
)

// Instances is the list of bot instances with their state labels.
type Instances struct {
	env   *Env
	pane  *view.Pane
	table *view.Table
}

func NewInstances(env *Env) *Instances {
	return &Instances{env: env, pane: view.NewPane(), table: view.NewTable(NameInstances)}
}

// Table exposes the backing rows.
func (p *Instances) Table() *view.Table { return p.table }

func (p *Instances) Pane() *view.Pane { return p.pane }

// Load replaces the list.
func (p *Instances) Load(list []domain.Instance) {
	rows := make([]view.Row, 0, len(list))
	for _, inst := range list {
		rows = append(rows, instanceRow(inst))
		p.stateLabel(inst.PK).SetText(inst.State)
	}
	p.table.Replace(rows)
	p.pane.Show()
}

// Update reloads the list from the backend, or from a []domain.Instance payload.
func (p *Instances) Update(payload any) {
	if payload != nil {
		list, err := domain.Decode[[]domain.Instance](payload)
		if err != nil {
			p.env.Logger.Printf("panel %s: %v", NameInstances, err)
			return
		}
		p.Load(list)
		return
	}
	p.pane.Hide()
	Fetch(p.env.Fetcher, NameInstances, p.env.Backend.InstancesAvailable, func(list []domain.Instance, err error) {
		defer p.pane.Show()
		if err != nil {
			p.env.fetchFailed(NameInstances, err)
			return
		}
		p.Load(list)
	})
}

// Fetch loads the list synchronously. Used once at session start.
func (p *Instances) Fetch(ctx context.Context) ([]domain.Instance, error) {
	return p.env.Backend.InstancesAvailable(ctx)
}

// SetState updates the state shown for pk, whether or not it is selected. It
// reports whether pk is in the list.
func (p *Instances) SetState(pk domain.PK, state string) bool {
	p.stateLabel(pk).SetText(state)
	return p.table.SetCell(string(pk), "state", state)
}

// State returns the last known state of pk, or "" if unknown.
func (p *Instances) State(pk domain.PK) string {
	row, ok := p.table.Find(string(pk))
	if !ok {
		return ""
	}
	return row.Cells["state"]
}

// Name returns the display name of pk.
func (p *Instances) Name(pk domain.PK) string {
	row, ok := p.table.Find(string(pk))
	if !ok {
		return string(pk)
	}
	return row.Cells["name"]
}

func (p *Instances) Has(pk domain.PK) bool {
	_, ok := p.table.Find(string(pk))
	return ok
}

// First returns the first instance in the list.
func (p *Instances) First() (domain.PK, bool) {
	rows := p.table.Rows()
	if len(rows) == 0 {
		return "", false
	}
	return domain.PK(rows[0].PK), true
}

func (p *Instances) Len() int { return p.table.Len() }

// Added appends a newly created instance.
func (p *Instances) Added(inst domain.Instance) {
	p.table.Append(instanceRow(inst))
	p.stateLabel(inst.PK).SetText(inst.State)
}

// CanRemove checks the removal rules: never the last instance, never the
// selected one.
func (p *Instances) CanRemove(pk, selected domain.PK) error {
	if !p.Has(pk) {
		return ErrUnknownInstance
	}
	if p.Len() <= 1 {
		return ErrLastInstance
	}
	if pk == selected {
		return ErrSelectedInstance
	}
	return nil
}

// Removed drops pk from the list.
func (p *Instances) Removed(pk domain.PK) bool {
	return p.table.Remove(string(pk))
}

// Renamed changes the display name of pk.
func (p *Instances) Renamed(pk domain.PK, name string) bool {
	return p.table.SetCell(string(pk), "name", name)
}

func (p *Instances) stateLabel(pk domain.PK) *view.Label {
	return p.env.Board.Label(StateLabelID(pk), view.Placeholder)
}

// StateLabelID is the board id of the state label of an instance.
func StateLabelID(pk domain.PK) string {
	return NameInstances + "." + string(pk) + ".state"
}

func instanceRow(inst domain.Instance) view.Row {
	return view.Row{PK: string(inst.PK), Cells: map[string]string{"name": inst.Name, "state": inst.State}}
}
