package panel

import (
	"github.com/jaakkos/titandash/internal/domain"
)

// MaxLogRecords is how many records the logs panel keeps by default.
const MaxLogRecords = 3000

// Logs shows the log records of the selected instance, oldest first.
type Logs struct {
	env      *Env
	max      int
	records  []string
	onChange func(string)
}

// NewLogs keeps at most max records; a non-positive max uses MaxLogRecords.
func NewLogs(env *Env, max int) *Logs {
	if max <= 0 {
		max = MaxLogRecords
	}
	return &Logs{env: env, max: max}
}

// OnChange registers fn to run after the records change.
func (p *Logs) OnChange(fn func(panel string)) { p.onChange = fn }

// SetMax changes the limit, dropping the oldest records if needed.
func (p *Logs) SetMax(max int) {
	if max <= 0 {
		return
	}
	p.max = max
	p.trim()
}

// Init clears the panel for a newly selected instance.
func (p *Logs) Init(any) { p.Clear(nil) }

// Clear drops every record.
func (p *Logs) Clear(any) {
	if len(p.records) == 0 {
		return
	}
	p.records = nil
	p.changed()
}

// Add appends a domain.LogRecord payload if it belongs to the selected instance.
func (p *Logs) Add(payload any) {
	rec, err := domain.Decode[domain.LogRecord](payload)
	if err != nil {
		p.env.Logger.Printf("panel logs: %v", err)
		return
	}
	if rec.Instance != p.env.Selection.ActiveInstance() {
		return
	}
	p.records = append(p.records, rec.Record)
	p.trim()
	p.changed()
}

// Records returns a copy of the kept records.
func (p *Logs) Records() []string {
	return append([]string(nil), p.records...)
}

func (p *Logs) trim() {
	if over := len(p.records) - p.max; over > 0 {
		p.records = append([]string(nil), p.records[over:]...)
	}
}

func (p *Logs) changed() {
	if p.onChange != nil {
		p.onChange("logs")
	}
}
