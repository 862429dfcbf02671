package view

import "sync"

// Row is one table row. Cells are keyed by column name.
type Row struct {
	PK    string            `json:"pk"`
	Cells map[string]string `json:"cells"`
}

func (r Row) clone() Row {
	cells := make(map[string]string, len(r.Cells))
	for k, v := range r.Cells {
		cells[k] = v
	}
	return Row{PK: r.PK, Cells: cells}
}

// Table is an ordered set of rows keyed by primary key.
type Table struct {
	name string

	mu       sync.RWMutex
	rows     []Row
	onChange func(table string)
}

func NewTable(name string) *Table {
	return &Table{name: name}
}

func (t *Table) Name() string { return t.name }

// OnChange registers fn to run after every mutation.
func (t *Table) OnChange(fn func(table string)) {
	t.mu.Lock()
	t.onChange = fn
	t.mu.Unlock()
}

func (t *Table) changed() {
	t.mu.RLock()
	fn := t.onChange
	t.mu.RUnlock()
	if fn != nil {
		fn(t.name)
	}
}

// Append adds row at the end, replacing any row with the same PK in place.
func (t *Table) Append(row Row) {
	row = row.clone()
	t.mu.Lock()
	if i := t.index(row.PK); i >= 0 {
		t.rows[i] = row
	} else {
		t.rows = append(t.rows, row)
	}
	t.mu.Unlock()
	t.changed()
}

// Remove deletes the row with pk. It reports whether a row was removed.
func (t *Table) Remove(pk string) bool {
	t.mu.Lock()
	i := t.index(pk)
	if i < 0 {
		t.mu.Unlock()
		return false
	}
	t.rows = append(t.rows[:i], t.rows[i+1:]...)
	t.mu.Unlock()
	t.changed()
	return true
}

// Replace swaps in a whole new set of rows.
func (t *Table) Replace(rows []Row) {
	next := make([]Row, 0, len(rows))
	for _, r := range rows {
		next = append(next, r.clone())
	}
	t.mu.Lock()
	t.rows = next
	t.mu.Unlock()
	t.changed()
}

// SetCell updates one cell. It reports whether the row exists.
func (t *Table) SetCell(pk, column, text string) bool {
	t.mu.Lock()
	i := t.index(pk)
	if i < 0 {
		t.mu.Unlock()
		return false
	}
	if t.rows[i].Cells[column] == text {
		t.mu.Unlock()
		return true
	}
	t.rows[i].Cells[column] = text
	t.mu.Unlock()
	t.changed()
	return true
}

// Find returns a copy of the row with pk.
func (t *Table) Find(pk string) (Row, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if i := t.index(pk); i >= 0 {
		return t.rows[i].clone(), true
	}
	return Row{}, false
}

// Rows returns a copy of every row in order.
func (t *Table) Rows() []Row {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]Row, 0, len(t.rows))
	for _, r := range t.rows {
		out = append(out, r.clone())
	}
	return out
}

func (t *Table) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.rows)
}

func (t *Table) index(pk string) int {
	for i, r := range t.rows {
		if r.PK == pk {
			return i
		}
	}
	return -1
}
