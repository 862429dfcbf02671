// Package dispatch fans backend push events out to the dashboard panels.
//
// Instance events only reach panel update functions when they concern the
// active instance. Queue and toast events are applied unconditionally: the
// backend only pushes queue changes for the instance the dashboard asked
// about, and the client does not check.
package dispatch

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/jaakkos/titandash/internal/domain"
	"github.com/jaakkos/titandash/internal/panel"
	"github.com/jaakkos/titandash/internal/view"
)

// ErrMalformedEvent is returned for an event that is missing what its kind needs.
var ErrMalformedEvent = errors.New("malformed event")

// Invoker runs a registered panel update function.
type Invoker interface {
	Invoke(name string, payload ...any) bool
}

// InstanceList holds the per-instance state labels.
type InstanceList interface {
	SetState(pk domain.PK, state string) bool
}

// QueueTable holds the queued function rows.
type QueueTable interface {
	Append(row view.Row)
	Remove(pk string) bool
}

// Deps are the collaborators a Dispatcher writes to.
type Deps struct {
	Selection panel.Selection
	Panels    Invoker
	Instances InstanceList
	Queue     QueueTable
	Toasts    panel.Toaster
	Logger    *log.Logger
}

// Dispatcher routes events. It is not safe for concurrent use; the session
// calls it from its loop.
type Dispatcher struct {
	sel       panel.Selection
	panels    Invoker
	instances InstanceList
	queue     QueueTable
	toasts    panel.Toaster
	logger    *log.Logger
}

func New(d Deps) *Dispatcher {
	return &Dispatcher{
		sel:       d.Selection,
		panels:    d.Panels,
		instances: d.Instances,
		queue:     d.Queue,
		toasts:    d.Toasts,
		logger:    d.Logger,
	}
}

// InstanceStarted marks id running and, if it is selected, refreshes the
// settings, actions and queue function panels.
func (d *Dispatcher) InstanceStarted(id domain.PK) {
	d.instanceStateChanged(id, domain.StateRunning)
}

// InstanceStopped marks id stopped and, if it is selected, refreshes the
// settings, actions and queue function panels.
func (d *Dispatcher) InstanceStopped(id domain.PK) {
	d.instanceStateChanged(id, domain.StateStopped)
}

func (d *Dispatcher) instanceStateChanged(id domain.PK, state string) {
	d.instances.SetState(id, state)
	if id != d.sel.ActiveInstance() {
		return
	}
	d.panels.Invoke(panel.NameSettings)
	d.panels.Invoke(panel.NameActions)
	d.panels.Invoke(panel.NameQueueFunction)
}

// InstanceUpdated hands payload to the selected instance panel if id is
// selected. The panel applies it without fetching.
func (d *Dispatcher) InstanceUpdated(id domain.PK, payload any) {
	if id != d.sel.ActiveInstance() {
		return
	}
	d.panels.Invoke(panel.NameSelectedInstance, payload)
}

// QueueEntryAdded appends a row for entry.
func (d *Dispatcher) QueueEntryAdded(entry domain.QueuedFunction) {
	d.queue.Append(panel.QueuedRow(entry))
}

// QueueEntryRemoved removes the row for id if there is one.
func (d *Dispatcher) QueueEntryRemoved(id domain.PK) {
	d.queue.Remove(string(id))
}

// Toast shows a notification. A non-positive timeout uses the default.
func (d *Dispatcher) Toast(msg domain.ToastMessage) {
	d.toasts.Push(msg.Sender, msg.Message, view.ParseToastKind(msg.Kind), time.Duration(msg.Timeout)*time.Millisecond)
}

// LogEmitted forwards a log record to the logs panel, which keeps it only if
// id is selected.
func (d *Dispatcher) LogEmitted(id domain.PK, record string) {
	d.panels.Invoke(panel.NameAddLog, domain.LogRecord{Instance: id, Record: record})
}

// Handle validates ev and routes it. A malformed event returns an error
// wrapping ErrMalformedEvent; a panic in a handler is recovered and returned
// as an error. Neither affects later events.
func (d *Dispatcher) Handle(ev Event) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("dispatch %s: panic: %v", ev.Kind, p)
			if d.logger != nil {
				d.logger.Print(err)
			}
		}
	}()

	switch ev.Kind {
	case KindInstanceStarted, KindInstanceStopped:
		if ev.InstanceID == "" {
			return malformed(ev.Kind, "missing instance")
		}
		if ev.Kind == KindInstanceStarted {
			d.InstanceStarted(ev.InstanceID)
		} else {
			d.InstanceStopped(ev.InstanceID)
		}
	case KindInstanceUpdated:
		if ev.InstanceID == "" {
			return malformed(ev.Kind, "missing instance")
		}
		if len(ev.Payload) == 0 {
			return malformed(ev.Kind, "missing payload")
		}
		d.InstanceUpdated(ev.InstanceID, ev.Payload)
	case KindQueueEntryAdded:
		var entry domain.QueuedFunction
		if err := json.Unmarshal(ev.Payload, &entry); err != nil {
			return malformed(ev.Kind, err.Error())
		}
		if entry.PK == "" {
			return malformed(ev.Kind, "missing entry pk")
		}
		d.QueueEntryAdded(entry)
	case KindQueueEntryRemoved:
		if ev.EntryID == "" {
			return malformed(ev.Kind, "missing entry")
		}
		d.QueueEntryRemoved(ev.EntryID)
	case KindToast:
		var msg domain.ToastMessage
		if err := json.Unmarshal(ev.Payload, &msg); err != nil {
			return malformed(ev.Kind, err.Error())
		}
		if msg.Message == "" {
			return malformed(ev.Kind, "missing message")
		}
		d.Toast(msg)
	case KindLogEmitted:
		if ev.InstanceID == "" {
			return malformed(ev.Kind, "missing instance")
		}
		record, err := decodeRecord(ev.Payload)
		if err != nil {
			return malformed(ev.Kind, err.Error())
		}
		d.LogEmitted(ev.InstanceID, record)
	default:
		return malformed(ev.Kind, "unknown kind")
	}
	return nil
}

// decodeRecord accepts a bare JSON string or a {"record": ...} object.
func decodeRecord(b json.RawMessage) (string, error) {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		return s, nil
	}
	var rec domain.LogRecord
	if err := json.Unmarshal(b, &rec); err != nil {
		return "", err
	}
	return rec.Record, nil
}

func malformed(kind Kind, reason string) error {
	return fmt.Errorf("%w: %s: %s", ErrMalformedEvent, kind, reason)
}
