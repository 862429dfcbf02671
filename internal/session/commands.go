package session

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jaakkos/titandash/internal/domain"
	"github.com/jaakkos/titandash/internal/panel"
	"github.com/jaakkos/titandash/internal/view"
)

var (
	ErrActionUnavailable = errors.New("action not available in the current state")
	ErrInstanceStopped   = errors.New("instance is stopped")
	ErrQueueEmpty        = errors.New("no functions queued")
	ErrInvalidDuration   = errors.New("invalid duration")
	ErrEmptyName         = errors.New("name is empty")
)

// target is the selected instance as seen from the loop.
type target struct {
	pk    domain.PK
	name  string
	state string
}

func (s *Session) target() target {
	pk := s.ActiveInstance()
	return target{pk: pk, name: s.instances.Name(pk), state: s.instances.State(pk)}
}

// Signal sends play, pause or stop to the selected instance, along with the
// configuration, window and shortcuts chosen in the settings panel.
func (s *Session) Signal(ctx context.Context, action domain.Action) error {
	var req domain.SignalRequest
	var t target
	err := s.onLoop(func() error {
		if !s.actions.Allowed(action) {
			return fmt.Errorf("%s: %w", action, ErrActionUnavailable)
		}
		t = s.target()
		c := s.settings.Choice()
		req = domain.SignalRequest{
			Instance:      t.pk,
			Configuration: c.Configuration,
			Window:        c.Window,
			Shortcuts:     c.Shortcuts,
			Action:        action,
		}
		return nil
	})
	if err != nil {
		return err
	}

	sender := "Send " + view.FormatString(string(action)) + " Signal"
	s.toasts.Push(sender, fmt.Sprintf("Sending %s signal to: %s.", action, t.name), view.ToastInfo, 0)
	if err := s.backend.Signal(ctx, req); err != nil {
		s.toasts.Push(sender, fmt.Sprintf("Signal could not be sent to: %s (%v).", t.name, err), view.ToastDanger, 0)
		return fmt.Errorf("signal %s: %w", action, err)
	}
	return nil
}

// Kill asks the backend to stop the selected instance immediately.
func (s *Session) Kill(ctx context.Context) error {
	var t target
	if err := s.onLoop(func() error { t = s.target(); return nil }); err != nil {
		return err
	}
	resp, err := s.backend.Kill(ctx, t.pk)
	if err != nil {
		s.toasts.Push("Kill Instance", fmt.Sprintf("Kill request could not be sent to: %s (%v).", t.name, err), view.ToastDanger, 0)
		return fmt.Errorf("kill: %w", err)
	}
	if resp != nil && resp.Status == "success" {
		s.toasts.Push("Kill Instance", fmt.Sprintf("Kill request has been successfully sent to: %s.", t.name), view.ToastSuccess, 0)
		return nil
	}
	kind := view.ToastWarning
	if resp != nil && resp.Status != "" {
		kind = view.ParseToastKind(resp.Status)
	}
	s.toasts.Push("Kill Instance", fmt.Sprintf("Kill request could not be sent to: %s because the instance is not currently running.", t.name), kind, 0)
	return nil
}

// QueueFunction queues function on the selected instance to run after
// duration units of durationType. A zero duration runs it as soon as possible.
// The queue table is updated by the push event that follows.
func (s *Session) QueueFunction(ctx context.Context, function string, duration int, durationType string) error {
	var t target
	err := s.onLoop(func() error {
		if !s.queue.Queueable(function) {
			return fmt.Errorf("queue %q: %w", function, panel.ErrUnknownOption)
		}
		if !panel.ValidDurationType(durationType) {
			return fmt.Errorf("duration type %q: %w", durationType, panel.ErrUnknownOption)
		}
		t = s.target()
		return nil
	})
	if err != nil {
		return err
	}
	formatted := strings.ToLower(view.FormatString(function))
	if t.state == domain.StateStopped {
		s.toasts.Push("Queue Function", fmt.Sprintf("Function: %s cannot be queued while %s is stopped.", formatted, t.name), view.ToastWarning, 0)
		return ErrInstanceStopped
	}
	if duration < 0 {
		s.toasts.Push("Queue Function", "You must enter a valid duration if the custom duration is selected.", view.ToastDanger, 0)
		return ErrInvalidDuration
	}
	if err := s.backend.QueueFunction(ctx, t.pk, function, duration, durationType); err != nil {
		s.toasts.Push("Queue Function", fmt.Sprintf("Function: %s could not be queued: %v.", formatted, err), view.ToastDanger, 0)
		return fmt.Errorf("queue %s: %w", function, err)
	}
	return nil
}

// FlushQueue removes every queued function of the selected instance.
func (s *Session) FlushQueue(ctx context.Context) error {
	var t target
	var queued int
	err := s.onLoop(func() error {
		t = s.target()
		queued = s.queue.Queued().Len()
		return nil
	})
	if err != nil {
		return err
	}
	if t.state == domain.StateStopped {
		s.toasts.Push("Flush Queue", fmt.Sprintf("Queued functions cannot be flushed while %s is stopped.", t.name), view.ToastWarning, 0)
		return ErrInstanceStopped
	}
	if queued == 0 {
		s.toasts.Push("Flush Queue", fmt.Sprintf("No functions are currently queued up to execute against %s.", t.name), view.ToastWarning, 0)
		return ErrQueueEmpty
	}
	if err := s.backend.FlushQueue(ctx, t.pk); err != nil {
		s.toasts.Push("Flush Queue", fmt.Sprintf("Queue could not be flushed: %v.", err), view.ToastDanger, 0)
		return fmt.Errorf("flush queue: %w", err)
	}
	return nil
}

// AddInstance creates a new bot instance and lists it.
func (s *Session) AddInstance(ctx context.Context) (domain.Instance, error) {
	inst, err := s.backend.AddInstance(ctx)
	if err != nil {
		return domain.Instance{}, fmt.Errorf("add instance: %w", err)
	}
	if inst == nil {
		return domain.Instance{}, errors.New("add instance: empty response")
	}
	if err := s.loop.Call(func() { s.instances.Added(*inst) }); err != nil {
		return domain.Instance{}, err
	}
	s.toasts.Push("Add Bot Instance", fmt.Sprintf("%s has been added successfully.", inst.Name), view.ToastSuccess, 0)
	return *inst, nil
}

// RemoveInstance deletes pk. The selected instance and the last remaining
// instance cannot be removed.
func (s *Session) RemoveInstance(ctx context.Context, pk domain.PK) error {
	var name string
	err := s.onLoop(func() error {
		if err := s.instances.CanRemove(pk, s.ActiveInstance()); err != nil {
			return fmt.Errorf("remove %s: %w", pk, err)
		}
		name = s.instances.Name(pk)
		return nil
	})
	if err != nil {
		return err
	}
	if err := s.backend.RemoveInstance(ctx, pk); err != nil {
		return fmt.Errorf("remove %s: %w", pk, err)
	}
	if err := s.loop.Call(func() { s.instances.Removed(pk) }); err != nil {
		return err
	}
	s.toasts.Push("Remove Bot Instance", fmt.Sprintf("%s has been removed successfully.", name), view.ToastSuccess, 0)
	return nil
}

// RenameInstance gives pk a new display name.
func (s *Session) RenameInstance(ctx context.Context, pk domain.PK, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return ErrEmptyName
	}
	err := s.onLoop(func() error {
		if !s.instances.Has(pk) {
			return fmt.Errorf("rename %s: %w", pk, panel.ErrUnknownInstance)
		}
		return nil
	})
	if err != nil {
		return err
	}
	if err := s.backend.RenameInstance(ctx, pk, name); err != nil {
		return fmt.Errorf("rename %s: %w", pk, err)
	}
	err = s.loop.Call(func() {
		s.instances.Renamed(pk, name)
		if pk == s.ActiveInstance() {
			s.selected.Label("name").SetText(name)
		}
	})
	if err != nil {
		return err
	}
	s.toasts.Push("Rename Bot Instance", fmt.Sprintf("%s has been renamed successfully.", name), view.ToastSuccess, 0)
	return nil
}

// ChooseSettings records the configuration, window and shortcuts the next
// play signal is sent with.
func (s *Session) ChooseSettings(c panel.Choice) error {
	return s.onLoop(func() error { return s.settings.Choose(c) })
}

// DismissToast removes a toast before it expires.
func (s *Session) DismissToast(id int64) bool {
	return s.toasts.Dismiss(id)
}

// Queueables lists the functions matching term.
func (s *Session) Queueables(term string) ([]panel.QueueableOption, error) {
	var out []panel.QueueableOption
	err := s.loop.Call(func() { out = s.queue.Search(term) })
	return out, err
}
