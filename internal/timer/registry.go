package timer

import (
	"errors"
	"fmt"
)

// ErrUnknownSlot is returned when reconciling a slot the registry never declared.
var ErrUnknownSlot = errors.New("unknown timer slot")

// Kind selects which timer a registry constructs.
type Kind int

const (
	KindCountdown Kind = iota
	KindStopwatch
)

func (k Kind) String() string {
	if k == KindStopwatch {
		return "stopwatch"
	}
	return "countdown"
}

// Outcome is what Reconcile did to a slot.
type Outcome int

const (
	Kept Outcome = iota
	Created
	Replaced
)

func (o Outcome) String() string {
	switch o {
	case Created:
		return "created"
	case Replaced:
		return "replaced"
	}
	return "kept"
}

// Constructor builds a timer for a registry.
type Constructor func(kind Kind, spec Spec) Handle

// Option configures a Registry.
type Option func(*Registry)

// WithClock makes the default constructor tick against clock.
func WithClock(clock Clock) Option {
	return func(r *Registry) { r.clock = clock }
}

// WithConstructor replaces how timers are built.
func WithConstructor(c Constructor) Option {
	return func(r *Registry) { r.construct = c }
}

// Registry holds a fixed set of named slots, each with at most one timer.
//
// A Registry is not safe for concurrent use; it belongs to the panel that
// declared it and is only touched from the session loop.
type Registry struct {
	kind      Kind
	order     []string
	slots     map[string]Handle
	clock     Clock
	construct Constructor
}

// NewRegistry declares the slots a panel owns. All start empty.
func NewRegistry(kind Kind, slots []string, opts ...Option) *Registry {
	r := &Registry{
		kind:  kind,
		order: append([]string(nil), slots...),
		slots: make(map[string]Handle, len(slots)),
	}
	for _, name := range slots {
		r.slots[name] = nil
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.construct == nil {
		r.construct = r.defaultConstruct
	}
	return r
}

func (r *Registry) defaultConstruct(kind Kind, spec Spec) Handle {
	if kind == KindStopwatch {
		return NewStopwatch(spec, r.clock)
	}
	return NewCountdown(spec, r.clock)
}

// Kind returns the timer kind this registry constructs.
func (r *Registry) Kind() Kind { return r.kind }

// Reconcile makes slot hold a timer for spec. The reference is stamped on the
// target first. An empty slot gets a new timer; an occupant with a different
// reference is destroyed and replaced; an occupant with the same reference is
// left running.
func (r *Registry) Reconcile(slot string, spec Spec) (Outcome, error) {
	current, ok := r.slots[slot]
	if !ok {
		return Kept, fmt.Errorf("reconcile %q: %w", slot, ErrUnknownSlot)
	}
	if s, ok := spec.Target.(Stamper); ok {
		s.Stamp(spec.Reference)
	}
	if current == nil {
		r.slots[slot] = r.construct(r.kind, spec)
		return Created, nil
	}
	if current.Reference().Equal(spec.Reference) {
		return Kept, nil
	}
	current.Destroy()
	r.slots[slot] = r.construct(r.kind, spec)
	return Replaced, nil
}

// Reset destroys and clears every slot. It returns how many timers it destroyed.
func (r *Registry) Reset() int {
	n := 0
	for _, name := range r.order {
		if h := r.slots[name]; h != nil {
			h.Destroy()
			r.slots[name] = nil
			n++
		}
	}
	return n
}

// Live reports how many slots currently hold a timer.
func (r *Registry) Live() int {
	n := 0
	for _, h := range r.slots {
		if h != nil {
			n++
		}
	}
	return n
}

// Handle returns the timer in slot, or nil.
func (r *Registry) Handle(slot string) Handle {
	return r.slots[slot]
}

// Slots returns the declared slot names in declaration order.
func (r *Registry) Slots() []string {
	return append([]string(nil), r.order...)
}
