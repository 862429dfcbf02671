// Package panel implements the dashboard panels and the registry of update
// functions that push events use to resync them.
package panel

import (
	"log"
	"sort"
	"sync"
)

// Update function names. Panels register under these at session start.
const (
	NameSelectedInstance = "selectedInstance"
	NameActions          = "actions"
	NameSettings         = "settings"
	NameQueueFunction    = "queueFunction"
	NameInstances        = "instances"
	NameInitLogs         = "initLogs"
	NameAddLog           = "addLog"
	NameClearLogs        = "clearLogs"
)

// UpdateFunc resyncs a panel. A nil payload means the panel must fetch its own
// data; otherwise the payload is applied as if it had been fetched.
type UpdateFunc func(payload any)

// Registry maps panel names to their update functions for the life of a
// session. Registering a name again replaces the previous function.
type Registry struct {
	mu     sync.RWMutex
	fns    map[string]UpdateFunc
	logger *log.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry(logger *log.Logger) *Registry {
	return &Registry{fns: make(map[string]UpdateFunc), logger: logger}
}

// Register stores fn under name.
func (r *Registry) Register(name string, fn UpdateFunc) {
	r.mu.Lock()
	r.fns[name] = fn
	r.mu.Unlock()
}

// Invoke calls the function registered under name with payload, or with nil
// when no payload is given. An unregistered name is a no-op and reports false;
// that is the normal case for a panel that has not finished initializing. A
// panic in the update function is logged and swallowed.
func (r *Registry) Invoke(name string, payload ...any) (invoked bool) {
	r.mu.RLock()
	fn, ok := r.fns[name]
	r.mu.RUnlock()
	if !ok || fn == nil {
		return false
	}
	var arg any
	if len(payload) > 0 {
		arg = payload[0]
	}
	defer func() {
		if p := recover(); p != nil && r.logger != nil {
			r.logger.Printf("panel %s: update panicked: %v", name, p)
		}
	}()
	invoked = true
	fn(arg)
	return true
}

// Registered reports whether name has an update function.
func (r *Registry) Registered(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.fns[name]
	return ok
}

// Names returns every registered name, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.fns))
	for name := range r.fns {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
