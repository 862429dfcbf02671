package dispatch

import (
	"encoding/json"
	"strings"

	"github.com/jaakkos/titandash/internal/domain"
)

// Kind names a push event.
type Kind string

const (
	KindInstanceStarted   Kind = "instance_started"
	KindInstanceStopped   Kind = "instance_stopped"
	KindInstanceUpdated   Kind = "instance_updated"
	KindQueueEntryAdded   Kind = "queue_entry_added"
	KindQueueEntryRemoved Kind = "queue_entry_removed"
	KindToast             Kind = "toast"
	KindLogEmitted        Kind = "log_emitted"
)

// legacyNames maps the backend's exposed callback names to event kinds.
var legacyNames = map[string]Kind{
	"base_instance_started":      KindInstanceStarted,
	"base_instance_stopped":      KindInstanceStopped,
	"base_instance_updated":      KindInstanceUpdated,
	"base_queue_function_add":    KindQueueEntryAdded,
	"base_queue_function_remove": KindQueueEntryRemoved,
	"base_generate_toast":        KindToast,
	"base_log_emitted":           KindLogEmitted,
}

// ParseKind resolves an event name. It accepts the kind itself, the backend's
// callback name, and either one behind a "notifications/" style prefix.
func ParseKind(name string) (Kind, bool) {
	if i := strings.LastIndexByte(name, '/'); i >= 0 {
		name = name[i+1:]
	}
	if k, ok := legacyNames[name]; ok {
		return k, true
	}
	switch k := Kind(name); k {
	case KindInstanceStarted, KindInstanceStopped, KindInstanceUpdated,
		KindQueueEntryAdded, KindQueueEntryRemoved, KindToast, KindLogEmitted:
		return k, true
	}
	return "", false
}

// Event is one push event from the backend. Payload holds the kind-specific
// body: instance information for instance_updated, a queued function for
// queue_entry_added, a toast message for toast and the record for log_emitted.
type Event struct {
	Kind       Kind            `json:"kind"`
	InstanceID domain.PK       `json:"instance,omitempty"`
	EntryID    domain.PK       `json:"entry,omitempty"`
	Payload    json.RawMessage `json:"payload,omitempty"`
}
