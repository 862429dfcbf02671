package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// Action is a signal the actions panel can send to an instance.
type Action string

const (
	ActionPlay  Action = "play"
	ActionPause Action = "pause"
	ActionStop  Action = "stop"
)

// ParseAction validates an action name.
func ParseAction(s string) (Action, error) {
	switch a := Action(s); a {
	case ActionPlay, ActionPause, ActionStop:
		return a, nil
	}
	return "", fmt.Errorf("unknown action %q", s)
}

// ActionsInformation is the actions panel payload.
type ActionsInformation struct {
	State string `json:"state"`
}

// SignalRequest carries an action plus the settings it should start with.
type SignalRequest struct {
	Instance      PK     `json:"selected_instance"`
	Configuration string `json:"configuration"`
	Window        string `json:"window"`
	Shortcuts     bool   `json:"shortcuts"`
	Action        Action `json:"action"`
}

// KillResponse reports whether a kill request stopped anything.
type KillResponse struct {
	Status string `json:"status"`
}

// SettingsInformation is the settings panel payload.
type SettingsInformation struct {
	Active   bool `json:"active"`
	Instance struct {
		Configuration *PK   `json:"configuration"`
		Window        *Text `json:"window"`
	} `json:"instance"`
	Configurations []NamedLink `json:"configurations"`
	Windows        struct {
		Filtered []Window `json:"filtered"`
		All      []Window `json:"all"`
	} `json:"windows"`
	Shortcuts bool `json:"shortcuts"`
}

// Queueable is a bot function that can be queued by hand.
type Queueable struct {
	Name string `json:"name"`
}

// QueuedFunction is one entry in an instance's function queue.
type QueuedFunction struct {
	PK           PK     `json:"pk"`
	Function     string `json:"function"`
	Queued       string `json:"queued"`
	ETA          string `json:"eta"`
	Duration     Text   `json:"duration,omitempty"`
	DurationType string `json:"duration_type,omitempty"`
}

// QueueFunctionInformation is the queue function panel payload.
type QueueFunctionInformation struct {
	Queueables []Queueable      `json:"queueables"`
	Queued     []QueuedFunction `json:"queued"`
}

// ToastMessage is a notification pushed by the backend.
type ToastMessage struct {
	Sender  string `json:"sender"`
	Message string `json:"message"`
	Kind    string `json:"kind"`
	Timeout int    `json:"timeout,omitempty"`
}

// LogRecord is one formatted log line emitted by an instance.
type LogRecord struct {
	Instance PK     `json:"instance"`
	Record   string `json:"record"`
}

// Alert is a toast kept in the alert history.
type Alert struct {
	ID        int64     `json:"id"`
	Sender    string    `json:"sender"`
	Message   string    `json:"message"`
	Kind      string    `json:"kind"`
	CreatedAt time.Time `json:"created_at"`
}

// Decode converts a payload handed to an update function into T. The payload
// may already be a T or *T, raw JSON, or a generic decoded JSON value.
func Decode[T any](payload any) (T, error) {
	var zero T
	switch v := payload.(type) {
	case nil:
		return zero, fmt.Errorf("decode %T: nil payload", zero)
	case T:
		return v, nil
	case *T:
		if v == nil {
			return zero, fmt.Errorf("decode %T: nil payload", zero)
		}
		return *v, nil
	case json.RawMessage:
		return unmarshal[T](v)
	case []byte:
		return unmarshal[T](v)
	case string:
		return unmarshal[T]([]byte(v))
	}
	b, err := json.Marshal(payload)
	if err != nil {
		return zero, fmt.Errorf("decode %T: %w", zero, err)
	}
	return unmarshal[T](b)
}

func unmarshal[T any](b []byte) (T, error) {
	var v T
	if err := json.Unmarshal(b, &v); err != nil {
		return v, fmt.Errorf("decode %T: %w", v, err)
	}
	return v, nil
}
