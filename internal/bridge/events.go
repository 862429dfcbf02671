package bridge

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jaakkos/titandash/internal/dispatch"
	"github.com/jaakkos/titandash/internal/domain"
)

// ErrUnknownEvent is returned for a notification that is not a dashboard event.
var ErrUnknownEvent = errors.New("unknown event")

// notificationParams accepts both named parameters and the backend's
// positional callback arguments.
type notificationParams struct {
	Instance domain.PK         `json:"instance"`
	PK       domain.PK         `json:"pk"`
	Entry    domain.PK         `json:"entry"`
	Payload  json.RawMessage   `json:"payload"`
	Data     json.RawMessage   `json:"data"`
	Args     []json.RawMessage `json:"args"`
}

// DecodeNotification turns a push notification into a dispatch.Event. The
// method may be an event kind or a backend callback name, with or without a
// "notifications/" prefix.
func DecodeNotification(method string, params json.RawMessage) (dispatch.Event, error) {
	kind, ok := dispatch.ParseKind(method)
	if !ok {
		return dispatch.Event{}, fmt.Errorf("%w: %s", ErrUnknownEvent, method)
	}
	ev := dispatch.Event{Kind: kind}
	if len(params) == 0 || string(params) == "null" {
		return ev, nil
	}
	var p notificationParams
	if err := json.Unmarshal(params, &p); err != nil {
		return ev, fmt.Errorf("decode %s: %w", method, err)
	}
	if len(p.Args) > 0 {
		return fromArgs(ev, p.Args)
	}

	ev.Payload = p.Payload
	if len(ev.Payload) == 0 {
		ev.Payload = p.Data
	}
	switch kind {
	case dispatch.KindQueueEntryRemoved:
		ev.InstanceID = p.Instance
		ev.EntryID = firstPK(p.Entry, p.PK)
	case dispatch.KindQueueEntryAdded, dispatch.KindToast:
		ev.InstanceID = p.Instance
		if len(ev.Payload) == 0 {
			ev.Payload = params
		}
	case dispatch.KindLogEmitted:
		ev.InstanceID = firstPK(p.Instance, p.PK)
		if len(ev.Payload) == 0 {
			ev.Payload = params
		}
	default:
		ev.InstanceID = firstPK(p.Instance, p.PK)
		ev.EntryID = p.Entry
	}
	return ev, nil
}

// fromArgs maps positional arguments the way the backend calls its
// dashboard callbacks.
func fromArgs(ev dispatch.Event, args []json.RawMessage) (dispatch.Event, error) {
	switch ev.Kind {
	case dispatch.KindInstanceStarted, dispatch.KindInstanceStopped:
		ev.InstanceID = argPK(args, 0)
	case dispatch.KindInstanceUpdated:
		ev.InstanceID = argPK(args, 0)
		ev.Payload = arg(args, 1)
	case dispatch.KindQueueEntryAdded:
		ev.Payload = arg(args, 0)
	case dispatch.KindQueueEntryRemoved:
		ev.EntryID = argPK(args, 0)
	case dispatch.KindLogEmitted:
		ev.InstanceID = argPK(args, 0)
		ev.Payload = arg(args, 1)
	case dispatch.KindToast:
		msg := domain.ToastMessage{
			Sender:  argText(args, 0),
			Message: argText(args, 1),
			Kind:    argText(args, 2),
		}
		var timeout float64
		if b := arg(args, 3); b != nil {
			_ = json.Unmarshal(b, &timeout)
		}
		msg.Timeout = int(timeout)
		b, err := json.Marshal(msg)
		if err != nil {
			return ev, fmt.Errorf("encode toast: %w", err)
		}
		ev.Payload = b
	}
	return ev, nil
}

func arg(args []json.RawMessage, i int) json.RawMessage {
	if i >= len(args) {
		return nil
	}
	return args[i]
}

func argPK(args []json.RawMessage, i int) domain.PK {
	var pk domain.PK
	if b := arg(args, i); b != nil {
		_ = json.Unmarshal(b, &pk)
	}
	return pk
}

func argText(args []json.RawMessage, i int) string {
	var t domain.Text
	if b := arg(args, i); b != nil {
		_ = json.Unmarshal(b, &t)
	}
	return string(t)
}

func firstPK(pks ...domain.PK) domain.PK {
	for _, pk := range pks {
		if pk != "" {
			return pk
		}
	}
	return ""
}
