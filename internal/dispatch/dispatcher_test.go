package dispatch

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"testing"
	"time"

	"github.com/jaakkos/titandash/internal/domain"
	"github.com/jaakkos/titandash/internal/panel"
	"github.com/jaakkos/titandash/internal/view"
)

type selection struct{ active domain.PK }

func (s *selection) ActiveInstance() domain.PK { return s.active }

type instanceStates map[domain.PK]string

func (m instanceStates) SetState(pk domain.PK, state string) bool {
	m[pk] = state
	return true
}

type call struct {
	name    string
	payload any
}

type harness struct {
	d         *Dispatcher
	sel       *selection
	registry  *panel.Registry
	calls     []call
	instances instanceStates
	queue     *view.Table
	toasts    *view.Toasts
}

func newHarness(t *testing.T, active domain.PK, names ...string) *harness {
	t.Helper()
	h := &harness{
		sel:       &selection{active: active},
		registry:  panel.NewRegistry(log.New(io.Discard, "", 0)),
		instances: instanceStates{},
		queue:     view.NewTable("queued"),
		toasts:    view.NewToasts(time.Minute),
	}
	t.Cleanup(h.toasts.Close)
	for _, name := range names {
		name := name
		h.registry.Register(name, func(p any) { h.calls = append(h.calls, call{name, p}) })
	}
	h.d = New(Deps{
		Selection: h.sel,
		Panels:    h.registry,
		Instances: h.instances,
		Queue:     h.queue,
		Toasts:    h.toasts,
		Logger:    log.New(io.Discard, "", 0),
	})
	return h
}

var allPanels = []string{
	panel.NameSelectedInstance, panel.NameActions, panel.NameSettings,
	panel.NameQueueFunction, panel.NameAddLog,
}

func TestInstanceUpdatedForOtherInstanceInvokesNothing(t *testing.T) {
	h := newHarness(t, "bot-1", allPanels...)
	err := h.d.Handle(Event{Kind: KindInstanceUpdated, InstanceID: "bot-2", Payload: json.RawMessage(`{"name":"x"}`)})
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if len(h.calls) != 0 {
		t.Errorf("calls = %+v, want none", h.calls)
	}
}

func TestInstanceUpdatedForActiveInstancePassesPayload(t *testing.T) {
	h := newHarness(t, "bot-1", allPanels...)
	payload := json.RawMessage(`{"name":"x"}`)
	if err := h.d.Handle(Event{Kind: KindInstanceUpdated, InstanceID: "bot-1", Payload: payload}); err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if len(h.calls) != 1 || h.calls[0].name != panel.NameSelectedInstance {
		t.Fatalf("calls = %+v, want selectedInstance once", h.calls)
	}
	if got, ok := h.calls[0].payload.(json.RawMessage); !ok || string(got) != string(payload) {
		t.Errorf("payload = %#v", h.calls[0].payload)
	}
}

func TestInstanceStoppedForActiveInstance(t *testing.T) {
	h := newHarness(t, "bot-1", allPanels...)
	if err := h.d.Handle(Event{Kind: KindInstanceStopped, InstanceID: "bot-1"}); err != nil {
		t.Fatalf("Handle: %v", err)
	}
	counts := map[string]int{}
	for _, c := range h.calls {
		if c.payload != nil {
			t.Errorf("%s called with payload %v", c.name, c.payload)
		}
		counts[c.name]++
	}
	want := map[string]int{panel.NameSettings: 1, panel.NameActions: 1, panel.NameQueueFunction: 1}
	if len(counts) != len(want) {
		t.Fatalf("invoked %v, want %v", counts, want)
	}
	for name, n := range want {
		if counts[name] != n {
			t.Errorf("%s invoked %d times, want %d", name, counts[name], n)
		}
	}
	if h.instances["bot-1"] != domain.StateStopped {
		t.Errorf("state = %q, want stopped", h.instances["bot-1"])
	}
}

func TestInstanceStartedEndToEnd(t *testing.T) {
	env := &panel.Env{Board: view.NewBoard()}
	instances := panel.NewInstances(env)
	instances.Load([]domain.Instance{{PK: "bot-1", Name: "Bot", State: domain.StateStopped}})

	registry := panel.NewRegistry(log.New(io.Discard, "", 0))
	var actionCalls []any
	registry.Register(panel.NameActions, func(p any) { actionCalls = append(actionCalls, p) })

	d := New(Deps{
		Selection: &selection{active: "bot-1"},
		Panels:    registry,
		Instances: instances,
		Queue:     view.NewTable("queued"),
		Toasts:    view.NewToasts(time.Minute),
		Logger:    log.New(io.Discard, "", 0),
	})
	if err := d.Handle(Event{Kind: KindInstanceStarted, InstanceID: "bot-1"}); err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if len(actionCalls) != 1 || actionCalls[0] != nil {
		t.Errorf("actions calls = %v, want one call with no payload", actionCalls)
	}
	if got := env.Board.Get(panel.StateLabelID("bot-1")).Text(); got != "running" {
		t.Errorf("instance state label = %q, want running", got)
	}
}

func TestInstanceStartedForOtherInstanceOnlyUpdatesState(t *testing.T) {
	h := newHarness(t, "bot-1", allPanels...)
	if err := h.d.Handle(Event{Kind: KindInstanceStarted, InstanceID: "bot-2"}); err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if len(h.calls) != 0 {
		t.Errorf("calls = %+v, want none", h.calls)
	}
	if h.instances["bot-2"] != domain.StateRunning {
		t.Errorf("state = %q", h.instances["bot-2"])
	}
}

func TestQueueEntries(t *testing.T) {
	h := newHarness(t, "bot-1")
	add := Event{Kind: KindQueueEntryAdded, Payload: json.RawMessage(`{"pk":12,"function":"level_master","queued":"10:00","eta":"10:01"}`)}
	if err := h.d.Handle(add); err != nil {
		t.Fatalf("add: %v", err)
	}
	row, ok := h.queue.Find("12")
	if !ok || row.Cells["function"] != "Level Master" {
		t.Fatalf("row = %+v, %v", row, ok)
	}
	if err := h.d.Handle(Event{Kind: KindQueueEntryRemoved, EntryID: "12"}); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if err := h.d.Handle(Event{Kind: KindQueueEntryRemoved, EntryID: "12"}); err != nil {
		t.Errorf("removing a missing row should not fail: %v", err)
	}
	if h.queue.Len() != 0 {
		t.Errorf("Len() = %d, want 0", h.queue.Len())
	}
}

func TestToastEvent(t *testing.T) {
	h := newHarness(t, "bot-1")
	ev := Event{Kind: KindToast, Payload: json.RawMessage(`{"sender":"Flush Queue","message":"Flushed 2","kind":"success","timeout":1500}`)}
	if err := h.d.Handle(ev); err != nil {
		t.Fatalf("Handle: %v", err)
	}
	active := h.toasts.Active()
	if len(active) != 1 {
		t.Fatalf("toasts = %d, want 1", len(active))
	}
	if got := active[0].Expires.Sub(active[0].Created); got != 1500*time.Millisecond {
		t.Errorf("timeout = %v", got)
	}
	if active[0].Kind != view.ToastSuccess {
		t.Errorf("kind = %q", active[0].Kind)
	}
}

func TestLogEmitted(t *testing.T) {
	h := newHarness(t, "bot-1", panel.NameAddLog)
	for _, payload := range []string{`"line one"`, `{"record":"line two"}`} {
		if err := h.d.Handle(Event{Kind: KindLogEmitted, InstanceID: "bot-1", Payload: json.RawMessage(payload)}); err != nil {
			t.Fatalf("Handle(%s): %v", payload, err)
		}
	}
	if len(h.calls) != 2 {
		t.Fatalf("calls = %d", len(h.calls))
	}
	rec := h.calls[1].payload.(domain.LogRecord)
	if rec.Instance != "bot-1" || rec.Record != "line two" {
		t.Errorf("record = %+v", rec)
	}
}

func TestMalformedEventsDoNotBlockLaterOnes(t *testing.T) {
	h := newHarness(t, "bot-1", allPanels...)
	bad := []Event{
		{Kind: KindInstanceStarted},
		{Kind: KindInstanceUpdated, InstanceID: "bot-1"},
		{Kind: KindQueueEntryAdded, Payload: json.RawMessage(`[]`)},
		{Kind: KindQueueEntryRemoved},
		{Kind: KindToast, Payload: json.RawMessage(`{"sender":"x"}`)},
		{Kind: "mystery"},
	}
	for _, ev := range bad {
		if err := h.d.Handle(ev); !errors.Is(err, ErrMalformedEvent) {
			t.Errorf("Handle(%+v) = %v, want ErrMalformedEvent", ev, err)
		}
	}
	if err := h.d.Handle(Event{Kind: KindInstanceStopped, InstanceID: "bot-1"}); err != nil {
		t.Fatalf("good event after bad ones: %v", err)
	}
	if len(h.calls) != 3 {
		t.Errorf("calls = %d, want 3", len(h.calls))
	}
}

type panickyInstances struct{}

func (panickyInstances) SetState(domain.PK, string) bool { panic("table gone") }

func TestHandleRecoversPanic(t *testing.T) {
	d := New(Deps{
		Selection: &selection{active: "bot-1"},
		Panels:    panel.NewRegistry(nil),
		Instances: panickyInstances{},
		Logger:    log.New(io.Discard, "", 0),
	})
	if err := d.Handle(Event{Kind: KindInstanceStarted, InstanceID: "bot-1"}); err == nil {
		t.Error("expected error from recovered panic")
	}
}

func TestParseKind(t *testing.T) {
	tests := map[string]Kind{
		"instance_started":                    KindInstanceStarted,
		"base_queue_function_add":             KindQueueEntryAdded,
		"notifications/base_generate_toast":   KindToast,
		"notifications/titandash/log_emitted": KindLogEmitted,
	}
	for in, want := range tests {
		if got, ok := ParseKind(in); !ok || got != want {
			t.Errorf("ParseKind(%q) = %q, %v", in, got, ok)
		}
	}
	if _, ok := ParseKind("notifications/progress"); ok {
		t.Error("unknown names should not parse")
	}
}
