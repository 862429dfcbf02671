package domain

import (
	"encoding/json"
	"testing"
	"time"
)

const samplePayload = `{
	"pk": 7,
	"name": "Main Bot",
	"state": "running",
	"shortcuts": true,
	"session": {"uuid": "c0ffee", "url": "/sessions/c0ffee"},
	"configuration": {"pk": 2, "name": "Default", "url": "/configurations/2"},
	"window": {"hwnd": 65812, "formatted": "NoxPlayer (480x800)"},
	"started": {"datetime": "2024-03-01T10:00:00", "formatted": "03/01/2024 10:00:00"},
	"function": "level_master",
	"last_prestige": "not an object",
	"log": {"pk": 11, "url": "/logs/11"},
	"stage": {"stage": 4120, "diff": 30, "percent": "99.28%"},
	"newest_hero": "Maya",
	"next_break": {"datetime": "2024-03-01T11:30:00", "formatted": "11:30 AM"},
	"next_prestige": {"datetime": null, "formatted": null},
	"next_war_cry": 12
}`

func TestInstanceInformationSkipsMalformedFields(t *testing.T) {
	var info InstanceInformation
	if err := json.Unmarshal([]byte(samplePayload), &info); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if info.PK != "7" || info.Name != "Main Bot" || info.State != StateRunning {
		t.Errorf("base fields = %q %q %q", info.PK, info.Name, info.State)
	}
	if info.LastPrestige != nil {
		t.Errorf("LastPrestige = %+v, want nil for malformed value", info.LastPrestige)
	}
	if info.Shortcuts == nil || !*info.Shortcuts {
		t.Error("Shortcuts should be true")
	}
	if info.Window == nil || info.Window.HWND != "65812" {
		t.Errorf("Window = %+v", info.Window)
	}
	if info.CurrentStage == nil || info.CurrentStage.Stage != "4120" || info.CurrentStage.Percent != "99.28%" {
		t.Errorf("CurrentStage = %+v", info.CurrentStage)
	}
	if len(info.Countdowns) != 1 {
		t.Errorf("Countdowns = %v, want only next_break", info.Countdowns)
	}
	if ts := info.Countdowns["next_break"]; ts.Formatted != "11:30 AM" {
		t.Errorf("next_break = %+v", ts)
	}
}

func TestInstanceInformationRejectsNonObject(t *testing.T) {
	var info InstanceInformation
	if err := json.Unmarshal([]byte(`[1,2]`), &info); err == nil {
		t.Error("expected error for array payload")
	}
}

func TestTimestampTime(t *testing.T) {
	tests := []struct {
		in   string
		want time.Time
	}{
		{"2024-03-01T10:00:00Z", time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)},
		{"2024-03-01T10:00:00.250000", time.Date(2024, 3, 1, 10, 0, 0, 250000000, time.Local)},
		{"2024-03-01 10:00:00", time.Date(2024, 3, 1, 10, 0, 0, 0, time.Local)},
	}
	for _, tt := range tests {
		got, err := Timestamp{Datetime: tt.in}.Time()
		if err != nil {
			t.Errorf("Time(%q): %v", tt.in, err)
			continue
		}
		if !got.Equal(tt.want) {
			t.Errorf("Time(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
	if _, err := (Timestamp{Datetime: "yesterday"}).Time(); err == nil {
		t.Error("expected error for unparseable datetime")
	}
}

func TestDecode(t *testing.T) {
	want := ActionsInformation{State: "paused"}

	if got, err := Decode[ActionsInformation](want); err != nil || got != want {
		t.Errorf("value: %+v, %v", got, err)
	}
	if got, err := Decode[ActionsInformation](&want); err != nil || got != want {
		t.Errorf("pointer: %+v, %v", got, err)
	}
	if got, err := Decode[ActionsInformation](json.RawMessage(`{"state":"paused"}`)); err != nil || got != want {
		t.Errorf("raw: %+v, %v", got, err)
	}
	if got, err := Decode[ActionsInformation](map[string]any{"state": "paused"}); err != nil || got != want {
		t.Errorf("map: %+v, %v", got, err)
	}
	if _, err := Decode[ActionsInformation](nil); err == nil {
		t.Error("nil payload should fail")
	}
	if _, err := Decode[ActionsInformation](`{"state": 3}`); err == nil {
		t.Error("wrong type should fail")
	}
}

func TestParseAction(t *testing.T) {
	if a, err := ParseAction("pause"); err != nil || a != ActionPause {
		t.Errorf("ParseAction(pause) = %q, %v", a, err)
	}
	if _, err := ParseAction("explode"); err == nil {
		t.Error("expected error for unknown action")
	}
}
