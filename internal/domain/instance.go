// Package domain holds the payload shapes the dashboard exchanges with the bot
// backend. It has no dependencies on other packages.
package domain

import (
	"encoding/json"
	"fmt"
)

// Instance states as reported by the backend.
const (
	StateRunning = "running"
	StatePaused  = "paused"
	StateStopped = "stopped"
)

// Active reports whether state is one where the bot is doing work.
func Active(state string) bool {
	return state == StateRunning || state == StatePaused
}

// Instance is one bot instance as listed in the instances panel.
type Instance struct {
	PK    PK     `json:"pk"`
	Name  string `json:"name"`
	State string `json:"state"`
}

// SessionRef links to the session an instance is running under.
type SessionRef struct {
	UUID string `json:"uuid"`
	URL  string `json:"url"`
}

// Artifact is an in-game artifact.
type Artifact struct {
	PK    PK     `json:"pk"`
	Name  string `json:"name"`
	Key   string `json:"key"`
	Image string `json:"image"`
}

// Prestige describes the most recent prestige of an instance.
type Prestige struct {
	Timestamp Timestamp `json:"timestamp"`
	Stage     Text      `json:"stage"`
	Duration  Text      `json:"duration"`
	Artifact  *Artifact `json:"artifact"`
}

// LogRef points at the log file of a running session. Path is only set when the
// backend shares a filesystem with the dashboard.
type LogRef struct {
	PK   PK     `json:"pk"`
	URL  string `json:"url"`
	Path string `json:"path"`
}

// NamedLink is a {pk, name, url} reference such as a configuration.
type NamedLink struct {
	PK   PK     `json:"pk"`
	Name string `json:"name"`
	URL  string `json:"url"`
}

// Window is a game window the bot can attach to.
type Window struct {
	HWND      Text   `json:"hwnd"`
	Formatted string `json:"formatted"`
}

// Stage is the current stage with its distance to the highest stage reached.
type Stage struct {
	Stage   Text `json:"stage"`
	Diff    Text `json:"diff"`
	Percent Text `json:"percent"`
}

// CountdownKeys lists the payload keys of every countdown the selected
// instance panel shows, in display order.
var CountdownKeys = []string{
	"next_raid_attack_reset",
	"next_break",
	"break_resume",
	"next_master_level",
	"next_heroes_level",
	"next_skills_level",
	"next_skills_activation",
	"next_miscellaneous_actions",
	"next_headgear_swap",
	"next_perk_check",
	"next_prestige",
	"next_randomized_prestige",
	"next_statistics_update",
	"next_daily_achievement_check",
	"next_milestone_check",
	"next_heavenly_strike",
	"next_deadly_strike",
	"next_hand_of_midas",
	"next_fire_sword",
	"next_war_cry",
	"next_shadow_clone",
}

// InstanceInformation is the full state of one instance, as fetched or pushed.
// Pointer fields are nil when the backend sent null or an unreadable value.
type InstanceInformation struct {
	PK                  PK
	Name                string
	State               string
	Shortcuts           *bool
	Session             *SessionRef
	Configuration       *NamedLink
	Window              *Window
	Started             *Timestamp
	Function            string
	LastPrestige        *Prestige
	Log                 *LogRef
	CurrentStage        *Stage
	NewestHero          string
	NextArtifactUpgrade *Artifact
	Countdowns          map[string]Timestamp
}

// UnmarshalJSON decodes field by field. A field with the wrong shape is
// skipped; the rest of the payload still applies.
func (i *InstanceInformation) UnmarshalJSON(b []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		return fmt.Errorf("instance information: %w", err)
	}
	*i = InstanceInformation{Countdowns: make(map[string]Timestamp)}

	field(raw, "pk", &i.PK)
	field(raw, "name", &i.Name)
	field(raw, "state", &i.State)
	field(raw, "function", &i.Function)
	field(raw, "newest_hero", &i.NewestHero)
	field(raw, "shortcuts", &i.Shortcuts)
	field(raw, "session", &i.Session)
	field(raw, "configuration", &i.Configuration)
	field(raw, "window", &i.Window)
	field(raw, "started", &i.Started)
	field(raw, "last_prestige", &i.LastPrestige)
	field(raw, "log", &i.Log)
	field(raw, "next_artifact_upgrade", &i.NextArtifactUpgrade)
	if !field(raw, "current_stage", &i.CurrentStage) || i.CurrentStage == nil {
		field(raw, "stage", &i.CurrentStage)
	}
	for _, key := range CountdownKeys {
		var ts *Timestamp
		if field(raw, key, &ts) && ts.Set() {
			i.Countdowns[key] = *ts
		}
	}
	return nil
}

// field decodes raw[key] into dst, reporting whether it was present and valid.
// dst is left untouched on failure.
func field[T any](raw map[string]json.RawMessage, key string, dst *T) bool {
	msg, ok := raw[key]
	if !ok {
		return false
	}
	var v T
	if err := json.Unmarshal(msg, &v); err != nil {
		return false
	}
	*dst = v
	return true
}
