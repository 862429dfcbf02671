package panel

import (
	"context"
	"strings"

	"github.com/jaakkos/titandash/internal/domain"
	"github.com/jaakkos/titandash/internal/timer"
	"github.com/jaakkos/titandash/internal/view"
)

// Stopwatch slots of the selected instance panel.
const (
	SlotStarted   = "startedStopwatch"
	SlotTimestamp = "timestampStopwatch"
)

type countdownField struct {
	key   string // payload key
	field string // label field
	slot  string // timer slot
}

// Label fields and timer slots are the camelCased payload key, except for
// these.
var (
	countdownFieldNames = map[string]string{
		"next_raid_attack_reset":   "raidAttackReset",
		"break_resume":             "nextBreakResume",
		"next_prestige":            "nextTimedThresholdPrestige",
		"next_randomized_prestige": "nextRandomizedThresholdPrestige",
	}
	countdownSlotNames = map[string]string{
		"next_raid_attack_reset": "raidAttackResetCountdown",
	}
)

var countdownFields = buildCountdownFields(domain.CountdownKeys)

func buildCountdownFields(keys []string) []countdownField {
	out := make([]countdownField, 0, len(keys))
	for _, key := range keys {
		f := countdownField{key: key, field: camelCase(key), slot: camelCase(key) + "Countdown"}
		if name, ok := countdownFieldNames[key]; ok {
			f.field = name
		}
		if name, ok := countdownSlotNames[key]; ok {
			f.slot = name
		}
		out = append(out, f)
	}
	return out
}

// camelCase turns "next_war_cry" into "nextWarCry".
func camelCase(key string) string {
	parts := strings.Split(key, "_")
	for i := 1; i < len(parts); i++ {
		if parts[i] != "" {
			parts[i] = strings.ToUpper(parts[i][:1]) + parts[i][1:]
		}
	}
	return strings.Join(parts, "")
}

var staticFields = []string{
	"name", "state", "session", "started", "function",
	"timestamp", "stage", "duration", "artifact",
	"logFile", "configuration", "window", "shortcuts", "currentStage", "newestHero", "nextArtifactUpgrade",
}

// InstanceStates reports the last known state of an instance.
type InstanceStates interface {
	State(pk domain.PK) string
}

// TimerOptions configures the timers the selected instance panel runs.
type TimerOptions struct {
	DisablePadding bool
	Clock          timer.Clock
	Constructor    timer.Constructor
}

// SelectedInstance shows everything known about the active instance, with
// live stopwatches for elapsed times and countdowns for upcoming ones.
type SelectedInstance struct {
	env            *Env
	pane           *view.Pane
	states         InstanceStates
	disablePadding bool

	labels      map[string]*view.Label
	stopwatches *timer.Registry
	countdowns  *timer.Registry

	data   *domain.InstanceInformation
	onData func(*domain.InstanceInformation)
}

func NewSelectedInstance(env *Env, states InstanceStates, opts TimerOptions) *SelectedInstance {
	p := &SelectedInstance{
		env:            env,
		pane:           view.NewPane(),
		states:         states,
		disablePadding: opts.DisablePadding,
		labels:         make(map[string]*view.Label),
	}
	for _, f := range staticFields {
		p.labels[f] = env.label(NameSelectedInstance, f)
	}
	slots := make([]string, 0, len(countdownFields))
	for _, f := range countdownFields {
		p.labels[f.field] = env.label(NameSelectedInstance, f.field)
		slots = append(slots, f.slot)
	}
	var topts []timer.Option
	if opts.Clock != nil {
		topts = append(topts, timer.WithClock(opts.Clock))
	}
	if opts.Constructor != nil {
		topts = append(topts, timer.WithConstructor(opts.Constructor))
	}
	p.stopwatches = timer.NewRegistry(timer.KindStopwatch, []string{SlotStarted, SlotTimestamp}, topts...)
	p.countdowns = timer.NewRegistry(timer.KindCountdown, slots, topts...)
	return p
}

func (p *SelectedInstance) Pane() *view.Pane { return p.pane }

// OnData registers fn to receive every payload the panel applies.
func (p *SelectedInstance) OnData(fn func(*domain.InstanceInformation)) { p.onData = fn }

// Data returns the payload the panel was last built from, or nil.
func (p *SelectedInstance) Data() *domain.InstanceInformation { return p.data }

// Stopwatches returns the stopwatch registry.
func (p *SelectedInstance) Stopwatches() *timer.Registry { return p.stopwatches }

// Countdowns returns the countdown registry.
func (p *SelectedInstance) Countdowns() *timer.Registry { return p.countdowns }

// Label returns the label of a field such as "name" or "nextBreak".
func (p *SelectedInstance) Label(field string) *view.Label { return p.labels[field] }

// Fields returns the text of every field.
func (p *SelectedInstance) Fields() map[string]string {
	out := make(map[string]string, len(p.labels))
	for f, l := range p.labels {
		out[f] = l.Text()
	}
	return out
}

// Update applies a pushed payload in place. With no payload it hides the
// panel, fetches, rebuilds and shows it again.
func (p *SelectedInstance) Update(payload any) {
	if payload != nil {
		data, err := domain.Decode[domain.InstanceInformation](payload)
		if err != nil {
			p.env.Logger.Printf("panel %s: %v", NameSelectedInstance, err)
			return
		}
		p.env.Fetcher.Supersede(NameSelectedInstance)
		p.apply(&data)
		p.pane.Show()
		return
	}
	p.pane.Hide()
	instance := p.env.Selection.ActiveInstance()
	Fetch(p.env.Fetcher, NameSelectedInstance, func(ctx context.Context) (*domain.InstanceInformation, error) {
		return p.env.Backend.InstanceInformation(ctx, instance)
	}, func(data *domain.InstanceInformation, err error) {
		defer p.pane.Show()
		if err != nil {
			p.env.fetchFailed(NameSelectedInstance, err)
			return
		}
		if data != nil {
			p.apply(data)
		}
	})
}

func (p *SelectedInstance) apply(data *domain.InstanceInformation) {
	p.data = data
	if p.onData != nil {
		defer p.onData(data)
	}

	state := p.states.State(p.env.Selection.ActiveInstance())
	if state == "" {
		state = data.State
	}
	if state == domain.StateStopped {
		p.Reset()
	}

	p.setText("name", data.Name)
	p.setText("state", data.State)
	if !domain.Active(state) {
		return
	}

	if data.Session != nil {
		p.setText("session", data.Session.UUID)
	}
	p.reconcile(p.stopwatches, SlotStarted, "started", data.Started)
	p.setText("function", data.Function)

	if lp := data.LastPrestige; lp != nil {
		p.reconcile(p.stopwatches, SlotTimestamp, "timestamp", &lp.Timestamp)
		p.setText("stage", string(lp.Stage))
		p.setText("duration", string(lp.Duration))
		if lp.Artifact != nil {
			p.setKeyed("artifact", string(lp.Artifact.PK), view.FormatString(lp.Artifact.Name))
		}
	}
	if data.Log != nil {
		p.setKeyed("logFile", string(data.Log.PK), "Link")
	}
	if data.Configuration != nil {
		p.setText("configuration", data.Configuration.Name)
	}
	if data.Window != nil {
		p.setText("window", data.Window.Formatted)
	}
	if data.Shortcuts != nil {
		text := "DISABLED"
		if *data.Shortcuts {
			text = "ENABLED"
		}
		p.setText("shortcuts", text)
	}
	if s := data.CurrentStage; s != nil {
		p.setText("currentStage", string(s.Stage)+" ("+string(s.Diff)+" - "+string(s.Percent)+")")
	}
	p.setText("newestHero", data.NewestHero)
	if a := data.NextArtifactUpgrade; a != nil {
		p.setKeyed("nextArtifactUpgrade", a.Key, view.FormatString(a.Name))
	}

	for _, f := range countdownFields {
		if ts, ok := data.Countdowns[f.key]; ok {
			p.reconcile(p.countdowns, f.slot, f.field, &ts)
		}
	}
}

// setText writes non-empty text to a field.
func (p *SelectedInstance) setText(field, text string) {
	if text == "" {
		return
	}
	p.labels[field].SetText(text)
}

// setKeyed rewrites a field only when the value it was built from changed.
func (p *SelectedInstance) setKeyed(field, key, text string) {
	l := p.labels[field]
	if l.Key() == key && key != "" {
		return
	}
	l.SetKey(key)
	l.SetText(text)
}

// reconcile points slot at ts unless the field already carries that stamp.
func (p *SelectedInstance) reconcile(reg *timer.Registry, slot, field string, ts *domain.Timestamp) {
	if !ts.Set() {
		return
	}
	ref, err := ts.Time()
	if err != nil {
		p.env.Logger.Printf("panel %s: %s: %v", NameSelectedInstance, field, err)
		return
	}
	target := p.labels[field]
	if target.Stamped().Equal(ref) && reg.Handle(slot) != nil {
		return
	}
	spec := timer.Spec{Reference: ref, Label: ts.Formatted, Target: target, DisablePadding: p.disablePadding}
	if _, err := reg.Reconcile(slot, spec); err != nil {
		p.env.Logger.Printf("panel %s: %v", NameSelectedInstance, err)
	}
}

// Reset puts every field back to the placeholder and destroys every timer.
// Timers go first so none writes over a reset field.
func (p *SelectedInstance) Reset() {
	p.stopwatches.Reset()
	p.countdowns.Reset()
	for _, l := range p.labels {
		l.Reset(view.Placeholder)
	}
}

// Teardown destroys every timer and leaves the fields as they are.
func (p *SelectedInstance) Teardown() {
	p.stopwatches.Reset()
	p.countdowns.Reset()
}
