package view

import (
	"sync"
	"testing"
	"time"
)

func TestBoardPublishesChanges(t *testing.T) {
	b := NewBoard()
	var mu sync.Mutex
	var got []Change
	b.Subscribe(func(c Change) {
		mu.Lock()
		got = append(got, c)
		mu.Unlock()
	})

	l := b.Label("selectedInstance.name", Placeholder)
	if b.Label("selectedInstance.name", "ignored") != l {
		t.Fatal("Label should return the existing label")
	}
	l.SetText("Bot One")
	l.SetText("Bot One")
	l.SetText("Bot Two")

	mu.Lock()
	defer mu.Unlock()
	if len(got) != 2 {
		t.Fatalf("changes = %v, want 2", got)
	}
	if got[1] != (Change{Target: "selectedInstance.name", Text: "Bot Two"}) {
		t.Errorf("last change = %+v", got[1])
	}
	if snap := b.Snapshot(); snap["selectedInstance.name"] != "Bot Two" {
		t.Errorf("Snapshot = %v", snap)
	}
}

func TestLabelReset(t *testing.T) {
	l := NewLabel("x", "a")
	l.Stamp(time.Now())
	l.SetKey("k")
	l.Reset(Placeholder)
	if l.Text() != Placeholder || !l.Stamped().IsZero() || l.Key() != "" {
		t.Errorf("after Reset: text=%q stamp=%v key=%q", l.Text(), l.Stamped(), l.Key())
	}
}

func TestTable(t *testing.T) {
	tbl := NewTable("queued")
	changes := 0
	tbl.OnChange(func(string) { changes++ })

	tbl.Append(Row{PK: "1", Cells: map[string]string{"function": "Prestige"}})
	tbl.Append(Row{PK: "2", Cells: map[string]string{"function": "Level Master"}})
	tbl.Append(Row{PK: "1", Cells: map[string]string{"function": "Prestige Now"}})
	if tbl.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", tbl.Len())
	}
	if r, _ := tbl.Find("1"); r.Cells["function"] != "Prestige Now" {
		t.Errorf("row 1 = %+v", r)
	}
	if !tbl.Remove("1") || tbl.Remove("1") {
		t.Error("Remove should succeed once")
	}
	if !tbl.SetCell("2", "eta", "soon") || tbl.SetCell("9", "eta", "never") {
		t.Error("SetCell reported wrong existence")
	}
	rows := tbl.Rows()
	rows[0].Cells["eta"] = "mutated"
	if r, _ := tbl.Find("2"); r.Cells["eta"] != "soon" {
		t.Error("Rows should return copies")
	}
	if changes != 5 {
		t.Errorf("changes = %d, want 5", changes)
	}
}

func TestToastsExpireAndDismiss(t *testing.T) {
	ts := NewToasts(0)
	defer ts.Close()

	var pushed []Toast
	ts.OnPush(func(toast Toast) { pushed = append(pushed, toast) })

	short := ts.Push("Queue", "queued", ToastSuccess, 20*time.Millisecond)
	long := ts.Push("Actions", "signal sent", "weird", 0)
	if long.Kind != ToastInfo || long.Icon != "fa-info" {
		t.Errorf("unknown kind = %q icon %q, want info", long.Kind, long.Icon)
	}
	if got := long.Expires.Sub(long.Created); got != DefaultToastTimeout {
		t.Errorf("default timeout = %v, want %v", got, DefaultToastTimeout)
	}
	if len(pushed) != 2 {
		t.Errorf("OnPush saw %d toasts, want 2", len(pushed))
	}

	deadline := time.Now().Add(2 * time.Second)
	for len(ts.Active()) != 1 {
		if time.Now().After(deadline) {
			t.Fatalf("short toast %d never expired", short.ID)
		}
		time.Sleep(5 * time.Millisecond)
	}
	if !ts.Dismiss(long.ID) {
		t.Error("Dismiss should remove a showing toast")
	}
	if ts.Dismiss(long.ID) {
		t.Error("second Dismiss should report false")
	}
	if n := len(ts.Active()); n != 0 {
		t.Errorf("Active() = %d toasts, want 0", n)
	}
}

func TestStripHTML(t *testing.T) {
	tests := map[string]string{
		"plain text":                                  "plain text",
		"  padded  ":                                  "padded",
		"<strong>Main</strong> was stopped":           "Main was stopped",
		"line one<br>line two":                        "line one line two",
		"Q &amp; A &lt;3":                             "Q & A <3",
		"<p>first</p><p>second</p>":                   "first second",
		`<img src=x onerror="alert(1)">caught`:        "caught",
		"<script>alert(1)</script>safe":               "safe",
		"<a href=\"/instances/1\">Bot</a>\n  started": "Bot started",
		"a < b":                                       "a < b",
	}
	for in, want := range tests {
		if got := StripHTML(in); got != want {
			t.Errorf("StripHTML(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestToastsStripMarkup(t *testing.T) {
	ts := NewToasts(time.Minute)
	defer ts.Close()

	toast := ts.Push("<b>Kill Instance</b>", "Instance <em>Main</em> killed<br>", ToastSuccess, 0)
	if toast.Sender != "Kill Instance" || toast.Message != "Instance Main killed" {
		t.Errorf("toast = %q / %q", toast.Sender, toast.Message)
	}
	active := ts.Active()
	if len(active) != 1 || active[0].Message != "Instance Main killed" {
		t.Errorf("Active() = %+v", active)
	}
}

func TestFormatString(t *testing.T) {
	tests := map[string]string{
		"next_break":          "Next Break",
		"level_master":        "Level Master",
		"PRESTIGE":            "Prestige",
		"":                    "",
		"daily_achievement_1": "Daily Achievement 1",
	}
	for in, want := range tests {
		if got := FormatString(in); got != want {
			t.Errorf("FormatString(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestPane(t *testing.T) {
	p := NewPane()
	if p.State() != Hidden {
		t.Errorf("initial = %q", p.State())
	}
	p.Hide()
	if p.State() != Loading {
		t.Errorf("after Hide = %q", p.State())
	}
	p.Show()
	if p.State() != Shown {
		t.Errorf("after Show = %q", p.State())
	}
}
