package schedule

import (
	"testing"
	"time"
)

func mustParse(t *testing.T, s string) time.Time {
	t.Helper()
	ts, err := time.Parse(time.RFC3339, s)
	if err != nil {
		t.Fatalf("parse %q: %v", s, err)
	}
	return ts
}

func TestPluginSchedule_Validate(t *testing.T) {
	cases := []struct {
		name string
		item PluginSchedule
		ok   bool
	}{
		{"missing id", PluginSchedule{StartMinutes: 0, DurationMinutes: 1}, false},
		{"start too low", PluginSchedule{ID: "a", StartMinutes: -1, DurationMinutes: 1}, false},
		{"start too high", PluginSchedule{ID: "a", StartMinutes: 1440, DurationMinutes: 1}, false},
		{"zero duration", PluginSchedule{ID: "a", StartMinutes: 0, DurationMinutes: 0}, false},
		{"valid", PluginSchedule{ID: "a", StartMinutes: 0, DurationMinutes: 1}, true},
	}
	for _, c := range cases {
		err := c.item.Validate()
		if (err == nil) != c.ok {
			t.Errorf("%s: Validate() err=%v, want ok=%v", c.name, err, c.ok)
		}
	}
}

func TestTimedSchedule_SortedItemsAndCurrent(t *testing.T) {
	ts := NewTimedSchedule([]PluginSchedule{
		{ID: "b", StartMinutes: 120, DurationMinutes: 30},
		{ID: "a", StartMinutes: 60, DurationMinutes: 30},
	})
	sorted := ts.SortedItems()
	if sorted[0].ID != "a" || sorted[1].ID != "b" {
		t.Fatalf("expected a before b, got %v", sorted)
	}

	base := truncateToDay(mustParse(t, "2024-01-01T00:00:00Z"))
	at := base.Add(70 * time.Minute)
	cur, ok := ts.Current(base, at)
	if !ok || cur.ID != "a" {
		t.Fatalf("expected item a at +70m, got %v ok=%v", cur, ok)
	}

	_, ok = ts.Current(base, base.Add(90*time.Minute))
	if ok {
		t.Fatal("expected no current item in the gap between a and b")
	}
}

func TestTimedSchedule_Validate_DetectsOverlap(t *testing.T) {
	base := truncateToDay(mustParse(t, "2024-01-01T00:00:00Z"))
	ts := NewTimedSchedule([]PluginSchedule{
		{ID: "a", StartMinutes: 0, DurationMinutes: 60},
		{ID: "b", StartMinutes: 30, DurationMinutes: 60},
	})
	if err := ts.Validate(base); err == nil {
		t.Fatal("expected overlap to be detected")
	}
}

func TestTimedSchedule_Validate_AdjacentNonOverlapping(t *testing.T) {
	base := truncateToDay(mustParse(t, "2024-01-01T00:00:00Z"))
	ts := NewTimedSchedule([]PluginSchedule{
		{ID: "a", StartMinutes: 0, DurationMinutes: 60},
		{ID: "b", StartMinutes: 60, DurationMinutes: 60},
	})
	if err := ts.Validate(base); err != nil {
		t.Fatalf("half-open adjacent items should not conflict: %v", err)
	}
}

func TestPlaylist_Validate_DuplicateID(t *testing.T) {
	p := &Playlist{Name: "p", Items: []PlaylistSchedule{{ID: "x"}, {ID: "x"}}}
	if err := p.Validate(); err == nil {
		t.Fatal("expected duplicate id to be rejected")
	}
}

func TestTimerTasks_EnabledItemsPreservesOrder(t *testing.T) {
	tt := &TimerTasks{Items: []TimerTaskItem{
		{ID: "1", Enabled: false},
		{ID: "2", Enabled: true},
		{ID: "3", Enabled: true},
	}}
	enabled := tt.EnabledItems()
	if len(enabled) != 2 || enabled[0].ID != "2" || enabled[1].ID != "3" {
		t.Fatalf("unexpected enabled order: %v", enabled)
	}
}

func TestMasterSchedule_Validate(t *testing.T) {
	known := map[string]bool{"weekday": true}
	m := &MasterSchedule{DefaultSchedule: "weekday", Schedules: []MasterScheduleEntry{
		{Name: "a", Schedule: "missing"},
	}}
	if err := m.Validate(known); err == nil {
		t.Fatal("expected unknown schedule reference to be rejected")
	}

	m.Schedules[0].Schedule = "weekday"
	if err := m.Validate(known); err != nil {
		t.Fatalf("expected valid master schedule, got %v", err)
	}
}
