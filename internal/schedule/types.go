// Package schedule implements the schedule model and evaluator of
// spec.md §3/§4.3: PluginSchedule/TimedSchedule track entries, linear
// Playlists, trigger-fired TimerTaskItems, and the MasterSchedule state
// machine that resolves "what runs at t". It is grounded on the
// teacher's internal/scheduler/types.go Task/Schedule/Execution shapes,
// generalized from a single flat Task list into the layered
// master/timed/playlist/task entities spec.md §3 requires.
package schedule

import (
	"fmt"
	"sort"
	"time"
)

// PluginSchedule is a timed item within a TimedSchedule (spec.md §3).
type PluginSchedule struct {
	PluginName     string         `json:"plugin_name"`
	ID             string         `json:"id"`
	Title          string         `json:"title"`
	StartMinutes   int            `json:"start_minutes"`
	DurationMinutes int           `json:"duration_minutes"`
	Content        map[string]any `json:"content,omitempty"`
}

// Validate checks the field-level invariants from spec.md §3.
func (p PluginSchedule) Validate() error {
	if p.ID == "" {
		return fmt.Errorf("plugin schedule item missing id")
	}
	if p.StartMinutes < 0 || p.StartMinutes >= 1440 {
		return fmt.Errorf("item %q: start_minutes %d out of range [0,1440)", p.ID, p.StartMinutes)
	}
	if p.DurationMinutes <= 0 {
		return fmt.Errorf("item %q: duration_minutes must be > 0", p.ID)
	}
	return nil
}

// Start returns the item's absolute start time relative to baseDate
// (the local midnight the item's minutes are offset from).
func (p PluginSchedule) Start(baseDate time.Time) time.Time {
	return baseDate.Add(time.Duration(p.StartMinutes) * time.Minute)
}

// End returns Start(baseDate) + DurationMinutes; adjacent-day overflow
// is allowed (spec.md §3).
func (p PluginSchedule) End(baseDate time.Time) time.Time {
	return p.Start(baseDate).Add(time.Duration(p.DurationMinutes) * time.Minute)
}

// TimedSchedule is a set of PluginSchedule items keyed by id
// (spec.md §3); SortedItems gives them in start order.
type TimedSchedule struct {
	Items map[string]PluginSchedule `json:"items"`
}

// NewTimedSchedule builds a TimedSchedule from a slice, indexing by id.
func NewTimedSchedule(items []PluginSchedule) *TimedSchedule {
	m := make(map[string]PluginSchedule, len(items))
	for _, it := range items {
		m[it.ID] = it
	}
	return &TimedSchedule{Items: m}
}

// SortedItems returns items ordered by StartMinutes, ties broken by id.
func (t *TimedSchedule) SortedItems() []PluginSchedule {
	out := make([]PluginSchedule, 0, len(t.Items))
	for _, it := range t.Items {
		out = append(out, it)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].StartMinutes != out[j].StartMinutes {
			return out[i].StartMinutes < out[j].StartMinutes
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Current returns the item whose [start,end) half-open interval,
// offset from baseDate, contains at, or false if none.
func (t *TimedSchedule) Current(baseDate, at time.Time) (PluginSchedule, bool) {
	for _, it := range t.SortedItems() {
		start, end := it.Start(baseDate), it.End(baseDate)
		if !at.Before(start) && at.Before(end) {
			return it, true
		}
	}
	return PluginSchedule{}, false
}

// Check returns the first item in items that overlaps candidate on
// [start,end), or false if there is no conflict. baseDate anchors both
// the candidate and the compared items to the same day.
func Check(baseDate time.Time, candidate PluginSchedule, items []PluginSchedule) (PluginSchedule, bool) {
	cStart, cEnd := candidate.Start(baseDate), candidate.End(baseDate)
	for _, it := range items {
		if it.ID == candidate.ID {
			continue
		}
		start, end := it.Start(baseDate), it.End(baseDate)
		if cStart.Before(end) && start.Before(cEnd) {
			return it, true
		}
	}
	return PluginSchedule{}, false
}

// Validate checks unique ids (guaranteed by the map keying) and
// pairwise non-overlap on [start,end) for every item against every
// later item in SortedItems (spec.md §3 invariant).
func (t *TimedSchedule) Validate(baseDate time.Time) error {
	sorted := t.SortedItems()
	for _, it := range sorted {
		if err := it.Validate(); err != nil {
			return err
		}
	}
	for i, it := range sorted {
		if conflict, ok := Check(baseDate, it, sorted[i+1:]); ok {
			return fmt.Errorf("timed schedule item %q overlaps item %q", it.ID, conflict.ID)
		}
	}
	return nil
}

// PlaylistSchedule is a playlist item (spec.md §3).
type PlaylistSchedule struct {
	PluginName string         `json:"plugin_name"`
	ID         string         `json:"id"`
	Title      string         `json:"title"`
	Content    map[string]any `json:"content,omitempty"`
}

// Playlist is an ordered list of PlaylistSchedule items, advanced
// linearly by the playlist layer.
type Playlist struct {
	Name  string             `json:"name"`
	Items []PlaylistSchedule `json:"items"`
}

// Validate checks unique ids within the playlist.
func (p *Playlist) Validate() error {
	seen := make(map[string]bool, len(p.Items))
	for _, it := range p.Items {
		if it.ID == "" {
			return fmt.Errorf("playlist %q: item missing id", p.Name)
		}
		if seen[it.ID] {
			return fmt.Errorf("playlist %q: duplicate item id %q", p.Name, it.ID)
		}
		seen[it.ID] = true
	}
	return nil
}

// At returns the item at index i and whether it exists.
func (p *Playlist) At(i int) (PlaylistSchedule, bool) {
	if i < 0 || i >= len(p.Items) {
		return PlaylistSchedule{}, false
	}
	return p.Items[i], true
}

// TimerTaskItem is a trigger-fired task (spec.md §3).
type TimerTaskItem struct {
	ID      string  `json:"id"`
	Title   string  `json:"title"`
	Enabled bool    `json:"enabled"`
	Task    Task    `json:"task"`
	Trigger Trigger `json:"trigger"`
}

// Task is the plugin invocation payload carried by a TimerTaskItem.
type Task struct {
	PluginName      string         `json:"plugin_name"`
	DurationMinutes int            `json:"duration_minutes"`
	Content         map[string]any `json:"content,omitempty"`
}

// TimerTasks is a list of TimerTaskItem, unique by id.
type TimerTasks struct {
	Items []TimerTaskItem `json:"items"`
}

// Validate checks unique ids within the task list.
func (t *TimerTasks) Validate() error {
	seen := make(map[string]bool, len(t.Items))
	for _, it := range t.Items {
		if it.ID == "" {
			return fmt.Errorf("timer task missing id")
		}
		if seen[it.ID] {
			return fmt.Errorf("duplicate timer task id %q", it.ID)
		}
		seen[it.ID] = true
	}
	return nil
}

// EnabledItems returns every item with Enabled == true, preserving
// declaration order (spec.md §4.9 "Fairness & tie-breaks").
func (t *TimerTasks) EnabledItems() []TimerTaskItem {
	var out []TimerTaskItem
	for _, it := range t.Items {
		if it.Enabled {
			out = append(out, it)
		}
	}
	return out
}

// MasterScheduleEntry binds a named TimedSchedule to an enable flag
// and a firing trigger (spec.md §3).
type MasterScheduleEntry struct {
	Name    string  `json:"name"`
	Enabled bool    `json:"enabled"`
	Schedule string `json:"schedule"`
	Trigger Trigger `json:"trigger"`
}

// MasterSchedule is the top-level state machine mapping instants to a
// TimedSchedule name (spec.md §3/§4.3).
type MasterSchedule struct {
	DefaultSchedule string                `json:"default_schedule"`
	Schedules       []MasterScheduleEntry `json:"schedules"`
}

// Validate checks that every referenced schedule name resolves to a
// known document in known (spec.md §3 "valid iff every referenced
// schedule resolves to a known TimedSchedule"). known is just a name
// set: the playlist layer's MasterSchedule entries name Playlists, so
// Validate takes no opinion on what kind of document backs a name,
// only that one exists.
func (m *MasterSchedule) Validate(known map[string]bool) error {
	if !known[m.DefaultSchedule] {
		return fmt.Errorf("master schedule: unknown default schedule %q", m.DefaultSchedule)
	}
	for _, e := range m.Schedules {
		if !known[e.Schedule] {
			return fmt.Errorf("master schedule: entry %q references unknown schedule %q", e.Name, e.Schedule)
		}
	}
	return nil
}
