package schedule

import "time"

// matchEpsilon is the "t - ε" lookback used by the match policy
// (spec.md §4.3 "an item matches at t iff generate_schedule(t-ε,
// trigger) yields t"). One microsecond is small enough that no real
// trigger's next-fire granularity (whole minutes) could ever alias
// onto a neighboring slot, while staying comfortably clear of the
// exact-t boundary GenerateTriggerTime excludes with "strictly after".
const matchEpsilon = time.Microsecond

// matches reports whether trigger fires at exactly t, using the match
// policy from spec.md §4.3. A trigger with no Time section (and so no
// day/time component at all) never matches.
func matches(t time.Time, trigger Trigger) bool {
	next, ok := NextFire(t.Add(-matchEpsilon), trigger)
	return ok && next.Equal(t)
}

// Evaluate returns the "schedule" name of the first enabled entry
// whose trigger matches t, else DefaultSchedule (spec.md §3/§4.3). A
// missing trigger on an entry is treated as "never" and can never win.
// Evaluate is total: it always returns a name.
func (m *MasterSchedule) Evaluate(t time.Time) string {
	for _, e := range m.Schedules {
		if !e.Enabled {
			continue
		}
		if matches(t, e.Trigger) {
			return e.Schedule
		}
	}
	return m.DefaultSchedule
}
