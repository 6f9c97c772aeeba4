package schedule

import (
	"iter"
	"sort"
	"time"
)

// TimeConfig is the time-level half of a Trigger (spec.md §4.3).
type TimeConfig struct {
	Type    string `json:"type"`              // "hourly"; unknown types yield nothing
	Minutes []int  `json:"minutes,omitempty"` // minute-of-hour offsets for "hourly"
}

// DayConfig is the day-level half of a Trigger (spec.md §4.3).
type DayConfig struct {
	Type string `json:"type"` // "dayofweek"
	Days []int  `json:"days,omitempty"` // ISO weekday numbers, Monday=0..Sunday=6
}

// Trigger fires a TimerTaskItem or gates a MasterScheduleEntry
// (spec.md §3). For GenerateSchedule a missing Day section permits
// every day, while a missing Time section yields nothing, so a wholly
// absent Trigger is treated as "never" by MasterSchedule.Evaluate.
type Trigger struct {
	OnStartup bool        `json:"on_startup,omitempty"`
	Day       *DayConfig  `json:"day,omitempty"`
	Time      *TimeConfig `json:"time,omitempty"`
}

// isoWeekday maps time.Weekday (Sunday=0) onto ISO numbering
// (Monday=0..Sunday=6), resolving spec.md §9's open question in favor
// of ISO.
func isoWeekday(t time.Time) int {
	return (int(t.Weekday()) + 6) % 7
}

func truncateToDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

func hourlyTimesForDay(day time.Time, minutes []int) []time.Time {
	dayStart := truncateToDay(day)
	out := make([]time.Time, 0, 24*len(minutes))
	for h := 0; h < 24; h++ {
		for _, m := range minutes {
			out = append(out, dayStart.Add(time.Duration(h)*time.Hour+time.Duration(m)*time.Minute))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out
}

// GenerateTriggerTime produces a lazy, strictly-increasing, typically
// infinite sequence of timestamps matching cfg, starting strictly after
// now (spec.md §4.3). Only "hourly" is implemented; unknown types yield
// nothing. Expressed as a Go 1.23 range-over-func iterator rather than
// a channel so a caller that only wants the first N values never
// spawns a goroutine that must be drained or leaked.
func GenerateTriggerTime(now time.Time, cfg TimeConfig) iter.Seq[time.Time] {
	return func(yield func(time.Time) bool) {
		switch cfg.Type {
		case "hourly":
			if len(cfg.Minutes) == 0 {
				return
			}
			day := now
			for {
				for _, t := range hourlyTimesForDay(day, cfg.Minutes) {
					if !t.After(now) {
						continue
					}
					if !yield(t) {
						return
					}
				}
				day = day.AddDate(0, 0, 1)
			}
		default:
			return
		}
	}
}

// GenerateSchedule intersects trigger's day-level constraint with its
// time-level constraint, yielding only timestamps whose weekday is
// permitted (spec.md §4.3). A nil Day means every day is permitted. A
// nil Time yields nothing — a trigger with no time-of-day component
// never fires.
func GenerateSchedule(now time.Time, trigger Trigger) iter.Seq[time.Time] {
	return func(yield func(time.Time) bool) {
		if trigger.Time == nil {
			return
		}
		var allowed map[int]bool
		if trigger.Day != nil && trigger.Day.Type == "dayofweek" {
			allowed = make(map[int]bool, len(trigger.Day.Days))
			for _, d := range trigger.Day.Days {
				allowed[d] = true
			}
		}
		for t := range GenerateTriggerTime(now, *trigger.Time) {
			if allowed != nil && !allowed[isoWeekday(t)] {
				continue
			}
			if !yield(t) {
				return
			}
		}
	}
}

// NextFire returns the first timestamp GenerateSchedule would yield
// after now, or false if the trigger is not satisfiable (e.g. a nil
// Time, or an unknown Time.Type).
func NextFire(now time.Time, trigger Trigger) (time.Time, bool) {
	for t := range GenerateSchedule(now, trigger) {
		return t, true
	}
	return time.Time{}, false
}
