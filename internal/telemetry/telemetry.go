// Package telemetry defines the frame both layer state machines emit
// on every state transition (spec.md §4.8/§4.9 "emit telemetry") and,
// in store.go, a sqlite-backed append-only log of them, grounded on
// the teacher's internal/checkpoint/store.go migration style.
package telemetry

import "time"

// Frame is one telemetry event. Layer is "playlist", "timer", or "app";
// State is the layer's state-machine state at emission time. ID is
// filled in by Store.Accept if empty; callers that only route frames
// through the in-memory router (never persisting them) can leave it
// unset.
type Frame struct {
	ID        string
	Timestamp time.Time
	Layer     string
	State     string
	TrackID   string
	Message   string
}
