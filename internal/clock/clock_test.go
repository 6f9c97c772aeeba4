package clock

import (
	"testing"
	"time"
)

func TestReal_Now(t *testing.T) {
	var c Real
	before := time.Now()
	got := c.Now()
	after := time.Now()
	if got.Before(before) || got.After(after) {
		t.Errorf("Now() = %v, want between %v and %v", got, before, after)
	}
}

func TestScaled_NowAdvancesFaster(t *testing.T) {
	origin := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	c := NewScaled(origin, 60)

	time.Sleep(20 * time.Millisecond)
	elapsed := c.Now().Sub(origin)

	// At 60x, 20ms real should be roughly 1.2s simulated.
	if elapsed < 500*time.Millisecond {
		t.Errorf("elapsed simulated time = %v, want at least 500ms for 60x scale", elapsed)
	}
}

func TestScaled_AfterFuncFiresEarlyInRealTime(t *testing.T) {
	origin := time.Now()
	c := NewScaled(origin, 60)

	done := make(chan struct{})
	start := time.Now()
	c.AfterFunc(60*time.Second, func() { close(done) })

	select {
	case <-done:
		real := time.Since(start)
		if real > 1050*time.Millisecond {
			t.Errorf("AfterFunc(60s) at 60x scale took %v real time, want ~1s", real)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("AfterFunc did not fire within 2 real seconds")
	}
}

func TestScaled_AfterFuncCancel(t *testing.T) {
	c := NewScaled(time.Now(), 60)

	fired := false
	timer := c.AfterFunc(60*time.Second, func() { fired = true })
	if !timer.Stop() {
		t.Fatal("Stop() on a non-fired timer should return true")
	}

	time.Sleep(1200 * time.Millisecond)
	if fired {
		t.Error("cancelled timer fired")
	}
}
