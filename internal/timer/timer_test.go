package timer

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/orrery-labs/inkframe/internal/clock"
)

type recordingSink struct {
	mu       sync.Mutex
	received []any
	fail     bool
}

func (s *recordingSink) Accept(msg any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail {
		return errors.New("sink refused message")
	}
	s.received = append(s.received, msg)
	return nil
}

func (s *recordingSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.received)
}

func TestService_FiresExactlyOnce(t *testing.T) {
	svc := New(clock.Real{}, nil)
	sink := &recordingSink{}

	future, _ := svc.CreateTimer(20*time.Millisecond, sink, "ping")
	if got := future.Result(); got != "ping" {
		t.Fatalf("expected future to resolve to message, got %v", got)
	}
	if sink.count() != 1 {
		t.Fatalf("expected sink to be called exactly once, got %d", sink.count())
	}
}

func TestService_CancelBeforeFire_SinkNeverCalled(t *testing.T) {
	svc := New(clock.Real{}, nil)
	sink := &recordingSink{}

	future, cancel := svc.CreateTimer(200*time.Millisecond, sink, "ping")
	cancel()
	cancel() // idempotent

	if got := future.Result(); got != nil {
		t.Fatalf("expected cancelled future to resolve to nil, got %v", got)
	}
	if sink.count() != 0 {
		t.Fatalf("expected sink never called, got %d calls", sink.count())
	}
}

func TestService_ScaledClock_FiresEarlyInRealTime(t *testing.T) {
	scaled := clock.NewScaled(time.Now(), 60)
	svc := New(scaled, nil)
	sink := &recordingSink{}

	start := time.Now()
	future, _ := svc.CreateTimer(60*time.Second, sink, "tick")
	future.Result()
	elapsed := time.Since(start)

	if elapsed > 1050*time.Millisecond {
		t.Fatalf("expected a 60s scaled timer at 60x to fire within ~1s real time, took %v", elapsed)
	}
	if sink.count() != 1 {
		t.Fatalf("expected exactly one fire, got %d", sink.count())
	}
}

func TestService_Shutdown_CancelsOutstandingAndBlocksUntilDrained(t *testing.T) {
	svc := New(clock.Real{}, nil)
	sink := &recordingSink{}

	future, _ := svc.CreateTimer(time.Hour, sink, "never")
	svc.Shutdown()

	select {
	case <-future.Done():
	default:
		t.Fatal("expected future to be resolved after Shutdown")
	}
	if future.Result() != nil {
		t.Fatal("expected shutdown-cancelled future to resolve to nil")
	}
	if sink.count() != 0 {
		t.Fatal("expected sink never called for a timer cancelled by shutdown")
	}
}

func TestService_CreateAfterShutdown_ResolvesImmediatelyToNil(t *testing.T) {
	svc := New(clock.Real{}, nil)
	svc.Shutdown()

	sink := &recordingSink{}
	future, cancel := svc.CreateTimer(time.Millisecond, sink, "x")
	cancel()
	if future.Result() != nil {
		t.Fatal("expected a post-shutdown timer to resolve to nil")
	}
}
