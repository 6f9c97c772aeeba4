package future

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/orrery-labs/inkframe/internal/coreerr"
)

type recordingMailbox struct {
	mu       sync.Mutex
	received []any
}

func (m *recordingMailbox) Accept(msg any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.received = append(m.received, msg)
	return nil
}

func (m *recordingMailbox) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.received)
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("condition never became true")
}

func TestSubmitFuture_ContinuationRunsOnSuccess(t *testing.T) {
	owner := &recordingMailbox{}
	s := New(owner, nil)

	_, err := s.SubmitFuture(
		func(cancelled CancelCheck) (any, error) { return 42, nil },
		func(cancelled bool, result any, err error) any {
			if cancelled || err != nil || result != 42 {
				t.Errorf("unexpected continuation args: cancelled=%v result=%v err=%v", cancelled, result, err)
			}
			return "done"
		},
	)
	if err != nil {
		t.Fatalf("SubmitFuture: %v", err)
	}
	waitFor(t, func() bool { return owner.count() == 1 })
	if owner.received[0] != "done" {
		t.Fatalf("expected posted message 'done', got %v", owner.received[0])
	}
}

func TestSubmitFuture_WorkErrorRoutedToContinuation(t *testing.T) {
	owner := &recordingMailbox{}
	s := New(owner, nil)
	wantErr := errors.New("boom")

	_, err := s.SubmitFuture(
		func(cancelled CancelCheck) (any, error) { return nil, wantErr },
		func(cancelled bool, result any, err error) any {
			if !errors.Is(err, wantErr) {
				t.Errorf("expected wantErr, got %v", err)
			}
			return nil
		},
	)
	if err != nil {
		t.Fatalf("SubmitFuture: %v", err)
	}
	waitFor(t, func() bool { return true })
	if owner.count() != 0 {
		t.Fatal("continuation returning nil must post nothing")
	}
}

func TestSubmitFuture_CooperativeCancel(t *testing.T) {
	owner := &recordingMailbox{}
	s := New(owner, nil)
	started := make(chan struct{})

	cancelRequest, err := s.SubmitFuture(
		func(cancelled CancelCheck) (any, error) {
			close(started)
			for !cancelled() {
				time.Sleep(time.Millisecond)
			}
			return nil, nil
		},
		func(cancelled bool, result any, err error) any {
			if !cancelled {
				t.Error("expected continuation to observe cancelled=true")
			}
			return "cancelled-ack"
		},
	)
	if err != nil {
		t.Fatalf("SubmitFuture: %v", err)
	}
	<-started
	cancelRequest()
	cancelRequest() // idempotent

	waitFor(t, func() bool { return owner.count() == 1 })
	if owner.received[0] != "cancelled-ack" {
		t.Fatalf("got %v", owner.received[0])
	}
}

func TestSubmitFuture_ContinuationPanicSuppressed(t *testing.T) {
	owner := &recordingMailbox{}
	s := New(owner, nil)

	_, err := s.SubmitFuture(
		func(cancelled CancelCheck) (any, error) { return nil, nil },
		func(cancelled bool, result any, err error) any { panic("continuation exploded") },
	)
	if err != nil {
		t.Fatalf("SubmitFuture: %v", err)
	}
	waitFor(t, func() bool { return true })
	time.Sleep(10 * time.Millisecond)
	if owner.count() != 0 {
		t.Fatal("a panicking continuation must post nothing and not crash the test")
	}
}

func TestSubmitFuture_AfterShutdown_ReturnsClosed(t *testing.T) {
	owner := &recordingMailbox{}
	s := New(owner, nil)
	s.Shutdown()

	_, err := s.SubmitFuture(
		func(cancelled CancelCheck) (any, error) { return nil, nil },
		func(cancelled bool, result any, err error) any { return nil },
	)
	if !errors.Is(err, coreerr.Unavailable) {
		t.Fatalf("expected coreerr.Unavailable, got %v", err)
	}
}

func TestSubmitFuture_ShutdownWaitsForInFlight(t *testing.T) {
	owner := &recordingMailbox{}
	s := New(owner, nil)
	release := make(chan struct{})

	_, err := s.SubmitFuture(
		func(cancelled CancelCheck) (any, error) {
			<-release
			return "slow", nil
		},
		func(cancelled bool, result any, err error) any { return result },
	)
	if err != nil {
		t.Fatalf("SubmitFuture: %v", err)
	}

	done := make(chan struct{})
	go func() {
		s.Shutdown()
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("Shutdown returned before in-flight work completed")
	case <-time.After(50 * time.Millisecond):
	}

	close(release)
	<-done
}
