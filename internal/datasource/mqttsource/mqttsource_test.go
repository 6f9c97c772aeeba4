package mqttsource

import (
	"testing"
)

func newTestSource() *Source {
	s := &Source{logger: nil}
	empty := map[string]Reading{}
	s.latest.Store(&empty)
	return s
}

func TestSource_Record_DecodesJSONPayload(t *testing.T) {
	s := newTestSource()
	s.record("sensors/kitchen/temp", []byte(`{"value": 21.5}`))

	state, err := s.open(nil, nil)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	snapshot := state.(map[string]Reading)
	reading, ok := snapshot["sensors/kitchen/temp"]
	if !ok {
		t.Fatal("expected a reading for the recorded topic")
	}
	if reading.Payload["value"] != 21.5 {
		t.Fatalf("expected decoded value 21.5, got %v", reading.Payload["value"])
	}
}

func TestSource_Record_NonJSONPayloadKeepsRaw(t *testing.T) {
	s := newTestSource()
	s.record("plain/topic", []byte("hello"))

	state, _ := s.open(nil, nil)
	reading := state.(map[string]Reading)["plain/topic"]
	if string(reading.Raw) != "hello" {
		t.Fatalf("expected raw payload preserved, got %q", reading.Raw)
	}
	if reading.Payload != nil {
		t.Fatalf("expected nil decoded payload for non-JSON, got %v", reading.Payload)
	}
}

func TestSource_Record_MultipleTopicsCoexist(t *testing.T) {
	s := newTestSource()
	s.record("a", []byte(`{"x":1}`))
	s.record("b", []byte(`{"x":2}`))

	state, _ := s.open(nil, nil)
	snapshot := state.(map[string]Reading)
	if len(snapshot) != 2 {
		t.Fatalf("expected 2 topics tracked, got %d", len(snapshot))
	}
}

func TestSource_Record_LatestOverwritesPrevious(t *testing.T) {
	s := newTestSource()
	s.record("a", []byte(`{"x":1}`))
	s.record("a", []byte(`{"x":2}`))

	state, _ := s.open(nil, nil)
	snapshot := state.(map[string]Reading)
	if snapshot["a"].Payload["x"] != 2.0 {
		t.Fatalf("expected latest value to win, got %v", snapshot["a"].Payload["x"])
	}
}
