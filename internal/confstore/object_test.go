package confstore

import (
	"errors"
	"testing"

	"github.com/orrery-labs/inkframe/internal/coreerr"
)

func memoryBacked() (*ConfigurationObject, *map[string]any) {
	var stored map[string]any
	loader := func() (map[string]any, error) {
		if stored == nil {
			return nil, errors.New("not found: wrap coreerr.NotFound below")
		}
		clone, _ := cloneContent(stored)
		return clone, nil
	}
	saver := func(content map[string]any) error {
		clone, _ := cloneContent(content)
		stored = clone
		return nil
	}
	return New("test", loader, saver), &stored
}

func notFoundLoader() Loader {
	return func() (map[string]any, error) {
		return nil, errors.Join(coreerr.NotFound, errors.New("no document"))
	}
}

func TestConfigurationObject_SaveGetRoundTrip(t *testing.T) {
	var stored map[string]any
	obj := New("moniker", notFoundLoader(), func(content map[string]any) error {
		clone, _ := cloneContent(content)
		stored = clone
		return nil
	})

	hash, err := obj.Save("", map[string]any{"brightness": float64(5)})
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if hash == "" {
		t.Fatal("expected non-empty hash")
	}
	if stored["brightness"] != float64(5) {
		t.Fatalf("saver did not receive content: %v", stored)
	}
}

func TestConfigurationObject_HashMismatchRejected(t *testing.T) {
	obj := New("moniker", func() (map[string]any, error) {
		return map[string]any{"a": float64(1)}, nil
	}, func(map[string]any) error {
		t.Fatal("save should not be called on hash mismatch")
		return nil
	})

	_, _, err := obj.Get()
	if err != nil {
		t.Fatalf("Get: %v", err)
	}

	_, err = obj.Save("stale-hash", map[string]any{"a": float64(2)})
	if !errors.Is(err, coreerr.Concurrency) {
		t.Fatalf("expected coreerr.Concurrency, got %v", err)
	}
}

func TestConfigurationObject_SaveInvalidatesCache(t *testing.T) {
	calls := 0
	content := map[string]any{"a": float64(1)}
	obj := New("moniker", func() (map[string]any, error) {
		calls++
		clone, _ := cloneContent(content)
		return clone, nil
	}, func(c map[string]any) error {
		content = c
		return nil
	})

	_, hash, err := obj.Get()
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected 1 load, got %d", calls)
	}

	if _, err := obj.Save(hash, map[string]any{"a": float64(2)}); err != nil {
		t.Fatalf("Save: %v", err)
	}

	if _, _, err := obj.Get(); err != nil {
		t.Fatalf("Get after save: %v", err)
	}
	if calls != 2 {
		t.Fatalf("expected reload after Save invalidated cache, got %d loads", calls)
	}
}

func TestConfigurationObject_GetNotFoundPropagates(t *testing.T) {
	obj := New("missing", notFoundLoader(), func(map[string]any) error { return nil })
	_, _, err := obj.Get()
	if !errors.Is(err, coreerr.NotFound) {
		t.Fatalf("expected coreerr.NotFound, got %v", err)
	}
}

func TestConfigurationObject_GetReturnsIndependentCopies(t *testing.T) {
	obj := New("moniker", func() (map[string]any, error) {
		return map[string]any{"nested": map[string]any{"x": float64(1)}}, nil
	}, func(map[string]any) error { return nil })

	a, _, err := obj.Get()
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	nested := a["nested"].(map[string]any)
	nested["x"] = float64(999)

	b, _, err := obj.Get()
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if b["nested"].(map[string]any)["x"] != float64(1) {
		t.Fatal("mutating a prior Get result leaked into the cache")
	}
}

func TestConfigurationObject_SaveStripsReservedKeys(t *testing.T) {
	var stored map[string]any
	obj := New("moniker", notFoundLoader(), func(c map[string]any) error {
		stored = c
		return nil
	})

	if _, err := obj.Save("", map[string]any{"a": float64(1), "_rev": "7", "_id": "x"}); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if _, ok := stored["_rev"]; ok {
		t.Fatal("_rev should have been stripped before persisting")
	}
	if _, ok := stored["_id"]; ok {
		t.Fatal("_id should have been stripped before persisting")
	}
}
