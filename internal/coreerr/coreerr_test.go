package coreerr

import (
	"errors"
	"fmt"
	"testing"
)

func TestKind_WrappedSentinel(t *testing.T) {
	err := fmt.Errorf("moniker %q: %w", "settings/system", NotFound)
	if Kind(err) != NotFound {
		t.Errorf("Kind() = %v, want NotFound", Kind(err))
	}
	if !errors.Is(err, NotFound) {
		t.Error("errors.Is should still match through the wrap")
	}
}

func TestKind_Unmatched(t *testing.T) {
	err := errors.New("something odd")
	if Kind(err) != Internal {
		t.Errorf("Kind() = %v, want Internal", Kind(err))
	}
}
