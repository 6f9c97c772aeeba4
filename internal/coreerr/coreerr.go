// Package coreerr defines the error taxonomy shared by every core
// component (spec.md §7). Call sites wrap a sentinel with
// fmt.Errorf("...: %w", coreerr.NotFound) so errors.Is still matches
// while the message carries context, mirroring how the teacher repo
// wraps sentinels throughout internal/scheduler and internal/checkpoint.
package coreerr

import "errors"

// Sentinels. Use errors.Is(err, coreerr.NotFound) etc. at call sites;
// the HTTP layer (internal/httpapi/errors.go) maps these onto status
// codes.
var (
	// InvalidInput: missing required field, schema violation, ID mismatch.
	InvalidInput = errors.New("invalid input")
	// Concurrency: revision mismatch on save (409-equivalent).
	Concurrency = errors.New("concurrency conflict")
	// NotFound: moniker has no underlying document.
	NotFound = errors.New("not found")
	// Unavailable: configuration manager not yet initialized, plugin
	// not found, data source missing.
	Unavailable = errors.New("unavailable")
	// Timeout: a future failed to complete within timeoutSeconds.
	Timeout = errors.New("timeout")
	// Cancelled: work aborted by cooperative cancel.
	Cancelled = errors.New("cancelled")
	// Internal: anything else.
	Internal = errors.New("internal error")
)

// Kind returns the taxonomy sentinel err most specifically matches, or
// Internal if none match. Useful for a single switch at a boundary
// (e.g. the HTTP layer) instead of repeating errors.Is chains.
func Kind(err error) error {
	for _, k := range []error{InvalidInput, Concurrency, NotFound, Unavailable, Timeout, Cancelled} {
		if errors.Is(err, k) {
			return k
		}
	}
	return Internal
}
