// Package confstore implements the configuration object cache of
// spec.md §4.2: a hash-stamped, optimistic-concurrency document store.
// It generalizes the guarded read/write discipline the teacher uses in
// internal/checkpoint/store.go (lock, check state, write, unlock) into
// a small reusable "versioned document" wrapper (spec.md §9 "Optimistic
// in-memory cache -> hash-stamped object").
package confstore

import (
	"errors"
	"fmt"
	"sync"

	"github.com/orrery-labs/inkframe/internal/coreerr"
)

// Loader reads the persisted content for a moniker. It must return an
// error wrapping coreerr.NotFound when no document exists yet.
type Loader func() (map[string]any, error)

// Saver persists content for a moniker, overwriting any prior value.
type Saver func(content map[string]any) error

// ConfigurationObject is a single hash-stamped document. Content is
// never handed out without its current hash, and every mutation
// requires the caller's previously observed hash (spec.md §3
// invariants).
type ConfigurationObject struct {
	moniker string
	load    Loader
	save    Saver

	mu      sync.Mutex
	hasData bool
	hash    string
	content map[string]any
}

// New wraps loader/saver for moniker in a ConfigurationObject.
func New(moniker string, loader Loader, saver Saver) *ConfigurationObject {
	return &ConfigurationObject{moniker: moniker, load: loader, save: saver}
}

// Moniker returns the stable identifier this object was constructed with.
func (c *ConfigurationObject) Moniker() string { return c.moniker }

// Get returns a deep copy of the current content together with its
// hash. On a cache miss it loads from storage first. If the
// underlying document does not exist, Get returns an error wrapping
// coreerr.NotFound and caches nothing.
func (c *ConfigurationObject) Get() (content map[string]any, hash string, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.hasData {
		if err := c.populate(); err != nil {
			return nil, "", err
		}
	}

	clone, err := cloneContent(c.content)
	if err != nil {
		return nil, "", fmt.Errorf("%w: clone content for %q: %v", coreerr.Internal, c.moniker, err)
	}
	return clone, c.hash, nil
}

// populate must be called with mu held. It loads from storage and
// hashes the result, or leaves hasData false if the document does not
// exist.
func (c *ConfigurationObject) populate() error {
	loaded, err := c.load()
	if err != nil {
		return err
	}
	h, err := hashContent(loaded)
	if err != nil {
		return fmt.Errorf("%w: hash content for %q: %v", coreerr.Internal, c.moniker, err)
	}
	c.content = loaded
	c.hash = h
	c.hasData = true
	return nil
}

// Save persists newContent if expectedHash matches the object's
// current hash. On success the in-memory cache is invalidated (the
// next Get reloads from storage) and the new hash is returned. On a
// hash mismatch, Save returns an error wrapping coreerr.Concurrency
// and does not persist (spec.md §8 invariants 1-2).
//
// A moniker with no underlying document behaves as if its current
// hash is unobservable; Save creates it when expectedHash is empty
// (see SPEC_FULL.md §9's resolution of the "null current + null rev"
// open question), and otherwise returns the NotFound error produced by
// the loader.
func (c *ConfigurationObject) Save(expectedHash string, newContent map[string]any) (newHash string, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.hasData {
		if err := c.populate(); err != nil {
			if errors.Is(err, coreerr.NotFound) {
				if expectedHash != "" {
					return "", err
				}
				return c.create(newContent)
			}
			return "", err
		}
	}

	if c.hash != expectedHash {
		return "", fmt.Errorf("%w: moniker %q expected hash %q, have %q", coreerr.Concurrency, c.moniker, expectedHash, c.hash)
	}

	h, err := hashContent(newContent)
	if err != nil {
		return "", fmt.Errorf("%w: hash content for %q: %v", coreerr.Internal, c.moniker, err)
	}
	if err := c.save(canonicalize(newContent)); err != nil {
		return "", err
	}
	c.invalidateLocked()
	return h, nil
}

// create persists newContent as the first version of a moniker that
// had no prior document. Caller must hold mu.
func (c *ConfigurationObject) create(newContent map[string]any) (string, error) {
	h, err := hashContent(newContent)
	if err != nil {
		return "", fmt.Errorf("%w: hash content for %q: %v", coreerr.Internal, c.moniker, err)
	}
	if err := c.save(canonicalize(newContent)); err != nil {
		return "", err
	}
	c.invalidateLocked()
	return h, nil
}

// Evict drops the cached content and hash, forcing the next Get to
// reload from storage.
func (c *ConfigurationObject) Evict() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.invalidateLocked()
}

func (c *ConfigurationObject) invalidateLocked() {
	c.hasData = false
	c.hash = ""
	c.content = nil
}
