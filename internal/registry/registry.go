// File: internal/registry/registry.go
package registry

import (
	"errors"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
)

var (
	// ErrNotFound is returned for ids the registry has never seen or has already dropped.
	ErrNotFound = errors.New("session not found")
	// ErrExpired is returned when an entry outlived its TTL. The entry is released as a side effect.
	ErrExpired = errors.New("session expired")
)

// Clock returns the current time. Tests inject a fake one.
type Clock func() time.Time

// ReleaseFunc frees the resources held by a handle. It is called at most once per entry,
// never while the registry lock is held.
type ReleaseFunc[H any] func(id string, h H)

// Options configures a Registry.
type Options[H any] struct {
	TTL      time.Duration
	Capacity int
	Release  ReleaseFunc[H]
	Clock    Clock
	Logger   *zap.Logger
}

type entry[H any] struct {
	handle    H
	createdAt time.Time
}

// Registry maps opaque session ids to live handles with lazy TTL expiry and
// oldest-first capacity eviction.
type Registry[H any] struct {
	mu      sync.Mutex
	entries map[string]entry[H]

	ttl      time.Duration
	capacity int
	release  ReleaseFunc[H]
	now      Clock
	logger   *zap.Logger
}

type released[H any] struct {
	id     string
	handle H
}

// New creates a registry. A zero Capacity means unbounded.
func New[H any](opts Options[H]) *Registry[H] {
	r := &Registry[H]{
		entries:  make(map[string]entry[H]),
		ttl:      opts.TTL,
		capacity: opts.Capacity,
		release:  opts.Release,
		now:      opts.Clock,
		logger:   opts.Logger,
	}
	if r.now == nil {
		r.now = time.Now
	}
	if r.logger == nil {
		r.logger = zap.NewNop()
	}
	return r
}

// Put stores h under id, stamped with the current time. Entries beyond capacity are
// evicted oldest first and released.
func (r *Registry[H]) Put(id string, h H) {
	r.insert(id, h, r.now())
}

// Restore reinserts a handle previously obtained with Take, keeping its original
// creation time so the TTL is not extended. It reports whether the entry is still
// present afterwards; an old entry restored into a full registry is evicted and released
// straight away.
func (r *Registry[H]) Restore(id string, h H, createdAt time.Time) bool {
	return r.insert(id, h, createdAt)
}

func (r *Registry[H]) insert(id string, h H, createdAt time.Time) bool {
	r.mu.Lock()
	var dropped []released[H]
	if old, ok := r.entries[id]; ok {
		dropped = append(dropped, released[H]{id: id, handle: old.handle})
	}
	r.entries[id] = entry[H]{handle: h, createdAt: createdAt}
	dropped = append(dropped, r.evictLocked()...)
	_, kept := r.entries[id]
	r.mu.Unlock()

	r.releaseAll(dropped, "evicted")
	return kept
}

// evictLocked trims the map down to capacity, oldest first.
func (r *Registry[H]) evictLocked() []released[H] {
	if r.capacity <= 0 || len(r.entries) <= r.capacity {
		return nil
	}
	ids := make([]string, 0, len(r.entries))
	for id := range r.entries {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		return r.entries[ids[i]].createdAt.Before(r.entries[ids[j]].createdAt)
	})

	excess := len(r.entries) - r.capacity
	out := make([]released[H], 0, excess)
	for _, id := range ids[:excess] {
		out = append(out, released[H]{id: id, handle: r.entries[id].handle})
		delete(r.entries, id)
	}
	return out
}

// Get returns the live handle for id. An expired entry is removed, released and
// reported as ErrExpired.
func (r *Registry[H]) Get(id string) (H, error) {
	h, _, err := r.lookup(id, false)
	return h, err
}

// Take removes the entry for id and hands ownership of the handle to the caller without
// releasing it. The caller must either Restore it or release it.
func (r *Registry[H]) Take(id string) (H, time.Time, error) {
	return r.lookup(id, true)
}

func (r *Registry[H]) lookup(id string, take bool) (H, time.Time, error) {
	var zero H

	r.mu.Lock()
	e, ok := r.entries[id]
	if !ok {
		r.mu.Unlock()
		return zero, time.Time{}, ErrNotFound
	}
	if r.expired(e) {
		delete(r.entries, id)
		r.mu.Unlock()
		r.releaseAll([]released[H]{{id: id, handle: e.handle}}, "expired")
		return zero, time.Time{}, ErrExpired
	}
	if take {
		delete(r.entries, id)
	}
	r.mu.Unlock()
	return e.handle, e.createdAt, nil
}

// Remove drops and releases the entry for id and reports whether an entry was removed.
// Unknown ids are a no-op.
func (r *Registry[H]) Remove(id string) bool {
	r.mu.Lock()
	e, ok := r.entries[id]
	if ok {
		delete(r.entries, id)
	}
	r.mu.Unlock()

	if ok {
		r.releaseAll([]released[H]{{id: id, handle: e.handle}}, "removed")
	}
	return ok
}

// Sweep releases every expired entry and reports how many were dropped.
func (r *Registry[H]) Sweep() int {
	r.mu.Lock()
	var dropped []released[H]
	for id, e := range r.entries {
		if r.expired(e) {
			dropped = append(dropped, released[H]{id: id, handle: e.handle})
			delete(r.entries, id)
		}
	}
	r.mu.Unlock()

	r.releaseAll(dropped, "expired")
	return len(dropped)
}

// Len reports the number of entries, expired ones included until they are swept.
func (r *Registry[H]) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// Clear releases every entry. Used on shutdown.
func (r *Registry[H]) Clear() {
	r.mu.Lock()
	dropped := make([]released[H], 0, len(r.entries))
	for id, e := range r.entries {
		dropped = append(dropped, released[H]{id: id, handle: e.handle})
	}
	r.entries = make(map[string]entry[H])
	r.mu.Unlock()

	r.releaseAll(dropped, "cleared")
}

func (r *Registry[H]) expired(e entry[H]) bool {
	return r.ttl > 0 && r.now().Sub(e.createdAt) > r.ttl
}

func (r *Registry[H]) releaseAll(items []released[H], reason string) {
	for _, it := range items {
		r.logger.Debug("Releasing session.", zap.String("session_id", it.id), zap.String("reason", reason))
		if r.release != nil {
			r.release(it.id, it.handle)
		}
	}
}
