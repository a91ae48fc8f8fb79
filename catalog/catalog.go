// Package catalog answers whether an item may appear in playlists at all.
package catalog

import (
	"slices"
	"sync"
)

// Availability reports items that are globally blocked, for example by a
// takedown or a region lock. It is consulted at replay time and by the access
// gate before a mutation is accepted.
type Availability interface {
	IsUnavailable(itemID string) bool
}

// AvailabilityFunc adapts a function to Availability.
type AvailabilityFunc func(itemID string) bool

func (f AvailabilityFunc) IsUnavailable(itemID string) bool { return f(itemID) }

// Versioned is implemented by providers whose answers can change. Version
// must change whenever any answer does.
type Versioned interface {
	Version() uint64
}

// VersionOf returns a's version, or 0 when a never changes.
func VersionOf(a Availability) uint64 {
	if v, ok := a.(Versioned); ok {
		return v.Version()
	}
	return 0
}

// AllAvailable blocks nothing.
var AllAvailable Availability = AvailabilityFunc(func(string) bool { return false })

// Blocklist is an in-memory Availability safe for concurrent use.
type Blocklist struct {
	mu      sync.RWMutex
	blocked map[string]struct{}
	version uint64
}

var _ Availability = (*Blocklist)(nil)

// NewBlocklist returns a blocklist holding items.
func NewBlocklist(items ...string) *Blocklist {
	b := &Blocklist{blocked: make(map[string]struct{}, len(items))}
	for _, id := range items {
		b.blocked[id] = struct{}{}
	}
	return b
}

func (b *Blocklist) IsUnavailable(itemID string) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	_, ok := b.blocked[itemID]
	return ok
}

// Block marks items unavailable.
func (b *Blocklist) Block(items ...string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, id := range items {
		b.blocked[id] = struct{}{}
	}
	b.version++
}

// Unblock makes items available again. Historical events for them replay
// normally from then on.
func (b *Blocklist) Unblock(items ...string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, id := range items {
		delete(b.blocked, id)
	}
	b.version++
}

// Version changes whenever the blocklist changes. Caches of replayed state
// include it in their key.
func (b *Blocklist) Version() uint64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.version
}

// Items returns the blocked items, sorted.
func (b *Blocklist) Items() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]string, 0, len(b.blocked))
	for id := range b.blocked {
		out = append(out, id)
	}
	slices.Sort(out)
	return out
}
