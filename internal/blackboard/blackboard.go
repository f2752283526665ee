// Package blackboard implements the shared versioned state store that all
// stages read from and write to. The store follows a single-writer
// discipline: stages receive immutable snapshots and return patches, and
// the scheduler is the only component that merges patches in, one at a
// time. A reader therefore always observes a value together with its
// version and never a partially written entity.
package blackboard

import (
	"sort"
	"sync"
	"time"
)

// Well-known blackboard keys. Stages agree on these names; the scheduler
// treats keys as opaque.
const (
	KeyTripContext     = "trip.context"
	KeyProfile         = "trip.profile"
	KeyConstraints     = "trip.constraints"
	KeyDestination     = "search.destination"
	KeyTransportOffers = "search.offers.transport"
	KeyLodgingOffers   = "search.offers.lodging"
	KeyActivityOffers  = "search.offers.activity"
	KeyPool            = "plan.pool"
	KeyRanked          = "plan.ranked"
	KeyAccepted        = "plan.accepted"
	KeyRisks           = "plan.risks"
	KeyPlan            = "plan.export"
)

// Entry is one versioned value on the blackboard.
type Entry struct {
	Value      any       `json:"value"`
	Version    int       `json:"version"`
	Source     string    `json:"source"`
	Confidence float64   `json:"confidence"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// PatchEntry is one (key, value, confidence) triple of a stage patch.
type PatchEntry struct {
	Key        string  `json:"key"`
	Value      any     `json:"value"`
	Confidence float64 `json:"confidence"`
}

// Patch is the set of writes a stage proposes. Patches are applied
// atomically: either every entry lands with a bumped version, or none do.
type Patch struct {
	Entries []PatchEntry `json:"entries"`
}

// Add appends an entry to the patch and returns the patch for chaining.
func (p *Patch) Add(key string, value any, confidence float64) *Patch {
	p.Entries = append(p.Entries, PatchEntry{Key: key, Value: value, Confidence: confidence})
	return p
}

// IsEmpty reports whether the patch carries no writes.
func (p *Patch) IsEmpty() bool {
	return p == nil || len(p.Entries) == 0
}

// DecisionRecord is one entry of the run's decision log: which stage did
// what, why, and which keys were affected. The log is what explains the
// final plan's caveats to the consumer.
type DecisionRecord struct {
	At     time.Time `json:"at"`
	Stage  string    `json:"stage"`
	Action string    `json:"action"`
	Reason string    `json:"reason"`
	Keys   []string  `json:"keys,omitempty"`
}

// Blackboard is the versioned key/value store of record.
type Blackboard struct {
	mu        sync.RWMutex
	entries   map[string]Entry
	decisions []DecisionRecord
}

// New creates an empty blackboard.
func New() *Blackboard {
	return &Blackboard{
		entries: make(map[string]Entry),
	}
}

// Apply merges a patch atomically. Every touched key gets its version
// incremented and its source set to the writing stage.
func (b *Blackboard) Apply(patch *Patch, source string) {
	if patch.IsEmpty() {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	now := time.Now()
	for _, pe := range patch.Entries {
		prev := b.entries[pe.Key]
		b.entries[pe.Key] = Entry{
			Value:      pe.Value,
			Version:    prev.Version + 1,
			Source:     source,
			Confidence: pe.Confidence,
			UpdatedAt:  now,
		}
	}
}

// Set writes a single key directly. Intended for run initialization
// before the scheduler takes ownership.
func (b *Blackboard) Set(key string, value any, source string, confidence float64) {
	patch := (&Patch{}).Add(key, value, confidence)
	b.Apply(patch, source)
}

// RecordDecision appends an entry to the decision log.
func (b *Blackboard) RecordDecision(stage, action, reason string, keys ...string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.decisions = append(b.decisions, DecisionRecord{
		At:     time.Now(),
		Stage:  stage,
		Action: action,
		Reason: reason,
		Keys:   keys,
	})
}

// Decisions returns a copy of the decision log in append order.
func (b *Blackboard) Decisions() []DecisionRecord {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]DecisionRecord, len(b.decisions))
	copy(out, b.decisions)
	return out
}

// Snapshot returns an immutable view of the current state. The snapshot
// is a shallow copy of the entry map: entry values themselves are treated
// as immutable by convention (stages never edit a value in place).
func (b *Blackboard) Snapshot() *Snapshot {
	b.mu.RLock()
	defer b.mu.RUnlock()

	entries := make(map[string]Entry, len(b.entries))
	for k, v := range b.entries {
		entries[k] = v
	}
	return &Snapshot{entries: entries}
}

// Version returns the current version of a key, or 0 if the key is unset.
func (b *Blackboard) Version(key string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.entries[key].Version
}

// Snapshot is a read-only view of the blackboard at a point in time.
type Snapshot struct {
	entries map[string]Entry
}

// Get returns the entry for a key and whether it exists.
func (s *Snapshot) Get(key string) (Entry, bool) {
	e, ok := s.entries[key]
	return e, ok
}

// Value returns the raw value for a key, or nil if unset.
func (s *Snapshot) Value(key string) any {
	return s.entries[key].Value
}

// Has reports whether all the given keys are present.
func (s *Snapshot) Has(keys ...string) bool {
	for _, k := range keys {
		if _, ok := s.entries[k]; !ok {
			return false
		}
	}
	return true
}

// Keys returns the set of populated keys in sorted order.
func (s *Snapshot) Keys() []string {
	keys := make([]string, 0, len(s.entries))
	for k := range s.entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// TypedValue fetches a key and asserts it to T. The second return is
// false when the key is unset or holds a different type.
func TypedValue[T any](s *Snapshot, key string) (T, bool) {
	var zero T
	e, ok := s.entries[key]
	if !ok {
		return zero, false
	}
	v, ok := e.Value.(T)
	if !ok {
		return zero, false
	}
	return v, true
}
