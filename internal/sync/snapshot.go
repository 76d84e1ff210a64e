package sync

import (
	"context"
	"fmt"
)

// Snapshot is the set of identifier to VersionTag pairs observed for one
// scope at one point in time. Snapshots built from a live listing also
// carry the full Entry metadata; snapshots decoded from an anchor carry
// tags only.
type Snapshot struct {
	Scope   string
	Entries map[string]VersionTag

	items map[string]*Entry
}

func NewSnapshot(scope string) *Snapshot {
	return &Snapshot{
		Scope:   NormalizePath(scope),
		Entries: make(map[string]VersionTag),
		items:   make(map[string]*Entry),
	}
}

// Put records an entry and its version tag.
func (s *Snapshot) Put(e *Entry) {
	s.Entries[e.Identifier] = e.Version()
	if s.items == nil {
		s.items = make(map[string]*Entry)
	}
	s.items[e.Identifier] = e
}

// Entry returns the full metadata for an identifier, when the snapshot
// was built from a listing rather than decoded from an anchor.
func (s *Snapshot) Entry(identifier string) (*Entry, bool) {
	e, ok := s.items[identifier]
	return e, ok
}

func (s *Snapshot) Len() int {
	return len(s.Entries)
}

// ListFunc produces the current entries of a scope.
type ListFunc func(ctx context.Context, scope string) ([]*Entry, error)

// BuildSnapshot lists a scope and aggregates the result into a Snapshot.
// An empty directory yields an empty snapshot, not an error. Listing
// errors surface unchanged: an empty snapshot on error would be
// indistinguishable from "everything was deleted".
func BuildSnapshot(ctx context.Context, scope string, list ListFunc) (*Snapshot, error) {
	scope = NormalizePath(scope)

	entries, err := list(ctx, scope)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", scope, err)
	}

	snap := NewSnapshot(scope)
	for _, e := range entries {
		snap.Put(e)
	}
	return snap, nil
}

// snapshotFromEntries builds a Snapshot from already-listed entries.
func snapshotFromEntries(scope string, entries []*Entry) *Snapshot {
	snap := NewSnapshot(scope)
	for _, e := range entries {
		snap.Put(e)
	}
	return snap
}
