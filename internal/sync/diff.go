package sync

import (
	mapset "github.com/deckarep/golang-set/v2"
)

// ChangeSet is the partitioned result of comparing two snapshots. The
// added, modified, and removed identifier sets are pairwise disjoint, and
// no ordering is guaranteed within any of them.
type ChangeSet struct {
	Added    []*Entry
	Modified []*Entry
	Removed  []string
}

func (c *ChangeSet) IsEmpty() bool {
	return len(c.Added) == 0 && len(c.Modified) == 0 && len(c.Removed) == 0
}

// Diff compares the previous observation of a scope against the current
// one. A nil previous snapshot means first observation: every current
// entry is added, nothing is modified or removed. Entries present in both
// snapshots with the same VersionTag are unchanged and omitted. A type
// flip (directory became file or vice versa) reports as modified, not as
// a distinct category; callers wanting the distinction compare IsDir on
// the returned entry.
//
// A nil current snapshot is a programming error, not an operational
// condition, and panics.
func Diff(previous, current *Snapshot) *ChangeSet {
	if current == nil {
		panic("sync: diff called with nil current snapshot")
	}

	changes := &ChangeSet{}

	if previous == nil {
		for id := range current.Entries {
			changes.Added = append(changes.Added, current.mustEntry(id))
		}
		return changes
	}

	prevIDs := mapset.NewThreadUnsafeSet[string]()
	for id := range previous.Entries {
		prevIDs.Add(id)
	}
	curIDs := mapset.NewThreadUnsafeSet[string]()
	for id := range current.Entries {
		curIDs.Add(id)
	}

	for id := range curIDs.Difference(prevIDs).Iter() {
		changes.Added = append(changes.Added, current.mustEntry(id))
	}
	for id := range prevIDs.Difference(curIDs).Iter() {
		changes.Removed = append(changes.Removed, id)
	}
	for id := range curIDs.Intersect(prevIDs).Iter() {
		if current.Entries[id] != previous.Entries[id] {
			changes.Modified = append(changes.Modified, current.mustEntry(id))
		}
	}

	return changes
}

// mustEntry returns the metadata for an identifier, synthesizing a
// minimal entry when the snapshot carries tags only. Current snapshots
// always come from a listing, so the fallback exists for robustness, not
// as a supported path.
func (s *Snapshot) mustEntry(identifier string) *Entry {
	if e, ok := s.items[identifier]; ok {
		return e
	}
	return &Entry{Identifier: identifier}
}
