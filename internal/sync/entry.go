// Package sync implements anchor-based change reconciliation for remote
// directories: stable path-derived identifiers, cheap metadata version
// tags, snapshot diffing, and a per-scope reconciliation driver that
// persists its baseline between observations.
package sync

import (
	"fmt"
	"time"

	"github.com/ferrite-sync/ferrite/internal/remote"
)

// VersionTag is the change-detection fingerprint of one entry, derived
// from modification time and size. It deliberately does not hash content:
// a same-second, same-size rewrite is invisible. Strengthening this to a
// content digest would mean streaming every file on every listing.
type VersionTag string

// NewVersionTag formats the fingerprint. Directories carry no meaningful
// size, so their tag is time-only; the d/f prefix makes a type flip read
// as a version change.
func NewVersionTag(isDir bool, modifiedAt time.Time, size uint64) VersionTag {
	if isDir {
		return VersionTag(fmt.Sprintf("d:%d", modifiedAt.Unix()))
	}
	return VersionTag(fmt.Sprintf("f:%d:%d", modifiedAt.Unix(), size))
}

// Entry is one remote filesystem object observed at a point in time.
type Entry struct {
	Identifier       string
	Name             string
	AbsolutePath     string
	ParentIdentifier string
	IsDir            bool
	Size             uint64 // always zero for directories
	ModifiedAt       time.Time
	CreatedAt        time.Time
	IsSymlink        bool
}

// Version returns the entry's change-detection fingerprint.
func (e *Entry) Version() VersionTag {
	return NewVersionTag(e.IsDir, e.ModifiedAt, e.Size)
}

func (e *Entry) String() string {
	kind := "file"
	if e.IsDir {
		kind = "dir"
	}
	return fmt.Sprintf("%s %s (%s)", kind, e.AbsolutePath, e.Version())
}

// defined reports whether t is a real server-reported timestamp. Zero
// values and the epoch sentinel both mean "not reported".
func defined(t time.Time) bool {
	return !t.IsZero() && t.Unix() != 0
}

// resolveTimestamps applies the ordered fallback for server-reported
// times: modified falls back mtime, atime, ctime, then now; created falls
// back ctime, then the resolved modified time. An epoch-zero placeholder
// must never escape into a VersionTag.
func resolveTimestamps(raw remote.RawEntry, now func() time.Time) (modified, created time.Time) {
	switch {
	case defined(raw.ModTime):
		modified = raw.ModTime
	case defined(raw.AccessTime):
		modified = raw.AccessTime
	case defined(raw.ChangeTime):
		modified = raw.ChangeTime
	default:
		modified = now()
	}

	if defined(raw.ChangeTime) {
		created = raw.ChangeTime
	} else {
		created = modified
	}
	return modified, created
}
