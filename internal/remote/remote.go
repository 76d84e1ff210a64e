// Package remote defines the filesystem capability the sync core consumes,
// plus the typed error taxonomy classified at this boundary. The SFTP
// implementation lives here too; everything above it only sees the
// Filesystem interface.
package remote

import (
	"context"
	"time"
)

// RawEntry is one directory entry as reported by the transport, before the
// sync core normalizes it. Fields the server did not report are left zero;
// normalization resolves timestamp fallbacks downstream.
type RawEntry struct {
	Name       string
	Size       int64
	IsDir      bool
	IsSymlink  bool
	ModTime    time.Time
	AccessTime time.Time
	ChangeTime time.Time
}

// Filesystem is the minimal remote capability the sync core requires.
// List returns the entries of a remote directory, non-recursively.
// Implementations classify failures into this package's error taxonomy.
type Filesystem interface {
	List(ctx context.Context, path string) ([]RawEntry, error)
	Close() error
}
