package sync

import (
	"context"
	"time"

	"github.com/ferrite-sync/ferrite/internal/remote"
)

// ListingAdapter translates the transport's raw directory entries into the
// core's Entry shape: identifiers assigned, pseudo-entries dropped,
// timestamp fallbacks resolved. Transport errors pass through already
// classified; this layer adds nothing to them.
type ListingAdapter struct {
	fs    remote.Filesystem
	codec Codec
	now   func() time.Time
}

func NewListingAdapter(fs remote.Filesystem, codec Codec) *ListingAdapter {
	return &ListingAdapter{
		fs:    fs,
		codec: codec,
		now:   time.Now,
	}
}

// List returns the normalized entries of the remote directory at scope.
// The self and parent pseudo-entries are filtered out; dotfiles are kept.
func (a *ListingAdapter) List(ctx context.Context, scope string) ([]*Entry, error) {
	scope = NormalizePath(scope)

	raws, err := a.fs.List(ctx, scope)
	if err != nil {
		return nil, err
	}

	parentID, err := a.codec.Identifier(scope)
	if err != nil {
		return nil, err
	}

	entries := make([]*Entry, 0, len(raws))
	for _, raw := range raws {
		if raw.Name == "" || raw.Name == "." || raw.Name == ".." {
			continue
		}

		absPath := JoinPath(scope, raw.Name)
		id, err := a.codec.Identifier(absPath)
		if err != nil {
			return nil, err
		}

		modified, created := resolveTimestamps(raw, a.now)

		var size uint64
		if !raw.IsDir && raw.Size > 0 {
			size = uint64(raw.Size)
		}

		entries = append(entries, &Entry{
			Identifier:       id,
			Name:             raw.Name,
			AbsolutePath:     absPath,
			ParentIdentifier: parentID,
			IsDir:            raw.IsDir,
			Size:             size,
			ModifiedAt:       modified,
			CreatedAt:        created,
			IsSymlink:        raw.IsSymlink,
		})
	}
	return entries, nil
}
