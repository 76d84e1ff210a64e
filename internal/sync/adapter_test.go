package sync

import (
	"context"
	"testing"
	"time"

	"github.com/ferrite-sync/ferrite/internal/remote"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func timeUnix(sec int64) time.Time {
	return time.Unix(sec, 0).UTC()
}

func TestListingAdapter_NormalizesEntries(t *testing.T) {
	fs := newFakeFS(fakeResponse{entries: []remote.RawEntry{
		rawFile("report.pdf", 1000, 1700000000),
		rawDir("archive", 1700000100),
	}})
	adapter := NewListingAdapter(fs, PathCodec{})

	entries, err := adapter.List(context.Background(), "/docs/")
	require.NoError(t, err)
	require.Len(t, entries, 2)

	byName := map[string]*Entry{}
	for _, e := range entries {
		byName[e.Name] = e
	}

	report := byName["report.pdf"]
	require.NotNil(t, report)
	assert.Equal(t, "/docs/report.pdf", report.Identifier)
	assert.Equal(t, "/docs/report.pdf", report.AbsolutePath)
	assert.Equal(t, "/docs", report.ParentIdentifier)
	assert.False(t, report.IsDir)
	assert.Equal(t, uint64(1000), report.Size)

	archive := byName["archive"]
	require.NotNil(t, archive)
	assert.True(t, archive.IsDir)
	assert.Zero(t, archive.Size)
}

func TestListingAdapter_FiltersPseudoEntriesKeepsDotfiles(t *testing.T) {
	fs := newFakeFS(fakeResponse{entries: []remote.RawEntry{
		{Name: ".", IsDir: true},
		{Name: "..", IsDir: true},
		rawFile(".profile", 50, 1700000000),
		{Name: ""},
	}})
	adapter := NewListingAdapter(fs, PathCodec{})

	entries, err := adapter.List(context.Background(), "/home/deploy")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, ".profile", entries[0].Name)
}

func TestListingAdapter_RootParentIsSentinel(t *testing.T) {
	fs := newFakeFS(fakeResponse{entries: []remote.RawEntry{
		rawFile("motd", 12, 1700000000),
	}})
	adapter := NewListingAdapter(fs, PathCodec{})

	entries, err := adapter.List(context.Background(), "/")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, RootIdentifier, entries[0].ParentIdentifier)
}

func TestListingAdapter_SurfacesTransportErrors(t *testing.T) {
	opErr := &remote.OpError{Op: "list", Path: "/docs", Kind: remote.KindPermissionDenied}
	fs := newFakeFS(fakeResponse{err: opErr})
	adapter := NewListingAdapter(fs, PathCodec{})

	_, err := adapter.List(context.Background(), "/docs")
	assert.ErrorIs(t, err, remote.ErrPermissionDenied)
}

func TestListingAdapter_ResolvesMissingTimestamps(t *testing.T) {
	fs := newFakeFS(fakeResponse{entries: []remote.RawEntry{
		{Name: "no-times.bin", Size: 10},
	}})
	adapter := NewListingAdapter(fs, PathCodec{})
	fixed := timeUnix(1700009999)
	adapter.now = func() time.Time { return fixed }

	entries, err := adapter.List(context.Background(), "/data")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.True(t, entries[0].ModifiedAt.Equal(fixed))
	assert.True(t, entries[0].CreatedAt.Equal(fixed))
}
