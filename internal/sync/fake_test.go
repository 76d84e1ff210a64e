package sync

import (
	"context"
	stdsync "sync"

	"github.com/ferrite-sync/ferrite/internal/remote"
)

// fakeFS is a scripted remote.Filesystem. Each List call pops the next
// scripted response; the last response repeats once the script runs out.
type fakeFS struct {
	mu        stdsync.Mutex
	responses []fakeResponse
	calls     int
}

type fakeResponse struct {
	entries []remote.RawEntry
	err     error
}

func newFakeFS(responses ...fakeResponse) *fakeFS {
	return &fakeFS{responses: responses}
}

func (f *fakeFS) List(ctx context.Context, path string) ([]remote.RawEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	idx := f.calls
	if idx >= len(f.responses) {
		idx = len(f.responses) - 1
	}
	f.calls++

	resp := f.responses[idx]
	if resp.err != nil {
		return nil, resp.err
	}
	out := make([]remote.RawEntry, len(resp.entries))
	copy(out, resp.entries)
	return out, nil
}

func (f *fakeFS) Close() error {
	return nil
}

func (f *fakeFS) listCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// gateFS wraps a Filesystem and parks its first List call until released,
// letting tests hold one reconcile cycle mid-listing.
type gateFS struct {
	inner   remote.Filesystem
	once    stdsync.Once
	entered chan struct{}
	release chan struct{}
}

func newGateFS(inner remote.Filesystem) *gateFS {
	return &gateFS{
		inner:   inner,
		entered: make(chan struct{}),
		release: make(chan struct{}),
	}
}

func (g *gateFS) List(ctx context.Context, path string) ([]remote.RawEntry, error) {
	var first bool
	g.once.Do(func() { first = true })
	if first {
		close(g.entered)
		<-g.release
	}
	return g.inner.List(ctx, path)
}

func (g *gateFS) Close() error {
	return g.inner.Close()
}

func rawFile(name string, size int64, modTime int64) remote.RawEntry {
	return remote.RawEntry{
		Name:    name,
		Size:    size,
		ModTime: timeUnix(modTime),
	}
}

func rawDir(name string, modTime int64) remote.RawEntry {
	return remote.RawEntry{
		Name:    name,
		IsDir:   true,
		ModTime: timeUnix(modTime),
	}
}
