package sync

import (
	"testing"

	"github.com/ferrite-sync/ferrite/internal/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizePath(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"/docs", "/docs"},
		{"/docs/", "/docs"},
		{"docs", "/docs"},
		{"/docs//sub/", "/docs/sub"},
		{"/docs/./sub", "/docs/sub"},
		{"/docs/../other", "/other"},
		{"\\docs\\sub", "/docs/sub"},
		{"/", "/"},
		{"", "/"},
		{".", "/"},
	}

	for _, tc := range cases {
		t.Run(tc.in, func(t *testing.T) {
			assert.Equal(t, tc.want, NormalizePath(tc.in))
		})
	}
}

func TestJoinPath(t *testing.T) {
	assert.Equal(t, "/docs/report.pdf", JoinPath("/docs", "report.pdf"))
	assert.Equal(t, "/report.pdf", JoinPath("/", "report.pdf"))
	assert.Equal(t, "/docs/.hidden", JoinPath("/docs/", ".hidden"))
}

func TestPathCodec_RootSentinel(t *testing.T) {
	codec := PathCodec{}

	id, err := codec.Identifier("/")
	require.NoError(t, err)
	assert.Equal(t, RootIdentifier, id)

	p, err := codec.Path(RootIdentifier)
	require.NoError(t, err)
	assert.Equal(t, "/", p)
}

func TestPathCodec_RoundTrip(t *testing.T) {
	codec := PathCodec{}

	id, err := codec.Identifier("/docs/report.pdf")
	require.NoError(t, err)
	assert.Equal(t, "/docs/report.pdf", id)

	// Trailing slash must not change the identifier.
	id2, err := codec.Identifier("/docs/report.pdf/")
	require.NoError(t, err)
	assert.Equal(t, id, id2)

	p, err := codec.Path(id)
	require.NoError(t, err)
	assert.Equal(t, "/docs/report.pdf", p)
}

func TestPathCodec_RejectsNonPathIdentifier(t *testing.T) {
	codec := PathCodec{}
	_, err := codec.Path("abc123")
	assert.Error(t, err)
}

func newTestDigestCodec(t *testing.T) *DigestCodec {
	t.Helper()
	database, err := db.NewSqliteDB(db.WithMaxOpenConns(1))
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })

	codec, err := NewDigestCodec(database)
	require.NoError(t, err)
	return codec
}

func TestDigestCodec_DeterministicAndReversible(t *testing.T) {
	codec := newTestDigestCodec(t)

	id1, err := codec.Identifier("/docs/report.pdf")
	require.NoError(t, err)
	id2, err := codec.Identifier("/docs/report.pdf/")
	require.NoError(t, err)
	assert.Equal(t, id1, id2)
	assert.NotContains(t, id1, "/")

	p, err := codec.Path(id1)
	require.NoError(t, err)
	assert.Equal(t, "/docs/report.pdf", p)
}

func TestDigestCodec_DistinctPathsDistinctIdentifiers(t *testing.T) {
	codec := newTestDigestCodec(t)

	id1, err := codec.Identifier("/docs/a.txt")
	require.NoError(t, err)
	id2, err := codec.Identifier("/docs/b.txt")
	require.NoError(t, err)
	assert.NotEqual(t, id1, id2)
}

func TestDigestCodec_RootSentinel(t *testing.T) {
	codec := newTestDigestCodec(t)

	id, err := codec.Identifier("/")
	require.NoError(t, err)
	assert.Equal(t, RootIdentifier, id)

	p, err := codec.Path(RootIdentifier)
	require.NoError(t, err)
	assert.Equal(t, "/", p)
}

func TestDigestCodec_UnknownIdentifier(t *testing.T) {
	codec := newTestDigestCodec(t)
	_, err := codec.Path("deadbeef")
	assert.Error(t, err)
}

func TestDigestCodec_SideTableSurvivesCacheMiss(t *testing.T) {
	database, err := db.NewSqliteDB(db.WithMaxOpenConns(1))
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })

	codec, err := NewDigestCodec(database)
	require.NoError(t, err)

	id, err := codec.Identifier("/docs/report.pdf")
	require.NoError(t, err)

	// A fresh codec over the same database has a cold cache and must
	// resolve through the side table.
	fresh, err := NewDigestCodec(database)
	require.NoError(t, err)

	p, err := fresh.Path(id)
	require.NoError(t, err)
	assert.Equal(t, "/docs/report.pdf", p)
}
