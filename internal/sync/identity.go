package sync

import (
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"path"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/jmoiron/sqlx"
	"github.com/zeebo/blake3"
)

// RootScope is the canonical form of the remote root directory.
const RootScope = "/"

// RootIdentifier is the fixed identifier of the root container. It is
// distinct from every real path and from every digest.
const RootIdentifier = "ROOT"

// NormalizePath canonicalizes a remote path: forward slashes, leading
// slash, no trailing slash except for the root itself. Paths differing
// only by a trailing slash normalize identically.
func NormalizePath(p string) string {
	p = strings.ReplaceAll(p, "\\", "/")
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	p = path.Clean(p)
	if p == "" || p == "." {
		return RootScope
	}
	return p
}

// JoinPath appends a leaf name to a normalized scope path.
func JoinPath(scope, name string) string {
	return NormalizePath(path.Join(scope, name))
}

// Codec converts between remote absolute paths and stable flat
// identifiers. Identifier is a pure function of the normalized path; Path
// inverts it so the driver can issue subsequent listing calls.
type Codec interface {
	Identifier(absPath string) (string, error)
	Path(identifier string) (string, error)
}

// PathCodec uses the normalized path itself as the identifier. Injective
// by construction, trivially reversible.
type PathCodec struct{}

var _ Codec = PathCodec{}

func (PathCodec) Identifier(absPath string) (string, error) {
	p := NormalizePath(absPath)
	if p == RootScope {
		return RootIdentifier, nil
	}
	return p, nil
}

func (PathCodec) Path(identifier string) (string, error) {
	if identifier == RootIdentifier {
		return RootScope, nil
	}
	if !strings.HasPrefix(identifier, "/") {
		return "", fmt.Errorf("identifier %q is not a path", identifier)
	}
	return NormalizePath(identifier), nil
}

const identitySchema = `
CREATE TABLE IF NOT EXISTS identity_paths (
    identifier TEXT PRIMARY KEY,
    path TEXT NOT NULL
);
`

const identityCacheSize = 4096

// DigestCodec derives identifiers as BLAKE3 digests of the normalized
// path, for hosts whose identifier space forbids slashes. Digests are not
// reversible, so every identifier is recorded in a side table; an LRU
// cache fronts the reverse lookups. A cryptographic digest is used
// because a non-cryptographic hash risks collisions across large trees,
// and a collision here silently merges two files' sync state.
type DigestCodec struct {
	db    *sqlx.DB
	cache *lru.Cache[string, string]
}

var _ Codec = (*DigestCodec)(nil)

func NewDigestCodec(database *sqlx.DB) (*DigestCodec, error) {
	if _, err := database.Exec(identitySchema); err != nil {
		return nil, fmt.Errorf("initialize identity table: %w", err)
	}
	cache, err := lru.New[string, string](identityCacheSize)
	if err != nil {
		return nil, fmt.Errorf("create identity cache: %w", err)
	}
	return &DigestCodec{db: database, cache: cache}, nil
}

func (c *DigestCodec) Identifier(absPath string) (string, error) {
	p := NormalizePath(absPath)
	if p == RootScope {
		return RootIdentifier, nil
	}

	sum := blake3.Sum256([]byte(p))
	id := hex.EncodeToString(sum[:])

	if _, cached := c.cache.Get(id); !cached {
		if _, err := c.db.Exec(
			"INSERT OR IGNORE INTO identity_paths (identifier, path) VALUES (?, ?)", id, p,
		); err != nil {
			return "", fmt.Errorf("record identifier for %s: %w", p, err)
		}
		c.cache.Add(id, p)
	}
	return id, nil
}

func (c *DigestCodec) Path(identifier string) (string, error) {
	if identifier == RootIdentifier {
		return RootScope, nil
	}
	if p, ok := c.cache.Get(identifier); ok {
		return p, nil
	}

	var p string
	err := c.db.Get(&p, "SELECT path FROM identity_paths WHERE identifier = ?", identifier)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", fmt.Errorf("unknown identifier %q", identifier)
		}
		return "", fmt.Errorf("resolve identifier %q: %w", identifier, err)
	}
	c.cache.Add(identifier, p)
	return p, nil
}
