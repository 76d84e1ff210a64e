package sync

import (
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"
)

// AnchorPersistence is the key/value capability the driver persists
// anchors through, keyed by scope. Get returns nil bytes (not an error)
// for a scope with no stored anchor. Set must be atomic per key.
type AnchorPersistence interface {
	Get(scope string) ([]byte, error)
	Set(scope string, anchor []byte) error
	Delete(scope string) error
}

const anchorSchema = `
CREATE TABLE IF NOT EXISTS sync_anchors (
    scope TEXT PRIMARY KEY,
    anchor BLOB NOT NULL,
    updated_at TEXT NOT NULL -- RFC3339
);
`

// AnchorStore persists anchors in SQLite. A single-row upsert per scope
// keeps the read-modify-write atomic at the key level.
type AnchorStore struct {
	db *sqlx.DB
}

var _ AnchorPersistence = (*AnchorStore)(nil)

func NewAnchorStore(database *sqlx.DB) (*AnchorStore, error) {
	if _, err := database.Exec(anchorSchema); err != nil {
		return nil, fmt.Errorf("initialize anchor schema: %w", err)
	}
	return &AnchorStore{db: database}, nil
}

func (s *AnchorStore) Get(scope string) ([]byte, error) {
	var anchor []byte
	err := s.db.Get(&anchor, "SELECT anchor FROM sync_anchors WHERE scope = ?", NormalizePath(scope))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("query anchor for %s: %w", scope, err)
	}
	return anchor, nil
}

func (s *AnchorStore) Set(scope string, anchor []byte) error {
	_, err := s.db.Exec(
		"INSERT OR REPLACE INTO sync_anchors (scope, anchor, updated_at) VALUES (?, ?, ?)",
		NormalizePath(scope), anchor, time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("store anchor for %s: %w", scope, err)
	}
	return nil
}

func (s *AnchorStore) Delete(scope string) error {
	_, err := s.db.Exec("DELETE FROM sync_anchors WHERE scope = ?", NormalizePath(scope))
	if err != nil {
		return fmt.Errorf("delete anchor for %s: %w", scope, err)
	}
	return nil
}

// Scopes returns every scope with a stored anchor.
func (s *AnchorStore) Scopes() ([]string, error) {
	var scopes []string
	if err := s.db.Select(&scopes, "SELECT scope FROM sync_anchors ORDER BY scope"); err != nil {
		return nil, fmt.Errorf("query anchor scopes: %w", err)
	}
	return scopes, nil
}

// MemoryAnchorStore is an in-memory AnchorPersistence for tests and
// one-shot runs.
type MemoryAnchorStore struct {
	mu      sync.RWMutex
	anchors map[string][]byte
}

var _ AnchorPersistence = (*MemoryAnchorStore)(nil)

func NewMemoryAnchorStore() *MemoryAnchorStore {
	return &MemoryAnchorStore{
		anchors: make(map[string][]byte),
	}
}

func (s *MemoryAnchorStore) Get(scope string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	anchor, ok := s.anchors[NormalizePath(scope)]
	if !ok {
		return nil, nil
	}
	out := make([]byte, len(anchor))
	copy(out, anchor)
	return out, nil
}

func (s *MemoryAnchorStore) Set(scope string, anchor []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored := make([]byte, len(anchor))
	copy(stored, anchor)
	s.anchors[NormalizePath(scope)] = stored
	return nil
}

func (s *MemoryAnchorStore) Delete(scope string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.anchors, NormalizePath(scope))
	return nil
}
