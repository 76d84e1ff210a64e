package secrets

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/ferrite-sync/ferrite/internal/utils"
)

// FileStore keeps credentials in a single 0600 JSON file under the state
// dir. Reads hit the file every time; there is no in-memory cache, so an
// external credential rotation is visible on the next Get.
type FileStore struct {
	path string
	mu   sync.Mutex
}

var _ Store = (*FileStore)(nil)

func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

func (s *FileStore) Get(connectionID string) (*Credential, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	creds, err := s.load()
	if err != nil {
		return nil, err
	}
	cred, ok := creds[connectionID]
	if !ok {
		return nil, fmt.Errorf("connection %s: %w", connectionID, ErrNotFound)
	}
	return cred, nil
}

func (s *FileStore) Set(connectionID string, cred *Credential) error {
	if cred == nil {
		return fmt.Errorf("cannot store nil credential for %s", connectionID)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	creds, err := s.load()
	if err != nil {
		return err
	}
	creds[connectionID] = cred
	return s.save(creds)
}

func (s *FileStore) Delete(connectionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	creds, err := s.load()
	if err != nil {
		return err
	}
	delete(creds, connectionID)
	return s.save(creds)
}

func (s *FileStore) load() (map[string]*Credential, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return make(map[string]*Credential), nil
		}
		return nil, fmt.Errorf("read credential store: %w", err)
	}

	var creds map[string]*Credential
	if err := json.Unmarshal(data, &creds); err != nil {
		return nil, fmt.Errorf("parse credential store: %w", err)
	}
	if creds == nil {
		creds = make(map[string]*Credential)
	}
	return creds, nil
}

func (s *FileStore) save(creds map[string]*Credential) error {
	if err := utils.EnsureParent(s.path); err != nil {
		return fmt.Errorf("ensure credential store dir: %w", err)
	}

	data, err := json.MarshalIndent(creds, "", "  ")
	if err != nil {
		return fmt.Errorf("encode credential store: %w", err)
	}

	// 0600: credentials are readable by the owning user only.
	if err := os.WriteFile(s.path, data, 0o600); err != nil {
		return fmt.Errorf("write credential store: %w", err)
	}
	return nil
}
