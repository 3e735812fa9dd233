package vault

import (
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/certenIO/certen-key-vault/internal/vaultcrypto"
)

// Store persists the single encrypted vault record. Load returns
// ErrNotInitialized when no record exists.
type Store interface {
	Load() (*vaultcrypto.Envelope, error)
	Save(*vaultcrypto.Envelope) error
	Delete() error
	Exists() bool
}

// FileStore keeps the envelope as one JSON file under the data directory.
type FileStore struct {
	path string
}

// vaultFileName is the fixed storage identifier for the encrypted record.
const vaultFileName = "vault.json"

func NewFileStore(dataDir string) *FileStore {
	return &FileStore{path: filepath.Join(dataDir, vaultFileName)}
}

func (s *FileStore) Load() (*vaultcrypto.Envelope, error) {
	raw, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNotInitialized
	}
	if err != nil {
		return nil, err
	}
	var env vaultcrypto.Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, vaultcrypto.ErrInvalidEnvelope
	}
	return &env, nil
}

func (s *FileStore) Save(env *vaultcrypto.Envelope) error {
	raw, err := json.Marshal(env)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return err
	}
	return os.WriteFile(s.path, raw, 0o600)
}

func (s *FileStore) Delete() error {
	err := os.Remove(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}

func (s *FileStore) Exists() bool {
	_, err := os.Stat(s.path)
	return err == nil
}

// MemStore is the in-memory Store used by tests and by hosts that manage
// persistence themselves.
type MemStore struct {
	mu  sync.Mutex
	env *vaultcrypto.Envelope
}

func NewMemStore() *MemStore {
	return &MemStore{}
}

func (s *MemStore) Load() (*vaultcrypto.Envelope, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.env == nil {
		return nil, ErrNotInitialized
	}
	clone := *s.env
	return &clone, nil
}

func (s *MemStore) Save(env *vaultcrypto.Envelope) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	clone := *env
	s.env = &clone
	return nil
}

func (s *MemStore) Delete() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.env = nil
	return nil
}

func (s *MemStore) Exists() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.env != nil
}
