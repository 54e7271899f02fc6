package filestore

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/jrsteele09/go-medscan-client/internal/crypto"
	"github.com/jrsteele09/go-medscan-client/sessions"
)

const (
	sessionFile   = "session.sealed"
	deviceKeyFile = "device.key"
	sealPurpose   = "medscan-session-file"
)

var _ sessions.Store = (*Store)(nil)

// Store keeps the session as a sealed JSON document in the data folder.
type Store struct {
	path   string
	sealer *crypto.Sealer
	mu     sync.Mutex
}

// New opens (or prepares) the session file under dir. The device key is created
// on first use next to it.
func New(dir string) (*Store, error) {
	if dir == "" {
		return nil, fmt.Errorf("[filestore.New] dir is required")
	}
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("[filestore.New] create data folder: %w", err)
	}

	key, err := crypto.LoadOrCreateDeviceKey(filepath.Join(dir, deviceKeyFile))
	if err != nil {
		return nil, fmt.Errorf("[filestore.New] device key: %w", err)
	}
	sealer, err := crypto.NewSealer(key, sealPurpose)
	if err != nil {
		return nil, fmt.Errorf("[filestore.New] sealer: %w", err)
	}

	return &Store{
		path:   filepath.Join(dir, sessionFile),
		sealer: sealer,
	}, nil
}

func (s *Store) Save(session sessions.Session) error {
	if err := session.Validate(); err != nil {
		return err
	}

	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("[filestore.Save] marshal: %w", err)
	}
	sealed, err := s.sealer.Seal(data)
	if err != nil {
		return fmt.Errorf("[filestore.Save] seal: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Write then rename so a crash never leaves a half-written session behind.
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, sealed, 0600); err != nil {
		return fmt.Errorf("[filestore.Save] write: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("[filestore.Save] rename: %w", err)
	}
	return nil
}

func (s *Store) Load() (*sessions.Session, error) {
	s.mu.Lock()
	sealed, err := os.ReadFile(s.path)
	s.mu.Unlock()
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("[filestore.Load] read: %w", err)
	}

	data, err := s.sealer.Open(sealed)
	if err != nil {
		return nil, fmt.Errorf("[filestore.Load] open: %w", err)
	}
	var session sessions.Session
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, fmt.Errorf("[filestore.Load] decode: %w", err)
	}
	return &session, nil
}

func (s *Store) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("[filestore.Clear] %w", err)
	}
	return nil
}
