package fakesessionstore

import (
	"errors"
	"sync"

	"github.com/jrsteele09/go-medscan-client/sessions"
)

var _ sessions.Store = (*FakeSessionStore)(nil)

// FakeSessionStore is an in-memory sessions.Store that records how often it is used.
type FakeSessionStore struct {
	session *sessions.Session
	lock    sync.RWMutex

	Saves   int
	Loads   int
	Clears  int
	LoadErr error
}

func NewFakeSessionStore() *FakeSessionStore {
	return &FakeSessionStore{}
}

// NewFakeSessionStoreWith returns a store already holding session.
func NewFakeSessionStoreWith(session sessions.Session) *FakeSessionStore {
	s := session
	return &FakeSessionStore{session: &s}
}

func (fs *FakeSessionStore) Save(session sessions.Session) error {
	if err := session.Validate(); err != nil {
		return err
	}

	fs.lock.Lock()
	defer fs.lock.Unlock()

	fs.Saves++
	fs.session = &session
	return nil
}

func (fs *FakeSessionStore) Load() (*sessions.Session, error) {
	fs.lock.Lock()
	defer fs.lock.Unlock()

	fs.Loads++
	if fs.LoadErr != nil {
		return nil, fs.LoadErr
	}
	if fs.session == nil {
		return nil, nil
	}
	s := *fs.session
	return &s, nil
}

func (fs *FakeSessionStore) Clear() error {
	fs.lock.Lock()
	defer fs.lock.Unlock()

	fs.Clears++
	fs.session = nil
	return nil
}

// Snapshot returns the stored session without counting a Load.
func (fs *FakeSessionStore) Snapshot() (sessions.Session, error) {
	fs.lock.RLock()
	defer fs.lock.RUnlock()

	if fs.session == nil {
		return sessions.Session{}, errors.New("not found")
	}
	return *fs.session, nil
}
