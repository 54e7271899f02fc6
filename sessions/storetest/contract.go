// Package storetest holds the behaviour every sessions.Store must share.
package storetest

import (
	"sync"
	"testing"
	"time"

	medErrors "github.com/jrsteele09/go-medscan-client/internal/errors"
	"github.com/jrsteele09/go-medscan-client/sessions"
	"github.com/stretchr/testify/require"
)

// RunContract exercises save/load/clear semantics against stores built by newStore.
func RunContract(t *testing.T, newStore func(t *testing.T) sessions.Store) {
	t.Helper()

	t.Run("load on empty store is absent", func(t *testing.T) {
		s := newStore(t)
		got, err := s.Load()
		require.NoError(t, err)
		require.Nil(t, got)
	})

	t.Run("save then load returns the session", func(t *testing.T) {
		s := newStore(t)
		want := sessions.Session{
			Token:     "token-1",
			UserID:    "user-1",
			Role:      sessions.RoleDoctor,
			Name:      "Dr Jane",
			Email:     "jane@example.com",
			ExpiresAt: time.Date(2030, 1, 2, 3, 4, 5, 0, time.UTC),
		}
		require.NoError(t, s.Save(want))

		got, err := s.Load()
		require.NoError(t, err)
		require.NotNil(t, got)
		requireSameSession(t, want, *got)
	})

	t.Run("save overwrites previous session", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.Save(sessions.Session{Token: "old", UserID: "a", Role: sessions.RolePatient}))
		require.NoError(t, s.Save(sessions.Session{Token: "new", UserID: "b", Role: sessions.RoleDoctor}))

		got, err := s.Load()
		require.NoError(t, err)
		require.Equal(t, "new", got.Token)
		require.Equal(t, "b", got.UserID)
		require.Equal(t, sessions.RoleDoctor, got.Role)
	})

	t.Run("empty role defaults to patient", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.Save(sessions.Session{Token: "t", UserID: "u"}))
		got, err := s.Load()
		require.NoError(t, err)
		require.Equal(t, sessions.RolePatient, got.Role)
	})

	t.Run("save rejects invalid sessions", func(t *testing.T) {
		s := newStore(t)
		require.ErrorIs(t, s.Save(sessions.Session{UserID: "u"}), medErrors.ErrInvalidInput)
		require.ErrorIs(t, s.Save(sessions.Session{Token: "t", Role: "admin"}), medErrors.ErrInvalidInput)
	})

	t.Run("clear removes the session", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.Save(sessions.Session{Token: "t", UserID: "u"}))
		require.NoError(t, s.Clear())

		got, err := s.Load()
		require.NoError(t, err)
		require.Nil(t, got)
	})

	t.Run("clear on empty store succeeds", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.Clear())
		require.NoError(t, s.Clear())
	})

	t.Run("concurrent saves leave one complete session", func(t *testing.T) {
		s := newStore(t)
		var wg sync.WaitGroup
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_ = s.Save(sessions.Session{Token: "tok", UserID: "same", Role: sessions.RolePatient})
			}()
		}
		wg.Wait()

		got, err := s.Load()
		require.NoError(t, err)
		require.Equal(t, "tok", got.Token)
		require.Equal(t, "same", got.UserID)
	})
}

func requireSameSession(t *testing.T, want, got sessions.Session) {
	t.Helper()
	require.Equal(t, want.Token, got.Token)
	require.Equal(t, want.UserID, got.UserID)
	require.Equal(t, want.Role, got.Role)
	require.Equal(t, want.Name, got.Name)
	require.Equal(t, want.Email, got.Email)
	require.True(t, want.ExpiresAt.Equal(got.ExpiresAt), "expires_at: want %s got %s", want.ExpiresAt, got.ExpiresAt)
}
