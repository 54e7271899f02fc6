package crypto_test

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/jrsteele09/go-medscan-client/internal/crypto"
	"github.com/stretchr/testify/require"
)

func newSealer(t *testing.T, purpose string) *crypto.Sealer {
	t.Helper()
	key, err := crypto.LoadOrCreateDeviceKey(filepath.Join(t.TempDir(), "device.key"))
	require.NoError(t, err)
	s, err := crypto.NewSealer(key, purpose)
	require.NoError(t, err)
	return s
}

func TestSealOpenRoundTrip(t *testing.T) {
	s := newSealer(t, "session")
	sealed, err := s.Seal([]byte("bearer-token"))
	require.NoError(t, err)
	require.False(t, bytes.Contains(sealed, []byte("bearer-token")))

	plain, err := s.Open(sealed)
	require.NoError(t, err)
	require.Equal(t, "bearer-token", string(plain))
}

func TestOpenRejectsTampering(t *testing.T) {
	s := newSealer(t, "session")
	sealed, err := s.Seal([]byte("bearer-token"))
	require.NoError(t, err)

	sealed[len(sealed)-1] ^= 0xff
	_, err = s.Open(sealed)
	require.ErrorIs(t, err, crypto.ErrSealedDataCorrupt)

	_, err = s.Open([]byte("short"))
	require.ErrorIs(t, err, crypto.ErrSealedDataCorrupt)
}

func TestPurposeSeparatesKeys(t *testing.T) {
	key, err := crypto.LoadOrCreateDeviceKey(filepath.Join(t.TempDir(), "device.key"))
	require.NoError(t, err)
	a, err := crypto.NewSealer(key, "a")
	require.NoError(t, err)
	b, err := crypto.NewSealer(key, "b")
	require.NoError(t, err)

	sealed, err := a.Seal([]byte("x"))
	require.NoError(t, err)
	_, err = b.Open(sealed)
	require.Error(t, err)
}

func TestDeviceKeyIsStable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "device.key")
	first, err := crypto.LoadOrCreateDeviceKey(path)
	require.NoError(t, err)
	second, err := crypto.LoadOrCreateDeviceKey(path)
	require.NoError(t, err)
	require.Equal(t, first, second)

	info, err := os.Stat(path)
	require.NoError(t, err)
	require.Equal(t, os.FileMode(0600), info.Mode().Perm())
}

func TestDeviceKeyWrongLength(t *testing.T) {
	path := filepath.Join(t.TempDir(), "device.key")
	require.NoError(t, os.WriteFile(path, []byte("short"), 0600))
	_, err := crypto.LoadOrCreateDeviceKey(path)
	require.ErrorIs(t, err, crypto.ErrInvalidKeyLength)
}
