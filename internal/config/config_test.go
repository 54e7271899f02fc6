package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jrsteele09/go-medscan-client/internal/config"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	t.Setenv("BASE_URL", "")
	t.Setenv("REQUEST_TIMEOUT", "")
	t.Setenv("SUGGESTION_QUIET_PERIOD", "")
	t.Setenv("MIN_SUGGESTION_LENGTH", "")
	t.Setenv("SESSION_BACKEND", "")

	c := config.New()
	require.Equal(t, "http://localhost:5001", c.GetBaseURL())
	require.Equal(t, 30*time.Second, c.GetRequestTimeout())
	require.Equal(t, 500*time.Millisecond, c.GetSuggestionQuietPeriod())
	require.Equal(t, 2, c.GetMinSuggestionLength())
	require.Equal(t, config.SessionBackendFile, c.GetSessionBackend())
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("BASE_URL", "http://10.0.0.2:5001/")
	t.Setenv("REQUEST_TIMEOUT", "5s")
	t.Setenv("DETAIL_FETCH_CONCURRENCY", "not-a-number")

	c := config.New()
	require.Equal(t, "http://10.0.0.2:5001", c.GetBaseURL())
	require.Equal(t, 5*time.Second, c.GetRequestTimeout())
	require.Equal(t, 4, c.GetDetailFetchConcurrency())
}

func TestFileOverridesEnv(t *testing.T) {
	t.Setenv("BASE_URL", "http://from-env:5001")
	t.Setenv("REQUEST_TIMEOUT", "")

	path := filepath.Join(t.TempDir(), "medscan.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
base_url: http://from-file:5001/
session_backend: sqlite
client:
  request_timeout: 12s
  detail_fetch_concurrency: 8
`), 0600))

	c, err := config.NewFromFile(path)
	require.NoError(t, err)
	require.Equal(t, "http://from-file:5001", c.GetBaseURL())
	require.Equal(t, config.SessionBackendSQLite, c.GetSessionBackend())
	require.Equal(t, 12*time.Second, c.GetRequestTimeout())
	require.Equal(t, 8, c.GetDetailFetchConcurrency())
	require.Equal(t, 500*time.Millisecond, c.GetSuggestionQuietPeriod())
}

func TestFileRejectsUnknownBackend(t *testing.T) {
	path := filepath.Join(t.TempDir(), "medscan.yaml")
	require.NoError(t, os.WriteFile(path, []byte("session_backend: redis\n"), 0600))

	_, err := config.NewFromFile(path)
	require.Error(t, err)
}

func TestFileRejectsNegativeSettings(t *testing.T) {
	path := filepath.Join(t.TempDir(), "medscan.yaml")
	require.NoError(t, os.WriteFile(path, []byte("client:\n  detail_fetch_concurrency: -1\n"), 0600))

	_, err := config.NewFromFile(path)
	require.Error(t, err)
}

func TestEmptyPathUsesEnv(t *testing.T) {
	c, err := config.NewFromFile("")
	require.NoError(t, err)
	require.NotNil(t, c)
}
