package sessions_test

import (
	"errors"
	"testing"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	medErrors "github.com/jrsteele09/go-medscan-client/internal/errors"
	"github.com/jrsteele09/go-medscan-client/sessions"
	fakesessionstore "github.com/jrsteele09/go-medscan-client/sessions/repofakes"
	"github.com/stretchr/testify/require"
)

func signedToken(t *testing.T, claims jwtlib.MapClaims) string {
	t.Helper()
	tok, err := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims).SignedString([]byte("backend-secret"))
	require.NoError(t, err)
	return tok
}

func TestSessionExpired(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	require.False(t, sessions.Session{}.Expired(now), "zero expiry never expires")
	require.False(t, sessions.Session{ExpiresAt: now.Add(time.Minute)}.Expired(now))
	require.True(t, sessions.Session{ExpiresAt: now}.Expired(now))
	require.True(t, sessions.Session{ExpiresAt: now.Add(-time.Second)}.Expired(now))
}

func TestClaimsFromToken(t *testing.T) {
	exp := time.Now().Add(time.Hour).Truncate(time.Second)
	tok := signedToken(t, jwtlib.MapClaims{"user_id": "65f0c0ffee", "exp": exp.Unix()})

	tc, err := sessions.ClaimsFromToken(tok)
	require.NoError(t, err)
	require.Equal(t, "65f0c0ffee", tc.UserID)
	require.True(t, exp.Equal(tc.ExpiresAt))
}

func TestClaimsFromTokenFallsBackToSubject(t *testing.T) {
	tok := signedToken(t, jwtlib.MapClaims{"sub": "user-7"})

	tc, err := sessions.ClaimsFromToken(tok)
	require.NoError(t, err)
	require.Equal(t, "user-7", tc.UserID)
	require.True(t, tc.ExpiresAt.IsZero())
}

func TestClaimsFromTokenRejectsOpaqueTokens(t *testing.T) {
	_, err := sessions.ClaimsFromToken("not-a-jwt")
	require.Error(t, err)
}

func TestFromToken(t *testing.T) {
	exp := time.Now().Add(time.Hour).Truncate(time.Second)
	tok := signedToken(t, jwtlib.MapClaims{"user_id": "from-claim", "exp": exp.Unix()})

	s := sessions.FromToken(tok, "", sessions.RoleDoctor)
	require.Equal(t, "from-claim", s.UserID)
	require.Equal(t, sessions.RoleDoctor, s.Role)
	require.True(t, exp.Equal(s.ExpiresAt))

	s = sessions.FromToken(tok, "explicit", sessions.RolePatient)
	require.Equal(t, "explicit", s.UserID)

	s = sessions.FromToken("opaque", "u", "")
	require.Equal(t, "opaque", s.Token)
	require.True(t, s.ExpiresAt.IsZero())
}

func TestTokenSource(t *testing.T) {
	store := fakesessionstore.NewFakeSessionStore()
	ts := sessions.TokenSource(store)

	_, err := ts.Token()
	require.ErrorIs(t, err, medErrors.ErrAuthRequired)

	exp := time.Now().Add(time.Hour)
	require.NoError(t, store.Save(sessions.Session{Token: "abc", UserID: "u", ExpiresAt: exp}))
	tok, err := ts.Token()
	require.NoError(t, err)
	require.Equal(t, "abc", tok.AccessToken)
	require.Equal(t, "Bearer", tok.Type())
	require.True(t, exp.Equal(tok.Expiry))
}

func TestTokenSourceSurfacesStoreErrors(t *testing.T) {
	store := fakesessionstore.NewFakeSessionStore()
	store.LoadErr = errors.New("disk on fire")

	_, err := sessions.TokenSource(store).Token()
	require.Error(t, err)
	require.NotErrorIs(t, err, medErrors.ErrAuthRequired)
}
