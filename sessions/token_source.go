package sessions

import (
	"fmt"

	medErrors "github.com/jrsteele09/go-medscan-client/internal/errors"
	"golang.org/x/oauth2"
)

type storeTokenSource struct {
	store Store
}

// TokenSource exposes the stored session as an oauth2.TokenSource so callers can
// use oauth2.Token.SetAuthHeader for the bearer header.
func TokenSource(store Store) oauth2.TokenSource {
	return storeTokenSource{store: store}
}

func (ts storeTokenSource) Token() (*oauth2.Token, error) {
	s, err := ts.store.Load()
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	if s == nil || s.Token == "" {
		return nil, medErrors.ErrAuthRequired
	}
	return &oauth2.Token{
		AccessToken: s.Token,
		TokenType:   "Bearer",
		Expiry:      s.ExpiresAt,
	}, nil
}
