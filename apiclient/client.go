package apiclient

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	medErrors "github.com/jrsteele09/go-medscan-client/internal/errors"
	"github.com/jrsteele09/go-medscan-client/sessions"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"
)

const defaultTimeout = 30 * time.Second

// Client issues requests to the medscan backend. It is safe for concurrent use;
// the only shared state is the session store, which it reads per request and
// clears when the backend rejects the credentials.
type Client struct {
	baseURL    string
	store      sessions.Store
	tokens     oauth2.TokenSource
	httpClient *http.Client
	logger     zerolog.Logger
	nowTime    func() time.Time
}

// ClientOption defines a function type to modify the Client instance.
type ClientOption func(*Client)

// WithHTTPClient replaces the default http.Client (and its timeout).
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithTimeout sets the per-request timeout of the default http.Client.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		if d > 0 {
			c.httpClient = &http.Client{Timeout: d}
		}
	}
}

func WithLogger(l zerolog.Logger) ClientOption {
	return func(c *Client) {
		c.logger = l
	}
}

// WithNowTime sets the now time function (primarily for testing)
func WithNowTime(nowFunc func() time.Time) ClientOption {
	return func(c *Client) {
		c.nowTime = nowFunc
	}
}

// New creates a Client for the backend rooted at baseURL.
func New(baseURL string, store sessions.Store, options ...ClientOption) (*Client, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("[apiclient.New] baseURL is required")
	}
	if store == nil {
		return nil, fmt.Errorf("[apiclient.New] session store is required")
	}

	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		store:      store,
		tokens:     sessions.TokenSource(store),
		httpClient: &http.Client{Timeout: defaultTimeout},
		logger:     log.Logger,
		nowTime:    time.Now,
	}
	for _, opt := range options {
		opt(c)
	}
	return c, nil
}

// Sessions returns the store the client authenticates from.
func (c *Client) Sessions() sessions.Store {
	return c.store
}

// Request performs one call and returns the 2xx JSON body unmodified (nil when empty).
//
// Failure modes:
//   - ErrAuthRequired: requiresAuth with no live session; nothing is sent
//   - ErrNetwork: transport failure or timeout
//   - ErrAuthRejected: 401/403; the stored session is cleared
//   - *RequestFailedError: any other 4xx/5xx
func (c *Client) Request(ctx context.Context, method, path string, body Body, requiresAuth bool) (json.RawMessage, error) {
	var token *oauth2.Token
	if requiresAuth {
		var err error
		if token, err = c.bearerToken(); err != nil {
			return nil, err
		}
	}

	var reader io.Reader
	var contentType string
	if body != nil {
		var err error
		if reader, contentType, err = body.encode(); err != nil {
			return nil, fmt.Errorf("%w: %w", medErrors.ErrInvalidInput, err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("%w: build request: %w", medErrors.ErrInvalidInput, err)
	}
	req.Header.Set("Accept", contentTypeJSON)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if token != nil {
		token.SetAuthHeader(req)
	}

	requestID := uuid.New().String()
	started := c.nowTime()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Debug().Err(err).Str("request_id", requestID).Str("method", method).Str("path", path).Msg("transport failure")
		return nil, fmt.Errorf("%w: %s %s: %w", medErrors.ErrNetwork, method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read %s %s: %w", medErrors.ErrNetwork, method, path, err)
	}

	c.logger.Debug().
		Str("request_id", requestID).
		Str("method", method).
		Str("path", path).
		Int("status", resp.StatusCode).
		Dur("elapsed", c.nowTime().Sub(started)).
		Msg("backend call")

	return c.handleResponse(resp.StatusCode, data)
}

// RequestJSON performs Request and decodes the body into out (which may be nil).
func (c *Client) RequestJSON(ctx context.Context, method, path string, body Body, requiresAuth bool, out any) error {
	raw, err := c.Request(ctx, method, path, body, requiresAuth)
	if err != nil {
		return err
	}
	if out == nil || len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("%w: decode %s %s: %w", medErrors.ErrInvalidResponse, method, path, err)
	}
	return nil
}

func (c *Client) bearerToken() (*oauth2.Token, error) {
	token, err := c.tokens.Token()
	if err != nil {
		return nil, err
	}
	if !token.Expiry.IsZero() && !c.nowTime().Before(token.Expiry) {
		c.clearSession("expired session")
		return nil, fmt.Errorf("%w: session expired", medErrors.ErrAuthRequired)
	}
	return token, nil
}

func (c *Client) handleResponse(status int, data []byte) (json.RawMessage, error) {
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		c.clearSession("credentials rejected")
		return nil, fmt.Errorf("%w: %s", medErrors.ErrAuthRejected, serverMessage(status, data))

	case status >= 400:
		return nil, &medErrors.RequestFailedError{
			StatusCode: status,
			Message:    serverMessage(status, data),
		}

	case status < 200 || status >= 300:
		return nil, &medErrors.RequestFailedError{
			StatusCode: status,
			Message:    http.StatusText(status),
		}
	}

	if len(data) == 0 {
		return nil, nil
	}
	if !json.Valid(data) {
		return nil, fmt.Errorf("%w: body is not JSON", medErrors.ErrInvalidResponse)
	}
	return json.RawMessage(data), nil
}

func (c *Client) clearSession(reason string) {
	if err := c.store.Clear(); err != nil {
		c.logger.Err(err).Str("reason", reason).Msg("Failed to clear session")
		return
	}
	c.logger.Info().Str("reason", reason).Msg("session cleared")
}

// serverMessage pulls "message" (then "error") from an error body, falling back to the status text.
func serverMessage(status int, data []byte) string {
	var body struct {
		Message any `json:"message"`
		Error   any `json:"error"`
	}
	if err := json.Unmarshal(data, &body); err == nil {
		if msg, ok := body.Message.(string); ok && msg != "" {
			return msg
		}
		if msg, ok := body.Error.(string); ok && msg != "" {
			return msg
		}
	}
	if text := http.StatusText(status); text != "" {
		return text
	}
	return fmt.Sprintf("status %d", status)
}
