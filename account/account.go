// Package account signs users in and out and manages the device session.
package account

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/jrsteele09/go-medscan-client/apiclient"
	medErrors "github.com/jrsteele09/go-medscan-client/internal/errors"
	"github.com/jrsteele09/go-medscan-client/sessions"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// UserDetails is the signed-in user's profile as the backend reports it.
type UserDetails struct {
	ID               string           `json:"_id"`
	Name             string           `json:"name"`
	Email            string           `json:"email"`
	Role             sessions.Role    `json:"role"`
	SavedMedicines   []map[string]any `json:"saved_medicines"`
	CurrentMedicines []map[string]any `json:"current_medicines"`
	Reports          []map[string]any `json:"reports"`
}

type Service struct {
	client *apiclient.Client
	store  sessions.Store
	logger zerolog.Logger
}

// ServiceOption defines a function type to modify the Service instance.
type ServiceOption func(*Service)

func WithLogger(l zerolog.Logger) ServiceOption {
	return func(s *Service) {
		s.logger = l
	}
}

func New(client *apiclient.Client, options ...ServiceOption) (*Service, error) {
	if client == nil {
		return nil, fmt.Errorf("[account.New] client is required")
	}
	s := &Service{client: client, store: client.Sessions(), logger: log.Logger}
	for _, opt := range options {
		opt(s)
	}
	return s, nil
}

func validateEmail(email string) error {
	if strings.TrimSpace(email) == "" || !strings.Contains(email, "@") {
		return fmt.Errorf("%w: a valid email is required", medErrors.ErrInvalidInput)
	}
	return nil
}

func validateCredentials(email, password string) error {
	if err := validateEmail(email); err != nil {
		return err
	}
	if password == "" {
		return fmt.Errorf("%w: password is required", medErrors.ErrInvalidInput)
	}
	return nil
}

// Login exchanges credentials for a token and saves the resulting Session,
// replacing any previous one. The login response carries only the token, so
// the profile is fetched afterwards to learn the role and name.
func (s *Service) Login(ctx context.Context, email, password string) (sessions.Session, error) {
	email = strings.TrimSpace(email)
	if err := validateCredentials(email, password); err != nil {
		return sessions.Session{}, err
	}

	var resp struct {
		Token   string `json:"token"`
		Message string `json:"message"`
	}
	body := apiclient.JSON(map[string]string{"email": email, "password": password})
	if err := s.client.RequestJSON(ctx, http.MethodPost, "/auth/login", body, false, &resp); err != nil {
		return sessions.Session{}, errors.Wrap(err, "[account.Login]")
	}
	if resp.Token == "" {
		return sessions.Session{}, fmt.Errorf("%w: login response has no token", medErrors.ErrInvalidResponse)
	}

	session := sessions.FromToken(resp.Token, "", sessions.RolePatient)
	if session.UserID == "" {
		return sessions.Session{}, fmt.Errorf("%w: token carries no user id", medErrors.ErrInvalidResponse)
	}
	session.Email = email
	if err := s.store.Save(session); err != nil {
		return sessions.Session{}, errors.Wrap(err, "[account.Login] store.Save")
	}

	details, err := s.UserDetails(ctx)
	if err != nil {
		if medErrors.Is(err, medErrors.ErrAuthRejected) {
			return sessions.Session{}, err
		}
		s.logger.Warn().Err(err).Msg("Signed in without profile details")
		return session, nil
	}

	if details.Role.Valid() {
		session.Role = details.Role
	}
	session.Name = details.Name
	if err := s.store.Save(session); err != nil {
		return sessions.Session{}, errors.Wrap(err, "[account.Login] store.Save")
	}
	return session, nil
}

// Signup creates an account and signs in as it.
func (s *Service) Signup(ctx context.Context, name, email, password string, role sessions.Role) (sessions.Session, error) {
	name = strings.TrimSpace(name)
	email = strings.TrimSpace(email)
	if name == "" {
		return sessions.Session{}, fmt.Errorf("%w: name is required", medErrors.ErrInvalidInput)
	}
	if err := validateCredentials(email, password); err != nil {
		return sessions.Session{}, err
	}
	if role == "" {
		role = sessions.RolePatient
	}
	if !role.Valid() {
		return sessions.Session{}, fmt.Errorf("%w: unknown role %q", medErrors.ErrInvalidInput, role)
	}

	var resp struct {
		UserID  string `json:"user_id"`
		Token   string `json:"token"`
		Message string `json:"message"`
	}
	body := apiclient.JSON(map[string]string{"name": name, "email": email, "password": password, "role": string(role)})
	if err := s.client.RequestJSON(ctx, http.MethodPost, "/auth/signup", body, false, &resp); err != nil {
		return sessions.Session{}, errors.Wrap(err, "[account.Signup]")
	}
	if resp.Token == "" {
		return sessions.Session{}, fmt.Errorf("%w: signup response has no token", medErrors.ErrInvalidResponse)
	}

	session := sessions.FromToken(resp.Token, resp.UserID, role)
	session.Name = name
	session.Email = email
	if err := s.store.Save(session); err != nil {
		return sessions.Session{}, errors.Wrap(err, "[account.Signup] store.Save")
	}
	return session, nil
}

// ForgotPassword asks the backend to send a reset code to email.
func (s *Service) ForgotPassword(ctx context.Context, email string) (string, error) {
	if err := validateEmail(email); err != nil {
		return "", err
	}
	return s.messageCall(ctx, "/auth/forget_password", map[string]string{"email": strings.TrimSpace(email)}, "[account.ForgotPassword]")
}

// ResetPassword sets a new password using the emailed one-time code.
func (s *Service) ResetPassword(ctx context.Context, email, otp, password string) (string, error) {
	if err := validateCredentials(email, password); err != nil {
		return "", err
	}
	if strings.TrimSpace(otp) == "" {
		return "", fmt.Errorf("%w: reset code is required", medErrors.ErrInvalidInput)
	}
	payload := map[string]string{"email": strings.TrimSpace(email), "otp": strings.TrimSpace(otp), "password": password}
	return s.messageCall(ctx, "/auth/reset_password", payload, "[account.ResetPassword]")
}

func (s *Service) messageCall(ctx context.Context, path string, payload any, op string) (string, error) {
	var resp struct {
		Message string `json:"message"`
	}
	if err := s.client.RequestJSON(ctx, http.MethodPost, path, apiclient.JSON(payload), false, &resp); err != nil {
		return "", errors.Wrap(err, op)
	}
	return resp.Message, nil
}

// Logout tells the backend (best effort) and always forgets the local session.
func (s *Service) Logout(ctx context.Context) error {
	current, err := s.store.Load()
	if err != nil {
		s.logger.Err(err).Msg("Failed to read session before logout")
	}
	if current != nil {
		if _, err := s.client.Request(ctx, http.MethodPost, "/auth/logout", nil, true); err != nil {
			s.logger.Warn().Err(err).Msg("Backend logout failed, clearing local session anyway")
		}
	}
	if err := s.store.Clear(); err != nil {
		return errors.Wrap(err, "[account.Logout] store.Clear")
	}
	return nil
}

// CurrentSession returns the saved session, or nil when signed out.
func (s *Service) CurrentSession() (*sessions.Session, error) {
	session, err := s.store.Load()
	if err != nil {
		return nil, errors.Wrap(err, "[account.CurrentSession]")
	}
	return session, nil
}

func (s *Service) UserDetails(ctx context.Context) (UserDetails, error) {
	var resp struct {
		User UserDetails `json:"user"`
	}
	if err := s.client.RequestJSON(ctx, http.MethodGet, "/api/v1/get_user_details", nil, true, &resp); err != nil {
		return UserDetails{}, errors.Wrap(err, "[account.UserDetails]")
	}
	return resp.User, nil
}

// GoogleLoginURL returns the page that starts Google sign-in in a browser.
func (s *Service) GoogleLoginURL(ctx context.Context) (string, error) {
	var resp struct {
		AuthorizationURL string `json:"authorization_url"`
	}
	if err := s.client.RequestJSON(ctx, http.MethodGet, "/auth/login/google", nil, false, &resp); err != nil {
		return "", errors.Wrap(err, "[account.GoogleLoginURL]")
	}
	if resp.AuthorizationURL == "" {
		return "", fmt.Errorf("%w: no authorization_url", medErrors.ErrInvalidResponse)
	}
	return resp.AuthorizationURL, nil
}
