// Package doctors covers the patient/doctor access flow: finding a doctor,
// requesting access, and a doctor reviewing requests and patient data.
package doctors

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/jrsteele09/go-medscan-client/apiclient"
	medErrors "github.com/jrsteele09/go-medscan-client/internal/errors"
	"github.com/jrsteele09/go-medscan-client/sessions"
	"github.com/pkg/errors"
)

type Doctor struct {
	UserID string `json:"user_id"`
	Name   string `json:"name"`
	Email  string `json:"email"`
}

// AccessRequest is a patient waiting for a doctor's approval.
type AccessRequest struct {
	PatientID    string `json:"patient_id"`
	PatientName  string `json:"patient_name"`
	PatientEmail string `json:"patient_email"`
}

// Patient is what a doctor can see of a patient who granted access.
type Patient struct {
	PatientID        string           `json:"patient_id"`
	Name             string           `json:"name"`
	SavedMedicines   []map[string]any `json:"saved_medicines"`
	CurrentMedicines []map[string]any `json:"current_medicines"`
	Reports          []map[string]any `json:"reports"`
}

type Service struct {
	client *apiclient.Client
}

func New(client *apiclient.Client) (*Service, error) {
	if client == nil {
		return nil, fmt.Errorf("[doctors.New] client is required")
	}
	return &Service{client: client}, nil
}

func (s *Service) session(role sessions.Role) (*sessions.Session, error) {
	session, err := s.client.Sessions().Load()
	if err != nil {
		return nil, errors.Wrap(err, "load session")
	}
	if session == nil {
		return nil, medErrors.ErrAuthRequired
	}
	if role != "" && session.Role != role {
		return nil, fmt.Errorf("%w: signed in as %s, not %s", medErrors.ErrInvalidInput, session.Role, role)
	}
	return session, nil
}

// Search finds doctors whose name contains name. No match is an empty list.
func (s *Service) Search(ctx context.Context, name string) ([]Doctor, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: a name to search is required", medErrors.ErrInvalidInput)
	}

	var resp struct {
		Doctors []Doctor `json:"doctors"`
	}
	path := "/api/v1/search-doctor?" + url.Values{"name": {name}}.Encode()
	if err := s.client.RequestJSON(ctx, http.MethodGet, path, nil, false, &resp); err != nil {
		if medErrors.IsNotFound(err) {
			return []Doctor{}, nil
		}
		return nil, errors.Wrap(err, "[doctors.Search]")
	}
	if resp.Doctors == nil {
		resp.Doctors = []Doctor{}
	}
	return resp.Doctors, nil
}

// RequestAccess asks doctorID for access on behalf of the signed-in patient.
func (s *Service) RequestAccess(ctx context.Context, doctorID string) error {
	if strings.TrimSpace(doctorID) == "" {
		return fmt.Errorf("%w: doctor id is required", medErrors.ErrInvalidInput)
	}
	session, err := s.session(sessions.RolePatient)
	if err != nil {
		return errors.Wrap(err, "[doctors.RequestAccess]")
	}

	body := apiclient.JSON(map[string]string{"patient_id": session.UserID, "doctor_id": doctorID})
	if _, err := s.client.Request(ctx, http.MethodPost, "/api/v1/request-access", body, true); err != nil {
		return errors.Wrap(err, "[doctors.RequestAccess]")
	}
	return nil
}

// AuthorizedPatients lists the patients the signed-in doctor can see.
func (s *Service) AuthorizedPatients(ctx context.Context) ([]Patient, error) {
	session, err := s.session(sessions.RoleDoctor)
	if err != nil {
		return nil, errors.Wrap(err, "[doctors.AuthorizedPatients]")
	}

	var resp struct {
		AuthorizedPatients []Patient `json:"authorized_patients"`
	}
	path := "/api/v1/get-authorized-patients-data/" + url.PathEscape(session.UserID)
	if err := s.client.RequestJSON(ctx, http.MethodGet, path, nil, true, &resp); err != nil {
		return nil, errors.Wrap(err, "[doctors.AuthorizedPatients]")
	}
	if resp.AuthorizedPatients == nil {
		resp.AuthorizedPatients = []Patient{}
	}
	return resp.AuthorizedPatients, nil
}

// PendingRequests lists patients waiting for the signed-in doctor's approval.
func (s *Service) PendingRequests(ctx context.Context) ([]AccessRequest, error) {
	session, err := s.session(sessions.RoleDoctor)
	if err != nil {
		return nil, errors.Wrap(err, "[doctors.PendingRequests]")
	}

	var resp struct {
		Requests []AccessRequest `json:"requests"`
	}
	path := "/api/v1/get-requests/" + url.PathEscape(session.UserID)
	if err := s.client.RequestJSON(ctx, http.MethodGet, path, nil, true, &resp); err != nil {
		return nil, errors.Wrap(err, "[doctors.PendingRequests]")
	}
	if resp.Requests == nil {
		resp.Requests = []AccessRequest{}
	}
	return resp.Requests, nil
}

// AcceptRequest grants the signed-in doctor access to patientID's data.
func (s *Service) AcceptRequest(ctx context.Context, patientID string) error {
	if strings.TrimSpace(patientID) == "" {
		return fmt.Errorf("%w: patient id is required", medErrors.ErrInvalidInput)
	}
	if _, err := s.session(sessions.RoleDoctor); err != nil {
		return errors.Wrap(err, "[doctors.AcceptRequest]")
	}

	body := apiclient.JSON(map[string]string{"patient_id": patientID})
	if _, err := s.client.Request(ctx, http.MethodPost, "/api/v1/accept-request", body, true); err != nil {
		return errors.Wrap(err, "[doctors.AcceptRequest]")
	}
	return nil
}
