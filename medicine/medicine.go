// Package medicine wraps the backend's medicine lookup, extraction and schedule endpoints.
package medicine

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/jrsteele09/go-medscan-client/apiclient"
	medErrors "github.com/jrsteele09/go-medscan-client/internal/errors"
	"github.com/jrsteele09/go-medscan-client/internal/utils"
	"github.com/pkg/errors"
)

// Detail is the backend's description of one medicine.
type Detail struct {
	BrandName               string `json:"brand_name"`
	GenericName             string `json:"generic_name"`
	Purpose                 string `json:"purpose"`
	IndicationsAndUsage     string `json:"indications_and_usage"`
	ActiveIngredient        string `json:"active_ingredient"`
	DoNotUse                string `json:"do_not_use"`
	WhenUsing               string `json:"when_using"`
	DosageAndAdministration string `json:"dosage_and_administration"`
	ImageURL                string `json:"image_url"`
}

// Schedule is a course of medicine the user is currently taking.
type Schedule struct {
	Name           string
	ConsultingDate time.Time
	DosagePeriod   int // days
	NumMedicines   int // doses per day
	Interval       string
	Times          []string // "08:00", "20:00", ...
}

func (s Schedule) validate() error {
	var missing []string
	if strings.TrimSpace(s.Name) == "" {
		missing = append(missing, "name")
	}
	if s.ConsultingDate.IsZero() {
		missing = append(missing, "consulting_date")
	}
	if s.DosagePeriod <= 0 {
		missing = append(missing, "dosage_period")
	}
	if s.NumMedicines <= 0 {
		missing = append(missing, "num_medicines")
	}
	if len(s.Times) == 0 {
		missing = append(missing, "times")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: schedule is missing %s", medErrors.ErrInvalidInput, strings.Join(missing, ", "))
	}
	return nil
}

type Service struct {
	client *apiclient.Client
}

func New(client *apiclient.Client) (*Service, error) {
	if client == nil {
		return nil, fmt.Errorf("[medicine.New] client is required")
	}
	return &Service{client: client}, nil
}

// Detail looks up a medicine by brand name. No session is needed.
func (s *Service) Detail(ctx context.Context, name string) (Detail, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Detail{}, fmt.Errorf("%w: medicine name is required", medErrors.ErrInvalidInput)
	}

	var detail Detail
	if err := s.client.RequestJSON(ctx, http.MethodGet, "/api/v1/medicine/"+url.PathEscape(name), nil, false, &detail); err != nil {
		return Detail{}, errors.Wrapf(err, "[medicine.Detail] %s", name)
	}
	return detail, nil
}

// Suggestions returns brand names matching query. "No matches" is an empty list, not an error.
func (s *Service) Suggestions(ctx context.Context, query string) ([]string, error) {
	var names []string
	path := "/medicine_suggestions?" + url.Values{"query": {query}}.Encode()
	if err := s.client.RequestJSON(ctx, http.MethodGet, path, nil, false, &names); err != nil {
		if medErrors.IsNotFound(err) {
			return []string{}, nil
		}
		return nil, errors.Wrap(err, "[medicine.Suggestions]")
	}
	if names == nil {
		names = []string{}
	}
	return names, nil
}

// Extract uploads a packaging photo and returns the raw names recognized on it, in order.
func (s *Service) Extract(ctx context.Context, image apiclient.File) ([]string, error) {
	var resp struct {
		RecognizedText string `json:"recognized_text"`
		Medicines      []any  `json:"medicines"`
	}
	if err := s.client.RequestJSON(ctx, http.MethodPost, "/api/v1/extract_medicines", apiclient.Multipart(image), false, &resp); err != nil {
		return nil, errors.Wrap(err, "[medicine.Extract]")
	}
	// The backend groups names per recognized line; callers want one ordered list.
	return utils.FlattenStrings(resp.Medicines), nil
}

// Save stores detail in the signed-in user's saved medicines.
func (s *Service) Save(ctx context.Context, detail Detail) error {
	if strings.TrimSpace(detail.BrandName) == "" {
		return fmt.Errorf("%w: brand name is required", medErrors.ErrInvalidInput)
	}
	body := apiclient.JSON(map[string]any{"medicine_details": detail})
	if _, err := s.client.Request(ctx, http.MethodPost, "/api/v1/save_medicine", body, true); err != nil {
		return errors.Wrap(err, "[medicine.Save]")
	}
	return nil
}

// AddSchedule records a medicine course for the signed-in user.
func (s *Service) AddSchedule(ctx context.Context, schedule Schedule) error {
	if err := schedule.validate(); err != nil {
		return err
	}

	payload := map[string]any{
		"name":            schedule.Name,
		"consulting_date": schedule.ConsultingDate.Format(time.DateOnly),
		"dosage_period":   schedule.DosagePeriod,
		"num_medicines":   schedule.NumMedicines,
		"times":           schedule.Times,
	}
	if schedule.Interval != "" {
		payload["interval"] = schedule.Interval
	}
	if _, err := s.client.Request(ctx, http.MethodPost, "/api/v1/add_medicine", apiclient.JSON(payload), true); err != nil {
		return errors.Wrap(err, "[medicine.AddSchedule]")
	}
	return nil
}

// SavedMedicines lists the signed-in user's saved medicines.
func (s *Service) SavedMedicines(ctx context.Context) ([]Detail, error) {
	var resp struct {
		Medicines []Detail `json:"medicines"`
	}
	if err := s.client.RequestJSON(ctx, http.MethodGet, "/api/v1/get_saved_medicines", nil, true, &resp); err != nil {
		return nil, errors.Wrap(err, "[medicine.SavedMedicines]")
	}
	if resp.Medicines == nil {
		resp.Medicines = []Detail{}
	}
	return resp.Medicines, nil
}
