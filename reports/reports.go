// Package reports uploads medical report pages for summarization and manages saved summaries.
package reports

import (
	"bytes"
	"context"
	"fmt"
	"image/jpeg"
	"net/http"
	"net/url"
	"path/filepath"
	"strings"

	"github.com/gen2brain/go-fitz"
	"github.com/jrsteele09/go-medscan-client/apiclient"
	medErrors "github.com/jrsteele09/go-medscan-client/internal/errors"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const jpegQuality = 85

// Summary is what the backend makes of an uploaded report.
type Summary struct {
	Summary        string
	RecognizedText string
}

// Report is a summary the user saved to their profile.
type Report struct {
	Summary       string `json:"summary"`
	ExtractedText string `json:"extracted_text"`
	CreatedAt     string `json:"created_at,omitempty"`
}

type Service struct {
	client *apiclient.Client
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
		return nil, fmt.Errorf("[reports.New] client is required")
	}
	s := &Service{client: client, logger: log.Logger}
	for _, opt := range options {
		opt(s)
	}
	return s, nil
}

// Upload sends report page images and returns the backend's summary of them.
func (s *Service) Upload(ctx context.Context, pages ...apiclient.File) (Summary, error) {
	if len(pages) == 0 {
		return Summary{}, fmt.Errorf("%w: at least one page is required", medErrors.ErrInvalidInput)
	}

	var resp struct {
		Summary        string `json:"summary"`
		RecognizedText string `json:"recognized_text"`
		ExtractedText  string `json:"extracted_text"`
	}
	if err := s.client.RequestJSON(ctx, http.MethodPost, "/api/v1/upload-reports", apiclient.Multipart(pages...), true, &resp); err != nil {
		return Summary{}, errors.Wrap(err, "[reports.Upload]")
	}

	text := resp.RecognizedText
	if text == "" {
		text = resp.ExtractedText
	}
	return Summary{Summary: resp.Summary, RecognizedText: text}, nil
}

// UploadPDF renders every page of the PDF at path and uploads them as one report.
func (s *Service) UploadPDF(ctx context.Context, path string) (Summary, error) {
	pages, err := s.RenderPDF(ctx, path)
	if err != nil {
		return Summary{}, err
	}
	return s.Upload(ctx, pages...)
}

// RenderPDF converts each page of a PDF to a JPEG upload part, in page order.
func (s *Service) RenderPDF(ctx context.Context, path string) ([]apiclient.File, error) {
	doc, err := fitz.New(path)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to open PDF: %w", medErrors.ErrInvalidInput, err)
	}
	defer doc.Close()

	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	pages := make([]apiclient.File, 0, doc.NumPage())

	// Page numbers are zero indexed in fitz.
	for pageNum := 0; pageNum < doc.NumPage(); pageNum++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		img, err := doc.Image(pageNum)
		if err != nil {
			return nil, fmt.Errorf("failed to render page %d: %w", pageNum, err)
		}
		var buf bytes.Buffer
		if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: jpegQuality}); err != nil {
			return nil, fmt.Errorf("failed to encode page %d: %w", pageNum, err)
		}

		pages = append(pages, apiclient.File{
			Name:        fmt.Sprintf("%s_p%d.jpg", base, pageNum+1),
			ContentType: "image/jpeg",
			Data:        buf.Bytes(),
		})
		s.logger.Debug().Str("pdf", path).Int("page", pageNum+1).Int("bytes", buf.Len()).Msg("rendered report page")
	}

	if len(pages) == 0 {
		return nil, fmt.Errorf("%w: PDF has no pages", medErrors.ErrInvalidInput)
	}
	return pages, nil
}

// SaveSummary stores a report summary in the signed-in user's profile.
func (s *Service) SaveSummary(ctx context.Context, extractedText, summary string) error {
	extractedText = strings.TrimSpace(extractedText)
	summary = strings.TrimSpace(summary)
	if extractedText == "" || summary == "" {
		return fmt.Errorf("%w: extracted text and summary are required", medErrors.ErrInvalidInput)
	}

	body := apiclient.JSON(map[string]string{"extracted_text": extractedText, "summary": summary})
	if _, err := s.client.Request(ctx, http.MethodPost, "/api/v1/save-summary", body, true); err != nil {
		return errors.Wrap(err, "[reports.SaveSummary]")
	}
	return nil
}

// List returns the saved reports of userID, or of the signed-in user when userID
// is empty. A user with no reports gets an empty list.
func (s *Service) List(ctx context.Context, userID string) ([]Report, error) {
	if userID == "" {
		session, err := s.client.Sessions().Load()
		if err != nil {
			return nil, errors.Wrap(err, "[reports.List] load session")
		}
		if session == nil {
			return nil, medErrors.ErrAuthRequired
		}
		userID = session.UserID
	}

	var resp struct {
		Reports []Report `json:"reports"`
	}
	if err := s.client.RequestJSON(ctx, http.MethodGet, "/api/v1/get-reports/"+url.PathEscape(userID), nil, false, &resp); err != nil {
		if medErrors.IsNotFound(err) {
			return []Report{}, nil
		}
		return nil, errors.Wrap(err, "[reports.List]")
	}
	if resp.Reports == nil {
		resp.Reports = []Report{}
	}
	return resp.Reports, nil
}
