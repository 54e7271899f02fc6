package reports_test

import (
	"bytes"
	"context"
	"fmt"
	"image/jpeg"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jrsteele09/go-medscan-client/apiclient"
	"github.com/jrsteele09/go-medscan-client/internal/backendfake"
	medErrors "github.com/jrsteele09/go-medscan-client/internal/errors"
	"github.com/jrsteele09/go-medscan-client/reports"
	fakesessionstore "github.com/jrsteele09/go-medscan-client/sessions/repofakes"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	backend *backendfake.Backend
	store   *fakesessionstore.FakeSessionStore
	service *reports.Service
	user    *backendfake.User
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	backend := backendfake.New()
	t.Cleanup(backend.Close)

	store := fakesessionstore.NewFakeSessionStore()
	client, err := apiclient.New(backend.URL, store)
	require.NoError(t, err)
	service, err := reports.New(client, reports.WithLogger(zerolog.Nop()))
	require.NoError(t, err)

	user := backend.AddUser("Pat", "pat@example.com", "pw", "patient")
	require.NoError(t, store.Save(backend.SessionFor(user)))
	return &fixture{backend: backend, store: store, service: service, user: user}
}

// writeTestPDF writes a PDF with the given number of blank pages, with a correct xref table.
func writeTestPDF(t *testing.T, path string, pages int) {
	t.Helper()

	var objects []string
	objects = append(objects, "<< /Type /Catalog /Pages 2 0 R >>")
	kids := make([]string, pages)
	for i := range kids {
		kids[i] = fmt.Sprintf("%d 0 R", i+3)
	}
	objects = append(objects, fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d >>", strings.Join(kids, " "), pages))
	for i := 0; i < pages; i++ {
		objects = append(objects, "<< /Type /Page /Parent 2 0 R /MediaBox [0 0 120 160] >>")
	}

	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n")
	offsets := make([]int, len(objects))
	for i, obj := range objects {
		offsets[i] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", i+1, obj)
	}
	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n0000000000 65535 f \n", len(objects)+1)
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objects)+1, xref)

	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o600))
}

func TestNewRequiresClient(t *testing.T) {
	_, err := reports.New(nil)
	require.Error(t, err)
}

func TestUpload(t *testing.T) {
	f := newFixture(t)

	summary, err := f.service.Upload(context.Background(),
		apiclient.File{Name: "page1.jpg", Data: []byte{1}},
		apiclient.File{Name: "page2.jpg", Data: []byte{2}},
	)
	require.NoError(t, err)
	require.Equal(t, "summary of 2 page(s)", summary.Summary)
	require.Equal(t, "report text from page1.jpg, page2.jpg", summary.RecognizedText)
	require.Equal(t, []string{"page1.jpg", "page2.jpg"}, f.backend.UploadedNames())
}

func TestUploadNeedsPagesAndSession(t *testing.T) {
	f := newFixture(t)

	_, err := f.service.Upload(context.Background())
	require.ErrorIs(t, err, medErrors.ErrInvalidInput)

	require.NoError(t, f.store.Clear())
	_, err = f.service.Upload(context.Background(), apiclient.File{Data: []byte{1}})
	require.ErrorIs(t, err, medErrors.ErrAuthRequired)
	require.Zero(t, f.backend.Calls("/api/v1/upload-reports"))
}

func TestRenderPDF(t *testing.T) {
	f := newFixture(t)
	path := filepath.Join(t.TempDir(), "bloodwork.pdf")
	writeTestPDF(t, path, 2)

	pages, err := f.service.RenderPDF(context.Background(), path)
	require.NoError(t, err)
	require.Len(t, pages, 2)
	require.Equal(t, "bloodwork_p1.jpg", pages[0].Name)
	require.Equal(t, "bloodwork_p2.jpg", pages[1].Name)

	img, err := jpeg.Decode(bytes.NewReader(pages[0].Data))
	require.NoError(t, err)
	require.Positive(t, img.Bounds().Dx())
}

func TestRenderPDFMissingFile(t *testing.T) {
	f := newFixture(t)

	_, err := f.service.RenderPDF(context.Background(), filepath.Join(t.TempDir(), "missing.pdf"))
	require.ErrorIs(t, err, medErrors.ErrInvalidInput)
}

func TestUploadPDF(t *testing.T) {
	f := newFixture(t)
	path := filepath.Join(t.TempDir(), "scan.pdf")
	writeTestPDF(t, path, 3)

	summary, err := f.service.UploadPDF(context.Background(), path)
	require.NoError(t, err)
	require.Equal(t, "summary of 3 page(s)", summary.Summary)
	require.Equal(t, []string{"scan_p1.jpg", "scan_p2.jpg", "scan_p3.jpg"}, f.backend.UploadedNames())
}

func TestSaveSummaryAndList(t *testing.T) {
	f := newFixture(t)

	list, err := f.service.List(context.Background(), "")
	require.NoError(t, err)
	require.NotNil(t, list)
	require.Empty(t, list)

	require.NoError(t, f.service.SaveSummary(context.Background(), "Hb 13.5 g/dL", "Normal haemoglobin"))

	list, err = f.service.List(context.Background(), f.user.ID)
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.Equal(t, "Normal haemoglobin", list[0].Summary)
	require.Equal(t, "Hb 13.5 g/dL", list[0].ExtractedText)
	require.NotEmpty(t, list[0].CreatedAt)
}

func TestSaveSummaryValidates(t *testing.T) {
	f := newFixture(t)

	err := f.service.SaveSummary(context.Background(), " ", "summary")
	require.ErrorIs(t, err, medErrors.ErrInvalidInput)
	require.Zero(t, f.backend.Calls("/api/v1/save-summary"))
}

func TestListWithoutSession(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.store.Clear())

	_, err := f.service.List(context.Background(), "")
	require.ErrorIs(t, err, medErrors.ErrAuthRequired)
}
