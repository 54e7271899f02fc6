package scan

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"

	"github.com/jrsteele09/go-medscan-client/apiclient"
	medErrors "github.com/jrsteele09/go-medscan-client/internal/errors"
)

// Source is where the packaging photo comes from.
type Source int

const (
	SourceCamera Source = iota
	SourceGallery
)

func (s Source) String() string {
	if s == SourceCamera {
		return "camera"
	}
	return "gallery"
}

// Picker obtains one image from the user. It returns ErrPermissionDenied when the
// source is not available to the app and ErrCancelled when the user backs out.
type Picker interface {
	Pick(ctx context.Context, source Source) (apiclient.File, error)
}

// FilePicker picks from the local filesystem. There is no camera, so camera
// requests are denied; an empty Path means the user chose nothing.
type FilePicker struct {
	Path string
}

var _ Picker = FilePicker{}

func (p FilePicker) Pick(ctx context.Context, source Source) (apiclient.File, error) {
	if source == SourceCamera {
		return apiclient.File{}, fmt.Errorf("%w: no camera available", medErrors.ErrPermissionDenied)
	}
	if p.Path == "" {
		return apiclient.File{}, medErrors.ErrCancelled
	}
	if err := ctx.Err(); err != nil {
		return apiclient.File{}, err
	}

	data, err := os.ReadFile(p.Path)
	if err != nil {
		if os.IsPermission(err) {
			return apiclient.File{}, fmt.Errorf("%w: %w", medErrors.ErrPermissionDenied, err)
		}
		return apiclient.File{}, fmt.Errorf("[FilePicker.Pick] %w", err)
	}
	return apiclient.File{
		Name:        filepath.Base(p.Path),
		ContentType: http.DetectContentType(data),
		Data:        data,
	}, nil
}
