package apiclient

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/textproto"
)

const (
	contentTypeJSON = "application/json"
	imageField      = "image"
)

// Body is a request payload. Use JSON or Multipart to build one.
type Body interface {
	encode() (io.Reader, string, error)
}

// File is one part of a multipart upload.
type File struct {
	Field       string // Form field; defaults to "image"
	Name        string // Filename reported to the server
	ContentType string // Defaults to image/jpeg
	Data        []byte
}

type jsonBody struct {
	value any
}

// JSON serializes v as the request body.
func JSON(v any) Body {
	return jsonBody{value: v}
}

func (b jsonBody) encode() (io.Reader, string, error) {
	data, err := json.Marshal(b.value)
	if err != nil {
		return nil, "", fmt.Errorf("encode json body: %w", err)
	}
	return bytes.NewReader(data), contentTypeJSON, nil
}

type multipartBody struct {
	files []File
}

// Multipart sends files as multipart/form-data. The backend reads images from the "image" field.
func Multipart(files ...File) Body {
	return multipartBody{files: files}
}

func (b multipartBody) encode() (io.Reader, string, error) {
	if len(b.files) == 0 {
		return nil, "", fmt.Errorf("multipart body needs at least one file")
	}

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	for i, f := range b.files {
		field := f.Field
		if field == "" {
			field = imageField
		}
		name := f.Name
		if name == "" {
			name = fmt.Sprintf("image_%d.jpg", i)
		}
		contentType := f.ContentType
		if contentType == "" {
			contentType = "image/jpeg"
		}

		header := make(textproto.MIMEHeader)
		header.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, field, name))
		header.Set("Content-Type", contentType)
		part, err := writer.CreatePart(header)
		if err != nil {
			return nil, "", fmt.Errorf("failed to create form file: %w", err)
		}
		if _, err := part.Write(f.Data); err != nil {
			return nil, "", fmt.Errorf("failed to copy image data: %w", err)
		}
	}
	if err := writer.Close(); err != nil {
		return nil, "", fmt.Errorf("failed to close writer: %w", err)
	}
	return body, writer.FormDataContentType(), nil
}
