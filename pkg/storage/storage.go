package storage

import (
	"context"
	"encoding/base64"
	"errors"
	"mime"
	"strings"
)

var ErrNotDataURI = errors.New("value is not a base64 data URI")

// ObjectStore persists binary objects and returns a URL that locates them.
type ObjectStore interface {
	Put(ctx context.Context, key, contentType string, data []byte) (string, error)
}

// DataURI is a decoded `data:<type>;base64,<payload>` value.
type DataURI struct {
	ContentType string
	Data        []byte
}

// IsDataURI reports whether s looks like a data URI without decoding it.
func IsDataURI(s string) bool {
	return strings.HasPrefix(strings.TrimSpace(s), "data:")
}

func ParseDataURI(s string) (*DataURI, error) {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "data:") {
		return nil, ErrNotDataURI
	}
	header, payload, ok := strings.Cut(strings.TrimPrefix(s, "data:"), ",")
	if !ok || !strings.HasSuffix(header, ";base64") {
		return nil, ErrNotDataURI
	}

	contentType := strings.TrimSuffix(header, ";base64")
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, err
	}
	return &DataURI{ContentType: contentType, Data: data}, nil
}

// Extension returns a file extension for the content type, ".bin" when unknown.
func (d *DataURI) Extension() string {
	if exts, err := mime.ExtensionsByType(d.ContentType); err == nil && len(exts) > 0 {
		return exts[0]
	}
	return ".bin"
}
