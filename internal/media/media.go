// Package media moves inline images out of request payloads. Forms send
// pictures as base64 data URIs; when an uploader is configured the image is
// stored with an image host and its URL is sent upstream instead.
package media

import (
	"context"
	"encoding/base64"
	"fmt"
	"log"
	"strings"
)

// Uploader stores one image and returns its public URL.
type Uploader interface {
	Upload(ctx context.Context, contentType string, data []byte) (string, error)
}

// ParseDataURI splits a base64 data URI into its content type and bytes.
// ok is false for anything else, including plain URLs.
func ParseDataURI(s string) (contentType string, data []byte, ok bool) {
	rest, found := strings.CutPrefix(s, "data:")
	if !found {
		return "", nil, false
	}
	meta, payload, found := strings.Cut(rest, ",")
	if !found {
		return "", nil, false
	}
	meta, isBase64 := strings.CutSuffix(meta, ";base64")
	if !isBase64 {
		return "", nil, false
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return "", nil, false
	}
	if meta == "" {
		meta = "application/octet-stream"
	}
	return meta, data, true
}

// Hoster rewrites data URIs into hosted URLs. A nil Hoster, or one without
// an uploader, returns values unchanged.
type Hoster struct {
	uploader Uploader
}

// NewHoster wraps u. u may be nil.
func NewHoster(u Uploader) *Hoster {
	return &Hoster{uploader: u}
}

// Enabled reports whether uploads happen.
func (h *Hoster) Enabled() bool {
	return h != nil && h.uploader != nil
}

// Host returns value, or the hosted URL when value is a data URI.
func (h *Hoster) Host(ctx context.Context, value string) (string, error) {
	if !h.Enabled() {
		return value, nil
	}
	contentType, data, ok := ParseDataURI(value)
	if !ok {
		return value, nil
	}
	if !strings.HasPrefix(contentType, "image/") {
		return "", fmt.Errorf("media: refusing to host %s", contentType)
	}
	url, err := h.uploader.Upload(ctx, contentType, data)
	if err != nil {
		return "", fmt.Errorf("media: upload failed: %w", err)
	}
	log.Printf("INFO: Hosted %d byte %s image at %s", len(data), contentType, url)
	return url, nil
}

func extension(contentType string) string {
	switch strings.ToLower(contentType) {
	case "image/png":
		return "png"
	case "image/gif":
		return "gif"
	case "image/webp":
		return "webp"
	case "image/svg+xml":
		return "svg"
	default:
		return "jpg"
	}
}
