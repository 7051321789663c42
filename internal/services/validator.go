package services

import (
	"path/filepath"
	"strings"
	"time"

	"github.com/okonkwo-dev/Ingesta/internal/core"
)

// UploadPolicy is the configurable validation contract for uploads. It is
// independent of any particular storage backend.
type UploadPolicy struct {
	MaxSizeBytes      int64
	AllowedMediaTypes []string
	Bucket            string
	ReadTimeout       time.Duration
}

// extensionMediaTypes maps filename extensions to their media type. The
// extension is the primary signal because client-declared content types are
// unreliable; the declared type is only a fallback for unknown extensions.
var extensionMediaTypes = map[string]string{
	".pdf":      "application/pdf",
	".md":       "text/markdown",
	".markdown": "text/markdown",
	".txt":      "text/plain",
	".text":     "text/plain",
}

// NormalizeMediaType resolves the effective media type for an upload from
// the filename extension first, the declared type second.
func NormalizeMediaType(filename, declared string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	if mt, ok := extensionMediaTypes[ext]; ok {
		return mt
	}
	// Declared types can carry parameters ("text/plain; charset=utf-8").
	if i := strings.Index(declared, ";"); i >= 0 {
		declared = declared[:i]
	}
	return strings.ToLower(strings.TrimSpace(declared))
}

// ValidatePreflight runs before any of the body is read, so obviously
// rejected uploads fail fast. Size checks are deferred to ValidateSize since
// the size is not known yet.
func (p *UploadPolicy) ValidatePreflight(filename, mediaType string) error {
	if strings.TrimSpace(filename) == "" {
		return core.NewValidationError("filename", "filename must not be empty")
	}
	if mediaType == "" || mediaType == "application/octet-stream" {
		return core.NewValidationError("media_type", "could not determine a supported media type for %q", filename)
	}
	if !p.allows(mediaType) {
		return core.NewValidationError("media_type", "media type %q is not allowed", mediaType)
	}
	return nil
}

// ValidateSize is the authoritative size check once the stream has finished.
// The streaming pass already enforces the ceiling mid-read; this pass also
// rejects empty uploads.
func (p *UploadPolicy) ValidateSize(size int64) error {
	if size <= 0 {
		return core.NewValidationError("size", "upload is empty")
	}
	if p.MaxSizeBytes > 0 && size > p.MaxSizeBytes {
		return core.NewValidationError("size", "upload of %d bytes exceeds the %d byte limit", size, p.MaxSizeBytes)
	}
	return nil
}

func (p *UploadPolicy) allows(mediaType string) bool {
	if len(p.AllowedMediaTypes) == 0 {
		return true
	}
	for _, mt := range p.AllowedMediaTypes {
		if strings.EqualFold(mt, mediaType) {
			return true
		}
	}
	return false
}
