package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/okonkwo-dev/Ingesta/internal/core"
)

func TestNormalizeMediaType(t *testing.T) {
	tests := []struct {
		name     string
		filename string
		declared string
		want     string
	}{
		{"extension beats declared type", "report.pdf", "application/octet-stream", "application/pdf"},
		{"markdown extension", "notes.md", "", "text/markdown"},
		{"long markdown extension", "notes.markdown", "text/plain", "text/markdown"},
		{"txt extension", "readme.txt", "application/pdf", "text/plain"},
		{"declared type as fallback", "archive", "application/pdf", "application/pdf"},
		{"declared type parameters stripped", "archive", "text/plain; charset=utf-8", "text/plain"},
		{"case-insensitive extension", "REPORT.PDF", "", "application/pdf"},
		{"nothing to go on", "blob.bin", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeMediaType(tt.filename, tt.declared))
		})
	}
}

func TestUploadPolicy_ValidatePreflight(t *testing.T) {
	policy := &UploadPolicy{
		MaxSizeBytes:      1024,
		AllowedMediaTypes: []string{"application/pdf", "text/markdown"},
	}

	t.Run("accepts allowed type", func(t *testing.T) {
		assert.NoError(t, policy.ValidatePreflight("report.pdf", "application/pdf"))
	})

	t.Run("rejects empty filename", func(t *testing.T) {
		err := policy.ValidatePreflight("   ", "application/pdf")
		require.Error(t, err)
		assert.True(t, core.IsValidation(err))
	})

	t.Run("rejects unresolved media type", func(t *testing.T) {
		err := policy.ValidatePreflight("blob.bin", "")
		require.Error(t, err)
		assert.True(t, core.IsValidation(err))
	})

	t.Run("rejects octet-stream passthrough", func(t *testing.T) {
		err := policy.ValidatePreflight("blob.bin", "application/octet-stream")
		require.Error(t, err)
		assert.True(t, core.IsValidation(err))
	})

	t.Run("rejects disallowed type", func(t *testing.T) {
		err := policy.ValidatePreflight("notes.txt", "text/plain")
		require.Error(t, err)
		assert.True(t, core.IsValidation(err))
	})

	t.Run("empty allow-list admits anything recognized", func(t *testing.T) {
		open := &UploadPolicy{}
		assert.NoError(t, open.ValidatePreflight("notes.txt", "text/plain"))
	})
}

func TestUploadPolicy_ValidateSize(t *testing.T) {
	policy := &UploadPolicy{MaxSizeBytes: 1024}

	assert.NoError(t, policy.ValidateSize(1))
	assert.NoError(t, policy.ValidateSize(1024))

	err := policy.ValidateSize(0)
	require.Error(t, err)
	assert.True(t, core.IsValidation(err))

	err = policy.ValidateSize(1025)
	require.Error(t, err)
	assert.True(t, core.IsValidation(err))
}
