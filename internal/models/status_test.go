package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDocumentStatus(t *testing.T) {
	for _, s := range []string{
		"uploading", "uploaded", "parsing", "parsed",
		"chunking", "chunked", "embedding", "ready", "failed",
	} {
		got, err := ParseDocumentStatus(s)
		require.NoError(t, err, s)
		assert.Equal(t, s, got.String())
	}

	for _, s := range []string{"", "READY", "done", "processing"} {
		_, err := ParseDocumentStatus(s)
		assert.Error(t, err, "%q must be rejected at the boundary", s)
	}
}

func TestDocumentStatus_Busy(t *testing.T) {
	busy := map[DocumentStatus]bool{
		StatusUploading: true,
		StatusParsing:   true,
		StatusChunking:  true,
	}
	for st := range documentTransitions {
		assert.Equal(t, busy[st], st.Busy(), "status %s", st)
	}
}

func TestDocumentStatus_Transitions(t *testing.T) {
	t.Run("forward path is legal", func(t *testing.T) {
		path := []DocumentStatus{
			StatusUploading, StatusUploaded, StatusParsing, StatusParsed,
			StatusChunking, StatusChunked, StatusEmbedding, StatusReady,
		}
		for i := 0; i < len(path)-1; i++ {
			assert.True(t, path[i].CanTransitionTo(path[i+1]), "%s -> %s", path[i], path[i+1])
		}
	})

	t.Run("failed is reachable from working states", func(t *testing.T) {
		for _, st := range []DocumentStatus{StatusUploading, StatusParsing, StatusChunking, StatusEmbedding} {
			assert.True(t, st.CanTransitionTo(StatusFailed), "%s -> failed", st)
		}
	})

	t.Run("reprocess resets settled states to uploaded", func(t *testing.T) {
		for _, st := range []DocumentStatus{StatusParsed, StatusChunked, StatusEmbedding, StatusReady, StatusFailed} {
			assert.True(t, st.CanTransitionTo(StatusUploaded), "%s -> uploaded", st)
		}
	})

	t.Run("skipping stages is illegal", func(t *testing.T) {
		assert.False(t, StatusUploaded.CanTransitionTo(StatusReady))
		assert.False(t, StatusParsing.CanTransitionTo(StatusEmbedding))
		assert.False(t, StatusUploading.CanTransitionTo(StatusParsing))
	})
}

func TestParseJobStatus(t *testing.T) {
	for _, s := range []string{"pending", "processing", "completed", "failed"} {
		got, err := ParseJobStatus(s)
		require.NoError(t, err)
		assert.Equal(t, s, got.String())
	}
	_, err := ParseJobStatus("running")
	assert.Error(t, err)

	assert.True(t, JobStatusPending.Active())
	assert.True(t, JobStatusProcessing.Active())
	assert.False(t, JobStatusCompleted.Active())
	assert.False(t, JobStatusFailed.Active())
}

func TestJobTypeForMediaType(t *testing.T) {
	tests := []struct {
		mediaType string
		want      JobType
	}{
		{"application/pdf", JobTypeParsePDF},
		{"text/markdown", JobTypeParseMarkdown},
		{"text/x-markdown", JobTypeParseMarkdown},
		{"text/plain", JobTypeParseText},
		{"application/zip", JobTypeParsePDF}, // conservative fallback
		{"", JobTypeParsePDF},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, JobTypeForMediaType(tt.mediaType), tt.mediaType)
	}
}
