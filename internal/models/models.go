package models

import (
	"encoding/json"
	"time"
)

// User represents an authenticated user of the system.
type User struct {
	ID           string    `db:"id" json:"id"`
	FirstName    string    `db:"first_name" json:"first_name"`
	Email        string    `db:"email" json:"email"`
	PasswordHash string    `db:"password" json:"-"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// Document represents one user-uploaded document, identified by the SHA-256
// digest of its content. At most one live (non-soft-deleted) document exists
// per (user_id, content_hash) pair; a second upload of identical bytes by the
// same user resolves to the existing row instead of creating a duplicate.
type Document struct {
	ID          string         `db:"id" json:"id"`
	UserID      string         `db:"user_id" json:"user_id"`
	FileName    string         `db:"file_name" json:"file_name"`
	MediaType   string         `db:"media_type" json:"media_type"`
	ContentHash string         `db:"content_hash" json:"content_hash"`
	SizeBytes   int64          `db:"size_bytes" json:"size_bytes"`
	Bucket      string         `db:"bucket" json:"bucket"`
	StoragePath string         `db:"storage_path" json:"storage_path"`
	StorageURL  string         `db:"storage_url" json:"storage_url"`
	Metadata    map[string]any `db:"metadata" json:"metadata,omitempty"`

	// ParseConfig and ChunkConfig are opaque to the control plane; they are
	// snapshotted into job parameters and interpreted by the workers.
	ParseConfig json.RawMessage `db:"parse_config" json:"parse_config,omitempty"`
	ChunkConfig json.RawMessage `db:"chunk_config" json:"chunk_config,omitempty"`

	Status       DocumentStatus `db:"status" json:"status"`
	ErrorMessage string         `db:"error_message" json:"error_message,omitempty"`
	DeletedAt    *time.Time     `db:"deleted_at" json:"deleted_at,omitempty"`
	CreatedAt    time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time      `db:"updated_at" json:"updated_at"`
}

// Deleted reports whether the document carries a soft-delete marker.
func (d *Document) Deleted() bool {
	return d.DeletedAt != nil
}

// JobInputParams is the snapshot of document state a worker needs to run.
// Later changes to the document do not retroactively alter an existing job.
type JobInputParams struct {
	Bucket      string          `json:"bucket"`
	StoragePath string          `json:"storage_path"`
	MediaType   string          `json:"media_type"`
	ParseConfig json.RawMessage `json:"parse_config,omitempty"`
	ChunkConfig json.RawMessage `json:"chunk_config,omitempty"`
}

// ProcessingJob is one queued unit of asynchronous work against a document.
// The control plane creates jobs and reads them back; status, progress and
// the start/finish timestamps are owned by the external worker.
type ProcessingJob struct {
	ID                string          `db:"id" json:"id"`
	DocumentID        string          `db:"document_id" json:"document_id"`
	UserID            string          `db:"user_id" json:"user_id"`
	JobType           JobType         `db:"job_type" json:"job_type"`
	QueueName         string          `db:"queue_name" json:"queue_name"`
	Priority          int             `db:"priority" json:"priority"`
	MaxAttempts       int             `db:"max_attempts" json:"max_attempts"`
	RetryDelaySeconds int             `db:"retry_delay_seconds" json:"retry_delay_seconds"`
	JobConfig         json.RawMessage `db:"job_config" json:"job_config,omitempty"`
	InputParams       JobInputParams  `db:"input_params" json:"input_params"`
	Status            JobStatus       `db:"status" json:"status"`
	ProgressPercent   int             `db:"progress_percent" json:"progress_percent"`
	ProgressMessage   string          `db:"progress_message" json:"progress_message,omitempty"`
	StartedAt         *time.Time      `db:"started_at" json:"started_at,omitempty"`
	FinishedAt        *time.Time      `db:"finished_at" json:"finished_at,omitempty"`
	CreatedAt         time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time       `db:"updated_at" json:"updated_at"`
}

// DocumentChunk represents one text chunk from a document.
type DocumentChunk struct {
	ID         string    `db:"id" json:"id"`
	DocumentID string    `db:"document_id" json:"document_id"`
	Text       string    `db:"text" json:"text"`
	Embedding  []float32 `db:"embedding" json:"embedding"` // pgvector column
	Position   int       `db:"position" json:"position"`
	TokenCount int       `db:"token_count" json:"token_count"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}
