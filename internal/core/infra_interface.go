package core

import (
	"context"
	"io"
	"time"

	"github.com/okonkwo-dev/Ingesta/internal/models"
)

// DedupOutcome classifies what CreateOrReuse did with an upload.
type DedupOutcome string

const (
	DedupCreated  DedupOutcome = "created"
	DedupRestored DedupOutcome = "restored"
	DedupExisting DedupOutcome = "already_existed"
)

// DocumentFilter narrows List results. Zero values mean "no filter".
type DocumentFilter struct {
	UserID string
	Status models.DocumentStatus
	Limit  int
	Offset int
}

// DocumentRepository persists documents. Implementations must resolve the
// (user_id, content_hash) uniqueness race transactionally: two concurrent
// uploads of identical content by the same owner may not both create a row.
type DocumentRepository interface {
	// CreateOrReuse creates doc, or resolves it against an existing document
	// with the same owner and content hash (restoring a soft-deleted match).
	// The returned document is the authoritative row.
	CreateOrReuse(ctx context.Context, doc *models.Document) (*models.Document, DedupOutcome, error)

	// FindByContentHash looks up a document by owner and digest, including
	// soft-deleted rows. Returns (nil, nil) when no row matches.
	FindByContentHash(ctx context.Context, userID, contentHash string) (*models.Document, error)

	// GetDocumentByID returns (nil, nil) when no live row matches. includeDeleted
	// widens the lookup to soft-deleted rows.
	GetDocumentByID(ctx context.Context, id string, includeDeleted bool) (*models.Document, error)

	ListDocuments(ctx context.Context, filter DocumentFilter) ([]models.Document, int, error)
	UpdateDocumentStatus(ctx context.Context, id string, status models.DocumentStatus, errorMessage string) error
	UpdateDocumentMetadata(ctx context.Context, id string, patch map[string]any) error
	SoftDeleteDocument(ctx context.Context, id string) error
	HardDeleteDocument(ctx context.Context, id string) error
}

// JobRepository persists processing jobs. Create runs in its own transaction,
// never joined with document creation; status/progress writes come from the
// external worker, the control plane only reads them back.
type JobRepository interface {
	CreateJob(ctx context.Context, job *models.ProcessingJob) error
	GetJobByID(ctx context.Context, id string) (*models.ProcessingJob, error)
	ListJobsByDocument(ctx context.Context, documentID string) ([]models.ProcessingJob, error)

	// LatestActiveJob returns the most recent job in "processing" state for
	// the document, or (nil, nil) when none is running.
	LatestActiveJob(ctx context.Context, documentID string) (*models.ProcessingJob, error)

	UpdateJobStatus(ctx context.Context, id string, status models.JobStatus) error
	UpdateJobProgress(ctx context.Context, id string, percent int, message string) error
}

// UserRepository persists user accounts.
type UserRepository interface {
	CreateUser(ctx context.Context, user *models.User) error
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
}

// BlobStore defines interactions with S3 or any object storage.
// It's abstract so AWS can be swapped for MinIO, GCS, etc. easily.
type BlobStore interface {
	UploadFile(ctx context.Context, bucket, key string, data []byte, contentType string, metadata map[string]string) (url string, err error)
	GetFile(ctx context.Context, bucket, key string) ([]byte, error)
	GetObjectReader(ctx context.Context, bucket, key string) (io.ReadCloser, error)
	DeleteFile(ctx context.Context, bucket, key string) error
	SignedURL(ctx context.Context, bucket, key string, ttl time.Duration) (string, error)
}

// VectorIndex is the embedding store the workers write into. The control
// plane only purges entries when a document is hard-deleted; upsert and
// search exist for the worker and retrieval layers.
type VectorIndex interface {
	UpsertChunks(ctx context.Context, chunks []models.DocumentChunk) error
	SearchChunks(ctx context.Context, documentID string, queryVec []float32, limit int) ([]models.DocumentChunk, error)
	DeleteChunksByDocument(ctx context.Context, documentID string) error
}

// JobNotifier is the best-effort job-created side channel. Failures are the
// caller's to log; a notifier error never fails an upload.
type JobNotifier interface {
	NotifyJobCreated(ctx context.Context, job *models.ProcessingJob) error
}
