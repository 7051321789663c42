package services

import (
	"context"
	"fmt"
	"io"
	"log"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/okonkwo-dev/Ingesta/internal/core"
	"github.com/okonkwo-dev/Ingesta/internal/models"
)

// AuthorizationPolicy controls whether operations verify document ownership.
// It is an explicit constructor input so tests can relax it without touching
// the environment.
type AuthorizationPolicy struct {
	RequireOwnership bool
}

// UploadResult is what the caller learns about an upload. ExistingDocument
// is true on a dedup hit (including restoration of a soft-deleted row).
// JobPending is false when the initial job could not be created; the upload
// itself still succeeded and a job will be created later.
type UploadResult struct {
	Document         *models.Document  `json:"document"`
	Outcome          core.DedupOutcome `json:"outcome"`
	ExistingDocument bool              `json:"existing_document"`
	JobID            string            `json:"job_id,omitempty"`
	JobPending       bool              `json:"job_pending"`
}

// IngestService is the ingestion orchestrator: it validates and stores an
// upload, deduplicates it against prior uploads by the same owner, persists
// the document record, and creates the first processing job as a separate,
// best-effort step.
type IngestService struct {
	docs     core.DocumentRepository
	jobs     core.JobRepository
	blobs    core.BlobStore
	notifier core.JobNotifier
	policy   *UploadPolicy
	authz    AuthorizationPolicy
	queue    string
}

func NewIngestService(
	docs core.DocumentRepository,
	jobs core.JobRepository,
	blobs core.BlobStore,
	notifier core.JobNotifier,
	policy *UploadPolicy,
	authz AuthorizationPolicy,
	queue string,
) *IngestService {
	return &IngestService{
		docs: docs, jobs: jobs, blobs: blobs, notifier: notifier,
		policy: policy, authz: authz, queue: queue,
	}
}

// Upload drives one upload end to end: normalize and validate, hash the
// stream under the size guard, write the blob unless identical content is
// already stored, then create or resolve the document record. Job creation
// failure is logged and never fails the upload.
func (s *IngestService) Upload(ctx context.Context, userID, filename, declaredType string, body io.Reader) (*UploadResult, error) {
	filename = filepath.Base(filename) // strip any path components

	mediaType := NormalizeMediaType(filename, declaredType)
	if err := s.policy.ValidatePreflight(filename, mediaType); err != nil {
		return nil, err
	}

	readCtx := ctx
	if s.policy.ReadTimeout > 0 {
		var cancel context.CancelFunc
		readCtx, cancel = context.WithTimeout(ctx, s.policy.ReadTimeout)
		defer cancel()
	}
	upload, err := readAndHash(readCtx, body, s.policy.MaxSizeBytes)
	if err != nil {
		return nil, err
	}
	if err := s.policy.ValidateSize(upload.Size); err != nil {
		return nil, err
	}

	// Skip the blob write when the same content already exists for this
	// owner, live or restorable; the prior upload's object is still there.
	prior, err := s.docs.FindByContentHash(ctx, userID, upload.HexDigest)
	if err != nil {
		return nil, fmt.Errorf("dedup pre-check: %w", err)
	}

	fileID := uuid.NewString()
	doc := &models.Document{
		ID:          uuid.NewString(),
		UserID:      userID,
		FileName:    filename,
		MediaType:   mediaType,
		ContentHash: upload.HexDigest,
		SizeBytes:   upload.Size,
		Status:      models.StatusUploaded,
		Metadata: map[string]any{
			"original_filename": filename,
			"uploaded_at":       time.Now().UTC().Format(time.RFC3339),
			"file_id":           fileID,
		},
	}

	blobWritten := false
	if prior == nil {
		doc.Bucket = s.policy.Bucket
		doc.StoragePath = objectKey(userID, fileID, filename)
		url, err := s.blobs.UploadFile(ctx, doc.Bucket, doc.StoragePath, upload.Data, mediaType, map[string]string{
			"content-hash": upload.HexDigest,
			"owner":        userID,
		})
		if err != nil {
			return nil, fmt.Errorf("store upload: %w", err)
		}
		doc.StorageURL = url
		blobWritten = true
	} else {
		doc.Bucket = prior.Bucket
		doc.StoragePath = prior.StoragePath
		doc.StorageURL = prior.StorageURL
	}

	got, outcome, err := s.docs.CreateOrReuse(ctx, doc)
	if err != nil {
		return nil, fmt.Errorf("create document: %w", err)
	}

	// A concurrent identical upload can win the insert race after our blob
	// write; that blob is now redundant and disposable.
	if outcome != core.DedupCreated && blobWritten && got.StoragePath != doc.StoragePath {
		if err := s.blobs.DeleteFile(ctx, doc.Bucket, doc.StoragePath); err != nil {
			log.Printf("IngestService: could not delete redundant blob %s/%s: %v", doc.Bucket, doc.StoragePath, err)
		}
	}

	result := &UploadResult{
		Document:         got,
		Outcome:          outcome,
		ExistingDocument: outcome != core.DedupCreated,
	}

	if outcome == core.DedupCreated {
		job, err := s.createJob(ctx, got, models.JobTypeForMediaType(got.MediaType))
		if err != nil {
			// Deliberately recovered: the document is the user-visible
			// contract of "upload succeeded"; the job can be created later.
			log.Printf("IngestService: initial job creation failed for document %s: %v", got.ID, err)
		} else {
			result.JobID = job.ID
			result.JobPending = true
		}
	}

	return result, nil
}

// Reprocess resets a settled document back to uploaded and queues new jobs.
// Busy documents (uploading, parsing, chunking) are rejected with a
// state-conflict error and no job is created.
func (s *IngestService) Reprocess(ctx context.Context, userID, docID string, types []models.JobType) ([]models.ProcessingJob, error) {
	doc, err := s.ownedDocument(ctx, userID, docID)
	if err != nil {
		return nil, err
	}
	if doc.Status.Busy() {
		return nil, fmt.Errorf("%w: document %s is %s", core.ErrDocumentBusy, doc.ID, doc.Status)
	}

	if err := s.docs.UpdateDocumentStatus(ctx, doc.ID, models.StatusUploaded, ""); err != nil {
		return nil, fmt.Errorf("reset document status: %w", err)
	}
	doc.Status = models.StatusUploaded

	if len(types) == 0 {
		types = []models.JobType{models.JobTypeForMediaType(doc.MediaType)}
	}

	out := make([]models.ProcessingJob, 0, len(types))
	for _, jt := range types {
		job, err := s.createJob(ctx, doc, jt)
		if err != nil {
			return nil, fmt.Errorf("create %s job: %w", jt, err)
		}
		out = append(out, *job)
	}
	return out, nil
}

// Progress reports the human-facing stage, percentage, message and ETA for a
// document, blending in the most recent live job if one is running.
func (s *IngestService) Progress(ctx context.Context, userID, docID string) (*DocumentProgress, error) {
	doc, err := s.ownedDocument(ctx, userID, docID)
	if err != nil {
		return nil, err
	}
	job, err := s.jobs.LatestActiveJob(ctx, doc.ID)
	if err != nil {
		return nil, fmt.Errorf("load active job: %w", err)
	}
	p := ComputeProgress(doc, job, time.Now())
	return &p, nil
}

// createJob persists one pending job in its own transaction and fires the
// best-effort worker notification. Job parameters are a snapshot of the
// document's storage location and parse/chunk configuration at this moment.
func (s *IngestService) createJob(ctx context.Context, doc *models.Document, jobType models.JobType) (*models.ProcessingJob, error) {
	job := &models.ProcessingJob{
		ID:                uuid.NewString(),
		DocumentID:        doc.ID,
		UserID:            doc.UserID,
		JobType:           jobType,
		QueueName:         s.queue,
		Priority:          0,
		MaxAttempts:       3,
		RetryDelaySeconds: 30,
		InputParams: models.JobInputParams{
			Bucket:      doc.Bucket,
			StoragePath: doc.StoragePath,
			MediaType:   doc.MediaType,
			ParseConfig: doc.ParseConfig,
			ChunkConfig: doc.ChunkConfig,
		},
		Status: models.JobStatusPending,
	}
	if err := s.jobs.CreateJob(ctx, job); err != nil {
		return nil, err
	}
	s.notifyAsync(job)
	return job, nil
}

// notifyAsync publishes the job-created event without blocking the caller.
// A lost notification is harmless; workers poll the job table regardless.
func (s *IngestService) notifyAsync(job *models.ProcessingJob) {
	if s.notifier == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := s.notifier.NotifyJobCreated(ctx, job); err != nil {
			log.Printf("IngestService: job notification failed for %s: %v", job.ID, err)
		}
	}()
}

// ownedDocument loads a live document and verifies the caller owns it.
func (s *IngestService) ownedDocument(ctx context.Context, userID, docID string) (*models.Document, error) {
	doc, err := s.docs.GetDocumentByID(ctx, docID, false)
	if err != nil {
		return nil, fmt.Errorf("load document: %w", err)
	}
	if doc == nil {
		return nil, fmt.Errorf("%w: %s", core.ErrDocumentNotFound, docID)
	}
	if s.authz.RequireOwnership && doc.UserID != userID {
		return nil, fmt.Errorf("%w: document %s", core.ErrNotOwner, docID)
	}
	return doc, nil
}

// objectKey creates the stable, collision-free S3 key layout for an upload:
// users/{owner}/{yyyy}/{mm}/{dd}/{fileId}{ext}.
func objectKey(userID, fileID, filename string) string {
	now := time.Now().UTC()
	ext := filepath.Ext(filename)
	return fmt.Sprintf("users/%s/%04d/%02d/%02d/%s%s",
		userID, now.Year(), int(now.Month()), now.Day(), fileID, ext)
}
