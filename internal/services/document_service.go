package services

import (
	"context"
	"fmt"
	"log"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/okonkwo-dev/Ingesta/internal/core"
	"github.com/okonkwo-dev/Ingesta/internal/models"
)

// DocumentService is the read/delete side of the document surface: detail,
// listing, signed download URLs, soft delete and the administrative hard
// delete that also removes the backing blob and index entries.
type DocumentService struct {
	docs      core.DocumentRepository
	jobs      core.JobRepository
	blobs     core.BlobStore
	vectors   core.VectorIndex
	authz     AuthorizationPolicy
	signedTTL time.Duration
}

func NewDocumentService(
	docs core.DocumentRepository,
	jobs core.JobRepository,
	blobs core.BlobStore,
	vectors core.VectorIndex,
	authz AuthorizationPolicy,
	signedTTL time.Duration,
) *DocumentService {
	return &DocumentService{
		docs: docs, jobs: jobs, blobs: blobs, vectors: vectors,
		authz: authz, signedTTL: signedTTL,
	}
}

func (s *DocumentService) Get(ctx context.Context, userID, docID string) (*models.Document, error) {
	return s.owned(ctx, userID, docID)
}

// List returns one ownership-scoped page of documents plus the total count
// for the same filter.
func (s *DocumentService) List(ctx context.Context, userID, status string, limit, offset int) ([]models.Document, int, error) {
	filter := core.DocumentFilter{UserID: userID, Limit: limit, Offset: offset}
	if status != "" {
		st, err := models.ParseDocumentStatus(status)
		if err != nil {
			return nil, 0, core.NewValidationError("status", "%v", err)
		}
		filter.Status = st
	}
	return s.docs.ListDocuments(ctx, filter)
}

// Jobs lists the processing history of a document, newest first.
func (s *DocumentService) Jobs(ctx context.Context, userID, docID string) ([]models.ProcessingJob, error) {
	doc, err := s.owned(ctx, userID, docID)
	if err != nil {
		return nil, err
	}
	return s.jobs.ListJobsByDocument(ctx, doc.ID)
}

// DownloadURL returns a short-lived signed URL for the document's blob.
func (s *DocumentService) DownloadURL(ctx context.Context, userID, docID string) (string, error) {
	doc, err := s.owned(ctx, userID, docID)
	if err != nil {
		return "", err
	}
	url, err := s.blobs.SignedURL(ctx, doc.Bucket, doc.StoragePath, s.signedTTL)
	if err != nil {
		return "", fmt.Errorf("sign download url: %w", err)
	}
	return url, nil
}

// Delete soft-deletes the document. The blob stays in place so a later
// upload of identical content can restore the record without re-uploading.
func (s *DocumentService) Delete(ctx context.Context, userID, docID string) error {
	doc, err := s.owned(ctx, userID, docID)
	if err != nil {
		return err
	}
	return s.docs.SoftDeleteDocument(ctx, doc.ID)
}

// HardDelete removes the document for good: blob, vector index entries and
// rows. This is an administrative action and takes no ownership check.
func (s *DocumentService) HardDelete(ctx context.Context, docID string) error {
	doc, err := s.docs.GetDocumentByID(ctx, docID, true)
	if err != nil {
		return fmt.Errorf("load document: %w", err)
	}
	if doc == nil {
		return fmt.Errorf("%w: %s", core.ErrDocumentNotFound, docID)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := s.blobs.DeleteFile(gctx, doc.Bucket, doc.StoragePath); err != nil {
			return fmt.Errorf("delete blob: %w", err)
		}
		return nil
	})
	if s.vectors != nil {
		g.Go(func() error {
			if err := s.vectors.DeleteChunksByDocument(gctx, doc.ID); err != nil {
				return fmt.Errorf("purge vector index: %w", err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	log.Printf("DocumentService: hard-deleted document %s (%s/%s)", doc.ID, doc.Bucket, doc.StoragePath)
	return s.docs.HardDeleteDocument(ctx, doc.ID)
}

func (s *DocumentService) owned(ctx context.Context, userID, docID string) (*models.Document, error) {
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
