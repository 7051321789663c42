package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/okonkwo-dev/Ingesta/internal/core"
	"github.com/okonkwo-dev/Ingesta/internal/models"
)

const documentColumns = `
	id, user_id, file_name, media_type, content_hash, size_bytes,
	bucket, storage_path, storage_url, metadata, parse_config, chunk_config,
	status, error_message, deleted_at, created_at, updated_at
`

// CreateOrReuse creates the document, or resolves the upload against an
// existing row with the same (user_id, content_hash) inside one transaction.
// The partial unique index on live rows is the tie-breaker for concurrent
// uploads of identical content: the losing transaction retries once and
// resolves as a dedup hit instead of erroring.
func (c *DatabaseClient) CreateOrReuse(ctx context.Context, doc *models.Document) (*models.Document, core.DedupOutcome, error) {
	if doc == nil {
		return nil, "", errors.New("nil document")
	}

	for attempt := 0; ; attempt++ {
		got, outcome, err := c.createOrReuseOnce(ctx, doc)
		if err != nil && attempt == 0 && isUniqueViolation(err) {
			// Lost the insert race; the winner's row is now visible.
			continue
		}
		return got, outcome, err
	}
}

func (c *DatabaseClient) createOrReuseOnce(ctx context.Context, doc *models.Document) (*models.Document, core.DedupOutcome, error) {
	tx, err := c.db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return nil, "", fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	// Lock any prior upload of the same content, soft-deleted rows included.
	// Live rows sort first so a live match wins over a deleted one.
	const lookup = `
		SELECT ` + documentColumns + `
		FROM documents
		WHERE user_id = $1 AND content_hash = $2
		ORDER BY (deleted_at IS NULL) DESC, created_at DESC
		LIMIT 1
		FOR UPDATE
	`
	existing, err := scanDocument(tx.QueryRowContext(ctx, lookup, doc.UserID, doc.ContentHash))
	if err != nil && err != sql.ErrNoRows {
		return nil, "", fmt.Errorf("dedup lookup: %w", err)
	}

	if existing != nil {
		outcome := core.DedupExisting
		if existing.Deleted() {
			const restore = `
				UPDATE documents SET deleted_at = NULL, updated_at = now()
				WHERE id = $1
			`
			if _, err := tx.ExecContext(ctx, restore, existing.ID); err != nil {
				return nil, "", fmt.Errorf("restore document: %w", err)
			}
			existing.DeletedAt = nil
			outcome = core.DedupRestored
		}
		if err := tx.Commit(); err != nil {
			return nil, "", fmt.Errorf("commit: %w", err)
		}
		return existing, outcome, nil
	}

	metadata, err := marshalJSONB(doc.Metadata)
	if err != nil {
		return nil, "", fmt.Errorf("marshal metadata: %w", err)
	}

	const insert = `
		INSERT INTO documents
			(id, user_id, file_name, media_type, content_hash, size_bytes,
			 bucket, storage_path, storage_url, metadata, parse_config, chunk_config,
			 status, created_at, updated_at)
		VALUES
			($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, now(), now())
		RETURNING created_at, updated_at
	`
	err = tx.QueryRowContext(ctx, insert,
		doc.ID, doc.UserID, doc.FileName, doc.MediaType, doc.ContentHash, doc.SizeBytes,
		doc.Bucket, doc.StoragePath, doc.StorageURL, metadata,
		nullableRaw(doc.ParseConfig), nullableRaw(doc.ChunkConfig), doc.Status.String(),
	).Scan(&doc.CreatedAt, &doc.UpdatedAt)
	if err != nil {
		return nil, "", fmt.Errorf("insert document: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, "", fmt.Errorf("commit: %w", err)
	}
	return doc, core.DedupCreated, nil
}

// FindByContentHash looks up any prior upload of the same content, including
// soft-deleted rows, so the orchestrator can skip a redundant blob write.
func (c *DatabaseClient) FindByContentHash(ctx context.Context, userID, contentHash string) (*models.Document, error) {
	const q = `
		SELECT ` + documentColumns + `
		FROM documents
		WHERE user_id = $1 AND content_hash = $2
		ORDER BY (deleted_at IS NULL) DESC, created_at DESC
		LIMIT 1
	`
	d, err := scanDocument(c.db.QueryRowContext(ctx, q, userID, contentHash))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return d, nil
}

func (c *DatabaseClient) GetDocumentByID(ctx context.Context, id string, includeDeleted bool) (*models.Document, error) {
	q := `SELECT ` + documentColumns + ` FROM documents WHERE id = $1`
	if !includeDeleted {
		q += ` AND deleted_at IS NULL`
	}
	d, err := scanDocument(c.db.QueryRowContext(ctx, q, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return d, nil
}

// ListDocuments returns one page plus the total row count for the same
// filter. The count comes from a dedicated COUNT query, not from re-reading
// the full result set.
func (c *DatabaseClient) ListDocuments(ctx context.Context, filter core.DocumentFilter) ([]models.Document, int, error) {
	where := "deleted_at IS NULL"
	args := []any{}
	if filter.UserID != "" {
		args = append(args, filter.UserID)
		where += fmt.Sprintf(" AND user_id = $%d", len(args))
	}
	if filter.Status != "" {
		args = append(args, filter.Status.String())
		where += fmt.Sprintf(" AND status = $%d", len(args))
	}

	var total int
	if err := c.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM documents WHERE "+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count documents: %w", err)
	}

	q := `SELECT ` + documentColumns + ` FROM documents WHERE ` + where + ` ORDER BY created_at DESC`
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		q += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		q += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	rows, err := c.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []models.Document
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, *d)
	}
	return out, total, rows.Err()
}

// UpdateDocumentStatus moves the document to the next status after checking
// the transition table against the currently stored state.
func (c *DatabaseClient) UpdateDocumentStatus(ctx context.Context, id string, status models.DocumentStatus, errorMessage string) error {
	tx, err := c.db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var raw string
	err = tx.QueryRowContext(ctx, `SELECT status FROM documents WHERE id = $1 AND deleted_at IS NULL FOR UPDATE`, id).Scan(&raw)
	if err == sql.ErrNoRows {
		return fmt.Errorf("%w: %s", core.ErrDocumentNotFound, id)
	}
	if err != nil {
		return err
	}
	current, err := models.ParseDocumentStatus(raw)
	if err != nil {
		return fmt.Errorf("stored status for %s: %w", id, err)
	}
	if current != status && !current.CanTransitionTo(status) {
		return fmt.Errorf("illegal status transition %s -> %s for document %s", current, status, id)
	}

	const q = `
		UPDATE documents
		SET status = $2, error_message = $3, updated_at = now()
		WHERE id = $1
	`
	if _, err := tx.ExecContext(ctx, q, id, status.String(), errorMessage); err != nil {
		return err
	}
	return tx.Commit()
}

// UpdateDocumentMetadata merges patch into the stored jsonb metadata.
func (c *DatabaseClient) UpdateDocumentMetadata(ctx context.Context, id string, patch map[string]any) error {
	raw, err := marshalJSONB(patch)
	if err != nil {
		return fmt.Errorf("marshal metadata patch: %w", err)
	}
	const q = `
		UPDATE documents
		SET metadata = COALESCE(metadata, '{}'::jsonb) || $2::jsonb, updated_at = now()
		WHERE id = $1 AND deleted_at IS NULL
	`
	res, err := c.db.ExecContext(ctx, q, id, raw)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", core.ErrDocumentNotFound, id)
	}
	return nil
}

func (c *DatabaseClient) SoftDeleteDocument(ctx context.Context, id string) error {
	const q = `
		UPDATE documents SET deleted_at = now(), updated_at = now()
		WHERE id = $1 AND deleted_at IS NULL
	`
	res, err := c.db.ExecContext(ctx, q, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", core.ErrDocumentNotFound, id)
	}
	return nil
}

// HardDeleteDocument removes the row for good; chunks and jobs go with it
// through ON DELETE CASCADE. The caller is responsible for the backing blob.
func (c *DatabaseClient) HardDeleteDocument(ctx context.Context, id string) error {
	res, err := c.db.ExecContext(ctx, `DELETE FROM documents WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", core.ErrDocumentNotFound, id)
	}
	return nil
}

// rowScanner covers both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(r rowScanner) (*models.Document, error) {
	var (
		d           models.Document
		rawStatus   string
		metadata    []byte
		parseConfig []byte
		chunkConfig []byte
		errMsg      sql.NullString
	)
	err := r.Scan(
		&d.ID, &d.UserID, &d.FileName, &d.MediaType, &d.ContentHash, &d.SizeBytes,
		&d.Bucket, &d.StoragePath, &d.StorageURL, &metadata, &parseConfig, &chunkConfig,
		&rawStatus, &errMsg, &d.DeletedAt, &d.CreatedAt, &d.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if d.Status, err = models.ParseDocumentStatus(rawStatus); err != nil {
		return nil, fmt.Errorf("document %s: %w", d.ID, err)
	}
	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &d.Metadata); err != nil {
			return nil, fmt.Errorf("document %s metadata: %w", d.ID, err)
		}
	}
	d.ParseConfig = json.RawMessage(parseConfig)
	d.ChunkConfig = json.RawMessage(chunkConfig)
	d.ErrorMessage = errMsg.String
	return &d, nil
}

func marshalJSONB(m map[string]any) ([]byte, error) {
	if m == nil {
		m = map[string]any{}
	}
	return json.Marshal(m)
}

// nullableRaw maps an empty json.RawMessage to SQL NULL.
func nullableRaw(raw json.RawMessage) any {
	if len(raw) == 0 {
		return nil
	}
	return []byte(raw)
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
