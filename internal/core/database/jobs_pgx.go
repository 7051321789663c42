package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/okonkwo-dev/Ingesta/internal/core"
	"github.com/okonkwo-dev/Ingesta/internal/models"
)

const jobColumns = `
	id, document_id, user_id, job_type, queue_name, priority,
	max_attempts, retry_delay_seconds, job_config, input_params,
	status, progress_percent, progress_message, started_at, finished_at,
	created_at, updated_at
`

// CreateJob inserts one pending job. This runs in its own transaction and is
// never joined with document creation: a queue hiccup must not roll back a
// successful upload.
func (c *DatabaseClient) CreateJob(ctx context.Context, job *models.ProcessingJob) error {
	if job == nil {
		return errors.New("nil job")
	}
	params, err := json.Marshal(job.InputParams)
	if err != nil {
		return fmt.Errorf("marshal input params: %w", err)
	}

	const q = `
		INSERT INTO processing_jobs
			(id, document_id, user_id, job_type, queue_name, priority,
			 max_attempts, retry_delay_seconds, job_config, input_params,
			 status, progress_percent, progress_message, created_at, updated_at)
		VALUES
			($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, 0, '', now(), now())
		RETURNING created_at, updated_at
	`
	return c.db.QueryRowContext(ctx, q,
		job.ID, job.DocumentID, job.UserID, job.JobType, job.QueueName, job.Priority,
		job.MaxAttempts, job.RetryDelaySeconds, nullableRaw(job.JobConfig), params,
		job.Status.String(),
	).Scan(&job.CreatedAt, &job.UpdatedAt)
}

func (c *DatabaseClient) GetJobByID(ctx context.Context, id string) (*models.ProcessingJob, error) {
	const q = `SELECT ` + jobColumns + ` FROM processing_jobs WHERE id = $1`
	j, err := scanJob(c.db.QueryRowContext(ctx, q, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return j, nil
}

func (c *DatabaseClient) ListJobsByDocument(ctx context.Context, documentID string) ([]models.ProcessingJob, error) {
	const q = `
		SELECT ` + jobColumns + `
		FROM processing_jobs
		WHERE document_id = $1
		ORDER BY created_at DESC
	`
	rows, err := c.db.QueryContext(ctx, q, documentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.ProcessingJob
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *j)
	}
	return out, rows.Err()
}

// LatestActiveJob returns the newest job still marked processing for the
// document. Only that job is relevant for live progress display.
func (c *DatabaseClient) LatestActiveJob(ctx context.Context, documentID string) (*models.ProcessingJob, error) {
	const q = `
		SELECT ` + jobColumns + `
		FROM processing_jobs
		WHERE document_id = $1 AND status = 'processing'
		ORDER BY created_at DESC
		LIMIT 1
	`
	j, err := scanJob(c.db.QueryRowContext(ctx, q, documentID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return j, nil
}

// UpdateJobStatus is the worker-facing transition write. Start and finish
// timestamps follow the status: entering "processing" stamps started_at,
// reaching a terminal state stamps finished_at.
func (c *DatabaseClient) UpdateJobStatus(ctx context.Context, id string, status models.JobStatus) error {
	const q = `
		UPDATE processing_jobs
		SET status = $2,
		    started_at = CASE WHEN $2 = 'processing' AND started_at IS NULL THEN now() ELSE started_at END,
		    finished_at = CASE WHEN $2 IN ('completed', 'failed') THEN now() ELSE finished_at END,
		    updated_at = now()
		WHERE id = $1
	`
	res, err := c.db.ExecContext(ctx, q, id, status.String())
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", core.ErrJobNotFound, id)
	}
	return nil
}

func (c *DatabaseClient) UpdateJobProgress(ctx context.Context, id string, percent int, message string) error {
	if percent < 0 || percent > 100 {
		return fmt.Errorf("progress percent out of range: %d", percent)
	}
	const q = `
		UPDATE processing_jobs
		SET progress_percent = $2, progress_message = $3, updated_at = now()
		WHERE id = $1
	`
	res, err := c.db.ExecContext(ctx, q, id, percent, message)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", core.ErrJobNotFound, id)
	}
	return nil
}

func scanJob(r rowScanner) (*models.ProcessingJob, error) {
	var (
		j         models.ProcessingJob
		rawType   string
		rawStatus string
		jobConfig []byte
		params    []byte
		message   sql.NullString
	)
	err := r.Scan(
		&j.ID, &j.DocumentID, &j.UserID, &rawType, &j.QueueName, &j.Priority,
		&j.MaxAttempts, &j.RetryDelaySeconds, &jobConfig, &params,
		&rawStatus, &j.ProgressPercent, &message, &j.StartedAt, &j.FinishedAt,
		&j.CreatedAt, &j.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if j.JobType, err = models.ParseJobType(rawType); err != nil {
		return nil, fmt.Errorf("job %s: %w", j.ID, err)
	}
	if j.Status, err = models.ParseJobStatus(rawStatus); err != nil {
		return nil, fmt.Errorf("job %s: %w", j.ID, err)
	}
	if len(params) > 0 {
		if err := json.Unmarshal(params, &j.InputParams); err != nil {
			return nil, fmt.Errorf("job %s input params: %w", j.ID, err)
		}
	}
	j.JobConfig = json.RawMessage(jobConfig)
	j.ProgressMessage = message.String
	return &j, nil
}
