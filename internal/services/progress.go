package services

import (
	"time"

	"github.com/okonkwo-dev/Ingesta/internal/models"
)

// DocumentProgress is the human-facing view of how far along a document is.
// EstimatedSecondsLeft is nil whenever a trustworthy estimate cannot be
// derived; reporting zero would read as "done any moment now".
type DocumentProgress struct {
	Stage                models.DocumentStatus `json:"stage"`
	Percent              int                   `json:"percent"`
	Message              string                `json:"message"`
	EstimatedSecondsLeft *int64                `json:"estimated_seconds_left,omitempty"`
}

type statusBand struct {
	percent int
	message string
}

// progressBands maps each lifecycle status to its baseline percentage and
// user-facing message.
var progressBands = map[models.DocumentStatus]statusBand{
	models.StatusUploading: {5, "Uploading your document"},
	models.StatusUploaded:  {15, "Upload complete, waiting for processing"},
	models.StatusParsing:   {40, "Extracting text from your document"},
	models.StatusParsed:    {60, "Text extracted"},
	models.StatusChunking:  {65, "Splitting the document into sections"},
	models.StatusChunked:   {80, "Sections ready"},
	models.StatusEmbedding: {85, "Indexing your document for search"},
	models.StatusReady:     {100, "Your document is ready"},
	models.StatusFailed:    {0, "Processing failed"},
}

// jobBandWidth is how much of the overall percentage one live job's own
// progress contributes on top of the stage baseline.
const jobBandWidth = 20

// ComputeProgress blends the document's stage baseline with the live job's
// self-reported progress. The result never reaches 100 before the document
// itself is ready, even when the job reports 100% sub-progress.
func ComputeProgress(doc *models.Document, job *models.ProcessingJob, now time.Time) DocumentProgress {
	band := progressBands[doc.Status]
	out := DocumentProgress{
		Stage:   doc.Status,
		Percent: band.percent,
		Message: band.message,
	}

	if doc.Status == models.StatusReady || doc.Status == models.StatusFailed {
		return out
	}

	if job != nil && job.Status == models.JobStatusProcessing && job.ProgressPercent > 0 {
		adjusted := band.percent + job.ProgressPercent*jobBandWidth/100
		if adjusted > 99 {
			adjusted = 99
		}
		out.Percent = adjusted
		if job.ProgressMessage != "" {
			out.Message = job.ProgressMessage
		}
		out.EstimatedSecondsLeft = estimateRemaining(job, now)
	}

	if out.Percent > 99 {
		out.Percent = 99
	}
	return out
}

// estimateRemaining extrapolates total runtime from elapsed time and the
// job's own progress. No start timestamp or zero progress yields no estimate.
func estimateRemaining(job *models.ProcessingJob, now time.Time) *int64 {
	if job.StartedAt == nil || job.ProgressPercent <= 0 {
		return nil
	}
	elapsed := now.Sub(*job.StartedAt)
	if elapsed <= 0 {
		return nil
	}
	estimatedTotal := time.Duration(float64(elapsed) / (float64(job.ProgressPercent) / 100))
	remaining := estimatedTotal - elapsed
	if remaining < 0 {
		remaining = 0
	}
	secs := int64(remaining / time.Second)
	return &secs
}
