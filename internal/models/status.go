package models

import "fmt"

// DocumentStatus is the lifecycle state of a document inside the ingestion
// pipeline. Values coming from the outside (API payloads, DB rows) must go
// through ParseDocumentStatus so unknown strings are rejected at the boundary.
type DocumentStatus string

const (
	StatusUploading DocumentStatus = "uploading"
	StatusUploaded  DocumentStatus = "uploaded"
	StatusParsing   DocumentStatus = "parsing"
	StatusParsed    DocumentStatus = "parsed"
	StatusChunking  DocumentStatus = "chunking"
	StatusChunked   DocumentStatus = "chunked"
	StatusEmbedding DocumentStatus = "embedding"
	StatusReady     DocumentStatus = "ready"
	StatusFailed    DocumentStatus = "failed"
)

// documentTransitions is the total transition table for document statuses.
// Workers drive the forward path; "failed" is reachable from every working
// state, and reprocessing resets any non-busy state back to "uploaded".
var documentTransitions = map[DocumentStatus][]DocumentStatus{
	StatusUploading: {StatusUploaded, StatusFailed},
	StatusUploaded:  {StatusParsing, StatusFailed},
	StatusParsing:   {StatusParsed, StatusFailed},
	StatusParsed:    {StatusChunking, StatusUploaded, StatusFailed},
	StatusChunking:  {StatusChunked, StatusFailed},
	StatusChunked:   {StatusEmbedding, StatusUploaded, StatusFailed},
	StatusEmbedding: {StatusReady, StatusUploaded, StatusFailed},
	StatusReady:     {StatusUploaded, StatusFailed},
	StatusFailed:    {StatusUploaded},
}

// ParseDocumentStatus validates a raw status string.
func ParseDocumentStatus(s string) (DocumentStatus, error) {
	st := DocumentStatus(s)
	if _, ok := documentTransitions[st]; !ok {
		return "", fmt.Errorf("unknown document status %q", s)
	}
	return st, nil
}

// CanTransitionTo reports whether moving from s to next is a legal step.
func (s DocumentStatus) CanTransitionTo(next DocumentStatus) bool {
	for _, t := range documentTransitions[s] {
		if t == next {
			return true
		}
	}
	return false
}

// Busy reports whether the document is in a state where reprocessing must be
// rejected: an upload or a worker stage is still running against it.
func (s DocumentStatus) Busy() bool {
	return s == StatusUploading || s == StatusParsing || s == StatusChunking
}

func (s DocumentStatus) String() string { return string(s) }

// JobStatus is the lifecycle state of a processing job. The control plane
// only ever writes "pending"; all other transitions belong to the worker.
type JobStatus string

const (
	JobStatusPending    JobStatus = "pending"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
)

// ParseJobStatus validates a raw job status string.
func ParseJobStatus(s string) (JobStatus, error) {
	switch st := JobStatus(s); st {
	case JobStatusPending, JobStatusProcessing, JobStatusCompleted, JobStatusFailed:
		return st, nil
	}
	return "", fmt.Errorf("unknown job status %q", s)
}

// Active reports whether the job is still pending or running.
func (s JobStatus) Active() bool {
	return s == JobStatusPending || s == JobStatusProcessing
}

func (s JobStatus) String() string { return string(s) }

// JobType selects the worker that handles a job.
type JobType string

func (t JobType) String() string { return string(t) }

const (
	JobTypeParsePDF      JobType = "parse_pdf"
	JobTypeParseMarkdown JobType = "parse_markdown"
	JobTypeParseText     JobType = "parse_text"
	JobTypeChunk         JobType = "chunk"
	JobTypeEmbed         JobType = "embed"
)

// JobTypeForMediaType picks the parse job type for a document's media type.
// Unknown types fall back to the PDF parser, which is the most forgiving of
// the three for binary payloads.
func JobTypeForMediaType(mediaType string) JobType {
	switch mediaType {
	case "application/pdf":
		return JobTypeParsePDF
	case "text/markdown", "text/x-markdown":
		return JobTypeParseMarkdown
	case "text/plain":
		return JobTypeParseText
	default:
		return JobTypeParsePDF
	}
}

// ParseJobType validates a raw job type string.
func ParseJobType(s string) (JobType, error) {
	switch jt := JobType(s); jt {
	case JobTypeParsePDF, JobTypeParseMarkdown, JobTypeParseText, JobTypeChunk, JobTypeEmbed:
		return jt, nil
	}
	return "", fmt.Errorf("unknown job type %q", s)
}
