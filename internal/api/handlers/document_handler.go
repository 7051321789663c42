package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	middleware "github.com/okonkwo-dev/Ingesta/internal/api/middlewares"
	"github.com/okonkwo-dev/Ingesta/internal/core"
	"github.com/okonkwo-dev/Ingesta/internal/models"
	"github.com/okonkwo-dev/Ingesta/internal/services"
)

const maxMultipartMemory = 32 << 20

type DocumentHandler struct {
	ingest *services.IngestService
	docs   *services.DocumentService
}

func NewDocumentHandler(ingest *services.IngestService, docs *services.DocumentService) *DocumentHandler {
	return &DocumentHandler{ingest: ingest, docs: docs}
}

// UploadDocument accepts a multipart upload and runs it through the
// ingestion orchestrator.
func (h *DocumentHandler) UploadDocument(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFrom(r.Context())
	if !ok {
		http.Error(w, "user_id not found in context", http.StatusUnauthorized)
		return
	}

	if err := r.ParseMultipartForm(maxMultipartMemory); err != nil {
		http.Error(w, "invalid multipart body", http.StatusBadRequest)
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		http.Error(w, "invalid file", http.StatusBadRequest)
		return
	}
	defer file.Close()

	result, err := h.ingest.Upload(r.Context(), userID, header.Filename, header.Header.Get("Content-Type"), file)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, result)
}

func (h *DocumentHandler) GetDocuments(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFrom(r.Context())
	if !ok {
		http.Error(w, "user_id not found in context", http.StatusUnauthorized)
		return
	}

	limit := queryInt(r, "limit", 20)
	offset := queryInt(r, "offset", 0)
	docs, total, err := h.docs.List(r.Context(), userID, r.URL.Query().Get("status"), limit, offset)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"documents": docs,
		"total":     total,
		"limit":     limit,
		"offset":    offset,
	})
}

// GetDocument returns the document record plus a short-lived download URL.
func (h *DocumentHandler) GetDocument(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFrom(r.Context())
	if !ok {
		http.Error(w, "user_id not found in context", http.StatusUnauthorized)
		return
	}
	docID := chi.URLParam(r, "id")

	doc, err := h.docs.Get(r.Context(), userID, docID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	url, err := h.docs.DownloadURL(r.Context(), userID, docID)
	if err != nil {
		log.Printf("DocumentHandler: signed url for %s failed: %v", docID, err)
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"document":     doc,
		"download_url": url,
	})
}

func (h *DocumentHandler) DeleteDocument(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFrom(r.Context())
	if !ok {
		http.Error(w, "user_id not found in context", http.StatusUnauthorized)
		return
	}

	docID := chi.URLParam(r, "id")
	if r.URL.Query().Get("hard") == "true" {
		// Hard delete also removes the backing blob and index entries, so
		// the content can never be restored by a later identical upload.
		if _, err := h.docs.Get(r.Context(), userID, docID); err != nil {
			writeDomainError(w, err)
			return
		}
		if err := h.docs.HardDelete(r.Context(), docID); err != nil {
			writeDomainError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
		return
	}

	if err := h.docs.Delete(r.Context(), userID, docID); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type reprocessRequest struct {
	JobTypes []string `json:"job_types"`
}

func (h *DocumentHandler) ReprocessDocument(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFrom(r.Context())
	if !ok {
		http.Error(w, "user_id not found in context", http.StatusUnauthorized)
		return
	}

	var req reprocessRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid body", http.StatusBadRequest)
			return
		}
	}
	types := make([]models.JobType, 0, len(req.JobTypes))
	for _, raw := range req.JobTypes {
		jt, err := models.ParseJobType(raw)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		types = append(types, jt)
	}

	jobs, err := h.ingest.Reprocess(r.Context(), userID, chi.URLParam(r, "id"), types)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{"jobs": jobs})
}

func (h *DocumentHandler) GetProgress(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFrom(r.Context())
	if !ok {
		http.Error(w, "user_id not found in context", http.StatusUnauthorized)
		return
	}

	progress, err := h.ingest.Progress(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, progress)
}

func (h *DocumentHandler) GetDocumentJobs(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFrom(r.Context())
	if !ok {
		http.Error(w, "user_id not found in context", http.StatusUnauthorized)
		return
	}

	jobs, err := h.docs.Jobs(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"jobs": jobs})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("DocumentHandler: encode response: %v", err)
	}
}

// writeDomainError maps the error taxonomy to HTTP statuses. Ownership
// failures answer 404 so callers cannot probe for other users' documents.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case core.IsOversize(err):
		http.Error(w, err.Error(), http.StatusRequestEntityTooLarge)
	case core.IsValidation(err):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, core.ErrDocumentNotFound), errors.Is(err, core.ErrNotOwner):
		http.Error(w, "document not found", http.StatusNotFound)
	case errors.Is(err, core.ErrDocumentBusy):
		http.Error(w, err.Error(), http.StatusConflict)
	default:
		log.Printf("DocumentHandler: internal error: %v", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

func queryInt(r *http.Request, key string, def int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return def
	}
	return n
}
