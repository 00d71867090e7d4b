package handlers

import (
	"context"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/supportlens/supportlens/internal/api"
	"github.com/supportlens/supportlens/internal/domain"
	"github.com/supportlens/supportlens/internal/service"
)

// MaxUploadBytes caps the size of an uploaded knowledge base document.
const MaxUploadBytes = 10 << 20

type KnowledgeBaseService interface {
	Ingest(ctx context.Context, input service.IngestInput) (*service.IngestResult, error)
	Retrieve(ctx context.Context, query string, topK int) *domain.RetrievalResult
	Delete(ctx context.Context, documentID string) error
	List(ctx context.Context) ([]*domain.Document, error)
	GetDownloadURL(ctx context.Context, documentID string) (string, error)
}

type KnowledgeBaseHandler struct {
	svc KnowledgeBaseService
}

func NewKnowledgeBaseHandler(svc KnowledgeBaseService) *KnowledgeBaseHandler {
	return &KnowledgeBaseHandler{svc: svc}
}

type UploadResponse struct {
	DocumentID string `json:"document_id"`
	Filename   string `json:"filename"`
	Status     string `json:"status"`
	ChunkCount int    `json:"chunk_count"`
}

type DocumentResponse struct {
	ID         string `json:"id"`
	Filename   string `json:"filename"`
	UploadedAt string `json:"uploaded_at"`
	ChunkCount int    `json:"chunk_count"`
	Status     string `json:"status"`
}

type RetrievedChunkResponse struct {
	Text   string  `json:"text"`
	Source string  `json:"source"`
	Score  float32 `json:"score"`
}

type SearchResponse struct {
	RelevantChunks  []RetrievedChunkResponse `json:"relevant_chunks"`
	SourceDocuments []string                 `json:"source_documents"`
}

type DownloadURLResponse struct {
	URL string `json:"url"`
}

func documentToResponse(d *domain.Document) *DocumentResponse {
	return &DocumentResponse{
		ID:         d.ID,
		Filename:   d.Filename,
		UploadedAt: d.UploadedAt.Format("2006-01-02T15:04:05Z"),
		ChunkCount: d.ChunkCount,
		Status:     string(d.Status),
	}
}

// Upload handles a multipart document upload and runs the full ingestion
// pipeline synchronously.
func (h *KnowledgeBaseHandler) Upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, MaxUploadBytes)
	if err := r.ParseMultipartForm(MaxUploadBytes); err != nil {
		api.Error(w, http.StatusRequestEntityTooLarge, "uploaded file too large")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		api.Error(w, http.StatusBadRequest, "file field is required")
		return
	}
	defer file.Close()

	content, err := io.ReadAll(file)
	if err != nil {
		api.Error(w, http.StatusBadRequest, "failed to read uploaded file")
		return
	}

	result, err := h.svc.Ingest(r.Context(), service.IngestInput{
		Content:  content,
		Filename: header.Filename,
	})
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusCreated, &UploadResponse{
		DocumentID: result.DocumentID,
		Filename:   result.Filename,
		Status:     string(result.Status),
		ChunkCount: result.ChunkCount,
	})
}

func (h *KnowledgeBaseHandler) List(w http.ResponseWriter, r *http.Request) {
	docs, err := h.svc.List(r.Context())
	if err != nil {
		api.HandleError(w, err)
		return
	}

	responses := make([]*DocumentResponse, 0, len(docs))
	for _, d := range docs {
		responses = append(responses, documentToResponse(d))
	}

	api.Success(w, http.StatusOK, responses)
}

// Search runs a similarity query against the knowledge base. Retrieval
// degrades to an empty result rather than failing, so this always returns 200.
func (h *KnowledgeBaseHandler) Search(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	if query == "" {
		api.Error(w, http.StatusBadRequest, "q parameter is required")
		return
	}

	topK := service.DefaultTopK
	if raw := r.URL.Query().Get("top_k"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			api.Error(w, http.StatusBadRequest, "top_k must be a positive integer")
			return
		}
		topK = parsed
	}

	result := h.svc.Retrieve(r.Context(), query, topK)

	chunks := make([]RetrievedChunkResponse, 0, len(result.RelevantChunks))
	for _, c := range result.RelevantChunks {
		chunks = append(chunks, RetrievedChunkResponse{
			Text:   c.Text,
			Source: c.Source,
			Score:  c.Score,
		})
	}

	api.Success(w, http.StatusOK, &SearchResponse{
		RelevantChunks:  chunks,
		SourceDocuments: result.SourceDocuments,
	})
}

func (h *KnowledgeBaseHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		api.Error(w, http.StatusBadRequest, "document id is required")
		return
	}

	if err := h.svc.Delete(r.Context(), id); err != nil {
		api.HandleError(w, err)
		return
	}

	api.JSON(w, http.StatusNoContent, nil)
}

func (h *KnowledgeBaseHandler) Download(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		api.Error(w, http.StatusBadRequest, "document id is required")
		return
	}

	url, err := h.svc.GetDownloadURL(r.Context(), id)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, &DownloadURLResponse{URL: url})
}
