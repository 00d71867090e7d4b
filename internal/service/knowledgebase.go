package service

import (
	"context"
	"log"
	"sort"
	"strings"
	"time"

	"github.com/supportlens/supportlens/internal/domain"
	"github.com/supportlens/supportlens/internal/telemetry"
	"golang.org/x/sync/errgroup"
)

const (
	// KnowledgeBaseNamespace isolates knowledge base vectors from any other
	// vector data sharing the index.
	KnowledgeBaseNamespace = "sops"

	// DefaultTopK is the number of chunks retrieved when the caller does not
	// ask for a specific count.
	DefaultTopK = 5

	// upsertBatchSize caps how many vectors are written per index request.
	upsertBatchSize = 100

	// embedConcurrency caps concurrent embedding calls during ingestion to
	// respect provider rate limits.
	embedConcurrency = 4
)

// TextExtractor extracts plain text from uploaded document bytes.
type TextExtractor interface {
	ExtractText(ctx context.Context, content []byte, filename string) (string, error)
}

// EmbeddingClient defines the interface for generating embeddings
type EmbeddingClient interface {
	GenerateEmbedding(ctx context.Context, text string) ([]float32, error)
}

// VectorRecord is one embedded chunk as stored in the vector index.
type VectorRecord struct {
	ID         string
	Embedding  []float32
	Source     string
	Text       string
	ChunkIndex int
}

// VectorMatch is one ranked result from a vector index query.
type VectorMatch struct {
	ID     string
	Score  float32
	Source string
	Text   string
}

// VectorIndexRepository defines the vector store operations the engine needs.
type VectorIndexRepository interface {
	Upsert(ctx context.Context, namespace string, records []VectorRecord) error
	Query(ctx context.Context, namespace string, embedding []float32, topK int) ([]VectorMatch, error)
	DeleteMany(ctx context.Context, namespace string, ids []string) error
	ListIDs(ctx context.Context, namespace string) ([]string, error)
}

// DocumentRepositoryInterface defines the metadata store operations for documents.
type DocumentRepositoryInterface interface {
	Create(ctx context.Context, d *domain.Document) error
	GetByID(ctx context.Context, id string) (*domain.Document, error)
	List(ctx context.Context) ([]*domain.Document, error)
	Delete(ctx context.Context, id string) error
	UpdateStatus(ctx context.Context, id string, status domain.DocumentStatus) error
	ExistsWithPrefix(ctx context.Context, prefix string) (bool, error)
}

// ArchiveStore keeps the original uploaded bytes alongside the index.
type ArchiveStore interface {
	PutObject(ctx context.Context, key string, body []byte, contentType string) error
	DeleteObject(ctx context.Context, key string) error
	GenerateDownloadURL(ctx context.Context, key string) (string, error)
}

// KnowledgeBaseService orchestrates document ingestion, retrieval, and
// deletion across the vector index and the document metadata store. The two
// stores are linked only by the deterministic vector-ID convention, so the
// service is the single place where that convention is applied.
type KnowledgeBaseService struct {
	extractor TextExtractor
	embedder  EmbeddingClient
	vectors   VectorIndexRepository
	documents DocumentRepositoryInterface
	archive   ArchiveStore
	chunkCfg  ChunkConfig
	uuidGen   UUIDGenerator
}

// NewKnowledgeBaseService creates a new KnowledgeBaseService instance.
// archive may be nil when no object storage is configured.
func NewKnowledgeBaseService(
	extractor TextExtractor,
	embedder EmbeddingClient,
	vectors VectorIndexRepository,
	documents DocumentRepositoryInterface,
	archive ArchiveStore,
) *KnowledgeBaseService {
	return &KnowledgeBaseService{
		extractor: extractor,
		embedder:  embedder,
		vectors:   vectors,
		documents: documents,
		archive:   archive,
		chunkCfg:  DefaultChunkConfig(),
		uuidGen:   &DefaultUUIDGenerator{},
	}
}

// NewKnowledgeBaseServiceWithUUIDGen creates a KnowledgeBaseService with a
// custom UUID generator (for testing).
func NewKnowledgeBaseServiceWithUUIDGen(
	extractor TextExtractor,
	embedder EmbeddingClient,
	vectors VectorIndexRepository,
	documents DocumentRepositoryInterface,
	archive ArchiveStore,
	uuidGen UUIDGenerator,
) *KnowledgeBaseService {
	svc := NewKnowledgeBaseService(extractor, embedder, vectors, documents, archive)
	svc.uuidGen = uuidGen
	return svc
}

// IngestInput represents an uploaded document
type IngestInput struct {
	Content  []byte
	Filename string
}

// IngestResult summarizes a completed ingestion
type IngestResult struct {
	DocumentID string
	Filename   string
	Status     domain.DocumentStatus
	ChunkCount int
}

// Ingest extracts, chunks, embeds, and indexes a document, then writes its
// metadata record. Any failure before the metadata write aborts the whole
// ingestion; already-upserted vectors are rolled back best-effort so a failed
// upload does not leave unreferenced vectors behind.
func (s *KnowledgeBaseService) Ingest(ctx context.Context, input IngestInput) (*IngestResult, error) {
	ctx, span := telemetry.StartSpan(ctx, "KnowledgeBaseService.Ingest", telemetry.SpanAttributes{
		Filename:  input.Filename,
		Operation: "ingest",
	})
	defer span.End()

	if input.Filename == "" {
		return nil, domain.NewDomainError(domain.ErrCodeValidation, "filename is required")
	}

	prefix := domain.SanitizeFilename(input.Filename)
	exists, err := s.documents.ExistsWithPrefix(ctx, prefix)
	if err != nil {
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodeMetadataStore, "failed to check for existing document", err)
	}
	if exists {
		return nil, domain.ErrDuplicateDocument
	}

	text, err := s.extractor.ExtractText(ctx, input.Content, input.Filename)
	if err != nil {
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodeExtraction, "failed to extract document text", err)
	}

	// Zero chunks is not an error: a document with no extractable content is
	// valid but contributes nothing to retrieval.
	chunks := SplitText(text, s.chunkCfg)

	records, err := s.embedChunks(ctx, input.Filename, chunks)
	if err != nil {
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodeEmbeddingProvider, "failed to embed document chunks", err)
	}

	if err := s.upsertBatches(ctx, records); err != nil {
		return nil, err
	}

	if s.archive != nil {
		if err := s.archive.PutObject(ctx, archiveKey(prefix), input.Content, "application/octet-stream"); err != nil {
			log.Printf("knowledge base: failed to archive %s: %v", input.Filename, err)
		}
	}

	doc := &domain.Document{
		ID:         s.uuidGen.NewString(),
		Filename:   input.Filename,
		UploadedAt: time.Now().UTC(),
		ChunkCount: len(chunks),
		Status:     domain.DocumentStatusIndexed,
	}
	if err := s.documents.Create(ctx, doc); err != nil {
		// Vectors are already live at this point; the reconciliation sweep
		// picks them up as orphans.
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodeMetadataStore, "failed to write document metadata", err)
	}

	return &IngestResult{
		DocumentID: doc.ID,
		Filename:   doc.Filename,
		Status:     doc.Status,
		ChunkCount: doc.ChunkCount,
	}, nil
}

// embedChunks generates embeddings with bounded concurrency. Results are
// written by chunk index so vector-ID assignment never depends on completion
// order.
func (s *KnowledgeBaseService) embedChunks(ctx context.Context, filename string, chunks []string) ([]VectorRecord, error) {
	records := make([]VectorRecord, len(chunks))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(embedConcurrency)
	for i, chunk := range chunks {
		g.Go(func() error {
			embedding, err := s.embedder.GenerateEmbedding(gctx, chunk)
			if err != nil {
				return err
			}
			records[i] = VectorRecord{
				ID:         domain.VectorID(filename, i),
				Embedding:  embedding,
				Source:     filename,
				Text:       chunk,
				ChunkIndex: i,
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return records, nil
}

// upsertBatches writes vectors in index order, in bounded batches. On batch
// failure it deletes everything written so far, best-effort.
func (s *KnowledgeBaseService) upsertBatches(ctx context.Context, records []VectorRecord) error {
	for i := 0; i < len(records); i += upsertBatchSize {
		end := i + upsertBatchSize
		if end > len(records) {
			end = len(records)
		}
		if err := s.vectors.Upsert(ctx, KnowledgeBaseNamespace, records[i:end]); err != nil {
			s.rollbackUpserts(ctx, records[:end])
			return domain.NewDomainErrorWithCause(domain.ErrCodeVectorIndex, "failed to upsert vectors", err)
		}
	}
	return nil
}

func (s *KnowledgeBaseService) rollbackUpserts(ctx context.Context, records []VectorRecord) {
	if len(records) == 0 {
		return
	}
	ids := make([]string, len(records))
	for i, r := range records {
		ids[i] = r.ID
	}
	if err := s.vectors.DeleteMany(ctx, KnowledgeBaseNamespace, ids); err != nil {
		log.Printf("knowledge base: rollback of %d vectors failed: %v", len(ids), err)
	}
}

// Retrieve embeds the query and returns the topK most similar chunks with
// their deduplicated source list. It never returns an error: retrieval
// augments reply drafting and must not block it, so every failure degrades
// to an empty result.
func (s *KnowledgeBaseService) Retrieve(ctx context.Context, query string, topK int) *domain.RetrievalResult {
	ctx, span := telemetry.StartSpan(ctx, "KnowledgeBaseService.Retrieve", telemetry.SpanAttributes{
		Operation: "retrieve",
	})
	defer span.End()

	if topK <= 0 {
		topK = DefaultTopK
	}

	embedding, err := s.embedder.GenerateEmbedding(ctx, query)
	if err != nil {
		log.Printf("knowledge base: query embedding failed: %v", err)
		telemetry.CaptureError(ctx, err)
		return domain.EmptyRetrievalResult()
	}

	matches, err := s.vectors.Query(ctx, KnowledgeBaseNamespace, embedding, topK)
	if err != nil {
		log.Printf("knowledge base: vector query failed: %v", err)
		telemetry.CaptureError(ctx, err)
		return domain.EmptyRetrievalResult()
	}

	result := domain.EmptyRetrievalResult()
	seen := make(map[string]bool, len(matches))
	for _, m := range matches {
		source := m.Source
		if source == "" {
			source = domain.UnknownSource
		}
		result.RelevantChunks = append(result.RelevantChunks, domain.RetrievedChunk{
			Text:   m.Text,
			Source: source,
			Score:  m.Score,
		})
		if !seen[source] {
			seen[source] = true
			result.SourceDocuments = append(result.SourceDocuments, source)
		}
	}

	return result
}

// Delete removes a document's vectors and then its metadata record, in that
// order: a crash in between leaves a re-deletable metadata record rather than
// unreachable vectors.
func (s *KnowledgeBaseService) Delete(ctx context.Context, documentID string) error {
	ctx, span := telemetry.StartSpan(ctx, "KnowledgeBaseService.Delete", telemetry.SpanAttributes{
		DocumentID: documentID,
		Operation:  "delete",
	})
	defer span.End()

	doc, err := s.documents.GetByID(ctx, documentID)
	if err != nil {
		return err
	}

	ids := domain.VectorIDs(doc.Filename, doc.ChunkCount)
	if len(ids) > 0 {
		if err := s.vectors.DeleteMany(ctx, KnowledgeBaseNamespace, ids); err != nil {
			return domain.NewDomainErrorWithCause(domain.ErrCodeVectorIndex, "failed to delete vectors", err)
		}
	}

	if err := s.documents.Delete(ctx, documentID); err != nil {
		return domain.NewDomainErrorWithCause(domain.ErrCodeMetadataStore, "failed to delete document metadata", err)
	}

	if s.archive != nil {
		if err := s.archive.DeleteObject(ctx, archiveKey(domain.SanitizeFilename(doc.Filename))); err != nil {
			log.Printf("knowledge base: failed to delete archived copy of %s: %v", doc.Filename, err)
		}
	}

	return nil
}

// List returns all document metadata records, most recent upload first.
func (s *KnowledgeBaseService) List(ctx context.Context) ([]*domain.Document, error) {
	return s.documents.List(ctx)
}

// GetDownloadURL returns a presigned URL for the archived original document.
func (s *KnowledgeBaseService) GetDownloadURL(ctx context.Context, documentID string) (string, error) {
	if s.archive == nil {
		return "", domain.NewDomainError(domain.ErrCodeInternalError, "document archive not configured")
	}
	doc, err := s.documents.GetByID(ctx, documentID)
	if err != nil {
		return "", err
	}
	return s.archive.GenerateDownloadURL(ctx, archiveKey(domain.SanitizeFilename(doc.Filename)))
}

// ReconcileEntry describes one inconsistency between the metadata store and
// the vector index.
type ReconcileEntry struct {
	Prefix     string
	DocumentID string
	Filename   string
	Expected   int
	Actual     int
	Orphaned   bool
	Repaired   bool
}

// ReconcileReport is the outcome of a reconciliation sweep.
type ReconcileReport struct {
	CheckedDocuments int
	VectorCount      int
	Entries          []ReconcileEntry
}

// Reconcile compares every document's stored chunk count against the vectors
// actually present in the index. There is no transaction spanning the two
// stores, so drift is possible after partial failures; this sweep is the
// compensating step. With repair set, orphaned vector sets are pruned and
// drifted documents are marked with status error.
func (s *KnowledgeBaseService) Reconcile(ctx context.Context, repair bool) (*ReconcileReport, error) {
	docs, err := s.documents.List(ctx)
	if err != nil {
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodeMetadataStore, "failed to list documents", err)
	}

	ids, err := s.vectors.ListIDs(ctx, KnowledgeBaseNamespace)
	if err != nil {
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodeVectorIndex, "failed to list vector IDs", err)
	}

	byPrefix := make(map[string][]string)
	for _, id := range ids {
		byPrefix[vectorIDPrefix(id)] = append(byPrefix[vectorIDPrefix(id)], id)
	}

	report := &ReconcileReport{
		CheckedDocuments: len(docs),
		VectorCount:      len(ids),
	}

	claimed := make(map[string]bool, len(docs))
	for _, doc := range docs {
		prefix := domain.SanitizeFilename(doc.Filename)
		claimed[prefix] = true
		actual := len(byPrefix[prefix])
		if actual == doc.ChunkCount {
			continue
		}
		entry := ReconcileEntry{
			Prefix:     prefix,
			DocumentID: doc.ID,
			Filename:   doc.Filename,
			Expected:   doc.ChunkCount,
			Actual:     actual,
		}
		if repair {
			if err := s.documents.UpdateStatus(ctx, doc.ID, domain.DocumentStatusError); err != nil {
				return nil, domain.NewDomainErrorWithCause(domain.ErrCodeMetadataStore, "failed to flag drifted document", err)
			}
			entry.Repaired = true
		}
		report.Entries = append(report.Entries, entry)
	}

	var orphanPrefixes []string
	for prefix := range byPrefix {
		if !claimed[prefix] {
			orphanPrefixes = append(orphanPrefixes, prefix)
		}
	}
	sort.Strings(orphanPrefixes)

	for _, prefix := range orphanPrefixes {
		entry := ReconcileEntry{
			Prefix:   prefix,
			Actual:   len(byPrefix[prefix]),
			Orphaned: true,
		}
		if repair {
			if err := s.vectors.DeleteMany(ctx, KnowledgeBaseNamespace, byPrefix[prefix]); err != nil {
				return nil, domain.NewDomainErrorWithCause(domain.ErrCodeVectorIndex, "failed to prune orphaned vectors", err)
			}
			entry.Repaired = true
		}
		report.Entries = append(report.Entries, entry)
	}

	return report, nil
}

func archiveKey(prefix string) string {
	return "documents/" + prefix
}

// vectorIDPrefix strips the trailing "_chunk_<n>" from a vector ID.
func vectorIDPrefix(id string) string {
	if i := strings.LastIndex(id, "_chunk_"); i >= 0 {
		return id[:i]
	}
	return id
}
