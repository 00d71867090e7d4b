package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/supportlens/supportlens/internal/domain"
)

type MockTextExtractor struct {
	mock.Mock
}

func (m *MockTextExtractor) ExtractText(ctx context.Context, content []byte, filename string) (string, error) {
	args := m.Called(ctx, content, filename)
	return args.String(0), args.Error(1)
}

type MockEmbeddingClient struct {
	mock.Mock
}

func (m *MockEmbeddingClient) GenerateEmbedding(ctx context.Context, text string) ([]float32, error) {
	args := m.Called(ctx, text)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]float32), args.Error(1)
}

type MockVectorIndex struct {
	mock.Mock
}

func (m *MockVectorIndex) Upsert(ctx context.Context, namespace string, records []VectorRecord) error {
	args := m.Called(ctx, namespace, records)
	return args.Error(0)
}

func (m *MockVectorIndex) Query(ctx context.Context, namespace string, embedding []float32, topK int) ([]VectorMatch, error) {
	args := m.Called(ctx, namespace, embedding, topK)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]VectorMatch), args.Error(1)
}

func (m *MockVectorIndex) DeleteMany(ctx context.Context, namespace string, ids []string) error {
	args := m.Called(ctx, namespace, ids)
	return args.Error(0)
}

func (m *MockVectorIndex) ListIDs(ctx context.Context, namespace string) ([]string, error) {
	args := m.Called(ctx, namespace)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

type MockDocumentRepo struct {
	mock.Mock
}

func (m *MockDocumentRepo) Create(ctx context.Context, d *domain.Document) error {
	args := m.Called(ctx, d)
	return args.Error(0)
}

func (m *MockDocumentRepo) GetByID(ctx context.Context, id string) (*domain.Document, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Document), args.Error(1)
}

func (m *MockDocumentRepo) List(ctx context.Context) ([]*domain.Document, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Document), args.Error(1)
}

func (m *MockDocumentRepo) Delete(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockDocumentRepo) UpdateStatus(ctx context.Context, id string, status domain.DocumentStatus) error {
	args := m.Called(ctx, id, status)
	return args.Error(0)
}

func (m *MockDocumentRepo) ExistsWithPrefix(ctx context.Context, prefix string) (bool, error) {
	args := m.Called(ctx, prefix)
	return args.Bool(0), args.Error(1)
}

type MockArchiveStore struct {
	mock.Mock
}

func (m *MockArchiveStore) PutObject(ctx context.Context, key string, body []byte, contentType string) error {
	args := m.Called(ctx, key, body, contentType)
	return args.Error(0)
}

func (m *MockArchiveStore) DeleteObject(ctx context.Context, key string) error {
	args := m.Called(ctx, key)
	return args.Error(0)
}

func (m *MockArchiveStore) GenerateDownloadURL(ctx context.Context, key string) (string, error) {
	args := m.Called(ctx, key)
	return args.String(0), args.Error(1)
}

type stubUUIDGen struct {
	id string
}

func (g *stubUUIDGen) NewString() string {
	return g.id
}

type kbFixture struct {
	extractor *MockTextExtractor
	embedder  *MockEmbeddingClient
	vectors   *MockVectorIndex
	documents *MockDocumentRepo
	archive   *MockArchiveStore
	svc       *KnowledgeBaseService
}

func newKBFixture(t *testing.T) *kbFixture {
	t.Helper()
	f := &kbFixture{
		extractor: new(MockTextExtractor),
		embedder:  new(MockEmbeddingClient),
		vectors:   new(MockVectorIndex),
		documents: new(MockDocumentRepo),
		archive:   new(MockArchiveStore),
	}
	f.svc = NewKnowledgeBaseServiceWithUUIDGen(
		f.extractor, f.embedder, f.vectors, f.documents, f.archive,
		&stubUUIDGen{id: "doc-uuid-1"},
	)
	return f
}

func domainErrCode(t *testing.T, err error) string {
	t.Helper()
	var de *domain.DomainError
	require.ErrorAs(t, err, &de)
	return de.Code
}

func TestKnowledgeBase_Ingest_HappyPath(t *testing.T) {
	f := newKBFixture(t)
	ctx := context.Background()

	// 2500 characters with no sentence breaks split into exactly 3 chunks.
	text := strings.Repeat("a", 2500)
	content := []byte("raw pdf bytes")

	f.documents.On("ExistsWithPrefix", mock.Anything, "Guide_v1_pdf").Return(false, nil)
	f.extractor.On("ExtractText", mock.Anything, content, "Guide v1.pdf").Return(text, nil)
	f.embedder.On("GenerateEmbedding", mock.Anything, mock.AnythingOfType("string")).Return([]float32{0.1, 0.2}, nil)

	var upserted []VectorRecord
	f.vectors.On("Upsert", mock.Anything, KnowledgeBaseNamespace, mock.Anything).Run(func(args mock.Arguments) {
		upserted = args.Get(2).([]VectorRecord)
	}).Return(nil)

	f.archive.On("PutObject", mock.Anything, "documents/Guide_v1_pdf", content, "application/octet-stream").Return(nil)

	var created *domain.Document
	f.documents.On("Create", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		created = args.Get(1).(*domain.Document)
	}).Return(nil)

	result, err := f.svc.Ingest(ctx, IngestInput{Content: content, Filename: "Guide v1.pdf"})
	require.NoError(t, err)

	assert.Equal(t, "doc-uuid-1", result.DocumentID)
	assert.Equal(t, "Guide v1.pdf", result.Filename)
	assert.Equal(t, domain.DocumentStatusIndexed, result.Status)
	assert.Equal(t, 3, result.ChunkCount)

	require.Len(t, upserted, 3)
	assert.Equal(t, "Guide_v1_pdf_chunk_0", upserted[0].ID)
	assert.Equal(t, "Guide_v1_pdf_chunk_1", upserted[1].ID)
	assert.Equal(t, "Guide_v1_pdf_chunk_2", upserted[2].ID)
	for i, r := range upserted {
		assert.Equal(t, i, r.ChunkIndex)
		assert.Equal(t, "Guide v1.pdf", r.Source)
		assert.NotEmpty(t, r.Text)
		assert.NotEmpty(t, r.Embedding)
	}

	require.NotNil(t, created)
	assert.Equal(t, 3, created.ChunkCount)
	assert.Equal(t, domain.DocumentStatusIndexed, created.Status)
	f.archive.AssertExpectations(t)
}

func TestKnowledgeBase_Ingest_MissingFilename(t *testing.T) {
	f := newKBFixture(t)

	_, err := f.svc.Ingest(context.Background(), IngestInput{Content: []byte("x")})
	require.Error(t, err)
	assert.Equal(t, domain.ErrCodeValidation, domainErrCode(t, err))
}

func TestKnowledgeBase_Ingest_DuplicatePrefixRejected(t *testing.T) {
	f := newKBFixture(t)

	// "Guide v1.pdf" and "Guide_v1.pdf" sanitize to the same prefix.
	f.documents.On("ExistsWithPrefix", mock.Anything, "Guide_v1_pdf").Return(true, nil)

	_, err := f.svc.Ingest(context.Background(), IngestInput{Content: []byte("x"), Filename: "Guide_v1.pdf"})
	require.ErrorIs(t, err, domain.ErrDuplicateDocument)

	f.extractor.AssertNotCalled(t, "ExtractText", mock.Anything, mock.Anything, mock.Anything)
	f.vectors.AssertNotCalled(t, "Upsert", mock.Anything, mock.Anything, mock.Anything)
}

func TestKnowledgeBase_Ingest_ExtractionFailure(t *testing.T) {
	f := newKBFixture(t)

	f.documents.On("ExistsWithPrefix", mock.Anything, mock.Anything).Return(false, nil)
	f.extractor.On("ExtractText", mock.Anything, mock.Anything, mock.Anything).Return("", errors.New("corrupt file"))

	_, err := f.svc.Ingest(context.Background(), IngestInput{Content: []byte("x"), Filename: "broken.pdf"})
	require.Error(t, err)
	assert.Equal(t, domain.ErrCodeExtraction, domainErrCode(t, err))
	f.documents.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestKnowledgeBase_Ingest_EmbeddingFailure(t *testing.T) {
	f := newKBFixture(t)

	f.documents.On("ExistsWithPrefix", mock.Anything, mock.Anything).Return(false, nil)
	f.extractor.On("ExtractText", mock.Anything, mock.Anything, mock.Anything).Return("some document text", nil)
	f.embedder.On("GenerateEmbedding", mock.Anything, mock.Anything).Return(nil, errors.New("rate limited"))

	_, err := f.svc.Ingest(context.Background(), IngestInput{Content: []byte("x"), Filename: "doc.txt"})
	require.Error(t, err)
	assert.Equal(t, domain.ErrCodeEmbeddingProvider, domainErrCode(t, err))
	f.vectors.AssertNotCalled(t, "Upsert", mock.Anything, mock.Anything, mock.Anything)
	f.documents.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestKnowledgeBase_Ingest_UpsertFailureRollsBack(t *testing.T) {
	f := newKBFixture(t)

	f.documents.On("ExistsWithPrefix", mock.Anything, mock.Anything).Return(false, nil)
	f.extractor.On("ExtractText", mock.Anything, mock.Anything, mock.Anything).Return("some document text", nil)
	f.embedder.On("GenerateEmbedding", mock.Anything, mock.Anything).Return([]float32{0.5}, nil)
	f.vectors.On("Upsert", mock.Anything, KnowledgeBaseNamespace, mock.Anything).Return(errors.New("index down"))
	f.vectors.On("DeleteMany", mock.Anything, KnowledgeBaseNamespace, []string{"doc_txt_chunk_0"}).Return(nil)

	_, err := f.svc.Ingest(context.Background(), IngestInput{Content: []byte("x"), Filename: "doc.txt"})
	require.Error(t, err)
	assert.Equal(t, domain.ErrCodeVectorIndex, domainErrCode(t, err))

	f.vectors.AssertCalled(t, "DeleteMany", mock.Anything, KnowledgeBaseNamespace, []string{"doc_txt_chunk_0"})
	f.documents.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestKnowledgeBase_Ingest_EmptyDocumentIndexesZeroChunks(t *testing.T) {
	f := newKBFixture(t)

	f.documents.On("ExistsWithPrefix", mock.Anything, mock.Anything).Return(false, nil)
	f.extractor.On("ExtractText", mock.Anything, mock.Anything, mock.Anything).Return("   ", nil)
	f.archive.On("PutObject", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)

	var created *domain.Document
	f.documents.On("Create", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		created = args.Get(1).(*domain.Document)
	}).Return(nil)

	result, err := f.svc.Ingest(context.Background(), IngestInput{Content: []byte("x"), Filename: "empty.pdf"})
	require.NoError(t, err)

	assert.Equal(t, 0, result.ChunkCount)
	assert.Equal(t, domain.DocumentStatusIndexed, result.Status)
	require.NotNil(t, created)
	assert.Equal(t, 0, created.ChunkCount)
	f.vectors.AssertNotCalled(t, "Upsert", mock.Anything, mock.Anything, mock.Anything)
	f.embedder.AssertNotCalled(t, "GenerateEmbedding", mock.Anything, mock.Anything)
}

func TestKnowledgeBase_Ingest_ArchiveFailureIsNonFatal(t *testing.T) {
	f := newKBFixture(t)

	f.documents.On("ExistsWithPrefix", mock.Anything, mock.Anything).Return(false, nil)
	f.extractor.On("ExtractText", mock.Anything, mock.Anything, mock.Anything).Return("short text", nil)
	f.embedder.On("GenerateEmbedding", mock.Anything, mock.Anything).Return([]float32{0.5}, nil)
	f.vectors.On("Upsert", mock.Anything, KnowledgeBaseNamespace, mock.Anything).Return(nil)
	f.archive.On("PutObject", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(errors.New("bucket gone"))
	f.documents.On("Create", mock.Anything, mock.Anything).Return(nil)

	result, err := f.svc.Ingest(context.Background(), IngestInput{Content: []byte("x"), Filename: "doc.txt"})
	require.NoError(t, err)
	assert.Equal(t, 1, result.ChunkCount)
}

func TestKnowledgeBase_Ingest_NilArchive(t *testing.T) {
	f := newKBFixture(t)
	f.svc = NewKnowledgeBaseServiceWithUUIDGen(
		f.extractor, f.embedder, f.vectors, f.documents, nil,
		&stubUUIDGen{id: "doc-uuid-2"},
	)

	f.documents.On("ExistsWithPrefix", mock.Anything, mock.Anything).Return(false, nil)
	f.extractor.On("ExtractText", mock.Anything, mock.Anything, mock.Anything).Return("short text", nil)
	f.embedder.On("GenerateEmbedding", mock.Anything, mock.Anything).Return([]float32{0.5}, nil)
	f.vectors.On("Upsert", mock.Anything, KnowledgeBaseNamespace, mock.Anything).Return(nil)
	f.documents.On("Create", mock.Anything, mock.Anything).Return(nil)

	_, err := f.svc.Ingest(context.Background(), IngestInput{Content: []byte("x"), Filename: "doc.txt"})
	require.NoError(t, err)
	f.archive.AssertNotCalled(t, "PutObject", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestKnowledgeBase_Ingest_MetadataWriteFailure(t *testing.T) {
	f := newKBFixture(t)

	f.documents.On("ExistsWithPrefix", mock.Anything, mock.Anything).Return(false, nil)
	f.extractor.On("ExtractText", mock.Anything, mock.Anything, mock.Anything).Return("short text", nil)
	f.embedder.On("GenerateEmbedding", mock.Anything, mock.Anything).Return([]float32{0.5}, nil)
	f.vectors.On("Upsert", mock.Anything, KnowledgeBaseNamespace, mock.Anything).Return(nil)
	f.archive.On("PutObject", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)
	f.documents.On("Create", mock.Anything, mock.Anything).Return(errors.New("connection reset"))

	_, err := f.svc.Ingest(context.Background(), IngestInput{Content: []byte("x"), Filename: "doc.txt"})
	require.Error(t, err)
	assert.Equal(t, domain.ErrCodeMetadataStore, domainErrCode(t, err))
}

func TestKnowledgeBase_Retrieve_ReturnsRankedChunks(t *testing.T) {
	f := newKBFixture(t)

	embedding := []float32{0.1, 0.2, 0.3}
	f.embedder.On("GenerateEmbedding", mock.Anything, "how do I reset my password").Return(embedding, nil)
	f.vectors.On("Query", mock.Anything, KnowledgeBaseNamespace, embedding, 3).Return([]VectorMatch{
		{ID: "Guide_pdf_chunk_2", Score: 0.93, Source: "Guide.pdf", Text: "reset via settings"},
		{ID: "Guide_pdf_chunk_0", Score: 0.81, Source: "Guide.pdf", Text: "account basics"},
		{ID: "FAQ_md_chunk_1", Score: 0.75, Source: "FAQ.md", Text: "common questions"},
	}, nil)

	result := f.svc.Retrieve(context.Background(), "how do I reset my password", 3)

	require.Len(t, result.RelevantChunks, 3)
	assert.Equal(t, "reset via settings", result.RelevantChunks[0].Text)
	assert.Equal(t, float32(0.93), result.RelevantChunks[0].Score)
	// Sources are deduplicated in first-seen order.
	assert.Equal(t, []string{"Guide.pdf", "FAQ.md"}, result.SourceDocuments)
}

func TestKnowledgeBase_Retrieve_DefaultsTopK(t *testing.T) {
	f := newKBFixture(t)

	f.embedder.On("GenerateEmbedding", mock.Anything, "q").Return([]float32{0.1}, nil)
	f.vectors.On("Query", mock.Anything, KnowledgeBaseNamespace, mock.Anything, DefaultTopK).Return([]VectorMatch{}, nil)

	result := f.svc.Retrieve(context.Background(), "q", 0)
	assert.Empty(t, result.RelevantChunks)
	f.vectors.AssertExpectations(t)
}

func TestKnowledgeBase_Retrieve_UnknownSourceSubstituted(t *testing.T) {
	f := newKBFixture(t)

	f.embedder.On("GenerateEmbedding", mock.Anything, mock.Anything).Return([]float32{0.1}, nil)
	f.vectors.On("Query", mock.Anything, KnowledgeBaseNamespace, mock.Anything, mock.Anything).Return([]VectorMatch{
		{ID: "orphan_chunk_0", Score: 0.5, Source: "", Text: "stray text"},
	}, nil)

	result := f.svc.Retrieve(context.Background(), "q", 1)

	require.Len(t, result.RelevantChunks, 1)
	assert.Equal(t, domain.UnknownSource, result.RelevantChunks[0].Source)
	assert.Equal(t, []string{domain.UnknownSource}, result.SourceDocuments)
}

func TestKnowledgeBase_Retrieve_EmbeddingFailureDegradesToEmpty(t *testing.T) {
	f := newKBFixture(t)

	f.embedder.On("GenerateEmbedding", mock.Anything, mock.Anything).Return(nil, errors.New("provider down"))

	result := f.svc.Retrieve(context.Background(), "q", 5)

	require.NotNil(t, result)
	assert.Empty(t, result.RelevantChunks)
	assert.Empty(t, result.SourceDocuments)
	f.vectors.AssertNotCalled(t, "Query", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestKnowledgeBase_Retrieve_QueryFailureDegradesToEmpty(t *testing.T) {
	f := newKBFixture(t)

	f.embedder.On("GenerateEmbedding", mock.Anything, mock.Anything).Return([]float32{0.1}, nil)
	f.vectors.On("Query", mock.Anything, KnowledgeBaseNamespace, mock.Anything, mock.Anything).Return(nil, errors.New("index down"))

	result := f.svc.Retrieve(context.Background(), "q", 5)

	require.NotNil(t, result)
	assert.Empty(t, result.RelevantChunks)
	assert.Empty(t, result.SourceDocuments)
}

func TestKnowledgeBase_Delete_CascadesVectorsFirst(t *testing.T) {
	f := newKBFixture(t)

	doc := &domain.Document{ID: "d-1", Filename: "Guide v1.pdf", ChunkCount: 3, Status: domain.DocumentStatusIndexed}
	f.documents.On("GetByID", mock.Anything, "d-1").Return(doc, nil)

	wantIDs := []string{"Guide_v1_pdf_chunk_0", "Guide_v1_pdf_chunk_1", "Guide_v1_pdf_chunk_2"}
	f.vectors.On("DeleteMany", mock.Anything, KnowledgeBaseNamespace, wantIDs).Return(nil)
	f.documents.On("Delete", mock.Anything, "d-1").Return(nil)
	f.archive.On("DeleteObject", mock.Anything, "documents/Guide_v1_pdf").Return(nil)

	err := f.svc.Delete(context.Background(), "d-1")
	require.NoError(t, err)

	f.vectors.AssertExpectations(t)
	f.documents.AssertExpectations(t)
	f.archive.AssertExpectations(t)
}

func TestKnowledgeBase_Delete_UnknownDocument(t *testing.T) {
	f := newKBFixture(t)

	f.documents.On("GetByID", mock.Anything, "missing").Return(nil, domain.ErrDocumentNotFound)

	err := f.svc.Delete(context.Background(), "missing")
	require.ErrorIs(t, err, domain.ErrDocumentNotFound)
	f.vectors.AssertNotCalled(t, "DeleteMany", mock.Anything, mock.Anything, mock.Anything)
}

func TestKnowledgeBase_Delete_VectorFailureKeepsMetadata(t *testing.T) {
	f := newKBFixture(t)

	doc := &domain.Document{ID: "d-1", Filename: "doc.txt", ChunkCount: 1, Status: domain.DocumentStatusIndexed}
	f.documents.On("GetByID", mock.Anything, "d-1").Return(doc, nil)
	f.vectors.On("DeleteMany", mock.Anything, KnowledgeBaseNamespace, mock.Anything).Return(errors.New("index down"))

	err := f.svc.Delete(context.Background(), "d-1")
	require.Error(t, err)
	assert.Equal(t, domain.ErrCodeVectorIndex, domainErrCode(t, err))
	// The metadata record survives so the delete can be retried.
	f.documents.AssertNotCalled(t, "Delete", mock.Anything, mock.Anything)
}

func TestKnowledgeBase_Delete_ZeroChunkDocumentSkipsVectorDelete(t *testing.T) {
	f := newKBFixture(t)

	doc := &domain.Document{ID: "d-1", Filename: "empty.pdf", ChunkCount: 0, Status: domain.DocumentStatusIndexed}
	f.documents.On("GetByID", mock.Anything, "d-1").Return(doc, nil)
	f.documents.On("Delete", mock.Anything, "d-1").Return(nil)
	f.archive.On("DeleteObject", mock.Anything, mock.Anything).Return(nil)

	err := f.svc.Delete(context.Background(), "d-1")
	require.NoError(t, err)
	f.vectors.AssertNotCalled(t, "DeleteMany", mock.Anything, mock.Anything, mock.Anything)
}

func TestKnowledgeBase_Delete_ArchiveFailureIsNonFatal(t *testing.T) {
	f := newKBFixture(t)

	doc := &domain.Document{ID: "d-1", Filename: "doc.txt", ChunkCount: 1, Status: domain.DocumentStatusIndexed}
	f.documents.On("GetByID", mock.Anything, "d-1").Return(doc, nil)
	f.vectors.On("DeleteMany", mock.Anything, KnowledgeBaseNamespace, mock.Anything).Return(nil)
	f.documents.On("Delete", mock.Anything, "d-1").Return(nil)
	f.archive.On("DeleteObject", mock.Anything, mock.Anything).Return(errors.New("bucket gone"))

	err := f.svc.Delete(context.Background(), "d-1")
	require.NoError(t, err)
}

func TestKnowledgeBase_GetDownloadURL(t *testing.T) {
	f := newKBFixture(t)

	doc := &domain.Document{ID: "d-1", Filename: "Guide.pdf", ChunkCount: 2, Status: domain.DocumentStatusIndexed}
	f.documents.On("GetByID", mock.Anything, "d-1").Return(doc, nil)
	f.archive.On("GenerateDownloadURL", mock.Anything, "documents/Guide_pdf").Return("https://s3/presigned", nil)

	url, err := f.svc.GetDownloadURL(context.Background(), "d-1")
	require.NoError(t, err)
	assert.Equal(t, "https://s3/presigned", url)
}

func TestKnowledgeBase_GetDownloadURL_NoArchive(t *testing.T) {
	f := newKBFixture(t)
	f.svc = NewKnowledgeBaseServiceWithUUIDGen(
		f.extractor, f.embedder, f.vectors, f.documents, nil,
		&stubUUIDGen{id: "x"},
	)

	_, err := f.svc.GetDownloadURL(context.Background(), "d-1")
	require.Error(t, err)
	assert.Equal(t, domain.ErrCodeInternalError, domainErrCode(t, err))
}

func TestKnowledgeBase_Reconcile_ConsistentStores(t *testing.T) {
	f := newKBFixture(t)

	f.documents.On("List", mock.Anything).Return([]*domain.Document{
		{ID: "d-1", Filename: "Guide.pdf", ChunkCount: 2, Status: domain.DocumentStatusIndexed},
	}, nil)
	f.vectors.On("ListIDs", mock.Anything, KnowledgeBaseNamespace).Return([]string{
		"Guide_pdf_chunk_0", "Guide_pdf_chunk_1",
	}, nil)

	report, err := f.svc.Reconcile(context.Background(), false)
	require.NoError(t, err)

	assert.Equal(t, 1, report.CheckedDocuments)
	assert.Equal(t, 2, report.VectorCount)
	assert.Empty(t, report.Entries)
}

func TestKnowledgeBase_Reconcile_DetectsChunkCountDrift(t *testing.T) {
	f := newKBFixture(t)

	f.documents.On("List", mock.Anything).Return([]*domain.Document{
		{ID: "d-1", Filename: "Guide.pdf", ChunkCount: 3, Status: domain.DocumentStatusIndexed},
	}, nil)
	f.vectors.On("ListIDs", mock.Anything, KnowledgeBaseNamespace).Return([]string{
		"Guide_pdf_chunk_0",
	}, nil)

	report, err := f.svc.Reconcile(context.Background(), false)
	require.NoError(t, err)

	require.Len(t, report.Entries, 1)
	entry := report.Entries[0]
	assert.Equal(t, "Guide_pdf", entry.Prefix)
	assert.Equal(t, "d-1", entry.DocumentID)
	assert.Equal(t, 3, entry.Expected)
	assert.Equal(t, 1, entry.Actual)
	assert.False(t, entry.Orphaned)
	assert.False(t, entry.Repaired)
	f.documents.AssertNotCalled(t, "UpdateStatus", mock.Anything, mock.Anything, mock.Anything)
}

func TestKnowledgeBase_Reconcile_DetectsOrphanedVectors(t *testing.T) {
	f := newKBFixture(t)

	f.documents.On("List", mock.Anything).Return([]*domain.Document{}, nil)
	f.vectors.On("ListIDs", mock.Anything, KnowledgeBaseNamespace).Return([]string{
		"Lost_pdf_chunk_0", "Lost_pdf_chunk_1",
	}, nil)

	report, err := f.svc.Reconcile(context.Background(), false)
	require.NoError(t, err)

	require.Len(t, report.Entries, 1)
	entry := report.Entries[0]
	assert.Equal(t, "Lost_pdf", entry.Prefix)
	assert.True(t, entry.Orphaned)
	assert.Equal(t, 2, entry.Actual)
	assert.False(t, entry.Repaired)
	f.vectors.AssertNotCalled(t, "DeleteMany", mock.Anything, mock.Anything, mock.Anything)
}

func TestKnowledgeBase_Reconcile_RepairFlagsDriftAndPrunesOrphans(t *testing.T) {
	f := newKBFixture(t)

	f.documents.On("List", mock.Anything).Return([]*domain.Document{
		{ID: "d-1", Filename: "Guide.pdf", ChunkCount: 2, Status: domain.DocumentStatusIndexed},
	}, nil)
	f.vectors.On("ListIDs", mock.Anything, KnowledgeBaseNamespace).Return([]string{
		"Guide_pdf_chunk_0",
		"Lost_pdf_chunk_0",
	}, nil)
	f.documents.On("UpdateStatus", mock.Anything, "d-1", domain.DocumentStatusError).Return(nil)
	f.vectors.On("DeleteMany", mock.Anything, KnowledgeBaseNamespace, []string{"Lost_pdf_chunk_0"}).Return(nil)

	report, err := f.svc.Reconcile(context.Background(), true)
	require.NoError(t, err)

	require.Len(t, report.Entries, 2)
	for _, entry := range report.Entries {
		assert.True(t, entry.Repaired)
	}
	f.documents.AssertExpectations(t)
	f.vectors.AssertExpectations(t)
}
