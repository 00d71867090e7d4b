package domain

import (
	"fmt"
	"time"
)

// DocumentStatus represents the indexing state of an uploaded document
type DocumentStatus string

const (
	DocumentStatusProcessing DocumentStatus = "processing"
	DocumentStatusIndexed    DocumentStatus = "indexed"
	DocumentStatusError      DocumentStatus = "error"
)

// Document is the metadata record for an uploaded knowledge base document.
// Its vectors are not referenced by a mapping table: the sanitized filename
// plus ChunkCount fully determine the vector-ID set, so both fields must stay
// accurate for deletion to cascade correctly.
type Document struct {
	ID         string
	Filename   string
	UploadedAt time.Time
	ChunkCount int
	Status     DocumentStatus
}

// SanitizeFilename maps a filename to the identifier-safe prefix used in
// vector IDs. Every character outside [A-Za-z0-9] becomes an underscore.
func SanitizeFilename(filename string) string {
	out := make([]byte, len(filename))
	for i := 0; i < len(filename); i++ {
		c := filename[i]
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
			out[i] = c
		default:
			out[i] = '_'
		}
	}
	return string(out)
}

// VectorID returns the vector-store ID for one chunk of a document.
func VectorID(filename string, chunkIndex int) string {
	return fmt.Sprintf("%s_chunk_%d", SanitizeFilename(filename), chunkIndex)
}

// VectorIDs reconstructs the full vector-ID set for a document. The result is
// byte-identical to the IDs generated at ingestion time for the same filename
// and chunk count.
func VectorIDs(filename string, chunkCount int) []string {
	if chunkCount <= 0 {
		return nil
	}
	ids := make([]string, chunkCount)
	for i := 0; i < chunkCount; i++ {
		ids[i] = VectorID(filename, i)
	}
	return ids
}

// ValidateDocument validates a Document instance
func ValidateDocument(d *Document) error {
	if d == nil {
		return fmt.Errorf("document cannot be nil")
	}
	if d.ID == "" {
		return fmt.Errorf("document ID is required")
	}
	if d.Filename == "" {
		return fmt.Errorf("document Filename is required")
	}
	if d.ChunkCount < 0 {
		return fmt.Errorf("document ChunkCount cannot be negative")
	}
	if !isValidDocumentStatus(d.Status) {
		return ErrInvalidDocumentStatus
	}
	return nil
}

func isValidDocumentStatus(s DocumentStatus) bool {
	switch s {
	case DocumentStatusProcessing, DocumentStatusIndexed, DocumentStatusError:
		return true
	}
	return false
}
