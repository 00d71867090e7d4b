package domain

// RetrievedChunk is one ranked passage returned by a knowledge base query.
type RetrievedChunk struct {
	Text   string
	Source string
	Score  float32
}

// RetrievalResult holds the ranked chunks for a query plus the distinct
// source filenames in first-occurrence order.
type RetrievalResult struct {
	RelevantChunks  []RetrievedChunk
	SourceDocuments []string
}

// EmptyRetrievalResult returns a result with no chunks. Retrieval degrades to
// this on any provider or index failure instead of surfacing an error.
func EmptyRetrievalResult() *RetrievalResult {
	return &RetrievalResult{
		RelevantChunks:  []RetrievedChunk{},
		SourceDocuments: []string{},
	}
}

// UnknownSource is substituted when a vector match carries no source metadata.
const UnknownSource = "unknown"
