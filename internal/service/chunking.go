package service

import (
	"strings"
	"unicode"
)

// ChunkConfig controls how document text is split for embedding.
type ChunkConfig struct {
	// Size is the target chunk length in runes of normalized text.
	Size int
	// Overlap is how far each chunk reaches back into the previous one.
	// Must be smaller than Size or the split loop could not advance.
	Overlap int
}

// DefaultChunkConfig provides sane defaults for chunking.
func DefaultChunkConfig() ChunkConfig {
	return ChunkConfig{
		Size:    1000,
		Overlap: 200,
	}
}

// SplitText splits document text into overlapping chunks, preferring to cut
// at a sentence boundary when one falls past the midpoint of a chunk.
//
// Whitespace runs are collapsed to single spaces before splitting, so the
// original paragraph structure is not preserved. Empty or whitespace-only
// input yields no chunks. The output order follows rune position in the
// source text; a chunk's index in the returned slice is its chunk index.
func SplitText(text string, cfg ChunkConfig) []string {
	clean := strings.TrimSpace(normalizeWhitespace(text))
	if clean == "" {
		return nil
	}
	if cfg.Size <= 0 || cfg.Overlap < 0 || cfg.Overlap >= cfg.Size {
		cfg = DefaultChunkConfig()
	}

	runes := []rune(clean)
	chunks := make([]string, 0, 8)
	start := 0
	for start < len(runes) {
		end := start + cfg.Size
		if end >= len(runes) {
			end = len(runes)
		} else {
			// Look back for the nearest sentence break; only accept it
			// past the chunk midpoint so chunks never collapse too far.
			if bp := lastBreakpoint(runes, end); bp > start+cfg.Size/2 {
				end = bp + 1
			}
		}

		chunk := strings.TrimSpace(string(runes[start:end]))
		if chunk != "" {
			chunks = append(chunks, chunk)
		}

		if end >= len(runes) {
			break
		}

		nextStart := end - cfg.Overlap
		if nextStart <= start {
			nextStart = end
		}
		start = nextStart
	}

	return chunks
}

// normalizeWhitespace collapses every run of whitespace, newlines included,
// into a single space.
func normalizeWhitespace(text string) string {
	var b strings.Builder
	b.Grow(len(text))
	inSpace := false
	for _, r := range text {
		if unicode.IsSpace(r) {
			inSpace = true
			continue
		}
		if inSpace && b.Len() > 0 {
			b.WriteByte(' ')
		}
		inSpace = false
		b.WriteRune(r)
	}
	return b.String()
}

// lastBreakpoint returns the index of the last period or newline at or before
// end, or -1 when none exists.
func lastBreakpoint(runes []rune, end int) int {
	for i := end; i >= 0; i-- {
		if runes[i] == '.' || runes[i] == '\n' {
			return i
		}
	}
	return -1
}
