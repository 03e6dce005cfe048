package types

// SearchMethod records which ranking path produced a result, so callers
// can distinguish semantic similarity from the keyword fallback.
type SearchMethod string

const (
	MethodSemantic SearchMethod = "semantic"
	MethodKeyword  SearchMethod = "keyword"
)

// SearchResult represents a single ranked chunk reference.
type SearchResult struct {
	ChunkID string `json:"chunk_id"`
	Rank    int    `json:"rank"` // Position in result set (1-based)

	// Score is cosine similarity for semantic results and the BM25
	// score for keyword results; the two are not comparable.
	Score  float64      `json:"score"`
	Method SearchMethod `json:"method"`

	Content    string    `json:"content"`
	SourcePath string    `json:"source_path,omitempty"`
	Type       ChunkType `json:"type"`

	// Degraded is set when the score was computed against a
	// hash-synthesized embedding rather than a real backend.
	Degraded bool `json:"degraded,omitempty"`
}

// Validate checks if the search result is internally consistent.
func (sr *SearchResult) Validate() error {
	if sr.ChunkID == "" {
		return ErrInvalidChunkID
	}
	if sr.Rank < 1 {
		return ErrInvalidRank
	}
	if sr.Method != MethodSemantic && sr.Method != MethodKeyword {
		return ErrUnknownMethod
	}
	if sr.Method == MethodSemantic && (sr.Score < -1 || sr.Score > 1) {
		return ErrInvalidScore
	}
	return nil
}
