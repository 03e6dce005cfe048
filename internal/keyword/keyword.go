// Package keyword provides BM25-style fallback ranking over the corpus
// statistics. It is the ranking path used when vectors are unavailable,
// insufficient, or the session is degraded to hash embeddings.
package keyword

import (
	"context"
	"math"
	"sort"
	"strings"

	"github.com/dshills/memctx-mcp/internal/corpus"
	"github.com/dshills/memctx-mcp/pkg/types"
)

// BM25 constants. Fixed, not user-configurable.
const (
	K1 = 1.2
	B  = 0.75

	// SubstringBoost multiplies the score of chunks containing the
	// query as a literal case-insensitive substring.
	SubstringBoost = 1.5
)

// Options control a fallback search.
type Options struct {
	MaxResults int

	// AllowInsufficient ranks even when the corpus vocabulary is below
	// the configured minimum. Callers opting in accept unreliable
	// statistics.
	AllowInsufficient bool
}

// Searcher ranks chunks with BM25 over shared corpus statistics.
type Searcher struct {
	stats         *corpus.Stats
	minVocabulary int
}

// NewSearcher creates a keyword searcher. minVocabulary <= 0 selects
// the corpus default.
func NewSearcher(stats *corpus.Stats, minVocabulary int) *Searcher {
	return &Searcher{stats: stats, minVocabulary: minVocabulary}
}

// Search ranks chunks against the query. Chunks scoring zero are
// excluded; remaining chunks are sorted by descending score with ties
// broken by chunk order. Returns ErrCorpusStatsInsufficient when the
// vocabulary is below minimum and the caller has not opted in.
func (s *Searcher) Search(ctx context.Context, query string, chunks []types.Chunk, opts Options) ([]types.SearchResult, error) {
	queryTokens := corpus.Tokenize(query)
	if len(queryTokens) == 0 {
		return nil, types.ErrInvalidInput
	}

	if !opts.AllowInsufficient {
		if err := s.stats.CheckSufficient(s.minVocabulary); err != nil {
			return nil, err
		}
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	queryLower := strings.ToLower(strings.TrimSpace(query))

	type scored struct {
		index int
		score float64
	}
	candidates := make([]scored, 0, len(chunks))

	for i, chunk := range chunks {
		score := s.scoreChunk(queryTokens, chunk.Content)
		if score == 0 {
			continue
		}
		if strings.Contains(strings.ToLower(chunk.Content), queryLower) {
			score *= SubstringBoost
		}
		candidates = append(candidates, scored{index: i, score: score})
	}

	sort.SliceStable(candidates, func(a, b int) bool {
		if candidates[a].score != candidates[b].score {
			return candidates[a].score > candidates[b].score
		}
		return candidates[a].index < candidates[b].index
	})

	if opts.MaxResults > 0 && len(candidates) > opts.MaxResults {
		candidates = candidates[:opts.MaxResults]
	}

	results := make([]types.SearchResult, len(candidates))
	for rank, c := range candidates {
		chunk := chunks[c.index]
		results[rank] = types.SearchResult{
			ChunkID:    chunk.ID,
			Rank:       rank + 1,
			Score:      c.score,
			Method:     types.MethodKeyword,
			Content:    chunk.Content,
			SourcePath: chunk.SourcePath,
			Type:       chunk.Type,
		}
	}
	return results, nil
}

// scoreChunk computes the BM25 score of one chunk's content against the
// query tokens.
func (s *Searcher) scoreChunk(queryTokens []string, content string) float64 {
	docTokens := corpus.Tokenize(content)
	if len(docTokens) == 0 {
		return 0
	}

	termFreq := make(map[string]int, len(docTokens))
	for _, tok := range docTokens {
		termFreq[tok]++
	}

	totalDocs := s.stats.TotalDocuments()
	avgDocLength := s.stats.AvgDocLength()
	if avgDocLength == 0 {
		avgDocLength = float64(len(docTokens))
	}
	docLength := float64(len(docTokens))

	var score float64
	for _, term := range queryTokens {
		tf := float64(termFreq[term])
		if tf == 0 {
			continue
		}

		df := float64(s.stats.DocFreq(term))
		idf := math.Log(1 + (float64(totalDocs)-df+0.5)/(df+0.5))

		score += idf * (tf * (K1 + 1)) / (tf + K1*(1-B+B*docLength/avgDocLength))
	}
	return score
}
