package searcher

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strings"

	"github.com/dshills/memctx-mcp/internal/embedder"
	"github.com/dshills/memctx-mcp/internal/keyword"
	"github.com/dshills/memctx-mcp/internal/store"
	"github.com/dshills/memctx-mcp/internal/vectormath"
	"github.com/dshills/memctx-mcp/pkg/types"
)

const (
	// DefaultThreshold is the primary similarity cutoff.
	DefaultThreshold = 0.70

	// SecondaryThreshold is the fixed, lower cutoff for the single
	// retry when the primary threshold retains nothing. Not
	// user-configurable.
	SecondaryThreshold = 0.35

	// DefaultBatchSize is the number of embeddings scored between
	// cancellation checkpoints.
	DefaultBatchSize = 256

	// DefaultMaxResults bounds a search when the caller does not.
	DefaultMaxResults = 10
)

// Embedder is the slice of the embedding generator the engine needs.
type Embedder interface {
	Generate(ctx context.Context, text string) (*embedder.Result, error)
	Dimension() int
	Degraded() bool
}

// Options control one search.
type Options struct {
	Threshold  float64 // 0 selects DefaultThreshold
	MaxResults int     // 0 selects DefaultMaxResults

	// AllowInsufficientStats lets the keyword fallback rank even below
	// the minimum corpus vocabulary.
	AllowInsufficientStats bool
}

// Response is a ranked result set with its provenance.
type Response struct {
	Results []types.SearchResult

	// Method is "semantic" when vector similarity produced the ranking
	// and "keyword" when the BM25 fallback did.
	Method types.SearchMethod

	// Degraded is set when the session runs on hash embeddings.
	Degraded bool

	// Skipped counts stored embeddings whose dimension disagreed with
	// the committed dimension; they are never ranked.
	Skipped int
}

// Engine performs batched cosine-similarity search over the store.
type Engine struct {
	store     store.Store
	embedder  Embedder
	fallback  *keyword.Searcher
	batchSize int
}

// New creates a search engine. batchSize <= 0 selects the default.
func New(st store.Store, emb Embedder, fallback *keyword.Searcher, batchSize int) *Engine {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &Engine{
		store:     st,
		embedder:  emb,
		fallback:  fallback,
		batchSize: batchSize,
	}
}

// Search runs the two-stage vector scan and, when needed, the keyword
// fallback. Cancellation is checked before the backend call, between
// scan batches, and after each stage; an aborted search returns the
// context error with no partial results.
func (e *Engine) Search(ctx context.Context, query string, opts Options) (*Response, error) {
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("%w: empty query", types.ErrInvalidInput)
	}
	if opts.Threshold == 0 {
		opts.Threshold = DefaultThreshold
	}
	if opts.MaxResults <= 0 {
		opts.MaxResults = DefaultMaxResults
	}

	chunks, err := e.store.ListChunks(ctx)
	if err != nil {
		return nil, fmt.Errorf("load chunks: %w", err)
	}

	// A hash-only session has no meaningful vector geometry; go
	// straight to keyword ranking.
	if e.embedder.Degraded() {
		return e.keywordSearch(ctx, query, chunks, opts, true)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	queryEmbedding, err := e.embedder.Generate(ctx, query)
	if err != nil {
		return nil, err
	}
	if queryEmbedding.Degraded {
		return e.keywordSearch(ctx, query, chunks, opts, true)
	}

	scored, skipped, err := e.scanEmbeddings(ctx, queryEmbedding.Vector)
	if err != nil {
		return nil, err
	}

	retained := retainAbove(scored, opts.Threshold)
	if len(retained) == 0 && opts.Threshold <= 1.0 && SecondaryThreshold < opts.Threshold {
		// Single retry at the documented secondary cutoff. A caller
		// threshold above 1 can never match and gets no retry; see the
		// engine's contract tests.
		retained = retainAbove(scored, SecondaryThreshold)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if len(retained) == 0 {
		return e.keywordSearch(ctx, query, chunks, opts, false)
	}

	// Descending similarity, ties broken by chunk insertion order.
	sort.SliceStable(retained, func(a, b int) bool {
		if retained[a].score != retained[b].score {
			return retained[a].score > retained[b].score
		}
		return retained[a].order < retained[b].order
	})
	if len(retained) > opts.MaxResults {
		retained = retained[:opts.MaxResults]
	}

	byID := make(map[string]*types.Chunk, len(chunks))
	for i := range chunks {
		if _, ok := byID[chunks[i].ID]; !ok {
			byID[chunks[i].ID] = &chunks[i]
		}
	}

	results := make([]types.SearchResult, 0, len(retained))
	for _, c := range retained {
		result := types.SearchResult{
			ChunkID: c.chunkID,
			Rank:    len(results) + 1,
			Score:   c.score,
			Method:  types.MethodSemantic,
		}
		if chunk, ok := byID[c.chunkID]; ok {
			result.Content = chunk.Content
			result.SourcePath = chunk.SourcePath
			result.Type = chunk.Type
		}
		results = append(results, result)
	}

	return &Response{
		Results: results,
		Method:  types.MethodSemantic,
		Skipped: skipped,
	}, nil
}

// candidate is one scored embedding with its insertion order.
type candidate struct {
	chunkID string
	order   int
	score   float64
}

// scanEmbeddings scores every stored embedding against the query
// vector in fixed-size batches. Embeddings with a mismatched dimension
// are counted and skipped, never ranked.
func (e *Engine) scanEmbeddings(ctx context.Context, queryVector []float32) ([]candidate, int, error) {
	embeddings, err := e.store.ListEmbeddings(ctx)
	if err != nil {
		return nil, 0, fmt.Errorf("load embeddings: %w", err)
	}

	scored := make([]candidate, 0, len(embeddings))
	skipped := 0

	for start := 0; start < len(embeddings); start += e.batchSize {
		// Cooperative checkpoint between batches so a long scan cannot
		// starve cancellation.
		if err := ctx.Err(); err != nil {
			return nil, 0, err
		}

		end := start + e.batchSize
		if end > len(embeddings) {
			end = len(embeddings)
		}

		for i := start; i < end; i++ {
			emb := embeddings[i]
			if len(emb.Vector) != len(queryVector) {
				skipped++
				continue
			}
			scored = append(scored, candidate{
				chunkID: emb.ChunkID,
				order:   i,
				score:   vectormath.CosineSimilarity(queryVector, emb.Vector),
			})
		}
	}

	if skipped > 0 {
		log.Printf("vector scan skipped %d embeddings with mismatched dimension (%v)",
			skipped, types.ErrDimensionMismatch)
	}

	return scored, skipped, nil
}

func retainAbove(scored []candidate, threshold float64) []candidate {
	retained := make([]candidate, 0, len(scored))
	for _, c := range scored {
		if c.score >= threshold {
			retained = append(retained, c)
		}
	}
	return retained
}

// keywordSearch delegates to the BM25 fallback and tags the response
// method accordingly.
func (e *Engine) keywordSearch(ctx context.Context, query string, chunks []types.Chunk, opts Options, degraded bool) (*Response, error) {
	results, err := e.fallback.Search(ctx, query, chunks, keyword.Options{
		MaxResults:        opts.MaxResults,
		AllowInsufficient: opts.AllowInsufficientStats,
	})
	if err != nil {
		return nil, err
	}

	if degraded {
		for i := range results {
			results[i].Degraded = true
		}
	}

	return &Response{
		Results:  results,
		Method:   types.MethodKeyword,
		Degraded: degraded,
	}, nil
}
