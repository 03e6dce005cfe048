package keyword

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/dshills/memctx-mcp/internal/corpus"
	"github.com/dshills/memctx-mcp/pkg/types"
)

func testChunks() []types.Chunk {
	return []types.Chunk{
		{ID: "c1", Content: "apple pie recipe", Type: types.ChunkNarrative},
		{ID: "c2", Content: "car engine repair", Type: types.ChunkNarrative},
		{ID: "c3", Content: "baking a cake", Type: types.ChunkNarrative},
	}
}

func statsFor(chunks []types.Chunk) *corpus.Stats {
	stats := corpus.NewStats()
	for _, c := range chunks {
		stats.Update(c.Content)
	}
	return stats
}

func TestSearchRanksLexicalOverlapFirst(t *testing.T) {
	chunks := testChunks()
	s := NewSearcher(statsFor(chunks), 1)

	results, err := s.Search(context.Background(), "cake baking", chunks, Options{MaxResults: 10})
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(results) == 0 {
		t.Fatal("Search() returned no results")
	}
	if results[0].ChunkID != "c3" {
		t.Errorf("top result = %s, want c3", results[0].ChunkID)
	}
	if results[0].Method != types.MethodKeyword {
		t.Errorf("method = %s, want keyword", results[0].Method)
	}
	if results[0].Rank != 1 {
		t.Errorf("rank = %d, want 1", results[0].Rank)
	}
}

func TestSearchExcludesZeroScores(t *testing.T) {
	chunks := testChunks()
	s := NewSearcher(statsFor(chunks), 1)

	results, err := s.Search(context.Background(), "cake", chunks, Options{MaxResults: 10})
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	for _, r := range results {
		if r.ChunkID == "c2" {
			t.Error("chunk with no query terms was ranked")
		}
		if r.Score <= 0 {
			t.Errorf("result %s has non-positive score %v", r.ChunkID, r.Score)
		}
	}
}

func TestSearchSubstringBoost(t *testing.T) {
	chunks := []types.Chunk{
		{ID: "scattered", Content: "the cake needs baking soda and more baking time"},
		{ID: "literal", Content: "cake baking for beginners"},
	}
	stats := statsFor(chunks)
	s := NewSearcher(stats, 1)

	results, err := s.Search(context.Background(), "cake baking", chunks, Options{MaxResults: 10})
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if results[0].ChunkID != "literal" {
		t.Errorf("top result = %s, want literal substring match boosted first", results[0].ChunkID)
	}
}

func TestSearchInsufficientCorpus(t *testing.T) {
	chunks := testChunks()
	stats := statsFor(chunks) // vocabulary ~8 terms

	s := NewSearcher(stats, 100)
	_, err := s.Search(context.Background(), "cake baking", chunks, Options{MaxResults: 10})
	if !errors.Is(err, types.ErrCorpusStatsInsufficient) {
		t.Errorf("Search() error = %v, want ErrCorpusStatsInsufficient", err)
	}

	// Explicit override ranks anyway.
	results, err := s.Search(context.Background(), "cake baking", chunks, Options{
		MaxResults:        10,
		AllowInsufficient: true,
	})
	if err != nil {
		t.Fatalf("overridden Search() error = %v", err)
	}
	if len(results) == 0 {
		t.Error("overridden Search() returned no results")
	}
}

func TestSearchEmptyQuery(t *testing.T) {
	chunks := testChunks()
	s := NewSearcher(statsFor(chunks), 1)

	for _, q := range []string{"", "   ", "the a an"} {
		_, err := s.Search(context.Background(), q, chunks, Options{MaxResults: 10})
		if !errors.Is(err, types.ErrInvalidInput) {
			t.Errorf("Search(%q) error = %v, want ErrInvalidInput", q, err)
		}
	}
}

func TestSearchMaxResults(t *testing.T) {
	var chunks []types.Chunk
	stats := corpus.NewStats()
	for i := 0; i < 20; i++ {
		content := fmt.Sprintf("cake variation number %d with frosting", i)
		chunks = append(chunks, types.Chunk{ID: fmt.Sprintf("c%d", i), Content: content})
		stats.Update(content)
	}

	s := NewSearcher(stats, 1)
	results, err := s.Search(context.Background(), "cake frosting", chunks, Options{MaxResults: 5})
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(results) != 5 {
		t.Errorf("len(results) = %d, want 5", len(results))
	}
	for i, r := range results {
		if r.Rank != i+1 {
			t.Errorf("results[%d].Rank = %d, want %d", i, r.Rank, i+1)
		}
	}
}

func TestSearchTieBreakByInsertionOrder(t *testing.T) {
	chunks := []types.Chunk{
		{ID: "first", Content: "identical cake text"},
		{ID: "second", Content: "identical cake text"},
	}
	s := NewSearcher(statsFor(chunks), 1)

	results, err := s.Search(context.Background(), "cake", chunks, Options{MaxResults: 10})
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(results) != 2 || results[0].ChunkID != "first" {
		t.Errorf("tie not broken by insertion order: %+v", results)
	}
}
