// Package types provides shared type definitions for the MemContext MCP server.
//
// This package defines domain types used across multiple components of
// MemContext, including chunks, embeddings, search results, and the error
// taxonomy shared by the retrieval engine.
//
// # Core Types
//
// Chunk represents an ingested unit of text with a stable identifier:
//
//	chunk := &types.Chunk{
//	    ID:         "b9e2…",
//	    Content:    "decided to keep the FIFO eviction policy",
//	    SourcePath: "notes/2026-01-12.md",
//	    Type:       types.ChunkNarrative,
//	}
//
// SearchResult combines a chunk reference with relevance scoring and
// provenance (whether the score came from vector similarity or the
// keyword fallback ranker):
//
//	result := types.SearchResult{
//	    ChunkID: chunk.ID,
//	    Rank:    1,
//	    Score:   0.92,
//	    Method:  types.MethodSemantic,
//	}
//
// # Error Taxonomy
//
// Failure classes are package-level sentinel errors wrapped with %w so
// callers can classify with errors.Is:
//
//	if errors.Is(err, types.ErrCorpusStatsInsufficient) {
//	    // fallback ranking is untrustworthy, not broken
//	}
package types
