// Package store persists chunks and their embeddings. The default
// implementation is a pair of append-only JSONL files; a SQLite-backed
// implementation with the same contract is available for deployments
// that prefer one compact file. Both assume a single writer; concurrent
// external writers are out of scope (last write wins).
package store

import (
	"context"
	"errors"

	"github.com/dshills/memctx-mcp/pkg/types"
)

// Backend selection for New.
const (
	BackendJSONL  = "jsonl"
	BackendSQLite = "sqlite"
)

// ErrNotFound reports a lookup for an id that was never appended.
var ErrNotFound = errors.New("record not found")

// Store persists chunks and embeddings in insertion order. Chunks are
// immutable once appended; the retrieval engine only reads them.
type Store interface {
	// AppendChunk persists a chunk. A missing ID is assigned a UUID and
	// written back to the chunk.
	AppendChunk(ctx context.Context, chunk *types.Chunk) error

	// GetChunk returns the chunk with the given id, or ErrNotFound.
	GetChunk(ctx context.Context, id string) (*types.Chunk, error)

	// ListChunks returns all chunks in insertion order.
	ListChunks(ctx context.Context) ([]types.Chunk, error)

	// AppendEmbedding persists an embedding keyed to a chunk id.
	AppendEmbedding(ctx context.Context, emb *types.Embedding) error

	// ListEmbeddings returns all embeddings in insertion order.
	ListEmbeddings(ctx context.Context) ([]types.Embedding, error)

	// Counts returns the number of stored chunks and embeddings.
	Counts(ctx context.Context) (chunks, embeddings int, err error)

	// Close releases file handles or the database connection.
	Close() error
}

// Config selects and locates a store.
type Config struct {
	Backend string // "jsonl" (default) or "sqlite"
	Dir     string // data directory
}

// New creates a store for the configured backend.
func New(cfg Config) (Store, error) {
	switch cfg.Backend {
	case "", BackendJSONL:
		return NewJSONL(cfg.Dir)
	case BackendSQLite:
		return NewSQLite(cfg.Dir)
	default:
		return nil, errors.New("unknown store backend: " + cfg.Backend)
	}
}
