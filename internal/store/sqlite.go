package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"path/filepath"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // pure-Go SQLite driver

	"github.com/dshills/memctx-mcp/internal/vectormath"
	"github.com/dshills/memctx-mcp/pkg/types"
)

const sqliteFileName = "memctx.db"

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS chunks (
	seq         INTEGER PRIMARY KEY AUTOINCREMENT,
	id          TEXT NOT NULL,
	content     TEXT NOT NULL,
	source_path TEXT NOT NULL DEFAULT '',
	chunk_type  TEXT NOT NULL,
	metadata    TEXT NOT NULL DEFAULT '{}'
);
CREATE INDEX IF NOT EXISTS idx_chunks_id ON chunks(id);

CREATE TABLE IF NOT EXISTS embeddings (
	seq       INTEGER PRIMARY KEY AUTOINCREMENT,
	chunk_id  TEXT NOT NULL,
	vector    BLOB NOT NULL,
	backend   TEXT NOT NULL DEFAULT '',
	dimension INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_embeddings_chunk_id ON embeddings(chunk_id);
`

// SQLite is the compact single-file store. Usage is still append-only;
// the relational layer only buys atomic writes and one file instead of
// many records.
type SQLite struct {
	db *sql.DB
}

// NewSQLite opens (creating if needed) the SQLite store in dir.
func NewSQLite(dir string) (*SQLite, error) {
	db, err := sql.Open("sqlite", filepath.Join(dir, sqliteFileName))
	if err != nil {
		return nil, fmt.Errorf("open sqlite store: %w", err)
	}

	// Single writer model; one connection avoids SQLITE_BUSY churn.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply store schema: %w", err)
	}

	return &SQLite{db: db}, nil
}

func (s *SQLite) AppendChunk(ctx context.Context, chunk *types.Chunk) error {
	if chunk.ID == "" {
		chunk.ID = uuid.NewString()
	}
	if err := chunk.Validate(); err != nil {
		return fmt.Errorf("%w: %v", types.ErrInvalidInput, err)
	}

	metadata := "{}"
	if len(chunk.Metadata) > 0 {
		data, err := json.Marshal(chunk.Metadata)
		if err != nil {
			return fmt.Errorf("marshal chunk metadata: %w", err)
		}
		metadata = string(data)
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO chunks (id, content, source_path, chunk_type, metadata) VALUES (?, ?, ?, ?, ?)`,
		chunk.ID, chunk.Content, chunk.SourcePath, string(chunk.Type), metadata)
	if err != nil {
		return fmt.Errorf("append chunk: %w", err)
	}
	return nil
}

func (s *SQLite) GetChunk(ctx context.Context, id string) (*types.Chunk, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, content, source_path, chunk_type, metadata FROM chunks WHERE id = ? ORDER BY seq DESC LIMIT 1`, id)

	chunk, err := scanChunk(row.Scan)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: chunk %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("get chunk: %w", err)
	}
	return chunk, nil
}

func (s *SQLite) ListChunks(ctx context.Context) ([]types.Chunk, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, content, source_path, chunk_type, metadata FROM chunks ORDER BY seq`)
	if err != nil {
		return nil, fmt.Errorf("list chunks: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var chunks []types.Chunk
	for rows.Next() {
		chunk, err := scanChunk(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan chunk: %w", err)
		}
		chunks = append(chunks, *chunk)
	}
	return chunks, rows.Err()
}

func (s *SQLite) AppendEmbedding(ctx context.Context, emb *types.Embedding) error {
	if emb.ChunkID == "" {
		return fmt.Errorf("%w: embedding without chunk id", types.ErrInvalidInput)
	}
	if len(emb.Vector) == 0 {
		return fmt.Errorf("%w: embedding without vector", types.ErrInvalidInput)
	}

	dimension := emb.Dimension
	if dimension == 0 {
		dimension = len(emb.Vector)
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO embeddings (chunk_id, vector, backend, dimension) VALUES (?, ?, ?, ?)`,
		emb.ChunkID, vectormath.Serialize(emb.Vector), emb.Backend, dimension)
	if err != nil {
		return fmt.Errorf("append embedding: %w", err)
	}
	return nil
}

func (s *SQLite) ListEmbeddings(ctx context.Context) ([]types.Embedding, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT chunk_id, vector, backend, dimension FROM embeddings ORDER BY seq`)
	if err != nil {
		return nil, fmt.Errorf("list embeddings: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var embeddings []types.Embedding
	for rows.Next() {
		var emb types.Embedding
		var blob []byte
		if err := rows.Scan(&emb.ChunkID, &blob, &emb.Backend, &emb.Dimension); err != nil {
			return nil, fmt.Errorf("scan embedding: %w", err)
		}
		emb.Vector = vectormath.Deserialize(blob)
		embeddings = append(embeddings, emb)
	}
	return embeddings, rows.Err()
}

func (s *SQLite) Counts(ctx context.Context) (int, int, error) {
	var chunks, embeddings int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM chunks`).Scan(&chunks); err != nil {
		return 0, 0, fmt.Errorf("count chunks: %w", err)
	}
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM embeddings`).Scan(&embeddings); err != nil {
		return 0, 0, fmt.Errorf("count embeddings: %w", err)
	}
	return chunks, embeddings, nil
}

func (s *SQLite) Close() error {
	return s.db.Close()
}

func scanChunk(scan func(dest ...interface{}) error) (*types.Chunk, error) {
	var chunk types.Chunk
	var chunkType, metadata string
	if err := scan(&chunk.ID, &chunk.Content, &chunk.SourcePath, &chunkType, &metadata); err != nil {
		return nil, err
	}
	chunk.Type = types.ChunkType(chunkType)
	if metadata != "" && metadata != "{}" {
		if err := json.Unmarshal([]byte(metadata), &chunk.Metadata); err != nil {
			return nil, fmt.Errorf("parse chunk metadata: %w", err)
		}
	}
	return &chunk, nil
}
