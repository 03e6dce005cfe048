package store

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"

	"github.com/dshills/memctx-mcp/pkg/types"
)

const (
	chunkFileName     = "chunks.jsonl"
	embeddingFileName = "embeddings.jsonl"

	// maxRecordBytes bounds a single JSONL record; embeddings at large
	// dimensions are the biggest records we write.
	maxRecordBytes = 4 * 1024 * 1024
)

// JSONL is the default store: two append-only line-delimited JSON
// files, one for chunks and one for embeddings.
type JSONL struct {
	mu sync.Mutex

	dir       string
	chunkFile *os.File
	embedFile *os.File
	chunkEnc  *json.Encoder
	embedEnc  *json.Encoder
}

// NewJSONL opens (creating if needed) the JSONL store in dir.
func NewJSONL(dir string) (*JSONL, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create store directory: %w", err)
	}

	chunkFile, err := os.OpenFile(filepath.Join(dir, chunkFileName), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("open chunk store: %w", err)
	}

	embedFile, err := os.OpenFile(filepath.Join(dir, embeddingFileName), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		_ = chunkFile.Close()
		return nil, fmt.Errorf("open embedding store: %w", err)
	}

	return &JSONL{
		dir:       dir,
		chunkFile: chunkFile,
		embedFile: embedFile,
		chunkEnc:  json.NewEncoder(chunkFile),
		embedEnc:  json.NewEncoder(embedFile),
	}, nil
}

func (s *JSONL) AppendChunk(ctx context.Context, chunk *types.Chunk) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if chunk.ID == "" {
		chunk.ID = uuid.NewString()
	}
	if err := chunk.Validate(); err != nil {
		return fmt.Errorf("%w: %v", types.ErrInvalidInput, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.chunkEnc.Encode(chunk); err != nil {
		return fmt.Errorf("append chunk: %w", err)
	}
	return nil
}

func (s *JSONL) GetChunk(ctx context.Context, id string) (*types.Chunk, error) {
	chunks, err := s.ListChunks(ctx)
	if err != nil {
		return nil, err
	}
	// Scan backwards so a re-appended id resolves to the latest record.
	for i := len(chunks) - 1; i >= 0; i-- {
		if chunks[i].ID == id {
			return &chunks[i], nil
		}
	}
	return nil, fmt.Errorf("%w: chunk %s", ErrNotFound, id)
}

func (s *JSONL) ListChunks(ctx context.Context) ([]types.Chunk, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var chunks []types.Chunk
	err := readJSONLines(ctx, filepath.Join(s.dir, chunkFileName), func(line []byte) error {
		var chunk types.Chunk
		if err := json.Unmarshal(line, &chunk); err != nil {
			return fmt.Errorf("parse chunk record: %w", err)
		}
		chunks = append(chunks, chunk)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return chunks, nil
}

func (s *JSONL) AppendEmbedding(ctx context.Context, emb *types.Embedding) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if emb.ChunkID == "" {
		return fmt.Errorf("%w: embedding without chunk id", types.ErrInvalidInput)
	}
	if len(emb.Vector) == 0 {
		return fmt.Errorf("%w: embedding without vector", types.ErrInvalidInput)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.embedEnc.Encode(emb); err != nil {
		return fmt.Errorf("append embedding: %w", err)
	}
	return nil
}

func (s *JSONL) ListEmbeddings(ctx context.Context) ([]types.Embedding, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var embeddings []types.Embedding
	err := readJSONLines(ctx, filepath.Join(s.dir, embeddingFileName), func(line []byte) error {
		var emb types.Embedding
		if err := json.Unmarshal(line, &emb); err != nil {
			return fmt.Errorf("parse embedding record: %w", err)
		}
		embeddings = append(embeddings, emb)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return embeddings, nil
}

func (s *JSONL) Counts(ctx context.Context) (int, int, error) {
	chunks, err := s.ListChunks(ctx)
	if err != nil {
		return 0, 0, err
	}
	embeddings, err := s.ListEmbeddings(ctx)
	if err != nil {
		return 0, 0, err
	}
	return len(chunks), len(embeddings), nil
}

func (s *JSONL) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	chunkErr := s.chunkFile.Close()
	embedErr := s.embedFile.Close()
	if chunkErr != nil {
		return chunkErr
	}
	return embedErr
}

// readJSONLines streams each non-empty line of path to fn. A missing
// file yields zero lines.
func readJSONLines(ctx context.Context, path string, fn func(line []byte) error) error {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("open %s: %w", filepath.Base(path), err)
	}
	defer func() {
		_ = f.Close()
	}()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), maxRecordBytes)
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		if err := fn(line); err != nil {
			return err
		}
	}
	return scanner.Err()
}
