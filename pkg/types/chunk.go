package types

import "errors"

// ChunkType categorizes the origin of an ingested chunk. The assembler
// maps each type to one of its weighted context sources.
type ChunkType string

const (
	ChunkCode         ChunkType = "code"
	ChunkConversation ChunkType = "conversation"
	ChunkNarrative    ChunkType = "narrative"
	ChunkMemory       ChunkType = "memory"
)

// Chunk represents an ingested unit of text with a stable identifier.
// Chunks are created by an external ingestion collaborator and are
// immutable once written; the retrieval engine only reads them.
type Chunk struct {
	ID         string            `json:"id"`
	Content    string            `json:"content"`
	SourcePath string            `json:"source_path,omitempty"`
	Type       ChunkType         `json:"type"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

// Validate checks that the chunk carries the fields the engine relies on.
func (c *Chunk) Validate() error {
	if c.ID == "" {
		return errors.New("chunk ID cannot be empty")
	}
	if c.Content == "" {
		return errors.New("chunk content cannot be empty")
	}
	return c.ValidateType()
}

// ValidateType checks if the chunk type is one of the known sources.
func (c *Chunk) ValidateType() error {
	switch c.Type {
	case ChunkCode, ChunkConversation, ChunkNarrative, ChunkMemory:
		return nil
	default:
		return errors.New("invalid chunk type")
	}
}

// Embedding represents a fixed-length vector for one chunk under the
// committed backend. Invariant: len(Vector) == Dimension and Dimension
// equals the dimension fixed by the registry at commit time.
type Embedding struct {
	ChunkID   string    `json:"id"`
	Vector    []float32 `json:"vector"`
	Backend   string    `json:"backend,omitempty"`
	Dimension int       `json:"dimension,omitempty"`
}
