package backend

import (
	"context"
	"crypto/sha256"
)

// DefaultHashDimension is deliberately small; hash vectors carry no
// semantic signal and only exist so a fully offline process can still
// deduplicate and roughly bucket texts.
const DefaultHashDimension = 64

// Hash is the absolute last resort: a deterministic synthesizer that
// expands a SHA-256 digest into a vector. Two equal texts always map to
// the same vector; similarity between different texts is meaningless.
// A session running on this backend is flagged degraded and search
// falls back to keyword ranking.
type Hash struct {
	dimension int
}

// NewHash creates a hash synthesizer. dimension <= 0 selects the
// default.
func NewHash(dimension int) *Hash {
	if dimension <= 0 {
		dimension = DefaultHashDimension
	}
	return &Hash{dimension: dimension}
}

func (h *Hash) Name() string {
	return NameHash
}

func (h *Hash) Dimension() int {
	return h.dimension
}

// Generate cannot fail: it always returns a finite, non-zero vector.
func (h *Hash) Generate(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return synthesize(text, h.dimension), nil
}

// synthesize expands sha256(text), re-hashing with a counter byte until
// the requested dimension is filled. Values land in (0, 1]; the +1
// offset guarantees no element is ever exactly zero.
func synthesize(text string, dimension int) []float32 {
	vector := make([]float32, 0, dimension)

	var counter byte
	for len(vector) < dimension {
		digest := sha256.Sum256(append([]byte(text), counter))
		for _, b := range digest {
			if len(vector) == dimension {
				break
			}
			vector = append(vector, (float32(b)+1)/256.0)
		}
		counter++
	}

	return vector
}
