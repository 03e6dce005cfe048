// Package vectormath provides the pure vector operations the retrieval
// engine is built on: cosine similarity, normalization, validation, and
// the little-endian float32 serialization used by the SQLite store.
package vectormath

import (
	"encoding/binary"
	"math"

	"github.com/dshills/memctx-mcp/pkg/types"
)

// CosineSimilarity computes the cosine similarity between two vectors.
// Returns 0 when lengths differ or either vector has zero magnitude.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}

	var dotProduct, normA, normB float64
	for i := range a {
		dotProduct += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	return dotProduct / (math.Sqrt(normA) * math.Sqrt(normB))
}

// Normalize returns a unit-length copy of v. Zero vectors are returned
// unchanged.
func Normalize(v []float32) []float32 {
	var sum float64
	for _, val := range v {
		sum += float64(val) * float64(val)
	}

	if sum == 0 {
		return v
	}

	norm := float32(math.Sqrt(sum))
	result := make([]float32, len(v))
	for i, val := range v {
		result[i] = val / norm
	}

	return result
}

// Validate checks that v has the expected dimension, contains only
// finite values, and is not all-zero. A vector failing any of these
// checks must never be persisted or ranked against.
func Validate(v []float32, dimension int) error {
	if len(v) != dimension {
		return types.ErrDimensionMismatch
	}

	nonZero := false
	for _, val := range v {
		f := float64(val)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return types.ErrZeroVectorRejected
		}
		if val != 0 {
			nonZero = true
		}
	}
	if !nonZero {
		return types.ErrZeroVectorRejected
	}

	return nil
}

// Serialize converts a float32 slice to a byte blob (little-endian).
func Serialize(vector []float32) []byte {
	blob := make([]byte, len(vector)*4)
	for i, v := range vector {
		binary.LittleEndian.PutUint32(blob[i*4:], math.Float32bits(v))
	}
	return blob
}

// Deserialize converts a byte blob back to a float32 slice.
func Deserialize(blob []byte) []float32 {
	vector := make([]float32, len(blob)/4)
	for i := range vector {
		bits := binary.LittleEndian.Uint32(blob[i*4:])
		vector[i] = math.Float32frombits(bits)
	}
	return vector
}
