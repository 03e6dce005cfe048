package backend

import (
	"context"
	"hash/fnv"
	"math"

	"github.com/dshills/memctx-mcp/internal/corpus"
)

// DefaultLexicalDimension keeps the local approximation small enough to
// scan quickly without an index.
const DefaultLexicalDimension = 256

// Lexical is the mid-priority candidate: a local statistical
// approximation that projects token frequencies into a fixed number of
// hash buckets. Texts sharing vocabulary land in shared buckets, so
// cosine similarity over these vectors rewards lexical overlap. No
// network, no model files, deterministic.
type Lexical struct {
	dimension int
}

// NewLexical creates a lexical backend. dimension <= 0 selects the
// default.
func NewLexical(dimension int) *Lexical {
	if dimension <= 0 {
		dimension = DefaultLexicalDimension
	}
	return &Lexical{dimension: dimension}
}

func (l *Lexical) Name() string {
	return NameLexical
}

func (l *Lexical) Dimension() int {
	return l.dimension
}

// Generate builds a unit-length hashed bag-of-words vector. Token
// weights are dampened with log(1+tf) so a single repeated word cannot
// dominate the direction.
func (l *Lexical) Generate(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	tokens := corpus.Tokenize(text)

	freq := make(map[string]int, len(tokens))
	for _, tok := range tokens {
		freq[tok]++
	}

	vector := make([]float32, l.dimension)
	for tok, tf := range freq {
		h := fnv.New32a()
		_, _ = h.Write([]byte(tok))
		sum := h.Sum32()

		bucket := int(sum % uint32(l.dimension))
		weight := math.Log1p(float64(tf))

		// The high bit picks the sign so hash collisions partially
		// cancel instead of always accumulating.
		if sum&0x80000000 != 0 {
			vector[bucket] -= float32(weight)
		} else {
			vector[bucket] += float32(weight)
		}
	}

	// Texts with no usable tokens still need a deterministic non-zero
	// vector; reuse the hash synthesizer's expansion for them.
	if isAllZero(vector) {
		return synthesize(text, l.dimension), nil
	}

	return normalize(vector), nil
}

func isAllZero(v []float32) bool {
	for _, val := range v {
		if val != 0 {
			return false
		}
	}
	return true
}

func normalize(v []float32) []float32 {
	var sum float64
	for _, val := range v {
		sum += float64(val) * float64(val)
	}
	if sum == 0 {
		return v
	}
	norm := float32(math.Sqrt(sum))
	for i := range v {
		v[i] /= norm
	}
	return v
}
