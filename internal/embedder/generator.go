package embedder

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/dshills/memctx-mcp/internal/backend"
	"github.com/dshills/memctx-mcp/internal/vectormath"
	"github.com/dshills/memctx-mcp/pkg/types"
)

// Result is a generated embedding with its provenance. Results are
// persisted whole in the embedding cache, so a hit reports the backend
// that actually produced the vector, not the committed one.
type Result struct {
	Vector  []float32 `json:"vector"`
	Backend string    `json:"backend"`

	// Degraded marks a hash-synthesized vector, or any vector produced
	// while the session itself runs on the hash backend.
	Degraded bool `json:"degraded,omitempty"`
}

// Generator produces validated embeddings at the committed dimension.
// The committed backend is tried first; on failure generation falls
// through the registry's remaining priority list, ending with the hash
// synthesizer, which cannot fail.
type Generator struct {
	committed backend.Backend
	chain     []backend.Backend
	dimension int
	degraded  bool
	cache     *Cache
	delay     time.Duration
}

// New creates a generator over an initialized registry. cache may be
// nil to disable caching.
func New(registry *backend.Registry, cache *Cache) (*Generator, error) {
	committed := registry.Committed()
	if committed == nil {
		return nil, fmt.Errorf("%w: registry has no committed backend", types.ErrBackendUnavailable)
	}

	dimension := committed.Dimension()

	return &Generator{
		committed: committed,
		chain:     buildChain(registry.Fallbacks(), committed, dimension),
		dimension: dimension,
		degraded:  registry.Degraded(),
		cache:     cache,
		delay:     retryDelay,
	}, nil
}

// buildChain turns the registry's remaining priority list into the
// generation fallback chain. Local candidates are re-instantiated at
// the committed dimension so every vector in the process agrees with
// it; candidates whose dimension cannot be adjusted or matched are
// skipped. The hash synthesizer terminates the chain so generation can
// always produce a vector.
func buildChain(fallbacks []backend.Backend, committed backend.Backend, dimension int) []backend.Backend {
	var chain []backend.Backend
	for _, candidate := range fallbacks {
		switch candidate.Name() {
		case backend.NameLexical:
			chain = append(chain, backend.NewLexical(dimension))
		case backend.NameHash:
			chain = append(chain, backend.NewHash(dimension))
		default:
			if candidate.Dimension() == dimension {
				chain = append(chain, candidate)
			}
		}
	}

	if committed.Name() != backend.NameHash {
		if len(chain) == 0 || chain[len(chain)-1].Name() != backend.NameHash {
			chain = append(chain, backend.NewHash(dimension))
		}
	}
	return chain
}

// Dimension returns the committed embedding dimension.
func (g *Generator) Dimension() int {
	return g.dimension
}

// Degraded reports whether the session runs on the hash synthesizer.
func (g *Generator) Degraded() bool {
	return g.degraded
}

// Generate embeds text. Empty or whitespace-only input is an explicit
// ErrInvalidInput. The returned vector always has the committed
// dimension and only finite, not-all-zero values.
func (g *Generator) Generate(ctx context.Context, text string) (*Result, error) {
	key := NormalizeText(text)
	if key == "" {
		return nil, fmt.Errorf("%w: empty text", types.ErrInvalidInput)
	}

	if g.cache != nil {
		if hit, ok := g.cache.Get(key); ok {
			return hit, nil
		}
	}

	result, err := g.generateUncached(ctx, key)
	if err != nil {
		return nil, err
	}

	if g.cache != nil {
		g.cache.Set(key, *result)
	}
	return result, nil
}

func (g *Generator) generateUncached(ctx context.Context, text string) (*Result, error) {
	attempt := func(b backend.Backend) ([]float32, error) {
		vector, err := retryOnce(ctx, g.delay, isTransient, func() ([]float32, error) {
			return b.Generate(ctx, text)
		})
		if err != nil {
			return nil, err
		}
		// A malformed vector counts as a backend failure, not a result.
		if err := vectormath.Validate(vector, g.dimension); err != nil {
			return nil, err
		}
		return vector, nil
	}

	vector, err := attempt(g.committed)
	if err == nil {
		return &Result{Vector: vector, Backend: g.committed.Name(), Degraded: g.degraded}, nil
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	log.Printf("backend %s generation failed: %v", g.committed.Name(), err)

	for _, fallback := range g.chain {
		vector, err = attempt(fallback)
		if err == nil {
			return &Result{
				Vector:   vector,
				Backend:  fallback.Name(),
				Degraded: fallback.Name() == backend.NameHash || g.degraded,
			}, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		log.Printf("fallback backend %s generation failed: %v", fallback.Name(), err)
	}

	// The hash synthesizer only fails on context cancellation, so this
	// is unreachable in practice when the chain is non-empty.
	return nil, fmt.Errorf("%w: all backends failed: %v", types.ErrBackendUnavailable, err)
}

func isTransient(err error) bool {
	return errors.Is(err, backend.ErrTransient)
}

// NormalizeText collapses runs of whitespace to single spaces and trims
// the ends. Normalized text is the embedding cache key, so two inputs
// differing only in whitespace share one cached vector.
func NormalizeText(text string) string {
	return strings.Join(strings.Fields(text), " ")
}
