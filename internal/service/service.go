// Package service wires the retrieval engine into one explicit
// SearchService instance. All shared state lives here and is passed by
// reference; nothing is a package-level singleton. The control flow for
// a query is analyze, cache lookup, vector search, keyword fallback,
// assembly, cache store, with cooperative cancellation checkpoints
// between stages.
package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"path/filepath"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/dshills/memctx-mcp/internal/analyzer"
	"github.com/dshills/memctx-mcp/internal/assembler"
	"github.com/dshills/memctx-mcp/internal/backend"
	"github.com/dshills/memctx-mcp/internal/config"
	"github.com/dshills/memctx-mcp/internal/corpus"
	"github.com/dshills/memctx-mcp/internal/ctxcache"
	"github.com/dshills/memctx-mcp/internal/embedder"
	"github.com/dshills/memctx-mcp/internal/keyword"
	"github.com/dshills/memctx-mcp/internal/searcher"
	"github.com/dshills/memctx-mcp/internal/store"
	"github.com/dshills/memctx-mcp/pkg/types"
)

const (
	statsFileName      = "corpus_stats.json"
	embedCacheFileName = "embed_cache.json"

	// statsSnapshotEvery is the number of ingests between corpus
	// statistics snapshots. Close always writes a final snapshot.
	statsSnapshotEvery = 10
)

// ErrNotInitialized reports a query before Initialize committed a
// backend.
var ErrNotInitialized = errors.New("service not initialized")

// Service is the dependency-injected retrieval engine.
type Service struct {
	mu sync.Mutex

	cfg       config.Config
	store     store.Store
	stats     *corpus.Stats
	statsPath string

	registry  *backend.Registry
	generator *embedder.Generator
	engine    *searcher.Engine
	results   *ctxcache.Cache

	ingestsSinceSnapshot int
}

// New creates the service and opens its store. Initialize must be
// called before queries.
func New(cfg config.Config) (*Service, error) {
	st, err := store.New(store.Config{Backend: cfg.StoreBackend, Dir: cfg.DataDir})
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	ttl, err := cfg.CacheTTL()
	if err != nil {
		_ = st.Close()
		return nil, err
	}
	sweep, err := cfg.CacheSweepInterval()
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	return &Service{
		cfg:       cfg,
		store:     st,
		stats:     corpus.NewStats(),
		statsPath: filepath.Join(cfg.DataDir, statsFileName),
		results:   ctxcache.New(ttl, sweep),
	}, nil
}

// Initialize probes and commits a backend, builds the generator and
// search engine, and loads or rebuilds the corpus statistics. It may be
// called once; the commitment is immutable until process restart.
func (s *Service) Initialize(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.engine != nil {
		return backend.ErrAlreadyInitialized
	}

	candidates, err := s.buildCandidates()
	if err != nil {
		return err
	}

	s.registry = backend.NewRegistry(candidates, s.cfg.Strict)
	committed, err := s.registry.Initialize(ctx)
	if err != nil {
		return err
	}

	embedCache := embedder.NewCache(
		s.cfg.EmbedCache.Capacity,
		filepath.Join(s.cfg.DataDir, embedCacheFileName),
		committed.Dimension(),
		s.cfg.EmbedCache.FlushEvery,
	)
	s.generator, err = embedder.New(s.registry, embedCache)
	if err != nil {
		return err
	}

	if err := s.loadStats(ctx); err != nil {
		return err
	}

	fallback := keyword.NewSearcher(s.stats, s.cfg.MinVocabulary)
	s.engine = searcher.New(s.store, s.generator, fallback, s.cfg.Search.BatchSize)
	return nil
}

// buildCandidates turns the configured priority list into backend
// instances. The remote backend is skipped with a log line when no
// endpoint is configured.
func (s *Service) buildCandidates() ([]backend.Backend, error) {
	var candidates []backend.Backend
	for _, name := range s.cfg.Backends {
		switch name {
		case backend.NameRemote:
			if s.cfg.Remote.Endpoint == "" {
				log.Printf("remote backend skipped: no endpoint configured")
				continue
			}
			remote, err := backend.NewRemote(backend.RemoteConfig{
				Endpoint: s.cfg.Remote.Endpoint,
				Model:    s.cfg.Remote.Model,
				APIKey:   s.cfg.Remote.APIKey,
			})
			if err != nil {
				return nil, err
			}
			candidates = append(candidates, remote)
		case backend.NameLexical:
			candidates = append(candidates, backend.NewLexical(0))
		case backend.NameHash:
			candidates = append(candidates, backend.NewHash(0))
		default:
			return nil, fmt.Errorf("unknown backend %q in priority list", name)
		}
	}
	if len(candidates) == 0 {
		return nil, fmt.Errorf("%w: no usable backend in priority list", types.ErrBackendUnavailable)
	}
	return candidates, nil
}

// loadStats restores the corpus statistics snapshot and rebuilds from
// the chunk store when the vocabulary invariant does not hold.
func (s *Service) loadStats(ctx context.Context) error {
	if err := s.stats.Load(s.statsPath); err != nil {
		log.Printf("corpus statistics load: %v (rebuilding)", err)
		s.stats.Reset()
	}

	if s.stats.CheckSufficient(s.cfg.MinVocabulary) == nil {
		return nil
	}

	chunks, err := s.store.ListChunks(ctx)
	if err != nil {
		return fmt.Errorf("rebuild corpus statistics: %w", err)
	}
	if len(chunks) == 0 {
		return nil
	}

	s.stats.Reset()
	for _, chunk := range chunks {
		s.stats.Update(chunk.Content)
	}
	if err := s.stats.Snapshot(s.statsPath); err != nil {
		log.Printf("corpus statistics snapshot: %v", err)
	}
	log.Printf("rebuilt corpus statistics from %d chunks (vocabulary %d)",
		len(chunks), s.stats.VocabularySize())
	return nil
}

func (s *Service) ready() (*searcher.Engine, *embedder.Generator, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.engine == nil {
		return nil, nil, ErrNotInitialized
	}
	return s.engine, s.generator, nil
}

// SearchOptions control one service-level search.
type SearchOptions struct {
	Threshold         float64
	MaxResults        int
	AllowInsufficient bool
}

// SearchOutput is a ranked result set with cache provenance.
type SearchOutput struct {
	Results  []types.SearchResult `json:"results"`
	Method   types.SearchMethod   `json:"method"`
	Degraded bool                 `json:"degraded"`
	Cached   bool                 `json:"cached"`
}

// Search answers a query, consulting the result cache first.
func (s *Service) Search(ctx context.Context, query string, opts SearchOptions) (*SearchOutput, error) {
	engine, _, err := s.ready()
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("%w: empty query", types.ErrInvalidInput)
	}
	if opts.Threshold == 0 {
		opts.Threshold = s.cfg.Search.Threshold
	}
	if opts.MaxResults <= 0 {
		opts.MaxResults = s.cfg.Search.MaxResults
	}

	key := ctxcache.KeyParams{
		Query:             query,
		Threshold:         opts.Threshold,
		MaxResults:        opts.MaxResults,
		AllowInsufficient: opts.AllowInsufficient,
	}.Hash()
	if cached, ok := s.results.Get(key); ok {
		if out, ok := cached.(*SearchOutput); ok {
			hit := cloneSearchOutput(out)
			hit.Cached = true
			return hit, nil
		}
	}

	resp, err := engine.Search(ctx, query, searcher.Options{
		Threshold:              opts.Threshold,
		MaxResults:             opts.MaxResults,
		AllowInsufficientStats: opts.AllowInsufficient,
	})
	if err != nil {
		return nil, err
	}

	out := &SearchOutput{
		Results:  resp.Results,
		Method:   resp.Method,
		Degraded: resp.Degraded,
	}
	// Copies cross the cache boundary in both directions so a caller
	// mutating its results cannot corrupt later hits.
	s.results.Set(key, cloneSearchOutput(out))
	return out, nil
}

func cloneSearchOutput(out *SearchOutput) *SearchOutput {
	dup := *out
	dup.Results = make([]types.SearchResult, len(out.Results))
	copy(dup.Results, out.Results)
	return &dup
}

// Remember ingests one chunk: embed, persist, index. Generation runs
// before anything is written, so a generation failure (or cancellation)
// leaves no chunk behind. A degraded vector is still stored so the
// chunk stays searchable by the hash session that wrote it.
func (s *Service) Remember(ctx context.Context, content, sourcePath string, chunkType types.ChunkType, metadata map[string]string) (*types.Chunk, error) {
	_, generator, err := s.ready()
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(content) == "" {
		return nil, fmt.Errorf("%w: empty content", types.ErrInvalidInput)
	}
	if chunkType == "" {
		chunkType = types.ChunkMemory
	}

	result, err := generator.Generate(ctx, content)
	if err != nil {
		return nil, err
	}

	chunk := &types.Chunk{
		Content:    content,
		SourcePath: sourcePath,
		Type:       chunkType,
		Metadata:   metadata,
	}
	if err := s.store.AppendChunk(ctx, chunk); err != nil {
		return nil, err
	}
	err = s.store.AppendEmbedding(ctx, &types.Embedding{
		ChunkID:   chunk.ID,
		Vector:    result.Vector,
		Backend:   result.Backend,
		Dimension: len(result.Vector),
	})
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.stats.Update(content)
	s.ingestsSinceSnapshot++
	snapshot := s.ingestsSinceSnapshot >= statsSnapshotEvery
	if snapshot {
		s.ingestsSinceSnapshot = 0
	}
	s.mu.Unlock()

	if snapshot {
		if err := s.stats.Snapshot(s.statsPath); err != nil {
			log.Printf("corpus statistics snapshot: %v", err)
		}
	}
	return chunk, nil
}

// AssembleOptions control context assembly. Zero values defer to the
// analyzer's recommendation.
type AssembleOptions struct {
	MaxTokens         int
	Threshold         float64
	AllowInsufficient bool
}

// ContextOutput is an assembled context with its analysis.
type ContextOutput struct {
	Context      string                  `json:"context"`
	Analysis     *analyzer.Analysis      `json:"analysis"`
	SourceCounts map[types.ChunkType]int `json:"source_counts"`
	Degraded     bool                    `json:"degraded"`
	Cached       bool                    `json:"cached"`
}

// AssembleContext analyzes the query, searches each source
// concurrently, and merges the weighted results into one bounded
// context string.
func (s *Service) AssembleContext(ctx context.Context, query string, opts AssembleOptions) (*ContextOutput, error) {
	engine, _, err := s.ready()
	if err != nil {
		return nil, err
	}

	if opts.Threshold == 0 {
		opts.Threshold = s.cfg.Search.Threshold
	}

	analysis, err := analyzer.Analyze(query)
	if err != nil {
		return nil, err
	}
	budget := analysis.Budget
	if opts.MaxTokens > 0 {
		budget.MaxTokens = opts.MaxTokens
	}

	key := ctxcache.KeyParams{
		Query:             query,
		Threshold:         opts.Threshold,
		MaxResults:        budget.MaxItemsPerSource,
		AllowInsufficient: opts.AllowInsufficient,
		MaxTokens:         budget.MaxTokens,
	}.Hash()
	if cached, ok := s.results.Get(key); ok {
		if out, ok := cached.(*ContextOutput); ok {
			hit := cloneContextOutput(out)
			hit.Cached = true
			return hit, nil
		}
	}

	// One search per source, fanned out. The query embedding is shared
	// through the generator's cache, so the fan-out costs one backend
	// call at most.
	var sourcesMu sync.Mutex
	sources := make(assembler.Sources)
	degraded := false

	group, groupCtx := errgroup.WithContext(ctx)
	for source := range analysis.Weights {
		group.Go(func() error {
			resp, err := engine.Search(groupCtx, query, searcher.Options{
				Threshold:              opts.Threshold,
				MaxResults:             budget.MaxItemsPerSource * len(analysis.Weights),
				AllowInsufficientStats: opts.AllowInsufficient,
			})
			if err != nil {
				// A source with no rankable content contributes nothing
				// rather than failing the whole assembly.
				if errors.Is(err, types.ErrCorpusStatsInsufficient) {
					return nil
				}
				return err
			}

			matched := make([]types.SearchResult, 0, len(resp.Results))
			for _, r := range resp.Results {
				if r.Type == source {
					matched = append(matched, r)
				}
			}

			sourcesMu.Lock()
			sources[source] = matched
			if resp.Degraded {
				degraded = true
			}
			sourcesMu.Unlock()
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, err
	}

	// Checkpoint before final formatting; an aborted query discards
	// everything computed so far.
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	counts := make(map[types.ChunkType]int, len(sources))
	for source, results := range sources {
		counts[source] = len(results)
	}

	out := &ContextOutput{
		Context:      assembler.Assemble(sources, analysis.Weights, budget),
		Analysis:     analysis,
		SourceCounts: counts,
		Degraded:     degraded,
	}
	s.results.Set(key, cloneContextOutput(out))
	return out, nil
}

func cloneContextOutput(out *ContextOutput) *ContextOutput {
	dup := *out
	if out.Analysis != nil {
		a := *out.Analysis
		a.Weights = make(map[types.ChunkType]float64, len(out.Analysis.Weights))
		for source, w := range out.Analysis.Weights {
			a.Weights[source] = w
		}
		dup.Analysis = &a
	}
	dup.SourceCounts = make(map[types.ChunkType]int, len(out.SourceCounts))
	for source, n := range out.SourceCounts {
		dup.SourceCounts[source] = n
	}
	return &dup
}

// Status reports the state of every engine component.
type Status struct {
	State          string               `json:"state"`
	Backend        string               `json:"backend,omitempty"`
	Dimension      int                  `json:"dimension,omitempty"`
	Degraded       bool                 `json:"degraded"`
	Candidates     []backend.Descriptor `json:"candidates,omitempty"`
	Chunks         int                  `json:"chunks"`
	Embeddings     int                  `json:"embeddings"`
	VocabularySize int                  `json:"vocabulary_size"`
	MinVocabulary  int                  `json:"min_vocabulary"`
	CachedResults  int                  `json:"cached_results"`
	StoreBackend   string               `json:"store_backend"`
}

// Status reports backend commitment, store counts, and cache sizes.
func (s *Service) Status(ctx context.Context) (*Status, error) {
	chunks, embeddings, err := s.store.Counts(ctx)
	if err != nil {
		return nil, err
	}

	st := &Status{
		State:          backend.StateUninitialized.String(),
		Chunks:         chunks,
		Embeddings:     embeddings,
		VocabularySize: s.stats.VocabularySize(),
		MinVocabulary:  s.cfg.MinVocabulary,
		CachedResults:  s.results.Len(),
		StoreBackend:   s.cfg.StoreBackend,
	}

	s.mu.Lock()
	registry := s.registry
	s.mu.Unlock()
	if registry != nil {
		st.State = registry.State().String()
		st.Candidates = registry.Descriptors()
		if committed := registry.Committed(); committed != nil {
			st.Backend = committed.Name()
			st.Dimension = committed.Dimension()
			st.Degraded = registry.Degraded()
		}
	}
	return st, nil
}

// Close flushes the corpus statistics and shuts the store.
func (s *Service) Close() error {
	if err := s.stats.Snapshot(s.statsPath); err != nil {
		log.Printf("corpus statistics snapshot on close: %v", err)
	}
	return s.store.Close()
}
