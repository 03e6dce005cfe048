package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/memctx-mcp/internal/backend"
	"github.com/dshills/memctx-mcp/internal/config"
	"github.com/dshills/memctx-mcp/pkg/types"
)

// testConfig runs everything on the local lexical backend so tests
// need no network.
func testConfig(t *testing.T) config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.DataDir = t.TempDir()
	cfg.Backends = []string{backend.NameLexical}
	cfg.MinVocabulary = 1
	cfg.Search.Threshold = 0.5
	return cfg
}

func newTestService(t *testing.T) *Service {
	t.Helper()
	svc, err := New(testConfig(t))
	require.NoError(t, err)
	t.Cleanup(func() { _ = svc.Close() })
	require.NoError(t, svc.Initialize(context.Background()))
	return svc
}

func TestServiceSearchLifecycle(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	for _, content := range []string{"apple pie recipe", "car engine repair", "baking a cake"} {
		_, err := svc.Remember(ctx, content, "", types.ChunkMemory, nil)
		require.NoError(t, err)
	}

	out, err := svc.Search(ctx, "cake baking", SearchOptions{AllowInsufficient: true})
	require.NoError(t, err)
	require.NotEmpty(t, out.Results)
	assert.Equal(t, "baking a cake", out.Results[0].Content)
	assert.False(t, out.Cached)

	again, err := svc.Search(ctx, "cake baking", SearchOptions{AllowInsufficient: true})
	require.NoError(t, err)
	assert.True(t, again.Cached)
	require.Len(t, again.Results, len(out.Results))
	assert.Equal(t, out.Results[0].ChunkID, again.Results[0].ChunkID)
}

func TestServiceBeforeInitialize(t *testing.T) {
	svc, err := New(testConfig(t))
	require.NoError(t, err)
	defer func() { _ = svc.Close() }()
	ctx := context.Background()

	_, err = svc.Search(ctx, "anything", SearchOptions{})
	assert.True(t, errors.Is(err, ErrNotInitialized), "Search: %v", err)

	_, err = svc.Remember(ctx, "anything", "", types.ChunkMemory, nil)
	assert.True(t, errors.Is(err, ErrNotInitialized), "Remember: %v", err)

	_, err = svc.AssembleContext(ctx, "anything", AssembleOptions{})
	assert.True(t, errors.Is(err, ErrNotInitialized), "AssembleContext: %v", err)
}

func TestServiceDoubleInitialize(t *testing.T) {
	svc := newTestService(t)

	err := svc.Initialize(context.Background())
	assert.True(t, errors.Is(err, backend.ErrAlreadyInitialized), "err = %v", err)
}

func TestServiceRememberValidation(t *testing.T) {
	svc := newTestService(t)

	_, err := svc.Remember(context.Background(), "   ", "", types.ChunkMemory, nil)
	assert.True(t, errors.Is(err, types.ErrInvalidInput), "err = %v", err)
}

func TestServiceRememberDefaultsTypeAndPersists(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	chunk, err := svc.Remember(ctx, "persisted memory", "notes.md", "", map[string]string{"k": "v"})
	require.NoError(t, err)
	assert.NotEmpty(t, chunk.ID)
	assert.Equal(t, types.ChunkMemory, chunk.Type)

	status, err := svc.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, status.Chunks)
	assert.Equal(t, 1, status.Embeddings)
}

func TestServiceAssembleContext(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	_, err := svc.Remember(ctx, "// baking helper\nfunc bakeCake() { cake.Mix() }", "cake.go", types.ChunkCode, nil)
	require.NoError(t, err)
	_, err = svc.Remember(ctx, "we discussed baking the cake at 180 degrees", "", types.ChunkConversation, nil)
	require.NoError(t, err)

	out, err := svc.AssembleContext(ctx, "cake baking", AssembleOptions{AllowInsufficient: true})
	require.NoError(t, err)
	require.NotNil(t, out.Analysis)
	assert.False(t, out.Cached)
	assert.Contains(t, out.Context, "bakeCake")
	assert.Contains(t, out.Context, "180 degrees")
	assert.Equal(t, 1, out.SourceCounts[types.ChunkCode])
	assert.Equal(t, 1, out.SourceCounts[types.ChunkConversation])

	again, err := svc.AssembleContext(ctx, "cake baking", AssembleOptions{AllowInsufficient: true})
	require.NoError(t, err)
	assert.True(t, again.Cached)
	assert.Equal(t, out.Context, again.Context)
}

func TestServiceAssembleContextEmptyStore(t *testing.T) {
	svc := newTestService(t)

	out, err := svc.AssembleContext(context.Background(), "anything at all",
		AssembleOptions{AllowInsufficient: true})
	require.NoError(t, err)
	assert.Empty(t, out.Context)
}

func TestServiceStatus(t *testing.T) {
	svc := newTestService(t)

	status, err := svc.Status(context.Background())
	require.NoError(t, err)
	assert.Equal(t, backend.StateCommitted.String(), status.State)
	assert.Equal(t, backend.NameLexical, status.Backend)
	assert.Equal(t, backend.DefaultLexicalDimension, status.Dimension)
	assert.False(t, status.Degraded)
	require.NotEmpty(t, status.Candidates)
	assert.Equal(t, backend.StatusValidated, status.Candidates[0].Status)
}

func TestServiceStatsSurviveRestart(t *testing.T) {
	cfg := testConfig(t)
	ctx := context.Background()

	first, err := New(cfg)
	require.NoError(t, err)
	require.NoError(t, first.Initialize(ctx))
	_, err = first.Remember(ctx, "the quick brown fox jumps over the lazy dog", "", types.ChunkMemory, nil)
	require.NoError(t, err)
	require.NoError(t, first.Close())

	second, err := New(cfg)
	require.NoError(t, err)
	defer func() { _ = second.Close() }()
	require.NoError(t, second.Initialize(ctx))

	status, err := second.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, status.Chunks)
	assert.Greater(t, status.VocabularySize, 0)
}

func TestServiceSearchCacheHitIsIsolated(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	_, err := svc.Remember(ctx, "baking a cake", "", types.ChunkMemory, nil)
	require.NoError(t, err)

	first, err := svc.Search(ctx, "cake baking", SearchOptions{AllowInsufficient: true})
	require.NoError(t, err)
	require.NotEmpty(t, first.Results)

	// Callers own their copy; mutating it must not reach the cache.
	first.Results[0].Content = "tampered"

	second, err := svc.Search(ctx, "cake baking", SearchOptions{AllowInsufficient: true})
	require.NoError(t, err)
	assert.True(t, second.Cached)
	assert.Equal(t, "baking a cake", second.Results[0].Content)

	second.Results[0].Content = "tampered again"

	third, err := svc.Search(ctx, "cake baking", SearchOptions{AllowInsufficient: true})
	require.NoError(t, err)
	assert.Equal(t, "baking a cake", third.Results[0].Content)
}

func TestServiceRememberCancelledLeavesNoPartialState(t *testing.T) {
	svc := newTestService(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := svc.Remember(ctx, "never stored", "", types.ChunkMemory, nil)
	require.Error(t, err)

	// Generation failed before anything was written: no orphan chunk,
	// no embedding, no stats update.
	status, err := svc.Status(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, status.Chunks)
	assert.Equal(t, 0, status.Embeddings)
	assert.Equal(t, 0, status.VocabularySize)
}

func TestServiceCancelledSearch(t *testing.T) {
	svc := newTestService(t)
	_, err := svc.Remember(context.Background(), "some stored memory", "", types.ChunkMemory, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = svc.Search(ctx, strings.Repeat("novel query ", 3), SearchOptions{})
	assert.True(t, errors.Is(err, context.Canceled), "err = %v", err)
}
