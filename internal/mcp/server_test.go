package mcp

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/memctx-mcp/internal/backend"
	"github.com/dshills/memctx-mcp/internal/config"
	"github.com/dshills/memctx-mcp/internal/service"
)

// newTestServer builds a server over a lexical-backend service so the
// handlers can run without network access.
func newTestServer(t *testing.T) *Server {
	t.Helper()

	cfg := config.Default()
	cfg.DataDir = t.TempDir()
	cfg.Backends = []string{backend.NameLexical}
	cfg.MinVocabulary = 1
	cfg.Search.Threshold = 0.5

	svc, err := service.New(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = svc.Close() })
	require.NoError(t, svc.Initialize(context.Background()))

	return NewServer(svc)
}

func callRequest(args map[string]interface{}) mcp.CallToolRequest {
	var req mcp.CallToolRequest
	req.Params.Arguments = args
	return req
}

// resultJSON decodes the text payload of a tool result.
func resultJSON(t *testing.T, res *mcp.CallToolResult) map[string]interface{} {
	t.Helper()
	require.NotEmpty(t, res.Content)
	text, ok := res.Content[0].(mcp.TextContent)
	require.True(t, ok, "content[0] has type %T", res.Content[0])

	var payload map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(text.Text), &payload))
	return payload
}

func assertMCPErrorCode(t *testing.T, err error, code int) {
	t.Helper()
	require.Error(t, err)
	mcpErr, ok := err.(*MCPError)
	require.True(t, ok, "err has type %T", err)
	assert.Equal(t, code, mcpErr.Code)
}

func TestRememberThenSearch(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()

	for _, content := range []string{"apple pie recipe", "car engine repair", "baking a cake"} {
		res, err := s.handleRememberMemory(ctx, callRequest(map[string]interface{}{
			"content": content,
		}))
		require.NoError(t, err)
		payload := resultJSON(t, res)
		assert.Equal(t, true, payload["stored"])
		assert.NotEmpty(t, payload["chunk_id"])
	}

	res, err := s.handleSearchMemory(ctx, callRequest(map[string]interface{}{
		"query":              "cake baking",
		"allow_insufficient": true,
	}))
	require.NoError(t, err)

	payload := resultJSON(t, res)
	results, ok := payload["results"].([]interface{})
	require.True(t, ok)
	require.NotEmpty(t, results)
	top, ok := results[0].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "baking a cake", top["content"])

	// The wire shape is snake_case; struct field names must not leak.
	assert.NotEmpty(t, top["chunk_id"])
	assert.Equal(t, float64(1), top["rank"])
	assert.Contains(t, top, "score")
	assert.Contains(t, top, "method")
	assert.NotContains(t, top, "ChunkID")
}

func TestRememberValidation(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()

	_, err := s.handleRememberMemory(ctx, callRequest(map[string]interface{}{}))
	assertMCPErrorCode(t, err, ErrorCodeInvalidParams)

	_, err = s.handleRememberMemory(ctx, callRequest(map[string]interface{}{
		"content": "something",
		"type":    "daydream",
	}))
	assertMCPErrorCode(t, err, ErrorCodeInvalidParams)
}

func TestSearchValidation(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()

	_, err := s.handleSearchMemory(ctx, callRequest(map[string]interface{}{}))
	assertMCPErrorCode(t, err, ErrorCodeInvalidParams)

	_, err = s.handleSearchMemory(ctx, callRequest(map[string]interface{}{
		"query": "ok",
		"limit": float64(500),
	}))
	assertMCPErrorCode(t, err, ErrorCodeInvalidParams)

	_, err = s.handleSearchMemory(ctx, callRequest(map[string]interface{}{
		"query":     "ok",
		"threshold": 1.5,
	}))
	assertMCPErrorCode(t, err, ErrorCodeInvalidParams)
}

func TestSearchInsufficientStats(t *testing.T) {
	cfg := config.Default()
	cfg.DataDir = t.TempDir()
	cfg.Backends = []string{backend.NameHash}
	cfg.MinVocabulary = 100

	svc, err := service.New(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = svc.Close() })
	require.NoError(t, svc.Initialize(context.Background()))
	s := NewServer(svc)

	// Hash-only sessions delegate to keyword ranking, which refuses to
	// rank below the minimum vocabulary.
	_, err = s.handleSearchMemory(context.Background(), callRequest(map[string]interface{}{
		"query": "anything at all",
	}))
	assertMCPErrorCode(t, err, ErrorCodeInsufficientStats)
}

func TestAssembleContextTool(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()

	_, err := s.handleRememberMemory(ctx, callRequest(map[string]interface{}{
		"content": "we discussed baking the cake at 180 degrees",
		"type":    "conversation",
	}))
	require.NoError(t, err)

	res, err := s.handleAssembleContext(ctx, callRequest(map[string]interface{}{
		"query":              "cake baking",
		"allow_insufficient": true,
	}))
	require.NoError(t, err)

	payload := resultJSON(t, res)
	assert.Contains(t, payload["context"], "180 degrees")
	assert.NotEmpty(t, payload["query_type"])
	density, ok := payload["keyword_density"].(float64)
	require.True(t, ok, "keyword_density missing from payload")
	assert.Greater(t, density, 0.0)

	_, err = s.handleAssembleContext(ctx, callRequest(map[string]interface{}{}))
	assertMCPErrorCode(t, err, ErrorCodeInvalidParams)
}

func TestGetStatusTool(t *testing.T) {
	s := newTestServer(t)

	res, err := s.handleGetStatus(context.Background(), callRequest(map[string]interface{}{}))
	require.NoError(t, err)

	payload := resultJSON(t, res)
	assert.Equal(t, "committed", payload["state"])
	assert.Equal(t, backend.NameLexical, payload["backend"])
	assert.Equal(t, false, payload["degraded"])
	assert.Equal(t, float64(0), payload["chunks"])
}
