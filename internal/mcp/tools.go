package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/dshills/memctx-mcp/internal/service"
	"github.com/dshills/memctx-mcp/pkg/types"
)

// MCP error codes
const (
	ErrorCodeInvalidParams     = -32602 // Invalid method parameters
	ErrorCodeInternalError     = -32603 // Internal JSON-RPC error
	ErrorCodeNotInitialized    = -32001 // Service has no committed backend
	ErrorCodeInsufficientStats = -32002 // Corpus statistics below minimum vocabulary
)

// handleRememberMemory handles the remember_memory tool invocation
func (s *Server) handleRememberMemory(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	content, ok := args["content"].(string)
	if !ok || content == "" {
		return nil, newMCPError(ErrorCodeInvalidParams, "content parameter is required", map[string]interface{}{
			"param":  "content",
			"reason": "missing or empty",
		})
	}

	chunkType := types.ChunkType(getStringDefault(args, "type", string(types.ChunkMemory)))
	if err := (&types.Chunk{Type: chunkType}).ValidateType(); err != nil {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid type", map[string]interface{}{
			"param":  "type",
			"reason": err.Error(),
		})
	}
	sourcePath := getStringDefault(args, "source_path", "")
	metadata := getStringMap(args, "metadata")

	chunk, err := s.service.Remember(ctx, content, sourcePath, chunkType, metadata)
	if err != nil {
		return nil, serviceError(err)
	}

	return mcp.NewToolResultText(formatJSON(map[string]interface{}{
		"stored":   true,
		"chunk_id": chunk.ID,
		"type":     chunk.Type,
	})), nil
}

// handleSearchMemory handles the search_memory tool invocation
func (s *Server) handleSearchMemory(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	query, ok := args["query"].(string)
	if !ok || query == "" {
		return nil, newMCPError(ErrorCodeInvalidParams, "query parameter is required and cannot be empty", map[string]interface{}{
			"param":  "query",
			"reason": "missing or empty",
		})
	}

	limit := getIntDefault(args, "limit", 10)
	if limit < 1 || limit > 100 {
		return nil, newMCPError(ErrorCodeInvalidParams, "limit must be between 1 and 100", map[string]interface{}{
			"param": "limit",
			"value": limit,
		})
	}
	threshold := getFloatDefault(args, "threshold", 0)
	if threshold < 0 || threshold > 1 {
		return nil, newMCPError(ErrorCodeInvalidParams, "threshold must be between 0.0 and 1.0", map[string]interface{}{
			"param": "threshold",
			"value": threshold,
		})
	}

	out, err := s.service.Search(ctx, query, service.SearchOptions{
		Threshold:         threshold,
		MaxResults:        limit,
		AllowInsufficient: getBoolDefault(args, "allow_insufficient", false),
	})
	if err != nil {
		return nil, serviceError(err)
	}

	return mcp.NewToolResultText(formatJSON(map[string]interface{}{
		"method":   out.Method,
		"degraded": out.Degraded,
		"cached":   out.Cached,
		"results":  out.Results,
	})), nil
}

// handleAssembleContext handles the assemble_context tool invocation
func (s *Server) handleAssembleContext(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	query, ok := args["query"].(string)
	if !ok || query == "" {
		return nil, newMCPError(ErrorCodeInvalidParams, "query parameter is required and cannot be empty", map[string]interface{}{
			"param":  "query",
			"reason": "missing or empty",
		})
	}

	maxTokens := getIntDefault(args, "max_tokens", 0)
	if maxTokens < 0 {
		return nil, newMCPError(ErrorCodeInvalidParams, "max_tokens must be positive", map[string]interface{}{
			"param": "max_tokens",
			"value": maxTokens,
		})
	}

	out, err := s.service.AssembleContext(ctx, query, service.AssembleOptions{
		MaxTokens:         maxTokens,
		AllowInsufficient: getBoolDefault(args, "allow_insufficient", false),
	})
	if err != nil {
		return nil, serviceError(err)
	}

	return mcp.NewToolResultText(formatJSON(map[string]interface{}{
		"context":         out.Context,
		"complexity":      out.Analysis.Complexity,
		"query_type":      out.Analysis.Type,
		"keyword_density": out.Analysis.KeywordDensity,
		"source_counts":   out.SourceCounts,
		"degraded":        out.Degraded,
		"cached":          out.Cached,
	})), nil
}

// handleGetStatus handles the get_status tool invocation
func (s *Server) handleGetStatus(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	status, err := s.service.Status(ctx)
	if err != nil {
		return nil, serviceError(err)
	}

	candidates := make([]map[string]interface{}, len(status.Candidates))
	for i, c := range status.Candidates {
		candidates[i] = map[string]interface{}{
			"name":      c.Name,
			"priority":  c.Priority,
			"dimension": c.Dimension,
			"status":    c.Status,
		}
	}

	return mcp.NewToolResultText(formatJSON(map[string]interface{}{
		"state":           status.State,
		"backend":         status.Backend,
		"dimension":       status.Dimension,
		"degraded":        status.Degraded,
		"candidates":      candidates,
		"chunks":          status.Chunks,
		"embeddings":      status.Embeddings,
		"vocabulary_size": status.VocabularySize,
		"min_vocabulary":  status.MinVocabulary,
		"cached_results":  status.CachedResults,
		"store_backend":   status.StoreBackend,
	})), nil
}

// Helper functions

// serviceError maps engine errors to MCP error codes.
func serviceError(err error) error {
	switch {
	case errors.Is(err, types.ErrInvalidInput):
		return newMCPError(ErrorCodeInvalidParams, "invalid input", map[string]interface{}{
			"reason": err.Error(),
		})
	case errors.Is(err, service.ErrNotInitialized):
		return newMCPError(ErrorCodeNotInitialized, "service not initialized", nil)
	case errors.Is(err, types.ErrCorpusStatsInsufficient):
		return newMCPError(ErrorCodeInsufficientStats, "corpus statistics insufficient for keyword ranking", map[string]interface{}{
			"reason": err.Error(),
			"hint":   "pass allow_insufficient=true to rank anyway",
		})
	default:
		return newMCPError(ErrorCodeInternalError, "request failed", map[string]interface{}{
			"error": err.Error(),
		})
	}
}

// newMCPError creates a properly formatted MCP error
func newMCPError(code int, message string, data interface{}) error {
	// MCP errors are returned as regular errors, the framework handles encoding
	return &MCPError{
		Code:    code,
		Message: message,
		Data:    data,
	}
}

// MCPError represents an MCP protocol error
type MCPError struct {
	Code    int
	Message string
	Data    interface{}
}

func (e *MCPError) Error() string {
	return fmt.Sprintf("MCP error %d: %s", e.Code, e.Message)
}

// formatJSON formats a map as indented JSON
func formatJSON(data map[string]interface{}) string {
	bytes, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", data)
	}
	return string(bytes)
}

// getBoolDefault extracts a boolean parameter with a default value
func getBoolDefault(args map[string]interface{}, key string, defaultValue bool) bool {
	if val, ok := args[key].(bool); ok {
		return val
	}
	return defaultValue
}

// getIntDefault extracts an integer parameter with a default value
func getIntDefault(args map[string]interface{}, key string, defaultValue int) int {
	if val, ok := args[key].(float64); ok {
		return int(val)
	}
	if val, ok := args[key].(int); ok {
		return val
	}
	return defaultValue
}

// getFloatDefault extracts a number parameter with a default value
func getFloatDefault(args map[string]interface{}, key string, defaultValue float64) float64 {
	if val, ok := args[key].(float64); ok {
		return val
	}
	return defaultValue
}

// getStringDefault extracts a string parameter with a default value
func getStringDefault(args map[string]interface{}, key string, defaultValue string) string {
	if val, ok := args[key].(string); ok && val != "" {
		return val
	}
	return defaultValue
}

// getStringMap extracts a string-valued object parameter.
func getStringMap(args map[string]interface{}, key string) map[string]string {
	raw, ok := args[key].(map[string]interface{})
	if !ok || len(raw) == 0 {
		return nil
	}
	out := make(map[string]string, len(raw))
	for k, v := range raw {
		if s, ok := v.(string); ok {
			out[k] = s
		}
	}
	return out
}
