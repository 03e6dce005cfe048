package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"
)

// rememberMemoryTool returns the tool definition for remember_memory
func rememberMemoryTool() mcp.Tool {
	return mcp.Tool{
		Name:        "remember_memory",
		Description: "Store a text fragment as a searchable memory chunk",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"content": map[string]interface{}{
					"type":        "string",
					"description": "Text to remember",
				},
				"type": map[string]interface{}{
					"type":        "string",
					"description": "Kind of content being stored",
					"enum":        []string{"code", "conversation", "narrative", "memory"},
					"default":     "memory",
				},
				"source_path": map[string]interface{}{
					"type":        "string",
					"description": "Optional origin of the content (file path, URL)",
				},
				"metadata": map[string]interface{}{
					"type":        "object",
					"description": "Optional string key/value pairs attached to the chunk",
				},
			},
			Required: []string{"content"},
		},
	}
}

// searchMemoryTool returns the tool definition for search_memory
func searchMemoryTool() mcp.Tool {
	return mcp.Tool{
		Name:        "search_memory",
		Description: "Search stored memories with natural language queries",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"query": map[string]interface{}{
					"type":        "string",
					"description": "Search query (natural language or keywords)",
				},
				"limit": map[string]interface{}{
					"type":        "integer",
					"description": "Maximum number of results to return (1-100)",
					"default":     10,
					"minimum":     1,
					"maximum":     100,
				},
				"threshold": map[string]interface{}{
					"type":        "number",
					"description": "Minimum cosine similarity for the vector stage (0.0-1.0)",
					"minimum":     0.0,
					"maximum":     1.0,
				},
				"allow_insufficient": map[string]interface{}{
					"type":        "boolean",
					"description": "Rank with keyword fallback even when corpus statistics are below the minimum vocabulary",
					"default":     false,
				},
			},
			Required: []string{"query"},
		},
	}
}

// assembleContextTool returns the tool definition for assemble_context
func assembleContextTool() mcp.Tool {
	return mcp.Tool{
		Name:        "assemble_context",
		Description: "Assemble a weighted, length-bounded context from all memory sources for a query",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"query": map[string]interface{}{
					"type":        "string",
					"description": "Query to assemble context for",
				},
				"max_tokens": map[string]interface{}{
					"type":        "integer",
					"description": "Token budget override; defaults to the analyzer's recommendation",
					"minimum":     1,
				},
				"allow_insufficient": map[string]interface{}{
					"type":        "boolean",
					"description": "Include keyword-ranked sources even when corpus statistics are below the minimum vocabulary",
					"default":     false,
				},
			},
			Required: []string{"query"},
		},
	}
}

// getStatusTool returns the tool definition for get_status
func getStatusTool() mcp.Tool {
	return mcp.Tool{
		Name:        "get_status",
		Description: "Report backend commitment, store counts, and cache statistics",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}
}
