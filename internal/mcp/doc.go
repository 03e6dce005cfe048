// Package mcp implements the Model Context Protocol server exposing
// the memory retrieval engine to AI assistants.
//
// Four tools are registered:
//   - remember_memory: ingest a text fragment as a searchable chunk
//   - search_memory: ranked retrieval with method provenance
//   - assemble_context: weighted multi-source context assembly
//   - get_status: backend commitment, store counts, cache stats
//
// MCP is a JSON-RPC 2.0 protocol over stdio. Stdout is reserved for
// protocol messages; all logging goes to stderr.
//
// # Tool: search_memory
//
//	Request:
//	{
//	  "name": "search_memory",
//	  "arguments": {"query": "cake baking", "limit": 10, "threshold": 0.7}
//	}
//
//	Response:
//	{
//	  "method": "semantic",
//	  "degraded": false,
//	  "results": [
//	    {"chunk_id": "…", "rank": 1, "score": 0.91, "content": "baking a cake"}
//	  ]
//	}
//
// The method field distinguishes vector ranking ("semantic") from the
// BM25 fallback ("keyword"); degraded marks hash-only sessions.
//
// # Error Handling
//
// Handlers return JSON-RPC errors with these codes:
//   - -32602: invalid params (missing/empty query, bad limit)
//   - -32603: internal error
//   - -32001: service not initialized
//   - -32002: corpus statistics insufficient for keyword ranking
package mcp
