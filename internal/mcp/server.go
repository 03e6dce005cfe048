package mcp

import (
	"context"

	"github.com/mark3labs/mcp-go/server"

	"github.com/dshills/memctx-mcp/internal/service"
)

const (
	// ServerName is the MCP server name
	ServerName = "memctx-mcp"
	// ServerVersion is the current server version
	ServerVersion = "1.0.0"
)

// Server wraps the MCP server around one SearchService instance. The
// service is constructed and initialized by the caller and injected
// here; the transport owns no engine state of its own.
type Server struct {
	mcp     *server.MCPServer
	service *service.Service
}

// NewServer creates an MCP server over an initialized service.
func NewServer(svc *service.Service) *Server {
	s := &Server{
		mcp:     server.NewMCPServer(ServerName, ServerVersion),
		service: svc,
	}
	s.registerTools()
	return s
}

// Serve starts the MCP server on stdio and blocks until shutdown.
func (s *Server) Serve(ctx context.Context) error {
	return server.ServeStdio(s.mcp)
}

// registerTools registers all MCP tools
func (s *Server) registerTools() {
	s.mcp.AddTool(rememberMemoryTool(), s.handleRememberMemory)
	s.mcp.AddTool(searchMemoryTool(), s.handleSearchMemory)
	s.mcp.AddTool(assembleContextTool(), s.handleAssembleContext)
	s.mcp.AddTool(getStatusTool(), s.handleGetStatus)
}
