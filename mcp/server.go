package mcp

import (
	"context"
	"errors"
	"io"
	"log/slog"

	"github.com/ka2n/x402search/api"
	"github.com/ka2n/x402search/log"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/morikuni/failure/v2"
)

// Name is the server name announced to MCP clients
const Name = "x402search"

// Server represents the MCP server
type Server struct {
	server *server.MCPServer
}

// NewServer creates a new MCP server instance
func NewServer(searcher Searcher) *Server {
	s := server.NewMCPServer(Name, api.Version)

	registerTools(s, searcher)

	return &Server{
		server: s,
	}
}

// Run serves the stdio transport until ctx is cancelled or stdin is closed.
// In-flight calls are abandoned on cancellation.
func (s *Server) Run(ctx context.Context, stdin io.Reader, stdout io.Writer) error {
	stdio := server.NewStdioServer(s.server)
	stdio.SetErrorLogger(slog.NewLogLogger(log.Logger.Handler(), slog.LevelError))

	log.Info("MCP server listening on stdio", "version", api.Version)
	err := stdio.Listen(ctx, stdin, stdout)
	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, io.EOF) {
		log.Info("MCP server stopped")
		return nil
	}
	return failure.Wrap(err)
}

// registerTools registers all available tools with the MCP server
func registerTools(s *server.MCPServer, searcher Searcher) {
	s.AddTools(InitTools(searcher)...)
}

func newServerTool(tool mcp.Tool, handler server.ToolHandlerFunc) server.ServerTool {
	return server.ServerTool{
		Tool:    tool,
		Handler: handler,
	}
}
