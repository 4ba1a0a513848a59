// Package mcpserver exposes the directory connector as an MCP tool server.
// It is a thin dispatch adapter: tool handlers map named operations onto
// connector calls and serialize the results; all directory semantics live in
// the directory package.
package mcpserver

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/corpatlas/directory-mcp"
)

// Version is the MCP server version reported to clients.
const Version = "1.0.0"

// Server is the MCP server for corporate directory lookups.
type Server struct {
	svc    *directory.Service
	server *mcp.Server
	logger *slog.Logger
}

// NewServer wires the tool surface around a directory service.
func NewServer(svc *directory.Service, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	impl := &mcp.Implementation{
		Name:    "directory-mcp",
		Version: Version,
	}

	s := &Server{
		svc:    svc,
		server: mcp.NewServer(impl, nil),
		logger: logger,
	}
	s.registerTools()
	return s
}

// Run serves MCP over stdio until the context is cancelled.
func (s *Server) Run(ctx context.Context) error {
	s.logger.Info("mcp_server_starting", slog.String("transport", "stdio"))
	return s.server.Run(ctx, &mcp.StdioTransport{})
}

// RunHTTP serves MCP over streamable HTTP on addr until the context is
// cancelled.
func (s *Server) RunHTTP(ctx context.Context, addr string) error {
	handler := mcp.NewStreamableHTTPHandler(func(_ *http.Request) *mcp.Server {
		return s.server
	}, nil)

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = httpServer.Shutdown(shutdownCtx)
	}()

	s.logger.Info("mcp_server_starting",
		slog.String("transport", "http"),
		slog.String("addr", addr))

	err := httpServer.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}
