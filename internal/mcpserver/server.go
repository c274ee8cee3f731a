package mcpserver

import (
	"net/http"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/kmattern/basewatch/internal/alerts"
	"github.com/kmattern/basewatch/internal/baseline"
	"github.com/kmattern/basewatch/internal/monitor"
)

// Version is injected from the build metadata.
var Version = "dev"

// MCPServer exposes compatibility monitoring as MCP tools so editors and
// agents can query alerts and analyze files on demand.
type MCPServer struct {
	server  *mcp.Server
	handler http.Handler
	mon     *monitor.Monitor
	mgr     *alerts.Manager
	table   *baseline.Table
	logger  *zap.Logger
}

// New creates and wires the MCP tool surface.
func New(mon *monitor.Monitor, mgr *alerts.Manager, table *baseline.Table, logger *zap.Logger) *MCPServer {
	if logger == nil {
		logger = zap.NewNop()
	}

	implVersion := Version
	if implVersion == "" {
		implVersion = "dev"
	}

	srv := mcp.NewServer(&mcp.Implementation{
		Name:    "basewatch",
		Version: implVersion,
	}, nil)

	m := &MCPServer{
		server: srv,
		mon:    mon,
		mgr:    mgr,
		table:  table,
		logger: logger.Named("mcp"),
	}

	m.registerTools()
	m.handler = mcp.NewSSEHandler(func(_ *http.Request) *mcp.Server {
		return m.server
	}, nil)

	return m
}

// Handler returns the HTTP SSE transport handler mounted at /mcp.
func (s *MCPServer) Handler() http.Handler {
	if s == nil {
		return http.NotFoundHandler()
	}
	return s.handler
}
