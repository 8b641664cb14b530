// Package mcp exposes recommendation generation, context building and model
// health as Model Context Protocol tools over stdio, and resolves provider
// resource URIs as MCP resource templates.
package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/trii-invest/insightd/internal/contextserver"
	"github.com/trii-invest/insightd/internal/logging"
	"github.com/trii-invest/insightd/internal/orchestrator"
	"github.com/trii-invest/insightd/internal/vectordb"
)

// Version is set via ldflags at build time.
var Version = "dev"

// Server wraps an MCP server over the context server and orchestrator.
type Server struct {
	contexts *contextserver.Server
	orch     *orchestrator.Orchestrator
	notes    vectordb.NoteStore
	logger   *zap.Logger
	mcp      *server.MCPServer
}

type Option func(*Server)

// WithNotes adds the search_research_notes tool.
func WithNotes(store vectordb.NoteStore) Option {
	return func(s *Server) { s.notes = store }
}

func WithLogger(l *zap.Logger) Option {
	return func(s *Server) { s.logger = logging.OrNop(l) }
}

// NewServer creates an MCP server with every tool and resource template
// registered.
func NewServer(contexts *contextserver.Server, orch *orchestrator.Orchestrator, opts ...Option) *Server {
	s := &Server{
		contexts: contexts,
		orch:     orch,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.mcp = server.NewMCPServer(
		"insightd",
		Version,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.registerTools()
	s.registerResources()
	return s
}

func (s *Server) registerTools() {
	s.mcp.AddTool(generateRecommendationTool, s.handleGenerateRecommendation)
	s.mcp.AddTool(buildContextTool, s.handleBuildContext)
	s.mcp.AddTool(modelHealthTool, s.handleModelHealth)
	s.mcp.AddTool(clearContextCacheTool, s.handleClearContextCache)
	if s.notes != nil {
		s.mcp.AddTool(searchResearchNotesTool, s.handleSearchResearchNotes)
	}
}

func (s *Server) registerResources() {
	for _, tmpl := range resourceTemplates {
		s.mcp.AddResourceTemplate(
			mcp.NewResourceTemplate(tmpl.pattern, tmpl.name,
				mcp.WithTemplateDescription(tmpl.description),
				mcp.WithTemplateMIMEType(tmpl.mimeType),
			),
			s.handleReadResource,
		)
	}
}

// Serve starts the MCP server on stdio. Stdout carries protocol messages, so
// all logging must go to stderr or a file.
func (s *Server) Serve() error {
	return server.ServeStdio(s.mcp)
}
