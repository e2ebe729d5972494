// Package mcp exposes the movement analysis engine to MCP clients: an
// analyze_recording tool over the session factory plus the exercise
// catalogue as a resource.
package mcp

import (
	"log/slog"

	"github.com/claude/motionscore/internal/session"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// New creates an MCP server with all tools and resources registered.
func New(factory *session.Factory, version string, log *slog.Logger) *server.MCPServer {
	s := server.NewMCPServer("motionscore", version,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
		server.WithInstructions("Rehabilitation movement analysis server. Submit pose-landmark recordings to identify the exercise being performed and judge whether the movement follows its clinical pattern."),
	)

	h := &handlers{factory: factory, log: log}

	s.AddTools(
		server.ServerTool{Tool: toolAnalyzeRecording, Handler: h.analyzeRecording},
		server.ServerTool{Tool: toolListExercises, Handler: h.listExercises},
	)

	s.AddResources(
		server.ServerResource{Resource: resExerciseCatalogue, Handler: h.exerciseCatalogue},
	)

	return s
}

// handlers holds dependencies for MCP tool/resource handlers.
type handlers struct {
	factory *session.Factory
	log     *slog.Logger
}

// --- Resource definitions ---

var resExerciseCatalogue = mcp.NewResource(
	"motionscore://exercises",
	"Exercise Catalogue",
	mcp.WithResourceDescription("All recognizable rehabilitation exercises with their model family (legs or arms)"),
	mcp.WithMIMEType("application/json"),
)
