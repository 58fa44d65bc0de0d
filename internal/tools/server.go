// Package tools exposes komorebi operations as MCP tools over stdio and as a
// plain in-process call surface. Handlers never fail with a Go error: every
// failure becomes an error result carrying a readable message.
package tools

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/komorebi/internal/index"
	"github.com/starford/komorebi/internal/memory"
	"github.com/starford/komorebi/internal/planning"
	"github.com/starford/komorebi/internal/project"
	"github.com/starford/komorebi/internal/reposync"
	"github.com/starford/komorebi/internal/review"
	"github.com/starford/komorebi/internal/skills"
)

// Version is reported to MCP clients.
const Version = "0.3.0"

// Deps are the services the tools delegate to. Index and Skills may be nil.
type Deps struct {
	Projects *project.Repository
	Planner  *planning.Planner
	Reviews  *review.Generator
	Syncer   *reposync.Syncer
	Memory   *memory.Store
	Skills   *skills.Manager
	Index    index.TaskIndex
	Logger   *slog.Logger
}

// Server wraps the MCP server with komorebi tools.
type Server struct {
	Deps
	mcp      *server.MCPServer
	handlers map[string]server.ToolHandlerFunc
	tools    []mcp.Tool
}

// New creates a server with all tools registered.
func New(d Deps) *Server {
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	s := &Server{Deps: d, handlers: map[string]server.ToolHandlerFunc{}}

	s.mcp = server.NewMCPServer(
		"Komorebi",
		Version,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.registerProjectTools()
	s.registerPlanningTools()
	s.registerMemoryTools()

	s.mcp.AddResource(
		mcp.NewResource(TaskFormatURI, "Task Document Format",
			mcp.WithResourceDescription("How tasks.md is structured and which markers the parser understands."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readTaskFormat,
	)
	s.mcp.AddResource(
		mcp.NewResource(SkillsURI, "Skill Catalogue",
			mcp.WithResourceDescription("Available skills; load one with load_skill."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readSkillCatalogue,
	)

	return s
}

func (s *Server) register(tool mcp.Tool, h server.ToolHandlerFunc) {
	s.mcp.AddTool(tool, h)
	s.handlers[tool.Name] = h
	s.tools = append(s.tools, tool)
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

// Tools lists the registered tools in registration order.
func (s *Server) Tools() []mcp.Tool {
	return s.tools
}

// Call invokes a tool by name. ok is false when no such tool exists.
func (s *Server) Call(ctx context.Context, name string, args map[string]any) (*mcp.CallToolResult, bool) {
	h, ok := s.handlers[name]
	if !ok {
		return nil, false
	}
	req := mcp.CallToolRequest{}
	req.Method = "tools/call"
	req.Params.Name = name
	req.Params.Arguments = args

	s.Logger.Debug("tool call", slog.String("tool", name))
	res, err := h(ctx, req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), true
	}
	if res.IsError {
		s.Logger.Info("tool failed", slog.String("tool", name), slog.String("message", Text(res)))
	}
	return res, true
}

// Text joins the text blocks of a result.
func Text(r *mcp.CallToolResult) string {
	var parts []string
	for _, c := range r.Content {
		if tc, ok := c.(mcp.TextContent); ok {
			parts = append(parts, tc.Text)
		}
	}
	return strings.Join(parts, "\n")
}

// bind decodes the call arguments into in and validates it.
func bind(req mcp.CallToolRequest, in validation.Validatable) *mcp.CallToolResult {
	if err := req.BindArguments(in); err != nil {
		return mcp.NewToolResultError("參數格式錯誤：" + err.Error())
	}
	if err := in.Validate(); err != nil {
		return invalid(err)
	}
	return nil
}

// invalid renders validation failures as one message per line, without
// the field-name prefixes ozzo adds.
func invalid(err error) *mcp.CallToolResult {
	var verrs validation.Errors
	if !errors.As(err, &verrs) {
		return mcp.NewToolResultError(err.Error())
	}
	keys := make([]string, 0, len(verrs))
	for k := range verrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	msgs := make([]string, 0, len(keys))
	for _, k := range keys {
		msgs = append(msgs, verrs[k].Error())
	}
	return mcp.NewToolResultError(strings.Join(msgs, "\n"))
}
