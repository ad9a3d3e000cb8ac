// Package mcpserver exposes registered tools over the Model Context Protocol.
//
// Every MCP tool call is routed through exec.Exec.Execute, so calls made by
// an MCP client are retried, timed out and recorded exactly like local ones.
package mcpserver

import (
	"context"
	"encoding/json"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/jonwraymond/toolengine/exec"
	"github.com/jonwraymond/toolengine/telemetry"
	"github.com/jonwraymond/toolengine/tool"
)

// Default implementation identity.
const (
	DefaultName    = "toolengine"
	DefaultVersion = "dev"
)

// Options configures a Server.
type Options struct {
	// Name is reported to clients.
	// Default: DefaultName
	Name string

	// Version is reported to clients.
	// Default: DefaultVersion
	Version string

	// Logger is an optional logger for observability.
	Logger telemetry.Logger
}

// Server adapts an Exec to an MCP server.
type Server struct {
	exec   *exec.Exec
	server *mcp.Server
	logger telemetry.Logger
}

// New creates a Server exposing every tool currently registered with e.
func New(e *exec.Exec, opts Options) *Server {
	if opts.Name == "" {
		opts.Name = DefaultName
	}
	if opts.Version == "" {
		opts.Version = DefaultVersion
	}
	s := &Server{
		exec:   e,
		server: mcp.NewServer(&mcp.Implementation{Name: opts.Name, Version: opts.Version}, nil),
		logger: opts.Logger,
	}
	s.Sync()
	return s
}

// Sync publishes tools registered since New. Re-adding an existing tool
// replaces its definition.
func (s *Server) Sync() {
	reg := s.exec.Registry()
	for _, t := range reg.List() {
		def := tool.Definition(t, reg.Namespace())
		mt := def.Tool
		s.server.AddTool(&mt, s.handler(t.Name()))
	}
}

// MCP returns the underlying MCP server.
func (s *Server) MCP() *mcp.Server {
	return s.server
}

// Run serves on transport until ctx is done or the client disconnects.
func (s *Server) Run(ctx context.Context, transport mcp.Transport) error {
	telemetry.Logf(s.logger, "mcp: serving %d tools", s.exec.Registry().Len())
	return s.server.Run(ctx, transport)
}

func (s *Server) handler(name string) mcp.ToolHandler {
	return func(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		params := map[string]any{}
		if raw := req.Params.Arguments; len(raw) > 0 && string(raw) != "null" {
			if err := json.Unmarshal(raw, &params); err != nil {
				return errorResult("invalid arguments: " + err.Error()), nil
			}
		}

		out := s.exec.Execute(ctx, tool.Invocation{Name: name, Parameters: params})
		if !out.Success {
			res := errorResult(out.ErrorMessage)
			res.StructuredContent = out
			return res, nil
		}
		return &mcp.CallToolResult{
			Content:           []mcp.Content{&mcp.TextContent{Text: out.Output}},
			StructuredContent: out,
		}, nil
	}
}

func errorResult(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: msg}},
		IsError: true,
	}
}
