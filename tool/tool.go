package tool

import (
	"context"
	"slices"
	"sort"

	"github.com/jonwraymond/toolfoundation/model"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// Tool is the capability implemented by every executable tool.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Context: Execute must honor cancellation where its I/O allows it.
// - Errors: expected failures are returned as Outcome{Success: false} with a
// nil error; a non-nil error signals an unexpected internal failure.
// - Ownership: params are read-only.
type Tool interface {
	// Name returns the unique name the tool is registered under.
	Name() string

	// Description returns a human readable summary of what the tool does.
	Description() string

	// Schema describes the parameters the tool accepts.
	Schema() Schema

	// Execute runs the tool with the given parameters.
	Execute(ctx context.Context, params map[string]any) (Outcome, error)
}

// Param describes a single tool parameter.
type Param struct {
	Type        string `json:"type" yaml:"type"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
	Required    bool   `json:"required,omitempty" yaml:"required,omitempty"`
	Default     any    `json:"default,omitempty" yaml:"default,omitempty"`
}

// Schema maps parameter names to their descriptions.
type Schema map[string]Param

// Required returns the names of the required parameters, sorted.
func (s Schema) Required() []string {
	var out []string
	for name, p := range s {
		if p.Required {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}

// InputSchema renders the schema as a JSON Schema object.
func (s Schema) InputSchema() map[string]any {
	props := make(map[string]any, len(s))
	for name, p := range s {
		prop := map[string]any{}
		if p.Type != "" {
			prop["type"] = p.Type
		}
		if p.Description != "" {
			prop["description"] = p.Description
		}
		if p.Default != nil {
			prop["default"] = p.Default
		}
		props[name] = prop
	}
	out := map[string]any{
		"type":       "object",
		"properties": props,
	}
	if req := s.Required(); len(req) > 0 {
		reqAny := make([]any, len(req))
		for i, r := range req {
			reqAny[i] = r
		}
		out["required"] = reqAny
	}
	return out
}

// Invocation is a request to run a tool, as produced by the parser.
// Confidence and SourceText are carried through but never interpreted.
type Invocation struct {
	Name       string         `json:"name" yaml:"name"`
	Parameters map[string]any `json:"parameters,omitempty" yaml:"parameters,omitempty"`
	Confidence float64        `json:"confidence,omitempty" yaml:"confidence,omitempty"`
	SourceText string         `json:"sourceText,omitempty" yaml:"sourceText,omitempty"`
}

// Outcome is the result of running a tool. All failure paths of the engine
// converge to this shape.
type Outcome struct {
	Success bool `json:"success"`

	Output string `json:"output"`

	// ErrorMessage is empty when the tool succeeded.
	ErrorMessage string `json:"errorMessage,omitempty"`

	DurationMs int64 `json:"executionDurationMs"`
}

// Success returns a successful outcome carrying output.
func Success(output string) Outcome {
	return Outcome{Success: true, Output: output}
}

// Failure returns a failed outcome carrying message.
func Failure(message string) Outcome {
	return Outcome{Success: false, ErrorMessage: message}
}

// Tagged is implemented by tools that carry discovery tags.
type Tagged interface {
	ToolTags() []string
}

// Definition converts t into the toolfoundation model used for discovery
// and MCP exposure.
func Definition(t Tool, namespace string) model.Tool {
	def := model.Tool{
		Tool: mcp.Tool{
			Name:        t.Name(),
			Description: t.Description(),
			InputSchema: t.Schema().InputSchema(),
		},
		Namespace: namespace,
	}
	if tagged, ok := t.(Tagged); ok {
		def.Tags = slices.Clone(tagged.ToolTags())
	}
	return def
}
