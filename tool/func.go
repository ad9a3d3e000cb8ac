package tool

import (
	"context"
	"errors"
)

// ErrNoHandler is returned when a Func has no handler.
var ErrNoHandler = errors.New("tool has no handler")

// HandlerFunc is the function signature for Func tools.
type HandlerFunc func(ctx context.Context, params map[string]any) (Outcome, error)

// Func adapts a plain function into a Tool.
type Func struct {
	ToolName string
	Summary  string
	Params   Schema
	Tags     []string
	Handler  HandlerFunc
}

// NewFunc creates a Func tool.
func NewFunc(name, description string, params Schema, handler HandlerFunc) *Func {
	return &Func{
		ToolName: name,
		Summary:  description,
		Params:   params,
		Handler:  handler,
	}
}

// Name returns the tool name.
func (f *Func) Name() string {
	return f.ToolName
}

// Description returns the tool description.
func (f *Func) Description() string {
	return f.Summary
}

// Schema returns the parameter schema.
func (f *Func) Schema() Schema {
	if f.Params == nil {
		return Schema{}
	}
	return f.Params
}

// ToolTags returns the discovery tags.
func (f *Func) ToolTags() []string {
	return f.Tags
}

// Execute invokes the handler.
func (f *Func) Execute(ctx context.Context, params map[string]any) (Outcome, error) {
	if f.Handler == nil {
		return Outcome{}, ErrNoHandler
	}
	return f.Handler(ctx, params)
}
