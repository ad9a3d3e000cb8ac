package exec

import (
	"errors"

	"github.com/jonwraymond/tooldiscovery/index"

	"github.com/jonwraymond/toolengine/tool"
)

// ErrToolFailed marks a batch result whose outcome was not successful.
// The outcome itself is still available as the result's Value.
var ErrToolFailed = errors.New("tool failed")

// BatchInvocation is one entry of ExecuteBatch.
type BatchInvocation struct {
	// ID identifies the result. A random ID is assigned when empty.
	ID string `yaml:"id" json:"id"`

	// Priority orders starts; higher runs first.
	Priority int `yaml:"priority" json:"priority"`

	tool.Invocation `yaml:",inline"`
}

// ToolSummary is an alias to index.Summary for search results.
type ToolSummary = index.Summary
