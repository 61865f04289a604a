// Package tools provides the tool definitions exposed over MCP.
//
// Each tool is standalone: a name, a JSON schema for its arguments and
// an execute function returning a JSON string. Tools register
// themselves into a Registry, and the MCP server lists and dispatches
// from it without knowing any tool's internals.
package tools

import (
	"context"
)

// ToolCategory classifies tools for listing and filtering.
type ToolCategory string

const (
	// CategoryContract covers validation and structure analysis of
	// Compact source.
	CategoryContract ToolCategory = "contract"

	// CategoryDocs covers documentation and release note retrieval.
	CategoryDocs ToolCategory = "docs"

	// CategorySearch covers semantic search over indexed examples.
	CategorySearch ToolCategory = "search"

	// CategoryGeneral is for tools that fit no specific category.
	CategoryGeneral ToolCategory = "general"
)

// Property describes a single parameter property for JSON schema.
type Property struct {
	Type        string `json:"type"`
	Description string `json:"description"`
	Default     any    `json:"default,omitempty"`
	Enum        []any  `json:"enum,omitempty"`
	// Items describes array element schema (required for type="array")
	Items *PropertyItems `json:"items,omitempty"`
}

// PropertyItems describes the schema for array elements.
type PropertyItems struct {
	Type string `json:"type"`
}

// ToolSchema defines the JSON schema for tool arguments.
type ToolSchema struct {
	// Required lists parameters that must be provided.
	Required []string `json:"required"`

	// Properties describes each parameter.
	Properties map[string]Property `json:"properties"`
}

// ExecuteFunc is the signature for tool execution.
// Returns the result string (JSON) and any error.
type ExecuteFunc func(ctx context.Context, args map[string]any) (string, error)

// Tool defines one MCP-exposed tool.
type Tool struct {
	// Name is the unique identifier for the tool.
	Name string

	// Description explains what the tool does. Shown to the LLM in
	// tools/list, so it should say when to reach for the tool.
	Description string

	// Category classifies the tool for filtering.
	Category ToolCategory

	// Execute runs the tool with the given arguments.
	Execute ExecuteFunc

	// Schema defines the expected arguments.
	Schema ToolSchema

	// Priority orders tools within a category (default 50).
	Priority int
}

// Validate checks if the tool definition is valid.
func (t *Tool) Validate() error {
	if t.Name == "" {
		return ErrToolNameEmpty
	}
	if t.Execute == nil {
		return ErrToolExecuteNil
	}
	return nil
}

// WithPriority returns a copy of the tool with the given priority.
func (t *Tool) WithPriority(priority int) *Tool {
	copy := *t
	copy.Priority = priority
	return &copy
}

// ToolResult wraps the result of tool execution with metadata.
type ToolResult struct {
	// RequestID is a unique id assigned per invocation, carried into
	// the logs so one request can be traced end to end.
	RequestID string

	// ToolName identifies which tool was executed.
	ToolName string

	// Result is the string output from the tool.
	Result string

	// Error is set if the tool failed.
	Error error

	// DurationMs is how long execution took.
	DurationMs int64
}

// IsSuccess returns true if the tool executed without error.
func (r *ToolResult) IsSuccess() bool {
	return r.Error == nil
}
