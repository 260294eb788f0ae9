package registry

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"
)

// Client is the upstream MCP client handle a non-skill tool record is
// bound to. It is satisfied by the stdio-transport client in upstream.go;
// tests substitute a fake.
type Client interface {
	ListTools(ctx context.Context) ([]mcp.Tool, error)
	CallTool(ctx context.Context, name string, arguments map[string]any) (*mcp.CallToolResult, error)
	Close() error
}

// SkillStep is one step of a skill's body: a call to an upstream tool (or
// another skill) with templated arguments.
type SkillStep struct {
	Tool        string
	Server      string // optional; empty means "resolve by name"
	Args        map[string]any
	ResultVar   string
	Description string
}

// ToolRecord is the registry's unit: either a live upstream tool (a
// client handle, no steps) or a skill (steps, no client handle). The two
// shapes are distinguished by IsSkill rather than by runtime property
// probing.
type ToolRecord struct {
	Server         string
	Name           string
	Description    string
	Schema         map[string]any
	SchemaKeywords string
	NormalizedText string
	Embedding      []float32

	IsSkill bool
	Steps   []SkillStep

	client Client
}

// Client returns the upstream handle for a non-skill record, or nil for a
// skill record.
func (t *ToolRecord) Client() Client {
	return t.client
}

// Key is the (server, name) primary key as used by the secondary index.
type Key struct {
	Server string
	Name   string
}
