/*
Package dispatch routes a resolved tool record to its execution: a live
upstream call for ordinary tools, or the skills executor for skill
records. The dispatcher and the skills executor live in the same package
because they mutually recurse — a skill step can itself target another
skill — and Go has no way to split mutually recursive logic across two
packages without an import cycle.
*/
package dispatch

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"go.uber.org/zap"

	"github.com/toolmesh/aggregator/internal/registry"
)

var logger = zap.NewNop()

// SetLogger wires the package's logger, read once at startup like every
// other ambient dependency.
func SetLogger(l *zap.Logger) {
	if l != nil {
		logger = l
	}
}

// ToolNotFoundError is returned when a skill step (or a direct call_tool
// request) names a tool the registry has no record of.
type ToolNotFoundError struct {
	Tool   string
	Server string
}

func (e *ToolNotFoundError) Error() string {
	if e.Server != "" {
		return fmt.Sprintf("tool not found: %s on server %s", e.Tool, e.Server)
	}
	return fmt.Sprintf("tool not found: %s", e.Tool)
}

// SkillRecursionError is returned when a skill's step graph would invoke a
// skill that is already executing on the current call stack.
type SkillRecursionError struct {
	Skill string
}

func (e *SkillRecursionError) Error() string {
	return fmt.Sprintf("skill %q recursively invokes itself", e.Skill)
}

// ExecuteTool runs tool with args, delegating to the skills executor if
// tool.IsSkill, otherwise calling the tool's live upstream client
// directly. registry may be nil only when tool is known not to be a skill.
func ExecuteTool(ctx context.Context, tool *registry.ToolRecord, args map[string]any, reg *registry.Registry) (*mcp.CallToolResult, error) {
	return executeToolInternal(ctx, tool, args, reg, nil)
}

func executeToolInternal(ctx context.Context, tool *registry.ToolRecord, args map[string]any, reg *registry.Registry, inFlight map[registry.Key]struct{}) (*mcp.CallToolResult, error) {
	if tool.IsSkill {
		if reg == nil {
			return nil, fmt.Errorf("skill %q requires a registry to resolve its steps", tool.Name)
		}

		key := registry.Key{Server: tool.Server, Name: tool.Name}
		if _, active := inFlight[key]; active {
			return nil, &SkillRecursionError{Skill: tool.Name}
		}

		nextInFlight := make(map[registry.Key]struct{}, len(inFlight)+1)
		for k := range inFlight {
			nextInFlight[k] = struct{}{}
		}
		nextInFlight[key] = struct{}{}

		return executeSkill(ctx, tool, args, reg, nextInFlight)
	}

	client := tool.Client()
	if client == nil {
		return nil, fmt.Errorf("tool %s/%s has no live upstream connection", tool.Server, tool.Name)
	}
	return client.CallTool(ctx, tool.Name, args)
}
