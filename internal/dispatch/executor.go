package dispatch

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"go.uber.org/zap"

	"github.com/toolmesh/aggregator/internal/registry"
	"github.com/toolmesh/aggregator/internal/skills"
)

// executeSkill runs a skill record's steps in order against a fresh
// context seeded from the caller's args (never the caller's own map), and
// returns the final step's raw, unprocessed result.
func executeSkill(ctx context.Context, tool *registry.ToolRecord, args map[string]any, reg *registry.Registry, inFlight map[registry.Key]struct{}) (*mcp.CallToolResult, error) {
	stepContext := make(map[string]any, len(args))
	for k, v := range args {
		stepContext[k] = v
	}

	var lastResult *mcp.CallToolResult
	for _, step := range tool.Steps {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		substituted, _ := skills.Substitute(step.Args, stepContext).(map[string]any)

		target, err := resolveStepTool(step, reg)
		if err != nil {
			return nil, err
		}

		result, err := executeToolInternal(ctx, target, substituted, reg, inFlight)
		if err != nil {
			return nil, fmt.Errorf("step %q (%s): %w", step.Tool, tool.Name, err)
		}

		if step.ResultVar != "" {
			stepContext[step.ResultVar] = extractStepValue(result)
		}
		lastResult = result
	}

	return lastResult, nil
}

// resolveStepTool finds the tool a step targets: an explicit server pins
// the lookup, otherwise every server is scanned by name and the first
// match (in registry insertion order) is used, with a warning if more than
// one server exposes a tool of that name.
func resolveStepTool(step registry.SkillStep, reg *registry.Registry) (*registry.ToolRecord, error) {
	if step.Server != "" {
		rec, ok := reg.GetTool(step.Server, step.Tool)
		if !ok {
			return nil, &ToolNotFoundError{Tool: step.Tool, Server: step.Server}
		}
		return rec, nil
	}

	matches := reg.FindByName(step.Tool)
	if len(matches) == 0 {
		return nil, &ToolNotFoundError{Tool: step.Tool}
	}
	if len(matches) > 1 {
		logger.Warn("ambiguous step tool name, using first match",
			zap.String("tool", step.Tool), zap.String("chosen_server", matches[0].Server))
	}
	return matches[0], nil
}

// extractStepValue binds a step's result_var: a CallToolResult whose first
// content element is text binds the bare string, everything else binds
// the whole result object.
func extractStepValue(result *mcp.CallToolResult) any {
	if result == nil {
		return nil
	}
	if len(result.Content) > 0 {
		if text, ok := mcp.AsTextContent(result.Content[0]); ok {
			return text.Text
		}
	}
	return result
}
