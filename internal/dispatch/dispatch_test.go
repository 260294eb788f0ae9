package dispatch

import (
	"context"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/toolmesh/aggregator/internal/registry"
)

type recordingClient struct {
	calls []map[string]any
	text  string
}

func (c *recordingClient) ListTools(ctx context.Context) ([]mcp.Tool, error) { return nil, nil }

func (c *recordingClient) CallTool(ctx context.Context, name string, arguments map[string]any) (*mcp.CallToolResult, error) {
	c.calls = append(c.calls, arguments)
	return &mcp.CallToolResult{
		Content: []mcp.Content{mcp.TextContent{Type: "text", Text: c.text}},
	}, nil
}

func (c *recordingClient) Close() error { return nil }

type listingClient struct{ tools []mcp.Tool }

func (c *listingClient) ListTools(ctx context.Context) ([]mcp.Tool, error) { return c.tools, nil }
func (c *listingClient) CallTool(ctx context.Context, name string, arguments map[string]any) (*mcp.CallToolResult, error) {
	return &mcp.CallToolResult{Content: []mcp.Content{mcp.TextContent{Type: "text", Text: "ok:" + name}}}, nil
}
func (c *listingClient) Close() error { return nil }

type namedToolClient struct {
	recordingClient
	tool mcp.Tool
}

func (c *namedToolClient) ListTools(ctx context.Context) ([]mcp.Tool, error) {
	return []mcp.Tool{c.tool}, nil
}

func TestExecuteToolCallsUpstreamClientDirectly(t *testing.T) {
	reg := registry.New(nil)
	client := &namedToolClient{recordingClient: recordingClient{text: "sunny"}, tool: mcp.Tool{Name: "get_weather"}}
	_, err := reg.ConnectServer(context.Background(), "weather-srv", client, registry.ConnectOptions{})
	require.NoError(t, err)

	tool, ok := reg.GetTool("weather-srv", "get_weather")
	require.True(t, ok)

	result, err := ExecuteTool(context.Background(), tool, map[string]any{"city": "Paris"}, nil)
	require.NoError(t, err)
	require.Len(t, result.Content, 1)
	text, _ := mcp.AsTextContent(result.Content[0])
	assert.Equal(t, "sunny", text.Text)
}

func TestExecuteSkillDoesNotMutateCallerArgs(t *testing.T) {
	reg := registry.New(nil)
	client := &listingClient{}
	_, err := reg.ConnectServer(context.Background(), "demo", client, registry.ConnectOptions{})
	require.NoError(t, err)

	callerArgs := map[string]any{"city": "Paris"}
	skill := &registry.ToolRecord{
		Server:  registry.InternalServer,
		Name:    "no_op_skill",
		IsSkill: true,
		Steps:   nil,
	}

	result, err := ExecuteTool(context.Background(), skill, callerArgs, reg)
	require.NoError(t, err)
	assert.Nil(t, result)
	assert.Equal(t, map[string]any{"city": "Paris"}, callerArgs)
}

func TestExecuteSkillChainsResultVarBetweenSteps(t *testing.T) {
	reg := registry.New(nil)
	_, err := reg.ConnectServer(context.Background(), "demo", &listingClient{tools: []mcp.Tool{{Name: "get_weather"}, {Name: "summarize"}}}, registry.ConnectOptions{})
	require.NoError(t, err)

	steps := []registry.SkillStep{
		{Tool: "get_weather", Args: map[string]any{"city": "{{city}}"}, ResultVar: "weather"},
		{Tool: "summarize", Args: map[string]any{"text": "{{weather}}"}},
	}
	require.NoError(t, reg.RegisterSkill("weather_report", "", nil, steps, nil))

	skill, ok := reg.GetTool(registry.InternalServer, "weather_report")
	require.True(t, ok)

	result, err := ExecuteTool(context.Background(), skill, map[string]any{"city": "Paris"}, reg)
	require.NoError(t, err)
	text, _ := mcp.AsTextContent(result.Content[0])
	assert.Equal(t, "ok:summarize", text.Text)
}

func TestExecuteSkillRefusesDirectRecursion(t *testing.T) {
	reg := registry.New(nil)

	steps := []registry.SkillStep{{Tool: "self_referencing"}}
	require.NoError(t, reg.RegisterSkill("self_referencing", "", nil, steps, nil))

	skill, ok := reg.GetTool(registry.InternalServer, "self_referencing")
	require.True(t, ok)

	_, err := ExecuteTool(context.Background(), skill, map[string]any{}, reg)
	require.Error(t, err)
	var recursionErr *SkillRecursionError
	assert.ErrorAs(t, err, &recursionErr)
}

func TestExecuteSkillUnknownStepToolIsNotFound(t *testing.T) {
	reg := registry.New(nil)
	steps := []registry.SkillStep{{Tool: "does_not_exist"}}
	require.NoError(t, reg.RegisterSkill("broken", "", nil, steps, nil))

	skill, ok := reg.GetTool(registry.InternalServer, "broken")
	require.True(t, ok)

	_, err := ExecuteTool(context.Background(), skill, map[string]any{}, reg)
	require.Error(t, err)
	var notFound *ToolNotFoundError
	assert.ErrorAs(t, err, &notFound)
}
