package facade

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/toolmesh/aggregator/internal/search"
)

func TestNewToleratesMissingConfigAndSkills(t *testing.T) {
	dir := t.TempDir()

	f, err := New(context.Background(), Options{
		ConfigPath: filepath.Join(dir, "does-not-exist.json"),
		SkillsPath: filepath.Join(dir, "also-missing.json"),
		SearchMode: search.ModeFuse,
	})
	require.NoError(t, err)
	require.NotNil(t, f)
	defer f.Close()

	assert.Equal(t, 0, len(f.registry.Snapshot()))
}

func TestHandleSearchToolsRequiresQuery(t *testing.T) {
	f := newTestFacade(t)
	defer f.Close()

	req := mcp.CallToolRequest{Params: mcp.CallToolParams{Arguments: map[string]any{}}}

	result, err := f.handleSearchTools(context.Background(), req)
	require.NoError(t, err)
	require.True(t, result.IsError)
}

func TestHandleCallToolReportsUnknownTool(t *testing.T) {
	f := newTestFacade(t)
	defer f.Close()

	req := mcp.CallToolRequest{Params: mcp.CallToolParams{Arguments: map[string]any{
		"server":   "nonexistent",
		"toolName": "does_not_exist",
	}}}

	result, err := f.handleCallTool(context.Background(), req)
	require.NoError(t, err)
	require.True(t, result.IsError)
}

// newTestFacade builds a Facade with zero configured upstreams, the same
// way New does when no config file is present.
func newTestFacade(t *testing.T) *Facade {
	t.Helper()
	dir := t.TempDir()

	f, err := New(context.Background(), Options{
		ConfigPath: filepath.Join(dir, "does-not-exist.json"),
		SearchMode: search.ModeFuse,
	})
	require.NoError(t, err)
	return f
}
