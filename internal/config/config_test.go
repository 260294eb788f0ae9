package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "mcp-config.json")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadFromMissingFileIsConfigNotFound(t *testing.T) {
	_, err := LoadFrom(filepath.Join(t.TempDir(), "missing.json"))
	require.Error(t, err)
	var notFound *ConfigNotFoundError
	assert.ErrorAs(t, err, &notFound)
}

func TestLoadFromInvalidJSONIsInvalidConfig(t *testing.T) {
	path := writeConfig(t, `{not json`)
	_, err := LoadFrom(path)
	require.Error(t, err)
	var invalid *InvalidConfigError
	assert.ErrorAs(t, err, &invalid)
}

func TestLoadFromParsesServers(t *testing.T) {
	path := writeConfig(t, `{
		"mcpServers": {
			"alpha": {"command": "npx", "args": ["-y", "@a/alpha"]},
			"beta": {"command": "beta-bin", "env": {"FOO": "bar"}}
		}
	}`)

	cfg, err := LoadFrom(path)
	require.NoError(t, err)
	require.Len(t, cfg.Servers, 2)
	assert.Equal(t, "npx", cfg.Servers["alpha"].Command)
	assert.Equal(t, "bar", cfg.Servers["beta"].Env["FOO"])
}

func TestLoadFromPreservesServerOrder(t *testing.T) {
	path := writeConfig(t, `{
		"mcpServers": {
			"zeta": {"command": "z"},
			"alpha": {"command": "a"},
			"mid": {"command": "m"}
		}
	}`)

	cfg, err := LoadFrom(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"zeta", "alpha", "mid"}, cfg.ServerNames())
}

func TestNewConfigIsEmptyAndValid(t *testing.T) {
	cfg := NewConfig()
	assert.Empty(t, cfg.Servers)
	assert.Empty(t, cfg.ServerNames())
}
