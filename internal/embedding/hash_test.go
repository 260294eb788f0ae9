package embedding

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateServerHashIsDeterministic(t *testing.T) {
	h1, err := GenerateServerHash("weather", "npx", []string{"-y", "@a/weather"}, map[string]string{"API_KEY": "x"})
	require.NoError(t, err)
	h2, err := GenerateServerHash("weather", "npx", []string{"-y", "@a/weather"}, map[string]string{"API_KEY": "x"})
	require.NoError(t, err)
	assert.Equal(t, h1, h2)
}

func TestGenerateServerHashIgnoresEnvDeclarationOrder(t *testing.T) {
	h1, err := GenerateServerHash("srv", "cmd", nil, map[string]string{"A": "1", "B": "2"})
	require.NoError(t, err)
	h2, err := GenerateServerHash("srv", "cmd", nil, map[string]string{"B": "2", "A": "1"})
	require.NoError(t, err)
	assert.Equal(t, h1, h2)
}

func TestGenerateServerHashDiffersOnCommandChange(t *testing.T) {
	h1, err := GenerateServerHash("srv", "cmd-a", nil, nil)
	require.NoError(t, err)
	h2, err := GenerateServerHash("srv", "cmd-b", nil, nil)
	require.NoError(t, err)
	assert.NotEqual(t, h1, h2)
}
