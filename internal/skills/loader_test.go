package skills

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeSkillsFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "skills.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadFileParsesSkillsAndSteps(t *testing.T) {
	path := writeSkillsFile(t, `
skills:
  - name: weather_report
    description: Summarises today's weather for a city
    parameters:
      city:
        type: string
    steps:
      - tool: get_weather
        args:
          city: "{{ city }}"
        result_var: weather
`)

	result, err := LoadFile(path)
	require.NoError(t, err)
	require.Len(t, result, 1)

	skill := result[0]
	assert.Equal(t, "weather_report", skill.Name)
	require.Len(t, skill.Steps, 1)
	assert.Equal(t, "get_weather", skill.Steps[0].Tool)
	assert.Equal(t, "weather", skill.Steps[0].ResultVar)
}

func TestLoadFileMissingReturnsNotExist(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.True(t, os.IsNotExist(err))
}

func TestLoadFileMalformedAggregatesStructuralErrors(t *testing.T) {
	path := writeSkillsFile(t, `
skills:
  - description: missing a name
    steps: []
`)

	_, err := LoadFile(path)
	require.Error(t, err)
	var validationErr *ValidationError
	require.ErrorAs(t, err, &validationErr)
	assert.NotEmpty(t, validationErr.Messages)
}

func TestLoadFileStepWithoutToolIsInvalid(t *testing.T) {
	path := writeSkillsFile(t, `
skills:
  - name: broken
    steps:
      - args:
          foo: bar
`)

	_, err := LoadFile(path)
	require.Error(t, err)
	var validationErr *ValidationError
	require.ErrorAs(t, err, &validationErr)
}
