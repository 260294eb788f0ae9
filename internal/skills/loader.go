package skills

import (
	"fmt"
	"os"
	"strings"

	"github.com/xeipuuv/gojsonschema"
	"gopkg.in/yaml.v3"
)

// ValidationError reports every structural problem found in a skills file
// as a single aggregated error, rather than failing on the first one.
type ValidationError struct {
	Path     string
	Messages []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid skills file %s:\n  - %s", e.Path, strings.Join(e.Messages, "\n  - "))
}

// schemaDocument is the structural contract a skills YAML file must
// satisfy: a top-level "skills" array of named, step-bearing entries.
const schemaDocument = `{
  "type": "object",
  "required": ["skills"],
  "properties": {
    "skills": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["name", "steps"],
        "properties": {
          "name": {"type": "string", "minLength": 1},
          "description": {"type": "string"},
          "parameters": {"type": "object"},
          "steps": {
            "type": "array",
            "minItems": 1,
            "items": {
              "type": "object",
              "required": ["tool", "args"],
              "properties": {
                "tool": {"type": "string", "minLength": 1},
                "server": {"type": "string"},
                "args": {"type": "object"},
                "result_var": {"type": "string"},
                "description": {"type": "string"}
              }
            }
          }
        }
      }
    }
  }
}`

type yamlFile struct {
	Skills []yamlSkill `yaml:"skills"`
}

type yamlSkill struct {
	Name        string         `yaml:"name"`
	Description string         `yaml:"description"`
	Parameters  map[string]any `yaml:"parameters"`
	Steps       []yamlStep     `yaml:"steps"`
}

type yamlStep struct {
	Tool        string         `yaml:"tool"`
	Server      string         `yaml:"server"`
	Args        map[string]any `yaml:"args"`
	ResultVar   string         `yaml:"result_var"`
	Description string         `yaml:"description"`
}

// LoadFile reads and strictly validates a skills file. A missing file is
// returned as an *os.PathError via os.ReadFile's own error so callers can
// distinguish "absent, treat as no skills" from "present and malformed,
// fatal" using os.IsNotExist; a present-but-invalid file is reported as a
// single aggregated *ValidationError.
func LoadFile(path string) ([]Skill, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var generic map[string]any
	if err := yaml.Unmarshal(data, &generic); err != nil {
		return nil, &ValidationError{Path: path, Messages: []string{"YAML parse error: " + err.Error()}}
	}

	schemaLoader := gojsonschema.NewStringLoader(schemaDocument)
	docLoader := gojsonschema.NewGoLoader(generic)
	result, err := gojsonschema.Validate(schemaLoader, docLoader)
	if err != nil {
		return nil, &ValidationError{Path: path, Messages: []string{err.Error()}}
	}
	if !result.Valid() {
		messages := make([]string, 0, len(result.Errors()))
		for _, issue := range result.Errors() {
			messages = append(messages, issue.String())
		}
		return nil, &ValidationError{Path: path, Messages: messages}
	}

	var typed yamlFile
	if err := yaml.Unmarshal(data, &typed); err != nil {
		return nil, &ValidationError{Path: path, Messages: []string{"YAML decode error: " + err.Error()}}
	}

	skills := make([]Skill, 0, len(typed.Skills))
	for _, s := range typed.Skills {
		steps := make([]Step, 0, len(s.Steps))
		for _, st := range s.Steps {
			steps = append(steps, Step{
				Tool:        st.Tool,
				Server:      st.Server,
				Args:        st.Args,
				ResultVar:   st.ResultVar,
				Description: st.Description,
			})
		}
		skills = append(skills, Skill{
			Name:        s.Name,
			Description: s.Description,
			Parameters:  s.Parameters,
			Steps:       steps,
		})
	}
	return skills, nil
}
