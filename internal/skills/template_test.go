package skills

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSubstituteWholePlaceholderPreservesType(t *testing.T) {
	ctx := map[string]any{"x": []any{1, 2}}
	got := Substitute("{{x}}", ctx)
	assert.Equal(t, []any{1, 2}, got)
}

func TestSubstituteWholePlaceholderIgnoresInnerWhitespace(t *testing.T) {
	ctx := map[string]any{"x": 42}
	got := Substitute("{{ x }}", ctx)
	assert.Equal(t, 42, got)
}

func TestSubstitutePartialPlaceholderStringifiesArray(t *testing.T) {
	ctx := map[string]any{"x": []any{1, 2}}
	got := Substitute("a {{x}} b", ctx)
	assert.Equal(t, "a 1,2 b", got)
}

func TestSubstituteUndefinedVarLeftLiteral(t *testing.T) {
	got := Substitute("hello {{missing}}", map[string]any{})
	assert.Equal(t, "hello {{missing}}", got)

	gotWhole := Substitute("{{missing}}", map[string]any{})
	assert.Equal(t, "{{missing}}", gotWhole)
}

func TestSubstituteRecursesIntoNestedStructures(t *testing.T) {
	ctx := map[string]any{"city": "Paris", "days": []any{1, 2, 3}}
	input := map[string]any{
		"location": "{{city}}",
		"nested": map[string]any{
			"forecast_days": "{{days}}",
			"note":          "for {{city}}",
		},
	}

	got := Substitute(input, ctx)
	gotMap := got.(map[string]any)
	assert.Equal(t, "Paris", gotMap["location"])

	nested := gotMap["nested"].(map[string]any)
	assert.Equal(t, []any{1, 2, 3}, nested["forecast_days"])
	assert.Equal(t, "for Paris", nested["note"])
}

func TestSubstituteDoesNotMutateContext(t *testing.T) {
	ctx := map[string]any{"x": []any{1, 2}}
	_ = Substitute(map[string]any{"a": "{{x}}"}, ctx)
	assert.Equal(t, []any{1, 2}, ctx["x"])
}
