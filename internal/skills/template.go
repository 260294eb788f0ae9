package skills

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

// placeholderPattern matches a single {{ name }} reference, ignoring
// whitespace immediately inside the braces.
var placeholderPattern = regexp.MustCompile(`\{\{\s*([^{}\s]+)\s*\}\}`)

// Substitute recursively resolves {{var}} placeholders in value against
// context. Strings, maps, and slices are walked; every other type passes
// through unchanged. A string that is, in its entirety, a single
// placeholder returns the bound value's raw type (so an array or object
// survives substitution intact); any other string undergoes textual
// substitution via each resolved value's string form, leaving undefined
// variables as literal text.
func Substitute(value any, context map[string]any) any {
	switch v := value.(type) {
	case string:
		return substituteString(v, context)
	case map[string]any:
		out := make(map[string]any, len(v))
		for key, inner := range v {
			out[key] = Substitute(inner, context)
		}
		return out
	case []any:
		out := make([]any, len(v))
		for i, inner := range v {
			out[i] = Substitute(inner, context)
		}
		return out
	default:
		return v
	}
}

func substituteString(s string, context map[string]any) any {
	if name, ok := wholePlaceholderName(s); ok {
		if val, exists := context[name]; exists {
			return val
		}
		return s
	}

	return placeholderPattern.ReplaceAllStringFunc(s, func(match string) string {
		name := strings.TrimSpace(match[2 : len(match)-2])
		if val, exists := context[name]; exists {
			return stringify(val)
		}
		return match
	})
}

// wholePlaceholderName reports whether s is, from start to end, exactly one
// placeholder: it begins with "{{", ends with "}}", and contains no second
// "{{" after the opening one.
func wholePlaceholderName(s string) (string, bool) {
	if !strings.HasPrefix(s, "{{") || !strings.HasSuffix(s, "}}") {
		return "", false
	}
	body := s[2 : len(s)-2]
	if strings.Contains(body, "{{") {
		return "", false
	}
	name := strings.TrimSpace(body)
	if name == "" {
		return "", false
	}
	return name, true
}

// stringify renders a resolved placeholder value for textual
// substitution: nil renders as the empty string, arrays join their elements
// with commas, objects render as JSON, and everything else uses its default
// formatting.
func stringify(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case []any:
		parts := make([]string, len(v))
		for i, item := range v {
			parts[i] = stringify(item)
		}
		return strings.Join(parts, ",")
	case map[string]any:
		data, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return string(data)
	default:
		return fmt.Sprintf("%v", v)
	}
}
