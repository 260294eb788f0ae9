package normalize

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeStripsPunctuationKeepsCyrillic(t *testing.T) {
	got := Normalize("Hello, World!  Привет, МИР!!")
	assert.Equal(t, "hello world привет мир", got)
}

func TestNormalizeCollapsesWhitespace(t *testing.T) {
	assert.Equal(t, "a b c", Normalize("  a   b\t\tc  "))
}

func TestTokenizeDropsShortTokens(t *testing.T) {
	got := Tokenize("Calculates the sum of two numbers.", 4)
	assert.Equal(t, []string{"calculates", "numbers"}, got)
}

func TestExtractKeywordsCalculateSum(t *testing.T) {
	kws := ExtractKeywords("calculate_sum", "Calculates the sum of two numbers.")
	set := toSet(kws)
	for _, want := range []string{"calculate_sum", "calculate", "sum", "calculates", "numbers"} {
		require.Contains(t, set, want)
	}
}

func TestExtractKeywordsMyTool(t *testing.T) {
	kws := ExtractKeywords("my-tool", "")
	set := toSet(kws)
	for _, want := range []string{"my-tool", "my", "tool"} {
		require.Contains(t, set, want)
	}
}

func TestExtractKeywordsDeduplicates(t *testing.T) {
	kws := ExtractKeywords("search_search", "search search search")
	seen := make(map[string]int)
	for _, kw := range kws {
		seen[kw]++
	}
	for kw, count := range seen {
		assert.Equal(t, 1, count, "keyword %q repeated", kw)
	}
}

func toSet(items []string) map[string]struct{} {
	set := make(map[string]struct{}, len(items))
	for _, item := range items {
		set[item] = struct{}{}
	}
	return set
}
