// Package normalize provides the text normalisation and keyword extraction
// primitives shared by the search engine and the tool registry.
package normalize

import (
	"strings"
	"unicode"
)

// Normalize lowercases s, replaces any rune outside [A-Za-z0-9_\s + Cyrillic]
// with a space, collapses whitespace runs, and trims the result.
func Normalize(s string) string {
	var b strings.Builder
	b.Grow(len(s))

	for _, r := range strings.ToLower(s) {
		if isAllowedRune(r) {
			b.WriteRune(r)
		} else {
			b.WriteRune(' ')
		}
	}

	return collapseWhitespace(b.String())
}

func isAllowedRune(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z':
		return true
	case r >= '0' && r <= '9':
		return true
	case r == '_' || unicode.IsSpace(r):
		return true
	case r >= 'а' && r <= 'я':
		return true
	case r == 'ё':
		return true
	}
	return false
}

func collapseWhitespace(s string) string {
	fields := strings.Fields(s)
	return strings.TrimSpace(strings.Join(fields, " "))
}

// Tokenize normalises s and splits it on whitespace, dropping tokens
// shorter than minLen.
func Tokenize(s string, minLen int) []string {
	normalized := Normalize(s)
	if normalized == "" {
		return nil
	}

	var tokens []string
	for _, tok := range strings.Fields(normalized) {
		if len([]rune(tok)) >= minLen {
			tokens = append(tokens, tok)
		}
	}
	return tokens
}

// ExtractKeywords builds the deduplicated keyword set for a tool: the
// lowercased whole name, each name fragment split on "_" or "-" (length >= 2),
// and every token (minLen 4) extracted from the description.
func ExtractKeywords(name, description string) []string {
	seen := make(map[string]struct{})
	var keywords []string

	add := func(kw string) {
		if kw == "" {
			return
		}
		if _, ok := seen[kw]; ok {
			return
		}
		seen[kw] = struct{}{}
		keywords = append(keywords, kw)
	}

	lowerName := strings.ToLower(name)
	add(lowerName)

	for _, piece := range splitNameFragments(lowerName) {
		if len([]rune(piece)) >= 2 {
			add(piece)
		}
	}

	for _, tok := range Tokenize(description, 4) {
		add(tok)
	}

	return keywords
}

func splitNameFragments(name string) []string {
	return strings.FieldsFunc(name, func(r rune) bool {
		return r == '_' || r == '-'
	})
}
