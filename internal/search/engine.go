/*
Package search implements the aggregator's two query modes: a weighted
fuzzy lexical search over name/description/schema-keyword/server fields,
and a vector-similarity search over precomputed tool embeddings.
*/
package search

import (
	"context"
	"fmt"

	"github.com/toolmesh/aggregator/internal/registry"
)

// Mode selects which of the two search algorithms SearchTools runs.
type Mode string

const (
	ModeFuse   Mode = "fuse"
	ModeVector Mode = "vector"
)

// DefaultLimit is the result count callers pass when they have no limit of
// their own. A limit<=0 is never treated as "use the default": SearchTools
// returns nothing for it.
const DefaultLimit = 5

// Embedder generates a query embedding for vector-mode search. Satisfied
// by *embedding.Service.
type Embedder interface {
	GenerateEmbedding(ctx context.Context, text string) ([]float32, error)
}

// Engine runs searches against a registry's current tool snapshot. Its
// fuzzy index is rebuilt lazily whenever the registry's updatedAt counter
// has advanced since the index was last built.
type Engine struct {
	registry *registry.Registry
	embedder Embedder
	mode     Mode

	cache indexCache
}

// New creates a search engine bound to a registry and a fixed mode. An
// embedder is required only for ModeVector; it may be nil for ModeFuse.
func New(reg *registry.Registry, embedder Embedder, mode Mode) *Engine {
	return &Engine{registry: reg, embedder: embedder, mode: mode}
}

// SearchTools runs the configured mode's algorithm and returns up to limit
// matching records, best match first. limit<=0 yields an empty result
// without error.
func (e *Engine) SearchTools(ctx context.Context, query string, limit int) ([]*registry.ToolRecord, error) {
	if limit <= 0 {
		return nil, nil
	}

	switch e.mode {
	case ModeVector:
		return e.searchVector(ctx, query, limit)
	case ModeFuse, "":
		return e.searchFuzzy(query, limit)
	default:
		return nil, fmt.Errorf("unknown search mode %q", e.mode)
	}
}
