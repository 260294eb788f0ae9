package search

import (
	"context"
	"fmt"
	"sort"

	"github.com/toolmesh/aggregator/internal/registry"
)

// vectorScoreThreshold is the strict lower bound on cosine similarity
// (dot product of two L2-normalised vectors) a record must clear to be
// considered a vector-mode match at all.
const vectorScoreThreshold = 0.35

// searchVector implements §4.4.2: embed the query, score every record that
// has an embedding by cosine similarity, keep only scores strictly above
// the threshold, and return the top-limit descending.
func (e *Engine) searchVector(ctx context.Context, query string, limit int) ([]*registry.ToolRecord, error) {
	if e.embedder == nil {
		return nil, fmt.Errorf("vector search mode requires an embedding service")
	}

	queryVector, err := e.embedder.GenerateEmbedding(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("generate query embedding: %w", err)
	}

	type scored struct {
		rec   *registry.ToolRecord
		score float64
	}

	var candidates []scored
	for _, rec := range e.registry.Snapshot() {
		if len(rec.Embedding) == 0 {
			continue
		}
		sim := dotProduct(queryVector, rec.Embedding)
		if sim <= vectorScoreThreshold {
			continue
		}
		candidates = append(candidates, scored{rec: rec, score: sim})
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].score > candidates[j].score
	})
	if len(candidates) > limit {
		candidates = candidates[:limit]
	}

	out := make([]*registry.ToolRecord, len(candidates))
	for i, c := range candidates {
		out[i] = c.rec
	}
	return out, nil
}

// dotProduct computes the cosine similarity of two already L2-normalised
// vectors. Mismatched lengths (which should not happen in practice) are
// handled by comparing only over the shorter vector's length.
func dotProduct(a, b []float32) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var sum float64
	for i := 0; i < n; i++ {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}
