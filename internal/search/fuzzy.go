package search

import (
	"math"
	"sort"
	"strings"
	"sync"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/mapping"

	"github.com/toolmesh/aggregator/internal/normalize"
	"github.com/toolmesh/aggregator/internal/registry"
)

// fieldWeights mirrors the relative importance of each searchable field:
// a hit on the tool's own name counts for far more than one buried in its
// schema keywords.
var fieldWeights = map[string]float64{
	"name":           0.50,
	"description":    0.30,
	"schemaKeywords": 0.15,
	"server":         0.05,
}

// coverageBallast is the margin within which two candidates' coverage
// scores are considered tied, falling through to the native fuzzy score as
// the tiebreaker.
const coverageBallast = 0.1

// indexCache holds the fuzzy index together with the registry version it
// was built from, rebuilt only when that version has advanced — the
// registry-field equivalent of keying a cache by the registry's identity.
type indexCache struct {
	mu      sync.Mutex
	index   bleve.Index
	builtAt uint64
}

type bleveHit struct {
	key   registry.Key
	score float64
}

func buildIndexMapping() mapping.IndexMapping {
	fieldMapping := bleve.NewTextFieldMapping()

	doc := bleve.NewDocumentMapping()
	doc.AddFieldMappingsAt("name", fieldMapping)
	doc.AddFieldMappingsAt("description", fieldMapping)
	doc.AddFieldMappingsAt("schemaKeywords", fieldMapping)
	doc.AddFieldMappingsAt("server", fieldMapping)

	m := bleve.NewIndexMapping()
	m.AddDocumentMapping("_default", doc)
	return m
}

func docID(rec *registry.ToolRecord) string {
	return rec.Server + "\x00" + rec.Name
}

// ensureIndex rebuilds the fuzzy index from the registry's current
// snapshot if the registry has mutated since the last build, otherwise
// reuses it.
func (e *Engine) ensureIndex() (bleve.Index, error) {
	e.cache.mu.Lock()
	defer e.cache.mu.Unlock()

	current := e.registry.UpdatedAt()
	if e.cache.index != nil && e.cache.builtAt == current {
		return e.cache.index, nil
	}

	if e.cache.index != nil {
		e.cache.index.Close()
	}

	idx, err := bleve.NewMemOnly(buildIndexMapping())
	if err != nil {
		return nil, err
	}

	batch := idx.NewBatch()
	for _, rec := range e.registry.Snapshot() {
		doc := map[string]any{
			"name":           rec.Name,
			"description":    rec.Description,
			"schemaKeywords": rec.SchemaKeywords,
			"server":         rec.Server,
		}
		if err := batch.Index(docID(rec), doc); err != nil {
			continue
		}
	}
	if err := idx.Batch(batch); err != nil {
		idx.Close()
		return nil, err
	}

	e.cache.index = idx
	e.cache.builtAt = current
	return idx, nil
}

// runFieldWeightedQuery searches every weighted field for text and returns
// raw hits with bleve's native match score. Deduplicating by (server, name)
// is the caller's job.
func (e *Engine) runFieldWeightedQuery(idx bleve.Index, text string, limit int) ([]bleveHit, error) {
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}

	disjunction := bleve.NewDisjunctionQuery()
	for field, weight := range fieldWeights {
		fieldQuery := bleve.NewMatchQuery(text)
		fieldQuery.SetField(field)
		fieldQuery.SetBoost(weight)
		fieldQuery.SetFuzziness(2)
		disjunction.AddQuery(fieldQuery)
	}

	req := bleve.NewSearchRequestOptions(disjunction, limit, 0, false)
	req.Fields = []string{"name", "server"}

	result, err := idx.Search(req)
	if err != nil {
		return nil, err
	}

	hits := make([]bleveHit, 0, len(result.Hits))
	for _, hit := range result.Hits {
		name, _ := hit.Fields["name"].(string)
		server, _ := hit.Fields["server"].(string)
		hits = append(hits, bleveHit{key: registry.Key{Server: server, Name: name}, score: hit.Score})
	}
	return hits, nil
}

type scoredCandidate struct {
	rec            *registry.ToolRecord
	coverage       float64
	nativeDistance float64
}

// searchFuzzy implements §4.4.1's algorithm: an initial query against the
// weighted index, a per-token fallback pass if that under-fills limit, then
// a two-level sort by coverage score and native fuzzy score.
func (e *Engine) searchFuzzy(query string, limit int) ([]*registry.ToolRecord, error) {
	idx, err := e.ensureIndex()
	if err != nil {
		return nil, err
	}

	lowered := strings.ToLower(query)
	seen := make(map[registry.Key]bleveHit)

	initial, err := e.runFieldWeightedQuery(idx, lowered, limit*4)
	if err != nil {
		return nil, err
	}
	for _, h := range initial {
		seen[h.key] = h
	}

	if len(seen) < limit {
		for _, tok := range normalize.Tokenize(lowered, 4) {
			more, err := e.runFieldWeightedQuery(idx, tok, limit*4)
			if err != nil {
				continue
			}
			for _, h := range more {
				if _, exists := seen[h.key]; !exists {
					seen[h.key] = h
				}
			}
		}
	}

	coverageTokens := normalize.Tokenize(query, 2)

	candidates := make([]scoredCandidate, 0, len(seen))
	for key, hit := range seen {
		rec, ok := e.registry.GetTool(key.Server, key.Name)
		if !ok {
			continue
		}
		candidates = append(candidates, scoredCandidate{
			rec:            rec,
			coverage:       coverageScore(rec, coverageTokens),
			nativeDistance: -hit.score,
		})
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		if math.Abs(candidates[i].coverage-candidates[j].coverage) > coverageBallast {
			return candidates[i].coverage > candidates[j].coverage
		}
		return candidates[i].nativeDistance < candidates[j].nativeDistance
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

// coverageScore counts how many query tokens appear in a candidate's
// normalized text, with a bonus when the token also appears in the bare
// tool name — a direct name hit should usually outrank a hit buried only
// in the description or schema keywords.
func coverageScore(rec *registry.ToolRecord, tokens []string) float64 {
	lowerName := strings.ToLower(rec.Name)
	score := 0.0
	for _, tok := range tokens {
		if tok == "" {
			continue
		}
		if strings.Contains(rec.NormalizedText, tok) {
			score++
			if strings.Contains(lowerName, tok) {
				score += 0.5
			}
		}
	}
	return score
}
