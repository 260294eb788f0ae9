/*
Package registry implements the tool registry: upstream MCP client
lifecycle, tool enumeration, keyword and embedding attachment, skill
ingestion, and the (server, name) lookup index.
*/
package registry

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/mark3labs/mcp-go/mcp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/toolmesh/aggregator/internal/normalize"
)

// embeddingConcurrency caps the number of in-flight embedding generations within
// a single connectServer call (§5: "batch size ≈ 10 concurrent in-flight
// generations").
const embeddingConcurrency = 10

// InternalServer is the synthetic server name skill records are attached
// to.
const InternalServer = "internal"

// Embedder generates an L2-normalised embedding for a piece of text. It is
// satisfied by *embedding.Service; kept as a narrow interface here so the
// registry does not need to depend on the embedding package's wazero/cache
// plumbing for testing.
type Embedder interface {
	GenerateEmbedding(ctx context.Context, text string) ([]float32, error)
}

// Registry holds the aggregate tool catalogue: an ordered sequence of
// records plus a (server, name) index, plus a monotonically
// non-decreasing updatedAt counter other components use to invalidate
// derived caches (the fuzzy search index in particular).
type Registry struct {
	mu        sync.RWMutex
	records   []*ToolRecord
	index     map[Key]*ToolRecord
	updatedAt uint64

	logger *zap.Logger
}

// New creates an empty registry.
func New(logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		index:  make(map[Key]*ToolRecord),
		logger: logger,
	}
}

// UpdatedAt returns the current registry version.
func (r *Registry) UpdatedAt() uint64 {
	return atomic.LoadUint64(&r.updatedAt)
}

// GetTool is the O(1) (server, name) lookup.
func (r *Registry) GetTool(server, name string) (*ToolRecord, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.index[Key{Server: server, Name: name}]
	return rec, ok
}

// FindByName returns every record across all servers whose name matches,
// in registry insertion order. Used by the skills executor when a step
// omits an explicit server.
func (r *Registry) FindByName(name string) []*ToolRecord {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var matches []*ToolRecord
	for _, rec := range r.records {
		if rec.Name == name {
			matches = append(matches, rec)
		}
	}
	return matches
}

// Snapshot returns a copy of the current record sequence. The copy is safe
// to read concurrently with further registration, which appends to or
// replaces entries in the registry's own slice, never in the copy.
func (r *Registry) Snapshot() []*ToolRecord {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*ToolRecord, len(r.records))
	copy(out, r.records)
	return out
}

func (r *Registry) bumpUpdatedAt() {
	atomic.AddUint64(&r.updatedAt, 1)
}

// insertLocked appends a record and updates the secondary index. Caller
// must hold r.mu for writing.
func (r *Registry) insertLocked(rec *ToolRecord) {
	key := Key{Server: rec.Server, Name: rec.Name}
	if _, exists := r.index[key]; exists {
		// (server, name) is the primary key; a duplicate connectServer
		// call for the same server replaces rather than appending.
		for i, existing := range r.records {
			if existing.Server == rec.Server && existing.Name == rec.Name {
				r.records[i] = rec
				r.index[key] = rec
				return
			}
		}
	}
	r.records = append(r.records, rec)
	r.index[key] = rec
}

// ConnectOptions configures a single connectServer call.
type ConnectOptions struct {
	// Embedder is nil when the process is running in fuzzy-only mode.
	Embedder Embedder
	// ServerHash, when non-empty, is the cache file key embeddings for
	// this server are hydrated from / persisted to.
	ServerHash string
	// CachedEmbeddings is the hydrated cache for ServerHash, or nil.
	CachedEmbeddings map[string][]float32
}

// ConnectResult reports what a connectServer call produced, so the
// caller (the facade's startup sequence) can decide whether to persist an
// updated cache file and which hashes remain active for GC.
type ConnectResult struct {
	NewEmbeddings map[string][]float32
	ToolCount     int
}

// ConnectServer enumerates client's tools, hydrates or generates
// embeddings, and inserts records for serverName. The client must already
// be connected and initialised; ConnectServer takes ownership of calling
// ListTools on it but not of closing it.
//
// A spawn or enumeration failure that happens before this is called is the
// caller's responsibility to log and skip — already-inserted records from
// earlier servers are retained regardless of this call's outcome.
func (r *Registry) ConnectServer(ctx context.Context, serverName string, client Client, opts ConnectOptions) (*ConnectResult, error) {
	tools, err := client.ListTools(ctx)
	if err != nil {
		return nil, fmt.Errorf("list tools for %s: %w", serverName, err)
	}

	records := make([]*ToolRecord, len(tools))
	for i, tool := range tools {
		records[i] = buildRecord(serverName, tool, client)
	}

	newEmbeddings := make(map[string][]float32)
	if opts.Embedder != nil {
		if err := r.hydrateEmbeddings(ctx, records, opts, newEmbeddings); err != nil {
			return nil, err
		}
	}

	r.mu.Lock()
	for _, rec := range records {
		r.insertLocked(rec)
	}
	r.bumpUpdatedAt()
	r.mu.Unlock()

	return &ConnectResult{NewEmbeddings: newEmbeddings, ToolCount: len(records)}, nil
}

// hydrateEmbeddings resolves each record's embedding either from the
// cache or by generating a fresh one, with bounded concurrency. Generation
// failures are logged and leave the record's embedding unset; they never
// abort registration.
func (r *Registry) hydrateEmbeddings(ctx context.Context, records []*ToolRecord, opts ConnectOptions, newEmbeddings map[string][]float32) error {
	sem := semaphore.NewWeighted(embeddingConcurrency)
	g, gctx := errgroup.WithContext(ctx)
	var mu sync.Mutex

	for _, rec := range records {
		rec := rec
		if cached, ok := opts.CachedEmbeddings[rec.Name]; ok {
			rec.Embedding = cached
			continue
		}

		g.Go(func() error {
			if err := sem.Acquire(gctx, 1); err != nil {
				return nil // context cancelled; leave embedding unset
			}
			defer sem.Release(1)

			vec, err := opts.Embedder.GenerateEmbedding(gctx, rec.NormalizedText)
			if err != nil {
				r.logger.Warn("embedding generation failed",
					zap.String("server", rec.Server), zap.String("tool", rec.Name), zap.Error(err))
				return nil
			}

			mu.Lock()
			rec.Embedding = vec
			newEmbeddings[rec.Name] = vec
			mu.Unlock()
			return nil
		})
	}

	return g.Wait()
}

// RegisterSkill inserts a synthetic tool record for a skill: server is
// always InternalServer, isSkill is true, and the schema is derived from
// the skill's declared parameters.
func (r *Registry) RegisterSkill(name, description string, parameters map[string]any, steps []SkillStep, embedder Embedder) error {
	keywordSource := make([]string, 0, len(parameters))
	for paramName := range parameters {
		keywordSource = append(keywordSource, paramName)
	}
	keywords := normalize.ExtractKeywords(name, description+" "+strings.Join(keywordSource, " "))
	schemaKeywords := strings.Join(keywords, " ")
	normalizedText := normalize.Normalize(name + " " + description + " " + schemaKeywords)

	rec := &ToolRecord{
		Server:         InternalServer,
		Name:           name,
		Description:    description,
		Schema:         map[string]any{"type": "object", "properties": parameters},
		SchemaKeywords: schemaKeywords,
		NormalizedText: normalizedText,
		IsSkill:        true,
		Steps:          steps,
	}

	if embedder != nil {
		if vec, err := embedder.GenerateEmbedding(context.Background(), normalizedText); err != nil {
			r.logger.Warn("skill embedding generation failed", zap.String("skill", name), zap.Error(err))
		} else {
			rec.Embedding = vec
		}
	}

	r.mu.Lock()
	r.insertLocked(rec)
	r.bumpUpdatedAt()
	r.mu.Unlock()
	return nil
}

// buildRecord derives the registry's unit from an enumerated MCP tool.
func buildRecord(serverName string, tool mcp.Tool, client Client) *ToolRecord {
	keywords := normalize.ExtractKeywords(tool.Name, tool.Description)
	propNames, propDescText := schemaPropertyText(tool.InputSchema)

	seen := make(map[string]struct{}, len(keywords))
	for _, kw := range keywords {
		seen[kw] = struct{}{}
	}
	appendUnique := func(kw string) {
		if kw == "" {
			return
		}
		if _, ok := seen[kw]; ok {
			return
		}
		seen[kw] = struct{}{}
		keywords = append(keywords, kw)
	}

	for _, name := range propNames {
		appendUnique(strings.ToLower(name))
	}
	for _, tok := range normalize.Tokenize(propDescText, 4) {
		appendUnique(tok)
	}

	schemaKeywords := strings.Join(keywords, " ")
	normalizedText := normalize.Normalize(tool.Name + " " + tool.Description + " " + schemaKeywords)

	return &ToolRecord{
		Server:         serverName,
		Name:           tool.Name,
		Description:    tool.Description,
		Schema:         schemaToMap(tool.InputSchema),
		SchemaKeywords: schemaKeywords,
		NormalizedText: normalizedText,
		client:         client,
	}
}

// schemaPropertyText extracts property names and a concatenation of
// property descriptions from a tool's JSON-Schema input, for §4.1's
// schema-keyword augmentation.
func schemaPropertyText(schema mcp.ToolInputSchema) (names []string, descriptions string) {
	var descs []string
	for name, raw := range schema.Properties {
		names = append(names, name)
		prop, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		if desc, ok := prop["description"].(string); ok {
			descs = append(descs, desc)
		}
	}
	return names, strings.Join(descs, " ")
}

// schemaToMap renders a tool's typed input schema as a plain JSON-Schema
// object for storage on the record and re-exposure via search_tools.
func schemaToMap(schema mcp.ToolInputSchema) map[string]any {
	m := map[string]any{"type": schema.Type}
	if schema.Properties != nil {
		m["properties"] = schema.Properties
	}
	if len(schema.Required) > 0 {
		m["required"] = schema.Required
	}
	return m
}
