/*
Package facade assembles every other package into the aggregator's public
surface: it drives startup (config → upstream connections → skills →
internal tool registration) and exposes exactly two downstream MCP tools,
search_tools and call_tool, over stdio.
*/
package facade

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/toolmesh/aggregator/internal/analytics"
	"github.com/toolmesh/aggregator/internal/config"
	"github.com/toolmesh/aggregator/internal/dispatch"
	"github.com/toolmesh/aggregator/internal/embedding"
	"github.com/toolmesh/aggregator/internal/registry"
	"github.com/toolmesh/aggregator/internal/search"
	"github.com/toolmesh/aggregator/internal/skills"
)

// Options configures a single Facade startup. Every field is resolved
// once from the environment by the caller (the serve command in
// internal/cli) and passed in
// explicitly.
type Options struct {
	ConfigPath     string
	SkillsPath     string
	SearchMode     search.Mode
	EmbeddingModel string
	CacheDir       string
	Logger         *zap.Logger
}

// Facade owns the registry, search engine, and usage tracker, and binds
// them to a downstream MCP server.
type Facade struct {
	opts      Options
	logger    *zap.Logger
	registry  *registry.Registry
	engine    *search.Engine
	embedder  *embedding.Service
	storage   analytics.Storage
	tracker   *analytics.Tracker
	mcpServer *server.MCPServer

	activeCacheHashes map[string]struct{}
}

// New runs the full startup sequence: load configuration, connect every
// configured upstream concurrently (per-server failures are logged and
// skipped), garbage-collect orphaned embedding cache files, load skills if
// present, and bind the downstream tool set. A missing config file or
// missing skills file is not fatal; a malformed skills file is.
func New(ctx context.Context, opts Options) (*Facade, error) {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	dispatch.SetLogger(logger)

	f := &Facade{
		opts:              opts,
		logger:            logger,
		registry:          registry.New(logger),
		activeCacheHashes: make(map[string]struct{}),
	}

	if opts.SearchMode == search.ModeVector {
		f.embedder = embedding.New(opts.EmbeddingModel, func(ctx context.Context, model string) (embedding.Runtime, error) {
			// model names a WASM inference module on disk; resolving a
			// bare model identifier (e.g. a HuggingFace repo name) to an
			// artifact path is a deployment concern, not this package's.
			return embedding.NewWasmRuntime(ctx, model, embedding.DefaultDimension)
		}, logger)
	}

	if err := f.connectUpstreams(ctx); err != nil {
		return nil, err
	}

	if f.embedder != nil {
		if err := embedding.CleanupUnusedCache(f.opts.CacheDir, f.activeCacheHashes); err != nil {
			logger.Warn("embedding cache cleanup failed", zap.Error(err))
		}
	}

	if err := f.loadSkills(); err != nil {
		return nil, err
	}

	f.engine = search.New(f.registry, f.embedder, opts.SearchMode)
	f.storage = analytics.NewStorage(logger)
	f.tracker = analytics.NewTracker(f.storage, logger)

	f.mcpServer = server.NewMCPServer("toolmesh-aggregator", "0.1.0", server.WithToolCapabilities(false))
	f.registerFacadeTools()

	return f, nil
}

// connectUpstreams loads mcp-config.json, dials every configured server
// concurrently (the dominant startup cost — process spawn plus the
// initialize handshake), and then registers each dialed client's tools in
// the config's source order. Registering in config order rather than dial-
// completion order is what makes duplicate-name resolution deterministic
// (spec's "first encountered wins" picks the config's first server, not
// whichever happened to finish dialing first). A missing config file
// yields zero upstreams with a warning; an invalid one is fatal.
func (f *Facade) connectUpstreams(ctx context.Context) error {
	cfg, err := config.LoadFrom(f.opts.ConfigPath)
	if err != nil {
		var notFound *config.ConfigNotFoundError
		if errors.As(err, &notFound) {
			f.logger.Warn("no upstream config found, starting with zero servers", zap.Error(err))
			return nil
		}
		return err
	}

	names := cfg.ServerNames()
	clients := make([]registry.Client, len(names))

	var g errgroup.Group
	for i, name := range names {
		i, name := i, name
		serverConfig := cfg.Servers[name]
		g.Go(func() error {
			client, err := registry.Dial(ctx, name, serverConfig.Command, serverConfig.Args, serverConfig.Env, f.logger)
			if err != nil {
				f.logger.Error("upstream dial failed", zap.String("server", name), zap.Error(err))
				return nil
			}
			clients[i] = client
			return nil
		})
	}
	_ = g.Wait()

	for i, name := range names {
		client := clients[i]
		if client == nil {
			continue
		}
		if err := f.registerOne(ctx, name, cfg.Servers[name], client); err != nil {
			f.logger.Error("upstream registration failed", zap.String("server", name), zap.Error(err))
		}
	}
	return nil
}

func (f *Facade) registerOne(ctx context.Context, name string, serverConfig *config.ServerConfig, client registry.Client) error {
	opts := registry.ConnectOptions{}
	if f.embedder != nil {
		hash, err := embedding.GenerateServerHash(name, serverConfig.Command, serverConfig.Args, serverConfig.Env)
		if err != nil {
			f.logger.Warn("server hash generation failed", zap.String("server", name), zap.Error(err))
		} else {
			opts.ServerHash = hash
			opts.Embedder = f.embedder

			cached, err := embedding.GetCachedEmbeddings(f.opts.CacheDir, hash)
			if err != nil {
				f.logger.Warn("embedding cache read failed", zap.String("server", name), zap.Error(err))
			}
			opts.CachedEmbeddings = cached
			f.activeCacheHashes[hash] = struct{}{}
		}
	}

	result, err := f.registry.ConnectServer(ctx, name, client, opts)
	if err != nil {
		client.Close()
		return err
	}

	if opts.ServerHash != "" && len(result.NewEmbeddings) > 0 {
		if err := embedding.SaveEmbeddingsToCache(f.opts.CacheDir, opts.ServerHash, result.NewEmbeddings); err != nil {
			f.logger.Warn("embedding cache write failed", zap.String("server", name), zap.Error(err))
		}
	}
	return nil
}

// loadSkills ingests every skill in the configured skills file as an
// additional tool on the internal server. An absent file is not an
// error; a malformed one is.
func (f *Facade) loadSkills() error {
	if f.opts.SkillsPath == "" {
		return nil
	}

	loaded, err := skills.LoadFile(f.opts.SkillsPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("load skills file %s: %w", f.opts.SkillsPath, err)
	}

	var embedder registry.Embedder
	if f.embedder != nil {
		embedder = f.embedder
	}

	for _, skill := range loaded {
		steps := make([]registry.SkillStep, len(skill.Steps))
		for i, step := range skill.Steps {
			steps[i] = registry.SkillStep{
				Tool:        step.Tool,
				Server:      step.Server,
				Args:        step.Args,
				ResultVar:   step.ResultVar,
				Description: step.Description,
			}
		}
		if err := f.registry.RegisterSkill(skill.Name, skill.Description, skill.Parameters, steps, embedder); err != nil {
			return fmt.Errorf("register skill %q: %w", skill.Name, err)
		}
	}
	return nil
}

func (f *Facade) registerFacadeTools() {
	searchTool := mcp.NewTool("search_tools",
		mcp.WithDescription("Search the aggregated tool catalogue for tools matching a natural-language query."),
		mcp.WithString("query", mcp.Required(), mcp.Description("What you are trying to do.")),
	)
	f.mcpServer.AddTool(searchTool, f.handleSearchTools)

	callTool := mcp.NewTool("call_tool",
		mcp.WithDescription("Invoke a specific tool by its server and name."),
		mcp.WithString("server", mcp.Required(), mcp.Description("The upstream server the tool belongs to.")),
		mcp.WithString("toolName", mcp.Required(), mcp.Description("The tool's name.")),
		mcp.WithObject("arguments", mcp.Description("Arguments to pass to the tool.")),
	)
	f.mcpServer.AddTool(callTool, f.handleCallTool)
}

func (f *Facade) handleSearchTools(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := request.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	results, err := f.engine.SearchTools(ctx, query, search.DefaultLimit)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	if f.storage != nil {
		if err := f.storage.RecordSearch(analytics.NewSearchRecord(query, len(results))); err != nil {
			f.logger.Warn("failed to record search", zap.Error(err))
		}
	}

	payload := make([]map[string]any, 0, len(results))
	for _, rec := range results {
		payload = append(payload, map[string]any{
			"name":        rec.Name,
			"description": rec.Description,
			"server":      rec.Server,
			"inputSchema": rec.Schema,
		})
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	text := string(body) + "\n\nIf none of these fit, try rephrasing your query with more specific terms."
	return mcp.NewToolResultText(text), nil
}

func (f *Facade) handleCallTool(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	serverName, err := request.RequireString("server")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	toolName, err := request.RequireString("toolName")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	callArgs := map[string]any{}
	if raw, ok := request.GetArguments()["arguments"].(map[string]any); ok {
		callArgs = raw
	}

	tool, ok := f.registry.GetTool(serverName, toolName)
	if !ok {
		return mcp.NewToolResultError(fmt.Sprintf("tool not found: %s on server %s", toolName, serverName)), nil
	}

	result, err := dispatch.ExecuteTool(ctx, tool, callArgs, f.registry)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	if f.tracker != nil {
		f.tracker.Track(analytics.UsageEvent{ToolName: toolName, Server: serverName, Selected: true})
	}

	return result, nil
}

// Run binds the downstream MCP server to stdio and blocks until it exits.
func (f *Facade) Run() error {
	return server.ServeStdio(f.mcpServer)
}

// Close stops the usage tracker and closes every distinct upstream
// client connection.
func (f *Facade) Close() {
	if f.tracker != nil {
		f.tracker.Stop()
	}

	closed := make(map[registry.Client]struct{})
	for _, rec := range f.registry.Snapshot() {
		client := rec.Client()
		if client == nil {
			continue
		}
		if _, done := closed[client]; done {
			continue
		}
		closed[client] = struct{}{}
		if err := client.Close(); err != nil {
			f.logger.Warn("error closing upstream client", zap.String("server", rec.Server), zap.Error(err))
		}
	}
}
