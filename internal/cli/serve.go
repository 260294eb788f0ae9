package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/toolmesh/aggregator/internal/config"
	"github.com/toolmesh/aggregator/internal/facade"
	"github.com/toolmesh/aggregator/internal/logging"
	"github.com/toolmesh/aggregator/internal/search"
)

// NewServeCmd creates the 'serve' command for running the aggregator.
func NewServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the aggregator (stdio transport)",
		Long: `Start the toolmesh aggregator using stdio transport.

The aggregator connects to every upstream MCP server named in mcp-config.json,
builds a combined tool catalogue, and exposes exactly two tools downstream:
search_tools and call_tool.`,
		Example: `  # Run directly
  toolmeshd serve

  # Add to an MCP client
  claude mcp add toolmesh -- toolmeshd serve`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe()
		},
	}
	return cmd
}

// runServe builds the facade and blocks on stdio transport until a signal
// or transport closure ends it.
func runServe() error {
	logger, err := logging.New(logging.ConfigFromEnv())
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}
	defer logger.Sync()

	configPath, err := config.GetDefaultConfigPath()
	if err != nil {
		return fmt.Errorf("resolve config path: %w", err)
	}

	mode := search.ModeFuse
	if os.Getenv("MCP_SEARCH_MODE") == "vector" {
		mode = search.ModeVector
	}

	cacheDir := os.Getenv("MCP_CACHE_DIR")
	if cacheDir == "" {
		cacheDir = ".cache/embeddings"
	}

	model := os.Getenv("MCP_EMBEDDING_MODEL")
	if model == "" {
		model = "Xenova/all-MiniLM-L6-v2"
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM, syscall.SIGQUIT)
	defer cancel()

	f, err := facade.New(ctx, facade.Options{
		ConfigPath:     configPath,
		SkillsPath:     os.Getenv("MCP_SKILLS_PATH"),
		SearchMode:     mode,
		EmbeddingModel: model,
		CacheDir:       cacheDir,
		Logger:         logger,
	})
	if err != nil {
		return fmt.Errorf("start aggregator: %w", err)
	}
	defer f.Close()

	errChan := make(chan error, 1)
	go func() {
		errChan <- f.Run()
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
		return nil
	case err := <-errChan:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	}
}
