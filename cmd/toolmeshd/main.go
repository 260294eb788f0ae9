/*
Command toolmeshd aggregates a set of upstream MCP servers behind a single
downstream MCP endpoint exposing search_tools and call_tool.

Usage:

	toolmeshd [command]

Available Commands:

	serve   Run the aggregator (stdio transport)
	verify  Verify upstream configuration
	help    Help about any command
*/
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/toolmesh/aggregator/internal/cli"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "toolmeshd",
		Short: "Aggregates MCP servers behind a single search_tools/call_tool endpoint",
		Long: `toolmeshd connects to every MCP server named in mcp-config.json, builds a
combined catalogue of their tools, and exposes exactly two tools downstream:
search_tools for finding a tool by natural-language query, and call_tool for
invoking one once found.`,
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
	}

	rootCmd.AddCommand(cli.NewServeCmd())
	rootCmd.AddCommand(cli.NewVerifyCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
