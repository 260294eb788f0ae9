package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/toolmesh/aggregator/internal/config"
)

// NewVerifyCmd creates the 'verify' command for checking configuration
// without starting the aggregator.
func NewVerifyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "verify",
		Short:   "Verify upstream configuration",
		Long:    `Verify that mcp-config.json is present and well-formed.`,
		Example: `  toolmeshd verify`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runVerify()
		},
	}
	return cmd
}

// runVerify validates the configuration without connecting to any
// upstream server.
func runVerify() error {
	path, err := config.GetDefaultConfigPath()
	if err != nil {
		return fmt.Errorf("resolve config path: %w", err)
	}

	cfg, err := config.LoadFrom(path)
	if err != nil {
		if notFound, ok := err.(*config.ConfigNotFoundError); ok {
			fmt.Printf("no config file at %s: %s\n", notFound.Path, notFound.Hint)
			return nil
		}
		return err
	}

	fmt.Printf("config file: %s\n", path)
	fmt.Printf("servers registered: %d\n", len(cfg.Servers))
	for _, name := range cfg.ServerNames() {
		sc := cfg.Servers[name]
		if sc.Command == "" {
			fmt.Printf("  %s: missing command\n", name)
			continue
		}
		fmt.Printf("  %s: %s %v\n", name, sc.Command, sc.Args)
	}
	return nil
}
