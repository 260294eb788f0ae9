package registry

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"time"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/mcp"
	"go.uber.org/zap"
)

// shutdownGrace is the base unit of Dial's initialize-handshake timeout,
// which is 30 times this value (one minute). Close does not use it: Close
// blocks for as long as the underlying client's Close takes.
const shutdownGrace = 2 * time.Second

// StdioClient is the Client implementation used for every configured
// upstream server: it spawns the server's command as a child process and
// talks MCP over its stdin/stdout, forwarding stderr to a logger instead of
// discarding it.
type StdioClient struct {
	name   string
	inner  *client.Client
	logger *zap.Logger
}

// Dial spawns command as a child process, performs the MCP initialize
// handshake, and returns a connected client. The caller owns the returned
// client's lifetime and must call Close when done with it.
func Dial(ctx context.Context, name, command string, args []string, env map[string]string, logger *zap.Logger) (*StdioClient, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	envPairs := make([]string, 0, len(env))
	for k, v := range env {
		envPairs = append(envPairs, fmt.Sprintf("%s=%s", k, v))
	}

	c, err := client.NewStdioMCPClient(command, envPairs, args...)
	if err != nil {
		return nil, fmt.Errorf("spawn %s: %w", name, err)
	}

	sc := &StdioClient{name: name, inner: c, logger: logger}

	// The stdio transport exposes the child's stderr for callers that want
	// it; a server that is slow to drain its own stderr pipe would
	// otherwise stall stdout once the OS pipe buffer fills, so it is drained
	// whenever the transport exposes it. A transport without a Stderr()
	// accessor is not drained here.
	if withStderr, ok := c.GetTransport().(interface{ Stderr() io.Reader }); ok {
		go sc.forwardStderr(withStderr.Stderr())
	}

	initCtx, cancel := context.WithTimeout(ctx, shutdownGrace*30)
	defer cancel()

	if _, err := c.Initialize(initCtx, mcp.InitializeRequest{
		Params: mcp.InitializeParams{
			ProtocolVersion: mcp.LATEST_PROTOCOL_VERSION,
			ClientInfo: mcp.Implementation{
				Name:    "toolmesh-aggregator",
				Version: "0.1.0",
			},
			Capabilities: mcp.ClientCapabilities{},
		},
	}); err != nil {
		c.Close()
		return nil, fmt.Errorf("initialize %s: %w", name, err)
	}

	return sc, nil
}

// forwardStderr relays the child's stderr, line by line, to the debug log
// instead of silently discarding it — the one thing that must never happen
// is leaving the pipe undrained, since an MCP server that logs at startup
// can otherwise deadlock the whole connection.
func (c *StdioClient) forwardStderr(r io.Reader) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		c.logger.Debug("upstream stderr", zap.String("server", c.name), zap.String("line", scanner.Text()))
	}
}

// ListTools enumerates the upstream's tools.
func (c *StdioClient) ListTools(ctx context.Context) ([]mcp.Tool, error) {
	result, err := c.inner.ListTools(ctx, mcp.ListToolsRequest{})
	if err != nil {
		return nil, err
	}
	return result.Tools, nil
}

// CallTool invokes a tool on the upstream and returns its raw result
// verbatim; the caller is responsible for interpreting IsError.
func (c *StdioClient) CallTool(ctx context.Context, name string, arguments map[string]any) (*mcp.CallToolResult, error) {
	return c.inner.CallTool(ctx, mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Name:      name,
			Arguments: arguments,
		},
	})
}

// Close terminates the child process, closing stdin first so a
// well-behaved server can exit on its own before anything more forceful is
// needed.
func (c *StdioClient) Close() error {
	return c.inner.Close()
}
