/*
Package config loads the aggregator's upstream server configuration.

Schema (mcp-config.json, discovered via MCP_CONFIG_PATH):

	{
	  "mcpServers": {
	    "<name>": {
	      "command": "npx",
	      "args": ["-y", "@package/name"],
	      "env": {"KEY": "value"}
	    }
	  }
	}

A missing file yields an empty, valid configuration (zero upstreams); a
present-but-malformed file is fatal. Configuration is read once at startup
and never written back — importing configs from other tools and persisting
edits are explicitly out of scope here.
*/
package config

import (
	"bytes"
	"encoding/json"
	"io"
	"os"
)

// Config is the parsed root of mcp-config.json.
type Config struct {
	// Servers maps upstream server names to their launch configuration.
	Servers map[string]*ServerConfig

	// order preserves the "mcpServers" object's source key order, which
	// the dispatcher's duplicate-name tie-break relies on (first
	// connectServer call wins).
	order []string
}

// ServerConfig describes how to spawn a single upstream MCP server.
type ServerConfig struct {
	Command string            `json:"command"`
	Args    []string          `json:"args,omitempty"`
	Env     map[string]string `json:"env,omitempty"`
}

type rawConfig struct {
	MCPServers map[string]*ServerConfig `json:"mcpServers"`
}

// NewConfig returns an empty, valid configuration, used when the config
// file is absent.
func NewConfig() *Config {
	return &Config{Servers: make(map[string]*ServerConfig)}
}

// GetDefaultConfigPath returns the path MCP_CONFIG_PATH names, or
// "mcp-config.json" in the current directory if it is unset.
func GetDefaultConfigPath() (string, error) {
	if path := os.Getenv("MCP_CONFIG_PATH"); path != "" {
		return path, nil
	}
	return "mcp-config.json", nil
}

// LoadFrom reads and parses the configuration at path. A missing file is
// reported via ConfigNotFoundError so the caller can treat it as a
// non-fatal "zero upstreams" condition; any other read or parse failure is
// an InvalidConfigError and must be treated as fatal.
func LoadFrom(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, &ConfigNotFoundError{
				Path: path,
				Hint: "set MCP_CONFIG_PATH or create mcp-config.json with a \"mcpServers\" map",
			}
		}
		return nil, &InvalidConfigError{Path: path, Message: err.Error()}
	}

	var raw rawConfig
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, &InvalidConfigError{
			Path:    path,
			Message: "JSON parse error: " + err.Error(),
			Hint:    "mcp-config.json must contain a top-level \"mcpServers\" object",
		}
	}

	cfg := &Config{Servers: make(map[string]*ServerConfig)}
	order := mcpServersKeyOrder(data)
	if len(order) == 0 {
		// Source order couldn't be recovered (e.g. duplicate keys); fall
		// back to map iteration, which is still a valid total order.
		for name := range raw.MCPServers {
			order = append(order, name)
		}
	}
	for _, name := range order {
		if sc, ok := raw.MCPServers[name]; ok {
			cfg.Servers[name] = sc
			cfg.order = append(cfg.order, name)
		}
	}
	return cfg, nil
}

// ServerNames returns the configured upstream names in the order they
// appeared in the source JSON object.
func (c *Config) ServerNames() []string {
	return c.order
}

// mcpServersKeyOrder walks the raw JSON tokens to recover the key order of
// the top-level "mcpServers" object, since encoding/json's map decoding
// does not preserve it.
func mcpServersKeyOrder(data []byte) []string {
	dec := json.NewDecoder(bytes.NewReader(data))

	if !advanceToValue(dec, "mcpServers") {
		return nil
	}

	tok, err := dec.Token()
	if err != nil {
		return nil
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil
	}

	var order []string
	relDepth := 0
	expectKey := true
	for {
		tok, err := dec.Token()
		if err == io.EOF || err != nil {
			return order
		}
		if d, ok := tok.(json.Delim); ok {
			switch d {
			case '{', '[':
				relDepth++
			case '}', ']':
				if relDepth == 0 {
					return order
				}
				relDepth--
				if relDepth == 0 {
					expectKey = true
				}
			}
			continue
		}
		if relDepth == 0 {
			if expectKey {
				if key, ok := tok.(string); ok {
					order = append(order, key)
				}
				expectKey = false
			} else {
				expectKey = true
			}
		}
	}
}

// advanceToValue scans decoder tokens for a key matching name at the root
// object's top level, leaving the decoder positioned so the next Token()
// call reads that key's value.
func advanceToValue(dec *json.Decoder, name string) bool {
	tok, err := dec.Token()
	if err != nil {
		return false
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return false
	}

	relDepth := 0
	expectKey := true
	for {
		tok, err := dec.Token()
		if err != nil {
			return false
		}
		if d, ok := tok.(json.Delim); ok {
			switch d {
			case '{', '[':
				relDepth++
			case '}', ']':
				if relDepth == 0 {
					return false
				}
				relDepth--
				if relDepth == 0 {
					expectKey = true
				}
			}
			continue
		}
		if relDepth == 0 {
			if expectKey {
				key, _ := tok.(string)
				if key == name {
					return true
				}
				expectKey = false
			} else {
				expectKey = true
			}
		}
	}
}
