package embedding

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
)

type serverHashConfig struct {
	Command string            `json:"command"`
	Args    []string          `json:"args"`
	Env     map[string]string `json:"env"`
}

type serverHashPayload struct {
	Name   string           `json:"name"`
	Config serverHashConfig `json:"config"`
}

// GenerateServerHash derives the cache-file key for an upstream server
// from its name and launch configuration. It is a pure function of its
// inputs: encoding/json sorts map keys when marshaling, so two
// configurations that differ only in the declaration order of env entries
// still hash identically.
func GenerateServerHash(name, command string, args []string, env map[string]string) (string, error) {
	if args == nil {
		args = []string{}
	}
	if env == nil {
		env = map[string]string{}
	}

	data, err := json.Marshal(serverHashPayload{
		Name:   name,
		Config: serverHashConfig{Command: command, Args: args, Env: env},
	})
	if err != nil {
		return "", err
	}

	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}
