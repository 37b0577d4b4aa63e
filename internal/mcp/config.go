package mcp

import (
	"fmt"
	"os"
	"path/filepath"

	"go.yaml.in/yaml/v3"
)

// Access modes.
const (
	ModeReadOnly  = "read-only"
	ModeReadWrite = "read-write"
)

// AccessPolicy controls what the MCP server can expose.
type AccessPolicy struct {
	AccessMode         string   `yaml:"access_mode"`
	IdentitiesAllow    []string `yaml:"identities_allow"`
	IdentitiesDeny     []string `yaml:"identities_deny"`
	KeysAllow          []string `yaml:"keys_allow"`
	KeysDeny           []string `yaml:"keys_deny"`
	MaxReadsPerSession int      `yaml:"max_reads_per_session"`
	RedactOutput       bool     `yaml:"redact_output"`
}

// DefaultPolicy returns the policy used when no policy file exists:
// read-write on every key, with a bounded number of record reads.
func DefaultPolicy() *AccessPolicy {
	return &AccessPolicy{
		AccessMode:         ModeReadWrite,
		IdentitiesAllow:    []string{"*"},
		KeysAllow:          []string{"*"},
		MaxReadsPerSession: 50,
	}
}

// LoadPolicy reads an access policy from a YAML file.
// Returns nil, nil if the file does not exist.
func LoadPolicy(path string) (*AccessPolicy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var policy AccessPolicy
	if err := yaml.Unmarshal(data, &policy); err != nil {
		return nil, fmt.Errorf("parse policy %s: %w", path, err)
	}
	if err := policy.Validate(); err != nil {
		return nil, fmt.Errorf("policy %s: %w", path, err)
	}
	return &policy, nil
}

// Validate checks the access mode and glob patterns. An empty access mode
// becomes read-only.
func (p *AccessPolicy) Validate() error {
	switch p.AccessMode {
	case ModeReadOnly, ModeReadWrite:
	case "":
		p.AccessMode = ModeReadOnly
	default:
		return fmt.Errorf("unknown access_mode %q", p.AccessMode)
	}
	if p.MaxReadsPerSession < 0 {
		return fmt.Errorf("max_reads_per_session must not be negative")
	}
	for _, list := range [][]string{p.IdentitiesAllow, p.IdentitiesDeny, p.KeysAllow, p.KeysDeny} {
		for _, pattern := range list {
			if _, err := filepath.Match(pattern, ""); err != nil {
				return fmt.Errorf("bad pattern %q: %w", pattern, err)
			}
		}
	}
	return nil
}

// CanAccessIdentity reports whether the policy allows access to the vault
// of identity.
func (p *AccessPolicy) CanAccessIdentity(identity string) bool {
	return allowed(identity, p.IdentitiesAllow, p.IdentitiesDeny)
}

// CanAccessKey reports whether the policy allows access to the record key.
func (p *AccessPolicy) CanAccessKey(key string) bool {
	return allowed(key, p.KeysAllow, p.KeysDeny)
}

// CanWrite reports whether the policy allows write operations.
func (p *AccessPolicy) CanWrite() bool {
	return p.AccessMode == ModeReadWrite
}

// allowed applies deny before allow. An empty allow list allows everything.
func allowed(name string, allow, deny []string) bool {
	if matchesAny(name, deny) {
		return false
	}
	if len(allow) == 0 {
		return true
	}
	return matchesAny(name, allow)
}

// matchesAny returns true if name matches any of the glob patterns.
func matchesAny(name string, patterns []string) bool {
	for _, pattern := range patterns {
		if matched, _ := filepath.Match(pattern, name); matched {
			return true
		}
	}
	return false
}
