// Package mcp exposes a vault to AI assistants over the Model Context
// Protocol. The server acts as one ordinary caller application.
package mcp

import (
	"context"
	"fmt"
	"sync/atomic"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/CyberRepublic/Elastos.Essentials.Plugins.PasswordManager/internal/validation"
	"github.com/CyberRepublic/Elastos.Essentials.Plugins.PasswordManager/internal/vault"
)

// Options configures a VaultMCPServer.
type Options struct {
	// AppID is the caller application the server acts as. It must not be
	// the manager.
	AppID string
	// Identity is used when a tool call names none.
	Identity string
	Policy   *AccessPolicy
	Version  string
}

// VaultMCPServer wraps a vault registry and exposes it as an MCP server.
type VaultMCPServer struct {
	server   *sdkmcp.Server
	registry *vault.Registry
	appID    string
	identity string
	policy   *AccessPolicy
	reads    atomic.Int64
}

// NewVaultMCPServer creates a new MCP server backed by the given registry.
func NewVaultMCPServer(reg *vault.Registry, opts Options) (*VaultMCPServer, error) {
	if vault.IsManager(opts.AppID) {
		return nil, fmt.Errorf("mcp server needs an app id: it must not act as the manager")
	}
	if err := validation.AppID(opts.AppID); err != nil {
		return nil, err
	}
	if err := validation.Identity(opts.Identity); err != nil {
		return nil, fmt.Errorf("default identity: %w", err)
	}
	policy := opts.Policy
	if policy == nil {
		policy = DefaultPolicy()
	}
	if err := policy.Validate(); err != nil {
		return nil, err
	}
	version := opts.Version
	if version == "" {
		version = "dev"
	}

	s := &VaultMCPServer{
		registry: reg,
		appID:    opts.AppID,
		identity: opts.Identity,
		policy:   policy,
	}

	s.server = sdkmcp.NewServer(
		&sdkmcp.Implementation{
			Name:    "pwmvault",
			Version: version,
		},
		&sdkmcp.ServerOptions{
			Instructions: "pwmvault stores passwords, Wi-Fi credentials, bank cards and accounts in an encrypted per-identity vault. " +
				"Prefer pwm_list_keys and pwm_generate_secret; pwm_get_record puts secret values into the conversation.",
		},
	)

	s.registerRecordTools()
	return s, nil
}

// Run starts the MCP server on the stdio transport.
func (s *VaultMCPServer) Run(ctx context.Context) error {
	return s.server.Run(ctx, &sdkmcp.StdioTransport{})
}

// resolveIdentity returns the identity to use, falling back to the default
// one, and checks it against the policy.
func (s *VaultMCPServer) resolveIdentity(explicit string) (string, error) {
	identity := explicit
	if identity == "" {
		identity = s.identity
	}
	if err := validation.Identity(identity); err != nil {
		return "", err
	}
	if !s.policy.CanAccessIdentity(identity) {
		return "", fmt.Errorf("identity %q is not allowed by policy", identity)
	}
	return identity, nil
}

func (s *VaultMCPServer) checkKey(key string) error {
	if !s.policy.CanAccessKey(key) {
		return fmt.Errorf("record %q is not allowed by policy", key)
	}
	return nil
}

func (s *VaultMCPServer) checkWrite() error {
	if !s.policy.CanWrite() {
		return fmt.Errorf("write operations are not allowed by policy (access_mode: %s)", s.policy.AccessMode)
	}
	return nil
}

// countRead enforces max_reads_per_session. Zero means unlimited.
func (s *VaultMCPServer) countRead() error {
	n := s.reads.Add(1)
	if limit := s.policy.MaxReadsPerSession; limit > 0 && n > int64(limit) {
		return fmt.Errorf("read limit of %d records per session reached", limit)
	}
	return nil
}
