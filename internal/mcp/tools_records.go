package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/CyberRepublic/Elastos.Essentials.Plugins.PasswordManager/internal/record"
	"github.com/CyberRepublic/Elastos.Essentials.Plugins.PasswordManager/internal/vault"
)

// --- pwm_list_keys ---

type listKeysInput struct {
	Identity string `json:"identity,omitempty" jsonschema:"Identity whose vault to use. If omitted uses the configured identity."`
}

type listKeysOutput struct {
	Identity string   `json:"identity"`
	Keys     []string `json:"keys"`
}

// --- pwm_get_record ---

type getRecordInput struct {
	Identity string `json:"identity,omitempty" jsonschema:"Identity whose vault to use. If omitted uses the configured identity."`
	Key      string `json:"key" jsonschema:"The record key to retrieve."`
}

type getRecordOutput struct {
	Key      string         `json:"key"`
	Found    bool           `json:"found"`
	Record   map[string]any `json:"record,omitempty"`
	Redacted bool           `json:"redacted"`
	Warning  string         `json:"warning,omitempty"`
}

// --- pwm_set_record ---

type setRecordInput struct {
	Identity string         `json:"identity,omitempty" jsonschema:"Identity whose vault to use. If omitted uses the configured identity."`
	Record   map[string]any `json:"record" jsonschema:"The record with its integer type tag: 0 generic, 1 wifi, 2 bank card, 3 bank account, 4 account. Every record needs a key."`
}

type setRecordOutput struct {
	Key      string `json:"key"`
	CouldSet bool   `json:"couldSet"`
}

// --- pwm_delete_record ---

type deleteRecordInput struct {
	Identity string `json:"identity,omitempty" jsonschema:"Identity whose vault to use. If omitted uses the configured identity."`
	Key      string `json:"key" jsonschema:"The record key to delete."`
}

type deleteRecordOutput struct {
	Key         string `json:"key"`
	CouldDelete bool   `json:"couldDelete"`
}

// --- pwm_generate_secret ---

type generateSecretInput struct{}

type generateSecretOutput struct {
	GeneratedPassword string `json:"generatedPassword"`
}

// --- pwm_lock ---

type lockInput struct {
	Identity string `json:"identity,omitempty" jsonschema:"Identity whose vault to lock. If omitted uses the configured identity."`
}

type lockOutput struct {
	Identity string `json:"identity"`
	Locked   bool   `json:"locked"`
}

func (s *VaultMCPServer) registerRecordTools() {
	sdkmcp.AddTool(s.server, &sdkmcp.Tool{
		Name:        "pwm_list_keys",
		Description: "List the record keys this assistant owns in a vault. Returns only keys, NEVER secret values.",
	}, s.handleListKeys)

	sdkmcp.AddTool(s.server, &sdkmcp.Tool{
		Name: "pwm_get_record",
		Description: "Get a decrypted record. " +
			"WARNING: secret values will be visible in the AI conversation context.",
	}, s.handleGetRecord)

	sdkmcp.AddTool(s.server, &sdkmcp.Tool{
		Name:        "pwm_set_record",
		Description: "Create or replace a record. The vault is encrypted at rest with AES-256-CBC and HMAC-SHA256.",
	}, s.handleSetRecord)

	sdkmcp.AddTool(s.server, &sdkmcp.Tool{
		Name:        "pwm_delete_record",
		Description: "Delete a record from the vault. This action is irreversible.",
	}, s.handleDeleteRecord)

	sdkmcp.AddTool(s.server, &sdkmcp.Tool{
		Name:        "pwm_generate_secret",
		Description: "Generate a random password suggestion. Nothing is stored.",
	}, s.handleGenerateSecret)

	sdkmcp.AddTool(s.server, &sdkmcp.Tool{
		Name:        "pwm_lock",
		Description: "Lock a vault so that the next access asks for the master passphrase again.",
	}, s.handleLock)
}

func (s *VaultMCPServer) handleListKeys(ctx context.Context, _ *sdkmcp.CallToolRequest, input listKeysInput) (*sdkmcp.CallToolResult, listKeysOutput, error) {
	identity, err := s.resolveIdentity(input.Identity)
	if err != nil {
		return nil, listKeysOutput{}, err
	}

	keys, err := s.registry.ListKeys(ctx, identity, s.appID)
	if err != nil {
		return nil, listKeysOutput{}, fmt.Errorf("list keys: %w", err)
	}

	visible := []string{}
	for _, k := range keys {
		if s.policy.CanAccessKey(k) {
			visible = append(visible, k)
		}
	}
	return nil, listKeysOutput{Identity: identity, Keys: visible}, nil
}

func (s *VaultMCPServer) handleGetRecord(ctx context.Context, _ *sdkmcp.CallToolRequest, input getRecordInput) (*sdkmcp.CallToolResult, getRecordOutput, error) {
	identity, err := s.resolveIdentity(input.Identity)
	if err != nil {
		return nil, getRecordOutput{}, err
	}
	if err := s.checkKey(input.Key); err != nil {
		return nil, getRecordOutput{}, err
	}
	if err := s.countRead(); err != nil {
		return nil, getRecordOutput{}, err
	}

	rec, err := s.registry.GetRecord(ctx, identity, s.appID, input.Key, vault.GetOptions{PromptIfLocked: true})
	if errors.Is(err, vault.ErrRecordNotFound) {
		return nil, getRecordOutput{Key: input.Key}, nil
	}
	if err != nil {
		return nil, getRecordOutput{}, fmt.Errorf("get record: %w", err)
	}

	fields, err := recordFields(rec, s.policy.RedactOutput)
	if err != nil {
		return nil, getRecordOutput{}, err
	}
	out := getRecordOutput{
		Key:      input.Key,
		Found:    true,
		Record:   fields,
		Redacted: s.policy.RedactOutput,
	}
	if !s.policy.RedactOutput {
		out.Warning = "These values are now part of the AI conversation context."
	}
	return nil, out, nil
}

func (s *VaultMCPServer) handleSetRecord(ctx context.Context, _ *sdkmcp.CallToolRequest, input setRecordInput) (*sdkmcp.CallToolResult, setRecordOutput, error) {
	if err := s.checkWrite(); err != nil {
		return nil, setRecordOutput{}, err
	}
	identity, err := s.resolveIdentity(input.Identity)
	if err != nil {
		return nil, setRecordOutput{}, err
	}

	data, err := json.Marshal(input.Record)
	if err != nil {
		return nil, setRecordOutput{}, fmt.Errorf("encode record: %w", err)
	}
	rec, err := record.Parse(data)
	if err != nil {
		return nil, setRecordOutput{}, err
	}
	if err := s.checkKey(rec.RecordKey()); err != nil {
		return nil, setRecordOutput{}, err
	}

	if err := s.registry.SetRecord(ctx, identity, s.appID, rec); err != nil {
		return nil, setRecordOutput{}, fmt.Errorf("set record: %w", err)
	}
	return nil, setRecordOutput{Key: rec.RecordKey(), CouldSet: true}, nil
}

func (s *VaultMCPServer) handleDeleteRecord(ctx context.Context, _ *sdkmcp.CallToolRequest, input deleteRecordInput) (*sdkmcp.CallToolResult, deleteRecordOutput, error) {
	if err := s.checkWrite(); err != nil {
		return nil, deleteRecordOutput{}, err
	}
	identity, err := s.resolveIdentity(input.Identity)
	if err != nil {
		return nil, deleteRecordOutput{}, err
	}
	if err := s.checkKey(input.Key); err != nil {
		return nil, deleteRecordOutput{}, err
	}

	err = s.registry.DeleteRecord(ctx, identity, s.appID, input.Key, "")
	if errors.Is(err, vault.ErrRecordNotFound) {
		return nil, deleteRecordOutput{Key: input.Key}, nil
	}
	if err != nil {
		return nil, deleteRecordOutput{}, fmt.Errorf("delete record: %w", err)
	}
	return nil, deleteRecordOutput{Key: input.Key, CouldDelete: true}, nil
}

func (s *VaultMCPServer) handleGenerateSecret(_ context.Context, _ *sdkmcp.CallToolRequest, _ generateSecretInput) (*sdkmcp.CallToolResult, generateSecretOutput, error) {
	secret, err := s.registry.GenerateRandomSecret()
	if err != nil {
		return nil, generateSecretOutput{}, err
	}
	return nil, generateSecretOutput{GeneratedPassword: secret}, nil
}

func (s *VaultMCPServer) handleLock(_ context.Context, _ *sdkmcp.CallToolRequest, input lockInput) (*sdkmcp.CallToolResult, lockOutput, error) {
	identity, err := s.resolveIdentity(input.Identity)
	if err != nil {
		return nil, lockOutput{}, err
	}
	s.registry.Lock(identity)
	return nil, lockOutput{Identity: identity, Locked: true}, nil
}
