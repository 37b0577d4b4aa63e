package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/CyberRepublic/Elastos.Essentials.Plugins.PasswordManager/internal/logging"
	"github.com/CyberRepublic/Elastos.Essentials.Plugins.PasswordManager/internal/middleware"
	"github.com/CyberRepublic/Elastos.Essentials.Plugins.PasswordManager/internal/record"
	"github.com/CyberRepublic/Elastos.Essentials.Plugins.PasswordManager/internal/store"
	"github.com/CyberRepublic/Elastos.Essentials.Plugins.PasswordManager/internal/validation"
	"github.com/CyberRepublic/Elastos.Essentials.Plugins.PasswordManager/internal/vault"
)

const (
	defaultAuditLimit  = 50
	defaultMaxBodySize = 1 << 20
)

// APIHandler handles the vault REST endpoints.
type APIHandler struct {
	registry           *vault.Registry
	maxRequestBodySize int64
}

// NewAPIHandler creates a new APIHandler.
func NewAPIHandler(registry *vault.Registry, maxRequestBodySize int64) *APIHandler {
	if maxRequestBodySize <= 0 {
		maxRequestBodySize = defaultMaxBodySize
	}
	return &APIHandler{
		registry:           registry,
		maxRequestBodySize: maxRequestBodySize,
	}
}

// ownedRecord is one element of allPasswordInfo.
type ownedRecord struct {
	App    string        `json:"app"`
	Record record.Record `json:"record"`
}

// StatusResponse describes the state of one identity.
type StatusResponse struct {
	Identity         string `json:"identity"`
	Exists           bool   `json:"exists"`
	Unlocked         bool   `json:"unlocked"`
	UnlockPolicy     string `json:"unlockPolicy"`
	BiometricEnabled bool   `json:"biometricEnabled"`
}

func queryBool(r *http.Request, name string, def bool) bool {
	v, err := strconv.ParseBool(r.URL.Query().Get(name))
	if err != nil {
		return def
	}
	return v
}

// SetRecord handles PUT /api/v1/identities/{identity}/records
func (h *APIHandler) SetRecord(w http.ResponseWriter, r *http.Request) {
	identity := chi.URLParam(r, "identity")
	caller := middleware.GetCallerApp(r.Context())

	body, err := io.ReadAll(io.LimitReader(r.Body, h.maxRequestBodySize))
	if err != nil {
		jsonError(w, http.StatusBadRequest, CodeInvalidParameter, "invalid request body")
		return
	}
	rec, err := record.Parse(body)
	if err != nil {
		writeVaultError(w, err)
		return
	}

	if err := h.registry.SetRecord(r.Context(), identity, caller, rec); err != nil {
		writeVaultError(w, err)
		return
	}
	jsonResponse(w, http.StatusOK, map[string]bool{"couldSet": true})
}

// GetRecord handles GET /api/v1/identities/{identity}/records/{key}
//
// Query parameters: app (manager only) reads another owner's bucket,
// prompt=false fails instead of unlocking, force=true re-checks the
// passphrase of an unlocked vault.
func (h *APIHandler) GetRecord(w http.ResponseWriter, r *http.Request) {
	identity := chi.URLParam(r, "identity")
	key := chi.URLParam(r, "key")
	caller := middleware.GetCallerApp(r.Context())

	rec, err := h.registry.GetRecord(r.Context(), identity, caller, key, vault.GetOptions{
		PromptIfLocked: queryBool(r, "prompt", true),
		ForcePrompt:    queryBool(r, "force", false),
		TargetApp:      r.URL.Query().Get("app"),
	})
	if errors.Is(err, vault.ErrRecordNotFound) {
		jsonResponse(w, http.StatusOK, map[string]any{"passwordInfo": nil})
		return
	}
	if err != nil {
		writeVaultError(w, err)
		return
	}
	jsonResponse(w, http.StatusOK, map[string]any{"passwordInfo": rec})
}

// GetAllRecords handles GET /api/v1/identities/{identity}/records
func (h *APIHandler) GetAllRecords(w http.ResponseWriter, r *http.Request) {
	identity := chi.URLParam(r, "identity")
	caller := middleware.GetCallerApp(r.Context())

	entries, err := h.registry.GetAllRecords(r.Context(), identity, caller)
	if err != nil {
		writeVaultError(w, err)
		return
	}

	out := make([]ownedRecord, 0, len(entries))
	for _, e := range entries {
		out = append(out, ownedRecord{App: e.App, Record: e.Record})
	}
	jsonResponse(w, http.StatusOK, map[string]any{"allPasswordInfo": out})
}

// DeleteRecord handles DELETE /api/v1/identities/{identity}/records/{key}
func (h *APIHandler) DeleteRecord(w http.ResponseWriter, r *http.Request) {
	identity := chi.URLParam(r, "identity")
	key := chi.URLParam(r, "key")
	caller := middleware.GetCallerApp(r.Context())

	err := h.registry.DeleteRecord(r.Context(), identity, caller, key, r.URL.Query().Get("app"))
	if errors.Is(err, vault.ErrRecordNotFound) {
		jsonResponse(w, http.StatusOK, map[string]bool{"couldDelete": false})
		return
	}
	if err != nil {
		writeVaultError(w, err)
		return
	}
	jsonResponse(w, http.StatusOK, map[string]bool{"couldDelete": true})
}

// ChangePassphrase handles POST /api/v1/identities/{identity}/passphrase
func (h *APIHandler) ChangePassphrase(w http.ResponseWriter, r *http.Request) {
	identity := chi.URLParam(r, "identity")
	caller := middleware.GetCallerApp(r.Context())

	if err := h.registry.ChangePassphrase(r.Context(), identity, caller); err != nil {
		writeVaultError(w, err)
		return
	}
	jsonResponse(w, http.StatusOK, map[string]bool{"couldChange": true})
}

// Lock handles POST /api/v1/identities/{identity}/lock
func (h *APIHandler) Lock(w http.ResponseWriter, r *http.Request) {
	identity := chi.URLParam(r, "identity")
	if err := validation.Identity(identity); err != nil {
		writeVaultError(w, err)
		return
	}
	h.registry.Lock(identity)
	w.WriteHeader(http.StatusNoContent)
}

// DeleteVault handles DELETE /api/v1/identities/{identity}. Manager only.
func (h *APIHandler) DeleteVault(w http.ResponseWriter, r *http.Request) {
	identity := chi.URLParam(r, "identity")
	if caller := middleware.GetCallerApp(r.Context()); !vault.IsManager(caller) {
		writeVaultError(w, vault.ErrUnauthorized)
		return
	}

	if err := h.registry.DeleteVault(r.Context(), identity); err != nil {
		writeVaultError(w, err)
		return
	}
	logging.Logger(r.Context()).Info("vault_deleted_via_api", "identity", identity)
	w.WriteHeader(http.StatusNoContent)
}

// SetUnlockPolicy handles PUT /api/v1/identities/{identity}/policy with a
// body of {"policy":"for-a-while"|"every-time"}.
func (h *APIHandler) SetUnlockPolicy(w http.ResponseWriter, r *http.Request) {
	identity := chi.URLParam(r, "identity")
	caller := middleware.GetCallerApp(r.Context())

	var req struct {
		Policy string `json:"policy"`
	}
	if err := json.NewDecoder(io.LimitReader(r.Body, h.maxRequestBodySize)).Decode(&req); err != nil {
		jsonError(w, http.StatusBadRequest, CodeInvalidParameter, "invalid request body")
		return
	}
	policy, err := store.ParseUnlockPolicy(req.Policy)
	if err != nil {
		jsonError(w, http.StatusBadRequest, CodeInvalidParameter, err.Error())
		return
	}

	if err := h.registry.SetUnlockPolicy(r.Context(), identity, caller, policy); err != nil {
		writeVaultError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Status handles GET /api/v1/identities/{identity}
func (h *APIHandler) Status(w http.ResponseWriter, r *http.Request) {
	identity := chi.URLParam(r, "identity")

	exists, err := h.registry.VaultExists(identity)
	if err != nil {
		writeVaultError(w, err)
		return
	}
	policy, err := h.registry.UnlockPolicy(identity)
	if err != nil {
		writeVaultError(w, err)
		return
	}
	bio, err := h.registry.BiometricEnabled(identity)
	if err != nil {
		writeVaultError(w, err)
		return
	}

	jsonResponse(w, http.StatusOK, StatusResponse{
		Identity:         identity,
		Exists:           exists,
		Unlocked:         h.registry.IsUnlocked(identity),
		UnlockPolicy:     policy.String(),
		BiometricEnabled: bio,
	})
}

// AuditLog handles GET /api/v1/identities/{identity}/audit. Manager only.
func (h *APIHandler) AuditLog(w http.ResponseWriter, r *http.Request) {
	identity := chi.URLParam(r, "identity")
	if err := validation.Identity(identity); err != nil {
		writeVaultError(w, err)
		return
	}
	if caller := middleware.GetCallerApp(r.Context()); !vault.IsManager(caller) {
		writeVaultError(w, vault.ErrUnauthorized)
		return
	}

	limit := defaultAuditLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			jsonError(w, http.StatusBadRequest, CodeInvalidParameter, "limit must be a positive integer")
			return
		}
		limit = n
	}

	entries, err := h.registry.AuditLog(identity, limit)
	if err != nil {
		writeVaultError(w, err)
		return
	}
	if entries == nil {
		entries = []*store.AuditEntry{}
	}
	jsonResponse(w, http.StatusOK, map[string]any{"entries": entries})
}

// GenerateSecret handles GET /api/v1/generate
func (h *APIHandler) GenerateSecret(w http.ResponseWriter, r *http.Request) {
	secret, err := h.registry.GenerateRandomSecret()
	if err != nil {
		writeVaultError(w, err)
		return
	}
	jsonResponse(w, http.StatusOK, map[string]string{"generatedPassword": secret})
}
