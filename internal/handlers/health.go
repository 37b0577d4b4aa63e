// Package handlers exposes the vault registry over HTTP.
package handlers

import (
	"encoding/json"
	"net/http"
	"time"
)

// HealthResponse represents a health check response.
type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Vaults    int    `json:"vaults"`
}

// VaultLister lists the identities that have a vault file.
type VaultLister interface {
	List() ([]string, error)
}

// HealthHandler handles the liveness endpoint.
type HealthHandler struct {
	vaults VaultLister
	now    func() time.Time
}

// NewHealthHandler creates a new HealthHandler.
func NewHealthHandler(vaults VaultLister) *HealthHandler {
	return &HealthHandler{vaults: vaults, now: time.Now}
}

// Liveness handles GET /health. The data directory must be readable.
func (h *HealthHandler) Liveness(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{
		Status:    "healthy",
		Timestamp: h.now().UTC().Format(time.RFC3339),
	}
	status := http.StatusOK
	if h.vaults != nil {
		ids, err := h.vaults.List()
		if err != nil {
			resp.Status = "unhealthy"
			status = http.StatusServiceUnavailable
		}
		resp.Vaults = len(ids)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(resp)
}
