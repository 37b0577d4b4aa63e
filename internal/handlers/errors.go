package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/CyberRepublic/Elastos.Essentials.Plugins.PasswordManager/internal/vault"
)

// Result codes carried in error bodies.
const (
	CodeInvalidPassword  = -1
	CodeInvalidParameter = -2
	CodeCancelled        = -3
	CodeUnspecified      = -4
)

type apiError struct {
	Code   int    `json:"code"`
	Reason string `json:"reason"`
}

func jsonResponse(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func jsonError(w http.ResponseWriter, status, code int, reason string) {
	jsonResponse(w, status, apiError{Code: code, Reason: reason})
}

// classify maps a vault error to an HTTP status and result code.
func classify(err error) (status, code int) {
	switch {
	case errors.Is(err, vault.ErrWrongPassphrase), errors.Is(err, vault.ErrEmptyPassphrase):
		return http.StatusUnauthorized, CodeInvalidPassword
	case errors.Is(err, vault.ErrCancelled):
		return http.StatusUnauthorized, CodeCancelled
	case errors.Is(err, vault.ErrUnauthorized):
		return http.StatusForbidden, CodeInvalidParameter
	case errors.Is(err, vault.ErrMissingTypeTag),
		errors.Is(err, vault.ErrUnknownTypeTag),
		errors.Is(err, vault.ErrMalformedRecord),
		errors.Is(err, vault.ErrInvalidIdentity),
		errors.Is(err, vault.ErrInvalidAppID),
		errors.Is(err, vault.ErrInvalidKey):
		return http.StatusBadRequest, CodeInvalidParameter
	case errors.Is(err, vault.ErrVaultNotFound):
		return http.StatusNotFound, CodeUnspecified
	default:
		return http.StatusInternalServerError, CodeUnspecified
	}
}

// writeVaultError renders err. Internal failures are not echoed back.
func writeVaultError(w http.ResponseWriter, err error) {
	status, code := classify(err)
	reason := err.Error()
	if status == http.StatusInternalServerError {
		if errors.Is(err, vault.ErrCorruptEnvelope) || errors.Is(err, vault.ErrCorruptDocument) {
			reason = "vault file is corrupt"
		} else {
			reason = "internal error"
		}
	}
	jsonError(w, status, code, reason)
}

// NotFoundHandler handles unknown routes.
func NotFoundHandler(w http.ResponseWriter, r *http.Request) {
	jsonError(w, http.StatusNotFound, CodeUnspecified, "the requested resource was not found")
}

// MethodNotAllowedHandler handles known routes hit with the wrong method.
func MethodNotAllowedHandler(w http.ResponseWriter, r *http.Request) {
	jsonError(w, http.StatusMethodNotAllowed, CodeUnspecified, "method not allowed")
}
