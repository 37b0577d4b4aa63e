package middleware

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/CyberRepublic/Elastos.Essentials.Plugins.PasswordManager/internal/validation"
)

// Result codes shared with the handlers' error bodies.
const (
	CodeInvalidParameter = -2
	CodeUnspecified      = -4
)

// AppIDHeader carries the id of the calling application.
const AppIDHeader = "X-App-ID"

// A request acts as the password manager only when it carries
// "Authorization: Bearer <server.manager_token>".
const authorizationHeader = "Authorization"

// apiError represents a standardized API error response.
type apiError struct {
	Code   int    `json:"code"`
	Reason string `json:"reason"`
}

// jsonError writes a standardized JSON error response.
func jsonError(w http.ResponseWriter, status, code int, reason string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(apiError{Code: code, Reason: reason})
}

// CallerAppContextKey is the context key for the calling application id.
type CallerAppContextKey struct{}

// CallerApp returns middleware that identifies the caller and stores its
// application id in the request context. Ordinary applications send
// X-App-ID. The manager sends managerToken as a Bearer token; with an empty
// managerToken no request can act as the manager. A request that sends
// neither is rejected.
func CallerApp(managerToken string) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			app := r.Header.Get(AppIDHeader)
			auth := r.Header.Get(authorizationHeader)

			switch {
			case auth != "":
				if app != "" {
					jsonError(w, http.StatusBadRequest, CodeInvalidParameter, "send either X-App-ID or a manager token, not both")
					return
				}
				if !validManagerToken(auth, managerToken) {
					jsonError(w, http.StatusUnauthorized, CodeInvalidParameter, "invalid manager token")
					return
				}
			case app == "":
				jsonError(w, http.StatusBadRequest, CodeInvalidParameter, "missing X-App-ID header")
				return
			default:
				if err := validation.AppID(app); err != nil {
					jsonError(w, http.StatusBadRequest, CodeInvalidParameter, err.Error())
					return
				}
			}

			ctx := context.WithValue(r.Context(), CallerAppContextKey{}, app)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func validManagerToken(header, want string) bool {
	if want == "" {
		return false
	}
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "bearer") {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(token), []byte(want)) == 1
}

// ManagerAuthorization returns the Authorization header value that
// authenticates the manager with token.
func ManagerAuthorization(token string) (name, value string) {
	return authorizationHeader, "Bearer " + token
}

// GetCallerApp retrieves the calling application id from the context. The
// empty string is the password manager.
func GetCallerApp(ctx context.Context) string {
	app, _ := ctx.Value(CallerAppContextKey{}).(string)
	return app
}
