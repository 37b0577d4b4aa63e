package cmd

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/CyberRepublic/Elastos.Essentials.Plugins.PasswordManager/internal/middleware"
)

func TestDaemonClient_CallerHeaders(t *testing.T) {
	tests := []struct {
		name     string
		appID    string
		token    string
		wantApp  string
		wantAuth string
	}{
		{"app", "forum.app", "manager-token-0123456789", "forum.app", ""},
		{"manager", "", "manager-token-0123456789", "", "Bearer manager-token-0123456789"},
		{"neither", "", "", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotApp, gotAuth, gotPath string
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				gotApp = r.Header.Get(middleware.AppIDHeader)
				gotAuth = r.Header.Get("Authorization")
				gotPath = r.URL.Path
				w.WriteHeader(http.StatusNoContent)
			}))
			defer srv.Close()

			c := NewDaemonClient(strings.TrimPrefix(srv.URL, "http://"), tt.appID, tt.token, io.Discard)
			if err := c.Lock(context.Background(), "alice"); err != nil {
				t.Fatalf("Lock() error = %v", err)
			}
			if gotPath != "/api/v1/identities/alice/lock" {
				t.Errorf("path = %q", gotPath)
			}
			if gotApp != tt.wantApp {
				t.Errorf("%s = %q, want %q", middleware.AppIDHeader, gotApp, tt.wantApp)
			}
			if gotAuth != tt.wantAuth {
				t.Errorf("Authorization = %q, want %q", gotAuth, tt.wantAuth)
			}
		})
	}
}

func TestDaemonClient_Error(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		io.WriteString(w, `{"code":-2,"reason":"missing X-App-ID header"}`)
	}))
	defer srv.Close()

	c := NewDaemonClient(strings.TrimPrefix(srv.URL, "http://"), "", "", io.Discard)
	err := c.Lock(context.Background(), "alice")
	var derr *DaemonError
	if !errors.As(err, &derr) {
		t.Fatalf("Lock() error = %v, want *DaemonError", err)
	}
	if derr.Status != http.StatusBadRequest || derr.Code != -2 {
		t.Errorf("DaemonError = %+v", derr)
	}
}
