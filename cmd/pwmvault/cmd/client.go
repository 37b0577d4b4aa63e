package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/CyberRepublic/Elastos.Essentials.Plugins.PasswordManager/internal/middleware"
)

// DaemonClient talks to a running pwmvaultd.
type DaemonClient struct {
	baseURL      string
	appID        string
	managerToken string
	httpClient   *http.Client
	verbose      bool
	debug        io.Writer
}

// NewDaemonClient creates a client for the daemon listening on addr. With an
// empty appID it authenticates as the manager with managerToken.
func NewDaemonClient(addr, appID, managerToken string, debug io.Writer) *DaemonClient {
	return &DaemonClient{
		baseURL:      "http://" + addr,
		appID:        appID,
		managerToken: managerToken,
		httpClient: &http.Client{
			Timeout: 5 * time.Second,
		},
		verbose: isVerbose(),
		debug:   debug,
	}
}

// DaemonHealth is the body of GET /health.
type DaemonHealth struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Vaults    int    `json:"vaults"`
}

// DaemonError is an error reply of the daemon.
type DaemonError struct {
	Status int
	Code   int    `json:"code"`
	Reason string `json:"reason"`
}

func (e *DaemonError) Error() string {
	return fmt.Sprintf("daemon replied %d (code %d): %s", e.Status, e.Code, e.Reason)
}

func (c *DaemonClient) request(ctx context.Context, method, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	switch {
	case c.appID != "":
		req.Header.Set(middleware.AppIDHeader, c.appID)
	case c.managerToken != "":
		req.Header.Set(middleware.ManagerAuthorization(c.managerToken))
	}
	req.Header.Set("User-Agent", "pwmvault-cli/"+Version)

	if c.verbose {
		fmt.Fprintf(c.debug, "[DEBUG] %s %s%s\n", method, c.baseURL, path)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if c.verbose {
		fmt.Fprintf(c.debug, "[DEBUG] Response status: %d\n", resp.StatusCode)
	}

	if resp.StatusCode >= 400 {
		derr := &DaemonError{Status: resp.StatusCode}
		if json.Unmarshal(body, derr) != nil || derr.Reason == "" {
			derr.Reason = http.StatusText(resp.StatusCode)
		}
		return nil, derr
	}
	return body, nil
}

// Health reports whether the daemon is up.
func (c *DaemonClient) Health(ctx context.Context) (*DaemonHealth, error) {
	body, err := c.request(ctx, http.MethodGet, "/health")
	if err != nil {
		return nil, err
	}
	var h DaemonHealth
	if err := json.Unmarshal(body, &h); err != nil {
		return nil, fmt.Errorf("failed to parse health: %w", err)
	}
	return &h, nil
}

// Lock ends the daemon session of identity.
func (c *DaemonClient) Lock(ctx context.Context, identity string) error {
	_, err := c.request(ctx, http.MethodPost, "/api/v1/identities/"+url.PathEscape(identity)+"/lock")
	return err
}
