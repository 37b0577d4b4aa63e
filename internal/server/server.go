// Package server runs the vault HTTP daemon.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/CyberRepublic/Elastos.Essentials.Plugins.PasswordManager/internal/biometric"
	"github.com/CyberRepublic/Elastos.Essentials.Plugins.PasswordManager/internal/config"
	"github.com/CyberRepublic/Elastos.Essentials.Plugins.PasswordManager/internal/handlers"
	"github.com/CyberRepublic/Elastos.Essentials.Plugins.PasswordManager/internal/metrics"
	"github.com/CyberRepublic/Elastos.Essentials.Plugins.PasswordManager/internal/vault"
)

// ShutdownTimeout bounds the graceful shutdown.
const ShutdownTimeout = 30 * time.Second

// Run opens the vault directory of cfg and serves the API until ctx is done
// or the listener fails. Sessions live as long as the process.
func Run(ctx context.Context, cfg *config.Config, logger *slog.Logger, version string) error {
	ln, err := net.Listen("tcp", cfg.ServerAddr())
	if err != nil {
		return fmt.Errorf("listen on %s: %w", cfg.ServerAddr(), err)
	}
	return Serve(ctx, ln, cfg, logger, version)
}

// Serve is Run on an existing listener. The listener is closed on return.
func Serve(ctx context.Context, ln net.Listener, cfg *config.Config, logger *slog.Logger, version string) error {
	logger.Info("starting pwmvault daemon",
		"version", version,
		"vault_dir", cfg.Vault.Dir,
	)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	bio := biometric.NewEnclaveVault(handlers.RequestGate{})
	reg, files, err := vault.Open(cfg.Vault, handlers.RequestPrompter{}, bio, logger)
	if err != nil {
		ln.Close()
		return fmt.Errorf("open vault: %w", err)
	}
	defer reg.Close()

	router := handlers.NewRouter(&handlers.Dependencies{
		Config:   cfg,
		Logger:   logger,
		Registry: reg,
		Vaults:   files,
	})

	srv := &http.Server{
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Locks expired sessions and refreshes gauges.
	go metrics.StartCollector(ctx, reg, files, cfg.Metrics.CollectInterval)

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("server listening", "addr", ln.Addr().String())
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutting down server")
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), ShutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	logger.Info("server stopped")
	return nil
}
