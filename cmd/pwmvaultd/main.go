// Package main is the entry point for the pwmvault HTTP daemon.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/CyberRepublic/Elastos.Essentials.Plugins.PasswordManager/internal/config"
	"github.com/CyberRepublic/Elastos.Essentials.Plugins.PasswordManager/internal/logging"
	"github.com/CyberRepublic/Elastos.Essentials.Plugins.PasswordManager/internal/server"
)

var version = "dev"

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load(nil)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger, err := logging.New(cfg.Log.Level, cfg.Log.Format, os.Stdout)
	if err != nil {
		return err
	}
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return server.Run(ctx, cfg, logger, version)
}
