// Package main is the entry point for the pwmvault CLI.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/CyberRepublic/Elastos.Essentials.Plugins.PasswordManager/cmd/pwmvault/cmd"
)

var version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cmd.Version = version
	err := cmd.Execute(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}
