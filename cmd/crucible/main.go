// File: cmd/crucible/main.go
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/crucible-dev/crucible-cli/cmd"
	"github.com/crucible-dev/crucible-cli/internal/observability"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	err := cmd.Execute(ctx)
	observability.Sync()
	if err != nil {
		os.Exit(1)
	}
}
