package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/five82/xnatrack/cmd/xnatrack/commands"
	"github.com/five82/xnatrack/cmd/xnatrack/internal/clierr"
)

func main() {
	os.Exit(run())
}

func run() int {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := commands.NewRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "xnatrack: %v\n", err)
		return clierr.ExitCodeOf(err)
	}
	return 0
}
