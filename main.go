// The main package for the lvmh executable.
package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/Shamim-Fav/lvmh/cmd"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	cmd.ExecuteContext(ctx)
}
