package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"go.streamcat.tech/core/internal/cli"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	opts := cli.DefaultOptions()
	err := cli.NewRootCommand(opts).ExecuteContext(ctx)
	opts.Close()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
