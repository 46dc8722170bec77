package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"pinbot/cmd/internal/cli"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := cli.Execute(ctx, cli.Env{}, os.Args[1:], os.Stdout, os.Stderr)
	cancel()
	os.Exit(code)
}
