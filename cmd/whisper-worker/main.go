package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/nupi-ai/plugin-stt-whisper-worker/internal/cli"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := cli.Execute(ctx, os.Args[1:], os.Stdout, os.Stderr, nil)
	stop()
	os.Exit(code)
}
