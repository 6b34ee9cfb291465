package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/mama165/sdk-go/logs"
	"github.com/thereayou/chat-relay/internal/config"
)

const (
	exitOK = iota
	exitConfig
	exitRuntime
)

func main() {
	code, err := run()
	if err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
	}
	os.Exit(code)
}

// run owns every resource of the process so that deferred cleanup happens
// before main exits.
func run() (int, error) {
	config.LoadDotEnv(logs.GetLoggerFromString("INFO"))
	cfg, err := config.Load()
	if err != nil {
		return exitConfig, err
	}
	log := logs.GetLoggerFromString(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv, err := NewServer(ctx, cfg, log)
	if err != nil {
		return exitRuntime, err
	}
	defer srv.Close()

	if err := srv.Run(ctx); err != nil {
		return exitRuntime, err
	}
	return exitOK, nil
}
