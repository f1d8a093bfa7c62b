package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/vk/convoy/internal/app"
	"github.com/vk/convoy/internal/cli"
	"github.com/vk/convoy/internal/runtime/docker"
)

// main is the entrypoint for the convoy application.
func main() {
	// Use a minimal logger until the full one is configured.
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})))

	// The real main function handles errors and exit codes.
	if err := run(os.Stdout, os.Stderr, os.Args[1:]); err != nil {
		if exitErr, ok := err.(*cli.ExitError); ok {
			fmt.Fprintln(os.Stderr, exitErr.Message)
			os.Exit(exitErr.Code)
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// run encapsulates the main application logic for easier testing and error handling.
func run(outW, errW io.Writer, args []string) error {
	appConfig, shouldExit, err := cli.Parse(args, outW)
	if err != nil {
		return err
	}
	if shouldExit {
		return nil
	}

	rt, err := docker.New()
	if err != nil {
		return fmt.Errorf("failed to connect to the container engine: %w", err)
	}
	defer rt.Close()

	convoyApp, err := app.NewApp(outW, errW, appConfig, rt)
	if err != nil {
		return err
	}

	// Ctrl-C cancels the run; the orchestrator's teardown still executes
	// against a fresh context.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return convoyApp.Run(ctx)
}
