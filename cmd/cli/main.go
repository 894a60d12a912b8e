package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/vk/pipegrid/internal/app"
	"github.com/vk/pipegrid/internal/cli"
	"github.com/vk/pipegrid/internal/config"
	"github.com/vk/pipegrid/internal/registry"
)

// main is the entrypoint for the pipegrid application.
func main() {
	// Use a minimal logger until the full one is configured.
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})))

	envFile := os.Getenv("PIPEGRID_ENV_FILE")
	if envFile == "" {
		envFile = ".env"
	}
	if err := app.LoadEnvFile(envFile); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(cli.ExitUsage)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := run(ctx, os.Stdout, os.Args[1:])
	stop()
	if err != nil {
		var exitErr *cli.ExitError
		if errors.As(err, &exitErr) {
			if exitErr.Message != "" {
				fmt.Fprintln(os.Stderr, exitErr.Message)
			}
			os.Exit(exitErr.Code)
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(cli.ExitFailed)
	}
}

// run encapsulates the main application logic for easier testing and error
// handling. Extra modules replace the built-in task modules.
func run(ctx context.Context, outW io.Writer, args []string, modules ...registry.Module) error {
	cfg, shouldExit, err := cli.Parse(args, outW)
	if err != nil {
		return err
	}
	if shouldExit {
		return nil
	}

	pipegrid := app.NewApp(outW, cfg, modules...)
	defer pipegrid.Close()

	if cfg.Command == app.CommandValidate {
		if err := pipegrid.Validate(ctx); err != nil {
			return &cli.ExitError{Code: cli.ExitUsage, Message: err.Error()}
		}
		return nil
	}

	res, err := pipegrid.Run(ctx)
	if err != nil {
		code := cli.ExitFailed
		if errors.Is(err, config.ErrConfiguration) {
			code = cli.ExitUsage
		}
		return &cli.ExitError{Code: code, Message: err.Error()}
	}
	if code := res.ExitCode(); code != cli.ExitOK {
		return &cli.ExitError{Code: code, Message: fmt.Sprintf("pipeline %s %s: %s", res.Pipeline, res.Status, res.FirstFailure)}
	}
	return nil
}
