package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

func newServeCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.run(cmd.Context(), true, false)
		},
	}
}

func newWorkerCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "worker",
		Short: "Run the dispatch loop and recognition worker pool",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.run(cmd.Context(), false, true)
		},
	}
}

func newAllCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "all",
		Short: "Run the HTTP API and the worker in one process",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.run(cmd.Context(), true, true)
		},
	}
}

// run starts the requested roles and blocks until SIGINT or SIGTERM.
// The worker stops after the server so no accepted job is left undispatched
// by this process.
func (c *commandContext) run(parent context.Context, serve, work bool) error {
	if parent == nil {
		parent = context.Background()
	}
	signalCtx, cancel := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}

	app, err := newApplication(signalCtx, cfg, c.loggerValue())
	if err != nil {
		return err
	}
	defer app.cleanup()

	return app.run(signalCtx, serve, work)
}

func (app *application) run(ctx context.Context, serve, work bool) error {
	if work {
		runner, err := app.newTaskRunner(ctx)
		if err != nil {
			return err
		}
		if err := runner.Start(); err != nil {
			return fmt.Errorf("failed to start task runner: %w", err)
		}
		app.logger.Info("worker started",
			"backend", app.config.Recognition.Backend,
			"workers", app.config.Worker.Count)
		defer func() {
			app.logger.Info("stopping worker")
			runner.Stop()
			app.logger.Info("worker stopped")
		}()
	}

	if !serve {
		<-ctx.Done()
		return nil
	}

	listener, err := app.listen()
	if err != nil {
		return err
	}
	return app.runHTTPServer(ctx, listener)
}
