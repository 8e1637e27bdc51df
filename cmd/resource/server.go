package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/zeusync/resourcekit/internal/core/observability/log"
	"github.com/zeusync/resourcekit/internal/injector"
)

func newServerCommand(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "server",
		Short: "Serve the resource to connecting clients",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServer(cmd.Context(), injector.ConfigPath(*configPath))
		},
	}
}

func runServer(ctx context.Context, path injector.ConfigPath) error {
	app, err := injector.InitializeServer(path)
	if err != nil {
		return err
	}
	defer app.Host.Close()

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err = app.Runtime.Listen(ctx); err != nil {
		return err
	}
	app.Logger.Info("Server listening",
		log.String("resource", app.Host.Name()),
		log.String("transport", app.Config.Transport.Kind),
		log.String("addr", app.Config.Transport.Addr),
	)

	sched := app.Runtime.Scheduler()
	sched.Post("resource.start", app.Runtime.StartResource)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return sched.Run(ctx)
	})
	if err = g.Wait(); err != nil {
		return err
	}

	// The worker is stopped, so the stop notification runs on this goroutine.
	if err = app.Runtime.StopResource(); err != nil {
		app.Logger.Warn("onResourceStop handlers failed", log.Error(err))
	}
	app.Logger.Info("Server stopped")
	return app.Runtime.Close()
}
