package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/zeusync/resourcekit/internal/core/observability/log"
	"github.com/zeusync/resourcekit/internal/core/protocol"
	"github.com/zeusync/resourcekit/internal/injector"
)

func newClientCommand(configPath *string) *cobra.Command {
	var name string

	cmd := &cobra.Command{
		Use:   "client",
		Short: "Join a resource server as a player",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runClient(cmd.Context(), injector.ConfigPath(*configPath), name)
		},
	}
	cmd.Flags().StringVarP(&name, "name", "n", "", "player name, overrides client.name")
	return cmd
}

func runClient(ctx context.Context, path injector.ConfigPath, name string) error {
	app, err := injector.InitializeClient(path)
	if err != nil {
		return err
	}
	defer app.Host.Close()

	if name == "" {
		name = app.Config.Client.Name
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	me, err := app.Runtime.Connect(ctx, protocol.Hello{Name: name, Identifiers: app.Config.Client.Identifiers})
	if err != nil {
		return err
	}
	defer app.Runtime.Close()
	app.Logger.Info("Connected",
		log.String("resource", app.Host.Name()),
		log.String("player", me.Name),
		log.String("id", me.ID.String()),
	)

	sched := app.Runtime.Scheduler()
	sched.Post("resource.start", app.Runtime.StartResource)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return sched.Run(ctx)
	})
	g.Go(func() error {
		select {
		case <-ctx.Done():
			return nil
		case <-app.Runtime.Done():
			return protocol.ErrConnectionClosed
		}
	})
	err = g.Wait()

	if stopErr := app.Runtime.StopResource(); stopErr != nil {
		app.Logger.Warn("onClientResourceStop handlers failed", log.Error(stopErr))
	}
	return err
}
