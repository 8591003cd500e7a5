package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/wangxicoding/edl/internal/api"
	"github.com/wangxicoding/edl/internal/config"
	"github.com/wangxicoding/edl/internal/launch"
	"github.com/wangxicoding/edl/internal/prom"
	"github.com/wangxicoding/edl/internal/reconcile"
	"github.com/wangxicoding/edl/internal/registry"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "run the registry api and reconcile loop",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := initializeConfig()
			if err != nil {
				return err
			}
			printableConfig, err := c.Printable()
			if err != nil {
				return err
			}
			log.Infof("edl-topology configuration: %s", printableConfig)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, c)
		},
	}
}

func serve(ctx context.Context, c *config.Config) error {
	promRegistry := prometheus.NewRegistry()
	promRegistry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := prom.New(promRegistry)

	members := registry.New()
	reconciler := reconcile.New(members, launch.LogLauncher{},
		reconcile.WithInterval(time.Duration(c.Reconcile.Interval)),
		reconcile.WithMaxRetries(c.Reconcile.MaxRetries),
		reconcile.WithPolicy(c.Policy()),
		reconcile.WithMetrics(metrics),
	)
	server := api.New(members, reconciler.Published, metrics, promRegistry)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return server.Run(ctx, c.Registry.Bind)
	})
	g.Go(func() error {
		if err := reconciler.Run(ctx); !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})
	return g.Wait()
}
