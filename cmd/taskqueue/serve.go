package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/dmitrymomot/taskqueue/pkg/config"
	"github.com/dmitrymomot/taskqueue/pkg/httpserver"
	"github.com/dmitrymomot/taskqueue/pkg/queue"
	"github.com/dmitrymomot/taskqueue/pkg/queue/httpapi"
)

func runServe(ctx context.Context, cfg appConfig, log *slog.Logger, args []string) error {
	var (
		hcfg httpserver.Config
		qcfg queue.Config
	)
	if err := config.Load(&hcfg); err != nil {
		return err
	}
	if err := config.Load(&qcfg); err != nil {
		return err
	}

	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	addr := fs.String("addr", hcfg.Addr, "listen address")
	withWorkers := fs.Bool("workers", false, "also run a worker in this process")
	if err := fs.Parse(args); err != nil {
		return errors.Join(errUsage, err)
	}
	hcfg.Addr = *addr

	be, err := openBackend(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer be.close()

	registry, err := newRegistry(log)
	if err != nil {
		return err
	}

	apiOpts := []httpapi.Option{httpapi.WithLogger(log)}
	if be.check != nil {
		apiOpts = append(apiOpts, httpapi.WithHealthCheck(cfg.Backend, be.check))
	}
	api, err := httpapi.New(be.store, registry, apiOpts...)
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	srv := httpserver.NewFromConfig(hcfg, httpserver.WithLogger(log))
	g.Go(func() error { return srv.Run(gctx, api.Routes()) })

	if *withWorkers {
		manager, err := queue.NewManager(be.store, registry, queue.WithManagerLogger(log))
		if err != nil {
			return err
		}
		if err := startWorker(gctx, g, manager, qcfg, log); err != nil {
			return err
		}
	}

	return waitWithTimeout(ctx, g, qcfg.ShutdownTimeout)
}
