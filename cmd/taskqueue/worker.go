package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/dmitrymomot/taskqueue/pkg/config"
	"github.com/dmitrymomot/taskqueue/pkg/queue"
	"github.com/dmitrymomot/taskqueue/pkg/queue/requesttask"
)

func newRegistry(log *slog.Logger) (*queue.Registry, error) {
	var rcfg requesttask.Config
	if err := config.Load(&rcfg); err != nil {
		return nil, err
	}

	registry := queue.NewRegistry()
	opts := append(rcfg.Options(), requesttask.WithLogger(log))
	if err := requesttask.Register(registry, opts...); err != nil {
		return nil, err
	}
	log.Debug("task types registered", slog.Any("types", registry.Types()))
	return registry, nil
}

func runWorker(ctx context.Context, cfg appConfig, log *slog.Logger, args []string) error {
	var qcfg queue.Config
	if err := config.Load(&qcfg); err != nil {
		return err
	}

	fs := flag.NewFlagSet("worker", flag.ContinueOnError)
	once := fs.Bool("once", false, "run at most one task and exit")
	maxTries := fs.Int("max-tries", qcfg.MaxTries, "attempts per task")
	if err := fs.Parse(args); err != nil {
		return errors.Join(errUsage, err)
	}
	qcfg.MaxTries = *maxTries

	be, err := openBackend(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer be.close()

	registry, err := newRegistry(log)
	if err != nil {
		return err
	}
	manager, err := queue.NewManager(be.store, registry, queue.WithManagerLogger(log))
	if err != nil {
		return err
	}

	if *once {
		res, err := manager.RunOne(ctx, qcfg.MaxTries)
		if err != nil {
			return err
		}
		if !res.Claimed {
			fmt.Println("no queued tasks")
			return nil
		}
		fmt.Printf("%s %s %s\n", res.TaskID, res.Type, res.Status)
		if res.Message != "" {
			fmt.Println(res.Message)
		}
		return nil
	}

	g, gctx := errgroup.WithContext(ctx)
	if err := startWorker(gctx, g, manager, qcfg, log); err != nil {
		return err
	}
	return waitWithTimeout(ctx, g, qcfg.ShutdownTimeout)
}

func startWorker(ctx context.Context, g *errgroup.Group, manager *queue.Manager, qcfg queue.Config, log *slog.Logger) error {
	opts := append(qcfg.WorkerOptions(), queue.WithWorkerLogger(log))
	w, err := queue.NewWorker(manager, opts...)
	if err != nil {
		return err
	}
	g.Go(w.Run(ctx))
	return nil
}

// waitWithTimeout waits for g, giving in-flight work at most timeout once
// ctx is done.
func waitWithTimeout(ctx context.Context, g *errgroup.Group, timeout time.Duration) error {
	done := make(chan error, 1)
	go func() { done <- g.Wait() }()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
	}

	select {
	case err := <-done:
		return err
	case <-time.After(timeout):
		return fmt.Errorf("shutdown timed out after %s with tasks still running", timeout)
	}
}
