// Command taskqueue runs queue workers, enqueues tasks and serves the admin API.
//
//	taskqueue worker [-once] [-max-tries n]
//	taskqueue enqueue -uri https://example.com/hook
//	taskqueue enqueue -type email -payload '{"to":"a@b.c"}'
//	taskqueue serve [-workers]
//
// The storage backend is chosen with QUEUE_BACKEND (memory, bolt, mongo,
// postgres or redis); each backend reads its own connection settings.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/dmitrymomot/taskqueue/pkg/config"
	"github.com/dmitrymomot/taskqueue/pkg/logger"
	"github.com/dmitrymomot/taskqueue/pkg/requestid"
)

type appConfig struct {
	Env        string `env:"APP_ENV" envDefault:"development"`
	Service    string `env:"SERVICE_NAME" envDefault:"taskqueue"`
	LogLevel   string `env:"LOG_LEVEL"`
	Backend    string `env:"QUEUE_BACKEND" envDefault:"memory"`
	BoltPath   string `env:"QUEUE_BOLT_PATH" envDefault:"taskqueue.db"`
	Collection string `env:"QUEUE_MONGODB_COLLECTION" envDefault:"tasks"`
}

var errUsage = errors.New("usage")

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:]); err != nil {
		if errors.Is(err, errUsage) {
			usage()
			os.Exit(2)
		}
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return errUsage
	}

	var cfg appConfig
	if err := config.Load(&cfg); err != nil {
		return err
	}
	log := logger.New(
		logger.WithEnvironment(cfg.Env, cfg.Service),
		logger.WithLevelName(cfg.LogLevel),
		logger.WithContextExtractors(requestid.LoggerExtractor()),
	)
	logger.SetAsDefault(log)

	switch args[0] {
	case "worker":
		return runWorker(ctx, cfg, log, args[1:])
	case "enqueue":
		return runEnqueue(ctx, cfg, log, args[1:])
	case "serve":
		return runServe(ctx, cfg, log, args[1:])
	case "help", "-h", "--help":
		usage()
		return nil
	}
	return fmt.Errorf("%w: unknown command %q", errUsage, args[0])
}

func usage() {
	fmt.Fprintf(os.Stderr, `Usage: %s <command> [flags]

Commands:
  worker    claim and run queued tasks
  enqueue   add a task to the queue
  serve     run the HTTP API

Run "%s <command> -h" for command flags.
`, os.Args[0], os.Args[0])
}
