package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"

	"github.com/dmitrymomot/taskqueue/pkg/queue"
	"github.com/dmitrymomot/taskqueue/pkg/queue/requesttask"
)

func runEnqueue(ctx context.Context, cfg appConfig, log *slog.Logger, args []string) error {
	fs := flag.NewFlagSet("enqueue", flag.ContinueOnError)
	taskType := fs.String("type", requesttask.TaskType, "task type")
	uri := fs.String("uri", "", "URI to GET (request tasks)")
	payload := fs.String("payload", "", "raw JSON payload")
	if err := fs.Parse(args); err != nil {
		return errors.Join(errUsage, err)
	}
	if (*uri == "") == (*payload == "") {
		return fmt.Errorf("%w: exactly one of -uri and -payload is required", errUsage)
	}

	be, err := openBackend(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer be.close()

	enq, err := queue.NewEnqueuer(be.store, queue.WithEnqueuerLogger(log))
	if err != nil {
		return err
	}

	var id string
	if *uri != "" {
		if *taskType != requesttask.TaskType {
			return fmt.Errorf("%w: -uri only applies to %q tasks", errUsage, requesttask.TaskType)
		}
		p, err := requesttask.NewURIPayload(*uri)
		if err != nil {
			return err
		}
		id, err = requesttask.Enqueue(ctx, enq, p)
		if err != nil {
			return err
		}
	} else {
		if !json.Valid([]byte(*payload)) {
			return fmt.Errorf("%w: -payload is not valid JSON", errUsage)
		}
		id, err = enq.EnqueueRaw(ctx, *taskType, json.RawMessage(*payload))
		if err != nil {
			return err
		}
	}

	fmt.Println(id)
	return nil
}
