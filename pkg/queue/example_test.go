package queue_test

import (
	"context"
	"fmt"

	"github.com/dmitrymomot/taskqueue/pkg/logger"
	"github.com/dmitrymomot/taskqueue/pkg/queue"
)

type greetTask struct {
	name string
}

func (g *greetTask) Valid() bool { return g.name != "" }

func (g *greetTask) Execute(context.Context, int) queue.Outcome {
	return queue.Completed([]byte("hello, " + g.name))
}

func (g *greetTask) ErrorMessage(bool) string { return "" }

// Example_runOne enqueues a task and runs it through the manager
func Example_runOne() {
	ctx := context.Background()
	store := queue.NewMemoryStorage()

	registry := queue.NewRegistry()
	registry.MustRegister("greet", func(task *queue.Task) queue.Executable {
		return &greetTask{name: string(task.Payload[1 : len(task.Payload)-1])}
	})

	enqueuer, _ := queue.NewEnqueuer(store)
	id, _ := enqueuer.Enqueue(ctx, "greet", "gopher")

	manager, _ := queue.NewManager(store, registry, queue.WithManagerLogger(logger.Discard()))
	res, _ := manager.RunOne(ctx, 3)
	fmt.Println(res.Claimed, res.Status)

	task, _ := store.Get(ctx, id)
	fmt.Println(string(task.Output))

	res, _ = manager.RunOne(ctx, 3)
	fmt.Println(res.Claimed)

	// Output:
	// true completed
	// hello, gopher
	// false
}
