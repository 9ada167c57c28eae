// Package queue provides a persistent work queue: tasks are stored with a
// type, an opaque JSON payload and a status, claimed one at a time and run by
// the Executable registered for their type.
//
// The package is organised around a few small pieces:
//
//   - Store      persists tasks and hands out the oldest queued one atomically
//   - Registry   maps a task type to the Factory that builds its Executable
//   - Enqueuer   adds queued tasks
//   - Manager    runs one claim, execute, finalize cycle per RunOne call
//   - Worker     polls a Manager in the background with bounded concurrency
//
// # Lifecycle
//
// Every task moves through queued -> active -> completed | failed. Only a
// store's ClaimNext moves a task from queued to active, and only one caller
// can win a given task no matter how many managers share the store. Terminal
// statuses are final; stores reject updates that would leave them.
//
// # Usage
//
//	store := queue.NewMemoryStorage()
//
//	registry := queue.NewRegistry()
//	registry.MustRegister("email", func(task *queue.Task) queue.Executable {
//	    return newEmailTask(task.Payload)
//	})
//
//	enqueuer, _ := queue.NewEnqueuer(store)
//	id, err := enqueuer.Enqueue(ctx, "email", EmailPayload{To: "user@example.com"})
//
//	manager, _ := queue.NewManager(store, registry)
//	res, err := manager.RunOne(ctx, 3)
//	if err != nil {
//	    // the store failed; task-level failures are recorded on the task
//	}
//
// # Retries
//
// RunOne passes maxTries to the Executable, which performs all of its attempts
// within that single call and stops at the first success. The task is claimed
// once and finalized once; it never goes back to the queue.
//
// # Storage
//
// MemoryStorage is suitable for tests and single-process use. Durable
// backends live in sibling packages (mongostore, pgstore, redisstore,
// boltstore) and are checked against the same conformance suite in
// storetest.
package queue
