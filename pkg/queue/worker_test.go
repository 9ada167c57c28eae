package queue_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/taskqueue/pkg/logger"
	"github.com/dmitrymomot/taskqueue/pkg/queue"
)

func TestWorker_NewWorker(t *testing.T) {
	t.Parallel()

	t.Run("nil manager", func(t *testing.T) {
		t.Parallel()
		w, err := queue.NewWorker(nil)
		assert.ErrorIs(t, err, queue.ErrManagerNil)
		assert.Nil(t, w)
	})

	t.Run("with options", func(t *testing.T) {
		t.Parallel()
		m := newManager(t, queue.NewMemoryStorage(), nil)
		w, err := queue.NewWorker(m,
			queue.WithPullInterval(time.Second),
			queue.WithMaxConcurrentTasks(5),
			queue.WithMaxTries(3),
			queue.WithWorkerLogger(logger.Discard()),
		)
		require.NoError(t, err)

		id, _, pid := w.WorkerInfo()
		assert.NotEmpty(t, id)
		assert.NotZero(t, pid)
	})
}

func TestWorker_StartStop(t *testing.T) {
	t.Parallel()

	t.Run("start and stop", func(t *testing.T) {
		t.Parallel()
		m := newManager(t, queue.NewMemoryStorage(), nil)
		w, err := queue.NewWorker(m, queue.WithPullInterval(10*time.Millisecond), queue.WithWorkerLogger(logger.Discard()))
		require.NoError(t, err)

		require.NoError(t, w.Start(context.Background()))
		assert.ErrorIs(t, w.Start(context.Background()), queue.ErrWorkerStarted)

		time.Sleep(30 * time.Millisecond)
		require.NoError(t, w.Stop())
		assert.ErrorIs(t, w.Stop(), queue.ErrWorkerNotStarted)
	})

	t.Run("restart keeps processing", func(t *testing.T) {
		t.Parallel()
		store := queue.NewMemoryStorage()
		exec := &countingTask{}
		m := newManager(t, store, map[string]queue.Executable{"count": exec})
		w, err := queue.NewWorker(m,
			queue.WithPullInterval(time.Millisecond),
			queue.WithMaxConcurrentTasks(2),
			queue.WithWorkerLogger(logger.Discard()),
		)
		require.NoError(t, err)

		const rounds = 50
		for range rounds {
			enqueue(t, store, "count")
			require.NoError(t, w.Start(context.Background()))
			time.Sleep(2 * time.Millisecond)
			require.NoError(t, w.Stop())
		}

		require.NoError(t, w.Start(context.Background()))
		require.Eventually(t, func() bool {
			return store.Len(queue.StatusCompleted) == rounds
		}, 2*time.Second, 5*time.Millisecond)
		require.NoError(t, w.Stop())

		processed, failed := w.Stats()
		assert.Equal(t, int64(rounds), processed)
		assert.Zero(t, failed)
		assert.Equal(t, int64(rounds), exec.runs.Load())
	})
}

func TestWorker_ProcessesQueue(t *testing.T) {
	t.Parallel()

	store := queue.NewMemoryStorage()
	exec := &countingTask{}
	m := newManager(t, store, map[string]queue.Executable{"count": exec})

	const tasks = 25
	for range tasks {
		enqueue(t, store, "count")
	}
	enqueue(t, store, "unknown")

	w, err := queue.NewWorker(m,
		queue.WithPullInterval(10*time.Millisecond),
		queue.WithMaxConcurrentTasks(4),
		queue.WithWorkerLogger(logger.Discard()),
	)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, w.Start(ctx))

	require.Eventually(t, func() bool {
		return store.Len(queue.StatusQueued) == 0 && store.Len(queue.StatusActive) == 0
	}, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, w.Stop())

	assert.Equal(t, int64(tasks), exec.runs.Load())
	assert.Equal(t, tasks, store.Len(queue.StatusCompleted))
	assert.Equal(t, 1, store.Len(queue.StatusFailed))

	processed, failed := w.Stats()
	assert.Equal(t, int64(tasks+1), processed)
	assert.Equal(t, int64(1), failed)
}

func TestWorker_SurvivesStoreErrors(t *testing.T) {
	t.Parallel()

	store := new(MockStore)
	calls := make(chan struct{}, 10)
	store.On("ClaimNext", mock.Anything).Return(nil, errors.New("connection reset")).Run(func(mock.Arguments) {
		select {
		case calls <- struct{}{}:
		default:
		}
	})

	m := newManager(t, store, nil)
	w, err := queue.NewWorker(m, queue.WithPullInterval(5*time.Millisecond), queue.WithWorkerLogger(logger.Discard()))
	require.NoError(t, err)

	require.NoError(t, w.Start(context.Background()))
	for range 3 {
		select {
		case <-calls:
		case <-time.After(2 * time.Second):
			t.Fatal("worker stopped polling after a store error")
		}
	}
	require.NoError(t, w.Stop())
}

func TestWorker_Run(t *testing.T) {
	t.Parallel()

	store := queue.NewMemoryStorage()
	m := newManager(t, store, map[string]queue.Executable{"count": &countingTask{}})
	enqueue(t, store, "count")

	w, err := queue.NewWorker(m, queue.WithPullInterval(5*time.Millisecond), queue.WithWorkerLogger(logger.Discard()))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx)() }()

	require.Eventually(t, func() bool {
		return store.Len(queue.StatusCompleted) == 1
	}, 2*time.Second, 5*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
