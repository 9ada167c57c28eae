package queue_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/taskqueue/pkg/logger"
	"github.com/dmitrymomot/taskqueue/pkg/queue"
)

// scriptedTask succeeds or fails per attempt according to script
type scriptedTask struct {
	valid    bool
	script   []bool
	panicMsg string

	executed atomic.Int32
	attempts atomic.Int32
	lastErr  string
}

func (s *scriptedTask) Valid() bool { return s.valid }

func (s *scriptedTask) Execute(_ context.Context, maxTries int) queue.Outcome {
	s.executed.Add(1)
	if s.panicMsg != "" {
		panic(s.panicMsg)
	}

	ok := false
	for i := 0; i < maxTries; i++ {
		n := int(s.attempts.Add(1))
		ok = n <= len(s.script) && s.script[n-1]
		if ok {
			break
		}
		s.lastErr = fmt.Sprintf("attempt %d failed", n)
	}

	if ok {
		return queue.Completed([]byte("done"))
	}
	return queue.Failed(s.lastErr, []byte("partial"))
}

func (s *scriptedTask) ErrorMessage(verbose bool) string {
	if verbose {
		return s.lastErr + "\n(detail)"
	}
	return s.lastErr
}

type MockStore struct {
	mock.Mock
}

func (m *MockStore) Create(ctx context.Context, task *queue.Task) (string, error) {
	args := m.Called(ctx, task)
	return args.String(0), args.Error(1)
}

func (m *MockStore) Update(ctx context.Context, id string, upd queue.Update) error {
	args := m.Called(ctx, id, upd)
	return args.Error(0)
}

func (m *MockStore) ClaimNext(ctx context.Context) (*queue.Task, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*queue.Task), args.Error(1)
}

func (m *MockStore) Get(ctx context.Context, id string) (*queue.Task, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*queue.Task), args.Error(1)
}

func newManager(t *testing.T, store queue.Store, tasks map[string]queue.Executable) *queue.Manager {
	t.Helper()
	registry := queue.NewRegistry()
	for typ, exec := range tasks {
		registry.MustRegister(typ, func(*queue.Task) queue.Executable { return exec })
	}
	m, err := queue.NewManager(store, registry, queue.WithManagerLogger(logger.Discard()))
	require.NoError(t, err)
	return m
}

func enqueue(t *testing.T, store queue.Store, taskType string) string {
	t.Helper()
	id, err := store.Create(context.Background(), &queue.Task{Type: taskType, Payload: json.RawMessage(`{}`)})
	require.NoError(t, err)
	return id
}

func TestNewManager(t *testing.T) {
	t.Parallel()

	_, err := queue.NewManager(nil, queue.NewRegistry())
	assert.ErrorIs(t, err, queue.ErrRepositoryNil)

	_, err = queue.NewManager(queue.NewMemoryStorage(), nil)
	assert.ErrorIs(t, err, queue.ErrRegistryNil)
}

func TestManager_RunOne(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("no work leaves store untouched", func(t *testing.T) {
		t.Parallel()
		store := queue.NewMemoryStorage()
		m := newManager(t, store, nil)

		res, err := m.RunOne(ctx, 3)
		require.NoError(t, err)
		assert.False(t, res.Claimed)
		assert.False(t, res.Succeeded())
		assert.Zero(t, store.Len(queue.StatusActive))
	})

	t.Run("succeeds on third attempt", func(t *testing.T) {
		t.Parallel()
		store := queue.NewMemoryStorage()
		exec := &scriptedTask{valid: true, script: []bool{false, false, true}}
		m := newManager(t, store, map[string]queue.Executable{"flaky": exec})
		id := enqueue(t, store, "flaky")

		res, err := m.RunOne(ctx, 3)
		require.NoError(t, err)
		assert.True(t, res.Claimed)
		assert.True(t, res.Succeeded())
		assert.Equal(t, id, res.TaskID)
		assert.Equal(t, int32(3), exec.attempts.Load())

		got, err := store.Get(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, queue.StatusCompleted, got.Status)
		assert.Empty(t, got.Message)
		assert.Equal(t, []byte("done"), got.Output)
	})

	t.Run("exhausted attempts keep only the last error", func(t *testing.T) {
		t.Parallel()
		store := queue.NewMemoryStorage()
		exec := &scriptedTask{valid: true}
		m := newManager(t, store, map[string]queue.Executable{"broken": exec})
		id := enqueue(t, store, "broken")

		res, err := m.RunOne(ctx, 2)
		require.NoError(t, err)
		assert.True(t, res.Claimed)
		assert.False(t, res.Succeeded())
		assert.Equal(t, queue.StatusFailed, res.Status)
		assert.Equal(t, "attempt 2 failed", res.Message)

		got, err := store.Get(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, queue.StatusFailed, got.Status)
		assert.Equal(t, "attempt 2 failed", got.Message)
		assert.Equal(t, []byte("partial"), got.Output)
	})

	t.Run("zero tries runs once", func(t *testing.T) {
		t.Parallel()
		store := queue.NewMemoryStorage()
		exec := &scriptedTask{valid: true, script: []bool{false, true}}
		m := newManager(t, store, map[string]queue.Executable{"flaky": exec})
		enqueue(t, store, "flaky")

		res, err := m.RunOne(ctx, 0)
		require.NoError(t, err)
		assert.Equal(t, queue.StatusFailed, res.Status)
		assert.Equal(t, int32(1), exec.attempts.Load())
	})

	t.Run("invalid payload fails without executing", func(t *testing.T) {
		t.Parallel()
		store := queue.NewMemoryStorage()
		exec := &scriptedTask{valid: false, script: []bool{true}}
		m := newManager(t, store, map[string]queue.Executable{"bad": exec})
		id := enqueue(t, store, "bad")

		res, err := m.RunOne(ctx, 3)
		require.NoError(t, err)
		assert.Equal(t, queue.StatusFailed, res.Status)
		assert.Zero(t, exec.executed.Load())

		got, err := store.Get(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, queue.StatusFailed, got.Status)
		assert.Contains(t, got.Message, queue.ErrInvalidPayload.Error())
		assert.Contains(t, got.Message, `"bad"`)
	})

	t.Run("unknown type is finalized as failed", func(t *testing.T) {
		t.Parallel()
		store := queue.NewMemoryStorage()
		m := newManager(t, store, nil)
		id := enqueue(t, store, "mystery")

		res, err := m.RunOne(ctx, 3)
		require.NoError(t, err)
		assert.True(t, res.Claimed)
		assert.Equal(t, queue.StatusFailed, res.Status)

		got, err := store.Get(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, queue.StatusFailed, got.Status)
		assert.Contains(t, got.Message, "mystery")
	})

	t.Run("panic is recorded as failure", func(t *testing.T) {
		t.Parallel()
		store := queue.NewMemoryStorage()
		exec := &scriptedTask{valid: true, panicMsg: "kaboom"}
		m := newManager(t, store, map[string]queue.Executable{"panicky": exec})
		id := enqueue(t, store, "panicky")

		res, err := m.RunOne(ctx, 1)
		require.NoError(t, err)
		assert.Equal(t, queue.StatusFailed, res.Status)

		got, err := store.Get(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, queue.StatusFailed, got.Status)
		assert.Contains(t, got.Message, "kaboom")
	})

	t.Run("tasks run in creation order", func(t *testing.T) {
		t.Parallel()
		store := queue.NewMemoryStorage()
		m := newManager(t, store, map[string]queue.Executable{
			"ok": &scriptedTask{valid: true, script: []bool{true, true, true}},
		})
		ids := []string{enqueue(t, store, "ok"), enqueue(t, store, "ok"), enqueue(t, store, "ok")}

		for _, want := range ids {
			res, err := m.RunOne(ctx, 1)
			require.NoError(t, err)
			assert.Equal(t, want, res.TaskID)
		}
	})

	t.Run("cancelled context still finalizes a claimed task", func(t *testing.T) {
		t.Parallel()
		store := queue.NewMemoryStorage()
		cctx, cancel := context.WithCancel(ctx)
		exec := &cancellingTask{cancel: cancel}
		m := newManager(t, store, map[string]queue.Executable{"slow": exec})
		id := enqueue(t, store, "slow")

		res, err := m.RunOne(cctx, 1)
		require.NoError(t, err)
		assert.True(t, res.Succeeded())

		got, err := store.Get(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, queue.StatusCompleted, got.Status)
	})

	t.Run("silent failure still gets a message", func(t *testing.T) {
		t.Parallel()
		store := queue.NewMemoryStorage()
		m := newManager(t, store, map[string]queue.Executable{"mute": silentTask{}})
		id := enqueue(t, store, "mute")

		res, err := m.RunOne(ctx, 1)
		require.NoError(t, err)
		assert.Equal(t, queue.StatusFailed, res.Status)
		assert.Equal(t, `task type "mute" failed`, res.Message)

		got, err := store.Get(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, queue.StatusFailed, got.Status)
		assert.Equal(t, `task type "mute" failed`, got.Message)
	})
}

// silentTask fails without saying why
type silentTask struct{}

func (silentTask) Valid() bool { return true }
func (silentTask) Execute(context.Context, int) queue.Outcome { return queue.Failed("", nil) }
func (silentTask) ErrorMessage(bool) string { return "" }

// cancellingTask cancels the caller's context mid-execution
type cancellingTask struct {
	cancel context.CancelFunc
}

func (c *cancellingTask) Valid() bool { return true }

func (c *cancellingTask) Execute(ctx context.Context, _ int) queue.Outcome {
	c.cancel()
	if ctx.Err() != nil {
		return queue.Failed("execution context was cancelled", nil)
	}
	return queue.Completed(nil)
}

func (c *cancellingTask) ErrorMessage(bool) string { return "" }

func TestManager_RunOne_StoreErrors(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("claim failure is returned as store error", func(t *testing.T) {
		t.Parallel()
		store := new(MockStore)
		defer store.AssertExpectations(t)

		connErr := errors.New("connection refused")
		store.On("ClaimNext", mock.Anything).Return(nil, connErr).Once()

		m := newManager(t, store, nil)
		res, err := m.RunOne(ctx, 1)
		require.Error(t, err)
		assert.True(t, queue.IsStoreError(err))
		assert.ErrorIs(t, err, connErr)
		assert.False(t, res.Claimed)
	})

	t.Run("finalize failure is returned after execution", func(t *testing.T) {
		t.Parallel()
		store := new(MockStore)
		defer store.AssertExpectations(t)

		task := &queue.Task{ID: "t-1", Type: "ok", Status: queue.StatusActive}
		store.On("ClaimNext", mock.Anything).Return(task, nil).Once()
		store.On("Update", mock.Anything, "t-1", mock.MatchedBy(func(u queue.Update) bool {
			return u.Status == queue.StatusCompleted && u.Message != nil && *u.Message == ""
		})).Return(errors.New("write timeout")).Once()

		exec := &scriptedTask{valid: true, script: []bool{true}}
		m := newManager(t, store, map[string]queue.Executable{"ok": exec})

		res, err := m.RunOne(ctx, 1)
		require.Error(t, err)
		assert.True(t, queue.IsStoreError(err))
		assert.True(t, res.Claimed)
		assert.Equal(t, queue.StatusCompleted, res.Status)
		assert.Equal(t, int32(1), exec.executed.Load())
	})

	t.Run("vanished task surfaces not found", func(t *testing.T) {
		t.Parallel()
		store := new(MockStore)
		defer store.AssertExpectations(t)

		task := &queue.Task{ID: "t-2", Type: "ok", Status: queue.StatusActive}
		store.On("ClaimNext", mock.Anything).Return(task, nil).Once()
		store.On("Update", mock.Anything, "t-2", mock.Anything).Return(queue.ErrNotFound).Once()

		m := newManager(t, store, map[string]queue.Executable{"ok": &scriptedTask{valid: true, script: []bool{true}}})

		_, err := m.RunOne(ctx, 1)
		assert.ErrorIs(t, err, queue.ErrNotFound)
		assert.False(t, queue.IsStoreError(err))
	})
}

func TestManager_ConcurrentRunOne(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	store := queue.NewMemoryStorage()
	exec := &countingTask{}
	m := newManager(t, store, map[string]queue.Executable{"count": exec})

	const tasks = 50
	for range tasks {
		enqueue(t, store, "count")
	}

	var wg sync.WaitGroup
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				res, err := m.RunOne(ctx, 1)
				if err != nil || !res.Claimed {
					return
				}
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(tasks), exec.runs.Load())
	assert.Equal(t, tasks, store.Len(queue.StatusCompleted))
	assert.Zero(t, store.Len(queue.StatusActive))
}

type countingTask struct {
	runs atomic.Int64
}

func (c *countingTask) Valid() bool { return true }

func (c *countingTask) Execute(context.Context, int) queue.Outcome {
	c.runs.Add(1)
	return queue.Completed(nil)
}

func (c *countingTask) ErrorMessage(bool) string { return "" }
