// Package storetest is a conformance suite for queue.Store implementations.
//
// Each backend's tests call Run with a constructor returning an empty store:
//
//	func TestStore(t *testing.T) {
//		storetest.Run(t, func(t *testing.T) queue.Store {
//			return newEmptyStore(t)
//		})
//	}
package storetest

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/taskqueue/pkg/queue"
)

// Factory returns a new, empty store. It is called once per subtest.
type Factory func(t *testing.T) queue.Store

// Run executes the whole suite against stores built by newStore
func Run(t *testing.T, newStore Factory) {
	t.Helper()

	t.Run("Create", func(t *testing.T) { testCreate(t, newStore) })
	t.Run("ClaimNext", func(t *testing.T) { testClaimNext(t, newStore) })
	t.Run("ConcurrentClaim", func(t *testing.T) { testConcurrentClaim(t, newStore) })
	t.Run("Update", func(t *testing.T) { testUpdate(t, newStore) })
	t.Run("Lifecycle", func(t *testing.T) { testLifecycle(t, newStore) })
	t.Run("Get", func(t *testing.T) { testGet(t, newStore) })
}

func create(t *testing.T, s queue.Store, taskType string) string {
	t.Helper()
	id, err := s.Create(context.Background(), &queue.Task{
		Type:    taskType,
		Payload: json.RawMessage(`{"n":1}`),
	})
	require.NoError(t, err)
	require.NotEmpty(t, id)
	return id
}

func testCreate(t *testing.T, newStore Factory) {
	ctx := context.Background()

	t.Run("new task is queued with equal timestamps", func(t *testing.T) {
		s := newStore(t)
		before := time.Now().Add(-time.Second)

		id, err := s.Create(ctx, &queue.Task{
			Type:    "test",
			Status:  queue.StatusCompleted, // ignored
			Payload: json.RawMessage(`{"uri":"http://x/ok"}`),
			Created: time.Unix(0, 0), // ignored
		})
		require.NoError(t, err)

		got, err := s.Get(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, id, got.ID)
		assert.Equal(t, "test", got.Type)
		assert.Equal(t, queue.StatusQueued, got.Status)
		assert.JSONEq(t, `{"uri":"http://x/ok"}`, string(got.Payload))
		assert.True(t, got.Created.Equal(got.Updated), "created %v != updated %v", got.Created, got.Updated)
		assert.True(t, got.Created.After(before))
		assert.Empty(t, got.Message)
		assert.Empty(t, got.Output)
	})

	t.Run("ids are unique", func(t *testing.T) {
		s := newStore(t)
		seen := make(map[string]struct{})
		for range 10 {
			id := create(t, s, "test")
			_, dup := seen[id]
			require.False(t, dup, "duplicate id %s", id)
			seen[id] = struct{}{}
		}
	})

	t.Run("type is required", func(t *testing.T) {
		s := newStore(t)
		_, err := s.Create(ctx, &queue.Task{})
		assert.ErrorIs(t, err, queue.ErrTaskTypeRequired)

		_, err = s.Create(ctx, nil)
		assert.ErrorIs(t, err, queue.ErrTaskNil)
	})
}

func testClaimNext(t *testing.T, newStore Factory) {
	ctx := context.Background()

	t.Run("empty store returns nothing", func(t *testing.T) {
		s := newStore(t)
		task, err := s.ClaimNext(ctx)
		require.NoError(t, err)
		assert.Nil(t, task)
	})

	t.Run("claims oldest first and marks active", func(t *testing.T) {
		s := newStore(t)
		first := create(t, s, "a")
		second := create(t, s, "b")
		third := create(t, s, "c")

		for _, want := range []string{first, second, third} {
			task, err := s.ClaimNext(ctx)
			require.NoError(t, err)
			require.NotNil(t, task)
			assert.Equal(t, want, task.ID)
			assert.Equal(t, queue.StatusActive, task.Status)
			assert.True(t, task.Updated.After(task.Created))
		}

		task, err := s.ClaimNext(ctx)
		require.NoError(t, err)
		assert.Nil(t, task)
	})

	t.Run("claimed task is persisted as active", func(t *testing.T) {
		s := newStore(t)
		id := create(t, s, "a")

		claimed, err := s.ClaimNext(ctx)
		require.NoError(t, err)
		require.NotNil(t, claimed)

		got, err := s.Get(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, queue.ClaimTarget, got.Status)
		assert.True(t, got.Updated.Equal(claimed.Updated))
		assert.True(t, got.Created.Equal(claimed.Created))
	})

	t.Run("does not return finished tasks", func(t *testing.T) {
		s := newStore(t)
		create(t, s, "a")

		claimed, err := s.ClaimNext(ctx)
		require.NoError(t, err)
		require.NotNil(t, claimed)
		require.NoError(t, s.Update(ctx, claimed.ID, queue.Update{Status: queue.StatusCompleted}))

		task, err := s.ClaimNext(ctx)
		require.NoError(t, err)
		assert.Nil(t, task)
	})
}

func testConcurrentClaim(t *testing.T, newStore Factory) {
	ctx := context.Background()

	t.Run("single queued task is claimed exactly once", func(t *testing.T) {
		s := newStore(t)
		id := create(t, s, "a")

		const workers = 16
		var (
			wg      sync.WaitGroup
			mu      sync.Mutex
			winners []string
			errs    []error
		)
		start := make(chan struct{})
		for range workers {
			wg.Add(1)
			go func() {
				defer wg.Done()
				<-start
				task, err := s.ClaimNext(ctx)
				mu.Lock()
				defer mu.Unlock()
				if err != nil {
					errs = append(errs, err)
					return
				}
				if task != nil {
					winners = append(winners, task.ID)
				}
			}()
		}
		close(start)
		wg.Wait()

		require.Empty(t, errs)
		require.Len(t, winners, 1)
		assert.Equal(t, id, winners[0])
	})

	t.Run("many tasks are each claimed once", func(t *testing.T) {
		s := newStore(t)
		const tasks = 20
		for range tasks {
			create(t, s, "a")
		}

		var (
			wg      sync.WaitGroup
			mu      sync.Mutex
			claimed = make(map[string]int)
		)
		for range 8 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for {
					task, err := s.ClaimNext(ctx)
					if err != nil || task == nil {
						return
					}
					mu.Lock()
					claimed[task.ID]++
					mu.Unlock()
				}
			}()
		}
		wg.Wait()

		assert.Len(t, claimed, tasks)
		for id, n := range claimed {
			assert.Equal(t, 1, n, "task %s claimed %d times", id, n)
		}
	})
}

func testUpdate(t *testing.T, newStore Factory) {
	ctx := context.Background()

	t.Run("each write strictly increases updated", func(t *testing.T) {
		s := newStore(t)
		id := create(t, s, "a")

		prev, err := s.Get(ctx, id)
		require.NoError(t, err)

		for _, msg := range []string{"one", "two", "three"} {
			m := msg
			require.NoError(t, s.Update(ctx, id, queue.Update{Message: &m}))

			got, err := s.Get(ctx, id)
			require.NoError(t, err)
			assert.True(t, got.Updated.After(prev.Updated), "updated did not increase: %v <= %v", got.Updated, prev.Updated)
			assert.True(t, got.Created.Equal(prev.Created))
			assert.Equal(t, m, got.Message)
			prev = got
		}
	})

	t.Run("partial update keeps other fields", func(t *testing.T) {
		s := newStore(t)
		create(t, s, "a")
		claimed, err := s.ClaimNext(ctx)
		require.NoError(t, err)
		require.NotNil(t, claimed)

		msg := "boom"
		require.NoError(t, s.Update(ctx, claimed.ID, queue.Update{
			Status:  queue.StatusFailed,
			Message: &msg,
			Output:  []byte("body"),
		}))

		require.NoError(t, s.Update(ctx, claimed.ID, queue.Update{}))

		got, err := s.Get(ctx, claimed.ID)
		require.NoError(t, err)
		assert.Equal(t, queue.StatusFailed, got.Status)
		assert.Equal(t, "boom", got.Message)
		assert.Equal(t, []byte("body"), got.Output)
		assert.Equal(t, "a", got.Type)
		assert.JSONEq(t, `{"n":1}`, string(got.Payload))
	})

	t.Run("empty message clears it", func(t *testing.T) {
		s := newStore(t)
		id := create(t, s, "a")

		msg := "first"
		require.NoError(t, s.Update(ctx, id, queue.Update{Message: &msg}))
		empty := ""
		require.NoError(t, s.Update(ctx, id, queue.Update{Message: &empty}))

		got, err := s.Get(ctx, id)
		require.NoError(t, err)
		assert.Empty(t, got.Message)
	})

	t.Run("unknown id", func(t *testing.T) {
		s := newStore(t)
		msg := "x"
		err := s.Update(ctx, unknownID, queue.Update{Message: &msg})
		assert.ErrorIs(t, err, queue.ErrNotFound)

		err = s.Update(ctx, unknownID, queue.Update{Status: queue.StatusFailed})
		assert.ErrorIs(t, err, queue.ErrNotFound)
	})

	t.Run("malformed id is not found", func(t *testing.T) {
		s := newStore(t)
		err := s.Update(ctx, "not-an-id", queue.Update{Status: queue.StatusFailed})
		assert.ErrorIs(t, err, queue.ErrNotFound)
	})
}

func testLifecycle(t *testing.T, newStore Factory) {
	ctx := context.Background()

	t.Run("queued task cannot be finished without a claim", func(t *testing.T) {
		s := newStore(t)
		id := create(t, s, "a")

		err := s.Update(ctx, id, queue.Update{Status: queue.StatusCompleted})
		assert.ErrorIs(t, err, queue.ErrInvalidTransition)

		got, err := s.Get(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, queue.StatusQueued, got.Status)
	})

	t.Run("update cannot requeue or activate", func(t *testing.T) {
		s := newStore(t)
		create(t, s, "a")
		claimed, err := s.ClaimNext(ctx)
		require.NoError(t, err)
		require.NotNil(t, claimed)

		assert.ErrorIs(t, s.Update(ctx, claimed.ID, queue.Update{Status: queue.StatusQueued}), queue.ErrInvalidTransition)
		assert.ErrorIs(t, s.Update(ctx, claimed.ID, queue.Update{Status: queue.StatusActive}), queue.ErrInvalidTransition)
		assert.ErrorIs(t, s.Update(ctx, claimed.ID, queue.Update{Status: "paused"}), queue.ErrInvalidStatus)
	})

	t.Run("terminal status never changes", func(t *testing.T) {
		for _, terminal := range []queue.Status{queue.StatusCompleted, queue.StatusFailed} {
			t.Run(string(terminal), func(t *testing.T) {
				s := newStore(t)
				create(t, s, "a")
				claimed, err := s.ClaimNext(ctx)
				require.NoError(t, err)
				require.NotNil(t, claimed)
				require.NoError(t, s.Update(ctx, claimed.ID, queue.Update{Status: terminal}))

				for _, next := range []queue.Status{queue.StatusCompleted, queue.StatusFailed} {
					err := s.Update(ctx, claimed.ID, queue.Update{Status: next})
					assert.ErrorIs(t, err, queue.ErrInvalidTransition)
				}

				got, err := s.Get(ctx, claimed.ID)
				require.NoError(t, err)
				assert.Equal(t, terminal, got.Status)
			})
		}
	})
}

func testGet(t *testing.T, newStore Factory) {
	ctx := context.Background()

	t.Run("unknown id", func(t *testing.T) {
		s := newStore(t)
		_, err := s.Get(ctx, unknownID)
		assert.ErrorIs(t, err, queue.ErrNotFound)

		_, err = s.Get(ctx, "not-an-id")
		assert.ErrorIs(t, err, queue.ErrNotFound)
	})

	t.Run("returned task is a copy", func(t *testing.T) {
		s := newStore(t)
		id := create(t, s, "a")

		got, err := s.Get(ctx, id)
		require.NoError(t, err)
		got.Payload[0] = 'X'
		got.Status = queue.StatusFailed

		again, err := s.Get(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, queue.StatusQueued, again.Status)
		assert.JSONEq(t, `{"n":1}`, string(again.Payload))
	})
}

// unknownID is a well-formed UUID no store has issued. Backends with other id
// formats see it as malformed, which must map to ErrNotFound as well.
const unknownID = "00000000-0000-4000-8000-000000000000"
