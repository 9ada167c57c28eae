package boltstore

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	bolt "go.etcd.io/bbolt"

	"github.com/dmitrymomot/taskqueue/pkg/queue"
)

var (
	tasksBucket  = []byte("tasks")
	queuedBucket = []byte("queued")
)

// Store is a queue.Store backed by a bbolt file.
//
// bbolt serializes write transactions, so a claim performed in one
// db.Update is atomic. The file is locked by a single process.
type Store struct {
	db    *bolt.DB
	clock queue.Clock
	owned bool
}

var _ queue.Store = (*Store)(nil)

// Option configures a Store
type Option func(*Store)

// WithClock overrides the timestamp source
func WithClock(c queue.Clock) Option {
	return func(s *Store) {
		if c != nil {
			s.clock = c
		}
	}
}

// Open opens or creates the database file at path
func Open(path string, opts ...Option) (*Store, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, queue.NewStoreError("open", err)
	}

	s, err := New(db, opts...)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	s.owned = true
	return s, nil
}

// New wraps an already open database and creates the buckets it needs
func New(db *bolt.DB, opts ...Option) (*Store, error) {
	if db == nil {
		return nil, queue.ErrRepositoryNil
	}

	s := &Store{db: db, clock: queue.DefaultClock()}
	for _, opt := range opts {
		opt(s)
	}

	err := db.Update(func(tx *bolt.Tx) error {
		for _, name := range [][]byte{tasksBucket, queuedBucket} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, queue.NewStoreError("init", err)
	}
	return s, nil
}

// Close closes the database if the store opened it
func (s *Store) Close() error {
	if !s.owned {
		return nil
	}
	return s.db.Close()
}

// Create implements queue.Store
func (s *Store) Create(ctx context.Context, task *queue.Task) (string, error) {
	if err := queue.ValidateNewTask(task); err != nil {
		return "", err
	}
	if err := ctx.Err(); err != nil {
		return "", queue.NewStoreError("create", err)
	}

	rec := task.Clone()
	rec.ID = uuid.NewString()
	rec.Status = queue.StatusQueued
	rec.Message = ""
	rec.Output = nil

	err := s.db.Update(func(tx *bolt.Tx) error {
		now := s.clock.Now()
		rec.Created, rec.Updated = now, now
		if err := putTask(tx, rec); err != nil {
			return err
		}
		return tx.Bucket(queuedBucket).Put(queueKey(rec), []byte(rec.ID))
	})
	if err != nil {
		return "", queue.NewStoreError("create", err)
	}
	return rec.ID, nil
}

// Update implements queue.Store
func (s *Store) Update(ctx context.Context, id string, upd queue.Update) error {
	if err := queue.ValidateUpdate(upd); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return queue.NewStoreError("update", err)
	}

	err := s.db.Update(func(tx *bolt.Tx) error {
		task, err := getTask(tx, id)
		if err != nil {
			return err
		}

		if upd.Status != "" {
			if !queue.CanTransition(task.Status, upd.Status) {
				return fmt.Errorf("%w: %s -> %s", queue.ErrInvalidTransition, task.Status, upd.Status)
			}
			task.Status = upd.Status
		}
		if upd.Message != nil {
			task.Message = *upd.Message
		}
		if upd.Output != nil {
			task.Output = upd.Output
		}
		task.Updated = s.stamp(task.Updated)

		return putTask(tx, task)
	})
	return queue.NewStoreError("update", err)
}

// ClaimNext implements queue.Store
func (s *Store) ClaimNext(ctx context.Context) (*queue.Task, error) {
	if err := ctx.Err(); err != nil {
		return nil, queue.NewStoreError("claim", err)
	}

	var claimed *queue.Task
	err := s.db.Update(func(tx *bolt.Tx) error {
		c := tx.Bucket(queuedBucket).Cursor()
		key, id := c.First()
		if key == nil {
			return nil
		}
		if err := c.Delete(); err != nil {
			return err
		}

		task, err := getTask(tx, string(id))
		if err != nil {
			return err
		}
		task.Status = queue.ClaimTarget
		task.Updated = s.stamp(task.Updated)
		if err := putTask(tx, task); err != nil {
			return err
		}
		claimed = task
		return nil
	})
	if err != nil {
		return nil, queue.NewStoreError("claim", err)
	}
	return claimed, nil
}

// Get implements queue.Store
func (s *Store) Get(ctx context.Context, id string) (*queue.Task, error) {
	if err := ctx.Err(); err != nil {
		return nil, queue.NewStoreError("get", err)
	}

	var task *queue.Task
	err := s.db.View(func(tx *bolt.Tx) error {
		var err error
		task, err = getTask(tx, id)
		return err
	})
	if err != nil {
		return nil, queue.NewStoreError("get", err)
	}
	return task, nil
}

// stamp returns a timestamp strictly after prev
func (s *Store) stamp(prev time.Time) time.Time {
	now := s.clock.Now()
	if !now.After(prev) {
		now = prev.Add(queue.Precision)
	}
	return now
}

// queueKey orders queued tasks by creation time, then id
func queueKey(task *queue.Task) []byte {
	key := make([]byte, 8, 8+len(task.ID))
	binary.BigEndian.PutUint64(key, uint64(task.Created.UnixMicro()))
	return append(key, task.ID...)
}

// record is the stored form of a task. Payload is kept as bytes so that
// payloads which are not valid JSON round-trip untouched.
type record struct {
	ID      string    `json:"id"`
	Type    string    `json:"type"`
	Status  string    `json:"status"`
	Payload []byte    `json:"payload,omitempty"`
	Message string    `json:"message,omitempty"`
	Output  []byte    `json:"output,omitempty"`
	Created time.Time `json:"created"`
	Updated time.Time `json:"updated"`
}

func getTask(tx *bolt.Tx, id string) (*queue.Task, error) {
	raw := tx.Bucket(tasksBucket).Get([]byte(id))
	if raw == nil {
		return nil, fmt.Errorf("%w: %s", queue.ErrNotFound, id)
	}

	// raw is only valid for the life of the transaction; Unmarshal copies
	var rec record
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, fmt.Errorf("decoding task %s: %w", id, err)
	}
	return &queue.Task{
		ID:      rec.ID,
		Type:    rec.Type,
		Status:  queue.Status(rec.Status),
		Payload: rec.Payload,
		Message: rec.Message,
		Output:  rec.Output,
		Created: rec.Created.UTC(),
		Updated: rec.Updated.UTC(),
	}, nil
}

func putTask(tx *bolt.Tx, task *queue.Task) error {
	raw, err := json.Marshal(record{
		ID:      task.ID,
		Type:    task.Type,
		Status:  string(task.Status),
		Payload: task.Payload,
		Message: task.Message,
		Output:  task.Output,
		Created: task.Created,
		Updated: task.Updated,
	})
	if err != nil {
		return fmt.Errorf("encoding task %s: %w", task.ID, err)
	}
	return tx.Bucket(tasksBucket).Put([]byte(task.ID), raw)
}

// QueuedIDs returns the ids of queued tasks in claim order
func (s *Store) QueuedIDs() ([]string, error) {
	var ids []string
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(queuedBucket).ForEach(func(_, v []byte) error {
			ids = append(ids, string(bytes.Clone(v)))
			return nil
		})
	})
	if err != nil {
		return nil, queue.NewStoreError("list queued", err)
	}
	return ids, nil
}
