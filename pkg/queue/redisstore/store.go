package redisstore

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/dmitrymomot/taskqueue/pkg/queue"
)

// DefaultKeyPrefix namespaces every key the store writes
const DefaultKeyPrefix = "taskqueue"

// Store is a queue.Store backed by Redis.
//
// Each task is a hash at <prefix>:task:<id>; queued ids are members of the
// sorted set <prefix>:queued scored by their creation time in microseconds.
type Store struct {
	client redis.UniversalClient
	clock  queue.Clock

	taskPrefix string
	queuedKey  string
}

var _ queue.Store = (*Store)(nil)

// Option configures a Store
type Option func(*storeOptions)

type storeOptions struct {
	prefix string
	clock  queue.Clock
}

// WithKeyPrefix overrides DefaultKeyPrefix
func WithKeyPrefix(prefix string) Option {
	return func(o *storeOptions) {
		if prefix != "" {
			o.prefix = prefix
		}
	}
}

// WithClock overrides the timestamp source
func WithClock(c queue.Clock) Option {
	return func(o *storeOptions) {
		if c != nil {
			o.clock = c
		}
	}
}

// New returns a Store using client
func New(client redis.UniversalClient, opts ...Option) (*Store, error) {
	if client == nil {
		return nil, queue.ErrRepositoryNil
	}

	o := storeOptions{prefix: DefaultKeyPrefix, clock: queue.DefaultClock()}
	for _, opt := range opts {
		opt(&o)
	}

	return &Store{
		client:     client,
		clock:      o.clock,
		taskPrefix: o.prefix + ":task:",
		queuedKey:  o.prefix + ":queued",
	}, nil
}

// Create implements queue.Store
func (s *Store) Create(ctx context.Context, task *queue.Task) (string, error) {
	if err := queue.ValidateNewTask(task); err != nil {
		return "", err
	}

	id := uuid.NewString()
	now := s.clock.Now().UnixMicro()
	stamp := strconv.FormatInt(now, 10)

	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, s.taskPrefix+id,
			"id", id,
			"type", task.Type,
			"status", string(queue.StatusQueued),
			"payload", []byte(task.Payload),
			"message", "",
			"created", stamp,
			"updated", stamp,
		)
		pipe.ZAdd(ctx, s.queuedKey, redis.Z{Score: float64(now), Member: id})
		return nil
	})
	if err != nil {
		return "", queue.NewStoreError("create", err)
	}
	return id, nil
}

// Update implements queue.Store
func (s *Store) Update(ctx context.Context, id string, upd queue.Update) error {
	if err := queue.ValidateUpdate(upd); err != nil {
		return err
	}
	if _, err := uuid.Parse(id); err != nil {
		return fmt.Errorf("%w: %s", queue.ErrNotFound, id)
	}

	var sources []string
	for _, src := range queue.SourcesOf(upd.Status) {
		sources = append(sources, string(src))
	}

	args := []any{
		strconv.FormatInt(s.clock.Now().UnixMicro(), 10),
		string(upd.Status),
		strings.Join(sources, ","),
	}
	if upd.Message != nil {
		args = append(args, "message", *upd.Message)
	}
	if upd.Output != nil {
		args = append(args, "output", upd.Output)
	}

	res, err := updateScript.Run(ctx, s.client, []string{s.taskPrefix + id}, args...).Int()
	if err != nil {
		return queue.NewStoreError("update", err)
	}

	switch res {
	case 1:
		return nil
	case -1:
		return fmt.Errorf("%w: %s", queue.ErrNotFound, id)
	default:
		return fmt.Errorf("%w: %s -> %s", queue.ErrInvalidTransition, id, upd.Status)
	}
}

// ClaimNext implements queue.Store
func (s *Store) ClaimNext(ctx context.Context) (*queue.Task, error) {
	reply, err := claimScript.Run(ctx, s.client,
		[]string{s.queuedKey},
		s.taskPrefix, strconv.FormatInt(s.clock.Now().UnixMicro(), 10), string(queue.ClaimTarget),
	).StringSlice()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, queue.NewStoreError("claim", err)
	}

	fields := make(map[string]string, len(reply)/2)
	for i := 0; i+1 < len(reply); i += 2 {
		fields[reply[i]] = reply[i+1]
	}
	task, err := decodeTask(fields)
	if err != nil {
		return nil, queue.NewStoreError("claim", err)
	}
	return task, nil
}

// Get implements queue.Store
func (s *Store) Get(ctx context.Context, id string) (*queue.Task, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("%w: %s", queue.ErrNotFound, id)
	}

	fields, err := s.client.HGetAll(ctx, s.taskPrefix+id).Result()
	if err != nil {
		return nil, queue.NewStoreError("get", err)
	}
	if len(fields) == 0 {
		return nil, fmt.Errorf("%w: %s", queue.ErrNotFound, id)
	}

	task, err := decodeTask(fields)
	if err != nil {
		return nil, queue.NewStoreError("get", err)
	}
	return task, nil
}

// QueuedLen returns how many tasks wait in the queued set
func (s *Store) QueuedLen(ctx context.Context) (int64, error) {
	n, err := s.client.ZCard(ctx, s.queuedKey).Result()
	if err != nil {
		return 0, queue.NewStoreError("queued len", err)
	}
	return n, nil
}

func decodeTask(fields map[string]string) (*queue.Task, error) {
	created, err := strconv.ParseInt(fields["created"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("task %s: bad created: %w", fields["id"], err)
	}
	updated, err := strconv.ParseInt(fields["updated"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("task %s: bad updated: %w", fields["id"], err)
	}

	task := &queue.Task{
		ID:      fields["id"],
		Type:    fields["type"],
		Status:  queue.Status(fields["status"]),
		Message: fields["message"],
		Created: time.UnixMicro(created).UTC(),
		Updated: time.UnixMicro(updated).UTC(),
	}
	if p, ok := fields["payload"]; ok && p != "" {
		task.Payload = []byte(p)
	}
	if out, ok := fields["output"]; ok && out != "" {
		task.Output = []byte(out)
	}
	return task, nil
}
