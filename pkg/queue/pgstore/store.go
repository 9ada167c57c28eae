package pgstore

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/dmitrymomot/taskqueue/pkg/pg"
	"github.com/dmitrymomot/taskqueue/pkg/queue"
)

// DB is the subset of pgxpool.Pool the store needs; pgx.Tx satisfies it too
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store is a queue.Store backed by a PostgreSQL table
type Store struct {
	db    DB
	table string
	clock queue.Clock

	insertSQL string
	claimSQL  string
	getSQL    string
	updateSQL string
	existsSQL string
}

var _ queue.Store = (*Store)(nil)

// Option configures a Store
type Option func(*Store)

// WithTable overrides the table name. The table must have the layout created
// by Migrations.
func WithTable(name string) Option {
	return func(s *Store) {
		if name != "" {
			s.table = name
		}
	}
}

// WithClock overrides the timestamp source
func WithClock(c queue.Clock) Option {
	return func(s *Store) {
		if c != nil {
			s.clock = c
		}
	}
}

// New returns a Store using db
func New(db DB, opts ...Option) (*Store, error) {
	if db == nil {
		return nil, queue.ErrRepositoryNil
	}

	s := &Store{db: db, table: "tasks", clock: queue.DefaultClock()}
	for _, opt := range opts {
		opt(s)
	}
	s.prepare()
	return s, nil
}

const columns = "id, type, status, payload, message, output, created, updated"

func (s *Store) prepare() {
	table := pgx.Identifier{s.table}.Sanitize()

	s.insertSQL = fmt.Sprintf(
		`INSERT INTO %s (type, status, payload, created, updated) VALUES ($1, $2, $3, $4, $4) RETURNING id`,
		table)

	// SKIP LOCKED lets concurrent claimers pass over rows another
	// transaction is taking instead of queueing behind it.
	s.claimSQL = fmt.Sprintf(`UPDATE %[1]s
SET status = $1, updated = GREATEST($2, updated + interval '1 microsecond')
WHERE id = (
    SELECT id FROM %[1]s
    WHERE status = $3
    ORDER BY created, id
    LIMIT 1
    FOR UPDATE SKIP LOCKED
)
RETURNING %[2]s`, table, columns)

	// Ids arrive as text and are cast server-side; a malformed id fails with
	// invalid_text_representation, reported as not found.
	s.getSQL = fmt.Sprintf(`SELECT %s FROM %s WHERE id = $1::text::uuid`, columns, table)

	// $3 NULL keeps the status; otherwise the row must be in one of $4.
	s.updateSQL = fmt.Sprintf(`UPDATE %s
SET status  = COALESCE($3, status),
    message = COALESCE($5, message),
    output  = COALESCE($6, output),
    updated = GREATEST($2, updated + interval '1 microsecond')
WHERE id = $1::text::uuid AND ($3::text IS NULL OR status = ANY($4))`, table)

	s.existsSQL = fmt.Sprintf(`SELECT EXISTS (SELECT 1 FROM %s WHERE id = $1::text::uuid)`, table)
}

// Create implements queue.Store
func (s *Store) Create(ctx context.Context, task *queue.Task) (string, error) {
	if err := queue.ValidateNewTask(task); err != nil {
		return "", err
	}

	var id uuid.UUID
	err := s.db.QueryRow(ctx, s.insertSQL,
		task.Type, string(queue.StatusQueued), []byte(task.Payload), s.clock.Now(),
	).Scan(&id)
	if err != nil {
		return "", queue.NewStoreError("create", err)
	}
	return id.String(), nil
}

// Update implements queue.Store
func (s *Store) Update(ctx context.Context, id string, upd queue.Update) error {
	if err := queue.ValidateUpdate(upd); err != nil {
		return err
	}
	var status *string
	var sources []string
	if upd.Status != "" {
		st := string(upd.Status)
		status = &st
		for _, src := range queue.SourcesOf(upd.Status) {
			sources = append(sources, string(src))
		}
	}

	tag, err := s.db.Exec(ctx, s.updateSQL, id, s.clock.Now(), status, sources, upd.Message, upd.Output)
	if pg.IsInvalidTextRepresentation(err) {
		return fmt.Errorf("%w: %s", queue.ErrNotFound, id)
	}
	if err != nil {
		return queue.NewStoreError("update", err)
	}
	if tag.RowsAffected() > 0 {
		return nil
	}

	var exists bool
	if err := s.db.QueryRow(ctx, s.existsSQL, id).Scan(&exists); err != nil {
		return queue.NewStoreError("update", err)
	}
	if !exists {
		return fmt.Errorf("%w: %s", queue.ErrNotFound, id)
	}
	return fmt.Errorf("%w: %s -> %s", queue.ErrInvalidTransition, id, upd.Status)
}

// ClaimNext implements queue.Store
func (s *Store) ClaimNext(ctx context.Context) (*queue.Task, error) {
	task, err := scanTask(s.db.QueryRow(ctx, s.claimSQL,
		string(queue.ClaimTarget), s.clock.Now(), string(queue.StatusQueued)))
	if pg.IsNotFoundError(err) {
		return nil, nil
	}
	if err != nil {
		return nil, queue.NewStoreError("claim", err)
	}
	return task, nil
}

// Get implements queue.Store
func (s *Store) Get(ctx context.Context, id string) (*queue.Task, error) {
	task, err := scanTask(s.db.QueryRow(ctx, s.getSQL, id))
	if pg.IsNotFoundError(err) || pg.IsInvalidTextRepresentation(err) {
		return nil, fmt.Errorf("%w: %s", queue.ErrNotFound, id)
	}
	if err != nil {
		return nil, queue.NewStoreError("get", err)
	}
	return task, nil
}

func scanTask(row pgx.Row) (*queue.Task, error) {
	var (
		id               uuid.UUID
		task             queue.Task
		status           string
		payload          []byte
		created, updated time.Time
	)
	if err := row.Scan(&id, &task.Type, &status, &payload, &task.Message, &task.Output, &created, &updated); err != nil {
		return nil, err
	}
	task.ID = id.String()
	task.Status = queue.Status(status)
	task.Payload = payload
	task.Created = created.UTC()
	task.Updated = updated.UTC()
	return &task, nil
}
