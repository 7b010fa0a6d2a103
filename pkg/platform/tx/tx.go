// Package tx gives services an all-or-nothing boundary that works the same
// whether state lives in memory or in PostgreSQL.
package tx

import (
	"context"
	"database/sql"
	"hash/fnv"
	"sync"
	"time"

	dErrors "chronostamp/pkg/domain-errors"
)

// DefaultTimeout bounds a transaction whose context carries no deadline.
const DefaultTimeout = 5 * time.Second

// Runner executes fn as one atomic unit. Nested calls reuse the outer unit.
type Runner interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type sqlTxKey struct{}
type shardKey struct{}
type inTxKey struct{}

// WithTx stores a SQL transaction in context for downstream store usage.
func WithTx(ctx context.Context, tx *sql.Tx) context.Context {
	if tx == nil {
		return ctx
	}
	return context.WithValue(ctx, sqlTxKey{}, tx)
}

// From extracts a SQL transaction from context if present.
func From(ctx context.Context) (*sql.Tx, bool) {
	tx, ok := ctx.Value(sqlTxKey{}).(*sql.Tx)
	return tx, ok
}

// WithShardKey selects the in-memory lock shard for the next RunInTx. Callers
// pass the identity of the state they mutate (a collection address, "registry").
func WithShardKey(ctx context.Context, key string) context.Context {
	return context.WithValue(ctx, shardKey{}, key)
}

func inTx(ctx context.Context) bool {
	v, _ := ctx.Value(inTxKey{}).(bool)
	return v
}

func withDeadline(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout == 0 {
		timeout = DefaultTimeout
	}
	if _, ok := ctx.Deadline(); ok {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, timeout)
}

func cancelled(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}
	return nil
}

const numShards = 64

// Sharded serializes units per shard key with a fixed set of mutexes, so
// claims against different collections do not contend.
type Sharded struct {
	shards  [numShards]sync.Mutex
	timeout time.Duration
}

// NewSharded returns an in-memory Runner.
func NewSharded(timeout time.Duration) *Sharded {
	return &Sharded{timeout: timeout}
}

func (t *Sharded) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if inTx(ctx) {
		return fn(ctx)
	}
	if err := cancelled(ctx); err != nil {
		return err
	}
	ctx, cancel := withDeadline(ctx, t.timeout)
	defer cancel()

	shard := t.selectShard(ctx)
	t.shards[shard].Lock()
	defer t.shards[shard].Unlock()

	if err := cancelled(ctx); err != nil {
		return err
	}
	return fn(context.WithValue(ctx, inTxKey{}, true))
}

func (t *Sharded) selectShard(ctx context.Context) int {
	key, _ := ctx.Value(shardKey{}).(string)
	if key == "" {
		return 0
	}
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return int(h.Sum32() % numShards)
}

// SQL runs units inside a database transaction placed in the context.
type SQL struct {
	db      *sql.DB
	timeout time.Duration
}

// NewSQL returns a PostgreSQL-backed Runner.
func NewSQL(db *sql.DB, timeout time.Duration) *SQL {
	return &SQL{db: db, timeout: timeout}
}

func (t *SQL) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := From(ctx); ok {
		return fn(ctx)
	}
	if err := cancelled(ctx); err != nil {
		return err
	}
	ctx, cancel := withDeadline(ctx, t.timeout)
	defer cancel()

	sqlTx, err := t.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = sqlTx.Rollback()
	}()

	if err := fn(WithTx(ctx, sqlTx)); err != nil {
		return err
	}
	return sqlTx.Commit()
}
