package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/lib/pq"

	"chronostamp/internal/ownership"
	"chronostamp/internal/registry/models"
	"chronostamp/pkg/platform/sentinel"
	txcontext "chronostamp/pkg/platform/tx"
)

const uniqueViolation = "23505"

type PostgresStore struct {
	db *sql.DB
}

func New(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *PostgresStore) execer(ctx context.Context) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

func (s *PostgresStore) Create(ctx context.Context, r *models.Registry) error {
	_, err := s.execer(ctx).ExecContext(ctx,
		`INSERT INTO registries (address, owner, created_at) VALUES ($1, $2, $3)`,
		r.Address.Hex(), r.Owner().Hex(), r.CreatedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("insert registry: %w", err)
	}
	return nil
}

// Load locks the registry row when called inside a transaction so concurrent
// creations append in a single order.
func (s *PostgresStore) Load(ctx context.Context, addr common.Address) (*models.Registry, error) {
	query := `SELECT address, owner, created_at FROM registries WHERE address = $1`
	if _, ok := txcontext.From(ctx); ok {
		query += ` FOR UPDATE`
	}
	var (
		r              models.Registry
		address, owner string
	)
	err := s.execer(ctx).QueryRowContext(ctx, query, addr.Hex()).Scan(&address, &owner, &r.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load registry: %w", err)
	}
	r.Address = common.HexToAddress(address)
	r.Ownable = ownership.Restore(common.HexToAddress(owner))
	return &r, nil
}

func (s *PostgresStore) UpdateOwner(ctx context.Context, addr, previous, next common.Address) error {
	res, err := s.execer(ctx).ExecContext(ctx,
		`UPDATE registries SET owner = $3 WHERE address = $1 AND owner = $2`,
		addr.Hex(), previous.Hex(), next.Hex(),
	)
	if err != nil {
		return fmt.Errorf("update registry owner: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update registry owner: %w", err)
	}
	if n == 0 {
		return sentinel.ErrConflict
	}
	return nil
}

func (s *PostgresStore) Append(ctx context.Context, registry, collection common.Address) (uint64, error) {
	var position int64
	err := s.execer(ctx).QueryRowContext(ctx, `
		INSERT INTO registry_badges (registry, position, collection)
		SELECT $1, COALESCE(MAX(position) + 1, 0), $2
		FROM registry_badges
		WHERE registry = $1
		RETURNING position
	`, registry.Hex(), collection.Hex()).Scan(&position)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return 0, sentinel.ErrConflict
		}
		return 0, fmt.Errorf("append collection: %w", err)
	}
	return uint64(position), nil
}

func (s *PostgresStore) Count(ctx context.Context, registry common.Address) (uint64, error) {
	var n int64
	err := s.execer(ctx).QueryRowContext(ctx,
		`SELECT COUNT(*) FROM registry_badges WHERE registry = $1`, registry.Hex(),
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count collections: %w", err)
	}
	return uint64(n), nil
}

func (s *PostgresStore) Range(ctx context.Context, registry common.Address, start, end uint64) ([]common.Address, error) {
	out := []common.Address{}
	if start >= end {
		return out, nil
	}
	rows, err := s.execer(ctx).QueryContext(ctx, `
		SELECT collection
		FROM registry_badges
		WHERE registry = $1 AND position >= $2 AND position < $3
		ORDER BY position
	`, registry.Hex(), int64(start), int64(end))
	if err != nil {
		return nil, fmt.Errorf("list collections: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var addr string
		if err := rows.Scan(&addr); err != nil {
			return nil, fmt.Errorf("scan collection: %w", err)
		}
		out = append(out, common.HexToAddress(addr))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate collections: %w", err)
	}
	return out, nil
}
