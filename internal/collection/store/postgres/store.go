package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/lib/pq"

	"chronostamp/internal/collection/models"
	"chronostamp/internal/ownership"
	"chronostamp/pkg/domain"
	"chronostamp/pkg/platform/sentinel"
	txcontext "chronostamp/pkg/platform/tx"
)

const uniqueViolation = "23505"

// PostgresStore persists collections, their nonce sets and token ledgers.
type PostgresStore struct {
	db *sql.DB
}

func New(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *PostgresStore) execer(ctx context.Context) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

// inTx runs fn in the caller's transaction, or in a fresh one when ctx has none.
func (s *PostgresStore) inTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := txcontext.From(ctx); ok {
		return fn(ctx)
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()
	if err := fn(txcontext.WithTx(ctx, tx)); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *PostgresStore) Create(ctx context.Context, c *models.Collection) error {
	query := `
		INSERT INTO collections (address, deployer, name, symbol, base_uri, trusted_signer, owner, next_token_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err := s.execer(ctx).ExecContext(ctx, query,
		c.Address.Hex(),
		c.Deployer.Hex(),
		c.Name,
		c.Symbol,
		c.BaseURI,
		c.TrustedSigner.Hex(),
		c.Owner().Hex(),
		int64(c.NextTokenID),
		c.CreatedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("insert collection: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByAddress(ctx context.Context, addr common.Address) (*models.Collection, error) {
	query := `
		SELECT address, deployer, name, symbol, base_uri, trusted_signer, owner, next_token_id, created_at
		FROM collections
		WHERE address = $1
	`
	var (
		c                                       models.Collection
		address, deployer, trustedSigner, owner string
		nextTokenID                             int64
	)
	err := s.execer(ctx).QueryRowContext(ctx, query, addr.Hex()).Scan(
		&address, &deployer, &c.Name, &c.Symbol, &c.BaseURI, &trustedSigner, &owner, &nextTokenID, &c.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find collection: %w", err)
	}
	c.Address = common.HexToAddress(address)
	c.Deployer = common.HexToAddress(deployer)
	c.TrustedSigner = common.HexToAddress(trustedSigner)
	c.Ownable = ownership.Restore(common.HexToAddress(owner))
	c.NextTokenID = uint64(nextTokenID)
	return &c, nil
}

func (s *PostgresStore) CountByDeployer(ctx context.Context, deployer common.Address) (uint64, error) {
	var n int64
	err := s.execer(ctx).QueryRowContext(ctx,
		`SELECT COUNT(*) FROM collections WHERE deployer = $1`, deployer.Hex(),
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count collections: %w", err)
	}
	return uint64(n), nil
}

// UpdateOwner swaps the owner only if it is still previous.
func (s *PostgresStore) UpdateOwner(ctx context.Context, addr, previous, next common.Address) error {
	res, err := s.execer(ctx).ExecContext(ctx,
		`UPDATE collections SET owner = $3 WHERE address = $1 AND owner = $2`,
		addr.Hex(), previous.Hex(), next.Hex(),
	)
	if err != nil {
		return fmt.Errorf("update collection owner: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update collection owner: %w", err)
	}
	if n == 0 {
		if _, err := s.FindByAddress(ctx, addr); err != nil {
			return err
		}
		return sentinel.ErrConflict
	}
	return nil
}

// RecordClaim locks the collection row, consumes nonce and mints the next
// token to holder. Nothing is written when the nonce was already used.
func (s *PostgresStore) RecordClaim(ctx context.Context, addr common.Address, nonce domain.Nonce, holder common.Address, at time.Time) (uint64, error) {
	var tokenID uint64
	err := s.inTx(ctx, func(ctx context.Context) error {
		exec := s.execer(ctx)

		var next int64
		err := exec.QueryRowContext(ctx,
			`SELECT next_token_id FROM collections WHERE address = $1 FOR UPDATE`, addr.Hex(),
		).Scan(&next)
		if errors.Is(err, sql.ErrNoRows) {
			return sentinel.ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("lock collection: %w", err)
		}

		res, err := exec.ExecContext(ctx, `
			INSERT INTO used_nonces (collection, nonce, token_id, used_at)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (collection, nonce) DO NOTHING
		`, addr.Hex(), nonce[:], next, at)
		if err != nil {
			return fmt.Errorf("record nonce: %w", err)
		}
		inserted, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("record nonce: %w", err)
		}
		if inserted == 0 {
			return sentinel.ErrAlreadyUsed
		}

		if _, err := exec.ExecContext(ctx, `
			INSERT INTO tokens (collection, token_id, holder, minted_at)
			VALUES ($1, $2, $3, $4)
		`, addr.Hex(), next, holder.Hex(), at); err != nil {
			return fmt.Errorf("mint token: %w", err)
		}
		if _, err := exec.ExecContext(ctx,
			`UPDATE collections SET next_token_id = next_token_id + 1 WHERE address = $1`, addr.Hex(),
		); err != nil {
			return fmt.Errorf("advance token id: %w", err)
		}
		tokenID = uint64(next)
		return nil
	})
	if err != nil {
		return 0, err
	}
	return tokenID, nil
}

func (s *PostgresStore) IsNonceUsed(ctx context.Context, addr common.Address, nonce domain.Nonce) (bool, error) {
	var used bool
	err := s.execer(ctx).QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM used_nonces WHERE collection = $1 AND nonce = $2)`,
		addr.Hex(), nonce[:],
	).Scan(&used)
	if err != nil {
		return false, fmt.Errorf("check nonce: %w", err)
	}
	return used, nil
}

func (s *PostgresStore) OwnerOf(ctx context.Context, addr common.Address, tokenID uint64) (common.Address, error) {
	var holder string
	err := s.execer(ctx).QueryRowContext(ctx,
		`SELECT holder FROM tokens WHERE collection = $1 AND token_id = $2`,
		addr.Hex(), int64(tokenID),
	).Scan(&holder)
	if errors.Is(err, sql.ErrNoRows) {
		return common.Address{}, sentinel.ErrNotFound
	}
	if err != nil {
		return common.Address{}, fmt.Errorf("find token: %w", err)
	}
	return common.HexToAddress(holder), nil
}

func (s *PostgresStore) BalanceOf(ctx context.Context, addr, holder common.Address) (uint64, error) {
	var n int64
	err := s.execer(ctx).QueryRowContext(ctx,
		`SELECT COUNT(*) FROM tokens WHERE collection = $1 AND holder = $2`,
		addr.Hex(), holder.Hex(),
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count tokens: %w", err)
	}
	return uint64(n), nil
}
