package relay

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PgxOutbox claims rows with FOR UPDATE SKIP LOCKED so several relays can
// drain the same table without double-publishing.
type PgxOutbox struct {
	pool *pgxpool.Pool
}

func NewPgxOutbox(pool *pgxpool.Pool) *PgxOutbox {
	return &PgxOutbox{pool: pool}
}

func (o *PgxOutbox) Claim(ctx context.Context, limit int, fn func(ctx context.Context, batch []Pending) error) (int, error) {
	var relayed int
	err := pgx.BeginFunc(ctx, o.pool, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, `
			SELECT seq, kind, source, payload
			FROM badge_events
			WHERE published_at IS NULL
			ORDER BY seq
			LIMIT $1
			FOR UPDATE SKIP LOCKED
		`, limit)
		if err != nil {
			return fmt.Errorf("select pending events: %w", err)
		}
		batch, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Pending, error) {
			var p Pending
			err := row.Scan(&p.Seq, &p.Kind, &p.Source, &p.Payload)
			return p, err
		})
		if err != nil {
			return fmt.Errorf("scan pending events: %w", err)
		}
		if len(batch) == 0 {
			return nil
		}
		if err := fn(ctx, batch); err != nil {
			return err
		}

		seqs := make([]int64, len(batch))
		for i, p := range batch {
			seqs[i] = p.Seq
		}
		if _, err := tx.Exec(ctx, `UPDATE badge_events SET published_at = now() WHERE seq = ANY($1)`, seqs); err != nil {
			return fmt.Errorf("mark events published: %w", err)
		}
		relayed = len(batch)
		return nil
	})
	if err != nil {
		return 0, err
	}
	return relayed, nil
}
