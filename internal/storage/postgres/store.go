package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"poolConsole/internal/model"
)

// Store provides Postgres persistence for the deployment audit trail:
// the transition journal and a mirror of the pending-pool snapshot.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("pg dsn is required")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// PutTransitions appends status transitions to the journal table.
func (s *Store) PutTransitions(ctx context.Context, transitions []model.StatusTransition) error {
	if len(transitions) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, tr := range transitions {
		batch.Queue(`
			INSERT INTO pool_status_transitions (
				pool_id, from_status, to_status, source, tx_hash, observed_at, created_at
			) VALUES ($1, $2, $3, $4, $5, $6, now())
		`,
			tr.PoolID,
			string(tr.From),
			string(tr.To),
			tr.Source,
			tr.TxHash,
			tr.ObservedAt,
		)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for range transitions {
		if _, err := br.Exec(); err != nil {
			return err
		}
	}
	return nil
}

// UpsertPendingPools mirrors the latest pool snapshot. Later snapshots
// overwrite every column, including cleared transaction ids.
func (s *Store) UpsertPendingPools(ctx context.Context, pools []model.Pool) error {
	if len(pools) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, pool := range pools {
		batch.Queue(`
			INSERT INTO pending_pools (
				pool_id, status, pool_creation_tx_id, pool_config_tx_id, loans_creation_tx_id,
				name, creator, currency, principal, interest_rate, term_months, created_at, updated_at
			) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,now(),now())
			ON CONFLICT (pool_id)
			DO UPDATE SET
				status = EXCLUDED.status,
				pool_creation_tx_id = EXCLUDED.pool_creation_tx_id,
				pool_config_tx_id = EXCLUDED.pool_config_tx_id,
				loans_creation_tx_id = EXCLUDED.loans_creation_tx_id,
				name = EXCLUDED.name,
				creator = EXCLUDED.creator,
				currency = EXCLUDED.currency,
				principal = EXCLUDED.principal,
				interest_rate = EXCLUDED.interest_rate,
				term_months = EXCLUDED.term_months,
				updated_at = now()
		`,
			pool.ID,
			string(pool.Status),
			pool.PoolCreationTxID,
			pool.PoolConfigTxID,
			pool.LoansCreationTxID,
			pool.Name,
			pool.Creator,
			pool.Currency,
			pool.Principal,
			pool.InterestRate,
			pool.TermMonths,
		)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for range pools {
		if _, err := br.Exec(); err != nil {
			return err
		}
	}
	return nil
}
