package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/drmick/unichecker/internal/model"
)

const schema = `
CREATE TABLE IF NOT EXISTS dex_pool_snapshots (
	pair_address TEXT NOT NULL,
	block_num BIGINT NOT NULL,
	token0_address TEXT NOT NULL,
	token1_address TEXT NOT NULL,
	token0_symbol TEXT,
	token1_symbol TEXT,
	token0_reserves NUMERIC(78, 0) NOT NULL,
	token1_reserves NUMERIC(78, 0) NOT NULL,
	token0_reserve_balance_of NUMERIC(78, 0) NOT NULL,
	token1_reserve_balance_of NUMERIC(78, 0) NOT NULL,
	strange_reserves BOOLEAN NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (pair_address, block_num)
)`

const upsertSnapshot = `
	INSERT INTO dex_pool_snapshots (
		pair_address, block_num, token0_address, token1_address, token0_symbol, token1_symbol,
		token0_reserves, token1_reserves, token0_reserve_balance_of, token1_reserve_balance_of,
		strange_reserves, created_at, updated_at
	) VALUES ($1, $2, $3, $4, $5, $6, $7::text::numeric, $8::text::numeric, $9::text::numeric, $10::text::numeric, $11, now(), now())
	ON CONFLICT (pair_address, block_num)
	DO UPDATE SET
		token0_address = EXCLUDED.token0_address,
		token1_address = EXCLUDED.token1_address,
		token0_symbol = EXCLUDED.token0_symbol,
		token1_symbol = EXCLUDED.token1_symbol,
		token0_reserves = EXCLUDED.token0_reserves,
		token1_reserves = EXCLUDED.token1_reserves,
		token0_reserve_balance_of = EXCLUDED.token0_reserve_balance_of,
		token1_reserve_balance_of = EXCLUDED.token1_reserve_balance_of,
		strange_reserves = EXCLUDED.strange_reserves,
		updated_at = now()
`

// Store provides Postgres persistence for pool snapshots.
type Store struct {
	pool      *pgxpool.Pool
	batchSize int
}

func NewStore(ctx context.Context, dsn string, batchSize int) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("pg dsn is required")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	if batchSize <= 0 {
		batchSize = 1000
	}
	return &Store{pool: pool, batchSize: batchSize}, nil
}

func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// EnsureSchema creates the snapshot table if it does not exist.
func (s *Store) EnsureSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, schema)
	return err
}

// PutPoolRecords upserts records keyed by pair address and block.
func (s *Store) PutPoolRecords(ctx context.Context, records []model.DexPoolRecord) error {
	for start := 0; start < len(records); start += s.batchSize {
		end := start + s.batchSize
		if end > len(records) {
			end = len(records)
		}
		if err := s.upsertBatch(ctx, records[start:end]); err != nil {
			return fmt.Errorf("upsert snapshots %d-%d: %w", start, end, err)
		}
	}
	return nil
}

func (s *Store) upsertBatch(ctx context.Context, records []model.DexPoolRecord) error {
	if len(records) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, r := range records {
		batch.Queue(upsertSnapshot, snapshotArgs(r)...)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for range records {
		if _, err := br.Exec(); err != nil {
			return err
		}
	}
	return nil
}

func snapshotArgs(r model.DexPoolRecord) []any {
	return []any{
		r.PairAddress.Hex(),
		int64(r.BlockNum),
		r.Token0Address.Hex(),
		r.Token1Address.Hex(),
		r.Token0Symbol,
		r.Token1Symbol,
		r.Token0Reserves.String(),
		r.Token1Reserves.String(),
		r.Token0ReserveBalanceOf.String(),
		r.Token1ReserveBalanceOf.String(),
		r.StrangeReserves,
	}
}
