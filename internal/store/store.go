package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sofreh/backend-resto/internal/obs"
)

// Store bundles the repositories sharing one connection pool.
type Store struct {
	Pool *pgxpool.Pool

	Catalog *CatalogRepo
	Coupons *CouponRepo
	Zones   *ZoneRepo
	Orders  *OrderRepo
	Users   *UserRepo
	Events  *EventRepo
}

// New connects to Postgres and wires the repositories.
func New(ctx context.Context, databaseURL string) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	cfg.ConnConfig.Tracer = obs.PGXTracer{}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	return NewWithPool(pool), nil
}

// NewWithPool wires repositories over an existing pool.
func NewWithPool(pool *pgxpool.Pool) *Store {
	return &Store{
		Pool:    pool,
		Catalog: &CatalogRepo{Pool: pool},
		Coupons: &CouponRepo{Pool: pool},
		Zones:   &ZoneRepo{Pool: pool},
		Orders:  &OrderRepo{Pool: pool},
		Users:   &UserRepo{Pool: pool},
		Events:  &EventRepo{Pool: pool},
	}
}

// Close releases the underlying pool.
func (s *Store) Close() {
	if s != nil && s.Pool != nil {
		s.Pool.Close()
	}
}

// WithTx runs fn inside a transaction, rolling back on error.
func (s *Store) WithTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	tx, err := s.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()
	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit(ctx)
}
