package postgresrepo

import (
	"context"
	_ "embed"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/kirinyoku/ferry-go/internal/repository"
)

//go:embed schema.sql
var schemaSQL string

type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
}

type Store struct {
	pool        *pgxpool.Pool
	maxAttempts int
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{
		pool:        pool,
		maxAttempts: 5,
	}
}

// Migrate creates missing tables and indexes.
func (s *Store) Migrate(ctx context.Context) error {
	const op = "postgresrepo.Store.Migrate"

	if _, err := s.pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("%s:%w", op, err)
	}

	return nil
}

// RunTx runs fn in a serializable transaction, retrying serialization
// failures and deadlocks with a short linear backoff.
func (s *Store) RunTx(
	ctx context.Context,
	fn func(ctx context.Context, repos repository.Repositories) error,
) error {
	return s.RunTxWithOpts(ctx, nil, fn)
}

func (s *Store) RunTxWithOpts(
	ctx context.Context,
	opts *pgx.TxOptions,
	fn func(ctx context.Context, repos repository.Repositories) error,
) error {
	var err error

	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		err = s.runTxOnce(ctx, opts, fn)
		if err == nil || !IsRetryable(err) {
			return err
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(attempt) * 10 * time.Millisecond):
		}
	}

	return fmt.Errorf("retries exhausted: %w", err)
}

func (s *Store) runTxOnce(
	ctx context.Context,
	opts *pgx.TxOptions,
	fn func(ctx context.Context, repos repository.Repositories) error,
) error {
	txOpts := pgx.TxOptions{
		IsoLevel:   pgx.Serializable,
		AccessMode: pgx.ReadWrite,
	}

	if opts != nil {
		txOpts.IsoLevel = opts.IsoLevel
		txOpts.AccessMode = opts.AccessMode
		txOpts.DeferrableMode = opts.DeferrableMode
	}

	tx, err := s.pool.BeginTx(ctx, txOpts)
	if err != nil {
		return err
	}

	defer tx.Rollback(ctx)

	if err := fn(ctx, txRepos{pool: s.pool, tx: tx}); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	return nil
}

func (s *Store) Voyages() repository.VoyageRepository       { return &VoyageRepo{pool: s.pool} }
func (s *Store) Templates() repository.TemplateRepository   { return &TemplateRepo{pool: s.pool} }
func (s *Store) Inventories() repository.InventoryRepository { return &InventoryRepo{pool: s.pool} }
func (s *Store) Tickets() repository.TicketRepository       { return &TicketRepo{pool: s.pool} }
func (s *Store) Archive() repository.ArchiveRepository      { return &ArchiveRepo{pool: s.pool} }
func (s *Store) Stations() repository.StationRepository     { return &StationRepo{pool: s.pool} }

type txRepos struct {
	pool *pgxpool.Pool
	tx   DB
}

func (r txRepos) Voyages() repository.VoyageRepository {
	return (&VoyageRepo{pool: r.pool}).With(r.tx)
}

func (r txRepos) Templates() repository.TemplateRepository {
	return (&TemplateRepo{pool: r.pool}).With(r.tx)
}

func (r txRepos) Inventories() repository.InventoryRepository {
	return (&InventoryRepo{pool: r.pool}).With(r.tx)
}

func (r txRepos) Tickets() repository.TicketRepository {
	return (&TicketRepo{pool: r.pool}).With(r.tx)
}

func (r txRepos) Archive() repository.ArchiveRepository {
	return (&ArchiveRepo{pool: r.pool}).With(r.tx)
}

func (r txRepos) Stations() repository.StationRepository {
	return (&StationRepo{pool: r.pool}).With(r.tx)
}

// dateArg turns a zero time into SQL NULL, for open-ended ranges and
// columns with a server-side default.
func dateArg(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t
}
