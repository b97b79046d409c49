package repository

import (
	"context"
	"errors"
	"fmt"

	"cashback_platform/internal/domain"
	"cashback_platform/internal/store"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// querier is satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type repos struct {
	*LedgerRepository
	*TransactionRepository
	*TransferRepository
	*WithdrawalRepository
	*ReferralRepository
	*RateRepository
	*OutboxRepository
}

func newRepos(q querier) repos {
	return repos{
		LedgerRepository:      NewLedgerRepository(q),
		TransactionRepository: NewTransactionRepository(q),
		TransferRepository:    NewTransferRepository(q),
		WithdrawalRepository:  NewWithdrawalRepository(q),
		ReferralRepository:    NewReferralRepository(q),
		RateRepository:        NewRateRepository(q),
		OutboxRepository:      NewOutboxRepository(q),
	}
}

// Store is the Postgres implementation of the store ports.
type Store struct {
	db *pgxpool.Pool
	repos
	*UserRepository
	*AuditRepository
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{
		db:              db,
		repos:           newRepos(db),
		UserRepository:  NewUserRepository(db),
		AuditRepository: NewAuditRepository(db),
	}
}

// Ping is used by the readiness probe.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

// InTx runs fn in a READ COMMITTED transaction. Row locks taken with
// SELECT ... FOR UPDATE serialize writers on the same account.
func (s *Store) InTx(ctx context.Context, fn func(ctx context.Context, tx store.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	ptx := &pgTx{repos: newRepos(tx), users: NewUserRepository(tx)}
	if err := fn(ctx, ptx); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

type pgTx struct {
	repos
	users *UserRepository
}

func (t *pgTx) SetReferredBy(ctx context.Context, userID, referrerID int64) error {
	return t.users.SetReferredBy(ctx, userID, referrerID)
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// mapErr turns driver errors into the store vocabulary.
func mapErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, pgx.ErrNoRows):
		return domain.ErrNotFound
	case isUniqueViolation(err):
		return fmt.Errorf("%w: %v", store.ErrConflict, err)
	}
	return err
}

func limitOrDefault(limit int) int {
	if limit <= 0 {
		return 100
	}
	return limit
}
