// Package store declares the persistence ports used by the services.
// Postgres implementations live in internal/repository, an in-memory one in
// internal/repository/memstore.
//
// Lookups that find nothing return domain.ErrNotFound.
package store

import (
	"context"
	"errors"

	"cashback_platform/internal/domain"

	"github.com/shopspring/decimal"
)

// ErrConflict is returned when a unique constraint (idempotency key,
// one referral per user) rejects a write.
var ErrConflict = errors.New("store: conflict")

// TxRunner runs fn inside one storage transaction. The transaction commits
// when fn returns nil and rolls back otherwise.
type TxRunner interface {
	InTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}

// Tx is the set of writes and locking reads available inside a transaction.
// Lock* methods hold the row until commit.
type Tx interface {
	// LockAccount locks the user's ledger row, creating a zero row first when
	// the user has none.
	LockAccount(ctx context.Context, userID int64) (domain.LedgerAccount, error)
	SaveAccount(ctx context.Context, acc domain.LedgerAccount) error
	EntryByKey(ctx context.Context, key string) (*domain.LedgerEntry, error)
	InsertEntry(ctx context.Context, e *domain.LedgerEntry) error

	GetTransactionByKey(ctx context.Context, key string) (*domain.Transaction, error)
	InsertTransaction(ctx context.Context, t *domain.Transaction) error
	LockTransaction(ctx context.Context, id int64) (*domain.Transaction, error)
	UpdateTransactionStatus(ctx context.Context, id int64, status domain.TransactionStatus, notes string) error

	InsertTransfer(ctx context.Context, t *domain.Transfer) error
	LockTransfer(ctx context.Context, id int64) (*domain.Transfer, error)
	UpdateTransferStatus(ctx context.Context, id int64, status domain.TransferStatus) error

	InsertWithdrawal(ctx context.Context, w *domain.WithdrawalRequest) error
	LockWithdrawal(ctx context.Context, id int64) (*domain.WithdrawalRequest, error)
	UpdateWithdrawal(ctx context.Context, w *domain.WithdrawalRequest) error

	GetActiveReferral(ctx context.Context, referredID int64) (*domain.Referral, error)
	InsertReferral(ctx context.Context, r *domain.Referral) error
	AccrueReferral(ctx context.Context, referrerID, referredID int64, amount decimal.Decimal) error
	SetReferredBy(ctx context.Context, userID, referrerID int64) error

	SaveRates(ctx context.Context, cfg domain.RateConfig) error

	Enqueue(ctx context.Context, evt *domain.OutboxEvent) error
}

// LedgerReader serves balance display. Reads are snapshots and never used to
// authorize a debit.
type LedgerReader interface {
	EnsureAccount(ctx context.Context, userID int64) (domain.LedgerAccount, error)
	ListEntries(ctx context.Context, userID int64, limit int) ([]domain.LedgerEntry, error)
}

type TransactionReader interface {
	GetTransaction(ctx context.Context, id int64) (*domain.Transaction, error)
	GetTransactionByIdempotencyKey(ctx context.Context, key string) (*domain.Transaction, error)
	ListTransactionsByUser(ctx context.Context, userID int64, limit int) ([]domain.Transaction, error)
}

type TransferReader interface {
	GetTransfer(ctx context.Context, id int64) (*domain.Transfer, error)
	ListTransfersByUser(ctx context.Context, userID int64, limit int) ([]domain.Transfer, error)
}

type WithdrawalReader interface {
	GetWithdrawal(ctx context.Context, id int64) (*domain.WithdrawalRequest, error)
	ListWithdrawalsByUser(ctx context.Context, userID int64, limit int) ([]domain.WithdrawalRequest, error)
	ListWithdrawalsByStatus(ctx context.Context, status domain.WithdrawalStatus, limit int) ([]domain.WithdrawalRequest, error)
}

type ReferralReader interface {
	ListReferralsByReferrer(ctx context.Context, referrerID int64) ([]domain.Referral, error)
}

type RateStore interface {
	GetRates(ctx context.Context) (*domain.RateConfig, error)
	RateHistory(ctx context.Context, limit int) ([]domain.RateConfigHistory, error)
}

// RateCache holds the last committed rate row. Get returns nil, nil on a miss.
// Set keeps the stored entry when it carries a newer UpdatedAt.
type RateCache interface {
	Get(ctx context.Context) (*domain.RateConfig, error)
	Set(ctx context.Context, cfg domain.RateConfig) error
	Invalidate(ctx context.Context) error
}

type UserDirectory interface {
	GetUser(ctx context.Context, id int64) (*domain.User, error)
	// FindUserByTerm matches email or name case-insensitively, or phone exactly.
	// An ambiguous term returns domain.ErrNotFound.
	FindUserByTerm(ctx context.Context, term string) (*domain.User, error)
	FindUserByInvitationCode(ctx context.Context, code string) (*domain.User, error)
}

// UserRegistry signs up users that arrive through Telegram.
type UserRegistry interface {
	FindUserByTgID(ctx context.Context, tgID int64) (*domain.User, error)
	CreateUser(ctx context.Context, u *domain.User) error
}

type MerchantDirectory interface {
	GetMerchant(ctx context.Context, id int64) (*domain.Merchant, error)
}

type OutboxStore interface {
	// PendingEvents returns unpublished events with fewer than maxAttempts
	// failed deliveries, oldest first.
	PendingEvents(ctx context.Context, maxAttempts, limit int) ([]domain.OutboxEvent, error)
	MarkEventPublished(ctx context.Context, id string) error
	MarkEventFailed(ctx context.Context, id string) error
}

type AuditStore interface {
	CreateAuditLog(ctx context.Context, log *domain.AuditLog) error
	ListAuditLogs(ctx context.Context, category string, limit int) ([]domain.AuditLog, error)
}
