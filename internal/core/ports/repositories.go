package ports

import (
	"context"
	"time"

	"point-ledger/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// WalletRepository defines persistence operations for wallets.
// Methods accepting pgx.Tx run inside the caller's transaction.
type WalletRepository interface {
	Create(ctx context.Context, wallet *domain.Wallet) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Wallet, error)
	GetByOwner(ctx context.Context, ownerAccountID uuid.UUID) (*domain.Wallet, error)
	GetByIDTx(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.Wallet, error)
	// Mutate applies delta if the stored version still equals expectedVersion
	// and the resulting balance stays >= 0. It is the only writer of balance.
	// Fails with domain.ErrVersionConflict, domain.ErrInsufficientBalance or
	// domain.ErrNotFound.
	Mutate(ctx context.Context, tx pgx.Tx, id uuid.UUID, delta int64, expectedVersion int64) (*domain.Wallet, error)
	ListTop(ctx context.Context, limit int) ([]domain.Wallet, error)
	List(ctx context.Context, page, pageSize int) ([]domain.Wallet, int64, error)
	Totals(ctx context.Context) (*WalletTotals, error)
}

// WalletTotals summarises every wallet.
type WalletTotals struct {
	Wallets     int64
	Circulation int64 // sum of balances
}

// LedgerRepository is the append-only store of ledger entries.
type LedgerRepository interface {
	Append(ctx context.Context, tx pgx.Tx, entry *domain.LedgerEntry) error
	ListByWallet(ctx context.Context, walletID uuid.UUID, page, pageSize int) ([]domain.LedgerEntry, int64, error)
	List(ctx context.Context, params LedgerListParams) ([]domain.LedgerEntry, int64, error)
	ListByReference(ctx context.Context, reference string) ([]domain.LedgerEntry, error)
	SumByWallet(ctx context.Context, walletID uuid.UUID) (*LedgerSum, error)
	SalesSince(ctx context.Context, walletID uuid.UUID, since time.Time) (*SalesSummary, error)
	ActivitySince(ctx context.Context, since time.Time) (*LedgerActivity, error)
}

// LedgerListParams holds filter + pagination for listing ledger entries.
type LedgerListParams struct {
	WalletID  *uuid.UUID
	Kind      *domain.EntryKind
	Direction *domain.Direction
	From      *int64 // Unix timestamp
	To        *int64 // Unix timestamp
	Page      int
	PageSize  int
}

// LedgerSum is the replay of every entry of one wallet.
type LedgerSum struct {
	Net              int64 // sum of signed amounts
	Entries          int64
	LastBalanceAfter int64 // balance_after of the newest entry, 0 when none
}

// SalesSummary aggregates sale credits of one wallet.
type SalesSummary struct {
	Total int64
	Count int64
}

// LedgerActivity aggregates entries across all wallets.
type LedgerActivity struct {
	Entries int64
	Credits int64
	Debits  int64
}

// IdempotencyRepository defines persistence for idempotency logs.
type IdempotencyRepository interface {
	// Create fails with domain.ErrDuplicateKey when the key already exists.
	Create(ctx context.Context, tx pgx.Tx, log *domain.IdempotencyLog) error
	Get(ctx context.Context, key string) (*domain.IdempotencyLog, error)
}

// PaymentTokenRepository defines persistence for one-time payment tokens.
type PaymentTokenRepository interface {
	Create(ctx context.Context, token *domain.PaymentToken) error
	GetByToken(ctx context.Context, token string) (*domain.PaymentToken, error)
	// Redeem moves an issued, unexpired token to redeemed in one statement.
	// Fails with domain.ErrNotFound, domain.ErrTokenAlreadyRedeemed or
	// domain.ErrTokenExpired.
	Redeem(ctx context.Context, tx pgx.Tx, token string, now time.Time) (*domain.PaymentToken, error)
	// MarkExpired expires a single issued token past its expiry.
	MarkExpired(ctx context.Context, token string, now time.Time) (bool, error)
	// ExpireIssued expires every issued token past its expiry.
	ExpireIssued(ctx context.Context, now time.Time) (int64, error)
}

// ProductRepository defines persistence for marketplace products.
type ProductRepository interface {
	Create(ctx context.Context, tx pgx.Tx, product *domain.Product) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Product, error)
	GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.Product, error)
	Update(ctx context.Context, tx pgx.Tx, product *domain.Product) error
	Delete(ctx context.Context, tx pgx.Tx, id uuid.UUID) error
	// DecrementStock fails with domain.ErrInsufficientStock when stock < quantity.
	DecrementStock(ctx context.Context, tx pgx.Tx, id uuid.UUID, quantity int64) (int64, error)
	List(ctx context.Context, params ProductListParams) ([]domain.Product, int64, error)
}

// ProductListParams holds filter + pagination for listing products.
type ProductListParams struct {
	Status   *domain.ProductStatus
	Page     int
	PageSize int
}

// AuditRepository defines persistence for audit records.
type AuditRepository interface {
	Create(ctx context.Context, tx pgx.Tx, record *domain.AuditRecord) error
	List(ctx context.Context, params AuditListParams) ([]domain.AuditRecord, int64, error)
}

// AuditListParams holds filter + pagination for listing audit records.
type AuditListParams struct {
	ActorAccountID *uuid.UUID
	Action         *domain.AuditAction
	TargetEntity   string
	From           *int64 // Unix timestamp
	To             *int64 // Unix timestamp
	Page           int
	PageSize       int
}

// DBTransactor provides database transaction management.
type DBTransactor interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}
