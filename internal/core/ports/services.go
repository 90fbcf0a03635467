package ports

import (
	"context"
	"time"

	"point-ledger/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// SignatureService handles HMAC-SHA256 signing and verification.
type SignatureService interface {
	Sign(secretKey string, payload string) string
	Verify(secretKey string, payload string, signature string) bool
}

// IdempotencyCache is the Redis-layer idempotency check (fast path).
type IdempotencyCache interface {
	Get(ctx context.Context, key string) ([]byte, error) // Returns cached response JSON or nil
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// SweepLock grants one instance the right to run a sweep tick.
type SweepLock interface {
	Acquire(ctx context.Context) (bool, error)
	Release(ctx context.Context) error
}

// EventPublisher announces committed ledger entries.
type EventPublisher interface {
	PublishEntries(ctx context.Context, entries []*domain.LedgerEntry) error
}

// IDGenerator issues strictly increasing ledger entry ids.
type IDGenerator interface {
	NextID() int64
}

// --- Service Ports (Business Logic) ---

// Coordinator runs every balance-changing operation as one atomic unit.
type Coordinator interface {
	CreateWallet(ctx context.Context, ownerAccountID uuid.UUID) (*domain.Wallet, error)
	Reward(ctx context.Context, req RewardRequest) (*domain.LedgerEntry, error)
	Adjust(ctx context.Context, req AdjustRequest) (*domain.LedgerEntry, error)
	// Reset returns a nil entry when the wallet already holds NewBalance.
	Reset(ctx context.Context, req ResetRequest) (*domain.LedgerEntry, error)
	Transfer(ctx context.Context, req TransferRequest) (*domain.Transfer, error)
	Purchase(ctx context.Context, req PurchaseRequest) (*domain.Purchase, error)
	RedeemMerchantPayment(ctx context.Context, req RedeemRequest) (*domain.MerchantPayment, error)
}

// RewardRequest credits points for a completed activity.
type RewardRequest struct {
	WalletID    uuid.UUID
	Amount      int64
	Reference   string // idempotency scope, e.g. "submission:<id>"
	Description string
	ActorID     *uuid.UUID
}

// AdjustRequest is an admin correction in either direction.
type AdjustRequest struct {
	WalletID       uuid.UUID
	Direction      domain.Direction
	Amount         int64
	Reason         string
	ActorID        uuid.UUID
	IdempotencyKey string
}

// ResetRequest sets a wallet to an absolute balance.
type ResetRequest struct {
	WalletID       uuid.UUID
	NewBalance     int64
	Reason         string
	ActorID        uuid.UUID
	IdempotencyKey string
}

// TransferRequest moves points between two wallets.
type TransferRequest struct {
	SenderWalletID   uuid.UUID
	ReceiverWalletID uuid.UUID
	Amount           int64
	Description      string
	ActorID          *uuid.UUID
	IdempotencyKey   string
}

// PurchaseRequest buys a marketplace product.
type PurchaseRequest struct {
	BuyerWalletID uuid.UUID
	ProductID     uuid.UUID
	Quantity      int64 // 0 means 1
	PaymentMethod domain.PaymentMethod
	Token         string // required for qr payments
	OrderID       string // optional; doubles as the idempotency key
	ActorID       *uuid.UUID
}

// RedeemRequest is a merchant scanning a payer's token.
type RedeemRequest struct {
	Token             string // raw token or signed QR payload
	MerchantAccountID uuid.UUID
}

// PaymentTokenService manages one-time payment tokens.
type PaymentTokenService interface {
	Issue(ctx context.Context, req IssueTokenRequest) (*domain.PaymentToken, error)
	// Lookup returns a token that is currently redeemable, or the error
	// explaining why it is not.
	Lookup(ctx context.Context, token string) (*domain.PaymentToken, error)
	// Redeem compare-and-sets issued -> redeemed inside tx.
	Redeem(ctx context.Context, tx pgx.Tx, token string) (*domain.PaymentToken, error)
	// Status reads a token in any state, expiring it lazily when overdue.
	Status(ctx context.Context, token string) (*domain.PaymentToken, error)
	ExpireSweep(ctx context.Context) (int64, error)
	// ParseQRPayload accepts a raw token or a signed QR payload and returns the token.
	ParseQRPayload(payload string) (string, error)
}

// IssueTokenRequest holds input for token issuance.
type IssueTokenRequest struct {
	PayerWalletID uuid.UUID
	Amount        int64
	MerchantLabel string
	Purpose       domain.TokenPurpose
	TTL           time.Duration // 0 = default
}

// AuditRecorder writes and reads the audit trail.
type AuditRecorder interface {
	Record(ctx context.Context, tx pgx.Tx, entry AuditEntry) error
	RecordStandalone(ctx context.Context, entry AuditEntry) error
	List(ctx context.Context, params AuditListParams) ([]domain.AuditRecord, int64, error)
}

// AuditEntry is the input for one audit record.
type AuditEntry struct {
	ActorID      uuid.UUID
	Action       domain.AuditAction
	TargetEntity string
	TargetID     string
	Detail       map[string]any
}

// ReportingService defines read-side queries.
type ReportingService interface {
	GetWallet(ctx context.Context, id uuid.UUID) (*domain.Wallet, error)
	GetWalletByAccount(ctx context.Context, accountID uuid.UUID) (*domain.Wallet, error)
	ListWalletLedger(ctx context.Context, walletID uuid.UUID, page, pageSize int) ([]domain.LedgerEntry, int64, error)
	ListLedger(ctx context.Context, params LedgerListParams) ([]domain.LedgerEntry, int64, error)
	ListByReference(ctx context.Context, reference string) ([]domain.LedgerEntry, error)
	GetMerchantStats(ctx context.Context, merchantAccountID uuid.UUID) (*MerchantStats, error)
	GetLeaderboard(ctx context.Context, limit int) ([]domain.Wallet, error)
	VerifyWallet(ctx context.Context, walletID uuid.UUID) (*WalletVerification, error)
	ListWallets(ctx context.Context, page, pageSize int) ([]domain.Wallet, int64, error)
	GetAdminStats(ctx context.Context) (*AdminStats, error)
}

// AdminStats is the admin dashboard summary. Today* fields cover entries
// since the start of the current day in the ledger timezone.
type AdminStats struct {
	Wallets           int64     `json:"wallets"`
	CirculationPoints int64     `json:"circulation_points"`
	TodayEntries      int64     `json:"today_entries"`
	TodayCredits      int64     `json:"today_credits"`
	TodayDebits       int64     `json:"today_debits"`
	Since             time.Time `json:"since"`
}

// MerchantStats is the merchant dashboard summary.
type MerchantStats struct {
	WalletID   uuid.UUID `json:"wallet_id"`
	Balance    int64     `json:"balance"`
	TodaySales int64     `json:"today_sales"`
	TodayCount int64     `json:"today_count"`
	Since      time.Time `json:"since"`
}

// WalletVerification compares a wallet's balance with its ledger replay.
type WalletVerification struct {
	WalletID         uuid.UUID `json:"wallet_id"`
	Balance          int64     `json:"balance"`
	LedgerNet        int64     `json:"ledger_net"`
	LastBalanceAfter int64     `json:"last_balance_after"`
	Entries          int64     `json:"entries"`
	Consistent       bool      `json:"consistent"`
}

// ProductService manages the marketplace catalog.
type ProductService interface {
	Create(ctx context.Context, actorID uuid.UUID, input ProductInput) (*domain.Product, error)
	Update(ctx context.Context, actorID uuid.UUID, id uuid.UUID, input ProductUpdate) (*domain.Product, error)
	Delete(ctx context.Context, actorID uuid.UUID, id uuid.UUID) error
	Get(ctx context.Context, id uuid.UUID) (*domain.Product, error)
	List(ctx context.Context, params ProductListParams) ([]domain.Product, int64, error)
}

// ProductInput holds fields for a new product.
type ProductInput struct {
	Name           string
	Description    string
	Price          int64
	Stock          int64
	SellerWalletID *uuid.UUID
}

// ProductUpdate holds optional field changes; nil fields are left as-is.
type ProductUpdate struct {
	Name           *string
	Description    *string
	Price          *int64
	Stock          *int64
	Status         *domain.ProductStatus
	SellerWalletID *uuid.UUID
}
