package dto

import "point-ledger/internal/core/domain"

// CreateWalletRequest is the request body for opening a wallet.
type CreateWalletRequest struct {
	OwnerAccountID string `json:"owner_account_id" binding:"required,uuid"`
}

// RewardRequest is the request body for crediting activity points.
type RewardRequest struct {
	WalletID    string `json:"wallet_id" binding:"required,uuid"`
	Amount      int64  `json:"amount" binding:"required,gt=0"`
	Reference   string `json:"reference" binding:"required,max=200"`
	Description string `json:"description" binding:"max=500"`
}

// TransferRequest is the request body for a wallet-to-wallet transfer.
// The sender is always the caller's own wallet.
type TransferRequest struct {
	ReceiverWalletID string `json:"receiver_wallet_id" binding:"required,uuid"`
	Amount           int64  `json:"amount" binding:"required,gt=0"`
	Description      string `json:"description" binding:"max=500"`
	IdempotencyKey   string `json:"idempotency_key" binding:"omitempty,max=100,safe_id"`
}

// AdjustRequest is the request body for an admin balance correction.
type AdjustRequest struct {
	WalletID       string `json:"wallet_id" binding:"required,uuid"`
	Direction      string `json:"direction" binding:"required,direction"`
	Amount         int64  `json:"amount" binding:"required,gt=0"`
	Reason         string `json:"reason" binding:"required,max=500"`
	IdempotencyKey string `json:"idempotency_key" binding:"omitempty,max=100,safe_id"`
}

// ResetRequest is the request body for setting an absolute balance.
type ResetRequest struct {
	WalletID       string `json:"wallet_id" binding:"required,uuid"`
	NewBalance     *int64 `json:"new_balance" binding:"required,gte=0"`
	Reason         string `json:"reason" binding:"required,max=500"`
	IdempotencyKey string `json:"idempotency_key" binding:"omitempty,max=100,safe_id"`
}

// IssueTokenRequest is the request body for issuing a payment token.
type IssueTokenRequest struct {
	Amount        int64  `json:"amount" binding:"required,gt=0"`
	MerchantLabel string `json:"merchant_label" binding:"required,max=128"`
	Purpose       string `json:"purpose" binding:"omitempty,oneof=purchase transfer"`
	TTLSeconds    int    `json:"ttl_seconds" binding:"omitempty,gte=0,lte=86400"`
}

// RedeemRequest is the request body for a merchant scanning a QR code.
type RedeemRequest struct {
	Token string `json:"token" binding:"required,max=512" sanitize:"-"`
}

// PurchaseRequest is the request body for buying a product.
type PurchaseRequest struct {
	ProductID     string `json:"product_id" binding:"required,uuid"`
	Quantity      int64  `json:"quantity" binding:"omitempty,gte=0,lte=1000"`
	PaymentMethod string `json:"payment_method" binding:"omitempty,oneof=wallet qr"`
	Token         string `json:"token" binding:"omitempty,max=512" sanitize:"-"`
	OrderID       string `json:"order_id" binding:"omitempty,max=100,safe_id"`
}

// ProductRequest is the request body for creating a product.
type ProductRequest struct {
	Name           string  `json:"name" binding:"required,max=200"`
	Description    string  `json:"description" binding:"max=2000"`
	Price          int64   `json:"price" binding:"required,gt=0"`
	Stock          int64   `json:"stock" binding:"gte=0"`
	SellerWalletID *string `json:"seller_wallet_id,omitempty" binding:"omitempty,uuid"`
}

// ProductUpdateRequest is the request body for a partial product update.
type ProductUpdateRequest struct {
	Name           *string `json:"name,omitempty" binding:"omitempty,min=1,max=200"`
	Description    *string `json:"description,omitempty" binding:"omitempty,max=2000"`
	Price          *int64  `json:"price,omitempty" binding:"omitempty,gt=0"`
	Stock          *int64  `json:"stock,omitempty" binding:"omitempty,gte=0"`
	Status         *string `json:"status,omitempty" binding:"omitempty,oneof=active inactive"`
	SellerWalletID *string `json:"seller_wallet_id,omitempty" binding:"omitempty,uuid"`
}

// TokenResponse is the payer's view of an issued token.
type TokenResponse struct {
	ID            string  `json:"id"`
	Token         string  `json:"token"`
	Amount        int64   `json:"amount"`
	MerchantLabel string  `json:"merchant_label"`
	Purpose       string  `json:"purpose"`
	State         string  `json:"state"`
	QRPayload     string  `json:"qr_payload"`
	IssuedAt      string  `json:"issued_at"`
	ExpiresAt     string  `json:"expires_at"`
	RedeemedAt    *string `json:"redeemed_at,omitempty"`
}

// TokenStatusResponse is the public view of a token; it omits the secret.
type TokenStatusResponse struct {
	ID            string  `json:"id"`
	Amount        int64   `json:"amount"`
	MerchantLabel string  `json:"merchant_label"`
	State         string  `json:"state"`
	ExpiresAt     string  `json:"expires_at"`
	RedeemedAt    *string `json:"redeemed_at,omitempty"`
}

// ResetResponse wraps the reset entry, which is null when the balance
// already matched.
type ResetResponse struct {
	Changed bool                `json:"changed"`
	Entry   *domain.LedgerEntry `json:"entry"`
}
