package domain

import (
	"time"

	"github.com/google/uuid"
)

// TokenState is the lifecycle state of a payment token.
// Transitions: issued -> redeemed, issued -> expired.
type TokenState string

const (
	TokenStateIssued   TokenState = "issued"
	TokenStateRedeemed TokenState = "redeemed"
	TokenStateExpired  TokenState = "expired"
)

// TokenPurpose records what the payer intended the token for.
type TokenPurpose string

const (
	TokenPurposePurchase TokenPurpose = "purchase"
	TokenPurposeTransfer TokenPurpose = "transfer"
)

// Valid reports whether p is a known purpose.
func (p TokenPurpose) Valid() bool {
	return p == TokenPurposePurchase || p == TokenPurposeTransfer
}

// PaymentToken is a one-time bearer authorization to debit a wallet.
type PaymentToken struct {
	ID            uuid.UUID    `json:"id"`
	Token         string       `json:"token"`
	PayerWalletID uuid.UUID    `json:"payer_wallet_id"`
	Amount        int64        `json:"amount"`
	MerchantLabel string       `json:"merchant_label"`
	Purpose       TokenPurpose `json:"purpose"`
	State         TokenState   `json:"state"`
	QRPayload     string       `json:"qr_payload"`
	IssuedAt      time.Time    `json:"issued_at"`
	ExpiresAt     time.Time    `json:"expires_at"`
	RedeemedAt    *time.Time   `json:"redeemed_at,omitempty"`
}

// IsExpiredAt reports whether the token's lifetime has passed at now.
func (t *PaymentToken) IsExpiredAt(now time.Time) bool {
	return !now.Before(t.ExpiresAt)
}

// RedeemableAt reports whether the token may be redeemed at now.
func (t *PaymentToken) RedeemableAt(now time.Time) bool {
	return t.State == TokenStateIssued && !t.IsExpiredAt(now)
}
