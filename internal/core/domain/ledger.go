package domain

import (
	"time"

	"github.com/google/uuid"
)

// Direction is the side of a ledger entry.
type Direction string

const (
	DirectionCredit Direction = "credit"
	DirectionDebit  Direction = "debit"
)

// Valid reports whether d is a known direction.
func (d Direction) Valid() bool {
	return d == DirectionCredit || d == DirectionDebit
}

// EntryKind classifies why points moved.
type EntryKind string

const (
	EntryKindReward        EntryKind = "reward"
	EntryKindAdjustment    EntryKind = "adjustment"
	EntryKindReset         EntryKind = "reset"
	EntryKindTransferIn    EntryKind = "transfer_in"
	EntryKindTransferOut   EntryKind = "transfer_out"
	EntryKindPurchase      EntryKind = "purchase"
	EntryKindPaymentRedeem EntryKind = "payment_redeem"
	EntryKindSale          EntryKind = "sale" // merchant or seller side of a purchase/payment
)

// Valid reports whether k is a known entry kind.
func (k EntryKind) Valid() bool {
	switch k {
	case EntryKindReward, EntryKindAdjustment, EntryKindReset,
		EntryKindTransferIn, EntryKindTransferOut,
		EntryKindPurchase, EntryKindPaymentRedeem, EntryKindSale:
		return true
	}
	return false
}

// LedgerEntry is an immutable record of one balance change.
type LedgerEntry struct {
	ID                   int64      `json:"id"` // snowflake, strictly increasing
	WalletID             uuid.UUID  `json:"wallet_id"`
	Direction            Direction  `json:"direction"`
	Amount               int64      `json:"amount"` // always > 0
	Kind                 EntryKind  `json:"kind"`
	CounterpartyWalletID *uuid.UUID `json:"counterparty_wallet_id,omitempty"`
	Reference            string     `json:"reference"`
	Description          string     `json:"description"`
	ActorID              *uuid.UUID `json:"actor_id,omitempty"`
	BalanceAfter         int64      `json:"balance_after"`
	CreatedAt            time.Time  `json:"created_at"`
}

// Signed returns the amount with the sign of its direction.
func (e *LedgerEntry) Signed() int64 {
	if e.Direction == DirectionDebit {
		return -e.Amount
	}
	return e.Amount
}

// Transfer is the result of a wallet-to-wallet transfer.
type Transfer struct {
	ID          uuid.UUID    `json:"id"`
	Amount      int64        `json:"amount"`
	Description string       `json:"description"`
	Out         *LedgerEntry `json:"out"`
	In          *LedgerEntry `json:"in"`
}

// PaymentMethod selects how a purchase is paid.
type PaymentMethod string

const (
	PaymentMethodWallet PaymentMethod = "wallet"
	PaymentMethodQR     PaymentMethod = "qr"
)

// Purchase is the result of a marketplace purchase.
type Purchase struct {
	OrderID        string        `json:"order_id"`
	ProductID      uuid.UUID     `json:"product_id"`
	Quantity       int64         `json:"quantity"`
	UnitPrice      int64         `json:"unit_price"`
	Total          int64         `json:"total"`
	PaymentMethod  PaymentMethod `json:"payment_method"`
	TokenID        *uuid.UUID    `json:"token_id,omitempty"`
	RemainingStock int64         `json:"remaining_stock"`
	Entry          *LedgerEntry  `json:"entry"`
	SaleEntry      *LedgerEntry  `json:"sale_entry,omitempty"`
}

// MerchantPayment is the result of a merchant redeeming a payment token.
type MerchantPayment struct {
	TokenID       uuid.UUID    `json:"token_id"`
	Amount        int64        `json:"amount"`
	MerchantLabel string       `json:"merchant_label"`
	Debit         *LedgerEntry `json:"debit"`
	Credit        *LedgerEntry `json:"credit"`
}
