package domain

import (
	"time"

	"github.com/google/uuid"
)

type ProductStatus string

const (
	ProductStatusActive   ProductStatus = "active"
	ProductStatusInactive ProductStatus = "inactive"
)

// Valid reports whether s is a known status.
func (s ProductStatus) Valid() bool {
	return s == ProductStatusActive || s == ProductStatusInactive
}

// Product is a marketplace item priced in points.
type Product struct {
	ID             uuid.UUID     `json:"id"`
	Name           string        `json:"name"`
	Description    string        `json:"description"`
	Price          int64         `json:"price"`
	Stock          int64         `json:"stock"`
	Status         ProductStatus `json:"status"`
	SellerWalletID *uuid.UUID    `json:"seller_wallet_id,omitempty"` // credited on sale when set
	CreatedBy      uuid.UUID     `json:"created_by"`
	CreatedAt      time.Time     `json:"created_at"`
	UpdatedAt      time.Time     `json:"updated_at"`
}

// IsActive returns true if the product can be purchased.
func (p *Product) IsActive() bool {
	return p.Status == ProductStatusActive
}
