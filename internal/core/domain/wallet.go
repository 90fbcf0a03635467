package domain

import (
	"bytes"
	"sort"
	"time"

	"github.com/google/uuid"
)

// Wallet holds the point balance of exactly one account.
type Wallet struct {
	ID             uuid.UUID `json:"id"`
	OwnerAccountID uuid.UUID `json:"owner_account_id"`
	Balance        int64     `json:"balance"`
	Version        int64     `json:"version"` // bumped by every balance mutation
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// CanDebit reports whether amount can be taken without going negative.
func (w *Wallet) CanDebit(amount int64) bool {
	return amount > 0 && w.Balance >= amount
}

// LockOrder returns the distinct ids sorted by their byte representation.
// Wallets touched by one transaction are always mutated in this order.
func LockOrder(ids ...uuid.UUID) []uuid.UUID {
	out := make([]uuid.UUID, 0, len(ids))
	seen := make(map[uuid.UUID]struct{}, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool {
		return bytes.Compare(out[i][:], out[j][:]) < 0
	})
	return out
}
