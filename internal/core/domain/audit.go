package domain

import (
	"time"

	"github.com/google/uuid"
)

// AuditAction represents the type of audited action.
type AuditAction string

const (
	AuditActionWalletAdjust  AuditAction = "WALLET_ADJUST"
	AuditActionWalletReset   AuditAction = "WALLET_RESET"
	AuditActionProductCreate AuditAction = "PRODUCT_CREATE"
	AuditActionProductUpdate AuditAction = "PRODUCT_UPDATE"
	AuditActionProductDelete AuditAction = "PRODUCT_DELETE"
	AuditActionUserUpdate    AuditAction = "USER_UPDATE"
	AuditActionPasswordReset AuditAction = "PASSWORD_RESET"
	AuditActionAccessDenied  AuditAction = "ACCESS_DENIED"
)

// AuditRecord records a single privileged action.
type AuditRecord struct {
	ID             uuid.UUID   `json:"id"`
	ActorAccountID uuid.UUID   `json:"actor_account_id"`
	Action         AuditAction `json:"action"`
	TargetEntity   string      `json:"target_entity"`
	TargetID       string      `json:"target_id"`
	Detail         string      `json:"detail"` // JSON string
	CreatedAt      time.Time   `json:"created_at"`
}
