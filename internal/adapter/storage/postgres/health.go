package postgres

import (
	"context"
	"errors"
	"fmt"
)

var errSchemaMissing = errors.New("ledger schema not migrated")

// HealthCheck implements ports.HealthChecker for PostgreSQL. A reachable
// database without the ledger tables is reported unhealthy.
type HealthCheck struct {
	pool Pool
}

// NewHealthCheck creates a PostgreSQL health checker.
func NewHealthCheck(pool Pool) *HealthCheck {
	return &HealthCheck{pool: pool}
}

// Ping checks that the wallet, ledger and idempotency tables exist.
func (h *HealthCheck) Ping(ctx context.Context) error {
	query := `SELECT to_regclass('wallets') IS NOT NULL
		AND to_regclass('ledger_entries') IS NOT NULL
		AND to_regclass('idempotency_logs') IS NOT NULL`

	var ready bool
	if err := h.pool.QueryRow(ctx, query).Scan(&ready); err != nil {
		return fmt.Errorf("query ledger schema: %w", err)
	}
	if !ready {
		return errSchemaMissing
	}
	return nil
}

// Name returns the dependency name.
func (h *HealthCheck) Name() string {
	return "postgresql"
}
