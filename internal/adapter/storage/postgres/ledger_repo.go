package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"point-ledger/internal/core/domain"
	"point-ledger/internal/core/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const ledgerColumns = `id, wallet_id, direction, amount, kind, counterparty_wallet_id,
	reference, description, actor_id, balance_after, created_at`

// LedgerRepo implements ports.LedgerRepository. Entries are insert-only.
type LedgerRepo struct {
	pool Pool
}

// NewLedgerRepo creates a new LedgerRepo.
func NewLedgerRepo(pool Pool) *LedgerRepo {
	return &LedgerRepo{pool: pool}
}

// Append inserts an entry within a database transaction.
func (r *LedgerRepo) Append(ctx context.Context, tx pgx.Tx, e *domain.LedgerEntry) error {
	query := `INSERT INTO ledger_entries (` + ledgerColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

	_, err := tx.Exec(ctx, query,
		e.ID, e.WalletID, e.Direction, e.Amount, e.Kind, e.CounterpartyWalletID,
		e.Reference, e.Description, e.ActorID, e.BalanceAfter, e.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert ledger entry: %w", err)
	}
	return nil
}

// ListByWallet returns one wallet's entries, newest first.
func (r *LedgerRepo) ListByWallet(ctx context.Context, walletID uuid.UUID, page, pageSize int) ([]domain.LedgerEntry, int64, error) {
	return r.List(ctx, ports.LedgerListParams{WalletID: &walletID, Page: page, PageSize: pageSize})
}

// List fetches entries with filtering and pagination, newest first.
func (r *LedgerRepo) List(ctx context.Context, params ports.LedgerListParams) ([]domain.LedgerEntry, int64, error) {
	var conditions []string
	var args []any
	argIdx := 1

	if params.WalletID != nil {
		conditions = append(conditions, fmt.Sprintf("wallet_id = $%d", argIdx))
		args = append(args, *params.WalletID)
		argIdx++
	}
	if params.Kind != nil {
		conditions = append(conditions, fmt.Sprintf("kind = $%d", argIdx))
		args = append(args, *params.Kind)
		argIdx++
	}
	if params.Direction != nil {
		conditions = append(conditions, fmt.Sprintf("direction = $%d", argIdx))
		args = append(args, *params.Direction)
		argIdx++
	}
	if params.From != nil {
		conditions = append(conditions, fmt.Sprintf("created_at >= to_timestamp($%d)", argIdx))
		args = append(args, *params.From)
		argIdx++
	}
	if params.To != nil {
		conditions = append(conditions, fmt.Sprintf("created_at <= to_timestamp($%d)", argIdx))
		args = append(args, *params.To)
		argIdx++
	}

	where := ""
	if len(conditions) > 0 {
		where = "WHERE " + strings.Join(conditions, " AND ")
	}

	var total int64
	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM ledger_entries %s", where)
	if err := r.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count ledger entries: %w", err)
	}

	limit, offset := pageOffset(params.Page, params.PageSize)
	dataQuery := fmt.Sprintf(`SELECT %s FROM ledger_entries %s ORDER BY id DESC LIMIT $%d OFFSET $%d`,
		ledgerColumns, where, argIdx, argIdx+1)
	args = append(args, limit, offset)

	entries, err := r.query(ctx, dataQuery, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list ledger entries: %w", err)
	}
	return entries, total, nil
}

// ListByReference returns every entry sharing a reference in append order.
// Both legs of a transfer share one.
func (r *LedgerRepo) ListByReference(ctx context.Context, reference string) ([]domain.LedgerEntry, error) {
	query := `SELECT ` + ledgerColumns + ` FROM ledger_entries WHERE reference = $1 ORDER BY id`

	entries, err := r.query(ctx, query, reference)
	if err != nil {
		return nil, fmt.Errorf("list ledger entries by reference: %w", err)
	}
	return entries, nil
}

// SumByWallet replays a wallet's entries in the database.
func (r *LedgerRepo) SumByWallet(ctx context.Context, walletID uuid.UUID) (*ports.LedgerSum, error) {
	query := `SELECT
		COALESCE(SUM(CASE WHEN direction = 'credit' THEN amount ELSE -amount END), 0) AS net,
		COUNT(*) AS entries,
		COALESCE((SELECT balance_after FROM ledger_entries WHERE wallet_id = $1 ORDER BY id DESC LIMIT 1), 0) AS last_balance
		FROM ledger_entries WHERE wallet_id = $1`

	sum := &ports.LedgerSum{}
	if err := r.pool.QueryRow(ctx, query, walletID).Scan(&sum.Net, &sum.Entries, &sum.LastBalanceAfter); err != nil {
		return nil, fmt.Errorf("sum ledger entries: %w", err)
	}
	return sum, nil
}

// SalesSince aggregates sale credits of a wallet from since onwards.
func (r *LedgerRepo) SalesSince(ctx context.Context, walletID uuid.UUID, since time.Time) (*ports.SalesSummary, error) {
	query := `SELECT COALESCE(SUM(amount), 0), COUNT(*) FROM ledger_entries
		WHERE wallet_id = $1 AND kind = $2 AND created_at >= $3`

	s := &ports.SalesSummary{}
	if err := r.pool.QueryRow(ctx, query, walletID, domain.EntryKindSale, since).Scan(&s.Total, &s.Count); err != nil {
		return nil, fmt.Errorf("sum sales: %w", err)
	}
	return s, nil
}

// ActivitySince counts entries across all wallets from since onwards and
// totals them per direction.
func (r *LedgerRepo) ActivitySince(ctx context.Context, since time.Time) (*ports.LedgerActivity, error) {
	query := `SELECT COUNT(*),
		COALESCE(SUM(amount) FILTER (WHERE direction = 'credit'), 0)::BIGINT,
		COALESCE(SUM(amount) FILTER (WHERE direction = 'debit'), 0)::BIGINT
		FROM ledger_entries WHERE created_at >= $1`

	a := &ports.LedgerActivity{}
	if err := r.pool.QueryRow(ctx, query, since).Scan(&a.Entries, &a.Credits, &a.Debits); err != nil {
		return nil, fmt.Errorf("sum ledger activity: %w", err)
	}
	return a, nil
}

func (r *LedgerRepo) query(ctx context.Context, sql string, args ...any) ([]domain.LedgerEntry, error) {
	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []domain.LedgerEntry
	for rows.Next() {
		var e domain.LedgerEntry
		err := rows.Scan(
			&e.ID, &e.WalletID, &e.Direction, &e.Amount, &e.Kind, &e.CounterpartyWalletID,
			&e.Reference, &e.Description, &e.ActorID, &e.BalanceAfter, &e.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan ledger row: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate ledger rows: %w", err)
	}
	return entries, nil
}
