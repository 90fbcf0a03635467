package postgres

import (
	"context"
	"fmt"
	"strings"

	"point-ledger/internal/core/domain"
	"point-ledger/internal/core/ports"

	"github.com/jackc/pgx/v5"
)

const auditColumns = `id, actor_account_id, action, target_entity, target_id, detail, created_at`

// AuditRepo implements ports.AuditRepository.
type AuditRepo struct {
	pool Pool
}

// NewAuditRepo creates a new AuditRepo.
func NewAuditRepo(pool Pool) *AuditRepo {
	return &AuditRepo{pool: pool}
}

// Create inserts an audit record in the caller's transaction, so the record
// commits or rolls back together with the action it describes.
func (r *AuditRepo) Create(ctx context.Context, tx pgx.Tx, rec *domain.AuditRecord) error {
	query := `INSERT INTO audit_records (` + auditColumns + `) VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := tx.Exec(ctx, query,
		rec.ID, rec.ActorAccountID, rec.Action, rec.TargetEntity, rec.TargetID, rec.Detail, rec.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert audit record: %w", err)
	}
	return nil
}

// List fetches audit records with filtering and pagination, newest first.
func (r *AuditRepo) List(ctx context.Context, params ports.AuditListParams) ([]domain.AuditRecord, int64, error) {
	var conditions []string
	var args []any
	argIdx := 1

	if params.ActorAccountID != nil {
		conditions = append(conditions, fmt.Sprintf("actor_account_id = $%d", argIdx))
		args = append(args, *params.ActorAccountID)
		argIdx++
	}
	if params.Action != nil {
		conditions = append(conditions, fmt.Sprintf("action = $%d", argIdx))
		args = append(args, *params.Action)
		argIdx++
	}
	if params.TargetEntity != "" {
		conditions = append(conditions, fmt.Sprintf("target_entity = $%d", argIdx))
		args = append(args, params.TargetEntity)
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
	if err := r.pool.QueryRow(ctx, "SELECT COUNT(*) FROM audit_records "+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count audit records: %w", err)
	}

	limit, offset := pageOffset(params.Page, params.PageSize)
	dataQuery := fmt.Sprintf(`SELECT %s FROM audit_records %s ORDER BY created_at DESC, id LIMIT $%d OFFSET $%d`,
		auditColumns, where, argIdx, argIdx+1)
	args = append(args, limit, offset)

	rows, err := r.pool.Query(ctx, dataQuery, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list audit records: %w", err)
	}
	defer rows.Close()

	var records []domain.AuditRecord
	for rows.Next() {
		var rec domain.AuditRecord
		if err := rows.Scan(&rec.ID, &rec.ActorAccountID, &rec.Action, &rec.TargetEntity,
			&rec.TargetID, &rec.Detail, &rec.CreatedAt); err != nil {
			return nil, 0, fmt.Errorf("scan audit row: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate audit rows: %w", err)
	}
	return records, total, nil
}
