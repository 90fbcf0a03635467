package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"point-ledger/internal/core/domain"
	"point-ledger/internal/core/ports"
	"point-ledger/pkg/apperror"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
)

// AuditRecorderImpl implements ports.AuditRecorder.
type AuditRecorderImpl struct {
	repo       ports.AuditRepository
	transactor ports.DBTransactor
	log        zerolog.Logger
	now        func() time.Time
}

// NewAuditRecorder creates a new AuditRecorderImpl.
func NewAuditRecorder(repo ports.AuditRepository, transactor ports.DBTransactor, log zerolog.Logger) *AuditRecorderImpl {
	return &AuditRecorderImpl{
		repo:       repo,
		transactor: transactor,
		log:        log,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// Record writes an audit record in the caller's transaction.
func (s *AuditRecorderImpl) Record(ctx context.Context, tx pgx.Tx, entry ports.AuditEntry) error {
	if entry.Action == "" || entry.TargetEntity == "" {
		return apperror.Validation("audit action and target entity are required")
	}

	detail := entry.Detail
	if detail == nil {
		detail = map[string]any{}
	}
	raw, err := json.Marshal(detail)
	if err != nil {
		return apperror.InternalError(fmt.Errorf("marshal audit detail: %w", err))
	}

	rec := &domain.AuditRecord{
		ID:             uuid.New(),
		ActorAccountID: entry.ActorID,
		Action:         entry.Action,
		TargetEntity:   entry.TargetEntity,
		TargetID:       entry.TargetID,
		Detail:         string(raw),
		CreatedAt:      s.now(),
	}
	if err := s.repo.Create(ctx, tx, rec); err != nil {
		return apperror.InternalError(fmt.Errorf("create audit record: %w", err))
	}

	s.log.Info().
		Str("action", string(rec.Action)).
		Str("actor_id", rec.ActorAccountID.String()).
		Str("target_entity", rec.TargetEntity).
		Str("target_id", rec.TargetID).
		Msg("audit")

	return nil
}

// RecordStandalone writes an audit record in its own transaction.
func (s *AuditRecorderImpl) RecordStandalone(ctx context.Context, entry ports.AuditEntry) error {
	tx, err := s.transactor.Begin(ctx)
	if err != nil {
		return apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if err := s.Record(ctx, tx, entry); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}
	return nil
}

// List returns audit records newest first.
func (s *AuditRecorderImpl) List(ctx context.Context, params ports.AuditListParams) ([]domain.AuditRecord, int64, error) {
	records, total, err := s.repo.List(ctx, params)
	if err != nil {
		return nil, 0, apperror.InternalError(err)
	}
	return records, total, nil
}
