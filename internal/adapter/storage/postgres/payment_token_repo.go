package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"point-ledger/internal/core/domain"

	"github.com/jackc/pgx/v5"
)

const tokenColumns = `id, token, payer_wallet_id, amount, merchant_label, purpose, state,
	qr_payload, issued_at, expires_at, redeemed_at`

// PaymentTokenRepo implements ports.PaymentTokenRepository.
type PaymentTokenRepo struct {
	pool Pool
}

// NewPaymentTokenRepo creates a new PaymentTokenRepo.
func NewPaymentTokenRepo(pool Pool) *PaymentTokenRepo {
	return &PaymentTokenRepo{pool: pool}
}

// Create inserts a freshly issued token.
func (r *PaymentTokenRepo) Create(ctx context.Context, t *domain.PaymentToken) error {
	query := `INSERT INTO payment_tokens (` + tokenColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

	_, err := r.pool.Exec(ctx, query,
		t.ID, t.Token, t.PayerWalletID, t.Amount, t.MerchantLabel, t.Purpose, t.State,
		t.QRPayload, t.IssuedAt, t.ExpiresAt, t.RedeemedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrDuplicateKey
		}
		return fmt.Errorf("insert payment token: %w", err)
	}
	return nil
}

// GetByToken fetches a token by its opaque value.
func (r *PaymentTokenRepo) GetByToken(ctx context.Context, token string) (*domain.PaymentToken, error) {
	query := `SELECT ` + tokenColumns + ` FROM payment_tokens WHERE token = $1`

	t, err := scanToken(r.pool.QueryRow(ctx, query, token))
	if err != nil {
		return nil, fmt.Errorf("get payment token: %w", err)
	}
	return t, nil
}

// Redeem is the single-row compare-and-set issued -> redeemed. Of two
// concurrent callers exactly one gets the row back.
func (r *PaymentTokenRepo) Redeem(ctx context.Context, tx pgx.Tx, token string, now time.Time) (*domain.PaymentToken, error) {
	query := `UPDATE payment_tokens SET state = $3, redeemed_at = $2
		WHERE token = $1 AND state = $4 AND expires_at > $2
		RETURNING ` + tokenColumns

	t, err := scanToken(tx.QueryRow(ctx, query, token, now, domain.TokenStateRedeemed, domain.TokenStateIssued))
	if err != nil {
		return nil, fmt.Errorf("redeem payment token: %w", err)
	}
	if t != nil {
		return t, nil
	}

	current, err := scanToken(tx.QueryRow(ctx, `SELECT `+tokenColumns+` FROM payment_tokens WHERE token = $1`, token))
	if err != nil {
		return nil, fmt.Errorf("reread payment token: %w", err)
	}
	switch {
	case current == nil:
		return nil, domain.ErrNotFound
	case current.State == domain.TokenStateRedeemed:
		return nil, domain.ErrTokenAlreadyRedeemed
	default:
		return nil, domain.ErrTokenExpired
	}
}

// MarkExpired expires one overdue issued token. Returns false when the
// token was not in that state.
func (r *PaymentTokenRepo) MarkExpired(ctx context.Context, token string, now time.Time) (bool, error) {
	query := `UPDATE payment_tokens SET state = $3
		WHERE token = $1 AND state = $4 AND expires_at <= $2`

	tag, err := r.pool.Exec(ctx, query, token, now, domain.TokenStateExpired, domain.TokenStateIssued)
	if err != nil {
		return false, fmt.Errorf("expire payment token: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// ExpireIssued expires every overdue issued token.
func (r *PaymentTokenRepo) ExpireIssued(ctx context.Context, now time.Time) (int64, error) {
	query := `UPDATE payment_tokens SET state = $2 WHERE state = $3 AND expires_at <= $1`

	tag, err := r.pool.Exec(ctx, query, now, domain.TokenStateExpired, domain.TokenStateIssued)
	if err != nil {
		return 0, fmt.Errorf("expire payment tokens: %w", err)
	}
	return tag.RowsAffected(), nil
}

func scanToken(row pgx.Row) (*domain.PaymentToken, error) {
	t := &domain.PaymentToken{}
	err := row.Scan(
		&t.ID, &t.Token, &t.PayerWalletID, &t.Amount, &t.MerchantLabel, &t.Purpose, &t.State,
		&t.QRPayload, &t.IssuedAt, &t.ExpiresAt, &t.RedeemedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return t, nil
}
