package postgres

import (
	"context"
	"testing"
	"time"

	"point-ledger/internal/core/domain"

	"github.com/google/uuid"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tokenCols() []string {
	return []string{"id", "token", "payer_wallet_id", "amount", "merchant_label", "purpose", "state",
		"qr_payload", "issued_at", "expires_at", "redeemed_at"}
}

func newTestToken(state domain.TokenState) *domain.PaymentToken {
	issued := time.Now().UTC().Truncate(time.Microsecond)
	return &domain.PaymentToken{
		ID:            uuid.New(),
		Token:         "8f14e45fceea167a5a36dedd4bea2543",
		PayerWalletID: uuid.New(),
		Amount:        120,
		MerchantLabel: "Canteen",
		Purpose:       domain.TokenPurposePurchase,
		State:         state,
		QRPayload:     "WPT:8f14e45fceea167a5a36dedd4bea2543:120:Canteen:sig",
		IssuedAt:      issued,
		ExpiresAt:     issued.Add(10 * time.Minute),
	}
}

func tokenRow(t *domain.PaymentToken) *pgxmock.Rows {
	return pgxmock.NewRows(tokenCols()).AddRow(
		t.ID, t.Token, t.PayerWalletID, t.Amount, t.MerchantLabel, t.Purpose, t.State,
		t.QRPayload, t.IssuedAt, t.ExpiresAt, t.RedeemedAt,
	)
}

func TestPaymentTokenRepo_Create(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewPaymentTokenRepo(mock)
	tok := newTestToken(domain.TokenStateIssued)

	mock.ExpectExec("INSERT INTO payment_tokens").
		WithArgs(tok.ID, tok.Token, tok.PayerWalletID, tok.Amount, tok.MerchantLabel, tok.Purpose, tok.State,
			tok.QRPayload, tok.IssuedAt, tok.ExpiresAt, tok.RedeemedAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	assert.NoError(t, repo.Create(context.Background(), tok))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPaymentTokenRepo_GetByToken(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewPaymentTokenRepo(mock)
	tok := newTestToken(domain.TokenStateIssued)

	mock.ExpectQuery("SELECT .+ FROM payment_tokens WHERE token").
		WithArgs(tok.Token).
		WillReturnRows(tokenRow(tok))

	result, err := repo.GetByToken(context.Background(), tok.Token)
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, tok.ID, result.ID)
	assert.Equal(t, domain.TokenStateIssued, result.State)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPaymentTokenRepo_Redeem_Success(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewPaymentTokenRepo(mock)
	now := time.Now().UTC().Truncate(time.Microsecond)
	tok := newTestToken(domain.TokenStateRedeemed)
	tok.RedeemedAt = &now

	mock.ExpectBegin()
	mock.ExpectQuery("UPDATE payment_tokens SET state").
		WithArgs(tok.Token, now, domain.TokenStateRedeemed, domain.TokenStateIssued).
		WillReturnRows(tokenRow(tok))

	tx, err := mock.Begin(context.Background())
	require.NoError(t, err)

	result, err := repo.Redeem(context.Background(), tx, tok.Token, now)
	require.NoError(t, err)
	assert.Equal(t, domain.TokenStateRedeemed, result.State)
	assert.Equal(t, now, *result.RedeemedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPaymentTokenRepo_Redeem_ClassifiesMiss(t *testing.T) {
	tests := []struct {
		name    string
		current *domain.PaymentToken
		wantErr error
	}{
		{"already redeemed", newTestToken(domain.TokenStateRedeemed), domain.ErrTokenAlreadyRedeemed},
		{"marked expired", newTestToken(domain.TokenStateExpired), domain.ErrTokenExpired},
		{"issued but overdue", newTestToken(domain.TokenStateIssued), domain.ErrTokenExpired},
		{"unknown", nil, domain.ErrNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock, err := pgxmock.NewPool()
			require.NoError(t, err)
			defer mock.Close()

			repo := NewPaymentTokenRepo(mock)
			now := time.Now().UTC()
			token := "deadbeefdeadbeefdeadbeefdeadbeef"

			mock.ExpectBegin()
			mock.ExpectQuery("UPDATE payment_tokens SET state").
				WithArgs(token, now, domain.TokenStateRedeemed, domain.TokenStateIssued).
				WillReturnRows(pgxmock.NewRows(tokenCols()))
			reread := pgxmock.NewRows(tokenCols())
			if tt.current != nil {
				reread = tokenRow(tt.current)
			}
			mock.ExpectQuery("SELECT .+ FROM payment_tokens WHERE token").
				WithArgs(token).
				WillReturnRows(reread)

			tx, err := mock.Begin(context.Background())
			require.NoError(t, err)

			result, err := repo.Redeem(context.Background(), tx, token, now)
			assert.Nil(t, result)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestPaymentTokenRepo_MarkExpired(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewPaymentTokenRepo(mock)
	now := time.Now().UTC()

	mock.ExpectExec("UPDATE payment_tokens SET state").
		WithArgs("abc", now, domain.TokenStateExpired, domain.TokenStateIssued).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec("UPDATE payment_tokens SET state").
		WithArgs("def", now, domain.TokenStateExpired, domain.TokenStateIssued).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	changed, err := repo.MarkExpired(context.Background(), "abc", now)
	require.NoError(t, err)
	assert.True(t, changed)

	changed, err = repo.MarkExpired(context.Background(), "def", now)
	require.NoError(t, err)
	assert.False(t, changed)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPaymentTokenRepo_ExpireIssued(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewPaymentTokenRepo(mock)
	now := time.Now().UTC()

	mock.ExpectExec("UPDATE payment_tokens SET state .+ WHERE state").
		WithArgs(now, domain.TokenStateExpired, domain.TokenStateIssued).
		WillReturnResult(pgxmock.NewResult("UPDATE", 7))

	n, err := repo.ExpireIssued(context.Background(), now)
	require.NoError(t, err)
	assert.Equal(t, int64(7), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}
