package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"point-ledger/internal/core/domain"
	"point-ledger/internal/core/ports"
	"point-ledger/pkg/apperror"
	"point-ledger/pkg/metrics"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
)

const (
	qrPrefix           = "WPT:"
	tokenBytes         = 16
	maxMerchantLabel   = 128
	defaultTokenTTL    = 10 * time.Minute
	defaultMaxTokenTTL = time.Hour
)

// TokenPolicy configures token lifetimes and QR signing.
type TokenPolicy struct {
	DefaultTTL time.Duration
	MaxTTL     time.Duration
	SigningKey string
}

// PaymentTokenServiceImpl implements ports.PaymentTokenService.
type PaymentTokenServiceImpl struct {
	repo    ports.PaymentTokenRepository
	wallets ports.WalletRepository
	signer  ports.SignatureService
	metrics *metrics.LedgerMetrics
	policy  TokenPolicy
	log     zerolog.Logger
	now     func() time.Time
}

// NewPaymentTokenService creates a new PaymentTokenServiceImpl.
func NewPaymentTokenService(
	repo ports.PaymentTokenRepository,
	wallets ports.WalletRepository,
	signer ports.SignatureService,
	m *metrics.LedgerMetrics,
	policy TokenPolicy,
	log zerolog.Logger,
) *PaymentTokenServiceImpl {
	if policy.DefaultTTL <= 0 {
		policy.DefaultTTL = defaultTokenTTL
	}
	if policy.MaxTTL < policy.DefaultTTL {
		policy.MaxTTL = max(defaultMaxTokenTTL, policy.DefaultTTL)
	}
	return &PaymentTokenServiceImpl{
		repo:    repo,
		wallets: wallets,
		signer:  signer,
		metrics: m,
		policy:  policy,
		log:     log,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Issue creates a one-time token authorizing a debit of amount from the
// payer's wallet. The balance is checked here as a courtesy; the debit
// itself is checked again at redemption.
func (s *PaymentTokenServiceImpl) Issue(ctx context.Context, req ports.IssueTokenRequest) (*domain.PaymentToken, error) {
	if req.Amount <= 0 {
		return nil, apperror.ErrInvalidAmount()
	}
	label := strings.TrimSpace(req.MerchantLabel)
	if label == "" {
		return nil, apperror.Validation("merchant label is required")
	}
	if len(label) > maxMerchantLabel {
		return nil, apperror.Validation("merchant label is too long")
	}
	purpose := req.Purpose
	if purpose == "" {
		purpose = domain.TokenPurposePurchase
	}
	if !purpose.Valid() {
		return nil, apperror.Validation("purpose must be purchase or transfer")
	}
	if req.TTL < 0 {
		return nil, apperror.Validation("ttl must not be negative")
	}

	ttl := req.TTL
	if ttl == 0 {
		ttl = s.policy.DefaultTTL
	}
	if ttl > s.policy.MaxTTL {
		ttl = s.policy.MaxTTL
	}

	wallet, err := s.wallets.GetByID(ctx, req.PayerWalletID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get payer wallet: %w", err))
	}
	if wallet == nil {
		return nil, apperror.ErrNotFound("wallet")
	}
	if !wallet.CanDebit(req.Amount) {
		return nil, apperror.ErrInsufficientBalance()
	}

	raw, err := newTokenString()
	if err != nil {
		return nil, apperror.InternalError(err)
	}

	now := s.now()
	t := &domain.PaymentToken{
		ID:            uuid.New(),
		Token:         raw,
		PayerWalletID: wallet.ID,
		Amount:        req.Amount,
		MerchantLabel: label,
		Purpose:       purpose,
		State:         domain.TokenStateIssued,
		IssuedAt:      now,
		ExpiresAt:     now.Add(ttl),
	}
	t.QRPayload = s.qrPayload(t)

	if err := s.repo.Create(ctx, t); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("create payment token: %w", err))
	}

	s.log.Info().
		Str("token_id", t.ID.String()).
		Str("payer_wallet_id", wallet.ID.String()).
		Int64("amount", t.Amount).
		Time("expires_at", t.ExpiresAt).
		Msg("payment token issued")

	return t, nil
}

// Lookup returns a token that can be redeemed right now.
func (s *PaymentTokenServiceImpl) Lookup(ctx context.Context, token string) (*domain.PaymentToken, error) {
	t, err := s.repo.GetByToken(ctx, token)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get payment token: %w", err))
	}
	if t == nil {
		return nil, apperror.ErrInvalidOrExpiredToken()
	}

	switch {
	case t.State == domain.TokenStateRedeemed:
		return nil, apperror.ErrTokenAlreadyRedeemed()
	case t.State == domain.TokenStateExpired, t.IsExpiredAt(s.now()):
		return nil, apperror.ErrTokenExpired()
	}
	return t, nil
}

// Redeem moves the token from issued to redeemed inside tx. Of two
// concurrent redemptions exactly one succeeds.
func (s *PaymentTokenServiceImpl) Redeem(ctx context.Context, tx pgx.Tx, token string) (*domain.PaymentToken, error) {
	t, err := s.repo.Redeem(ctx, tx, token, s.now())
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrNotFound):
			return nil, apperror.ErrInvalidOrExpiredToken()
		case errors.Is(err, domain.ErrTokenAlreadyRedeemed):
			return nil, apperror.ErrTokenAlreadyRedeemed()
		case errors.Is(err, domain.ErrTokenExpired):
			return nil, apperror.ErrTokenExpired()
		default:
			return nil, apperror.InternalError(fmt.Errorf("redeem payment token: %w", err))
		}
	}
	return t, nil
}

// Status reads a token in any state. An issued token past its expiry is
// expired on the spot.
func (s *PaymentTokenServiceImpl) Status(ctx context.Context, token string) (*domain.PaymentToken, error) {
	t, err := s.repo.GetByToken(ctx, token)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get payment token: %w", err))
	}
	if t == nil {
		return nil, apperror.ErrNotFound("payment token")
	}

	now := s.now()
	if t.State == domain.TokenStateIssued && t.IsExpiredAt(now) {
		expired, err := s.repo.MarkExpired(ctx, token, now)
		if err != nil {
			s.log.Warn().Err(err).Str("token_id", t.ID.String()).Msg("lazy token expiry failed")
		}
		if expired {
			s.metrics.AddExpiredTokens(1)
		}
		t.State = domain.TokenStateExpired
	}
	return t, nil
}

// ExpireSweep expires every issued token past its expiry.
func (s *PaymentTokenServiceImpl) ExpireSweep(ctx context.Context) (int64, error) {
	n, err := s.repo.ExpireIssued(ctx, s.now())
	if err != nil {
		return 0, apperror.InternalError(fmt.Errorf("expire payment tokens: %w", err))
	}
	s.metrics.AddExpiredTokens(n)
	if n > 0 {
		s.log.Info().Int64("expired", n).Msg("payment tokens expired")
	}
	return n, nil
}

// ParseQRPayload accepts either a raw token or a signed payload of the form
// WPT:<token>:<amount>:<merchant>:<signature>.
func (s *PaymentTokenServiceImpl) ParseQRPayload(payload string) (string, error) {
	p := strings.TrimSpace(payload)
	if p == "" {
		return "", apperror.ErrInvalidOrExpiredToken()
	}
	if !strings.HasPrefix(p, qrPrefix) {
		return p, nil
	}

	idx := strings.LastIndex(p, ":")
	body, sig := p[:idx], p[idx+1:]
	if !s.signer.Verify(s.policy.SigningKey, body, sig) {
		return "", apperror.ErrInvalidOrExpiredToken()
	}

	token, _, ok := strings.Cut(strings.TrimPrefix(body, qrPrefix), ":")
	if !ok || token == "" {
		return "", apperror.ErrInvalidOrExpiredToken()
	}
	return token, nil
}

func (s *PaymentTokenServiceImpl) qrPayload(t *domain.PaymentToken) string {
	body := qrPrefix + t.Token + ":" + strconv.FormatInt(t.Amount, 10) + ":" + t.MerchantLabel
	return body + ":" + s.signer.Sign(s.policy.SigningKey, body)
}

func newTokenString() (string, error) {
	b := make([]byte, tokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	return hex.EncodeToString(b), nil
}
