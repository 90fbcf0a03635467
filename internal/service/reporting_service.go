package service

import (
	"context"
	"fmt"
	"time"

	"point-ledger/internal/core/domain"
	"point-ledger/internal/core/ports"
	"point-ledger/pkg/apperror"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	defaultLeaderboardSize = 10
	maxLeaderboardSize     = 100
)

// reportingService implements ports.ReportingService.
type reportingService struct {
	walletRepo ports.WalletRepository
	ledgerRepo ports.LedgerRepository
	loc        *time.Location
	log        zerolog.Logger
	now        func() time.Time
}

// NewReportingService creates a new reporting service. loc defines where the
// business day of merchant and admin stats starts; nil means UTC.
func NewReportingService(
	walletRepo ports.WalletRepository,
	ledgerRepo ports.LedgerRepository,
	loc *time.Location,
	log zerolog.Logger,
) ports.ReportingService {
	if loc == nil {
		loc = time.UTC
	}
	return &reportingService{
		walletRepo: walletRepo,
		ledgerRepo: ledgerRepo,
		loc:        loc,
		log:        log,
		now:        time.Now,
	}
}

// GetWallet returns a wallet by id.
func (s *reportingService) GetWallet(ctx context.Context, id uuid.UUID) (*domain.Wallet, error) {
	w, err := s.walletRepo.GetByID(ctx, id)
	if err != nil {
		return nil, apperror.InternalError(err)
	}
	if w == nil {
		return nil, apperror.ErrNotFound("wallet")
	}
	return w, nil
}

// GetWalletByAccount returns the wallet owned by accountID.
func (s *reportingService) GetWalletByAccount(ctx context.Context, accountID uuid.UUID) (*domain.Wallet, error) {
	w, err := s.walletRepo.GetByOwner(ctx, accountID)
	if err != nil {
		return nil, apperror.InternalError(err)
	}
	if w == nil {
		return nil, apperror.ErrNotFound("wallet")
	}
	return w, nil
}

// ListWalletLedger returns one wallet's entries, newest first.
func (s *reportingService) ListWalletLedger(ctx context.Context, walletID uuid.UUID, page, pageSize int) ([]domain.LedgerEntry, int64, error) {
	entries, total, err := s.ledgerRepo.ListByWallet(ctx, walletID, page, pageSize)
	if err != nil {
		return nil, 0, apperror.InternalError(err)
	}
	return entries, total, nil
}

// ListLedger returns entries across wallets with filters.
func (s *reportingService) ListLedger(ctx context.Context, params ports.LedgerListParams) ([]domain.LedgerEntry, int64, error) {
	if params.Kind != nil && !params.Kind.Valid() {
		return nil, 0, apperror.Validation("unknown entry kind")
	}
	if params.Direction != nil && !params.Direction.Valid() {
		return nil, 0, apperror.Validation("direction must be credit or debit")
	}
	entries, total, err := s.ledgerRepo.List(ctx, params)
	if err != nil {
		return nil, 0, apperror.InternalError(err)
	}
	return entries, total, nil
}

// ListByReference returns every entry written under one reference, such as
// both legs of a transfer.
func (s *reportingService) ListByReference(ctx context.Context, reference string) ([]domain.LedgerEntry, error) {
	if reference == "" {
		return nil, apperror.Validation("reference is required")
	}
	entries, err := s.ledgerRepo.ListByReference(ctx, reference)
	if err != nil {
		return nil, apperror.InternalError(err)
	}
	return entries, nil
}

// GetMerchantStats returns the merchant's balance and today's sales.
func (s *reportingService) GetMerchantStats(ctx context.Context, merchantAccountID uuid.UUID) (*ports.MerchantStats, error) {
	w, err := s.walletRepo.GetByOwner(ctx, merchantAccountID)
	if err != nil {
		return nil, apperror.InternalError(err)
	}
	if w == nil {
		return nil, apperror.ErrNotFound("merchant wallet")
	}

	since := s.startOfDay()
	sales, err := s.ledgerRepo.SalesSince(ctx, w.ID, since)
	if err != nil {
		return nil, apperror.InternalError(err)
	}

	return &ports.MerchantStats{
		WalletID:   w.ID,
		Balance:    w.Balance,
		TodaySales: sales.Total,
		TodayCount: sales.Count,
		Since:      since,
	}, nil
}

// ListWallets returns every wallet for the admin console.
func (s *reportingService) ListWallets(ctx context.Context, page, pageSize int) ([]domain.Wallet, int64, error) {
	wallets, total, err := s.walletRepo.List(ctx, page, pageSize)
	if err != nil {
		return nil, 0, apperror.InternalError(err)
	}
	return wallets, total, nil
}

// GetAdminStats returns the points in circulation and today's ledger
// activity across all wallets.
func (s *reportingService) GetAdminStats(ctx context.Context) (*ports.AdminStats, error) {
	totals, err := s.walletRepo.Totals(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("wallet totals: %w", err))
	}

	since := s.startOfDay()
	activity, err := s.ledgerRepo.ActivitySince(ctx, since)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("ledger activity: %w", err))
	}

	return &ports.AdminStats{
		Wallets:           totals.Wallets,
		CirculationPoints: totals.Circulation,
		TodayEntries:      activity.Entries,
		TodayCredits:      activity.Credits,
		TodayDebits:       activity.Debits,
		Since:             since,
	}, nil
}

// GetLeaderboard returns the richest wallets.
func (s *reportingService) GetLeaderboard(ctx context.Context, limit int) ([]domain.Wallet, error) {
	if limit <= 0 {
		limit = defaultLeaderboardSize
	}
	limit = min(limit, maxLeaderboardSize)

	wallets, err := s.walletRepo.ListTop(ctx, limit)
	if err != nil {
		return nil, apperror.InternalError(err)
	}
	return wallets, nil
}

// VerifyWallet replays a wallet's ledger and compares it with the stored
// balance.
func (s *reportingService) VerifyWallet(ctx context.Context, walletID uuid.UUID) (*ports.WalletVerification, error) {
	w, err := s.GetWallet(ctx, walletID)
	if err != nil {
		return nil, err
	}

	sum, err := s.ledgerRepo.SumByWallet(ctx, walletID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("sum ledger: %w", err))
	}

	v := &ports.WalletVerification{
		WalletID:         w.ID,
		Balance:          w.Balance,
		LedgerNet:        sum.Net,
		LastBalanceAfter: sum.LastBalanceAfter,
		Entries:          sum.Entries,
	}
	v.Consistent = v.LedgerNet == v.Balance && (v.Entries == 0 || v.LastBalanceAfter == v.Balance)

	if !v.Consistent {
		s.log.Error().
			Str("wallet_id", w.ID.String()).
			Int64("balance", v.Balance).
			Int64("ledger_net", v.LedgerNet).
			Int64("last_balance_after", v.LastBalanceAfter).
			Msg("wallet balance diverges from ledger")
	}
	return v, nil
}

func (s *reportingService) startOfDay() time.Time {
	local := s.now().In(s.loc)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, s.loc)
}
