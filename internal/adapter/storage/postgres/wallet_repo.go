package postgres

import (
	"context"
	"errors"
	"fmt"

	"point-ledger/internal/core/domain"
	"point-ledger/internal/core/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const walletColumns = `id, owner_account_id, balance, version, created_at, updated_at`

// WalletRepo implements ports.WalletRepository.
type WalletRepo struct {
	pool Pool
}

// NewWalletRepo creates a new WalletRepo.
func NewWalletRepo(pool Pool) *WalletRepo {
	return &WalletRepo{pool: pool}
}

// Create inserts a new wallet. A second wallet for the same owner fails
// with domain.ErrDuplicateKey.
func (r *WalletRepo) Create(ctx context.Context, w *domain.Wallet) error {
	query := `INSERT INTO wallets (` + walletColumns + `) VALUES ($1, $2, $3, $4, $5, $6)`

	_, err := r.pool.Exec(ctx, query,
		w.ID, w.OwnerAccountID, w.Balance, w.Version, w.CreatedAt, w.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrDuplicateKey
		}
		return fmt.Errorf("insert wallet: %w", err)
	}
	return nil
}

// GetByID fetches a wallet by its UUID.
func (r *WalletRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Wallet, error) {
	query := `SELECT ` + walletColumns + ` FROM wallets WHERE id = $1`

	w, err := scanWallet(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		return nil, fmt.Errorf("get wallet by id: %w", err)
	}
	return w, nil
}

// GetByOwner fetches the wallet of an account.
func (r *WalletRepo) GetByOwner(ctx context.Context, ownerAccountID uuid.UUID) (*domain.Wallet, error) {
	query := `SELECT ` + walletColumns + ` FROM wallets WHERE owner_account_id = $1`

	w, err := scanWallet(r.pool.QueryRow(ctx, query, ownerAccountID))
	if err != nil {
		return nil, fmt.Errorf("get wallet by owner: %w", err)
	}
	return w, nil
}

// GetByIDTx reads a wallet inside tx. No row lock is taken; Mutate's version
// predicate detects concurrent writers.
func (r *WalletRepo) GetByIDTx(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.Wallet, error) {
	query := `SELECT ` + walletColumns + ` FROM wallets WHERE id = $1`

	w, err := scanWallet(tx.QueryRow(ctx, query, id))
	if err != nil {
		return nil, fmt.Errorf("get wallet in tx: %w", err)
	}
	return w, nil
}

// Mutate adds delta to the balance when the version still matches and the
// result stays non-negative. On a miss the row is re-read to classify why.
// A lock wait past the transaction's lock_timeout reports ErrVersionConflict.
func (r *WalletRepo) Mutate(ctx context.Context, tx pgx.Tx, id uuid.UUID, delta int64, expectedVersion int64) (*domain.Wallet, error) {
	query := `UPDATE wallets SET balance = balance + $3, version = version + 1, updated_at = NOW()
		WHERE id = $1 AND version = $2 AND balance + $3 >= 0
		RETURNING ` + walletColumns

	w, err := scanWallet(tx.QueryRow(ctx, query, id, expectedVersion, delta))
	if err != nil {
		if isLockTimeout(err) {
			// The row is held by a concurrent unit; retry like a lost race.
			return nil, domain.ErrVersionConflict
		}
		return nil, fmt.Errorf("mutate wallet: %w", err)
	}
	if w != nil {
		return w, nil
	}

	current, err := r.GetByIDTx(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	switch {
	case current == nil:
		return nil, domain.ErrNotFound
	case current.Version != expectedVersion:
		return nil, domain.ErrVersionConflict
	default:
		return nil, domain.ErrInsufficientBalance
	}
}

// ListTop returns the wallets with the highest balances.
func (r *WalletRepo) ListTop(ctx context.Context, limit int) ([]domain.Wallet, error) {
	query := `SELECT ` + walletColumns + ` FROM wallets ORDER BY balance DESC, id LIMIT $1`

	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("list top wallets: %w", err)
	}
	defer rows.Close()

	return collectWallets(rows)
}

// List returns every wallet, newest first, with the total count.
func (r *WalletRepo) List(ctx context.Context, page, pageSize int) ([]domain.Wallet, int64, error) {
	var total int64
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM wallets`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count wallets: %w", err)
	}

	limit, offset := pageOffset(page, pageSize)
	query := `SELECT ` + walletColumns + ` FROM wallets ORDER BY created_at DESC, id LIMIT $1 OFFSET $2`

	rows, err := r.pool.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list wallets: %w", err)
	}
	defer rows.Close()

	wallets, err := collectWallets(rows)
	if err != nil {
		return nil, 0, err
	}
	return wallets, total, nil
}

// Totals returns the wallet count and the points in circulation.
func (r *WalletRepo) Totals(ctx context.Context) (*ports.WalletTotals, error) {
	query := `SELECT COUNT(*), COALESCE(SUM(balance), 0)::BIGINT FROM wallets`

	t := &ports.WalletTotals{}
	if err := r.pool.QueryRow(ctx, query).Scan(&t.Wallets, &t.Circulation); err != nil {
		return nil, fmt.Errorf("sum wallet balances: %w", err)
	}
	return t, nil
}

func collectWallets(rows pgx.Rows) ([]domain.Wallet, error) {
	var wallets []domain.Wallet
	for rows.Next() {
		var w domain.Wallet
		if err := rows.Scan(&w.ID, &w.OwnerAccountID, &w.Balance, &w.Version, &w.CreatedAt, &w.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan wallet row: %w", err)
		}
		wallets = append(wallets, w)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate wallet rows: %w", err)
	}
	return wallets, nil
}

func scanWallet(row pgx.Row) (*domain.Wallet, error) {
	w := &domain.Wallet{}
	err := row.Scan(&w.ID, &w.OwnerAccountID, &w.Balance, &w.Version, &w.CreatedAt, &w.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return w, nil
}
