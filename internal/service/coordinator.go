package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"time"

	"point-ledger/internal/core/domain"
	"point-ledger/internal/core/ports"
	"point-ledger/pkg/apperror"
	"point-ledger/pkg/metrics"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
	"github.com/sethvargo/go-retry"
)

const (
	idempotencyTTL = 24 * time.Hour

	defaultMaxAttempts = 4
	defaultRetryBase   = 10 * time.Millisecond
)

// errReplayed aborts a unit whose idempotency key was committed by a
// concurrent request in the meantime.
var errReplayed = errors.New("idempotency key already committed")

// RetryPolicy bounds how often a unit is re-run after a version conflict.
type RetryPolicy struct {
	MaxAttempts int
	Base        time.Duration
}

// CoordinatorDeps groups the collaborators of CoordinatorService.
type CoordinatorDeps struct {
	Wallets     ports.WalletRepository
	Ledger      ports.LedgerRepository
	Idempotency ports.IdempotencyRepository
	Cache       ports.IdempotencyCache
	Products    ports.ProductRepository
	Tokens      ports.PaymentTokenService
	Audit       ports.AuditRecorder
	Transactor  ports.DBTransactor
	IDs         ports.IDGenerator
	Publisher   ports.EventPublisher
	Metrics     *metrics.LedgerMetrics
}

// CoordinatorService implements ports.Coordinator. Every operation runs as
// one database transaction; balances only change through WalletRepository.Mutate
// and every change appends exactly one ledger entry.
type CoordinatorService struct {
	wallets    ports.WalletRepository
	ledger     ports.LedgerRepository
	idempRepo  ports.IdempotencyRepository
	idempCache ports.IdempotencyCache
	products   ports.ProductRepository
	tokens     ports.PaymentTokenService
	audit      ports.AuditRecorder
	transactor ports.DBTransactor
	ids        ports.IDGenerator
	publisher  ports.EventPublisher
	metrics    *metrics.LedgerMetrics
	policy     RetryPolicy
	log        zerolog.Logger
	now        func() time.Time
}

// NewCoordinator creates a new CoordinatorService.
func NewCoordinator(deps CoordinatorDeps, policy RetryPolicy, log zerolog.Logger) *CoordinatorService {
	if policy.MaxAttempts < 1 {
		policy.MaxAttempts = defaultMaxAttempts
	}
	if policy.Base <= 0 {
		policy.Base = defaultRetryBase
	}
	return &CoordinatorService{
		wallets:    deps.Wallets,
		ledger:     deps.Ledger,
		idempRepo:  deps.Idempotency,
		idempCache: deps.Cache,
		products:   deps.Products,
		tokens:     deps.Tokens,
		audit:      deps.Audit,
		transactor: deps.Transactor,
		ids:        deps.IDs,
		publisher:  deps.Publisher,
		metrics:    deps.Metrics,
		policy:     policy,
		log:        log,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// posting describes one balance change and the entry that records it.
type posting struct {
	direction    domain.Direction
	amount       int64
	kind         domain.EntryKind
	counterparty *uuid.UUID
	reference    string
	description  string
	actorID      *uuid.UUID
}

// outcome is what a unit of work hands back to execute.
type outcome[T any] struct {
	result  *T
	ref     string
	entries []*domain.LedgerEntry
}

// CreateWallet returns the wallet of ownerAccountID, creating an empty one
// on first use.
func (s *CoordinatorService) CreateWallet(ctx context.Context, ownerAccountID uuid.UUID) (*domain.Wallet, error) {
	if ownerAccountID == uuid.Nil {
		return nil, apperror.Validation("owner account id is required")
	}

	existing, err := s.wallets.GetByOwner(ctx, ownerAccountID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get wallet by owner: %w", err))
	}
	if existing != nil {
		return existing, nil
	}

	now := s.now()
	w := &domain.Wallet{
		ID:             uuid.New(),
		OwnerAccountID: ownerAccountID,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.wallets.Create(ctx, w); err != nil {
		if !errors.Is(err, domain.ErrDuplicateKey) {
			return nil, apperror.InternalError(fmt.Errorf("create wallet: %w", err))
		}
		// Lost the race against a concurrent create for the same account.
		existing, err = s.wallets.GetByOwner(ctx, ownerAccountID)
		if err != nil {
			return nil, apperror.InternalError(fmt.Errorf("get wallet by owner: %w", err))
		}
		if existing == nil {
			return nil, apperror.InternalError(fmt.Errorf("wallet for account %s vanished", ownerAccountID))
		}
		return existing, nil
	}

	s.log.Info().
		Str("wallet_id", w.ID.String()).
		Str("owner_account_id", ownerAccountID.String()).
		Msg("wallet created")

	return w, nil
}

// Reward credits points for a completed activity. The reference is the
// idempotency key: a repeated reference returns the original entry.
func (s *CoordinatorService) Reward(ctx context.Context, req ports.RewardRequest) (*domain.LedgerEntry, error) {
	if req.Amount <= 0 {
		return nil, apperror.ErrInvalidAmount()
	}
	if req.Reference == "" {
		return nil, apperror.Validation("reference is required")
	}

	return execute(ctx, s, domain.OpReward, uuid.Nil, req.Reference, func(ctx context.Context, tx pgx.Tx) (outcome[domain.LedgerEntry], error) {
		w, err := s.loadWallet(ctx, tx, req.WalletID, apperror.ErrNotFound("wallet"))
		if err != nil {
			return outcome[domain.LedgerEntry]{}, err
		}
		entry, err := s.apply(ctx, tx, w, posting{
			direction:   domain.DirectionCredit,
			amount:      req.Amount,
			kind:        domain.EntryKindReward,
			reference:   req.Reference,
			description: req.Description,
			actorID:     req.ActorID,
		})
		if err != nil {
			return outcome[domain.LedgerEntry]{}, err
		}
		return single(entry), nil
	})
}

// Adjust applies an admin correction and writes its audit record in the
// same transaction.
func (s *CoordinatorService) Adjust(ctx context.Context, req ports.AdjustRequest) (*domain.LedgerEntry, error) {
	if !req.Direction.Valid() {
		return nil, apperror.Validation("direction must be credit or debit")
	}
	if req.Amount <= 0 {
		return nil, apperror.ErrInvalidAmount()
	}
	if req.Reason == "" {
		return nil, apperror.Validation("reason is required")
	}
	if req.ActorID == uuid.Nil {
		return nil, apperror.ErrMissingActor()
	}

	actor := req.ActorID
	return execute(ctx, s, domain.OpAdjust, req.WalletID, req.IdempotencyKey, func(ctx context.Context, tx pgx.Tx) (outcome[domain.LedgerEntry], error) {
		w, err := s.loadWallet(ctx, tx, req.WalletID, apperror.ErrNotFound("wallet"))
		if err != nil {
			return outcome[domain.LedgerEntry]{}, err
		}
		entry, err := s.apply(ctx, tx, w, posting{
			direction:   req.Direction,
			amount:      req.Amount,
			kind:        domain.EntryKindAdjustment,
			reference:   req.IdempotencyKey,
			description: req.Reason,
			actorID:     &actor,
		})
		if err != nil {
			return outcome[domain.LedgerEntry]{}, err
		}
		err = s.audit.Record(ctx, tx, ports.AuditEntry{
			ActorID:      actor,
			Action:       domain.AuditActionWalletAdjust,
			TargetEntity: "wallet",
			TargetID:     w.ID.String(),
			Detail: map[string]any{
				"direction":     req.Direction,
				"amount":        req.Amount,
				"reason":        req.Reason,
				"entry_id":      entry.ID,
				"balance_after": entry.BalanceAfter,
			},
		})
		if err != nil {
			return outcome[domain.LedgerEntry]{}, err
		}
		return single(entry), nil
	})
}

// resetResult wraps the optional entry so a no-op reset replays as one too.
type resetResult struct {
	Entry *domain.LedgerEntry `json:"entry"`
}

// Reset moves a wallet to an absolute balance through one signed reset
// entry. The audit record is written even when the balance already matches.
func (s *CoordinatorService) Reset(ctx context.Context, req ports.ResetRequest) (*domain.LedgerEntry, error) {
	if req.NewBalance < 0 {
		return nil, apperror.Validation("new balance must not be negative")
	}
	if req.Reason == "" {
		return nil, apperror.Validation("reason is required")
	}
	if req.ActorID == uuid.Nil {
		return nil, apperror.ErrMissingActor()
	}

	actor := req.ActorID
	res, err := execute(ctx, s, domain.OpReset, req.WalletID, req.IdempotencyKey, func(ctx context.Context, tx pgx.Tx) (outcome[resetResult], error) {
		w, err := s.loadWallet(ctx, tx, req.WalletID, apperror.ErrNotFound("wallet"))
		if err != nil {
			return outcome[resetResult]{}, err
		}

		previous := w.Balance
		delta := req.NewBalance - previous
		var entry *domain.LedgerEntry
		if delta != 0 {
			dir, amount := domain.DirectionCredit, delta
			if delta < 0 {
				dir, amount = domain.DirectionDebit, -delta
			}
			entry, err = s.apply(ctx, tx, w, posting{
				direction:   dir,
				amount:      amount,
				kind:        domain.EntryKindReset,
				reference:   req.IdempotencyKey,
				description: req.Reason,
				actorID:     &actor,
			})
			if err != nil {
				return outcome[resetResult]{}, err
			}
		}

		detail := map[string]any{
			"previous_balance": previous,
			"new_balance":      req.NewBalance,
			"reason":           req.Reason,
		}
		ref := "noop:" + w.ID.String()
		var entries []*domain.LedgerEntry
		if entry != nil {
			detail["entry_id"] = entry.ID
			ref = fmt.Sprint(entry.ID)
			entries = append(entries, entry)
		}
		err = s.audit.Record(ctx, tx, ports.AuditEntry{
			ActorID:      actor,
			Action:       domain.AuditActionWalletReset,
			TargetEntity: "wallet",
			TargetID:     w.ID.String(),
			Detail:       detail,
		})
		if err != nil {
			return outcome[resetResult]{}, err
		}
		return outcome[resetResult]{result: &resetResult{Entry: entry}, ref: ref, entries: entries}, nil
	})
	if err != nil {
		return nil, err
	}
	return res.Entry, nil
}

// execute runs body under the retry policy. A non-empty callerKey makes the
// unit idempotent: the result is stored with the unit and replayed for any
// later call carrying the same key on the same scope wallet.
func execute[T any](
	ctx context.Context,
	s *CoordinatorService,
	op domain.Operation,
	scope uuid.UUID,
	callerKey string,
	body func(ctx context.Context, tx pgx.Tx) (outcome[T], error),
) (*T, error) {
	start := time.Now()

	var key string
	if callerKey != "" {
		key = domain.BuildIdempotencyKey(op, scope, callerKey)
		prior, err := replay[T](ctx, s, key)
		if err != nil {
			s.observe(op, err, start)
			return nil, err
		}
		if prior != nil {
			s.metrics.ObserveOperation(string(op), metrics.OutcomeReplayed, time.Since(start))
			return prior, nil
		}
	}

	var (
		out     outcome[T]
		payload []byte
	)
	err := s.withRetry(ctx, op, func(ctx context.Context, tx pgx.Tx) error {
		o, err := body(ctx, tx)
		if err != nil {
			return err
		}
		if key != "" {
			payload, err = s.saveIdempotent(ctx, tx, key, o.ref, o.result)
			if err != nil {
				return err
			}
		}
		out = o
		return nil
	})
	if errors.Is(err, errReplayed) {
		prior, rerr := replay[T](ctx, s, key)
		if rerr == nil && prior == nil {
			rerr = apperror.InternalError(fmt.Errorf("idempotency record %q missing after conflict", key))
		}
		if rerr != nil {
			s.observe(op, rerr, start)
			return nil, rerr
		}
		s.metrics.ObserveOperation(string(op), metrics.OutcomeReplayed, time.Since(start))
		return prior, nil
	}
	if err != nil {
		s.observe(op, err, start)
		return nil, err
	}

	if key != "" {
		if err := s.idempCache.Set(ctx, key, payload, idempotencyTTL); err != nil {
			s.log.Warn().Err(err).Str("key", key).Msg("failed to cache idempotency in redis")
		}
	}
	s.publish(ctx, out.entries)
	s.observe(op, nil, start)

	s.log.Info().
		Str("op", string(op)).
		Str("result_ref", out.ref).
		Int("entries", len(out.entries)).
		Msg("ledger operation committed")

	return out.result, nil
}

// withRetry runs fn in a fresh transaction, re-running the whole unit on a
// version conflict until the policy is exhausted.
func (s *CoordinatorService) withRetry(ctx context.Context, op domain.Operation, fn func(ctx context.Context, tx pgx.Tx) error) error {
	backoff := retry.WithMaxRetries(
		uint64(s.policy.MaxAttempts-1),
		retry.WithJitterPercent(20, retry.NewExponential(s.policy.Base)),
	)

	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		err := s.runOnce(ctx, fn)
		if errors.Is(err, domain.ErrVersionConflict) {
			s.metrics.IncConflict(string(op))
			s.log.Debug().Str("op", string(op)).Msg("wallet version conflict, retrying")
			return retry.RetryableError(err)
		}
		return err
	})
	if errors.Is(err, domain.ErrVersionConflict) {
		return apperror.ErrBusy(err)
	}
	return err
}

func (s *CoordinatorService) runOnce(ctx context.Context, fn func(ctx context.Context, tx pgx.Tx) error) error {
	tx, err := s.transactor.Begin(ctx)
	if err != nil {
		return apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if err := fn(ctx, tx); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}
	return nil
}

// loadWallet reads a wallet inside tx, returning notFound when it is absent.
func (s *CoordinatorService) loadWallet(ctx context.Context, tx pgx.Tx, id uuid.UUID, notFound error) (*domain.Wallet, error) {
	w, err := s.wallets.GetByIDTx(ctx, tx, id)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get wallet: %w", err))
	}
	if w == nil {
		return nil, notFound
	}
	return w, nil
}

// apply mutates w by p and appends the matching entry. On success w holds
// the updated wallet so a later posting on it uses the new version.
func (s *CoordinatorService) apply(ctx context.Context, tx pgx.Tx, w *domain.Wallet, p posting) (*domain.LedgerEntry, error) {
	delta := p.amount
	if p.direction == domain.DirectionDebit {
		delta = -delta
	} else if w.Balance > math.MaxInt64-p.amount {
		return nil, apperror.ErrInvalidAmount()
	}

	updated, err := s.wallets.Mutate(ctx, tx, w.ID, delta, w.Version)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrVersionConflict):
			return nil, err
		case errors.Is(err, domain.ErrInsufficientBalance):
			return nil, apperror.ErrInsufficientBalance()
		case errors.Is(err, domain.ErrNotFound):
			return nil, apperror.ErrNotFound("wallet")
		default:
			return nil, apperror.InternalError(fmt.Errorf("mutate wallet: %w", err))
		}
	}

	entry := &domain.LedgerEntry{
		ID:                   s.ids.NextID(),
		WalletID:             w.ID,
		Direction:            p.direction,
		Amount:               p.amount,
		Kind:                 p.kind,
		CounterpartyWalletID: p.counterparty,
		Reference:            p.reference,
		Description:          p.description,
		ActorID:              p.actorID,
		BalanceAfter:         updated.Balance,
		CreatedAt:            s.now(),
	}
	if err := s.ledger.Append(ctx, tx, entry); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("append ledger entry: %w", err))
	}

	*w = *updated
	return entry, nil
}

// replay returns the stored result for key, or nil when the key is new.
func replay[T any](ctx context.Context, s *CoordinatorService, key string) (*T, error) {
	cached, err := s.idempCache.Get(ctx, key)
	if err != nil {
		s.log.Warn().Err(err).Str("key", key).Msg("redis idempotency check failed, falling through to DB")
	}
	if cached != nil {
		var out T
		if err := json.Unmarshal(cached, &out); err == nil {
			return &out, nil
		}
		s.log.Warn().Str("key", key).Msg("corrupt idempotency cache entry, falling through to DB")
	}

	rec, err := s.idempRepo.Get(ctx, key)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("db idempotency check: %w", err))
	}
	if rec == nil {
		return nil, nil
	}

	var out T
	if err := json.Unmarshal(rec.ResponseJSON, &out); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("unmarshal idempotency record: %w", err))
	}
	return &out, nil
}

func (s *CoordinatorService) saveIdempotent(ctx context.Context, tx pgx.Tx, key, ref string, result any) ([]byte, error) {
	payload, err := json.Marshal(result)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("marshal response: %w", err))
	}

	err = s.idempRepo.Create(ctx, tx, &domain.IdempotencyLog{
		Key:          key,
		ResultRef:    ref,
		ResponseJSON: payload,
		CreatedAt:    s.now(),
	})
	if err != nil {
		if errors.Is(err, domain.ErrDuplicateKey) {
			return nil, errReplayed
		}
		return nil, apperror.InternalError(fmt.Errorf("save idempotency log: %w", err))
	}
	return payload, nil
}

// publish announces committed entries. Delivery is best effort; the ledger
// row is the source of truth.
func (s *CoordinatorService) publish(ctx context.Context, entries []*domain.LedgerEntry) {
	if s.publisher == nil || len(entries) == 0 {
		return
	}
	if err := s.publisher.PublishEntries(ctx, entries); err != nil {
		s.log.Warn().Err(err).Int("entries", len(entries)).Msg("failed to publish ledger entries")
	}
}

func (s *CoordinatorService) observe(op domain.Operation, err error, start time.Time) {
	result := metrics.OutcomeSuccess
	if err != nil {
		result = metrics.OutcomeError
		var appErr *apperror.AppError
		if errors.As(err, &appErr) && appErr.HTTPStatus < http.StatusInternalServerError {
			result = metrics.OutcomeRejected
		}
	}
	s.metrics.ObserveOperation(string(op), result, time.Since(start))
}

func single(entry *domain.LedgerEntry) outcome[domain.LedgerEntry] {
	return outcome[domain.LedgerEntry]{
		result:  entry,
		ref:     fmt.Sprint(entry.ID),
		entries: []*domain.LedgerEntry{entry},
	}
}
