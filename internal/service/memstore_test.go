package service

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"point-ledger/internal/core/domain"
	"point-ledger/internal/core/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// memStore is an in-memory stand-in for the Postgres adapters. Transactions
// are serialized by txMu and roll back by replaying undo closures.
type memStore struct {
	txMu sync.Mutex
	mu   sync.RWMutex

	wallets  map[uuid.UUID]*domain.Wallet
	entries  []*domain.LedgerEntry
	idem     map[string]*domain.IdempotencyLog
	tokens   map[string]*domain.PaymentToken
	products map[uuid.UUID]*domain.Product
	audits   []*domain.AuditRecord

	conflicts  map[uuid.UUID]int // injected version conflicts left per wallet
	failAppend error
}

func newMemStore() *memStore {
	return &memStore{
		wallets:   map[uuid.UUID]*domain.Wallet{},
		idem:      map[string]*domain.IdempotencyLog{},
		tokens:    map[string]*domain.PaymentToken{},
		products:  map[uuid.UUID]*domain.Product{},
		conflicts: map[uuid.UUID]int{},
	}
}

type memTx struct {
	pgx.Tx
	store *memStore
	undo  []func()
	done  bool
}

func (s *memStore) Begin(_ context.Context) (pgx.Tx, error) {
	s.txMu.Lock()
	return &memTx{store: s}, nil
}

func (t *memTx) Commit(_ context.Context) error {
	if t.done {
		return pgx.ErrTxClosed
	}
	t.done = true
	t.store.txMu.Unlock()
	return nil
}

func (t *memTx) Rollback(_ context.Context) error {
	if t.done {
		return pgx.ErrTxClosed
	}
	t.done = true
	t.store.mu.Lock()
	for i := len(t.undo) - 1; i >= 0; i-- {
		t.undo[i]()
	}
	t.store.mu.Unlock()
	t.store.txMu.Unlock()
	return nil
}

func onUndo(tx pgx.Tx, fn func()) {
	mt := tx.(*memTx)
	mt.undo = append(mt.undo, fn)
}

func (s *memStore) injectConflicts(walletID uuid.UUID, n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conflicts[walletID] = n
}

func (s *memStore) balance(t *testing.T, id uuid.UUID) int64 {
	t.Helper()
	s.mu.RLock()
	defer s.mu.RUnlock()
	w, ok := s.wallets[id]
	if !ok {
		t.Fatalf("wallet %s not found", id)
	}
	return w.Balance
}

func (s *memStore) entryCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

func (s *memStore) auditCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.audits)
}

func (s *memStore) walletIDs() []uuid.UUID {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]uuid.UUID, 0, len(s.wallets))
	for id := range s.wallets {
		ids = append(ids, id)
	}
	return ids
}

// --- wallets ---

type memWallets struct{ s *memStore }

func (r memWallets) Create(_ context.Context, w *domain.Wallet) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, existing := range r.s.wallets {
		if existing.OwnerAccountID == w.OwnerAccountID {
			return domain.ErrDuplicateKey
		}
	}
	cp := *w
	r.s.wallets[w.ID] = &cp
	return nil
}

func (r memWallets) GetByID(_ context.Context, id uuid.UUID) (*domain.Wallet, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	if w, ok := r.s.wallets[id]; ok {
		cp := *w
		return &cp, nil
	}
	return nil, nil
}

func (r memWallets) GetByOwner(_ context.Context, owner uuid.UUID) (*domain.Wallet, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	for _, w := range r.s.wallets {
		if w.OwnerAccountID == owner {
			cp := *w
			return &cp, nil
		}
	}
	return nil, nil
}

func (r memWallets) GetByIDTx(ctx context.Context, _ pgx.Tx, id uuid.UUID) (*domain.Wallet, error) {
	return r.GetByID(ctx, id)
}

func (r memWallets) Mutate(_ context.Context, tx pgx.Tx, id uuid.UUID, delta int64, expectedVersion int64) (*domain.Wallet, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if n := r.s.conflicts[id]; n > 0 {
		r.s.conflicts[id] = n - 1
		return nil, domain.ErrVersionConflict
	}
	w, ok := r.s.wallets[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	if w.Version != expectedVersion {
		return nil, domain.ErrVersionConflict
	}
	if w.Balance+delta < 0 {
		return nil, domain.ErrInsufficientBalance
	}

	prev := *w
	w.Balance += delta
	w.Version++
	w.UpdatedAt = time.Now().UTC()
	onUndo(tx, func() { *r.s.wallets[id] = prev })

	cp := *w
	return &cp, nil
}

func (r memWallets) ListTop(_ context.Context, limit int) ([]domain.Wallet, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := make([]domain.Wallet, 0, len(r.s.wallets))
	for _, w := range r.s.wallets {
		out = append(out, *w)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Balance > out[j].Balance })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r memWallets) List(_ context.Context, page, pageSize int) ([]domain.Wallet, int64, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := make([]domain.Wallet, 0, len(r.s.wallets))
	for _, w := range r.s.wallets {
		out = append(out, *w)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	total := int64(len(out))
	start := min(max(page-1, 0)*pageSize, len(out))
	end := min(start+pageSize, len(out))
	return out[start:end], total, nil
}

func (r memWallets) Totals(_ context.Context) (*ports.WalletTotals, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	t := &ports.WalletTotals{Wallets: int64(len(r.s.wallets))}
	for _, w := range r.s.wallets {
		t.Circulation += w.Balance
	}
	return t, nil
}

// --- ledger ---

type memLedger struct{ s *memStore }

func (r memLedger) Append(_ context.Context, tx pgx.Tx, e *domain.LedgerEntry) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.failAppend != nil {
		return r.s.failAppend
	}
	n := len(r.s.entries)
	cp := *e
	r.s.entries = append(r.s.entries, &cp)
	onUndo(tx, func() { r.s.entries = r.s.entries[:n] })
	return nil
}

func (r memLedger) ListByWallet(ctx context.Context, walletID uuid.UUID, page, pageSize int) ([]domain.LedgerEntry, int64, error) {
	return r.List(ctx, ports.LedgerListParams{WalletID: &walletID, Page: page, PageSize: pageSize})
}

func (r memLedger) List(_ context.Context, p ports.LedgerListParams) ([]domain.LedgerEntry, int64, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var out []domain.LedgerEntry
	for i := len(r.s.entries) - 1; i >= 0; i-- {
		e := r.s.entries[i]
		if p.WalletID != nil && e.WalletID != *p.WalletID {
			continue
		}
		if p.Kind != nil && e.Kind != *p.Kind {
			continue
		}
		if p.Direction != nil && e.Direction != *p.Direction {
			continue
		}
		out = append(out, *e)
	}
	return out, int64(len(out)), nil
}

func (r memLedger) ListByReference(_ context.Context, reference string) ([]domain.LedgerEntry, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var out []domain.LedgerEntry
	for _, e := range r.s.entries {
		if e.Reference == reference {
			out = append(out, *e)
		}
	}
	return out, nil
}

func (r memLedger) SumByWallet(_ context.Context, walletID uuid.UUID) (*ports.LedgerSum, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	sum := &ports.LedgerSum{}
	for _, e := range r.s.entries {
		if e.WalletID != walletID {
			continue
		}
		sum.Net += e.Signed()
		sum.Entries++
		sum.LastBalanceAfter = e.BalanceAfter
	}
	return sum, nil
}

func (r memLedger) SalesSince(_ context.Context, walletID uuid.UUID, since time.Time) (*ports.SalesSummary, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	sum := &ports.SalesSummary{}
	for _, e := range r.s.entries {
		if e.WalletID == walletID && e.Kind == domain.EntryKindSale && !e.CreatedAt.Before(since) {
			sum.Total += e.Amount
			sum.Count++
		}
	}
	return sum, nil
}

func (r memLedger) ActivitySince(_ context.Context, since time.Time) (*ports.LedgerActivity, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	a := &ports.LedgerActivity{}
	for _, e := range r.s.entries {
		if e.CreatedAt.Before(since) {
			continue
		}
		a.Entries++
		if e.Direction == domain.DirectionCredit {
			a.Credits += e.Amount
		} else {
			a.Debits += e.Amount
		}
	}
	return a, nil
}

// --- idempotency ---

type memIdempotency struct{ s *memStore }

func (r memIdempotency) Create(_ context.Context, tx pgx.Tx, log *domain.IdempotencyLog) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.idem[log.Key]; ok {
		return domain.ErrDuplicateKey
	}
	cp := *log
	r.s.idem[log.Key] = &cp
	onUndo(tx, func() { delete(r.s.idem, log.Key) })
	return nil
}

func (r memIdempotency) Get(_ context.Context, key string) (*domain.IdempotencyLog, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	if l, ok := r.s.idem[key]; ok {
		cp := *l
		return &cp, nil
	}
	return nil, nil
}

// --- payment tokens ---

type memTokens struct{ s *memStore }

func (r memTokens) Create(_ context.Context, t *domain.PaymentToken) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.tokens[t.Token]; ok {
		return domain.ErrDuplicateKey
	}
	cp := *t
	r.s.tokens[t.Token] = &cp
	return nil
}

func (r memTokens) GetByToken(_ context.Context, token string) (*domain.PaymentToken, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	if t, ok := r.s.tokens[token]; ok {
		cp := *t
		return &cp, nil
	}
	return nil, nil
}

func (r memTokens) Redeem(_ context.Context, tx pgx.Tx, token string, now time.Time) (*domain.PaymentToken, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	t, ok := r.s.tokens[token]
	if !ok {
		return nil, domain.ErrNotFound
	}
	switch {
	case t.State == domain.TokenStateRedeemed:
		return nil, domain.ErrTokenAlreadyRedeemed
	case !t.RedeemableAt(now):
		return nil, domain.ErrTokenExpired
	}
	prev := *t
	t.State = domain.TokenStateRedeemed
	t.RedeemedAt = &now
	onUndo(tx, func() { *r.s.tokens[token] = prev })
	cp := *t
	return &cp, nil
}

func (r memTokens) MarkExpired(_ context.Context, token string, now time.Time) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	t, ok := r.s.tokens[token]
	if !ok || t.State != domain.TokenStateIssued || !t.IsExpiredAt(now) {
		return false, nil
	}
	t.State = domain.TokenStateExpired
	return true, nil
}

func (r memTokens) ExpireIssued(_ context.Context, now time.Time) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var n int64
	for _, t := range r.s.tokens {
		if t.State == domain.TokenStateIssued && t.IsExpiredAt(now) {
			t.State = domain.TokenStateExpired
			n++
		}
	}
	return n, nil
}

// --- products ---

type memProducts struct{ s *memStore }

func (r memProducts) Create(_ context.Context, tx pgx.Tx, p *domain.Product) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	cp := *p
	r.s.products[p.ID] = &cp
	onUndo(tx, func() { delete(r.s.products, p.ID) })
	return nil
}

func (r memProducts) GetByID(_ context.Context, id uuid.UUID) (*domain.Product, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	if p, ok := r.s.products[id]; ok {
		cp := *p
		return &cp, nil
	}
	return nil, nil
}

func (r memProducts) GetByIDForUpdate(ctx context.Context, _ pgx.Tx, id uuid.UUID) (*domain.Product, error) {
	return r.GetByID(ctx, id)
}

func (r memProducts) Update(_ context.Context, tx pgx.Tx, p *domain.Product) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	cur, ok := r.s.products[p.ID]
	if !ok {
		return domain.ErrNotFound
	}
	prev := *cur
	*cur = *p
	onUndo(tx, func() { *r.s.products[p.ID] = prev })
	return nil
}

func (r memProducts) Delete(_ context.Context, tx pgx.Tx, id uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	cur, ok := r.s.products[id]
	if !ok {
		return domain.ErrNotFound
	}
	delete(r.s.products, id)
	onUndo(tx, func() { r.s.products[id] = cur })
	return nil
}

func (r memProducts) DecrementStock(_ context.Context, tx pgx.Tx, id uuid.UUID, quantity int64) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.products[id]
	if !ok || p.Stock < quantity {
		return 0, domain.ErrInsufficientStock
	}
	p.Stock -= quantity
	onUndo(tx, func() { r.s.products[id].Stock += quantity })
	return p.Stock, nil
}

func (r memProducts) List(_ context.Context, params ports.ProductListParams) ([]domain.Product, int64, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var out []domain.Product
	for _, p := range r.s.products {
		if params.Status != nil && p.Status != *params.Status {
			continue
		}
		out = append(out, *p)
	}
	return out, int64(len(out)), nil
}

// --- audit ---

type memAudit struct{ s *memStore }

func (r memAudit) Create(_ context.Context, tx pgx.Tx, rec *domain.AuditRecord) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	n := len(r.s.audits)
	cp := *rec
	r.s.audits = append(r.s.audits, &cp)
	onUndo(tx, func() { r.s.audits = r.s.audits[:n] })
	return nil
}

func (r memAudit) List(_ context.Context, params ports.AuditListParams) ([]domain.AuditRecord, int64, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var out []domain.AuditRecord
	for i := len(r.s.audits) - 1; i >= 0; i-- {
		rec := r.s.audits[i]
		if params.Action != nil && rec.Action != *params.Action {
			continue
		}
		out = append(out, *rec)
	}
	return out, int64(len(out)), nil
}

// --- cache and publisher ---

type memCache struct {
	mu   sync.Mutex
	data map[string][]byte
	err  error
}

func (c *memCache) Get(_ context.Context, key string) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return nil, c.err
	}
	return c.data[key], nil
}

func (c *memCache) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return c.err
	}
	c.data[key] = value
	return nil
}

type recordingPublisher struct {
	mu      sync.Mutex
	entries []*domain.LedgerEntry
	err     error
}

func (p *recordingPublisher) PublishEntries(_ context.Context, entries []*domain.LedgerEntry) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.entries = append(p.entries, entries...)
	return nil
}

func (p *recordingPublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.entries)
}

var errDiskFull = errors.New("disk full")
