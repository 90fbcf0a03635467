package service

import (
	"context"
	"errors"
	"fmt"
	"math"

	"point-ledger/internal/core/domain"
	"point-ledger/internal/core/ports"
	"point-ledger/pkg/apperror"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// Purchase buys quantity units of a product. Stock, the optional token and
// the buyer's balance are all checked before anything is written; the buyer
// debit, the seller credit and the stock decrement commit together.
func (s *CoordinatorService) Purchase(ctx context.Context, req ports.PurchaseRequest) (*domain.Purchase, error) {
	qty := req.Quantity
	if qty == 0 {
		qty = 1
	}
	if qty < 0 {
		return nil, apperror.Validation("quantity must be positive")
	}

	method := req.PaymentMethod
	if method == "" {
		method = domain.PaymentMethodWallet
	}
	switch method {
	case domain.PaymentMethodWallet:
	case domain.PaymentMethodQR:
		if req.Token == "" {
			return nil, apperror.Validation("token is required for qr payments")
		}
	default:
		return nil, apperror.Validation("payment method must be wallet or qr")
	}

	return execute(ctx, s, domain.OpPurchase, req.BuyerWalletID, req.OrderID, func(ctx context.Context, tx pgx.Tx) (outcome[domain.Purchase], error) {
		var none outcome[domain.Purchase]

		product, err := s.products.GetByIDForUpdate(ctx, tx, req.ProductID)
		if err != nil {
			return none, apperror.InternalError(fmt.Errorf("lock product: %w", err))
		}
		if product == nil {
			return none, apperror.ErrNotFound("product")
		}
		if !product.IsActive() {
			return none, apperror.ErrProductInactive()
		}
		if product.Stock < qty {
			return none, apperror.ErrInsufficientStock()
		}
		if product.Price > math.MaxInt64/qty {
			return none, apperror.ErrInvalidAmount()
		}
		total := product.Price * qty

		buyer, err := s.loadWallet(ctx, tx, req.BuyerWalletID, apperror.ErrNotFound("wallet"))
		if err != nil {
			return none, err
		}

		var seller *domain.Wallet
		if product.SellerWalletID != nil {
			if *product.SellerWalletID == buyer.ID {
				return none, apperror.ErrSelfTransferNotAllowed()
			}
			seller, err = s.loadWallet(ctx, tx, *product.SellerWalletID, apperror.ErrNotFound("seller wallet"))
			if err != nil {
				return none, err
			}
		}

		var token *domain.PaymentToken
		if method == domain.PaymentMethodQR {
			raw, err := s.tokens.ParseQRPayload(req.Token)
			if err != nil {
				return none, err
			}
			token, err = s.tokens.Lookup(ctx, raw)
			if err != nil {
				return none, err
			}
			if token.PayerWalletID != buyer.ID {
				return none, apperror.ErrInvalidOrExpiredToken()
			}
			if token.Amount != total {
				return none, apperror.ErrAmountMismatch()
			}
		}

		if !buyer.CanDebit(total) {
			return none, apperror.ErrInsufficientBalance()
		}

		p := &domain.Purchase{
			OrderID:       req.OrderID,
			ProductID:     product.ID,
			Quantity:      qty,
			UnitPrice:     product.Price,
			Total:         total,
			PaymentMethod: method,
		}
		if p.OrderID == "" {
			p.OrderID = uuid.NewString()
		}

		if token != nil {
			if _, err := s.tokens.Redeem(ctx, tx, token.Token); err != nil {
				return none, err
			}
			p.TokenID = &token.ID
		}

		p.RemainingStock, err = s.products.DecrementStock(ctx, tx, product.ID, qty)
		if err != nil {
			if errors.Is(err, domain.ErrInsufficientStock) {
				return none, apperror.ErrInsufficientStock()
			}
			return none, apperror.InternalError(fmt.Errorf("decrement stock: %w", err))
		}

		reference := "order:" + p.OrderID
		description := fmt.Sprintf("%s x%d", product.Name, qty)
		ids := []uuid.UUID{buyer.ID}
		if seller != nil {
			ids = append(ids, seller.ID)
		}
		for _, id := range domain.LockOrder(ids...) {
			if id == buyer.ID {
				debit := posting{
					direction:   domain.DirectionDebit,
					amount:      total,
					kind:        domain.EntryKindPurchase,
					reference:   reference,
					description: description,
					actorID:     req.ActorID,
				}
				if seller != nil {
					debit.counterparty = &seller.ID
				}
				p.Entry, err = s.apply(ctx, tx, buyer, debit)
			} else {
				p.SaleEntry, err = s.apply(ctx, tx, seller, posting{
					direction:    domain.DirectionCredit,
					amount:       total,
					kind:         domain.EntryKindSale,
					counterparty: &buyer.ID,
					reference:    reference,
					description:  description,
					actorID:      req.ActorID,
				})
			}
			if err != nil {
				return none, err
			}
		}

		entries := []*domain.LedgerEntry{p.Entry}
		if p.SaleEntry != nil {
			entries = append(entries, p.SaleEntry)
		}
		return outcome[domain.Purchase]{result: p, ref: reference, entries: entries}, nil
	})
}

// RedeemMerchantPayment lets a merchant collect a payer's token. The token
// is single use, so it needs no separate idempotency key.
func (s *CoordinatorService) RedeemMerchantPayment(ctx context.Context, req ports.RedeemRequest) (*domain.MerchantPayment, error) {
	if req.Token == "" {
		return nil, apperror.Validation("token is required")
	}
	raw, err := s.tokens.ParseQRPayload(req.Token)
	if err != nil {
		return nil, err
	}

	merchant, err := s.wallets.GetByOwner(ctx, req.MerchantAccountID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get merchant wallet: %w", err))
	}
	if merchant == nil {
		return nil, apperror.ErrNotFound("merchant wallet")
	}

	return execute(ctx, s, domain.OpRedeem, uuid.Nil, "", func(ctx context.Context, tx pgx.Tx) (outcome[domain.MerchantPayment], error) {
		var none outcome[domain.MerchantPayment]

		token, err := s.tokens.Lookup(ctx, raw)
		if err != nil {
			return none, err
		}
		if token.PayerWalletID == merchant.ID {
			return none, apperror.ErrSelfTransferNotAllowed()
		}

		payer, err := s.loadWallet(ctx, tx, token.PayerWalletID, apperror.ErrNotFound("wallet"))
		if err != nil {
			return none, err
		}
		payee, err := s.loadWallet(ctx, tx, merchant.ID, apperror.ErrNotFound("merchant wallet"))
		if err != nil {
			return none, err
		}
		if !payer.CanDebit(token.Amount) {
			return none, apperror.ErrInsufficientBalance()
		}

		if _, err := s.tokens.Redeem(ctx, tx, raw); err != nil {
			return none, err
		}

		mp := &domain.MerchantPayment{
			TokenID:       token.ID,
			Amount:        token.Amount,
			MerchantLabel: token.MerchantLabel,
		}
		reference := "qr:" + token.ID.String()
		description := "payment to " + token.MerchantLabel

		for _, id := range domain.LockOrder(payer.ID, payee.ID) {
			if id == payer.ID {
				mp.Debit, err = s.apply(ctx, tx, payer, posting{
					direction:    domain.DirectionDebit,
					amount:       token.Amount,
					kind:         domain.EntryKindPaymentRedeem,
					counterparty: &payee.ID,
					reference:    reference,
					description:  description,
				})
			} else {
				mp.Credit, err = s.apply(ctx, tx, payee, posting{
					direction:    domain.DirectionCredit,
					amount:       token.Amount,
					kind:         domain.EntryKindSale,
					counterparty: &payer.ID,
					reference:    reference,
					description:  description,
				})
			}
			if err != nil {
				return none, err
			}
		}

		return outcome[domain.MerchantPayment]{
			result:  mp,
			ref:     reference,
			entries: []*domain.LedgerEntry{mp.Debit, mp.Credit},
		}, nil
	})
}
