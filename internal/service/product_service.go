package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"point-ledger/internal/core/domain"
	"point-ledger/internal/core/ports"
	"point-ledger/pkg/apperror"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
)

// ProductServiceImpl implements ports.ProductService. Every catalog write
// commits together with its audit record.
type ProductServiceImpl struct {
	products   ports.ProductRepository
	wallets    ports.WalletRepository
	audit      ports.AuditRecorder
	transactor ports.DBTransactor
	log        zerolog.Logger
	now        func() time.Time
}

// NewProductService creates a new ProductServiceImpl.
func NewProductService(
	products ports.ProductRepository,
	wallets ports.WalletRepository,
	audit ports.AuditRecorder,
	transactor ports.DBTransactor,
	log zerolog.Logger,
) *ProductServiceImpl {
	return &ProductServiceImpl{
		products:   products,
		wallets:    wallets,
		audit:      audit,
		transactor: transactor,
		log:        log,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// Create adds an active product to the catalog.
func (s *ProductServiceImpl) Create(ctx context.Context, actorID uuid.UUID, input ports.ProductInput) (*domain.Product, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, apperror.Validation("name is required")
	}
	if input.Price <= 0 {
		return nil, apperror.ErrInvalidAmount()
	}
	if input.Stock < 0 {
		return nil, apperror.Validation("stock must not be negative")
	}
	if err := s.checkSeller(ctx, input.SellerWalletID); err != nil {
		return nil, err
	}

	now := s.now()
	p := &domain.Product{
		ID:             uuid.New(),
		Name:           name,
		Description:    input.Description,
		Price:          input.Price,
		Stock:          input.Stock,
		Status:         domain.ProductStatusActive,
		SellerWalletID: input.SellerWalletID,
		CreatedBy:      actorID,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	err := s.inTx(ctx, func(tx pgx.Tx) error {
		if err := s.products.Create(ctx, tx, p); err != nil {
			return apperror.InternalError(fmt.Errorf("create product: %w", err))
		}
		return s.audit.Record(ctx, tx, ports.AuditEntry{
			ActorID:      actorID,
			Action:       domain.AuditActionProductCreate,
			TargetEntity: "product",
			TargetID:     p.ID.String(),
			Detail:       map[string]any{"name": p.Name, "price": p.Price, "stock": p.Stock},
		})
	})
	if err != nil {
		return nil, err
	}

	s.log.Info().Str("product_id", p.ID.String()).Str("name", p.Name).Msg("product created")
	return p, nil
}

// Update applies the non-nil fields of input.
func (s *ProductServiceImpl) Update(ctx context.Context, actorID uuid.UUID, id uuid.UUID, input ports.ProductUpdate) (*domain.Product, error) {
	if err := s.checkSeller(ctx, input.SellerWalletID); err != nil {
		return nil, err
	}

	var p *domain.Product
	err := s.inTx(ctx, func(tx pgx.Tx) error {
		var err error
		p, err = s.products.GetByIDForUpdate(ctx, tx, id)
		if err != nil {
			return apperror.InternalError(fmt.Errorf("lock product: %w", err))
		}
		if p == nil {
			return apperror.ErrNotFound("product")
		}

		changes := map[string]any{}
		if input.Name != nil {
			name := strings.TrimSpace(*input.Name)
			if name == "" {
				return apperror.Validation("name must not be empty")
			}
			p.Name = name
			changes["name"] = name
		}
		if input.Description != nil {
			p.Description = *input.Description
			changes["description"] = *input.Description
		}
		if input.Price != nil {
			if *input.Price <= 0 {
				return apperror.ErrInvalidAmount()
			}
			p.Price = *input.Price
			changes["price"] = *input.Price
		}
		if input.Stock != nil {
			if *input.Stock < 0 {
				return apperror.Validation("stock must not be negative")
			}
			p.Stock = *input.Stock
			changes["stock"] = *input.Stock
		}
		if input.Status != nil {
			if !input.Status.Valid() {
				return apperror.Validation("status must be active or inactive")
			}
			p.Status = *input.Status
			changes["status"] = *input.Status
		}
		if input.SellerWalletID != nil {
			p.SellerWalletID = input.SellerWalletID
			changes["seller_wallet_id"] = input.SellerWalletID.String()
		}
		p.UpdatedAt = s.now()

		if err := s.products.Update(ctx, tx, p); err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return apperror.ErrNotFound("product")
			}
			return apperror.InternalError(fmt.Errorf("update product: %w", err))
		}
		return s.audit.Record(ctx, tx, ports.AuditEntry{
			ActorID:      actorID,
			Action:       domain.AuditActionProductUpdate,
			TargetEntity: "product",
			TargetID:     p.ID.String(),
			Detail:       changes,
		})
	})
	if err != nil {
		return nil, err
	}
	return p, nil
}

// Delete removes a product from the catalog.
func (s *ProductServiceImpl) Delete(ctx context.Context, actorID uuid.UUID, id uuid.UUID) error {
	return s.inTx(ctx, func(tx pgx.Tx) error {
		if err := s.products.Delete(ctx, tx, id); err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return apperror.ErrNotFound("product")
			}
			return apperror.InternalError(fmt.Errorf("delete product: %w", err))
		}
		return s.audit.Record(ctx, tx, ports.AuditEntry{
			ActorID:      actorID,
			Action:       domain.AuditActionProductDelete,
			TargetEntity: "product",
			TargetID:     id.String(),
		})
	})
}

// Get returns one product.
func (s *ProductServiceImpl) Get(ctx context.Context, id uuid.UUID) (*domain.Product, error) {
	p, err := s.products.GetByID(ctx, id)
	if err != nil {
		return nil, apperror.InternalError(err)
	}
	if p == nil {
		return nil, apperror.ErrNotFound("product")
	}
	return p, nil
}

// List returns products, optionally filtered by status.
func (s *ProductServiceImpl) List(ctx context.Context, params ports.ProductListParams) ([]domain.Product, int64, error) {
	if params.Status != nil && !params.Status.Valid() {
		return nil, 0, apperror.Validation("status must be active or inactive")
	}
	products, total, err := s.products.List(ctx, params)
	if err != nil {
		return nil, 0, apperror.InternalError(err)
	}
	return products, total, nil
}

func (s *ProductServiceImpl) checkSeller(ctx context.Context, id *uuid.UUID) error {
	if id == nil {
		return nil
	}
	w, err := s.wallets.GetByID(ctx, *id)
	if err != nil {
		return apperror.InternalError(fmt.Errorf("get seller wallet: %w", err))
	}
	if w == nil {
		return apperror.ErrNotFound("seller wallet")
	}
	return nil
}

func (s *ProductServiceImpl) inTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	tx, err := s.transactor.Begin(ctx)
	if err != nil {
		return apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}
	return nil
}
