package service

import (
	"context"

	"point-ledger/internal/core/domain"
	"point-ledger/internal/core/ports"
	"point-ledger/pkg/apperror"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// Transfer moves points from sender to receiver. Both entries carry the
// transfer id as their reference and the wallets are mutated in lock order.
func (s *CoordinatorService) Transfer(ctx context.Context, req ports.TransferRequest) (*domain.Transfer, error) {
	if req.Amount <= 0 {
		return nil, apperror.ErrInvalidAmount()
	}
	if req.SenderWalletID == req.ReceiverWalletID {
		return nil, apperror.ErrSelfTransferNotAllowed()
	}

	return execute(ctx, s, domain.OpTransfer, req.SenderWalletID, req.IdempotencyKey, func(ctx context.Context, tx pgx.Tx) (outcome[domain.Transfer], error) {
		sender, err := s.loadWallet(ctx, tx, req.SenderWalletID, apperror.ErrNotFound("wallet"))
		if err != nil {
			return outcome[domain.Transfer]{}, err
		}
		receiver, err := s.loadWallet(ctx, tx, req.ReceiverWalletID, apperror.ErrReceiverNotFound())
		if err != nil {
			return outcome[domain.Transfer]{}, err
		}
		if !sender.CanDebit(req.Amount) {
			return outcome[domain.Transfer]{}, apperror.ErrInsufficientBalance()
		}

		t := &domain.Transfer{
			ID:          uuid.New(),
			Amount:      req.Amount,
			Description: req.Description,
		}
		reference := t.ID.String()

		for _, id := range domain.LockOrder(sender.ID, receiver.ID) {
			if id == sender.ID {
				t.Out, err = s.apply(ctx, tx, sender, posting{
					direction:    domain.DirectionDebit,
					amount:       req.Amount,
					kind:         domain.EntryKindTransferOut,
					counterparty: &receiver.ID,
					reference:    reference,
					description:  req.Description,
					actorID:      req.ActorID,
				})
			} else {
				t.In, err = s.apply(ctx, tx, receiver, posting{
					direction:    domain.DirectionCredit,
					amount:       req.Amount,
					kind:         domain.EntryKindTransferIn,
					counterparty: &sender.ID,
					reference:    reference,
					description:  req.Description,
					actorID:      req.ActorID,
				})
			}
			if err != nil {
				return outcome[domain.Transfer]{}, err
			}
		}

		return outcome[domain.Transfer]{
			result:  t,
			ref:     reference,
			entries: []*domain.LedgerEntry{t.Out, t.In},
		}, nil
	})
}
