package handler

import (
	"point-ledger/internal/adapter/http/dto"
	"point-ledger/internal/core/domain"
	"point-ledger/internal/core/ports"
	"point-ledger/pkg/apperror"
	"point-ledger/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// LedgerHandler handles balance-changing endpoints and the admin views.
type LedgerHandler struct {
	coord        ports.Coordinator
	reportingSvc ports.ReportingService
	audit        ports.AuditRecorder
}

// NewLedgerHandler creates a new LedgerHandler.
func NewLedgerHandler(coord ports.Coordinator, reportingSvc ports.ReportingService, audit ports.AuditRecorder) *LedgerHandler {
	return &LedgerHandler{
		coord:        coord,
		reportingSvc: reportingSvc,
		audit:        audit,
	}
}

// Transfer handles POST /api/v1/transfers. The caller's wallet is the sender.
func (h *LedgerHandler) Transfer(c *gin.Context) {
	actor, ok := mustActor(c)
	if !ok {
		return
	}

	var req dto.TransferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	dto.SanitizeStruct(&req)

	receiver, err := uuid.Parse(req.ReceiverWalletID)
	if err != nil {
		response.Error(c, apperror.Validation("invalid receiver_wallet_id"))
		return
	}

	sender, err := h.reportingSvc.GetWalletByAccount(c.Request.Context(), actor.AccountID)
	if err != nil {
		response.Error(c, err)
		return
	}

	transfer, err := h.coord.Transfer(c.Request.Context(), ports.TransferRequest{
		SenderWalletID:   sender.ID,
		ReceiverWalletID: receiver,
		Amount:           req.Amount,
		Description:      req.Description,
		ActorID:          &actor.AccountID,
		IdempotencyKey:   req.IdempotencyKey,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, transfer)
}

// Reward handles POST /api/v1/rewards.
func (h *LedgerHandler) Reward(c *gin.Context) {
	actor, ok := mustActor(c)
	if !ok {
		return
	}

	var req dto.RewardRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	dto.SanitizeStruct(&req)

	walletID, err := uuid.Parse(req.WalletID)
	if err != nil {
		response.Error(c, apperror.Validation("invalid wallet_id"))
		return
	}

	entry, err := h.coord.Reward(c.Request.Context(), ports.RewardRequest{
		WalletID:    walletID,
		Amount:      req.Amount,
		Reference:   req.Reference,
		Description: req.Description,
		ActorID:     &actor.AccountID,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, entry)
}

// Adjust handles POST /api/v1/admin/wallets/adjust.
func (h *LedgerHandler) Adjust(c *gin.Context) {
	actor, ok := mustActor(c)
	if !ok {
		return
	}

	var req dto.AdjustRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	dto.SanitizeStruct(&req)

	walletID, err := uuid.Parse(req.WalletID)
	if err != nil {
		response.Error(c, apperror.Validation("invalid wallet_id"))
		return
	}

	entry, err := h.coord.Adjust(c.Request.Context(), ports.AdjustRequest{
		WalletID:       walletID,
		Direction:      domain.Direction(req.Direction),
		Amount:         req.Amount,
		Reason:         req.Reason,
		ActorID:        actor.AccountID,
		IdempotencyKey: req.IdempotencyKey,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, entry)
}

// Reset handles POST /api/v1/admin/wallets/reset.
func (h *LedgerHandler) Reset(c *gin.Context) {
	actor, ok := mustActor(c)
	if !ok {
		return
	}

	var req dto.ResetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	dto.SanitizeStruct(&req)

	walletID, err := uuid.Parse(req.WalletID)
	if err != nil {
		response.Error(c, apperror.Validation("invalid wallet_id"))
		return
	}

	entry, err := h.coord.Reset(c.Request.Context(), ports.ResetRequest{
		WalletID:       walletID,
		NewBalance:     *req.NewBalance,
		Reason:         req.Reason,
		ActorID:        actor.AccountID,
		IdempotencyKey: req.IdempotencyKey,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, dto.ResetResponse{Changed: entry != nil, Entry: entry})
}

// ListLedger handles GET /api/v1/admin/ledger.
// A reference query returns every entry of that operation instead of a page.
func (h *LedgerHandler) ListLedger(c *gin.Context) {
	if ref := c.Query("reference"); ref != "" {
		entries, err := h.reportingSvc.ListByReference(c.Request.Context(), ref)
		if err != nil {
			response.Error(c, err)
			return
		}
		response.OK(c, entries)
		return
	}

	page, pageSize := pageParams(c)
	params := ports.LedgerListParams{Page: page, PageSize: pageSize}

	walletID, err := parseOptionalUUID(c.Query("wallet_id"))
	if err != nil {
		response.Error(c, apperror.Validation("invalid wallet_id"))
		return
	}
	params.WalletID = walletID

	if k := c.Query("kind"); k != "" {
		kind := domain.EntryKind(k)
		params.Kind = &kind
	}
	if d := c.Query("direction"); d != "" {
		dir := domain.Direction(d)
		params.Direction = &dir
	}

	var ok bool
	if params.From, ok = unixQuery(c, "from"); !ok {
		return
	}
	if params.To, ok = unixQuery(c, "to"); !ok {
		return
	}

	entries, total, err := h.reportingSvc.ListLedger(c.Request.Context(), params)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Paginated(c, entries, total, page, pageSize)
}

// ListAudit handles GET /api/v1/admin/audit.
func (h *LedgerHandler) ListAudit(c *gin.Context) {
	page, pageSize := pageParams(c)
	params := ports.AuditListParams{
		TargetEntity: c.Query("target_entity"),
		Page:         page,
		PageSize:     pageSize,
	}

	actorID, err := parseOptionalUUID(c.Query("actor_id"))
	if err != nil {
		response.Error(c, apperror.Validation("invalid actor_id"))
		return
	}
	params.ActorAccountID = actorID

	if a := c.Query("action"); a != "" {
		action := domain.AuditAction(a)
		params.Action = &action
	}

	var ok bool
	if params.From, ok = unixQuery(c, "from"); !ok {
		return
	}
	if params.To, ok = unixQuery(c, "to"); !ok {
		return
	}

	records, total, err := h.audit.List(c.Request.Context(), params)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Paginated(c, records, total, page, pageSize)
}
