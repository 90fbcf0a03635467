package handler

import (
	"strconv"

	"point-ledger/internal/adapter/http/dto"
	"point-ledger/internal/core/ports"
	"point-ledger/pkg/apperror"
	"point-ledger/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// WalletHandler handles wallet endpoints.
type WalletHandler struct {
	coord        ports.Coordinator
	reportingSvc ports.ReportingService
}

// NewWalletHandler creates a new WalletHandler.
func NewWalletHandler(coord ports.Coordinator, reportingSvc ports.ReportingService) *WalletHandler {
	return &WalletHandler{
		coord:        coord,
		reportingSvc: reportingSvc,
	}
}

// Create handles POST /api/v1/wallets.
func (h *WalletHandler) Create(c *gin.Context) {
	var req dto.CreateWalletRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	dto.SanitizeStruct(&req)

	owner, err := uuid.Parse(req.OwnerAccountID)
	if err != nil {
		response.Error(c, apperror.Validation("invalid owner_account_id"))
		return
	}

	wallet, err := h.coord.CreateWallet(c.Request.Context(), owner)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, wallet)
}

// GetMine handles GET /api/v1/wallets/me.
func (h *WalletHandler) GetMine(c *gin.Context) {
	actor, ok := mustActor(c)
	if !ok {
		return
	}

	wallet, err := h.reportingSvc.GetWalletByAccount(c.Request.Context(), actor.AccountID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, wallet)
}

// ListMyLedger handles GET /api/v1/wallets/me/ledger.
func (h *WalletHandler) ListMyLedger(c *gin.Context) {
	actor, ok := mustActor(c)
	if !ok {
		return
	}

	wallet, err := h.reportingSvc.GetWalletByAccount(c.Request.Context(), actor.AccountID)
	if err != nil {
		response.Error(c, err)
		return
	}

	page, pageSize := pageParams(c)
	entries, total, err := h.reportingSvc.ListWalletLedger(c.Request.Context(), wallet.ID, page, pageSize)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Paginated(c, entries, total, page, pageSize)
}

// Verify handles GET /api/v1/wallets/:id/verify.
func (h *WalletHandler) Verify(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	result, err := h.reportingSvc.VerifyWallet(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, result)
}

// Leaderboard handles GET /api/v1/wallets/leaderboard.
func (h *WalletHandler) Leaderboard(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "10"))

	wallets, err := h.reportingSvc.GetLeaderboard(c.Request.Context(), limit)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, wallets)
}

// List handles GET /api/v1/admin/wallets.
func (h *WalletHandler) List(c *gin.Context) {
	page, pageSize := pageParams(c)

	wallets, total, err := h.reportingSvc.ListWallets(c.Request.Context(), page, pageSize)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Paginated(c, wallets, total, page, pageSize)
}

// Get handles GET /api/v1/admin/wallets/:id.
func (h *WalletHandler) Get(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	wallet, err := h.reportingSvc.GetWallet(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, wallet)
}

// ListLedger handles GET /api/v1/admin/wallets/:id/ledger.
func (h *WalletHandler) ListLedger(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	if _, err := h.reportingSvc.GetWallet(c.Request.Context(), id); err != nil {
		response.Error(c, err)
		return
	}

	page, pageSize := pageParams(c)
	entries, total, err := h.reportingSvc.ListWalletLedger(c.Request.Context(), id, page, pageSize)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Paginated(c, entries, total, page, pageSize)
}

// Stats handles GET /api/v1/admin/stats.
func (h *WalletHandler) Stats(c *gin.Context) {
	stats, err := h.reportingSvc.GetAdminStats(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, stats)
}
