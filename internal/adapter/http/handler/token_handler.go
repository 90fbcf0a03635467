package handler

import (
	"time"

	"point-ledger/internal/adapter/http/dto"
	"point-ledger/internal/core/domain"
	"point-ledger/internal/core/ports"
	"point-ledger/pkg/apperror"
	"point-ledger/pkg/response"

	"github.com/gin-gonic/gin"
)

// TokenHandler handles payment token and merchant endpoints.
type TokenHandler struct {
	tokenSvc     ports.PaymentTokenService
	coord        ports.Coordinator
	reportingSvc ports.ReportingService
}

// NewTokenHandler creates a new TokenHandler.
func NewTokenHandler(tokenSvc ports.PaymentTokenService, coord ports.Coordinator, reportingSvc ports.ReportingService) *TokenHandler {
	return &TokenHandler{
		tokenSvc:     tokenSvc,
		coord:        coord,
		reportingSvc: reportingSvc,
	}
}

// Issue handles POST /api/v1/payment-tokens for the caller's wallet.
func (h *TokenHandler) Issue(c *gin.Context) {
	actor, ok := mustActor(c)
	if !ok {
		return
	}

	var req dto.IssueTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	dto.SanitizeStruct(&req)

	wallet, err := h.reportingSvc.GetWalletByAccount(c.Request.Context(), actor.AccountID)
	if err != nil {
		response.Error(c, err)
		return
	}

	purpose := domain.TokenPurpose(req.Purpose)
	if purpose == "" {
		purpose = domain.TokenPurposePurchase
	}

	token, err := h.tokenSvc.Issue(c.Request.Context(), ports.IssueTokenRequest{
		PayerWalletID: wallet.ID,
		Amount:        req.Amount,
		MerchantLabel: req.MerchantLabel,
		Purpose:       purpose,
		TTL:           time.Duration(req.TTLSeconds) * time.Second,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, toTokenResponse(token))
}

// Status handles GET /api/v1/payment-tokens/:token.
func (h *TokenHandler) Status(c *gin.Context) {
	token, err := h.tokenSvc.Status(c.Request.Context(), c.Param("token"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, toTokenStatusResponse(token))
}

// Redeem handles POST /api/v1/merchant/redeem.
func (h *TokenHandler) Redeem(c *gin.Context) {
	actor, ok := mustActor(c)
	if !ok {
		return
	}

	var req dto.RedeemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	dto.SanitizeStruct(&req)

	payment, err := h.coord.RedeemMerchantPayment(c.Request.Context(), ports.RedeemRequest{
		Token:             req.Token,
		MerchantAccountID: actor.AccountID,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, payment)
}

// MerchantStats handles GET /api/v1/merchant/stats.
func (h *TokenHandler) MerchantStats(c *gin.Context) {
	actor, ok := mustActor(c)
	if !ok {
		return
	}

	stats, err := h.reportingSvc.GetMerchantStats(c.Request.Context(), actor.AccountID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, stats)
}

func toTokenResponse(t *domain.PaymentToken) dto.TokenResponse {
	return dto.TokenResponse{
		ID:            t.ID.String(),
		Token:         t.Token,
		Amount:        t.Amount,
		MerchantLabel: t.MerchantLabel,
		Purpose:       string(t.Purpose),
		State:         string(t.State),
		QRPayload:     t.QRPayload,
		IssuedAt:      t.IssuedAt.Format(time.RFC3339),
		ExpiresAt:     t.ExpiresAt.Format(time.RFC3339),
		RedeemedAt:    formatOptionalTime(t.RedeemedAt),
	}
}

func toTokenStatusResponse(t *domain.PaymentToken) dto.TokenStatusResponse {
	return dto.TokenStatusResponse{
		ID:            t.ID.String(),
		Amount:        t.Amount,
		MerchantLabel: t.MerchantLabel,
		State:         string(t.State),
		ExpiresAt:     t.ExpiresAt.Format(time.RFC3339),
		RedeemedAt:    formatOptionalTime(t.RedeemedAt),
	}
}

func formatOptionalTime(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.Format(time.RFC3339)
	return &s
}
