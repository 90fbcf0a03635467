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

// ProductHandler handles the marketplace catalog and purchases.
type ProductHandler struct {
	productSvc   ports.ProductService
	coord        ports.Coordinator
	reportingSvc ports.ReportingService
}

// NewProductHandler creates a new ProductHandler.
func NewProductHandler(productSvc ports.ProductService, coord ports.Coordinator, reportingSvc ports.ReportingService) *ProductHandler {
	return &ProductHandler{
		productSvc:   productSvc,
		coord:        coord,
		reportingSvc: reportingSvc,
	}
}

// Create handles POST /api/v1/products.
func (h *ProductHandler) Create(c *gin.Context) {
	actor, ok := mustActor(c)
	if !ok {
		return
	}

	var req dto.ProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	dto.SanitizeStruct(&req)

	seller, err := parseOptionalUUID(deref(req.SellerWalletID))
	if err != nil {
		response.Error(c, apperror.Validation("invalid seller_wallet_id"))
		return
	}

	product, err := h.productSvc.Create(c.Request.Context(), actor.AccountID, ports.ProductInput{
		Name:           req.Name,
		Description:    req.Description,
		Price:          req.Price,
		Stock:          req.Stock,
		SellerWalletID: seller,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, product)
}

// Update handles PUT /api/v1/products/:id.
func (h *ProductHandler) Update(c *gin.Context) {
	actor, ok := mustActor(c)
	if !ok {
		return
	}
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	var req dto.ProductUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	dto.SanitizeStruct(&req)

	seller, err := parseOptionalUUID(deref(req.SellerWalletID))
	if err != nil {
		response.Error(c, apperror.Validation("invalid seller_wallet_id"))
		return
	}

	update := ports.ProductUpdate{
		Name:           req.Name,
		Description:    req.Description,
		Price:          req.Price,
		Stock:          req.Stock,
		SellerWalletID: seller,
	}
	if req.Status != nil {
		status := domain.ProductStatus(*req.Status)
		update.Status = &status
	}

	product, err := h.productSvc.Update(c.Request.Context(), actor.AccountID, id, update)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, product)
}

// Delete handles DELETE /api/v1/products/:id.
func (h *ProductHandler) Delete(c *gin.Context) {
	actor, ok := mustActor(c)
	if !ok {
		return
	}
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	if err := h.productSvc.Delete(c.Request.Context(), actor.AccountID, id); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Get handles GET /api/v1/products/:id.
func (h *ProductHandler) Get(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	product, err := h.productSvc.Get(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, product)
}

// List handles GET /api/v1/products.
func (h *ProductHandler) List(c *gin.Context) {
	page, pageSize := pageParams(c)
	params := ports.ProductListParams{Page: page, PageSize: pageSize}
	if s := c.Query("status"); s != "" {
		status := domain.ProductStatus(s)
		params.Status = &status
	}

	products, total, err := h.productSvc.List(c.Request.Context(), params)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Paginated(c, products, total, page, pageSize)
}

// Purchase handles POST /api/v1/purchases for the caller's wallet.
func (h *ProductHandler) Purchase(c *gin.Context) {
	actor, ok := mustActor(c)
	if !ok {
		return
	}

	var req dto.PurchaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	dto.SanitizeStruct(&req)

	productID, err := uuid.Parse(req.ProductID)
	if err != nil {
		response.Error(c, apperror.Validation("invalid product_id"))
		return
	}

	buyer, err := h.reportingSvc.GetWalletByAccount(c.Request.Context(), actor.AccountID)
	if err != nil {
		response.Error(c, err)
		return
	}

	method := domain.PaymentMethod(req.PaymentMethod)
	if method == "" {
		method = domain.PaymentMethodWallet
	}

	purchase, err := h.coord.Purchase(c.Request.Context(), ports.PurchaseRequest{
		BuyerWalletID: buyer.ID,
		ProductID:     productID,
		Quantity:      req.Quantity,
		PaymentMethod: method,
		Token:         req.Token,
		OrderID:       req.OrderID,
		ActorID:       &actor.AccountID,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, purchase)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
