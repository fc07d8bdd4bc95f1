package handler

import (
	"marketplace-ledger/internal/adapter/http/dto"
	"marketplace-ledger/internal/core/domain"
	"marketplace-ledger/internal/core/ports"
	"marketplace-ledger/pkg/apperror"
	"marketplace-ledger/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// SettlementHandler receives order-paid events and exposes settlement markers.
type SettlementHandler struct {
	settlementSvc ports.SettlementService
}

// NewSettlementHandler creates a new SettlementHandler.
func NewSettlementHandler(settlementSvc ports.SettlementService) *SettlementHandler {
	return &SettlementHandler{settlementSvc: settlementSvc}
}

// Settle handles POST /api/v1/settlements.
// A replay of an already settled order answers 200 with the original settlement.
func (h *SettlementHandler) Settle(c *gin.Context) {
	a, ok := actor(c)
	if !ok {
		return
	}

	var req dto.OrderPaidRequest
	if !bind(c, &req, false) {
		return
	}

	event := domain.OrderPaidEvent{
		OrderID:     req.OrderID,
		MerchantID:  uuid.MustParse(req.MerchantID),
		TotalAmount: dto.ParseDecimal(req.TotalAmount),
	}

	settlement, err := h.settlementSvc.HandleOrderPaid(c.Request.Context(), event, a)
	if err != nil {
		if apperror.HasCode(err, apperror.CodeAlreadySettled) && settlement != nil {
			response.OK(c, settlement)
			return
		}
		response.Error(c, err)
		return
	}
	response.Created(c, settlement)
}

// Get handles GET /api/v1/settlements/:order_id.
func (h *SettlementHandler) Get(c *gin.Context) {
	settlement, err := h.settlementSvc.GetSettlement(c.Request.Context(), c.Param("order_id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, settlement)
}

// GetCommissionRate handles GET /api/v1/admin/commission-rate.
func (h *SettlementHandler) GetCommissionRate(c *gin.Context) {
	rate, err := h.settlementSvc.CommissionRate(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, dto.CommissionRateResponse{Rate: rate})
}

// SetCommissionRate handles PUT /api/v1/admin/commission-rate.
func (h *SettlementHandler) SetCommissionRate(c *gin.Context) {
	a, ok := actor(c)
	if !ok {
		return
	}

	var req dto.CommissionRateRequest
	if !bind(c, &req, false) {
		return
	}

	rate := dto.ParseDecimal(req.Rate)
	if err := h.settlementSvc.SetCommissionRate(c.Request.Context(), rate, a); err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, dto.CommissionRateResponse{Rate: rate})
}
