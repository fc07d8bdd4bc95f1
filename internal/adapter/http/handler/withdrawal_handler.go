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

// WithdrawalHandler handles withdrawal endpoints for merchants and admins.
type WithdrawalHandler struct {
	withdrawalSvc ports.WithdrawalService
}

// NewWithdrawalHandler creates a new WithdrawalHandler.
func NewWithdrawalHandler(withdrawalSvc ports.WithdrawalService) *WithdrawalHandler {
	return &WithdrawalHandler{withdrawalSvc: withdrawalSvc}
}

// Create handles POST /api/v1/withdrawals.
func (h *WithdrawalHandler) Create(c *gin.Context) {
	a, ok := actor(c)
	if !ok {
		return
	}

	var req dto.CreateWithdrawalRequest
	if !bind(c, &req, false) {
		return
	}

	var merchantID uuid.UUID
	switch {
	case a.Role == domain.ActorRoleMerchant && a.MerchantID != nil:
		merchantID = *a.MerchantID
	case a.IsAdmin() && req.MerchantID != nil:
		merchantID = uuid.MustParse(*req.MerchantID)
	case a.IsAdmin():
		response.Error(c, apperror.Validation("merchant_id is required"))
		return
	default:
		response.Error(c, apperror.ErrForbidden())
		return
	}

	w, err := h.withdrawalSvc.Request(c.Request.Context(), ports.WithdrawalRequest{
		MerchantID: merchantID,
		Amount:     dto.ParseDecimal(req.Amount),
		Method:     req.Method,
		Note:       req.Note,
		Actor:      a,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, dto.NewWithdrawalResponse(w))
}

// Get handles GET /api/v1/withdrawals/:id.
func (h *WithdrawalHandler) Get(c *gin.Context) {
	a, ok := actor(c)
	if !ok {
		return
	}
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	w, err := h.withdrawalSvc.Get(c.Request.Context(), id, a)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, dto.NewWithdrawalResponse(w))
}

// List handles GET /api/v1/withdrawals. Merchants only ever see their own.
func (h *WithdrawalHandler) List(c *gin.Context) {
	a, ok := actor(c)
	if !ok {
		return
	}

	var params ports.WithdrawalListParams
	params.Page, params.PageSize = pageParams(c)

	if s := c.Query("status"); s != "" {
		status := domain.WithdrawalStatus(s)
		params.Status = &status
	}
	if s := c.Query("merchant_id"); s != "" {
		id, err := uuid.Parse(s)
		if err != nil {
			response.Error(c, apperror.Validation("invalid merchant_id"))
			return
		}
		params.MerchantID = &id
	}

	items, total, err := h.withdrawalSvc.List(c.Request.Context(), params, a)
	if err != nil {
		response.Error(c, err)
		return
	}
	page, pageSize := pageMeta(params.Page, params.PageSize)
	response.Page(c, dto.NewWithdrawalResponses(items), total, page, pageSize)
}

// Approve handles POST /api/v1/admin/withdrawals/:id/approve.
func (h *WithdrawalHandler) Approve(c *gin.Context) {
	h.transition(c, func(id uuid.UUID, a domain.Actor) (*domain.Withdrawal, error) {
		return h.withdrawalSvc.Approve(c.Request.Context(), id, a)
	})
}

// Reject handles POST /api/v1/admin/withdrawals/:id/reject.
func (h *WithdrawalHandler) Reject(c *gin.Context) {
	var req dto.RejectWithdrawalRequest
	if !bind(c, &req, false) {
		return
	}
	h.transition(c, func(id uuid.UUID, a domain.Actor) (*domain.Withdrawal, error) {
		return h.withdrawalSvc.Reject(c.Request.Context(), id, a, req.Reason)
	})
}

// Complete handles POST /api/v1/admin/withdrawals/:id/complete.
func (h *WithdrawalHandler) Complete(c *gin.Context) {
	h.transition(c, func(id uuid.UUID, a domain.Actor) (*domain.Withdrawal, error) {
		return h.withdrawalSvc.Complete(c.Request.Context(), id, a)
	})
}

func (h *WithdrawalHandler) transition(c *gin.Context, fn func(uuid.UUID, domain.Actor) (*domain.Withdrawal, error)) {
	a, ok := actor(c)
	if !ok {
		return
	}
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	w, err := fn(id, a)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, dto.NewWithdrawalResponse(w))
}
