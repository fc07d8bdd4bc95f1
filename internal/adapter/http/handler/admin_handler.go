package handler

import (
	"marketplace-ledger/internal/adapter/http/dto"
	"marketplace-ledger/internal/core/domain"
	"marketplace-ledger/internal/core/ports"
	"marketplace-ledger/pkg/response"

	"github.com/gin-gonic/gin"
)

// AdminWalletHandler handles the admin wallet endpoints: freeze control,
// adjustments, inspection and reconciliation.
type AdminWalletHandler struct {
	ledgerSvc ports.LedgerService
}

// NewAdminWalletHandler creates a new AdminWalletHandler.
func NewAdminWalletHandler(ledgerSvc ports.LedgerService) *AdminWalletHandler {
	return &AdminWalletHandler{ledgerSvc: ledgerSvc}
}

// merchantOwner resolves :merchant_id into a wallet owner.
func merchantOwner(c *gin.Context) (domain.Owner, bool) {
	id, ok := uuidParam(c, "merchant_id")
	if !ok {
		return domain.Owner{}, false
	}
	return domain.MerchantOwner(id), true
}

// Freeze handles POST /api/v1/admin/wallets/:merchant_id/freeze.
func (h *AdminWalletHandler) Freeze(c *gin.Context) {
	a, ok := actor(c)
	if !ok {
		return
	}
	owner, ok := merchantOwner(c)
	if !ok {
		return
	}
	var req dto.FreezeRequest
	if !bind(c, &req, true) {
		return
	}

	wallet, err := h.ledgerSvc.Freeze(c.Request.Context(), owner, a, req.Reason)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, dto.NewWalletResponse(wallet))
}

// Unfreeze handles POST /api/v1/admin/wallets/:merchant_id/unfreeze.
func (h *AdminWalletHandler) Unfreeze(c *gin.Context) {
	a, ok := actor(c)
	if !ok {
		return
	}
	owner, ok := merchantOwner(c)
	if !ok {
		return
	}

	wallet, err := h.ledgerSvc.Unfreeze(c.Request.Context(), owner, a)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, dto.NewWalletResponse(wallet))
}

// Adjust handles POST /api/v1/admin/wallets/:merchant_id/adjustments.
func (h *AdminWalletHandler) Adjust(c *gin.Context) {
	a, ok := actor(c)
	if !ok {
		return
	}
	owner, ok := merchantOwner(c)
	if !ok {
		return
	}
	var req dto.AdjustmentRequest
	if !bind(c, &req, false) {
		return
	}

	entry, err := h.ledgerSvc.Adjust(c.Request.Context(), ports.AdjustmentRequest{
		Owner:  owner,
		Amount: dto.ParseDecimal(req.Amount),
		Actor:  a,
		Note:   req.Note,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, dto.NewLedgerEntryResponses([]domain.LedgerTransaction{*entry})[0])
}

// GetWallet handles GET /api/v1/admin/wallets/:merchant_id.
func (h *AdminWalletHandler) GetWallet(c *gin.Context) {
	owner, ok := merchantOwner(c)
	if !ok {
		return
	}
	h.writeWallet(c, owner)
}

// ListTransactions handles GET /api/v1/admin/wallets/:merchant_id/transactions.
func (h *AdminWalletHandler) ListTransactions(c *gin.Context) {
	owner, ok := merchantOwner(c)
	if !ok {
		return
	}
	h.writeTransactions(c, owner)
}

// Reconcile handles GET /api/v1/admin/wallets/:merchant_id/reconcile.
func (h *AdminWalletHandler) Reconcile(c *gin.Context) {
	owner, ok := merchantOwner(c)
	if !ok {
		return
	}
	h.writeReport(c, owner)
}

// GetPlatformWallet handles GET /api/v1/admin/platform/wallet.
func (h *AdminWalletHandler) GetPlatformWallet(c *gin.Context) {
	h.writeWallet(c, domain.PlatformOwner())
}

// ListPlatformTransactions handles GET /api/v1/admin/platform/transactions.
func (h *AdminWalletHandler) ListPlatformTransactions(c *gin.Context) {
	h.writeTransactions(c, domain.PlatformOwner())
}

// ReconcilePlatform handles GET /api/v1/admin/platform/reconcile.
func (h *AdminWalletHandler) ReconcilePlatform(c *gin.Context) {
	h.writeReport(c, domain.PlatformOwner())
}

func (h *AdminWalletHandler) writeWallet(c *gin.Context, owner domain.Owner) {
	wallet, err := h.ledgerSvc.GetWallet(c.Request.Context(), owner)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, dto.NewWalletResponse(wallet))
}

func (h *AdminWalletHandler) writeTransactions(c *gin.Context, owner domain.Owner) {
	params, ok := ledgerListParams(c)
	if !ok {
		return
	}
	entries, total, err := h.ledgerSvc.ListTransactions(c.Request.Context(), owner, params)
	if err != nil {
		response.Error(c, err)
		return
	}
	writeTransactions(c, entries, total, params)
}

func (h *AdminWalletHandler) writeReport(c *gin.Context, owner domain.Owner) {
	report, err := h.ledgerSvc.VerifyWallet(c.Request.Context(), owner)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, report)
}
