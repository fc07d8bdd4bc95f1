package handler

import (
	"marketplace-ledger/internal/adapter/http/dto"
	"marketplace-ledger/internal/core/domain"
	"marketplace-ledger/internal/core/ports"
	"marketplace-ledger/pkg/response"

	"github.com/gin-gonic/gin"
)

// WalletHandler serves a merchant's own wallet.
type WalletHandler struct {
	ledgerSvc ports.LedgerService
}

// NewWalletHandler creates a new WalletHandler.
func NewWalletHandler(ledgerSvc ports.LedgerService) *WalletHandler {
	return &WalletHandler{ledgerSvc: ledgerSvc}
}

// GetMine handles GET /api/v1/wallets/me.
func (h *WalletHandler) GetMine(c *gin.Context) {
	a, ok := actor(c)
	if !ok {
		return
	}
	merchantID, ok := ownMerchant(c, a)
	if !ok {
		return
	}

	wallet, err := h.ledgerSvc.GetWallet(c.Request.Context(), domain.MerchantOwner(merchantID))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, dto.NewWalletResponse(wallet))
}

// ListMyTransactions handles GET /api/v1/wallets/me/transactions.
func (h *WalletHandler) ListMyTransactions(c *gin.Context) {
	a, ok := actor(c)
	if !ok {
		return
	}
	merchantID, ok := ownMerchant(c, a)
	if !ok {
		return
	}
	params, ok := ledgerListParams(c)
	if !ok {
		return
	}

	entries, total, err := h.ledgerSvc.ListTransactions(c.Request.Context(), domain.MerchantOwner(merchantID), params)
	if err != nil {
		response.Error(c, err)
		return
	}
	writeTransactions(c, entries, total, params)
}
