package handler

import (
	"strconv"
	"time"

	"marketplace-ledger/internal/adapter/http/dto"
	"marketplace-ledger/internal/adapter/http/middleware"
	"marketplace-ledger/internal/core/domain"
	"marketplace-ledger/internal/core/ports"
	"marketplace-ledger/pkg/apperror"
	"marketplace-ledger/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// actor returns the authenticated actor or writes AUTH_001.
func actor(c *gin.Context) (domain.Actor, bool) {
	a, ok := middleware.ActorFrom(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return domain.Actor{}, false
	}
	return a, true
}

// ownMerchant returns the merchant id of a merchant actor or writes AUTH_002.
func ownMerchant(c *gin.Context, a domain.Actor) (uuid.UUID, bool) {
	if a.Role != domain.ActorRoleMerchant || a.MerchantID == nil {
		response.Error(c, apperror.ErrForbidden())
		return uuid.Nil, false
	}
	return *a.MerchantID, true
}

func uuidParam(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		response.Error(c, apperror.Validation("invalid "+name))
		return uuid.Nil, false
	}
	return id, true
}

// bind decodes and validates a JSON body. An empty body is accepted when
// optional is set, leaving req zero-valued.
func bind(c *gin.Context, req interface{}, optional bool) bool {
	if optional && c.Request.ContentLength == 0 {
		return true
	}
	if err := c.ShouldBindJSON(req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return false
	}
	dto.SanitizeStruct(req)
	return true
}

func pageParams(c *gin.Context) (int, int) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	return page, pageSize
}

// ledgerListParams reads the transaction filters from the query string.
func ledgerListParams(c *gin.Context) (ports.LedgerListParams, bool) {
	var params ports.LedgerListParams
	params.Page, params.PageSize = pageParams(c)

	if s := c.Query("kind"); s != "" {
		kind := domain.TransactionKind(s)
		if !kind.IsValid() {
			response.Error(c, apperror.Validation("unknown transaction kind "+s))
			return params, false
		}
		params.Kind = &kind
	}
	if s := c.Query("related_type"); s != "" {
		rt := domain.RelatedType(s)
		if rt != domain.RelatedOrder && rt != domain.RelatedWithdrawal {
			response.Error(c, apperror.Validation("unknown related_type "+s))
			return params, false
		}
		params.RelatedType = &rt
	}
	if s := c.Query("related_id"); s != "" {
		params.RelatedID = &s
	}
	for _, q := range []struct {
		name string
		dst  **time.Time
	}{{"from", &params.From}, {"to", &params.To}} {
		s := c.Query(q.name)
		if s == "" {
			continue
		}
		t, err := time.Parse(time.RFC3339, s)
		if err != nil {
			response.Error(c, apperror.Validation(q.name+" must be an RFC3339 timestamp"))
			return params, false
		}
		*q.dst = &t
	}
	return params, true
}

// pageMeta mirrors the clamping the services apply so the meta block matches the items.
func pageMeta(page, pageSize int) (int, int) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 20
	}
	if pageSize > 100 {
		pageSize = 100
	}
	return page, pageSize
}

func writeTransactions(c *gin.Context, entries []domain.LedgerTransaction, total int64, params ports.LedgerListParams) {
	page, pageSize := pageMeta(params.Page, params.PageSize)
	response.Page(c, dto.NewLedgerEntryResponses(entries), total, page, pageSize)
}
