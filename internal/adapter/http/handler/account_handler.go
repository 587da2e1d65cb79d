package handler

import (
	"errors"
	"net/http"

	"banking-services/internal/adapter/http/dto"
	"banking-services/internal/core/ports"
	"banking-services/pkg/apperror"
	"banking-services/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AccountHandler handles account management and ledger queries.
type AccountHandler struct {
	accountSvc ports.AccountService
}

// NewAccountHandler creates a new AccountHandler.
func NewAccountHandler(accountSvc ports.AccountService) *AccountHandler {
	return &AccountHandler{accountSvc: accountSvc}
}

// Open handles POST /api/v1/accounts.
func (h *AccountHandler) Open(c *gin.Context) {
	var req dto.OpenAccountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			response.Error(c, apperror.ErrPayloadTooLarge())
			return
		}
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	dto.TrimStrings(&req)

	opening := decimal.Zero
	if req.OpeningBalance != nil {
		opening = *req.OpeningBalance
	}

	account, err := h.accountSvc.OpenAccount(c.Request.Context(), ports.OpenAccountRequest{
		CustomerID:     req.CustomerID,
		AccountType:    req.AccountType,
		Currency:       req.Currency,
		OpeningBalance: opening,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, dto.ToAccountResponse(account))
}

// List handles GET /api/v1/accounts?customer_id=.
func (h *AccountHandler) List(c *gin.Context) {
	var q dto.ListAccountsQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}

	accounts, err := h.accountSvc.ListByCustomer(c.Request.Context(), q.CustomerID)
	if err != nil {
		response.Error(c, err)
		return
	}

	items := make([]dto.AccountResponse, 0, len(accounts))
	for i := range accounts {
		items = append(items, dto.ToAccountResponse(&accounts[i]))
	}
	response.OK(c, items)
}

// Get handles GET /api/v1/accounts/:account_id.
func (h *AccountHandler) Get(c *gin.Context) {
	id, ok := accountIDParam(c)
	if !ok {
		return
	}

	account, err := h.accountSvc.GetAccount(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, dto.ToAccountResponse(account))
}

// Close handles POST /api/v1/accounts/:account_id/close.
func (h *AccountHandler) Close(c *gin.Context) {
	id, ok := accountIDParam(c)
	if !ok {
		return
	}

	account, err := h.accountSvc.CloseAccount(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, dto.ToAccountResponse(account))
}

// ListTransactions handles GET /api/v1/accounts/:account_id/transactions.
func (h *AccountHandler) ListTransactions(c *gin.Context) {
	id, ok := accountIDParam(c)
	if !ok {
		return
	}

	var q dto.PaginationQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	if q.Page == 0 {
		q.Page = 1
	}
	if q.PageSize == 0 {
		q.PageSize = 20
	}

	txns, total, err := h.accountSvc.ListTransactions(c.Request.Context(), ports.TransactionListParams{
		AccountID: id,
		Page:      q.Page,
		PageSize:  q.PageSize,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, dto.NewTransactionListResponse(txns, total, q.Page, q.PageSize))
}

// Reconcile handles GET /api/v1/accounts/:account_id/reconciliation.
func (h *AccountHandler) Reconcile(c *gin.Context) {
	id, ok := accountIDParam(c)
	if !ok {
		return
	}

	rec, err := h.accountSvc.Reconcile(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, rec)
}

func accountIDParam(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("account_id"))
	if err != nil {
		response.Error(c, apperror.Validation("account_id must be a UUID"))
		return uuid.Nil, false
	}
	return id, true
}
