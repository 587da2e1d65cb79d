package handler

import (
	"errors"
	"net/http"

	"banking-services/internal/adapter/http/dto"
	"banking-services/internal/core/domain"
	"banking-services/internal/core/ports"
	"banking-services/pkg/apperror"
	"banking-services/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

// TransactionHandler is the request front of the transaction kernel.
type TransactionHandler struct {
	kernel ports.TransactionKernel
}

// NewTransactionHandler creates a new TransactionHandler.
func NewTransactionHandler(kernel ports.TransactionKernel) *TransactionHandler {
	return &TransactionHandler{kernel: kernel}
}

// Create handles POST /api/v1/transactions.
func (h *TransactionHandler) Create(c *gin.Context) {
	var req dto.TransactionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			response.Error(c, apperror.ErrPayloadTooLarge())
			return
		}
		response.ErrorWithState(c, apperror.Validation("malformed request body"), string(domain.StateRejectedInput))
		return
	}
	dto.TrimStrings(&req)

	amount := decimal.Zero
	if req.Amount != nil {
		amount = *req.Amount
	}

	result, err := h.kernel.Process(c.Request.Context(), ports.TransactionRequest{
		CustomerID: req.CustomerID,
		Kind:       req.Kind,
		Amount:     amount,
	})
	if err != nil {
		var state string
		if result != nil {
			state = string(result.State)
		}
		response.ErrorWithState(c, err, state)
		return
	}

	response.Created(c, dto.ToTransactionResultResponse(result))
}
