package dto

import (
	"time"

	"banking-services/internal/core/domain"
	"banking-services/internal/core/ports"

	"github.com/shopspring/decimal"
)

// TransactionRequest is the request body for POST /api/v1/transactions.
// Fields are not bound with validation tags: the kernel validates them after
// the identity check so each request still reaches a terminal state.
type TransactionRequest struct {
	CustomerID string           `json:"customer_id"`
	Kind       string           `json:"kind"`
	Amount     *decimal.Decimal `json:"amount"` // JSON string or number
}

// OpenAccountRequest is the request body for POST /api/v1/accounts.
type OpenAccountRequest struct {
	CustomerID     string           `json:"customer_id" binding:"required,customer_id"`
	AccountType    string           `json:"account_type" binding:"required"`
	Currency       string           `json:"currency" binding:"required,currency"`
	OpeningBalance *decimal.Decimal `json:"opening_balance,omitempty"`
}

// ListAccountsQuery binds GET /api/v1/accounts?customer_id=.
type ListAccountsQuery struct {
	CustomerID string `form:"customer_id" binding:"required,customer_id"`
}

// PaginationQuery binds ?page=&page_size=.
type PaginationQuery struct {
	Page     int `form:"page" binding:"omitempty,min=1"`
	PageSize int `form:"page_size" binding:"omitempty,min=1,max=100"`
}

// AccountResponse is the JSON shape of an account.
type AccountResponse struct {
	ID          string          `json:"account_id"`
	CustomerID  string          `json:"customer_id"`
	AccountType string          `json:"account_type"`
	Currency    string          `json:"currency"`
	Balance     decimal.Decimal `json:"balance"`
	Status      string          `json:"status"`
	CreatedAt   string          `json:"created_at"`
	UpdatedAt   string          `json:"updated_at"`
}

// TransactionResponse is the JSON shape of a ledger entry.
type TransactionResponse struct {
	ID           string          `json:"transaction_id"`
	AccountID    string          `json:"account_id"`
	Kind         string          `json:"kind"`
	Amount       decimal.Decimal `json:"amount"`
	BalanceAfter decimal.Decimal `json:"balance_after"`
	CreatedAt    string          `json:"created_at"`
}

// TransactionResultResponse is the body of a committed transaction request.
type TransactionResultResponse struct {
	State       string              `json:"state"`
	Account     AccountResponse     `json:"account"`
	Transaction TransactionResponse `json:"transaction"`
}

// TransactionListResponse wraps a ledger statement page.
type TransactionListResponse struct {
	Items      []TransactionResponse `json:"items"`
	Total      int64                 `json:"total"`
	Page       int                   `json:"page"`
	PageSize   int                   `json:"page_size"`
	TotalPages int                   `json:"total_pages"`
}

// AuthenticateResponse is the identity gate's bare JSON answer.
type AuthenticateResponse struct {
	CustomerID    string `json:"customer_id"`
	Authenticated bool   `json:"authenticated"`
}

// ToAccountResponse converts domain.Account to its DTO.
func ToAccountResponse(a *domain.Account) AccountResponse {
	return AccountResponse{
		ID:          a.ID.String(),
		CustomerID:  a.CustomerID,
		AccountType: string(a.AccountType),
		Currency:    a.Currency,
		Balance:     a.Balance,
		Status:      string(a.Status),
		CreatedAt:   a.CreatedAt.Format(time.RFC3339Nano),
		UpdatedAt:   a.UpdatedAt.Format(time.RFC3339Nano),
	}
}

// ToTransactionResponse converts domain.Transaction to its DTO.
func ToTransactionResponse(t *domain.Transaction) TransactionResponse {
	return TransactionResponse{
		ID:           t.ID.String(),
		AccountID:    t.AccountID.String(),
		Kind:         string(t.Kind),
		Amount:       t.Amount,
		BalanceAfter: t.BalanceAfter,
		CreatedAt:    t.CreatedAt.Format(time.RFC3339Nano),
	}
}

// ToTransactionResultResponse converts a committed kernel result.
func ToTransactionResultResponse(r *ports.TransactionResult) TransactionResultResponse {
	return TransactionResultResponse{
		State:       string(r.State),
		Account:     ToAccountResponse(r.Account),
		Transaction: ToTransactionResponse(r.Transaction),
	}
}

// NewTransactionListResponse builds a statement page.
func NewTransactionListResponse(txns []domain.Transaction, total int64, page, pageSize int) TransactionListResponse {
	items := make([]TransactionResponse, 0, len(txns))
	for i := range txns {
		items = append(items, ToTransactionResponse(&txns[i]))
	}
	totalPages := 0
	if pageSize > 0 {
		totalPages = int((total + int64(pageSize) - 1) / int64(pageSize))
	}
	return TransactionListResponse{
		Items:      items,
		Total:      total,
		Page:       page,
		PageSize:   pageSize,
		TotalPages: totalPages,
	}
}
