package ports

import (
	"context"

	"banking-services/internal/core/domain"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AccountDirectory answers whether a customer is known. It backs the identity service.
type AccountDirectory interface {
	CustomerExists(ctx context.Context, customerID string) (bool, error)
}

// LedgerStore is the durable record of accounts and their ledger entries.
//
// Lookups return (nil, nil) when nothing matches. ApplyMutation reports
// domain.ErrAccountNotFound, domain.ErrAccountInactive,
// domain.ErrInsufficientFunds or domain.ErrBalanceLimit; every other error is a storage failure whose
// outcome the caller cannot assume.
type LedgerStore interface {
	AccountDirectory

	// CreateAccount inserts the account and, for a positive balance, its opening
	// CREDIT entry in one atomic unit.
	CreateAccount(ctx context.Context, account *domain.Account) error
	GetAccount(ctx context.Context, id uuid.UUID) (*domain.Account, error)
	// FindAccountByCustomer returns the customer's first account: earliest
	// created_at, then smallest account_id.
	FindAccountByCustomer(ctx context.Context, customerID string) (*domain.Account, error)
	ListAccountsByCustomer(ctx context.Context, customerID string) ([]domain.Account, error)
	// CloseAccount marks the account CLOSED; closed accounts reject mutations.
	CloseAccount(ctx context.Context, id uuid.UUID) error

	// ApplyMutation atomically updates the balance and appends the ledger entry.
	// Calls for the same account are serialized by the store.
	ApplyMutation(ctx context.Context, accountID uuid.UUID, kind domain.TransactionKind, amount decimal.Decimal) (*domain.Account, *domain.Transaction, error)

	// ListTransactions pages through an account's ledger in append order.
	ListTransactions(ctx context.Context, params TransactionListParams) ([]domain.Transaction, int64, error)
	// AllTransactions returns the complete ledger of an account in append order.
	AllTransactions(ctx context.Context, accountID uuid.UUID) ([]domain.Transaction, error)
}

// TransactionListParams holds pagination for a ledger statement.
type TransactionListParams struct {
	AccountID uuid.UUID
	Page      int
	PageSize  int
}

// Offset returns the row offset of the page.
func (p TransactionListParams) Offset() int {
	if p.Page < 1 {
		return 0
	}
	return (p.Page - 1) * p.PageSize
}
