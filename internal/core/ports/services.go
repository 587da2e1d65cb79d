package ports

import (
	"context"
	"time"

	"banking-services/internal/core/domain"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// IdentityGate asks the remote identity authority whether a customer is recognized.
// A nil error comes with AUTHENTICATED or REJECTED; otherwise the error wraps
// domain.ErrIdentityUnreachable or domain.ErrIdentityMalformed.
type IdentityGate interface {
	Authenticate(ctx context.Context, customerID string) (domain.AuthOutcome, error)
}

// EventPublisher delivers committed-transaction events to downstream consumers.
type EventPublisher interface {
	PublishTransactionCommitted(ctx context.Context, event domain.TransactionCommittedEvent) error
}

// TokenService issues and checks service-to-service JWTs.
type TokenService interface {
	Generate(subject string) (string, time.Time, error)
	Validate(tokenString string) (*TokenClaims, error)
}

// TokenClaims holds the parsed JWT claims.
type TokenClaims struct {
	Subject string
	Issuer  string
}

// --- Service Ports (Business Logic) ---

// TransactionKernel runs one transaction request to a terminal state.
type TransactionKernel interface {
	Process(ctx context.Context, req TransactionRequest) (*TransactionResult, error)
}

// TransactionRequest is the inbound request as received by the front.
// Kind is left unparsed; validating it is part of the kernel's work.
type TransactionRequest struct {
	CustomerID string
	Kind       string
	Amount     decimal.Decimal
}

// TransactionResult is never nil. Account and Transaction are set only for
// COMMITTED; Account is also set when the request failed after LOOKUP.
type TransactionResult struct {
	State       domain.TerminalState
	Account     *domain.Account
	Transaction *domain.Transaction
}

// AccountService covers account management and ledger queries.
type AccountService interface {
	OpenAccount(ctx context.Context, req OpenAccountRequest) (*domain.Account, error)
	GetAccount(ctx context.Context, id uuid.UUID) (*domain.Account, error)
	CloseAccount(ctx context.Context, id uuid.UUID) (*domain.Account, error)
	ListByCustomer(ctx context.Context, customerID string) ([]domain.Account, error)
	ListTransactions(ctx context.Context, params TransactionListParams) ([]domain.Transaction, int64, error)
	Reconcile(ctx context.Context, id uuid.UUID) (*Reconciliation, error)
}

// OpenAccountRequest holds validated input for opening an account.
type OpenAccountRequest struct {
	CustomerID     string
	AccountType    string
	Currency       string
	OpeningBalance decimal.Decimal
}

// Reconciliation compares the stored balance with a replay of the ledger.
type Reconciliation struct {
	AccountID       uuid.UUID       `json:"account_id"`
	StoredBalance   decimal.Decimal `json:"stored_balance"`
	ReplayedBalance decimal.Decimal `json:"replayed_balance"`
	Entries         int             `json:"entries"`
	Consistent      bool            `json:"consistent"`
}

// IdentityService is the server side of the identity gate.
type IdentityService interface {
	Authenticate(ctx context.Context, customerID string) (bool, error)
}

// RateLimitStore counts requests per key in fixed windows.
type RateLimitStore interface {
	Allow(ctx context.Context, key string, limit int64, window time.Duration) (*RateLimitResult, error)
}

// RateLimitResult holds the outcome of a rate limit check.
type RateLimitResult struct {
	Allowed   bool
	Limit     int64
	Remaining int64
	ResetAt   int64 // Unix seconds
}
