// Package memory provides an in-process LedgerStore for development and tests.
package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"banking-services/internal/core/domain"
	"banking-services/internal/core/ports"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// LedgerStore keeps accounts and their ledgers in memory.
// Each account has its own mutex, so mutations of one account serialize while
// different accounts proceed independently.
type LedgerStore struct {
	mu         sync.RWMutex // guards accounts and byCustomer, not the records
	accounts   map[uuid.UUID]*accountRecord
	byCustomer map[string][]uuid.UUID

	now        func() time.Time
	appendHook func(domain.Transaction) error
}

type accountRecord struct {
	mu      sync.Mutex
	account domain.Account
	ledger  []domain.Transaction
}

// Option configures a LedgerStore.
type Option func(*LedgerStore)

// WithClock overrides the time source used for ledger timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *LedgerStore) { s.now = now }
}

// WithAppendHook runs fn before a ledger entry is committed. A non-nil error
// aborts the mutation with nothing applied, as a failed durable write would.
func WithAppendHook(fn func(domain.Transaction) error) Option {
	return func(s *LedgerStore) { s.appendHook = fn }
}

// NewLedgerStore creates an empty LedgerStore.
func NewLedgerStore(opts ...Option) *LedgerStore {
	s := &LedgerStore{
		accounts:   make(map[uuid.UUID]*accountRecord),
		byCustomer: make(map[string][]uuid.UUID),
		now:        func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateAccount stores the account and its opening entry.
func (s *LedgerStore) CreateAccount(_ context.Context, account *domain.Account) error {
	if account.Balance.IsNegative() {
		return fmt.Errorf("insert account: negative opening balance %s", account.Balance)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.accounts[account.ID]; exists {
		return fmt.Errorf("insert account: duplicate account_id %s", account.ID)
	}

	rec := &accountRecord{account: *account}
	if account.Balance.IsPositive() {
		opening := domain.NewTransaction(account.ID, domain.TransactionKindCredit, account.Balance, account.Balance, account.CreatedAt)
		rec.ledger = append(rec.ledger, *opening)
	}

	s.accounts[account.ID] = rec
	s.byCustomer[account.CustomerID] = append(s.byCustomer[account.CustomerID], account.ID)
	return nil
}

// GetAccount returns a copy of the account, or nil if unknown.
func (s *LedgerStore) GetAccount(_ context.Context, id uuid.UUID) (*domain.Account, error) {
	rec := s.record(id)
	if rec == nil {
		return nil, nil
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	acc := rec.account
	return &acc, nil
}

// FindAccountByCustomer returns the customer's first account by the deterministic rule.
func (s *LedgerStore) FindAccountByCustomer(ctx context.Context, customerID string) (*domain.Account, error) {
	accounts, err := s.ListAccountsByCustomer(ctx, customerID)
	if err != nil || len(accounts) == 0 {
		return nil, err
	}
	return &accounts[0], nil
}

// ListAccountsByCustomer returns copies of the customer's accounts in deterministic order.
func (s *LedgerStore) ListAccountsByCustomer(_ context.Context, customerID string) ([]domain.Account, error) {
	s.mu.RLock()
	records := make([]*accountRecord, 0, len(s.byCustomer[customerID]))
	for _, id := range s.byCustomer[customerID] {
		records = append(records, s.accounts[id])
	}
	s.mu.RUnlock()

	accounts := make([]domain.Account, 0, len(records))
	for _, rec := range records {
		rec.mu.Lock()
		accounts = append(accounts, rec.account)
		rec.mu.Unlock()
	}
	domain.SortAccounts(accounts)
	return accounts, nil
}

// CustomerExists reports whether any account belongs to the customer.
func (s *LedgerStore) CustomerExists(_ context.Context, customerID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byCustomer[customerID]) > 0, nil
}

// ApplyMutation updates the balance and appends the entry under the account's lock.
func (s *LedgerStore) ApplyMutation(ctx context.Context, accountID uuid.UUID, kind domain.TransactionKind, amount decimal.Decimal) (*domain.Account, *domain.Transaction, error) {
	rec := s.record(accountID)
	if rec == nil {
		return nil, nil, domain.ErrAccountNotFound
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, nil, fmt.Errorf("apply mutation: %w", err)
	}
	if !rec.account.IsActive() {
		return nil, nil, domain.ErrAccountInactive
	}

	newBalance, err := rec.account.BalanceAfter(kind, amount)
	if err != nil {
		return nil, nil, err
	}

	now := s.now()
	txn := domain.NewTransaction(accountID, kind, amount, newBalance, now)
	if s.appendHook != nil {
		if err := s.appendHook(*txn); err != nil {
			return nil, nil, fmt.Errorf("append ledger entry: %w", err)
		}
	}

	rec.account.Balance = newBalance
	rec.account.UpdatedAt = now
	rec.ledger = append(rec.ledger, *txn)

	acc := rec.account
	return &acc, txn, nil
}

// ListTransactions returns one page of the ledger in append order.
func (s *LedgerStore) ListTransactions(_ context.Context, params ports.TransactionListParams) ([]domain.Transaction, int64, error) {
	rec := s.record(params.AccountID)
	if rec == nil {
		return nil, 0, nil
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()

	total := len(rec.ledger)
	start := params.Offset()
	if start >= total {
		return []domain.Transaction{}, int64(total), nil
	}
	end := start + params.PageSize
	if params.PageSize <= 0 || end > total {
		end = total
	}

	page := make([]domain.Transaction, end-start)
	copy(page, rec.ledger[start:end])
	return page, int64(total), nil
}

// AllTransactions returns the full ledger in append order.
func (s *LedgerStore) AllTransactions(_ context.Context, accountID uuid.UUID) ([]domain.Transaction, error) {
	rec := s.record(accountID)
	if rec == nil {
		return nil, nil
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()

	entries := make([]domain.Transaction, len(rec.ledger))
	copy(entries, rec.ledger)
	return entries, nil
}

// CloseAccount marks an account CLOSED. Closed accounts reject mutations.
func (s *LedgerStore) CloseAccount(_ context.Context, accountID uuid.UUID) error {
	rec := s.record(accountID)
	if rec == nil {
		return domain.ErrAccountNotFound
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	rec.account.Status = domain.AccountStatusClosed
	rec.account.UpdatedAt = s.now()
	return nil
}

// Ping implements ports.HealthChecker.
func (s *LedgerStore) Ping(context.Context) error { return nil }

// Name implements ports.HealthChecker.
func (s *LedgerStore) Name() string { return "memory" }

func (s *LedgerStore) record(id uuid.UUID) *accountRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.accounts[id]
}

var _ ports.LedgerStore = (*LedgerStore)(nil)
