package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"banking-services/internal/core/domain"
	"banking-services/internal/core/ports"
	"banking-services/pkg/apperror"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// accountService implements ports.AccountService.
type accountService struct {
	store ports.LedgerStore
	now   func() time.Time
	log   zerolog.Logger
}

// NewAccountService creates a new account service.
func NewAccountService(store ports.LedgerStore, log zerolog.Logger) ports.AccountService {
	return &accountService{
		store: store,
		now:   func() time.Time { return time.Now().UTC() },
		log:   log.With().Str("component", "account_service").Logger(),
	}
}

// OpenAccount validates the request and creates an ACTIVE account.
func (s *accountService) OpenAccount(ctx context.Context, req ports.OpenAccountRequest) (*domain.Account, error) {
	customerID := strings.TrimSpace(req.CustomerID)
	if customerID == "" {
		return nil, apperror.Validation("customer_id is required")
	}
	accountType, ok := domain.ParseAccountType(req.AccountType)
	if !ok {
		return nil, apperror.Validation("account_type must be SAVINGS, CURRENT or BUSINESS")
	}
	currency := strings.ToUpper(strings.TrimSpace(req.Currency))
	if !domain.IsCurrencyCode(currency) {
		return nil, apperror.Validation("currency must be a 3-letter ISO-4217 code")
	}
	if req.OpeningBalance.IsNegative() {
		return nil, apperror.Validation("opening_balance must not be negative")
	}
	opening := req.OpeningBalance
	if opening.IsZero() {
		opening = decimal.Zero
	} else if err := domain.ValidateAmount(opening); err != nil {
		return nil, apperror.Validation(err.Error())
	}

	account := domain.NewAccount(customerID, accountType, currency, opening, s.now())
	if err := s.store.CreateAccount(ctx, account); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("create account: %w", err))
	}

	s.log.Info().
		Str("account_id", account.ID.String()).
		Str("customer_id", customerID).
		Str("account_type", string(accountType)).
		Str("opening_balance", account.Balance.String()).
		Msg("account opened")
	return account, nil
}

func (s *accountService) GetAccount(ctx context.Context, id uuid.UUID) (*domain.Account, error) {
	account, err := s.store.GetAccount(ctx, id)
	if err != nil {
		return nil, apperror.InternalError(err)
	}
	if account == nil {
		return nil, apperror.ErrAccountNotFound()
	}
	return account, nil
}

// CloseAccount marks the account CLOSED. Its ledger stays queryable.
func (s *accountService) CloseAccount(ctx context.Context, id uuid.UUID) (*domain.Account, error) {
	if err := s.store.CloseAccount(ctx, id); err != nil {
		if errors.Is(err, domain.ErrAccountNotFound) {
			return nil, apperror.ErrAccountNotFound()
		}
		return nil, apperror.InternalError(fmt.Errorf("close account: %w", err))
	}
	s.log.Info().Str("account_id", id.String()).Msg("account closed")
	return s.GetAccount(ctx, id)
}

// ListByCustomer returns the customer's accounts, first account first.
func (s *accountService) ListByCustomer(ctx context.Context, customerID string) ([]domain.Account, error) {
	if strings.TrimSpace(customerID) == "" {
		return nil, apperror.Validation("customer_id is required")
	}
	accounts, err := s.store.ListAccountsByCustomer(ctx, customerID)
	if err != nil {
		return nil, apperror.InternalError(err)
	}
	if accounts == nil {
		accounts = []domain.Account{}
	}
	return accounts, nil
}

// ListTransactions returns a page of the account's ledger.
func (s *accountService) ListTransactions(ctx context.Context, params ports.TransactionListParams) ([]domain.Transaction, int64, error) {
	if _, err := s.GetAccount(ctx, params.AccountID); err != nil {
		return nil, 0, err
	}

	if params.Page < 1 {
		params.Page = 1
	}
	if params.PageSize < 1 {
		params.PageSize = defaultPageSize
	}
	if params.PageSize > maxPageSize {
		params.PageSize = maxPageSize
	}

	txns, total, err := s.store.ListTransactions(ctx, params)
	if err != nil {
		return nil, 0, apperror.InternalError(err)
	}
	if txns == nil {
		txns = []domain.Transaction{}
	}
	return txns, total, nil
}

// Reconcile replays the full ledger from zero and compares it with the stored balance.
func (s *accountService) Reconcile(ctx context.Context, id uuid.UUID) (*ports.Reconciliation, error) {
	account, err := s.GetAccount(ctx, id)
	if err != nil {
		return nil, err
	}
	entries, err := s.store.AllTransactions(ctx, id)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("load ledger: %w", err))
	}

	replayed := domain.ReplayBalance(entries)
	rec := &ports.Reconciliation{
		AccountID:       id,
		StoredBalance:   account.Balance,
		ReplayedBalance: replayed,
		Entries:         len(entries),
		Consistent:      replayed.Equal(account.Balance),
	}
	if !rec.Consistent {
		s.log.Error().
			Str("account_id", id.String()).
			Str("stored_balance", account.Balance.String()).
			Str("replayed_balance", replayed.String()).
			Msg("ledger replay does not match stored balance")
	}
	return rec, nil
}
