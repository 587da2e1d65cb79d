package domain

import (
	"bytes"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var currencyValidator = validator.New()

// IsCurrencyCode reports whether code is an upper-case ISO-4217 currency code.
func IsCurrencyCode(code string) bool {
	return currencyValidator.Var(code, "iso4217") == nil
}

// AccountStatus represents whether an account may be mutated.
type AccountStatus string

const (
	AccountStatusActive AccountStatus = "ACTIVE"
	AccountStatusClosed AccountStatus = "CLOSED"
)

// AccountType is the product an account was opened as.
type AccountType string

const (
	AccountTypeSavings  AccountType = "SAVINGS"
	AccountTypeCurrent  AccountType = "CURRENT"
	AccountTypeBusiness AccountType = "BUSINESS"
)

// ParseAccountType accepts the account type case-insensitively.
func ParseAccountType(s string) (AccountType, bool) {
	switch t := AccountType(strings.ToUpper(strings.TrimSpace(s))); t {
	case AccountTypeSavings, AccountTypeCurrent, AccountTypeBusiness:
		return t, true
	default:
		return "", false
	}
}

// Account is a balance-bearing entity owned by a customer.
// It holds no references to its ledger; the store answers that on demand.
type Account struct {
	ID          uuid.UUID       `json:"account_id"`
	CustomerID  string          `json:"customer_id"`
	AccountType AccountType     `json:"account_type"`
	Currency    string          `json:"currency"`
	Balance     decimal.Decimal `json:"balance"`
	Status      AccountStatus   `json:"status"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// NewAccount builds an ACTIVE account holding the opening balance.
func NewAccount(customerID string, accountType AccountType, currency string, opening decimal.Decimal, now time.Time) *Account {
	return &Account{
		ID:          uuid.New(),
		CustomerID:  customerID,
		AccountType: accountType,
		Currency:    currency,
		Balance:     opening,
		Status:      AccountStatusActive,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// IsActive reports whether the account accepts mutations.
func (a *Account) IsActive() bool {
	return a.Status == AccountStatusActive
}

// BalanceAfter returns the balance that applying kind/amount would produce.
// A debit larger than the balance yields ErrInsufficientFunds; a credit that
// reaches MaxBalance yields ErrBalanceLimit.
func (a *Account) BalanceAfter(kind TransactionKind, amount decimal.Decimal) (decimal.Decimal, error) {
	switch kind {
	case TransactionKindCredit:
		next := a.Balance.Add(amount)
		if next.GreaterThanOrEqual(MaxBalance) {
			return a.Balance, ErrBalanceLimit
		}
		return next, nil
	case TransactionKindDebit:
		if amount.GreaterThan(a.Balance) {
			return a.Balance, ErrInsufficientFunds
		}
		return a.Balance.Sub(amount), nil
	default:
		return a.Balance, ErrInvalidKind
	}
}

// AccountPrecedes orders accounts of one customer: earliest created_at first,
// ties broken by ascending account_id bytes.
func AccountPrecedes(a, b *Account) bool {
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.Before(b.CreatedAt)
	}
	return bytes.Compare(a.ID[:], b.ID[:]) < 0
}

// SortAccounts sorts in place using AccountPrecedes.
func SortAccounts(accounts []Account) {
	sort.SliceStable(accounts, func(i, j int) bool {
		return AccountPrecedes(&accounts[i], &accounts[j])
	})
}
