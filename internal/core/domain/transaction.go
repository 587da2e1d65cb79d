package domain

import (
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AmountScale is the maximum number of fractional digits an amount may carry.
// It matches the NUMERIC(20,4) ledger columns.
const AmountScale = 4

// TransactionKind is the direction of a balance mutation.
type TransactionKind string

const (
	TransactionKindCredit TransactionKind = "CREDIT"
	TransactionKindDebit  TransactionKind = "DEBIT"
)

// ParseTransactionKind accepts the kind case-insensitively ("credit" from forms included).
func ParseTransactionKind(s string) (TransactionKind, error) {
	switch k := TransactionKind(strings.ToUpper(strings.TrimSpace(s))); k {
	case TransactionKindCredit, TransactionKindDebit:
		return k, nil
	default:
		return "", ErrInvalidKind
	}
}

// Exponent window accepted before any arithmetic. Outside it, rescaling the
// coefficient alone costs more than any legitimate amount needs.
const (
	minAmountExponent = -18
	maxAmountExponent = 15
)

// MaxBalance is the exclusive ceiling of amounts and balances (NUMERIC(20,4)).
var MaxBalance = decimal.New(1, 16)

// ValidateAmount checks amount is strictly positive, below MaxBalance and
// representable without rounding.
func ValidateAmount(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return ErrInvalidAmount
	}
	if exp := amount.Exponent(); exp < minAmountExponent || exp > maxAmountExponent {
		return ErrAmountOutOfRange
	}
	if amount.GreaterThanOrEqual(MaxBalance) {
		return ErrAmountOutOfRange
	}
	if !amount.Equal(amount.Truncate(AmountScale)) {
		return ErrInvalidAmount
	}
	return nil
}

// AmountString renders amount for logs. Exponents outside the accepted window
// are printed in scientific form instead of being expanded.
func AmountString(amount decimal.Decimal) string {
	if exp := amount.Exponent(); exp < minAmountExponent || exp > maxAmountExponent {
		return amount.Coefficient().String() + "e" + strconv.Itoa(int(exp))
	}
	return amount.String()
}

// Transaction is an immutable ledger entry. It is never updated or deleted.
type Transaction struct {
	ID           uuid.UUID       `json:"transaction_id"`
	AccountID    uuid.UUID       `json:"account_id"`
	Kind         TransactionKind `json:"kind"`
	Amount       decimal.Decimal `json:"amount"`
	BalanceAfter decimal.Decimal `json:"balance_after"`
	CreatedAt    time.Time       `json:"created_at"`
}

// NewTransaction builds the ledger entry for one committed mutation.
func NewTransaction(accountID uuid.UUID, kind TransactionKind, amount, balanceAfter decimal.Decimal, now time.Time) *Transaction {
	return &Transaction{
		ID:           uuid.New(),
		AccountID:    accountID,
		Kind:         kind,
		Amount:       amount,
		BalanceAfter: balanceAfter,
		CreatedAt:    now,
	}
}

// Delta is the signed effect of the entry on the balance.
func (t *Transaction) Delta() decimal.Decimal {
	if t.Kind == TransactionKindDebit {
		return t.Amount.Neg()
	}
	return t.Amount
}

// ReplayBalance recomputes a balance from zero over entries in ledger order.
func ReplayBalance(entries []Transaction) decimal.Decimal {
	balance := decimal.Zero
	for i := range entries {
		balance = balance.Add(entries[i].Delta())
	}
	return balance
}
