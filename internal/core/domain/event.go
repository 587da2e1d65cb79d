package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TransactionCommittedEvent is published once per committed mutation.
type TransactionCommittedEvent struct {
	EventID       uuid.UUID       `json:"event_id"`
	TransactionID uuid.UUID       `json:"transaction_id"`
	AccountID     uuid.UUID       `json:"account_id"`
	CustomerID    string          `json:"customer_id"`
	Kind          TransactionKind `json:"kind"`
	Amount        decimal.Decimal `json:"amount"`
	BalanceAfter  decimal.Decimal `json:"balance_after"`
	Currency      string          `json:"currency"`
	OccurredAt    time.Time       `json:"occurred_at"`
}

// NewTransactionCommittedEvent builds the event for a committed ledger entry.
func NewTransactionCommittedEvent(account *Account, txn *Transaction) TransactionCommittedEvent {
	return TransactionCommittedEvent{
		EventID:       uuid.New(),
		TransactionID: txn.ID,
		AccountID:     account.ID,
		CustomerID:    account.CustomerID,
		Kind:          txn.Kind,
		Amount:        txn.Amount,
		BalanceAfter:  txn.BalanceAfter,
		Currency:      account.Currency,
		OccurredAt:    txn.CreatedAt,
	}
}
