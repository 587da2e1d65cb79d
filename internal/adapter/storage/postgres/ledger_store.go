package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"banking-services/internal/core/domain"
	"banking-services/internal/core/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

const accountColumns = `id, customer_id, account_type, currency, balance, status, created_at, updated_at`

const transactionColumns = `id, account_id, kind, amount, balance_after, created_at`

// LedgerStore implements ports.LedgerStore on PostgreSQL.
// ApplyMutation locks the account row with SELECT ... FOR UPDATE, so writers of
// one account queue on the row lock while other accounts proceed.
type LedgerStore struct {
	pool       Pool
	transactor *Transactor
	now        func() time.Time
}

// NewLedgerStore creates a new LedgerStore.
func NewLedgerStore(pool Pool) *LedgerStore {
	return &LedgerStore{
		pool:       pool,
		transactor: NewTransactor(pool),
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// CreateAccount inserts the account and its opening CREDIT entry in one transaction.
func (s *LedgerStore) CreateAccount(ctx context.Context, a *domain.Account) error {
	return s.transactor.WithinTx(ctx, func(tx pgx.Tx) error {
		query := `INSERT INTO accounts (` + accountColumns + `)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
		_, err := tx.Exec(ctx, query,
			a.ID, a.CustomerID, string(a.AccountType), a.Currency,
			a.Balance, string(a.Status), a.CreatedAt, a.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("insert account: %w", err)
		}

		if !a.Balance.IsPositive() {
			return nil
		}
		opening := domain.NewTransaction(a.ID, domain.TransactionKindCredit, a.Balance, a.Balance, a.CreatedAt)
		return insertTransaction(ctx, tx, opening)
	})
}

// GetAccount fetches an account by ID (without locking).
func (s *LedgerStore) GetAccount(ctx context.Context, id uuid.UUID) (*domain.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE id = $1`
	a, err := scanAccount(s.pool.QueryRow(ctx, query, id))
	if err != nil {
		return nil, fmt.Errorf("get account: %w", err)
	}
	return a, nil
}

// FindAccountByCustomer fetches the customer's first account: earliest
// created_at, then smallest id.
func (s *LedgerStore) FindAccountByCustomer(ctx context.Context, customerID string) (*domain.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts
		WHERE customer_id = $1 ORDER BY created_at ASC, id ASC LIMIT 1`
	a, err := scanAccount(s.pool.QueryRow(ctx, query, customerID))
	if err != nil {
		return nil, fmt.Errorf("find account by customer: %w", err)
	}
	return a, nil
}

// ListAccountsByCustomer fetches all accounts of a customer in lookup order.
func (s *LedgerStore) ListAccountsByCustomer(ctx context.Context, customerID string) ([]domain.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts
		WHERE customer_id = $1 ORDER BY created_at ASC, id ASC`

	rows, err := s.pool.Query(ctx, query, customerID)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	defer rows.Close()

	accounts := []domain.Account{}
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("scan account row: %w", err)
		}
		accounts = append(accounts, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate account rows: %w", err)
	}
	return accounts, nil
}

// CustomerExists reports whether the customer owns any account.
func (s *LedgerStore) CustomerExists(ctx context.Context, customerID string) (bool, error) {
	var exists bool
	query := `SELECT EXISTS(SELECT 1 FROM accounts WHERE customer_id = $1)`
	if err := s.pool.QueryRow(ctx, query, customerID).Scan(&exists); err != nil {
		return false, fmt.Errorf("check customer exists: %w", err)
	}
	return exists, nil
}

// CloseAccount marks the account CLOSED.
func (s *LedgerStore) CloseAccount(ctx context.Context, id uuid.UUID) error {
	query := `UPDATE accounts SET status = $1, updated_at = $2 WHERE id = $3`
	tag, err := s.pool.Exec(ctx, query, string(domain.AccountStatusClosed), s.now(), id)
	if err != nil {
		return fmt.Errorf("close account: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrAccountNotFound
	}
	return nil
}

// ApplyMutation locks the account row, re-validates against the locked balance,
// then updates the balance and appends the ledger entry in the same transaction.
func (s *LedgerStore) ApplyMutation(ctx context.Context, accountID uuid.UUID, kind domain.TransactionKind, amount decimal.Decimal) (*domain.Account, *domain.Transaction, error) {
	var (
		account *domain.Account
		txn     *domain.Transaction
	)

	err := s.transactor.WithinTx(ctx, func(tx pgx.Tx) error {
		query := `SELECT ` + accountColumns + ` FROM accounts WHERE id = $1 FOR UPDATE`
		a, err := scanAccount(tx.QueryRow(ctx, query, accountID))
		if err != nil {
			return fmt.Errorf("lock account: %w", err)
		}
		if a == nil {
			return domain.ErrAccountNotFound
		}
		if !a.IsActive() {
			return domain.ErrAccountInactive
		}

		newBalance, err := a.BalanceAfter(kind, amount)
		if err != nil {
			return err
		}

		now := s.now()
		_, err = tx.Exec(ctx, `UPDATE accounts SET balance = $1, updated_at = $2 WHERE id = $3`,
			newBalance, now, accountID)
		if err != nil {
			return fmt.Errorf("update balance: %w", err)
		}

		entry := domain.NewTransaction(accountID, kind, amount, newBalance, now)
		if err := insertTransaction(ctx, tx, entry); err != nil {
			return err
		}

		a.Balance = newBalance
		a.UpdatedAt = now
		account, txn = a, entry
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return account, txn, nil
}

// ListTransactions fetches one page of an account's ledger in append order.
func (s *LedgerStore) ListTransactions(ctx context.Context, params ports.TransactionListParams) ([]domain.Transaction, int64, error) {
	var total int64
	err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM transactions WHERE account_id = $1`, params.AccountID).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("count transactions: %w", err)
	}

	query := `SELECT ` + transactionColumns + ` FROM transactions
		WHERE account_id = $1 ORDER BY seq ASC LIMIT $2 OFFSET $3`
	rows, err := s.pool.Query(ctx, query, params.AccountID, params.PageSize, params.Offset())
	if err != nil {
		return nil, 0, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	txns, err := collectTransactions(rows)
	if err != nil {
		return nil, 0, err
	}
	return txns, total, nil
}

// AllTransactions fetches the complete ledger of an account in append order.
func (s *LedgerStore) AllTransactions(ctx context.Context, accountID uuid.UUID) ([]domain.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE account_id = $1 ORDER BY seq ASC`
	rows, err := s.pool.Query(ctx, query, accountID)
	if err != nil {
		return nil, fmt.Errorf("list ledger: %w", err)
	}
	defer rows.Close()

	return collectTransactions(rows)
}

func insertTransaction(ctx context.Context, tx pgx.Tx, t *domain.Transaction) error {
	query := `INSERT INTO transactions (` + transactionColumns + `) VALUES ($1, $2, $3, $4, $5, $6)`
	_, err := tx.Exec(ctx, query,
		t.ID, t.AccountID, string(t.Kind), t.Amount, t.BalanceAfter, t.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert transaction: %w", err)
	}
	return nil
}

// scanAccount returns (nil, nil) when the row does not exist.
func scanAccount(row pgx.Row) (*domain.Account, error) {
	var (
		a                   domain.Account
		accountType, status string
	)
	err := row.Scan(
		&a.ID, &a.CustomerID, &accountType, &a.Currency,
		&a.Balance, &status, &a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	a.AccountType = domain.AccountType(accountType)
	a.Status = domain.AccountStatus(status)
	return &a, nil
}

func collectTransactions(rows pgx.Rows) ([]domain.Transaction, error) {
	txns := []domain.Transaction{}
	for rows.Next() {
		var (
			t    domain.Transaction
			kind string
		)
		if err := rows.Scan(&t.ID, &t.AccountID, &kind, &t.Amount, &t.BalanceAfter, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan transaction row: %w", err)
		}
		t.Kind = domain.TransactionKind(kind)
		txns = append(txns, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transaction rows: %w", err)
	}
	return txns, nil
}

var _ ports.LedgerStore = (*LedgerStore)(nil)
