// Package sqlite provides a SQLite-backed LedgerStore for single-node deployments.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"banking-services/internal/core/domain"
	"banking-services/internal/core/ports"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"
)

const accountColumns = `id, customer_id, account_type, currency, balance, status, created_at, updated_at`

const transactionColumns = `id, account_id, kind, amount, balance_after, created_at`

// LedgerStore implements ports.LedgerStore on SQLite.
//
// The handle is limited to one open connection, so every write transaction
// runs alone. That serializes mutations of the same account, and of every
// other account as well; SQLite has a single writer regardless.
type LedgerStore struct {
	db  *sql.DB
	now func() time.Time
}

// Open opens the database file at path with foreign keys enforced.
func Open(path string) (*sql.DB, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("sqlite path is required")
	}
	dsn := filepath.Clean(path) + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	return db, nil
}

// NewLedgerStore creates a LedgerStore over an opened and migrated database.
func NewLedgerStore(db *sql.DB) *LedgerStore {
	return &LedgerStore{
		db:  db,
		now: func() time.Time { return time.Now().UTC() },
	}
}

// Close closes the SQLite handle.
func (s *LedgerStore) Close() error {
	return s.db.Close()
}

// CreateAccount inserts the account and its opening CREDIT entry in one transaction.
func (s *LedgerStore) CreateAccount(ctx context.Context, a *domain.Account) error {
	return s.withinTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO accounts (`+accountColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			a.ID.String(), a.CustomerID, string(a.AccountType), a.Currency,
			a.Balance.String(), string(a.Status), toNanos(a.CreatedAt), toNanos(a.UpdatedAt),
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

// GetAccount returns the account, or nil if unknown.
func (s *LedgerStore) GetAccount(ctx context.Context, id uuid.UUID) (*domain.Account, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id = ?`, id.String())
	a, err := scanAccount(row)
	if err != nil {
		return nil, fmt.Errorf("get account: %w", err)
	}
	return a, nil
}

// FindAccountByCustomer returns the customer's first account. Canonical UUID
// text sorts in byte order, so ORDER BY id matches the in-memory rule.
func (s *LedgerStore) FindAccountByCustomer(ctx context.Context, customerID string) (*domain.Account, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE customer_id = ? ORDER BY created_at, id LIMIT 1`,
		customerID)
	a, err := scanAccount(row)
	if err != nil {
		return nil, fmt.Errorf("find account by customer: %w", err)
	}
	return a, nil
}

// ListAccountsByCustomer returns the customer's accounts in lookup order.
func (s *LedgerStore) ListAccountsByCustomer(ctx context.Context, customerID string) ([]domain.Account, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE customer_id = ? ORDER BY created_at, id`,
		customerID)
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
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM accounts WHERE customer_id = ?)`, customerID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check customer exists: %w", err)
	}
	return exists, nil
}

// CloseAccount marks the account CLOSED.
func (s *LedgerStore) CloseAccount(ctx context.Context, id uuid.UUID) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE accounts SET status = ?, updated_at = ? WHERE id = ?`,
		string(domain.AccountStatusClosed), toNanos(s.now()), id.String())
	if err != nil {
		return fmt.Errorf("close account: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("close account: %w", err)
	}
	if n == 0 {
		return domain.ErrAccountNotFound
	}
	return nil
}

// ApplyMutation re-reads the account inside the write transaction, validates the
// mutation against it, then updates the balance and appends the ledger entry.
func (s *LedgerStore) ApplyMutation(ctx context.Context, accountID uuid.UUID, kind domain.TransactionKind, amount decimal.Decimal) (*domain.Account, *domain.Transaction, error) {
	var (
		account *domain.Account
		txn     *domain.Transaction
	)

	err := s.withinTx(ctx, func(tx *sql.Tx) error {
		row := tx.QueryRowContext(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id = ?`, accountID.String())
		a, err := scanAccount(row)
		if err != nil {
			return fmt.Errorf("read account: %w", err)
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
		_, err = tx.ExecContext(ctx,
			`UPDATE accounts SET balance = ?, updated_at = ? WHERE id = ?`,
			newBalance.String(), toNanos(now), accountID.String())
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

// ListTransactions returns one page of the ledger in append order.
func (s *LedgerStore) ListTransactions(ctx context.Context, params ports.TransactionListParams) ([]domain.Transaction, int64, error) {
	var total int64
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM transactions WHERE account_id = ?`, params.AccountID.String()).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("count transactions: %w", err)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+transactionColumns+` FROM transactions WHERE account_id = ? ORDER BY seq LIMIT ? OFFSET ?`,
		params.AccountID.String(), params.PageSize, params.Offset())
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

// AllTransactions returns the complete ledger in append order.
func (s *LedgerStore) AllTransactions(ctx context.Context, accountID uuid.UUID) ([]domain.Transaction, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+transactionColumns+` FROM transactions WHERE account_id = ? ORDER BY seq`,
		accountID.String())
	if err != nil {
		return nil, fmt.Errorf("list ledger: %w", err)
	}
	defer rows.Close()

	return collectTransactions(rows)
}

// Ping implements ports.HealthChecker.
func (s *LedgerStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Name implements ports.HealthChecker.
func (s *LedgerStore) Name() string {
	return "sqlite"
}

func (s *LedgerStore) withinTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			return errors.Join(err, fmt.Errorf("rollback: %w", rbErr))
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func insertTransaction(ctx context.Context, tx *sql.Tx, t *domain.Transaction) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO transactions (`+transactionColumns+`) VALUES (?, ?, ?, ?, ?, ?)`,
		t.ID.String(), t.AccountID.String(), string(t.Kind),
		t.Amount.String(), t.BalanceAfter.String(), toNanos(t.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("insert transaction: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

// scanAccount returns (nil, nil) when the row does not exist.
func scanAccount(row rowScanner) (*domain.Account, error) {
	var (
		a                                domain.Account
		id, accountType, balance, status string
		createdAt, updatedAt             int64
	)
	err := row.Scan(&id, &a.CustomerID, &accountType, &a.Currency, &balance, &status, &createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	if a.ID, err = uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("parse account id: %w", err)
	}
	if a.Balance, err = decimal.NewFromString(balance); err != nil {
		return nil, fmt.Errorf("parse balance: %w", err)
	}
	a.AccountType = domain.AccountType(accountType)
	a.Status = domain.AccountStatus(status)
	a.CreatedAt = fromNanos(createdAt)
	a.UpdatedAt = fromNanos(updatedAt)
	return &a, nil
}

func collectTransactions(rows *sql.Rows) ([]domain.Transaction, error) {
	txns := []domain.Transaction{}
	for rows.Next() {
		var (
			t                                  domain.Transaction
			id, accountID, kind, amount, after string
			createdAt                          int64
		)
		if err := rows.Scan(&id, &accountID, &kind, &amount, &after, &createdAt); err != nil {
			return nil, fmt.Errorf("scan transaction row: %w", err)
		}

		var err error
		if t.ID, err = uuid.Parse(id); err != nil {
			return nil, fmt.Errorf("parse transaction id: %w", err)
		}
		if t.AccountID, err = uuid.Parse(accountID); err != nil {
			return nil, fmt.Errorf("parse account id: %w", err)
		}
		if t.Amount, err = decimal.NewFromString(amount); err != nil {
			return nil, fmt.Errorf("parse amount: %w", err)
		}
		if t.BalanceAfter, err = decimal.NewFromString(after); err != nil {
			return nil, fmt.Errorf("parse balance_after: %w", err)
		}
		t.Kind = domain.TransactionKind(kind)
		t.CreatedAt = fromNanos(createdAt)
		txns = append(txns, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transaction rows: %w", err)
	}
	return txns, nil
}

func toNanos(t time.Time) int64 {
	return t.UTC().UnixNano()
}

func fromNanos(v int64) time.Time {
	return time.Unix(0, v).UTC()
}

var _ ports.LedgerStore = (*LedgerStore)(nil)
