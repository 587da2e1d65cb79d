package memory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"banking-services/internal/core/domain"
	"banking-services/internal/core/ports"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func seedAccount(t *testing.T, s *LedgerStore, customerID, opening string) *domain.Account {
	t.Helper()
	acc := domain.NewAccount(customerID, domain.AccountTypeSavings, "USD", dec(opening), time.Now().UTC())
	require.NoError(t, s.CreateAccount(context.Background(), acc))
	return acc
}

func TestLedgerStore_CreateAccount_OpeningEntry(t *testing.T) {
	s := NewLedgerStore()
	acc := seedAccount(t, s, "cust-1", "100.00")

	entries, err := s.AllTransactions(context.Background(), acc.ID)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, domain.TransactionKindCredit, entries[0].Kind)
	assert.True(t, dec("100.00").Equal(entries[0].Amount))

	empty := seedAccount(t, s, "cust-2", "0")
	entries, err = s.AllTransactions(context.Background(), empty.ID)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestLedgerStore_CreateAccount_Rejects(t *testing.T) {
	s := NewLedgerStore()
	acc := seedAccount(t, s, "cust-1", "10")

	assert.Error(t, s.CreateAccount(context.Background(), acc), "duplicate id")

	neg := domain.NewAccount("cust-1", domain.AccountTypeSavings, "USD", dec("-1"), time.Now())
	assert.Error(t, s.CreateAccount(context.Background(), neg))
}

func TestLedgerStore_ApplyMutation_Debit(t *testing.T) {
	s := NewLedgerStore()
	acc := seedAccount(t, s, "cust-1", "100.00")

	updated, txn, err := s.ApplyMutation(context.Background(), acc.ID, domain.TransactionKindDebit, dec("30.00"))
	require.NoError(t, err)
	assert.True(t, dec("70.00").Equal(updated.Balance))
	assert.Equal(t, domain.TransactionKindDebit, txn.Kind)
	assert.True(t, dec("30.00").Equal(txn.Amount))
	assert.True(t, dec("70.00").Equal(txn.BalanceAfter))

	entries, err := s.AllTransactions(context.Background(), acc.ID)
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}

func TestLedgerStore_ApplyMutation_InsufficientFunds(t *testing.T) {
	s := NewLedgerStore()
	acc := seedAccount(t, s, "cust-1", "70.00")

	_, _, err := s.ApplyMutation(context.Background(), acc.ID, domain.TransactionKindDebit, dec("500.00"))
	assert.ErrorIs(t, err, domain.ErrInsufficientFunds)

	got, err := s.GetAccount(context.Background(), acc.ID)
	require.NoError(t, err)
	assert.True(t, dec("70.00").Equal(got.Balance))

	entries, _ := s.AllTransactions(context.Background(), acc.ID)
	assert.Len(t, entries, 1, "no entry for a rejected debit")
}

func TestLedgerStore_ApplyMutation_UnknownAndInactive(t *testing.T) {
	s := NewLedgerStore()

	_, _, err := s.ApplyMutation(context.Background(), uuid.New(), domain.TransactionKindCredit, dec("1"))
	assert.ErrorIs(t, err, domain.ErrAccountNotFound)

	acc := seedAccount(t, s, "cust-1", "10")
	require.NoError(t, s.CloseAccount(context.Background(), acc.ID))

	_, _, err = s.ApplyMutation(context.Background(), acc.ID, domain.TransactionKindCredit, dec("1"))
	assert.ErrorIs(t, err, domain.ErrAccountInactive)

	assert.ErrorIs(t, s.CloseAccount(context.Background(), uuid.New()), domain.ErrAccountNotFound)
}

func TestLedgerStore_ApplyMutation_FailedAppendLeavesNothing(t *testing.T) {
	boom := errors.New("disk full")
	fail := false
	s := NewLedgerStore(WithAppendHook(func(domain.Transaction) error {
		if fail {
			return boom
		}
		return nil
	}))
	acc := seedAccount(t, s, "cust-1", "100.00")

	fail = true
	_, _, err := s.ApplyMutation(context.Background(), acc.ID, domain.TransactionKindCredit, dec("25"))
	require.ErrorIs(t, err, boom)
	assert.NotErrorIs(t, err, domain.ErrInsufficientFunds)

	got, _ := s.GetAccount(context.Background(), acc.ID)
	assert.True(t, dec("100.00").Equal(got.Balance))
	entries, _ := s.AllTransactions(context.Background(), acc.ID)
	assert.Len(t, entries, 1)
}

func TestLedgerStore_ApplyMutation_CanceledContext(t *testing.T) {
	s := NewLedgerStore()
	acc := seedAccount(t, s, "cust-1", "100.00")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err := s.ApplyMutation(ctx, acc.ID, domain.TransactionKindCredit, dec("1"))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestLedgerStore_ConcurrentCreditAndDebit(t *testing.T) {
	s := NewLedgerStore()
	acc := seedAccount(t, s, "cust-1", "100.00")

	var wg sync.WaitGroup
	errs := make(chan error, 2)
	for _, m := range []struct {
		kind   domain.TransactionKind
		amount string
	}{
		{domain.TransactionKindCredit, "50.00"},
		{domain.TransactionKindDebit, "20.00"},
	} {
		wg.Add(1)
		go func(kind domain.TransactionKind, amount decimal.Decimal) {
			defer wg.Done()
			_, _, err := s.ApplyMutation(context.Background(), acc.ID, kind, amount)
			errs <- err
		}(m.kind, dec(m.amount))
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	got, _ := s.GetAccount(context.Background(), acc.ID)
	assert.True(t, dec("130.00").Equal(got.Balance), "got %s", got.Balance)

	entries, _ := s.AllTransactions(context.Background(), acc.ID)
	assert.Len(t, entries, 3, "opening entry plus exactly two mutations")
}

func TestLedgerStore_ConservationUnderLoad(t *testing.T) {
	s := NewLedgerStore()
	a := seedAccount(t, s, "cust-a", "1000")
	b := seedAccount(t, s, "cust-b", "0")

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, _, _ = s.ApplyMutation(context.Background(), a.ID, domain.TransactionKindDebit, dec("7.25"))
		}()
		go func() {
			defer wg.Done()
			_, _, _ = s.ApplyMutation(context.Background(), b.ID, domain.TransactionKindCredit, dec("0.01"))
		}()
	}
	wg.Wait()

	for _, id := range []uuid.UUID{a.ID, b.ID} {
		got, _ := s.GetAccount(context.Background(), id)
		entries, _ := s.AllTransactions(context.Background(), id)
		assert.True(t, got.Balance.Equal(domain.ReplayBalance(entries)), "replay of %s", id)
		assert.False(t, got.Balance.IsNegative())
	}

	gotB, _ := s.GetAccount(context.Background(), b.ID)
	assert.True(t, dec("1.00").Equal(gotB.Balance))
}

func TestLedgerStore_FindAccountByCustomer_Deterministic(t *testing.T) {
	t0 := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	s := NewLedgerStore()

	later := &domain.Account{ID: uuid.MustParse("00000000-0000-0000-0000-000000000001"), CustomerID: "cust-1", Currency: "USD", Balance: decimal.Zero, Status: domain.AccountStatusActive, CreatedAt: t0.Add(time.Minute)}
	high := &domain.Account{ID: uuid.MustParse("ffffffff-ffff-ffff-ffff-ffffffffffff"), CustomerID: "cust-1", Currency: "USD", Balance: decimal.Zero, Status: domain.AccountStatusActive, CreatedAt: t0}
	low := &domain.Account{ID: uuid.MustParse("7fffffff-ffff-ffff-ffff-ffffffffffff"), CustomerID: "cust-1", Currency: "USD", Balance: decimal.Zero, Status: domain.AccountStatusActive, CreatedAt: t0}
	for _, a := range []*domain.Account{later, high, low} {
		require.NoError(t, s.CreateAccount(context.Background(), a))
	}

	for i := 0; i < 5; i++ {
		got, err := s.FindAccountByCustomer(context.Background(), "cust-1")
		require.NoError(t, err)
		assert.Equal(t, low.ID, got.ID)
	}

	list, err := s.ListAccountsByCustomer(context.Background(), "cust-1")
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, []uuid.UUID{low.ID, high.ID, later.ID}, []uuid.UUID{list[0].ID, list[1].ID, list[2].ID})
}

func TestLedgerStore_LookupMisses(t *testing.T) {
	s := NewLedgerStore()

	acc, err := s.FindAccountByCustomer(context.Background(), "ghost")
	assert.NoError(t, err)
	assert.Nil(t, acc)

	acc, err = s.GetAccount(context.Background(), uuid.New())
	assert.NoError(t, err)
	assert.Nil(t, acc)

	exists, err := s.CustomerExists(context.Background(), "ghost")
	assert.NoError(t, err)
	assert.False(t, exists)
}

func TestLedgerStore_ListTransactions_Paging(t *testing.T) {
	s := NewLedgerStore()
	acc := seedAccount(t, s, "cust-1", "1")
	for i := 0; i < 4; i++ {
		_, _, err := s.ApplyMutation(context.Background(), acc.ID, domain.TransactionKindCredit, dec("1"))
		require.NoError(t, err)
	}

	page, total, err := s.ListTransactions(context.Background(), ports.TransactionListParams{AccountID: acc.ID, Page: 2, PageSize: 2})
	require.NoError(t, err)
	assert.Equal(t, int64(5), total)
	require.Len(t, page, 2)
	assert.True(t, dec("3").Equal(page[0].BalanceAfter))
	assert.True(t, dec("4").Equal(page[1].BalanceAfter))

	page, total, err = s.ListTransactions(context.Background(), ports.TransactionListParams{AccountID: acc.ID, Page: 9, PageSize: 2})
	require.NoError(t, err)
	assert.Equal(t, int64(5), total)
	assert.Empty(t, page)
}
