package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"banking-services/internal/adapter/storage/memory"
	"banking-services/internal/core/domain"
	"banking-services/internal/core/ports"
	"banking-services/internal/core/ports/mocks"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func setupAccountService(t *testing.T) (*accountService, *mocks.MockLedgerStore) {
	ctrl := gomock.NewController(t)
	store := mocks.NewMockLedgerStore(ctrl)
	svc := NewAccountService(store, zerolog.Nop()).(*accountService)
	return svc, store
}

// ==================== OpenAccount ====================

func TestAccountService_OpenAccount_Success(t *testing.T) {
	svc, store := setupAccountService(t)
	fixed := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	svc.now = func() time.Time { return fixed }

	store.EXPECT().CreateAccount(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, a *domain.Account) error {
			assert.Equal(t, "cust-1", a.CustomerID)
			assert.Equal(t, domain.AccountTypeSavings, a.AccountType)
			assert.Equal(t, "EUR", a.Currency)
			assert.Equal(t, domain.AccountStatusActive, a.Status)
			assert.Equal(t, fixed, a.CreatedAt)
			return nil
		})

	acc, err := svc.OpenAccount(context.Background(), ports.OpenAccountRequest{
		CustomerID: " cust-1 ", AccountType: "savings", Currency: "eur", OpeningBalance: dec("10.50"),
	})
	require.NoError(t, err)
	assert.True(t, dec("10.5").Equal(acc.Balance))
}

func TestAccountService_OpenAccount_Validation(t *testing.T) {
	tests := []struct {
		name string
		req  ports.OpenAccountRequest
	}{
		{"missing customer", ports.OpenAccountRequest{AccountType: "CURRENT", Currency: "USD"}},
		{"bad type", ports.OpenAccountRequest{CustomerID: "c", AccountType: "LOAN", Currency: "USD"}},
		{"bad currency", ports.OpenAccountRequest{CustomerID: "c", AccountType: "CURRENT", Currency: "US"}},
		{"digits in currency", ports.OpenAccountRequest{CustomerID: "c", AccountType: "CURRENT", Currency: "U5D"}},
		{"negative opening", ports.OpenAccountRequest{CustomerID: "c", AccountType: "CURRENT", Currency: "USD", OpeningBalance: dec("-1")}},
		{"opening too precise", ports.OpenAccountRequest{CustomerID: "c", AccountType: "CURRENT", Currency: "USD", OpeningBalance: dec("1.00001")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, _ := setupAccountService(t)
			_, err := svc.OpenAccount(context.Background(), tt.req)
			requireAppError(t, err, "TXN_001")
		})
	}
}

func TestAccountService_OpenAccount_StoreError(t *testing.T) {
	svc, store := setupAccountService(t)
	store.EXPECT().CreateAccount(gomock.Any(), gomock.Any()).Return(errors.New("disk full"))

	_, err := svc.OpenAccount(context.Background(), ports.OpenAccountRequest{CustomerID: "c", AccountType: "CURRENT", Currency: "USD"})
	requireAppError(t, err, "SYS_002")
}

// ==================== Lookups ====================

func TestAccountService_GetAccount_NotFound(t *testing.T) {
	svc, store := setupAccountService(t)
	id := uuid.New()
	store.EXPECT().GetAccount(gomock.Any(), id).Return(nil, nil)

	_, err := svc.GetAccount(context.Background(), id)
	requireAppError(t, err, "ACC_001")
}

func TestAccountService_CloseAccount(t *testing.T) {
	svc, store := setupAccountService(t)
	acc := activeAccount("cust-1", "5")
	closed := *acc
	closed.Status = domain.AccountStatusClosed

	store.EXPECT().CloseAccount(gomock.Any(), acc.ID).Return(nil)
	store.EXPECT().GetAccount(gomock.Any(), acc.ID).Return(&closed, nil)

	got, err := svc.CloseAccount(context.Background(), acc.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.AccountStatusClosed, got.Status)
}

func TestAccountService_CloseAccount_Unknown(t *testing.T) {
	svc, store := setupAccountService(t)
	id := uuid.New()
	store.EXPECT().CloseAccount(gomock.Any(), id).Return(domain.ErrAccountNotFound)

	_, err := svc.CloseAccount(context.Background(), id)
	requireAppError(t, err, "ACC_001")
}

func TestAccountService_ListByCustomer(t *testing.T) {
	svc, store := setupAccountService(t)
	store.EXPECT().ListAccountsByCustomer(gomock.Any(), "ghost").Return(nil, nil)

	accounts, err := svc.ListByCustomer(context.Background(), "ghost")
	require.NoError(t, err)
	assert.NotNil(t, accounts)
	assert.Empty(t, accounts)

	_, err = svc.ListByCustomer(context.Background(), "")
	requireAppError(t, err, "TXN_001")
}

func TestAccountService_ListTransactions_DefaultsPaging(t *testing.T) {
	svc, store := setupAccountService(t)
	acc := activeAccount("cust-1", "5")

	store.EXPECT().GetAccount(gomock.Any(), acc.ID).Return(acc, nil)
	store.EXPECT().ListTransactions(gomock.Any(), ports.TransactionListParams{AccountID: acc.ID, Page: 1, PageSize: 20}).
		Return([]domain.Transaction{{ID: uuid.New()}}, int64(1), nil)

	txns, total, err := svc.ListTransactions(context.Background(), ports.TransactionListParams{AccountID: acc.ID})
	require.NoError(t, err)
	assert.Len(t, txns, 1)
	assert.Equal(t, int64(1), total)
}

func TestAccountService_ListTransactions_CapsPageSize(t *testing.T) {
	svc, store := setupAccountService(t)
	acc := activeAccount("cust-1", "5")

	store.EXPECT().GetAccount(gomock.Any(), acc.ID).Return(acc, nil)
	store.EXPECT().ListTransactions(gomock.Any(), ports.TransactionListParams{AccountID: acc.ID, Page: 3, PageSize: 100}).
		Return(nil, int64(0), nil)

	txns, _, err := svc.ListTransactions(context.Background(), ports.TransactionListParams{AccountID: acc.ID, Page: 3, PageSize: 1000})
	require.NoError(t, err)
	assert.NotNil(t, txns)
}

func TestAccountService_ListTransactions_UnknownAccount(t *testing.T) {
	svc, store := setupAccountService(t)
	id := uuid.New()
	store.EXPECT().GetAccount(gomock.Any(), id).Return(nil, nil)

	_, _, err := svc.ListTransactions(context.Background(), ports.TransactionListParams{AccountID: id})
	requireAppError(t, err, "ACC_001")
}

// ==================== Reconcile ====================

func TestAccountService_Reconcile_Consistent(t *testing.T) {
	store := memory.NewLedgerStore()
	svc := NewAccountService(store, zerolog.Nop())
	ctx := context.Background()

	acc, err := svc.OpenAccount(ctx, ports.OpenAccountRequest{CustomerID: "cust-1", AccountType: "CURRENT", Currency: "USD", OpeningBalance: dec("100.00")})
	require.NoError(t, err)
	_, _, err = store.ApplyMutation(ctx, acc.ID, domain.TransactionKindDebit, dec("30.00"))
	require.NoError(t, err)
	_, _, err = store.ApplyMutation(ctx, acc.ID, domain.TransactionKindCredit, dec("0.0001"))
	require.NoError(t, err)

	rec, err := svc.Reconcile(ctx, acc.ID)
	require.NoError(t, err)
	assert.True(t, rec.Consistent)
	assert.Equal(t, 3, rec.Entries)
	assert.True(t, dec("70.0001").Equal(rec.ReplayedBalance))
	assert.True(t, rec.StoredBalance.Equal(rec.ReplayedBalance))
}

func TestAccountService_Reconcile_DetectsDrift(t *testing.T) {
	svc, store := setupAccountService(t)
	acc := activeAccount("cust-1", "100")

	store.EXPECT().GetAccount(gomock.Any(), acc.ID).Return(acc, nil)
	store.EXPECT().AllTransactions(gomock.Any(), acc.ID).Return([]domain.Transaction{
		{Kind: domain.TransactionKindCredit, Amount: dec("90")},
	}, nil)

	rec, err := svc.Reconcile(context.Background(), acc.ID)
	require.NoError(t, err)
	assert.False(t, rec.Consistent)
	assert.True(t, decimal.NewFromInt(90).Equal(rec.ReplayedBalance))
}
