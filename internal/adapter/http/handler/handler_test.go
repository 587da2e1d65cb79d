package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"banking-services/internal/core/domain"
	"banking-services/internal/core/ports"
	"banking-services/internal/core/ports/mocks"
	"banking-services/pkg/apperror"
	"banking-services/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func newMockRouter(t *testing.T) (*gin.Engine, *mocks.MockTransactionKernel, *mocks.MockAccountService) {
	ctrl := gomock.NewController(t)
	kernel := mocks.NewMockTransactionKernel(ctrl)
	accountSvc := mocks.NewMockAccountService(ctrl)
	r := SetupRouter(RouterDeps{Kernel: kernel, AccountSvc: accountSvc, Logger: zerolog.Nop()})
	return r, kernel, accountSvc
}

func doJSON(r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) response.ErrorResponse {
	t.Helper()
	var resp response.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

// --- Transaction Handler Tests ---

func TestCreateTransaction_Committed(t *testing.T) {
	r, kernel, _ := newMockRouter(t)

	acc := domain.NewAccount("cust-1", domain.AccountTypeCurrent, "USD", dec("70.00"), time.Now().UTC())
	txn := domain.NewTransaction(acc.ID, domain.TransactionKindDebit, dec("30.00"), dec("70.00"), time.Now().UTC())

	kernel.EXPECT().Process(gomock.Any(), ports.TransactionRequest{CustomerID: "cust-1", Kind: "DEBIT", Amount: dec("30.00")}).
		Return(&ports.TransactionResult{State: domain.StateCommitted, Account: acc, Transaction: txn}, nil)

	w := doJSON(r, http.MethodPost, "/api/v1/transactions", `{"customer_id":" cust-1 ","kind":"DEBIT","amount":"30.00"}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var resp struct {
		Data struct {
			State   string `json:"state"`
			Account struct {
				Balance string `json:"balance"`
			} `json:"account"`
			Transaction struct {
				ID     string `json:"transaction_id"`
				Kind   string `json:"kind"`
				Amount string `json:"amount"`
			} `json:"transaction"`
		} `json:"data"`
		RequestID string `json:"request_id"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "COMMITTED", resp.Data.State)
	assert.Equal(t, "70", resp.Data.Account.Balance)
	assert.Equal(t, txn.ID.String(), resp.Data.Transaction.ID)
	assert.Equal(t, "DEBIT", resp.Data.Transaction.Kind)
	assert.Equal(t, "30", resp.Data.Transaction.Amount)
	assert.NotEmpty(t, resp.RequestID)
}

func TestCreateTransaction_NumericAmount(t *testing.T) {
	r, kernel, _ := newMockRouter(t)
	kernel.EXPECT().Process(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, req ports.TransactionRequest) (*ports.TransactionResult, error) {
			assert.True(t, dec("12.5").Equal(req.Amount))
			return &ports.TransactionResult{State: domain.StateAccountNotFound}, apperror.ErrAccountNotFound()
		})

	w := doJSON(r, http.MethodPost, "/api/v1/transactions", `{"customer_id":"cust-1","kind":"CREDIT","amount":12.5}`)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCreateTransaction_ErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		state  domain.TerminalState
		err    error
		status int
		code   string
	}{
		{"auth rejected", domain.StateAuthFailed, apperror.ErrAuthRejected(), http.StatusForbidden, "AUTH_001"},
		{"auth unreachable", domain.StateAuthFailed, apperror.ErrAuthUnreachable(errors.New("timeout")), http.StatusServiceUnavailable, "AUTH_002"},
		{"auth malformed", domain.StateAuthFailed, apperror.ErrAuthMalformed(errors.New("bad json")), http.StatusBadGateway, "AUTH_003"},
		{"account not found", domain.StateAccountNotFound, apperror.ErrAccountNotFound(), http.StatusNotFound, "ACC_001"},
		{"account inactive", domain.StateAccountInactive, apperror.ErrAccountInactive(), http.StatusConflict, "ACC_002"},
		{"rejected input", domain.StateRejectedInput, apperror.ErrInvalidInput("bad kind"), http.StatusBadRequest, "TXN_001"},
		{"insufficient funds", domain.StateInsufficientFunds, apperror.ErrInsufficientFunds(), http.StatusPaymentRequired, "TXN_002"},
		{"storage error", domain.StateStorageError, apperror.ErrStorageFailure(errors.New("commit")), http.StatusInternalServerError, "SYS_001"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, kernel, _ := newMockRouter(t)
			kernel.EXPECT().Process(gomock.Any(), gomock.Any()).
				Return(&ports.TransactionResult{State: tt.state}, tt.err)

			w := doJSON(r, http.MethodPost, "/api/v1/transactions", `{"customer_id":"cust-1","kind":"DEBIT","amount":"1"}`)
			assert.Equal(t, tt.status, w.Code)

			resp := decodeError(t, w)
			assert.Equal(t, tt.code, resp.ErrorCode)
			assert.Equal(t, string(tt.state), resp.State)
		})
	}
}

func TestCreateTransaction_MalformedBody(t *testing.T) {
	r, _, _ := newMockRouter(t)

	w := doJSON(r, http.MethodPost, "/api/v1/transactions", `{"customer_id":`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	resp := decodeError(t, w)
	assert.Equal(t, "TXN_001", resp.ErrorCode)
	assert.Equal(t, "REJECTED_INPUT", resp.State)

	w = doJSON(r, http.MethodPost, "/api/v1/transactions", `{"customer_id":"c","kind":"CREDIT","amount":"ten"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCreateTransaction_MissingAmountGoesToKernel(t *testing.T) {
	r, kernel, _ := newMockRouter(t)
	kernel.EXPECT().Process(gomock.Any(), ports.TransactionRequest{CustomerID: "cust-1", Kind: "CREDIT", Amount: decimal.Zero}).
		Return(&ports.TransactionResult{State: domain.StateRejectedInput}, apperror.ErrInvalidInput("amount must be positive"))

	w := doJSON(r, http.MethodPost, "/api/v1/transactions", `{"customer_id":"cust-1","kind":"CREDIT"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "REJECTED_INPUT", decodeError(t, w).State)
}

func TestCreateTransaction_BodyTooLarge(t *testing.T) {
	r, _, _ := newMockRouter(t)

	body := `{"customer_id":"` + strings.Repeat("x", 2<<20) + `"}`
	w := doJSON(r, http.MethodPost, "/api/v1/transactions", body)
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
}

// --- Account Handler Tests ---

func TestOpenAccount_Success(t *testing.T) {
	r, _, accountSvc := newMockRouter(t)
	acc := domain.NewAccount("cust-1", domain.AccountTypeSavings, "USD", dec("100"), time.Now().UTC())

	accountSvc.EXPECT().OpenAccount(gomock.Any(), ports.OpenAccountRequest{
		CustomerID: "cust-1", AccountType: "SAVINGS", Currency: "USD", OpeningBalance: dec("100.00"),
	}).Return(acc, nil)

	w := doJSON(r, http.MethodPost, "/api/v1/accounts", `{"customer_id":"cust-1","account_type":"SAVINGS","currency":"USD","opening_balance":"100.00"}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), acc.ID.String())
}

func TestOpenAccount_ValidationError(t *testing.T) {
	r, _, _ := newMockRouter(t)

	w := doJSON(r, http.MethodPost, "/api/v1/accounts", `{"customer_id":"cust 1","account_type":"SAVINGS","currency":"USD"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "TXN_001", decodeError(t, w).ErrorCode)
}

func TestListAccounts(t *testing.T) {
	r, _, accountSvc := newMockRouter(t)
	a := domain.NewAccount("cust-1", domain.AccountTypeSavings, "USD", decimal.Zero, time.Now().UTC())
	accountSvc.EXPECT().ListByCustomer(gomock.Any(), "cust-1").Return([]domain.Account{*a}, nil)

	w := doJSON(r, http.MethodGet, "/api/v1/accounts?customer_id=cust-1", "")
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Data []map[string]interface{} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Data, 1)
	assert.Equal(t, a.ID.String(), resp.Data[0]["account_id"])

	w = doJSON(r, http.MethodGet, "/api/v1/accounts", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetAccount(t *testing.T) {
	r, _, accountSvc := newMockRouter(t)
	id := uuid.New()
	accountSvc.EXPECT().GetAccount(gomock.Any(), id).Return(nil, apperror.ErrAccountNotFound())

	w := doJSON(r, http.MethodGet, "/api/v1/accounts/"+id.String(), "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = doJSON(r, http.MethodGet, "/api/v1/accounts/not-a-uuid", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCloseAccount(t *testing.T) {
	r, _, accountSvc := newMockRouter(t)
	acc := domain.NewAccount("cust-1", domain.AccountTypeSavings, "USD", decimal.Zero, time.Now().UTC())
	acc.Status = domain.AccountStatusClosed
	accountSvc.EXPECT().CloseAccount(gomock.Any(), acc.ID).Return(acc, nil)

	w := doJSON(r, http.MethodPost, "/api/v1/accounts/"+acc.ID.String()+"/close", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"CLOSED"`)
}

func TestListTransactions_Paging(t *testing.T) {
	r, _, accountSvc := newMockRouter(t)
	id := uuid.New()
	accountSvc.EXPECT().ListTransactions(gomock.Any(), ports.TransactionListParams{AccountID: id, Page: 2, PageSize: 5}).
		Return([]domain.Transaction{{ID: uuid.New(), AccountID: id, Kind: domain.TransactionKindCredit, Amount: dec("1")}}, int64(6), nil)

	w := doJSON(r, http.MethodGet, "/api/v1/accounts/"+id.String()+"/transactions?page=2&page_size=5", "")
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Data struct {
			Items      []map[string]interface{} `json:"items"`
			Total      int64                    `json:"total"`
			TotalPages int                      `json:"total_pages"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Len(t, resp.Data.Items, 1)
	assert.Equal(t, int64(6), resp.Data.Total)
	assert.Equal(t, 2, resp.Data.TotalPages)

	w = doJSON(r, http.MethodGet, "/api/v1/accounts/"+id.String()+"/transactions?page_size=500", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestReconcile(t *testing.T) {
	r, _, accountSvc := newMockRouter(t)
	id := uuid.New()
	accountSvc.EXPECT().Reconcile(gomock.Any(), id).Return(&ports.Reconciliation{
		AccountID: id, StoredBalance: dec("5"), ReplayedBalance: dec("5"), Entries: 2, Consistent: true,
	}, nil)

	w := doJSON(r, http.MethodGet, "/api/v1/accounts/"+id.String()+"/reconciliation", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"consistent":true`)
}

// --- Identity Handler Tests ---

func newIdentityRouter(t *testing.T) (*gin.Engine, *mocks.MockIdentityService) {
	ctrl := gomock.NewController(t)
	svc := mocks.NewMockIdentityService(ctrl)
	return SetupIdentityRouter(IdentityRouterDeps{IdentitySvc: svc, Logger: zerolog.Nop()}), svc
}

func TestIdentityAuthenticate(t *testing.T) {
	tests := []struct {
		name   string
		ok     bool
		err    error
		status int
	}{
		{"known", true, nil, http.StatusOK},
		{"unknown", false, nil, http.StatusNotFound},
		{"store down", false, errors.New("connection refused"), http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, svc := newIdentityRouter(t)
			svc.EXPECT().Authenticate(gomock.Any(), "cust-1").Return(tt.ok, tt.err)

			w := doJSON(r, http.MethodGet, "/authenticate/cust-1", "")
			assert.Equal(t, tt.status, w.Code)

			if tt.err == nil {
				var body map[string]interface{}
				require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
				assert.Equal(t, "cust-1", body["customer_id"])
				assert.Equal(t, tt.ok, body["authenticated"])
			}
		})
	}
}

func TestIdentityAuthenticate_EscapedID(t *testing.T) {
	r, svc := newIdentityRouter(t)
	svc.EXPECT().Authenticate(gomock.Any(), "a/b").Return(false, nil)

	w := doJSON(r, http.MethodGet, "/authenticate/a%2Fb", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestIdentityAuthenticate_RequiresServiceToken(t *testing.T) {
	ctrl := gomock.NewController(t)
	svc := mocks.NewMockIdentityService(ctrl)
	tokens := mocks.NewMockTokenService(ctrl)
	r := SetupIdentityRouter(IdentityRouterDeps{IdentitySvc: svc, TokenSvc: tokens, Logger: zerolog.Nop()})

	w := doJSON(r, http.MethodGet, "/authenticate/cust-1", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

// --- Health & docs ---

func TestHealthCheck(t *testing.T) {
	ctrl := gomock.NewController(t)
	healthy := mocks.NewMockHealthChecker(ctrl)
	healthy.EXPECT().Ping(gomock.Any()).Return(nil).AnyTimes()
	healthy.EXPECT().Name().Return("sqlite").AnyTimes()
	broken := mocks.NewMockHealthChecker(ctrl)
	broken.EXPECT().Ping(gomock.Any()).Return(errors.New("dial tcp: refused")).AnyTimes()
	broken.EXPECT().Name().Return("redis").AnyTimes()

	r := gin.New()
	r.GET("/health", HealthCheck(healthy))
	r.GET("/health-degraded", HealthCheck(healthy, broken))

	w := doJSON(r, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"healthy"`)

	w = doJSON(r, http.MethodGet, "/health-degraded", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "dial tcp: refused")
}

func TestSwagger(t *testing.T) {
	r, _, _ := newMockRouter(t)

	w := doJSON(r, http.MethodGet, "/swagger/spec", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, bytes.HasPrefix(w.Body.Bytes(), []byte("openapi:")))

	w = doJSON(r, http.MethodGet, "/swagger", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "/swagger/spec")
}
