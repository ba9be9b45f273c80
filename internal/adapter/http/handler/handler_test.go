package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"wallet-service/internal/core/domain"
	"wallet-service/internal/core/ports"
	"wallet-service/internal/core/ports/mocks"
	"wallet-service/pkg/apperror"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type handlerMocks struct {
	wallets  *mocks.MockWalletService
	balances *mocks.MockBalanceService
	contacts *mocks.MockContactService
}

func newTestHandler(t *testing.T) (*WalletHandler, handlerMocks) {
	ctrl := gomock.NewController(t)
	m := handlerMocks{
		wallets:  mocks.NewMockWalletService(ctrl),
		balances: mocks.NewMockBalanceService(ctrl),
		contacts: mocks.NewMockContactService(ctrl),
	}
	return NewWalletHandler(m.wallets, m.balances, m.contacts, "GHS"), m
}

func jsonContext(method, path string, body interface{}) (*gin.Context, *httptest.ResponseRecorder) {
	var raw []byte
	switch b := body.(type) {
	case string:
		raw = []byte(b)
	default:
		raw, _ = json.Marshal(b)
	}

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(method, path, bytes.NewReader(raw))
	c.Request.Header.Set("Content-Type", "application/json")
	return c, w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func sampleWallet() *domain.Wallet {
	now := time.Now()
	return &domain.Wallet{
		ID:        uuid.New(),
		UserID:    "user-1",
		UserName:  "Ama Mensah",
		Code:      "Xy12Ab34Cd56",
		Balance:   10000,
		Currency:  "GHS",
		Status:    domain.WalletStatusActive,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// --- Create ---

func TestCreate_Success(t *testing.T) {
	h, m := newTestHandler(t)
	wallet := sampleWallet()
	wallet.Balance = 0

	m.wallets.EXPECT().Create(gomock.Any(), ports.CreateWalletInput{
		UserID:   "user-1",
		UserName: "Ama Mensah",
	}).Return(wallet, nil)

	c, w := jsonContext(http.MethodPost, "/api/wallets/create", map[string]string{
		"user_id":   "user-1",
		"user_name": "  Ama Mensah ",
		"currency":  "ghs",
	})
	h.Create(c)

	assert.Equal(t, http.StatusCreated, w.Code)
	data := decode(t, w)["data"].(map[string]interface{})
	assert.Equal(t, wallet.ID.String(), data["id"])
	assert.Equal(t, "0.00", data["balance"])
	assert.Equal(t, []interface{}{}, data["contacts"])
	assert.Equal(t, wallet.ID.String(), c.GetString("resource_id"))
}

func TestCreate_ValidationError(t *testing.T) {
	h, _ := newTestHandler(t)

	c, w := jsonContext(http.MethodPost, "/", map[string]string{"user_name": "nobody"})
	h.Create(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	resp := decode(t, w)
	assert.Equal(t, "VAL_001", resp["error_code"])
	assert.Equal(t, "User id is required", resp["errors"].(map[string]interface{})["user_id"])
}

func TestCreate_MalformedJSON(t *testing.T) {
	h, _ := newTestHandler(t)

	c, w := jsonContext(http.MethodPost, "/", `{"user_id":`)
	h.Create(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Invalid request body", decode(t, w)["message"])
}

func TestCreate_CurrencyMismatch(t *testing.T) {
	h, _ := newTestHandler(t)

	c, w := jsonContext(http.MethodPost, "/", map[string]string{"user_id": "user-1", "currency": "USD"})
	h.Create(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Invalid currency", decode(t, w)["errors"].(map[string]interface{})["currency"])
}

func TestCreate_Duplicate(t *testing.T) {
	h, m := newTestHandler(t)
	m.wallets.EXPECT().Create(gomock.Any(), gomock.Any()).Return(nil, apperror.ErrWalletExists())

	c, w := jsonContext(http.MethodPost, "/", map[string]string{"user_id": "user-1"})
	h.Create(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "WLT_002", decode(t, w)["error_code"])
}

// --- Get / GetByUser / Search ---

func TestGet_Success(t *testing.T) {
	h, m := newTestHandler(t)
	wallet := sampleWallet()
	m.wallets.EXPECT().Get(gomock.Any(), wallet.ID).Return(wallet, nil)

	c, w := jsonContext(http.MethodGet, "/", nil)
	c.Params = gin.Params{{Key: "walletId", Value: wallet.ID.String()}}
	h.Get(c)

	assert.Equal(t, http.StatusOK, w.Code)
	data := decode(t, w)["data"].(map[string]interface{})
	assert.Equal(t, "100.00", data["balance"])
	assert.Equal(t, "Xy12Ab34Cd56", data["code"])
}

func TestGet_InvalidID(t *testing.T) {
	h, _ := newTestHandler(t)

	c, w := jsonContext(http.MethodGet, "/", nil)
	c.Params = gin.Params{{Key: "walletId", Value: "123"}}
	h.Get(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Wallet id should be a valid id", decode(t, w)["errors"].(map[string]interface{})["wallet_id"])
}

func TestGet_NotFound(t *testing.T) {
	h, m := newTestHandler(t)
	m.wallets.EXPECT().Get(gomock.Any(), gomock.Any()).Return(nil, apperror.ErrWalletNotFound())

	c, w := jsonContext(http.MethodGet, "/", nil)
	c.Params = gin.Params{{Key: "walletId", Value: uuid.NewString()}}
	h.Get(c)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestGetByUser_Success(t *testing.T) {
	h, m := newTestHandler(t)
	wallet := sampleWallet()
	m.wallets.EXPECT().GetByUser(gomock.Any(), "user-1").Return(wallet, nil)

	c, w := jsonContext(http.MethodGet, "/", nil)
	c.Params = gin.Params{{Key: "userId", Value: "user-1"}}
	h.GetByUser(c)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestSearch_ReturnsSummariesOnly(t *testing.T) {
	h, m := newTestHandler(t)
	wallet := sampleWallet()
	m.wallets.EXPECT().Search(gomock.Any(), "ama").Return([]domain.WalletSummary{wallet.Summary()}, nil)

	c, w := jsonContext(http.MethodGet, "/", nil)
	c.Params = gin.Params{{Key: "query", Value: "ama"}}
	h.Search(c)

	assert.Equal(t, http.StatusOK, w.Code)
	results := decode(t, w)["data"].([]interface{})
	require.Len(t, results, 1)
	item := results[0].(map[string]interface{})
	assert.Equal(t, wallet.ID.String(), item["wallet_id"])
	assert.NotContains(t, item, "balance")
	assert.NotContains(t, item, "contacts")
}

func TestSearch_EmptyResultIsArray(t *testing.T) {
	h, m := newTestHandler(t)
	m.wallets.EXPECT().Search(gomock.Any(), "zzz").Return([]domain.WalletSummary{}, nil)

	c, w := jsonContext(http.MethodGet, "/", nil)
	c.Params = gin.Params{{Key: "query", Value: "zzz"}}
	h.Search(c)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []interface{}{}, decode(t, w)["data"])
}

// --- Update ---

func TestUpdate_Debit(t *testing.T) {
	h, m := newTestHandler(t)
	wallet := sampleWallet()
	wallet.Balance = 7950

	m.balances.EXPECT().ApplyAdjustment(gomock.Any(), wallet.ID, int64(2050), domain.DirectionDebit).Return(wallet, nil)

	c, w := jsonContext(http.MethodPost, "/", map[string]interface{}{
		"wallet_id":        wallet.ID.String(),
		"amount":           20.5,
		"transaction_type": "debit",
	})
	h.Update(c)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "79.50", decode(t, w)["data"].(map[string]interface{})["balance"])
}

func TestUpdate_AmountAsString(t *testing.T) {
	h, m := newTestHandler(t)
	wallet := sampleWallet()

	m.balances.EXPECT().ApplyAdjustment(gomock.Any(), wallet.ID, int64(1), domain.DirectionCredit).Return(wallet, nil)

	c, w := jsonContext(http.MethodPost, "/", map[string]interface{}{
		"wallet_id":        wallet.ID.String(),
		"amount":           "0.01",
		"transaction_type": "credit",
	})
	h.Update(c)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestUpdate_InvalidAmounts(t *testing.T) {
	tests := []struct {
		name    string
		amount  interface{}
		message string
	}{
		{"zero", 0, "Amount should be greater than 0"},
		{"negative", -5, "Amount should be greater than 0"},
		{"too precise", "1.005", "Amount may have at most 2 decimal places"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, _ := newTestHandler(t)

			c, w := jsonContext(http.MethodPost, "/", map[string]interface{}{
				"wallet_id":        uuid.NewString(),
				"amount":           tt.amount,
				"transaction_type": "credit",
			})
			h.Update(c)

			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Equal(t, tt.message, decode(t, w)["errors"].(map[string]interface{})["amount"])
		})
	}
}

func TestUpdate_InvalidTransactionType(t *testing.T) {
	h, _ := newTestHandler(t)

	c, w := jsonContext(http.MethodPost, "/", map[string]interface{}{
		"wallet_id":        uuid.NewString(),
		"amount":           10,
		"transaction_type": "transfer",
	})
	h.Update(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Invalid transaction type.", decode(t, w)["errors"].(map[string]interface{})["transaction_type"])
}

func TestUpdate_InsufficientBalance(t *testing.T) {
	h, m := newTestHandler(t)
	m.balances.EXPECT().ApplyAdjustment(gomock.Any(), gomock.Any(), int64(6000), domain.DirectionDebit).
		Return(nil, apperror.ErrInsufficientBalance())

	c, w := jsonContext(http.MethodPost, "/", map[string]interface{}{
		"wallet_id":        uuid.NewString(),
		"amount":           60,
		"transaction_type": "debit",
	})
	h.Update(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "WLT_003", decode(t, w)["error_code"])
}

func TestUpdate_InternalErrorHidesDetail(t *testing.T) {
	h, m := newTestHandler(t)
	m.balances.EXPECT().ApplyAdjustment(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		Return(nil, apperror.ErrDatabaseError(errors.New("connection reset by peer")))

	c, w := jsonContext(http.MethodPost, "/", map[string]interface{}{
		"wallet_id":        uuid.NewString(),
		"amount":           1,
		"transaction_type": "credit",
	})
	h.Update(c)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), "connection reset")
}

// --- UpdateStatus ---

func TestUpdateStatus_Success(t *testing.T) {
	h, m := newTestHandler(t)
	wallet := sampleWallet()
	wallet.Status = domain.WalletStatusSuspended
	m.wallets.EXPECT().UpdateStatus(gomock.Any(), wallet.ID, domain.WalletStatusSuspended).Return(wallet, nil)

	c, w := jsonContext(http.MethodPatch, "/", map[string]string{
		"wallet_id": wallet.ID.String(),
		"status":    "suspended",
	})
	h.UpdateStatus(c)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "suspended", decode(t, w)["data"].(map[string]interface{})["status"])
}

func TestUpdateStatus_InvalidStatus(t *testing.T) {
	h, _ := newTestHandler(t)

	c, w := jsonContext(http.MethodPatch, "/", map[string]string{
		"wallet_id": uuid.NewString(),
		"status":    "frozen",
	})
	h.UpdateStatus(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

// --- Contacts ---

func TestAddContact_Success(t *testing.T) {
	h, m := newTestHandler(t)
	wallet := sampleWallet()
	other := sampleWallet()
	other.Code = "Other0000001"
	wallet.Contacts = []domain.ContactRef{other.Snapshot()}

	m.contacts.EXPECT().AddContact(gomock.Any(), wallet.ID, "Other0000001").Return(wallet, nil)

	c, w := jsonContext(http.MethodPatch, "/", map[string]string{
		"wallet_id":    wallet.ID.String(),
		"contact_code": "Other0000001",
	})
	h.AddContact(c)

	assert.Equal(t, http.StatusOK, w.Code)
	contacts := decode(t, w)["data"].(map[string]interface{})["contacts"].([]interface{})
	require.Len(t, contacts, 1)
	assert.Equal(t, "Other0000001", contacts[0].(map[string]interface{})["code"])
}

func TestAddContact_Duplicate(t *testing.T) {
	h, m := newTestHandler(t)
	m.contacts.EXPECT().AddContact(gomock.Any(), gomock.Any(), "Other0000001").Return(nil, apperror.ErrContactExists())

	c, w := jsonContext(http.MethodPatch, "/", map[string]string{
		"wallet_id":    uuid.NewString(),
		"contact_code": "Other0000001",
	})
	h.AddContact(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "CNT_001", decode(t, w)["error_code"])
}

func TestRemoveContact_NotAContact(t *testing.T) {
	h, m := newTestHandler(t)
	m.contacts.EXPECT().RemoveContact(gomock.Any(), gomock.Any(), "Other0000001").Return(nil, apperror.ErrNotAContact())

	c, w := jsonContext(http.MethodPatch, "/", map[string]string{
		"wallet_id":    uuid.NewString(),
		"contact_code": "Other0000001",
	})
	h.RemoveContact(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "CNT_002", decode(t, w)["error_code"])
}

func TestRemoveContact_MissingCode(t *testing.T) {
	h, _ := newTestHandler(t)

	c, w := jsonContext(http.MethodPatch, "/", map[string]string{"wallet_id": uuid.NewString()})
	h.RemoveContact(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Contact code is required", decode(t, w)["errors"].(map[string]interface{})["contact_code"])
}

// --- Health ---

type stubChecker struct {
	name string
	err  error
}

func (s stubChecker) Ping(context.Context) error { return s.err }
func (s stubChecker) Name() string               { return s.name }

func TestHealthCheck(t *testing.T) {
	t.Run("all healthy", func(t *testing.T) {
		c, w := jsonContext(http.MethodGet, "/health", nil)
		HealthCheck(zerolog.Nop(), stubChecker{name: "postgresql"}, stubChecker{name: "redis"})(c)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "healthy", decode(t, w)["status"])
	})

	t.Run("degraded", func(t *testing.T) {
		c, w := jsonContext(http.MethodGet, "/health", nil)
		var logs bytes.Buffer
		cause := errors.New("dial tcp 10.0.4.12:6379: connect: connection refused")
		HealthCheck(zerolog.New(&logs), stubChecker{name: "postgresql"}, stubChecker{name: "redis", err: cause})(c)

		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
		resp := decode(t, w)
		assert.Equal(t, "degraded", resp["status"])
		redis := resp["dependencies"].(map[string]interface{})["redis"].(map[string]interface{})
		assert.Equal(t, "unhealthy", redis["status"])
		assert.NotContains(t, w.Body.String(), "10.0.4.12")
		assert.NotContains(t, redis, "error")
		assert.Contains(t, logs.String(), "10.0.4.12")
	})
}
