package interfaces

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"associate-ledger/internal/service/ledger/application"
	"associate-ledger/internal/service/ledger/domain"
	"associate-ledger/internal/service/ledger/infrastructure"
	"associate-ledger/internal/service/ledger/infrastructure/adapter"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace/noop"
)

func newTestServer(t *testing.T) *http.ServeMux {
	t.Helper()
	bonus, err := domain.NewBonusSchedule(map[int]int64{1: 1000, 2: 500})
	require.NoError(t, err)
	commission, err := domain.NewCommissionSchedule(map[int]int64{1: 1000})
	require.NoError(t, err)

	svc := application.NewLedgerService(domain.NewLedger(), infrastructure.NewMemoryStore(), &adapter.RecordingPublisher{},
		adapter.NewMemoryIdempotencyGuard(), noop.NewTracerProvider().Tracer("test"), application.Settings{
			Bonus:           bonus,
			Commission:      commission,
			BootstrapAdmins: []domain.Principal{"ops"},
		})
	mux := http.NewServeMux()
	NewLedgerHandler(svc).RegisterRoutes(mux)
	return mux
}

func do(t *testing.T, mux *http.ServeMux, method, path string, caller domain.Principal, body interface{}, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if caller != "" {
		req.Header.Set(principalHeader, string(caller))
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

func register(t *testing.T, mux *http.ServeMux, caller domain.Principal, path string, req registerRequest) {
	t.Helper()
	rec := do(t, mux, http.MethodPost, path, caller, req)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
}

func TestLedgerHandler_OrderFlow(t *testing.T) {
	mux := newTestServer(t)

	register(t, mux, "alice", "/v1/associates/root", registerRequest{
		Profile: profileRequest{Name: "Alice", AssociateID: "AS-1", ReferralCode: "ALICE"},
	})
	register(t, mux, "bob", "/v1/associates/referral", registerRequest{
		Profile:      profileRequest{Name: "Bob", AssociateID: "AS-2", ReferralCode: "BOB"},
		ReferrerCode: "ALICE",
	})
	register(t, mux, "carol", "/v1/associates/upline", registerRequest{
		Profile:           profileRequest{Name: "Carol", AssociateID: "AS-3", ReferralCode: "CAROL"},
		UplineAssociateID: "AS-2",
	})

	rec := do(t, mux, http.MethodPost, "/v1/products", "ops", productRequest{Name: "Kit", Price: 2500, Category: "Product"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var product domain.Product
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &product))

	rec = do(t, mux, http.MethodPost, "/v1/orders", "carol", placeOrderRequest{ProductID: product.ID, Quantity: 2}, idempotencyHeader, "order-1")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var order domain.Order
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &order))
	assert.Equal(t, int64(5000), order.TotalAmount)

	// 重复的幂等键
	rec = do(t, mux, http.MethodPost, "/v1/orders", "carol", placeOrderRequest{ProductID: product.ID, Quantity: 2}, idempotencyHeader, "order-1")
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = do(t, mux, http.MethodGet, "/v1/me/wallet", "bob", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var wallet domain.Wallet
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &wallet))
	assert.Equal(t, int64(1000), wallet.Balance)

	rec = do(t, mux, http.MethodPost, "/v1/me/payouts", "bob", amountRequest{Amount: 5000})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = do(t, mux, http.MethodPost, "/v1/me/payouts", "bob", amountRequest{Amount: 400})
	require.Equal(t, http.StatusCreated, rec.Code)
	var payout domain.PayoutRequest
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payout))

	// 非管理员不能处理提现
	rec = do(t, mux, http.MethodPost, "/v1/payouts/1/process", "bob", processPayoutRequest{Approved: true})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = do(t, mux, http.MethodPost, "/v1/payouts/1/process", "ops", processPayoutRequest{Approved: true})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	rec = do(t, mux, http.MethodPost, "/v1/payouts/1/process", "ops", processPayoutRequest{Approved: true})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = do(t, mux, http.MethodGet, "/v1/bonus-summary", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var summary application.BonusSummary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &summary))
	assert.Equal(t, int64(2), summary.TotalBonuses)
	assert.Equal(t, int64(1500), summary.TotalAmount)

	rec = do(t, mux, http.MethodGet, "/v1/bonus-summary/verify", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"consistent":true}`, rec.Body.String())
}

func TestLedgerHandler_Errors(t *testing.T) {
	mux := newTestServer(t)

	t.Run("malformed body", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/v1/associates/root", bytes.NewBufferString("{"))
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("bad id", func(t *testing.T) {
		rec := do(t, mux, http.MethodGet, "/v1/products/abc", "ops", nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("unknown product", func(t *testing.T) {
		rec := do(t, mux, http.MethodGet, "/v1/products/99", "ops", nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("unknown upline", func(t *testing.T) {
		rec := do(t, mux, http.MethodPost, "/v1/associates/upline", "dave", registerRequest{
			Profile:           profileRequest{Name: "Dave", AssociateID: "AS-9", ReferralCode: "DAVE"},
			UplineAssociateID: "missing",
		})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("unknown category", func(t *testing.T) {
		rec := do(t, mux, http.MethodGet, "/v1/products?category=Gadget", "ops", nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("guest cannot order", func(t *testing.T) {
		rec := do(t, mux, http.MethodPost, "/v1/orders", "stranger", placeOrderRequest{ProductID: 1, Quantity: 1})
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("guest cannot read wallet", func(t *testing.T) {
		for _, path := range []string{"/v1/me/wallet", "/v1/me/dashboard", "/v1/me/bonuses", "/v1/me/payouts"} {
			rec := do(t, mux, http.MethodGet, path, "stranger", nil)
			assert.Equal(t, http.StatusForbidden, rec.Code, path)
		}
	})

	t.Run("health", func(t *testing.T) {
		rec := do(t, mux, http.MethodGet, "/healthz", "", nil)
		assert.Equal(t, http.StatusOK, rec.Code)
	})
}

func TestStatusOf(t *testing.T) {
	cases := map[error]int{
		domain.ErrOrderNotFound:                         http.StatusNotFound,
		domain.ErrNotRegistered:                         http.StatusForbidden,
		errors.Wrap(domain.ErrInvalidQuantity, "qty 0"): http.StatusBadRequest,
		domain.ErrCommissionAlreadySettled:              http.StatusConflict,
		domain.ErrInsufficientBalance:                   http.StatusUnprocessableEntity,
		domain.ErrWriterLost:                            http.StatusServiceUnavailable,
		errors.New("connection reset"):                  http.StatusInternalServerError,
	}
	for err, want := range cases {
		assert.Equal(t, want, statusOf(err), err.Error())
	}
}
